package upload

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/s3desk/s3desk/errors"
	"github.com/s3desk/s3desk/internal/gateway"
	"github.com/s3desk/s3desk/internal/transfer"
	"github.com/s3desk/s3desk/internal/transfer/chunk"
	"github.com/s3desk/s3desk/internal/transfer/multipart"
	"github.com/s3desk/s3desk/internal/transfer/retry"
	"github.com/s3desk/s3desk/internal/validation"
	"github.com/s3desk/s3desk/registry"
	"github.com/s3desk/s3desk/s3types"
)

// Store is the part of the remote store uploads need.
type Store interface {
	multipart.Store
	Put(ctx context.Context, in gateway.PutInput) (string, error)
}

// Config holds the strategy tunables.
type Config struct {
	Threshold   int64
	ChunkSize   int64
	QueueSize   int
	MinPartSize int64
	MaxPartSize int64
	Retry       retry.Policy
}

// ConfigFrom extracts the upload tunables from a transfer config.
func ConfigFrom(t s3types.TransferConfig) Config {
	return Config{
		Threshold:   t.UploadThreshold,
		ChunkSize:   t.UploadChunkSize,
		QueueSize:   t.UploadQueueSize,
		MinPartSize: t.MinPartSize,
		MaxPartSize: t.MaxPartSize,
		Retry: retry.Policy{
			MaxRetries: t.MaxRetries,
			BaseDelay:  t.BaseDelay,
			MaxDelay:   t.MaxDelay,
		},
	}
}

// Input describes one object upload.
type Input struct {
	Key    string
	Source io.ReaderAt
	Size   int64

	// Name is shown in the registry. Defaults to the key's last segment.
	Name         string
	ContentType  string
	Metadata     map[string]string
	StorageClass s3types.StorageClass

	// Progress receives the same updates as the registry. Optional.
	Progress s3types.ProgressSink
}

// Uploader uploads objects and tracks them in a registry.
type Uploader struct {
	store     Store
	registry  *registry.Registry
	cfg       Config
	logger    *slog.Logger
	multipart *multipart.Uploader
}

// New creates an Uploader.
func New(store Store, reg *registry.Registry, cfg Config, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Uploader{
		store:    store,
		registry: reg,
		cfg:      cfg,
		logger:   logger,
		multipart: multipart.NewUploader(store,
			multipart.WithChunkSize(cfg.ChunkSize),
			multipart.WithQueueSize(cfg.QueueSize),
			multipart.WithRetryPolicy(cfg.Retry),
			multipart.WithLogger(logger),
		),
	}
}

// Upload registers the transfer, picks a strategy by size and runs it.
// The registry record ends completed, failed or cancelled.
func (u *Uploader) Upload(ctx context.Context, in Input) (*s3types.UploadResult, error) {
	start := time.Now()

	if err := validation.ValidateObjectKey(in.Key); err != nil {
		return nil, err
	}
	if err := validation.ValidateMetadata(in.Metadata); err != nil {
		return nil, errors.NewObjectError("upload", "", in.Key, err)
	}
	if err := validation.ValidateContentType(in.ContentType); err != nil {
		return nil, errors.NewObjectError("upload", "", in.Key, err)
	}
	if in.Size < 0 {
		return nil, errors.NewObjectError("upload", "", in.Key, errors.ErrInvalidInput).
			WithMessage("size cannot be negative")
	}

	name := in.Name
	if name == "" {
		name = validation.BaseName(in.Key)
	}
	contentType := in.ContentType
	if contentType == "" {
		contentType = DetectContentType(in.Source, in.Size, name)
	}

	id := u.registry.Add(registry.Meta{
		Name:       name,
		Kind:       registry.KindUpload,
		Key:        in.Key,
		TotalBytes: in.Size,
		FileCount:  1,
	})
	sink := transfer.Sinks(u.registry.Sink(id), in.Progress)
	opts := gateway.ObjectOptions{
		ContentType:  contentType,
		StorageClass: in.StorageClass,
		Metadata:     in.Metadata,
	}

	result := &s3types.UploadResult{
		TransferID: id,
		Key:        in.Key,
		Size:       in.Size,
	}

	var err error
	if chunk.IsLarge(in.Size, u.cfg.Threshold) {
		err = u.uploadMultipart(ctx, id, in, opts, sink, result)
	} else {
		err = u.uploadManaged(ctx, id, in, opts, sink, result)
	}
	if err != nil {
		transfer.Fail(u.registry, id, err)
		u.logger.Debug("upload failed", "key", in.Key, "error", err)
		return nil, err
	}

	u.registry.Complete(id)
	result.Duration = time.Since(start)
	u.logger.Debug("upload complete",
		"key", in.Key,
		"size", in.Size,
		"multipart", result.Multipart,
		"duration", result.Duration)
	return result, nil
}

func (u *Uploader) uploadMultipart(
	ctx context.Context,
	id string,
	in Input,
	opts gateway.ObjectOptions,
	sink s3types.ProgressSink,
	result *s3types.UploadResult,
) error {
	out, err := u.multipart.Upload(ctx, multipart.Input{
		Key:      in.Key,
		Source:   in.Source,
		Size:     in.Size,
		Options:  opts,
		Progress: sink,
		Cancel:   u.registry.Cancelled(id),
	})
	if err != nil {
		return err
	}
	result.ETag = out.ETag
	result.Multipart = true
	result.Parts = out.Parts
	return nil
}

func (u *Uploader) uploadManaged(
	ctx context.Context,
	id string,
	in Input,
	opts gateway.ObjectOptions,
	sink s3types.ProgressSink,
	result *s3types.UploadResult,
) error {
	cancel := u.registry.Cancelled(id)
	if transfer.Closed(cancel) {
		return errors.NewObjectError("upload", "", in.Key, errors.ErrCancelled)
	}
	runCtx, stop := transfer.WithCancel(ctx, cancel)
	defer stop()

	if in.Size == 0 {
		sink.OnProgress(0, 0)
	}
	body := transfer.NewCountingReader(io.NewSectionReader(in.Source, 0, in.Size), in.Size, sink)

	etag, err := u.store.Put(runCtx, gateway.PutInput{
		Key:           in.Key,
		Body:          body,
		ObjectOptions: opts,
		PartSize:      u.PartSize(in.Size),
		Concurrency:   u.cfg.QueueSize,
	})
	if err != nil {
		if transfer.Cancelled(runCtx) {
			return errors.NewObjectError("upload", "", in.Key, errors.ErrCancelled)
		}
		return err
	}
	result.ETag = etag
	return nil
}

// PartSize returns the managed uploader part size for an object:
// ceil(size/queue) clamped to [MinPartSize, MaxPartSize].
func (u *Uploader) PartSize(size int64) int64 {
	queue := int64(max(u.cfg.QueueSize, 1))
	part := (size + queue - 1) / queue
	return min(max(part, u.cfg.MinPartSize), u.cfg.MaxPartSize)
}
