package download

import (
	"context"
	"log/slog"
	"time"

	"github.com/s3desk/s3desk/errors"
	"github.com/s3desk/s3desk/internal/transfer"
	"github.com/s3desk/s3desk/internal/validation"
	"github.com/s3desk/s3desk/registry"
	"github.com/s3desk/s3desk/s3types"
)

// Input describes one object download.
type Input struct {
	Key string
	// Size is the object size, or negative when it must be looked up.
	Size int64
	// FileName is the name handed to the Saver. Defaults to the key's last segment.
	FileName string
	Progress s3types.ProgressSink
}

// Downloader downloads objects, tracks them in a registry and saves them.
type Downloader struct {
	fetcher  *Fetcher
	registry *registry.Registry
	saver    s3types.Saver
	logger   *slog.Logger
}

// New creates a Downloader.
func New(store Store, reg *registry.Registry, saver s3types.Saver, cfg Config, logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Downloader{
		fetcher:  NewFetcher(store, cfg, logger),
		registry: reg,
		saver:    saver,
		logger:   logger,
	}
}

// Fetcher returns the registry-free reader the downloader uses.
func (d *Downloader) Fetcher() *Fetcher {
	return d.fetcher
}

// Download registers the transfer, reads the object and saves it. Nothing
// is saved unless every byte arrived.
func (d *Downloader) Download(ctx context.Context, in Input) (*s3types.DownloadResult, error) {
	start := time.Now()

	if err := validation.ValidateObjectKey(in.Key); err != nil {
		return nil, err
	}
	if d.saver == nil {
		return nil, errors.NewObjectError("download", "", in.Key, errors.ErrInvalidInput).
			WithMessage("no saver configured")
	}

	name := in.FileName
	if name == "" {
		name = validation.BaseName(in.Key)
	}

	id := d.registry.Add(registry.Meta{
		Name:       name,
		Kind:       registry.KindDownload,
		Key:        in.Key,
		TotalBytes: max(in.Size, 0),
		FileCount:  1,
	})

	fetched, err := d.fetcher.Fetch(ctx, FetchInput{
		Key:      in.Key,
		Size:     in.Size,
		Progress: transfer.Sinks(d.registry.Sink(id), in.Progress),
		Cancel:   d.registry.Cancelled(id),
	})
	if err != nil {
		transfer.Fail(d.registry, id, err)
		d.logger.Debug("download failed", "key", in.Key, "error", err)
		return nil, err
	}

	if err := d.saver.Save(name, fetched.Data); err != nil {
		err = errors.NewObjectError("download", "", in.Key, err).WithMessage("save " + name)
		d.registry.Fail(id, err)
		return nil, err
	}
	d.registry.Complete(id)

	result := &s3types.DownloadResult{
		TransferID: id,
		Key:        in.Key,
		FileName:   name,
		Size:       fetched.Size,
		Chunked:    fetched.Chunked,
		Duration:   time.Since(start),
	}
	d.logger.Debug("download complete",
		"key", in.Key,
		"size", result.Size,
		"chunked", result.Chunked,
		"duration", result.Duration)
	return result, nil
}
