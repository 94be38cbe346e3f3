package multipart

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/s3desk/s3desk/errors"
	"github.com/s3desk/s3desk/internal/gateway"
	"github.com/s3desk/s3desk/internal/pool"
	"github.com/s3desk/s3desk/internal/transfer"
	"github.com/s3desk/s3desk/internal/transfer/chunk"
	"github.com/s3desk/s3desk/internal/transfer/retry"
	"github.com/s3desk/s3desk/s3types"
)

// Store is the part of the remote store a multipart upload needs.
type Store interface {
	CreateMultipart(ctx context.Context, key string, opts gateway.ObjectOptions) (string, error)
	UploadPart(ctx context.Context, key, uploadID string, partNumber int32, data []byte) (string, error)
	CompleteMultipart(ctx context.Context, key, uploadID string, parts []gateway.Part) (string, error)
	AbortMultipart(ctx context.Context, key, uploadID string) error
}

// Input describes one multipart upload.
type Input struct {
	Key     string
	Source  io.ReaderAt
	Size    int64
	Options gateway.ObjectOptions

	// Progress receives cumulative bytes after each part. Optional.
	Progress s3types.ProgressSink

	// Cancel stops the upload when closed. Optional.
	Cancel <-chan struct{}
}

// Result describes a completed multipart upload.
type Result struct {
	UploadID string
	ETag     string
	Parts    int
	Duration time.Duration
}

// Uploader runs multipart uploads against a Store.
type Uploader struct {
	store     Store
	chunkSize int64
	queueSize int
	policy    retry.Policy
	logger    *slog.Logger
	buffers   *pool.PartPool
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithChunkSize sets the part size.
func WithChunkSize(size int64) Option {
	return func(u *Uploader) {
		if size > 0 {
			u.chunkSize = size
		}
	}
}

// WithQueueSize sets how many parts are in flight at once.
func WithQueueSize(n int) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.queueSize = n
		}
	}
}

// WithRetryPolicy sets the per-part retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(u *Uploader) {
		u.policy = p
	}
}

// WithLogger sets the logger used for retries and abort failures.
func WithLogger(logger *slog.Logger) Option {
	return func(u *Uploader) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// NewUploader creates an uploader with 100 MiB parts and four in flight.
func NewUploader(store Store, opts ...Option) *Uploader {
	u := &Uploader{
		store:     store,
		chunkSize: 100 * s3types.MiB,
		queueSize: 4,
		policy:    retry.DefaultPolicy(),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(u)
	}
	u.buffers = pool.NewPartPool(int(u.chunkSize))
	return u
}

// Upload sends in.Source as a multipart upload. Any exit other than a
// successful completion aborts the session.
func (u *Uploader) Upload(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()

	ranges, err := chunk.Plan(in.Size, u.chunkSize)
	if err != nil {
		return nil, errors.NewObjectError("multipartUpload", "", in.Key, err)
	}
	if len(ranges) > chunk.MaxParts {
		return nil, errors.NewObjectError("multipartUpload", "", in.Key, errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("%d parts exceeds the limit of %d", len(ranges), chunk.MaxParts))
	}

	uploadID, err := u.store.CreateMultipart(ctx, in.Key, in.Options)
	if err != nil {
		if transfer.Cancelled(ctx) {
			return nil, errors.NewObjectError("multipartUpload", "", in.Key, errors.ErrCancelled)
		}
		return nil, err
	}

	completed := false
	defer func() {
		if completed {
			return
		}
		// the caller's context may already be cancelled
		abortCtx := context.WithoutCancel(ctx)
		if abortErr := u.store.AbortMultipart(abortCtx, in.Key, uploadID); abortErr != nil {
			u.logger.Warn("failed to abort multipart upload",
				"key", in.Key,
				"upload_id", uploadID,
				"error", abortErr)
		}
	}()

	runCtx, stop := transfer.WithCancel(ctx, in.Cancel)
	defer stop()

	parts, err := u.uploadParts(runCtx, in, uploadID, ranges)
	if err != nil {
		if transfer.Cancelled(runCtx) {
			return nil, errors.NewObjectError("multipartUpload", "", in.Key, errors.ErrCancelled)
		}
		return nil, err
	}

	if err := checkParts(parts); err != nil {
		return nil, errors.NewObjectError("multipartUpload", "", in.Key, err)
	}

	// completing commits the object, so a cancel that arrived after the
	// last part still wins
	if transfer.Closed(in.Cancel) || ctx.Err() != nil {
		return nil, errors.NewObjectError("multipartUpload", "", in.Key, errors.ErrCancelled)
	}

	etag, err := u.store.CompleteMultipart(ctx, in.Key, uploadID, parts)
	if err != nil {
		return nil, err
	}
	completed = true

	return &Result{
		UploadID: uploadID,
		ETag:     etag,
		Parts:    len(parts),
		Duration: time.Since(start),
	}, nil
}

func (u *Uploader) uploadParts(
	ctx context.Context,
	in Input,
	uploadID string,
	ranges []chunk.Range,
) ([]gateway.Part, error) {
	var (
		mu    sync.Mutex
		done  int64
		parts = make([]gateway.Part, 0, len(ranges))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.queueSize)

	for _, r := range ranges {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			etag, err := u.uploadPart(gctx, in, uploadID, r)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			parts = append(parts, gateway.Part{PartNumber: r.PartNumber, ETag: etag})
			done += r.Len()
			if in.Progress != nil {
				in.Progress.OnProgress(done, in.Size)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	// a cancellation between scheduling and Wait leaves parts missing
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(parts, func(i, j int) bool {
		return parts[i].PartNumber < parts[j].PartNumber
	})
	return parts, nil
}

func (u *Uploader) uploadPart(ctx context.Context, in Input, uploadID string, r chunk.Range) (string, error) {
	buf := u.buffers.Get(int(r.Len()))
	defer u.buffers.Put(buf)

	n, err := in.Source.ReadAt(buf, r.Start)
	if err != nil && !(stderrors.Is(err, io.EOF) && n == len(buf)) {
		return "", errors.NewObjectError("multipartUpload", "", in.Key, err).
			WithMessage(fmt.Sprintf("read part %d", r.PartNumber))
	}

	var etag string
	err = retry.Do(ctx, u.policy, func(ctx context.Context) error {
		var err error
		etag, err = u.store.UploadPart(ctx, in.Key, uploadID, r.PartNumber, buf)
		return err
	}, func(err error, next time.Duration) {
		u.logger.Debug("retrying part upload",
			"key", in.Key,
			"part", r.PartNumber,
			"delay", next,
			"error", err)
	})
	return etag, err
}

// checkParts verifies parts are numbered 1..N without gaps.
func checkParts(parts []gateway.Part) error {
	for i, p := range parts {
		if p.PartNumber != int32(i+1) {
			return fmt.Errorf("%w: expected part %d, got %d", errors.ErrIncompleteParts, i+1, p.PartNumber)
		}
	}
	return nil
}
