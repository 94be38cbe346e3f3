package delete

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/s3desk/s3desk/errors"
	"github.com/s3desk/s3desk/internal/gateway"
	"github.com/s3desk/s3desk/internal/validation"
	"github.com/s3desk/s3desk/s3types"
)

// Store is the part of the remote store deletions need.
type Store interface {
	ListPage(ctx context.Context, in gateway.ListInput) (*gateway.Page, error)
	Delete(ctx context.Context, key string) error
	DeleteBatch(ctx context.Context, keys []string) (*s3types.DeleteResult, error)
}

// BatchDeleter removes objects one at a time or in DeleteObjects batches.
type BatchDeleter struct {
	store        Store
	maxBatchSize int
	parallelism  int
	logger       *slog.Logger
}

// Option configures a BatchDeleter.
type Option func(*BatchDeleter)

// WithParallelism sets how many batches run at once.
func WithParallelism(n int) Option {
	return func(b *BatchDeleter) {
		if n > 0 {
			b.parallelism = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *BatchDeleter) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New creates a BatchDeleter.
func New(store Store, opts ...Option) *BatchDeleter {
	b := &BatchDeleter{
		store:        store,
		maxBatchSize: gateway.MaxDeleteBatch,
		parallelism:  3,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Delete removes one object.
func (b *BatchDeleter) Delete(ctx context.Context, key string) error {
	if err := validation.ValidateObjectKey(key); err != nil {
		return err
	}
	return b.store.Delete(ctx, key)
}

// DeleteFolder removes every object under folder, including its marker.
// Keys the store refuses are reported in the result, not as an error.
func (b *BatchDeleter) DeleteFolder(ctx context.Context, folder string) (*s3types.DeleteResult, error) {
	start := time.Now()

	prefix := validation.FolderPrefix(folder)
	if prefix == "" {
		return nil, errors.NewError("deleteFolder", errors.ErrInvalidInput).
			WithMessage("refusing to delete the bucket root")
	}
	if err := validation.ValidatePrefix(prefix); err != nil {
		return nil, err
	}

	keys, err := b.keys(ctx, prefix)
	if err != nil {
		return nil, errors.NewError("deleteFolder", err).WithKey(prefix)
	}

	result, err := b.DeleteBatch(ctx, keys)
	if err != nil {
		return nil, errors.NewError("deleteFolder", err).WithKey(prefix)
	}
	result.Duration = time.Since(start)

	b.logger.Debug("deleted folder",
		"prefix", prefix,
		"deleted", len(result.Deleted),
		"errors", len(result.Errors),
		"duration", result.Duration)
	return result, nil
}

// DeleteBatch deletes keys in batches of at most 1000, several batches at
// a time. A batch whose call fails has every key reported as an error.
func (b *BatchDeleter) DeleteBatch(ctx context.Context, keys []string) (*s3types.DeleteResult, error) {
	if len(keys) == 0 {
		return &s3types.DeleteResult{}, nil
	}
	if len(keys) <= b.maxBatchSize {
		return b.store.DeleteBatch(ctx, keys)
	}

	var mu sync.Mutex
	result := &s3types.DeleteResult{
		Deleted: make([]string, 0, len(keys)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.parallelism)
	for _, batch := range b.splitIntoBatches(keys) {
		g.Go(func() error {
			res, err := b.store.DeleteBatch(gctx, batch)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				for _, key := range batch {
					result.Errors = append(result.Errors, s3types.DeleteError{
						Key:     key,
						Code:    "BatchError",
						Message: err.Error(),
					})
				}
				return nil
			}
			result.Deleted = append(result.Deleted, res.Deleted...)
			result.Errors = append(result.Errors, res.Errors...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func (b *BatchDeleter) keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	in := gateway.ListInput{Prefix: prefix, MaxKeys: int32(b.maxBatchSize)}
	for {
		page, err := b.store.ListPage(ctx, in)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Objects {
			keys = append(keys, obj.Key)
		}
		if !page.Truncated || page.NextToken == "" {
			return keys, nil
		}
		in.Token = page.NextToken
	}
}

// splitIntoBatches splits keys into slices of at most maxBatchSize.
func (b *BatchDeleter) splitIntoBatches(keys []string) [][]string {
	batches := make([][]string, 0, (len(keys)+b.maxBatchSize-1)/b.maxBatchSize)
	for i := 0; i < len(keys); i += b.maxBatchSize {
		end := min(i+b.maxBatchSize, len(keys))
		batches = append(batches, keys[i:end])
	}
	return batches
}
