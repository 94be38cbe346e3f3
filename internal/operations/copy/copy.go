package copy

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/s3desk/s3desk/errors"
	"github.com/s3desk/s3desk/internal/gateway"
	deleteop "github.com/s3desk/s3desk/internal/operations/delete"
	"github.com/s3desk/s3desk/internal/transfer/chunk"
	"github.com/s3desk/s3desk/internal/transfer/retry"
	"github.com/s3desk/s3desk/s3types"
)

// MaxSimpleCopySize is the largest object a single server-side copy call
// accepts.
const MaxSimpleCopySize = 5 * s3types.GiB

// Store is the part of the remote store copies and renames need.
type Store interface {
	ListPage(ctx context.Context, in gateway.ListInput) (*gateway.Page, error)
	Stat(ctx context.Context, key string) (*gateway.ObjectInfo, error)
	Copy(ctx context.Context, src, dst string) error
	CreateMultipart(ctx context.Context, key string, opts gateway.ObjectOptions) (string, error)
	CopyPart(ctx context.Context, src, dst, uploadID string, partNumber int32, start, end int64) (string, error)
	CompleteMultipart(ctx context.Context, key, uploadID string, parts []gateway.Part) (string, error)
	AbortMultipart(ctx context.Context, key, uploadID string) error
	Delete(ctx context.Context, key string) error
	DeleteBatch(ctx context.Context, keys []string) (*s3types.DeleteResult, error)
}

// Config holds the copy tunables.
type Config struct {
	// MultipartThreshold selects part-by-part copy above this size
	MultipartThreshold int64
	// PartSize is the length of each copied part
	PartSize int64
	// Concurrency bounds parallel part copies and folder object copies
	Concurrency int
	Retry       retry.Policy
}

// ConfigFrom extracts the copy tunables from a transfer config.
func ConfigFrom(t s3types.TransferConfig) Config {
	return Config{
		MultipartThreshold: MaxSimpleCopySize,
		PartSize:           t.UploadChunkSize,
		Concurrency:        t.UploadQueueSize,
		Retry: retry.Policy{
			MaxRetries: t.MaxRetries,
			BaseDelay:  t.BaseDelay,
			MaxDelay:   t.MaxDelay,
		},
	}
}

// Copier copies objects inside the bucket and implements rename on top.
type Copier struct {
	store   Store
	deleter *deleteop.BatchDeleter
	cfg     Config
	logger  *slog.Logger
}

// New creates a Copier.
func New(store Store, cfg Config, logger *slog.Logger) *Copier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.MultipartThreshold <= 0 || cfg.MultipartThreshold > MaxSimpleCopySize {
		cfg.MultipartThreshold = MaxSimpleCopySize
	}
	if cfg.PartSize <= 0 {
		cfg.PartSize = 100 * s3types.MiB
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Copier{
		store:   store,
		deleter: deleteop.New(store, deleteop.WithLogger(logger)),
		cfg:     cfg,
		logger:  logger,
	}
}

// Copy copies src to dst, part by part when the object is too large for a
// single call.
func (c *Copier) Copy(ctx context.Context, src, dst string) error {
	info, err := c.store.Stat(ctx, src)
	if err != nil {
		return err
	}
	return c.copyObject(ctx, info, dst)
}

func (c *Copier) copyObject(ctx context.Context, info *gateway.ObjectInfo, dst string) error {
	if info.Size > c.cfg.MultipartThreshold {
		return c.multipartCopy(ctx, info, dst)
	}
	return retry.Do(ctx, c.cfg.Retry, func(ctx context.Context) error {
		err := c.store.Copy(ctx, info.Key, dst)
		if errors.IsObjectNotFound(err) || errors.IsAccessDenied(err) {
			return retry.Permanent(err)
		}
		return err
	}, nil)
}

// multipartCopy copies info into dst through CopyPart calls. The session
// is aborted on any failure.
func (c *Copier) multipartCopy(ctx context.Context, info *gateway.ObjectInfo, dst string) error {
	partSize := c.cfg.PartSize
	if need := (info.Size + chunk.MaxParts - 1) / chunk.MaxParts; need > partSize {
		partSize = need
	}
	ranges, err := chunk.Plan(info.Size, partSize)
	if err != nil {
		return err
	}

	uploadID, err := c.store.CreateMultipart(ctx, dst, gateway.ObjectOptions{
		ContentType:  info.ContentType,
		StorageClass: info.StorageClass,
		Metadata:     info.Metadata,
	})
	if err != nil {
		return err
	}

	parts, err := c.copyParts(ctx, info.Key, dst, uploadID, ranges)
	if err == nil {
		_, err = c.store.CompleteMultipart(ctx, dst, uploadID, parts)
	}
	if err != nil {
		// the caller's context may be gone already
		if abortErr := c.store.AbortMultipart(context.WithoutCancel(ctx), dst, uploadID); abortErr != nil {
			c.logger.Warn("failed to abort multipart copy", "key", dst, "uploadID", uploadID, "error", abortErr)
		}
		return err
	}

	c.logger.Debug("multipart copy complete", "src", info.Key, "dst", dst, "parts", len(parts))
	return nil
}

func (c *Copier) copyParts(ctx context.Context, src, dst, uploadID string, ranges []chunk.Range) ([]gateway.Part, error) {
	parts := make([]gateway.Part, len(ranges))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, r := range ranges {
		g.Go(func() error {
			return retry.Do(gctx, c.cfg.Retry, func(ctx context.Context) error {
				etag, err := c.store.CopyPart(ctx, src, dst, uploadID, r.PartNumber, r.Start, r.End)
				if err != nil {
					if errors.IsObjectNotFound(err) {
						return retry.Permanent(err)
					}
					return err
				}
				parts[i] = gateway.Part{PartNumber: r.PartNumber, ETag: etag}
				return nil
			}, func(err error, next time.Duration) {
				c.logger.Debug("retrying part copy", "key", dst, "part", r.PartNumber, "error", err, "next", next)
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })
	return parts, nil
}
