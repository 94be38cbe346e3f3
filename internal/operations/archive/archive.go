package archive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/s3desk/s3desk/errors"
	"github.com/s3desk/s3desk/internal/operations/download"
	"github.com/s3desk/s3desk/internal/operations/list"
	"github.com/s3desk/s3desk/internal/transfer"
	"github.com/s3desk/s3desk/internal/validation"
	"github.com/s3desk/s3desk/registry"
	"github.com/s3desk/s3desk/s3types"
)

// Store is the part of the remote store the archive builder needs.
type Store interface {
	list.Store
	download.Store
	Bucket() string
}

// Config holds the archive tunables.
type Config struct {
	BatchSize        int
	CompressionLevel int
	ActivityLogKey   string
	Fetch            download.Config
}

// ConfigFrom extracts the archive tunables from a transfer config.
func ConfigFrom(t s3types.TransferConfig) Config {
	return Config{
		BatchSize:        t.ArchiveBatchSize,
		CompressionLevel: t.CompressionLevel,
		ActivityLogKey:   t.ActivityLogKey,
		Fetch:            download.ConfigFrom(t),
	}
}

// Input describes one folder archive download.
type Input struct {
	// Folder is the folder to archive. Empty archives the whole bucket.
	Folder string
	// FileName overrides <last folder segment>.zip.
	FileName string
	// Progress receives bytes processed out of the folder's total size.
	Progress s3types.ProgressSink
	// Compression receives bytes deflated out of the bytes fetched.
	Compression s3types.ProgressSink
}

// Builder downloads folders as ZIP archives.
type Builder struct {
	store    Store
	lister   *list.Lister
	fetcher  *download.Fetcher
	registry *registry.Registry
	saver    s3types.Saver
	cfg      Config
	logger   *slog.Logger
}

// New creates a Builder.
func New(store Store, reg *registry.Registry, saver s3types.Saver, cfg Config, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	return &Builder{
		store:    store,
		lister:   list.New(store, cfg.ActivityLogKey),
		fetcher:  download.NewFetcher(store, cfg.Fetch, logger),
		registry: reg,
		saver:    saver,
		cfg:      cfg,
		logger:   logger,
	}
}

// entry is one fetched object waiting to be compressed.
type entry struct {
	obj  s3types.Object
	name string
	data []byte
}

// Download enumerates the folder, fetches its objects in batches, packs
// the retrievable ones into a ZIP and saves it.
func (b *Builder) Download(ctx context.Context, in Input) (*s3types.ArchiveResult, error) {
	start := time.Now()

	if b.saver == nil {
		return nil, errors.NewError("downloadFolder", errors.ErrInvalidInput).
			WithMessage("no saver configured")
	}
	prefix := validation.FolderPrefix(in.Folder)
	if err := validation.ValidatePrefix(prefix); err != nil {
		return nil, err
	}

	objects, err := b.lister.All(ctx, prefix)
	if err != nil {
		if transfer.Cancelled(ctx) {
			err = errors.ErrCancelled
		}
		return nil, errors.NewError("downloadFolder", err).WithKey(prefix)
	}
	if len(objects) == 0 {
		return nil, errors.NewError("downloadFolder", errors.ErrNoFiles).WithKey(prefix)
	}
	var total int64
	for _, obj := range objects {
		total += obj.Size
	}

	name := in.FileName
	if name == "" {
		name = archiveName(prefix, b.store.Bucket())
	}
	id := b.registry.Add(registry.Meta{
		Name:       name,
		Kind:       registry.KindDownload,
		Key:        prefix,
		TotalBytes: total,
		FileCount:  len(objects),
	})

	result := &s3types.ArchiveResult{
		TransferID: id,
		Prefix:     prefix,
		FileName:   name,
		TotalSize:  total,
	}
	if err := b.run(ctx, id, prefix, objects, total, in, result); err != nil {
		transfer.Fail(b.registry, id, err)
		b.logger.Debug("folder download failed", "prefix", prefix, "error", err)
		return nil, err
	}
	b.registry.Complete(id)

	result.Duration = time.Since(start)
	b.logger.Debug("folder download complete",
		"prefix", prefix,
		"files", result.Files,
		"skipped", len(result.Skipped),
		"failed", len(result.Failed),
		"size", result.ArchiveSize,
		"duration", result.Duration)
	return result, nil
}

func (b *Builder) run(
	ctx context.Context,
	id, prefix string,
	objects []s3types.Object,
	total int64,
	in Input,
	result *s3types.ArchiveResult,
) error {
	cancel := b.registry.Cancelled(id)
	runCtx, stop := transfer.WithCancel(ctx, cancel)
	defer stop()

	entries, err := b.fetchAll(runCtx, prefix, objects, total,
		transfer.Sinks(b.registry.Sink(id), in.Progress), result)
	if err != nil {
		if transfer.Cancelled(runCtx) {
			return errors.NewError("downloadFolder", errors.ErrCancelled).WithKey(prefix)
		}
		return err
	}
	if len(entries) == 0 {
		return errors.NewError("downloadFolder", errors.ErrNoFiles).
			WithKey(prefix).
			WithMessage("no object under the folder could be fetched")
	}

	// last chance to cancel; compression runs to completion
	if transfer.Closed(cancel) || transfer.Cancelled(ctx) {
		return errors.NewError("downloadFolder", errors.ErrCancelled).WithKey(prefix)
	}

	zipped, err := compress(entries, b.cfg.CompressionLevel,
		transfer.Sinks(b.registry.CompressionSink(id), in.Compression))
	if err != nil {
		return errors.NewError("downloadFolder", err).WithKey(prefix)
	}

	if err := b.saver.Save(result.FileName, zipped); err != nil {
		return errors.NewError("downloadFolder", err).WithKey(prefix).WithMessage("save " + result.FileName)
	}
	result.Files = len(entries)
	result.ArchiveSize = int64(len(zipped))
	return nil
}

// fetchAll reads objects in batches of BatchSize run concurrently. Skipped
// and failed objects are recorded on result; their bytes still count as
// processed. Only a cancellation stops the walk.
func (b *Builder) fetchAll(
	ctx context.Context,
	prefix string,
	objects []s3types.Object,
	total int64,
	sink s3types.ProgressSink,
	result *s3types.ArchiveResult,
) ([]entry, error) {
	var (
		mu        sync.Mutex
		processed int64
	)
	fetched := make([]*entry, len(objects))

	advance := func(n int64) {
		mu.Lock()
		defer mu.Unlock()
		processed += n
		sink.OnProgress(processed, total)
	}

	for batchStart := 0; batchStart < len(objects); batchStart += b.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batchEnd := min(batchStart+b.cfg.BatchSize, len(objects))

		g, gctx := errgroup.WithContext(ctx)
		for i := batchStart; i < batchEnd; i++ {
			obj := objects[i]
			g.Go(func() error {
				defer advance(obj.Size)

				out, err := b.fetcher.Fetch(gctx, download.FetchInput{Key: obj.Key, Size: obj.Size})
				switch {
				case err == nil:
					fetched[i] = &entry{obj: obj, name: entryName(prefix, obj.Key), data: out.Data}
				case errors.IsNotRetrievable(err):
					// listings may omit restore state, so the fetcher's HEAD decides
					b.logger.Debug("skipping archived object", "key", obj.Key)
					mu.Lock()
					result.Skipped = append(result.Skipped, obj.Key)
					mu.Unlock()
				case gctx.Err() != nil:
					return gctx.Err()
				default:
					b.logger.Warn("skipping object that failed to download", "key", obj.Key, "error", err)
					mu.Lock()
					result.Failed = append(result.Failed, obj.Key)
					mu.Unlock()
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	entries := make([]entry, 0, len(objects))
	for _, e := range fetched {
		if e != nil {
			entries = append(entries, *e)
		}
	}
	sortKeys(result.Skipped)
	sortKeys(result.Failed)
	return entries, nil
}

// archiveName is <last folder segment>.zip, or <bucket>.zip for the root.
func archiveName(prefix, bucket string) string {
	base := validation.BaseName(prefix)
	if base == "" {
		base = bucket
	}
	return fmt.Sprintf("%s.zip", base)
}

// entryName is key relative to the archived folder.
func entryName(prefix, key string) string {
	return strings.TrimPrefix(key, prefix)
}
