package download

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/s3desk/s3desk/errors"
	"github.com/s3desk/s3desk/internal/gateway"
	"github.com/s3desk/s3desk/internal/transfer"
	"github.com/s3desk/s3desk/internal/transfer/chunk"
	"github.com/s3desk/s3desk/internal/transfer/retry"
	"github.com/s3desk/s3desk/s3types"
)

// Store is the part of the remote store downloads need.
type Store interface {
	Stat(ctx context.Context, key string) (*gateway.ObjectInfo, error)
	ArchiveStatus(ctx context.Context, key string) (*s3types.ArchiveStatus, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	GetRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error)
}

// Config holds the strategy tunables.
type Config struct {
	Threshold  int64
	ChunkSize  int64
	PresignTTL time.Duration
	Retry      retry.Policy
	// HTTPClient performs the presigned GET. Nil uses http.DefaultClient.
	HTTPClient *http.Client
}

// ConfigFrom extracts the download tunables from a transfer config.
func ConfigFrom(t s3types.TransferConfig) Config {
	return Config{
		Threshold:  t.DownloadThreshold,
		ChunkSize:  t.DownloadChunkSize,
		PresignTTL: t.PresignTTL,
		Retry: retry.Policy{
			MaxRetries: t.MaxRetries,
			BaseDelay:  t.BaseDelay,
			MaxDelay:   t.MaxDelay,
		},
	}
}

// FetchInput describes one object read.
type FetchInput struct {
	Key string
	// Size is the object size, or negative when it must be looked up.
	Size     int64
	Progress s3types.ProgressSink
	Cancel   <-chan struct{}
}

// Fetched is an object read into memory.
type Fetched struct {
	Data    []byte
	Size    int64
	Chunked bool
}

// Fetcher reads whole objects into memory. It does not touch the registry,
// so the archive builder can share it.
type Fetcher struct {
	store  Store
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(store Store, cfg Config, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{
		store:  store,
		cfg:    cfg,
		client: client,
		logger: logger,
	}
}

// Fetch checks that the object is retrievable, then reads it with one GET
// or with ordered ranged reads depending on its size.
func (f *Fetcher) Fetch(ctx context.Context, in FetchInput) (*Fetched, error) {
	size, err := f.resolve(ctx, in.Key, in.Size)
	if err != nil {
		if transfer.Cancelled(ctx) {
			return nil, errors.NewObjectError("download", "", in.Key, errors.ErrCancelled)
		}
		return nil, err
	}

	if transfer.Closed(in.Cancel) {
		return nil, errors.NewObjectError("download", "", in.Key, errors.ErrCancelled)
	}
	runCtx, stop := transfer.WithCancel(ctx, in.Cancel)
	defer stop()

	sink := transfer.Sinks(in.Progress)
	out := &Fetched{Size: size}
	if chunk.IsLarge(size, f.cfg.Threshold) {
		out.Chunked = true
		out.Data, err = f.fetchRanges(runCtx, in.Key, size, sink)
	} else {
		out.Data, err = f.fetchDirect(runCtx, in.Key, size, sink)
	}
	if err != nil {
		if transfer.Cancelled(runCtx) {
			return nil, errors.NewObjectError("download", "", in.Key, errors.ErrCancelled)
		}
		return nil, err
	}
	return out, nil
}

// resolve returns the object size and refuses archived objects that are
// not restored. An unknown size comes from the same HEAD request.
func (f *Fetcher) resolve(ctx context.Context, key string, size int64) (int64, error) {
	var status s3types.ArchiveStatus
	if size < 0 {
		info, err := f.store.Stat(ctx, key)
		if err != nil {
			return 0, err
		}
		size = info.Size
		status = gateway.ParseRestore(info.StorageClass, info.Restore)
	} else {
		st, err := f.store.ArchiveStatus(ctx, key)
		if err != nil {
			return 0, err
		}
		status = *st
	}

	if !status.Retrievable() {
		msg := "restore the object before downloading it"
		if status.Restoring {
			msg = "restore in progress"
		}
		return 0, errors.NewObjectError("download", "", key, errors.ErrNotRetrievable).WithMessage(msg)
	}
	return size, nil
}

func (f *Fetcher) fetchDirect(ctx context.Context, key string, size int64, sink s3types.ProgressSink) ([]byte, error) {
	url, err := f.store.PresignGet(ctx, key, f.cfg.PresignTTL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewObjectError("download", "", key, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.NewObjectError("download", "", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewObjectError("download", "", key, statusError(resp.StatusCode))
	}

	if size == 0 {
		sink.OnProgress(0, 0)
	}
	var buf bytes.Buffer
	if size > 0 {
		buf.Grow(int(size))
	}
	body := transfer.NewCountingReader(resp.Body, size, sink)
	if _, err := buf.ReadFrom(body); err != nil {
		return nil, errors.NewObjectError("download", "", key, err)
	}
	return buf.Bytes(), nil
}

func (f *Fetcher) fetchRanges(ctx context.Context, key string, size int64, sink s3types.ProgressSink) ([]byte, error) {
	ranges, err := chunk.Plan(size, f.cfg.ChunkSize)
	if err != nil {
		return nil, errors.NewObjectError("download", "", key, err)
	}

	chunks := make([][]byte, 0, len(ranges))
	var done int64
	for _, r := range ranges {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := f.fetchRange(ctx, key, r)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, data)
		done += r.Len()
		sink.OnProgress(done, size)
	}

	return bytes.Join(chunks, nil), nil
}

func (f *Fetcher) fetchRange(ctx context.Context, key string, r chunk.Range) ([]byte, error) {
	var data []byte
	err := retry.Do(ctx, f.cfg.Retry, func(ctx context.Context) error {
		body, err := f.store.GetRange(ctx, key, r.Start, r.End)
		if err != nil {
			if errors.IsNotRetrievable(err) || errors.IsObjectNotFound(err) {
				return retry.Permanent(err)
			}
			return err
		}
		defer body.Close()

		buf, err := io.ReadAll(body)
		if err != nil {
			return errors.NewObjectError("getRange", "", key, err)
		}
		if int64(len(buf)) != r.Len() {
			return errors.NewObjectError("getRange", "", key, io.ErrUnexpectedEOF).
				WithMessage(fmt.Sprintf("range %d: got %d of %d bytes", r.PartNumber, len(buf), r.Len()))
		}
		data = buf
		return nil
	}, func(err error, next time.Duration) {
		f.logger.Debug("retrying ranged read",
			"key", key,
			"range", r.PartNumber,
			"delay", next,
			"error", err)
	})
	return data, err
}

func statusError(code int) error {
	switch code {
	case http.StatusNotFound:
		return errors.ErrObjectNotFound
	case http.StatusForbidden:
		return errors.ErrAccessDenied
	}
	return fmt.Errorf("unexpected HTTP status %d", code)
}
