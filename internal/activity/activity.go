// Package activity keeps the bucket's activity log: a JSON array of
// finished transfers stored as a single object in the bucket itself.
//
// Append reads the whole array and writes it back. Two writers racing on
// the same bucket can lose an entry; the last write wins.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/s3desk/s3desk/errors"
	"github.com/s3desk/s3desk/internal/gateway"
	"github.com/s3desk/s3desk/s3types"
)

// Store is the part of the remote store the log needs.
type Store interface {
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)
	PutBytes(ctx context.Context, key string, data []byte, opts gateway.ObjectOptions) error
}

// Log reads and appends to the activity log object.
type Log struct {
	store  Store
	key    string
	now    func() time.Time
	logger *slog.Logger

	// serialises appends from this process
	mu sync.Mutex
}

// Option configures a Log.
type Option func(*Log)

// WithClock replaces time.Now for entry dates.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		l.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Log stored under key.
func New(store Store, key string, opts ...Option) *Log {
	l := &Log{
		store:  store,
		key:    key,
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Key returns the object key the log lives under.
func (l *Log) Key() string {
	return l.key
}

// Read returns every entry, oldest first. A missing log object is created
// empty.
func (l *Log) Read(ctx context.Context) ([]s3types.ActivityEntry, error) {
	body, _, err := l.store.Get(ctx, l.key)
	if err != nil {
		if !errors.IsObjectNotFound(err) {
			return nil, errors.NewError("readActivity", err).WithKey(l.key)
		}
		l.logger.Debug("activity log not found, creating it", "key", l.key)
		if err := l.write(ctx, []s3types.ActivityEntry{}); err != nil {
			return nil, err
		}
		return []s3types.ActivityEntry{}, nil
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, errors.NewError("readActivity", err).WithKey(l.key)
	}

	entries := []s3types.ActivityEntry{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.NewError("readActivity", fmt.Errorf("decode: %w", err)).WithKey(l.key)
	}
	return entries, nil
}

// Append adds one entry dated now.
func (l *Log) Append(ctx context.Context, action s3types.ActivityAction, itemName string, size int64, fileCount int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.Read(ctx)
	if err != nil {
		return err
	}
	entries = append(entries, s3types.ActivityEntry{
		Date:      l.now().UTC(),
		Action:    action,
		ItemName:  itemName,
		Size:      size,
		FileCount: fileCount,
	})
	return l.write(ctx, entries)
}

// Clear empties the log.
func (l *Log) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.write(ctx, []s3types.ActivityEntry{})
}

func (l *Log) write(ctx context.Context, entries []s3types.ActivityEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return errors.NewError("writeActivity", err).WithKey(l.key)
	}
	if err := l.store.PutBytes(ctx, l.key, data, gateway.ObjectOptions{ContentType: "application/json"}); err != nil {
		return errors.NewError("writeActivity", err).WithKey(l.key)
	}
	return nil
}
