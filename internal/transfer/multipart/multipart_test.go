package multipart

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3desk/s3desk/errors"
	"github.com/s3desk/s3desk/internal/gateway"
	"github.com/s3desk/s3desk/internal/testutil"
	"github.com/s3desk/s3desk/internal/transfer/retry"
	"github.com/s3desk/s3desk/s3types"
)

var fastRetry = retry.Policy{MaxRetries: 3, BaseDelay: time.Millisecond}

func newUploader(store Store) *Uploader {
	return NewUploader(store,
		WithChunkSize(4),
		WithQueueSize(2),
		WithRetryPolicy(fastRetry),
	)
}

func TestUploader_Upload(t *testing.T) {
	data := []byte("0123456789")

	tests := []struct {
		name       string
		setup      func(*testutil.FakeStore)
		cancel     bool
		wantErr    error
		wantAborts int
		validate   func(*testing.T, *testutil.FakeStore, *Result)
	}{
		{
			name: "uploads all parts in order",
			validate: func(t *testing.T, store *testutil.FakeStore, result *Result) {
				assert.Equal(t, 3, result.Parts)
				obj, ok := store.Object("big.bin")
				require.True(t, ok)
				assert.Equal(t, data, obj.Data)

				require.Len(t, store.Completed, 1)
				var numbers []int32
				for _, p := range store.Completed[0] {
					numbers = append(numbers, p.PartNumber)
				}
				assert.Equal(t, []int32{1, 2, 3}, numbers)
			},
		},
		{
			name: "part succeeds on second retry without abort",
			setup: func(store *testutil.FakeStore) {
				store.UploadPartHook = func(part int32, attempt int) error {
					if part == 2 && attempt <= 2 {
						return assert.AnError
					}
					return nil
				}
			},
			validate: func(t *testing.T, store *testutil.FakeStore, _ *Result) {
				assert.Equal(t, 3, store.PartAttempts(2))
				assert.Equal(t, 1, store.PartAttempts(1))
			},
		},
		{
			name: "exhausted retries abort once and surface part error",
			setup: func(store *testutil.FakeStore) {
				store.UploadPartHook = func(part int32, _ int) error {
					if part == 2 {
						return assert.AnError
					}
					return nil
				}
			},
			wantErr:    assert.AnError,
			wantAborts: 1,
			validate: func(t *testing.T, store *testutil.FakeStore, _ *Result) {
				assert.Equal(t, 4, store.PartAttempts(2))
				assert.Empty(t, store.Completed)
				assert.Equal(t, 0, store.OpenUploads())
			},
		},
		{
			name: "abort failure does not mask part error",
			setup: func(store *testutil.FakeStore) {
				store.AbortErr = errors.ErrAccessDenied
				store.UploadPartHook = func(int32, int) error { return assert.AnError }
			},
			wantErr:    assert.AnError,
			wantAborts: 1,
		},
		{
			name: "initiate failure is fatal without abort",
			setup: func(store *testutil.FakeStore) {
				store.CreateMultipartErr = errors.ErrAccessDenied
			},
			wantErr: errors.ErrAccessDenied,
			validate: func(t *testing.T, store *testutil.FakeStore, _ *Result) {
				assert.Equal(t, 0, store.PartAttempts(1))
			},
		},
		{
			name: "complete failure aborts",
			setup: func(store *testutil.FakeStore) {
				store.CompleteErr = assert.AnError
			},
			wantErr:    assert.AnError,
			wantAborts: 1,
		},
		{
			name:       "closed cancel channel stops the upload",
			cancel:     true,
			wantErr:    errors.ErrCancelled,
			wantAborts: 1,
			validate: func(t *testing.T, store *testutil.FakeStore, _ *Result) {
				assert.Empty(t, store.Completed)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewFakeStore("bucket")
			if tt.setup != nil {
				tt.setup(store)
			}

			cancel := make(chan struct{})
			if tt.cancel {
				close(cancel)
			}

			sink := &testutil.RecordingSink{}
			result, err := newUploader(store).Upload(context.Background(), Input{
				Key:      "big.bin",
				Source:   bytes.NewReader(data),
				Size:     int64(len(data)),
				Progress: sink,
				Cancel:   cancel,
			})

			assert.Equal(t, tt.wantAborts, store.Aborts)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, result)
			} else {
				require.NoError(t, err)
				assert.True(t, sink.Monotonic())
				assert.Equal(t, testutil.ProgressUpdate{Transferred: 10, Total: 10}, sink.Last())
			}
			if tt.validate != nil {
				tt.validate(t, store, result)
			}
		})
	}
}

func TestUploader_CancelMidUpload(t *testing.T) {
	store := testutil.NewFakeStore("bucket")
	cancel := make(chan struct{})
	var once sync.Once
	store.UploadPartHook = func(part int32, _ int) error {
		if part == 1 {
			once.Do(func() { close(cancel) })
			// let the watcher observe the close before the part returns
			time.Sleep(20 * time.Millisecond)
		}
		return nil
	}

	data := bytes.Repeat([]byte("x"), 40)
	u := NewUploader(store, WithChunkSize(4), WithQueueSize(1), WithRetryPolicy(fastRetry))
	_, err := u.Upload(context.Background(), Input{
		Key:    "big.bin",
		Source: bytes.NewReader(data),
		Size:   int64(len(data)),
		Cancel: cancel,
	})

	require.ErrorIs(t, err, errors.ErrCancelled)
	assert.Equal(t, 1, store.Aborts)
	assert.Equal(t, 0, store.PartAttempts(2), "no further parts after cancel")
}

func TestUploader_CallerContextCancelled(t *testing.T) {
	store := testutil.NewFakeStore("bucket")
	ctx, cancel := context.WithCancel(context.Background())
	store.UploadPartHook = func(int32, int) error {
		cancel()
		return assert.AnError
	}

	data := []byte("0123456789")
	_, err := newUploader(store).Upload(ctx, Input{
		Key:    "big.bin",
		Source: bytes.NewReader(data),
		Size:   int64(len(data)),
	})

	require.ErrorIs(t, err, errors.ErrCancelled)
	assert.Equal(t, 1, store.Aborts)
	assert.Equal(t, 0, store.OpenUploads())
	assert.Empty(t, store.Completed)
}

func TestUploader_CancelAfterLastPart(t *testing.T) {
	store := testutil.NewFakeStore("bucket")
	cancel := make(chan struct{})
	data := []byte("0123456789")

	// the sink sees the last part before Upload reaches completion
	var once sync.Once
	sink := s3types.ProgressFunc(func(done, total int64) {
		if done == total {
			once.Do(func() { close(cancel) })
		}
	})
	_, err := newUploader(store).Upload(context.Background(), Input{
		Key:      "big.bin",
		Source:   bytes.NewReader(data),
		Size:     int64(len(data)),
		Progress: sink,
		Cancel:   cancel,
	})

	require.ErrorIs(t, err, errors.ErrCancelled)
	assert.Empty(t, store.Completed)
	assert.Equal(t, 1, store.Aborts)
	_, ok := store.Object("big.bin")
	assert.False(t, ok)
}

func TestUploader_PartsFinishOutOfOrder(t *testing.T) {
	store := testutil.NewFakeStore("bucket")
	var (
		mu       sync.Mutex
		finished []int32
	)
	store.PartDelay = func(part int32) time.Duration {
		if part == 1 {
			return 50 * time.Millisecond
		}
		return 0
	}
	store.UploadPartHook = func(part int32, _ int) error {
		mu.Lock()
		finished = append(finished, part)
		mu.Unlock()
		return nil
	}

	data := []byte("0123456789")
	u := NewUploader(store, WithChunkSize(4), WithQueueSize(3), WithRetryPolicy(fastRetry))
	_, err := u.Upload(context.Background(), Input{
		Key:    "big.bin",
		Source: bytes.NewReader(data),
		Size:   int64(len(data)),
	})
	require.NoError(t, err)

	assert.Equal(t, int32(1), finished[len(finished)-1], "part 1 finishes last")
	require.Len(t, store.Completed, 1)
	var numbers []int32
	for _, p := range store.Completed[0] {
		numbers = append(numbers, p.PartNumber)
	}
	assert.Equal(t, []int32{1, 2, 3}, numbers)
}

func TestCheckParts(t *testing.T) {
	tests := []struct {
		name    string
		parts   []gateway.Part
		wantErr bool
	}{
		{name: "contiguous", parts: []gateway.Part{{PartNumber: 1}, {PartNumber: 2}, {PartNumber: 3}}},
		{name: "gap", parts: []gateway.Part{{PartNumber: 1}, {PartNumber: 3}}, wantErr: true},
		{name: "starts at two", parts: []gateway.Part{{PartNumber: 2}}, wantErr: true},
		{name: "empty", parts: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkParts(tt.parts)
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrIncompleteParts)
				return
			}
			assert.NoError(t, err)
		})
	}
}
