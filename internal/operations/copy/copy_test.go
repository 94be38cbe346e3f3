package copy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3desk/s3desk/errors"
	"github.com/s3desk/s3desk/internal/testutil"
	"github.com/s3desk/s3desk/internal/transfer/retry"
	"github.com/s3desk/s3desk/s3types"
)

func testConfig() Config {
	return Config{
		MultipartThreshold: 16,
		PartSize:           4,
		Concurrency:        2,
		Retry:              retry.Policy{MaxRetries: 1, BaseDelay: time.Millisecond},
	}
}

func TestCopier_RenameFile(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		newName  string
		data     []byte
		mockFunc func(*testutil.FakeStore)
		wantErr  error
		wantTo   string
		wantKeys []string
		wantData string
	}{
		{
			name:     "rename in place",
			key:      "docs/old.txt",
			newName:  "new.txt",
			data:     []byte("hello"),
			wantTo:   "docs/new.txt",
			wantKeys: []string{"docs/new.txt"},
			wantData: "hello",
		},
		{
			name:     "root object",
			key:      "old.txt",
			newName:  "new.txt",
			data:     []byte("hello"),
			wantTo:   "new.txt",
			wantKeys: []string{"new.txt"},
			wantData: "hello",
		},
		{
			name:     "same name is a no-op",
			key:      "docs/old.txt",
			newName:  "old.txt",
			data:     []byte("hello"),
			wantTo:   "docs/old.txt",
			wantKeys: []string{"docs/old.txt"},
			wantData: "hello",
		},
		{
			name:     "large object is copied in parts",
			key:      "big.bin",
			newName:  "moved.bin",
			data:     []byte("0123456789abcdefghij"),
			wantTo:   "moved.bin",
			wantKeys: []string{"moved.bin"},
			wantData: "0123456789abcdefghij",
		},
		{
			name:     "empty name",
			key:      "docs/old.txt",
			newName:  " ",
			data:     []byte("hello"),
			wantErr:  errors.ErrInvalidObjectKey,
			wantKeys: []string{"docs/old.txt"},
		},
		{
			name:     "name with a separator",
			key:      "docs/old.txt",
			newName:  "a/b.txt",
			data:     []byte("hello"),
			wantErr:  errors.ErrInvalidObjectKey,
			wantKeys: []string{"docs/old.txt"},
		},
		{
			name:    "archived object is refused",
			key:     "docs/old.txt",
			newName: "new.txt",
			data:    []byte("hello"),
			mockFunc: func(s *testutil.FakeStore) {
				obj, _ := s.Object("docs/old.txt")
				obj.StorageClass = s3types.StorageClassDeepArchive
			},
			wantErr:  errors.ErrArchived,
			wantKeys: []string{"docs/old.txt"},
		},
		{
			name:    "failed copy keeps the original",
			key:     "docs/old.txt",
			newName: "new.txt",
			data:    []byte("hello"),
			mockFunc: func(s *testutil.FakeStore) {
				s.CopyHook = func(string, string) error { return assert.AnError }
			},
			wantErr:  assert.AnError,
			wantKeys: []string{"docs/old.txt"},
		},
		{
			name:    "failed delete is surfaced",
			key:     "docs/old.txt",
			newName: "new.txt",
			data:    []byte("hello"),
			mockFunc: func(s *testutil.FakeStore) {
				s.DeleteHook = func(string) error { return errors.ErrAccessDenied }
			},
			wantErr:  errors.ErrAccessDenied,
			wantKeys: []string{"docs/new.txt", "docs/old.txt"},
		},
		{
			name:     "missing object",
			key:      "docs/nope.txt",
			newName:  "new.txt",
			wantErr:  errors.ErrObjectNotFound,
			wantKeys: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewFakeStore("bucket")
			if tt.data != nil {
				store.Add(tt.key, tt.data).ContentType = "text/plain"
			}
			if tt.mockFunc != nil {
				tt.mockFunc(store)
			}

			result, err := New(store, testConfig(), nil).RenameFile(context.Background(), tt.key, tt.newName)

			assert.ElementsMatch(t, tt.wantKeys, store.Keys())
			assert.Zero(t, store.OpenUploads())
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.key, result.From)
			assert.Equal(t, tt.wantTo, result.To)

			obj, ok := store.Object(tt.wantTo)
			require.True(t, ok)
			assert.Equal(t, tt.wantData, string(obj.Data))
			assert.Equal(t, "text/plain", obj.ContentType)
		})
	}
}

func TestCopier_Copy_Multipart(t *testing.T) {
	store := testutil.NewFakeStore("bucket")
	store.Add("big.bin", []byte("0123456789abcdefghij"))

	require.NoError(t, New(store, testConfig(), nil).Copy(context.Background(), "big.bin", "copy.bin"))

	require.Len(t, store.Completed, 1)
	assert.Len(t, store.Completed[0], 5)
	for i, p := range store.Completed[0] {
		assert.Equal(t, int32(i+1), p.PartNumber)
	}
	obj, ok := store.Object("copy.bin")
	require.True(t, ok)
	assert.Equal(t, "0123456789abcdefghij", string(obj.Data))
}

func TestCopier_Copy_MultipartAbort(t *testing.T) {
	store := testutil.NewFakeStore("bucket")
	store.Add("big.bin", []byte("0123456789abcdefghij"))
	store.CompleteErr = assert.AnError

	err := New(store, testConfig(), nil).Copy(context.Background(), "big.bin", "copy.bin")

	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, store.Aborts)
	assert.Zero(t, store.OpenUploads())
	_, ok := store.Object("copy.bin")
	assert.False(t, ok)
}

func TestCopier_RenameFolder(t *testing.T) {
	seed := []string{"photos/", "photos/a.txt", "photos/sub/b.txt", "photosx/keep.txt"}

	tests := []struct {
		name        string
		folder      string
		newName     string
		mockFunc    func(*testutil.FakeStore)
		wantErr     error
		wantTo      string
		wantObjects int
		wantKeys    []string
		wantPartial bool
	}{
		{
			name:        "folder and marker move",
			folder:      "photos",
			newName:     "pictures",
			wantTo:      "pictures/",
			wantObjects: 3,
			wantKeys:    []string{"pictures/", "pictures/a.txt", "pictures/sub/b.txt", "photosx/keep.txt"},
		},
		{
			name:        "nested folder",
			folder:      "photos/sub/",
			newName:     "deeper",
			wantTo:      "photos/deeper/",
			wantObjects: 1,
			wantKeys:    []string{"photos/", "photos/a.txt", "photos/deeper/b.txt", "photosx/keep.txt"},
		},
		{
			name:     "same name is a no-op",
			folder:   "photos",
			newName:  "photos",
			wantTo:   "photos/",
			wantKeys: seed,
		},
		{
			name:     "bucket root",
			folder:   "",
			newName:  "x",
			wantErr:  errors.ErrInvalidInput,
			wantKeys: seed,
		},
		{
			name:     "empty folder",
			folder:   "nothing",
			newName:  "x",
			wantErr:  errors.ErrNoFiles,
			wantKeys: seed,
		},
		{
			name:    "archived object blocks the folder",
			folder:  "photos",
			newName: "pictures",
			mockFunc: func(s *testutil.FakeStore) {
				obj, _ := s.Object("photos/sub/b.txt")
				obj.StorageClass = s3types.StorageClassGlacier
			},
			wantErr:  errors.ErrArchived,
			wantKeys: seed,
		},
		{
			name:    "failed copy keeps every original",
			folder:  "photos",
			newName: "pictures",
			mockFunc: func(s *testutil.FakeStore) {
				s.CopyHook = func(src, _ string) error {
					if src == "photos/sub/b.txt" {
						return assert.AnError
					}
					return nil
				}
			},
			wantErr:  assert.AnError,
			wantKeys: seed,
		},
		{
			name:    "failed delete is surfaced",
			folder:  "photos",
			newName: "pictures",
			mockFunc: func(s *testutil.FakeStore) {
				s.DeleteHook = func(key string) error {
					if key == "photos/a.txt" {
						return errors.ErrAccessDenied
					}
					return nil
				}
			},
			wantPartial: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewFakeStore("bucket")
			for _, key := range seed {
				store.Add(key, []byte(key))
			}
			if tt.mockFunc != nil {
				tt.mockFunc(store)
			}

			result, err := New(store, testConfig(), nil).RenameFolder(context.Background(), tt.folder, tt.newName)

			if tt.wantPartial {
				// the copy is complete and the error names the refused key
				require.Error(t, err)
				assert.Contains(t, err.Error(), "photos/a.txt")
				assert.Contains(t, store.Keys(), "pictures/a.txt")
				assert.Contains(t, store.Keys(), "photos/a.txt")
				return
			}

			assert.ElementsMatch(t, tt.wantKeys, store.Keys())
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTo, result.To)
			assert.Equal(t, tt.wantObjects, result.Objects)
		})
	}
}
