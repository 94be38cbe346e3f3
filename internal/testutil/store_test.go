package testutil

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3desk/s3desk/errors"
	"github.com/s3desk/s3desk/internal/gateway"
	"github.com/s3desk/s3desk/s3types"
)

func TestFakeStoreListPage(t *testing.T) {
	store := NewFakeStore("bucket")
	store.Add("a/", nil)
	store.Add("a/one.txt", []byte("1"))
	store.Add("a/sub/two.txt", []byte("22"))
	store.Add("a/sub/three.txt", []byte("333"))
	store.Add("b.txt", []byte("b"))

	tests := []struct {
		name         string
		input        gateway.ListInput
		wantObjects  []string
		wantPrefixes []string
	}{
		{
			name:        "flat listing",
			input:       gateway.ListInput{Prefix: "a/"},
			wantObjects: []string{"a/", "a/one.txt", "a/sub/three.txt", "a/sub/two.txt"},
		},
		{
			name:         "delimited listing",
			input:        gateway.ListInput{Prefix: "a/", Delimiter: "/"},
			wantObjects:  []string{"a/", "a/one.txt"},
			wantPrefixes: []string{"a/sub/"},
		},
		{
			name:         "root listing",
			input:        gateway.ListInput{Delimiter: "/"},
			wantObjects:  []string{"b.txt"},
			wantPrefixes: []string{"a/"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := store.ListPage(context.Background(), tt.input)
			require.NoError(t, err)

			var keys []string
			for _, o := range page.Objects {
				keys = append(keys, o.Key)
			}
			assert.Equal(t, tt.wantObjects, keys)
			assert.Equal(t, tt.wantPrefixes, page.Prefixes)
			assert.False(t, page.Truncated)
		})
	}
}

func TestFakeStorePaging(t *testing.T) {
	store := NewFakeStore("bucket")
	for _, k := range []string{"k1", "k2", "k3", "k4", "k5"} {
		store.Add(k, []byte(k))
	}

	var all []string
	token := ""
	pages := 0
	for {
		page, err := store.ListPage(context.Background(), gateway.ListInput{Token: token, MaxKeys: 2})
		require.NoError(t, err)
		pages++
		for _, o := range page.Objects {
			all = append(all, o.Key)
		}
		if !page.Truncated {
			break
		}
		token = page.NextToken
	}

	assert.Equal(t, 3, pages)
	assert.Equal(t, []string{"k1", "k2", "k3", "k4", "k5"}, all)
}

func TestFakeStoreMultipart(t *testing.T) {
	ctx := context.Background()
	store := NewFakeStore("bucket")

	id, err := store.CreateMultipart(ctx, "big.bin", gateway.ObjectOptions{})
	require.NoError(t, err)
	_, err = store.UploadPart(ctx, "big.bin", id, 2, []byte("world"))
	require.NoError(t, err)
	_, err = store.UploadPart(ctx, "big.bin", id, 1, []byte("hello "))
	require.NoError(t, err)

	t.Run("rejects unsorted parts", func(t *testing.T) {
		_, err := store.CompleteMultipart(ctx, "big.bin", id, []gateway.Part{{PartNumber: 2}, {PartNumber: 1}})
		assert.ErrorIs(t, err, errors.ErrIncompleteParts)
	})

	t.Run("assembles sorted parts", func(t *testing.T) {
		_, err := store.CompleteMultipart(ctx, "big.bin", id, []gateway.Part{{PartNumber: 1}, {PartNumber: 2}})
		require.NoError(t, err)

		obj, ok := store.Object("big.bin")
		require.True(t, ok)
		assert.Equal(t, "hello world", string(obj.Data))
		assert.Equal(t, 0, store.OpenUploads())
	})
}

func TestFakeStoreHooks(t *testing.T) {
	ctx := context.Background()
	store := NewFakeStore("bucket")
	store.Add("obj", []byte("0123456789"))
	store.GetRangeHook = func(_ string, _ int64, attempt int) error {
		if attempt == 1 {
			return assert.AnError
		}
		return nil
	}

	_, err := store.GetRange(ctx, "obj", 0, 5)
	require.Error(t, err)

	body, err := store.GetRange(ctx, "obj", 0, 5)
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "01234", string(data))
	assert.Equal(t, []string{"bytes=0-4", "bytes=0-4"}, store.RangeRequests)
}

func TestFakeStoreArchived(t *testing.T) {
	ctx := context.Background()
	store := NewFakeStore("bucket")
	store.Add("cold", []byte("x")).StorageClass = s3types.StorageClassGlacier

	_, _, err := store.Get(ctx, "cold")
	assert.ErrorIs(t, err, errors.ErrNotRetrievable)

	require.NoError(t, store.Restore(ctx, "cold", s3types.TierBulk, 3))
	status, err := store.ArchiveStatus(ctx, "cold")
	require.NoError(t, err)
	assert.True(t, status.Restoring)
	assert.False(t, status.Retrievable())
}

func TestFakeStoreServeHTTP(t *testing.T) {
	store := NewFakeStore("bucket")
	store.Add("dir/file.txt", []byte("content"))
	server := httptest.NewServer(store)
	defer server.Close()
	store.BaseURL = server.URL

	url, err := store.PresignGet(context.Background(), "dir/file.txt", 0)
	require.NoError(t, err)

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.Equal([]byte("content"), data))

	missing, err := http.Get(server.URL + "/nope")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}
