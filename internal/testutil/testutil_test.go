package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockS3Client(t *testing.T) {
	t.Run("implements S3API interface", func(t *testing.T) {
		mock := &MockS3Client{}
		// This test will fail at compile time if MockS3Client doesn't implement S3API
		_ = mock
	})

	t.Run("PutObject with custom function", func(t *testing.T) {
		mock := &MockS3Client{
			PutObjectFunc: func(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
				assert.Equal(t, "test-bucket", *params.Bucket)
				assert.Equal(t, "test-key", *params.Key)
				return &s3.PutObjectOutput{
					ETag: StringPtr("test-etag"),
				}, nil
			},
		}

		output, err := mock.PutObject(context.Background(), &s3.PutObjectInput{
			Bucket: StringPtr("test-bucket"),
			Key:    StringPtr("test-key"),
		})

		require.NoError(t, err)
		assert.Equal(t, "test-etag", *output.ETag)
	})

	t.Run("returns default when no function set", func(t *testing.T) {
		mock := &MockS3Client{}
		output, err := mock.GetObject(context.Background(), &s3.GetObjectInput{
			Bucket: StringPtr("test-bucket"),
			Key:    StringPtr("test-key"),
		})

		require.NoError(t, err)
		assert.NotNil(t, output)
	})
}

func TestMockBuilder(t *testing.T) {
	t.Run("builds mock with object not found", func(t *testing.T) {
		mock := NewMockBuilder().WithObjectNotFound().Build()

		_, err := mock.GetObject(context.Background(), &s3.GetObjectInput{
			Bucket: StringPtr("test-bucket"),
			Key:    StringPtr("test-key"),
		})
		require.Error(t, err)

		_, err = mock.HeadObject(context.Background(), &s3.HeadObjectInput{
			Bucket: StringPtr("test-bucket"),
			Key:    StringPtr("test-key"),
		})
		var nsk *types.NoSuchKey
		assert.ErrorAs(t, err, &nsk)
	})

	t.Run("builds mock with archived object", func(t *testing.T) {
		mock := NewMockBuilder().
			WithArchivedObject(types.StorageClassGlacier, `ongoing-request="true"`, 2048).
			Build()

		out, err := mock.HeadObject(context.Background(), &s3.HeadObjectInput{Key: StringPtr("cold.bin")})
		require.NoError(t, err)
		assert.Equal(t, types.StorageClassGlacier, out.StorageClass)
		assert.Equal(t, int64(2048), *out.ContentLength)
		assert.Equal(t, `ongoing-request="true"`, *out.Restore)
	})

	t.Run("builds mock with restore and list", func(t *testing.T) {
		var restored string
		mock := NewMockBuilder().
			WithRestoreObject(func(_ context.Context, in *s3.RestoreObjectInput) (*s3.RestoreObjectOutput, error) {
				restored = *in.Key
				return &s3.RestoreObjectOutput{}, nil
			}).
			WithListObjectsV2(func(_ context.Context, in *s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error) {
				return CreateListObjectsV2Output(nil, *in.Prefix, "", false), nil
			}).
			Build()

		_, err := mock.RestoreObject(context.Background(), &s3.RestoreObjectInput{Key: StringPtr("cold.bin")})
		require.NoError(t, err)
		assert.Equal(t, "cold.bin", restored)

		out, err := mock.ListObjectsV2(context.Background(), &s3.ListObjectsV2Input{Prefix: StringPtr("a/")})
		require.NoError(t, err)
		assert.Equal(t, int32(0), *out.KeyCount)
	})
}

func TestRecordingSink(t *testing.T) {
	t.Run("records updates in order", func(t *testing.T) {
		sink := &RecordingSink{}

		sink.OnProgress(100, 1000)
		sink.OnProgress(500, 1000)

		assert.Equal(t, []ProgressUpdate{{100, 1000}, {500, 1000}}, sink.Updates())
		assert.Equal(t, ProgressUpdate{500, 1000}, sink.Last())
		assert.True(t, sink.Monotonic())
	})

	t.Run("detects regressions", func(t *testing.T) {
		sink := &RecordingSink{}
		sink.OnProgress(500, 1000)
		sink.OnProgress(100, 1000)

		assert.False(t, sink.Monotonic())
	})

	t.Run("resets state", func(t *testing.T) {
		sink := &RecordingSink{}
		sink.OnProgress(100, 1000)

		sink.Reset()

		assert.Empty(t, sink.Updates())
		assert.Equal(t, ProgressUpdate{}, sink.Last())
	})
}

func TestHelpers(t *testing.T) {
	t.Run("calculates ETag", func(t *testing.T) {
		etag := CalculateETag([]byte("test data"))
		assert.True(t, strings.HasPrefix(etag, `"`))
		assert.True(t, strings.HasSuffix(etag, `"`))
		assert.Len(t, etag, 34)
	})

	t.Run("creates archived object", func(t *testing.T) {
		obj := CreateArchivedObject("cold.bin", 10, types.ObjectStorageClassGlacier, false, true)

		assert.Equal(t, types.ObjectStorageClassGlacier, obj.StorageClass)
		require.NotNil(t, obj.RestoreStatus)
		assert.False(t, *obj.RestoreStatus.IsRestoreInProgress)
		assert.NotNil(t, obj.RestoreStatus.RestoreExpiryDate)
	})

	t.Run("creates test object", func(t *testing.T) {
		now := time.Now()
		obj := CreateTestObject("test-key", 1024, now)

		assert.Equal(t, "test-key", *obj.Key)
		assert.Equal(t, int64(1024), *obj.Size)
		assert.Equal(t, now, *obj.LastModified)
		assert.NotEmpty(t, *obj.ETag)
	})

	t.Run("creates list objects output", func(t *testing.T) {
		objects := []types.Object{
			CreateTestObject("key1", 100, time.Now()),
			CreateTestObject("key2", 200, time.Now()),
		}

		output := CreateListObjectsV2Output(objects, "prefix/", "/", false)

		assert.Equal(t, "test-bucket", *output.Name)
		assert.Equal(t, "prefix/", *output.Prefix)
		assert.Equal(t, "/", *output.Delimiter)
		assert.Equal(t, int32(2), *output.KeyCount)
		assert.False(t, *output.IsTruncated)
		assert.Nil(t, output.NextContinuationToken)
	})

	t.Run("creates list objects output with truncation", func(t *testing.T) {
		objects := []types.Object{
			CreateTestObject("key1", 100, time.Now()),
		}

		output := CreateListObjectsV2Output(objects, "", "", true)

		assert.True(t, *output.IsTruncated)
		assert.NotNil(t, output.NextContinuationToken)
	})

	t.Run("creates head object output", func(t *testing.T) {
		now := time.Now()
		output := CreateHeadObjectOutput(1024, now, "text/plain")

		assert.Equal(t, int64(1024), *output.ContentLength)
		assert.Equal(t, now, *output.LastModified)
		assert.Equal(t, "text/plain", *output.ContentType)
		assert.NotEmpty(t, *output.ETag)
	})
}

func TestTestDataGenerator(t *testing.T) {
	gen := NewTestDataGenerator(12345)

	t.Run("generates tree into store", func(t *testing.T) {
		store := NewFakeStore("bucket")
		keys := gen.GenerateTree(store, "root/", 6, 2)

		assert.Len(t, keys, 6)
		assert.ElementsMatch(t, keys, store.Keys())
		assert.Contains(t, keys, "root/level0/level1/file-002.bin")
	})

	t.Run("same seed gives same bytes", func(t *testing.T) {
		assert.Equal(t, NewTestDataGenerator(7).Bytes(32), NewTestDataGenerator(7).Bytes(32))
	})
}
