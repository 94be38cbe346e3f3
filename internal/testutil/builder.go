package testutil

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// MockBuilder provides a fluent interface for building MockS3Client instances.
type MockBuilder struct {
	client *MockS3Client
}

// NewMockBuilder creates a new MockBuilder.
func NewMockBuilder() *MockBuilder {
	return &MockBuilder{
		client: &MockS3Client{},
	}
}

// Build returns the configured MockS3Client.
func (b *MockBuilder) Build() *MockS3Client {
	return b.client
}

// WithListObjectsV2 configures the ListObjectsV2 behavior.
func (b *MockBuilder) WithListObjectsV2(
	fn func(context.Context, *s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error),
) *MockBuilder {
	b.client.ListObjectsV2Func = func(ctx context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
		return fn(ctx, params)
	}
	return b
}

// WithHeadObject configures the HeadObject behavior.
func (b *MockBuilder) WithHeadObject(
	fn func(context.Context, *s3.HeadObjectInput) (*s3.HeadObjectOutput, error),
) *MockBuilder {
	b.client.HeadObjectFunc = func(ctx context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithRestoreObject configures the RestoreObject behavior.
func (b *MockBuilder) WithRestoreObject(
	fn func(context.Context, *s3.RestoreObjectInput) (*s3.RestoreObjectOutput, error),
) *MockBuilder {
	b.client.RestoreObjectFunc = func(ctx context.Context, params *s3.RestoreObjectInput, _ ...func(*s3.Options)) (*s3.RestoreObjectOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithArchivedObject configures HeadObject to report every object in the
// given storage class with the given x-amz-restore header.
func (b *MockBuilder) WithArchivedObject(class types.StorageClass, restore string, size int64) *MockBuilder {
	b.client.HeadObjectFunc = func(ctx context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
		out := &s3.HeadObjectOutput{
			ContentLength: Int64Ptr(size),
			StorageClass:  class,
		}
		if restore != "" {
			out.Restore = StringPtr(restore)
		}
		return out, nil
	}
	return b
}

// WithObjectNotFound configures the mock to return object not found errors.
func (b *MockBuilder) WithObjectNotFound() *MockBuilder {
	notFoundErr := &types.NoSuchKey{
		Message: StringPtr("The specified key does not exist."),
	}

	b.client.GetObjectFunc = func(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
		return nil, notFoundErr
	}
	b.client.HeadObjectFunc = func(ctx context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
		return nil, notFoundErr
	}
	return b
}

