package testutil

import (
	"crypto/md5"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// StringPtr returns a pointer to the given string.
// This is useful for AWS SDK inputs that require string pointers.
func StringPtr(s string) *string {
	return aws.String(s)
}

// Int64Ptr returns a pointer to the given int64.
// This is useful for AWS SDK inputs that require int64 pointers.
func Int64Ptr(i int64) *int64 {
	return aws.Int64(i)
}

// Int32Ptr returns a pointer to the given int32.
// This is useful for AWS SDK inputs that require int32 pointers.
func Int32Ptr(i int32) *int32 {
	return aws.Int32(i)
}

// BoolPtr returns a pointer to the given bool.
// This is useful for AWS SDK inputs that require bool pointers.
func BoolPtr(b bool) *bool {
	return aws.Bool(b)
}

// TimePtr returns a pointer to the given time.
// This is useful for AWS SDK outputs that return time pointers.
func TimePtr(t time.Time) *time.Time {
	return &t
}

// CalculateETag calculates the ETag for the given data.
// For simple uploads, this is the MD5 hash. For multipart uploads, the format is different.
func CalculateETag(data []byte) string {
	h := md5.Sum(data)
	return fmt.Sprintf(`"%x"`, h)
}

// CreateTestObject creates a test S3 object structure.
// This is useful for mocking ListObjectsV2 responses.
func CreateTestObject(key string, size int64, lastModified time.Time) types.Object {
	return types.Object{
		Key:          StringPtr(key),
		Size:         Int64Ptr(size),
		LastModified: TimePtr(lastModified),
		ETag:         StringPtr(fmt.Sprintf(`"%x"`, md5.Sum([]byte(key)))),
		StorageClass: types.ObjectStorageClassStandard,
	}
}

// CreateArchivedObject creates a listed object in an archival storage class.
// restoring and restored mirror the RestoreStatus returned with
// OptionalObjectAttributes=RestoreStatus.
func CreateArchivedObject(
	key string, size int64, class types.ObjectStorageClass, restoring, restored bool,
) types.Object {
	obj := CreateTestObject(key, size, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	obj.StorageClass = class
	if restoring || restored {
		obj.RestoreStatus = &types.RestoreStatus{IsRestoreInProgress: BoolPtr(restoring)}
		if restored {
			obj.RestoreStatus.RestoreExpiryDate = TimePtr(time.Now().Add(72 * time.Hour))
		}
	}
	return obj
}

// CreateListObjectsV2Output creates a test ListObjectsV2Output structure.
// This is useful for mocking S3 list operations.
func CreateListObjectsV2Output(
	objects []types.Object, prefix, delimiter string, truncated bool,
) *s3.ListObjectsV2Output {
	output := &s3.ListObjectsV2Output{
		Contents:    objects,
		KeyCount:    Int32Ptr(int32(len(objects))),
		MaxKeys:     Int32Ptr(1000),
		Name:        StringPtr("test-bucket"),
		Prefix:      StringPtr(prefix),
		Delimiter:   StringPtr(delimiter),
		IsTruncated: BoolPtr(truncated),
	}
	if truncated && len(objects) > 0 {
		output.NextContinuationToken = StringPtr("next-token")
	}
	return output
}

// CreateHeadObjectOutput creates a test HeadObjectOutput structure.
// This is useful for mocking HeadObject operations.
func CreateHeadObjectOutput(size int64, lastModified time.Time, contentType string) *s3.HeadObjectOutput {
	return &s3.HeadObjectOutput{
		ContentLength: Int64Ptr(size),
		LastModified:  TimePtr(lastModified),
		ContentType:   StringPtr(contentType),
		ETag:          StringPtr(fmt.Sprintf(`"%x"`, md5.Sum([]byte("test")))),
		Metadata:      map[string]string{},
	}
}

