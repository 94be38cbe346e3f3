package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/s3desk/s3desk/errors"
	"github.com/s3desk/s3desk/internal/s3api"
	"github.com/s3desk/s3desk/s3types"
)

// MaxDeleteBatch is the largest key count accepted by one DeleteObjects call.
const MaxDeleteBatch = 1000

// ObjectOptions are applied to newly written objects.
type ObjectOptions struct {
	ContentType  string
	StorageClass s3types.StorageClass
	Metadata     map[string]string
}

// ListInput selects one page of a listing.
type ListInput struct {
	Prefix    string
	Delimiter string
	Token     string
	MaxKeys   int32
}

// Page is one page of a listing.
type Page struct {
	Objects   []s3types.Object
	Prefixes  []string
	NextToken string
	Truncated bool
}

// ObjectInfo is the metadata returned by Stat.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
	ContentType  string
	StorageClass s3types.StorageClass
	// Restore is the raw x-amz-restore header
	Restore  string
	Metadata map[string]string
}

// PutInput describes a managed single-call upload.
type PutInput struct {
	Key  string
	Body io.Reader
	ObjectOptions
	// PartSize and Concurrency tune the managed uploader's internal parts.
	PartSize    int64
	Concurrency int
}

// Part is a completed multipart part.
type Part struct {
	PartNumber int32
	ETag       string
}

// Gateway implements the remote store contract over the AWS SDK.
type Gateway struct {
	api     s3api.S3API
	presign s3api.PresignAPI
	bucket  string
}

// New creates a gateway for one bucket. presign may be nil when PresignGet
// is not needed.
func New(api s3api.S3API, presign s3api.PresignAPI, bucket string) *Gateway {
	return &Gateway{
		api:     api,
		presign: presign,
		bucket:  bucket,
	}
}

// Bucket returns the bucket the gateway talks to.
func (g *Gateway) Bucket() string {
	return g.bucket
}

// singleAttempt disables the SDK retryer for calls whose retries are owned
// by an orchestrator.
func singleAttempt(o *s3.Options) {
	o.RetryMaxAttempts = 1
}

// ListPage lists one page of objects under a prefix. With a delimiter,
// sub-folders are returned in Prefixes.
func (g *Gateway) ListPage(ctx context.Context, in ListInput) (*Page, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:                   aws.String(g.bucket),
		OptionalObjectAttributes: []awstypes.OptionalObjectAttributes{awstypes.OptionalObjectAttributesRestoreStatus},
	}
	if in.Prefix != "" {
		input.Prefix = aws.String(in.Prefix)
	}
	if in.Delimiter != "" {
		input.Delimiter = aws.String(in.Delimiter)
	}
	if in.Token != "" {
		input.ContinuationToken = aws.String(in.Token)
	}
	if in.MaxKeys > 0 {
		input.MaxKeys = aws.Int32(in.MaxKeys)
	}

	output, err := g.api.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, errors.NewError("list", classify(err)).WithBucket(g.bucket).WithKey(in.Prefix)
	}

	page := &Page{
		Objects:   make([]s3types.Object, 0, len(output.Contents)),
		NextToken: aws.ToString(output.NextContinuationToken),
		Truncated: aws.ToBool(output.IsTruncated),
	}
	for _, obj := range output.Contents {
		page.Objects = append(page.Objects, convertObject(obj))
	}
	for _, cp := range output.CommonPrefixes {
		if p := aws.ToString(cp.Prefix); p != "" {
			page.Prefixes = append(page.Prefixes, p)
		}
	}
	return page, nil
}

// Stat returns an object's metadata.
func (g *Gateway) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	output, err := g.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.NewObjectError("stat", g.bucket, key, classify(err))
	}

	storageClass := s3types.StorageClass(output.StorageClass)
	if storageClass == "" {
		storageClass = s3types.StorageClassStandard
	}

	return &ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(output.ContentLength),
		LastModified: aws.ToTime(output.LastModified),
		ETag:         aws.ToString(output.ETag),
		ContentType:  aws.ToString(output.ContentType),
		StorageClass: storageClass,
		Restore:      aws.ToString(output.Restore),
		Metadata:     output.Metadata,
	}, nil
}

// Get opens the full content of an object. The caller closes the body.
func (g *Gateway) Get(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	output, err := g.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	}, singleAttempt)
	if err != nil {
		return nil, 0, errors.NewObjectError("get", g.bucket, key, classify(err))
	}
	return output.Body, aws.ToInt64(output.ContentLength), nil
}

// GetRange opens bytes [start, end) of an object. The caller closes the body.
func (g *Gateway) GetRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error) {
	if start < 0 || end <= start {
		return nil, errors.NewObjectError("getRange", g.bucket, key, errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("invalid range [%d, %d)", start, end))
	}
	output, err := g.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", start, end-1)),
	}, singleAttempt)
	if err != nil {
		return nil, errors.NewObjectError("getRange", g.bucket, key, classify(err))
	}
	return output.Body, nil
}

// Put uploads an object through the SDK's managed uploader, which splits
// the body into PartSize parts sent Concurrency at a time when it is large
// enough, and uses a single PutObject otherwise.
func (g *Gateway) Put(ctx context.Context, in PutInput) (string, error) {
	uploader := manager.NewUploader(g.api, func(u *manager.Uploader) {
		if in.PartSize >= manager.MinUploadPartSize {
			u.PartSize = in.PartSize
		}
		if in.Concurrency > 0 {
			u.Concurrency = in.Concurrency
		}
	})

	input := &s3.PutObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(in.Key),
		Body:   in.Body,
	}
	applyObjectOptions(in.ObjectOptions, &input.ContentType, &input.StorageClass, &input.Metadata)

	output, err := uploader.Upload(ctx, input)
	if err != nil {
		return "", errors.NewObjectError("put", g.bucket, in.Key, classify(err))
	}
	return aws.ToString(output.ETag), nil
}

// PutBytes writes a small object in one PutObject call.
func (g *Gateway) PutBytes(ctx context.Context, key string, data []byte, opts ObjectOptions) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(g.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	applyObjectOptions(opts, &input.ContentType, &input.StorageClass, &input.Metadata)

	if _, err := g.api.PutObject(ctx, input); err != nil {
		return errors.NewObjectError("put", g.bucket, key, classify(err))
	}
	return nil
}

// Delete removes one object.
func (g *Gateway) Delete(ctx context.Context, key string) error {
	_, err := g.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.NewObjectError("delete", g.bucket, key, classify(err))
	}
	return nil
}

// DeleteBatch removes up to MaxDeleteBatch objects in one call. Per-key
// failures are reported in the result, not as an error.
func (g *Gateway) DeleteBatch(ctx context.Context, keys []string) (*s3types.DeleteResult, error) {
	if len(keys) == 0 {
		return &s3types.DeleteResult{}, nil
	}
	if len(keys) > MaxDeleteBatch {
		return nil, errors.NewError("deleteBatch", errors.ErrInvalidInput).
			WithBucket(g.bucket).
			WithMessage(fmt.Sprintf("%d keys exceeds the batch limit of %d", len(keys), MaxDeleteBatch))
	}

	ids := make([]awstypes.ObjectIdentifier, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, awstypes.ObjectIdentifier{Key: aws.String(key)})
	}

	output, err := g.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(g.bucket),
		Delete: &awstypes.Delete{
			Objects: ids,
			Quiet:   aws.Bool(false),
		},
	})
	if err != nil {
		return nil, errors.NewError("deleteBatch", classify(err)).WithBucket(g.bucket)
	}

	result := &s3types.DeleteResult{
		Deleted: make([]string, 0, len(output.Deleted)),
	}
	for _, d := range output.Deleted {
		result.Deleted = append(result.Deleted, aws.ToString(d.Key))
	}
	for _, e := range output.Errors {
		result.Errors = append(result.Errors, s3types.DeleteError{
			Key:     aws.ToString(e.Key),
			Code:    aws.ToString(e.Code),
			Message: aws.ToString(e.Message),
		})
	}
	return result, nil
}

// Copy copies an object within the bucket in one server-side call. Objects
// larger than 5 GiB must be copied part by part with CopyPart.
func (g *Gateway) Copy(ctx context.Context, src, dst string) error {
	_, err := g.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(g.bucket),
		Key:        aws.String(dst),
		CopySource: aws.String(g.copySource(src)),
	})
	if err != nil {
		return errors.NewObjectError("copy", g.bucket, dst, classify(err)).
			WithMessage("failed to copy from " + src)
	}
	return nil
}

// CreateMultipart opens a multipart session and returns its upload id.
func (g *Gateway) CreateMultipart(ctx context.Context, key string, opts ObjectOptions) (string, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	}
	applyObjectOptions(opts, &input.ContentType, &input.StorageClass, &input.Metadata)

	output, err := g.api.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", errors.NewObjectError("createMultipart", g.bucket, key, classify(err))
	}
	uploadID := aws.ToString(output.UploadId)
	if uploadID == "" {
		return "", errors.NewObjectError("createMultipart", g.bucket, key, errors.ErrInvalidInput).
			WithMessage("store returned an empty upload id")
	}
	return uploadID, nil
}

// UploadPart sends one part of a multipart session and returns its ETag.
func (g *Gateway) UploadPart(ctx context.Context, key, uploadID string, partNumber int32, data []byte) (string, error) {
	output, err := g.api.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(g.bucket),
		Key:           aws.String(key),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(partNumber),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}, singleAttempt)
	if err != nil {
		return "", errors.NewObjectError("uploadPart", g.bucket, key, classify(err)).
			WithMessage(fmt.Sprintf("part %d", partNumber))
	}
	return aws.ToString(output.ETag), nil
}

// CopyPart copies bytes [start, end) of src into one part of a multipart
// session on dst.
func (g *Gateway) CopyPart(
	ctx context.Context,
	src, dst, uploadID string,
	partNumber int32,
	start, end int64,
) (string, error) {
	output, err := g.api.UploadPartCopy(ctx, &s3.UploadPartCopyInput{
		Bucket:          aws.String(g.bucket),
		Key:             aws.String(dst),
		CopySource:      aws.String(g.copySource(src)),
		CopySourceRange: aws.String(fmt.Sprintf("bytes=%d-%d", start, end-1)),
		UploadId:        aws.String(uploadID),
		PartNumber:      aws.Int32(partNumber),
	}, singleAttempt)
	if err != nil {
		return "", errors.NewObjectError("copyPart", g.bucket, dst, classify(err)).
			WithMessage(fmt.Sprintf("part %d", partNumber))
	}
	if output.CopyPartResult == nil {
		return "", nil
	}
	return aws.ToString(output.CopyPartResult.ETag), nil
}

// CompleteMultipart assembles the parts of a session. Parts must already be
// sorted by part number.
func (g *Gateway) CompleteMultipart(ctx context.Context, key, uploadID string, parts []Part) (string, error) {
	completed := make([]awstypes.CompletedPart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, awstypes.CompletedPart{
			PartNumber: aws.Int32(p.PartNumber),
			ETag:       aws.String(p.ETag),
		})
	}

	output, err := g.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(g.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &awstypes.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		return "", errors.NewObjectError("completeMultipart", g.bucket, key, classify(err))
	}
	return aws.ToString(output.ETag), nil
}

// AbortMultipart discards a session and any parts already stored.
func (g *Gateway) AbortMultipart(ctx context.Context, key, uploadID string) error {
	_, err := g.api.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(g.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return errors.NewObjectError("abortMultipart", g.bucket, key, classify(err))
	}
	return nil
}

// PresignGet returns a URL that reads the object without credentials until
// ttl elapses.
func (g *Gateway) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if g.presign == nil {
		return "", errors.NewObjectError("presign", g.bucket, key, errors.ErrInvalidInput).
			WithMessage("no presign client configured")
	}
	req, err := g.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", errors.NewObjectError("presign", g.bucket, key, classify(err))
	}
	return req.URL, nil
}

// ArchiveStatus reports whether an object's bytes can be read now.
func (g *Gateway) ArchiveStatus(ctx context.Context, key string) (*s3types.ArchiveStatus, error) {
	info, err := g.Stat(ctx, key)
	if err != nil {
		return nil, err
	}
	status := ParseRestore(info.StorageClass, info.Restore)
	return &status, nil
}

// Restore asks the store to make an archived object readable for days at
// the given retrieval tier. A restore already in progress is not an error.
func (g *Gateway) Restore(ctx context.Context, key string, tier s3types.RetrievalTier, days int32) error {
	if !tier.Valid() {
		return errors.NewObjectError("restore", g.bucket, key, errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("unknown retrieval tier %q", tier))
	}
	if days <= 0 {
		return errors.NewObjectError("restore", g.bucket, key, errors.ErrInvalidInput).
			WithMessage("restore days must be positive")
	}

	_, err := g.api.RestoreObject(ctx, &s3.RestoreObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
		RestoreRequest: &awstypes.RestoreRequest{
			Days: aws.Int32(days),
			GlacierJobParameters: &awstypes.GlacierJobParameters{
				Tier: awstypes.Tier(tier),
			},
		},
	})
	if err != nil && !isRestoreInProgress(err) {
		return errors.NewObjectError("restore", g.bucket, key, classify(err))
	}
	return nil
}

func (g *Gateway) copySource(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return g.bucket + "/" + strings.Join(segments, "/")
}

func applyObjectOptions(
	opts ObjectOptions,
	contentType **string,
	storageClass *awstypes.StorageClass,
	metadata *map[string]string,
) {
	if opts.ContentType != "" {
		*contentType = aws.String(opts.ContentType)
	}
	if opts.StorageClass != "" {
		*storageClass = awstypes.StorageClass(opts.StorageClass)
	}
	if len(opts.Metadata) > 0 {
		*metadata = opts.Metadata
	}
}

func convertObject(obj awstypes.Object) s3types.Object {
	key := aws.ToString(obj.Key)
	o := s3types.Object{
		Key:          key,
		Name:         path.Base(strings.TrimSuffix(key, "/")),
		Type:         s3types.ObjectTypeFile,
		Size:         aws.ToInt64(obj.Size),
		LastModified: aws.ToTime(obj.LastModified),
		ETag:         aws.ToString(obj.ETag),
		StorageClass: s3types.StorageClass(obj.StorageClass),
	}
	if o.StorageClass == "" {
		o.StorageClass = s3types.StorageClassStandard
	}
	if strings.HasSuffix(key, "/") {
		o.Type = s3types.ObjectTypeFolder
		o.Size = 0
		o.LastModified = time.Time{}
	}
	if rs := obj.RestoreStatus; rs != nil {
		o.Restoring = aws.ToBool(rs.IsRestoreInProgress)
		o.Restored = !o.Restoring && rs.RestoreExpiryDate != nil
	}
	return o
}
