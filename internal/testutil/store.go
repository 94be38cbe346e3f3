package testutil

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/s3desk/s3desk/errors"
	"github.com/s3desk/s3desk/internal/gateway"
	"github.com/s3desk/s3desk/s3types"
)

// FakeObject is one object held by a FakeStore.
type FakeObject struct {
	Data         []byte
	ContentType  string
	StorageClass s3types.StorageClass
	// Restore is the raw x-amz-restore header value
	Restore      string
	LastModified time.Time
}

type fakeUpload struct {
	key   string
	opts  gateway.ObjectOptions
	parts map[int32][]byte
}

// FakeStore is an in-memory implementation of the gateway contract with
// failure hooks. Hooks receive the 1-based attempt number for the given
// part, range or key so tests can fail the first N attempts.
type FakeStore struct {
	mu      sync.Mutex
	bucket  string
	objects map[string]*FakeObject
	uploads map[string]*fakeUpload
	nextID  int
	// BaseURL is the address of an HTTP server running ServeHTTP, used to
	// build presigned URLs.
	BaseURL string

	PageSize int32

	ListErr            error
	CreateMultipartErr error
	CompleteErr        error
	AbortErr           error
	UploadPartHook     func(partNumber int32, attempt int) error
	GetRangeHook       func(key string, start int64, attempt int) error
	GetHook            func(key string, attempt int) error
	CopyHook           func(src, dst string) error
	DeleteHook         func(key string) error
	PutHook            func(key string) error
	// PartDelay holds an UploadPart call outside the store lock, so other
	// parts can finish first.
	PartDelay func(partNumber int32) time.Duration
	// ListOmitsRestore leaves restore state out of listings, as S3 does
	// unless optional attributes are requested.
	ListOmitsRestore bool

	partAttempts  map[int32]int
	rangeAttempts map[string]int
	getAttempts   map[string]int

	// Recorded calls
	Aborts          int
	Completed       [][]gateway.Part
	RangeRequests   []string
	Restores        []RestoreCall
	PresignRequests []string
}

// RestoreCall records one Restore request.
type RestoreCall struct {
	Key  string
	Tier s3types.RetrievalTier
	Days int32
}

// NewFakeStore creates an empty store for bucket.
func NewFakeStore(bucket string) *FakeStore {
	return &FakeStore{
		bucket:        bucket,
		objects:       make(map[string]*FakeObject),
		uploads:       make(map[string]*fakeUpload),
		partAttempts:  make(map[int32]int),
		rangeAttempts: make(map[string]int),
		getAttempts:   make(map[string]int),
	}
}

// Add stores an object and returns it so tests can adjust its fields.
func (f *FakeStore) Add(key string, data []byte) *FakeObject {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj := &FakeObject{
		Data:         data,
		StorageClass: s3types.StorageClassStandard,
		LastModified: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	f.objects[key] = obj
	return obj
}

// Object returns a stored object.
func (f *FakeStore) Object(key string) (*FakeObject, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[key]
	return obj, ok
}

// Keys returns every stored key in order.
func (f *FakeStore) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedKeys()
}

// OpenUploads returns the number of multipart sessions neither completed nor aborted.
func (f *FakeStore) OpenUploads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

// PartAttempts returns how many times a part was sent.
func (f *FakeStore) PartAttempts(partNumber int32) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.partAttempts[partNumber]
}

// Bucket returns the bucket name.
func (f *FakeStore) Bucket() string {
	return f.bucket
}

// ListPage lists one page of keys, grouping by delimiter when given.
func (f *FakeStore) ListPage(_ context.Context, in gateway.ListInput) (*gateway.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, errors.NewError("list", f.ListErr).WithBucket(f.bucket)
	}

	pageSize := in.MaxKeys
	if pageSize <= 0 {
		pageSize = f.PageSize
	}
	if pageSize <= 0 {
		pageSize = 1000
	}

	page := &gateway.Page{}
	seen := make(map[string]bool)
	count := int32(0)
	for _, key := range f.sortedKeys() {
		if !strings.HasPrefix(key, in.Prefix) || key <= in.Token {
			continue
		}
		rest := strings.TrimPrefix(key, in.Prefix)
		prefix := ""
		if in.Delimiter != "" {
			if i := strings.Index(rest, in.Delimiter); i >= 0 {
				prefix = in.Prefix + rest[:i+len(in.Delimiter)]
			}
		}
		// keys under a common prefix already returned are rolled into it,
		// including ones that would start the next page
		if prefix != "" && (seen[prefix] || strings.HasPrefix(in.Token, prefix)) {
			page.NextToken = key
			continue
		}
		if count == pageSize {
			page.Truncated = true
			break
		}
		if prefix != "" {
			seen[prefix] = true
			page.Prefixes = append(page.Prefixes, prefix)
		} else {
			page.Objects = append(page.Objects, f.describe(key))
		}
		page.NextToken = key
		count++
	}
	if !page.Truncated {
		page.NextToken = ""
	}
	return page, nil
}

// Stat returns an object's metadata.
func (f *FakeStore) Stat(_ context.Context, key string) (*gateway.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[key]
	if !ok {
		return nil, errors.NewObjectError("stat", f.bucket, key, errors.ErrObjectNotFound)
	}
	return &gateway.ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.Data)),
		LastModified: obj.LastModified,
		ETag:         CalculateETag(obj.Data),
		ContentType:  obj.ContentType,
		StorageClass: obj.StorageClass,
		Restore:      obj.Restore,
	}, nil
}

// Get opens an object's full content.
func (f *FakeStore) Get(_ context.Context, key string) (io.ReadCloser, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getAttempts[key]++
	if f.GetHook != nil {
		if err := f.GetHook(key, f.getAttempts[key]); err != nil {
			return nil, 0, errors.NewObjectError("get", f.bucket, key, err)
		}
	}
	obj, ok := f.objects[key]
	if !ok {
		return nil, 0, errors.NewObjectError("get", f.bucket, key, errors.ErrObjectNotFound)
	}
	if !gateway.ParseRestore(obj.StorageClass, obj.Restore).Retrievable() {
		return nil, 0, errors.NewObjectError("get", f.bucket, key, errors.ErrNotRetrievable)
	}
	return io.NopCloser(bytes.NewReader(obj.Data)), int64(len(obj.Data)), nil
}

// GetRange opens bytes [start, end) of an object.
func (f *FakeStore) GetRange(_ context.Context, key string, start, end int64) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RangeRequests = append(f.RangeRequests, fmt.Sprintf("bytes=%d-%d", start, end-1))
	id := fmt.Sprintf("%s@%d", key, start)
	f.rangeAttempts[id]++
	if f.GetRangeHook != nil {
		if err := f.GetRangeHook(key, start, f.rangeAttempts[id]); err != nil {
			return nil, errors.NewObjectError("getRange", f.bucket, key, err)
		}
	}
	obj, ok := f.objects[key]
	if !ok {
		return nil, errors.NewObjectError("getRange", f.bucket, key, errors.ErrObjectNotFound)
	}
	if start < 0 || end > int64(len(obj.Data)) || end <= start {
		return nil, errors.NewObjectError("getRange", f.bucket, key, errors.ErrInvalidInput)
	}
	return io.NopCloser(bytes.NewReader(obj.Data[start:end])), nil
}

// Put stores the whole body under in.Key.
func (f *FakeStore) Put(_ context.Context, in gateway.PutInput) (string, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return "", errors.NewObjectError("put", f.bucket, in.Key, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PutHook != nil {
		if err := f.PutHook(in.Key); err != nil {
			return "", errors.NewObjectError("put", f.bucket, in.Key, err)
		}
	}
	f.store(in.Key, data, in.ObjectOptions)
	return CalculateETag(data), nil
}

// PutBytes stores data under key.
func (f *FakeStore) PutBytes(ctx context.Context, key string, data []byte, opts gateway.ObjectOptions) error {
	_, err := f.Put(ctx, gateway.PutInput{Key: key, Body: bytes.NewReader(data), ObjectOptions: opts})
	return err
}

// Delete removes an object. Missing keys are not an error, like S3.
func (f *FakeStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteHook != nil {
		if err := f.DeleteHook(key); err != nil {
			return errors.NewObjectError("delete", f.bucket, key, err)
		}
	}
	delete(f.objects, key)
	return nil
}

// DeleteBatch removes up to gateway.MaxDeleteBatch objects.
func (f *FakeStore) DeleteBatch(_ context.Context, keys []string) (*s3types.DeleteResult, error) {
	if len(keys) > gateway.MaxDeleteBatch {
		return nil, errors.NewError("deleteBatch", errors.ErrInvalidInput)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	result := &s3types.DeleteResult{}
	for _, key := range keys {
		if f.DeleteHook != nil {
			if err := f.DeleteHook(key); err != nil {
				result.Errors = append(result.Errors, s3types.DeleteError{Key: key, Code: "InternalError", Message: err.Error()})
				continue
			}
		}
		delete(f.objects, key)
		result.Deleted = append(result.Deleted, key)
	}
	return result, nil
}

// Copy duplicates src under dst.
func (f *FakeStore) Copy(_ context.Context, src, dst string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CopyHook != nil {
		if err := f.CopyHook(src, dst); err != nil {
			return errors.NewObjectError("copy", f.bucket, dst, err)
		}
	}
	obj, ok := f.objects[src]
	if !ok {
		return errors.NewObjectError("copy", f.bucket, src, errors.ErrObjectNotFound)
	}
	cp := *obj
	cp.Data = append([]byte(nil), obj.Data...)
	f.objects[dst] = &cp
	return nil
}

// CreateMultipart opens a session.
func (f *FakeStore) CreateMultipart(_ context.Context, key string, opts gateway.ObjectOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateMultipartErr != nil {
		return "", errors.NewObjectError("createMultipart", f.bucket, key, f.CreateMultipartErr)
	}
	f.nextID++
	id := fmt.Sprintf("upload-%d", f.nextID)
	f.uploads[id] = &fakeUpload{key: key, opts: opts, parts: make(map[int32][]byte)}
	return id, nil
}

// UploadPart stores one part.
func (f *FakeStore) UploadPart(_ context.Context, key, uploadID string, partNumber int32, data []byte) (string, error) {
	if f.PartDelay != nil {
		time.Sleep(f.PartDelay(partNumber))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.partAttempts[partNumber]++
	if f.UploadPartHook != nil {
		if err := f.UploadPartHook(partNumber, f.partAttempts[partNumber]); err != nil {
			return "", errors.NewObjectError("uploadPart", f.bucket, key, err)
		}
	}
	up, ok := f.uploads[uploadID]
	if !ok || up.key != key {
		return "", errors.NewObjectError("uploadPart", f.bucket, key, errors.ErrInvalidInput).WithMessage("no such upload")
	}
	up.parts[partNumber] = append([]byte(nil), data...)
	return fmt.Sprintf("etag-%d", partNumber), nil
}

// CopyPart stores bytes [start, end) of src as one part.
func (f *FakeStore) CopyPart(_ context.Context, src, dst, uploadID string, partNumber int32, start, end int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CopyHook != nil {
		if err := f.CopyHook(src, dst); err != nil {
			return "", errors.NewObjectError("copyPart", f.bucket, dst, err)
		}
	}
	obj, ok := f.objects[src]
	if !ok {
		return "", errors.NewObjectError("copyPart", f.bucket, src, errors.ErrObjectNotFound)
	}
	up, ok := f.uploads[uploadID]
	if !ok || up.key != dst {
		return "", errors.NewObjectError("copyPart", f.bucket, dst, errors.ErrInvalidInput).WithMessage("no such upload")
	}
	up.parts[partNumber] = append([]byte(nil), obj.Data[start:end]...)
	return fmt.Sprintf("etag-%d", partNumber), nil
}

// CompleteMultipart assembles a session. Parts must be sorted and 1..N.
func (f *FakeStore) CompleteMultipart(_ context.Context, key, uploadID string, parts []gateway.Part) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Completed = append(f.Completed, append([]gateway.Part(nil), parts...))
	if f.CompleteErr != nil {
		return "", errors.NewObjectError("completeMultipart", f.bucket, key, f.CompleteErr)
	}
	up, ok := f.uploads[uploadID]
	if !ok {
		return "", errors.NewObjectError("completeMultipart", f.bucket, key, errors.ErrInvalidInput).WithMessage("no such upload")
	}

	var buf bytes.Buffer
	for i, p := range parts {
		if p.PartNumber != int32(i+1) {
			return "", errors.NewObjectError("completeMultipart", f.bucket, key, errors.ErrIncompleteParts)
		}
		data, ok := up.parts[p.PartNumber]
		if !ok {
			return "", errors.NewObjectError("completeMultipart", f.bucket, key, errors.ErrIncompleteParts)
		}
		buf.Write(data)
	}
	delete(f.uploads, uploadID)
	f.store(key, buf.Bytes(), up.opts)
	return fmt.Sprintf("multipart-%d", len(parts)), nil
}

// AbortMultipart discards a session.
func (f *FakeStore) AbortMultipart(_ context.Context, key, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Aborts++
	if f.AbortErr != nil {
		return errors.NewObjectError("abortMultipart", f.bucket, key, f.AbortErr)
	}
	delete(f.uploads, uploadID)
	return nil
}

// PresignGet returns BaseURL/key.
func (f *FakeStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PresignRequests = append(f.PresignRequests, key)
	return f.BaseURL + "/" + key, nil
}

// ArchiveStatus reports whether key is readable.
func (f *FakeStore) ArchiveStatus(ctx context.Context, key string) (*s3types.ArchiveStatus, error) {
	info, err := f.Stat(ctx, key)
	if err != nil {
		return nil, err
	}
	status := gateway.ParseRestore(info.StorageClass, info.Restore)
	return &status, nil
}

// Restore records the request and marks the object as restoring.
func (f *FakeStore) Restore(_ context.Context, key string, tier s3types.RetrievalTier, days int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[key]
	if !ok {
		return errors.NewObjectError("restore", f.bucket, key, errors.ErrObjectNotFound)
	}
	f.Restores = append(f.Restores, RestoreCall{Key: key, Tier: tier, Days: days})
	if obj.Restore == "" {
		obj.Restore = `ongoing-request="true"`
	}
	return nil
}

// ServeHTTP serves GET /<key> so presigned URLs resolve.
func (f *FakeStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/")
	f.mu.Lock()
	obj, ok := f.objects[key]
	var data []byte
	if ok {
		data = obj.Data
	}
	f.mu.Unlock()

	if !ok {
		http.Error(w, "NoSuchKey", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	_, _ = w.Write(data)
}

func (f *FakeStore) store(key string, data []byte, opts gateway.ObjectOptions) {
	class := opts.StorageClass
	if class == "" {
		class = s3types.StorageClassStandard
	}
	f.objects[key] = &FakeObject{
		Data:         data,
		ContentType:  opts.ContentType,
		StorageClass: class,
		LastModified: time.Now(),
	}
}

func (f *FakeStore) describe(key string) s3types.Object {
	obj := f.objects[key]
	status := gateway.ParseRestore(obj.StorageClass, obj.Restore)
	o := s3types.Object{
		Key:          key,
		Name:         key[strings.LastIndex(strings.TrimSuffix(key, "/"), "/")+1:],
		Type:         s3types.ObjectTypeFile,
		Size:         int64(len(obj.Data)),
		LastModified: obj.LastModified,
		ETag:         fmt.Sprintf(`"%x"`, md5.Sum(obj.Data)),
		StorageClass: obj.StorageClass,
		Restoring:    status.Restoring,
		Restored:     status.Restored,
	}
	if f.ListOmitsRestore {
		o.Restoring, o.Restored = false, false
	}
	if strings.HasSuffix(key, "/") {
		o.Type = s3types.ObjectTypeFolder
		o.Name = strings.TrimSuffix(o.Name, "/")
		o.LastModified = time.Time{}
	}
	return o
}

func (f *FakeStore) sortedKeys() []string {
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
