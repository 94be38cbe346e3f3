// Package s3types provides shared type definitions for the s3desk module.
package s3types

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-git/go-billy/v5"
)

// StorageClass represents the S3 storage class for objects.
type StorageClass string

// Predefined S3 storage classes
const (
	// StorageClassStandard is the default S3 storage class
	StorageClassStandard StorageClass = "STANDARD"

	// StorageClassStandardIA provides infrequent access storage
	StorageClassStandardIA StorageClass = "STANDARD_IA"

	// StorageClassOneZoneIA provides one zone infrequent access storage
	StorageClassOneZoneIA StorageClass = "ONEZONE_IA"

	// StorageClassIntelligentTiering provides intelligent tiering storage
	StorageClassIntelligentTiering StorageClass = "INTELLIGENT_TIERING"

	// StorageClassGlacier provides Glacier archival storage
	StorageClassGlacier StorageClass = "GLACIER"

	// StorageClassDeepArchive provides Deep Archive storage
	StorageClassDeepArchive StorageClass = "DEEP_ARCHIVE"

	// StorageClassGlacierIR provides Glacier Instant Retrieval storage.
	// Objects in this class are readable without a restore.
	StorageClassGlacierIR StorageClass = "GLACIER_IR"
)

// IsArchival reports whether objects in the storage class need a restore
// before their bytes can be read.
func (s StorageClass) IsArchival() bool {
	return s == StorageClassGlacier || s == StorageClassDeepArchive
}

// RetrievalTier selects the speed and cost of an archival restore.
type RetrievalTier string

// Retrieval tiers accepted by RestoreObject.
const (
	TierExpedited RetrievalTier = "Expedited"
	TierStandard  RetrievalTier = "Standard"
	TierBulk      RetrievalTier = "Bulk"
)

// Valid reports whether the tier is one of the known retrieval tiers.
func (t RetrievalTier) Valid() bool {
	switch t {
	case TierExpedited, TierStandard, TierBulk:
		return true
	}
	return false
}

// ObjectType distinguishes files from folder entries in a listing.
type ObjectType string

const (
	ObjectTypeFile   ObjectType = "file"
	ObjectTypeFolder ObjectType = "folder"
)

// Object describes a single entry of a bucket listing.
// Folder entries carry no size and a zero LastModified.
type Object struct {
	// Key is the full object key (path)
	Key string

	// Name is the last path segment of the key
	Name string

	// Type is either file or folder
	Type ObjectType

	// Size is the object size in bytes (zero for folders)
	Size int64

	// LastModified is when the object was last modified
	LastModified time.Time

	// ETag is the S3 entity tag for the object
	ETag string

	// StorageClass is the S3 storage class
	StorageClass StorageClass

	// Restoring is set for archival objects with a restore in progress
	Restoring bool

	// Restored is set for archival objects whose restored copy is readable
	Restored bool
}

// IsFolder reports whether the entry is a folder.
func (o Object) IsFolder() bool {
	return o.Type == ObjectTypeFolder
}

// ArchiveStatus describes whether an object can currently be read.
type ArchiveStatus struct {
	// StorageClass is the class reported by the store
	StorageClass StorageClass

	// Archived is set when the class needs a restore before reads
	Archived bool

	// Restoring is set while a restore request is in progress
	Restoring bool

	// Restored is set once a restored copy is available
	Restored bool

	// RestoreExpiry is when the restored copy expires, if known
	RestoreExpiry time.Time
}

// Retrievable reports whether the object's bytes can be read right now.
func (s ArchiveStatus) Retrievable() bool {
	return !s.Archived || s.Restored
}

// ProgressSink receives cumulative progress for a single transfer.
// Implementations must be safe for concurrent use.
type ProgressSink interface {
	// OnProgress is called with the bytes done so far and the total
	OnProgress(done, total int64)
}

// ProgressFunc adapts a plain function to the ProgressSink interface.
type ProgressFunc func(done, total int64)

// OnProgress calls f(done, total).
func (f ProgressFunc) OnProgress(done, total int64) {
	f(done, total)
}

// NopSink discards progress.
var NopSink ProgressSink = ProgressFunc(func(int64, int64) {})

// Saver persists the bytes of a finished download under a file name.
type Saver interface {
	Save(name string, data []byte) error
}

// ActivityAction is the kind of transfer recorded in the activity log.
type ActivityAction string

const (
	ActionUpload   ActivityAction = "Upload"
	ActionDownload ActivityAction = "Download"
)

// ActivityEntry is one record of the bucket's activity log.
type ActivityEntry struct {
	Date      time.Time      `json:"date"`
	Action    ActivityAction `json:"action"`
	ItemName  string         `json:"itemName"`
	Size      int64          `json:"size"`
	FileCount int            `json:"fileCount"`
}

// UploadResult contains the result of an upload operation.
type UploadResult struct {
	// TransferID is the registry id the upload was tracked under
	TransferID string

	// Key is the object key that was uploaded
	Key string

	// Size is the size of the uploaded object in bytes
	Size int64

	// ETag is the S3 entity tag for the uploaded object
	ETag string

	// Multipart is set when the manual multipart path was used
	Multipart bool

	// Parts is the number of parts submitted on the multipart path
	Parts int

	// Duration is how long the upload took
	Duration time.Duration
}

// DirectoryUploadResult summarises an UploadDirectory call.
type DirectoryUploadResult struct {
	Uploaded []UploadResult
	Failed   map[string]error
	Bytes    int64
	Duration time.Duration
}

// DownloadResult contains the result of a download operation.
type DownloadResult struct {
	// TransferID is the registry id the download was tracked under
	TransferID string

	// Key is the object key that was downloaded
	Key string

	// FileName is the name the bytes were saved under
	FileName string

	// Size is the size of the downloaded object in bytes
	Size int64

	// Chunked is set when ranged reads were used
	Chunked bool

	// Duration is how long the download took
	Duration time.Duration
}

// ArchiveResult contains the result of a folder archive download.
type ArchiveResult struct {
	TransferID string

	// Prefix is the folder that was archived
	Prefix string

	// FileName is the archive name the bytes were saved under
	FileName string

	// Files is the number of entries written to the archive
	Files int

	// Skipped lists keys left out because they were not retrievable
	Skipped []string

	// Failed lists keys left out because their fetch failed
	Failed []string

	// TotalSize is the precomputed size of every object under the prefix
	TotalSize int64

	// ArchiveSize is the size of the produced zip
	ArchiveSize int64

	Duration time.Duration
}

// DeleteResult contains the result of a delete operation.
type DeleteResult struct {
	// Deleted contains successfully deleted keys
	Deleted []string

	// Errors contains any errors that occurred during deletion
	Errors []DeleteError

	// Duration is how long the operation took
	Duration time.Duration
}

// DeleteError represents an error that occurred during a delete operation.
type DeleteError struct {
	Key     string
	Code    string
	Message string
}

// RenameResult contains the result of a rename.
type RenameResult struct {
	From    string
	To      string
	Objects int
}

// ArchiveStats counts objects under a prefix by storage state.
type ArchiveStats struct {
	Total     int
	Standard  int
	Archived  int
	Restoring int
	Restored  int
	Bytes     int64
}

// BucketMetrics is the size and object count of a whole bucket.
type BucketMetrics struct {
	Objects int
	Bytes   int64
}

// TransferConfig holds the tunables of the transfer orchestrators.
type TransferConfig struct {
	// UploadThreshold selects manual multipart above this size
	UploadThreshold int64
	// UploadChunkSize is the part size of manual multipart uploads
	UploadChunkSize int64
	// UploadQueueSize bounds concurrent part uploads
	UploadQueueSize int
	// MinPartSize and MaxPartSize bound the managed upload part size
	MinPartSize int64
	MaxPartSize int64

	// DownloadThreshold selects ranged reads above this size
	DownloadThreshold int64
	// DownloadChunkSize is the length of each ranged read
	DownloadChunkSize int64
	// PresignTTL is the lifetime of direct-access URLs
	PresignTTL time.Duration

	// ArchiveBatchSize bounds concurrent fetches while building an archive
	ArchiveBatchSize int
	// CompressionLevel is the deflate level of folder archives
	CompressionLevel int

	// MaxRetries and BaseDelay drive per-part and per-range retries
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// RestoreDays is how long a restored copy stays readable
	RestoreDays int32

	// ActivityLogKey is the object that holds the activity log
	ActivityLogKey string
}

// Size units used by the defaults.
const (
	MiB int64 = 1024 * 1024
	GiB int64 = 1024 * MiB
)

// DefaultTransferConfig returns the reference tunables.
func DefaultTransferConfig() TransferConfig {
	return TransferConfig{
		UploadThreshold:   GiB,
		UploadChunkSize:   100 * MiB,
		UploadQueueSize:   4,
		MinPartSize:       5 * MiB,
		MaxPartSize:       10 * MiB,
		DownloadThreshold: 50 * MiB,
		DownloadChunkSize: 50 * MiB,
		PresignTTL:        time.Hour,
		ArchiveBatchSize:  10,
		CompressionLevel:  5,
		MaxRetries:        3,
		BaseDelay:         500 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		RestoreDays:       7,
		ActivityLogKey:    "history-log.json",
	}
}

// Configuration types for functional options

// ClientConfig holds configuration for the client.
type ClientConfig struct {
	Bucket           string
	Region           string
	Endpoint         string
	ForcePathStyle   bool
	AccessKeyID      string
	SecretAccessKey  string
	SessionToken     string
	Timeout          time.Duration
	CustomAWSConfig  *aws.Config
	CustomHTTPClient *http.Client
	Logger           *slog.Logger
	Filesystem       billy.Filesystem
	Saver            Saver
	DisableActivity  bool
	Transfer         TransferConfig
}

// HTTPClient returns the client SDK calls and presigned downloads go
// through, or nil for the SDK default.
func (c *ClientConfig) HTTPClient() *http.Client {
	if c.CustomHTTPClient != nil {
		return c.CustomHTTPClient
	}
	if c.Timeout > 0 {
		return &http.Client{Timeout: c.Timeout}
	}
	return nil
}

// UploadOptionConfig holds configuration for upload operations via functional options.
type UploadOptionConfig struct {
	ContentType  string
	Metadata     map[string]string
	StorageClass StorageClass
	Progress     ProgressSink
	Name         string
}

// DownloadOptionConfig holds configuration for download operations via functional options.
type DownloadOptionConfig struct {
	// Size is the known object size, or negative when it must be looked up
	Size     int64
	Progress ProgressSink
	FileName string
}

// DirectoryOptionConfig holds configuration for directory uploads.
type DirectoryOptionConfig struct {
	IncludePatterns []string
	ExcludePatterns []string
	Upload          []UploadOption
}

// RestoreOptionConfig holds configuration for restore requests.
type RestoreOptionConfig struct {
	Tier RetrievalTier
	Days int32
}

// Option is a functional option for configuring the client.
type (
	Option func(*ClientConfig)
	// UploadOption is a functional option for configuring upload operations.
	UploadOption func(*UploadOptionConfig)
	// DownloadOption is a functional option for configuring download operations.
	DownloadOption func(*DownloadOptionConfig)
	// DirectoryOption is a functional option for configuring directory uploads.
	DirectoryOption func(*DirectoryOptionConfig)
	// RestoreOption is a functional option for configuring restore requests.
	RestoreOption func(*RestoreOptionConfig)
)
