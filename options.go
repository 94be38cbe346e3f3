package s3desk

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-git/go-billy/v5"

	"github.com/s3desk/s3desk/s3types"
)

// WithBucket sets the bucket every operation works on. Required.
func WithBucket(bucket string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Bucket = bucket
	}
}

// WithRegion sets the AWS region.
// If not specified, uses the region from the credential chain, then us-east-1.
func WithRegion(region string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Region = region
	}
}

// WithEndpoint sets a custom S3 endpoint URL.
// This is useful for S3-compatible services or local testing.
func WithEndpoint(endpoint string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Endpoint = endpoint
	}
}

// WithForcePathStyle forces path-style URLs instead of virtual-hosted style.
// Most S3-compatible services need this.
func WithForcePathStyle(forcePathStyle bool) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.ForcePathStyle = forcePathStyle
	}
}

// WithCredentials uses static credentials instead of the default chain.
func WithCredentials(accessKeyID, secretAccessKey, sessionToken string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.AccessKeyID = accessKeyID
		c.SecretAccessKey = secretAccessKey
		c.SessionToken = sessionToken
	}
}

// WithTimeout sets the timeout of every HTTP request made by the SDK.
// Default is no timeout. Ignored when WithCustomHTTPClient is used.
func WithTimeout(timeout time.Duration) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Timeout = timeout
	}
}

// WithAWSConfig allows providing a custom AWS configuration.
// This overrides the default configuration loading behavior.
func WithAWSConfig(config *aws.Config) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.CustomAWSConfig = config
	}
}

// WithCustomHTTPClient sets the HTTP client used for SDK calls and for
// presigned downloads.
func WithCustomHTTPClient(client *http.Client) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.CustomHTTPClient = client
	}
}

// WithLogger sets the logger. A nil logger discards everything.
func WithLogger(logger *slog.Logger) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Logger = logger
	}
}

// WithFilesystem sets the filesystem local files are read from, and
// downloads are written to when no Saver is set.
// If not specified, defaults to the OS filesystem.
func WithFilesystem(filesystem billy.Filesystem) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Filesystem = filesystem
	}
}

// WithSaver sets where downloaded files and folder archives are written.
func WithSaver(saver s3types.Saver) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Saver = saver
	}
}

// WithDisableActivity stops transfers from being appended to the bucket's
// activity log.
func WithDisableActivity(disable bool) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.DisableActivity = disable
	}
}

// WithTransferConfig replaces every transfer tunable at once.
func WithTransferConfig(t s3types.TransferConfig) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Transfer = t
	}
}

// WithMaxRetries sets how many times a failed part or range is retried.
// Set to 0 to disable retries.
func WithMaxRetries(maxRetries int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if maxRetries >= 0 {
			c.Transfer.MaxRetries = maxRetries
		}
	}
}

// WithConcurrency sets how many parts of one upload are in flight at once.
func WithConcurrency(concurrency int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if concurrency > 0 {
			c.Transfer.UploadQueueSize = concurrency
		}
	}
}

// WithContentType sets the content type for upload operations.
// If not specified, it is detected from the content and the file name.
func WithContentType(contentType string) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		c.ContentType = contentType
	}
}

// WithMetadata sets metadata for upload operations.
func WithMetadata(metadata map[string]string) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		if c.Metadata == nil {
			c.Metadata = make(map[string]string)
		}
		for k, v := range metadata {
			c.Metadata[k] = v
		}
	}
}

// WithStorageClass sets the storage class for upload operations.
func WithStorageClass(storageClass s3types.StorageClass) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		c.StorageClass = storageClass
	}
}

// WithProgress receives upload progress alongside the registry.
func WithProgress(sink s3types.ProgressSink) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		c.Progress = sink
	}
}

// WithDisplayName sets the name the transfer is shown under.
func WithDisplayName(name string) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		c.Name = name
	}
}

// WithKnownSize skips the metadata lookup when the caller already knows
// the object size, for example from a listing.
func WithKnownSize(size int64) s3types.DownloadOption {
	return func(c *s3types.DownloadOptionConfig) {
		c.Size = size
	}
}

// WithDownloadProgress receives download progress alongside the registry.
func WithDownloadProgress(sink s3types.ProgressSink) s3types.DownloadOption {
	return func(c *s3types.DownloadOptionConfig) {
		c.Progress = sink
	}
}

// WithFileName sets the name the download is saved under.
func WithFileName(name string) s3types.DownloadOption {
	return func(c *s3types.DownloadOptionConfig) {
		c.FileName = name
	}
}

// WithInclude keeps only files matching one of the glob patterns.
func WithInclude(patterns ...string) s3types.DirectoryOption {
	return func(c *s3types.DirectoryOptionConfig) {
		c.IncludePatterns = append(c.IncludePatterns, patterns...)
	}
}

// WithExclude drops files matching any of the glob patterns.
func WithExclude(patterns ...string) s3types.DirectoryOption {
	return func(c *s3types.DirectoryOptionConfig) {
		c.ExcludePatterns = append(c.ExcludePatterns, patterns...)
	}
}

// WithFileOptions applies upload options to every file of a directory.
func WithFileOptions(opts ...s3types.UploadOption) s3types.DirectoryOption {
	return func(c *s3types.DirectoryOptionConfig) {
		c.Upload = append(c.Upload, opts...)
	}
}

// WithTier sets the retrieval tier of a restore. Default is Standard.
func WithTier(tier s3types.RetrievalTier) s3types.RestoreOption {
	return func(c *s3types.RestoreOptionConfig) {
		c.Tier = tier
	}
}

// WithDays sets how long the restored copy stays readable.
func WithDays(days int32) s3types.RestoreOption {
	return func(c *s3types.RestoreOptionConfig) {
		c.Days = days
	}
}
