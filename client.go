package s3desk

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/s3desk/s3desk/errors"
	"github.com/s3desk/s3desk/internal/activity"
	"github.com/s3desk/s3desk/internal/gateway"
	"github.com/s3desk/s3desk/internal/operations/archive"
	copyop "github.com/s3desk/s3desk/internal/operations/copy"
	deleteop "github.com/s3desk/s3desk/internal/operations/delete"
	"github.com/s3desk/s3desk/internal/operations/download"
	"github.com/s3desk/s3desk/internal/operations/list"
	"github.com/s3desk/s3desk/internal/operations/upload"
	"github.com/s3desk/s3desk/internal/s3api"
	"github.com/s3desk/s3desk/internal/save"
	"github.com/s3desk/s3desk/internal/validation"
	"github.com/s3desk/s3desk/registry"
	"github.com/s3desk/s3desk/s3types"
)

// Client works on a single bucket. Every transfer it starts is tracked in
// its registry. It is safe for concurrent use.
type Client struct {
	gateway  *gateway.Gateway
	registry *registry.Registry
	logger   *slog.Logger
	transfer s3types.TransferConfig

	// fs is where local files are read from; localOS marks the default
	// OS filesystem, on which relative paths are resolved first
	fs      billy.Filesystem
	localOS bool

	uploader   *upload.Uploader
	downloader *download.Downloader
	archiver   *archive.Builder
	copier     *copyop.Copier
	deleter    *deleteop.BatchDeleter
	lister     *list.Lister

	// activity is nil when the activity log is disabled
	activity *activity.Log
}

// New creates a client for the bucket set with WithBucket.
// It loads AWS credentials using the default credential chain unless
// WithCredentials or WithAWSConfig is given.
//
// Example:
//
//	client, err := s3desk.New(
//	    s3desk.WithBucket("media"),
//	    s3desk.WithEndpoint("http://localhost:9000"),
//	    s3desk.WithForcePathStyle(true),
//	)
func New(opts ...s3types.Option) (*Client, error) {
	clientCfg := newClientConfig(opts)
	if err := validation.ValidateBucketName(clientCfg.Bucket); err != nil {
		return nil, errors.NewError("client initialization", err).WithBucket(clientCfg.Bucket)
	}

	var cfg aws.Config
	if clientCfg.CustomAWSConfig != nil {
		cfg = clientCfg.CustomAWSConfig.Copy()
	} else {
		var err error
		cfg, err = config.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, errors.NewError("client initialization", err)
		}
	}

	if clientCfg.AccessKeyID != "" {
		cfg.Credentials = aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			clientCfg.AccessKeyID,
			clientCfg.SecretAccessKey,
			clientCfg.SessionToken,
		))
	}

	// Apply region from options if specified, otherwise ensure a region is set
	if clientCfg.Region != "" {
		cfg.Region = clientCfg.Region
	} else if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	var s3Opts []func(*s3.Options)
	if clientCfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(clientCfg.Endpoint)
		})
	}
	if clientCfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	if httpClient := clientCfg.HTTPClient(); httpClient != nil {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = httpClient
		})
	}

	s3Client := s3.NewFromConfig(cfg, s3Opts...)
	return newClient(s3Client, s3.NewPresignClient(s3Client), clientCfg), nil
}

// NewWithClient creates a client over existing SDK clients. presign may be
// nil, in which case only ranged downloads are possible.
// This is primarily used for testing against fake servers.
func NewWithClient(api s3api.S3API, presign s3api.PresignAPI, opts ...s3types.Option) (*Client, error) {
	clientCfg := newClientConfig(opts)
	if err := validation.ValidateBucketName(clientCfg.Bucket); err != nil {
		return nil, errors.NewError("client initialization", err).WithBucket(clientCfg.Bucket)
	}
	return newClient(api, presign, clientCfg), nil
}

func newClientConfig(opts []s3types.Option) *s3types.ClientConfig {
	clientCfg := &s3types.ClientConfig{
		Transfer: s3types.DefaultTransferConfig(),
	}
	for _, opt := range opts {
		opt(clientCfg)
	}
	return clientCfg
}

func newClient(api s3api.S3API, presign s3api.PresignAPI, clientCfg *s3types.ClientConfig) *Client {
	logger := clientCfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	filesystem := clientCfg.Filesystem
	localOS := filesystem == nil
	if localOS {
		filesystem = osfs.New("/")
	}

	saver := clientCfg.Saver
	if saver == nil {
		if localOS {
			saver = save.NewOS(".")
		} else {
			saver = save.New(filesystem, "")
		}
	}

	t := clientCfg.Transfer
	gw := gateway.New(api, presign, clientCfg.Bucket)
	reg := registry.New()
	bucketLogger := logger.With("bucket", clientCfg.Bucket)

	downloadCfg := download.ConfigFrom(t)
	downloadCfg.HTTPClient = clientCfg.HTTPClient()
	archiveCfg := archive.ConfigFrom(t)
	archiveCfg.Fetch = downloadCfg

	c := &Client{
		gateway:    gw,
		registry:   reg,
		logger:     bucketLogger,
		transfer:   t,
		fs:         filesystem,
		localOS:    localOS,
		uploader:   upload.New(gw, reg, upload.ConfigFrom(t), bucketLogger),
		downloader: download.New(gw, reg, saver, downloadCfg, bucketLogger),
		archiver:   archive.New(gw, reg, saver, archiveCfg, bucketLogger),
		copier:     copyop.New(gw, copyop.ConfigFrom(t), bucketLogger),
		deleter:    deleteop.New(gw, deleteop.WithLogger(bucketLogger)),
		lister:     list.New(gw, t.ActivityLogKey),
	}
	if !clientCfg.DisableActivity && t.ActivityLogKey != "" {
		c.activity = activity.New(gw, t.ActivityLogKey, activity.WithLogger(bucketLogger))
	}
	return c
}

// Bucket returns the bucket the client works on.
func (c *Client) Bucket() string {
	return c.gateway.Bucket()
}

// Registry returns the registry tracking this client's transfers.
func (c *Client) Registry() *registry.Registry {
	return c.registry
}

// Cancel asks a running transfer to stop. It reports false for unknown or
// finished transfers, and for archives that are already compressing.
func (c *Client) Cancel(id string) bool {
	return c.registry.Cancel(id)
}

// Close releases any resources held by the client.
func (c *Client) Close() error {
	return nil
}

// record appends to the activity log. A failure is logged, never returned:
// the transfer itself already succeeded.
func (c *Client) record(ctx context.Context, action s3types.ActivityAction, name string, size int64, files int) {
	if c.activity == nil {
		return
	}
	if err := c.activity.Append(ctx, action, name, size, files); err != nil {
		c.logger.Warn("activity log not updated", "action", action, "item", name, "error", err)
	}
}
