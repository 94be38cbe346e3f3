package s3desk

import (
	"context"
	"io"
	"path/filepath"

	"github.com/s3desk/s3desk/errors"
	"github.com/s3desk/s3desk/internal/operations/archive"
	"github.com/s3desk/s3desk/internal/operations/download"
	"github.com/s3desk/s3desk/internal/operations/upload"
	"github.com/s3desk/s3desk/internal/validation"
	"github.com/s3desk/s3desk/s3types"
)

// Upload stores size bytes read from src under key.
//
// Objects larger than the upload threshold are sent as a manual multipart
// upload whose parts are retried one by one; anything smaller goes through
// the SDK's managed uploader. A failed or cancelled multipart upload is
// aborted so no parts are left behind.
//
// Errors:
//   - ErrInvalidObjectKey: If key is empty or escapes the bucket root
//   - ErrInvalidInput: If size is negative or metadata is invalid
//   - ErrCancelled: If the transfer was cancelled through the registry
//
// Example:
//
//	result, err := client.Upload(ctx, "docs/report.pdf", file, info.Size(),
//	    s3desk.WithContentType("application/pdf"),
//	)
func (c *Client) Upload(
	ctx context.Context,
	key string,
	src io.ReaderAt,
	size int64,
	opts ...s3types.UploadOption,
) (*s3types.UploadResult, error) {
	if src == nil {
		return nil, errors.NewObjectError("upload", c.Bucket(), key, errors.ErrNoFile)
	}
	key = validation.CleanPath(key)

	config := &s3types.UploadOptionConfig{}
	for _, opt := range opts {
		opt(config)
	}

	result, err := c.uploader.Upload(ctx, uploadInput(key, src, size, config))
	if err != nil {
		return nil, err
	}
	c.record(ctx, s3types.ActionUpload, nameOr(config.Name, key), result.Size, 1)
	return result, nil
}

// UploadFile uploads a local file under key. Relative paths are resolved
// against the working directory when the client uses the OS filesystem.
func (c *Client) UploadFile(
	ctx context.Context,
	key, path string,
	opts ...s3types.UploadOption,
) (*s3types.UploadResult, error) {
	if path == "" {
		return nil, errors.NewObjectError("upload", c.Bucket(), key, errors.ErrNoFile)
	}
	path, err := c.localPath(path)
	if err != nil {
		return nil, errors.NewObjectError("upload", c.Bucket(), key, err)
	}

	info, err := c.fs.Stat(path)
	if err != nil {
		return nil, errors.NewObjectError("upload", c.Bucket(), key, err).WithMessage("stat " + path)
	}
	if info.IsDir() {
		return nil, errors.NewObjectError("upload", c.Bucket(), key, errors.ErrInvalidInput).
			WithMessage(path + " is a directory")
	}

	file, err := c.fs.Open(path)
	if err != nil {
		return nil, errors.NewObjectError("upload", c.Bucket(), key, err).WithMessage("open " + path)
	}
	defer file.Close()

	opts = append([]s3types.UploadOption{WithDisplayName(filepath.Base(path))}, opts...)
	return c.Upload(ctx, key, file, info.Size(), opts...)
}

// UploadDirectory uploads every file under root to <prefix>/<relative path>.
// Each file is its own tracked transfer. A failed file does not stop the
// others; it is reported in the result's Failed map.
func (c *Client) UploadDirectory(
	ctx context.Context,
	root, prefix string,
	opts ...s3types.DirectoryOption,
) (*s3types.DirectoryUploadResult, error) {
	root, err := c.localPath(root)
	if err != nil {
		return nil, errors.NewError("uploadDirectory", err).WithKey(root)
	}

	config := &s3types.DirectoryOptionConfig{}
	for _, opt := range opts {
		opt(config)
	}
	template := &s3types.UploadOptionConfig{}
	for _, opt := range config.Upload {
		opt(template)
	}

	result, err := c.uploader.UploadDirectory(ctx, upload.DirectoryInput{
		FS:       c.fs,
		Root:     root,
		Prefix:   validation.CleanPath(prefix),
		Include:  config.IncludePatterns,
		Exclude:  config.ExcludePatterns,
		Template: uploadInput("", nil, 0, template),
	})
	if result != nil {
		for _, up := range result.Uploaded {
			c.record(ctx, s3types.ActionUpload, validation.BaseName(up.Key), up.Size, 1)
		}
	}
	return result, err
}

// Download reads the object at key and saves it under its last path
// segment, or the name set with WithFileName.
//
// Objects above the download threshold are read in retried byte ranges;
// smaller ones with a single GET through a presigned URL. Archival objects
// that have not been restored fail with ErrNotRetrievable before any bytes
// are read. Nothing is saved unless every byte arrived.
func (c *Client) Download(
	ctx context.Context,
	key string,
	opts ...s3types.DownloadOption,
) (*s3types.DownloadResult, error) {
	config := &s3types.DownloadOptionConfig{Size: -1}
	for _, opt := range opts {
		opt(config)
	}

	result, err := c.downloader.Download(ctx, download.Input{
		Key:      validation.CleanPath(key),
		Size:     config.Size,
		FileName: config.FileName,
		Progress: config.Progress,
	})
	if err != nil {
		return nil, err
	}
	c.record(ctx, s3types.ActionDownload, result.FileName, result.Size, 1)
	return result, nil
}

// DownloadFolder saves every retrievable object under folder as one ZIP
// file named after the folder. An empty folder archives the whole bucket
// as <bucket>.zip. Archival objects that have not been restored are left
// out and listed in the result's Skipped field.
func (c *Client) DownloadFolder(
	ctx context.Context,
	folder string,
	opts ...s3types.DownloadOption,
) (*s3types.ArchiveResult, error) {
	config := &s3types.DownloadOptionConfig{}
	for _, opt := range opts {
		opt(config)
	}

	result, err := c.archiver.Download(ctx, archive.Input{
		Folder:   validation.CleanPath(folder),
		FileName: config.FileName,
		Progress: config.Progress,
	})
	if err != nil {
		return nil, err
	}
	c.record(ctx, s3types.ActionDownload, result.FileName, result.TotalSize, result.Files)
	return result, nil
}

func (c *Client) localPath(path string) (string, error) {
	if !c.localOS {
		return path, nil
	}
	return filepath.Abs(path)
}

func uploadInput(key string, src io.ReaderAt, size int64, config *s3types.UploadOptionConfig) upload.Input {
	return upload.Input{
		Key:          key,
		Source:       src,
		Size:         size,
		Name:         config.Name,
		ContentType:  config.ContentType,
		Metadata:     config.Metadata,
		StorageClass: config.StorageClass,
		Progress:     config.Progress,
	}
}

func nameOr(name, key string) string {
	if name != "" {
		return name
	}
	return validation.BaseName(key)
}
