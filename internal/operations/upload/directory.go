package upload

import (
	"context"
	"time"

	"github.com/go-git/go-billy/v5"

	"github.com/s3desk/s3desk/errors"
	"github.com/s3desk/s3desk/internal/scanner"
	"github.com/s3desk/s3desk/internal/transfer"
	"github.com/s3desk/s3desk/internal/validation"
	"github.com/s3desk/s3desk/s3types"
)

// DirectoryInput describes a directory upload.
type DirectoryInput struct {
	FS      billy.Filesystem
	Root    string
	Prefix  string
	Include []string
	Exclude []string

	// Template supplies content type, metadata and storage class for
	// every file. Key, Source, Size and Name are filled per file.
	Template Input
}

// UploadDirectory uploads every selected file under Root to
// <Prefix>/<relative path>, one tracked transfer per file. Files are sent
// one after another; a failed file is recorded and the rest continue.
func (u *Uploader) UploadDirectory(ctx context.Context, in DirectoryInput) (*s3types.DirectoryUploadResult, error) {
	start := time.Now()

	matcher, err := scanner.NewPatternMatcher(in.Include, in.Exclude)
	if err != nil {
		return nil, errors.NewError("uploadDirectory", errors.ErrInvalidInput).WithMessage(err.Error())
	}
	files, err := scanner.New(in.FS).Scan(ctx, in.Root, matcher)
	if err != nil {
		return nil, errors.NewError("uploadDirectory", err)
	}
	if len(files) == 0 {
		return nil, errors.NewError("uploadDirectory", errors.ErrNoFiles).WithKey(in.Root)
	}

	result := &s3types.DirectoryUploadResult{
		Failed: make(map[string]error),
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			if transfer.Cancelled(ctx) {
				err = errors.NewError("uploadDirectory", errors.ErrCancelled).WithKey(in.Prefix)
			}
			return result, err
		}

		key := validation.JoinKey(in.Prefix, f.RelPath)
		res, err := u.uploadFile(ctx, in, f, key)
		if err != nil {
			u.logger.Warn("file upload failed", "path", f.Path, "key", key, "error", err)
			result.Failed[f.RelPath] = err
			continue
		}
		result.Uploaded = append(result.Uploaded, *res)
		result.Bytes += res.Size
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (u *Uploader) uploadFile(ctx context.Context, in DirectoryInput, f scanner.File, key string) (*s3types.UploadResult, error) {
	file, err := in.FS.Open(f.Path)
	if err != nil {
		return nil, errors.NewObjectError("uploadDirectory", "", key, err)
	}
	defer file.Close()

	input := in.Template
	input.Key = key
	input.Source = file
	input.Size = f.Size
	input.Name = f.RelPath
	return u.Upload(ctx, input)
}
