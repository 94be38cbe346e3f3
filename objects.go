package s3desk

import (
	"context"

	"github.com/s3desk/s3desk/errors"
	"github.com/s3desk/s3desk/internal/validation"
	"github.com/s3desk/s3desk/s3types"
)

// List returns one level of folder: sub-folders first, then files.
// Folder markers and the activity log never appear. An empty folder lists
// the bucket root.
func (c *Client) List(ctx context.Context, folder string) ([]s3types.Object, error) {
	return c.lister.View(ctx, folder)
}

// FolderSize returns the total size of every object under folder,
// recomputed on every call.
func (c *Client) FolderSize(ctx context.Context, folder string) (int64, error) {
	return c.lister.FolderSize(ctx, folder)
}

// ArchiveStats counts the objects under folder by storage state, so a
// caller can tell how much of a folder download would be skipped.
func (c *Client) ArchiveStats(ctx context.Context, folder string) (*s3types.ArchiveStats, error) {
	return c.lister.ArchiveStats(ctx, folder)
}

// BucketMetrics returns the object count and total size of the bucket,
// leaving out the activity log.
func (c *Client) BucketMetrics(ctx context.Context) (*s3types.BucketMetrics, error) {
	return c.lister.BucketMetrics(ctx)
}

// Status reports whether the object at key can be downloaded now, and
// where its restore stands if it is archived.
func (c *Client) Status(ctx context.Context, key string) (*s3types.ArchiveStatus, error) {
	key = validation.CleanPath(key)
	if err := validation.ValidateObjectKey(key); err != nil {
		return nil, err
	}
	return c.gateway.ArchiveStatus(ctx, key)
}

// Restore asks for a temporary readable copy of an archived object.
// The tier defaults to Standard and the copy lives for the configured
// number of days, 7 unless changed. Restoring an object that is not in an
// archival storage class is invalid input; asking again while a restore
// is running is not an error.
func (c *Client) Restore(ctx context.Context, key string, opts ...s3types.RestoreOption) error {
	config := &s3types.RestoreOptionConfig{
		Tier: s3types.TierStandard,
		Days: c.transfer.RestoreDays,
	}
	for _, opt := range opts {
		opt(config)
	}

	status, err := c.Status(ctx, key)
	if err != nil {
		return err
	}
	key = validation.CleanPath(key)
	if !status.Archived {
		return errors.NewObjectError("restore", c.Bucket(), key, errors.ErrInvalidInput).
			WithMessage("object is not archived")
	}
	if status.Restored {
		c.logger.Debug("restored copy already available", "key", key, "expiry", status.RestoreExpiry)
	}
	return c.gateway.Restore(ctx, key, config.Tier, config.Days)
}

// Rename gives the object at key a new last path segment. The object is
// copied first and the original deleted only after the copy succeeded.
// Archived objects cannot be renamed.
func (c *Client) Rename(ctx context.Context, key, newName string) (*s3types.RenameResult, error) {
	return c.copier.RenameFile(ctx, validation.CleanPath(key), newName)
}

// RenameFolder renames the last segment of folder. Every object is copied
// to the new prefix before any original is deleted; if a copy fails, the
// copies already made are removed and the folder is left as it was.
func (c *Client) RenameFolder(ctx context.Context, folder, newName string) (*s3types.RenameResult, error) {
	return c.copier.RenameFolder(ctx, validation.CleanPath(folder), newName)
}

// Delete removes the object at key.
func (c *Client) Delete(ctx context.Context, key string) error {
	return c.deleter.Delete(ctx, validation.CleanPath(key))
}

// DeleteFolder removes every object under folder, including its marker,
// in batches of up to 1000 keys. Keys that could not be deleted are
// reported in the result's Errors field. The bucket root is refused.
func (c *Client) DeleteFolder(ctx context.Context, folder string) (*s3types.DeleteResult, error) {
	return c.deleter.DeleteFolder(ctx, folder)
}

// History returns the bucket's activity log, oldest entry first.
func (c *Client) History(ctx context.Context) ([]s3types.ActivityEntry, error) {
	if c.activity == nil {
		return nil, errors.NewError("history", errors.ErrInvalidInput).
			WithBucket(c.Bucket()).
			WithMessage("activity log is disabled")
	}
	return c.activity.Read(ctx)
}

// ClearHistory empties the bucket's activity log.
func (c *Client) ClearHistory(ctx context.Context) error {
	if c.activity == nil {
		return errors.NewError("clearHistory", errors.ErrInvalidInput).
			WithBucket(c.Bucket()).
			WithMessage("activity log is disabled")
	}
	return c.activity.Clear(ctx)
}
