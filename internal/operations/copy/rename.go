package copy

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/s3desk/s3desk/errors"
	"github.com/s3desk/s3desk/internal/gateway"
	"github.com/s3desk/s3desk/internal/validation"
	"github.com/s3desk/s3desk/s3types"
)

// RenameFile moves key to newName in the same folder by copying and then
// deleting the original. A failed copy leaves the original untouched.
func (c *Copier) RenameFile(ctx context.Context, key, newName string) (*s3types.RenameResult, error) {
	if err := validation.ValidateObjectKey(key); err != nil {
		return nil, err
	}
	if err := validation.ValidateName(newName); err != nil {
		return nil, err
	}

	dst := validation.ParentPrefix(key) + newName
	result := &s3types.RenameResult{From: key, To: dst}
	if dst == key {
		return result, nil
	}

	info, err := c.store.Stat(ctx, key)
	if err != nil {
		return nil, errors.NewError("rename", err).WithKey(key)
	}
	if info.StorageClass.IsArchival() {
		return nil, errors.NewError("rename", errors.ErrArchived).
			WithKey(key).
			WithMessage(string(info.StorageClass))
	}

	if err := c.copyObject(ctx, info, dst); err != nil {
		return nil, errors.NewError("rename", err).WithKey(key).WithMessage("copy to " + dst)
	}
	if err := c.store.Delete(ctx, key); err != nil {
		return nil, errors.NewError("rename", err).WithKey(key).WithMessage("delete original after copy to " + dst)
	}

	result.Objects = 1
	c.logger.Debug("renamed object", "from", key, "to", dst)
	return result, nil
}

// RenameFolder moves every object under folder to a sibling folder called
// newName. The originals are deleted only after every copy succeeded; on a
// copy failure the copies already made are removed and the originals stay.
func (c *Copier) RenameFolder(ctx context.Context, folder, newName string) (*s3types.RenameResult, error) {
	prefix := validation.FolderPrefix(folder)
	if prefix == "" {
		return nil, errors.NewError("renameFolder", errors.ErrInvalidInput).
			WithMessage("the bucket root cannot be renamed")
	}
	if err := validation.ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	if err := validation.ValidateName(newName); err != nil {
		return nil, err
	}

	target := validation.ParentPrefix(prefix) + newName + "/"
	result := &s3types.RenameResult{From: prefix, To: target}
	if target == prefix {
		return result, nil
	}

	objects, err := c.listAll(ctx, prefix)
	if err != nil {
		return nil, errors.NewError("renameFolder", err).WithKey(prefix)
	}
	if len(objects) == 0 {
		return nil, errors.NewError("renameFolder", errors.ErrNoFiles).WithKey(prefix)
	}
	for _, obj := range objects {
		if obj.StorageClass.IsArchival() {
			return nil, errors.NewError("renameFolder", errors.ErrArchived).
				WithKey(obj.Key).
				WithMessage("folder holds archived objects")
		}
	}

	copied, err := c.copyAll(ctx, objects, prefix, target)
	if err != nil {
		c.discard(ctx, copied)
		return nil, errors.NewError("renameFolder", err).WithKey(prefix).WithMessage("copy to " + target)
	}

	originals := make([]string, 0, len(objects))
	for _, obj := range objects {
		originals = append(originals, obj.Key)
	}
	if err := c.deleteKeys(ctx, originals); err != nil {
		return nil, errors.NewError("renameFolder", err).WithKey(prefix).WithMessage("delete originals after copy")
	}

	result.Objects = len(objects)
	c.logger.Debug("renamed folder", "from", prefix, "to", target, "objects", len(objects))
	return result, nil
}

// listAll returns every object under prefix, folder markers included.
func (c *Copier) listAll(ctx context.Context, prefix string) ([]s3types.Object, error) {
	var objects []s3types.Object
	in := gateway.ListInput{Prefix: prefix, MaxKeys: gateway.MaxDeleteBatch}
	for {
		page, err := c.store.ListPage(ctx, in)
		if err != nil {
			return nil, err
		}
		objects = append(objects, page.Objects...)
		if !page.Truncated || page.NextToken == "" {
			return objects, nil
		}
		in.Token = page.NextToken
	}
}

// copyAll copies objects from under prefix to under target and returns
// the destination keys written, even on failure.
func (c *Copier) copyAll(ctx context.Context, objects []s3types.Object, prefix, target string) ([]string, error) {
	done := make([]string, len(objects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, obj := range objects {
		g.Go(func() error {
			dst := target + strings.TrimPrefix(obj.Key, prefix)
			info := &gateway.ObjectInfo{
				Key:          obj.Key,
				Size:         obj.Size,
				StorageClass: obj.StorageClass,
			}
			if info.Size > c.cfg.MultipartThreshold {
				// multipart copies carry the source's headers over
				full, err := c.store.Stat(gctx, obj.Key)
				if err != nil {
					return err
				}
				info = full
			}
			if err := c.copyObject(gctx, info, dst); err != nil {
				return err
			}
			done[i] = dst
			return nil
		})
	}
	err := g.Wait()

	copied := make([]string, 0, len(done))
	for _, k := range done {
		if k != "" {
			copied = append(copied, k)
		}
	}
	return copied, err
}

// deleteKeys removes keys in batches and fails if any key was not deleted.
func (c *Copier) deleteKeys(ctx context.Context, keys []string) error {
	res, err := c.deleter.DeleteBatch(ctx, keys)
	if err != nil {
		return err
	}
	if len(res.Errors) > 0 {
		first := res.Errors[0]
		return fmt.Errorf("%d objects not deleted, first %s: %s", len(res.Errors), first.Key, first.Message)
	}
	return nil
}

func (c *Copier) discard(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	if err := c.deleteKeys(context.WithoutCancel(ctx), keys); err != nil {
		c.logger.Warn("failed to remove partial folder copy", "objects", len(keys), "error", err)
	}
}
