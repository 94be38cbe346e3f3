package list

import (
	"context"

	"github.com/s3desk/s3desk/internal/validation"
	"github.com/s3desk/s3desk/s3types"
)

// FolderSize sums the size of every object under folder. It is recomputed
// on every call.
func (l *Lister) FolderSize(ctx context.Context, folder string) (int64, error) {
	stats, err := l.ArchiveStats(ctx, folder)
	if err != nil {
		return 0, err
	}
	return stats.Bytes, nil
}

// ArchiveStats counts the objects under folder by storage state.
func (l *Lister) ArchiveStats(ctx context.Context, folder string) (*s3types.ArchiveStats, error) {
	prefix := validation.FolderPrefix(folder)
	if err := validation.ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	return l.collect(ctx, prefix)
}

// BucketMetrics returns the object count and total size of the bucket.
func (l *Lister) BucketMetrics(ctx context.Context) (*s3types.BucketMetrics, error) {
	stats, err := l.collect(ctx, "")
	if err != nil {
		return nil, err
	}
	return &s3types.BucketMetrics{
		Objects: stats.Total,
		Bytes:   stats.Bytes,
	}, nil
}

func (l *Lister) collect(ctx context.Context, prefix string) (*s3types.ArchiveStats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stats := &s3types.ArchiveStats{}
	for r := range l.Stream(ctx, prefix) {
		if r.Err != nil {
			return nil, r.Err
		}
		obj := r.Object
		stats.Total++
		stats.Bytes += obj.Size

		switch {
		case !obj.StorageClass.IsArchival():
			stats.Standard++
		case obj.Restored:
			stats.Archived++
			stats.Restored++
		case obj.Restoring:
			stats.Archived++
			stats.Restoring++
		default:
			stats.Archived++
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return stats, nil
}
