package chunk

import (
	"fmt"

	"github.com/s3desk/s3desk/errors"
)

// MaxParts is the largest part count accepted by a multipart session.
const MaxParts = 10000

// Range is one chunk of a transfer. End is exclusive.
type Range struct {
	PartNumber int32
	Start      int64
	End        int64
}

// Len returns the number of bytes in the range.
func (r Range) Len() int64 {
	return r.End - r.Start
}

// Header formats the range as an HTTP Range header value.
// It must not be called on an empty range.
func (r Range) Header() string {
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.End-1)
}

// Count returns the number of chunks Plan produces for the given sizes.
func Count(total, chunkSize int64) int64 {
	if total == 0 {
		return 1
	}
	return (total + chunkSize - 1) / chunkSize
}

// Plan splits [0, total) into ranges of chunkSize bytes. The last range may
// be shorter. A zero total yields a single empty range.
func Plan(total, chunkSize int64) ([]Range, error) {
	if chunkSize <= 0 {
		return nil, errors.NewError("plan", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("chunk size must be positive, got %d", chunkSize))
	}
	if total < 0 {
		return nil, errors.NewError("plan", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("total size must not be negative, got %d", total))
	}

	n := Count(total, chunkSize)
	ranges := make([]Range, 0, n)
	for i := int64(0); i < n; i++ {
		start := i * chunkSize
		end := min(start+chunkSize, total)
		ranges = append(ranges, Range{
			PartNumber: int32(i + 1),
			Start:      start,
			End:        end,
		})
	}
	return ranges, nil
}

// IsLarge reports whether size is above the large-object threshold.
func IsLarge(size, threshold int64) bool {
	return size > threshold
}
