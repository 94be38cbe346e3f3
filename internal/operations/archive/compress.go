package archive

import (
	"bytes"
	"fmt"
	"io"
	"slices"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/s3desk/s3desk/internal/pool"
	"github.com/s3desk/s3desk/internal/transfer"
	"github.com/s3desk/s3desk/s3types"
)

// compress packs entries into a ZIP using DEFLATE at level. Progress is
// reported in uncompressed bytes consumed out of the sum of entry sizes.
func compress(entries []entry, level int, sink s3types.ProgressSink) ([]byte, error) {
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		level = flate.DefaultCompression
	}

	var total int64
	for _, e := range entries {
		total += int64(len(e.data))
	}

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, level)
	})

	buf := pool.GetCopyBuffer()
	defer pool.PutCopyBuffer(buf)

	var base int64
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.name,
			Method:   zip.Deflate,
			Modified: e.obj.LastModified,
		})
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", e.name, err)
		}

		offset := base
		r := transfer.NewCountingReader(bytes.NewReader(e.data), total,
			s3types.ProgressFunc(func(done, total int64) {
				sink.OnProgress(offset+done, total)
			}))
		if _, err := io.CopyBuffer(w, r, buf); err != nil {
			return nil, fmt.Errorf("compress %s: %w", e.name, err)
		}
		base += int64(len(e.data))
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish archive: %w", err)
	}
	sink.OnProgress(total, total)
	return out.Bytes(), nil
}

func sortKeys(keys []string) {
	slices.Sort(keys)
}
