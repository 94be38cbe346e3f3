package transfer

import (
	"io"
	"sync/atomic"

	"github.com/s3desk/s3desk/s3types"
)

// Sinks fans progress out to every non-nil sink.
func Sinks(sinks ...s3types.ProgressSink) s3types.ProgressSink {
	var live []s3types.ProgressSink
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	switch len(live) {
	case 0:
		return s3types.NopSink
	case 1:
		return live[0]
	}
	return s3types.ProgressFunc(func(done, total int64) {
		for _, s := range live {
			s.OnProgress(done, total)
		}
	})
}

// CountingReader reports the cumulative bytes read through it.
type CountingReader struct {
	r     io.Reader
	total int64
	sink  s3types.ProgressSink
	done  atomic.Int64
}

// NewCountingReader wraps r. total is passed through to the sink unchanged.
func NewCountingReader(r io.Reader, total int64, sink s3types.ProgressSink) *CountingReader {
	if sink == nil {
		sink = s3types.NopSink
	}
	return &CountingReader{r: r, total: total, sink: sink}
}

// Read implements io.Reader.
func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.sink.OnProgress(c.done.Add(int64(n)), c.total)
	}
	return n, err
}

// Count returns the bytes read so far.
func (c *CountingReader) Count() int64 {
	return c.done.Load()
}
