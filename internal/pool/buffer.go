package pool

import (
	"sync"
)

// CopyBufferSize is the size of buffers handed out for streaming copies.
const CopyBufferSize = 64 * 1024

var copyBuffers = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, CopyBufferSize)
		return &buf
	},
}

// GetCopyBuffer returns a CopyBufferSize buffer for io.CopyBuffer.
// Return it with PutCopyBuffer.
func GetCopyBuffer() []byte {
	return *copyBuffers.Get().(*[]byte)
}

// PutCopyBuffer returns a buffer obtained from GetCopyBuffer. Buffers of any
// other size are dropped.
func PutCopyBuffer(buf []byte) {
	if cap(buf) != CopyBufferSize {
		return
	}
	buf = buf[:CopyBufferSize]
	copyBuffers.Put(&buf)
}

// PartPool hands out buffers large enough to hold one transfer part.
type PartPool struct {
	size int
	pool sync.Pool
}

// NewPartPool creates a pool of buffers with capacity size.
func NewPartPool(size int) *PartPool {
	p := &PartPool{size: size}
	p.pool.New = func() interface{} {
		buf := make([]byte, size)
		return &buf
	}
	return p
}

// Size returns the capacity of the pooled buffers.
func (p *PartPool) Size() int {
	return p.size
}

// Get returns a buffer of length n. A request above the pool size is
// allocated directly and Put will not keep it.
func (p *PartPool) Get(n int) []byte {
	if n > p.size {
		return make([]byte, n)
	}
	buf := *p.pool.Get().(*[]byte)
	return buf[:n]
}

// Put returns a buffer to the pool. The caller must not use it afterwards.
func (p *PartPool) Put(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	buf = buf[:p.size]
	p.pool.Put(&buf)
}
