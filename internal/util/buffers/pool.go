// Package buffers pools the copy buffers used to stream file content
// through uploads.
package buffers

import (
	"sync"
	"sync/atomic"

	"github.com/webstorage/storectl/internal/constants"
)

var (
	copyAllocations int64
	copyGets        int64

	copyPool = &sync.Pool{
		New: func() interface{} {
			atomic.AddInt64(&copyAllocations, 1)
			buf := make([]byte, constants.CopyBufferSize)
			return &buf
		},
	}
)

// GetCopyBuffer retrieves a CopyBufferSize buffer from the pool. Return it
// with PutCopyBuffer once the copy finishes.
//
//	buf := buffers.GetCopyBuffer()
//	defer buffers.PutCopyBuffer(buf)
//	_, err := io.CopyBuffer(dst, src, *buf)
func GetCopyBuffer() *[]byte {
	atomic.AddInt64(&copyGets, 1)
	return copyPool.Get().(*[]byte)
}

// PutCopyBuffer returns buf to the pool. Buffers of any other size are
// dropped. The contents are cleared first so file data does not linger.
func PutCopyBuffer(buf *[]byte) {
	if buf == nil || len(*buf) != constants.CopyBufferSize {
		return
	}
	clear(*buf)
	copyPool.Put(buf)
}

// Stats reports pool usage.
type Stats struct {
	BufferSize  int
	Allocations int64
	Gets        int64
}

// GetStats returns the current pool counters.
func GetStats() Stats {
	return Stats{
		BufferSize:  constants.CopyBufferSize,
		Allocations: atomic.LoadInt64(&copyAllocations),
		Gets:        atomic.LoadInt64(&copyGets),
	}
}
