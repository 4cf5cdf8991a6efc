package zstream

import (
	"sync"
)

// bufferPool manages reusable byte slices with size-based pools. Streams
// borrow their staging buffers here so that short-lived readers and writers
// do not churn the allocator.
type bufferPool struct {
	pools []*sync.Pool // Size classes: 1KB, 2KB, 4KB, 8KB, 16KB, 32KB, 64KB, 128KB, 256KB, 512KB
}

var globalBufferPool = &bufferPool{
	pools: make([]*sync.Pool, 10),
}

func init() {
	for i := range globalBufferPool.pools {
		size := 1024 << i
		globalBufferPool.pools[i] = &sync.Pool{
			New: func() interface{} {
				return make([]byte, 0, size)
			},
		}
	}
}

// GetBuffer returns a buffer with at least minCapacity.
// The returned buffer has zero length but guaranteed capacity.
func GetBuffer(minCapacity int) []byte {
	if minCapacity <= 0 {
		return nil
	}

	for i, pool := range globalBufferPool.pools {
		poolSize := 1024 << i
		if poolSize >= minCapacity {
			b := pool.Get().([]byte)
			return b[:0]
		}
	}

	// For very large buffers (>512KB), allocate directly.
	return make([]byte, 0, minCapacity)
}

// PutBuffer returns a buffer to the pool for reuse.
// The buffer must not be used after calling PutBuffer.
func PutBuffer(buf []byte) {
	if buf == nil {
		return
	}

	capacity := cap(buf)
	for i, pool := range globalBufferPool.pools {
		poolSize := 1024 << i
		if poolSize == capacity {
			pool.Put(buf[:0])
			return
		}
	}

	// Non-standard size, let GC handle it.
}
