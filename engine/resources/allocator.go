package resources

import "sync/atomic"

// Allocator hands out the buffers resource payloads are read into. Load
// functions run on worker goroutines, so implementations must be safe
// for concurrent use.
type Allocator interface {
	Allocate(size int) []byte
	Deallocate(b []byte)
}

// HeapAllocator allocates from the Go heap and keeps track of the bytes
// still outstanding, which makes leaked payloads visible.
type HeapAllocator struct {
	allocated atomic.Int64
	blocks    atomic.Int64
}

func NewHeapAllocator() *HeapAllocator {
	return &HeapAllocator{}
}

func (h *HeapAllocator) Allocate(size int) []byte {
	h.allocated.Add(int64(size))
	h.blocks.Add(1)
	return make([]byte, size)
}

func (h *HeapAllocator) Deallocate(b []byte) {
	h.allocated.Add(-int64(cap(b)))
	h.blocks.Add(-1)
}

// Allocated returns the number of bytes not yet deallocated.
func (h *HeapAllocator) Allocated() int64 {
	return h.allocated.Load()
}

// Blocks returns the number of buffers not yet deallocated.
func (h *HeapAllocator) Blocks() int64 {
	return h.blocks.Load()
}
