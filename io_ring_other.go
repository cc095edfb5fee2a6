//go:build !linux

package coop

// newAsyncRing on every non-Linux platform returns the fallback ring
// (io_ring_fallback.go), which runs each op as a blocking syscall on
// its own goroutine instead of using a kernel-side completion queue.
func newAsyncRing(entries uint32) asyncRing {
	return newFallbackRing()
}
