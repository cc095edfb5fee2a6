package coop

// These constants size the padding of alignment-sensitive types
// (fastState).
const (
	// sizeOfCacheLine is the size of a CPU cache line.
	// 64 bytes is standard for x86-64.
	// 128 bytes is standard for Apple Silicon (M1/M2/M3) and other ARM64.
	// We use 128 to satisfy the largest common alignment requirement.
	sizeOfCacheLine = 128

	// sizeOfAtomicUint64 is the size of an atomic.Uint64 variable.
	sizeOfAtomicUint64 = 8
)

// stack size classes for the stack pool.
const (
	minStackClass       = 4 * 1024   // 4 KiB
	maxPooledStackClass = 128 * 1024 // 128 KiB, larger requests bypass the pool
)
