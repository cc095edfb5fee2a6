package coop

import "runtime"

// goroutineID parses the current goroutine's ID out of a runtime.Stack
// trace, so isLoopThread can tell whether Submit/Spawn/Kill was called
// from the cooperator's own goroutine (in which case work can run
// inline) or from elsewhere (in which case it must go through the
// cross-thread submission queue).
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
