// Package coop provides a cooperative, single-threaded concurrency runtime:
// a user-space scheduler that multiplexes many lightweight execution
// contexts onto one OS thread, exposing synchronous-looking blocking
// primitives (locks, signals, timers, and network/disk I/O) while the
// runtime transparently handles suspension and resumption.
//
// # Architecture
//
// The runtime is built around a [Cooperator], which owns a run queue of
// [Context] values, a hierarchical [Ticker] timer wheel, and an async I/O
// ring. At most one Context holds the CPU at a time; yielding, blocking
// on a [Coordinator] or [Signal], or returning from its entry function
// all hand the baton back to the cooperator's own goroutine.
//
// Go offers no supported way to swap a goroutine's stack pointer from user
// code, so the context switch described by the reference design (a raw
// register/SP swap) is instead realized as a baton handoff between two
// goroutines over unbuffered channels. This preserves the single-active-
// context invariant and the FIFO waiter discipline without assembly or
// cgo.
//
// # Platform support
//
// The async I/O layer uses io_uring on Linux, via
// github.com/pawelgaczynski/giouring. On other platforms, and on Linux
// when an io_uring instance cannot be created, it uses a
// worker-goroutine-per-operation ring that performs the equivalent
// blocking syscall directly, without a kernel-side completion queue.
// On that ring a cancel does not interrupt an op already in its
// syscall, and an [OpTimeout] op completes at once; on Windows,
// accept, connect, poll-mask and shutdown ops fail with
// ERROR_NOT_SUPPORTED.
//
// # Thread safety
//
// A [Cooperator] confines all run-queue, waiter-list, and timer-wheel
// mutation to its own goroutine. [Cooperator.Submit], [Cooperator.Spawn]
// with a nil caller, [Cooperator.Shutdown], [Cooperator.Metrics] and
// [Handle.Kill] are safe to call from any goroutine; off the cooperator's
// goroutine, Submit, Spawn and Kill hand their work to the cooperator
// through a bounded, mutex-guarded cross-thread queue backed by a pair of
// counting semaphores.
//
// # Usage
//
//	c := coop.New()
//	go func() {
//		if err := c.Run(context.Background()); err != nil {
//			log.Print(err)
//		}
//	}()
//
//	c.Submit(func(self *coop.Self) {
//		fmt.Println("running on the cooperator")
//	})
//
//	// Shutdown returns once Run has drained the queued work and stopped.
//	c.Shutdown(context.Background())
//
// # Errors
//
// See [ErrShutdown], [ErrKilled], [ErrStackExhausted], [PanicError], and
// the other sentinels in errors.go for the runtime's error taxonomy.
package coop
