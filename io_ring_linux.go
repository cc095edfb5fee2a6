//go:build linux

package coop

import (
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/pawelgaczynski/giouring"
	"golang.org/x/sys/unix"
)

// ringAsyncLinux is the Linux asyncRing, backed by io_uring via
// giouring: ring creation via CreateRing, per-op SQE acquisition via
// GetSQE, a user_data-keyed callback table populated at submission time
// and consumed at completion time, batched submission via
// SubmitAndWait, and batched completion draining via
// PeekBatchCQE/CQAdvance.
//
// Single-issuer: every Submit/PollCompletions/Close call must come
// from the Cooperator's own goroutine. Wake is the sole exception,
// implemented with a self-pipe eventfd kept permanently armed with a
// read SQE, since the ring itself cannot be interrupted by a
// cross-thread syscall.
type ringAsyncLinux struct {
	ring *giouring.Ring

	mu        sync.Mutex
	callbacks map[uint64]func(Result)
	nextID    uint64
	pending   int

	wakeFD  int
	wakeBuf [8]byte

	fixedFiles []int32
	freeFixed  []int32

	closed bool
}

func newAsyncRing(entries uint32) asyncRing {
	if entries == 0 {
		entries = 256
	}
	ring, err := giouring.CreateRing(entries)
	if err != nil {
		// Falls back to the degraded goroutine-pool ring rather than
		// panic at construction time; Submit/PollCompletions on the
		// fallback behave identically from the Cooperator's
		// perspective, just without kernel-backed async I/O.
		return newFallbackRing()
	}
	wakeFD, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		ring.QueueExit()
		return newFallbackRing()
	}
	r := &ringAsyncLinux{
		ring:      ring,
		callbacks: make(map[uint64]func(Result)),
		wakeFD:    wakeFD,
	}
	r.armWake()
	return r
}

func (r *ringAsyncLinux) armWake() {
	sqe := r.getSQE()
	sqe.PrepareRead(int32(r.wakeFD), uintptr(unsafe.Pointer(&r.wakeBuf[0])), uint32(len(r.wakeBuf)), 0)
	giouring.SetUserData(sqe, 0) // user_data 0 is reserved for the wake read
}

func (r *ringAsyncLinux) getSQE() *giouring.SubmissionQueueEntry {
	sqe := r.ring.GetSQE()
	if sqe == nil {
		r.ring.SubmitAndWait(0)
		sqe = r.ring.GetSQE()
	}
	return sqe
}

func (r *ringAsyncLinux) Submit(op Op) uint64 {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.mu.Unlock()

	if op.Kind == OpCancel {
		sqe := r.getSQE()
		sqe.PrepareCancel64(op.CancelID, 0)
		giouring.SetUserData(sqe, id)
		r.ring.SubmitAndWait(0)
		return id
	}

	sqe := r.getSQE()
	switch op.Kind {
	case OpRead:
		sqe.PrepareRead(op.FD, uintptr(unsafe.Pointer(&op.Buf[0])), uint32(len(op.Buf)), uint64(op.Offset))
	case OpWrite:
		sqe.PrepareWrite(op.FD, uintptr(unsafe.Pointer(&op.Buf[0])), uint32(len(op.Buf)), uint64(op.Offset))
	case OpRecv:
		sqe.PrepareRecv(op.FD, uintptr(unsafe.Pointer(&op.Buf[0])), uint32(len(op.Buf)), 0)
	case OpSend:
		sqe.PrepareSend(op.FD, uintptr(unsafe.Pointer(&op.Buf[0])), uint32(len(op.Buf)), 0)
	case OpAccept:
		sqe.PrepareAccept(op.FD, 0, 0, 0)
	case OpConnect:
		sqe.PrepareConnect(op.FD, uintptr(unsafe.Pointer(&op.Addr[0])), uint64(len(op.Addr)))
	case OpPollMask:
		sqe.PreparePollAdd(op.FD, op.PollMask)
	case OpClose:
		sqe.PrepareClose(op.FD)
	case OpFsync:
		sqe.PrepareFsync(op.FD, 0)
	case OpShutdown:
		sqe.PrepareShutdown(op.FD, uint32(op.How))
	case OpUnlink:
		sqe.PrepareUnlinkat(unix.AT_FDCWD, op.Path, 0)
	case OpMkdir:
		sqe.PrepareMkdirat(unix.AT_FDCWD, op.Path, op.Mode)
	case OpOpen:
		sqe.PrepareOpenat(unix.AT_FDCWD, op.Path, 0, op.Mode)
	case OpTimeout:
		ts := giouring.NewKernelTimespec(op.Timeout)
		sqe.PrepareTimeout(ts, 0, 0)
	}
	if op.Fixed {
		sqe.Flags |= giouring.SqeFixedFile
	}
	giouring.SetUserData(sqe, id)

	r.mu.Lock()
	r.callbacks[id] = op.Callback
	r.pending++
	r.mu.Unlock()

	r.ring.SubmitAndWait(0)
	return id
}

func (r *ringAsyncLinux) PollCompletions(timeout time.Duration) []completionEvent {
	var ts *syscall.Timespec
	if timeout > 0 {
		sec := int64(timeout / time.Second)
		nsec := int64(timeout % time.Second)
		ts = &syscall.Timespec{Sec: sec, Nsec: nsec}
	}

	var waitNr uint32 = 1
	if timeout == 0 {
		waitNr = 0
	}
	if ts != nil {
		if _, err := r.ring.WaitCQEs(waitNr, (*giouring.Timespec)(unsafe.Pointer(ts)), nil); err != nil && !temporaryRingError(err) {
			return nil
		}
	} else {
		if _, err := r.ring.SubmitAndWait(waitNr); err != nil && !temporaryRingError(err) {
			return nil
		}
	}

	var cqes [128]*giouring.CompletionQueueEvent
	n := r.ring.PeekBatchCQE(cqes[:])
	if n == 0 {
		return nil
	}
	out := make([]completionEvent, 0, n)
	for i := uint32(0); i < n; i++ {
		cqe := cqes[i]
		userData := giouring.UserData(cqe)
		if userData == 0 {
			// the permanent wake read fired; drain and rearm.
			out = append(out, completionEvent{dispatch: func() { r.armWake() }})
			continue
		}
		res := int32(cqe.Res)
		r.mu.Lock()
		cb, ok := r.callbacks[userData]
		delete(r.callbacks, userData)
		if ok {
			r.pending--
		}
		r.mu.Unlock()
		if !ok || cb == nil {
			continue
		}
		result := resultFromCQE(res)
		out = append(out, completionEvent{dispatch: func() { cb(result) }})
	}
	r.ring.CQAdvance(n)
	return out
}

func resultFromCQE(res int32) Result {
	if res < 0 {
		return Result{Err: syscall.Errno(-res)}
	}
	return Result{N: int(res), FD: res}
}

func temporaryRingError(err error) bool {
	errno, ok := err.(syscall.Errno)
	return ok && (errno == syscall.EINTR || errno == syscall.EAGAIN || errno == syscall.ETIME)
}

func (r *ringAsyncLinux) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

func (r *ringAsyncLinux) Wake() {
	var one [8]byte
	one[0] = 1
	_, _ = unix.Write(r.wakeFD, one[:])
}

func (r *ringAsyncLinux) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()
	r.ring.QueueExit()
	_ = unix.Close(r.wakeFD)
}

func (r *ringAsyncLinux) RegisterFixedFile(fd int32) (int32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.freeFixed) > 0 {
		idx := r.freeFixed[len(r.freeFixed)-1]
		r.freeFixed = r.freeFixed[:len(r.freeFixed)-1]
		r.fixedFiles[idx] = fd
		return idx, nil
	}
	idx := int32(len(r.fixedFiles))
	r.fixedFiles = append(r.fixedFiles, fd)
	if err := r.ring.RegisterFilesUpdate(uint32(idx), []int32{fd}); err != nil {
		r.fixedFiles = r.fixedFiles[:idx]
		return 0, err
	}
	return idx, nil
}

func (r *ringAsyncLinux) UnregisterFixedFile(idx int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if int(idx) >= len(r.fixedFiles) {
		return ErrHandleDead
	}
	if err := r.ring.RegisterFilesUpdate(uint32(idx), []int32{-1}); err != nil {
		return err
	}
	r.freeFixed = append(r.freeFixed, idx)
	return nil
}
