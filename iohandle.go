package coop

import (
	"syscall"
	"time"
)

// IOHandle binds one in-flight asynchronous operation to a Coordinator:
// a Context blocks on it exactly the way it
// blocks on any other Coordinator-guarded resource — kill-aware via
// Wait, timeout-aware via WaitTimeout's use of the multi-coordinator
// machinery — rather than only being notified through a fire-and-forget
// callback.
//
// The embedded Coordinator starts held and is released, waking its
// waiter with a direct switch, the instant the operation's completion
// arrives: its held state IS pending_cqes(H) != 0, since every Op this
// package submits delivers exactly one completion.
type IOHandle struct {
	Coordinator
	d      *Descriptor
	opID   uint64
	result Result
	done   bool
}

// SubmitHandle submits op against d, returning an IOHandle a Context can
// block on via Wait or WaitTimeout instead of a fire-and-forget callback.
// op.Callback, if set, still runs (before the IOHandle's own waiter is
// released).
func (d *Descriptor) SubmitHandle(op Op) *IOHandle {
	h := &IOHandle{d: d}
	h.held = true
	inner := op.Callback
	op.Callback = func(r Result) {
		h.result = r
		h.done = true
		h.held = false
		h.holder = nil
		if inner != nil {
			inner(r)
		}
		if w := h.waiters.popFront(); w != nil {
			w.wake(true)
		}
	}
	h.opID = d.submit(op)
	return h
}

// ReadHandle is [Descriptor.Read] as a blocking IOHandle.
func (d *Descriptor) ReadHandle(buf []byte, offset int64) *IOHandle {
	return d.SubmitHandle(Op{Kind: OpRead, Buf: buf, Offset: offset})
}

// WriteHandle is [Descriptor.Write] as a blocking IOHandle.
func (d *Descriptor) WriteHandle(buf []byte, offset int64) *IOHandle {
	return d.SubmitHandle(Op{Kind: OpWrite, Buf: buf, Offset: offset})
}

// RecvHandle is [Descriptor.Recv] as a blocking IOHandle.
func (d *Descriptor) RecvHandle(buf []byte) *IOHandle {
	return d.SubmitHandle(Op{Kind: OpRecv, Buf: buf})
}

// SendHandle is [Descriptor.Send] as a blocking IOHandle.
func (d *Descriptor) SendHandle(buf []byte) *IOHandle {
	return d.SubmitHandle(Op{Kind: OpSend, Buf: buf})
}

// AcceptHandle is [Descriptor.Accept] as a blocking IOHandle; on success
// Result.FD carries the accepted connection's descriptor.
func (d *Descriptor) AcceptHandle() *IOHandle {
	return d.SubmitHandle(Op{Kind: OpAccept})
}

// ConnectHandle is [Descriptor.Connect] as a blocking IOHandle.
func (d *Descriptor) ConnectHandle(addr []byte) *IOHandle {
	return d.SubmitHandle(Op{Kind: OpConnect, Addr: addr})
}

// Wait blocks the calling context until the operation completes,
// returning its Result. If self's context is killed first, the
// in-flight operation is canceled (best-effort; see [Descriptor.Cancel])
// and a *KillError is returned instead.
func (h *IOHandle) Wait(self *Self) (Result, error) {
	if err := h.Acquire(self); err != nil {
		h.d.Cancel(h.opID)
		return Result{}, err
	}
	return h.result, nil
}

// WaitTimeout is Wait bounded by d: if the operation hasn't completed
// within d, the in-flight op is canceled and syscall.ETIMEDOUT is
// returned, matching a real io_uring timeout completion's -ETIMEDOUT.
// On the io_uring ring the cancel completes the op, so a blocking recv
// with a timeout leaves no pending ops behind once the context exits. On
// the fallback ring the cancel does not interrupt an op already blocked
// in its syscall; that op stays pending until the syscall returns.
func (h *IOHandle) WaitTimeout(self *Self, d time.Duration) (Result, error) {
	_, outcome, err := CoordinateWithTimeout(self, d, &h.Coordinator)
	if err != nil {
		h.d.Cancel(h.opID)
		return Result{}, err
	}
	if outcome == TimedOut {
		h.d.Cancel(h.opID)
		return Result{}, syscall.ETIMEDOUT
	}
	return h.result, nil
}
