package coop

import (
	"sync"
	"time"
)

// OpKind identifies the kind of asynchronous operation carried by an Op:
// open, close, read, write, recv, send, accept, connect, poll-mask,
// unlink, mkdir, fsync, shutdown, timeout, async-cancel.
type OpKind int

const (
	OpRead OpKind = iota
	OpWrite
	OpRecv
	OpSend
	OpAccept
	OpConnect
	OpPollMask
	OpOpen
	OpClose
	OpUnlink
	OpMkdir
	OpFsync
	OpShutdown
	OpTimeout
	OpCancel
)

// Op describes one asynchronous operation submitted to an asyncRing.
// Not every field is meaningful for every Kind; see the Descriptor
// convenience methods for the per-op shape actually used.
type Op struct {
	Kind     OpKind
	FD       int32
	Buf      []byte
	Offset   int64
	Addr     []byte // raw sockaddr bytes, for Connect
	Path     string // for Unlink/Mkdir/Open
	Mode     uint32
	PollMask uint32
	How      int // shutdown how (SHUT_RD/WR/RDWR)
	Timeout  time.Duration
	CancelID uint64
	Fixed    bool // use the fixed-file table slot in FD, not a raw fd

	Callback func(Result)
}

// Result is delivered to an Op's Callback exactly once, from the
// cooperator's own goroutine (so the callback body runs with the same
// single-writer confinement as any other cooperator-owned code).
type Result struct {
	N    int
	FD   int32 // populated for OpAccept
	Mask uint32
	Err  error
}

// asyncRing is the submission/completion layer: a real Linux io_uring
// binding, or any equivalent submission/completion queue that satisfies
// the same completion-callback contract. One asyncRing
// is owned per Cooperator and is only ever touched from the
// Cooperator's own goroutine, except Wake, which is the one method
// safe to call cross-thread (it is how Spawn/Submit/Kill, called off
// the loop thread, interrupt a blocked PollCompletions call).
type asyncRing interface {
	// Submit enqueues op, returning an ID usable with a later OpCancel.
	Submit(op Op) uint64
	// PollCompletions blocks up to timeout waiting for at least one
	// completion, returning every completion ready to dispatch. A
	// timeout of 0 polls without blocking.
	PollCompletions(timeout time.Duration) []completionEvent
	// Pending reports the number of in-flight (submitted, not yet
	// completed) operations.
	Pending() int
	// Wake interrupts a blocked PollCompletions call from any
	// goroutine. Safe for concurrent use.
	Wake()
	// Close releases the ring's kernel resources. Submitted but
	// undelivered completions are dropped.
	Close()
	// RegisterFixedFile registers fd in the ring's fixed-file table,
	// returning the index subsequent Ops can address via
	// Op.Fixed. The io_uring ring uses the kernel's registered-file
	// table; the fallback ring keeps an equivalent table in userspace.
	RegisterFixedFile(fd int32) (int32, error)
	// UnregisterFixedFile releases a fixed-file table slot.
	UnregisterFixedFile(idx int32) error
}

// completionEvent is one ready completion, queued by PollCompletions
// and run by the Cooperator's tick loop.
type completionEvent struct {
	dispatch func()
}

// Descriptor owns one file descriptor (or fixed-file table slot),
// optionally fixed-file registered on its owning Cooperator's ring,
// and async-closes itself on Close rather than blocking the caller.
// It tracks every in-flight Handle submitted against it so Close can
// cancel them first.
//
// Tracks in-flight ops keyed by their submission ID (one notification
// per in-flight op, rather than one callback per fd-readiness event).
type Descriptor struct {
	mu       sync.Mutex
	coop     *Cooperator
	fd       int32
	fixedIdx int32
	fixed    bool
	closed   bool
	inflight map[uint64]struct{}
}

// NewDescriptor wraps fd for async submission against coop's ring.
func NewDescriptor(coop *Cooperator, fd int32) *Descriptor {
	return &Descriptor{coop: coop, fd: fd, fixedIdx: -1, inflight: make(map[uint64]struct{})}
}

// RegisterFixed registers the descriptor's fd as a fixed file on its
// owning ring, so subsequent ops can address it without per-op fd
// translation in the kernel.
func (d *Descriptor) RegisterFixed() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fixed {
		return nil
	}
	idx, err := d.coop.ring.RegisterFixedFile(d.fd)
	if err != nil {
		return err
	}
	d.fixedIdx = idx
	d.fixed = true
	return nil
}

func (d *Descriptor) fdArg() (int32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fixed {
		return d.fixedIdx, true
	}
	return d.fd, false
}

func (d *Descriptor) submit(op Op) uint64 {
	fd, fixed := d.fdArg()
	op.FD = fd
	op.Fixed = fixed
	inner := op.Callback
	id := uint64(0)
	op.Callback = func(r Result) {
		d.mu.Lock()
		delete(d.inflight, id)
		d.mu.Unlock()
		if inner != nil {
			inner(r)
		}
	}
	id = d.coop.ring.Submit(op)
	d.mu.Lock()
	d.inflight[id] = struct{}{}
	d.mu.Unlock()
	return id
}

// Read submits an asynchronous read into buf at offset.
func (d *Descriptor) Read(buf []byte, offset int64, cb func(n int, err error)) uint64 {
	return d.submit(Op{Kind: OpRead, Buf: buf, Offset: offset, Callback: func(r Result) { cb(r.N, r.Err) }})
}

// Write submits an asynchronous write of buf at offset.
func (d *Descriptor) Write(buf []byte, offset int64, cb func(n int, err error)) uint64 {
	return d.submit(Op{Kind: OpWrite, Buf: buf, Offset: offset, Callback: func(r Result) { cb(r.N, r.Err) }})
}

// Recv submits an asynchronous socket receive.
func (d *Descriptor) Recv(buf []byte, cb func(n int, err error)) uint64 {
	return d.submit(Op{Kind: OpRecv, Buf: buf, Callback: func(r Result) { cb(r.N, r.Err) }})
}

// Send submits an asynchronous socket send.
func (d *Descriptor) Send(buf []byte, cb func(n int, err error)) uint64 {
	return d.submit(Op{Kind: OpSend, Buf: buf, Callback: func(r Result) { cb(r.N, r.Err) }})
}

// Accept submits an asynchronous connection accept.
func (d *Descriptor) Accept(cb func(connFD int32, err error)) uint64 {
	return d.submit(Op{Kind: OpAccept, Callback: func(r Result) { cb(r.FD, r.Err) }})
}

// Connect submits an asynchronous connect to the raw sockaddr bytes
// in addr.
func (d *Descriptor) Connect(addr []byte, cb func(err error)) uint64 {
	return d.submit(Op{Kind: OpConnect, Addr: addr, Callback: func(r Result) { cb(r.Err) }})
}

// PollMask submits a one-shot readiness poll for the given event mask.
func (d *Descriptor) PollMask(mask uint32, cb func(readyMask uint32, err error)) uint64 {
	return d.submit(Op{Kind: OpPollMask, PollMask: mask, Callback: func(r Result) { cb(r.Mask, r.Err) }})
}

// Fsync submits an asynchronous fsync.
func (d *Descriptor) Fsync(cb func(err error)) uint64 {
	return d.submit(Op{Kind: OpFsync, Callback: func(r Result) { cb(r.Err) }})
}

// Shutdown submits an asynchronous socket shutdown (SHUT_RD/WR/RDWR).
func (d *Descriptor) Shutdown(how int, cb func(err error)) uint64 {
	return d.submit(Op{Kind: OpShutdown, How: how, Callback: func(r Result) { cb(r.Err) }})
}

// Cancel requests cancellation of a previously submitted, still
// in-flight op.
func (d *Descriptor) Cancel(opID uint64) {
	d.coop.ring.Submit(Op{Kind: OpCancel, CancelID: opID, Callback: func(Result) {}})
}

// Close cancels every in-flight op against this descriptor, then
// submits an asynchronous close of the underlying fd. Safe to call
// more than once; a subsequent call closes nothing and calls cb(nil)
// at once.
func (d *Descriptor) Close(cb func(err error)) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		if cb != nil {
			cb(nil)
		}
		return
	}
	d.closed = true
	ids := make([]uint64, 0, len(d.inflight))
	for id := range d.inflight {
		ids = append(ids, id)
	}
	d.mu.Unlock()

	for _, id := range ids {
		d.Cancel(id)
	}
	if d.fixed {
		_ = d.coop.ring.UnregisterFixedFile(d.fixedIdx)
	}
	d.submit(Op{Kind: OpClose, Callback: func(r Result) {
		if cb != nil {
			cb(r.Err)
		}
	}})
}

// Unlink and Mkdir are path-based ops, not tied to an open Descriptor;
// they submit directly against a Cooperator's ring.

// Unlink submits an asynchronous unlink of path.
func Unlink(coop *Cooperator, path string, cb func(err error)) uint64 {
	return coop.ring.Submit(Op{Kind: OpUnlink, Path: path, Callback: func(r Result) { cb(r.Err) }})
}

// Mkdir submits an asynchronous mkdir of path with the given mode.
func Mkdir(coop *Cooperator, path string, mode uint32, cb func(err error)) uint64 {
	return coop.ring.Submit(Op{Kind: OpMkdir, Path: path, Mode: mode, Callback: func(r Result) { cb(r.Err) }})
}
