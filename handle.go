package coop

// Handle is a lightweight, copyable reference to a Context that may
// outlive it. A Handle obtained before a context
// exits remains valid to inspect (Alive) but Kill becomes a no-op
// (returning [ErrHandleDead]) once the context has exited, whether or not
// the underlying shell has since been returned to the stack pool and
// reused by an unrelated Context — Handle never dereferences into a
// recycled shell's new identity because it pins the *Context pointer
// captured at creation and checks Context.exited, not the pool.
type Handle struct {
	ctx *Context
}

// Alive reports whether the referenced context has not yet exited.
func (h Handle) Alive() bool {
	return h.ctx != nil && !h.ctx.exited.Load()
}

// ID returns the referenced context's identifier, or 0 for a zero Handle.
func (h Handle) ID() uint64 {
	if h.ctx == nil {
		return 0
	}
	return h.ctx.id
}

// Kill requests that the referenced context be killed with reason. The
// actual mutation of the context's kill flag happens on the owning
// Cooperator's goroutine (dispatched via Submit), preserving its
// single-writer confinement, so Kill is safe to call
// from any goroutine, including ones other than the cooperator's own.
//
// Kill does not forcibly unwind the context's stack (Go provides no such
// mechanism); it sets the kill flag and, if the context is currently
// blocked on a coordinator, wakes it so the next blocking-call return
// point observes the kill. A context that never reaches a blocking call
// site after being killed will not be interrupted, since suspension only
// happens at defined call sites.
//
// Kill cascades: every Context spawned with this one as caller (and,
// transitively, every descendant of those) is killed first, deepest
// first, before this Context itself is marked killed and woken. This
// guarantees every transitive descendant observes IsKilled before this
// Context's own await-resumption code runs.
func (h Handle) Kill(reason any) error {
	if h.ctx == nil {
		return ErrHandleDead
	}
	ctx := h.ctx
	if ctx.exited.Load() {
		return ErrHandleDead
	}
	return ctx.coop.submitLoopThreadFunc(func() {
		if ctx.exited.Load() {
			return
		}
		ctx.killCascade(reason)
	})
}
