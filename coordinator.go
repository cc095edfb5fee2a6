package coop

// Coordinator is a one-holder FIFO lock: at most one Context holds
// it at a time, and Release hands it directly to the longest-waiting
// blocked Context rather than letting any runnable context race for it.
//
// A Coordinator's fields are mutated only by whichever Context currently
// holds the baton — the baton transfers not just scheduling
// control but exclusive rights to mutate cooperator-owned state — so no
// internal locking is required.
type Coordinator struct {
	held    bool
	holder  *Context
	waiters waiterList
}

// NewCoordinator returns an unheld Coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// Acquire blocks the calling context until it holds the coordinator, or
// until the calling context is killed. Returns a non-nil *KillError if
// the context was killed before or while waiting.
func (c *Coordinator) Acquire(self *Self) error {
	ctx := self.context()

	if killed, reason := ctx.isKilled(); killed {
		return &KillError{Reason: reason}
	}

	if !c.held {
		c.held = true
		c.holder = ctx
		return nil
	}

	ctx.blockOn(&c.waiters, func(schedule bool) {
		c.held = true
		c.holder = ctx
		ctx.activeWaiters = nil
		if schedule {
			ctx.coop.switchDirect(ctx)
		} else {
			ctx.coop.enqueueRunnable(ctx)
		}
	})

	if killed, reason := ctx.isKilled(); killed {
		return &KillError{Reason: reason}
	}
	return nil
}

// TryAcquire attempts a non-blocking acquire, returning false if the
// coordinator is currently held by another context.
func (c *Coordinator) TryAcquire(self *Self) bool {
	if c.held {
		return false
	}
	c.held = true
	c.holder = self.context()
	return true
}

// Release hands the coordinator to the longest-waiting blocked context,
// or marks it unheld if there are no waiters. Returns [ErrCoordinatorNotHeld]
// if the calling context does not currently hold it.
//
// schedule controls how the newly-unblocked waiter, if any, resumes:
// schedule=true performs a direct switch into it before Release returns,
// so it runs before the releasing context does; schedule=false
// only re-enqueues it to run on a later tick.
func (c *Coordinator) Release(self *Self, schedule bool) error {
	ctx := self.context()
	if !c.held || c.holder != ctx {
		return ErrCoordinatorNotHeld
	}
	c.held = false
	c.holder = nil
	if w := c.waiters.popFront(); w != nil {
		w.wake(schedule)
	}
	return nil
}

// HeldBy reports whether ctx currently holds the coordinator; intended
// for assertions and tests.
func (c *Coordinator) HeldBy(self *Self) bool {
	return c.held && c.holder == self.context()
}

// KillError is returned by blocking coordinator/signal operations when
// the calling context was killed instead of acquiring or being signaled.
type KillError struct {
	Reason any
}

func (e *KillError) Error() string {
	return "coop: context killed while blocked"
}

func (e *KillError) Is(target error) bool {
	return target == ErrKilled
}
