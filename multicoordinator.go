package coop

import "time"

// CoordinateWith blocks the calling context until exactly one of
// coordinators can be acquired, using first-wins composition: the
// context enrolls a waiter node on every candidate simultaneously, and
// whichever coordinator is released (or already unheld) first wins,
// rolling back the enrollment on all the others. Ties — more than one
// coordinator already unheld at call time — resolve leftmost-wins.
//
// Returns the winning index into coordinators, or -1 and a non-nil
// *KillError if the context is killed before it resumes. A kill takes
// priority over a win: a coordinator already handed to the context by
// then is released again.
func CoordinateWith(self *Self, coordinators ...*Coordinator) (int, error) {
	ctx := self.context()

	if killed, reason := ctx.isKilled(); killed {
		return -1, &KillError{Reason: reason}
	}

	for i, c := range coordinators {
		if !c.held {
			c.held = true
			c.holder = ctx
			return i, nil
		}
	}

	nodes := make([]waiterNode, len(coordinators))
	ptrs := make([]*waiterNode, len(coordinators))
	decided := -1

	for i := range coordinators {
		i := i
		c := coordinators[i]
		nodes[i] = waiterNode{ctx: ctx}
		nodes[i].wake = func(schedule bool) {
			if decided != -1 {
				return
			}
			decided = i
			c.held = true
			c.holder = ctx
			for j := range coordinators {
				if j == i {
					continue
				}
				if nodes[j].list != nil {
					nodes[j].list.remove(&nodes[j])
				}
			}
			ctx.activeWaiters = nil
			if schedule {
				ctx.coop.switchDirect(ctx)
			} else {
				ctx.coop.enqueueRunnable(ctx)
			}
		}
		ptrs[i] = &nodes[i]
		c.waiters.pushBack(&nodes[i])
	}

	ctx.blockOnMany(ptrs)

	if killed, reason := ctx.isKilled(); killed {
		if decided == -1 {
			for i := range nodes {
				if nodes[i].list != nil {
					nodes[i].list.remove(&nodes[i])
				}
			}
		} else {
			_ = coordinators[decided].Release(self, false)
		}
		return -1, &KillError{Reason: reason}
	}
	return decided, nil
}

// newDeadlineCoordinator returns a Coordinator that starts held (so a
// CoordinateWith call enrolls on it instead of winning it immediately)
// and releases its single FIFO waiter, via a direct switch, once d
// elapses on coop's Ticker. The returned cancel func disarms the
// underlying timer and must be called once the coordinator is no longer
// needed, whether or not it fired.
func newDeadlineCoordinator(coop *Cooperator, d time.Duration) (*Coordinator, func()) {
	c := NewCoordinator()
	c.held = true
	var fired bool
	timer := coop.ticker.After(d, func() {
		if fired {
			return
		}
		fired = true
		c.held = false
		c.holder = nil
		if w := c.waiters.popFront(); w != nil {
			w.wake(true)
		}
	})
	return c, func() { coop.ticker.Cancel(timer) }
}

// CoordinateWithTimeout is CoordinateWith with an implicit last candidate
// that fires after d elapses. The returned Outcome distinguishes
// winning one of the caller's own coordinators from timing out.
func CoordinateWithTimeout(self *Self, d time.Duration, coordinators ...*Coordinator) (int, Outcome, error) {
	ctx := self.context()
	timeoutCoord, cancel := newDeadlineCoordinator(ctx.coop, d)
	defer cancel()

	all := append(append([]*Coordinator{}, coordinators...), timeoutCoord)
	i, err := CoordinateWith(self, all...)
	if err != nil {
		return -1, Killed, err
	}
	if i == len(coordinators) {
		return -1, TimedOut, nil
	}
	return i, Won, nil
}
