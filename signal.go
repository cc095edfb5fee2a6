package coop

import "time"

// Signal is a one-shot broadcast: once fired, every context
// currently waiting on it — and every context that calls Wait afterward —
// proceeds immediately. Unlike a [Coordinator], which hands off to
// exactly one waiter per release, firing a Signal releases all of them
// at once.
//
// Waiters block through the cooperator's own waiter-list/baton
// machinery rather than an inline handler callback, so a handler that
// itself blocks doesn't violate the "only one context runs at a time"
// invariant the rest of this package relies on.
type Signal struct {
	fired   bool
	reason  any
	waiters waiterList
}

// NewSignal returns an unfired Signal.
func NewSignal() *Signal {
	return &Signal{}
}

// Fired reports whether Fire has been called, and with what reason.
func (s *Signal) Fired() (bool, any) {
	return s.fired, s.reason
}

// Wait blocks the calling context until the signal fires, returning
// immediately (nil error) if it has already fired. Returns a non-nil
// *KillError if the context is killed before or while waiting.
func (s *Signal) Wait(self *Self) error {
	ctx := self.context()

	if killed, reason := ctx.isKilled(); killed {
		return &KillError{Reason: reason}
	}
	if s.fired {
		return nil
	}

	ctx.blockOn(&s.waiters, func(schedule bool) {
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

// Fire fires the signal with reason, releasing every currently-blocked
// waiter. Returns false if the signal had already fired (a no-op — the
// first reason sticks).
//
// schedule has the same meaning as [Coordinator.Release]'s: true direct-
// switches into each waiter in turn as it is released, so all of them
// run before Fire returns; false only re-enqueues them.
func (s *Signal) Fire(reason any, schedule bool) bool {
	if s.fired {
		return false
	}
	s.fired = true
	s.reason = reason
	for {
		w := s.waiters.popFront()
		if w == nil {
			break
		}
		w.wake(schedule)
	}
	return true
}

// AfterDuration returns a Signal that fires automatically, with a nil
// reason, once d elapses on the cooperator's Ticker. Must be called from
// the cooperator's own goroutine (typically from within a context's
// entry function).
func AfterDuration(coop *Cooperator, d time.Duration) *Signal {
	s := NewSignal()
	coop.ticker.After(d, func() {
		s.Fire(nil, false)
	})
	return s
}

// SignalAny returns a composite Signal that fires, with the reason of
// whichever source fired first, as soon as any of signals fires.
func SignalAny(coop *Cooperator, signals ...*Signal) (*Signal, error) {
	composite := NewSignal()
	for _, s := range signals {
		if fired, reason := s.Fired(); fired {
			composite.Fire(reason, false)
			return composite, nil
		}
	}
	for _, s := range signals {
		s := s
		if _, err := coop.Spawn(nil, func(self *Self) {
			if err := s.Wait(self); err != nil {
				return
			}
			_, reason := s.Fired()
			composite.Fire(reason, false)
		}); err != nil {
			return nil, err
		}
	}
	return composite, nil
}
