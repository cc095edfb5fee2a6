package coop

import "time"

// Sleep blocks the calling context until d elapses — unlike
// [Cooperator.ScheduleTimer], which spawns a new Context on fire, Sleep
// parks the calling context
// itself. Returns Won once d has elapsed, or Killed (with a non-nil
// *KillError) if the context is killed first.
func Sleep(self *Self, d time.Duration) (Outcome, error) {
	ctx := self.context()

	if killed, reason := ctx.isKilled(); killed {
		return Killed, &KillError{Reason: reason}
	}

	deadline, cancel := newDeadlineCoordinator(ctx.coop, d)
	defer cancel()

	if err := deadline.Acquire(self); err != nil {
		return Killed, err
	}
	return Won, nil
}
