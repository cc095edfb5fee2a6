package coop

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

var cooperatorIDCounter atomic.Uint64

// Cooperator is the user-space scheduler that multiplexes many Contexts
// onto one OS thread. At most one Context runs at a time; the
// Cooperator's own goroutine is the only thing that ever touches the run
// queue, the waiter lists threaded through its Coordinators/Signals, or
// the Ticker, except during the brief windows where a running Context's
// own code does so while holding the baton.
//
// The overall New/Run/Shutdown shape, the reentrant-run guard, and the
// cross-thread wakeup scheme are the same a single-threaded event loop
// confined to one goroutine always needs; this runtime has no
// microtask queue or promise machinery, since nothing in its scope
// calls for one.
type Cooperator struct {
	id         uint64
	registryID uint64
	cfg        *config

	state *fastState

	runQueue []*Context
	runHead  int

	ticker    *Ticker
	stackPool *stackPool

	submission *submissionQueue

	ring asyncRing

	loopGoroutineID atomic.Uint64
	nextContextID   atomic.Uint64

	// liveContexts tracks every spawned Context that has not yet exited,
	// keyed by its scheduler-assigned ID, so the shutdown sweep can
	// find and kill contexts parked on a Coordinator/Signal waiter list
	// that drainOnce's queue/submission/timer/ring counters can't see.
	// Mutated only from the cooperator's own goroutine.
	liveContexts map[uint64]*Context
	// shutdownSwept marks that the one-shot shutdown sweep has already
	// run, so Run's main loop doesn't spawn it more than once.
	shutdownSwept bool

	runDone chan struct{}
	stopOnce sync.Once

	overloadMu sync.Mutex

	diagnostics *Metrics
	tpsCounter  *TPSCounter
}

// New constructs a Cooperator. It does not start running until Run is
// called.
func New(opts ...Option) *Cooperator {
	cfg := resolveConfig(opts)
	c := &Cooperator{
		id:           cooperatorIDCounter.Add(1),
		cfg:          cfg,
		state:        newCooperatorState(),
		stackPool:    newStackPool(cfg.stackPoolMin, cfg.stackPoolMax),
		submission:   newSubmissionQueue(cfg.submissionQueueCap),
		liveContexts: make(map[uint64]*Context),
		runDone:      make(chan struct{}),
	}
	c.ticker = newTicker(cfg.wheelBuckets, cfg.wheelRange, cfg.clock)
	c.ring = newAsyncRing(cfg.ringEntries)
	if cfg.metricsEnabled {
		c.diagnostics = &Metrics{}
		c.tpsCounter = NewTPSCounter(10*time.Second, 100*time.Millisecond)
	}
	if !cfg.detached {
		registerCooperator(c)
	}
	return c
}

// Run runs the cooperator and blocks until it terminates, via Shutdown or
// ctx cancellation. To run it on a background goroutine, call
// `go c.Run(ctx)`.
func (c *Cooperator) Run(ctx context.Context) error {
	if c.isLoopThread() {
		return ErrReentrantRun
	}
	if !c.state.TryTransition(uint64(StateAwake), uint64(StateRunning)) {
		st := c.state.cooperatorState()
		if st == StateTerminated {
			return ErrShutdown
		}
		// A Shutdown that arrived before any Run moved Awake straight to
		// Terminating; the first Run still drives the shutdown drain.
		if st != StateTerminating {
			return ErrAlreadyRunning
		}
	}
	if !c.loopGoroutineID.CompareAndSwap(0, goroutineID()) {
		return ErrAlreadyRunning
	}
	defer close(c.runDone)
	defer c.loopGoroutineID.Store(0)

	logLifecycle(c.cfg.logger, "cooperator.start", map[string]any{"id": c.id})

	ctxDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.ring.Wake()
		case <-ctxDone:
		}
	}()
	defer close(ctxDone)

	var osThreadLocked bool
	defer func() {
		if osThreadLocked {
			runtime.UnlockOSThread()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			c.beginShutdown()
			c.runShutdownSweep()
			c.tick()
			c.drainToTerminated()
			return ctx.Err()
		default:
		}

		st := c.state.cooperatorState()
		if st == StateTerminating {
			c.runShutdownSweep()
			if c.drainOnce() {
				c.drainToTerminated()
				return nil
			}
		} else if st == StateTerminated {
			return nil
		}

		if !osThreadLocked && (c.ring != nil) {
			runtime.LockOSThread()
			osThreadLocked = true
		}

		c.tick()
	}
}

// beginShutdown transitions Awake/Running/Sleeping to Terminating.
func (c *Cooperator) beginShutdown() {
	for {
		cur := c.state.cooperatorState()
		if cur == StateTerminating || cur == StateTerminated {
			return
		}
		if c.state.TryTransition(uint64(cur), uint64(StateTerminating)) {
			c.ring.Wake()
			return
		}
	}
}

// drainOnce runs one more tick of pending work and reports whether the
// cooperator is now fully idle (no runnable contexts, no pending
// submissions, no pending timers, no in-flight I/O) and may terminate.
func (c *Cooperator) drainOnce() bool {
	c.tick()
	return len(c.runQueue)-c.runHead == 0 && c.submission.Len() == 0 && c.ticker.Len() == 0 && c.ring.Pending() == 0
}

func (c *Cooperator) drainToTerminated() {
	c.state.Store(uint64(StateTerminated))
	c.ring.Close()
	unregisterCooperator(c)
	logLifecycle(c.cfg.logger, "cooperator.terminated", map[string]any{"id": c.id})
}

// Shutdown requests graceful termination and blocks until it completes
// or ctx expires.
func (c *Cooperator) Shutdown(ctx context.Context) error {
	c.stopOnce.Do(c.beginShutdown)
	select {
	case <-c.runDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tick performs one scheduling pass: drain cross-thread submissions,
// advance the timer wheel, run every currently-runnable context once,
// then poll for I/O completions (blocking, bounded by the next timer
// deadline, if the run queue is empty).
func (c *Cooperator) tick() {
	var start time.Time
	if c.diagnostics != nil {
		start = c.cfg.clock()
	}

	c.drainSubmissions()

	for _, fn := range c.ticker.Advance() {
		fn()
	}

	c.runRunnable()

	if c.runQueueEmpty() {
		timeout := c.pollTimeout()
		c.state.TryTransition(uint64(StateRunning), uint64(StateSleeping))
		events := c.ring.PollCompletions(timeout)
		c.state.TryTransition(uint64(StateSleeping), uint64(StateRunning))
		for _, ev := range events {
			ev.dispatch()
		}
	}

	if c.diagnostics != nil {
		c.diagnostics.Latency.Record(c.cfg.clock().Sub(start))
		c.diagnostics.Queue.UpdateSubmission(c.submission.Len())
		c.diagnostics.Queue.UpdateRunQueue(len(c.runQueue) - c.runHead)
		c.diagnostics.Queue.UpdateRing(c.ring.Pending())
		c.tpsCounter.Increment()
		c.diagnostics.mu.Lock()
		c.diagnostics.TPS = c.tpsCounter.TPS()
		c.diagnostics.mu.Unlock()
	}
}

// Metrics returns a snapshot of the cooperator's runtime statistics.
// Returns a zero Metrics if WithMetrics(true) was not passed to New.
// Safe to call from any goroutine.
func (c *Cooperator) Metrics() Metrics {
	if c.diagnostics == nil {
		return Metrics{}
	}
	c.diagnostics.mu.Lock()
	tps := c.diagnostics.TPS
	c.diagnostics.mu.Unlock()
	return Metrics{
		Latency: c.diagnostics.Latency,
		Queue:   c.diagnostics.Queue,
		TPS:     tps,
	}
}

func (c *Cooperator) pollTimeout() time.Duration {
	deadline, ok := c.ticker.NextDeadline()
	if !ok {
		if c.submission.Len() > 0 {
			return 0
		}
		return 50 * time.Millisecond
	}
	d := time.Until(deadline)
	if d < 0 {
		return 0
	}
	return d
}

func (c *Cooperator) runQueueEmpty() bool {
	return len(c.runQueue)-c.runHead == 0
}

// drainSubmissions moves cross-thread submitted work onto the run queue
// by spawning a fresh Context for each.
func (c *Cooperator) drainSubmissions() {
	var tmp chunkedQueue
	n := c.submission.drain(&tmp)
	for i := 0; i < n; i++ {
		fn, ok := tmp.pop()
		if !ok {
			break
		}
		c.spawnLocal(fn, 0)
	}
}

// runRunnable resumes every context currently in the run queue exactly
// once, in FIFO order.
func (c *Cooperator) runRunnable() {
	n := len(c.runQueue) - c.runHead
	for i := 0; i < n; i++ {
		ctx := c.runQueue[c.runHead]
		c.runQueue[c.runHead] = nil
		c.runHead++
		c.switchDirect(ctx)
	}
	c.compactRunQueue()
}

// switchDirect resumes ctx and applies the effect of whatever batonReason
// it hands back: re-enqueueing on yield, leaving it parked on block, or
// finalizing its exit. This is the one place a context switch actually
// happens, so it doubles as the mechanism behind a schedule=true wake:
// a wake closure installed with schedule=true calls this
// directly instead of merely re-enqueueing, making the unblocked context
// run to its next suspension point before the releaser's own call
// returns.
func (c *Cooperator) switchDirect(ctx *Context) {
	reason, panicErr := ctx.resumeInto()
	switch reason {
	case batonYield:
		c.enqueueRunnable(ctx)
	case batonBlock:
		// Already linked into whatever waiter list the context's own
		// code enrolled it on; nothing further to do here.
	case batonExit:
		c.finalizeExit(ctx, panicErr)
	}
}

// finalizeExit releases every resource a Context holds purely by virtue
// of having been live: its slot in the shutdown-sweep registry, its
// parent's reference to it as a child, and (last) its stack-pool slot.
func (c *Cooperator) finalizeExit(ctx *Context, panicErr error) {
	if panicErr != nil {
		logPanic(c.cfg.logger, ctx.id, panicErr)
	}
	delete(c.liveContexts, ctx.id)
	if ctx.parent != nil {
		delete(ctx.parent.children, ctx)
		ctx.parent = nil
	}
	c.stackPool.put(ctx, ctx.stackHint)
}

// runShutdownSweep spawns a short-lived context, once per Cooperator
// lifetime, that kills every other live context. Without this, a
// context parked on a Coordinator or Signal that
// nobody will ever release is invisible to drainOnce's run-queue/
// submission/timer/ring counters, and Shutdown/Run would return while
// its goroutine and baton channels are permanently leaked.
func (c *Cooperator) runShutdownSweep() {
	if c.shutdownSwept {
		return
	}
	c.shutdownSwept = true
	c.spawnLocal(func(self *Self) {
		me := self.context()
		for _, victim := range c.liveContexts {
			if victim == me {
				continue
			}
			if !victim.kill(ErrShutdown) {
				continue
			}
			if victim.State() == ContextBlocked {
				c.wakeBlockedContext(victim)
			}
		}
	}, 0)
}

func (c *Cooperator) compactRunQueue() {
	if c.runHead == 0 {
		return
	}
	if c.runHead == len(c.runQueue) {
		c.runQueue = c.runQueue[:0]
		c.runHead = 0
		return
	}
	if c.runHead > 1024 && c.runHead*2 > len(c.runQueue) {
		c.runQueue = append(c.runQueue[:0], c.runQueue[c.runHead:]...)
		c.runHead = 0
	}
}

// enqueueRunnable appends ctx to the tail of the run queue and marks it
// Yielded. Called from the cooperator's own goroutine, or from a
// context's own goroutine while it holds the baton.
func (c *Cooperator) enqueueRunnable(ctx *Context) {
	ctx.state.Store(uint64(ContextYielded))
	c.runQueue = append(c.runQueue, ctx)
}

// wakeBlockedContext forcibly removes ctx from whatever waiter list(s) it
// is currently enrolled on and re-enqueues it, for the Kill path.
func (c *Cooperator) wakeBlockedContext(ctx *Context) {
	for _, n := range ctx.activeWaiters {
		if n.list != nil {
			n.list.remove(n)
		}
	}
	ctx.activeWaiters = nil
	c.enqueueRunnable(ctx)
}

func (c *Cooperator) spawnLocal(entry func(*Self), stackHint int) *Context {
	id := c.nextContextID.Add(1)
	ctx := c.stackPool.get(stackHint)
	if ctx != nil {
		ctx.reset(id, entry, stackHint)
		ctx.coop = c
		go ctx.run()
	} else {
		ctx = newContext(c, id, entry, stackHint)
	}
	c.liveContexts[ctx.id] = ctx
	c.enqueueRunnable(ctx)
	return ctx
}

// Spawn creates a new Context running entry, parented to caller when
// caller is non-nil, returning a Handle to it. Fails with ErrKilled if
// caller is non-nil and already killed: a killed context cannot spawn
// children. Pass nil for an external or root-level spawn with no parent.
//
// Safe to call from any goroutine; when called off the cooperator's own
// goroutine (which implies caller is nil, since a *Self is confined to
// its own context's goroutine), the spawn is relayed through the bounded
// cross-thread submission queue.
func (c *Cooperator) Spawn(caller *Self, entry func(*Self)) (Handle, error) {
	return c.spawnWithStackHint(caller, entry, 0)
}

// SpawnSized is Spawn with an explicit stack-size hint, consulted by the
// stack pool.
func (c *Cooperator) SpawnSized(caller *Self, entry func(*Self), stackHint int) (Handle, error) {
	return c.spawnWithStackHint(caller, entry, stackHint)
}

func (c *Cooperator) spawnWithStackHint(caller *Self, entry func(*Self), stackHint int) (Handle, error) {
	var parent *Context
	if caller != nil {
		parent = caller.context()
		if killed, _ := parent.isKilled(); killed {
			return Handle{}, ErrKilled
		}
	}
	if !c.state.CanAcceptWork() {
		return Handle{}, ErrShutdown
	}
	// A non-nil caller is only ever reachable from within that context's
	// own entry function, which only runs while it holds the baton — the
	// same "may mutate cooperator-owned state directly" exception the run
	// queue itself relies on — so it spawns synchronously regardless
	// of which goroutine happens to be executing it.
	if caller != nil || c.isLoopThread() {
		ctx := c.spawnLocal(entry, stackHint)
		if parent != nil {
			ctx.parent = parent
			parent.children[ctx] = struct{}{}
		}
		return Handle{ctx: ctx}, nil
	}
	// Off the loop goroutine the Context is built here, so the Handle is
	// real at once; a relay task registers it, starts its goroutine and
	// queues it once the cooperator drains the submission queue.
	ctx := &Context{coop: c, baton: newBaton()}
	ctx.reset(c.nextContextID.Add(1), entry, stackHint)
	if !c.submission.tryPush(func(*Self) {
		go ctx.run()
		c.liveContexts[ctx.id] = ctx
		c.enqueueRunnable(ctx)
	}) {
		c.reportOverload(ErrShutdown)
		return Handle{}, ErrShutdown
	}
	c.ring.Wake()
	return Handle{ctx: ctx}, nil
}

// Submit schedules fn to run, as its own root-level Context, on the
// cooperator. Equivalent to Spawn(nil, fn); kept as a distinct name for
// the cross-thread fire-and-forget case where the caller has no use for
// the resulting Handle.
func (c *Cooperator) Submit(fn func(*Self)) error {
	_, err := c.Spawn(nil, fn)
	return err
}

// submitLoopThreadFunc runs fn inline when called on the cooperator's own
// goroutine; otherwise it queues fn through the cross-thread submission
// queue, where it runs inside a fresh root-level Context (used internally
// by Handle.Kill).
func (c *Cooperator) submitLoopThreadFunc(fn func()) error {
	if !c.state.CanAcceptWork() {
		return ErrShutdown
	}
	if c.isLoopThread() {
		fn()
		return nil
	}
	if !c.submission.tryPush(func(*Self) { fn() }) {
		c.reportOverload(ErrShutdown)
		return ErrShutdown
	}
	c.ring.Wake()
	return nil
}

func (c *Cooperator) reportOverload(err error) {
	if c.cfg.onOverload == nil {
		return
	}
	c.overloadMu.Lock()
	defer c.overloadMu.Unlock()
	if _, ok := c.cfg.overloadLimiter.Allow("submission-queue"); ok {
		c.cfg.onOverload(err)
	}
}

func (c *Cooperator) isLoopThread() bool {
	return c.loopGoroutineID.Load() == goroutineID()
}

// State returns the cooperator's current lifecycle state.
func (c *Cooperator) State() CooperatorState {
	return c.state.cooperatorState()
}

// ScheduleTimer spawns a new Context running fn after d elapses.
func (c *Cooperator) ScheduleTimer(d time.Duration, fn func(*Self)) uint64 {
	return c.ticker.After(d, func() {
		c.spawnLocal(fn, 0)
	})
}

// CancelTimer cancels a pending timer scheduled via ScheduleTimer.
func (c *Cooperator) CancelTimer(id uint64) {
	c.ticker.Cancel(id)
}
