package coop

import "sync/atomic"

// Context is a single execution unit: an independent flow of control with
// its own logical stack, multiplexed cooperatively onto its owning
// Cooperator's single OS thread.
//
// A Context never touches its baton channels directly; it interacts with
// the scheduler exclusively through the [Self] handed to its entry
// function.
type Context struct {
	id         uint64
	coop       *Cooperator
	baton      *baton
	state      *fastState
	entry      func(*Self)
	self       *Self
	stackHint  int
	waiter     waiterNode
	activeWaiters []*waiterNode
	killed     atomic.Bool
	killReason any
	exited     atomic.Bool
	panicErr   error

	// parent and children form the intrusive tree a cascading kill walks:
	// every transitive descendant of a killed context observes IsKilled
	// before that context's own await-resumption code runs. parent is
	// nil for a root-level
	// Context (spawned with no caller *Self), and children records every
	// Context spawned with this one as caller, so Handle.Kill can recurse
	// into them before marking this Context killed.
	parent   *Context
	children map[*Context]struct{}
}

func newContext(coop *Cooperator, id uint64, entry func(*Self), stackHint int) *Context {
	c := &Context{
		id:    id,
		coop:  coop,
		baton: newBaton(),
	}
	c.reset(id, entry, stackHint)
	go c.run()
	return c
}

// reset restores a pooled Context shell to a fresh, unstarted state
// before its goroutine is (re)launched.
func (c *Context) reset(id uint64, entry func(*Self), stackHint int) {
	c.id = id
	c.entry = entry
	c.stackHint = stackHint
	c.state = newContextState(ContextYielded)
	c.self = &Self{ctx: c}
	c.waiter = waiterNode{}
	c.activeWaiters = nil
	c.killed.Store(false)
	c.killReason = nil
	c.exited.Store(false)
	c.panicErr = nil
	c.parent = nil
	c.children = make(map[*Context]struct{})
}

// run is the trampoline executed by the Context's dedicated goroutine. It
// parks immediately on the baton's resume channel, equivalent in effect
// to the reference design's synthesized first-entry stack frame, then
// invokes the entry function once the cooperator performs the first
// switch.
func (c *Context) run() {
	c.baton.awaitResume()
	defer func() {
		if r := recover(); r != nil {
			c.panicErr = PanicError{Value: r}
		}
		c.exited.Store(true)
		c.state.Store(uint64(ContextRunning))
		c.baton.switchOut(batonExit)
	}()
	c.entry(c.self)
}

// resumeInto hands the CPU to this context and blocks until it yields,
// blocks, or exits. Called only from the cooperator's own goroutine.
func (c *Context) resumeInto() (batonReason, error) {
	c.state.Store(uint64(ContextRunning))
	reason := c.baton.switchIn()
	return reason, c.panicErr
}

// yield voluntarily returns control to the cooperator, re-joining the run
// queue. Called only from within the context's own entry function (via
// [Self.Yield]).
func (c *Context) yield() {
	c.state.Store(uint64(ContextYielded))
	c.baton.switchOut(batonYield)
	c.baton.awaitResume()
	c.state.Store(uint64(ContextRunning))
}

// blockOn enqueues this context's waiter node onto list and parks until
// released. Called only from within the context's own entry function.
func (c *Context) blockOn(list *waiterList, wake func(schedule bool)) {
	c.waiter = waiterNode{ctx: c, wake: wake}
	c.activeWaiters = c.activeWaiters[:0]
	c.activeWaiters = append(c.activeWaiters, &c.waiter)
	list.pushBack(&c.waiter)
	c.park()
}

// blockOnMany is the Multi-coordinator realization of blockOn: it parks
// the context with several waiter nodes simultaneously enrolled (one per
// candidate coordinator), recording them so a concurrent kill can roll
// all of them back.
func (c *Context) blockOnMany(nodes []*waiterNode) {
	c.activeWaiters = append(c.activeWaiters[:0], nodes...)
	c.park()
}

// park performs the actual baton handoff shared by blockOn and
// blockOnMany.
func (c *Context) park() {
	c.state.Store(uint64(ContextBlocked))
	c.baton.switchOut(batonBlock)
	c.baton.awaitResume()
	c.state.Store(uint64(ContextRunning))
}

// kill marks the context killed with reason, returning false if it was
// already killed. Called only from the cooperator's own goroutine (via a
// Handle.Kill dispatched through Submit).
func (c *Context) kill(reason any) bool {
	if !c.killed.CompareAndSwap(false, true) {
		return false
	}
	c.killReason = reason
	return true
}

// killCascade kills c and every transitively reachable child, deepest
// descendants first, so no child can observe its own kill flag still
// false once an ancestor has decided the whole subtree is being torn
// down. Called for Handle.Kill, via submitLoopThreadFunc, either on the
// cooperator's own goroutine or inside the relay context it spawns; the
// shutdown sweep calls kill on each context instead and does not cascade.
func (c *Context) killCascade(reason any) {
	for child := range c.children {
		child.killCascade(reason)
	}
	if !c.kill(reason) {
		return
	}
	if c.State() == ContextBlocked {
		c.coop.wakeBlockedContext(c)
	}
}

// isKilled reports whether kill has been called, and with what reason.
func (c *Context) isKilled() (bool, any) {
	return c.killed.Load(), c.killReason
}

// State returns the context's current lifecycle state.
func (c *Context) State() ContextState {
	return c.state.contextState()
}

// ID returns the context's scheduler-assigned identifier, stable for its
// lifetime (a pooled shell receives a new ID on reuse).
func (c *Context) ID() uint64 { return c.id }
