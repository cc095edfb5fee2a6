package coop

import (
	"context"
	"sync"
	"weak"
)

// globalRegistry tracks every non-Detached Cooperator in the process, and
// gates construction of new ones once ShutdownAll has run. It uses weak
// pointers so a Cooperator that
// is dropped by its owner without an explicit Shutdown doesn't keep the
// registry (or the Cooperator itself) alive forever.
//
// A weak-pointer map keyed by an incrementing ID. A process typically
// holds a handful of cooperators at once, so no scavenging scheme is
// needed beyond what weak pointers already give for free.
type globalRegistryT struct {
	mu     sync.Mutex
	data   map[uint64]weak.Pointer[Cooperator]
	nextID uint64
	shut   bool
}

var globalRegistry = &globalRegistryT{
	data:   make(map[uint64]weak.Pointer[Cooperator]),
	nextID: 1,
}

func registerCooperator(c *Cooperator) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	id := globalRegistry.nextID
	globalRegistry.nextID++
	globalRegistry.data[id] = weak.Make(c)
	c.registryID = id
}

func unregisterCooperator(c *Cooperator) {
	if c.registryID == 0 {
		return
	}
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	delete(globalRegistry.data, c.registryID)
}

// Launch constructs and registers a Cooperator, failing with
// [ErrGateShut] if ShutdownAll has been called and ResetGlobalShutdown
// has not since reopened the gate.
func Launch(opts ...Option) (*Cooperator, error) {
	globalRegistry.mu.Lock()
	shut := globalRegistry.shut
	globalRegistry.mu.Unlock()
	if shut {
		return nil, ErrGateShut
	}
	return New(opts...), nil
}

// ShutdownAll shuts down every live, non-Detached Cooperator in the
// process and closes the gate against further Launch calls, until
// ResetGlobalShutdown is called.
func ShutdownAll(ctx context.Context) error {
	globalRegistry.mu.Lock()
	globalRegistry.shut = true
	live := make([]*Cooperator, 0, len(globalRegistry.data))
	for _, wp := range globalRegistry.data {
		if c := wp.Value(); c != nil {
			live = append(live, c)
		}
	}
	globalRegistry.mu.Unlock()

	var firstErr error
	for _, c := range live {
		if err := c.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ResetGlobalShutdown reopens the gate closed by ShutdownAll. Intended
// for tests that call ShutdownAll and then want to construct further
// cooperators in the same process.
func ResetGlobalShutdown() {
	globalRegistry.mu.Lock()
	globalRegistry.shut = false
	globalRegistry.mu.Unlock()
}
