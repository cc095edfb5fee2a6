// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package coop

import (
	"time"

	catrate "github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// config holds the resolved configuration for a Cooperator.
type config struct {
	ringEntries       uint32
	submissionQueueCap int
	stackPoolMin      int
	stackPoolMax      int
	wheelBuckets      int
	wheelRange        time.Duration
	logger            *logiface.Logger[*stumpy.Event]
	clock             func() time.Time
	onOverload        func(error)
	overloadLimiter   *catrate.Limiter
	detached          bool
	metricsEnabled    bool
}

// Option configures a Cooperator at construction time.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

// WithRingEntries sets the submission/completion ring size for the async
// I/O layer (Linux: the io_uring queue depth). Defaults to 256.
func WithRingEntries(n uint32) Option {
	return optionFunc(func(c *config) { c.ringEntries = n })
}

// WithSubmissionQueueCapacity sets the bounded capacity of the
// cross-thread submission queue. Defaults to 4096.
func WithSubmissionQueueCapacity(n int) Option {
	return optionFunc(func(c *config) { c.submissionQueueCap = n })
}

// WithStackPoolClasses sets the min/max size-class bounds (in bytes) of
// the context stack pool. Requests below min use the min class;
// requests above max bypass the pool. Defaults to 4 KiB..128 KiB.
func WithStackPoolClasses(min, max int) Option {
	return optionFunc(func(c *config) {
		c.stackPoolMin = min
		c.stackPoolMax = max
	})
}

// WithTickerShape sets the hierarchical timer wheel's bucket count B and
// per-bucket time range R. Defaults to 32 buckets, 1ms base range.
func WithTickerShape(buckets int, baseRange time.Duration) Option {
	return optionFunc(func(c *config) {
		c.wheelBuckets = buckets
		c.wheelRange = baseRange
	})
}

// WithLogger injects a structured logger. Defaults to a stderr JSON
// logger at Info level (see logging.go).
func WithLogger(l *logiface.Logger[*stumpy.Event]) Option {
	return optionFunc(func(c *config) { c.logger = l })
}

// WithClock overrides the cooperator's time source, for deterministic
// testing of the timer wheel.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(c *config) { c.clock = now })
}

// WithOverloadHandler registers a callback invoked when a push onto the
// cross-thread submission queue fails, rate-limited so a sustained overload
// condition doesn't itself flood the caller. Window defaults to one
// second if rate is nil.
func WithOverloadHandler(fn func(error), rate *catrate.Limiter) Option {
	return optionFunc(func(c *config) {
		c.onOverload = fn
		c.overloadLimiter = rate
	})
}

// WithMetrics enables recording of per-tick latency and queue-depth
// statistics, retrievable via
// Cooperator.Metrics. Disabled by default; when disabled,
// Cooperator.Metrics returns a zero Metrics.
func WithMetrics(enabled bool) Option {
	return optionFunc(func(c *config) { c.metricsEnabled = enabled })
}

// Detached excludes the Cooperator from the process-wide registry,
// so it is unaffected by ShutdownAll/ResetGlobalShutdown. Intended for
// tests that construct many short-lived cooperators.
func Detached() Option {
	return optionFunc(func(c *config) { c.detached = true })
}

func resolveConfig(opts []Option) *config {
	c := &config{
		ringEntries:        256,
		submissionQueueCap: 4096,
		stackPoolMin:       minStackClass,
		stackPoolMax:       maxPooledStackClass,
		wheelBuckets:       32,
		wheelRange:         time.Millisecond,
		clock:              time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(c)
	}
	if c.logger == nil {
		c.logger = defaultLogger()
	}
	if c.overloadLimiter == nil {
		c.overloadLimiter = catrate.NewLimiter(map[time.Duration]int{time.Second: 1})
	}
	return c
}
