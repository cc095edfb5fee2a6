package coop

import (
	"math/bits"
	"time"
)

// Ticker is a hierarchical timer wheel. It holds B buckets; a
// pending timer with delay d is filed into bucket floor(log2(d/R)),
// where R is the wheel's base range. As time advances, entries cascade
// down into finer buckets until they land in bucket 0 and fire, giving
// amortized near-O(1) insert and advance for the common case of many
// timers with similar, modest delays.
//
// Ticker is confined to the owning Cooperator's goroutine, like the
// run queue and waiter lists.
type Ticker struct {
	base    time.Duration
	buckets [][]*timerEntry
	now     func() time.Time
	nextID  uint64
	index   map[uint64]int
}

type timerEntry struct {
	id       uint64
	deadline time.Time
	fn       func()
	canceled bool
}

func newTicker(bucketCount int, base time.Duration, now func() time.Time) *Ticker {
	if bucketCount < 1 {
		bucketCount = 1
	}
	if base <= 0 {
		base = time.Millisecond
	}
	return &Ticker{
		base:    base,
		buckets: make([][]*timerEntry, bucketCount),
		now:     now,
		index:   make(map[uint64]int),
	}
}

func bucketIndex(delta, base time.Duration, numBuckets int) int {
	if delta <= 0 {
		return 0
	}
	ticks := int64(delta / base)
	if ticks < 1 {
		ticks = 1
	}
	idx := bits.Len64(uint64(ticks)) - 1
	if idx >= numBuckets {
		idx = numBuckets - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// After schedules fn to run after d elapses, returning a timer ID usable
// with Cancel.
func (t *Ticker) After(d time.Duration, fn func()) uint64 {
	t.nextID++
	id := t.nextID
	e := &timerEntry{id: id, deadline: t.now().Add(d), fn: fn}
	idx := bucketIndex(d, t.base, len(t.buckets))
	t.buckets[idx] = append(t.buckets[idx], e)
	t.index[id] = idx
	return id
}

// Cancel prevents a previously scheduled timer from firing. A no-op if
// the timer already fired or was already canceled.
func (t *Ticker) Cancel(id uint64) {
	idx, ok := t.index[id]
	if !ok {
		return
	}
	for _, e := range t.buckets[idx] {
		if e.id == id {
			e.canceled = true
			break
		}
	}
	delete(t.index, id)
}

// Advance cascades entries toward finer buckets as their remaining delay
// shrinks, and collects the callbacks for any whose deadline has passed.
// Called once per cooperator tick.
func (t *Ticker) Advance() []func() {
	now := t.now()
	var fire []func()
	for b := 0; b < len(t.buckets); b++ {
		src := t.buckets[b]
		if len(src) == 0 {
			continue
		}
		kept := src[:0]
		for _, e := range src {
			if e.canceled {
				continue
			}
			remaining := e.deadline.Sub(now)
			if remaining <= 0 {
				fire = append(fire, e.fn)
				delete(t.index, e.id)
				continue
			}
			newIdx := bucketIndex(remaining, t.base, len(t.buckets))
			if newIdx != b {
				t.buckets[newIdx] = append(t.buckets[newIdx], e)
				t.index[e.id] = newIdx
				continue
			}
			kept = append(kept, e)
		}
		t.buckets[b] = kept
	}
	return fire
}

// NextDeadline returns the earliest pending timer deadline, used by the
// cooperator to bound its poll timeout when the run queue is empty.
func (t *Ticker) NextDeadline() (time.Time, bool) {
	var min time.Time
	found := false
	for _, bucket := range t.buckets {
		for _, e := range bucket {
			if e.canceled {
				continue
			}
			if !found || e.deadline.Before(min) {
				min = e.deadline
				found = true
			}
		}
	}
	return min, found
}

// Len reports the number of live (non-canceled, unfired) timers.
func (t *Ticker) Len() int {
	return len(t.index)
}
