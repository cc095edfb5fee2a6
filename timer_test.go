package coop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTicker_AfterFiresOnAdvance(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }
	ticker := newTicker(8, time.Millisecond, clock)

	var fired bool
	ticker.After(5*time.Millisecond, func() { fired = true })

	now = now.Add(time.Millisecond)
	for _, fn := range ticker.Advance() {
		fn()
	}
	assert.False(t, fired, "timer should not fire before its deadline")

	now = now.Add(10 * time.Millisecond)
	for _, fn := range ticker.Advance() {
		fn()
	}
	assert.True(t, fired)
}

func TestTicker_CancelPreventsFire(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }
	ticker := newTicker(8, time.Millisecond, clock)

	var fired bool
	id := ticker.After(5*time.Millisecond, func() { fired = true })
	ticker.Cancel(id)

	now = now.Add(10 * time.Millisecond)
	for _, fn := range ticker.Advance() {
		fn()
	}
	assert.False(t, fired)
}

func TestTicker_CancelUnknownIDIsNoop(t *testing.T) {
	ticker := newTicker(8, time.Millisecond, time.Now)
	assert.NotPanics(t, func() { ticker.Cancel(999) })
}

func TestTicker_NextDeadlineIgnoresCanceled(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }
	ticker := newTicker(8, time.Millisecond, clock)

	id := ticker.After(5*time.Millisecond, func() {})
	ticker.Cancel(id)

	_, ok := ticker.NextDeadline()
	assert.False(t, ok)
}

func TestTicker_NextDeadlineReturnsEarliest(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }
	ticker := newTicker(8, time.Millisecond, clock)

	ticker.After(50*time.Millisecond, func() {})
	ticker.After(5*time.Millisecond, func() {})
	ticker.After(500*time.Millisecond, func() {})

	deadline, ok := ticker.NextDeadline()
	assert.True(t, ok)
	assert.Equal(t, now.Add(5*time.Millisecond), deadline)
}

func TestTicker_LenTracksLiveTimers(t *testing.T) {
	ticker := newTicker(8, time.Millisecond, time.Now)
	assert.Equal(t, 0, ticker.Len())

	id1 := ticker.After(time.Millisecond, func() {})
	ticker.After(time.Millisecond, func() {})
	assert.Equal(t, 2, ticker.Len())

	ticker.Cancel(id1)
	assert.Equal(t, 1, ticker.Len())
}

func TestTicker_CascadesAcrossBuckets(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }
	ticker := newTicker(4, time.Millisecond, clock)

	var fired bool
	ticker.After(100*time.Millisecond, func() { fired = true })

	for i := 0; i < 20; i++ {
		now = now.Add(10 * time.Millisecond)
		for _, fn := range ticker.Advance() {
			fn()
		}
	}
	assert.True(t, fired)
}

func TestBucketIndex_NonPositiveDeltaIsBucketZero(t *testing.T) {
	assert.Equal(t, 0, bucketIndex(0, time.Millisecond, 8))
	assert.Equal(t, 0, bucketIndex(-time.Second, time.Millisecond, 8))
}

func TestBucketIndex_ClampsToLastBucket(t *testing.T) {
	idx := bucketIndex(time.Hour, time.Millisecond, 4)
	assert.Equal(t, 3, idx)
}
