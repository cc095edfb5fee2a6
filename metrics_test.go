package coop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatencyMetrics_SampleComputesPercentilesExactlyForSmallCounts(t *testing.T) {
	var l LatencyMetrics
	for _, d := range []time.Duration{10, 20, 30, 40} {
		l.Record(d * time.Millisecond)
	}
	n := l.Sample()
	assert.Equal(t, 4, n)
	assert.Equal(t, 40*time.Millisecond, l.Max)
}

func TestLatencyMetrics_SampleZeroWhenEmpty(t *testing.T) {
	var l LatencyMetrics
	assert.Equal(t, 0, l.Sample())
}

func TestQueueMetrics_UpdateSubmissionTracksMaxAndCurrent(t *testing.T) {
	var q QueueMetrics
	q.UpdateSubmission(5)
	q.UpdateSubmission(2)
	q.UpdateSubmission(9)

	assert.Equal(t, 9, q.SubmissionCurrent)
	assert.Equal(t, 9, q.SubmissionMax)
}

func TestQueueMetrics_EMAWarmstartsToFirstValue(t *testing.T) {
	var q QueueMetrics
	q.UpdateRunQueue(100)
	assert.InDelta(t, 100.0, q.RunQueueAvg, 0.0001)
}

func TestTPSCounter_ZeroBeforeAnyIncrement(t *testing.T) {
	c := NewTPSCounter(time.Second, 100*time.Millisecond)
	assert.Equal(t, float64(0), c.TPS())
}

func TestTPSCounter_IncrementRaisesTPS(t *testing.T) {
	c := NewTPSCounter(time.Second, 100*time.Millisecond)
	for i := 0; i < 10; i++ {
		c.Increment()
	}
	assert.Positive(t, c.TPS())
}

func TestTPSCounter_PanicsOnNonPositiveWindow(t *testing.T) {
	assert.Panics(t, func() { NewTPSCounter(0, time.Millisecond) })
}

func TestTPSCounter_PanicsOnNonPositiveBucket(t *testing.T) {
	assert.Panics(t, func() { NewTPSCounter(time.Second, 0) })
}

func TestTPSCounter_PanicsWhenBucketExceedsWindow(t *testing.T) {
	assert.Panics(t, func() { NewTPSCounter(time.Second, 2*time.Second) })
}
