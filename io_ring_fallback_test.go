package coop

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackRing_WriteThenReadRoundTrips(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	ring := newFallbackRing()
	defer ring.Close()

	writeDone := make(chan Result, 1)
	ring.Submit(Op{
		Kind: OpWrite,
		FD:   int32(w.Fd()),
		Buf:  []byte("hello"),
		Callback: func(res Result) {
			writeDone <- res
		},
	})

	evs := ring.PollCompletions(5 * time.Second)
	require.Len(t, evs, 1)
	evs[0].dispatch()

	wres := <-writeDone
	require.NoError(t, wres.Err)
	assert.Equal(t, 5, wres.N)

	buf := make([]byte, 5)
	readDone := make(chan Result, 1)
	ring.Submit(Op{
		Kind: OpRead,
		FD:   int32(r.Fd()),
		Buf:  buf,
		Callback: func(res Result) {
			readDone <- res
		},
	})

	evs = ring.PollCompletions(5 * time.Second)
	require.Len(t, evs, 1)
	evs[0].dispatch()

	rres := <-readDone
	require.NoError(t, rres.Err)
	assert.Equal(t, 5, rres.N)
	assert.Equal(t, "hello", string(buf))
}

func TestFallbackRing_PendingTracksInFlightOps(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	ring := newFallbackRing()
	defer ring.Close()

	assert.Equal(t, 0, ring.Pending())

	done := make(chan struct{})
	ring.Submit(Op{
		Kind: OpWrite,
		FD:   int32(w.Fd()),
		Buf:  []byte("x"),
		Callback: func(Result) {
			close(done)
		},
	})
	assert.Equal(t, 1, ring.Pending())

	evs := ring.PollCompletions(5 * time.Second)
	require.Len(t, evs, 1)
	evs[0].dispatch()
	<-done
	assert.Equal(t, 0, ring.Pending())
}

func TestFallbackRing_PollCompletionsTimesOutWithNoWork(t *testing.T) {
	ring := newFallbackRing()
	defer ring.Close()

	evs := ring.PollCompletions(10 * time.Millisecond)
	assert.Nil(t, evs)
}

func TestFallbackRing_WakeInterruptsPoll(t *testing.T) {
	ring := newFallbackRing()
	defer ring.Close()

	go func() {
		time.Sleep(10 * time.Millisecond)
		ring.Wake()
	}()

	start := time.Now()
	ring.PollCompletions(5 * time.Second)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFallbackRing_RegisterFixedFileReusesFreedIndex(t *testing.T) {
	ring := newFallbackRing()
	defer ring.Close()

	idx1, err := ring.RegisterFixedFile(11)
	require.NoError(t, err)
	idx2, err := ring.RegisterFixedFile(22)
	require.NoError(t, err)
	assert.NotEqual(t, idx1, idx2)

	require.NoError(t, ring.UnregisterFixedFile(idx1))
	idx3, err := ring.RegisterFixedFile(33)
	require.NoError(t, err)
	assert.Equal(t, idx1, idx3, "freed index should be reused")
}

func TestFallbackRing_UnregisterUnknownIndexFails(t *testing.T) {
	ring := newFallbackRing()
	defer ring.Close()
	assert.Error(t, ring.UnregisterFixedFile(42))
}

func TestFallbackRing_FixedOpResolvesToRegisteredFD(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	ring := newFallbackRing()
	defer ring.Close()

	idx, err := ring.RegisterFixedFile(int32(w.Fd()))
	require.NoError(t, err)

	writeDone := make(chan Result, 1)
	ring.Submit(Op{
		Kind:  OpWrite,
		FD:    idx,
		Fixed: true,
		Buf:   []byte("fixed"),
		Callback: func(res Result) {
			writeDone <- res
		},
	})

	evs := ring.PollCompletions(5 * time.Second)
	require.Len(t, evs, 1)
	evs[0].dispatch()

	res := <-writeDone
	require.NoError(t, res.Err)
	assert.Equal(t, 5, res.N)
}

func TestFallbackRing_CancelIsBestEffortNoop(t *testing.T) {
	ring := newFallbackRing()
	defer ring.Close()

	id := ring.Submit(Op{Kind: OpCancel, CancelID: 1})
	assert.NotZero(t, id)
	assert.Equal(t, 0, ring.Pending())
}
