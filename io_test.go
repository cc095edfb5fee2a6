package coop

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCooperator returns a Cooperator backed by a fallbackRing
// regardless of platform, so descriptor tests exercise execOp directly
// rather than depending on whether a real io_uring is available.
func newTestCooperator() *Cooperator {
	c := New(Detached())
	c.ring = newFallbackRing()
	return c
}

func TestDescriptor_WriteThenReadRoundTrips(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	c := newTestCooperator()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- c.Run(ctx) }()

	var wg sync.WaitGroup
	wg.Add(2)

	wd := NewDescriptor(c, int32(w.Fd()))
	rd := NewDescriptor(c, int32(r.Fd()))

	var writeN int
	var writeErr error
	wd.Write([]byte("ping"), 0, func(n int, err error) {
		writeN, writeErr = n, err
		wg.Done()
	})

	buf := make([]byte, 4)
	var readN int
	var readErr error
	rd.Read(buf, 0, func(n int, err error) {
		readN, readErr = n, err
		wg.Done()
	})

	wg.Wait()
	require.NoError(t, c.Shutdown(context.Background()))
	require.NoError(t, <-runDone)

	assert.NoError(t, writeErr)
	assert.Equal(t, 4, writeN)
	assert.NoError(t, readErr)
	assert.Equal(t, 4, readN)
	assert.Equal(t, "ping", string(buf))
}

func TestDescriptor_CloseWithNoInFlightOpsClosesFD(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	c := newTestCooperator()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- c.Run(ctx) }()

	d := NewDescriptor(c, int32(w.Fd()))

	var wg sync.WaitGroup
	wg.Add(1)
	var closeErr error
	require.NoError(t, c.Submit(func(self *Self) {
		d.Close(func(err error) {
			closeErr = err
			wg.Done()
		})
	}))

	wg.Wait()
	require.NoError(t, c.Shutdown(context.Background()))
	require.NoError(t, <-runDone)

	assert.NoError(t, closeErr)
}

func TestDescriptor_CloseIsIdempotent(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	c := newTestCooperator()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- c.Run(ctx) }()

	d := NewDescriptor(c, int32(w.Fd()))

	var wg sync.WaitGroup
	wg.Add(2)
	var calls int
	require.NoError(t, c.Submit(func(self *Self) {
		d.Close(func(error) { calls++; wg.Done() })
		d.Close(func(error) { calls++; wg.Done() })
	}))

	wg.Wait()
	require.NoError(t, c.Shutdown(context.Background()))
	require.NoError(t, <-runDone)

	assert.Equal(t, 2, calls)
}

func TestDescriptor_RegisterFixedThenWriteUsesFixedIndex(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	c := newTestCooperator()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- c.Run(ctx) }()

	d := NewDescriptor(c, int32(w.Fd()))

	var wg sync.WaitGroup
	wg.Add(1)
	var writeN int
	var writeErr error
	require.NoError(t, c.Submit(func(self *Self) {
		require.NoError(t, d.RegisterFixed())
		d.Write([]byte("fix"), 0, func(n int, err error) {
			writeN, writeErr = n, err
			wg.Done()
		})
	}))

	wg.Wait()
	require.NoError(t, c.Shutdown(context.Background()))
	require.NoError(t, <-runDone)

	assert.NoError(t, writeErr)
	assert.Equal(t, 3, writeN)
}
