package coop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinateWith_KillRollsBackAllEnrollments(t *testing.T) {
	c := New(Detached())
	a := NewCoordinator()
	b := NewCoordinator()

	var waiterHandle Handle
	waiterReady := make(chan struct{})
	waiterDone := make(chan struct{})
	var winIdx int
	var winErr error

	_, err := c.Spawn(nil, func(self *Self) {
		require.NoError(t, a.Acquire(self))
		require.NoError(t, b.Acquire(self))
		self.Yield()
	})
	require.NoError(t, err)

	_, err = c.Spawn(nil, func(self *Self) {
		waiterHandle = self.Handle()
		close(waiterReady)
		winIdx, winErr = CoordinateWith(self, a, b)
		close(waiterDone)
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- c.Run(ctx) }()

	<-waiterReady
	assert.Eventually(t, func() bool {
		return a.waiters.Len() == 1 && b.waiters.Len() == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, waiterHandle.Kill("cancelled"))

	select {
	case <-waiterDone:
	case <-time.After(time.Second):
		t.Fatal("waiter never woke after kill")
	}

	require.NoError(t, c.Shutdown(context.Background()))
	require.NoError(t, <-runDone)

	assert.Equal(t, -1, winIdx)
	require.Error(t, winErr)
	var killErr *KillError
	assert.ErrorAs(t, winErr, &killErr)
	assert.Equal(t, "cancelled", killErr.Reason)

	assert.Equal(t, 0, a.waiters.Len())
	assert.Equal(t, 0, b.waiters.Len())
}
