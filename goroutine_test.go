package coop

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGoroutineID_DiffersAcrossGoroutines(t *testing.T) {
	id1 := goroutineID()

	var id2 uint64
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		id2 = goroutineID()
	}()
	wg.Wait()

	assert.NotZero(t, id1)
	assert.NotZero(t, id2)
	assert.NotEqual(t, id1, id2)
}

func TestGoroutineID_StableWithinSameGoroutine(t *testing.T) {
	assert.Equal(t, goroutineID(), goroutineID())
}
