package coop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStackPool_BucketForRoundsUpToPowerOfTwo(t *testing.T) {
	p := newStackPool(4096, 131072)

	assert.Equal(t, 4096, p.bucketFor(0))
	assert.Equal(t, 4096, p.bucketFor(1))
	assert.Equal(t, 4096, p.bucketFor(4096))
	assert.Equal(t, 8192, p.bucketFor(4097))
	assert.Equal(t, 131072, p.bucketFor(131072))
}

func TestStackPool_BucketForBypassesOversizedHint(t *testing.T) {
	p := newStackPool(4096, 131072)
	assert.Equal(t, 0, p.bucketFor(262144))
}

func TestStackPool_GetEmptyReturnsNil(t *testing.T) {
	p := newStackPool(4096, 131072)
	assert.Nil(t, p.get(4096))
}

func TestStackPool_PutThenGetRecyclesShell(t *testing.T) {
	p := newStackPool(4096, 131072)
	shell := &Context{id: 42}

	p.put(shell, 4096)
	got := p.get(4096)
	assert.Same(t, shell, got)
	assert.Nil(t, p.get(4096))
}

func TestStackPool_PutOversizedHintDropsShell(t *testing.T) {
	p := newStackPool(4096, 131072)
	shell := &Context{id: 1}

	p.put(shell, 262144)
	assert.Nil(t, p.get(262144))
}

func TestStackPool_MinMaxDefaultedWhenInvalid(t *testing.T) {
	p := newStackPool(0, 0)
	assert.Equal(t, minStackClass, p.min)
	assert.Equal(t, minStackClass, p.max)
}
