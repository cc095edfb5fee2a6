package coop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWaiterList_PushBackPopFrontFIFO(t *testing.T) {
	var l waiterList
	a, b, c := &waiterNode{}, &waiterNode{}, &waiterNode{}

	l.pushBack(a)
	l.pushBack(b)
	l.pushBack(c)
	assert.Equal(t, 3, l.Len())

	assert.Same(t, a, l.popFront())
	assert.Same(t, b, l.popFront())
	assert.Same(t, c, l.popFront())
	assert.Nil(t, l.popFront())
	assert.True(t, l.empty())
}

func TestWaiterList_RemoveMiddle(t *testing.T) {
	var l waiterList
	a, b, c := &waiterNode{}, &waiterNode{}, &waiterNode{}
	l.pushBack(a)
	l.pushBack(b)
	l.pushBack(c)

	l.remove(b)
	assert.Equal(t, 2, l.Len())
	assert.Same(t, a, l.popFront())
	assert.Same(t, c, l.popFront())
}

func TestWaiterList_RemoveSetsListNil(t *testing.T) {
	var l waiterList
	a := &waiterNode{}
	l.pushBack(a)
	assert.Same(t, &l, a.list)
	l.remove(a)
	assert.Nil(t, a.list)
}

func TestWaiterList_EmptyOnZeroValue(t *testing.T) {
	var l waiterList
	assert.True(t, l.empty())
	assert.Equal(t, 0, l.Len())
}
