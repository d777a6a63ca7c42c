package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFreeList(t *testing.T) {
	allocated := 0
	list := NewFreeList(2, func() []byte {
		allocated++
		return make([]byte, 16)
	})

	a := list.Get()
	b := list.Get()
	c := list.Get()
	assert.Equal(t, 3, allocated)

	assert.True(t, list.Put(a))
	assert.True(t, list.Put(b))
	assert.False(t, list.Put(c), "over limit")
	assert.Equal(t, 2, list.Len())

	list.Get()
	list.Get()
	assert.Equal(t, 3, allocated, "reused")
	assert.Equal(t, 0, list.Len())
	list.Get()
	assert.Equal(t, 4, allocated)
}
