package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyncMapDeleteIf(t *testing.T) {
	m := NewSyncMap[string, int]()
	m.Store("a", 1)
	m.Store("b", 2)
	m.Store("c", 3)

	removed := m.DeleteIf(func(_ string, v int) bool {
		return v%2 == 1
	})

	assert.ElementsMatch(t, []string{"a", "c"}, removed)
	assert.Equal(t, 1, m.Len())
	_, ok := m.Load("b")
	assert.True(t, ok)
}

func TestSyncMapRRange(t *testing.T) {
	m := NewSyncMap[string, int]()
	m.Store("a", 1)
	m.Store("b", 2)

	var visited int
	m.RRange(func(_ string, _ int) bool {
		visited++
		return false
	})
	assert.Equal(t, 1, visited)
}
