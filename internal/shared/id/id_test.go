package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixes(t *testing.T) {
	assert.True(t, strings.HasPrefix(NewTabID().String(), "tab_"))
	assert.True(t, strings.HasPrefix(NewStreamID().String(), "strm_"))
	assert.True(t, strings.HasPrefix(NewConnID().String(), "conn_"))
}

func TestUniqueness(t *testing.T) {
	seen := make(map[TabID]bool)
	for i := 0; i < 1000; i++ {
		id := NewTabID()
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestSortability(t *testing.T) {
	g := NewGenerator()
	prev := g.GenerateString()
	for i := 0; i < 100; i++ {
		next := g.GenerateString()
		assert.LessOrEqual(t, prev, next)
		prev = next
	}
}
