package torrent

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPieceQueueContainsEveryIndex(t *testing.T) {
	q := NewPieceQueue(50)
	assert.Equal(t, 50, q.Len())

	seen := make([]int, 0, 50)
	for {
		idx, ok := q.PopFront()
		if !ok {
			break
		}
		seen = append(seen, idx)
	}

	sort.Ints(seen)
	for i, v := range seen {
		assert.Equal(t, i, v)
	}
}

func TestPieceQueueFIFOOrder(t *testing.T) {
	q := &PieceQueue{items: []int{3, 1, 2}}

	first, ok := q.PopFront()
	assert.True(t, ok)
	assert.Equal(t, 3, first)
	assert.Equal(t, 2, q.Len())
}

func TestPieceQueueReenqueueGoesToTail(t *testing.T) {
	q := &PieceQueue{items: []int{1, 2, 3}}

	idx, ok := q.PopFront()
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	q.PushBack(idx)
	assert.Equal(t, []int{2, 3, 1}, q.items)
}

func TestPieceQueuePopFrontEmpty(t *testing.T) {
	q := &PieceQueue{}

	_, ok := q.PopFront()
	assert.False(t, ok)
}
