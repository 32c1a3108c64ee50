package mixcmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDrainRunsInFIFOOrder(t *testing.T) {
	q := New()
	var order []int
	q.Enqueue(func() { order = append(order, 1) })
	q.Enqueue(func() { order = append(order, 2) })
	q.Enqueue(func() { order = append(order, 3) })

	q.Drain()
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Zero(t, q.Len())
}

func TestDrainRunsFollowUpEnqueuedDuringDrain(t *testing.T) {
	q := New()
	ran := false
	q.Enqueue(func() {
		q.Enqueue(func() { ran = true })
	})
	q.Drain()
	assert.True(t, ran)
}

func TestDrainOnEmptyQueueIsNoop(t *testing.T) {
	q := New()
	q.Drain()
	assert.Zero(t, q.Len())
}
