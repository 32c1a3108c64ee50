package resolve

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomSchedulerAvoidsRepeatsWithinWindow(t *testing.T) {
	pool := []WeightedSound{
		{ID: "a", Weight: 1}, {ID: "b", Weight: 1},
		{ID: "c", Weight: 1}, {ID: "d", Weight: 1},
	}
	s := NewRandomScheduler(pool, true, 2, rand.New(rand.NewSource(42)))

	var history []SoundID
	for i := 0; i < 50; i++ {
		id, err := s.Pick(nil)
		require.NoError(t, err)
		history = append(history, id)
	}

	// No pick repeats either of the two picks before it.
	for i := 2; i < len(history); i++ {
		assert.NotEqual(t, history[i], history[i-1])
		assert.NotEqual(t, history[i], history[i-2])
	}
}

func TestRandomSchedulerRetriesWhenPoolFullyRejected(t *testing.T) {
	pool := []WeightedSound{{ID: "only", Weight: 1}}
	s := NewRandomScheduler(pool, true, 5, rand.New(rand.NewSource(1)))

	id, err := s.Pick(nil)
	require.NoError(t, err)
	assert.Equal(t, SoundID("only"), id)

	// Second pick: "only" is in the FIFO, but it's the entire pool, so the
	// FIFO must be cleared and the pick retried rather than failing.
	id, err = s.Pick(nil)
	require.NoError(t, err)
	assert.Equal(t, SoundID("only"), id)
}

func TestRandomSchedulerHonorsSkipList(t *testing.T) {
	pool := []WeightedSound{{ID: "a", Weight: 1}, {ID: "b", Weight: 1}}
	s := NewRandomScheduler(pool, false, 0, rand.New(rand.NewSource(7)))
	id, err := s.Pick([]SoundID{"a"})
	require.NoError(t, err)
	assert.Equal(t, SoundID("b"), id)
}

func TestSequenceSchedulerCycles(t *testing.T) {
	s := NewSequenceScheduler([]SoundID{"a", "b", "c"})
	for i := 0; i < 2; i++ {
		id, err := s.Next()
		require.NoError(t, err)
		assert.Equal(t, SoundID("a"), id)
		id, _ = s.Next()
		assert.Equal(t, SoundID("b"), id)
		id, _ = s.Next()
		assert.Equal(t, SoundID("c"), id)
	}
}

func TestSwitchContainerTransition(t *testing.T) {
	sw := &Switch{Name: "surface", Current: "metal"}
	c := NewSwitchContainer(sw, []SwitchContainerItem{
		{SoundID: "footstep-metal", States: []SwitchStateID{"metal"}, FadeOut: 200 * time.Millisecond},
		{SoundID: "wind", States: []SwitchStateID{"metal", "grass", "snow"}, ContinueBetweenStates: true},
		{SoundID: "footstep-grass", States: []SwitchStateID{"grass"}, FadeIn: 150 * time.Millisecond},
	})

	tr := c.SetState("grass")
	require.Len(t, tr.FadeOut, 1)
	assert.Equal(t, SoundID("footstep-metal"), tr.FadeOut[0].SoundID)
	require.Len(t, tr.FadeIn, 1)
	assert.Equal(t, SoundID("footstep-grass"), tr.FadeIn[0].SoundID)
	require.Len(t, tr.Continued, 1)
	assert.Equal(t, SoundID("wind"), tr.Continued[0].SoundID)
	assert.Equal(t, SwitchStateID("grass"), sw.Current)
}

func TestCollectionPlayAllBookkeeping(t *testing.T) {
	pool := []WeightedSound{{ID: "a", Weight: 1}, {ID: "b", Weight: 1}}
	c := NewRandomCollection(PlayAll, NewRandomScheduler(pool, false, 0, rand.New(rand.NewSource(3))))

	all := []SoundID{"a", "b"}
	assert.False(t, c.AllPlayed(all))
	c.MarkPlayed("a")
	assert.False(t, c.AllPlayed(all))
	c.MarkPlayed("b")
	assert.True(t, c.AllPlayed(all))
	c.ClearPlayed()
	assert.False(t, c.AllPlayed(all))
}
