package channel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amplimix/amplimix/amplierr"
	"github.com/amplimix/amplimix/mixer"
	"github.com/amplimix/amplimix/pipeline"
	"github.com/amplimix/amplimix/resolve"
)

const testSampleRate = 48000

func stereoPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	const panID pipeline.NodeID = 1
	p := pipeline.NewPipeline(
		[]pipeline.Node{
			pipeline.InputNode{},
			pipeline.NewStereoPanningNode(panID),
			pipeline.NewOutputNode(2),
		},
		map[pipeline.NodeID][]pipeline.NodeID{
			panID:                 {pipeline.InputNodeID},
			pipeline.OutputNodeID: {panID},
		},
	)
	require.NoError(t, p.Validate())
	return p
}

func testDefinition(t *testing.T, id resolve.SoundID, frames int) *Definition {
	t.Helper()
	data := make([]float32, frames)
	for i := range data {
		data[i] = 0.5
	}
	return &Definition{
		ID:       id,
		Chunk:    mixer.NewChunk(data, testSampleRate, nil),
		Gain:     1,
		Pitch:    1,
		Priority: 1,
		Pipeline: stereoPipeline(t),
	}
}

type mapBank map[resolve.SoundID]*Definition

func (b mapBank) Definition(id resolve.SoundID) (*Definition, error) {
	if d, ok := b[id]; ok {
		return d, nil
	}
	return nil, amplierr.New("mapBank.Definition", amplierr.ResourceNotFound, "unknown sound "+string(id))
}

func newTestManager(t *testing.T, capacity int) (*Manager, *mixer.Mixer) {
	t.Helper()
	mix := mixer.NewMixer(testSampleRate, nil)
	mgr := NewManager(mix, testSampleRate, capacity, nil)
	mix.SetEventSink(mgr)
	return mgr, mix
}

// tick advances the frame update and runs one mix callback of frames
// samples, the way the engine interleaves both per device buffer.
func tick(t *testing.T, mgr *Manager, mix *mixer.Mixer, frames int) {
	t.Helper()
	dt := time.Duration(float64(frames) / testSampleRate * float64(time.Second))
	mgr.Advance(dt, nil, nil)
	_, err := mix.Mix(frames)
	require.NoError(t, err)
}

// The mixer's Begin event is deferred through its command queue; a
// synchronous delivery would re-enter the manager's mutex from inside
// promotion and hang the very first tick after a Play.
func TestPromotionDoesNotDeadlock(t *testing.T) {
	mgr, mix := newTestManager(t, 4)
	_, err := mgr.Play(PlayRequest{Definition: testDefinition(t, "shot", 4096)})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		mgr.Advance(10*time.Millisecond, nil, nil)
		_, _ = mix.Mix(256)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("promotion deadlocked on the mixer event sink")
	}
}

func TestPlayReturnsValidHandle(t *testing.T) {
	mgr, _ := newTestManager(t, 4)
	ch, err := mgr.Play(PlayRequest{Definition: testDefinition(t, "shot", 4096)})
	require.NoError(t, err)
	assert.True(t, ch.Valid())
	assert.Equal(t, Playing, ch.State())
}

func TestPlayWithoutSoundObjectReturnsInvalidHandle(t *testing.T) {
	mgr, _ := newTestManager(t, 4)
	ch, err := mgr.Play(PlayRequest{})
	require.Error(t, err)
	assert.True(t, amplierr.Is(err, amplierr.InvalidParameter))
	assert.False(t, ch.Valid())
	assert.Equal(t, Stopped, ch.State())
}

func TestStopZeroDurationIsImmediate(t *testing.T) {
	mgr, mix := newTestManager(t, 4)
	ch, err := mgr.Play(PlayRequest{Definition: testDefinition(t, "shot", 4096)})
	require.NoError(t, err)
	tick(t, mgr, mix, 256)
	require.False(t, ch.Virtual())

	ch.Stop(0)
	assert.Equal(t, Stopped, ch.State())
	assert.True(t, ch.Valid(), "handle stays valid until the state is recycled")
}

func TestRecycledStateInvalidatesOldHandle(t *testing.T) {
	mgr, _ := newTestManager(t, 4)
	first, err := mgr.Play(PlayRequest{Definition: testDefinition(t, "a", 1024)})
	require.NoError(t, err)
	first.Stop(0)

	second, err := mgr.Play(PlayRequest{Definition: testDefinition(t, "b", 1024)})
	require.NoError(t, err)
	assert.True(t, second.Valid())
	assert.False(t, first.Valid(), "recycle bumps the generation counter")

	// Mutators on the stale handle are no-ops.
	first.SetGain(0.1)
	assert.Equal(t, float32(1), second.Gain())
}

func TestStopWithDurationFadesOut(t *testing.T) {
	mgr, mix := newTestManager(t, 4)
	ch, err := mgr.Play(PlayRequest{Definition: testDefinition(t, "shot", 1 << 20)})
	require.NoError(t, err)
	tick(t, mgr, mix, 256)

	var stopped int
	ch.On(mixer.EventStop, func(Event) { stopped++ })

	ch.Stop(50 * time.Millisecond)
	assert.Equal(t, FadingOut, ch.State())

	tick(t, mgr, mix, 1024) // ~21ms: fade still in flight
	assert.Equal(t, FadingOut, ch.State())

	tick(t, mgr, mix, 4096) // well past 50ms
	assert.Equal(t, Stopped, ch.State())
	assert.Equal(t, 1, stopped)
}

func TestPauseAtZeroGainShortCircuits(t *testing.T) {
	mgr, mix := newTestManager(t, 4)
	ch, err := mgr.Play(PlayRequest{Definition: testDefinition(t, "shot", 1 << 20)})
	require.NoError(t, err)
	tick(t, mgr, mix, 256)

	// Pause, then start a long fade-in: at its first instant the fade gain
	// is still zero.
	ch.Pause(0)
	ch.Resume(time.Second)
	require.Equal(t, FadingIn, ch.State())

	// A faded pause requested at zero gain lands on Paused with no fade tick.
	ch.Pause(time.Second)
	assert.Equal(t, Paused, ch.State())
}

func TestPauseResumeRoundTrip(t *testing.T) {
	mgr, mix := newTestManager(t, 4)
	ch, err := mgr.Play(PlayRequest{Definition: testDefinition(t, "music", 1 << 20)})
	require.NoError(t, err)
	tick(t, mgr, mix, 256)

	ch.Pause(0)
	assert.Equal(t, Paused, ch.State())
	assert.True(t, ch.Virtual(), "paused channels release their layers")

	ch.Resume(0)
	assert.Equal(t, Playing, ch.State())
	tick(t, mgr, mix, 256)
	assert.False(t, ch.Virtual())
}

func TestEndFiresOnceAndChannelStops(t *testing.T) {
	mgr, mix := newTestManager(t, 4)

	var ends int
	ch, err := mgr.Play(PlayRequest{
		Definition: testDefinition(t, "short", 2048),
		OnEvent: func(e Event) {
			if e.Kind == mixer.EventEnd {
				ends++
			}
		},
	})
	require.NoError(t, err)

	for i := 0; i < 40 && ch.State() != Stopped; i++ {
		tick(t, mgr, mix, 256)
	}
	assert.Equal(t, Stopped, ch.State())
	assert.Equal(t, 1, ends)
}

func TestVirtualisationPrefersHigherPriority(t *testing.T) {
	mgr, mix := newTestManager(t, 1)

	high, err := mgr.Play(PlayRequest{Definition: testDefinition(t, "high", 8192), Priority: 0.9})
	require.NoError(t, err)
	low, err := mgr.Play(PlayRequest{Definition: testDefinition(t, "low", 1 << 20), Priority: 0.1})
	require.NoError(t, err)

	tick(t, mgr, mix, 256)
	assert.False(t, high.Virtual(), "0.9 priority holds the only real layer")
	assert.True(t, low.Virtual(), "0.1 priority is virtualised")
	assert.Equal(t, Playing, low.State(), "virtual channels still report Playing")

	// Run until the high-priority sound ends; the low channel must then
	// take over the real layer.
	for i := 0; i < 80 && high.State() != Stopped; i++ {
		tick(t, mgr, mix, 256)
	}
	require.Equal(t, Stopped, high.State())
	tick(t, mgr, mix, 256)
	assert.False(t, low.Virtual(), "freed capacity promotes the survivor")
}

func TestVirtualChannelResumesAtSimulatedCursor(t *testing.T) {
	mgr, mix := newTestManager(t, 1)

	_, err := mgr.Play(PlayRequest{Definition: testDefinition(t, "hog", 1 << 20), Priority: 0.9})
	require.NoError(t, err)
	low, err := mgr.Play(PlayRequest{Definition: testDefinition(t, "low", 1 << 20), Priority: 0.1})
	require.NoError(t, err)

	// A second of simulated time while virtual.
	for i := 0; i < 10; i++ {
		tick(t, mgr, mix, 4800)
	}
	require.True(t, low.Virtual())

	low.state.mu.Lock()
	frames := low.state.active[0].virtualFrames
	low.state.mu.Unlock()
	assert.InDelta(t, float64(testSampleRate), frames, float64(testSampleRate)/100,
		"virtual cursor advances in simulated time")
}

func TestCollectionPlayAllVisitsEverySound(t *testing.T) {
	mgr, mix := newTestManager(t, 4)

	pool := []resolve.SoundID{"s1", "s2", "s3", "s4"}
	bank := mapBank{}
	for _, id := range pool {
		bank[id] = testDefinition(t, id, 1024)
	}
	weighted := make([]resolve.WeightedSound, len(pool))
	for i, id := range pool {
		weighted[i] = resolve.WeightedSound{ID: id, Weight: 1}
	}
	col := resolve.NewRandomCollection(
		resolve.PlayAll,
		resolve.NewRandomScheduler(weighted, true, 2, nil),
	)

	heard := map[resolve.SoundID]int{}
	ch, err := mgr.Play(PlayRequest{
		Collection: col,
		Pool:       pool,
		Bank:       bank,
		OnEvent: func(e Event) {
			if e.Kind == mixer.EventBegin && e.Sound != "" {
				heard[e.Sound]++
			}
		},
	})
	require.NoError(t, err)

	for i := 0; i < 200 && ch.State() != Stopped; i++ {
		tick(t, mgr, mix, 256)
	}
	assert.Equal(t, Stopped, ch.State(), "PlayAll halts once the round completes")
	for _, id := range pool {
		assert.Contains(t, heard, id, "every sound is picked once per round")
	}
}

func TestSwitchContainerTransitionFades(t *testing.T) {
	mgr, mix := newTestManager(t, 8)

	bank := mapBank{
		"metal": testDefinition(t, "metal", 1<<20),
		"grass": testDefinition(t, "grass", 1<<20),
	}
	sw := &resolve.Switch{Name: "surface", Current: "metal"}
	container := resolve.NewSwitchContainer(sw, []resolve.SwitchContainerItem{
		{SoundID: "metal", States: []resolve.SwitchStateID{"metal"}, FadeOut: 30 * time.Millisecond},
		{SoundID: "grass", States: []resolve.SwitchStateID{"grass"}, FadeIn: 30 * time.Millisecond},
	})

	ch, err := mgr.Play(PlayRequest{Container: container, Bank: bank})
	require.NoError(t, err)
	tick(t, mgr, mix, 256)
	require.False(t, ch.Virtual())

	mgr.SwitchTo(container, "grass")
	assert.Equal(t, SwitchingState, ch.State())

	// Run past both fades: the metal item is removed, grass remains.
	for i := 0; i < 20; i++ {
		tick(t, mgr, mix, 256)
	}
	assert.Equal(t, Playing, ch.State(), "SwitchingState clears when fades land")

	ch.state.mu.Lock()
	require.Len(t, ch.state.active, 1)
	assert.Equal(t, resolve.SoundID("grass"), ch.state.active[0].def.ID)
	ch.state.mu.Unlock()
}

func TestSwitchContainerUpdateOnPlayIgnoresLiveChannels(t *testing.T) {
	mgr, mix := newTestManager(t, 8)

	bank := mapBank{
		"metal": testDefinition(t, "metal", 1<<20),
		"snow":  testDefinition(t, "snow", 1<<20),
	}
	sw := &resolve.Switch{Name: "surface", Current: "metal"}
	container := resolve.NewSwitchContainer(sw, []resolve.SwitchContainerItem{
		{SoundID: "metal", States: []resolve.SwitchStateID{"metal"}},
		{SoundID: "snow", States: []resolve.SwitchStateID{"snow"}},
	})
	container.Behavior = resolve.UpdateOnPlay

	ch, err := mgr.Play(PlayRequest{Container: container, Bank: bank})
	require.NoError(t, err)
	tick(t, mgr, mix, 256)

	mgr.SwitchTo(container, "snow")
	assert.Equal(t, Playing, ch.State(), "UpdateOnPlay leaves live channels alone")

	ch.state.mu.Lock()
	assert.Equal(t, resolve.SoundID("metal"), ch.state.active[0].def.ID)
	ch.state.mu.Unlock()
}
