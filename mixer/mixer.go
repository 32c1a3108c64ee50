package mixer

import (
	"io"
	"sync"

	"github.com/amplimix/amplimix/amplierr"
	"github.com/amplimix/amplimix/buffer"
	"github.com/amplimix/amplimix/codec"
	"github.com/amplimix/amplimix/internal/mixcmd"
	"github.com/amplimix/amplimix/pipeline"
)

// Mixer holds the fixed LayerCount-element layer array and pulls
// every active layer through its pipeline once per Mix call, summing the
// result into a stereo scratch buffer.
type Mixer struct {
	layers     [LayerCount]*Layer
	sampleRate int
	sink       EventSink

	mu         sync.Mutex
	masterGain float32
	cmdQueue   *mixcmd.Queue
	scratch    *buffer.Buffer
}

// NewMixer builds a Mixer producing stereo output at sampleRate. sink may be
// nil; events are dropped if so.
func NewMixer(sampleRate int, sink EventSink) *Mixer {
	m := &Mixer{
		sampleRate: sampleRate,
		sink:       sink,
		masterGain: 1,
		cmdQueue:   mixcmd.New(),
	}
	for i := range m.layers {
		m.layers[i] = newLayer(i)
	}
	return m
}

// SetEventSink installs sink after construction, for callers (the channel
// manager) that need the mixer built before they exist.
func (m *Mixer) SetEventSink(sink EventSink) {
	m.mu.Lock()
	m.sink = sink
	m.mu.Unlock()
}

// SetSampleRate reconfigures the output rate assumption. Only call while
// the device pull is paused; live layers pick the new rate up on their
// next tick's resampler reconfiguration.
func (m *Mixer) SetSampleRate(rate int) {
	m.mu.Lock()
	if rate > 0 {
		m.sampleRate = rate
	}
	m.mu.Unlock()
}

// SetMasterGain sets the mixer-wide gain applied to every layer each tick.
func (m *Mixer) SetMasterGain(gain float32) {
	m.mu.Lock()
	m.masterGain = gain
	m.mu.Unlock()
}

func (m *Mixer) layerIndex(requestID uint64) int {
	return int(requestID & (LayerCount - 1))
}

func (m *Mixer) fireEvent(layer int, kind EventKind) {
	if m.sink == nil {
		return
	}
	m.sink.HandleEvent(Event{Layer: layer, Kind: kind})
}

// deferEvent queues kind for delivery on the next Drain. Every sink
// callback goes through the queue: the sink may call back into the mixer,
// and API callers may invoke Play/Pause/Resume while holding their own
// locks, so no event is ever delivered synchronously from inside a mixer
// entry point.
func (m *Mixer) deferEvent(layer int, kind EventKind) {
	m.cmdQueue.Enqueue(func() {
		m.fireEvent(layer, kind)
	})
}

// PlayPreloaded starts opts on the layer selected by
// opts.RequestID & (LayerCount-1), reading from a shared fully-decoded
// chunk. It returns the layer index on success.
func (m *Mixer) PlayPreloaded(chunk *Chunk, opts PlayOptions) (int, error) {
	instance := NewPreloadedSoundInstance(chunk, m.sampleRate, opts)
	return m.play(instance, opts)
}

// PlayStreaming starts opts on the layer selected by
// opts.RequestID & (LayerCount-1), pulling from src incrementally. reopen,
// if non-nil, lets a looping stream restart from the beginning once src
// reports EOF.
func (m *Mixer) PlayStreaming(src codec.Source, reopen func() (codec.Source, error), opts PlayOptions) (int, error) {
	instance := NewStreamingSoundInstance(src, reopen, m.sampleRate, opts)
	return m.play(instance, opts)
}

func (m *Mixer) play(instance *SoundInstance, opts PlayOptions) (int, error) {
	const op = "Mixer.Play"
	if opts.Pipeline == nil {
		return 0, amplierr.New(op, amplierr.InvalidParameter, "play options must supply a pipeline")
	}

	index := m.layerIndex(opts.RequestID)
	l := m.layers[index]

	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.State()
	if current != StateMin && !opts.AllowLayerReuse {
		return 0, amplierr.New(op, amplierr.InvalidParameter, "layer collision: request id already bound and AllowLayerReuse is false")
	}
	if current != StateMin {
		l.freeLocked()
	}

	pipe := opts.Pipeline.NewInstance()
	gain := opts.Gain
	if gain == 0 {
		gain = 1
	}

	l.requestID = opts.RequestID
	l.reuseOK = opts.AllowLayerReuse
	l.instance = instance
	l.pipe = pipe
	l.gain = gain
	l.setPlaySpeed(instance.playSpeed)

	target := StatePlay
	if opts.Loop {
		target = StateLoop
	}
	if !l.transition(target) {
		l.freeLocked()
		return 0, amplierr.New(op, amplierr.InvalidConfiguration, "layer state machine rejected play transition")
	}
	// Deferred like End/Loop/Stop: the sink (the channel manager) may be
	// the caller of Play and still hold the locks HandleEvent needs, so a
	// synchronous callback here would deadlock.
	m.deferEvent(index, EventBegin)
	return index, nil
}

// Stop requests layer to wind down; cleanup and the Stop event happen on
// the next Mix call that observes the StateStop flag.
func (m *Mixer) Stop(layer int) error {
	l := m.layers[layer]
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.transition(StateStop) {
		return amplierr.New("Mixer.Stop", amplierr.InvalidConfiguration, "layer is not playing")
	}
	return nil
}

// Pause halts a playing or looping layer in place.
func (m *Mixer) Pause(layer int) error {
	l := m.layers[layer]
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.transition(StateHalt) {
		return amplierr.New("Mixer.Pause", amplierr.InvalidConfiguration, "layer is not playing")
	}
	m.deferEvent(layer, EventPause)
	return nil
}

// Resume continues a halted layer, returning it to StatePlay or StateLoop
// depending on whether it was originally looping.
func (m *Mixer) Resume(layer int) error {
	l := m.layers[layer]
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.instance == nil {
		return amplierr.New("Mixer.Resume", amplierr.InvalidConfiguration, "layer holds no instance")
	}
	target := StatePlay
	if l.instance.chunkSrc.looping {
		target = StateLoop
	}
	if !l.transition(target) {
		return amplierr.New("Mixer.Resume", amplierr.InvalidConfiguration, "layer is not paused")
	}
	m.deferEvent(layer, EventResume)
	return nil
}

// Layer returns the layer at index, for callers (the channel virtualisation
// layer) that need direct read access to a layer's state/gain.
func (m *Mixer) Layer(index int) *Layer {
	return m.layers[index]
}

// Mix produces frameCount stereo frames in one tick of the mix
// loop: take the mixer mutex, clear the scratch buffer, pull every
// active layer's decoded/resampled/piped signal, sum it in at
// masterGain*layerGain, then drop the mutex and drain deferred end/loop
// callbacks before returning. The returned buffer is owned by the Mixer and
// is only valid until the next Mix call.
func (m *Mixer) Mix(frameCount int) (*buffer.Buffer, error) {
	const op = "Mixer.Mix"
	m.mu.Lock()

	if m.scratch == nil || m.scratch.FrameCount() != frameCount {
		scratch, err := buffer.New(frameCount, 2)
		if err != nil {
			m.mu.Unlock()
			return nil, amplierr.Wrap(op, amplierr.OutOfMemory, "allocating scratch buffer", err)
		}
		m.scratch = scratch
	}
	m.scratch.Clear()
	masterGain := m.masterGain

	for i := range m.layers {
		l := m.layers[i]
		state := l.State()

		if state == StateStop {
			m.cleanupStopped(l, i)
			continue
		}
		if state != StatePlay && state != StateLoop {
			continue
		}

		if err := m.mixLayer(l, i, state, frameCount, masterGain); err != nil {
			m.mu.Unlock()
			return nil, amplierr.Wrap(op, amplierr.Unsupported, "mixing layer", err)
		}
	}

	m.mu.Unlock()
	m.cmdQueue.Drain()
	return m.scratch, nil
}

// cleanupStopped finishes a layer an explicit Stop() flipped to StateStop,
// freeing its resources and falling to StateMin, deferred through the
// command queue so the Stop event fires outside the mixer's critical
// section.
func (m *Mixer) cleanupStopped(l *Layer, index int) {
	l.mu.Lock()
	l.freeLocked()
	l.mu.Unlock()
	m.cmdQueue.Enqueue(func() {
		m.fireEvent(index, EventStop)
	})
}

func (m *Mixer) mixLayer(l *Layer, index int, state PlayState, frameCount int, masterGain float32) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.instance == nil {
		return nil
	}
	inst := l.instance

	// Linear interpolation of playSpeed towards
	// pitch * userPlaySpeed with step DefaultPitchSmoothing, and
	// reconfigure the resampler's sample-rate ratio accordingly.
	target := inst.pitch * inst.userPlaySpeed
	current := l.PlaySpeed()
	speed := current + (target-current)*DefaultPitchSmoothing
	if speed <= 0 {
		speed = target
	}
	l.setPlaySpeed(speed)
	dstRate := m.sampleRate
	if speed > 0 {
		dstRate = int(float64(m.sampleRate) / speed)
		if dstRate <= 0 {
			dstRate = m.sampleRate
		}
	}
	inst.resampler.SetDestinationRate(dstRate)

	if inst.mono == nil || inst.mono.FrameCount() != frameCount {
		mono, err := buffer.New(frameCount, 1)
		if err != nil {
			return err
		}
		inst.mono = mono
	}
	inst.mono.Clear()

	n, readErr := inst.resampler.ReadFrames([][]float32{inst.mono.GetChannel(0)[:frameCount]})
	ended := readErr == io.EOF

	l.evalCtx.FrameCount = frameCount
	l.evalCtx.SampleRate = m.sampleRate
	l.evalCtx.Source = inst.mono
	out, err := l.pipe.Execute(&l.evalCtx)
	if err != nil {
		return err
	}
	out.ScaleInPlace(masterGain * l.gain)
	m.scratch.AddInPlace(out)

	inst.frameCount += n

	if state == StateLoop && inst.consumeWrap() {
		inst.loopCount++
		if inst.loopBudget > 0 && inst.loopCount >= inst.loopBudget {
			m.endLayer(l, index)
			return nil
		}
		inst.frameCount = 0
		m.cmdQueue.Enqueue(func() {
			m.fireEvent(index, EventLoop)
		})
		return nil
	}

	if ended {
		m.endLayer(l, index)
	}
	return nil
}

// endLayer transitions a layer to StateStop and defers its free + End event
// through the command queue, still under l.mu held by the caller for the
// transition itself but freed only after the mutex is released on drain.
func (m *Mixer) endLayer(l *Layer, index int) {
	l.transition(StateStop)
	m.cmdQueue.Enqueue(func() {
		l.mu.Lock()
		l.freeLocked()
		l.mu.Unlock()
		m.fireEvent(index, EventEnd)
	})
}
