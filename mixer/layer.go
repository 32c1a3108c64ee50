package mixer

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/amplimix/amplimix/pipeline"
)

// Layer is one slot in the mixer's fixed N-element array. Atomic fields
// (state, playSpeed) are read/written without the layer mutex from the
// mix thread's hot path; every other field requires holding mu: API
// threads take both the mixer mutex and the per-layer mutex before
// mutating non-atomic layer fields.
type Layer struct {
	index int

	state     atomic.Int32   // PlayState
	playSpeed atomic.Uint64  // math.Float64bits of the smoothed speed

	mu         sync.Mutex
	requestID  uint64
	reuseOK    bool
	instance   *SoundInstance
	pipe       *pipeline.PipelineInstance
	gain       float32
	evalCtx    pipeline.EvalContext
}

func newLayer(index int) *Layer {
	l := &Layer{index: index}
	l.state.Store(int32(StateMin))
	return l
}

// State returns the layer's current PlayState.
func (l *Layer) State() PlayState {
	return PlayState(l.state.Load())
}

// PlaySpeed returns the layer's current smoothed play speed.
func (l *Layer) PlaySpeed() float64 {
	return math.Float64frombits(l.playSpeed.Load())
}

func (l *Layer) setPlaySpeed(v float64) {
	l.playSpeed.Store(math.Float64bits(v))
}

// transition attempts from -> to and reports success, per the legal
// transition table.
func (l *Layer) transition(to PlayState) bool {
	from := PlayState(l.state.Load())
	if !CanTransition(from, to) {
		return false
	}
	return l.state.CompareAndSwap(int32(from), int32(to))
}

// freeLocked releases the layer's instance/pipeline and resets it to StateMin.
// Caller must hold l.mu.
func (l *Layer) freeLocked() {
	if l.instance != nil {
		l.instance.Close()
		l.instance = nil
	}
	l.pipe = nil
	l.requestID = 0
	l.reuseOK = false
	l.state.Store(int32(StateMin))
}

// SetGain sets the layer's own gain (pre-master), used by the channel
// layer's fade-driven per-frame update.
func (l *Layer) SetGain(gain float32) {
	l.mu.Lock()
	l.gain = gain
	l.mu.Unlock()
}

// Gain returns the layer's own gain.
func (l *Layer) Gain() float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gain
}

// SetListener/SetEntity update the spatial state the pipeline consumes
// each tick.
func (l *Layer) SetListener(s pipeline.ListenerState) {
	l.mu.Lock()
	l.evalCtx.Listener = s
	l.mu.Unlock()
}

func (l *Layer) SetEntity(s pipeline.EntityState) {
	l.mu.Lock()
	l.evalCtx.Entity = s
	l.mu.Unlock()
}

// SetPitch retargets the layer's pitch; the per-tick smoother chases the
// new pitch * userPlaySpeed product instead of jumping.
func (l *Layer) SetPitch(pitch float64) {
	l.mu.Lock()
	if l.instance != nil && pitch > 0 {
		l.instance.pitch = pitch
	}
	l.mu.Unlock()
}

// SetUserPlaySpeed retargets the layer's user play-speed multiplier.
func (l *Layer) SetUserPlaySpeed(speed float64) {
	l.mu.Lock()
	if l.instance != nil && speed > 0 {
		l.instance.userPlaySpeed = speed
	}
	l.mu.Unlock()
}

// SetCurves installs the distance curves and cutoff the spatial pipeline
// nodes evaluate each tick.
func (l *Layer) SetCurves(attenuation, occlusion, obstruction pipeline.Fader, maxDistance float64) {
	l.mu.Lock()
	l.evalCtx.AttenuationCurve = attenuation
	l.evalCtx.OcclusionCurve = occlusion
	l.evalCtx.ObstructionCurve = obstruction
	l.evalCtx.MaxDistance = maxDistance
	l.mu.Unlock()
}

// SetHRIR installs the sampler the binaural decoder node convolves
// against.
func (l *Layer) SetHRIR(s pipeline.HRIRSampler) {
	l.mu.Lock()
	l.evalCtx.HRIR = s
	l.mu.Unlock()
}

// SetEnvironments replaces the environment effect set the
// EnvironmentEffect node applies.
func (l *Layer) SetEnvironments(envs []pipeline.EnvironmentFactor) {
	l.mu.Lock()
	l.evalCtx.Environments = envs
	l.mu.Unlock()
}
