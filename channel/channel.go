package channel

import (
	"time"

	"github.com/google/uuid"

	"github.com/amplimix/amplimix/mixer"
	"github.com/amplimix/amplimix/spatial"
)

// Channel is the stable user-facing handle: a (state pointer, stateID)
// pair. If the underlying InternalState is recycled to a new sound, the
// stateID no longer matches and the handle reports invalid; every mutator
// on an invalid handle is a no-op.
type Channel struct {
	state   *InternalState
	stateID uint64
}

// Valid reports whether the handle still refers to the play it was
// minted for: c.state != nil and the state's generation counter still
// matches c.stateID.
func (c Channel) Valid() bool {
	if c.state == nil {
		return false
	}
	return c.state.StateID() == c.stateID
}

// ID returns the underlying channel's id, or uuid.Nil for an invalid
// handle.
func (c Channel) ID() uuid.UUID {
	if !c.Valid() {
		return uuid.Nil
	}
	return c.state.id
}

// State returns the channel's playback state; invalid handles report
// Stopped.
func (c Channel) State() PlaybackState {
	if !c.Valid() {
		return Stopped
	}
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	return c.state.state
}

// Playing reports whether the channel is in an audible state.
func (c Channel) Playing() bool {
	if !c.Valid() {
		return false
	}
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	return c.state.state.audible()
}

// Virtual reports whether the channel currently holds no real mixer
// layers.
func (c Channel) Virtual() bool {
	if !c.Valid() {
		return true
	}
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	return c.state.real == nil
}

// Stop winds the channel down. A zero duration transitions to Stopped
// immediately; otherwise the channel enters FadingOut and lands on
// Stopped when the fade reaches zero.
func (c Channel) Stop(duration time.Duration) {
	if !c.Valid() {
		return
	}
	c.state.mgr.stopChannel(c.state, duration)
}

// Pause is Stop's twin with target Paused. A pause on a channel already
// at gain zero short-circuits to Paused with no fade tick.
func (c Channel) Pause(duration time.Duration) {
	if !c.Valid() {
		return
	}
	c.state.mgr.pauseChannel(c.state, duration)
}

// Resume enters FadingIn from the current gain (expected zero) back to
// the stored playback gain.
func (c Channel) Resume(duration time.Duration) {
	if !c.Valid() {
		return
	}
	c.state.mgr.resumeChannel(c.state, duration)
}

// SetGain sets the channel's user gain.
func (c Channel) SetGain(gain float32) {
	if !c.Valid() {
		return
	}
	c.state.mu.Lock()
	c.state.userGain = gain
	c.state.mu.Unlock()
}

// Gain returns the channel's user gain.
func (c Channel) Gain() float32 {
	if !c.Valid() {
		return 0
	}
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	return c.state.userGain
}

// SetPan sets the channel's user pan in [-1, 1].
func (c Channel) SetPan(pan float32) {
	if !c.Valid() {
		return
	}
	if pan < -1 {
		pan = -1
	}
	if pan > 1 {
		pan = 1
	}
	c.state.mu.Lock()
	c.state.pan = pan
	c.state.mu.Unlock()
}

// Pan returns the channel's user pan.
func (c Channel) Pan() float32 {
	if !c.Valid() {
		return 0
	}
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	return c.state.pan
}

// SetPitch sets the channel's pitch multiplier.
func (c Channel) SetPitch(pitch float64) {
	if !c.Valid() || pitch <= 0 {
		return
	}
	c.state.mu.Lock()
	c.state.pitch = pitch
	c.state.mu.Unlock()
}

// Pitch returns the channel's pitch multiplier.
func (c Channel) Pitch() float64 {
	if !c.Valid() {
		return 0
	}
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	return c.state.pitch
}

// SetLocation moves the channel's emitter in world space.
func (c Channel) SetLocation(p spatial.Vec3) {
	if !c.Valid() {
		return
	}
	c.state.mu.Lock()
	c.state.location = p
	c.state.mu.Unlock()
}

// Location returns the channel's emitter position.
func (c Channel) Location() spatial.Vec3 {
	if !c.Valid() {
		return spatial.Vec3{}
	}
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	return c.state.location
}

// SetVelocity sets the emitter velocity consumed by the per-frame Doppler
// update.
func (c Channel) SetVelocity(v spatial.Vec3) {
	if !c.Valid() {
		return
	}
	c.state.mu.Lock()
	c.state.velocity = v
	c.state.mu.Unlock()
}

// SetOcclusion sets the emitter's occlusion factor in [0, 1].
func (c Channel) SetOcclusion(f float32) {
	if !c.Valid() {
		return
	}
	c.state.mu.Lock()
	c.state.occlusion = clamp01(f)
	c.state.mu.Unlock()
}

// SetObstruction sets the emitter's obstruction factor in [0, 1].
func (c Channel) SetObstruction(f float32) {
	if !c.Valid() {
		return
	}
	c.state.mu.Lock()
	c.state.obstruction = clamp01(f)
	c.state.mu.Unlock()
}

// DopplerFactor returns the most recent per-listener Doppler factor
// computed by the frame update, 1 if the listener is unknown.
func (c Channel) DopplerFactor(listener uuid.UUID) float64 {
	if !c.Valid() {
		return 1
	}
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	if f, ok := c.state.doppler[listener]; ok {
		return f
	}
	return 1
}

// RoomGain returns the most recent per-room gain computed by the frame
// update, 1 if the room is unknown.
func (c Channel) RoomGain(room uuid.UUID) float32 {
	if !c.Valid() {
		return 1
	}
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	if g, ok := c.state.roomGains[room]; ok {
		return g
	}
	return 1
}

// On registers handler for kind on this channel. Handlers run on the
// thread that drains the mixer's deferred queue, outside any engine
// lock, so they may call back into the engine.
func (c Channel) On(kind mixer.EventKind, handler EventHandler) {
	if !c.Valid() || handler == nil {
		return
	}
	c.state.mu.Lock()
	c.state.listeners[kind] = append(c.state.listeners[kind], handler)
	c.state.mu.Unlock()
}

func clamp01(f float32) float32 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
