// Package channel implements the virtualisation layer: user-facing Channel handles
// backed by recyclable internal state, the virtualisation policy that
// promotes and demotes channels onto real mixer layers by priority, fade
// state machines for stop/pause/resume, and the end-of-sound policy for
// standalone, switched, and collection-contained sounds.
package channel

import (
	"time"

	"github.com/google/uuid"

	"github.com/amplimix/amplimix/codec"
	"github.com/amplimix/amplimix/mixer"
	"github.com/amplimix/amplimix/pipeline"
	"github.com/amplimix/amplimix/resolve"
	"github.com/amplimix/amplimix/spatial"
)

// PlaybackState is a channel's position in its playback state machine:
// {Stopped, Playing, Paused, FadingIn, FadingOut, SwitchingState}.
type PlaybackState int

const (
	Stopped PlaybackState = iota
	Playing
	Paused
	FadingIn
	FadingOut
	SwitchingState
)

func (s PlaybackState) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	case FadingIn:
		return "FadingIn"
	case FadingOut:
		return "FadingOut"
	case SwitchingState:
		return "SwitchingState"
	default:
		return "Unknown"
	}
}

// audible reports whether the state contributes (or is about to
// contribute) signal and therefore competes for real mixer layers.
func (s PlaybackState) audible() bool {
	switch s {
	case Playing, FadingIn, FadingOut, SwitchingState:
		return true
	default:
		return false
	}
}

// Definition is a resolved sound definition: the playable audio plus the
// per-request settings copied into each play. Exactly one of Chunk and
// OpenStream is set.
type Definition struct {
	ID resolve.SoundID

	// Chunk is the shared, fully-decoded audio for preloaded sounds.
	Chunk *mixer.Chunk
	// OpenStream opens a fresh decoder for streaming sounds; it is called
	// once per play and again on loop wrap.
	OpenStream func() (codec.Source, error)

	Gain      float32
	Pitch     float64
	Priority  float32
	Loop      bool
	LoopCount int

	Pipeline    *pipeline.Pipeline
	Attenuation pipeline.Fader
	Occlusion   pipeline.Fader
	Obstruction pipeline.Fader
	MaxDistance float64
	HRIR        pipeline.HRIRSampler
}

// frameCount returns the sound's length in source frames, or -1 when the
// sound streams and its length is unknown until the decoder reports EOF.
func (d *Definition) frameCount() int {
	if d.Chunk != nil {
		return d.Chunk.FrameCount()
	}
	return -1
}

// sourceRate returns the definition's native sample rate, or 0 for
// streams (known only once opened).
func (d *Definition) sourceRate() int {
	if d.Chunk != nil {
		return d.Chunk.SampleRate()
	}
	return 0
}

// Bank resolves sound ids into playable definitions. The asset loader
// behind it is out of scope; the channel layer only consumes
// already-resolved sound objects.
type Bank interface {
	Definition(id resolve.SoundID) (*Definition, error)
}

// Listener is one registered listener's spatial state.
type Listener struct {
	ID          uuid.UUID
	Position    spatial.Vec3
	Velocity    spatial.Vec3
	Orientation spatial.Quaternion
}

// Room is one registered room: an axis-aligned box with a base gain,
// consumed by the per-frame room-gain update.
type Room struct {
	ID        uuid.UUID
	MinCorner spatial.Vec3
	MaxCorner spatial.Vec3
	Gain      float32
}

// ClosestPoint clamps p to the room's box.
func (r Room) ClosestPoint(p spatial.Vec3) spatial.Vec3 {
	clamp := func(v, lo, hi float64) float64 {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}
	return spatial.Vec3{
		X: clamp(p.X, r.MinCorner.X, r.MaxCorner.X),
		Y: clamp(p.Y, r.MinCorner.Y, r.MaxCorner.Y),
		Z: clamp(p.Z, r.MinCorner.Z, r.MaxCorner.Z),
	}
}

// PlayRequest configures one Play call. Exactly one of Definition,
// Collection, and Container selects the sound object kind.
type PlayRequest struct {
	// Definition plays a standalone sound.
	Definition *Definition
	// Collection plays via a random/sequence scheduler; Pool lists its
	// candidate sound ids for PlayAll bookkeeping.
	Collection *resolve.Collection
	Pool       []resolve.SoundID
	// Container plays the item set bound to the container's switch state.
	Container *resolve.SwitchContainer

	// Bank resolves collection/container picks into definitions. Ignored
	// for standalone plays.
	Bank Bank

	Gain     float32
	Pan      float32
	Pitch    float64
	Location spatial.Vec3
	Velocity spatial.Vec3
	// OnEvent, if set, receives every event on the channel, including the
	// Begin fired by Play itself (which precedes any chance to call
	// Channel.On).
	OnEvent EventHandler
	// Priority is the static rank the virtualiser multiplies by current
	// gain; zero means the definition's priority is used.
	Priority float32
}

// Event is delivered to channel-level listeners registered with
// Channel.On.
type Event struct {
	Channel Channel
	Kind    mixer.EventKind
	Sound   resolve.SoundID
}

// EventHandler receives channel events outside the mixer's critical
// section; it may call back into the engine.
type EventHandler func(Event)

// fadeState is a per-channel or per-item fade in progress.
type fadeState struct {
	curve    pipeline.Fader
	from     float32
	to       float32
	elapsed  time.Duration
	duration time.Duration
	target   PlaybackState // channel state applied on completion
}

// gain returns the fade's current multiplier.
func (f *fadeState) gain() float32 {
	if f.duration <= 0 {
		return f.to
	}
	p := float64(f.elapsed) / float64(f.duration)
	if p >= 1 {
		p = 1
	}
	c := f.curve.GetFromPercentage(p)
	return f.from + (f.to-f.from)*float32(c)
}

func (f *fadeState) done() bool {
	return f.duration <= 0 || f.elapsed >= f.duration
}
