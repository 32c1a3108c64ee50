// Package mixer implements the fixed-layer-array Amplimix
// mixer, its per-layer play-state machine, and the per-tick Mix that pulls
// decoded audio through each active layer's pipeline and sums it into a
// stereo scratch buffer.
package mixer

import "github.com/amplimix/amplimix/pipeline"

// LayerCount is N, the fixed mixer layer array size
// (2^12). A play request maps to a layer index by requestId &
// (LayerCount-1).
const LayerCount = 1 << 12

// PlayState is a layer's play-state machine position, stored with atomic
// loads/stores so the mix thread never blocks reading them.
type PlayState int32

const (
	// StateMin is free: the layer holds no sound instance.
	StateMin PlayState = iota
	// StateStop is stopping: cleanup happens on the next mix tick that
	// notices it, then it falls to StateMin.
	StateStop
	// StateHalt is paused.
	StateHalt
	// StatePlay is playing a one-shot sound.
	StatePlay
	// StateLoop is playing a looping sound.
	StateLoop
)

func (s PlayState) String() string {
	switch s {
	case StateMin:
		return "MIN"
	case StateStop:
		return "STOP"
	case StateHalt:
		return "HALT"
	case StatePlay:
		return "PLAY"
	case StateLoop:
		return "LOOP"
	default:
		return "UNKNOWN"
	}
}

// legalTransitions enumerates the play-state machine exactly:
// every (from, to) pair not present here is rejected.
var legalTransitions = map[PlayState]map[PlayState]bool{
	StateMin:  {StatePlay: true, StateLoop: true},
	StatePlay: {StateHalt: true, StateStop: true},
	StateLoop: {StateHalt: true, StateStop: true},
	StateHalt: {StatePlay: true, StateLoop: true, StateStop: true},
	StateStop: {StateMin: true},
}

// CanTransition reports whether from -> to is a legal play-state
// transition.
func CanTransition(from, to PlayState) bool {
	if from == to {
		return false
	}
	return legalTransitions[from][to]
}

// EventKind names the callbacks fired on transitions out of a
// playing state: "Begin, Pause, Resume, Loop, End, Stop".
type EventKind int

const (
	EventBegin EventKind = iota
	EventPause
	EventResume
	EventLoop
	EventEnd
	EventStop
)

func (e EventKind) String() string {
	switch e {
	case EventBegin:
		return "Begin"
	case EventPause:
		return "Pause"
	case EventResume:
		return "Resume"
	case EventLoop:
		return "Loop"
	case EventEnd:
		return "End"
	case EventStop:
		return "Stop"
	default:
		return "Unknown"
	}
}

// Event is delivered to a layer's owning channel on a state transition.
type Event struct {
	Layer int
	Kind  EventKind
}

// EventSink receives layer events; implementations must not block.
type EventSink interface {
	HandleEvent(Event)
}

// DefaultPitchSmoothing is the one-pole smoothing step the mix tick
// applies to playSpeed (linear interpolation towards
// pitch * userPlaySpeed). Kept as a named, overridable configuration
// constant rather than inlined at the call site.
const DefaultPitchSmoothing = 0.75

// PlayOptions configures a Play call.
type PlayOptions struct {
	// RequestID selects the layer via RequestID & (LayerCount-1). Two
	// requests mapping to the same layer is a collision.
	RequestID uint64
	// AllowLayerReuse permits Play to silently reclaim a layer that
	// already holds a different live sound instance, instead of
	// rejecting the call with amplierr.InvalidParameter.
	AllowLayerReuse bool
	// Loop requests StateLoop instead of StatePlay.
	Loop bool
	// LoopCount bounds how many times a looping layer wraps before it
	// ends; 0 means infinite.
	LoopCount int
	// StartFrame positions the decode cursor before the first read, in
	// source frames. The channel layer uses it to promote a virtualised
	// channel back onto a real layer at the sample position its simulated
	// clock reached. Preloaded chunks seek directly; streaming sources
	// decode and discard up to the requested frame.
	StartFrame int
	// Pitch and UserPlaySpeed multiply to form the target playSpeed the
	// per-tick smoother chases.
	Pitch         float64
	UserPlaySpeed float64
	// Gain is the layer's own gain, multiplied by the mixer's master gain
	// each tick.
	Gain float32
	// Pipeline is the per-layer effect graph the mix tick pulls the
	// decoded/resampled mono signal through. A caller that wants
	// raw stereo pass-through may still supply a trivial
	// input->stereo-pan->output graph; Play requires a non-nil Pipeline.
	Pipeline *pipeline.Pipeline
}

// sourceChunk abstracts the two ways a layer acquires decoded audio
// each tick: a streaming codec.Source read incrementally, or a
// shared preloaded buffer spliced by cursor. Both satisfy this interface
// so SoundInstance doesn't need to branch on mode beyond construction.
type sourceChunk interface {
	// read fills dst (mono, len(dst) frames) starting at the chunk's
	// current cursor, wrapping at loop points per looping. It returns the
	// number of frames written, whether a loop wrap was crossed while
	// filling dst, and whether the end of the underlying sound was reached
	// (and not looped past).
	read(dst []float32, looping bool) (frames int, wrapped bool, ended bool)
	// sampleRate of the underlying decoded audio.
	sampleRate() int
	// seek positions the cursor at the given source frame. Preloaded
	// chunks wrap modulo their length; streaming readers decode and
	// discard, stopping early at EOF.
	seek(frame int)
	// close releases any resources (streaming decoder, shared chunk
	// refcount).
	close() error
}
