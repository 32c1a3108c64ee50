// Package pipeline implements the per-layer DSP graph: a declared, validated DAG of
// nodes with exactly one input and one output terminal, evaluated by lazy
// pull once per mix tick, with per-node output caching so a shared
// subgraph is only computed once.
package pipeline

import (
	"github.com/amplimix/amplimix/buffer"
	"github.com/amplimix/amplimix/spatial"
)

// Vec3 and Quat alias the spatial package's types so pipeline callers don't
// need a second import for the common case.
type Vec3 = spatial.Vec3
type Quat = spatial.Quaternion

// NodeID uniquely identifies a node within one Pipeline declaration.
type NodeID int

// InputNodeID and OutputNodeID are reserved by the engine: every
// Pipeline has exactly one node with each id.
const (
	InputNodeID  NodeID = 0
	OutputNodeID NodeID = -1
)

// Kind classifies a node by its production/consumption role.
type Kind int

const (
	// Provider nodes have no inputs and produce an output (e.g. Input).
	Provider Kind = iota
	// Consumer nodes have inputs and do not produce (e.g. Output).
	Consumer
	// Processor nodes both consume and produce.
	Processor
)

// Node is a declared pipeline element. Implementations are stateless
// templates; NodeInstance holds the per-layer mutable state and cached
// buffer.
type Node interface {
	ID() NodeID
	Kind() Kind
	// CanConsume/CanProduce are the validation predicates Validate
	// checks against each node's wiring.
	CanConsume() bool
	CanProduce() bool
	// MinInputCount/MaxInputCount bound the producer list wired to this
	// node's input(s). Provider nodes return (0, 0).
	MinInputCount() int
	MaxInputCount() int
	// NewInstance returns a fresh per-layer instance (stateful nodes, like
	// Occlusion's low-pass filter, keep their state here, not on Node).
	NewInstance() NodeInstance
}

// NodeInstance is the per-layer, per-tick evaluation unit for one Node.
// Process receives the already-evaluated outputs of its producers in
// declaration order and must write its result into out; out is the
// pipeline instance's cached buffer for this node and stays valid until
// the next Execute or Reset call.
type NodeInstance interface {
	Process(ctx *EvalContext, inputs []*buffer.Buffer, out *buffer.Buffer) error
	// OutputShape returns (frames, channels) for the buffer this instance
	// produces, used to size its cache.
	OutputShape(ctx *EvalContext) (frames, channels int)
	// Reset clears any per-instance state (e.g. an occlusion filter's
	// history); PipelineInstance.Reset calls it between uses of the
	// pipeline instance. Nodes with no such state may no-op.
	Reset()
}

// EvalContext carries the per-tick inputs a node may need: the layer's
// mono pre-pipeline source, spatial/environment state, and curves. It is
// filled in by the mixer before Execute and is not retained by any node
// past the tick.
type EvalContext struct {
	FrameCount int
	SampleRate int            // output rate, needed by frequency-domain nodes
	Source     *buffer.Buffer // layer's mono pre-pipeline buffer (read by Input)

	Listener ListenerState
	Entity   EntityState

	AttenuationCurve Fader
	OcclusionCurve   Fader
	ObstructionCurve Fader
	MaxDistance      float64

	Environments []EnvironmentFactor
	HRIR         HRIRSampler
}

// ListenerState is the subset of listener state the pipeline's spatial
// nodes need: position/orientation for panning and ambisonic rotation.
type ListenerState struct {
	Position    Vec3
	Orientation Quat
}

// EntityState is the subset of an entity's state the pipeline's spatial
// nodes need.
type EntityState struct {
	Position   Vec3
	Occlusion  float32 // 0 = clear, 1 = fully occluded
	Obstruction float32 // 0 = clear, 1 = fully obstructed
}

// EnvironmentFactor is one environment's effect instance plus the entity's
// exposure factor to it.
type EnvironmentFactor struct {
	Effect Effect
	Factor float32
}

// Effect processes a mono buffer in place, e.g. a reverb send simulation.
type Effect interface {
	Process(buf *buffer.Buffer, factor float32)
}
