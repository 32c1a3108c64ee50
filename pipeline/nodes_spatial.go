package pipeline

import (
	"math"

	"github.com/amplimix/amplimix/buffer"
	"github.com/amplimix/amplimix/spatial"
)

// AttenuationNode scales a mono signal by the attenuation curve
// evaluated at the source-listener distance (ctx.AttenuationCurve,
// ctx.MaxDistance).
type AttenuationNode struct{ id NodeID }

func NewAttenuationNode(id NodeID) *AttenuationNode { return &AttenuationNode{id: id} }

func (n *AttenuationNode) ID() NodeID                  { return n.id }
func (n *AttenuationNode) Kind() Kind                  { return Processor }
func (n *AttenuationNode) CanConsume() bool            { return true }
func (n *AttenuationNode) CanProduce() bool            { return true }
func (n *AttenuationNode) MinInputCount() int          { return 1 }
func (n *AttenuationNode) MaxInputCount() int          { return 1 }
func (n *AttenuationNode) NewInstance() NodeInstance   { return &attenuationInstance{} }

type attenuationInstance struct{}

func (a *attenuationInstance) Process(ctx *EvalContext, inputs []*buffer.Buffer, out *buffer.Buffer) error {
	in := inputs[0]
	distance := spatial.Distance(ctx.Listener.Position, ctx.Entity.Position)
	curve := ctx.AttenuationCurve
	if curve == nil {
		curve = LinearFader{}
	}
	gain := float32(DistanceFader(curve, distance, ctx.MaxDistance))
	dst := out.GetChannel(0)
	src := in.GetChannel(0)
	for i := range dst {
		dst[i] = src[i] * gain
	}
	return nil
}

func (a *attenuationInstance) OutputShape(ctx *EvalContext) (int, int) { return ctx.FrameCount, 1 }
func (a *attenuationInstance) Reset()                                  {}

// Cutoff bounds for the occlusion/obstruction low-pass sweep: a fully
// clear path leaves the signal untouched up to openCutoffHz, a fully
// blocked one keeps only the lowest band.
const (
	openCutoffHz    = 20000.0
	blockedCutoffHz = 400.0
)

// occlusionFilterInstance implements a shared shape for Occlusion and
// Obstruction: gain scaling by a Fader plus a resonant biquad low-pass
// whose cutoff sweeps down as the blocking factor approaches 1, modeling
// the high-frequency loss through a blocking surface. The filter's
// history is per-instance state, reset between sound assignments via
// Reset (node.go's NodeInstance.Reset contract).
type occlusionFilterInstance struct {
	curve       func(ctx *EvalContext) Fader
	factor      func(ctx *EvalContext) float32
	lowpassOnly bool // obstruction: gentler, filter-only, no direct-path mute
	filter      *BiquadFilter
}

func (o *occlusionFilterInstance) Process(ctx *EvalContext, inputs []*buffer.Buffer, out *buffer.Buffer) error {
	in := inputs[0]
	curve := o.curve(ctx)
	if curve == nil {
		curve = LinearFader{}
	}
	factor := o.factor(ctx)
	if factor < 0 {
		factor = 0
	} else if factor > 1 {
		factor = 1
	}
	amount := curve.GetFromPercentage(float64(factor))

	rate := ctx.SampleRate
	if rate <= 0 {
		rate = 48000
	}
	cutoff := openCutoffHz + (blockedCutoffHz-openCutoffHz)*amount
	if o.filter == nil || o.filter.sampleRate != rate {
		filter, err := NewLowPassBiquad(cutoff, DefaultResonance, rate)
		if err != nil {
			return err
		}
		o.filter = filter
	} else {
		o.filter.SetFrequency(cutoff)
	}

	gain := float32(1)
	if !o.lowpassOnly {
		gain = 1 - float32(amount)
	}

	src := in.GetChannel(0)
	dst := out.GetChannel(0)
	o.filter.Process(src, dst)
	if gain != 1 {
		for i := range dst {
			dst[i] *= gain
		}
	}
	return nil
}

func (o *occlusionFilterInstance) OutputShape(ctx *EvalContext) (int, int) { return ctx.FrameCount, 1 }

func (o *occlusionFilterInstance) Reset() {
	if o.filter != nil {
		o.filter.Reset()
	}
}

// OcclusionNode attenuates and low-pass filters a mono signal by
// ctx.Entity.Occlusion through ctx.OcclusionCurve: full occlusion silences
// the direct path and removes high frequencies, modeling sound passing
// only through a solid obstruction.
type OcclusionNode struct{ id NodeID }

func NewOcclusionNode(id NodeID) *OcclusionNode { return &OcclusionNode{id: id} }

func (n *OcclusionNode) ID() NodeID         { return n.id }
func (n *OcclusionNode) Kind() Kind         { return Processor }
func (n *OcclusionNode) CanConsume() bool   { return true }
func (n *OcclusionNode) CanProduce() bool   { return true }
func (n *OcclusionNode) MinInputCount() int { return 1 }
func (n *OcclusionNode) MaxInputCount() int { return 1 }
func (n *OcclusionNode) NewInstance() NodeInstance {
	return &occlusionFilterInstance{
		curve:  func(ctx *EvalContext) Fader { return ctx.OcclusionCurve },
		factor: func(ctx *EvalContext) float32 { return ctx.Entity.Occlusion },
	}
}

// ObstructionNode low-pass filters (but does not mute) a mono signal by
// ctx.Entity.Obstruction through ctx.ObstructionCurve, modeling a sound
// source blocked from a direct line but still reaching the listener via an
// indirect path.
type ObstructionNode struct{ id NodeID }

func NewObstructionNode(id NodeID) *ObstructionNode { return &ObstructionNode{id: id} }

func (n *ObstructionNode) ID() NodeID         { return n.id }
func (n *ObstructionNode) Kind() Kind         { return Processor }
func (n *ObstructionNode) CanConsume() bool   { return true }
func (n *ObstructionNode) CanProduce() bool   { return true }
func (n *ObstructionNode) MinInputCount() int { return 1 }
func (n *ObstructionNode) MaxInputCount() int { return 1 }
func (n *ObstructionNode) NewInstance() NodeInstance {
	return &occlusionFilterInstance{
		curve:       func(ctx *EvalContext) Fader { return ctx.ObstructionCurve },
		factor:      func(ctx *EvalContext) float32 { return ctx.Entity.Obstruction },
		lowpassOnly: true,
	}
}

// EnvironmentEffectNode sums the dry signal with every registered
// environment's wet Effect, each scaled by its entity exposure factor
// (ctx.Environments).
type EnvironmentEffectNode struct{ id NodeID }

func NewEnvironmentEffectNode(id NodeID) *EnvironmentEffectNode {
	return &EnvironmentEffectNode{id: id}
}

func (n *EnvironmentEffectNode) ID() NodeID         { return n.id }
func (n *EnvironmentEffectNode) Kind() Kind         { return Processor }
func (n *EnvironmentEffectNode) CanConsume() bool   { return true }
func (n *EnvironmentEffectNode) CanProduce() bool   { return true }
func (n *EnvironmentEffectNode) MinInputCount() int { return 1 }
func (n *EnvironmentEffectNode) MaxInputCount() int { return 1 }
func (n *EnvironmentEffectNode) NewInstance() NodeInstance {
	return &environmentEffectInstance{}
}

type environmentEffectInstance struct {
	scratch *buffer.Buffer
}

func (e *environmentEffectInstance) Process(ctx *EvalContext, inputs []*buffer.Buffer, out *buffer.Buffer) error {
	in := inputs[0]
	if err := buffer.Copy(in, 0, out, 0, in.FrameCount()); err != nil {
		return err
	}
	if len(ctx.Environments) == 0 {
		return nil
	}
	if e.scratch == nil || e.scratch.FrameCount() != in.FrameCount() {
		s, err := buffer.New(in.FrameCount(), 1)
		if err != nil {
			return err
		}
		e.scratch = s
	}
	for _, env := range ctx.Environments {
		if env.Effect == nil || env.Factor == 0 {
			continue
		}
		if err := buffer.Copy(in, 0, e.scratch, 0, in.FrameCount()); err != nil {
			return err
		}
		env.Effect.Process(e.scratch, env.Factor)
		out.AddInPlace(e.scratch)
	}
	return nil
}

func (e *environmentEffectInstance) OutputShape(ctx *EvalContext) (int, int) { return ctx.FrameCount, 1 }
func (e *environmentEffectInstance) Reset()                                  {}

// StereoPanningNode converts a mono signal to stereo using equal-power
// panning derived from the entity's listener-relative azimuth.
type StereoPanningNode struct{ id NodeID }

func NewStereoPanningNode(id NodeID) *StereoPanningNode { return &StereoPanningNode{id: id} }

func (n *StereoPanningNode) ID() NodeID         { return n.id }
func (n *StereoPanningNode) Kind() Kind         { return Processor }
func (n *StereoPanningNode) CanConsume() bool   { return true }
func (n *StereoPanningNode) CanProduce() bool   { return true }
func (n *StereoPanningNode) MinInputCount() int { return 1 }
func (n *StereoPanningNode) MaxInputCount() int { return 1 }
func (n *StereoPanningNode) NewInstance() NodeInstance {
	return &stereoPanningInstance{}
}

type stereoPanningInstance struct{}

func (s *stereoPanningInstance) Process(ctx *EvalContext, inputs []*buffer.Buffer, out *buffer.Buffer) error {
	in := inputs[0]
	direction, _ := spatial.Forward(ctx.Listener.Position, ctx.Listener.Orientation, ctx.Entity.Position)

	// Azimuth in the listener's horizontal plane; +X right, -Z forward.
	azimuth := math.Atan2(direction.X, -direction.Z)
	pan := (azimuth + math.Pi) / (2 * math.Pi) // 0 = full left, 1 = full right
	if pan < 0 {
		pan = 0
	} else if pan > 1 {
		pan = 1
	}
	theta := pan * (math.Pi / 2)
	leftGain := float32(math.Cos(theta))
	rightGain := float32(math.Sin(theta))

	src := in.GetChannel(0)
	left := out.GetChannel(0)
	right := out.GetChannel(1)
	for i, v := range src {
		left[i] = v * leftGain
		right[i] = v * rightGain
	}
	return nil
}

func (s *stereoPanningInstance) OutputShape(ctx *EvalContext) (int, int) { return ctx.FrameCount, 2 }
func (s *stereoPanningInstance) Reset()                                  {}
