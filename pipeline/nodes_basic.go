package pipeline

import (
	"github.com/amplimix/amplimix/buffer"
	"github.com/amplimix/amplimix/spatial"
)

func distanceFromContext(ctx *EvalContext) float64 {
	return spatial.Distance(ctx.Listener.Position, ctx.Entity.Position)
}

// InputNode is the reserved provider at InputNodeID: it has no producers
// and its output is ctx.Source (substituted directly by
// PipelineInstance.evaluate, so its NodeInstance is never called to
// Process — only OutputShape is used for cache sizing).
type InputNode struct{}

func (InputNode) ID() NodeID          { return InputNodeID }
func (InputNode) Kind() Kind          { return Provider }
func (InputNode) CanConsume() bool    { return false }
func (InputNode) CanProduce() bool    { return true }
func (InputNode) MinInputCount() int  { return 0 }
func (InputNode) MaxInputCount() int  { return 0 }
func (InputNode) NewInstance() NodeInstance {
	return &inputInstance{}
}

type inputInstance struct{}

func (*inputInstance) Process(ctx *EvalContext, inputs []*buffer.Buffer, out *buffer.Buffer) error {
	return nil
}

func (*inputInstance) OutputShape(ctx *EvalContext) (int, int) {
	return ctx.Source.FrameCount(), ctx.Source.ChannelCount()
}

func (*inputInstance) Reset() {}

// OutputNode is the reserved consumer at OutputNodeID: a pass-through of
// its single producer, which PipelineInstance.Execute returns as the
// layer's final mix contribution.
type OutputNode struct {
	id       NodeID
	channels int
}

// NewOutputNode declares the terminal output node with the given channel
// count (1 for mono layers pre-spatialization, 2 once panned to stereo).
func NewOutputNode(channels int) *OutputNode {
	return &OutputNode{id: OutputNodeID, channels: channels}
}

func (n *OutputNode) ID() NodeID         { return n.id }
func (n *OutputNode) Kind() Kind         { return Consumer }
func (n *OutputNode) CanConsume() bool   { return true }
func (n *OutputNode) CanProduce() bool   { return false }
func (n *OutputNode) MinInputCount() int { return 1 }
func (n *OutputNode) MaxInputCount() int { return 1 }
func (n *OutputNode) NewInstance() NodeInstance {
	return &passthroughInstance{channels: n.channels}
}

type passthroughInstance struct{ channels int }

func (p *passthroughInstance) Process(ctx *EvalContext, inputs []*buffer.Buffer, out *buffer.Buffer) error {
	return buffer.Copy(inputs[0], 0, out, 0, inputs[0].FrameCount())
}

func (p *passthroughInstance) OutputShape(ctx *EvalContext) (int, int) {
	return ctx.FrameCount, p.channels
}

func (p *passthroughInstance) Reset() {}

// ClampNode gates its input to silence once the source-listener distance
// exceeds ctx.MaxDistance: the attenuation maximum-distance hard cutoff,
// as distinct from Attenuation's smooth curve and Clip's amplitude
// saturation.
type ClampNode struct {
	id       NodeID
	channels int
}

func NewClampNode(id NodeID, channels int) *ClampNode {
	return &ClampNode{id: id, channels: channels}
}

func (n *ClampNode) ID() NodeID         { return n.id }
func (n *ClampNode) Kind() Kind         { return Processor }
func (n *ClampNode) CanConsume() bool   { return true }
func (n *ClampNode) CanProduce() bool   { return true }
func (n *ClampNode) MinInputCount() int { return 1 }
func (n *ClampNode) MaxInputCount() int { return 1 }
func (n *ClampNode) NewInstance() NodeInstance {
	return &clampInstance{channels: n.channels}
}

type clampInstance struct {
	channels int
}

func (c *clampInstance) Process(ctx *EvalContext, inputs []*buffer.Buffer, out *buffer.Buffer) error {
	in := inputs[0]
	distance := distanceFromContext(ctx)
	beyond := ctx.MaxDistance > 0 && distance > ctx.MaxDistance
	for ch := 0; ch < in.ChannelCount(); ch++ {
		src := in.GetChannel(ch)
		dst := out.GetChannel(ch)
		if beyond {
			for i := range dst {
				dst[i] = 0
			}
			continue
		}
		copy(dst, src)
	}
	return nil
}

func (c *clampInstance) OutputShape(ctx *EvalContext) (int, int) { return ctx.FrameCount, c.channels }
func (c *clampInstance) Reset()                                  {}

// ClipNode hard-clips to [-1, 1], the canonical final-stage safety node.
type ClipNode struct {
	id       NodeID
	channels int
}

func NewClipNode(id NodeID, channels int) *ClipNode {
	return &ClipNode{id: id, channels: channels}
}

func (n *ClipNode) ID() NodeID         { return n.id }
func (n *ClipNode) Kind() Kind         { return Processor }
func (n *ClipNode) CanConsume() bool   { return true }
func (n *ClipNode) CanProduce() bool   { return true }
func (n *ClipNode) MinInputCount() int { return 1 }
func (n *ClipNode) MaxInputCount() int { return 1 }
func (n *ClipNode) NewInstance() NodeInstance {
	return &clipInstance{channels: n.channels}
}

type clipInstance struct {
	channels int
}

func (c *clipInstance) Process(ctx *EvalContext, inputs []*buffer.Buffer, out *buffer.Buffer) error {
	in := inputs[0]
	for ch := 0; ch < in.ChannelCount(); ch++ {
		src := in.GetChannel(ch)
		dst := out.GetChannel(ch)
		for i, v := range src {
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			dst[i] = v
		}
	}
	return nil
}

func (c *clipInstance) OutputShape(ctx *EvalContext) (int, int) { return ctx.FrameCount, c.channels }
func (c *clipInstance) Reset()                                  {}

// StereoMixerNode sums N producers of equal shape into one buffer,
// e.g. combining a dry and wet send before Output.
type StereoMixerNode struct {
	id       NodeID
	channels int
	min, max int
}

func NewStereoMixerNode(id NodeID, channels, minInputs, maxInputs int) *StereoMixerNode {
	return &StereoMixerNode{id: id, channels: channels, min: minInputs, max: maxInputs}
}

func (n *StereoMixerNode) ID() NodeID         { return n.id }
func (n *StereoMixerNode) Kind() Kind         { return Processor }
func (n *StereoMixerNode) CanConsume() bool   { return true }
func (n *StereoMixerNode) CanProduce() bool   { return true }
func (n *StereoMixerNode) MinInputCount() int { return n.min }
func (n *StereoMixerNode) MaxInputCount() int { return n.max }
func (n *StereoMixerNode) NewInstance() NodeInstance {
	return &stereoMixerInstance{channels: n.channels}
}

type stereoMixerInstance struct{ channels int }

func (s *stereoMixerInstance) Process(ctx *EvalContext, inputs []*buffer.Buffer, out *buffer.Buffer) error {
	out.Clear()
	for _, in := range inputs {
		out.AddInPlace(in)
	}
	return nil
}

func (s *stereoMixerInstance) OutputShape(ctx *EvalContext) (int, int) {
	return ctx.FrameCount, s.channels
}

func (s *stereoMixerInstance) Reset() {}
