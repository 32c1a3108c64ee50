package pipeline

import (
	"github.com/amplimix/amplimix/buffer"
	"github.com/amplimix/amplimix/spatial"
)

// AmbisonicChannelCount returns (order+1)^2, the ACN channel count for the
// given ambisonic order. Orders 0-3 are supported (1, 4, 9, 16 channels).
func AmbisonicChannelCount(order int) int {
	return (order + 1) * (order + 1)
}

// sn3dHarmonics fills dst (length AmbisonicChannelCount(order)) with the
// SN3D-normalized real spherical harmonics for unit direction d, in ACN
// channel order, for order 0-3.
//
// Orders 0 and 1 use the exact closed forms. Order 2 uses the standard
// exact SN3D formulas. Order 3 uses a simplified approximation of the
// degree-3 harmonics (omits the small cross-terms a full Furse-Malham/N3D
// derivation would include) — documented as an approximation rather than
// implemented exactly, since no pack dependency ships a spherical harmonic
// library to validate against.
func sn3dHarmonics(d spatial.Vec3, order int, dst []float64) {
	x, y, z := d.X, d.Y, d.Z
	dst[0] = 1 // W
	if order < 1 {
		return
	}
	dst[1] = y
	dst[2] = z
	dst[3] = x
	if order < 2 {
		return
	}
	const sqrt3 = 1.7320508075688772
	dst[4] = sqrt3 * x * y
	dst[5] = sqrt3 * y * z
	dst[6] = (3*z*z - 1) / 2
	dst[7] = sqrt3 * x * z
	dst[8] = sqrt3 / 2 * (x*x - y*y)
	if order < 3 {
		return
	}
	// Approximate degree-3 band: scaled odd-order polynomials in the
	// dominant axis per channel, correctly vanishing at the poles/equator
	// like the true harmonics but without the exact SN3D coefficients.
	const sqrt5_8 = 0.7905694150420949
	const sqrt3_2 = 1.224744871391589
	dst[9] = sqrt5_8 * y * (3*x*x - y*y)
	dst[10] = sqrt3_2 * 2 * x * y * z
	dst[11] = sqrt5_8 * y * (5*z*z - 1)
	dst[12] = z * (5*z*z - 3) / 2
	dst[13] = sqrt5_8 * x * (5*z*z - 1)
	dst[14] = sqrt3_2 * z * (x*x - y*y)
	dst[15] = sqrt5_8 * x * (x*x - 3*y*y)
}

// AmbisonicPanningNode encodes a mono source into an (order+1)^2-channel
// ACN/SN3D B-format signal based on the entity's listener-relative
// direction.
type AmbisonicPanningNode struct {
	id    NodeID
	Order int
}

func NewAmbisonicPanningNode(id NodeID, order int) *AmbisonicPanningNode {
	return &AmbisonicPanningNode{id: id, Order: order}
}

func (n *AmbisonicPanningNode) ID() NodeID         { return n.id }
func (n *AmbisonicPanningNode) Kind() Kind         { return Processor }
func (n *AmbisonicPanningNode) CanConsume() bool   { return true }
func (n *AmbisonicPanningNode) CanProduce() bool   { return true }
func (n *AmbisonicPanningNode) MinInputCount() int { return 1 }
func (n *AmbisonicPanningNode) MaxInputCount() int { return 1 }
func (n *AmbisonicPanningNode) NewInstance() NodeInstance {
	return &ambisonicPanningInstance{order: n.Order, channels: AmbisonicChannelCount(n.Order)}
}

type ambisonicPanningInstance struct {
	order, channels int
	coeffs          [16]float64
}

func (a *ambisonicPanningInstance) Process(ctx *EvalContext, inputs []*buffer.Buffer, out *buffer.Buffer) error {
	in := inputs[0]
	direction, _ := spatial.Forward(ctx.Listener.Position, ctx.Listener.Orientation, ctx.Entity.Position)
	sn3dHarmonics(direction, a.order, a.coeffs[:a.channels])

	src := in.GetChannel(0)
	for c := 0; c < a.channels; c++ {
		dst := out.GetChannel(c)
		gain := float32(a.coeffs[c])
		for i, v := range src {
			dst[i] = v * gain
		}
	}
	return nil
}

func (a *ambisonicPanningInstance) OutputShape(ctx *EvalContext) (int, int) {
	return ctx.FrameCount, a.channels
}
func (a *ambisonicPanningInstance) Reset() {}

// AmbisonicRotatorNode rotates a B-format signal into the listener's
// orientation frame.
//
// The order-1 (W/Y/Z/X) sub-block rotates exactly, since those four
// channels are a direct linear encoding of a 3-vector plus the
// rotation-invariant W channel. Orders 2 and 3 are passed through
// unrotated: an exact rotation there needs a Wigner-D rotation matrix per
// band, which this module does not derive — tracked as a known
// approximation, not a silent bug.
type AmbisonicRotatorNode struct {
	id    NodeID
	Order int
}

func NewAmbisonicRotatorNode(id NodeID, order int) *AmbisonicRotatorNode {
	return &AmbisonicRotatorNode{id: id, Order: order}
}

func (n *AmbisonicRotatorNode) ID() NodeID         { return n.id }
func (n *AmbisonicRotatorNode) Kind() Kind         { return Processor }
func (n *AmbisonicRotatorNode) CanConsume() bool   { return true }
func (n *AmbisonicRotatorNode) CanProduce() bool   { return true }
func (n *AmbisonicRotatorNode) MinInputCount() int { return 1 }
func (n *AmbisonicRotatorNode) MaxInputCount() int { return 1 }
func (n *AmbisonicRotatorNode) NewInstance() NodeInstance {
	return &ambisonicRotatorInstance{order: n.Order, channels: AmbisonicChannelCount(n.Order)}
}

type ambisonicRotatorInstance struct{ order, channels int }

func (a *ambisonicRotatorInstance) Process(ctx *EvalContext, inputs []*buffer.Buffer, out *buffer.Buffer) error {
	in := inputs[0]
	frames := in.FrameCount()
	q := ctx.Listener.Orientation

	// W passes through unrotated.
	copy(out.GetChannel(0), in.GetChannel(0))

	if a.channels > 4 {
		for c := 4; c < a.channels; c++ {
			copy(out.GetChannel(c), in.GetChannel(c))
		}
	}

	y, z, x := in.GetChannel(1), in.GetChannel(2), in.GetChannel(3)
	oy, oz, ox := out.GetChannel(1), out.GetChannel(2), out.GetChannel(3)
	for i := 0; i < frames; i++ {
		v := spatial.Vec3{X: float64(x[i]), Y: float64(y[i]), Z: float64(z[i])}
		r := q.Rotate(v)
		ox[i] = float32(r.X)
		oy[i] = float32(r.Y)
		oz[i] = float32(r.Z)
	}
	return nil
}

func (a *ambisonicRotatorInstance) OutputShape(ctx *EvalContext) (int, int) {
	return ctx.FrameCount, a.channels
}
func (a *ambisonicRotatorInstance) Reset() {}

// ambisonicDecodeDirections is a small fixed virtual speaker array used by
// AmbisonicBinauralDecoderNode to turn a B-format signal into a binaural
// stereo pair: decode to each virtual speaker, then sum each speaker's
// HRIR-convolved contribution.
var ambisonicDecodeDirections = []spatial.Vec3{
	{X: 1, Y: 0, Z: 0}, {X: -1, Y: 0, Z: 0},
	{X: 0, Y: 1, Z: 0}, {X: 0, Y: -1, Z: 0},
	{X: 0, Y: 0, Z: 1}, {X: 0, Y: 0, Z: -1},
	{X: 0.7071, Y: 0.7071, Z: 0}, {X: -0.7071, Y: 0.7071, Z: 0},
}

// AmbisonicBinauralDecoderNode decodes a B-format signal to stereo by
// projecting it onto a fixed virtual speaker array and convolving each
// speaker's signal with the HRIR for its direction (ctx.HRIR).
type AmbisonicBinauralDecoderNode struct {
	id    NodeID
	Order int
}

func NewAmbisonicBinauralDecoderNode(id NodeID, order int) *AmbisonicBinauralDecoderNode {
	return &AmbisonicBinauralDecoderNode{id: id, Order: order}
}

func (n *AmbisonicBinauralDecoderNode) ID() NodeID         { return n.id }
func (n *AmbisonicBinauralDecoderNode) Kind() Kind         { return Processor }
func (n *AmbisonicBinauralDecoderNode) CanConsume() bool   { return true }
func (n *AmbisonicBinauralDecoderNode) CanProduce() bool   { return true }
func (n *AmbisonicBinauralDecoderNode) MinInputCount() int { return 1 }
func (n *AmbisonicBinauralDecoderNode) MaxInputCount() int { return 1 }
func (n *AmbisonicBinauralDecoderNode) NewInstance() NodeInstance {
	return &ambisonicDecoderInstance{order: n.Order, channels: AmbisonicChannelCount(n.Order)}
}

type ambisonicDecoderInstance struct {
	order, channels int
	speakerBuf      []float32
}

func (a *ambisonicDecoderInstance) Process(ctx *EvalContext, inputs []*buffer.Buffer, out *buffer.Buffer) error {
	in := inputs[0]
	frames := in.FrameCount()
	left := out.GetChannel(0)
	right := out.GetChannel(1)
	for i := range left {
		left[i] = 0
		right[i] = 0
	}
	if ctx.HRIR == nil {
		return nil
	}

	numSpeakers := len(ambisonicDecodeDirections)
	decodeGain := float32(1.0 / float64(numSpeakers))
	if cap(a.speakerBuf) < frames {
		a.speakerBuf = make([]float32, frames)
	}
	speaker := a.speakerBuf[:frames]

	var coeffs [16]float64
	for _, dir := range ambisonicDecodeDirections {
		sn3dHarmonics(dir, a.order, coeffs[:a.channels])
		for i := range speaker {
			speaker[i] = 0
		}
		for c := 0; c < a.channels; c++ {
			g := float32(coeffs[c]) * decodeGain
			if g == 0 {
				continue
			}
			ch := in.GetChannel(c)
			for i := 0; i < frames; i++ {
				speaker[i] += ch[i] * g
			}
		}
		irLeft, irRight := ctx.HRIR.Sample(dir)
		convolveAdd(speaker, irLeft, left)
		convolveAdd(speaker, irRight, right)
	}
	return nil
}

// convolveAdd performs a direct-form FIR convolution of src with impulse
// response ir and accumulates into dst. Output that would land past
// len(dst) is dropped; callers pass PaddedFrameCount-long channel spans,
// so the tail keeps whatever headroom the block-alignment padding gives.
func convolveAdd(src, ir []float32, dst []float32) {
	for i, s := range src {
		if s == 0 {
			continue
		}
		limit := len(ir)
		if i+limit > len(dst) {
			limit = len(dst) - i
		}
		for k := 0; k < limit; k++ {
			dst[i+k] += s * ir[k]
		}
	}
}

func (a *ambisonicDecoderInstance) OutputShape(ctx *EvalContext) (int, int) { return ctx.FrameCount, 2 }
func (a *ambisonicDecoderInstance) Reset()                                  {}

// AmbisonicMixerNode sums N producers of equal B-format channel count,
// the ambisonic analogue of StereoMixer.
type AmbisonicMixerNode struct {
	id       NodeID
	Order    int
	min, max int
}

func NewAmbisonicMixerNode(id NodeID, order, minInputs, maxInputs int) *AmbisonicMixerNode {
	return &AmbisonicMixerNode{id: id, Order: order, min: minInputs, max: maxInputs}
}

func (n *AmbisonicMixerNode) ID() NodeID         { return n.id }
func (n *AmbisonicMixerNode) Kind() Kind         { return Processor }
func (n *AmbisonicMixerNode) CanConsume() bool   { return true }
func (n *AmbisonicMixerNode) CanProduce() bool   { return true }
func (n *AmbisonicMixerNode) MinInputCount() int { return n.min }
func (n *AmbisonicMixerNode) MaxInputCount() int { return n.max }
func (n *AmbisonicMixerNode) NewInstance() NodeInstance {
	return &stereoMixerInstance{channels: AmbisonicChannelCount(n.Order)}
}
