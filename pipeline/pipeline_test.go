package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amplimix/amplimix/amplierr"
	"github.com/amplimix/amplimix/buffer"
	"github.com/amplimix/amplimix/spatial"
)

func monoContext(frames int, value float32) (*EvalContext, *buffer.Buffer) {
	src, _ := buffer.New(frames, 1)
	ch := src.GetChannel(0)
	for i := 0; i < frames; i++ {
		ch[i] = value
	}
	return &EvalContext{
		FrameCount:       frames,
		Source:           src,
		Listener:         ListenerState{Position: spatial.Vec3{}, Orientation: spatial.IdentityQuaternion()},
		Entity:           EntityState{Position: spatial.Vec3{X: 1, Y: 0, Z: 0}},
		AttenuationCurve: LinearFader{},
		OcclusionCurve:   LinearFader{},
		ObstructionCurve: LinearFader{},
		MaxDistance:      10,
	}, src
}

func linearPipeline(t *testing.T) *Pipeline {
	t.Helper()
	const clipID NodeID = 1
	nodes := []Node{
		InputNode{},
		NewClipNode(clipID, 1),
		NewOutputNode(1),
	}
	producers := map[NodeID][]NodeID{
		clipID:       {InputNodeID},
		OutputNodeID: {clipID},
	}
	p := NewPipeline(nodes, producers)
	require.NoError(t, p.Validate())
	return p
}

func TestPipelineValidateAcceptsLinearGraph(t *testing.T) {
	linearPipeline(t)
}

func TestPipelineValidateRejectsMissingOutput(t *testing.T) {
	p := NewPipeline([]Node{InputNode{}}, nil)
	err := p.Validate()
	require.Error(t, err)
	assert.True(t, amplierr.Is(err, amplierr.InvalidConfiguration))
}

func TestPipelineValidateRejectsSelfConsumption(t *testing.T) {
	const id NodeID = 1
	nodes := []Node{InputNode{}, NewClipNode(id, 1), NewOutputNode(1)}
	producers := map[NodeID][]NodeID{
		id:           {id},
		OutputNodeID: {id},
	}
	p := NewPipeline(nodes, producers)
	err := p.Validate()
	require.Error(t, err)
}

func TestPipelineValidateRejectsCycle(t *testing.T) {
	const a, b NodeID = 1, 2
	nodes := []Node{InputNode{}, NewClipNode(a, 1), NewClipNode(b, 1), NewOutputNode(1)}
	producers := map[NodeID][]NodeID{
		a:            {InputNodeID, b},
		b:            {a},
		OutputNodeID: {a},
	}
	p := NewPipeline(nodes, producers)
	err := p.Validate()
	require.Error(t, err)
}

func TestPipelineValidateRejectsUnreachableNode(t *testing.T) {
	const orphan NodeID = 9
	nodes := []Node{InputNode{}, NewOutputNode(1), NewClipNode(orphan, 1)}
	producers := map[NodeID][]NodeID{
		OutputNodeID: {InputNodeID},
	}
	p := NewPipeline(nodes, producers)
	err := p.Validate()
	require.Error(t, err)
}

func TestPipelineExecuteClipsSignal(t *testing.T) {
	p := linearPipeline(t)
	inst := p.NewInstance()
	ctx, _ := monoContext(buffer.BlockSize, 1.5)

	out, err := inst.Execute(ctx)
	require.NoError(t, err)
	for _, v := range out.GetChannel(0)[:ctx.FrameCount] {
		assert.InDelta(t, 1.0, v, 1e-6)
	}
}

func TestClampGatesBeyondMaxDistance(t *testing.T) {
	const clampID NodeID = 1
	nodes := []Node{InputNode{}, NewClampNode(clampID, 1), NewOutputNode(1)}
	producers := map[NodeID][]NodeID{
		clampID:      {InputNodeID},
		OutputNodeID: {clampID},
	}
	p := NewPipeline(nodes, producers)
	require.NoError(t, p.Validate())
	inst := p.NewInstance()

	ctx, _ := monoContext(buffer.BlockSize, 1.0)
	ctx.Entity.Position = spatial.Vec3{X: 20}
	ctx.MaxDistance = 10
	out, err := inst.Execute(ctx)
	require.NoError(t, err)
	for _, v := range out.GetChannel(0)[:ctx.FrameCount] {
		assert.Zero(t, v)
	}
}

func TestPipelineExecuteCachesSharedProducer(t *testing.T) {
	const shared NodeID = 1
	const mixID NodeID = 2
	nodes := []Node{
		InputNode{},
		NewClipNode(shared, 1), // pass-through at this amplitude
		NewStereoMixerNode(mixID, 1, 2, 2),
		NewOutputNode(1),
	}
	producers := map[NodeID][]NodeID{
		shared:       {InputNodeID},
		mixID:        {shared, shared},
		OutputNodeID: {mixID},
	}
	p := NewPipeline(nodes, producers)
	require.NoError(t, p.Validate())

	inst := p.NewInstance()
	ctx, _ := monoContext(buffer.BlockSize, 0.25)
	out, err := inst.Execute(ctx)
	require.NoError(t, err)
	// shared is evaluated once but consumed twice, so the mixer sums it
	// with itself: 0.25 + 0.25 = 0.5.
	for _, v := range out.GetChannel(0)[:ctx.FrameCount] {
		assert.InDelta(t, 0.5, v, 1e-6)
	}
}

// TestZeroInputProducesZeroOutput is the linearity invariant: a pipeline
// built entirely of linear nodes (attenuation, stereo panning)
// fed a silent source must produce silence, since every stage here is a
// linear scaling of its input.
func TestZeroInputProducesZeroOutput(t *testing.T) {
	const attenID NodeID = 1
	const panID NodeID = 2
	nodes := []Node{
		InputNode{},
		NewAttenuationNode(attenID),
		NewStereoPanningNode(panID),
		NewOutputNode(2),
	}
	producers := map[NodeID][]NodeID{
		attenID:      {InputNodeID},
		panID:        {attenID},
		OutputNodeID: {panID},
	}
	p := NewPipeline(nodes, producers)
	require.NoError(t, p.Validate())

	inst := p.NewInstance()
	ctx, _ := monoContext(buffer.BlockSize, 0.0)
	out, err := inst.Execute(ctx)
	require.NoError(t, err)
	for ch := 0; ch < out.ChannelCount(); ch++ {
		for _, v := range out.GetChannel(ch)[:ctx.FrameCount] {
			assert.Zero(t, v)
		}
	}
}

func TestAttenuationDecaysWithDistance(t *testing.T) {
	const attenID NodeID = 1
	nodes := []Node{InputNode{}, NewAttenuationNode(attenID), NewOutputNode(1)}
	producers := map[NodeID][]NodeID{
		attenID:      {InputNodeID},
		OutputNodeID: {attenID},
	}
	p := NewPipeline(nodes, producers)
	require.NoError(t, p.Validate())
	inst := p.NewInstance()

	ctxNear, _ := monoContext(buffer.BlockSize, 1.0)
	ctxNear.Entity.Position = spatial.Vec3{X: 1}
	outNear, err := inst.Execute(ctxNear)
	require.NoError(t, err)
	// Execute reuses its output buffer, so read the near value before the
	// next call.
	near := outNear.GetChannel(0)[0]

	inst.Reset()
	ctxFar, _ := monoContext(buffer.BlockSize, 1.0)
	ctxFar.Entity.Position = spatial.Vec3{X: 9}
	outFar, err := inst.Execute(ctxFar)
	require.NoError(t, err)

	assert.Greater(t, near, outFar.GetChannel(0)[0])
}

func TestOcclusionSilencesFullyOccludedSource(t *testing.T) {
	const occID NodeID = 1
	nodes := []Node{InputNode{}, NewOcclusionNode(occID), NewOutputNode(1)}
	producers := map[NodeID][]NodeID{
		occID:        {InputNodeID},
		OutputNodeID: {occID},
	}
	p := NewPipeline(nodes, producers)
	require.NoError(t, p.Validate())
	inst := p.NewInstance()

	ctx, _ := monoContext(64, 1.0)
	ctx.Entity.Occlusion = 1.0
	out, err := inst.Execute(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0, out.GetChannel(0)[63], 1e-3)
}

func TestAmbisonicPanningPreservesOmniEnergyInWChannel(t *testing.T) {
	const panID NodeID = 1
	nodes := []Node{InputNode{}, NewAmbisonicPanningNode(panID, 1), NewOutputNode(AmbisonicChannelCount(1))}
	producers := map[NodeID][]NodeID{
		panID:        {InputNodeID},
		OutputNodeID: {panID},
	}
	p := NewPipeline(nodes, producers)
	require.NoError(t, p.Validate())
	inst := p.NewInstance()

	ctx, _ := monoContext(buffer.BlockSize, 1.0)
	out, err := inst.Execute(ctx)
	require.NoError(t, err)
	// W (ACN 0) always carries the omnidirectional component regardless of
	// direction.
	assert.InDelta(t, 1.0, out.GetChannel(0)[0], 1e-6)
}

type fakeHRIR struct{ length int }

func (f fakeHRIR) Sample(direction spatial.Vec3) ([]float32, []float32) {
	ir := make([]float32, f.length)
	ir[0] = 1
	return ir, ir
}
func (f fakeHRIR) IRLength() int { return f.length }

func TestAmbisonicBinauralDecoderProducesNonZeroOutput(t *testing.T) {
	const panID NodeID = 1
	const decID NodeID = 2
	nodes := []Node{
		InputNode{},
		NewAmbisonicPanningNode(panID, 1),
		NewAmbisonicBinauralDecoderNode(decID, 1),
		NewOutputNode(2),
	}
	producers := map[NodeID][]NodeID{
		panID:        {InputNodeID},
		decID:        {panID},
		OutputNodeID: {decID},
	}
	p := NewPipeline(nodes, producers)
	require.NoError(t, p.Validate())
	inst := p.NewInstance()

	ctx, _ := monoContext(buffer.BlockSize, 1.0)
	ctx.HRIR = fakeHRIR{length: 4}
	out, err := inst.Execute(ctx)
	require.NoError(t, err)
	assert.NotZero(t, out.GetChannel(0)[0])
	assert.NotZero(t, out.GetChannel(1)[0])
}
