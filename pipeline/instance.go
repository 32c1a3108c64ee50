package pipeline

import (
	"github.com/amplimix/amplimix/amplierr"
	"github.com/amplimix/amplimix/buffer"
)

type cachedOutput struct {
	buf   *buffer.Buffer
	valid bool
}

// PipelineInstance is the per-layer evaluation of a Pipeline: one
// NodeInstance per declared node, plus a per-tick output cache so a node
// feeding multiple consumers is only evaluated once per tick.
type PipelineInstance struct {
	pipeline  *Pipeline
	instances map[NodeID]NodeInstance
	cache     map[NodeID]*cachedOutput
}

// Execute evaluates the pipeline for one mix tick by pulling from the
// output node backward, and returns the output node's buffer. The
// returned buffer is owned by the instance and is only valid until the
// next Execute/Reset call.
func (pi *PipelineInstance) Execute(ctx *EvalContext) (*buffer.Buffer, error) {
	for _, c := range pi.cache {
		c.valid = false
	}
	return pi.evaluate(ctx, OutputNodeID, nil)
}

// evaluate pulls node id's output, recursively evaluating its producers
// first (in declared order) and caching the result for this tick.
func (pi *PipelineInstance) evaluate(ctx *EvalContext, id NodeID, stack []NodeID) (*buffer.Buffer, error) {
	const op = "PipelineInstance.Execute"

	if c, ok := pi.cache[id]; ok && c.valid {
		return c.buf, nil
	}
	for _, visiting := range stack {
		if visiting == id {
			return nil, amplierr.New(op, amplierr.InvalidConfiguration, "cycle detected during evaluation")
		}
	}
	stack = append(stack, id)

	inst, ok := pi.instances[id]
	if !ok {
		return nil, amplierr.New(op, amplierr.ResourceNotFound, "node instance missing")
	}

	producerIDs := pi.pipeline.producers[id]
	inputs := make([]*buffer.Buffer, 0, len(producerIDs))
	for _, prodID := range producerIDs {
		if prodID == InputNodeID {
			inputs = append(inputs, ctx.Source)
			continue
		}
		in, err := pi.evaluate(ctx, prodID, stack)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}

	frames, channels := inst.OutputShape(ctx)
	c, ok := pi.cache[id]
	if !ok || c.buf == nil || c.buf.FrameCount() != frames || c.buf.ChannelCount() != channels {
		buf, err := buffer.New(frames, channels)
		if err != nil {
			return nil, amplierr.Wrap(op, amplierr.OutOfMemory, "allocating node output buffer", err)
		}
		c = &cachedOutput{buf: buf}
		pi.cache[id] = c
	}

	if id == InputNodeID {
		c.buf = ctx.Source
	} else if err := inst.Process(ctx, inputs, c.buf); err != nil {
		return nil, amplierr.Wrap(op, amplierr.Unsupported, "node process failed", err)
	}
	c.valid = true
	return c.buf, nil
}

// Reset clears all node instance state (e.g. filter history) between
// uses, such as when a layer is reassigned to a new sound.
func (pi *PipelineInstance) Reset() {
	for _, inst := range pi.instances {
		inst.Reset()
	}
	for _, c := range pi.cache {
		c.valid = false
	}
}

// Instance returns the per-layer NodeInstance for id, for callers that
// need direct access to a specific node's state (e.g. a stateful
// occlusion filter instance in tests).
func (pi *PipelineInstance) Instance(id NodeID) (NodeInstance, bool) {
	inst, ok := pi.instances[id]
	return inst, ok
}
