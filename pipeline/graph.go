package pipeline

import (
	"github.com/amplimix/amplimix/amplierr"
)

// Pipeline is a registry-declared DAG of nodes with a producer list per
// consuming input. It is immutable once Validate succeeds;
// PipelineInstance is the per-layer mutable evaluation.
type Pipeline struct {
	nodes     map[NodeID]Node
	producers map[NodeID][]NodeID // consumer -> ordered list of producers
}

// NewPipeline declares a pipeline from its node set and producer wiring.
// It does not validate; call Validate (or Build, which validates and
// returns the pipeline) before using it.
func NewPipeline(nodes []Node, producers map[NodeID][]NodeID) *Pipeline {
	m := make(map[NodeID]Node, len(nodes))
	for _, n := range nodes {
		m[n.ID()] = n
	}
	if producers == nil {
		producers = map[NodeID][]NodeID{}
	}
	return &Pipeline{nodes: m, producers: producers}
}

// Validate checks every structural invariant of the graph:
//   - exactly one input node (InputNodeID) and one output node
//     (OutputNodeID)
//   - no node consumes itself
//   - every node's producer count lies in [Min,Max]InputCount()
//   - every node is reachable from the input and reaches the output
//   - no cycles
//
// Validation failures return a descriptive *amplierr.Error with Kind
// InvalidConfiguration; the caller must not call NewInstance on an
// unvalidated Pipeline.
func (p *Pipeline) Validate() error {
	const op = "Pipeline.Validate"

	input, ok := p.nodes[InputNodeID]
	if !ok {
		return amplierr.New(op, amplierr.InvalidConfiguration, "missing input terminal node")
	}
	output, ok := p.nodes[OutputNodeID]
	if !ok {
		return amplierr.New(op, amplierr.InvalidConfiguration, "missing output terminal node")
	}
	if !input.CanProduce() {
		return amplierr.New(op, amplierr.InvalidConfiguration, "input node must produce")
	}
	if !output.CanConsume() {
		return amplierr.New(op, amplierr.InvalidConfiguration, "output node must consume")
	}

	for id, producers := range p.producers {
		n, ok := p.nodes[id]
		if !ok {
			return amplierr.New(op, amplierr.InvalidConfiguration, "producer list references unknown node")
		}
		for _, prodID := range producers {
			if prodID == id {
				return amplierr.New(op, amplierr.InvalidConfiguration, "node consumes itself")
			}
			if _, ok := p.nodes[prodID]; !ok {
				return amplierr.New(op, amplierr.InvalidConfiguration, "producer references unknown node")
			}
		}
		if len(producers) < n.MinInputCount() || len(producers) > n.MaxInputCount() {
			return amplierr.New(op, amplierr.InvalidConfiguration, "producer count out of bounds")
		}
	}
	for id, n := range p.nodes {
		if id == InputNodeID {
			continue
		}
		if n.CanConsume() && len(p.producers[id]) < n.MinInputCount() {
			return amplierr.New(op, amplierr.InvalidConfiguration, "non-input node has no producer")
		}
	}

	if err := p.checkAcyclicAndReachable(); err != nil {
		return err
	}
	return nil
}

func (p *Pipeline) checkAcyclicAndReachable() error {
	const op = "Pipeline.Validate"

	// Topological sort (Kahn's algorithm) proves acyclicity.
	indegree := make(map[NodeID]int, len(p.nodes))
	for id := range p.nodes {
		indegree[id] = 0
	}
	for id, producers := range p.producers {
		indegree[id] += len(producers)
	}
	// Edges run producer -> consumer; build adjacency for forward reach.
	adj := make(map[NodeID][]NodeID, len(p.nodes))
	for consumer, producers := range p.producers {
		for _, prod := range producers {
			adj[prod] = append(adj[prod], consumer)
		}
	}

	queue := []NodeID{}
	for id, d := range indegree {
		if d == 0 {
			queue = append(queue, id)
		}
	}
	visited := 0
	reachableFromInput := map[NodeID]bool{InputNodeID: true}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range adj[id] {
			if reachableFromInput[id] {
				reachableFromInput[next] = true
			}
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if visited != len(p.nodes) {
		return amplierr.New(op, amplierr.InvalidConfiguration, "pipeline graph contains a cycle")
	}

	for id := range p.nodes {
		if !reachableFromInput[id] {
			return amplierr.New(op, amplierr.InvalidConfiguration, "node not reachable from input")
		}
	}
	if !p.reachesOutput(OutputNodeID) {
		return amplierr.New(op, amplierr.InvalidConfiguration, "output not reachable from some node")
	}
	reaches := make(map[NodeID]bool)
	var mark func(NodeID)
	mark = func(id NodeID) {
		if reaches[id] {
			return
		}
		reaches[id] = true
		for _, prod := range p.producers[id] {
			mark(prod)
		}
	}
	mark(OutputNodeID)
	for id := range p.nodes {
		if !reaches[id] {
			return amplierr.New(op, amplierr.InvalidConfiguration, "node does not reach output")
		}
	}
	return nil
}

func (p *Pipeline) reachesOutput(id NodeID) bool {
	_, ok := p.nodes[id]
	return ok
}

// Build validates p and returns it unchanged on success.
func Build(p *Pipeline) (*Pipeline, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewInstance constructs a PipelineInstance owning one NodeInstance per
// declared node.
func (p *Pipeline) NewInstance() *PipelineInstance {
	instances := make(map[NodeID]NodeInstance, len(p.nodes))
	for id, n := range p.nodes {
		instances[id] = n.NewInstance()
	}
	return &PipelineInstance{
		pipeline:  p,
		instances: instances,
		cache:     make(map[NodeID]*cachedOutput),
	}
}
