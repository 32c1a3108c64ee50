package amplimix

import (
	"sync"
	"time"

	"github.com/amplimix/amplimix/amplierr"
)

// OperationType names a dispatched engine operation.
type OperationType string

const (
	// Topology-grade operations: these reconfigure what the mix tick
	// assumes and are serialized through the dispatcher so they never
	// interleave with each other.
	OpUpdateDevice OperationType = "update_device"
	OpRestoreState OperationType = "restore_state"
	OpRegisterBus  OperationType = "register_bus"
	OpShutdown     OperationType = "shutdown"
)

// DispatcherOperation is one queued operation: a type tag, the work
// closure, and the reply channel the caller blocks on.
type DispatcherOperation struct {
	Type     OperationType
	Run      func() error
	Response chan DispatcherResult
}

// DispatcherResult reports one operation's outcome.
type DispatcherResult struct {
	Success bool
	Err     error
}

// Dispatcher serializes reconfiguration operations so they cannot
// interleave with each other, no matter how many application threads
// issue them. Play/stop/parameter traffic does not pass through here —
// those paths have their own per-object locking and must stay cheap.
type Dispatcher struct {
	mu        sync.RWMutex
	isRunning bool
	ops       chan DispatcherOperation
	stop      chan struct{}

	perfMu       sync.RWMutex
	lastDuration time.Duration
	maxDuration  time.Duration
}

// NewDispatcher builds a stopped dispatcher; Start launches its loop.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		ops:  make(chan DispatcherOperation, 64),
		stop: make(chan struct{}),
	}
}

// Start launches the dispatch loop.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.isRunning {
		return amplierr.New("Dispatcher.Start", amplierr.InvalidParameter, "dispatcher is already running")
	}
	d.isRunning = true
	go d.dispatchLoop()
	return nil
}

// Stop halts the dispatch loop; queued operations not yet started are
// abandoned with an Unsupported error.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.isRunning {
		return
	}
	close(d.stop)
	d.isRunning = false
}

// IsRunning reports whether the dispatch loop is live.
func (d *Dispatcher) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.isRunning
}

// PerformanceStats returns the last and worst operation durations.
func (d *Dispatcher) PerformanceStats() (last, max time.Duration) {
	d.perfMu.RLock()
	defer d.perfMu.RUnlock()
	return d.lastDuration, d.maxDuration
}

// Do queues run and blocks until it completes or the dispatcher stops.
func (d *Dispatcher) Do(opType OperationType, run func() error) error {
	const op = "Dispatcher.Do"
	d.mu.RLock()
	running := d.isRunning
	d.mu.RUnlock()
	if !running {
		return amplierr.New(op, amplierr.Unsupported, "dispatcher is not running")
	}

	operation := DispatcherOperation{
		Type:     opType,
		Run:      run,
		Response: make(chan DispatcherResult, 1),
	}
	select {
	case d.ops <- operation:
	case <-d.stop:
		return amplierr.New(op, amplierr.Unsupported, "dispatcher stopped")
	}

	select {
	case result := <-operation.Response:
		return result.Err
	case <-d.stop:
		return amplierr.New(op, amplierr.Unsupported, "dispatcher stopped")
	}
}

func (d *Dispatcher) dispatchLoop() {
	for {
		select {
		case op := <-d.ops:
			start := time.Now()
			err := op.Run()
			elapsed := time.Since(start)

			d.perfMu.Lock()
			d.lastDuration = elapsed
			if elapsed > d.maxDuration {
				d.maxDuration = elapsed
			}
			d.perfMu.Unlock()

			op.Response <- DispatcherResult{Success: err == nil, Err: err}
		case <-d.stop:
			return
		}
	}
}
