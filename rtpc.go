package amplimix

import (
	"sync"
	"time"

	"github.com/amplimix/amplimix/amplierr"
)

// RTPC is one real-time parameter control: a named numeric value clamped
// to [min, max] and smoothed over time towards its target. Consumers read
// Value each frame; producers set the target from any thread.
type RTPC struct {
	mu      sync.Mutex
	name    string
	min     float64
	max     float64
	value   float64
	target  float64
	seconds float64 // smoothing time constant; 0 jumps immediately
}

// NewRTPC builds a control spanning [min, max], starting at min, with
// smoothing over the given ramp duration.
func NewRTPC(name string, min, max float64, ramp time.Duration) (*RTPC, error) {
	const op = "NewRTPC"
	if min >= max {
		return nil, amplierr.New(op, amplierr.InvalidParameter, "rtpc min must be below max")
	}
	return &RTPC{
		name:    name,
		min:     min,
		max:     max,
		value:   min,
		target:  min,
		seconds: ramp.Seconds(),
	}, nil
}

// Name returns the control's registered name.
func (r *RTPC) Name() string { return r.name }

// Set retargets the control, clamping out-of-range values to the nearest
// bound.
func (r *RTPC) Set(v float64) {
	r.mu.Lock()
	if v < r.min {
		v = r.min
	}
	if v > r.max {
		v = r.max
	}
	r.target = v
	if r.seconds <= 0 {
		r.value = v
	}
	r.mu.Unlock()
}

// Value returns the current smoothed value.
func (r *RTPC) Value() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value
}

// Target returns the value the smoother is chasing.
func (r *RTPC) Target() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target
}

// advance moves value towards target by dt against the ramp constant,
// called once per frame update.
func (r *RTPC) advance(dt time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seconds <= 0 || r.value == r.target {
		r.value = r.target
		return
	}
	step := dt.Seconds() / r.seconds * (r.max - r.min)
	switch {
	case r.value < r.target:
		r.value += step
		if r.value > r.target {
			r.value = r.target
		}
	case r.value > r.target:
		r.value -= step
		if r.value < r.target {
			r.value = r.target
		}
	}
}
