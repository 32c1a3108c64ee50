// Package resolve implements sound-object resolution: the three ways a single play
// request turns into a concrete sound id — weighted random selection with
// no-repeat tracking, cyclic sequence selection, and switch-state-mapped
// item sets with per-item fade in/out on state change.
package resolve

import (
	"time"

	"github.com/amplimix/amplimix/amplierr"
)

// SoundID identifies a leaf sound definition.
type SoundID string

// PlayMode controls how a Collection's end-of-sound behaviour is
// interpreted by the channel layer.
type PlayMode int

const (
	PlayOne PlayMode = iota
	PlayAll
	LoopOne
	LoopAll
)

// WeightedSound is one candidate in a Collection, with its random-pick
// weight (sequence collections ignore Weight).
type WeightedSound struct {
	ID     SoundID
	Weight float64
}

// SwitchStateID names one value a Switch can take, e.g. "metal", "grass".
type SwitchStateID string

// Switch is a named enumeration whose current value drives SwitchContainer
// resolution.
type Switch struct {
	Name    string
	Current SwitchStateID
}

// SwitchContainerItem is one sound bound to one or more switch states.
type SwitchContainerItem struct {
	SoundID               SoundID
	States                []SwitchStateID
	ContinueBetweenStates bool
	FadeIn                time.Duration
	FadeOut               time.Duration
	GainMultiplier        float32
	PitchMultiplier       float32
}

// errUnresolved reports an unresolved sound ID: a configuration error
// surfaced to the caller; the request is dropped with an error log, not
// retried.
func errUnresolved(op string, id SoundID) error {
	return amplierr.New(op, amplierr.ResourceNotFound, "unresolved sound id: "+string(id))
}
