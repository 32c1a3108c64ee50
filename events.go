package amplimix

import (
	"time"

	"github.com/amplimix/amplimix/resolve"
)

// EventActionKind enumerates what one action of a triggered event does.
type EventActionKind int

const (
	// ActionPlay starts the named sound object.
	ActionPlay EventActionKind = iota
	// ActionStop stops every live channel started from the named sound
	// object, with the action's fade duration.
	ActionStop
	// ActionSetSwitch sets the named switch to the action's state.
	ActionSetSwitch
	// ActionSetRTPC sets the named RTPC to the action's value.
	ActionSetRTPC
)

// EventAction is one step of a triggered event.
type EventAction struct {
	Kind   EventActionKind
	Target string // sound object, switch, or RTPC name

	Fade  time.Duration         // ActionStop
	State resolve.SwitchStateID // ActionSetSwitch
	Value float64               // ActionSetRTPC
}

// EventDefinition is a named, triggerable list of actions. Actions run
// in declaration order.
type EventDefinition struct {
	Name    string
	Actions []EventAction
}
