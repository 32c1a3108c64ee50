package amplimix

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/amplimix/amplimix/amplierr"
	"github.com/amplimix/amplimix/resolve"
)

// EngineState is the serializable control-surface snapshot of an engine:
// configuration, device assumption, bus gains, RTPC targets, and switch
// states. Live channels are deliberately not captured — playback position
// is transient by nature.
type EngineState struct {
	Version  string                           `json:"version"`
	Config   Config                           `json:"config"`
	Device   DeviceDescription                `json:"device"`
	Buses    map[string]float32               `json:"buses,omitempty"`
	RTPCs    map[string]float64               `json:"rtpcs,omitempty"`
	Switches map[string]resolve.SwitchStateID `json:"switches,omitempty"`
}

// stateVersion is the engine state format version.
const stateVersion = "1.0.0"

// Serializer captures and restores engine control state.
type Serializer struct {
	engine *Engine
	mu     sync.Mutex
}

// NewSerializer builds a serializer over engine.
func NewSerializer(engine *Engine) *Serializer {
	return &Serializer{engine: engine}
}

// GetState captures the engine's current control state.
func (s *Serializer) GetState() EngineState {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.engine
	e.mu.RLock()
	defer e.mu.RUnlock()

	state := EngineState{
		Version:  stateVersion,
		Config:   e.config,
		Device:   e.monitor.description(),
		Buses:    make(map[string]float32, len(e.buses)),
		RTPCs:    make(map[string]float64, len(e.rtpcs)),
		Switches: make(map[string]resolve.SwitchStateID, len(e.switches)),
	}
	for name, b := range e.buses {
		state.Buses[name] = b.Gain()
	}
	for name, r := range e.rtpcs {
		state.RTPCs[name] = r.Target()
	}
	for name, sw := range e.switches {
		state.Switches[name] = sw.Current
	}
	return state
}

// SetState restores bus gains, RTPC targets, and switch states from a
// captured snapshot, routed through the dispatcher so it cannot
// interleave with other topology changes. Unknown names are skipped with
// a log line; restore continues for the rest, so one bad entry never
// blocks the remainder.
func (s *Serializer) SetState(state EngineState) error {
	const op = "Serializer.SetState"
	if state.Version != stateVersion {
		return amplierr.New(op, amplierr.InvalidConfiguration,
			"incompatible state version: "+state.Version)
	}

	e := s.engine
	return e.dispatcher.Do(OpRestoreState, func() error {
		for name, gain := range state.Buses {
			if bus, ok := e.Bus(name); ok {
				bus.SetGain(gain)
			} else {
				e.log.Warn("state restore: unknown bus", "bus", name)
			}
		}
		for name, v := range state.RTPCs {
			if err := e.SetRTPCValue(name, v); err != nil {
				e.log.Warn("state restore: unknown rtpc", "rtpc", name)
			}
		}
		for name, sw := range state.Switches {
			if err := e.SetSwitchState(name, sw); err != nil {
				e.log.Warn("state restore: unknown switch", "switch", name)
			}
		}
		return nil
	})
}

// Save writes the engine state as JSON.
func (s *Serializer) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.GetState()); err != nil {
		return amplierr.Wrap("Serializer.Save", amplierr.InvalidConfiguration, "encoding engine state", err)
	}
	return nil
}

// Load reads a JSON engine state and restores it.
func (s *Serializer) Load(r io.Reader) error {
	var state EngineState
	if err := json.NewDecoder(r).Decode(&state); err != nil {
		return amplierr.Wrap("Serializer.Load", amplierr.InvalidConfiguration, "decoding engine state", err)
	}
	return s.SetState(state)
}
