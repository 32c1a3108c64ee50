// Package midisurface is an optional control-surface adapter: it maps
// incoming MIDI control-change messages onto RTPC updates and note-on
// messages onto event triggers, feeding the engine's control API from a
// hardware surface. It never touches the mix path.
package midisurface

import (
	"sync"
	"time"

	"github.com/rakyll/portmidi"
	"gitlab.com/gomidi/midi/v2"

	"github.com/amplimix/amplimix/amplierr"
	"github.com/amplimix/amplimix/applog"
)

// ControlTarget is the slice of the engine's control API the surface
// drives. *amplimix.Engine satisfies it.
type ControlTarget interface {
	SetRTPCValue(name string, v float64) error
	TriggerEvent(name string) error
}

// CCBinding maps one MIDI controller number onto an RTPC, rescaling the
// 0..127 controller range to [Min, Max].
type CCBinding struct {
	Controller uint8
	RTPC       string
	Min        float64
	Max        float64
}

// NoteBinding maps one MIDI key onto a named engine event.
type NoteBinding struct {
	Key   uint8
	Event string
}

// Surface polls one MIDI input port and forwards bound messages to its
// target.
type Surface struct {
	target ControlTarget
	log    applog.Logger

	mu     sync.Mutex
	ccs    map[uint8]CCBinding
	notes  map[uint8]NoteBinding
	stream *portmidi.Stream
	stop   chan struct{}
	done   chan struct{}
}

// New builds a surface driving target. log may be nil.
func New(target ControlTarget, log applog.Logger) *Surface {
	if log == nil {
		log = applog.Nop()
	}
	return &Surface{
		target: target,
		log:    applog.Component(log, "midisurface"),
		ccs:    make(map[uint8]CCBinding),
		notes:  make(map[uint8]NoteBinding),
	}
}

// BindCC routes controller onto the named RTPC, rescaled to [min, max].
func (s *Surface) BindCC(controller uint8, rtpc string, min, max float64) {
	s.mu.Lock()
	s.ccs[controller] = CCBinding{Controller: controller, RTPC: rtpc, Min: min, Max: max}
	s.mu.Unlock()
}

// BindNote routes key presses onto the named engine event.
func (s *Surface) BindNote(key uint8, event string) {
	s.mu.Lock()
	s.notes[key] = NoteBinding{Key: key, Event: event}
	s.mu.Unlock()
}

// Open connects the surface to the given portmidi input device and
// starts the poll loop.
func (s *Surface) Open(device portmidi.DeviceID) error {
	const op = "Surface.Open"
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		return amplierr.New(op, amplierr.InvalidParameter, "surface is already open")
	}
	if err := portmidi.Initialize(); err != nil {
		return amplierr.Wrap(op, amplierr.InvalidConfiguration, "initializing portmidi", err)
	}
	stream, err := portmidi.NewInputStream(device, 64)
	if err != nil {
		return amplierr.Wrap(op, amplierr.ResourceNotFound, "opening midi input", err)
	}
	s.stream = stream
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.poll(stream, s.stop, s.done)
	return nil
}

// Close stops the poll loop and releases the port.
func (s *Surface) Close() {
	s.mu.Lock()
	stream := s.stream
	stop := s.stop
	done := s.done
	s.stream = nil
	s.mu.Unlock()
	if stream == nil {
		return
	}
	close(stop)
	<-done
	if err := stream.Close(); err != nil {
		s.log.Warn("closing midi stream", "err", err)
	}
	portmidi.Terminate()
}

// poll drains the input stream until stopped, translating portmidi
// events into midi messages for dispatch.
func (s *Surface) poll(stream *portmidi.Stream, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			events, err := stream.Read(64)
			if err != nil {
				continue
			}
			for _, ev := range events {
				msg := midi.Message([]byte{byte(ev.Status), byte(ev.Data1), byte(ev.Data2)})
				s.Handle(msg)
			}
		}
	}
}

// Handle dispatches one MIDI message against the surface's bindings. It
// is exported so hosts with their own MIDI transport can feed the
// surface directly.
func (s *Surface) Handle(msg midi.Message) {
	var ch, key, velocity, controller, value uint8

	switch {
	case msg.GetControlChange(&ch, &controller, &value):
		s.mu.Lock()
		binding, ok := s.ccs[controller]
		s.mu.Unlock()
		if !ok {
			return
		}
		scaled := binding.Min + float64(value)/127*(binding.Max-binding.Min)
		if err := s.target.SetRTPCValue(binding.RTPC, scaled); err != nil {
			s.log.Warn("cc binding failed", "rtpc", binding.RTPC, "err", err)
		}

	case msg.GetNoteStart(&ch, &key, &velocity):
		s.mu.Lock()
		binding, ok := s.notes[key]
		s.mu.Unlock()
		if !ok {
			return
		}
		if err := s.target.TriggerEvent(binding.Event); err != nil {
			s.log.Warn("note binding failed", "event", binding.Event, "err", err)
		}
	}
}
