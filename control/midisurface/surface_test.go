package midisurface

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gitlab.com/gomidi/midi/v2"
)

type recordingTarget struct {
	rtpcs  map[string]float64
	events []string
}

func newRecordingTarget() *recordingTarget {
	return &recordingTarget{rtpcs: make(map[string]float64)}
}

func (r *recordingTarget) SetRTPCValue(name string, v float64) error {
	r.rtpcs[name] = v
	return nil
}

func (r *recordingTarget) TriggerEvent(name string) error {
	r.events = append(r.events, name)
	return nil
}

func TestControlChangeDrivesRTPC(t *testing.T) {
	target := newRecordingTarget()
	s := New(target, nil)
	s.BindCC(7, "volume", 0, 2)

	s.Handle(midi.ControlChange(0, 7, 127))
	assert.InDelta(t, 2.0, target.rtpcs["volume"], 1e-9)

	s.Handle(midi.ControlChange(0, 7, 0))
	assert.InDelta(t, 0.0, target.rtpcs["volume"], 1e-9)

	// Unbound controllers are ignored.
	s.Handle(midi.ControlChange(0, 8, 64))
	assert.Len(t, target.rtpcs, 1, "only the bound controller set an RTPC")
}

func TestNoteOnTriggersEvent(t *testing.T) {
	target := newRecordingTarget()
	s := New(target, nil)
	s.BindNote(60, "explosion")

	s.Handle(midi.NoteOn(0, 60, 100))
	assert.Equal(t, []string{"explosion"}, target.events)

	// Note-off (velocity zero note-on) is not a note start.
	s.Handle(midi.NoteOn(0, 60, 0))
	assert.Len(t, target.events, 1)
}
