package resolve

import "github.com/amplimix/amplimix/amplierr"

// SequenceScheduler walks an ordered list cyclically. The PlayAll/PlayOne/
// LoopAll tie-break on end-of-sound is delegated to the channel layer
//; this type only hands out the next id in order.
type SequenceScheduler struct {
	Order []SoundID
	index int
}

// NewSequenceScheduler builds a scheduler over order.
func NewSequenceScheduler(order []SoundID) *SequenceScheduler {
	return &SequenceScheduler{Order: order}
}

// Next returns the current id and advances the cyclic pointer.
func (s *SequenceScheduler) Next() (SoundID, error) {
	if len(s.Order) == 0 {
		return "", amplierr.New("SequenceScheduler.Next", amplierr.ResourceNotFound, "empty sequence")
	}
	id := s.Order[s.index]
	s.index = (s.index + 1) % len(s.Order)
	return id, nil
}

// Peek returns the id Next would return without advancing.
func (s *SequenceScheduler) Peek() (SoundID, error) {
	if len(s.Order) == 0 {
		return "", amplierr.New("SequenceScheduler.Peek", amplierr.ResourceNotFound, "empty sequence")
	}
	return s.Order[s.index], nil
}

// Reset returns the cyclic pointer to the start, used when a LoopAll
// collection completes a full pass.
func (s *SequenceScheduler) Reset() { s.index = 0 }

// AtStart reports whether the pointer is back at index 0 (a full cycle
// completed).
func (s *SequenceScheduler) AtStart() bool { return s.index == 0 }
