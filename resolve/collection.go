package resolve

import "github.com/amplimix/amplimix/amplierr"

// Collection is a sound object backed by either a random or a sequence
// scheduler, with a PlayMode the channel layer consults on end-of-sound.
type Collection struct {
	Mode     PlayMode
	Random   *RandomScheduler   // non-nil for random-scheduled collections
	Sequence *SequenceScheduler // non-nil for sequence-scheduled collections

	played map[SoundID]bool // PlayAll/LoopAll bookkeeping
}

// NewRandomCollection builds a Collection backed by a RandomScheduler.
func NewRandomCollection(mode PlayMode, s *RandomScheduler) *Collection {
	return &Collection{Mode: mode, Random: s, played: make(map[SoundID]bool)}
}

// NewSequenceCollection builds a Collection backed by a SequenceScheduler.
func NewSequenceCollection(mode PlayMode, s *SequenceScheduler) *Collection {
	return &Collection{Mode: mode, Sequence: s, played: make(map[SoundID]bool)}
}

// Pick selects the next sound id. A random-scheduled collection honors the
// caller's skip list (used by PlayAll semantics to avoid repicking an
// already-played sound within the same round); a sequence-scheduled one
// ignores skip and returns its next id in order.
func (c *Collection) Pick(skip []SoundID) (SoundID, error) {
	switch {
	case c.Random != nil:
		return c.Random.Pick(skip)
	case c.Sequence != nil:
		return c.Sequence.Next()
	default:
		return "", amplierr.New("Collection.Pick", amplierr.InvalidConfiguration, "collection has no scheduler")
	}
}

// MarkPlayed records that id finished playing, for PlayAll/LoopAll's
// "all sounds played" bookkeeping.
func (c *Collection) MarkPlayed(id SoundID) {
	if c.played == nil {
		c.played = make(map[SoundID]bool)
	}
	c.played[id] = true
}

// Played lists the ids marked played in the current round, usable as a
// Pick skip list so PlayAll rounds visit every sound once.
func (c *Collection) Played() []SoundID {
	out := make([]SoundID, 0, len(c.played))
	for id := range c.played {
		out = append(out, id)
	}
	return out
}

// AllPlayed reports whether every id in pool has been marked played.
func (c *Collection) AllPlayed(pool []SoundID) bool {
	for _, id := range pool {
		if !c.played[id] {
			return false
		}
	}
	return true
}

// ClearPlayed resets the played set, done once a PlayAll/LoopAll round
// completes.
func (c *Collection) ClearPlayed() {
	c.played = make(map[SoundID]bool)
}
