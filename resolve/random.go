package resolve

import (
	"math/rand"

	"github.com/amplimix/amplimix/amplierr"
)

// RandomScheduler performs weighted random selection across a fixed pool,
// with an optional FIFO of the last RepeatCount picks that candidates
// must avoid.
type RandomScheduler struct {
	Pool         []WeightedSound
	AvoidRepeat  bool
	RepeatCount  int
	rng          *rand.Rand
	recentPicks  []SoundID
}

// NewRandomScheduler builds a scheduler over pool. rng may be nil, in
// which case a new source seeded with 1 is used.
func NewRandomScheduler(pool []WeightedSound, avoidRepeat bool, repeatCount int, rng *rand.Rand) *RandomScheduler {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &RandomScheduler{
		Pool:        pool,
		AvoidRepeat: avoidRepeat,
		RepeatCount: repeatCount,
		rng:         rng,
	}
}

func (s *RandomScheduler) isRejected(id SoundID, skip []SoundID) bool {
	for _, sk := range skip {
		if sk == id {
			return true
		}
	}
	if !s.AvoidRepeat {
		return false
	}
	for _, p := range s.recentPicks {
		if p == id {
			return true
		}
	}
	return false
}

func (s *RandomScheduler) pushRecent(id SoundID) {
	if !s.AvoidRepeat || s.RepeatCount <= 0 {
		return
	}
	s.recentPicks = append(s.recentPicks, id)
	if len(s.recentPicks) > s.RepeatCount {
		s.recentPicks = s.recentPicks[len(s.recentPicks)-s.RepeatCount:]
	}
}

// Pick selects one id from the pool honoring AvoidRepeat/RepeatCount and an
// additional caller-supplied skip list (used by PlayAll semantics: "don't
// repick a sound that already played this round"). If every candidate is
// rejected — bounded by pool size, since the FIFO holds at most
// RepeatCount entries — the FIFO is cleared and the pick retried once.
func (s *RandomScheduler) Pick(skip []SoundID) (SoundID, error) {
	if len(s.Pool) == 0 {
		return "", amplierr.New("RandomScheduler.Pick", amplierr.ResourceNotFound, "empty pool")
	}

	id, ok := s.tryPick(skip)
	if ok {
		s.pushRecent(id)
		return id, nil
	}

	// Entire pool rejected: clear the no-repeat FIFO and retry once.
	s.recentPicks = nil
	id, ok = s.tryPick(skip)
	if !ok {
		return "", amplierr.New("RandomScheduler.Pick", amplierr.ResourceNotFound, "no eligible candidate in pool")
	}
	s.pushRecent(id)
	return id, nil
}

func (s *RandomScheduler) tryPick(skip []SoundID) (SoundID, bool) {
	total := 0.0
	for _, w := range s.Pool {
		if s.isRejected(w.ID, skip) {
			continue
		}
		total += w.Weight
	}
	if total <= 0 {
		return "", false
	}

	target := s.rng.Float64() * total
	acc := 0.0
	for _, w := range s.Pool {
		if s.isRejected(w.ID, skip) {
			continue
		}
		acc += w.Weight
		if target <= acc {
			return w.ID, true
		}
	}
	// floating point edge case: fall back to the last eligible candidate
	for i := len(s.Pool) - 1; i >= 0; i-- {
		if !s.isRejected(s.Pool[i].ID, skip) {
			return s.Pool[i].ID, true
		}
	}
	return "", false
}
