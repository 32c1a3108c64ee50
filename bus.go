package amplimix

import (
	"sync"

	"github.com/google/uuid"

	"github.com/amplimix/amplimix/channel"
)

// Bus is a named gain group: every channel played onto a bus has the
// bus's gain folded into its user gain, and SetGain retargets all of
// them live.
type Bus struct {
	mu   sync.Mutex
	id   uuid.UUID
	name string
	gain float32

	// members holds the live channels routed through this bus; stale
	// handles fall out lazily since mutations on them are no-ops.
	members []channel.Channel
}

func newBus(name string, gain float32) *Bus {
	if gain == 0 {
		gain = 1
	}
	return &Bus{id: uuid.New(), name: name, gain: gain}
}

// ID returns the bus's stable identity.
func (b *Bus) ID() uuid.UUID { return b.id }

// Name returns the bus's registered name.
func (b *Bus) Name() string { return b.name }

// Gain returns the bus gain.
func (b *Bus) Gain() float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gain
}

// SetGain retargets the bus and rescales every live member channel.
func (b *Bus) SetGain(gain float32) {
	b.mu.Lock()
	old := b.gain
	b.gain = gain
	members := b.compactLocked()
	b.mu.Unlock()

	if old == 0 {
		return
	}
	for _, ch := range members {
		ch.SetGain(ch.Gain() / old * gain)
	}
}

// attach routes ch through the bus, folding the bus gain into the
// channel's user gain.
func (b *Bus) attach(ch channel.Channel) {
	b.mu.Lock()
	b.members = append(b.members, ch)
	gain := b.gain
	b.mu.Unlock()
	ch.SetGain(ch.Gain() * gain)
}

// compactLocked drops invalidated handles and returns the live set.
// Caller holds b.mu.
func (b *Bus) compactLocked() []channel.Channel {
	live := b.members[:0]
	for _, ch := range b.members {
		if ch.Valid() {
			live = append(live, ch)
		}
	}
	b.members = live
	return append([]channel.Channel(nil), live...)
}
