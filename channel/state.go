package channel

import (
	"sync"

	"github.com/google/uuid"

	"github.com/amplimix/amplimix/mixer"
	"github.com/amplimix/amplimix/resolve"
	"github.com/amplimix/amplimix/spatial"
)

// activeSound is one sound the channel currently plays: standalone and
// collection channels hold exactly one, switch-container channels hold
// one per item bound to the current state.
type activeSound struct {
	def  *Definition
	item *resolve.SwitchContainerItem // nil outside containers

	loop  bool
	layer int // real mixer layer index, or -1 while virtual

	// itemFade ramps the item's own gain multiplier across a switch-state
	// transition; removeOnDone drops the sound once the fade-out lands.
	itemFade     *fadeState
	removeOnDone bool

	// virtualFrames is the simulated decode cursor in source frames,
	// advanced every frame whether or not the sound holds a real layer,
	// so promotion resumes at the correct sample position.
	virtualFrames float64
}

// itemGain returns the sound's current per-item multiplier.
func (a *activeSound) itemGain() float32 {
	g := float32(1)
	if a.item != nil && a.item.GainMultiplier != 0 {
		g = a.item.GainMultiplier
	}
	if a.itemFade != nil {
		g *= a.itemFade.gain()
	}
	return g
}

// InternalState is one virtual channel, recycled across plays. Handles detect recycling through the
// generation counter (stateID); a stale handle's stateID no longer
// matches and the handle becomes inert.
type InternalState struct {
	mu sync.Mutex

	id      uuid.UUID
	stateID uint64
	mgr     *Manager

	state PlaybackState

	// Sound-object binding: exactly one of def-only (standalone),
	// collection, or container is active per play.
	collection *resolve.Collection
	pool       []resolve.SoundID
	container  *resolve.SwitchContainer
	bank       Bank

	active []*activeSound

	userGain       float32
	spatialGain    float32
	pan            float32
	pitch          float64
	location       spatial.Vec3
	velocity       spatial.Vec3
	occlusion      float32
	obstruction    float32
	staticPriority float32

	fade *fadeState

	doppler   map[uuid.UUID]float64 // per-listener Doppler factors
	roomGains map[uuid.UUID]float32 // per-room gains

	listeners    map[mixer.EventKind][]EventHandler
	anyListeners []EventHandler // receive every kind; registered at Play

	real *RealChannel
}

// StateID returns the generation counter a Channel handle pins.
func (st *InternalState) StateID() uint64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.stateID
}

// recycle prepares the state for a new play: the generation counter is
// bumped so every handle minted against the previous play goes inert.
func (st *InternalState) recycle() {
	st.stateID++
	st.state = Stopped
	st.collection = nil
	st.pool = nil
	st.container = nil
	st.bank = nil
	st.active = nil
	st.userGain = 1
	st.spatialGain = 1
	st.pan = 0
	st.pitch = 1
	st.location = spatial.Vec3{}
	st.velocity = spatial.Vec3{}
	st.occlusion = 0
	st.obstruction = 0
	st.staticPriority = 1
	st.fade = nil
	st.doppler = make(map[uuid.UUID]float64)
	st.roomGains = make(map[uuid.UUID]float32)
	st.listeners = make(map[mixer.EventKind][]EventHandler)
	st.anyListeners = nil
	st.real = nil
}

// fadeGain returns the channel-wide fade multiplier, 1 when no fade is in
// flight.
func (st *InternalState) fadeGain() float32 {
	if st.fade == nil {
		return 1
	}
	return st.fade.gain()
}

// currentGain is the composite gain the virtualiser ranks by:
// priority = staticPriority * currentGain.
func (st *InternalState) currentGain() float32 {
	return st.userGain * st.spatialGain * st.fadeGain()
}

// effectivePriority ranks the channel for real-layer assignment.
func (st *InternalState) effectivePriority() float32 {
	return st.staticPriority * st.currentGain()
}

// findActive returns the active sound mapped to layer, or nil.
func (st *InternalState) findActive(layer int) *activeSound {
	for _, a := range st.active {
		if a.layer == layer {
			return a
		}
	}
	return nil
}

// removeActive drops a from the active list.
func (st *InternalState) removeActive(a *activeSound) {
	for i, cur := range st.active {
		if cur == a {
			st.active = append(st.active[:i], st.active[i+1:]...)
			return
		}
	}
}

// emit fires kind to every registered handler, outside st.mu. The caller
// must not hold the state mutex.
func (st *InternalState) emit(kind mixer.EventKind, sound resolve.SoundID) {
	st.mu.Lock()
	handlers := append([]EventHandler(nil), st.listeners[kind]...)
	handlers = append(handlers, st.anyListeners...)
	ch := Channel{state: st, stateID: st.stateID}
	st.mu.Unlock()
	for _, h := range handlers {
		h(Event{Channel: ch, Kind: kind, Sound: sound})
	}
}
