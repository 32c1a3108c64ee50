package channel

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amplimix/amplimix/amplierr"
	"github.com/amplimix/amplimix/applog"
	"github.com/amplimix/amplimix/mixer"
	"github.com/amplimix/amplimix/pipeline"
	"github.com/amplimix/amplimix/resolve"
	"github.com/amplimix/amplimix/spatial"
)

// Manager owns every channel's internal state and runs the
// virtualisation policy: on each frame it ranks audible channels by
// priority = staticPriority * currentGain and maps the top ranks onto
// real mixer layers, leaving the rest virtual with their cursors
// advancing in simulated time.
type Manager struct {
	mix        *mixer.Mixer
	sampleRate int
	capacity   int
	log        applog.Logger

	// fadeCurve shapes every stop/pause/resume fade; it defaults to linear,
	// and SetFadeCurve selects another curve.
	fadeCurve pipeline.Fader

	mu          sync.Mutex
	channels    []*InternalState
	free        []*InternalState
	owners      map[int]*InternalState // mixer layer index -> owning channel
	nextRequest uint64
	envs        []pipeline.EnvironmentFactor
}

// NewManager builds a Manager mixing into mix, with at most capacity real
// mixer layers handed out at any time. log may be nil.
func NewManager(mix *mixer.Mixer, sampleRate, capacity int, log applog.Logger) *Manager {
	if log == nil {
		log = applog.Nop()
	}
	return &Manager{
		mix:        mix,
		sampleRate: sampleRate,
		capacity:   capacity,
		log:        applog.Component(log, "channel"),
		fadeCurve:  pipeline.LinearFader{},
		owners:     make(map[int]*InternalState),
	}
}

// allocState pops a Stopped state off the free list, or grows the set.
// The returned state is recycled: its generation counter is bumped so
// handles minted for the previous play go inert. Caller holds m.mu.
func (m *Manager) allocState() *InternalState {
	var st *InternalState
	if n := len(m.free); n > 0 {
		st = m.free[n-1]
		m.free = m.free[:n-1]
	} else {
		st = &InternalState{id: uuid.New(), mgr: m}
		m.channels = append(m.channels, st)
	}
	st.mu.Lock()
	st.recycle()
	st.mu.Unlock()
	return st
}

// Play starts req and returns a handle. An unresolvable request returns
// a zero handle whose Valid() is false alongside the error.
func (m *Manager) Play(req PlayRequest) (Channel, error) {
	const op = "Manager.Play"

	sounds, err := m.resolveRequest(op, req)
	if err != nil {
		m.log.Error("play request dropped", "err", err)
		return Channel{}, err
	}

	m.mu.Lock()
	st := m.allocState()
	st.mu.Lock()
	st.state = Playing
	st.collection = req.Collection
	st.pool = req.Pool
	st.container = req.Container
	st.bank = req.Bank
	st.active = sounds
	if req.Gain != 0 {
		st.userGain = req.Gain
	}
	st.pan = req.Pan
	if req.Pitch > 0 {
		st.pitch = req.Pitch
	}
	st.location = req.Location
	st.velocity = req.Velocity
	if req.OnEvent != nil {
		st.anyListeners = append(st.anyListeners, req.OnEvent)
	}
	st.staticPriority = req.Priority
	if st.staticPriority == 0 && len(sounds) > 0 {
		st.staticPriority = sounds[0].def.Priority
	}
	if st.staticPriority == 0 {
		st.staticPriority = 1
	}
	handle := Channel{state: st, stateID: st.stateID}
	st.mu.Unlock()
	m.mu.Unlock()

	st.emit(mixer.EventBegin, soundID(sounds))
	return handle, nil
}

func soundID(sounds []*activeSound) resolve.SoundID {
	if len(sounds) > 0 {
		return sounds[0].def.ID
	}
	return ""
}

// resolveRequest turns req into its initial active-sound set.
func (m *Manager) resolveRequest(op string, req PlayRequest) ([]*activeSound, error) {
	switch {
	case req.Definition != nil:
		return []*activeSound{newActiveSound(req.Definition, nil, req.Definition.Loop)}, nil

	case req.Collection != nil:
		if req.Bank == nil {
			return nil, amplierr.New(op, amplierr.InvalidParameter, "collection play requires a bank")
		}
		// A fresh Play mid-round must not re-pick a sound the round has
		// already visited, so the played set doubles as the skip list here
		// exactly as it does for the end-of-sound re-pick.
		id, err := req.Collection.Pick(req.Collection.Played())
		if err != nil {
			return nil, err
		}
		def, err := req.Bank.Definition(id)
		if err != nil {
			return nil, err
		}
		loop := def.Loop || req.Collection.Mode == resolve.LoopOne
		return []*activeSound{newActiveSound(def, nil, loop)}, nil

	case req.Container != nil:
		if req.Bank == nil {
			return nil, amplierr.New(op, amplierr.InvalidParameter, "container play requires a bank")
		}
		items := req.Container.ItemsForState(req.Container.Switch.Current)
		if len(items) == 0 {
			return nil, amplierr.New(op, amplierr.ResourceNotFound, "no items bound to current switch state")
		}
		sounds := make([]*activeSound, 0, len(items))
		for i := range items {
			item := items[i]
			def, err := req.Bank.Definition(item.SoundID)
			if err != nil {
				return nil, err
			}
			sounds = append(sounds, newActiveSound(def, &item, def.Loop))
		}
		return sounds, nil

	default:
		return nil, amplierr.New(op, amplierr.InvalidParameter, "play request selects no sound object")
	}
}

func newActiveSound(def *Definition, item *resolve.SwitchContainerItem, loop bool) *activeSound {
	return &activeSound{def: def, item: item, loop: loop, layer: -1}
}

// stopChannel implements Channel.Stop: zero duration transitions to
// Stopped before the next mix tick; a positive duration enters FadingOut
// with target Stopped.
func (m *Manager) stopChannel(st *InternalState, duration time.Duration) {
	if duration <= 0 {
		m.mu.Lock()
		st.mu.Lock()
		if st.state == Stopped {
			st.mu.Unlock()
			m.mu.Unlock()
			return
		}
		m.finalizeStopLocked(st)
		st.mu.Unlock()
		m.mu.Unlock()
		st.emit(mixer.EventStop, "")
		return
	}

	st.mu.Lock()
	if st.state == Stopped {
		st.mu.Unlock()
		return
	}
	st.fade = &fadeState{
		curve:    m.fadeCurve,
		from:     st.fadeGain(),
		to:       0,
		duration: duration,
		target:   Stopped,
	}
	st.state = FadingOut
	st.mu.Unlock()
}

// pauseChannel mirrors stopChannel with target Paused; a channel already
// at gain zero short-circuits straight to Paused.
func (m *Manager) pauseChannel(st *InternalState, duration time.Duration) {
	m.mu.Lock()
	st.mu.Lock()
	if !st.state.audible() {
		st.mu.Unlock()
		m.mu.Unlock()
		return
	}
	current := st.fadeGain()
	if duration <= 0 || current == 0 {
		m.demoteLocked(st)
		st.state = Paused
		st.fade = nil
		st.mu.Unlock()
		m.mu.Unlock()
		st.emit(mixer.EventPause, "")
		return
	}
	st.fade = &fadeState{
		curve:    m.fadeCurve,
		from:     current,
		to:       0,
		duration: duration,
		target:   Paused,
	}
	st.state = FadingOut
	st.mu.Unlock()
	m.mu.Unlock()
}

// resumeChannel re-enters FadingIn from the current gain (expected zero)
// back to full fade gain.
func (m *Manager) resumeChannel(st *InternalState, duration time.Duration) {
	st.mu.Lock()
	if st.state != Paused && st.state != FadingOut {
		st.mu.Unlock()
		return
	}
	if duration <= 0 {
		st.state = Playing
		st.fade = nil
	} else {
		from := st.fadeGain()
		if st.state == Paused {
			// A paused channel has already faded to silence.
			from = 0
		}
		st.fade = &fadeState{
			curve:    m.fadeCurve,
			from:     from,
			to:       1,
			duration: duration,
			target:   Playing,
		}
		st.state = FadingIn
	}
	st.mu.Unlock()
	st.emit(mixer.EventResume, "")
}

// finalizeStopLocked releases the channel's layers, parks it Stopped, and
// returns it to the free list. Caller holds m.mu and st.mu.
func (m *Manager) finalizeStopLocked(st *InternalState) {
	m.demoteLocked(st)
	st.active = nil
	st.fade = nil
	st.state = Stopped
	m.free = append(m.free, st)
}

// demoteLocked releases every real mixer layer the channel holds. Layer
// ownership is removed before the mixer is asked to stop, so the
// resulting layer Stop event finds no owner and is dropped rather than
// surfacing as a user-visible stop. Caller holds m.mu and st.mu.
func (m *Manager) demoteLocked(st *InternalState) {
	for _, a := range st.active {
		if a.layer < 0 {
			continue
		}
		delete(m.owners, a.layer)
		if err := m.mix.Stop(a.layer); err != nil {
			m.log.Debug("demote: layer already stopping", "layer", a.layer, "err", err)
		}
		a.layer = -1
	}
	st.real = nil
}

// promoteLocked maps every layerless active sound onto a real mixer
// layer. Caller holds m.mu and st.mu.
func (m *Manager) promoteLocked(st *InternalState) {
	if st.real == nil {
		st.real = newRealChannel()
	}
	for _, a := range st.active {
		if a.layer >= 0 {
			continue
		}
		layer, err := m.playSound(st, a)
		if err != nil {
			m.log.Error("promote failed", "sound", a.def.ID, "err", err)
			continue
		}
		a.layer = layer
		st.real.addLayer(layer)
		m.owners[layer] = st
		m.pushLayerStateLocked(st, a, nil, nil)
	}
}

// playSound asks the mixer for a layer, retrying past request-id
// collisions. Caller holds m.mu and st.mu.
func (m *Manager) playSound(st *InternalState, a *activeSound) (int, error) {
	opts := mixer.PlayOptions{
		Loop:       a.loop,
		LoopCount:  a.def.LoopCount,
		Pitch:      a.def.Pitch,
		Gain:       m.soundGain(st, a),
		Pipeline:   a.def.Pipeline,
		StartFrame: int(a.virtualFrames),
	}
	if opts.Pitch <= 0 {
		opts.Pitch = 1
	}
	opts.UserPlaySpeed = st.pitch

	var lastErr error
	for tries := 0; tries < mixer.LayerCount; tries++ {
		m.nextRequest++
		opts.RequestID = m.nextRequest
		var (
			layer int
			err   error
		)
		if a.def.Chunk != nil {
			layer, err = m.mix.PlayPreloaded(a.def.Chunk, opts)
		} else {
			src, openErr := a.def.OpenStream()
			if openErr != nil {
				return 0, openErr
			}
			layer, err = m.mix.PlayStreaming(src, a.def.OpenStream, opts)
		}
		if err == nil {
			return layer, nil
		}
		lastErr = err
		if !amplierr.Is(err, amplierr.InvalidParameter) {
			break
		}
	}
	return 0, lastErr
}

// soundGain composes the final layer gain: definition gain, channel user
// gain, spatial gain, channel fade, and per-item multiplier/fade.
func (m *Manager) soundGain(st *InternalState, a *activeSound) float32 {
	g := st.currentGain() * a.itemGain()
	if a.def.Gain != 0 {
		g *= a.def.Gain
	}
	return g
}

// pushLayerStateLocked forwards the channel's current gain, pitch, and
// spatial state to the mixer layer backing a. Caller holds st.mu.
func (m *Manager) pushLayerStateLocked(st *InternalState, a *activeSound, primary *Listener, doppler map[uuid.UUID]float64) {
	l := m.mix.Layer(a.layer)
	l.SetGain(m.soundGain(st, a))
	l.SetUserPlaySpeed(st.pitch)

	pitch := a.def.Pitch
	if pitch <= 0 {
		pitch = 1
	}
	if primary != nil && doppler != nil {
		if f, ok := doppler[primary.ID]; ok {
			pitch *= f
		}
	}
	l.SetPitch(pitch)

	l.SetEntity(pipeline.EntityState{
		Position:    st.location,
		Occlusion:   st.occlusion,
		Obstruction: st.obstruction,
	})
	if primary != nil {
		l.SetListener(pipeline.ListenerState{
			Position:    primary.Position,
			Orientation: primary.Orientation,
		})
	}
	l.SetCurves(a.def.Attenuation, a.def.Occlusion, a.def.Obstruction, a.def.MaxDistance)
	if a.def.HRIR != nil {
		l.SetHRIR(a.def.HRIR)
	}
	if len(m.envs) > 0 {
		l.SetEnvironments(m.envs)
	}
}

// HandleEvent receives the mixer's layer events on the drain thread,
// outside the mixer's critical section, and routes them to the owning
// channel.
func (m *Manager) HandleEvent(ev mixer.Event) {
	m.mu.Lock()
	st, ok := m.owners[ev.Layer]
	if !ok {
		m.mu.Unlock()
		return
	}

	switch ev.Kind {
	case mixer.EventLoop:
		st.mu.Lock()
		a := st.findActive(ev.Layer)
		st.mu.Unlock()
		m.mu.Unlock()
		if a != nil {
			st.emit(mixer.EventLoop, a.def.ID)
		}
		return

	case mixer.EventEnd:
		st.mu.Lock()
		a := st.findActive(ev.Layer)
		if a != nil {
			delete(m.owners, ev.Layer)
			if st.real != nil {
				st.real.removeLayer(ev.Layer)
			}
			a.layer = -1
		}
		st.mu.Unlock()
		m.mu.Unlock()
		if a != nil {
			m.handleEndOfSound(st, a)
		}
		return

	default:
		m.mu.Unlock()
	}
}

// handleEndOfSound applies the end-of-sound policy for the sound backing
// a. Must be called without m.mu or st.mu held.
func (m *Manager) handleEndOfSound(st *InternalState, a *activeSound) {
	m.mu.Lock()
	st.mu.Lock()
	st.removeActive(a)

	if st.collection == nil {
		// Standalone and switched sounds: halt once nothing is left.
		if len(st.active) == 0 && st.state != Stopped {
			m.finalizeStopLocked(st)
			st.mu.Unlock()
			m.mu.Unlock()
			st.emit(mixer.EventEnd, a.def.ID)
			return
		}
		st.mu.Unlock()
		m.mu.Unlock()
		return
	}

	col := st.collection
	col.MarkPlayed(a.def.ID)

	switch col.Mode {
	case resolve.PlayOne, resolve.LoopOne:
		if st.state != Stopped {
			m.finalizeStopLocked(st)
			st.mu.Unlock()
			m.mu.Unlock()
			st.emit(mixer.EventEnd, a.def.ID)
			return
		}
		st.mu.Unlock()
		m.mu.Unlock()
		return

	case resolve.PlayAll, resolve.LoopAll:
		if col.AllPlayed(st.pool) {
			col.ClearPlayed()
			if col.Mode == resolve.PlayAll {
				if st.state != Stopped {
					m.finalizeStopLocked(st)
					st.mu.Unlock()
					m.mu.Unlock()
					st.emit(mixer.EventEnd, a.def.ID)
					return
				}
				st.mu.Unlock()
				m.mu.Unlock()
				return
			}
		}
		// Re-invoke the pick for the next sound in the round; already
		// played sounds are skipped so each round visits every sound.
		id, err := col.Pick(col.Played())
		if err != nil {
			m.log.Error("collection pick failed", "err", err)
			st.mu.Unlock()
			m.mu.Unlock()
			return
		}
		def, err := st.bank.Definition(id)
		if err != nil {
			m.log.Error("collection pick unresolved", "id", id, "err", err)
			st.mu.Unlock()
			m.mu.Unlock()
			return
		}
		st.active = append(st.active, newActiveSound(def, nil, def.Loop))
		st.mu.Unlock()
		m.mu.Unlock()
		st.emit(mixer.EventBegin, id)
		return
	}

	st.mu.Unlock()
	m.mu.Unlock()
}

// SwitchTo changes a container's bound switch state and retargets every
// live channel playing that container, fading out items that left the
// state and fading in items new to it.
func (m *Manager) SwitchTo(container *resolve.SwitchContainer, state resolve.SwitchStateID) {
	t := container.SetState(state)
	if container.Behavior == resolve.UpdateOnPlay {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.channels {
		st.mu.Lock()
		if st.container != container || !st.state.audible() {
			st.mu.Unlock()
			continue
		}
		m.applyTransitionLocked(st, t)
		st.mu.Unlock()
	}
}

// applyTransitionLocked applies a computed switch transition to one
// channel. Caller holds m.mu and st.mu.
func (m *Manager) applyTransitionLocked(st *InternalState, t resolve.StateTransition) {
	for i := range t.FadeOut {
		item := t.FadeOut[i]
		for _, a := range st.active {
			if a.item != nil && a.item.SoundID == item.SoundID && !a.removeOnDone {
				a.itemFade = &fadeState{
					curve:    m.fadeCurve,
					from:     a.itemGain(),
					to:       0,
					duration: item.FadeOut,
				}
				a.removeOnDone = true
			}
		}
	}
	for i := range t.Restarted {
		item := t.Restarted[i]
		for _, a := range st.active {
			if a.item != nil && a.item.SoundID == item.SoundID {
				a.virtualFrames = 0
				if a.layer >= 0 {
					delete(m.owners, a.layer)
					if err := m.mix.Stop(a.layer); err != nil {
						m.log.Debug("restart: layer already stopping", "layer", a.layer, "err", err)
					}
					if st.real != nil {
						st.real.removeLayer(a.layer)
					}
					a.layer = -1
				}
			}
		}
	}
	for i := range t.FadeIn {
		item := t.FadeIn[i]
		if st.bank == nil {
			continue
		}
		def, err := st.bank.Definition(item.SoundID)
		if err != nil {
			m.log.Error("switch fade-in unresolved", "id", item.SoundID, "err", err)
			continue
		}
		itemCopy := item
		a := newActiveSound(def, &itemCopy, def.Loop)
		a.itemFade = &fadeState{
			curve:    m.fadeCurve,
			from:     0,
			to:       1,
			duration: item.FadeIn,
		}
		st.active = append(st.active, a)
	}
	if len(t.FadeOut) > 0 || len(t.FadeIn) > 0 {
		st.state = SwitchingState
	}
}

// channelRank is one Advance ranking entry.
type channelRank struct {
	st       *InternalState
	priority float32
	need     int
}

// Advance runs the per-frame update: fades, Doppler, room
// gains, simulated cursors, and the promotion/demotion of channels onto
// real mixer layers. It must be called from one thread (the engine's
// frame update), never from the mix thread.
func (m *Manager) Advance(dt time.Duration, listeners []Listener, rooms []Room) {
	type pendingEmit struct {
		st    *InternalState
		kind  mixer.EventKind
		sound resolve.SoundID
	}
	type pendingEnd struct {
		st *InternalState
		a  *activeSound
	}
	var emits []pendingEmit
	var ends []pendingEnd

	m.mu.Lock()
	for _, st := range m.channels {
		st.mu.Lock()
		if st.state == Stopped || st.state == Paused {
			st.mu.Unlock()
			continue
		}

		// Advance the active fader; apply its landing state.
		if st.fade != nil {
			st.fade.elapsed += dt
			if st.fade.done() {
				target := st.fade.target
				switch target {
				case Stopped:
					m.finalizeStopLocked(st)
					emits = append(emits, pendingEmit{st: st, kind: mixer.EventStop})
				case Paused:
					m.demoteLocked(st)
					st.state = Paused
					st.fade = nil
					emits = append(emits, pendingEmit{st: st, kind: mixer.EventPause})
				default:
					st.state = Playing
					st.fade = nil
				}
				if st.state == Stopped || st.state == Paused {
					st.mu.Unlock()
					continue
				}
			}
		}

		// Per-item switch fades; a finished fade-out removes its sound.
		switching := false
		for i := 0; i < len(st.active); i++ {
			a := st.active[i]
			if a.itemFade == nil {
				continue
			}
			a.itemFade.elapsed += dt
			if !a.itemFade.done() {
				switching = true
				continue
			}
			if a.removeOnDone {
				if a.layer >= 0 {
					delete(m.owners, a.layer)
					if err := m.mix.Stop(a.layer); err != nil {
						m.log.Debug("fade-out stop", "layer", a.layer, "err", err)
					}
					if st.real != nil {
						st.real.removeLayer(a.layer)
					}
					a.layer = -1
				}
				st.removeActive(a)
				i--
				continue
			}
			a.itemFade = nil
		}
		if st.state == SwitchingState && !switching {
			st.state = Playing
		}

		// Doppler factor per listener.
		for _, lis := range listeners {
			st.doppler[lis.ID] = spatial.DopplerFactor(
				st.location, st.velocity, lis.Position, lis.Velocity,
				spatial.SoundSpeedMetersPerSecond)
		}

		// Per-room gain; the dominant room drives the spatial gain.
		spatialGain := float32(1)
		if len(rooms) > 0 {
			spatialGain = 0
			for _, room := range rooms {
				g := spatial.RoomGain(st.location, room.ClosestPoint(st.location), room.Gain)
				st.roomGains[room.ID] = g
				if g > spatialGain {
					spatialGain = g
				}
			}
		}
		st.spatialGain = spatialGain

		// Simulated cursors advance whether or not the channel holds real
		// layers, so a later promotion resumes at the correct position.
		for _, a := range st.active {
			rate := a.def.sourceRate()
			if rate <= 0 {
				rate = m.sampleRate
			}
			speed := st.pitch
			if a.def.Pitch > 0 {
				speed *= a.def.Pitch
			}
			a.virtualFrames += dt.Seconds() * float64(rate) * speed
			total := a.def.frameCount()
			if total > 0 && !a.loop && a.layer < 0 && a.virtualFrames >= float64(total) {
				ends = append(ends, pendingEnd{st: st, a: a})
			}
		}
		st.mu.Unlock()
	}

	m.rebalanceLocked(listeners)
	m.mu.Unlock()

	for _, e := range emits {
		e.st.emit(e.kind, e.sound)
	}
	for _, e := range ends {
		e.st.emit(mixer.EventEnd, e.a.def.ID)
		m.handleEndOfSound(e.st, e.a)
	}
}

// rebalanceLocked ranks audible channels and reassigns real mixer
// layers: the top ranks whose layer needs fit the capacity keep or gain
// real layers, everyone else is demoted to virtual. Caller holds m.mu.
func (m *Manager) rebalanceLocked(listeners []Listener) {
	ranks := make([]channelRank, 0, len(m.channels))
	for _, st := range m.channels {
		st.mu.Lock()
		if st.state.audible() && len(st.active) > 0 {
			ranks = append(ranks, channelRank{
				st:       st,
				priority: st.effectivePriority(),
				need:     len(st.active),
			})
		}
		st.mu.Unlock()
	}
	sort.SliceStable(ranks, func(i, j int) bool {
		return ranks[i].priority > ranks[j].priority
	})

	budget := m.capacity
	promote := make([]*InternalState, 0, len(ranks))
	for _, r := range ranks {
		if r.need <= budget {
			budget -= r.need
			promote = append(promote, r.st)
		} else {
			r.st.mu.Lock()
			m.demoteLocked(r.st)
			r.st.mu.Unlock()
		}
	}

	for _, st := range promote {
		st.mu.Lock()
		m.promoteLocked(st)
		primary := nearestListener(listeners, st.location)
		for _, a := range st.active {
			if a.layer >= 0 {
				m.pushLayerStateLocked(st, a, primary, st.doppler)
			}
		}
		st.mu.Unlock()
	}
}

// nearestListener picks the listener closest to pos as the panning
// reference; nil when none are registered.
func nearestListener(listeners []Listener, pos spatial.Vec3) *Listener {
	var best *Listener
	bestDist := 0.0
	for i := range listeners {
		d := spatial.Distance(listeners[i].Position, pos)
		if best == nil || d < bestDist {
			best = &listeners[i]
			bestDist = d
		}
	}
	return best
}

// SetFadeCurve replaces the curve shaping subsequent stop/pause/resume
// and switch-item fades. Fades already in flight keep their curve.
func (m *Manager) SetFadeCurve(f pipeline.Fader) {
	if f == nil {
		return
	}
	m.mu.Lock()
	m.fadeCurve = f
	m.mu.Unlock()
}

// SetEnvironments replaces the environment effect set pushed to every
// real layer on promotion and frame update.
func (m *Manager) SetEnvironments(envs []pipeline.EnvironmentFactor) {
	m.mu.Lock()
	m.envs = envs
	m.mu.Unlock()
}

// Handles returns a live handle for every channel not currently parked
// on the free list, letting the engine apply pause/resume/stop sweeps.
func (m *Manager) Handles() []Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Channel, 0, len(m.channels))
	for _, st := range m.channels {
		st.mu.Lock()
		if st.state != Stopped {
			out = append(out, Channel{state: st, stateID: st.stateID})
		}
		st.mu.Unlock()
	}
	return out
}

// ActiveCount reports how many channels are currently audible, for
// diagnostics.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, st := range m.channels {
		st.mu.Lock()
		if st.state.audible() {
			n++
		}
		st.mu.Unlock()
	}
	return n
}
