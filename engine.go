// Package amplimix is the playback runtime's public face: an Engine that
// owns the mixer, the channel virtualisation layer, and every registry
// (sounds, collections, switch containers, buses, RTPCs, events,
// entities/listeners/rooms/environments). The context is threaded
// explicitly — construct an Engine and pass it around; there is no
// process-wide singleton.
package amplimix

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amplimix/amplimix/amplierr"
	"github.com/amplimix/amplimix/applog"
	"github.com/amplimix/amplimix/buffer"
	"github.com/amplimix/amplimix/channel"
	"github.com/amplimix/amplimix/mixer"
	"github.com/amplimix/amplimix/pipeline"
	"github.com/amplimix/amplimix/resolve"
	"github.com/amplimix/amplimix/spatial"
)

// AfterMixCallback is the user post-processing hook called with the mixed
// buffer after every tick, outside the mixer's critical section.
type AfterMixCallback func(buf *buffer.Buffer)

// collectionEntry pairs a registered collection with its candidate pool.
type collectionEntry struct {
	col  *resolve.Collection
	pool []resolve.SoundID
}

// entityBinding follows one entity with one channel on each frame update.
type entityBinding struct {
	ch     channel.Channel
	entity *Entity
}

// Engine is the playback runtime context.
type Engine struct {
	id     uuid.UUID
	name   string
	config Config
	log    applog.Logger
	errs   amplierr.Handler

	mix        *mixer.Mixer
	manager    *channel.Manager
	dispatcher *Dispatcher
	monitor    *deviceMonitor
	stats      *statsRecorder

	mu           sync.RWMutex
	sounds       map[resolve.SoundID]*channel.Definition
	collections  map[string]*collectionEntry
	containers   map[string]*resolve.SwitchContainer
	switches     map[string]*resolve.Switch
	events       map[string]*EventDefinition
	buses        map[string]*Bus
	rtpcs        map[string]*RTPC
	entities     map[uuid.UUID]*Entity
	listeners    map[uuid.UUID]*Listener
	rooms        map[uuid.UUID]*Room
	environments map[uuid.UUID]*Environment
	bindings     []entityBinding
	named        map[string][]channel.Channel

	afterMixMu sync.Mutex
	afterMix   AfterMixCallback

	interleaveScratch []float32
}

// NewEngine validates config and builds a running engine.
func NewEngine(config Config) (*Engine, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	log := config.Logger
	if log == nil {
		log = applog.Nop()
	}
	errs := config.ErrorHandler
	if errs == nil {
		errs = amplierr.DefaultHandler{}
	}

	e := &Engine{
		id:     uuid.New(),
		name:   "amplimix",
		config: config,
		log:    applog.Component(log, "engine"),
		errs:   errs,

		sounds:       make(map[resolve.SoundID]*channel.Definition),
		collections:  make(map[string]*collectionEntry),
		containers:   make(map[string]*resolve.SwitchContainer),
		switches:     make(map[string]*resolve.Switch),
		events:       make(map[string]*EventDefinition),
		buses:        make(map[string]*Bus),
		rtpcs:        make(map[string]*RTPC),
		entities:     make(map[uuid.UUID]*Entity),
		listeners:    make(map[uuid.UUID]*Listener),
		rooms:        make(map[uuid.UUID]*Room),
		environments: make(map[uuid.UUID]*Environment),
		named:        make(map[string][]channel.Channel),
	}

	e.mix = mixer.NewMixer(config.Output.Frequency, nil)
	e.manager = channel.NewManager(e.mix, config.Output.Frequency, config.RealLayerCapacity, log)
	e.mix.SetEventSink(e.manager)
	e.dispatcher = NewDispatcher()
	if err := e.dispatcher.Start(); err != nil {
		return nil, err
	}
	e.monitor = newDeviceMonitor(DeviceDescription{
		Name:       config.Driver.Name,
		SampleRate: config.Output.Frequency,
		Channels:   config.Output.Channels,
		Format:     config.Output.Format,
	})
	e.stats = newStatsRecorder(config.Output.BufferSize, config.Output.Frequency)
	return e, nil
}

// ID returns the engine's stable identity.
func (e *Engine) ID() uuid.UUID { return e.id }

// Name returns the engine's display name.
func (e *Engine) Name() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.name
}

// SetName sets the engine's display name.
func (e *Engine) SetName(name string) {
	e.mu.Lock()
	e.name = name
	e.mu.Unlock()
}

// Configuration returns the engine's construction config.
func (e *Engine) Configuration() Config { return e.config }

// Close tears the engine down: every channel is stopped immediately and
// the dispatcher loop exits.
func (e *Engine) Close() {
	for _, ch := range e.manager.Handles() {
		ch.Stop(0)
	}
	e.dispatcher.Stop()
	e.monitor.setState(DeviceStopped)
}

// Definition implements channel.Bank over the engine's sound registry.
func (e *Engine) Definition(id resolve.SoundID) (*channel.Definition, error) {
	e.mu.RLock()
	def, ok := e.sounds[id]
	e.mu.RUnlock()
	if !ok {
		return nil, amplierr.New("Engine.Definition", amplierr.ResourceNotFound, "unknown sound id: "+string(id))
	}
	return def, nil
}

// RegisterSound adds def to the sound registry.
func (e *Engine) RegisterSound(def *channel.Definition) error {
	const op = "Engine.RegisterSound"
	if def == nil || def.ID == "" {
		return amplierr.New(op, amplierr.InvalidParameter, "definition requires an id")
	}
	if def.Chunk == nil && def.OpenStream == nil {
		return amplierr.New(op, amplierr.InvalidConfiguration, "definition has no audio source")
	}
	if def.Pipeline == nil {
		return amplierr.New(op, amplierr.InvalidConfiguration, "definition has no pipeline")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.sounds[def.ID]; dup {
		return amplierr.New(op, amplierr.InvalidParameter, "sound id already registered: "+string(def.ID))
	}
	e.sounds[def.ID] = def
	return nil
}

// RegisterCollection adds a named collection over pool.
func (e *Engine) RegisterCollection(name string, col *resolve.Collection, pool []resolve.SoundID) error {
	const op = "Engine.RegisterCollection"
	if name == "" || col == nil {
		return amplierr.New(op, amplierr.InvalidParameter, "collection requires a name and scheduler")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.collections[name]; dup {
		return amplierr.New(op, amplierr.InvalidParameter, "collection already registered: "+name)
	}
	e.collections[name] = &collectionEntry{col: col, pool: pool}
	return nil
}

// RegisterSwitch adds a named switch.
func (e *Engine) RegisterSwitch(sw *resolve.Switch) error {
	const op = "Engine.RegisterSwitch"
	if sw == nil || sw.Name == "" {
		return amplierr.New(op, amplierr.InvalidParameter, "switch requires a name")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.switches[sw.Name]; dup {
		return amplierr.New(op, amplierr.InvalidParameter, "switch already registered: "+sw.Name)
	}
	e.switches[sw.Name] = sw
	return nil
}

// RegisterContainer adds a named switch container. Its bound switch must
// already be registered.
func (e *Engine) RegisterContainer(name string, c *resolve.SwitchContainer) error {
	const op = "Engine.RegisterContainer"
	if name == "" || c == nil || c.Switch == nil {
		return amplierr.New(op, amplierr.InvalidParameter, "container requires a name and a bound switch")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.switches[c.Switch.Name]; !ok {
		return amplierr.New(op, amplierr.ResourceNotFound, "container's switch is not registered: "+c.Switch.Name)
	}
	if _, dup := e.containers[name]; dup {
		return amplierr.New(op, amplierr.InvalidParameter, "container already registered: "+name)
	}
	e.containers[name] = c
	return nil
}

// RegisterEvent adds a named triggerable event.
func (e *Engine) RegisterEvent(def EventDefinition) error {
	const op = "Engine.RegisterEvent"
	if def.Name == "" {
		return amplierr.New(op, amplierr.InvalidParameter, "event requires a name")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.events[def.Name]; dup {
		return amplierr.New(op, amplierr.InvalidParameter, "event already registered: "+def.Name)
	}
	copied := def
	e.events[def.Name] = &copied
	return nil
}

// RegisterBus adds a named bus through the dispatcher, serialized against
// other topology changes.
func (e *Engine) RegisterBus(name string, gain float32) (*Bus, error) {
	const op = "Engine.RegisterBus"
	if name == "" {
		return nil, amplierr.New(op, amplierr.InvalidParameter, "bus requires a name")
	}
	var bus *Bus
	err := e.dispatcher.Do(OpRegisterBus, func() error {
		e.mu.Lock()
		defer e.mu.Unlock()
		if _, dup := e.buses[name]; dup {
			return amplierr.New(op, amplierr.InvalidParameter, "bus already registered: "+name)
		}
		bus = newBus(name, gain)
		e.buses[name] = bus
		return nil
	})
	return bus, err
}

// Bus returns the named bus.
func (e *Engine) Bus(name string) (*Bus, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.buses[name]
	return b, ok
}

// RegisterRTPC adds a named real-time parameter control.
func (e *Engine) RegisterRTPC(name string, min, max float64, ramp time.Duration) (*RTPC, error) {
	const op = "Engine.RegisterRTPC"
	if name == "" {
		return nil, amplierr.New(op, amplierr.InvalidParameter, "rtpc requires a name")
	}
	r, err := NewRTPC(name, min, max, ramp)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.rtpcs[name]; dup {
		return nil, amplierr.New(op, amplierr.InvalidParameter, "rtpc already registered: "+name)
	}
	e.rtpcs[name] = r
	return r, nil
}

// SetRTPCValue retargets the named control, clamping to its bounds.
func (e *Engine) SetRTPCValue(name string, v float64) error {
	e.mu.RLock()
	r, ok := e.rtpcs[name]
	e.mu.RUnlock()
	if !ok {
		return amplierr.New("Engine.SetRTPCValue", amplierr.ResourceNotFound, "unknown rtpc: "+name)
	}
	r.Set(v)
	return nil
}

// RTPCValue returns the named control's current smoothed value.
func (e *Engine) RTPCValue(name string) (float64, error) {
	e.mu.RLock()
	r, ok := e.rtpcs[name]
	e.mu.RUnlock()
	if !ok {
		return 0, amplierr.New("Engine.RTPCValue", amplierr.ResourceNotFound, "unknown rtpc: "+name)
	}
	return r.Value(), nil
}

// SetSwitchState sets the named switch and retargets every live channel
// playing a container bound to it.
func (e *Engine) SetSwitchState(switchName string, state resolve.SwitchStateID) error {
	e.mu.RLock()
	sw, ok := e.switches[switchName]
	var bound []*resolve.SwitchContainer
	if ok {
		for _, c := range e.containers {
			if c.Switch == sw {
				bound = append(bound, c)
			}
		}
	}
	e.mu.RUnlock()
	if !ok {
		return amplierr.New("Engine.SetSwitchState", amplierr.ResourceNotFound, "unknown switch: "+switchName)
	}
	if len(bound) == 0 {
		sw.Current = state
		return nil
	}
	for _, c := range bound {
		e.manager.SwitchTo(c, state)
	}
	return nil
}

// PlayParams tunes one Play call.
type PlayParams struct {
	Gain     float32
	Pan      float32
	Pitch    float64
	Priority float32
	// Entity, if set, binds the channel to the entity's position,
	// velocity, and occlusion/obstruction on every frame update.
	Entity *Entity
	// Bus routes the channel through the named bus's gain group.
	Bus string
	// OnEvent receives every event on the channel, including Begin.
	OnEvent channel.EventHandler
}

// Play starts the named sound object: a sound id, a collection, or a
// switch container, searched in that order. An unresolvable name returns
// a handle whose Valid() is false plus a ResourceNotFound error.
func (e *Engine) Play(name string, params PlayParams) (channel.Channel, error) {
	const op = "Engine.Play"

	req := channel.PlayRequest{
		Bank:     e,
		Gain:     params.Gain,
		Pan:      params.Pan,
		Pitch:    params.Pitch,
		Priority: params.Priority,
		OnEvent:  params.OnEvent,
	}
	if params.Entity != nil {
		pos, vel, _, _ := params.Entity.snapshot()
		req.Location = pos
		req.Velocity = vel
	}

	e.mu.RLock()
	if def, ok := e.sounds[resolve.SoundID(name)]; ok {
		req.Definition = def
	} else if entry, ok := e.collections[name]; ok {
		req.Collection = entry.col
		req.Pool = entry.pool
	} else if container, ok := e.containers[name]; ok {
		req.Container = container
	}
	e.mu.RUnlock()

	if req.Definition == nil && req.Collection == nil && req.Container == nil {
		return channel.Channel{}, amplierr.New(op, amplierr.ResourceNotFound, "unknown sound object: "+name)
	}

	ch, err := e.manager.Play(req)
	if err != nil {
		return ch, err
	}

	e.mu.Lock()
	e.named[name] = append(e.named[name], ch)
	if params.Entity != nil {
		e.bindings = append(e.bindings, entityBinding{ch: ch, entity: params.Entity})
	}
	e.mu.Unlock()

	if params.Bus != "" {
		if bus, ok := e.Bus(params.Bus); ok {
			bus.attach(ch)
		} else {
			e.log.Warn("play routed to unknown bus", "bus", params.Bus, "sound", name)
		}
	}
	return ch, nil
}

// Stop winds down every live channel started from the named sound
// object.
func (e *Engine) Stop(name string, fade time.Duration) {
	e.mu.Lock()
	handles := e.named[name]
	live := handles[:0]
	for _, ch := range handles {
		if ch.Valid() {
			live = append(live, ch)
		}
	}
	e.named[name] = live
	snapshot := append([]channel.Channel(nil), live...)
	e.mu.Unlock()

	for _, ch := range snapshot {
		ch.Stop(fade)
	}
}

// StopAll winds down every live channel.
func (e *Engine) StopAll(fade time.Duration) {
	for _, ch := range e.manager.Handles() {
		ch.Stop(fade)
	}
}

// PauseAll pauses every live channel and marks the device paused so
// UpdateDevice becomes legal.
func (e *Engine) PauseAll(fade time.Duration) {
	for _, ch := range e.manager.Handles() {
		ch.Pause(fade)
	}
	e.monitor.setState(DevicePaused)
}

// ResumeAll resumes every paused channel and the device.
func (e *Engine) ResumeAll(fade time.Duration) {
	e.monitor.setState(DeviceRunning)
	for _, ch := range e.manager.Handles() {
		ch.Resume(fade)
	}
}

// TriggerEvent runs the named event's actions in order.
func (e *Engine) TriggerEvent(name string) error {
	e.mu.RLock()
	def, ok := e.events[name]
	e.mu.RUnlock()
	if !ok {
		return amplierr.New("Engine.TriggerEvent", amplierr.ResourceNotFound, "unknown event: "+name)
	}
	for _, action := range def.Actions {
		switch action.Kind {
		case ActionPlay:
			if _, err := e.Play(action.Target, PlayParams{}); err != nil {
				e.log.Error("event play action failed", "event", name, "target", action.Target, "err", err)
			}
		case ActionStop:
			e.Stop(action.Target, action.Fade)
		case ActionSetSwitch:
			if err := e.SetSwitchState(action.Target, action.State); err != nil {
				e.log.Error("event switch action failed", "event", name, "target", action.Target, "err", err)
			}
		case ActionSetRTPC:
			if err := e.SetRTPCValue(action.Target, action.Value); err != nil {
				e.log.Error("event rtpc action failed", "event", name, "target", action.Target, "err", err)
			}
		}
	}
	return nil
}

// AddEntity registers a new sound-emitting entity.
func (e *Engine) AddEntity() *Entity {
	ent := &Entity{id: uuid.New()}
	e.mu.Lock()
	e.entities[ent.id] = ent
	e.mu.Unlock()
	return ent
}

// RemoveEntity forgets ent; channels bound to it keep their last state.
func (e *Engine) RemoveEntity(ent *Entity) {
	e.mu.Lock()
	delete(e.entities, ent.id)
	live := e.bindings[:0]
	for _, b := range e.bindings {
		if b.entity != ent {
			live = append(live, b)
		}
	}
	e.bindings = live
	e.mu.Unlock()
}

// AddListener registers a new listener.
func (e *Engine) AddListener() *Listener {
	l := &Listener{id: uuid.New()}
	e.mu.Lock()
	e.listeners[l.id] = l
	e.mu.Unlock()
	return l
}

// RemoveListener forgets l.
func (e *Engine) RemoveListener(l *Listener) {
	e.mu.Lock()
	delete(e.listeners, l.id)
	e.mu.Unlock()
}

// AddRoom registers a new room.
func (e *Engine) AddRoom(min, max spatial.Vec3, gain float32) *Room {
	r := &Room{id: uuid.New(), gain: gain, minCorner: min, maxCorner: max}
	e.mu.Lock()
	e.rooms[r.id] = r
	e.mu.Unlock()
	return r
}

// RemoveRoom forgets r.
func (e *Engine) RemoveRoom(r *Room) {
	e.mu.Lock()
	delete(e.rooms, r.id)
	e.mu.Unlock()
}

// AddEnvironment registers a named environment effect zone.
func (e *Engine) AddEnvironment(name string, effect pipeline.Effect) *Environment {
	env := &Environment{id: uuid.New(), name: name, effect: effect, factor: 1}
	e.mu.Lock()
	e.environments[env.id] = env
	e.mu.Unlock()
	return env
}

// RemoveEnvironment forgets env.
func (e *Engine) RemoveEnvironment(env *Environment) {
	e.mu.Lock()
	delete(e.environments, env.id)
	e.mu.Unlock()
}

// AdvanceFrame runs one engine frame update: RTPC smoothing, entity
// bindings, and the channel layer's per-frame update (fades, Doppler,
// room gains, virtualisation). Call it from the application's update
// loop, never from the audio callback.
func (e *Engine) AdvanceFrame(dt time.Duration) {
	e.mu.Lock()
	for _, r := range e.rtpcs {
		r.advance(dt)
	}

	live := e.bindings[:0]
	for _, b := range e.bindings {
		if !b.ch.Valid() {
			continue
		}
		live = append(live, b)
		pos, vel, occ, obs := b.entity.snapshot()
		b.ch.SetLocation(pos)
		b.ch.SetVelocity(vel)
		b.ch.SetOcclusion(occ)
		b.ch.SetObstruction(obs)
	}
	e.bindings = live

	listeners := make([]channel.Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		listeners = append(listeners, l.snapshot())
	}
	rooms := make([]channel.Room, 0, len(e.rooms))
	for _, r := range e.rooms {
		rooms = append(rooms, r.snapshot())
	}
	envs := make([]pipeline.EnvironmentFactor, 0, len(e.environments))
	for _, env := range e.environments {
		if s := env.snapshot(); s.Effect != nil {
			envs = append(envs, s)
		}
	}
	e.mu.Unlock()

	e.manager.SetEnvironments(envs)
	e.manager.Advance(dt, listeners, rooms)
}

// Mix renders frameCount frames of interleaved output into dst and
// returns the frames rendered, 0 when the device is not running or the
// tick fails. A tick in which no layer contributed still renders
// frameCount frames of silence and does not return 0. dst needs room for
// frameCount * channel-count samples.
func (e *Engine) Mix(dst []float32, frameCount int) int {
	if e.monitor.deviceState() != DeviceRunning {
		return 0
	}
	start := time.Now()
	buf, err := e.mix.Mix(frameCount)
	if err != nil {
		e.errs.HandleError(err)
		return 0
	}
	e.stats.record(frameCount, time.Since(start))

	e.afterMixMu.Lock()
	cb := e.afterMix
	e.afterMixMu.Unlock()
	if cb != nil {
		cb(buf)
	}

	return e.interleave(buf, dst, frameCount)
}

// MixInt16 is Mix for hosts pulling 16-bit integer output.
func (e *Engine) MixInt16(dst []int16, frameCount int) int {
	channels := e.channelCount()
	need := frameCount * channels
	if cap(e.interleaveScratch) < need {
		e.interleaveScratch = make([]float32, need)
	}
	scratch := e.interleaveScratch[:need]
	rendered := e.Mix(scratch, frameCount)
	for i := 0; i < rendered*channels; i++ {
		s := scratch[i]
		if s > 1 {
			s = 1
		}
		if s < -1 {
			s = -1
		}
		dst[i] = int16(s * 32767)
	}
	return rendered
}

func (e *Engine) channelCount() int {
	if e.config.Output.Channels == Mono {
		return 1
	}
	return 2
}

// interleave writes the planar stereo mix into dst in the configured
// layout: LRLR for stereo, an L/R average for mono.
func (e *Engine) interleave(buf *buffer.Buffer, dst []float32, frameCount int) int {
	if buf == nil || buf.FrameCount() < frameCount {
		return 0
	}
	left := buf.GetChannel(0)
	right := buf.GetChannel(1)
	if e.config.Output.Channels == Mono {
		if len(dst) < frameCount {
			return 0
		}
		for i := 0; i < frameCount; i++ {
			dst[i] = (left[i] + right[i]) * 0.5
		}
		return frameCount
	}
	if len(dst) < frameCount*2 {
		return 0
	}
	for i := 0; i < frameCount; i++ {
		dst[2*i] = left[i]
		dst[2*i+1] = right[i]
	}
	return frameCount
}

// SetAfterMixCallback installs the user's post-mix hook.
func (e *Engine) SetAfterMixCallback(cb AfterMixCallback) {
	e.afterMixMu.Lock()
	e.afterMix = cb
	e.afterMixMu.Unlock()
}

// SetMasterGain sets the mixer-wide gain.
func (e *Engine) SetMasterGain(gain float32) {
	e.mix.SetMasterGain(gain)
}

// SetFadeCurve selects the registered fader curve shaping subsequent
// stop/pause/resume and switch-item fades ("Linear", "Ease", "EaseIn",
// "EaseOut", "EaseInOut", "Exponential", "SCurveSmooth", "SCurveSharp",
// plus anything added via pipeline.RegisterFader).
func (e *Engine) SetFadeCurve(name string) error {
	f, ok := pipeline.FaderByName(name)
	if !ok {
		return amplierr.New("Engine.SetFadeCurve", amplierr.ResourceNotFound, "unknown fader curve: "+name)
	}
	e.manager.SetFadeCurve(f)
	return nil
}

// UpdateDevice reconfigures the output assumption through the
// dispatcher. The device must be paused first.
func (e *Engine) UpdateDevice(desc DeviceDescription) error {
	return e.dispatcher.Do(OpUpdateDevice, func() error {
		if err := e.monitor.update(desc); err != nil {
			return err
		}
		if desc.SampleRate > 0 {
			e.mix.SetSampleRate(desc.SampleRate)
		}
		return nil
	})
}

// Device returns the current output device description.
func (e *Engine) Device() DeviceDescription {
	return e.monitor.description()
}

// OnDeviceChange registers cb for device reconfigurations.
func (e *Engine) OnDeviceChange(cb DeviceChangeCallback) {
	e.monitor.onChange(cb)
}

// Stats returns a snapshot of mix-tick timing.
func (e *Engine) Stats() MixStats {
	return e.stats.snapshot()
}

// SetMetricsHook installs a per-tick metrics observer.
func (e *Engine) SetMetricsHook(h MetricsHook) {
	e.stats.setHook(h)
}

// Dispatcher exposes the serialized topology-change queue.
func (e *Engine) Dispatcher() *Dispatcher {
	return e.dispatcher
}
