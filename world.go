package amplimix

import (
	"sync"

	"github.com/google/uuid"

	"github.com/amplimix/amplimix/channel"
	"github.com/amplimix/amplimix/pipeline"
	"github.com/amplimix/amplimix/spatial"
)

// Entity is a registered game object that emits sound. Channels played
// with an entity binding follow its position, velocity, and
// occlusion/obstruction factors on every frame update.
type Entity struct {
	mu          sync.Mutex
	id          uuid.UUID
	position    spatial.Vec3
	velocity    spatial.Vec3
	occlusion   float32
	obstruction float32
}

// ID returns the entity's stable identity.
func (e *Entity) ID() uuid.UUID { return e.id }

// SetPosition moves the entity in world space.
func (e *Entity) SetPosition(p spatial.Vec3) {
	e.mu.Lock()
	e.position = p
	e.mu.Unlock()
}

// Position returns the entity's world position.
func (e *Entity) Position() spatial.Vec3 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

// SetVelocity sets the velocity consumed by the Doppler update.
func (e *Entity) SetVelocity(v spatial.Vec3) {
	e.mu.Lock()
	e.velocity = v
	e.mu.Unlock()
}

// SetOcclusion sets the entity's occlusion factor in [0, 1].
func (e *Entity) SetOcclusion(f float32) {
	e.mu.Lock()
	e.occlusion = clamp01(f)
	e.mu.Unlock()
}

// SetObstruction sets the entity's obstruction factor in [0, 1].
func (e *Entity) SetObstruction(f float32) {
	e.mu.Lock()
	e.obstruction = clamp01(f)
	e.mu.Unlock()
}

func (e *Entity) snapshot() (pos, vel spatial.Vec3, occ, obs float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position, e.velocity, e.occlusion, e.obstruction
}

// Listener is a registered listener whose position and orientation drive
// panning, ambisonic rotation, and per-listener Doppler factors.
type Listener struct {
	mu          sync.Mutex
	id          uuid.UUID
	position    spatial.Vec3
	velocity    spatial.Vec3
	orientation spatial.Quaternion
}

// ID returns the listener's stable identity.
func (l *Listener) ID() uuid.UUID { return l.id }

// SetPosition moves the listener in world space.
func (l *Listener) SetPosition(p spatial.Vec3) {
	l.mu.Lock()
	l.position = p
	l.mu.Unlock()
}

// SetVelocity sets the velocity consumed by the Doppler update.
func (l *Listener) SetVelocity(v spatial.Vec3) {
	l.mu.Lock()
	l.velocity = v
	l.mu.Unlock()
}

// SetOrientation sets the listener's facing rotation.
func (l *Listener) SetOrientation(q spatial.Quaternion) {
	l.mu.Lock()
	l.orientation = q
	l.mu.Unlock()
}

func (l *Listener) snapshot() channel.Listener {
	l.mu.Lock()
	defer l.mu.Unlock()
	return channel.Listener{
		ID:          l.id,
		Position:    l.position,
		Velocity:    l.velocity,
		Orientation: l.orientation,
	}
}

// Room is a registered axis-aligned room with a base gain.
type Room struct {
	mu        sync.Mutex
	id        uuid.UUID
	minCorner spatial.Vec3
	maxCorner spatial.Vec3
	gain      float32
}

// ID returns the room's stable identity.
func (r *Room) ID() uuid.UUID { return r.id }

// SetGain sets the room's base gain.
func (r *Room) SetGain(g float32) {
	r.mu.Lock()
	r.gain = g
	r.mu.Unlock()
}

// SetBounds resizes the room's box.
func (r *Room) SetBounds(min, max spatial.Vec3) {
	r.mu.Lock()
	r.minCorner = min
	r.maxCorner = max
	r.mu.Unlock()
}

func (r *Room) snapshot() channel.Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	return channel.Room{
		ID:        r.id,
		MinCorner: r.minCorner,
		MaxCorner: r.maxCorner,
		Gain:      r.gain,
	}
}

// Environment is a registered environment effect zone; channels bound to
// an entity inside it have the effect applied by the pipeline's
// EnvironmentEffect node.
type Environment struct {
	mu     sync.Mutex
	id     uuid.UUID
	name   string
	effect pipeline.Effect
	factor float32
}

// ID returns the environment's stable identity.
func (e *Environment) ID() uuid.UUID { return e.id }

// Name returns the environment's registered name.
func (e *Environment) Name() string { return e.name }

// SetFactor sets the global exposure factor in [0, 1] applied to bound
// channels.
func (e *Environment) SetFactor(f float32) {
	e.mu.Lock()
	e.factor = clamp01(f)
	e.mu.Unlock()
}

func (e *Environment) snapshot() pipeline.EnvironmentFactor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return pipeline.EnvironmentFactor{Effect: e.effect, Factor: e.factor}
}

func clamp01(f float32) float32 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
