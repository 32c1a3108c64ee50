// Package spatial provides the 3D vector and rotation math shared by the
// channel/virtualisation layer's per-frame update (Doppler, room gain) and
// the pipeline's ambisonic nodes (encode direction, rotate, decode).
//
// Positions and velocities are represented with github.com/golang/geo's
// r3 package rather than a hand-rolled vector type.
package spatial

import (
	"math"

	"github.com/golang/geo/r3"
)

// Vec3 is a plain alias so callers write spatial.Vec3 without importing r3
// directly.
type Vec3 = r3.Vector

// Distance returns the Euclidean distance between two points.
func Distance(a, b Vec3) float64 {
	return a.Sub(b).Norm()
}

// SoundSpeedMetersPerSecond is the default speed of sound used for Doppler
// estimation when a room does not override it.
const SoundSpeedMetersPerSecond = 343.0

// DopplerFactor computes the scalar pitch multiplier for a source moving at
// sourceVelocity relative to a listener at listenerPos moving at
// listenerVelocity, against the configured sound speed.
//
// The classical (non-relativistic) acoustic Doppler formula is used:
//
//	f' = f * (c + vListenerRadial) / (c - vSourceRadial)
//
// where the radial components are projected along the line from source to
// listener, with approach counted positive.
func DopplerFactor(sourcePos, sourceVelocity, listenerPos, listenerVelocity Vec3, soundSpeed float64) float64 {
	if soundSpeed <= 0 {
		soundSpeed = SoundSpeedMetersPerSecond
	}
	toListener := listenerPos.Sub(sourcePos)
	dist := toListener.Norm()
	if dist < 1e-6 {
		return 1.0
	}
	dir := toListener.Mul(1.0 / dist)

	vSourceRadial := sourceVelocity.Dot(dir)      // source moving toward the listener
	vListenerRadial := -listenerVelocity.Dot(dir) // listener moving toward the source

	denom := soundSpeed - vSourceRadial
	if math.Abs(denom) < 1e-6 {
		return 1.0
	}
	factor := (soundSpeed + vListenerRadial) / denom
	if factor < 0 {
		return 0
	}
	return factor
}

// RoomGain computes the per-room gain contribution for a point: clamp
// the position to the room's closest point,
// apply inverse-square falloff with a unit shift, then multiply by the
// room's base gain.
//
//	gain = baseGain / (1 + distanceToClosestPoint^2)
func RoomGain(position, closestPoint Vec3, baseGain float32) float32 {
	d := Distance(position, closestPoint)
	falloff := 1.0 / (1.0 + d*d)
	return baseGain * float32(falloff)
}

// Quaternion is a unit quaternion used to rotate the ambisonic sound-field
// to the listener's orientation (AmbisonicRotator node).
type Quaternion struct {
	W, X, Y, Z float64
}

// IdentityQuaternion returns the no-rotation quaternion.
func IdentityQuaternion() Quaternion {
	return Quaternion{W: 1}
}

// FromAxisAngle builds a unit quaternion representing a rotation of angle
// radians around axis.
func FromAxisAngle(axis Vec3, angle float64) Quaternion {
	n := axis.Norm()
	if n < 1e-9 {
		return IdentityQuaternion()
	}
	axis = axis.Mul(1.0 / n)
	half := angle / 2
	s := math.Sin(half)
	return Quaternion{W: math.Cos(half), X: axis.X * s, Y: axis.Y * s, Z: axis.Z * s}
}

// Conjugate returns the inverse rotation for a unit quaternion.
func (q Quaternion) Conjugate() Quaternion {
	return Quaternion{W: q.W, X: -q.X, Y: -q.Y, Z: -q.Z}
}

// Mul composes two rotations: applying the result rotates by q first, then
// r (Hamilton product r*q matches the usual "rotate then rotate" reading
// when used as r.Mul(q)).
func (r Quaternion) Mul(q Quaternion) Quaternion {
	return Quaternion{
		W: r.W*q.W - r.X*q.X - r.Y*q.Y - r.Z*q.Z,
		X: r.W*q.X + r.X*q.W + r.Y*q.Z - r.Z*q.Y,
		Y: r.W*q.Y - r.X*q.Z + r.Y*q.W + r.Z*q.X,
		Z: r.W*q.Z + r.X*q.Y - r.Y*q.X + r.Z*q.W,
	}
}

// Rotate applies the quaternion rotation to v.
func (q Quaternion) Rotate(v Vec3) Vec3 {
	p := Quaternion{W: 0, X: v.X, Y: v.Y, Z: v.Z}
	r := q.Mul(p).Mul(q.Conjugate())
	return Vec3{X: r.X, Y: r.Y, Z: r.Z}
}

// Forward converts a world-space position into a listener-relative
// direction and distance. Backward is its exact inverse:
// Backward(Forward(v)) == v.
func Forward(listenerPos Vec3, listenerOrient Quaternion, worldPos Vec3) (direction Vec3, distance float64) {
	rel := worldPos.Sub(listenerPos)
	distance = rel.Norm()
	if distance < 1e-9 {
		return Vec3{X: 0, Y: 0, Z: 0}, 0
	}
	local := listenerOrient.Conjugate().Rotate(rel)
	return local.Mul(1.0 / distance), distance
}

// Backward is the inverse of Forward: given a listener-relative direction
// and distance, it reconstructs the original world-space position.
func Backward(listenerPos Vec3, listenerOrient Quaternion, direction Vec3, distance float64) Vec3 {
	if distance == 0 {
		return listenerPos
	}
	world := listenerOrient.Rotate(direction.Mul(distance))
	return listenerPos.Add(world)
}

// Barycentric returns the barycentric coordinates (u, v, w) of p with
// respect to triangle (a, b, c): p == u*a + v*b + w*c with u+v+w == 1
// when p lies in the triangle's plane.
func Barycentric(p, a, b, c Vec3) (u, v, w float64) {
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)

	d1 := ab.Dot(ab)
	d2 := ab.Dot(ac)
	d3 := ac.Dot(ac)
	d4 := ap.Dot(ab)
	d5 := ap.Dot(ac)

	d := d1*d3 - d2*d2
	if math.Abs(d) < 1e-12 {
		return -1, -1, -1 // degenerate triangle
	}

	v = (d3*d4 - d2*d5) / d
	w = (d1*d5 - d2*d4) / d
	u = 1 - v - w
	return u, v, w
}

// barycentricValid reports whether (u, v, w) describe a point inside (or
// on the edge of) the triangle, within floating tolerance.
func barycentricValid(u, v, w float64) bool {
	const e = 1e-6
	return u >= -e && v >= -e && u+v <= 1+e
}

// RayTriangleIntersection intersects the ray from origin along direction
// with triangle (a, b, c), returning the hit's barycentric coordinates.
// Only hits within one ray length are accepted, so callers sampling a
// unit sphere pass a direction scaled slightly past the sphere's radius.
func RayTriangleIntersection(origin, direction, a, b, c Vec3) (u, v, w float64, ok bool) {
	ba := b.Sub(a)
	ca := c.Sub(a)
	nm := ba.Cross(ca).Normalize()

	d := -a.Dot(nm)
	num := -(origin.Dot(nm) + d)
	den := direction.Dot(nm)
	if math.Abs(den) < 1e-12 {
		return 0, 0, 0, false
	}
	t := num / den
	if t < 0 || t > 1 {
		return 0, 0, 0, false
	}

	p := origin.Add(direction.Mul(t))
	u, v, w = Barycentric(p, a, b, c)
	if !barycentricValid(u, v, w) {
		return 0, 0, 0, false
	}
	return u, v, w, true
}
