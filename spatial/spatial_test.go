package spatial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func vecGen(t *rapid.T, label string) Vec3 {
	return Vec3{
		X: rapid.Float64Range(-1000, 1000).Draw(t, label+".x"),
		Y: rapid.Float64Range(-1000, 1000).Draw(t, label+".y"),
		Z: rapid.Float64Range(-1000, 1000).Draw(t, label+".z"),
	}
}

// TestForwardBackwardRoundTrip checks the coordinate-system round-trip
// law Backward(Forward(v)) == v within floating tolerance.
func TestForwardBackwardRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		listenerPos := vecGen(t, "listenerPos")
		axis := vecGen(t, "axis")
		angle := rapid.Float64Range(-math.Pi, math.Pi).Draw(t, "angle")
		orient := IdentityQuaternion()
		if axis.Norm() > 1e-6 {
			orient = FromAxisAngle(axis, angle)
		}
		worldPos := vecGen(t, "worldPos")
		if Distance(worldPos, listenerPos) < 1e-6 {
			return // degenerate: Forward defines direction as zero, skip
		}

		dir, dist := Forward(listenerPos, orient, worldPos)
		back := Backward(listenerPos, orient, dir, dist)

		require.InDelta(t, worldPos.X, back.X, 1e-6*max(1, math.Abs(worldPos.X)))
		require.InDelta(t, worldPos.Y, back.Y, 1e-6*max(1, math.Abs(worldPos.Y)))
		require.InDelta(t, worldPos.Z, back.Z, 1e-6*max(1, math.Abs(worldPos.Z)))
	})
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func TestDopplerFactorStationaryIsUnity(t *testing.T) {
	zero := Vec3{}
	f := DopplerFactor(Vec3{X: 1, Y: 0, Z: 0}, zero, Vec3{}, zero, SoundSpeedMetersPerSecond)
	assert.InDelta(t, 1.0, f, 1e-9)
}

func TestDopplerFactorApproachingSourceRaisesPitch(t *testing.T) {
	source := Vec3{X: 10, Y: 0, Z: 0}
	sourceVel := Vec3{X: -50, Y: 0, Z: 0} // moving toward listener at origin
	f := DopplerFactor(source, sourceVel, Vec3{}, Vec3{}, SoundSpeedMetersPerSecond)
	assert.Greater(t, f, 1.0)
}

func TestRoomGainDecaysWithDistance(t *testing.T) {
	near := RoomGain(Vec3{X: 1}, Vec3{}, 1.0)
	far := RoomGain(Vec3{X: 10}, Vec3{}, 1.0)
	assert.Greater(t, near, far)
	assert.LessOrEqual(t, near, float32(1.0))
}

func TestBarycentricAtVertices(t *testing.T) {
	a := Vec3{X: 1}
	b := Vec3{Y: 1}
	c := Vec3{Z: 1}

	u, v, w := Barycentric(a, a, b, c)
	assert.InDelta(t, 1, u, 1e-9)
	assert.InDelta(t, 0, v, 1e-9)
	assert.InDelta(t, 0, w, 1e-9)

	centroid := Vec3{X: 1.0 / 3, Y: 1.0 / 3, Z: 1.0 / 3}
	u, v, w = Barycentric(centroid, a, b, c)
	assert.InDelta(t, 1.0/3, u, 1e-9)
	assert.InDelta(t, 1.0/3, v, 1e-9)
	assert.InDelta(t, 1.0/3, w, 1e-9)
	assert.InDelta(t, 1, u+v+w, 1e-9)
}

func TestRayTriangleIntersection(t *testing.T) {
	a := Vec3{X: 1}
	b := Vec3{Y: 1}
	c := Vec3{Z: 1}

	// Through the centroid: an equal-weight hit.
	dir := Vec3{X: 1, Y: 1, Z: 1}
	u, v, w, ok := RayTriangleIntersection(Vec3{}, dir, a, b, c)
	require.True(t, ok)
	assert.InDelta(t, 1.0/3, u, 1e-9)
	assert.InDelta(t, 1.0/3, v, 1e-9)
	assert.InDelta(t, 1.0/3, w, 1e-9)

	// Pointing away from the triangle: no hit.
	_, _, _, ok = RayTriangleIntersection(Vec3{}, Vec3{X: -1, Y: -1, Z: -1}, a, b, c)
	assert.False(t, ok)

	// Too short to reach the plane: no hit.
	_, _, _, ok = RayTriangleIntersection(Vec3{}, Vec3{X: 0.1, Y: 0.1, Z: 0.1}, a, b, c)
	assert.False(t, ok)
}
