package resource

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/amplimix/amplimix/amplierr"
	"github.com/amplimix/amplimix/pipeline"
	"github.com/amplimix/amplimix/spatial"
)

// buildAMIR hand-assembles an .amir blob the way the packager lays it
// out, so the reader is tested against raw bytes rather than a writer
// sharing its assumptions.
func buildAMIR(t *testing.T, irLength int, vertices []AMIRVertex, indices []uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("AMIR")
	w := func(v any) {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
	}
	w(uint16(1))
	w(uint32(48000))
	w(uint32(irLength))
	w(uint32(len(vertices)))
	w(uint32(len(indices)))
	w(indices)
	for _, v := range vertices {
		w([3]float32{float32(v.Position.X), float32(v.Position.Y), float32(v.Position.Z)})
		w(v.Left)
		w(v.Right)
		w([2]float32{v.LeftDelay, v.RightDelay})
	}
	return buf.Bytes()
}

func TestReadAMIRRoundTrip(t *testing.T) {
	vertices := []AMIRVertex{
		{
			Position: spatial.Vec3{X: 1},
			Left:     []float32{0, 1, 0.5, 0},
			Right:    []float32{0, 0, 1, 0.5},
		},
		{
			Position: spatial.Vec3{X: -1},
			Left:     []float32{1, 0, 0, 0},
			Right:    []float32{1, 0, 0, 0},
		},
		{
			Position: spatial.Vec3{Z: 1},
			Left:     []float32{0, 0, 0, 1},
			Right:    []float32{0, 0, 0, 1},
		},
	}
	blob := buildAMIR(t, 4, vertices, []uint32{0, 1, 2})

	f, err := ReadAMIR(bytes.NewReader(blob))
	require.NoError(t, err)
	assert.Equal(t, uint32(48000), f.SampleRate)
	assert.Equal(t, uint32(4), f.IRLength)
	require.Len(t, f.Vertices, 3)
	assert.Equal(t, vertices[0].Left, f.Vertices[0].Left)
	assert.Equal(t, vertices[1].Right, f.Vertices[1].Right)
	assert.Equal(t, spatial.Vec3{X: 1}, f.Vertices[0].Position)
}

func TestReadAMIRRejectsBadInput(t *testing.T) {
	_, err := ReadAMIR(bytes.NewReader([]byte("NOPE")))
	require.Error(t, err)
	assert.True(t, amplierr.Is(err, amplierr.InvalidConfiguration))

	blob := buildAMIR(t, 2, []AMIRVertex{{Left: []float32{1, 0}, Right: []float32{1, 0}}}, []uint32{7})
	_, err = ReadAMIR(bytes.NewReader(blob))
	require.Error(t, err, "triangle index past the vertex count")

	// Version 9 is from the future.
	future := buildAMIR(t, 2, []AMIRVertex{{Left: []float32{1, 0}, Right: []float32{1, 0}}}, nil)
	future[4] = 9
	_, err = ReadAMIR(bytes.NewReader(future))
	assert.True(t, amplierr.Is(err, amplierr.Unsupported))
}

func TestAMIRSamplerResolvesNearestVertex(t *testing.T) {
	vertices := []AMIRVertex{
		{Position: spatial.Vec3{X: 1}, Left: []float32{1, 0}, Right: []float32{0, 1}},
		{Position: spatial.Vec3{X: -1}, Left: []float32{0, 1}, Right: []float32{1, 0}},
	}
	blob := buildAMIR(t, 2, vertices, nil)
	f, err := ReadAMIR(bytes.NewReader(blob))
	require.NoError(t, err)

	s := f.Sampler(pipeline.HRIRSamplingNearestNeighbor)
	assert.Equal(t, 2, s.IRLength())
	left, right := s.Sample(spatial.Vec3{X: 0.9, Y: 0.1})
	assert.Equal(t, []float32{1, 0}, left)
	assert.Equal(t, []float32{0, 1}, right)
}

func TestAMIRSamplerBarycentricBlendsTriangle(t *testing.T) {
	// One triangle spanning the +Z-facing octant corners; a ray through
	// its centroid must weight all three vertices equally.
	vertices := []AMIRVertex{
		{Position: spatial.Vec3{X: 1}, Left: []float32{1, 0}, Right: []float32{0, 0}},
		{Position: spatial.Vec3{Y: 1}, Left: []float32{0, 1}, Right: []float32{0, 0}},
		{Position: spatial.Vec3{Z: 1}, Left: []float32{0, 0}, Right: []float32{1, 1}},
	}
	blob := buildAMIR(t, 2, vertices, []uint32{0, 1, 2})
	f, err := ReadAMIR(bytes.NewReader(blob))
	require.NoError(t, err)

	s := f.Sampler(pipeline.HRIRSamplingBarycentric)
	centroid := spatial.Vec3{X: 1, Y: 1, Z: 1}
	left, right := s.Sample(centroid)
	third := float32(1.0 / 3.0)
	assert.InDelta(t, third, left[0], 1e-5)
	assert.InDelta(t, third, left[1], 1e-5)
	assert.InDelta(t, third, right[0], 1e-5)

	// A direction missing the sphere's only triangle falls back to the
	// nearest vertex (here the +Y corner, the first of the two closest).
	left, _ = s.Sample(spatial.Vec3{X: -1})
	assert.Equal(t, []float32{0, 1}, left)
}

func TestEstimateITDSymmetry(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		length := rapid.IntRange(1, 64).Draw(t, "length")
		ir := make([]float32, length)
		for i := range ir {
			ir[i] = float32(rapid.Float64Range(-1, 1).Draw(t, "sample"))
		}
		l, r := EstimateITD(ir, ir)
		if l != r {
			t.Fatalf("symmetric IR pair must have equal delays: %v != %v", l, r)
		}
	})
}

// buildAMPK hand-assembles an .ampk blob.
func buildAMPK(t *testing.T, compression Compression, items map[string][]byte, order []string) []byte {
	t.Helper()
	var payload bytes.Buffer
	type span struct{ off, size uint64 }
	spans := make(map[string]span, len(items))
	for _, name := range order {
		spans[name] = span{off: uint64(payload.Len()), size: uint64(len(items[name]))}
		payload.Write(items[name])
	}

	var buf bytes.Buffer
	buf.WriteString("AMPK")
	w := func(v any) {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
	}
	w(uint16(1))
	w(uint8(compression))
	w(uint64(len(order)))
	for _, name := range order {
		w(uint16(len(name)))
		buf.WriteString(name)
		w([2]uint64{spans[name].off, spans[name].size})
	}
	if compression == CompressionZlib {
		zw := zlib.NewWriter(&buf)
		_, err := zw.Write(payload.Bytes())
		require.NoError(t, err)
		require.NoError(t, zw.Close())
	} else {
		buf.Write(payload.Bytes())
	}
	return buf.Bytes()
}

func TestReadAMPKPlain(t *testing.T) {
	items := map[string][]byte{
		"banks/main.ambank": []byte("bank-bytes"),
		"hrir/sphere.amir":  []byte("ir-bytes"),
	}
	order := []string{"banks/main.ambank", "hrir/sphere.amir"}
	f, err := ReadAMPK(bytes.NewReader(buildAMPK(t, CompressionNone, items, order)))
	require.NoError(t, err)

	assert.Equal(t, order, f.Names())
	for name, want := range items {
		got, err := f.Open(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err = f.Open("missing")
	assert.True(t, amplierr.Is(err, amplierr.ResourceNotFound))
}

func TestReadAMPKZlib(t *testing.T) {
	items := map[string][]byte{"a": bytes.Repeat([]byte("amplimix"), 512)}
	f, err := ReadAMPK(bytes.NewReader(buildAMPK(t, CompressionZlib, items, []string{"a"})))
	require.NoError(t, err)
	got, err := f.Open("a")
	require.NoError(t, err)
	assert.Equal(t, items["a"], got)
}

func TestReadAMPKRejectsBadSpans(t *testing.T) {
	blob := buildAMPK(t, CompressionNone, map[string][]byte{"a": []byte("xy")}, []string{"a"})
	// Truncate the payload so the directory span dangles.
	blob = blob[:len(blob)-1]
	_, err := ReadAMPK(bytes.NewReader(blob))
	require.Error(t, err)
	assert.True(t, amplierr.Is(err, amplierr.InvalidConfiguration))
}
