// Package resource reads the runtime's packaged resource descriptors: the
// .amir HRIR sphere file and the .ampk project package.
// Writing either format belongs to the packager tools, which live outside
// this module.
package resource

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/amplimix/amplimix/amplierr"
	"github.com/amplimix/amplimix/pipeline"
	"github.com/amplimix/amplimix/spatial"
)

// amirMagic is the 4-byte file magic of an HRIR sphere resource.
var amirMagic = [4]byte{'A', 'M', 'I', 'R'}

// AMIRVersion is the highest descriptor version this reader understands.
const AMIRVersion = 1

// AMIRVertex is one sampled direction on the HRIR sphere: its position
// and the left/right impulse responses measured there, with the
// estimated interaural time delays.
type AMIRVertex struct {
	Position   spatial.Vec3
	Left       []float32
	Right      []float32
	LeftDelay  float32
	RightDelay float32
}

// AMIRFile is a decoded .amir resource: a triangulated sphere of HRIR
// measurements.
type AMIRFile struct {
	Version    uint16
	SampleRate uint32
	IRLength   uint32
	Indices    []uint32
	Vertices   []AMIRVertex
}

// ReadAMIR decodes an .amir resource:
// magic, uint16 version, uint32 sample rate, uint32 IR length in frames,
// uint32 vertex count, uint32 index count, indexCount*uint32 indices,
// then per vertex {vec3 position, IR left, IR right, left/right delay}.
func ReadAMIR(r io.Reader) (*AMIRFile, error) {
	const op = "resource.ReadAMIR"

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, amplierr.Wrap(op, amplierr.InvalidConfiguration, "reading magic", err)
	}
	if magic != amirMagic {
		return nil, amplierr.New(op, amplierr.InvalidConfiguration, "not an AMIR resource")
	}

	var header struct {
		Version     uint16
		SampleRate  uint32
		IRLength    uint32
		VertexCount uint32
		IndexCount  uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, amplierr.Wrap(op, amplierr.InvalidConfiguration, "reading header", err)
	}
	if header.Version == 0 || header.Version > AMIRVersion {
		return nil, amplierr.New(op, amplierr.Unsupported, "unsupported AMIR version")
	}
	if header.IRLength == 0 || header.VertexCount == 0 {
		return nil, amplierr.New(op, amplierr.InvalidConfiguration, "empty HRIR sphere")
	}

	f := &AMIRFile{
		Version:    header.Version,
		SampleRate: header.SampleRate,
		IRLength:   header.IRLength,
		Indices:    make([]uint32, header.IndexCount),
		Vertices:   make([]AMIRVertex, header.VertexCount),
	}
	if err := binary.Read(r, binary.LittleEndian, f.Indices); err != nil {
		return nil, amplierr.Wrap(op, amplierr.InvalidConfiguration, "reading indices", err)
	}
	for i := range f.Vertices {
		v := &f.Vertices[i]
		var pos [3]float32
		if err := binary.Read(r, binary.LittleEndian, &pos); err != nil {
			return nil, amplierr.Wrap(op, amplierr.InvalidConfiguration, "reading vertex position", err)
		}
		v.Position = spatial.Vec3{X: float64(pos[0]), Y: float64(pos[1]), Z: float64(pos[2])}
		v.Left = make([]float32, header.IRLength)
		v.Right = make([]float32, header.IRLength)
		if err := binary.Read(r, binary.LittleEndian, v.Left); err != nil {
			return nil, amplierr.Wrap(op, amplierr.InvalidConfiguration, "reading left IR", err)
		}
		if err := binary.Read(r, binary.LittleEndian, v.Right); err != nil {
			return nil, amplierr.Wrap(op, amplierr.InvalidConfiguration, "reading right IR", err)
		}
		var delays [2]float32
		if err := binary.Read(r, binary.LittleEndian, &delays); err != nil {
			return nil, amplierr.Wrap(op, amplierr.InvalidConfiguration, "reading delays", err)
		}
		v.LeftDelay, v.RightDelay = delays[0], delays[1]
	}
	for _, idx := range f.Indices {
		if idx >= header.VertexCount {
			return nil, amplierr.New(op, amplierr.InvalidConfiguration, "triangle index out of range")
		}
	}
	return f, nil
}

// Sampler builds a pipeline.HRIRSampler over the file's vertex sphere.
// Barycentric resolution needs the file's triangle indices; a file
// without them (or an explicit nearest-neighbor request) snaps to the
// closest vertex instead.
func (f *AMIRFile) Sampler(mode pipeline.HRIRSamplingMode) pipeline.HRIRSampler {
	directions := make([]spatial.Vec3, len(f.Vertices))
	left := make([][]float32, len(f.Vertices))
	right := make([][]float32, len(f.Vertices))
	for i, v := range f.Vertices {
		directions[i] = v.Position
		left[i] = v.Left
		right[i] = v.Right
	}

	if mode == pipeline.HRIRSamplingBarycentric && len(f.Indices) >= 3 {
		triangles := make([][3]int, 0, len(f.Indices)/3)
		for i := 0; i+2 < len(f.Indices); i += 3 {
			triangles = append(triangles, [3]int{int(f.Indices[i]), int(f.Indices[i+1]), int(f.Indices[i+2])})
		}
		return &pipeline.BarycentricHRIRSet{
			Directions: directions,
			Left:       left,
			Right:      right,
			Triangles:  triangles,
			Length:     int(f.IRLength),
		}
	}

	return &pipeline.NearestNeighborHRIRSet{
		Directions: directions,
		Left:       left,
		Right:      right,
		Length:     int(f.IRLength),
	}
}

// EstimateITD returns the interaural time delay of one vertex's IR pair
// in frames, located by each ear's energy onset. A symmetric pair
// (left == right) yields equal delays.
func EstimateITD(left, right []float32) (leftDelay, rightDelay float32) {
	return onset(left), onset(right)
}

// onset finds the first sample whose magnitude crosses a fraction of the
// IR's peak.
func onset(ir []float32) float32 {
	var peakMag float64
	for _, s := range ir {
		if m := math.Abs(float64(s)); m > peakMag {
			peakMag = m
		}
	}
	if peakMag == 0 {
		return 0
	}
	threshold := peakMag * 0.5
	for i, s := range ir {
		if math.Abs(float64(s)) >= threshold {
			return float32(i)
		}
	}
	return 0
}
