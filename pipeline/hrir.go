package pipeline

import "github.com/amplimix/amplimix/spatial"

// HRIRSampler abstracts HRTF sphere loading and triangle lookup away
// from the DSP path. resource.AMIRFile.Sampler builds one from an .amir
// resource's vertex sphere and its stored triangle indices; this package
// only consumes the interface from the AmbisonicBinauralDecoder node.
type HRIRSampler interface {
	// Sample returns the left/right impulse responses for the given unit
	// direction (listener-relative), resolved by barycentric interpolation
	// or nearest-neighbor across the sampler's triangulated sphere.
	Sample(direction Vec3) (left, right []float32)
	// IRLength is the length, in frames, of every impulse response Sample
	// returns.
	IRLength() int
}

// HRIRSamplingMode selects how a sampler resolves a direction that falls
// between measured sphere vertices.
type HRIRSamplingMode int

const (
	// HRIRSamplingNearestNeighbor snaps to the closest measured vertex.
	HRIRSamplingNearestNeighbor HRIRSamplingMode = iota
	// HRIRSamplingBarycentric blends the three vertices of the sphere
	// triangle the direction passes through, weighted by the hit's
	// barycentric coordinates.
	HRIRSamplingBarycentric
)

// NearestNeighborHRIRSet is a minimal HRIRSampler over a small fixed set
// of directions, useful for tests and as a reference implementation of
// nearest-neighbor resolution (the cheap alternative to barycentric
// interpolation).
type NearestNeighborHRIRSet struct {
	Directions []Vec3
	Left       [][]float32
	Right      [][]float32
	Length     int
}

func (s *NearestNeighborHRIRSet) IRLength() int { return s.Length }

func (s *NearestNeighborHRIRSet) Sample(direction Vec3) ([]float32, []float32) {
	if len(s.Directions) == 0 {
		return make([]float32, s.Length), make([]float32, s.Length)
	}
	best := 0
	bestDot := -2.0
	n := direction.Norm()
	if n > 1e-9 {
		direction = direction.Mul(1.0 / n)
	}
	for i, d := range s.Directions {
		dn := d.Norm()
		if dn > 1e-9 {
			d = d.Mul(1.0 / dn)
		}
		dot := direction.Dot(d)
		if dot > bestDot {
			bestDot = dot
			best = i
		}
	}
	return s.Left[best], s.Right[best]
}

// BarycentricHRIRSet resolves directions against a triangulated HRIR
// sphere: the direction ray is intersected with each triangle, and the
// three corner IRs of the hit triangle are blended by the intersection's
// barycentric weights. Directions that miss every triangle (a sphere
// with holes, or degenerate triangles) fall back to nearest-neighbor.
type BarycentricHRIRSet struct {
	Directions []Vec3
	Left       [][]float32
	Right      [][]float32
	Triangles  [][3]int
	Length     int

	nearest *NearestNeighborHRIRSet
	scratchL []float32
	scratchR []float32
}

func (s *BarycentricHRIRSet) IRLength() int { return s.Length }

func (s *BarycentricHRIRSet) Sample(direction Vec3) ([]float32, []float32) {
	if len(s.Triangles) == 0 || len(s.Directions) == 0 {
		return s.fallback().Sample(direction)
	}

	n := direction.Norm()
	if n > 1e-9 {
		direction = direction.Mul(1.0 / n)
	}
	// The intersection only accepts hits within one ray length, so reach
	// slightly past the unit sphere's surface.
	ray := direction.Mul(1.2)

	for _, tri := range s.Triangles {
		a, b, c := s.Directions[tri[0]], s.Directions[tri[1]], s.Directions[tri[2]]
		u, v, w, ok := spatial.RayTriangleIntersection(Vec3{}, ray, a, b, c)
		if !ok {
			continue
		}
		return s.blend(tri, u, v, w)
	}
	return s.fallback().Sample(direction)
}

func (s *BarycentricHRIRSet) blend(tri [3]int, u, v, w float64) ([]float32, []float32) {
	if len(s.scratchL) != s.Length {
		s.scratchL = make([]float32, s.Length)
		s.scratchR = make([]float32, s.Length)
	}
	la, lb, lc := s.Left[tri[0]], s.Left[tri[1]], s.Left[tri[2]]
	ra, rb, rc := s.Right[tri[0]], s.Right[tri[1]], s.Right[tri[2]]
	fu, fv, fw := float32(u), float32(v), float32(w)
	for i := 0; i < s.Length; i++ {
		s.scratchL[i] = fu*la[i] + fv*lb[i] + fw*lc[i]
		s.scratchR[i] = fu*ra[i] + fv*rb[i] + fw*rc[i]
	}
	return s.scratchL, s.scratchR
}

func (s *BarycentricHRIRSet) fallback() *NearestNeighborHRIRSet {
	if s.nearest == nil {
		s.nearest = &NearestNeighborHRIRSet{
			Directions: s.Directions,
			Left:       s.Left,
			Right:      s.Right,
			Length:     s.Length,
		}
	}
	return s.nearest
}
