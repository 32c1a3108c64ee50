package codec

import (
	"io"
)

// Resampler streams from a planar Source at an adjustable destination
// rate using cubic interpolation. The sample rate ratio is re-settable
// per mix tick so pitch changes land without rebuilding the stream.
type Resampler struct {
	src      Source
	channels int
	ratio    float64 // srcRate / dstRate: source samples consumed per output sample

	frames   [4][]float32 // t-1, t0, t+1, t+2 per channel, interleaved as [channel]
	hasFrame [4]bool

	pos    float64
	srcBuf [][]float32
	eof    bool
}

// NewResampler wraps src, initially targeting dstRate.
func NewResampler(src Source, dstRate int) *Resampler {
	channels := src.Channels()
	r := &Resampler{
		src:      src,
		channels: channels,
		ratio:    float64(src.SampleRate()) / float64(dstRate),
		srcBuf:   makePlanar(channels, 1),
	}
	for i := range r.frames {
		r.frames[i] = make([]float32, channels)
	}
	return r
}

func makePlanar(channels, frames int) [][]float32 {
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	return out
}

// SetDestinationRate reconfigures the resampling ratio without losing
// the interpolation history, so per-tick pitch changes stay click free.
func (r *Resampler) SetDestinationRate(dstRate int) {
	if dstRate <= 0 {
		return
	}
	r.ratio = float64(r.src.SampleRate()) / float64(dstRate)
}

// RequiredInput estimates how many source frames are needed to produce
// outFrames of output at the current ratio.
func (r *Resampler) RequiredInput(outFrames int) int {
	return int(float64(outFrames)*r.ratio) + 4
}

// InputLatency is the number of source frames already buffered for
// interpolation (the cubic window minus one).
func (r *Resampler) InputLatency() int { return 3 }

func (r *Resampler) fetchNextFrame() error {
	if r.eof {
		return io.EOF
	}
	copy(r.frames[0], r.frames[1])
	copy(r.frames[1], r.frames[2])
	copy(r.frames[2], r.frames[3])
	r.hasFrame[0], r.hasFrame[1], r.hasFrame[2] = r.hasFrame[1], r.hasFrame[2], r.hasFrame[3]

	n, err := r.src.ReadFrames(r.srcBuf)
	if n > 0 {
		for c := 0; c < r.channels; c++ {
			r.frames[3][c] = r.srcBuf[c][0]
		}
		r.hasFrame[3] = true
	} else {
		r.hasFrame[3] = false
	}
	if err == io.EOF {
		r.eof = true
		if !r.hasFrame[3] {
			return io.EOF
		}
	} else if err != nil {
		return err
	}
	return nil
}

// ReadFrames produces planar output at the destination rate into dst.
func (r *Resampler) ReadFrames(dst [][]float32) (int, error) {
	framesNeeded := len(dst[0])
	for _, d := range dst {
		if len(d) < framesNeeded {
			framesNeeded = len(d)
		}
	}

	if !r.hasFrame[1] {
		for i := 0; i < 4; i++ {
			n, err := r.src.ReadFrames(r.srcBuf)
			if n > 0 {
				for c := 0; c < r.channels; c++ {
					r.frames[i][c] = r.srcBuf[c][0]
				}
				r.hasFrame[i] = true
			}
			if err == io.EOF {
				r.eof = true
				if i == 0 {
					return 0, io.EOF
				}
				for j := i; j < 4; j++ {
					copy(r.frames[j], r.frames[i-1])
					r.hasFrame[j] = true
				}
				break
			} else if err != nil {
				return 0, err
			}
		}
	}

	written := 0
	for written < framesNeeded {
		for r.pos >= 1.0 {
			r.pos -= 1.0
			if err := r.fetchNextFrame(); err != nil {
				if written == 0 {
					return 0, io.EOF
				}
				return written, io.EOF
			}
		}
		if !r.hasFrame[1] || !r.hasFrame[2] {
			if written == 0 {
				return 0, io.EOF
			}
			return written, io.EOF
		}

		alpha := float32(r.pos)
		for c := 0; c < r.channels; c++ {
			y0 := r.frames[1][c]
			if r.hasFrame[0] {
				y0 = r.frames[0][c]
			}
			y1, y2 := r.frames[1][c], r.frames[2][c]
			y3 := y2
			if r.hasFrame[3] {
				y3 = r.frames[3][c]
			}
			dst[c][written] = cubicInterpolate(y0, y1, y2, y3, alpha)
		}
		written++
		r.pos += r.ratio
	}
	return written, nil
}

// cubicInterpolate is a 4-point Catmull-Rom style cubic interpolation
// between y1 and y2 at fractional position mu.
func cubicInterpolate(y0, y1, y2, y3, mu float32) float32 {
	mu2 := mu * mu
	a0 := y3 - y2 - y0 + y1
	a1 := y0 - y1 - a0
	a2 := y2 - y0
	a3 := y1
	return a0*mu*mu2 + a1*mu2 + a2*mu + a3
}
