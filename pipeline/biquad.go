package pipeline

import (
	"math"

	"github.com/amplimix/amplimix/amplierr"
	"github.com/amplimix/amplimix/buffer"
)

// BiquadFilterType selects the response shape of a BiquadFilter.
type BiquadFilterType int

const (
	BiquadLowPass BiquadFilterType = iota
	BiquadHighPass
	BiquadBandPass
	BiquadPeak
	BiquadNotch
)

// DefaultResonance is the Butterworth Q, giving a maximally flat
// passband.
const DefaultResonance = 0.707107

// BiquadFilter is a direct-form-I resonant biquad. Coefficients are
// derived from the usual audio-cookbook formulas; the two-sample input
// and output histories live on the filter, so one filter serves one
// mono stream.
type BiquadFilter struct {
	filterType BiquadFilterType
	frequency  float64
	resonance  float64
	gain       float64
	sampleRate int

	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
}

// NewLowPassBiquad builds a low-pass filter with cutoff frequency (Hz)
// and resonance q at sampleRate.
func NewLowPassBiquad(frequency, q float64, sampleRate int) (*BiquadFilter, error) {
	f := &BiquadFilter{}
	if err := f.Init(BiquadLowPass, frequency, q, 0, sampleRate); err != nil {
		return nil, err
	}
	return f, nil
}

// NewHighPassBiquad builds a high-pass filter.
func NewHighPassBiquad(frequency, q float64, sampleRate int) (*BiquadFilter, error) {
	f := &BiquadFilter{}
	if err := f.Init(BiquadHighPass, frequency, q, 0, sampleRate); err != nil {
		return nil, err
	}
	return f, nil
}

// NewBandPassBiquad builds a band-pass filter centered on frequency.
func NewBandPassBiquad(frequency, q float64, sampleRate int) (*BiquadFilter, error) {
	f := &BiquadFilter{}
	if err := f.Init(BiquadBandPass, frequency, q, 0, sampleRate); err != nil {
		return nil, err
	}
	return f, nil
}

// Init (re)configures the filter; out-of-range parameters are rejected
// with InvalidParameter. gain (dB) only matters for the peaking type.
func (f *BiquadFilter) Init(filterType BiquadFilterType, frequency, resonance, gain float64, sampleRate int) error {
	const op = "BiquadFilter.Init"
	if filterType < BiquadLowPass || filterType > BiquadNotch {
		return amplierr.New(op, amplierr.InvalidParameter, "unknown filter type")
	}
	if frequency <= 0 || resonance <= 0 || sampleRate <= 0 {
		return amplierr.New(op, amplierr.InvalidParameter, "frequency, resonance, and sample rate must be positive")
	}

	f.filterType = filterType
	f.frequency = frequency
	f.resonance = resonance
	f.gain = gain
	f.sampleRate = sampleRate
	f.computeCoefficients()
	return nil
}

// SetFrequency retunes the cutoff without touching the filter history,
// so a sweeping cutoff (the occlusion node) stays click free.
func (f *BiquadFilter) SetFrequency(frequency float64) {
	if frequency <= 0 {
		return
	}
	// The cutoff cannot exceed Nyquist.
	if nyquist := float64(f.sampleRate) / 2; frequency > nyquist {
		frequency = nyquist
	}
	if frequency == f.frequency {
		return
	}
	f.frequency = frequency
	f.computeCoefficients()
}

func (f *BiquadFilter) computeCoefficients() {
	omega := 2 * math.Pi * f.frequency / float64(f.sampleRate)
	sn, cs := math.Sincos(omega)
	alpha := sn / (2 * f.resonance)

	var b0, b1, b2, a0, a1, a2 float64
	switch f.filterType {
	case BiquadLowPass:
		b0 = (1 - cs) / 2
		b1 = 1 - cs
		b2 = (1 - cs) / 2
		a0 = 1 + alpha
		a1 = -2 * cs
		a2 = 1 - alpha
	case BiquadHighPass:
		b0 = (1 + cs) / 2
		b1 = -(1 + cs)
		b2 = (1 + cs) / 2
		a0 = 1 + alpha
		a1 = -2 * cs
		a2 = 1 - alpha
	case BiquadBandPass:
		b0 = alpha
		b1 = 0
		b2 = -alpha
		a0 = 1 + alpha
		a1 = -2 * cs
		a2 = 1 - alpha
	case BiquadPeak:
		a := math.Pow(10, f.gain/40)
		b0 = 1 + alpha*a
		b1 = -2 * cs
		b2 = 1 - alpha*a
		a0 = 1 + alpha/a
		a1 = -2 * cs
		a2 = 1 - alpha/a
	case BiquadNotch:
		b0 = 1
		b1 = -2 * cs
		b2 = 1
		a0 = 1 + alpha
		a1 = -2 * cs
		a2 = 1 - alpha
	}

	f.b0 = b0 / a0
	f.b1 = b1 / a0
	f.b2 = b2 / a0
	f.a1 = a1 / a0
	f.a2 = a2 / a0
}

// ProcessSample filters one sample.
func (f *BiquadFilter) ProcessSample(x float32) float32 {
	in := float64(x)
	out := f.b0*in + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, in
	f.y2, f.y1 = f.y1, out
	return float32(out)
}

// Process filters src into dst sample by sample; the two may alias.
func (f *BiquadFilter) Process(src, dst []float32) {
	for i, v := range src {
		dst[i] = f.ProcessSample(v)
	}
}

// ProcessBuffer filters every channel-0 sample of buf in place.
func (f *BiquadFilter) ProcessBuffer(buf *buffer.Buffer) {
	ch := buf.GetChannel(0)
	f.Process(ch, ch)
}

// Reset clears the filter history.
func (f *BiquadFilter) Reset() {
	f.x1, f.x2, f.y1, f.y2 = 0, 0, 0, 0
}
