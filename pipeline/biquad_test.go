package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amplimix/amplimix/amplierr"
)

func TestBiquadInitRejectsBadParameters(t *testing.T) {
	var f BiquadFilter
	err := f.Init(BiquadLowPass, 0, DefaultResonance, 0, 48000)
	require.Error(t, err)
	assert.True(t, amplierr.Is(err, amplierr.InvalidParameter))

	err = f.Init(BiquadLowPass, 1000, -1, 0, 48000)
	assert.True(t, amplierr.Is(err, amplierr.InvalidParameter))

	err = f.Init(BiquadFilterType(99), 1000, DefaultResonance, 0, 48000)
	assert.True(t, amplierr.Is(err, amplierr.InvalidParameter))
}

func TestLowPassBiquadPassesDC(t *testing.T) {
	f, err := NewLowPassBiquad(1000, DefaultResonance, 48000)
	require.NoError(t, err)

	var out float32
	for i := 0; i < 4096; i++ {
		out = f.ProcessSample(0.5)
	}
	assert.InDelta(t, 0.5, out, 1e-3, "a settled low-pass is transparent to DC")
}

func TestLowPassBiquadAttenuatesNyquist(t *testing.T) {
	f, err := NewLowPassBiquad(1000, DefaultResonance, 48000)
	require.NoError(t, err)

	// Alternating +1/-1 is the highest representable frequency; a 1 kHz
	// low-pass must crush it.
	var peak float32
	sample := float32(1)
	for i := 0; i < 4096; i++ {
		out := f.ProcessSample(sample)
		sample = -sample
		if i > 2048 { // past the settling transient
			if out > peak {
				peak = out
			}
			if -out > peak {
				peak = -out
			}
		}
	}
	assert.Less(t, peak, float32(0.05))
}

func TestHighPassBiquadBlocksDC(t *testing.T) {
	f, err := NewHighPassBiquad(1000, DefaultResonance, 48000)
	require.NoError(t, err)

	var out float32
	for i := 0; i < 4096; i++ {
		out = f.ProcessSample(0.5)
	}
	assert.InDelta(t, 0, out, 1e-3)
}

func TestBiquadSetFrequencyClampsToNyquist(t *testing.T) {
	f, err := NewLowPassBiquad(1000, DefaultResonance, 48000)
	require.NoError(t, err)
	f.SetFrequency(96000)
	assert.LessOrEqual(t, f.frequency, 24000.0)
	f.SetFrequency(-5)
	assert.LessOrEqual(t, f.frequency, 24000.0)
}

func TestBiquadResetClearsHistory(t *testing.T) {
	f, err := NewLowPassBiquad(1000, DefaultResonance, 48000)
	require.NoError(t, err)
	for i := 0; i < 64; i++ {
		f.ProcessSample(1)
	}
	f.Reset()
	assert.Equal(t, float32(f.b0), f.ProcessSample(1), "first post-reset sample sees only b0")
}
