package codec

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sineSource is a synthetic stereo Source used to exercise the resampler
// and mono mixer without depending on a real encoded file.
type sineSource struct {
	rate, channels int
	pos            int
	total          int
}

func (s *sineSource) SampleRate() int { return s.rate }
func (s *sineSource) Channels() int   { return s.channels }
func (s *sineSource) Close() error    { return nil }

func (s *sineSource) ReadFrames(dst [][]float32) (int, error) {
	framesWanted := len(dst[0])
	remaining := s.total - s.pos
	if remaining <= 0 {
		return 0, io.EOF
	}
	if framesWanted > remaining {
		framesWanted = remaining
	}
	for f := 0; f < framesWanted; f++ {
		v := float32(1)
		for c := 0; c < s.channels; c++ {
			dst[c][f] = v
		}
	}
	s.pos += framesWanted
	var err error
	if s.pos >= s.total {
		err = io.EOF
	}
	return framesWanted, err
}

func TestMonoMixerAverages(t *testing.T) {
	src := &sineSource{rate: 44100, channels: 2, total: 64}
	mm := NewMonoMixer(src)

	dst := [][]float32{make([]float32, 32)}
	n, err := mm.ReadFrames(dst)
	require.NoError(t, err)
	assert.Equal(t, 32, n)
	for _, v := range dst[0] {
		assert.InDelta(t, 1.0, v, 1e-6)
	}
}

func TestMonoMixerPassthroughWhenAlreadyMono(t *testing.T) {
	src := &sineSource{rate: 44100, channels: 1, total: 16}
	mm := NewMonoMixer(src)
	dst := [][]float32{make([]float32, 16)}
	n, err := mm.ReadFrames(dst)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
}

func TestResamplerUpsampleProducesRequestedFrames(t *testing.T) {
	src := &sineSource{rate: 22050, channels: 1, total: 4096}
	r := NewResampler(src, 44100)
	dst := [][]float32{make([]float32, 256)}
	n, err := r.ReadFrames(dst)
	require.NoError(t, err)
	assert.Equal(t, 256, n)
	for _, v := range dst[0] {
		assert.InDelta(t, 1.0, v, 1e-3)
	}
}

func TestResamplerRetargetRatio(t *testing.T) {
	src := &sineSource{rate: 48000, channels: 1, total: 8192}
	r := NewResampler(src, 48000)
	r.SetDestinationRate(24000)
	assert.Equal(t, 2.0, r.ratio)
}

func TestDefaultRegistryHasAllFormats(t *testing.T) {
	reg := DefaultRegistry()
	for _, f := range []string{"wav", "mp3", "ogg", "aiff"} {
		_, ok := reg.Get(f)
		assert.True(t, ok, "missing decoder for %s", f)
	}
}
