package codec

import "io"

// MonoMixer downmixes a planar Source to a single channel by averaging.
// The mixer uses this ahead of the resampler so every layer's pipeline
// Input node always reads mono.
type MonoMixer struct {
	src Source
	tmp [][]float32
}

// NewMonoMixer wraps src.
func NewMonoMixer(src Source) *MonoMixer {
	return &MonoMixer{src: src}
}

func (m *MonoMixer) SampleRate() int { return m.src.SampleRate() }
func (m *MonoMixer) Channels() int   { return 1 }
func (m *MonoMixer) Close() error    { return m.src.Close() }

func (m *MonoMixer) ReadFrames(dst [][]float32) (int, error) {
	if m.src.Channels() == 1 {
		return m.src.ReadFrames(dst)
	}

	frames := len(dst[0])
	if m.tmp == nil || len(m.tmp) != m.src.Channels() || len(m.tmp[0]) < frames {
		m.tmp = makePlanar(m.src.Channels(), frames)
	}
	view := make([][]float32, m.src.Channels())
	for c := range view {
		view[c] = m.tmp[c][:frames]
	}

	n, err := m.src.ReadFrames(view)
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}

	channels := float32(m.src.Channels())
	out := dst[0]
	for f := 0; f < n; f++ {
		var sum float32
		for c := 0; c < m.src.Channels(); c++ {
			sum += view[c][f]
		}
		out[f] = sum / channels
	}
	return n, err
}
