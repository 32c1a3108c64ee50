package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
)

// AIFFDecoder adapts github.com/go-audio/aiff to the Source interface, the
// same shape as WAVDecoder since both sit on go-audio/audio's IntBuffer.
type AIFFDecoder struct{}

func (AIFFDecoder) Decode(r io.Reader) (Source, error) {
	// go-audio/aiff seeks while walking chunks, so a plain reader is
	// buffered in memory first.
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("codec: reading AIFF stream: %w", err)
		}
		rs = bytes.NewReader(data)
	}
	d := aiff.NewDecoder(rs)
	d.ReadInfo()
	if d.Err() != nil {
		return nil, fmt.Errorf("codec: reading AIFF header: %w", d.Err())
	}

	return &aiffSource{
		dec:      d,
		rate:     int(d.SampleRate),
		channels: int(d.NumChans),
		intBuf: &goaudio.IntBuffer{
			Format: &goaudio.Format{NumChannels: int(d.NumChans), SampleRate: int(d.SampleRate)},
			Data:   make([]int, 4096*int(d.NumChans)),
		},
	}, nil
}

type aiffSource struct {
	dec      *aiff.Decoder
	rate     int
	channels int
	intBuf   *goaudio.IntBuffer
	closed   bool
}

func (s *aiffSource) SampleRate() int { return s.rate }
func (s *aiffSource) Channels() int   { return s.channels }
func (s *aiffSource) Close() error    { s.closed = true; return nil }

func (s *aiffSource) ReadFrames(dst [][]float32) (int, error) {
	if s.closed {
		return 0, errClosed("codec.AIFF.ReadFrames")
	}
	framesWanted := len(dst[0])
	for _, d := range dst {
		if len(d) < framesWanted {
			framesWanted = len(d)
		}
	}
	needed := framesWanted * s.channels
	if len(s.intBuf.Data) < needed {
		s.intBuf.Data = make([]int, needed)
	}
	s.intBuf.Data = s.intBuf.Data[:needed]

	n, err := s.dec.PCMBuffer(s.intBuf)
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("codec: AIFF PCM read: %w", err)
	}
	frames := n / s.channels
	maxVal := float32(int(1) << (s.dec.BitDepth - 1))

	for f := 0; f < frames; f++ {
		for c := 0; c < s.channels; c++ {
			dst[c][f] = float32(s.intBuf.Data[f*s.channels+c]) / maxVal
		}
	}
	if n == 0 {
		return 0, io.EOF
	}
	return frames, err
}
