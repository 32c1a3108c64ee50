package codec

import (
	"bytes"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVDecoder adapts github.com/go-audio/wav to the Source interface.
type WAVDecoder struct{}

func (WAVDecoder) Decode(r io.Reader) (Source, error) {
	// go-audio/wav seeks while walking chunks, so a plain reader is
	// buffered in memory first.
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("codec: reading WAV stream: %w", err)
		}
		rs = bytes.NewReader(data)
	}
	d := wav.NewDecoder(rs)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("codec: not a valid WAV file")
	}
	d.ReadInfo()
	if d.Err() != nil {
		return nil, fmt.Errorf("codec: reading WAV header: %w", d.Err())
	}

	return &wavSource{
		dec:      d,
		rate:     int(d.SampleRate),
		channels: int(d.NumChans),
		intBuf: &goaudio.IntBuffer{
			Format: &goaudio.Format{NumChannels: int(d.NumChans), SampleRate: int(d.SampleRate)},
			Data:   make([]int, 4096*int(d.NumChans)),
		},
	}, nil
}

type wavSource struct {
	dec      *wav.Decoder
	rate     int
	channels int
	intBuf   *goaudio.IntBuffer
	closed   bool
}

func (s *wavSource) SampleRate() int { return s.rate }
func (s *wavSource) Channels() int   { return s.channels }
func (s *wavSource) Close() error    { s.closed = true; return nil }

func (s *wavSource) ReadFrames(dst [][]float32) (int, error) {
	if s.closed {
		return 0, errClosed("codec.WAV.ReadFrames")
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
		return 0, fmt.Errorf("codec: WAV PCM read: %w", err)
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
