package codec

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"
)

// OggVorbisDecoder adapts github.com/jfreymuth/oggvorbis, which already
// reads directly into interleaved float32 samples in [-1, 1].
type OggVorbisDecoder struct{}

func (OggVorbisDecoder) Decode(r io.Reader) (Source, error) {
	rd, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("codec: opening OGG Vorbis stream: %w", err)
	}
	return &oggSource{
		rd:       rd,
		rate:     rd.SampleRate(),
		channels: rd.Channels(),
		raw:      make([]float32, 4096*rd.Channels()),
	}, nil
}

type oggSource struct {
	rd       *oggvorbis.Reader
	rate     int
	channels int
	raw      []float32
	closed   bool
}

func (s *oggSource) SampleRate() int { return s.rate }
func (s *oggSource) Channels() int   { return s.channels }
func (s *oggSource) Close() error    { s.closed = true; return nil }

func (s *oggSource) ReadFrames(dst [][]float32) (int, error) {
	if s.closed {
		return 0, errClosed("codec.OggVorbis.ReadFrames")
	}
	framesWanted := len(dst[0])
	for _, d := range dst {
		if len(d) < framesWanted {
			framesWanted = len(d)
		}
	}
	needed := framesWanted * s.channels
	if len(s.raw) < needed {
		s.raw = make([]float32, needed)
	}

	n, err := s.rd.Read(s.raw[:needed])
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("codec: OGG Vorbis read: %w", err)
	}
	frames := interleavedToPlanar(s.raw[:n], s.channels, dst)
	if n == 0 {
		return 0, io.EOF
	}
	return frames, err
}
