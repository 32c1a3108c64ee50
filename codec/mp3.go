package codec

import (
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// MP3Decoder adapts github.com/hajimehoshi/go-mp3, which always decodes to
// 16-bit stereo PCM, little-endian interleaved.
type MP3Decoder struct{}

func (MP3Decoder) Decode(r io.Reader) (Source, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("codec: opening MP3 stream: %w", err)
	}
	return &mp3Source{
		dec:  d,
		rate: d.SampleRate(),
		raw:  make([]byte, 4096*4), // 2 channels * 2 bytes
	}, nil
}

type mp3Source struct {
	dec    *mp3.Decoder
	rate   int
	raw    []byte
	closed bool
}

func (s *mp3Source) SampleRate() int { return s.rate }
func (s *mp3Source) Channels() int   { return 2 }
func (s *mp3Source) Close() error    { s.closed = true; return nil }

func (s *mp3Source) ReadFrames(dst [][]float32) (int, error) {
	if s.closed {
		return 0, errClosed("codec.MP3.ReadFrames")
	}
	framesWanted := len(dst[0])
	if len(dst[1]) < framesWanted {
		framesWanted = len(dst[1])
	}
	needed := framesWanted * 4
	if len(s.raw) < needed {
		s.raw = make([]byte, needed)
	}

	n, err := io.ReadFull(s.dec, s.raw[:needed])
	if err == io.ErrUnexpectedEOF {
		n = (n / 4) * 4
		err = io.EOF
	} else if err != nil && err != io.EOF {
		return 0, fmt.Errorf("codec: MP3 PCM read: %w", err)
	}

	frames := n / 4
	const scale = 1.0 / 32768.0
	for f := 0; f < frames; f++ {
		li := int16(uint16(s.raw[f*4]) | uint16(s.raw[f*4+1])<<8)
		ri := int16(uint16(s.raw[f*4+2]) | uint16(s.raw[f*4+3])<<8)
		dst[0][f] = float32(li) * scale
		dst[1][f] = float32(ri) * scale
	}
	if frames == 0 {
		return 0, io.EOF
	}
	return frames, err
}
