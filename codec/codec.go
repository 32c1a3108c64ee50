// Package codec defines the Decoder/Source boundary behind which file
// formats stay: decoders produce planar float frames, and the engine core
// never parses container bytes itself. It provides the concrete
// WAV/MP3/OGG/AIFF adapters plus the resampler and mono-mixdown helpers
// the mixer's per-layer pull path uses.
package codec

import (
	"fmt"
	"io"
	"sync"
)

// Source streams decoded, planar float32 samples in [-1, 1].
type Source interface {
	// SampleRate of the decoded stream in Hz.
	SampleRate() int
	// Channels is the channel count (1 = mono, 2 = stereo, ...).
	Channels() int
	// ReadFrames fills each dst[c] with up to len(dst[c]) samples for
	// channel c. It returns the number of frames actually written,
	// identical across all channels. io.EOF is returned once the stream is
	// exhausted, possibly alongside a final partial read.
	ReadFrames(dst [][]float32) (frames int, err error)
	// Close releases decoder resources.
	Close() error
}

// Decoder constructs a Source from an encoded stream.
type Decoder interface {
	Decode(r io.Reader) (Source, error)
}

// Registry maps a format key ("wav", "mp3", "ogg", "aiff") to the Decoder
// that handles it.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Decoder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Decoder)}
}

// Register installs a Decoder under format.
func (r *Registry) Register(format string, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[format] = d
}

// Get looks up the Decoder for format.
func (r *Registry) Get(format string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.codecs[format]
	return d, ok
}

// DefaultRegistry returns a Registry with the WAV/MP3/OGG/AIFF adapters
// below pre-registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("wav", WAVDecoder{})
	r.Register("mp3", MP3Decoder{})
	r.Register("ogg", OggVorbisDecoder{})
	r.Register("aiff", AIFFDecoder{})
	return r
}

// interleavedToPlanar de-interleaves n frames of channels-wide interleaved
// samples from src into dst, returning the number of frames written.
func interleavedToPlanar(src []float32, channels int, dst [][]float32) int {
	frames := len(src) / channels
	for _, d := range dst {
		if len(d) < frames {
			frames = len(d)
		}
	}
	for f := 0; f < frames; f++ {
		for c := 0; c < channels && c < len(dst); c++ {
			dst[c][f] = src[f*channels+c]
		}
	}
	return frames
}

func errClosed(op string) error {
	return fmt.Errorf("%s: source closed", op)
}
