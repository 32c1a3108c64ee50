package mixer

import (
	"io"
	"sync/atomic"

	"github.com/amplimix/amplimix/buffer"
	"github.com/amplimix/amplimix/codec"
)

// Chunk is a decoded, fully-loaded mono sound shared read-only across
// every layer currently playing it. release decrements the refcount and
// runs afterFree once it reaches zero; the sample data itself is left to
// Go's GC, so the refcount exists to make the release point explicit and
// testable rather than to manage memory directly.
type Chunk struct {
	data       []float32
	rate       int
	refCount   int64
	afterFree  func()
}

// NewChunk wraps an already-decoded mono sample block at the given source
// rate. afterFree, if non-nil, runs once the last holder releases the
// chunk.
func NewChunk(data []float32, rate int, afterFree func()) *Chunk {
	return &Chunk{data: data, rate: rate, refCount: 1, afterFree: afterFree}
}

// FrameCount returns the chunk's length in mono frames.
func (c *Chunk) FrameCount() int { return len(c.data) }

// SampleRate returns the chunk's source sample rate.
func (c *Chunk) SampleRate() int { return c.rate }

func (c *Chunk) acquire() *Chunk {
	atomic.AddInt64(&c.refCount, 1)
	return c
}

func (c *Chunk) release() {
	if atomic.AddInt64(&c.refCount, -1) == 0 && c.afterFree != nil {
		c.afterFree()
	}
}

// preloadedChunkReader reads from a shared preloaded chunk starting at
// cursor % length, splicing across the wrap point when looping.
type preloadedChunkReader struct {
	chunk  *Chunk
	cursor int
}

func newPreloadedChunkReader(chunk *Chunk) *preloadedChunkReader {
	return &preloadedChunkReader{chunk: chunk.acquire()}
}

func (r *preloadedChunkReader) sampleRate() int { return r.chunk.rate }

func (r *preloadedChunkReader) read(dst []float32, looping bool) (frames int, wrapped bool, ended bool) {
	data := r.chunk.data
	n := len(data)
	if n == 0 {
		return 0, false, true
	}
	written := 0
	for written < len(dst) {
		if r.cursor >= n {
			if !looping {
				return written, wrapped, true
			}
			r.cursor = 0
			wrapped = true
		}
		chunkLen := n - r.cursor
		need := len(dst) - written
		if chunkLen > need {
			chunkLen = need
		}
		copy(dst[written:written+chunkLen], data[r.cursor:r.cursor+chunkLen])
		written += chunkLen
		r.cursor += chunkLen
	}
	ended = !looping && r.cursor >= n
	return written, wrapped, ended
}

func (r *preloadedChunkReader) seek(frame int) {
	n := len(r.chunk.data)
	if n == 0 {
		r.cursor = 0
		return
	}
	if frame < 0 {
		frame = 0
	}
	r.cursor = frame % n
}

func (r *preloadedChunkReader) close() error {
	r.chunk.release()
	return nil
}

// streamingChunkReader reads directly from a codec.Source in native
// buffer-size chunks, stitching across loop points. Looping a streaming
// source means re-opening it via reopen, since an arbitrary codec.Source
// is not required to support seeking.
type streamingChunkReader struct {
	src    codec.Source
	reopen func() (codec.Source, error)
	tmp    [][]float32
}

func newStreamingChunkReader(src codec.Source, reopen func() (codec.Source, error)) *streamingChunkReader {
	return &streamingChunkReader{src: src, reopen: reopen, tmp: [][]float32{nil}}
}

func (r *streamingChunkReader) sampleRate() int { return r.src.SampleRate() }

func (r *streamingChunkReader) read(dst []float32, looping bool) (frames int, wrapped bool, ended bool) {
	written := 0
	for written < len(dst) {
		if cap(r.tmp[0]) < len(dst)-written {
			r.tmp[0] = make([]float32, len(dst)-written)
		}
		view := r.tmp[0][:len(dst)-written]
		n, err := r.src.ReadFrames([][]float32{view})
		if n > 0 {
			copy(dst[written:written+n], view[:n])
			written += n
		}
		if err == io.EOF {
			if !looping {
				return written, wrapped, true
			}
			if r.reopen == nil {
				return written, wrapped, true
			}
			r.src.Close()
			newSrc, reopenErr := r.reopen()
			if reopenErr != nil {
				return written, wrapped, true
			}
			r.src = newSrc
			wrapped = true
			continue
		} else if err != nil {
			return written, wrapped, true
		}
	}
	return written, wrapped, false
}

// seek on a stream decodes and discards up to frame, since an arbitrary
// codec.Source is not required to support random access. A source that
// ends before the target frame stays parked at EOF.
func (r *streamingChunkReader) seek(frame int) {
	const chunk = 4096
	discard := make([]float32, chunk)
	remaining := frame
	for remaining > 0 {
		want := remaining
		if want > chunk {
			want = chunk
		}
		n, err := r.src.ReadFrames([][]float32{discard[:want]})
		remaining -= n
		if err != nil || n == 0 {
			return
		}
	}
}

func (r *streamingChunkReader) close() error {
	return r.src.Close()
}

// SoundInstance is the per-layer runtime state for one playing sound: its
// decoded chunk source, resampler, mono-downmix, pipeline instance, and
// cursor/loop bookkeeping.
type SoundInstance struct {
	chunk      sourceChunk
	chunkSrc   *chunkSource
	resampler  *codec.Resampler
	frameCount int // frames produced so far since the current loop started
	loopCount  int // completed wraps
	loopBudget int // 0 = infinite

	playSpeed     float64 // current smoothed speed
	targetSpeed   float64
	userPlaySpeed float64
	pitch         float64
	gain          float32

	mono *buffer.Buffer // transient decode/resample scratch, reused per tick
}

// NewPreloadedSoundInstance builds a SoundInstance backed by a shared
// fully-decoded chunk.
func NewPreloadedSoundInstance(chunk *Chunk, destRate int, opts PlayOptions) *SoundInstance {
	reader := newPreloadedChunkReader(chunk)
	return newSoundInstance(reader, destRate, opts)
}

// NewStreamingSoundInstance builds a SoundInstance backed by a live
// codec.Source; reopen (optional) lets a looping stream restart from the
// beginning once the source signals EOF.
func NewStreamingSoundInstance(src codec.Source, reopen func() (codec.Source, error), destRate int, opts PlayOptions) *SoundInstance {
	reader := newStreamingChunkReader(src, reopen)
	return newSoundInstance(reader, destRate, opts)
}

func newSoundInstance(chunk sourceChunk, destRate int, opts PlayOptions) *SoundInstance {
	if opts.StartFrame > 0 {
		chunk.seek(opts.StartFrame)
	}
	monoSrc := &chunkSource{chunk: chunk, looping: opts.Loop}
	resampler := codec.NewResampler(monoSrc, destRate)
	pitch := opts.Pitch
	if pitch <= 0 {
		pitch = 1
	}
	userSpeed := opts.UserPlaySpeed
	if userSpeed <= 0 {
		userSpeed = 1
	}
	gain := opts.Gain
	if gain == 0 {
		gain = 1
	}
	loopBudget := opts.LoopCount
	return &SoundInstance{
		chunk:         chunk,
		chunkSrc:      monoSrc,
		resampler:     resampler,
		loopBudget:    loopBudget,
		playSpeed:     pitch * userSpeed,
		targetSpeed:   pitch * userSpeed,
		userPlaySpeed: userSpeed,
		pitch:         pitch,
		gain:          gain,
	}
}

// chunkSource adapts a sourceChunk (this package's mono cursor reader) to
// codec.Source so it can feed codec.Resampler directly. wrapped latches
// true whenever a read crosses a loop boundary, since the resampler pulls
// one source frame at a time and a single mix tick's ReadFrames call may
// observe several underlying chunkSource reads.
type chunkSource struct {
	chunk   sourceChunk
	looping bool
	ended   bool
	wrapped bool
}

func (c *chunkSource) SampleRate() int { return c.chunk.sampleRate() }
func (c *chunkSource) Channels() int   { return 1 }
func (c *chunkSource) Close() error    { return c.chunk.close() }

func (c *chunkSource) ReadFrames(dst [][]float32) (int, error) {
	n, wrapped, ended := c.chunk.read(dst[0], c.looping)
	c.ended = ended
	if wrapped {
		c.wrapped = true
	}
	if ended {
		if n == 0 {
			return 0, io.EOF
		}
		return n, io.EOF
	}
	return n, nil
}

// SetLooping toggles whether future reads wrap at the sound's end instead
// of signaling EOF, mirroring the layer's current play state (StateLoop
// vs StatePlay).
func (s *SoundInstance) SetLooping(looping bool) {
	s.chunkSrc.looping = looping
}

// Ended reports whether the underlying chunk source reached its end on
// the most recent read (and was not looped past).
func (s *SoundInstance) Ended() bool {
	return s.chunkSrc.ended
}

// consumeWrap reports whether a loop wrap happened since the last call and
// clears the latch.
func (s *SoundInstance) consumeWrap() bool {
	w := s.chunkSrc.wrapped
	s.chunkSrc.wrapped = false
	return w
}

// Close releases the instance's decoder/shared-chunk resources.
func (s *SoundInstance) Close() error {
	return s.chunk.close()
}
