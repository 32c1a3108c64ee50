package mixer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A preloaded chunk is shared read-only across instances; the release
// hook must fire exactly once, after the last holder lets go.
func TestChunkSharedAcrossInstancesReleasesOnce(t *testing.T) {
	var freed int
	chunk := NewChunk(make([]float32, 256), testSampleRate, func() { freed++ })

	a := NewPreloadedSoundInstance(chunk, testSampleRate, PlayOptions{})
	b := NewPreloadedSoundInstance(chunk, testSampleRate, PlayOptions{})

	require.NoError(t, a.Close())
	assert.Equal(t, 0, freed, "chunk stays alive while another instance holds it")

	require.NoError(t, b.Close())
	assert.Equal(t, 0, freed, "the creator's own reference is still live")

	chunk.release()
	assert.Equal(t, 1, freed)
}

func TestChunkAccessors(t *testing.T) {
	chunk := NewChunk(make([]float32, 128), 44100, nil)
	assert.Equal(t, 128, chunk.FrameCount())
	assert.Equal(t, 44100, chunk.SampleRate())
}

func TestPreloadedReaderWrapsWhenLooping(t *testing.T) {
	data := []float32{1, 2, 3, 4}
	reader := newPreloadedChunkReader(NewChunk(data, testSampleRate, nil))

	dst := make([]float32, 6)
	n, wrapped, ended := reader.read(dst, true)
	assert.Equal(t, 6, n)
	assert.True(t, wrapped)
	assert.False(t, ended)
	assert.Equal(t, []float32{1, 2, 3, 4, 1, 2}, dst)
}

func TestPreloadedReaderEndsWhenNotLooping(t *testing.T) {
	data := []float32{1, 2, 3, 4}
	reader := newPreloadedChunkReader(NewChunk(data, testSampleRate, nil))

	dst := make([]float32, 6)
	n, wrapped, ended := reader.read(dst, false)
	assert.Equal(t, 4, n)
	assert.False(t, wrapped)
	assert.True(t, ended)
}

func TestPreloadedReaderSeekWrapsModuloLength(t *testing.T) {
	data := []float32{1, 2, 3, 4}
	reader := newPreloadedChunkReader(NewChunk(data, testSampleRate, nil))

	reader.seek(6) // 6 % 4 == 2
	dst := make([]float32, 2)
	n, _, _ := reader.read(dst, false)
	assert.Equal(t, 2, n)
	assert.Equal(t, []float32{3, 4}, dst)

	reader.seek(-3)
	assert.Equal(t, 0, reader.cursor)
}
