package buffer

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestAlignmentInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		frames := rapid.IntRange(0, 4096).Draw(t, "frames")
		channels := rapid.IntRange(1, 8).Draw(t, "channels")

		b, err := New(frames, channels)
		require.NoError(t, err)

		for c := 0; c < channels; c++ {
			span := b.GetChannel(c)
			assert.GreaterOrEqual(t, len(span), b.FrameCount())
			addr := uintptr(unsafe.Pointer(&span[0]))
			assert.Zero(t, addr%Alignment, "channel %d misaligned", c)
			assert.Zero(t, len(span)%BlockSize, "channel %d length not block-aligned", c)
		}
	})
}

func TestCloneRoundTrip(t *testing.T) {
	b, err := New(100, 2)
	require.NoError(t, err)
	for c := 0; c < 2; c++ {
		ch := b.GetChannel(c)
		for i := range ch {
			ch[i] = float32(i) * 0.01
		}
	}

	clone, err := b.Clone()
	require.NoError(t, err)

	for c := 0; c < 2; c++ {
		assert.Equal(t, b.GetChannel(c), clone.GetChannel(c))
	}

	// disjoint storage: mutating the clone must not affect the original
	clone.GetChannel(0)[0] = 999
	assert.NotEqual(t, b.GetChannel(0)[0], clone.GetChannel(0)[0])
}

func TestCopyRoundTrip(t *testing.T) {
	a, err := New(64, 2)
	require.NoError(t, err)
	for c := 0; c < 2; c++ {
		ch := a.GetChannel(c)
		for i := range ch {
			ch[i] = float32(i)
		}
	}

	b, err := New(64, 2)
	require.NoError(t, err)

	require.NoError(t, Copy(a, 0, b, 0, a.FrameCount()))
	for c := 0; c < 2; c++ {
		assert.Equal(t, a.GetChannel(c), b.GetChannel(c))
	}
}

func TestArithmetic(t *testing.T) {
	a, _ := New(16, 1)
	b, _ := New(16, 1)
	ac, bc := a.GetChannel(0), b.GetChannel(0)
	for i := range ac {
		ac[i] = 2
		bc[i] = 3
	}

	a.AddInPlace(b)
	for _, v := range a.GetChannel(0) {
		assert.Equal(t, float32(5), v)
	}

	a.SubInPlace(b)
	for _, v := range a.GetChannel(0) {
		assert.Equal(t, float32(2), v)
	}

	a.MulInPlace(b)
	for _, v := range a.GetChannel(0) {
		assert.Equal(t, float32(6), v)
	}

	a.ScaleInPlace(0.5)
	for _, v := range a.GetChannel(0) {
		assert.Equal(t, float32(3), v)
	}
}

func TestClear(t *testing.T) {
	a, _ := New(16, 1)
	ch := a.GetChannel(0)
	for i := range ch {
		ch[i] = 1
	}
	a.Clear()
	for _, v := range a.GetChannel(0) {
		assert.Zero(t, v)
	}
}
