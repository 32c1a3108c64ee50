package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// Every registered fader must satisfy the identity law at its endpoints.
func TestFaderIdentityLaw(t *testing.T) {
	for _, name := range FaderNames() {
		f, ok := FaderByName(name)
		require.True(t, ok, name)
		assert.Equal(t, 0.0, f.GetFromPercentage(0), name)
		assert.Equal(t, 1.0, f.GetFromPercentage(1), name)
	}
}

func TestFaderMonotoneAndBounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Float64Range(0, 1).Draw(t, "a")
		b := rapid.Float64Range(0, 1).Draw(t, "b")
		if a > b {
			a, b = b, a
		}
		for _, name := range FaderNames() {
			f, _ := FaderByName(name)
			va, vb := f.GetFromPercentage(a), f.GetFromPercentage(b)
			if va > vb+1e-9 {
				t.Fatalf("%s not monotone: f(%v)=%v > f(%v)=%v", name, a, va, b, vb)
			}
			if va < -1e-9 || vb > 1+1e-9 {
				t.Fatalf("%s out of bounds: %v %v", name, va, vb)
			}
		}
	})
}

// Reference values for the easing curves, checked against the known
// cubic-bezier evaluations of their control points.
func TestBezierFaderReferenceValues(t *testing.T) {
	cases := []struct {
		name     string
		fader    Fader
		p        []float64
		expected []float64
	}{
		{
			name:     "Ease",
			fader:    EaseFader,
			p:        []float64{0.25, 0.5, 0.75},
			expected: []float64{0.40851059199373591, 0.80240338786711973, 0.96045897841111938},
		},
		{
			name:     "EaseIn",
			fader:    EaseInFader,
			p:        []float64{0.25, 0.5, 0.75},
			expected: []float64{0.09346465401576336, 0.31535681876384836, 0.62186187464895193},
		},
		{
			name:     "Exponential",
			fader:    ExponentialFader,
			p:        []float64{0.25, 0.5, 0.75},
			expected: []float64{0.37813813779209771, 0.68464319530730855, 0.90653535347727843},
		},
	}
	for _, tc := range cases {
		for i, p := range tc.p {
			assert.InDelta(t, tc.expected[i], tc.fader.GetFromPercentage(p), 1e-6,
				"%s(%v)", tc.name, p)
		}
	}
}

// EaseOut is EaseIn mirrored around the curve midpoint, and the symmetric
// S-curves fix the midpoint itself.
func TestBezierFaderSymmetry(t *testing.T) {
	for _, p := range []float64{0.1, 0.25, 0.4, 0.6, 0.9} {
		assert.InDelta(t, 1-EaseInFader.GetFromPercentage(1-p), EaseOutFader.GetFromPercentage(p), 1e-6)
	}
	assert.InDelta(t, 0.5, EaseInOutFader.GetFromPercentage(0.5), 1e-6)
	assert.InDelta(t, 0.5, SCurveSmoothFader.GetFromPercentage(0.5), 1e-6)
	assert.InDelta(t, 0.5, SCurveSharpFader.GetFromPercentage(0.5), 1e-6)
}

func TestFaderRegistryLookup(t *testing.T) {
	_, ok := FaderByName("SCurveSharp")
	assert.True(t, ok)
	_, ok = FaderByName("NoSuchCurve")
	assert.False(t, ok)

	RegisterFader("InverseSquare", InverseSquareFader{})
	f, ok := FaderByName("InverseSquare")
	require.True(t, ok)
	assert.Equal(t, 0.25, f.GetFromPercentage(0.5))
}

func TestDistanceFaderInvertsCurveSense(t *testing.T) {
	// Zero distance yields full gain, max distance yields silence.
	assert.Equal(t, 1.0, DistanceFader(LinearFader{}, 0, 100))
	assert.Equal(t, 0.0, DistanceFader(LinearFader{}, 100, 100))
	assert.Equal(t, 0.0, DistanceFader(LinearFader{}, 250, 100), "beyond max clamps")
}
