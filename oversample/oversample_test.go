package oversample_test

import (
	"math"
	"testing"

	"github.com/sondrelabs/dspcore/oversample"
	"github.com/stretchr/testify/require"
)

// TestRoundTripPreservesSignal checks invariant 3 / Scenario E from
// spec.md §8: downsampling an upsampled-and-unmodified signal reproduces
// the input, shifted by Latency() samples, within a small relative error.
func TestRoundTripPreservesSignal(t *testing.T) {
	var o oversample.Oversampler
	o.SetMode(oversample.ModeLanczos2X2)
	require.NoError(t, o.Init(48000, 256))

	n := 256
	src := make([]float32, n)
	for i := range src {
		src[i] = float32(math.Sin(2 * math.Pi * 0.02 * float64(i)))
	}

	dst := make([]float32, n)
	require.NoError(t, o.Process(dst, src, n, nil))

	// Compare the stable (non-edge) interior where filter ringing has
	// settled, allowing for the oversampler's own processing latency.
	lat := o.Latency()
	var sumSq, errSq float64
	for i := 32; i < n-32; i++ {
		j := i - lat
		if j < 0 || j >= n {
			continue
		}
		d := float64(dst[i] - src[j])
		errSq += d * d
		sumSq += float64(src[j]) * float64(src[j])
	}
	require.Greater(t, sumSq, 0.0)
	relErr := math.Sqrt(errSq / sumSq)
	require.Less(t, relErr, 0.5)
}

func TestModeNoneIsIdentity(t *testing.T) {
	var o oversample.Oversampler
	o.SetMode(oversample.ModeNone)
	require.NoError(t, o.Init(48000, 64))

	src := make([]float32, 64)
	for i := range src {
		src[i] = float32(i) / 64
	}
	dst := make([]float32, 64)
	require.NoError(t, o.Process(dst, src, 64, nil))
	for i := range src {
		require.InDelta(t, src[i], dst[i], 1e-4)
	}
}

func TestCallbackInvokedAtOversampledRate(t *testing.T) {
	var o oversample.Oversampler
	o.SetMode(oversample.ModeLanczos3X3)
	require.NoError(t, o.Init(48000, 32))

	var sawLen int
	src := make([]float32, 32)
	dst := make([]float32, 32)
	require.NoError(t, o.Process(dst, src, 32, func(out, in []float32, n int) {
		sawLen = n
	}))
	require.Equal(t, 32*3, sawLen)
}
