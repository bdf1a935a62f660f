package limiter_test

import (
	"testing"

	"github.com/sondrelabs/dspcore/limiter"
	"github.com/stretchr/testify/require"
)

// TestImpulseBelowThresholdAfterGain checks invariant 10 / Scenario D from
// spec.md §8: a unit impulse injected mid-block is attenuated so that
// |sidechain * gain| stays within threshold*knee.
func TestImpulseBelowThresholdAfterGain(t *testing.T) {
	var l limiter.Limiter
	sr := float32(48000)
	require.NoError(t, l.Init(sr, 20))
	l.SetThreshold(0.5, true)
	l.SetLookahead(5)
	l.SetAttack(2)
	l.SetRelease(5)
	l.SetKnee(1.0)
	l.SetMode(limiter.ModeHermThin)

	n := int(0.2 * sr) // 200ms block
	sc := make([]float32, n)
	impulseAt := int(0.1 * sr) // 100ms in
	sc[impulseAt] = 1.0

	gain := make([]float32, n)
	require.NoError(t, l.Process(gain, sc, n))

	lookahead := int(5 * sr / 1000)
	outIdx := impulseAt + lookahead
	require.Less(t, outIdx, n)

	attenuated := sc[impulseAt] * gain[outIdx]
	require.LessOrEqual(t, float64(attenuated), 0.5*1.01)
}

func TestQuietSignalUnaffected(t *testing.T) {
	var l limiter.Limiter
	require.NoError(t, l.Init(48000, 10))
	l.SetThreshold(0.8, true)
	l.SetLookahead(3)
	l.SetAttack(1)
	l.SetRelease(3)
	l.SetKnee(1.0)

	n := 512
	sc := make([]float32, n)
	for i := range sc {
		sc[i] = 0.1
	}
	gain := make([]float32, n)
	require.NoError(t, l.Process(gain, sc, n))
	for _, g := range gain {
		require.InDelta(t, 1.0, g, 1e-6)
	}
}
