package oscillator_test

import (
	"math"
	"testing"

	"github.com/sondrelabs/dspcore/oscillator"
	"github.com/sondrelabs/dspcore/oversample"
	"github.com/stretchr/testify/require"
)

// TestSineMatchesScenarioC reproduces Scenario C from spec.md §8: a 100Hz
// sine at 48kHz completes one full period over 480 samples, with the
// quarter/half/three-quarter points landing at +1, 0, -1.
func TestSineMatchesScenarioC(t *testing.T) {
	var o oscillator.Oscillator
	require.NoError(t, o.Init(48000, 512))
	o.SetWaveform(oscillator.Sine)
	o.SetFrequency(100)
	o.SetAmplitude(1)
	o.SetPhase(0)

	buf := make([]float32, 480)
	require.NoError(t, o.ProcessOverwrite(buf, 480))

	require.InDelta(t, 1.0, buf[120], 0.02)
	require.InDelta(t, 0.0, buf[240], 0.02)
	require.InDelta(t, -1.0, buf[360], 0.02)
}

func TestCosineLeadsSineByQuarterPeriod(t *testing.T) {
	var sine, cosine oscillator.Oscillator
	require.NoError(t, sine.Init(48000, 512))
	require.NoError(t, cosine.Init(48000, 512))
	sine.SetWaveform(oscillator.Sine)
	cosine.SetWaveform(oscillator.Cosine)
	sine.SetFrequency(100)
	cosine.SetFrequency(100)

	bufS := make([]float32, 480)
	bufC := make([]float32, 480)
	require.NoError(t, sine.ProcessOverwrite(bufS, 480))
	require.NoError(t, cosine.ProcessOverwrite(bufC, 480))

	require.InDelta(t, 1.0, bufC[0], 0.02)
	require.InDelta(t, 0.0, bufS[0], 0.02)
}

func TestRectangularDutyRatio(t *testing.T) {
	var o oscillator.Oscillator
	require.NoError(t, o.Init(48000, 512))
	o.SetWaveform(oscillator.Rectangular)
	o.SetFrequency(100)
	o.SetAmplitude(1)
	o.SetDutyRatio(0.25)

	buf := make([]float32, 480)
	require.NoError(t, o.ProcessOverwrite(buf, 480))

	positive := 0
	for _, v := range buf {
		if v > 0 {
			positive++
		}
	}
	require.InDelta(t, 120, positive, 5)
}

func TestGetPeriodsSpansRequestedCycles(t *testing.T) {
	var o oscillator.Oscillator
	require.NoError(t, o.Init(48000, 512))
	o.SetWaveform(oscillator.Sine)
	o.SetFrequency(100)
	o.SetAmplitude(1)

	dst := make([]float32, 100)
	o.GetPeriods(dst, 1, 0, 100)

	// A single period resampled to 100 points should still look like one
	// full sine cycle: starts near 0, peaks near the quarter point.
	require.InDelta(t, 0.0, dst[0], 0.1)
	maxV := float32(-2)
	maxIdx := 0
	for i, v := range dst {
		if v > maxV {
			maxV = v
			maxIdx = i
		}
	}
	require.InDelta(t, 25, maxIdx, 5)
}

func TestBandLimitedSawtoothStaysBounded(t *testing.T) {
	var o oscillator.Oscillator
	require.NoError(t, o.Init(48000, 256))
	o.SetOversamplerMode(oversample.ModeLanczos2X2)
	o.SetWaveform(oscillator.BLSawtooth)
	o.SetFrequency(2000)
	o.SetAmplitude(1)

	buf := make([]float32, 256)
	require.NoError(t, o.ProcessOverwrite(buf, 256))
	for _, v := range buf {
		require.Less(t, math.Abs(float64(v)), 1.5)
	}
}
