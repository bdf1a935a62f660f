package sidechain_test

import (
	"math"
	"testing"

	"github.com/sondrelabs/dspcore/sidechain"
	"github.com/stretchr/testify/require"
)

func TestPeakModeReturnsAbsoluteValue(t *testing.T) {
	var sc sidechain.Sidechain
	require.NoError(t, sc.Init(1, 50))
	sc.SetSampleRate(48000)
	sc.SetMode(sidechain.Peak)
	sc.SetSource(sidechain.Left)

	in := [][]float32{{-0.5, 0.75, -1.0}}
	out := make([]float32, 3)
	require.NoError(t, sc.Process(out, in, 3))
	require.InDelta(t, 0.5, out[0], 1e-5)
	require.InDelta(t, 0.75, out[1], 1e-5)
	require.InDelta(t, 1.0, out[2], 1e-5)
}

func TestRMSModeConvergesOnConstantInput(t *testing.T) {
	var sc sidechain.Sidechain
	require.NoError(t, sc.Init(1, 50))
	sc.SetSampleRate(48000)
	sc.SetReactivity(10) // 480 samples at 48kHz
	sc.SetMode(sidechain.RMS)

	n := 2000
	buf := make([]float32, n)
	for i := range buf {
		buf[i] = 0.6
	}
	in := [][]float32{buf}
	out := make([]float32, n)
	require.NoError(t, sc.Process(out, in, n))

	// Once the reactivity window is full of a constant 0.6, RMS should
	// settle on 0.6.
	require.InDelta(t, 0.6, out[n-1], 0.02)
}

func TestUniformModeIsMovingAverage(t *testing.T) {
	var sc sidechain.Sidechain
	require.NoError(t, sc.Init(1, 50))
	sc.SetSampleRate(48000)
	sc.SetReactivity(10)
	sc.SetMode(sidechain.Uniform)

	n := 2000
	buf := make([]float32, n)
	for i := range buf {
		buf[i] = 0.3
	}
	in := [][]float32{buf}
	out := make([]float32, n)
	require.NoError(t, sc.Process(out, in, n))
	require.InDelta(t, 0.3, out[n-1], 0.02)
}

func TestStereoMiddleIsHalfSum(t *testing.T) {
	var sc sidechain.Sidechain
	require.NoError(t, sc.Init(2, 50))
	sc.SetSampleRate(48000)
	sc.SetMode(sidechain.Peak)
	sc.SetSource(sidechain.Middle)

	in := [][]float32{{1.0}, {-0.5}}
	out := make([]float32, 1)
	require.NoError(t, sc.Process(out, in, 1))
	require.InDelta(t, 0.25, out[0], 1e-5)
}

func TestAMinPicksSmallerMagnitude(t *testing.T) {
	var sc sidechain.Sidechain
	require.NoError(t, sc.Init(2, 50))
	sc.SetSampleRate(48000)
	sc.SetMode(sidechain.Peak)
	sc.SetSource(sidechain.AMin)

	in := [][]float32{{0.2}, {-0.9}}
	out := make([]float32, 1)
	require.NoError(t, sc.Process(out, in, 1))
	require.InDelta(t, 0.2, out[0], 1e-5)
}

func TestProcessScalarMatchesArrayPath(t *testing.T) {
	var scArr, scOne sidechain.Sidechain
	require.NoError(t, scArr.Init(1, 50))
	require.NoError(t, scOne.Init(1, 50))
	scArr.SetSampleRate(48000)
	scOne.SetSampleRate(48000)
	scArr.SetMode(sidechain.LPF)
	scOne.SetMode(sidechain.LPF)
	scArr.SetReactivity(5)
	scOne.SetReactivity(5)

	samples := []float32{0.1, 0.4, -0.3, 0.9, -0.2}
	arrOut := make([]float32, len(samples))
	require.NoError(t, scArr.Process(arrOut, [][]float32{samples}, len(samples)))

	for i, v := range samples {
		got, err := scOne.ProcessScalar([]float32{v})
		require.NoError(t, err)
		require.InDeltaf(t, arrOut[i], got, 1e-4, "sample %d", i)
	}
}

func TestReactivityClampedToMax(t *testing.T) {
	var sc sidechain.Sidechain
	require.NoError(t, sc.Init(1, 10))
	sc.SetSampleRate(48000)
	sc.SetReactivity(9999) // far beyond max_reactivity=10ms, clamped to 10ms
	sc.SetMode(sidechain.RMS)

	// Reactivity is clamped to the 10ms maximum (480 samples at 48kHz),
	// so the RMS over these 4 unit samples is small; the behavioral check
	// here is that Process does not error or produce NaN/Inf from the
	// full-size history buffer.
	out := make([]float32, 4)
	require.NoError(t, sc.Process(out, [][]float32{{1, 1, 1, 1}}, 4))
	for _, v := range out {
		require.False(t, math.IsNaN(float64(v)))
		require.False(t, math.IsInf(float64(v), 0))
	}
}
