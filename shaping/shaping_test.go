package shaping_test

import (
	"math"
	"testing"

	"github.com/sondrelabs/dspcore/shaping"
	"github.com/stretchr/testify/require"
)

func TestSinusoidalClipsBeyondRadius(t *testing.T) {
	var s shaping.Shaper
	s.Init()
	s.SetFunction(shaping.Sinusoidal)
	s.SetSinusoidalSlope(1)

	require.InDelta(t, math.Sin(0.5), s.Process(0.5), 1e-5)
	require.InDelta(t, 1.0, s.Process(2.0), 1e-5)
	require.InDelta(t, -1.0, s.Process(-2.0), 1e-5)
}

func TestPolynomialKneeBlendsIntoTanh(t *testing.T) {
	var s shaping.Shaper
	s.Init()
	s.SetFunction(shaping.Polynomial)
	s.SetPolynomialShape(0.5) // radius = 1-0.5 = 0.5

	require.InDelta(t, 0.3, s.Process(0.3), 1e-5) // below knee: identity
	require.InDelta(t, 0.76852, s.Process(0.8), 1e-4)
}

func TestHyperbolicPinsUnityAtOne(t *testing.T) {
	var s shaping.Shaper
	s.Init()
	s.SetFunction(shaping.Hyperbolic)
	s.SetHyperbolicShape(1)

	require.InDelta(t, 1.0, s.Process(1.0), 1e-4)
	require.InDelta(t, 0.6067, s.Process(0.5), 0.01)
}

func TestExponentialMatchesClosedFormAtShapeTwo(t *testing.T) {
	var s shaping.Shaper
	s.Init()
	s.SetFunction(shaping.Exponential)
	s.SetExponentialShape(2)

	require.InDelta(t, 0.5, s.Process(0.5), 1e-5)
	require.InDelta(t, 0.75, s.Process(1.0), 1e-5)
}

func TestPowerAppliesRootCurve(t *testing.T) {
	var s shaping.Shaper
	s.Init()
	s.SetFunction(shaping.Power)
	s.SetPowerShape(2)

	require.InDelta(t, 0.5, s.Process(0.25), 1e-5)
	require.InDelta(t, -0.5, s.Process(-0.25), 1e-5)
}

func TestBilinearSaturatesRationally(t *testing.T) {
	var s shaping.Shaper
	s.Init()
	s.SetFunction(shaping.Bilinear)
	s.SetBilinearShape(1)

	require.InDelta(t, 0.5, s.Process(1.0), 1e-5)
	require.InDelta(t, 1.0/3.0, s.Process(0.5), 1e-5)
}

func TestAsymmetricClipUsesIndependentThresholds(t *testing.T) {
	var s shaping.Shaper
	s.Init()
	s.SetFunction(shaping.AsymmetricClip)
	s.SetAsymmetricClipHighClip(0.8)
	s.SetAsymmetricClipLowClip(0.6)

	require.InDelta(t, 0.8, s.Process(0.9), 1e-5)
	require.InDelta(t, -0.6, s.Process(-0.9), 1e-5)
	require.InDelta(t, 0.3, s.Process(0.3), 1e-5)
}

func TestAsymmetricSoftclipIsIdentityBelowLimit(t *testing.T) {
	var s shaping.Shaper
	s.Init()
	s.SetFunction(shaping.AsymmetricSoftclip)
	s.SetAsymmetricSoftclipHighLimit(0.7)
	s.SetAsymmetricSoftclipLowLimit(0.7)

	require.InDelta(t, 0.5, s.Process(0.5), 1e-5)
	require.InDelta(t, 0.875, s.Process(0.9), 0.01)
}

func TestQuarterCircleReachesUnityAtRadius(t *testing.T) {
	var s shaping.Shaper
	s.Init()
	s.SetFunction(shaping.QuarterCircle)
	s.SetQuarterCircleRadius(1)

	require.InDelta(t, 0.91652, s.Process(0.6), 1e-4)
	require.InDelta(t, 1.0, s.Process(1.0), 1e-5)
	require.InDelta(t, 1.0, s.Process(5.0), 1e-5)
}

func TestRectifierBlendsTowardAbsoluteValue(t *testing.T) {
	var s shaping.Shaper
	s.Init()
	s.SetFunction(shaping.Rectifier)
	s.SetRectifierShape(1)

	require.InDelta(t, 0.4, s.Process(0.4), 1e-5)
	require.InDelta(t, 0.4, s.Process(-0.4), 1e-5)

	s.SetRectifierShape(0)
	require.InDelta(t, 0.4, s.Process(0.4), 1e-5)
	require.InDelta(t, -0.4, s.Process(-0.4), 1e-5)
}

func TestBitcrushQuantizesToLevels(t *testing.T) {
	var s shaping.Shaper
	s.Init()
	s.SetBitcrushFloorLevels(16)
	s.SetBitcrushCeilLevels(16)
	s.SetBitcrushRoundLevels(16)

	s.SetFunction(shaping.BitcrushFloor)
	require.InDelta(t, 4.0/16.0, s.Process(0.3), 1e-5)

	s.SetFunction(shaping.BitcrushCeil)
	require.InDelta(t, 5.0/16.0, s.Process(0.3), 1e-5)

	s.SetFunction(shaping.BitcrushRound)
	require.InDelta(t, 5.0/16.0, s.Process(0.3), 1e-5)
}

func TestTapTubewarmthIsAsymmetricAroundZero(t *testing.T) {
	var s shaping.Shaper
	s.Init()
	s.SetFunction(shaping.TapTubewarmth)
	s.SetTapTubewarmthDrive(0)
	s.SetTapTubewarmthBlend(0.5)

	// With no sample rate configured the smoothing filter updates
	// instantly, so each call is a pure function of its input.
	pos := s.Process(0.25)
	neg := s.Process(-0.25)
	require.InDelta(t, 0.28125, pos, 1e-4)
	require.InDelta(t, 0.03125, neg, 1e-4)
	require.Greater(t, pos, float32(math.Abs(float64(neg))))

	require.InDelta(t, 0, s.Process(0), 1e-5)
}

func TestProcessOverwriteMatchesPerSampleProcess(t *testing.T) {
	var s shaping.Shaper
	s.Init()
	s.SetFunction(shaping.Hyperbolic)
	s.SetHyperbolicShape(1)

	src := []float32{0.1, 0.4, -0.3, 0.9, -0.2}
	dst := make([]float32, len(src))
	require.NoError(t, s.ProcessOverwrite(dst, src, len(src)))

	for i, v := range src {
		require.InDeltaf(t, s.Process(v), dst[i], 1e-5, "sample %d", i)
	}
}

func TestProcessAddAccumulatesIntoDst(t *testing.T) {
	var s shaping.Shaper
	s.Init()
	s.SetFunction(shaping.Power)
	s.SetPowerShape(1)

	dst := []float32{1, 1, 1}
	src := []float32{0.1, 0.2, 0.3}
	require.NoError(t, s.ProcessAdd(dst, src, 3))
	for i, v := range src {
		require.InDeltaf(t, 1+v, dst[i], 1e-5, "sample %d", i)
	}
}

func TestProcessMulWithNilSrcMultipliesByZero(t *testing.T) {
	var s shaping.Shaper
	s.Init()
	s.SetFunction(shaping.Power)
	s.SetPowerShape(1)

	dst := []float32{1, 2, 3}
	require.NoError(t, s.ProcessMul(dst, nil, 3))
	for _, v := range dst {
		require.InDelta(t, 0, v, 1e-5)
	}
}
