package adsr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHermiteCubicMatchesSmoothstep(t *testing.T) {
	// p(0)=0,p'(0)=0,p(1)=1,p'(1)=0 is the classic 3t^2-2t^3 smoothstep.
	coef := hermiteCubic(0, 0, 1, 1, 0)
	require.InDelta(t, -2.0, coef[0], 1e-6)
	require.InDelta(t, 3.0, coef[1], 1e-6)
	require.InDelta(t, 0.0, coef[2], 1e-6)
	require.InDelta(t, 0.0, coef[3], 1e-6)

	eval := func(t float32) float32 { return ((coef[0]*t+coef[1])*t+coef[2])*t + coef[3] }
	require.InDelta(t, 0.5, eval(0.5), 1e-6)
	require.InDelta(t, 0.0, eval(0), 1e-6)
	require.InDelta(t, 1.0, eval(1), 1e-6)
}

func TestHermiteQuadroDegeneratesToCubicOnSmoothstepPin(t *testing.T) {
	// Pinning the interior point to the smoothstep cubic's own value at
	// t=0.5 should leave the quartic term at zero.
	coef := hermiteQuadro(0, 0, 1, 1, 0, 0.5, 0.5)
	require.InDelta(t, 0.0, coef[0], 1e-4) // a4
	require.InDelta(t, -2.0, coef[1], 1e-4)
	require.InDelta(t, 3.0, coef[2], 1e-4)
	require.InDelta(t, 0.0, coef[3], 1e-4)
	require.InDelta(t, 0.0, coef[4], 1e-4)
}

func TestHermiteQuadroFitsOffsetInteriorPin(t *testing.T) {
	coef := hermiteQuadro(0, 0, 1, 1, 0, 0.5, 0.6)
	require.InDelta(t, 1.6, coef[0], 1e-4)
	require.InDelta(t, -5.2, coef[1], 1e-4)
	require.InDelta(t, 4.6, coef[2], 1e-4)
	require.InDelta(t, 0.0, coef[3], 1e-4)
	require.InDelta(t, 0.0, coef[4], 1e-4)

	eval := func(t float32) float32 {
		return (((coef[0]*t+coef[1])*t+coef[2])*t+coef[3])*t + coef[4]
	}
	require.InDelta(t, 0, eval(0), 1e-4)
	require.InDelta(t, 1, eval(1), 1e-4)
	require.InDelta(t, 0.6, eval(0.5), 1e-4)
}

func configLinearEnvelope() *Envelope {
	var e Envelope
	e.SetCurve(PartAttack, 0.2, 0, FuncNone)
	e.SetCurve(PartDecay, 0.5, 0, FuncNone)
	e.SetCurve(PartRelease, 0.5, 0, FuncNone)
	e.SetSustain(0.4)
	return &e
}

func TestLinearSegmentsMatchHandComputedSlopes(t *testing.T) {
	e := configLinearEnvelope()

	// Attack: 0 -> 1 over [0, 0.2], slope 5.
	require.InDelta(t, 0.25, e.ProcessScalar(0.05), 1e-5)
	require.InDelta(t, 0.75, e.ProcessScalar(0.15), 1e-5)

	// Decay: 1 -> 0.4 (sustain) over [0.2, 0.5], slope -2.
	require.InDelta(t, 1.0, e.ProcessScalar(0.20), 1e-5)
	require.InDelta(t, 0.7, e.ProcessScalar(0.35), 1e-5)

	// Release: 0.4 -> 0 over [0.5, 1], slope -0.8.
	require.InDelta(t, 0.4, e.ProcessScalar(0.50), 1e-5)
	require.InDelta(t, 0.04, e.ProcessScalar(0.95), 1e-5)

	// Outside [0,1] the envelope is silent.
	require.Equal(t, float32(0), e.ProcessScalar(0))
	require.Equal(t, float32(0), e.ProcessScalar(1))
	require.Equal(t, float32(0), e.ProcessScalar(1.5))
}

func TestHoldSegmentStaysAtUnity(t *testing.T) {
	var e Envelope
	e.SetCurve(PartAttack, 0.1, 0, FuncNone)
	e.SetHold(0.3, true)
	e.SetCurve(PartDecay, 0.5, 0, FuncNone)
	e.SetCurve(PartRelease, 0.6, 0, FuncNone)
	e.SetSustain(0.2)

	require.InDelta(t, 1.0, e.ProcessScalar(0.2), 1e-5)
	require.InDelta(t, 1.0, e.ProcessScalar(0.29), 1e-5)
}

func TestBreakIntroducesSlopeSegment(t *testing.T) {
	var e Envelope
	e.SetCurve(PartAttack, 0.1, 0, FuncNone)
	e.SetCurve(PartDecay, 0.3, 0, FuncNone)
	e.SetBreak(0.6, true)
	e.SetCurve(PartSlope, 0.5, 0, FuncNone)
	e.SetSustain(0.2)
	e.SetCurve(PartRelease, 0.7, 0, FuncNone)

	// Decay: 1 -> 0.6 (break level) over [0.1, 0.3], slope -2.
	require.InDelta(t, 0.8, e.ProcessScalar(0.2), 1e-5)
	// Slope: 0.6 -> 0.2 (sustain) over [0.3, 0.5], slope -2.
	require.InDelta(t, 0.4, e.ProcessScalar(0.4), 1e-5)
	// Sustain: flat at 0.2 over [0.5, 0.7].
	require.InDelta(t, 0.2, e.ProcessScalar(0.6), 1e-5)
}

func TestLineShapeHalfIsStraightLine(t *testing.T) {
	var e Envelope
	e.SetCurve(PartAttack, 0.2, 0.5, FuncLine)
	e.SetCurve(PartDecay, 0.5, 0, FuncNone)
	e.SetCurve(PartRelease, 0.5, 0, FuncNone)
	e.SetSustain(0.4)

	// shape=0.5 pins the Line bend exactly on the straight line, so it
	// should match the slope-5 linear attack from the FuncNone case above.
	require.InDelta(t, 0.25, e.ProcessScalar(0.05), 1e-5)
	require.InDelta(t, 0.75, e.ProcessScalar(0.15), 1e-5)
}

func TestGenerateMatchesProcessScalarAcrossSegments(t *testing.T) {
	e := configLinearEnvelope()

	n := 21
	dst := make([]float32, n)
	require.NoError(t, e.Generate(dst, 0, 0.05, n))

	for i := 0; i < n; i++ {
		tt := float32(i) * 0.05
		want := e.ProcessScalar(tt)
		require.InDeltaf(t, want, dst[i], 1e-5, "sample %d (t=%v)", i, tt)
	}

	// Spot-check a few absolute values too.
	require.InDelta(t, 0, dst[0], 1e-5)
	require.InDelta(t, 0.25, dst[1], 1e-5)
	require.InDelta(t, 1.0, dst[4], 1e-5)
	require.InDelta(t, 0.4, dst[10], 1e-5)
	require.InDelta(t, 0, dst[20], 1e-5)
}

func TestGenerateMulSrcScalesSource(t *testing.T) {
	e := configLinearEnvelope()

	src := make([]float32, 21)
	for i := range src {
		src[i] = 2
	}
	dst := make([]float32, 21)
	require.NoError(t, e.GenerateMulSrc(dst, src, 0, 0.05, 21))

	for i := 0; i < 21; i++ {
		tt := float32(i) * 0.05
		want := 2 * e.ProcessScalar(tt)
		require.InDeltaf(t, want, dst[i], 1e-5, "sample %d", i)
	}
}

func TestProcessAndProcessMulAgree(t *testing.T) {
	e := configLinearEnvelope()

	ts := []float32{0.05, 0.15, 0.3, 0.6, 0.95}
	out := make([]float32, len(ts))
	require.NoError(t, e.Process(out, ts, len(ts)))

	mulDst := make([]float32, len(ts))
	for i := range mulDst {
		mulDst[i] = 3
	}
	require.NoError(t, e.ProcessMul(mulDst, ts, len(ts)))

	for i := range ts {
		require.InDeltaf(t, out[i]*3, mulDst[i], 1e-5, "sample %d", i)
	}
}
