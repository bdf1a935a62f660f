package latency

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func isPow2(n int) bool { return n > 0 && n&(n-1) == 0 }

func TestUpdateSettingsDerivesNormalizedPowerOfTwoChirp(t *testing.T) {
	var d Detector
	d.Init(1000)
	d.updateSettings()

	require.True(t, isPow2(d.length))
	require.GreaterOrEqual(t, float32(d.length), float32(d.durationSamples)+d.alpha)
	require.Len(t, d.chirp, d.length)
	require.Len(t, d.kernelSpectrum, 2*d.length)

	var maxAbs float32
	for _, v := range d.chirp {
		if a := float32(math.Abs(float64(v))); a > maxAbs {
			maxAbs = a
		}
	}
	require.InDelta(t, 1.0, maxAbs, 1e-5)

	// Default duration 0.15s @ 1000Hz -> 150 samples, next pow2 is 256.
	require.Equal(t, 150, d.durationSamples)
	require.Equal(t, 256, d.length)
	require.Equal(t, 10, d.nFade)
	require.Equal(t, 500, d.nPause)
	require.Equal(t, 650, d.nDetect)
}

func TestDetectPeakEarlyDetectionTransitionsBothProcessors(t *testing.T) {
	var d Detector
	d.Init(1000)
	d.length = 4
	d.convScale = 1
	d.detectPos = 8
	d.absThreshold = 0.1
	d.peakThreshold = 0.2
	d.timeOrigin = 5
	d.igTime = 50
	d.ip = ipDetect
	d.op = opEmit

	d.detectPeak([]float32{0, 0, 0.5, 0})

	require.InDelta(t, 0.5, d.peakValue, 1e-6)
	require.Equal(t, 6, d.peakPosition)
	require.Equal(t, 1, d.latency)
	require.True(t, d.latencyDetected)
	require.True(t, d.cycleComplete)
	require.Equal(t, ipBypass, d.ip)
	require.Equal(t, opFadein, d.op)
	require.Equal(t, 50, d.igStop)
}

func TestDetectPeakIgnoresValueBelowAbsThreshold(t *testing.T) {
	var d Detector
	d.Init(1000)
	d.length = 4
	d.convScale = 1
	d.absThreshold = 0.5
	d.peakThreshold = 0.1

	d.detectPeak([]float32{0, 0.1, 0, 0})

	require.Equal(t, float32(0), d.peakValue)
	require.False(t, d.cycleComplete)
	require.False(t, d.latencyDetected)
}

func TestDetectPeakUpdatesPeakWithoutEarlyDetectionBelowPeakThreshold(t *testing.T) {
	var d Detector
	d.Init(1000)
	d.length = 4
	d.convScale = 1
	d.detectPos = 4
	d.absThreshold = 0.05
	d.peakThreshold = 0.9
	d.timeOrigin = 0
	d.ip = ipDetect
	d.op = opEmit

	d.detectPeak([]float32{0, 0, 0.3, 0})

	require.InDelta(t, 0.3, d.peakValue, 1e-6)
	require.False(t, d.cycleComplete)
	require.Equal(t, ipDetect, d.ip)
	require.Equal(t, opEmit, d.op)
}

func TestSetAbsThresholdRejectsOutOfRangeValue(t *testing.T) {
	var d Detector
	d.Init(1000)
	d.SetAbsThreshold(0.25)
	require.InDelta(t, 0.25, d.absThreshold, 1e-6)

	d.SetAbsThreshold(1.5) // out of (0,1], falls back to default
	require.InDelta(t, defaultAbsThreshold, d.absThreshold, 1e-9)
}

func TestSetPeakThresholdRejectsOutOfRangeValue(t *testing.T) {
	var d Detector
	d.Init(1000)
	d.SetPeakThreshold(0.4)
	require.InDelta(t, 0.4, d.peakThreshold, 1e-6)

	d.SetPeakThreshold(-1)
	require.InDelta(t, defaultPeakThreshold, d.peakThreshold, 1e-9)
}

func TestSetDelayRatioClampsToFourAndMarksModified(t *testing.T) {
	var d Detector
	d.Init(1000)
	d.updateSettings()
	d.SetDelayRatio(10)
	require.InDelta(t, 4.0, d.delayRatio, 1e-6)
	require.True(t, d.modified)
	require.True(t, d.sync)
}

func TestStartCaptureThenResetCaptureClearsState(t *testing.T) {
	var d Detector
	d.Init(1000)
	d.StartCapture()
	require.Equal(t, ipWait, d.ip)
	require.Equal(t, opFadeout, d.op)

	d.ResetCapture()
	require.Equal(t, ipBypass, d.ip)
	require.Equal(t, opBypass, d.op)
	require.False(t, d.CycleComplete())
	require.False(t, d.LatencyDetected())
}

func TestLatencySecondsIsZeroUntilDetected(t *testing.T) {
	var d Detector
	d.Init(1000)
	require.Equal(t, float32(0), d.LatencySeconds())

	d.latencyDetected = true
	d.latency = 20
	require.InDelta(t, 0.02, d.LatencySeconds(), 1e-6)
}

// TestFullCycleTimesOutWithoutPeakWhenInputIsSilent drives the entire
// fadeout -> pause -> emit -> (timeout) -> fadein -> bypass sequence with
// silent input, so the correlation step always sees an all-zero capture
// block (whose FFT is exactly zero by linearity, regardless of the kernel)
// and never crosses the detection threshold. Every sample count below is
// derived directly from the default 1000Hz settings (duration 0.15s ->
// 150 samples -> chirp length 256; fade 0.01s -> 10 samples; pause 0.5s ->
// 500 samples; detect window 0.5s -> nDetect = 150+500 = 650).
func TestFullCycleTimesOutWithoutPeakWhenInputIsSilent(t *testing.T) {
	var d Detector
	d.Init(1000)
	d.StartCapture()

	ones := make([]float32, 600)
	for i := range ones {
		ones[i] = 1
	}
	zeros := make([]float32, 600)
	dst := make([]float32, 600)

	// Step 1: 10 samples of fadeout (exactly nFade), gain ramps 1 -> 1/11.
	require.NoError(t, d.Process(dst[:10], ones[:10], 10))
	for k := 1; k <= 10; k++ {
		want := float32(1) - float32(k)/11
		require.InDeltaf(t, want, dst[k-1], 1e-5, "fadeout sample %d", k-1)
	}
	require.Equal(t, opFadeout, d.op)

	// Step 2: one more sample triggers the fadeout->pause transition; the
	// sample itself is produced by the pause branch (silence).
	require.NoError(t, d.Process(dst[:1], ones[:1], 1))
	require.Equal(t, opPause, d.op)
	require.Equal(t, float32(0), dst[0])
	require.Equal(t, 499, d.pauseCounter)

	// Step 3: exhaust the remaining 499 pause samples -> transition to
	// emit/detect. Both processors have advanced in lockstep the whole
	// time (ipWait mirrors every sample op consumes), so igStart==ogStart
	// and the peak-detector's time origin collapses to length-1.
	require.NoError(t, d.Process(dst[:499], zeros[:499], 499))
	require.Equal(t, opEmit, d.op)
	require.Equal(t, ipDetect, d.ip)
	require.Equal(t, 510, d.ogStart)
	require.Equal(t, 510, d.igStart)
	require.Equal(t, d.length-1, d.timeOrigin)
	require.False(t, d.latencyDetected)
	require.Equal(t, 0, d.latency)

	// Step 4: one full chirp length of silence. Emit copies the chirp
	// verbatim into dst; capture fills with zero and the first
	// correlation pass runs (trivially zero, no peak).
	require.NoError(t, d.Process(dst[:d.length], zeros[:d.length], d.length))
	require.Equal(t, d.chirp, dst[:d.length])
	require.Equal(t, 256, d.detectPos)

	// Step 5a: a second full chirp length of silence, crossing another
	// correlation boundary at detectPos==512, still short of nDetect.
	require.NoError(t, d.Process(dst[:d.length], zeros[:d.length], d.length))
	require.Equal(t, 512, d.detectPos)
	require.Equal(t, ipDetect, d.ip)

	// Step 5b: the remaining 138 samples reach nDetect==650, forcing the
	// timeout transition partway through processIn; processOut then runs
	// the whole block under the already-updated opFadein state.
	require.NoError(t, d.Process(dst[:138], zeros[:138], 138))
	require.Equal(t, d.nDetect, d.detectPos)
	require.True(t, d.cycleComplete)
	require.False(t, d.latencyDetected)
	require.Equal(t, ipBypass, d.ip)
	require.Equal(t, opBypass, d.op)
	require.Equal(t, float32(1), d.gain)
	require.Equal(t, float32(0), d.LatencySeconds())
}

func TestDurationSecondsReflectsRoundedSampleCount(t *testing.T) {
	var d Detector
	d.Init(1000)
	d.updateSettings()
	require.InDelta(t, 0.15, d.DurationSeconds(), 1e-6)
}
