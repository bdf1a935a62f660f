package playback_test

import (
	"testing"

	"github.com/sondrelabs/dspcore/playback"
	"github.com/sondrelabs/dspcore/sample"
	"github.com/stretchr/testify/require"
)

func ramp(spl *sample.Sample, ch int) {
	c := spl.Channel(ch)
	for i := range c {
		c[i] = float32(i + 1)
	}
}

func TestNoLoopPlaysOnceAndStops(t *testing.T) {
	var spl sample.Sample
	require.NoError(t, spl.Init(48000, 1, 10))
	ramp(&spl, 0)

	var pb playback.Playback
	require.NoError(t, pb.Start(&spl, playback.Settings{Volume: 1}))

	dst := make([]float32, 20)
	n := pb.Process(dst, 20)
	require.Equal(t, 10, n)
	for i := 0; i < 10; i++ {
		require.InDelta(t, float32(i+1), dst[i], 1e-5)
	}
	require.Equal(t, playback.StateNone, pb.State())

	// A second call on a finished voice writes nothing.
	require.Zero(t, pb.Process(dst, 5))
}

func TestDirectLoopRepeatsUntilStopped(t *testing.T) {
	var spl sample.Sample
	require.NoError(t, spl.Init(48000, 1, 8))
	ramp(&spl, 0)

	var pb playback.Playback
	require.NoError(t, pb.Start(&spl, playback.Settings{
		Volume:    1,
		LoopMode:  playback.LoopDirect,
		LoopStart: 2,
		LoopEnd:   6,
	}))

	// Head [0,2) then loop [2,6) repeating; request enough samples to
	// observe at least two loop iterations.
	dst := make([]float32, 14)
	n := pb.Process(dst, 14)
	require.Equal(t, 14, n)
	require.Equal(t, playback.StatePlay, pb.State())

	// Head: 1, 2. Then loop body 3,4,5,6 repeating.
	want := []float32{1, 2, 3, 4, 5, 6, 3, 4, 5, 6, 3, 4, 5, 6}
	for i, w := range want {
		require.InDeltaf(t, w, dst[i], 1e-5, "sample %d", i)
	}
}

func TestStopEndsLoopGracefully(t *testing.T) {
	var spl sample.Sample
	require.NoError(t, spl.Init(48000, 1, 8))
	ramp(&spl, 0)

	var pb playback.Playback
	require.NoError(t, pb.Start(&spl, playback.Settings{
		Volume:    1,
		LoopMode:  playback.LoopDirect,
		LoopStart: 2,
		LoopEnd:   6,
	}))

	dst := make([]float32, 6)
	require.Equal(t, 6, pb.Process(dst, 6))
	require.Equal(t, playback.StatePlay, pb.State())

	pb.Stop(0)

	// After Stop, the loop plays its already-committed next batch (the
	// loop body once more) and then falls through to the tail [6,8)
	// instead of looping again.
	rest := make([]float32, 20)
	n := pb.Process(rest, 20)
	require.Equal(t, 6, n) // one more loop iteration (4) + tail (2)
	require.Equal(t, playback.StateNone, pb.State())
}

func TestCancelAppliesFadeOut(t *testing.T) {
	var spl sample.Sample
	require.NoError(t, spl.Init(48000, 1, 20))
	c := spl.Channel(0)
	for i := range c {
		c[i] = 1
	}

	var pb playback.Playback
	require.NoError(t, pb.Start(&spl, playback.Settings{Volume: 1}))

	dst := make([]float32, 2)
	require.Equal(t, 2, pb.Process(dst, 2))

	require.True(t, pb.Cancel(4, 0))

	out := make([]float32, 4)
	n := pb.Process(out, 4)
	require.Equal(t, 4, n)
	// Fade-out ramps amplitude linearly from 1 down toward 0.
	require.Greater(t, out[0], out[1])
	require.Greater(t, out[1], out[2])
	require.Greater(t, out[2], out[3])
}

func TestCrossfadeSumsEnergyAcrossLoopBoundary(t *testing.T) {
	var spl sample.Sample
	require.NoError(t, spl.Init(48000, 1, 12))
	c := spl.Channel(0)
	for i := range c {
		c[i] = 1
	}

	var pb playback.Playback
	require.NoError(t, pb.Start(&spl, playback.Settings{
		Volume:      1,
		LoopMode:    playback.LoopDirect,
		LoopStart:   2,
		LoopEnd:     10,
		XFadeLength: 2,
		XFadeType:   playback.CrossfadeLinear,
	}))

	dst := make([]float32, 16)
	n := pb.Process(dst, 16)
	require.Equal(t, 16, n)
	// With a constant-1 source and a linear cross-fade that sums outgoing
	// and incoming envelopes to 1, every sample should stay close to 1,
	// never spiking or dropping out.
	for i, v := range dst {
		require.InDeltaf(t, 1.0, v, 0.05, "sample %d", i)
	}
}
