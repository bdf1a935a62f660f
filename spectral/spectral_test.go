package spectral

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitRejectsBadArguments(t *testing.T) {
	var p Processor
	require.Error(t, p.Init(0, 4))
	require.Error(t, p.Init(1, 0))
}

func TestLatencyAndRemainingTrackFrameSize(t *testing.T) {
	var p Processor
	require.NoError(t, p.Init(1, 3)) // rank 3 -> frame size 8

	outs := make([][]float32, 1)
	ins := make([][]float32, 1)
	ins[0] = make([]float32, 3)
	require.NoError(t, p.Process(outs, ins, 3))

	require.Equal(t, 8, p.Latency())
	require.Equal(t, 5, p.Remaining())
}

func TestFirstBlockIsSilentThenPassthroughBypassCallback(t *testing.T) {
	var p Processor
	require.NoError(t, p.Init(1, 3)) // frame size 8

	src := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	dst := make([]float32, len(src))
	ins := [][]float32{src}
	outs := [][]float32{dst}

	require.NoError(t, p.Process(outs, ins, len(src)))

	// First 8 samples: no pending block yet, output silent.
	for i := 0; i < 8; i++ {
		require.Equalf(t, float32(0), dst[i], "sample %d", i)
	}
	// With no bound callback the spectrum is round-tripped unchanged
	// (forward FFT then inverse FFT is the identity, up to float error),
	// so samples 8..15 reproduce src[0:8] windowed then un-windowed by an
	// identical analysis/synthesis pass -- since no window is applied on
	// the synthesis side, the window shapes the result instead of
	// reproducing the input exactly for a generic window. The processor's
	// contract is spectral passthrough, not pass-through in the time
	// domain, so we only assert the output is finite and was actually
	// written (no longer the post-reset zero).
	wroteSomething := false
	for i := 8; i < 16; i++ {
		if dst[i] != 0 {
			wroteSomething = true
		}
	}
	require.True(t, wroteSomething)
}

func TestCallbackReceivesExpectedRankAndChannelCount(t *testing.T) {
	var p Processor
	require.NoError(t, p.Init(2, 2)) // frame size 4

	var gotRank int
	var gotChannels int
	p.BindHandler(func(spectrum [][]complex128, rank int) {
		gotRank = rank
		gotChannels = len(spectrum)
		for ch := range spectrum {
			require.Len(t, spectrum[ch], 4)
		}
	})

	ins := [][]float32{{1, 2, 3, 4}, {5, 6, 7, 8}}
	outs := [][]float32{make([]float32, 4), make([]float32, 4)}
	require.NoError(t, p.Process(outs, ins, 4))

	require.Equal(t, 2, gotRank)
	require.Equal(t, 2, gotChannels)
}

func TestZeroingSpectrumInCallbackSilencesOutput(t *testing.T) {
	var p Processor
	require.NoError(t, p.Init(1, 2)) // frame size 4
	p.BindHandler(func(spectrum [][]complex128, rank int) {
		for i := range spectrum[0] {
			spectrum[0][i] = 0
		}
	})

	ins := [][]float32{{1, 2, 3, 4, 5, 6, 7, 8}}
	dst := make([]float32, 8)
	outs := [][]float32{dst}
	require.NoError(t, p.Process(outs, ins, 8))

	for i := 4; i < 8; i++ {
		require.Equalf(t, float32(0), dst[i], "sample %d", i)
	}
}

func TestNilOutputChannelIsNeverWritten(t *testing.T) {
	var p Processor
	require.NoError(t, p.Init(2, 2)) // frame size 4

	ins := [][]float32{{1, 2, 3, 4}, {5, 6, 7, 8}}
	dst0 := make([]float32, 4)
	outs := [][]float32{dst0, nil}
	require.NoError(t, p.Process(outs, ins, 4))
	// No panic indexing a nil output slice, and the bound channel's
	// buffer is still silent (first block).
	for _, v := range dst0 {
		require.Equal(t, float32(0), v)
	}
}

func TestSetRankDefersReallocationUntilNextProcess(t *testing.T) {
	var p Processor
	require.NoError(t, p.Init(1, 4)) // rank 4 -> frame size 16

	ins := [][]float32{make([]float32, 1)}
	outs := [][]float32{nil}
	require.NoError(t, p.Process(outs, ins, 1))
	require.Equal(t, 16, p.Latency())

	p.SetRank(2)
	require.True(t, p.NeedsUpdate())
	require.Equal(t, 16, p.Latency()) // unchanged until Process rebuilds

	require.NoError(t, p.Process(outs, ins, 1))
	require.False(t, p.NeedsUpdate())
	require.Equal(t, 4, p.Latency())
}

func TestSetPhaseClampsToUnitRange(t *testing.T) {
	var p Processor
	require.NoError(t, p.Init(1, 2))
	p.SetPhase(-1)
	require.Equal(t, float32(0), p.Phase())
	p.SetPhase(5)
	require.Equal(t, float32(1), p.Phase())
}

func TestResetClearsPendingWithoutChangingRank(t *testing.T) {
	var p Processor
	require.NoError(t, p.Init(1, 2)) // frame size 4

	ins := [][]float32{{1, 2, 3, 4}}
	dst := make([]float32, 4)
	outs := [][]float32{dst}
	require.NoError(t, p.Process(outs, ins, 4))

	p.Reset()
	require.Equal(t, 4, p.Remaining())
	require.Equal(t, 2, p.Rank())

	dst2 := make([]float32, 4)
	outs2 := [][]float32{dst2}
	require.NoError(t, p.Process(outs2, [][]float32{nil}, 4))
	for _, v := range dst2 {
		require.Equal(t, float32(0), v)
	}
}
