package sample_test

import (
	"testing"

	"github.com/sondrelabs/dspcore/sample"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestInitAndChannel(t *testing.T) {
	var s sample.Sample
	require.NoError(t, s.Init(48000, 2, 100))
	require.Equal(t, uint32(48000), s.SampleRate())
	require.Equal(t, 2, s.Channels())
	require.Equal(t, 100, s.Length())
	require.GreaterOrEqual(t, s.Capacity(), 100)
	require.Equal(t, 0, s.Capacity()%sample.AlignQuantum)

	ch := s.Channel(0)
	require.Len(t, ch, 100)
}

func TestResizeGrowPreservesData(t *testing.T) {
	var s sample.Sample
	require.NoError(t, s.Init(48000, 1, 4))
	ch := s.Channel(0)
	for i := range ch {
		ch[i] = float32(i + 1)
	}

	require.NoError(t, s.Resize(10))
	ch = s.Channel(0)
	require.Equal(t, []float32{1, 2, 3, 4, 0, 0, 0, 0, 0, 0}, ch)
}

func TestInsertShiftsTail(t *testing.T) {
	var s sample.Sample
	require.NoError(t, s.Init(48000, 1, 4))
	ch := s.Channel(0)
	copy(ch, []float32{1, 2, 3, 4})

	before := s.Length()
	insert := [][]float32{{9, 9}}
	require.NoError(t, s.Insert(2, insert))

	require.Equal(t, before+2, s.Length())
	require.Equal(t, []float32{1, 2, 9, 9, 3, 4}, s.Channel(0))
}

func TestAppendGrowsLength(t *testing.T) {
	var s sample.Sample
	require.NoError(t, s.Init(48000, 1, 2))
	copy(s.Channel(0), []float32{1, 2})

	require.NoError(t, s.Append([][]float32{{3, 4, 5}}))
	require.Equal(t, 5, s.Length())
	require.Equal(t, []float32{1, 2, 3, 4, 5}, s.Channel(0))
}

func TestSwap(t *testing.T) {
	var a, b sample.Sample
	require.NoError(t, a.Init(48000, 1, 2))
	require.NoError(t, b.Init(44100, 1, 3))
	a.Swap(&b)
	require.Equal(t, uint32(44100), a.SampleRate())
	require.Equal(t, uint32(48000), b.SampleRate())
}

// TestInsertInvariant is a property-based check of spec.md §8 invariant 6:
// length increases by exactly the number of inserted samples, and samples
// at positions >= the insertion point shift by that amount.
func TestInsertInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		length := rapid.IntRange(0, 64).Draw(t, "length")
		insertLen := rapid.IntRange(0, 16).Draw(t, "insertLen")
		pos := 0
		if length > 0 {
			pos = rapid.IntRange(0, length).Draw(t, "pos")
		}

		var s sample.Sample
		require.NoError(t, s.Init(48000, 1, length))
		original := make([]float32, length)
		for i := range original {
			original[i] = float32(i + 1)
		}
		copy(s.Channel(0), original)

		insertData := make([]float32, insertLen)
		for i := range insertData {
			insertData[i] = float32(-(i + 1))
		}

		require.NoError(t, s.Insert(pos, [][]float32{insertData}))
		require.Equal(t, length+insertLen, s.Length())

		got := s.Channel(0)
		require.Equal(t, original[:pos], got[:pos])
		require.Equal(t, insertData, got[pos:pos+insertLen])
		require.Equal(t, original[pos:], got[pos+insertLen:])
	})
}
