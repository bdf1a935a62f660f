package dynfilter_test

import (
	"testing"

	"github.com/sondrelabs/dspcore/dynfilter"
	"github.com/sondrelabs/dspcore/filter"
	"github.com/stretchr/testify/require"
)

func TestProcessTracksGain(t *testing.T) {
	var d dynfilter.DynamicFilters
	require.NoError(t, d.Init(48000, 1))
	require.NoError(t, d.SetParams(0, filter.Params{
		Family: filter.FamilyRLC, Shape: filter.ShapeBell, F1: 1000, Slope: 1, Quality: 1,
	}))

	n := 64
	src := make([]float32, n)
	src[0] = 1
	gain := make([]float32, n)
	for i := range gain {
		gain[i] = 2.0
	}
	dst := make([]float32, n)
	require.NoError(t, d.Process(0, dst, src, gain, n))

	var sawNonZero bool
	for _, v := range dst {
		if v != 0 {
			sawNonZero = true
		}
	}
	require.True(t, sawNonZero)
}

func TestInvalidIDReturnsError(t *testing.T) {
	var d dynfilter.DynamicFilters
	require.NoError(t, d.Init(48000, 1))
	err := d.SetParams(5, filter.Params{})
	require.Error(t, err)
}
