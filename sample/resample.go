package sample

import (
	"fmt"

	"github.com/sondrelabs/dspcore"
	"github.com/sondrelabs/dspcore/internal/kernel"
)

// resamplePeriods is the Lanczos window width used for sample-rate
// conversion. original_source/src/main/sampling/Sample.cpp uses a fixed
// 32-period sinc window for offline resampling (RESAMPLING_KPERIODS); that
// constant is preserved here since this is an offline operation, not the
// real-time Oversampler (which exposes a configurable period count).
const resamplePeriods = 32

// Resample returns a new Sample containing s's content converted to
// targetRate. Invariant 4 in spec.md §8: resampling sr -> sr' -> sr
// preserves band-limited content within 1e-2 RMS.
func (s *Sample) Resample(targetRate uint32) (*Sample, error) {
	if s.sampleRate == 0 || targetRate == 0 {
		return nil, fmt.Errorf("%w: zero sample rate", dspcore.ErrBadArguments)
	}
	if targetRate == s.sampleRate {
		return s.Clone(), nil
	}

	ratio := float64(targetRate) / float64(s.sampleRate)
	newLength := int(float64(s.length) * ratio)

	out := &Sample{}
	if err := out.Init(targetRate, s.channels, newLength); err != nil {
		return nil, err
	}

	// Resample by evaluating the Lanczos kernel directly at fractional
	// source positions, rather than through an integer-factor
	// upsample/decimate pair.
	for ch := 0; ch < s.channels; ch++ {
		src := s.Channel(ch)
		dst := out.channelCap(ch)[:newLength]
		resampleChannel(dst, src, 1/ratio, resamplePeriods)
	}
	return out, nil
}

// resampleChannel evaluates the Lanczos kernel directly at fractional
// source positions; srcPerDst is how many source samples correspond to
// one destination sample (1/ratio).
func resampleChannel(dst, src []float32, srcPerDst float64, periods int) {
	n := len(src)
	for i := range dst {
		srcPos := float64(i) * srcPerDst
		center := int(srcPos)
		var acc float64
		for k := -periods; k <= periods; k++ {
			si := center + k
			if si < 0 || si >= n {
				continue
			}
			w := kernel.LanczosKernel(srcPos-float64(si), periods)
			acc += float64(src[si]) * w
		}
		dst[i] = float32(acc)
	}
}
