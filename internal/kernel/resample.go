package kernel

import "math"

// LanczosKernel returns the windowed-sinc Lanczos kernel value for offset x
// (in source samples) with the given number of half-periods (periods).
func LanczosKernel(x float64, periods int) float64 {
	if x == 0 {
		return 1
	}
	a := float64(periods)
	if x <= -a || x >= a {
		return 0
	}
	px := math.Pi * x
	return a * math.Sin(px) * math.Sin(px/a) / (px * px)
}

// LanczosResample upsamples src by an integer factor using a Lanczos
// kernel of the given number of periods, writing factor*len(src) samples
// into dst. This is the portable implementation of the
// lanczos_resample_NxK primitive family named in spec.md §6; the kernel
// window is the generalization of silk/resample_sinc.go's fixed Kaiser
// window to a Lanczos window of configurable periods.
var LanczosResample = func(dst, src []float32, factor, periods int) {
	n := len(src)
	taps := periods * factor
	for i := 0; i < n*factor; i++ {
		// Source-domain position of output sample i.
		srcPos := float64(i) / float64(factor)
		center := int(math.Floor(srcPos))

		var acc float64
		for k := -taps; k <= taps; k++ {
			si := center + k
			if si < 0 || si >= n {
				continue
			}
			w := LanczosKernel(srcPos-float64(si), periods)
			acc += float64(src[si]) * w
		}
		dst[i] = float32(acc)
	}
}

// Downsample decimates src by an integer factor, taking every factor-th
// sample. The caller is expected to have already lowpass-filtered src
// (the Oversampler always does, via its internal Butterworth filter)
// before calling Downsample, matching spec.md §4.6's "filters before
// decimation" contract.
var Downsample = func(dst, src []float32, factor int) {
	n := len(dst)
	for i := 0; i < n; i++ {
		si := i * factor
		if si >= len(src) {
			break
		}
		dst[i] = src[si]
	}
}
