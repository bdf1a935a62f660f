// Package kernel holds the portable (non-vectorized) implementation of the
// primitive operations spec.md §6 treats as external SIMD collaborators:
// buffer copy/fill/arithmetic, biquad application, bilinear/matched-Z
// transform batches, and filter-transfer evaluation.
//
// Each primitive is exposed as a package-level function variable, mirroring
// the split the teacher codec uses between a "_default.go" portable
// implementation and an arch-specific "_asm.go" override (see
// celt/abs_sum_default.go, celt/pitch_xcorr_default.go in the retrieval
// pack): a host that links a vectorized backend can reassign these
// variables at init time without touching any call site. Only the default,
// scalar path is implemented here — true SIMD intrinsics are out of scope
// per spec.md §1.
package kernel

import "golang.org/x/sys/cpu"

// Backend names the active implementation, reported by callers that log
// which backend is in effect (never consulted inside a hot loop).
var Backend = "generic"

func init() {
	// Feature detection is informational only: no code path below
	// actually branches on it, since no vectorized backend ships in
	// this build. A future backend would reassign Copy, Fill, etc. from
	// an arch-specific init() and update Backend to match.
	if cpu.X86.HasAVX2 || cpu.ARM64.HasASIMD {
		Backend = "generic (vector ISA present, no vectorized backend linked)"
	}
}

// Copy copies src into dst, dst and src may overlap like copy() semantics.
var Copy = func(dst, src []float32) int {
	return copy(dst, src)
}

// Fill sets every element of dst to v.
var Fill = func(dst []float32, v float32) {
	for i := range dst {
		dst[i] = v
	}
}

// Add2 adds src into dst element-wise: dst[i] += src[i].
var Add2 = func(dst, src []float32) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		dst[i] += src[i]
	}
}

// MulK2 multiplies dst by src element-wise: dst[i] *= src[i].
var MulK2 = func(dst, src []float32) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		dst[i] *= src[i]
	}
}

// MulK3 multiplies a*b element-wise into dst: dst[i] = a[i]*b[i].
var MulK3 = func(dst, a, b []float32) {
	n := len(dst)
	for _, s := range [][]float32{a, b} {
		if len(s) < n {
			n = len(s)
		}
	}
	for i := 0; i < n; i++ {
		dst[i] = a[i] * b[i]
	}
}

// Abs1 takes the absolute value of dst in place.
var Abs1 = func(dst []float32) {
	for i, v := range dst {
		if v < 0 {
			dst[i] = -v
		}
	}
}

// Abs2 writes the absolute value of src into dst.
var Abs2 = func(dst, src []float32) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		v := src[i]
		if v < 0 {
			v = -v
		}
		dst[i] = v
	}
}

// PComplexFillRI fills packed-complex re/im buffers with a constant.
var PComplexFillRI = func(re, im []float32, vr, vi float32) {
	Fill(re, vr)
	Fill(im, vi)
}
