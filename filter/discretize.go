package filter

import (
	"math"

	"github.com/sondrelabs/dspcore/internal/kernel"
)

// Design converts p's analog design into discrete biquads at the given
// sample rate. It is the exported entry point dynfilter reuses to build
// its per-sample cascade table, so both units agree on coefficient
// formulas.
func Design(p Params, sampleRate float32) []kernel.Biquad {
	p = clampParams(p, sampleRate)
	return discretize(p, sampleRate)
}

// discretize converts p's analog design into discrete biquads at the
// given sample rate, dispatching to the bilinear, matched-Z, APO, or
// weighted path per spec.md §4.1 step 2.
func discretize(p Params, sampleRate float32) []kernel.Biquad {
	if p.Family.IsWeighted() {
		return discretizeWeighted(p.Family, sampleRate)
	}
	if p.Transform == TransformAPO || p.Family == FamilyAPO {
		return []kernel.Biquad{discretizeAPO(p, sampleRate)}
	}

	sections := designAnalog(p)
	out := make([]kernel.Biquad, len(sections))

	switch p.Transform {
	case TransformMatchedZ:
		for i, s := range sections {
			kernel.MatchedTransform(&out[i], s, sampleRate, p.F1)
		}
	default: // TransformBilinear
		kf := float32(2 * math.Pi * float64(p.F1) / math.Tan(math.Pi*float64(p.F1)/float64(sampleRate)))
		for i, s := range sections {
			kernel.BilinearTransform(&out[i], s, kf)
		}
	}
	return out
}

// discretizeAPO computes the EQ-APO cookbook biquad directly in the
// discrete domain, per spec.md §4.1 step 2 "APO".
func discretizeAPO(p Params, sampleRate float32) kernel.Biquad {
	w0 := 2 * math.Pi * float64(p.F1) / float64(sampleRate)
	cw := math.Cos(w0)
	sw := math.Sin(w0)
	q := float64(p.Quality)
	if q < 0.1 {
		q = 0.1 // MIN_APO_Q: Q cannot be 0, per original_source/Filter.cpp
	}
	alpha := sw / (2 * q)
	a := math.Sqrt(math.Max(float64(p.Gain), 1e-6))

	var b0, b1, b2, a0, a1, a2 float64

	switch p.Shape {
	case ShapeLopass:
		b0 = (1 - cw) / 2
		b1 = 1 - cw
		b2 = (1 - cw) / 2
		a0 = 1 + alpha
		a1 = -2 * cw
		a2 = 1 - alpha
	case ShapeHipass:
		b0 = (1 + cw) / 2
		b1 = -(1 + cw)
		b2 = (1 + cw) / 2
		a0 = 1 + alpha
		a1 = -2 * cw
		a2 = 1 - alpha
	case ShapeBandpass:
		b0 = alpha
		b1 = 0
		b2 = -alpha
		a0 = 1 + alpha
		a1 = -2 * cw
		a2 = 1 - alpha
	case ShapeNotch:
		b0 = 1
		b1 = -2 * cw
		b2 = 1
		a0 = 1 + alpha
		a1 = -2 * cw
		a2 = 1 - alpha
	case ShapeAllpass, ShapeAllpass2:
		b0 = 1 - alpha
		b1 = -2 * cw
		b2 = 1 + alpha
		a0 = 1 + alpha
		a1 = -2 * cw
		a2 = 1 - alpha
	case ShapeBell:
		b0 = 1 + alpha*a
		b1 = -2 * cw
		b2 = 1 - alpha*a
		a0 = 1 + alpha/a
		a1 = -2 * cw
		a2 = 1 - alpha/a
	case ShapeLoshelf:
		sq := 2 * math.Sqrt(a) * alpha
		b0 = a * ((a + 1) - (a-1)*cw + sq)
		b1 = 2 * a * ((a - 1) - (a+1)*cw)
		b2 = a * ((a + 1) - (a-1)*cw - sq)
		a0 = (a + 1) + (a-1)*cw + sq
		a1 = -2 * ((a - 1) + (a+1)*cw)
		a2 = (a + 1) + (a-1)*cw - sq
	case ShapeHishelf:
		sq := 2 * math.Sqrt(a) * alpha
		b0 = a * ((a + 1) + (a-1)*cw + sq)
		b1 = -2 * a * ((a - 1) + (a+1)*cw)
		b2 = a * ((a + 1) + (a-1)*cw - sq)
		a0 = (a + 1) - (a-1)*cw + sq
		a1 = 2 * ((a - 1) - (a+1)*cw)
		a2 = (a + 1) - (a-1)*cw - sq
	default:
		b0, a0 = 1, 1
	}

	return kernel.Biquad{
		B0: float32(b0 / a0), B1: float32(b1 / a0), B2: float32(b2 / a0),
		A1: float32(-a1 / a0), A2: float32(-a2 / a0),
	}
}

// discretizeWeighted emits the fixed biquad sequence approximating the
// requested IEC 61672 / ITU-R 468 weighting curve, pre-warped and then
// post-normalized to unity gain at 1kHz per spec.md §4.1 step 2
// "Weighted". Every curve is built from the same pieces: second-order
// high-pass sections at the curve's low corners (four for A, three for B,
// two for C, one for D and K) followed by one second-order low-pass at
// its high corner (12194 Hz for A/B/C, 6200 Hz for D, 18000 Hz for K).
// This approximates the curve shapes for a sidechain/metering pre-filter;
// it is not a certified weighting-filter implementation.
func discretizeWeighted(fam Family, sampleRate float32) []kernel.Biquad {
	var corners []float64 // high-pass corner frequencies (Hz), RLC-style cascade
	var shelfHz float64   // high-frequency shelf corner, 0 = none

	switch fam {
	case FamilyWeightA:
		corners = []float64{20.6, 20.6, 107.7, 737.9}
		shelfHz = 12194
	case FamilyWeightB:
		corners = []float64{20.6, 20.6, 158.5}
		shelfHz = 12194
	case FamilyWeightC:
		corners = []float64{20.6, 20.6}
		shelfHz = 12194
	case FamilyWeightD:
		corners = []float64{20.6}
		shelfHz = 6200
	default: // FamilyWeightK (ITU-R 468 style)
		corners = []float64{20.6}
		shelfHz = 18000
	}

	out := make([]kernel.Biquad, 0, len(corners)+1)
	for _, f := range corners {
		p := Params{F1: float32(f), Quality: 0.7071068, Transform: TransformBilinear}
		sos := kernel.AnalogSOS{T2: 1, B0: float32(2 * math.Pi * f * 2 * math.Pi * f), B1: float32(2 * math.Pi * f / 0.7071068), B2: 1}
		kf := float32(2 * math.Pi * float64(p.F1) / math.Tan(math.Pi*float64(p.F1)/float64(sampleRate)))
		var b kernel.Biquad
		kernel.BilinearTransform(&b, sos, kf)
		out = append(out, b)
	}
	if shelfHz > 0 {
		p := Params{F1: float32(shelfHz), Quality: 0.7071068}
		sos := kernel.AnalogSOS{T0: float32(2 * math.Pi * shelfHz * 2 * math.Pi * shelfHz), B0: float32(2 * math.Pi * shelfHz * 2 * math.Pi * shelfHz), B1: float32(2 * math.Pi * shelfHz / 0.7071068), B2: 1}
		kf := float32(2 * math.Pi * float64(p.F1) / math.Tan(math.Pi*float64(p.F1)/float64(sampleRate)))
		var b kernel.Biquad
		kernel.BilinearTransform(&b, sos, kf)
		out = append(out, b)
	}

	normalizeUnityAt1kHz(out, sampleRate)
	return out
}

// normalizeUnityAt1kHz scales chain's first section so the cascade's
// magnitude response at 1kHz is exactly 1, per spec.md's "post-normalize
// step sets unity gain at 1kHz" for weighted curves.
func normalizeUnityAt1kHz(chain []kernel.Biquad, sampleRate float32) {
	if len(chain) == 0 {
		return
	}
	omega := float32(2 * math.Pi * 1000 / float64(sampleRate))
	re := make([]float32, 1)
	im := make([]float32, 1)
	kernel.FilterTransferCalcRI(chain, re, im, []float32{omega})
	mag := float32(math.Sqrt(float64(re[0]*re[0] + im[0]*im[0])))
	if mag == 0 {
		return
	}
	scale := 1 / mag
	chain[0].B0 *= scale
	chain[0].B1 *= scale
	chain[0].B2 *= scale
}
