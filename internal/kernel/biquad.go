package kernel

// Biquad holds one second-order section in discrete form:
//
//	y = B0*x + B1*x1 + B2*x2 + A1*y1 + A2*y2
//
// A1 and A2 already carry the sign negation noted in spec.md §3 so the
// update is a pure fused-multiply-add chain with no subtractions.
type Biquad struct {
	B0, B1, B2 float32
	A1, A2     float32

	// State: x1/x2 are the last two inputs, y1/y2 the last two outputs.
	X1, X2 float32
	Y1, Y2 float32
}

// Reset zeroes the filter's history, leaving coefficients untouched.
func (b *Biquad) Reset() {
	b.X1, b.X2, b.Y1, b.Y2 = 0, 0, 0, 0
}

// BiquadProcess runs one cascade of biquads (direct-form-I update on
// X1/X2/Y1/Y2) over min(len(dst), len(src)) samples, in place of
// vectorized biquad_process_x1/x2/x4/x8 named in spec.md §6. There is no
// fan-out: every caller, FilterBank included, gets the scalar path over
// the whole chain.
var BiquadProcess = func(chain []Biquad, dst, src []float32) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		x := src[i]
		for c := range chain {
			b := &chain[c]
			y := b.B0*x + b.B1*b.X1 + b.B2*b.X2 + b.A1*b.Y1 + b.A2*b.Y2
			b.X2, b.X1 = b.X1, x
			b.Y2, b.Y1 = b.Y1, y
			x = y
		}
		dst[i] = x
	}
}

// DynBiquad is one section of a dynamic (per-sample coefficient) cascade.
// DynBiquadProcess applies the coefficients given for sample i as they
// are; it does not interpolate between adjacent samples' coefficients.
type DynBiquad struct {
	Biquad
}

// DynBiquadProcess applies a time-varying cascade: coeffs has n entries
// per section (coeffs[i*sections+s] is section s's coefficients for
// sample i). State carries over between calls via chain's X1/X2/Y1/Y2.
var DynBiquadProcess = func(chain []DynBiquad, coeffs []Biquad, sections int, dst, src []float32) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		x := src[i]
		for s := 0; s < sections; s++ {
			c := coeffs[i*sections+s]
			b := &chain[s]
			y := c.B0*x + c.B1*b.X1 + c.B2*b.X2 + c.A1*b.Y1 + c.A2*b.Y2
			b.X2, b.X1 = b.X1, x
			b.Y2, b.Y1 = b.Y1, y
			x = y
		}
		dst[i] = x
	}
}

// AnalogSOS is one second-order section of an analog prototype in the "s"
// domain: H(s) = (T0 + T1*s + T2*s^2) / (B0 + B1*s + B2*s^2).
type AnalogSOS struct {
	T0, T1, T2 float32
	B0, B1, B2 float32
}

// BilinearTransform discretizes one analog SOS via the bilinear transform
// with frequency prewarping at f1, writing the discrete {b0,b1,b2,a1,a2}
// into dst. kf = 2*pi*f1/tan(pi*f1/sr) (the sections' coefficients are in
// rad/s) is passed in by the caller since several
// sections in one chain share the same prewarp frequency.
//
//	T = (t0, t1*kf, t2*kf^2), B analogous
//	s = kf*(1-z^-1)/(1+z^-1) substituted symbolically.
var BilinearTransform = func(dst *Biquad, s AnalogSOS, kf float32) {
	t0, t1, t2 := s.T0, s.T1*kf, s.T2*kf*kf
	b0, b1, b2 := s.B0, s.B1*kf, s.B2*kf*kf

	// Expand (t0 + t1*s + t2*s^2) with s = (1-z^-1)/(1+z^-1) and clear
	// denominators by (1+z^-1)^2; analog B plays the same role.
	at0 := t0 + t1 + t2
	at1 := 2 * (t0 - t2)
	at2 := t0 - t1 + t2

	ab0 := b0 + b1 + b2
	ab1 := 2 * (b0 - b2)
	ab2 := b0 - b1 + b2

	norm := 1 / ab0
	dst.B0 = at0 * norm
	dst.B1 = at1 * norm
	dst.B2 = at2 * norm
	// a1/a2 are pre-negated so Process is a pure FMA chain.
	dst.A1 = -ab1 * norm
	dst.A2 = -ab2 * norm
}

// MatchedTransform discretizes one analog SOS via the matched-Z transform:
// factor the analog denominator's roots and place e^{pT} in the digital
// plane, preserving time-domain pole amplitude (spec.md §4.1 step 2).
// sampleRate and f1 are used for the post-normalize control-frequency
// amplitude match described in spec.md.
var MatchedTransform = func(dst *Biquad, s AnalogSOS, sampleRate, f1 float32) {
	t := float32(1) / sampleRate

	r0, r1, rRe, rIm, complexPair := quadraticRoots(s.B0, s.B1, s.B2)

	if !complexPair {
		e0 := expf(r0 * t)
		e1 := expf(r1 * t)
		dst.A1 = e0 + e1
		dst.A2 = -(e0 * e1)
	} else {
		eRT := expf(rRe * t)
		dst.A1 = 2 * eRT * cosf(rIm*t)
		dst.A2 = -(eRT * eRT)
	}

	// Numerator: factor it the same way as the denominator above ("process
	// each polynom, top and bottom, individually"), keeping its own
	// leading coefficient as the shape's scale; the amplitude match below
	// folds that scale in together with the overall gain correction.
	switch {
	case s.T2 != 0:
		zr0, zr1, zre, zim, zComplexPair := quadraticRootsT(s.T0, s.T1, s.T2)
		if !zComplexPair {
			e0 := expf(zr0 * t)
			e1 := expf(zr1 * t)
			dst.B0 = s.T2
			dst.B1 = -s.T2 * (e0 + e1)
			dst.B2 = s.T2 * e0 * e1
		} else {
			eRT := expf(zre * t)
			dst.B0 = s.T2
			dst.B1 = -2 * s.T2 * eRT * cosf(zim*t)
			dst.B2 = s.T2 * eRT * eRT
		}
	case s.T1 != 0:
		zr := -s.T0 / s.T1
		dst.B0 = s.T1
		dst.B1 = -s.T1 * expf(zr*t)
		dst.B2 = 0
	default:
		dst.B0 = s.T0
		dst.B1 = 0
		dst.B2 = 0
	}

	ctrl := float32(3.14159265) * f1 / (5 * sampleRate)
	analogOmega := float32(0.1)
	num := cmplxAbs(analogTransfer(s, analogOmega))
	den := cmplxAbs(digitalTransfer(*dst, ctrl))
	if den != 0 {
		scale := num / den
		dst.B0 *= scale
		dst.B1 *= scale
		dst.B2 *= scale
	}
}
