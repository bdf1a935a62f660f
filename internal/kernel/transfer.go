package kernel

import "math"

func expf(x float32) float32 { return float32(math.Exp(float64(x))) }
func cosf(x float32) float32 { return float32(math.Cos(float64(x))) }
func sqrtf(x float32) float32 { return float32(math.Sqrt(float64(x))) }

// quadraticRoots finds the roots of b0 + b1*s + b2*s^2 (note the ordering
// matches AnalogSOS: constant, linear, quadratic coefficient). Returns
// either two real roots (r0, r1) or a complex pair re +/- j*im.
func quadraticRoots(b0, b1, b2 float32) (r0, r1, re, im float32, complexPair bool) {
	if b2 == 0 {
		if b1 == 0 {
			return 0, 0, 0, 0, false
		}
		r := -b0 / b1
		return r, r, 0, 0, false
	}
	disc := b1*b1 - 4*b2*b0
	if disc >= 0 {
		sq := sqrtf(disc)
		r0 = (-b1 + sq) / (2 * b2)
		r1 = (-b1 - sq) / (2 * b2)
		return r0, r1, 0, 0, false
	}
	sq := sqrtf(-disc)
	re = -b1 / (2 * b2)
	im = sq / (2 * b2)
	return 0, 0, re, im, true
}

// quadraticRootsT factors a numerator polynomial t0 + t1*s + t2*s^2 for
// MatchedTransform's zero placement, using the same real-root-pair/
// complex-conjugate-pair logic quadraticRoots applies to the denominator
// (original_source/src/main/filters/Filter.cpp's matched_transform
// processes "each polynom, top and bottom, individually" through one
// shared routine).
func quadraticRootsT(t0, t1, t2 float32) (z0, z1, re, im float32, complexPair bool) {
	return quadraticRoots(t0, t1, t2)
}

// complex32 is a minimal complex value carried as two float32s, avoiding a
// dependency on complex128 arithmetic in the hot analog-design path.
type complex32 struct{ Re, Im float32 }

func cmplxAbs(c complex32) float32 {
	return sqrtf(c.Re*c.Re + c.Im*c.Im)
}

// analogTransfer evaluates H(s=j*omega) for one analog SOS.
func analogTransfer(s AnalogSOS, omega float32) complex32 {
	// s = j*omega -> s^2 = -omega^2
	numRe := s.T0 - s.T2*omega*omega
	numIm := s.T1 * omega
	denRe := s.B0 - s.B2*omega*omega
	denIm := s.B1 * omega
	return complexDiv(complex32{numRe, numIm}, complex32{denRe, denIm})
}

// digitalTransfer evaluates H(z=e^{j*omega}) for one discrete biquad.
func digitalTransfer(b Biquad, omega float32) complex32 {
	cw := cosf(omega)
	sw := -sinf(omega) // e^{-j*omega}
	c2w := cosf(2 * omega)
	s2w := -sinf(2 * omega)

	numRe := b.B0 + b.B1*cw + b.B2*c2w
	numIm := b.B1*sw + b.B2*s2w
	// Denominator is 1 - a1*z^-1 - a2*z^-2 in sign-restored form since
	// A1/A2 are already negated for the FMA update.
	denRe := 1 - b.A1*cw - b.A2*c2w
	denIm := -b.A1*sw - b.A2*s2w
	return complexDiv(complex32{numRe, numIm}, complex32{denRe, denIm})
}

func sinf(x float32) float32 { return float32(math.Sin(float64(x))) }

func complexDiv(a, b complex32) complex32 {
	d := b.Re*b.Re + b.Im*b.Im
	if d == 0 {
		return complex32{}
	}
	return complex32{
		Re: (a.Re*b.Re + a.Im*b.Im) / d,
		Im: (a.Im*b.Re - a.Re*b.Im) / d,
	}
}

// FilterTransferCalcRI evaluates a discrete biquad cascade's transfer
// function at n angular frequencies, writing real/imaginary parts.
var FilterTransferCalcRI = func(chain []Biquad, re, im []float32, freq []float32) {
	n := len(freq)
	for i := 0; i < n; i++ {
		acc := complex32{1, 0}
		for _, b := range chain {
			acc = complexMul(acc, digitalTransfer(b, freq[i]))
		}
		re[i] = acc.Re
		im[i] = acc.Im
	}
}

func complexMul(a, b complex32) complex32 {
	return complex32{a.Re*b.Re - a.Im*b.Im, a.Re*b.Im + a.Im*b.Re}
}

// FilterTransferApplyRI multiplies an existing re/im transfer buffer by
// one more biquad section's response, used when composing chains whose
// sections were designed independently.
var FilterTransferApplyRI = func(re, im []float32, chain []Biquad, freq []float32) {
	n := len(freq)
	for i := 0; i < n; i++ {
		acc := complex32{re[i], im[i]}
		for _, b := range chain {
			acc = complexMul(acc, digitalTransfer(b, freq[i]))
		}
		re[i] = acc.Re
		im[i] = acc.Im
	}
}
