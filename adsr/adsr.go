// Package adsr implements the multi-segment shaped envelope generator
// from spec.md §4.11: a function of normalized time t in [0,1] shaped by
// attack/hold/decay/slope/release breakpoints, each segment driven by one
// of six curve shapes.
//
// Ported closely from original_source/src/main/util/ADSREnvelope.cpp:
// the same four-curve layout (attack, decay, slope, release), the same
// update_settings time-clamping chain (limit_range against the previous
// breakpoint), and the same per-shape coefficient derivation in
// configure_curve. The original calls out to a separate
// interpolation::hermite_cubic/hermite_quadro helper whose header is not
// part of the retrieval pack; hermiteCubic below reproduces the standard
// two-point cubic Hermite basis its call signature implies, and
// hermiteQuadro solves the 3-unknown linear system implied by passing
// two endpoint (value, derivative) pairs plus one interior value pin to
// a degree-4 polynomial (5 coefficients, 2 fixed by the t=0 value/slope).
package adsr

import (
	"fmt"
	"math"

	"github.com/sondrelabs/dspcore"
)

// Function selects a segment's curve shape.
type Function int

const (
	FuncNone Function = iota
	FuncLine
	FuncLine2
	FuncCubic
	FuncQuadro
	FuncExp
)

// Part identifies one of the four shaped segments.
type Part int

const (
	PartAttack Part = iota
	PartDecay
	PartSlope
	PartRelease
	partTotal
)

type curve struct {
	time  float32
	shape float32 // fCurve, in [0,1]
	fn    Function
	gen   func(t float32) float32
}

// Envelope computes a shaped ADSR curve over normalized time. The zero
// value is usable; every curve starts as FuncNone (a straight line
// between its endpoints).
type Envelope struct {
	curves [partTotal]curve

	holdTime     float32
	breakLevel   float32
	sustainLevel float32
	useHold      bool
	useBreak     bool

	dirty bool
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SetCurve configures one segment's end time (normalized to [0,1]),
// shape parameter (also [0,1], meaning depends on fn), and curve
// function.
func (e *Envelope) SetCurve(part Part, time, shape float32, fn Function) {
	time = clamp01(time)
	shape = clamp01(shape)
	c := &e.curves[part]
	if c.time == time && c.shape == shape && c.fn == fn {
		return
	}
	c.time, c.shape, c.fn = time, shape, fn
	e.dirty = true
}

// SetHold sets the hold segment's end time and whether it is active; when
// inactive, Decay begins immediately where Attack ends.
func (e *Envelope) SetHold(time float32, enabled bool) {
	time = clamp01(time)
	if e.holdTime != time {
		e.holdTime = time
		e.dirty = true
	}
	if e.useHold != enabled {
		e.useHold = enabled
		e.dirty = true
	}
}

// SetBreak sets the break level and whether the Slope segment is active;
// when inactive, Decay goes straight to the sustain level and Slope is
// skipped.
func (e *Envelope) SetBreak(level float32, enabled bool) {
	level = clamp01(level)
	if e.breakLevel != level {
		e.breakLevel = level
		e.dirty = true
	}
	if e.useBreak != enabled {
		e.useBreak = enabled
		e.dirty = true
	}
}

// SetSustain sets the level held across the Sustain segment (and the
// Decay/Slope target level).
func (e *Envelope) SetSustain(level float32) {
	level = clamp01(level)
	if e.sustainLevel == level {
		return
	}
	e.sustainLevel = level
	e.dirty = true
}

func limitRange(t, prev float32) float32 {
	if t < prev {
		t = prev
	}
	return clamp01(t)
}

func configureCurve(c *curve, x0, x1, y0, y1 float32) {
	switch c.fn {
	case FuncLine:
		t2 := 0.5 * (x0 + x1)
		cy := y0 + (y1-y0)*c.shape
		k1 := (cy - y0) / (t2 - x0)
		b1 := y0 - k1*x0
		k2 := (y1 - cy) / (x1 - t2)
		b2 := cy - k2*t2
		c.gen = func(t float32) float32 {
			if t < t2 {
				return t*k1 + b1
			}
			return t*k2 + b2
		}

	case FuncLine2:
		t2 := x0 + (x1-x0)*c.shape
		cy := y1 + (y0-y1)*c.shape
		k1 := (cy - y0) / (t2 - x0)
		b1 := y0 - k1*x0
		k2 := (y1 - cy) / (x1 - t2)
		b2 := cy - k2*t2
		c.gen = func(t float32) float32 {
			if t < t2 {
				return t*k1 + b1
			}
			return t*k2 + b2
		}

	case FuncCubic:
		cx := 0.5 * (x0 + x1)
		cy := y0 + (y1-y0)*c.shape
		k0 := (cy - y0) / (cx - x0)
		k1 := (y1 - cy) / (x1 - cx)
		t0 := x0
		coef := hermiteCubic(y0, k0, x1-x0, y1, k1)
		c.gen = func(t float32) float32 {
			t -= t0
			return ((coef[0]*t+coef[1])*t+coef[2])*t + coef[3]
		}

	case FuncQuadro:
		cx := 0.5 * (x0 + x1)
		cy := y0 + (y1-y0)*(0.3+c.shape*0.4)
		t0 := x0
		coef := hermiteQuadro(y0, 0, x1-x0, y1, 0, cx-x0, cy)
		c.gen = func(t float32) float32 {
			t -= t0
			return (((coef[0]*t+coef[1])*t+coef[2])*t+coef[3])*t + coef[4]
		}

	case FuncExp:
		kt := c.shape - 0.5
		ndx := 1 / (x1 - x0)
		t0 := x0
		kT := float32(math.Abs(float64(kt))) * 40
		ny := float32(math.Exp(float64(-kT)))
		var a0, a1, b0, b1 float32
		if kt >= 0 {
			a0, a1 = y0, (y1-y0)*ny
			b0, b1 = ndx, 0
		} else {
			a0, a1 = y1, (y0-y1)*ny
			b0, b1 = -ndx, 1
		}
		c.gen = func(t float32) float32 {
			tt := (t-t0)*b0 + b1
			return a0 + a1*tt*float32(math.Exp(float64(tt*kT)))
		}

	case FuncNone:
		fallthrough
	default:
		t0 := x0
		k := (y1 - y0) / (x1 - x0)
		b := y0
		c.gen = func(t float32) float32 { return (t-t0)*k + b }
	}
}

// hermiteCubic returns [a3,a2,a1,a0] for p(t)=a3 t^3+a2 t^2+a1 t+a0 over
// [0,h] matching p(0)=y0, p'(0)=dy0, p(h)=y1, p'(h)=dy1.
func hermiteCubic(y0, dy0, h, y1, dy1 float32) [4]float32 {
	dy := y1 - y0
	a3 := -2*dy/(h*h*h) + (dy0+dy1)/(h*h)
	a2 := 3*dy/(h*h) - (2*dy0+dy1)/h
	return [4]float32{a3, a2, dy0, y0}
}

// hermiteQuadro returns [a4,a3,a2,a1,a0] for a degree-4 polynomial over
// [0,h] matching p(0)=y0, p'(0)=dy0, p(h)=y1, p'(h)=dy1, and passing
// through the interior pin (tm, ym).
func hermiteQuadro(y0, dy0, h, y1, dy1, tm, ym float32) [5]float32 {
	a0, a1 := y0, dy0
	Y1 := y1 - a0 - a1*h
	D1 := dy1 - a1
	Ym := ym - a0 - a1*tm

	// Solve [[h^2,h^3,h^4],[2h,3h^2,4h^3],[tm^2,tm^3,tm^4]] * [a2,a3,a4]ᵀ = [Y1,D1,Ym]ᵀ
	m := [3][3]float64{
		{float64(h * h), float64(h * h * h), float64(h * h * h * h)},
		{float64(2 * h), float64(3 * h * h), float64(4 * h * h * h)},
		{float64(tm * tm), float64(tm * tm * tm), float64(tm * tm * tm * tm)},
	}
	rhs := [3]float64{float64(Y1), float64(D1), float64(Ym)}
	a2, a3, a4 := solve3(m, rhs)

	return [5]float32{float32(a4), float32(a3), float32(a2), a1, a0}
}

func det3(m [3][3]float64) float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

func solve3(m [3][3]float64, rhs [3]float64) (x0, x1, x2 float64) {
	d := det3(m)
	if d == 0 {
		return 0, 0, 0
	}
	m0 := m
	m0[0][0], m0[1][0], m0[2][0] = rhs[0], rhs[1], rhs[2]
	m1 := m
	m1[0][1], m1[1][1], m1[2][1] = rhs[0], rhs[1], rhs[2]
	m2 := m
	m2[0][2], m2[1][2], m2[2][2] = rhs[0], rhs[1], rhs[2]
	return det3(m0) / d, det3(m1) / d, det3(m2) / d
}

func (e *Envelope) updateSettings() {
	if !e.dirty {
		return
	}

	e.curves[PartAttack].time = limitRange(e.curves[PartAttack].time, 0)
	if e.useHold {
		e.holdTime = limitRange(e.holdTime, e.curves[PartAttack].time)
		e.curves[PartDecay].time = limitRange(e.curves[PartDecay].time, e.holdTime)
	} else {
		e.curves[PartDecay].time = limitRange(e.curves[PartDecay].time, e.curves[PartAttack].time)
	}

	if e.useBreak {
		e.curves[PartSlope].time = limitRange(e.curves[PartSlope].time, e.curves[PartDecay].time)
		e.curves[PartRelease].time = limitRange(e.curves[PartRelease].time, e.curves[PartSlope].time)
	} else {
		e.curves[PartRelease].time = limitRange(e.curves[PartRelease].time, e.curves[PartDecay].time)
	}

	configureCurve(&e.curves[PartAttack], 0, e.curves[PartAttack].time, 0, 1)

	hold := e.curves[PartAttack].time
	if e.useHold {
		hold = e.holdTime
	}
	decay := e.curves[PartDecay].time

	if e.useBreak {
		configureCurve(&e.curves[PartDecay], hold, decay, 1, e.breakLevel)
		configureCurve(&e.curves[PartSlope], decay, e.curves[PartSlope].time, e.breakLevel, e.sustainLevel)
	} else {
		configureCurve(&e.curves[PartDecay], hold, decay, 1, e.sustainLevel)
	}

	configureCurve(&e.curves[PartRelease], e.curves[PartRelease].time, 1, e.sustainLevel, 0)

	e.dirty = false
}

func (e *Envelope) doProcess(t float32) float32 {
	if t <= 0 || t >= 1 {
		return 0
	}

	cv := &e.curves[PartAttack]
	if t < cv.time {
		return cv.gen(t)
	}
	hold := cv.time
	if e.useHold {
		hold = e.holdTime
	}
	if t < hold {
		return 1
	}

	cv = &e.curves[PartDecay]
	if t < cv.time {
		return cv.gen(t)
	}

	if e.useBreak {
		cv = &e.curves[PartSlope]
		if t < cv.time {
			return cv.gen(t)
		}
	}

	cv = &e.curves[PartRelease]
	if t < cv.time {
		return e.sustainLevel
	}
	return cv.gen(t)
}

// ProcessScalar evaluates the envelope at one point in [0,1].
func (e *Envelope) ProcessScalar(t float32) float32 {
	e.updateSettings()
	return e.doProcess(t)
}

// Process writes f(src[i]) into dst for each of n samples.
func (e *Envelope) Process(dst, src []float32, n int) error {
	if len(dst) < n || len(src) < n {
		return fmt.Errorf("%w: buffer shorter than n", dspcore.ErrBadArguments)
	}
	e.updateSettings()
	for i := 0; i < n; i++ {
		dst[i] = e.doProcess(src[i])
	}
	return nil
}

// ProcessMul multiplies dst[i] by f(src[i]) for each of n samples.
func (e *Envelope) ProcessMul(dst, src []float32, n int) error {
	if len(dst) < n || len(src) < n {
		return fmt.Errorf("%w: buffer shorter than n", dspcore.ErrBadArguments)
	}
	e.updateSettings()
	for i := 0; i < n; i++ {
		dst[i] *= e.doProcess(src[i])
	}
	return nil
}

// Generate writes n samples of f(start + i*step) into dst, walking
// segment boundaries directly instead of re-deriving the active segment
// for every sample.
func (e *Envelope) Generate(dst []float32, start, step float32, n int) error {
	if len(dst) < n {
		return fmt.Errorf("%w: dst shorter than n", dspcore.ErrBadArguments)
	}
	e.updateSettings()

	i := 0
	t := start

	for t <= 0 && i < n {
		dst[i] = 0
		i++
		t = start + float32(i)*step
	}

	cv := &e.curves[PartAttack]
	for t < cv.time && i < n {
		dst[i] = cv.gen(t)
		i++
		t = start + float32(i)*step
	}

	if e.useHold {
		for t < e.holdTime && i < n {
			dst[i] = 1
			i++
			t = start + float32(i)*step
		}
	}

	cv = &e.curves[PartDecay]
	for t < cv.time && i < n {
		dst[i] = cv.gen(t)
		i++
		t = start + float32(i)*step
	}

	if e.useBreak {
		cv = &e.curves[PartSlope]
		for t < cv.time && i < n {
			dst[i] = cv.gen(t)
			i++
			t = start + float32(i)*step
		}
	}

	cv = &e.curves[PartRelease]
	for t < cv.time && i < n {
		dst[i] = e.sustainLevel
		i++
		t = start + float32(i)*step
	}

	for t < 1 && i < n {
		dst[i] = cv.gen(t)
		i++
		t = start + float32(i)*step
	}

	for ; i < n; i++ {
		dst[i] = 0
	}
	return nil
}

// GenerateMul multiplies each of n samples of dst in place by
// f(start + i*step); the hold span leaves dst untouched, and samples
// before the attack or after the release are set to 0.
func (e *Envelope) GenerateMul(dst []float32, start, step float32, n int) error {
	if len(dst) < n {
		return fmt.Errorf("%w: dst shorter than n", dspcore.ErrBadArguments)
	}
	e.updateSettings()

	i := 0
	t := start

	for t <= 0 && i < n {
		dst[i] = 0
		i++
		t = start + float32(i)*step
	}

	cv := &e.curves[PartAttack]
	for t < cv.time && i < n {
		dst[i] *= cv.gen(t)
		i++
		t = start + float32(i)*step
	}

	if e.useHold {
		for t < e.holdTime && i < n {
			i++
			t = start + float32(i)*step
		}
	}

	cv = &e.curves[PartDecay]
	for t < cv.time && i < n {
		dst[i] *= cv.gen(t)
		i++
		t = start + float32(i)*step
	}

	if e.useBreak {
		cv = &e.curves[PartSlope]
		for t < cv.time && i < n {
			dst[i] *= cv.gen(t)
			i++
			t = start + float32(i)*step
		}
	}

	cv = &e.curves[PartRelease]
	for t < cv.time && i < n {
		dst[i] *= e.sustainLevel
		i++
		t = start + float32(i)*step
	}

	for t < 1 && i < n {
		dst[i] *= cv.gen(t)
		i++
		t = start + float32(i)*step
	}

	for ; i < n; i++ {
		dst[i] = 0
	}
	return nil
}

// GenerateMulSrc writes src[i]*f(start+i*step) into dst for n samples
// (the hold span copies src through unscaled).
func (e *Envelope) GenerateMulSrc(dst, src []float32, start, step float32, n int) error {
	if len(dst) < n || len(src) < n {
		return fmt.Errorf("%w: buffer shorter than n", dspcore.ErrBadArguments)
	}
	e.updateSettings()

	i := 0
	t := start

	for t <= 0 && i < n {
		dst[i] = 0
		i++
		t = start + float32(i)*step
	}

	cv := &e.curves[PartAttack]
	for t < cv.time && i < n {
		dst[i] = src[i] * cv.gen(t)
		i++
		t = start + float32(i)*step
	}

	if e.useHold {
		for t < e.holdTime && i < n {
			dst[i] = src[i]
			i++
			t = start + float32(i)*step
		}
	}

	cv = &e.curves[PartDecay]
	for t < cv.time && i < n {
		dst[i] = src[i] * cv.gen(t)
		i++
		t = start + float32(i)*step
	}

	if e.useBreak {
		cv = &e.curves[PartSlope]
		for t < cv.time && i < n {
			dst[i] = src[i] * cv.gen(t)
			i++
			t = start + float32(i)*step
		}
	}

	cv = &e.curves[PartRelease]
	for t < cv.time && i < n {
		dst[i] = src[i] * e.sustainLevel
		i++
		t = start + float32(i)*step
	}

	for t < 1 && i < n {
		dst[i] = src[i] * cv.gen(t)
		i++
		t = start + float32(i)*step
	}

	for ; i < n; i++ {
		dst[i] = 0
	}
	return nil
}
