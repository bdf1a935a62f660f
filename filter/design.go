package filter

import (
	"math"

	"github.com/sondrelabs/dspcore/internal/kernel"
)

// designAnalog emits the analog prototype cascades for p at the given
// sample rate, following spec.md §4.1 step 1. Weighting families and APO
// are handled directly in the discrete domain by discretizeWeighted /
// discretizeAPO and never reach here.
func designAnalog(p Params) []kernel.AnalogSOS {
	switch p.Family {
	case FamilyBWC:
		return designButterworth(p)
	case FamilyLRX:
		// LRX emits the BWC cascade twice with halved gain and doubled
		// slope (spec.md §4.1 step 1).
		inner := p
		inner.Slope = p.Slope * 2
		inner.Gain = p.Gain * 0.5
		cascade := designButterworth(inner)
		return append(append([]kernel.AnalogSOS{}, cascade...), cascade...)
	default:
		return designRLC(p)
	}
}

// designRLC builds cascades of the analog RLC prototype
// H(s) = (t0 + t1*s + t2*s^2) / (b0 + b1*s + b2*s^2): for lo/hipass,
// slope identical two-pole sections (no single-pole section), or the ladder family's two
// sub-cascades per slope step (one shelf + one transposed shelf at the
// second cut, per spec.md §4.1).
func designRLC(p Params) []kernel.AnalogSOS {
	w1 := 2 * math.Pi * float64(p.F1)
	q := float64(p.Quality)
	if q <= 0 {
		q = 0.7071067811865476 // Butterworth Q, the RLC default
	}
	gain := float64(p.Gain)
	if gain == 0 {
		gain = 1
	}

	switch p.Shape {
	case ShapeLopass:
		return ladderSections(p.Slope, func() kernel.AnalogSOS {
			return kernel.AnalogSOS{T0: float32(w1 * w1), B0: float32(w1 * w1), B1: float32(w1 / q), B2: 1}
		})
	case ShapeHipass:
		return ladderSections(p.Slope, func() kernel.AnalogSOS {
			return kernel.AnalogSOS{T2: 1, B0: float32(w1 * w1), B1: float32(w1 / q), B2: 1}
		})
	case ShapeBandpass:
		w2 := 2 * math.Pi * float64(p.F2)
		bw := w2 - w1
		w0 := math.Sqrt(w1 * w2)
		return []kernel.AnalogSOS{{T1: float32(bw), B0: float32(w0 * w0), B1: float32(bw), B2: 1}}
	case ShapeNotch:
		w2 := 2 * math.Pi * float64(p.F2)
		bw := w2 - w1
		w0 := math.Sqrt(w1 * w2)
		return []kernel.AnalogSOS{{T0: float32(w0 * w0), T2: 1, B0: float32(w0 * w0), B1: float32(bw), B2: 1}}
	case ShapeLoshelf:
		sq := math.Sqrt(gain)
		return []kernel.AnalogSOS{{T0: float32(w1 * w1 * gain), T1: float32(w1 / q * sq), T2: float32(sq),
			B0: float32(w1 * w1), B1: float32(w1 / q), B2: 1}}
	case ShapeHishelf:
		sq := math.Sqrt(gain)
		return []kernel.AnalogSOS{{T0: float32(sq), T1: float32(w1 / q * sq), T2: float32(gain),
			B0: 1, B1: float32(w1 / q), B2: float32(1 / (w1 * w1))}}
	case ShapeBell:
		return []kernel.AnalogSOS{{T0: float32(w1 * w1), T1: float32(w1 / q * gain), T2: 1,
			B0: float32(w1 * w1), B1: float32(w1 / q), B2: 1}}
	case ShapeAllpass, ShapeAllpass2:
		return []kernel.AnalogSOS{{T0: float32(w1 * w1), T1: float32(-w1 / q), T2: 1,
			B0: float32(w1 * w1), B1: float32(w1 / q), B2: 1}}
	case ShapeResonance:
		return []kernel.AnalogSOS{{T1: float32(w1 / q), B0: float32(w1 * w1), B1: float32(w1 / q), B2: 1}}
	case ShapeEnvelope:
		return []kernel.AnalogSOS{{T0: float32(w1), B0: float32(w1), B1: 1}}
	case ShapeLadderpass:
		return ladderCascade(p.Slope, w1, q, false)
	case ShapeLadderreject:
		return ladderCascade(p.Slope, w1, q, true)
	default:
		// Unknown shape falls through to a bypass pass-through section.
		return []kernel.AnalogSOS{{T0: 1, B0: 1}}
	}
}

// ladderSections builds the RLC cascade for lo/hipass shapes: slope
// identical two-pole sections with no single-pole section, so the count
// of sections equals slope.
func ladderSections(slope int, section func() kernel.AnalogSOS) []kernel.AnalogSOS {
	if slope < 1 {
		slope = 1
	}
	out := make([]kernel.AnalogSOS, slope)
	for i := range out {
		out[i] = section()
	}
	return out
}

// ladderCascade builds the ladder filter family: two sub-cascades per
// slope step (one shelf-like section, one transposed shelf at the second
// cut), per spec.md §4.1.
func ladderCascade(slope int, w1, q float64, reject bool) []kernel.AnalogSOS {
	if slope < 1 {
		slope = 1
	}
	out := make([]kernel.AnalogSOS, 0, 2*slope)
	for i := 0; i < slope; i++ {
		if reject {
			out = append(out,
				kernel.AnalogSOS{T0: float32(w1 * w1), T2: 1, B0: float32(w1 * w1), B1: float32(w1 / q), B2: 1},
				kernel.AnalogSOS{T0: float32(w1 * w1), T2: 1, B0: float32(w1 * w1), B1: float32(w1 / q), B2: 1},
			)
		} else {
			out = append(out,
				kernel.AnalogSOS{T0: float32(w1 * w1), B0: float32(w1 * w1), B1: float32(w1 / q), B2: 1},
				kernel.AnalogSOS{T2: 1, B0: float32(w1 * w1), B1: float32(w1 / q), B2: 1},
			)
		}
	}
	return out
}

// butterworthAngle is calc_bwc_filter's per-section pole angle
// ((2j+1)*pi/2)/(divisor*slope): divisor is 1 for the allpass shapes and
// 2 for the lopass/hipass and shelf/bell/bandpass/ladder shapes; divisor 2
// gives the standard Butterworth pole angles (2j+1)*pi/(4*slope).
func butterworthAngle(j, slope, divisor int) float64 {
	return (float64(2*j+1) * math.Pi / 2) / float64(divisor*slope)
}

// bwcSection denormalizes a unit-cutoff (s_n = s/w1) analog prototype
// section into the real-frequency domain this package's AnalogSOS
// sections carry: s_n^0 terms scale by w1^2, s_n^1 terms by w1, s_n^2
// terms are untouched, mirroring designRLC/the existing lopass/hipass
// sections' convention.
func bwcSection(t0, t1, t2, b0, b1, b2, w1 float64) kernel.AnalogSOS {
	return kernel.AnalogSOS{
		T0: float32(t0 * w1 * w1), T1: float32(t1 * w1), T2: float32(t2),
		B0: float32(b0 * w1 * w1), B1: float32(b1 * w1), B2: float32(b2),
	}
}

// designButterworth distributes slope two-pole sections per
// calc_bwc_filter. Every section's Q comes from butterworthAngle;
// fQuality's k/kf generalization is collapsed to k=1 (plain Butterworth,
// matching the lopass/hipass sections below) so every shape shares one
// convention.
func designButterworth(p Params) []kernel.AnalogSOS {
	slope := p.Slope
	if slope < 1 {
		slope = 1
	}
	w1 := 2 * math.Pi * float64(p.F1)
	gain := float64(p.Gain)
	if gain == 0 {
		gain = 1
	}

	switch p.Shape {
	case ShapeHipass:
		out := make([]kernel.AnalogSOS, slope)
		for j := 0; j < slope; j++ {
			q := butterworthQ(j, slope)
			out[j] = kernel.AnalogSOS{T2: 1, B0: float32(w1 * w1), B1: float32(w1 / q), B2: 1}
		}
		return out

	case ShapeAllpass, ShapeAllpass2:
		out := make([]kernel.AnalogSOS, slope)
		for j := 0; j < slope; j++ {
			tcos := math.Cos(butterworthAngle(j, slope, 1))
			g := 1.0
			if j == 0 {
				g = gain
			}
			out[j] = bwcSection(g, -g*2*tcos, g, 1, 2*tcos, 1, w1)
		}
		return out

	case ShapeHishelf, ShapeLoshelf:
		sg := math.Sqrt(gain)
		fg := math.Exp(math.Log(sg) / (2 * float64(slope)))
		out := make([]kernel.AnalogSOS, slope)
		for j := 0; j < slope; j++ {
			tcos := math.Cos(butterworthAngle(j, slope, 2))
			g := 1.0
			if j == 0 {
				g = sg
			}
			if p.Shape == ShapeHishelf {
				out[j] = bwcSection(g/fg, g*2*tcos, g*fg, fg, 2*tcos, 1/fg, w1)
			} else {
				out[j] = bwcSection(g*fg, g*2*tcos, g/fg, 1/fg, 2*tcos, fg, w1)
			}
		}
		return out

	case ShapeBell:
		fg := math.Exp(math.Log(gain) / (2 * float64(slope)))
		out := make([]kernel.AnalogSOS, 2*slope)
		for j := 0; j < slope; j++ {
			tcos := math.Cos(butterworthAngle(j, slope, 2))
			if gain >= 1 {
				out[2*j] = bwcSection(1, 2*tcos*fg, fg*fg, 1, 2*tcos, 1, w1)
				out[2*j+1] = bwcSection(1, 2*tcos/fg, 1/(fg*fg), 1, 2*tcos, 1, w1)
			} else {
				out[2*j] = bwcSection(1, 2*tcos, 1, 1, 2*tcos/fg, 1/(fg*fg), w1)
				out[2*j+1] = bwcSection(1, 2*tcos, 1, 1, 2*tcos*fg, fg*fg, w1)
			}
		}
		return out

	case ShapeBandpass:
		f2 := float64(p.F2) / float64(p.F1)
		out := make([]kernel.AnalogSOS, 2*slope)
		for j := 0; j < slope; j++ {
			tcos := math.Cos(butterworthAngle(j, slope, 2))
			g := 1.0
			if j == 0 {
				g = gain
			}
			out[2*j] = bwcSection(0, 0, g, 1, 2*tcos, 1, w1)
			out[2*j+1] = bwcSection(1, 0, 0, 1, 2*tcos*f2, f2*f2, w1)
		}
		return out

	case ShapeNotch:
		// calc_bwc_filter has no BWC/LRX notch case; build it the way
		// ladderSections builds lopass/hipass, repeating designRLC's
		// single notch section slope times.
		w2 := 2 * math.Pi * float64(p.F2)
		bw := w2 - w1
		w0 := math.Sqrt(w1 * w2)
		out := make([]kernel.AnalogSOS, slope)
		for j := range out {
			out[j] = kernel.AnalogSOS{T0: float32(w0 * w0), T2: 1, B0: float32(w0 * w0), B1: float32(bw), B2: 1}
		}
		return out

	case ShapeLadderpass, ShapeLadderreject:
		pass := p.Shape == ShapeLadderpass
		// gain1/fg1 drive ladderpass's first cascade and always drive the
		// second (always hi-shelf) cascade; gain2/fg2 drive ladderreject's
		// first cascade and the second cascade's gain scaling, per
		// calc_bwc_filter.
		gain1, gain2 := math.Sqrt(gain), math.Sqrt(1/gain)
		if !pass {
			gain1, gain2 = gain2, gain1
		}
		fg1 := math.Exp(math.Log(gain1) / (2 * float64(slope)))
		fg2 := math.Exp(math.Log(gain2) / (2 * float64(slope)))
		xf := float64(p.F2) / float64(p.F1)
		out := make([]kernel.AnalogSOS, 2*slope)
		for j := 0; j < slope; j++ {
			tcos := math.Cos(butterworthAngle(j, slope, 2))

			fgA, gainA := fg1, gain1
			if !pass {
				fgA, gainA = fg2, gain2
			}
			g := 1.0
			if j == 0 {
				g = gainA
			}
			if pass {
				out[2*j] = bwcSection(g/fgA, g*2*tcos, g*fgA, fgA, 2*tcos, 1/fgA, w1)
			} else {
				out[2*j] = bwcSection(g*fgA, g*2*tcos, g/fgA, 1/fgA, 2*tcos, fgA, w1)
			}

			g2 := 1.0
			if j == 0 {
				g2 = gain2
			}
			out[2*j+1] = bwcSection(g2*fg1, g2*2*xf*tcos, g2*xf*xf/fg1, 1/fg1, 2*xf*tcos, fg1*xf*xf, w1)
		}
		return out

	default: // ShapeLopass is the common BWC/LRX use case
		out := make([]kernel.AnalogSOS, slope)
		for j := 0; j < slope; j++ {
			q := butterworthQ(j, slope)
			out[j] = kernel.AnalogSOS{T0: float32(w1 * w1), B0: float32(w1 * w1), B1: float32(w1 / q), B2: 1}
		}
		return out
	}
}

// butterworthQ is the lopass/hipass per-section quality factor
// 1/(2*cos(theta)), theta from butterworthAngle with divisor 2.
func butterworthQ(j, slope int) float64 {
	q := 1 / (2 * math.Cos(butterworthAngle(j, slope, 2)))
	if q < 0 {
		q = -q
	}
	return q
}
