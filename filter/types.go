// Package filter implements the polymorphic second-order-section filter
// described in spec.md §4.1: analog prototype design (RLC, Butterworth,
// Linkwitz-Riley, APO cookbook, IEC weighting curves), discretization
// (bilinear, matched-Z, APO closed form), and per-sample application
// through a FilterBank.
//
// Closed-form design equations and the bilinear/matched-Z formulas follow
// original_source/src/main/filters/Filter.cpp; discrete application is a
// direct-form-I biquad update, written in the plain-loop style of
// github.com/thesyncim/gopus's celt/preemph.go and celt/postfilter.go.
package filter

// FilterChainsMax is the maximum slope / cascade count a filter or dynamic
// filter may request, matching spec.md §3.
const FilterChainsMax = 32

// Family selects the analog prototype family.
type Family int

const (
	FamilyRLC Family = iota // single-pole + optional 2-pole RLC sections
	FamilyBWC               // Butterworth, cascades on angles theta_j
	FamilyLRX               // Linkwitz-Riley (BWC cascade twice, halved gain, doubled slope)
	FamilyAPO               // EQ-APO cookbook biquad, computed directly in the discrete domain
	FamilyWeightA           // IEC 61672 A-weighting
	FamilyWeightB           // IEC B-weighting
	FamilyWeightC           // IEC C-weighting
	FamilyWeightD           // IEC D-weighting
	FamilyWeightK           // ITU-R 468 / K-weighting
)

// IsWeighted reports whether f is one of the fixed IEC/ITU weighting
// curves, which ignore Shape/F1/F2/Slope/Quality and always emit a fixed
// biquad sequence.
func (f Family) IsWeighted() bool {
	return f >= FamilyWeightA && f <= FamilyWeightK
}

// Transform selects the analog-to-digital discretization, orthogonal to
// Family except that FamilyAPO and the weighting families always use
// TransformAPO/TransformWeighted regardless of this field.
type Transform int

const (
	TransformBilinear Transform = iota
	TransformMatchedZ
	TransformAPO
	TransformWeighted
)

// Shape selects the filter's frequency-domain shape.
type Shape int

const (
	ShapeLopass Shape = iota
	ShapeHipass
	ShapeLoshelf
	ShapeHishelf
	ShapeBell
	ShapeBandpass
	ShapeNotch
	ShapeAllpass
	ShapeAllpass2
	ShapeLadderpass
	ShapeLadderreject
	ShapeResonance
	ShapeEnvelope
)

// Params is the tagged filter-parameter record from spec.md §3.
type Params struct {
	Family    Family
	Transform Transform
	Shape     Shape
	F1, F2    float32 // Hz
	Gain      float32 // linear, used by shelf/bell
	Slope     int     // 1..FilterChainsMax
	Quality   float32 // Q
}

// clampParams applies the clamps spec.md §4.1's update algorithm requires:
// slope in [1, FilterChainsMax], f1/f2 in [0, 0.49*sr], and swaps f1/f2
// when they bound a band with f2 < f1.
func clampParams(p Params, sampleRate float32) Params {
	if p.Slope < 1 {
		p.Slope = 1
	}
	if p.Slope > FilterChainsMax {
		p.Slope = FilterChainsMax
	}
	nyqGuard := 0.49 * sampleRate
	p.F1 = clampf(p.F1, 0, nyqGuard)
	p.F2 = clampf(p.F2, 0, nyqGuard)
	if bandShape(p.Shape) && p.F2 < p.F1 {
		p.F1, p.F2 = p.F2, p.F1
	}
	return p
}

func bandShape(s Shape) bool {
	switch s {
	case ShapeBandpass, ShapeNotch, ShapeLadderpass, ShapeLadderreject:
		return true
	default:
		return false
	}
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// biquadsFor returns the number of discrete biquads the given params
// produce once designed.
func biquadsFor(p Params) int {
	switch {
	case p.Family.IsWeighted():
		return len(discretizeWeighted(p.Family, 48000))
	case p.Transform == TransformAPO || p.Family == FamilyAPO:
		return 1
	default:
		return len(designAnalog(p))
	}
}
