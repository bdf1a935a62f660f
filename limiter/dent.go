package limiter

import "math"

// applyDent composes a gain-reduction "dent" into the gain buffer centered
// at block-relative sample index, with depth amp in [0,1]: 0 leaves gain
// untouched, 1 drives gain to zero at the center. The dent spans
// [center-attack, center+release+plateau] depending on Mode, per spec.md
// §4.5's Herm/Exp/Line families:
//
//   - HERM_*: a cubic-Hermite rise from (-1,0) to (A,1), a flat plateau,
//     a cubic-Hermite fall to (R,0).
//   - EXP_*: the same phases shaped by a+b*exp(c*n), c = 2/attack.
//   - LINE_*: linear rise/fall, no curvature.
//
// Wide variants use half the attack window; duck variants extend the
// plateau by half the release window; tail variants extend the release
// window itself. Per spec.md §9's Open Question resolution, when
// lookahead < attack the interpolation domain upper bound is still
// lookahead, not attack — kernelDomain below is always lookaheadSamples,
// never attackSamples, to preserve that behavior literally.
func (l *Limiter) applyDent(center int, amp float32, lookaheadSamples int) {
	if amp <= 0 {
		return
	}

	attack := l.attackSamples()
	release := l.releaseSamples()
	plateau := 0

	switch l.settings.Mode {
	case ModeHermWide, ModeExpWide, ModeLineWide:
		attack /= 2
	case ModeHermDuck, ModeExpDuck, ModeLineDuck:
		plateau = release / 2
	case ModeHermTail, ModeExpTail, ModeLineTail:
		release *= 2
	}

	kernelDomain := lookaheadSamples
	if kernelDomain < 1 {
		kernelDomain = 1
	}
	if attack > kernelDomain {
		attack = kernelDomain
	}
	if release > kernelDomain {
		release = kernelDomain
	}

	lo := center - attack
	hi := center + plateau + release

	for n := lo; n <= hi; n++ {
		idx := l.head + n
		if idx < 0 || idx >= len(l.gainBuf) {
			continue
		}
		var shape float32
		switch {
		case n < center:
			shape = riseShape(l.settings.Mode, float32(center-n), float32(attack))
		case n <= center+plateau:
			shape = 1
		default:
			shape = fallShape(l.settings.Mode, float32(n-center-plateau), float32(release))
		}
		l.gainBuf[idx] *= 1 - amp*shape
	}
}

func riseShape(mode Mode, distFromCenter, window float32) float32 {
	if window <= 0 {
		return 1
	}
	t := 1 - distFromCenter/window // 0 at edge, 1 at center
	if t < 0 {
		t = 0
	}
	switch lineFamily(mode) {
	case familyLine:
		return t
	case familyExp:
		return expDecay(distFromCenter, window)
	default:
		return hermite(t)
	}
}

func fallShape(mode Mode, distFromCenter, window float32) float32 {
	if window <= 0 {
		return 1
	}
	t := 1 - distFromCenter/window
	if t < 0 {
		t = 0
	}
	switch lineFamily(mode) {
	case familyLine:
		return t
	case familyExp:
		return expDecay(distFromCenter, window)
	default:
		return hermite(t)
	}
}

// hermite evaluates the cubic Hermite ease (3t^2-2t^3) matching a curve
// pinned at (0,0)/(1,1) with zero derivative at both ends.
func hermite(t float32) float32 {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return t * t * (3 - 2*t)
}

type family int

const (
	familyHerm family = iota
	familyExp
	familyLine
)

func lineFamily(m Mode) family {
	switch m {
	case ModeLineThin, ModeLineWide, ModeLineTail, ModeLineDuck:
		return familyLine
	case ModeExpThin, ModeExpWide, ModeExpTail, ModeExpDuck:
		return familyExp
	default:
		return familyHerm
	}
}

// expDecay evaluates a+b*exp(c*n) normalized to 1 at n=0 and 0 at n=window,
// with kernel rate c=2/attack as spec.md §4.5 specifies for EXP_* modes.
func expDecay(n, window float32) float32 {
	if window <= 0 {
		return 0
	}
	c := float32(2) / window
	num := expApprox(-c*n) - expApprox(-c*window)
	den := 1 - expApprox(-c*window)
	if den == 0 {
		return 0
	}
	v := num / den
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v
}

func expApprox(x float32) float32 {
	return float32(math.Exp(float64(x)))
}
