package limiter

import "math"

// alrState implements automatic level release (ALR) pre-shaping, per
// spec.md §4.5: an envelope e follows |sidechain| via one-pole
// attack/release; the pre-gain is 1 while e <= dbToLin(ALRKneeStartDB),
// threshold*M_SQRT1_2/e once e >= dbToLin(ALRKneeEndDB), and in between a
// cubic Hermite ease from 1 toward threshold*M_SQRT1_2/kneeEnd. The knee
// bounds are converted from dB on every sample, and only pre-gains below
// 1 are applied.
type alrState struct {
	tauAttack, tauRelease float32
	gain                  float32 // threshold * M_SQRT1_2
	kneeStart, kneeEnd    float32
	envelope              float32
}

const sqrt1_2 = float32(0.7071067811865476)

func (a *alrState) update(s Settings, sampleRate float32) {
	att := s.ALRAttackMs * sampleRate / 1000
	rel := s.ALRReleaseMs * sampleRate / 1000
	if att < 1 {
		att = 1
	}
	if rel < 1 {
		rel = 1
	}
	a.tauAttack = 1 - float32(math.Exp(math.Log(float64(1-sqrt1_2))/float64(att)))
	a.tauRelease = 1 - float32(math.Exp(math.Log(float64(1-sqrt1_2))/float64(rel)))
	a.gain = s.Threshold * sqrt1_2
	a.kneeStart = s.ALRKneeStartDB
	a.kneeEnd = s.ALRKneeEndDB
}

// apply runs the ALR envelope over sc and multiplies tmp by the resulting
// pre-gain in place.
func (a *alrState) apply(tmp, sc []float32) {
	for i, s := range sc {
		v := s
		if v < 0 {
			v = -v
		}
		if v > a.envelope {
			a.envelope += (v - a.envelope) * a.tauAttack
		} else {
			a.envelope += (v - a.envelope) * a.tauRelease
		}

		e := a.envelope
		if e <= 0 {
			continue
		}

		kneeStartLin := dbToLin(a.kneeStart)
		kneeEndLin := dbToLin(a.kneeEnd)
		var preGain float32 = 1

		switch {
		case e <= kneeStartLin:
			preGain = 1
		case e >= kneeEndLin:
			preGain = a.gain / e
		default:
			// Cubic Hermite interpolant across the soft-knee region.
			t := (e - kneeStartLin) / (kneeEndLin - kneeStartLin)
			preGain = 1 + (a.gain/kneeEndLin-1)*hermite(t)
		}
		if preGain < 1 {
			tmp[i] *= preGain
		}
	}
}

func dbToLin(db float32) float32 {
	return float32(math.Pow(10, float64(db)/20))
}
