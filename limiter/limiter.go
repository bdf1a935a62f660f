// Package limiter implements the look-ahead peak limiter from spec.md
// §4.5: a windowed peak-scanning gain reducer that composes interpolated
// "dent" shapes over a gain envelope, with automatic level-release (ALR)
// pre-shaping.
//
// Constants and the iterative dent-placement algorithm are grounded on
// original_source/src/main/dynamics/Limiter.cpp; the Hermite dent-shape
// evaluation style follows github.com/thesyncim/gopus's plc/plc.go
// windowed fade-shape approach.
package limiter

import (
	"fmt"

	"github.com/sondrelabs/dspcore"
	"github.com/sondrelabs/dspcore/internal/kernel"
)

// Granularity is the block buffer granularity, BUF_GRANULARITY in
// original_source/src/main/dynamics/Limiter.cpp.
const Granularity = 8192

// GainLowering is the per-LimiterPeaksMax-iterations knee relaxation
// factor, GAIN_LOWERING in original_source/src/main/dynamics/Limiter.cpp.
const GainLowering = 0.9886

// LimiterPeaksMax bounds how many peaks are hunted per block before the
// knee is relaxed. The original's LIMITER_PEAKS_MAX definition was not
// present in the retrieval pack's header excerpt; 16 is a conservative
// value consistent with the per-block budget (spec.md blocks are capped
// at Granularity samples, and a dent rarely needs more than a handful of
// iterations to fully suppress one peak region).
const LimiterPeaksMax = 16

// Mode selects the dent shape used when composing a gain reduction.
type Mode int

const (
	ModeHermThin Mode = iota
	ModeHermWide
	ModeHermTail
	ModeHermDuck
	ModeExpThin
	ModeExpWide
	ModeExpTail
	ModeExpDuck
	ModeLineThin
	ModeLineWide
	ModeLineTail
	ModeLineDuck
)

const (
	dirtyThreshold dspcore.DirtyBits = 1 << iota
	dirtyTiming
	dirtyALR
)

// Settings holds the limiter's staged (not-yet-applied) parameters.
type Settings struct {
	Threshold        float32
	ThresholdImmed   bool
	AttackMs         float32
	ReleaseMs        float32
	LookaheadMs      float32
	Knee             float32
	Mode             Mode
	ALREnabled       bool
	ALRAttackMs      float32
	ALRReleaseMs     float32
	ALRKneeStartDB   float32
	ALRKneeEndDB     float32
}

// Limiter is a windowed peak-scanning gain reducer.
type Limiter struct {
	sampleRate    float32
	maxLookahead  int
	settings      Settings
	liveThreshold float32
	liveKnee      float32
	dirty         dspcore.DirtyBits

	gainBuf []float32
	head    int

	alr alrState
}

// Init allocates the gain buffer sized per spec.md §4.5:
// 8*maxLookahead + 4*maxLookahead + Granularity floats, filled with 1.0.
func (l *Limiter) Init(maxSampleRate float32, maxLookaheadMs float32) error {
	if maxSampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive", dspcore.ErrBadArguments)
	}
	l.sampleRate = maxSampleRate
	l.maxLookahead = int(maxLookaheadMs * maxSampleRate / 1000)
	if l.maxLookahead < 1 {
		l.maxLookahead = 1
	}

	size := 8*l.maxLookahead + 4*l.maxLookahead + Granularity
	l.gainBuf = make([]float32, size)
	kernel.Fill(l.gainBuf, 1)
	l.head = 0
	l.liveThreshold = 1
	l.liveKnee = 1
	l.settings = Settings{Threshold: 1, Knee: 1, AttackMs: 2, ReleaseMs: 5, LookaheadMs: maxLookaheadMs}
	return nil
}

// SetThreshold queues a new threshold. When immediate is false, the gain
// buffer is ramped by new/old so samples already inside the lookahead
// window still obey the new threshold.
func (l *Limiter) SetThreshold(t float32, immediate bool) {
	if l.settings.Threshold == 0 {
		l.settings.Threshold = t
	}
	old := l.settings.Threshold
	l.settings.Threshold = t
	l.settings.ThresholdImmed = immediate
	l.dirty = l.dirty.Set(dirtyThreshold)
	if !immediate && old != 0 {
		ratio := t / old
		for i := range l.gainBuf {
			l.gainBuf[i] *= ratio
		}
	}
}

func (l *Limiter) SetAttack(ms float32)    { l.settings.AttackMs = ms; l.dirty = l.dirty.Set(dirtyTiming) }
func (l *Limiter) SetRelease(ms float32)   { l.settings.ReleaseMs = ms; l.dirty = l.dirty.Set(dirtyTiming) }
func (l *Limiter) SetLookahead(ms float32) { l.settings.LookaheadMs = ms; l.dirty = l.dirty.Set(dirtyTiming) }
func (l *Limiter) SetKnee(k float32)       { l.settings.Knee = k; l.dirty = l.dirty.Set(dirtyThreshold) }
func (l *Limiter) SetMode(m Mode)          { l.settings.Mode = m }
func (l *Limiter) SetALR(enabled bool, attackMs, releaseMs, kneeStartDB, kneeEndDB float32) {
	l.settings.ALREnabled = enabled
	l.settings.ALRAttackMs = attackMs
	l.settings.ALRReleaseMs = releaseMs
	l.settings.ALRKneeStartDB = kneeStartDB
	l.settings.ALRKneeEndDB = kneeEndDB
	l.dirty = l.dirty.Set(dirtyALR)
}

func (l *Limiter) lookaheadSamples() int {
	n := int(l.settings.LookaheadMs * l.sampleRate / 1000)
	if n < 0 {
		n = 0
	}
	if n > l.maxLookahead {
		n = l.maxLookahead
	}
	return n
}

func (l *Limiter) attackSamples() int {
	n := int(l.settings.AttackMs * l.sampleRate / 1000)
	if n < 1 {
		n = 1
	}
	return n
}

func (l *Limiter) releaseSamples() int {
	n := int(l.settings.ReleaseMs * l.sampleRate / 1000)
	if n < 1 {
		n = 1
	}
	return n
}

func (l *Limiter) updateSettings() {
	if l.dirty.HasAny(dirtyThreshold) {
		l.liveThreshold = l.settings.Threshold
		l.liveKnee = l.settings.Knee
		if l.liveKnee <= 0 {
			l.liveKnee = 1
		}
	}
	if l.dirty.HasAny(dirtyALR) && l.settings.ALREnabled {
		l.alr.update(l.settings, l.sampleRate)
	}
	l.dirty = 0
}

// Process reduces gain so that, after application, |sidechain[i]| stays
// within threshold*knee for every i, per invariant 10 in spec.md §8. It
// processes in blocks of at most Granularity samples, per spec.md §4.5's
// per-block algorithm.
func (l *Limiter) Process(gainOut, sidechain []float32, n int) error {
	l.updateSettings()
	if len(gainOut) < n || len(sidechain) < n {
		return fmt.Errorf("%w: buffer shorter than n", dspcore.ErrBadArguments)
	}

	lookahead := l.lookaheadSamples()
	done := 0
	for done < n {
		block := n - done
		if block > Granularity {
			block = Granularity
		}
		l.processBlock(gainOut[done:done+block], sidechain[done:done+block], lookahead)
		done += block
	}
	return nil
}

func (l *Limiter) processBlock(gainOut, sc []float32, lookahead int) {
	n := len(sc)

	// (1) fill the window ahead of head with 1.0, per spec.md §4.5.
	fillStart := l.head + l.maxLookahead + 3*l.maxLookahead
	fillEnd := fillStart + n
	if fillEnd > len(l.gainBuf) {
		fillEnd = len(l.gainBuf)
	}
	if fillStart < fillEnd {
		kernel.Fill(l.gainBuf[fillStart:fillEnd], 1)
	}

	tmp := make([]float32, n)
	for i, s := range sc {
		g := l.gainBuf[l.head+i]
		v := s
		if v < 0 {
			v = -v
		}
		tmp[i] = v * g
	}

	if l.settings.ALREnabled {
		l.alr.apply(tmp, sc)
	}

	knee := l.liveKnee
	iterations := 0
	for {
		idx, peak := maxAbsIndex(tmp)
		if peak <= l.liveThreshold*knee || l.liveThreshold <= 0 {
			break
		}
		amp := (peak - l.liveThreshold) / peak
		l.applyDent(idx, amp, lookahead)

		for i, s := range sc {
			g := l.gainBuf[l.head+i]
			v := s
			if v < 0 {
				v = -v
			}
			tmp[i] = v * g
		}

		iterations++
		if iterations%LimiterPeaksMax == 0 {
			knee *= GainLowering
		}
		if iterations > n*4 {
			break // guard against pathological inputs; should be unreachable
		}
	}

	for i := range gainOut {
		srcIdx := l.head - lookahead + i
		if srcIdx < 0 {
			gainOut[i] = 1
			continue
		}
		gainOut[i] = l.gainBuf[srcIdx]
	}

	l.head += n
	if l.head >= 8*l.maxLookahead {
		tailStart := l.head - 4*l.maxLookahead
		copy(l.gainBuf, l.gainBuf[tailStart:])
		l.head = 4 * l.maxLookahead
	}
}

func maxAbsIndex(buf []float32) (int, float32) {
	idx := 0
	var peak float32
	for i, v := range buf {
		av := v
		if av < 0 {
			av = -av
		}
		if av > peak {
			peak = av
			idx = i
		}
	}
	return idx, peak
}
