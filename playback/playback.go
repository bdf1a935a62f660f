// Package playback implements the per-voice sample playback engine from
// spec.md §4.9: a state machine that plays one channel of a sample with
// pluggable loop behavior, advancing through a 2-element batch ring so
// that the batch after the currently-playing one is always pre-planned
// and ready to cross-fade in.
//
// Grounded directly on
// original_source/src/main/sampling/helpers/playback.cpp for the state
// machine, the batch-planning rules (compute_initial_batch,
// compute_next_batch, recompute_next_batch) and the loop-mode table. The
// per-sample envelope functions referenced there (put_batch_linear_direct
// and friends) live in a helper header outside the retrieval pack; this
// package's putBatch* functions reproduce their call contract — additive
// writes, fade envelopes capped at the batch length — under the linear
// and constant-power shapes spec.md §4.9 names.
package playback

import (
	"math"

	"github.com/sondrelabs/dspcore"
	"github.com/sondrelabs/dspcore/sample"
)

// State is the playback voice's state machine position.
type State int

const (
	StateNone State = iota
	StatePlay
	StateStop
	StateCancel
)

// LoopMode selects how the sample loops between nLoopStart and nLoopEnd.
type LoopMode int

const (
	LoopNone LoopMode = iota
	LoopDirect
	LoopReverse
	LoopDirectHalfPP
	LoopReverseHalfPP
	LoopDirectFullPP
	LoopReverseFullPP
	LoopDirectSmartPP
	LoopReverseSmartPP
)

// CrossfadeType selects the envelope shape applied across batch
// boundaries and at cancellation fade-outs.
type CrossfadeType int

const (
	CrossfadeLinear CrossfadeType = iota
	CrossfadeConstPower
)

// batchType classifies a planned batch by its position relative to the
// loop region.
type batchType int

const (
	batchNone batchType = iota
	batchHead
	batchLoop
	batchTail
)

// batch is one planned span of playback: [start, end) sample indices (end
// < start for a reverse-direction span), the output timestamp at which it
// begins, and the cross-fade ramp lengths at its edges.
type batch struct {
	start, end       int
	timestamp        uint64
	fadeIn, fadeOut  int
	typ              batchType
}

func clearBatch(b *batch) { *b = batch{} }

func batchLength(b *batch) int {
	if b.start < b.end {
		return b.end - b.start
	}
	return b.start - b.end
}

// Settings configures a call to Start.
type Settings struct {
	Start        int
	Delay        uint64
	SampleID     int
	Channel      int
	Volume       float32
	Reverse      bool
	LoopMode     LoopMode
	LoopStart    int
	LoopEnd      int
	XFadeLength  int
	XFadeType    CrossfadeType
}

// Playback is one playback voice. The zero value is an inactive voice
// ready for Start.
type Playback struct {
	spl        *sample.Sample
	timestamp  uint64
	cancelTime uint64
	serial     uint32
	id         int
	channel    int
	state      State
	volume     float32
	reverse    bool
	position   int64

	cancelFadeout int // length of the CANCEL fade-out, in samples

	loopMode LoopMode
	loopStart, loopEnd int
	xfade     int
	xfadeType CrossfadeType

	batch [2]batch
}

// State returns the voice's current state.
func (pb *Playback) State() State { return pb.state }

// ID returns the sample id passed to the most recent Start.
func (pb *Playback) ID() int { return pb.id }

// Serial returns a counter incremented on every Reset, letting a caller
// detect that a pooled voice slot has been recycled since it last held a
// reference.
func (pb *Playback) Serial() uint32 { return pb.serial }

// Position returns the last sample index played, or -1 if playback has
// not produced a sample yet.
func (pb *Playback) Position() int64 { return pb.position }

// Clear resets the voice to its zero state without touching Serial.
func (pb *Playback) Clear() {
	serial := pb.serial
	*pb = Playback{}
	pb.serial = serial
	pb.position = -1
	pb.cancelFadeout = -1
}

// Reset clears the voice and increments Serial, invalidating any handle a
// caller is still holding to the previous occupant of this slot.
func (pb *Playback) Reset() {
	serial := pb.serial + 1
	*pb = Playback{}
	pb.serial = serial
	pb.position = -1
	pb.cancelFadeout = -1
}

func swapLoopDirection(m LoopMode) LoopMode {
	switch m {
	case LoopDirect:
		return LoopReverse
	case LoopReverse:
		return LoopDirect
	case LoopDirectHalfPP:
		return LoopReverseHalfPP
	case LoopReverseHalfPP:
		return LoopDirectHalfPP
	case LoopDirectFullPP:
		return LoopReverseFullPP
	case LoopReverseFullPP:
		return LoopDirectFullPP
	case LoopDirectSmartPP:
		return LoopReverseSmartPP
	case LoopReverseSmartPP:
		return LoopDirectSmartPP
	default:
		return m
	}
}

func computeInitialBatch(pb *Playback, settings *Settings) {
	sampleLen := pb.spl.Length()
	if sampleLen <= 0 {
		pb.state = StateNone
		return
	}

	start := settings.Start
	if start > sampleLen-1 {
		start = sampleLen - 1
	}
	if start < 0 {
		start = 0
	}

	if pb.loopStart == pb.loopEnd || pb.loopStart >= sampleLen || pb.loopEnd >= sampleLen {
		pb.loopMode = LoopNone
	}

	b := &pb.batch[0]
	b.timestamp = settings.Delay
	b.fadeIn = 0

	if pb.loopMode == LoopNone {
		b.start = start
		b.end = sampleLen
		b.fadeOut = 0
		b.typ = batchTail
		return
	}

	if pb.loopEnd < pb.loopStart {
		pb.loopStart, pb.loopEnd = pb.loopEnd, pb.loopStart
		pb.loopMode = swapLoopDirection(pb.loopMode)
	}

	loopLen := pb.loopEnd - pb.loopStart
	if pb.xfade > loopLen/2 {
		pb.xfade = loopLen / 2
	}
	b.start = start
	b.fadeIn = 0
	b.fadeOut = 0

	switch {
	case start < pb.loopStart:
		b.end = pb.loopStart
		b.typ = batchHead

	case start < pb.loopEnd:
		switch pb.loopMode {
		case LoopDirect, LoopDirectHalfPP, LoopDirectFullPP, LoopDirectSmartPP:
			b.end = pb.loopEnd
			b.typ = batchLoop
		case LoopReverse, LoopReverseHalfPP, LoopReverseFullPP, LoopReverseSmartPP:
			b.end = pb.loopStart
			b.typ = batchLoop
		default:
			b.end = sampleLen
			b.typ = batchTail
		}

	default:
		b.end = sampleLen
		b.typ = batchTail
	}
}

func loopNotAllowed(pb *Playback) bool {
	switch pb.state {
	case StatePlay:
		return false
	case StateStop, StateCancel:
		s := &pb.batch[0]
		return pb.cancelTime <= s.timestamp+uint64(batchLength(s))
	default:
		return true
	}
}

func checkBatchesSequential(prev, next *batch) bool {
	if prev.end != next.start {
		return false
	}
	if prev.start < prev.end {
		return next.start < next.end
	}
	return next.end < next.start
}

func computeNextBatchRangeAfterHead(pb *Playback) {
	sampleLen := pb.spl.Length()
	b := &pb.batch[1]

	if loopNotAllowed(pb) {
		b.start = pb.loopStart
		b.end = sampleLen
		b.typ = batchTail
		return
	}

	switch pb.loopMode {
	case LoopDirect, LoopDirectHalfPP, LoopDirectFullPP, LoopDirectSmartPP:
		b.start = pb.loopStart
		b.end = pb.loopEnd
		b.typ = batchLoop
	case LoopReverse, LoopReverseHalfPP, LoopReverseFullPP, LoopReverseSmartPP:
		b.start = pb.loopEnd
		b.end = pb.loopStart
		b.typ = batchLoop
	default:
		b.start = pb.loopStart
		b.end = sampleLen
		b.typ = batchTail
	}
}

func computeNextBatchRangeInsideLoop(pb *Playback) {
	sampleLen := pb.spl.Length()
	s := &pb.batch[0]
	b := &pb.batch[1]

	if loopNotAllowed(pb) {
		switch pb.loopMode {
		case LoopDirectFullPP:
			if s.start >= s.end {
				b.start, b.end, b.typ = pb.loopEnd, sampleLen, batchTail
				return
			}
		case LoopReverseFullPP, LoopDirectSmartPP, LoopReverseSmartPP:
			if s.end >= s.start {
				b.start, b.end, b.typ = pb.loopEnd, sampleLen, batchTail
				return
			}
		default:
			b.start, b.end, b.typ = pb.loopEnd, sampleLen, batchTail
			return
		}
	}

	switch pb.loopMode {
	case LoopDirect:
		b.start, b.end, b.typ = pb.loopStart, pb.loopEnd, batchLoop
	case LoopReverse:
		b.start, b.end, b.typ = pb.loopEnd, pb.loopStart, batchLoop
	case LoopDirectHalfPP, LoopDirectFullPP, LoopDirectSmartPP,
		LoopReverseHalfPP, LoopReverseFullPP, LoopReverseSmartPP:
		if s.start < s.end {
			b.start, b.end = pb.loopEnd, pb.loopStart
		} else {
			b.start, b.end = pb.loopStart, pb.loopEnd
		}
		b.typ = batchLoop
	default:
		b.start, b.end, b.typ = pb.loopStart, sampleLen, batchTail
	}
}

func computeNextBatch(pb *Playback) {
	s := &pb.batch[0]
	b := &pb.batch[1]

	switch s.typ {
	case batchHead:
		computeNextBatchRangeAfterHead(pb)
	case batchLoop:
		computeNextBatchRangeInsideLoop(pb)
	default:
		clearBatch(b)
		return
	}

	b.timestamp = s.timestamp + uint64(batchLength(s))
	s.fadeOut = 0
	b.fadeIn = 0
	b.fadeOut = 0

	if pb.xfade > 0 && !checkBatchesSequential(s, b) {
		s.fadeOut = pb.xfade
		b.fadeIn = pb.xfade

		if s.typ != batchHead {
			b.timestamp -= uint64(pb.xfade)
			if b.typ == batchTail {
				b.start -= pb.xfade
			}
		} else {
			s.end += pb.xfade
		}
	}
}

func recomputeNextBatch(pb *Playback) {
	s := &pb.batch[0]
	b := &pb.batch[1]

	switch b.typ {
	case batchHead, batchLoop:
	default:
		return
	}

	if pb.cancelTime >= s.timestamp && pb.cancelTime < b.timestamp {
		computeNextBatch(pb)
	}
}

func completeCurrentBatch(pb *Playback) {
	pb.batch[0] = pb.batch[1]
	if pb.batch[0].typ == batchNone {
		pb.state = StateNone
		return
	}
	computeNextBatch(pb)
}

// linearFadeGain applies a linear ramp at the start (over fadeIn samples)
// and end (over the last fadeOut samples) of a batch of the given length.
func linearFadeGain(pos, length, fadeIn, fadeOut int) float32 {
	g := float32(1)
	if fadeIn > 0 && pos < fadeIn {
		g = float32(pos) / float32(fadeIn)
	}
	if fadeOut > 0 {
		rem := length - pos
		if rem < fadeOut {
			g2 := float32(rem) / float32(fadeOut)
			if g2 < g {
				g = g2
			}
		}
	}
	return g
}

// constPowerFadeGain is linearFadeGain's equal-power counterpart: a
// sin(pi/2 * t) ramp at each edge, so a cross-faded pair of batches sums
// to constant energy rather than constant amplitude.
func constPowerFadeGain(pos, length, fadeIn, fadeOut int) float32 {
	g := float32(1)
	if fadeIn > 0 && pos < fadeIn {
		t := float64(pos) / float64(fadeIn)
		g = float32(math.Sin(t * math.Pi / 2))
	}
	if fadeOut > 0 {
		rem := length - pos
		if rem < fadeOut {
			t := float64(rem) / float64(fadeOut)
			g2 := float32(math.Sin(t * math.Pi / 2))
			if g2 < g {
				g = g2
			}
		}
	}
	return g
}

type fadeGainFunc func(pos, length, fadeIn, fadeOut int) float32

func putBatchDirect(dst, src []float32, b *batch, batchOffset, samples int, volume float32, fade fadeGainFunc) int {
	length := b.end - b.start
	todo := length - batchOffset
	if todo > samples {
		todo = samples
	}
	if todo < 0 {
		todo = 0
	}
	for i := 0; i < todo; i++ {
		pos := batchOffset + i
		g := fade(pos, length, b.fadeIn, b.fadeOut)
		dst[i] += src[b.start+pos] * volume * g
	}
	return todo
}

func putBatchReverse(dst, src []float32, b *batch, batchOffset, samples int, volume float32, fade fadeGainFunc) int {
	length := b.start - b.end
	todo := length - batchOffset
	if todo > samples {
		todo = samples
	}
	if todo < 0 {
		todo = 0
	}
	for i := 0; i < todo; i++ {
		pos := batchOffset + i
		g := fade(pos, length, b.fadeIn, b.fadeOut)
		dst[i] += src[b.start-pos] * volume * g
	}
	return todo
}

// executeBatch writes up to samples output samples of batch b, additively
// into dst, advancing pb.position. It returns the number of output
// samples actually advanced (which can be less than samples if the batch
// has not started yet or runs out before samples is reached).
func executeBatch(dst []float32, b *batch, pb *Playback, samples int) int {
	if b.typ == batchNone {
		return 0
	}

	timestamp := pb.timestamp
	offset := 0
	if timestamp < b.timestamp {
		skip := b.timestamp - timestamp
		if skip >= uint64(samples) {
			return samples
		}
		timestamp += skip
		offset += int(skip)
	}

	batchOffset := int(timestamp - b.timestamp)
	src := pb.spl.Channel(pb.channel)
	fade := linearFadeGain
	if pb.xfadeType == CrossfadeConstPower {
		fade = constPowerFadeGain
	}

	var processed int
	if b.start < b.end {
		processed = putBatchDirect(dst[offset:], src, b, batchOffset, samples-offset, pb.volume, fade)
		pb.position = int64(b.start + batchOffset + processed)
	} else {
		processed = putBatchReverse(dst[offset:], src, b, batchOffset, samples-offset, pb.volume, fade)
		pb.position = int64(b.start - batchOffset - processed)
	}

	return offset + processed
}

// applyFadeOut overwrites the CANCEL fade-out ramp in place over dst,
// once the cancellation point has been reached.
func applyFadeOut(dst []float32, pb *Playback, samples int) int {
	timestamp := pb.timestamp
	offset := 0
	if timestamp < pb.cancelTime {
		skip := pb.cancelTime - timestamp
		if skip >= uint64(samples) {
			return samples
		}
		timestamp += skip
		offset += int(skip)
	}

	if timestamp >= pb.cancelTime+uint64(pb.cancelFadeout) {
		return offset
	}

	remaining := samples - offset
	span := int(pb.cancelTime + uint64(pb.cancelFadeout) - timestamp)
	todo := remaining
	if span < todo {
		todo = span
	}

	d := dst[offset:]
	k := float32(1) / float32(pb.cancelFadeout)
	t := int(timestamp - pb.cancelTime)
	for i := 0; i < todo; i++ {
		d[i] = d[i] * (1 - float32(t+i)*k)
	}

	return offset + todo
}

// Start begins playing spl's channel according to settings, planning the
// first two batches of the batch ring.
func (pb *Playback) Start(spl *sample.Sample, settings Settings) error {
	if spl == nil {
		return dspcore.ErrBadArguments
	}

	pb.timestamp = 0
	pb.cancelTime = 0
	pb.spl = spl
	pb.serial++
	pb.id = settings.SampleID
	pb.channel = settings.Channel
	pb.state = StatePlay
	pb.volume = settings.Volume
	pb.reverse = settings.Reverse
	pb.position = -1
	pb.cancelFadeout = 0
	pb.loopMode = settings.LoopMode
	pb.loopStart = settings.LoopStart
	pb.loopEnd = settings.LoopEnd
	pb.xfade = settings.XFadeLength
	pb.xfadeType = settings.XFadeType

	clearBatch(&pb.batch[0])
	clearBatch(&pb.batch[1])

	computeInitialBatch(pb, &settings)
	computeNextBatch(pb)
	return nil
}

// Process advances the voice by up to n samples, writing into dst (which
// Process adds into — it does not zero dst first, so loop-edge
// cross-fades from the outgoing and incoming batch both land in the same
// samples). It returns the number of samples actually written; a return
// of 0 means the voice has reached STATE_NONE and produces nothing more.
func (pb *Playback) Process(dst []float32, n int) int {
	offset := 0
	for offset < n {
		todo := n - offset
		var processed int

		switch pb.state {
		case StatePlay, StateStop:
			processed = executeBatch(dst[offset:], &pb.batch[0], pb, todo)
			executeBatch(dst[offset:], &pb.batch[1], pb, processed)
			if processed < todo {
				completeCurrentBatch(pb)
			}
			offset += processed

		case StateCancel:
			if pb.timestamp >= pb.cancelTime+uint64(pb.cancelFadeout) {
				pb.state = StateNone
				processed = 0
				break
			}

			span := int(pb.cancelTime + uint64(pb.cancelFadeout) - pb.timestamp)
			if span < todo {
				todo = span
			}

			processed = executeBatch(dst[offset:], &pb.batch[0], pb, todo)
			executeBatch(dst[offset:], &pb.batch[1], pb, processed)
			processed = applyFadeOut(dst[offset:], pb, processed)
			if processed < todo {
				completeCurrentBatch(pb)
			}
			offset += processed

		default:
			return offset
		}

		pb.timestamp += uint64(processed)
	}
	return offset
}

// Stop requests graceful completion: the currently-planned loop iteration
// finishes, then playback falls through to the tail instead of looping
// again. delay postpones the stop point by that many samples.
func (pb *Playback) Stop(delay uint64) {
	if pb.state != StatePlay {
		return
	}
	pb.state = StateStop
	pb.cancelTime = pb.timestamp + delay
	recomputeNextBatch(pb)
}

// Cancel requests an immediate fade-out of the given length, starting
// delay samples from now. It returns false if the voice was already
// idle or cancelled.
func (pb *Playback) Cancel(fadeout, delay uint64) bool {
	switch pb.state {
	case StatePlay, StateStop:
		pb.state = StateCancel
		pb.cancelTime = pb.timestamp + delay
		pb.cancelFadeout = int(fadeout)
		recomputeNextBatch(pb)
		return true
	default:
		return false
	}
}
