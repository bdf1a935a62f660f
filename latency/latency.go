// Package latency implements the chirp-based round-trip latency detector
// from spec.md §4.12: a linear chirp is emitted on the output side while a
// matched anti-chirp correlator runs on the input side, and the sample
// offset of the correlation peak gives the round-trip latency in samples.
//
// Grounded directly on
// original_source/src/main/util/LatencyDetector.cpp: update_settings's
// chirp-system derivation (FFT-length doubling, the
// closed-form chirp frequency response with imposed Hermitian symmetry),
// detect_peak, and the two independent state machines driving
// process_in (IP_BYPASS/IP_WAIT/IP_DETECT) and process_out
// (OP_BYPASS/OP_FADEOUT/OP_PAUSE/OP_EMIT/OP_FADEIN). The chirp's inverse
// FFT and the correlation step use internal/fft in place of the original's
// dsp::reverse_fft and dsp::fastconv_parse/fastconv_parse_apply, neither of
// which has a declaration anywhere in the retrieval pack; see DESIGN.md for
// how the replacement convolution scheme was built.
package latency

import (
	"math"

	"github.com/sondrelabs/dspcore"
	"github.com/sondrelabs/dspcore/internal/fft"
)

type ipState int

const (
	ipBypass ipState = iota
	ipWait
	ipDetect
)

type opState int

const (
	opBypass opState = iota
	opFadeout
	opPause
	opEmit
	opFadein
)

const (
	defaultAbsThreshold  = 1e-3
	defaultPeakThreshold = 1e-3
)

// Detector measures the round-trip latency of whatever sits between its
// output and input (an audio interface, a device under test, a network
// link) by playing a chirp and correlating the returned signal against it.
// The zero value is not usable; call Init first.
type Detector struct {
	sampleRate float32

	duration   float32 // seconds
	delayRatio float32
	modified   bool

	durationSamples int
	n2piMult        float32
	alpha, beta     float32
	length          int // fft length, power of two
	convScale       float32

	chirp          []float32
	kernelSpectrum []complex128 // precomputed FFT of the zero-padded anti-chirp

	ip        ipState
	igTime    int
	igStart   int
	igStop    int
	detect    float32 // seconds
	nDetect   int
	detectPos int // nDetectCounter

	op           opState
	ogTime       int
	ogStart      int
	gain         float32
	gainDelta    float32
	fade         float32 // seconds
	nFade        int
	pause        float32 // seconds
	nPause       int
	pauseCounter int
	emitCounter  int

	absThreshold  float32
	peakThreshold float32
	peakValue     float32
	peakPosition  int
	timeOrigin    int

	capture []float32 // length `length`, written modulo length as samples arrive
	convBuf []float32 // length 2*length, the overlap-add correlation accumulator

	cycleComplete   bool
	latencyDetected bool
	latency         int

	sync bool
}

// Init prepares the detector for the given sample rate, matching the
// original's 150ms chirp / 500ms detect window / 10ms fade / 500ms pause
// defaults.
func (d *Detector) Init(sampleRate float32) {
	*d = Detector{
		sampleRate:    sampleRate,
		duration:      0.15,
		modified:      true,
		detect:        0.5,
		fade:          0.01,
		pause:         0.5,
		gain:          1,
		absThreshold:  defaultAbsThreshold,
		peakThreshold: defaultPeakThreshold,
		ip:            ipBypass,
		op:            opBypass,
		igStop:        -1,
		sync:          true,
	}
}

func secondsToSamples(sampleRate, seconds float32) int {
	return int(seconds*sampleRate + 0.5)
}

func samplesToSeconds(sampleRate float32, samples int) float32 {
	if sampleRate <= 0 {
		return 0
	}
	return float32(samples) / sampleRate
}

// SetDuration sets the chirp length in seconds.
func (d *Detector) SetDuration(seconds float32) {
	if d.duration == seconds {
		return
	}
	d.duration = seconds
	d.modified = true
	d.sync = true
}

// SetDelayRatio controls the balance between the chirp's group-delay slope
// and its bandwidth (the original's causality constraint keeps this in
// (0,4]).
func (d *Detector) SetDelayRatio(ratio float32) {
	if d.delayRatio == ratio || ratio <= 0 {
		return
	}
	if ratio > 4 {
		ratio = 4
	}
	d.delayRatio = ratio
	d.modified = true
	d.sync = true
}

// SetAbsThreshold sets the minimum absolute correlation value that counts
// as a candidate peak.
func (d *Detector) SetAbsThreshold(threshold float32) {
	if d.absThreshold == threshold {
		return
	}
	if threshold > 0 && threshold <= 1 {
		d.absThreshold = threshold
	} else {
		d.absThreshold = defaultAbsThreshold
	}
}

// SetPeakThreshold sets the minimum rise over the previous peak required
// to trigger early detection.
func (d *Detector) SetPeakThreshold(threshold float32) {
	if d.peakThreshold == threshold {
		return
	}
	if threshold > 0 && threshold <= 1 {
		d.peakThreshold = threshold
	} else {
		d.peakThreshold = defaultPeakThreshold
	}
}

// updateSettings rebuilds the chirp system if its parameters changed, and
// always refreshes the derived sample counts of the two processors.
func (d *Detector) updateSettings() {
	if !d.sync {
		return
	}

	if d.modified {
		d.durationSamples = secondsToSamples(d.sampleRate, d.duration)

		d.n2piMult = float32(d.durationSamples) / (6 - d.delayRatio)
		d.alpha = d.n2piMult * d.delayRatio
		d.beta = d.n2piMult * (2 - d.delayRatio) * float32(1/math.Pi)

		length := 1
		for float32(length) < float32(d.durationSamples)+d.alpha {
			length <<= 1
		}
		d.length = length

		d.buildChirp()
		d.modified = false
	}

	d.nFade = secondsToSamples(d.sampleRate, d.fade)
	d.gainDelta = d.gain / float32(d.nFade+1)
	d.nPause = secondsToSamples(d.sampleRate, d.pause)
	d.nDetect = d.durationSamples + secondsToSamples(d.sampleRate, d.detect)

	d.capture = make([]float32, d.length)
	d.convBuf = make([]float32, 2*d.length)

	d.sync = false
}

// buildChirp derives the chirp's frequency response in closed form (a
// parabolic phase, giving a linear group delay across the band), imposes
// Hermitian symmetry so the inverse FFT is real, and stores the
// time-domain chirp plus the precomputed FFT image of its time-reversed
// anti-chirp used for correlation.
func (d *Detector) buildChirp() {
	n := d.length
	posFreqLim := n/2 + 1
	sample2Omega := float32(math.Pi) / float32(posFreqLim)

	re := make([]float32, n)
	im := make([]float32, n)
	for k := 0; k < posFreqLim; k++ {
		omega := float32(k) * sample2Omega
		angle := (d.alpha + d.beta*omega) * omega
		re[k] = float32(math.Cos(float64(angle)))
		im[k] = -float32(math.Sin(float64(angle)))
	}
	for k := posFreqLim; k < n; k++ {
		idx := (posFreqLim-1)*2 - k
		re[k] = re[idx]
		im[k] = -im[idx]
	}

	buf := make([]complex128, n)
	for i := range buf {
		buf[i] = complex(float64(re[i]), float64(im[i]))
	}
	fft.Get(n).Inverse(buf)

	chirp := make([]float32, n)
	var maxAbs float32
	for i, c := range buf {
		v := float32(real(c))
		chirp[i] = v
		if a := float32(math.Abs(float64(v))); a > maxAbs {
			maxAbs = a
		}
	}
	d.convScale = maxAbs * maxAbs
	if maxAbs > 0 {
		for i := range chirp {
			chirp[i] /= maxAbs
		}
	}
	d.chirp = chirp

	antiChirp := make([]float32, n)
	for i, v := range chirp {
		antiChirp[n-1-i] = v
	}

	convSize := 2 * n
	kernel := make([]complex128, convSize)
	for i, v := range antiChirp {
		kernel[i] = complex(float64(v), 0)
	}
	fft.Get(convSize).Forward(kernel)
	d.kernelSpectrum = kernel
}

// correlate runs the capture block through the FFT correlator and
// accumulates the result into the overlap-add buffer. This replaces the
// original's fastconv_parse_apply call; it is a plain block-FFT linear
// convolution rather than a port, since fastconv_parse/fastconv_parse_apply
// are declared in a header outside the retrieval pack.
func (d *Detector) correlate() {
	n := d.length
	convSize := 2 * n

	block := make([]complex128, convSize)
	for i, v := range d.capture {
		block[i] = complex(float64(v), 0)
	}
	state := fft.Get(convSize)
	state.Forward(block)
	for i := range block {
		block[i] *= d.kernelSpectrum[i]
	}
	state.Inverse(block)

	for i := 0; i < convSize; i++ {
		d.convBuf[i] += float32(real(block[i]))
	}

	d.detectPeak(d.convBuf[:n])

	copy(d.convBuf[:n], d.convBuf[n:])
	for i := n; i < convSize; i++ {
		d.convBuf[i] = 0
	}
}

// detectPeak scans buf for the highest absolute correlation value seen so
// far. A sufficiently large jump over the previous peak triggers early
// detection and flips both processors out of capture mode immediately,
// rather than waiting for nDetect to force the transition.
func (d *Detector) detectPeak(buf []float32) {
	position := 0
	best := float32(0)
	for i, v := range buf {
		a := float32(math.Abs(float64(v)))
		if a > best {
			best = a
			position = i
		}
	}

	value := d.convScale * best
	if value <= d.peakValue || value <= d.absThreshold {
		return
	}

	delta := value - d.peakValue
	d.peakValue = value
	d.peakPosition = position + d.detectPos - d.length
	d.latency = d.peakPosition - d.timeOrigin

	if d.latency >= 0 && delta > d.peakThreshold {
		d.latencyDetected = true
		d.ip = ipBypass
		d.op = opFadein
		d.igStop = d.igTime
		d.cycleComplete = true
	}
}

// processIn runs the input (capture/correlation) state machine, copying
// src through to dst unchanged; latency detection is a side effect run
// against an internal capture buffer, never altering the signal itself.
func (d *Detector) processIn(dst, src []float32, n int) {
	if d.sync {
		d.updateSettings()
	}

	off := 0
	for off < n {
		switch d.ip {
		case ipDetect:
			captureIdx := d.detectPos % d.length
			todo := d.length - captureIdx
			if todo > n-off {
				todo = n - off
			}

			copy(d.capture[captureIdx:captureIdx+todo], src[off:off+todo])
			copy(dst[off:off+todo], src[off:off+todo])

			d.detectPos += todo
			d.igTime += todo
			off += todo

			if d.detectPos%d.length == 0 {
				d.correlate()
			}

			if d.detectPos >= d.nDetect {
				d.ip = ipBypass
				d.op = opFadein
				d.igStop = d.igTime
				d.cycleComplete = true
			}

		case ipWait:
			d.igTime += n - off
			copy(dst[off:n], src[off:n])
			off = n

		default: // ipBypass
			copy(dst[off:n], src[off:n])
			off = n
		}
	}
}

// processOut runs the output (chirp emission / fade) state machine
// in place over buf.
func (d *Detector) processOut(buf []float32, n int) {
	if d.sync {
		d.updateSettings()
	}

	off := 0
	for off < n {
		switch d.op {
		case opFadeout:
			for off < n {
				d.gain -= d.gainDelta
				if d.gain <= 0 {
					d.gain = 0
					d.pauseCounter = d.nPause
					d.op = opPause
					break
				}
				buf[off] *= d.gain
				off++
				d.ogTime++
			}

		case opPause:
			todo := d.pauseCounter
			if todo > n-off {
				todo = n - off
			}
			for i := 0; i < todo; i++ {
				buf[off+i] = 0
			}
			d.pauseCounter -= todo
			d.ogTime += todo
			off += todo

			if d.pauseCounter <= 0 {
				d.emitCounter = 0
				d.op = opEmit
				d.ip = ipDetect
				d.ogStart = d.ogTime
				d.igStart = d.igTime
				d.peakValue = 0
				d.peakPosition = 0
				d.timeOrigin = d.length - (d.igStart - d.ogStart) - 1
				d.latencyDetected = false
				d.latency = 0
				for i := range d.convBuf {
					d.convBuf[i] = 0
				}
			}

		case opEmit:
			var todo int
			if d.emitCounter < d.length {
				todo = d.length - d.emitCounter
				if todo > n-off {
					todo = n - off
				}
				copy(buf[off:off+todo], d.chirp[d.emitCounter:d.emitCounter+todo])
			} else {
				todo = n - off
				for i := 0; i < todo; i++ {
					buf[off+i] = 0
				}
			}
			d.emitCounter += todo
			d.ogTime += todo
			off += todo

		case opFadein:
			for off < n {
				d.gain += d.gainDelta
				if d.gain >= 1 {
					d.gain = 1
					d.op = opBypass
					break
				}
				buf[off] *= d.gain
				off++
				d.ogTime++
			}

		default: // opBypass
			off = n
		}
	}
}

// Process runs n samples of src through the detector, writing the result
// (the input signal with the output chirp/fade superimposed over it by the
// caller's loopback) into dst. dst and src may alias.
func (d *Detector) Process(dst, src []float32, n int) error {
	if len(dst) < n || len(src) < n {
		return dspcore.ErrBadArguments
	}
	d.processIn(dst, src, n)
	d.processOut(dst, n)
	return nil
}

// StartCapture begins a new measurement cycle: the output fades out,
// pauses, emits the chirp, then fades back in while the input side
// correlates the returned signal against the anti-chirp.
func (d *Detector) StartCapture() {
	d.ip = ipWait
	d.igTime = 0
	d.igStart = 0
	d.igStop = -1
	d.detectPos = 0

	d.op = opFadeout
	d.ogTime = 0
	d.ogStart = 0
	d.pauseCounter = 0
	d.emitCounter = 0

	d.peakValue = 0
	d.peakPosition = 0
	d.timeOrigin = 0

	d.cycleComplete = false
	d.latencyDetected = false
	d.latency = 0
}

// ResetCapture aborts any measurement in progress and returns both
// processors to bypass.
func (d *Detector) ResetCapture() {
	d.ip = ipBypass
	d.igTime = 0
	d.igStart = 0
	d.igStop = -1
	d.detectPos = 0

	d.op = opBypass
	d.ogTime = 0
	d.ogStart = 0
	d.pauseCounter = 0
	d.emitCounter = 0

	d.peakValue = 0
	d.peakPosition = 0
	d.timeOrigin = 0

	d.cycleComplete = false
	d.latencyDetected = false
	d.latency = 0
}

// CycleComplete reports whether the most recent measurement cycle has
// finished (either by detecting a peak or by exhausting the detect
// window).
func (d *Detector) CycleComplete() bool { return d.cycleComplete }

// LatencyDetected reports whether the last completed cycle actually found
// a correlation peak, as opposed to timing out.
func (d *Detector) LatencyDetected() bool { return d.latencyDetected }

// DurationSeconds returns the chirp's actual duration once rounded to a
// whole number of samples.
func (d *Detector) DurationSeconds() float32 {
	return samplesToSeconds(d.sampleRate, d.durationSamples)
}

// LatencySeconds returns the measured round-trip latency, or 0 if the last
// cycle did not detect a peak.
func (d *Detector) LatencySeconds() float32 {
	if !d.latencyDetected {
		return 0
	}
	return samplesToSeconds(d.sampleRate, d.latency)
}
