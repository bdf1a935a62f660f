// Package oscillator implements the band-limited periodic waveform
// synthesizer from spec.md §4.7: a fixed-point phase accumulator driving
// native or oversampled/downsampled waveform generators.
//
// Per-waveform closed-form generators, the phase-accumulator mask/control-
// word derivation, and the band-limited peak-attenuation heuristics are
// grounded on original_source/src/main/util/Oscillator.cpp. The
// precomputed-angle, no-trig-in-the-hot-loop style for native sine/cosine
// follows github.com/thesyncim/gopus's celt/mdct.go twiddle tables; the
// oversampled waveforms instead reuse the already-implemented oversample
// package as their "internal oversampler", per spec.md §4.7.
package oscillator

import (
	"math"

	"github.com/sondrelabs/dspcore"
	"github.com/sondrelabs/dspcore/oversample"
)

// Waveform selects the periodic shape to synthesize.
type Waveform int

const (
	Sine Waveform = iota
	Cosine
	SquaredSine
	SquaredCosine
	Rectangular
	Sawtooth
	Trapezoid
	PulseTrain
	Parabolic
	BLRectangular
	BLSawtooth
	BLTrapezoid
	BLPulseTrain
	BLParabolic
)

func (w Waveform) bandLimited() bool {
	return w >= BLRectangular
}

// DCReference selects how DC offset is measured for asymmetric waveforms.
type DCReference int

const (
	DCWaveform DCReference = iota // offset added on top of the waveform's own mean
	DCZero                       // offset measured from true zero (waveform mean subtracted out)
)

const phaseBits = 32

// phaseMask is (1<<phaseBits)-1; phase accumulation wraps modulo 2^32.
const phaseMask = uint64(1)<<phaseBits - 1

const (
	dirtySettings dspcore.DirtyBits = 1 << iota
	dirtyPhase
)

type rectangular struct {
	dutyRatio  float32
	dutyWord   uint64
	waveDC     float32
	peakAtten  float32
}

type sawtooth struct {
	width     float32
	widthWord uint64
	coeffs    [4]float32
	peakAtten float32
}

type trapezoid struct {
	raiseRatio, fallRatio float32
	points                [4]uint64
	coeffs                [4]float32
	peakAtten             float32
}

type pulse struct {
	posWidthRatio, negWidthRatio float32
	trainPoints                  [3]uint64
	waveDC                       float32
	peakAtten                    float32
}

type parabolic struct {
	invert    bool
	amplitude float32
	width     float32
	widthWord uint64
	waveDC    float32
	peakAtten float32
}

// Oscillator synthesizes one periodic waveform channel.
type Oscillator struct {
	waveform     Waveform
	amplitude    float32
	frequency    float32
	dcOffset     float32
	dcReference  DCReference
	referencedDC float32
	initPhase    float32

	sampleRate   float32
	phaseAcc     uint64
	acc2Phase    float32
	freqCtrlWord uint64
	initPhaseWord uint64

	squaredInvert bool
	squaredAmp    float32
	squaredWaveDC float32

	rect rectangular
	saw  sawtooth
	trap trapezoid
	puls pulse
	par  parabolic

	over     oversample.Oversampler
	overMode oversample.Mode
	dirty    dspcore.DirtyBits

	scratch []float32
}

// Init prepares the oscillator for the given maximum sample rate and block
// size; maxBlock bounds the oversampled scratch buffer.
func (o *Oscillator) Init(sampleRate float32, maxBlock int) error {
	o.sampleRate = sampleRate
	o.amplitude = 1
	o.rect.dutyRatio = 0.5
	o.saw.width = 1
	o.trap.raiseRatio, o.trap.fallRatio = 0.25, 0.25
	o.par.amplitude = 1
	o.dirty = o.dirty.Set(dirtySettings)
	if maxBlock > 0 {
		o.scratch = make([]float32, maxBlock*4) // headroom for 4x oversampling
	}
	return o.over.Init(sampleRate, maxBlock)
}

func (o *Oscillator) SetWaveform(w Waveform) {
	if o.waveform == w {
		return
	}
	o.waveform = w
	o.dirty = o.dirty.Set(dirtySettings)
}

func (o *Oscillator) SetAmplitude(a float32) {
	if o.amplitude == a {
		return
	}
	o.amplitude = a
	o.dirty = o.dirty.Set(dirtySettings)
}

func (o *Oscillator) SetFrequency(f float32) {
	if o.frequency == f {
		return
	}
	o.frequency = f
	o.dirty = o.dirty.Set(dirtySettings)
}

func (o *Oscillator) SetDCOffset(dc float32)          { o.dcOffset = dc; o.dirty = o.dirty.Set(dirtySettings) }
func (o *Oscillator) SetDCReference(r DCReference)    { o.dcReference = r; o.dirty = o.dirty.Set(dirtySettings) }
func (o *Oscillator) SetPhase(p float32)              { o.initPhase = p; o.dirty = o.dirty.Set(dirtyPhase) }
func (o *Oscillator) SetOversamplerMode(m oversample.Mode) {
	o.overMode = m
	o.over.SetMode(m)
	o.dirty = o.dirty.Set(dirtySettings)
}
func (o *Oscillator) SetSquaredInversion(invert bool) { o.squaredInvert = invert; o.dirty = o.dirty.Set(dirtySettings) }
func (o *Oscillator) SetParabolicInversion(invert bool) { o.par.invert = invert; o.dirty = o.dirty.Set(dirtySettings) }

func (o *Oscillator) SetDutyRatio(r float32) {
	o.rect.dutyRatio = clamp01(r)
	o.dirty = o.dirty.Set(dirtySettings)
}

func (o *Oscillator) SetWidth(w float32) {
	o.saw.width = clamp01(w)
	o.dirty = o.dirty.Set(dirtySettings)
}

func (o *Oscillator) SetTrapezoidRatios(raise, fall float32) {
	raise = clamp01(raise)
	if fall < 0 {
		fall = 0
	} else if fall > 1-raise {
		fall = 1 - raise
	}
	o.trap.raiseRatio, o.trap.fallRatio = raise, fall
	o.dirty = o.dirty.Set(dirtySettings)
}

func (o *Oscillator) SetPulseTrainRatios(pos, neg float32) {
	o.puls.posWidthRatio, o.puls.negWidthRatio = clamp01(pos), clamp01(neg)
	o.dirty = o.dirty.Set(dirtySettings)
}

func (o *Oscillator) SetParabolicWidth(w float32) {
	o.par.width = clamp01(w)
	o.dirty = o.dirty.Set(dirtySettings)
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

// updateSettings recomputes every derived parameter, mirroring
// Oscillator::update_settings in original_source/src/main/util/Oscillator.cpp.
func (o *Oscillator) updateSettings() {
	if !o.dirty.HasAny(dirtySettings | dirtyPhase) {
		return
	}

	o.acc2Phase = float32(2 * math.Pi / float64(phaseMask+1))
	if o.sampleRate > 0 {
		o.freqCtrlWord = uint64(float64(phaseMask+1) * float64(o.frequency) / float64(o.sampleRate))
	}

	o.phaseAcc = (o.phaseAcc - o.initPhaseWord) & phaseMask
	wrapped := float64(o.initPhase) - 2*math.Pi*math.Floor(float64(o.initPhase)*0.5/math.Pi)
	o.initPhaseWord = uint64(float64(phaseMask+1) * 0.5 / math.Pi * wrapped)
	o.phaseAcc = (o.phaseAcc + o.initPhaseWord) & phaseMask

	switch o.waveform {
	case Sine, Cosine:
		o.referencedDC = o.dcOffset

	case SquaredSine, SquaredCosine:
		if o.squaredInvert {
			o.squaredAmp = -o.amplitude
		} else {
			o.squaredAmp = o.amplitude
		}
		o.squaredWaveDC = 0.5 * o.squaredAmp
		if o.dcReference == DCZero {
			o.referencedDC = o.dcOffset - o.squaredWaveDC
		} else {
			o.referencedDC = o.dcOffset
		}

	case Rectangular, BLRectangular:
		if o.rect.dutyRatio == 1 {
			o.rect.dutyWord = phaseMask
		} else {
			o.rect.dutyWord = uint64(o.rect.dutyRatio * float32(phaseMask+1))
		}
		o.rect.waveDC = o.amplitude * (2*o.rect.dutyRatio - 1)
		if o.dcReference == DCZero {
			o.referencedDC = o.dcOffset - o.rect.waveDC
		} else {
			o.referencedDC = o.dcOffset
		}
		o.rect.peakAtten = 0.6

	case Sawtooth, BLSawtooth:
		if o.saw.width == 1 {
			o.saw.widthWord = phaseMask
		} else {
			o.saw.widthWord = uint64(o.saw.width * float32(phaseMask+1))
		}
		ww := float32(o.saw.widthWord)
		total := float32(phaseMask + 1)
		o.saw.coeffs[0] = 2 * o.amplitude / ww
		o.saw.coeffs[1] = -o.amplitude
		o.saw.coeffs[2] = (-2 * o.amplitude) / (total - ww)
		o.saw.coeffs[3] = o.amplitude * (total + ww) / (total - ww)
		o.referencedDC = o.dcOffset

		switch {
		case o.saw.width > 0.60:
			o.saw.peakAtten = 0.64/0.4 - o.saw.width
		case o.saw.width < 0.40:
			o.saw.peakAtten = o.saw.width + 0.6
		default:
			o.saw.peakAtten = 1
		}

	case Trapezoid, BLTrapezoid:
		total := float32(phaseMask + 1)
		o.trap.points[0] = uint64(o.trap.raiseRatio * 0.5 * total)
		o.trap.points[1] = uint64((1 - o.trap.fallRatio) * 0.5 * total)
		if o.trap.fallRatio < 1 {
			o.trap.points[2] = uint64((1 + o.trap.fallRatio) * 0.5 * total)
		} else {
			o.trap.points[2] = phaseMask
		}
		if o.trap.raiseRatio > 0 {
			o.trap.points[3] = uint64((2 - o.trap.raiseRatio) * 0.5 * total)
		} else {
			o.trap.points[3] = phaseMask
		}
		o.trap.coeffs[0] = o.amplitude / float32(o.trap.points[0])
		o.trap.coeffs[1] = -2 * o.amplitude / float32(o.trap.points[2]-o.trap.points[1])
		if o.trap.fallRatio != 0 {
			o.trap.coeffs[2] = o.amplitude / o.trap.fallRatio
		}
		if o.trap.raiseRatio != 0 {
			o.trap.coeffs[3] = -2 * o.amplitude / o.trap.raiseRatio
		}
		o.referencedDC = o.dcOffset

		minRatio := o.trap.raiseRatio
		if o.trap.fallRatio < minRatio {
			minRatio = o.trap.fallRatio
		}
		if minRatio < 0.4 {
			o.trap.peakAtten = minRatio + 0.6
		} else {
			o.trap.peakAtten = 1
		}

	case PulseTrain, BLPulseTrain:
		total := float32(phaseMask + 1)
		o.puls.trainPoints[0] = uint64(o.puls.posWidthRatio * 0.5 * total)
		o.puls.trainPoints[1] = uint64(0.5 * total)
		if o.puls.negWidthRatio == 1 {
			o.puls.trainPoints[2] = phaseMask
		} else {
			o.puls.trainPoints[2] = uint64((1 + o.puls.negWidthRatio) * 0.5 * total)
		}
		o.puls.waveDC = 0.5 * o.amplitude * (o.puls.posWidthRatio - o.puls.negWidthRatio)
		if o.dcReference == DCZero {
			o.referencedDC = o.dcOffset - o.puls.waveDC
		} else {
			o.referencedDC = o.dcOffset
		}
		maxRatio := o.puls.negWidthRatio
		if o.puls.posWidthRatio > maxRatio {
			maxRatio = o.puls.posWidthRatio
		}
		if maxRatio > 0.5 {
			o.puls.peakAtten = 0.6
		} else {
			o.puls.peakAtten = float32(math.Sqrt2 / 2)
		}

	case Parabolic, BLParabolic:
		if o.par.invert {
			o.par.amplitude = -o.amplitude
		} else {
			o.par.amplitude = o.amplitude
		}
		if o.par.width == 1 {
			o.par.widthWord = phaseMask
		} else {
			o.par.widthWord = uint64(o.par.width * float32(phaseMask+1))
		}
		o.par.waveDC = 2 * o.par.amplitude * o.par.width / 3
		if o.dcReference == DCZero {
			o.referencedDC = o.dcOffset - o.par.waveDC
		} else {
			o.referencedDC = o.dcOffset
		}
		o.par.peakAtten = 1
	}

	o.dirty = 0
}

// doProcess synthesizes n samples of the current waveform, applying its
// own internal oversampling/downsampling for band-limited waveforms.
func (o *Oscillator) doProcess(dst []float32, n int) error {
	if !o.waveform.bandLimited() {
		o.synthNative(dst, n)
		return nil
	}

	// Band-limited path: synthesize at the oversampled rate in an
	// up-sized scratch buffer, then let the oversampler's lowpass +
	// decimate stage suppress the harmonics above Nyquist.
	upFactor := o.over.Factor()
	if cap(o.scratch) < n*upFactor {
		o.scratch = make([]float32, n*upFactor)
	}
	buf := o.scratch[:n*upFactor]
	o.synthNativeOversampled(buf, n*upFactor, upFactor)
	return o.over.Downsample(dst[:n], buf, n)
}

func (o *Oscillator) synthNative(dst []float32, n int) {
	for i := 0; i < n; i++ {
		dst[i] = o.sampleAt(o.phaseAcc) + o.referencedDC
		o.phaseAcc = (o.phaseAcc + o.freqCtrlWord) & phaseMask
	}
}

// synthNativeOversampled is synthNative but the phase step is divided by
// upFactor so the waveform is traced upFactor times as densely, per
// spec.md §4.7's band-limited mode.
func (o *Oscillator) synthNativeOversampled(dst []float32, n int, upFactor int) {
	step := o.freqCtrlWord / uint64(upFactor)
	baseWave := bandLimitedBase(o.waveform)
	for i := 0; i < n; i++ {
		dst[i] = o.sampleWave(baseWave, o.phaseAcc) + o.referencedDC
		o.phaseAcc = (o.phaseAcc + step) & phaseMask
	}
}

func bandLimitedBase(w Waveform) Waveform {
	switch w {
	case BLRectangular:
		return Rectangular
	case BLSawtooth:
		return Sawtooth
	case BLTrapezoid:
		return Trapezoid
	case BLPulseTrain:
		return PulseTrain
	case BLParabolic:
		return Parabolic
	default:
		return w
	}
}

func (o *Oscillator) sampleAt(phase uint64) float32 {
	return o.sampleWave(o.waveform, phase)
}

func (o *Oscillator) sampleWave(w Waveform, phase uint64) float32 {
	angle := float64(o.acc2Phase) * float64(phase)
	switch w {
	case Sine:
		return o.amplitude * float32(math.Sin(angle))
	case Cosine:
		return o.amplitude * float32(math.Cos(angle))
	case SquaredSine:
		x := float32(math.Sin(0.5 * angle))
		return o.squaredAmp * x * x
	case SquaredCosine:
		x := float32(math.Cos(0.5 * angle))
		return o.squaredAmp * x * x
	case Rectangular:
		a := o.amplitude * o.rect.peakAtten
		if phase < o.rect.dutyWord {
			return a
		}
		return -a
	case Sawtooth:
		var v float32
		if phase < o.saw.widthWord {
			v = o.saw.coeffs[0]*float32(phase) + o.saw.coeffs[1]
		} else {
			v = o.saw.coeffs[2]*float32(phase) + o.saw.coeffs[3]
		}
		return v * o.saw.peakAtten
	case Trapezoid:
		p := float32(phase)
		switch {
		case phase < o.trap.points[0]:
			return o.trap.coeffs[0] * p * o.trap.peakAtten
		case phase <= o.trap.points[1]:
			return o.amplitude * o.trap.peakAtten
		case phase < o.trap.points[2]:
			return (o.trap.coeffs[1]*p + o.trap.coeffs[2]) * o.trap.peakAtten
		case phase <= o.trap.points[3]:
			return -o.amplitude * o.trap.peakAtten
		default:
			return (o.trap.coeffs[0]*p + o.trap.coeffs[3]) * o.trap.peakAtten
		}
	case PulseTrain:
		switch {
		case phase <= o.puls.trainPoints[0]:
			return o.amplitude * o.puls.peakAtten
		case phase >= o.puls.trainPoints[1] && phase <= o.puls.trainPoints[2]:
			return -o.amplitude * o.puls.peakAtten
		default:
			return 0
		}
	case Parabolic:
		if phase < o.par.widthWord {
			x := (2/float32(o.par.widthWord))*float32(phase) - 1
			return o.par.amplitude * (1 - x*x) * o.par.peakAtten
		}
		return 0
	default:
		return 0
	}
}

// ProcessAdd synthesizes n samples and adds them onto dst (or starting
// from 0 if src is nil, matching the teacher's process_add contract).
func (o *Oscillator) ProcessAdd(dst, src []float32, n int) error {
	o.updateSettings()
	if src != nil {
		copy(dst[:n], src[:n])
	} else {
		for i := 0; i < n; i++ {
			dst[i] = 0
		}
	}
	buf := make([]float32, n)
	if err := o.doProcess(buf, n); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		dst[i] += buf[i]
	}
	return nil
}

// ProcessMul synthesizes n samples and multiplies them into dst.
func (o *Oscillator) ProcessMul(dst, src []float32, n int) error {
	o.updateSettings()
	if src != nil {
		copy(dst[:n], src[:n])
	}
	buf := make([]float32, n)
	if err := o.doProcess(buf, n); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		dst[i] *= buf[i]
	}
	return nil
}

// ProcessOverwrite synthesizes n samples directly into dst.
func (o *Oscillator) ProcessOverwrite(dst []float32, n int) error {
	o.updateSettings()
	return o.doProcess(dst, n)
}

// GetPeriods produces a decimated window spanning exactly periods full
// cycles of the waveform, skipping periodsSkip leading periods, sampled
// into exactly samples output points — useful for FFT-safe drawing per
// spec.md §4.7. The oscillator's running phase is left unmodified.
func (o *Oscillator) GetPeriods(dst []float32, periods, periodsSkip, samples int) {
	o.updateSettings()
	if o.frequency == 0 || samples <= 0 {
		return
	}
	savedPhase := o.phaseAcc
	o.phaseAcc = o.initPhaseWord

	periodDuration := float64(o.sampleRate) / float64(o.frequency)
	outSamples := periodDuration * float64(periods)
	skipSamples := periodDuration * float64(periodsSkip)
	total := int(math.Ceil(outSamples + skipSamples))
	if total < 1 {
		total = 1
	}

	buf := make([]float32, total)
	o.synthNative(buf, total)

	decimationStep := outSamples / float64(samples)
	t := skipSamples
	for i := 0; i < samples; i++ {
		idx := int(t)
		if idx < 0 {
			idx = 0
		}
		if idx >= total {
			idx = total - 1
		}
		dst[i] = buf[idx]
		t += decimationStep
	}

	o.phaseAcc = savedPhase
}
