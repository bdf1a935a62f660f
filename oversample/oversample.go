// Package oversample implements the Oversampler from spec.md §4.6: raise
// sample rate by an integer factor with a selectable polyphase Lanczos or
// integer-quantization kernel, apply a user callback on the oversampled
// stream, lowpass-filter, and decimate.
//
// The polyphase filter-bank structure generalizes
// silk/resample_sinc.go's fixed Kaiser-windowed sinc resampler (from the
// teacher's SILK decoder path) to Lanczos kernels of configurable period
// count; the internal anti-alias filter reuses the filter package's
// Butterworth cookbook design, cross-checked against
// original_source/src/main/util/Oversampler.cpp for the 30-pole/21kHz
// corner and the {2,3,4,4,10,62} latency table.
package oversample

import (
	"fmt"

	"github.com/sondrelabs/dspcore"
	"github.com/sondrelabs/dspcore/filter"
	"github.com/sondrelabs/dspcore/internal/kernel"
)

// Mode selects the oversampling factor and interpolation kernel.
type Mode int

const (
	ModeNone Mode = iota
	ModeLanczos2X2
	ModeLanczos3X3
	ModeLanczos4X4
	ModeLanczos2X3
	ModeLanczos2X4
	ModeLanczos3X4
	ModeQuant2X12Bit
	ModeQuant2X16Bit
	ModeQuant2X24Bit
)

type modeSpec struct {
	factor  int
	periods int
	latency int // samples, per spec.md §4.6's latency table
}

var modeTable = map[Mode]modeSpec{
	ModeNone:         {1, 0, 2},
	ModeLanczos2X2:   {2, 2, 2},
	ModeLanczos3X3:   {3, 3, 3},
	ModeLanczos4X4:   {4, 4, 4},
	ModeLanczos2X3:   {2, 3, 4},
	ModeLanczos2X4:   {2, 4, 10},
	ModeLanczos3X4:   {3, 4, 62},
	ModeQuant2X12Bit: {2, 2, 2},
	ModeQuant2X16Bit: {2, 3, 3},
	ModeQuant2X24Bit: {2, 4, 4},
}

// Callback is invoked once per block at the oversampled rate. It must not
// be required to be reentrant-safe since dspcore processing is
// single-threaded (spec.md §9).
type Callback func(out, in []float32, n int)

// Oversampler raises the sample rate by an integer factor around an
// external processing callback.
type Oversampler struct {
	mode       Mode
	sampleRate float32
	maxBlock   int
	modeDirty  bool

	lowpass  filter.Filter
	upBuf    []float32
	filtBuf  []float32
	callback Callback
}

// SetMode chooses the oversampling factor and kernel. The anti-alias
// filter and scratch buffers are reconfigured for the new factor on the
// next Downsample/Process call (Upsample does not reconfigure), matching
// original_source/src/main/util/Oversampler.cpp's UP_MODE deferred-apply
// pattern.
func (o *Oversampler) SetMode(m Mode) {
	if o.mode == m {
		return
	}
	o.mode = m
	o.modeDirty = true
}

// SetCallback sets the user callback invoked on the oversampled stream.
func (o *Oversampler) SetCallback(cb Callback) { o.callback = cb }

// Init allocates internal buffers sized for maxBlock input samples at
// sampleRate.
func (o *Oversampler) Init(sampleRate float32, maxBlock int) error {
	if sampleRate <= 0 || maxBlock <= 0 {
		return fmt.Errorf("%w: invalid sample rate or block size", dspcore.ErrBadArguments)
	}
	o.sampleRate = sampleRate
	o.maxBlock = maxBlock
	if err := o.lowpass.Init(nil); err != nil {
		return err
	}
	o.modeDirty = true
	return o.reconfigure()
}

// reconfigure resizes the scratch buffers and retunes the anti-alias
// filter for the current mode's factor; it is a no-op unless the mode
// has changed since the last call.
func (o *Oversampler) reconfigure() error {
	if !o.modeDirty {
		return nil
	}
	factor := o.Factor()
	o.upBuf = make([]float32, o.maxBlock*factor)
	o.filtBuf = make([]float32, o.maxBlock*factor)

	// 30-pole Butterworth LP at 21kHz running at the oversampled rate,
	// per spec.md §4.6 and original_source/src/main/util/Oversampler.cpp.
	o.lowpass.Update(o.sampleRate*float32(factor), filter.Params{
		Family: filter.FamilyBWC, Shape: filter.ShapeLopass, F1: 21000, Slope: 15, Quality: 0.7071,
	})
	o.modeDirty = false
	return nil
}

// Latency returns the oversampler's reported processing latency in
// (base-rate) samples, per spec.md §4.6's per-mode table.
func (o *Oversampler) Latency() int {
	return modeTable[o.mode].latency
}

// Factor returns the integer oversampling ratio of the current mode.
func (o *Oversampler) Factor() int {
	f := modeTable[o.mode].factor
	if f < 1 {
		return 1
	}
	return f
}

// Upsample raises src (n samples at the base rate) to dst (n*factor
// samples at the oversampled rate).
func (o *Oversampler) Upsample(dst, src []float32, n int) {
	spec := modeTable[o.mode]
	if spec.factor <= 1 {
		kernel.Copy(dst[:n], src[:n])
		return
	}
	kernel.LanczosResample(dst[:n*spec.factor], src[:n], spec.factor, spec.periods)
}

// Downsample lowpass-filters src (n*factor samples at the oversampled
// rate) through the internal anti-alias filter and decimates the result
// into dst (n samples at the base rate), matching
// original_source/src/main/util/Oversampler.cpp's downsample(), which
// always filters before picking off every factor-th sample.
func (o *Oversampler) Downsample(dst, src []float32, n int) error {
	if err := o.reconfigure(); err != nil {
		return err
	}
	spec := modeTable[o.mode]
	if spec.factor <= 1 {
		kernel.Copy(dst[:n], src[:n])
		return nil
	}
	m := n * spec.factor
	if cap(o.filtBuf) < m {
		o.filtBuf = make([]float32, m)
	}
	if err := o.lowpass.Process(o.filtBuf[:m], src[:m], m); err != nil {
		return err
	}
	kernel.Downsample(dst[:n], o.filtBuf[:m], spec.factor)
	return nil
}

// Process upsamples src to an internal buffer, invokes callback(buf, buf,
// n*factor) if non-nil (falling back to the unit's configured callback
// otherwise), then filters and decimates into dst via Downsample.
func (o *Oversampler) Process(dst, src []float32, n int, callback Callback) error {
	if n > o.maxBlock {
		return fmt.Errorf("%w: block exceeds maxBlock", dspcore.ErrBadArguments)
	}
	if err := o.reconfigure(); err != nil {
		return err
	}
	spec := modeTable[o.mode]
	factor := spec.factor
	if factor < 1 {
		factor = 1
	}
	m := n * factor

	o.Upsample(o.upBuf, src, n)

	cb := callback
	if cb == nil {
		cb = o.callback
	}
	if cb != nil {
		cb(o.upBuf[:m], o.upBuf[:m], m)
	}

	return o.Downsample(dst, o.upBuf[:m], n)
}
