package filter

import (
	"fmt"

	"github.com/sondrelabs/dspcore"
	"github.com/sondrelabs/dspcore/filterbank"
	"github.com/sondrelabs/dspcore/internal/kernel"
)

const (
	dirtyRebuild dspcore.DirtyBits = 1 << iota
	dirtyClear
)

// Filter is a single polymorphic second-order-section filter cascade, per
// spec.md §4.1. Its bank may be owned (one per filter) or shared across
// several filters in an effect chain; when shared, the caller brackets
// each rebuild with the bank's own Begin/End and must not interleave
// Process calls with another filter's rebuild, per spec.md §5.
type Filter struct {
	sampleRate float32
	params     Params
	dirty      dspcore.DirtyBits

	owned *filterbank.Bank
	bank  *filterbank.Bank // points at owned, or at a caller-shared bank
}

// Init allocates (or attaches) the filter's bank. Passing a non-nil bank
// shares it across filters; passing nil allocates an owned bank.
func (f *Filter) Init(shared *filterbank.Bank) error {
	if shared != nil {
		f.bank = shared
		f.owned = nil
		return nil
	}
	f.owned = &filterbank.Bank{}
	f.bank = f.owned
	return nil
}

// Update stores new parameters and marks the filter dirty, per spec.md
// §4.1's update contract: slope is clamped to [1, FilterChainsMax], f1/f2
// to [0, 0.49*sr], and type/slope changes additionally set the clear bit.
func (f *Filter) Update(sampleRate float32, p Params) {
	typeOrSlopeChanged := f.sampleRate == 0 ||
		p.Family != f.params.Family || p.Shape != f.params.Shape ||
		p.Transform != f.params.Transform || p.Slope != f.params.Slope

	f.sampleRate = sampleRate
	f.params = clampParams(p, sampleRate)
	f.dirty = f.dirty.Set(dirtyRebuild)
	if typeOrSlopeChanged {
		f.dirty = f.dirty.Set(dirtyClear)
	}
}

// updateSettings performs the (possibly expensive) recomputation staged
// by Update, rebuilding the bank's chain only if dirty.
func (f *Filter) updateSettings() error {
	if !f.dirty.HasAny(dirtyRebuild) {
		return nil
	}
	chain := discretize(f.params, f.sampleRate)

	f.bank.Begin()
	for _, c := range chain {
		idx, err := f.bank.AddChain()
		if err != nil {
			return err
		}
		f.bank.SetChain(idx, c)
	}
	f.bank.End(f.dirty.HasAny(dirtyClear))
	f.dirty = 0
	return nil
}

// Process applies the current discrete SOS chain to n samples, rebuilding
// the chain first if dirty.
func (f *Filter) Process(dst, src []float32, n int) error {
	if err := f.updateSettings(); err != nil {
		return err
	}
	if len(dst) < n || len(src) < n {
		return fmt.Errorf("%w: buffer shorter than n", dspcore.ErrBadArguments)
	}
	f.bank.Process(dst, src, n)
	return nil
}

// FreqChart evaluates the filter's transfer function at n angular
// frequencies (radians/sample) into re/im buffers.
func (f *Filter) FreqChart(re, im []float32, freq []float32, n int) error {
	if err := f.updateSettings(); err != nil {
		return err
	}
	kernel.FilterTransferCalcRI(f.bank.Chain(), re[:n], im[:n], freq[:n])
	return nil
}

// ImpulseResponse produces n samples of the filter's unit impulse
// response. Only supported when the bank is owned, per spec.md §4.1 (a
// shared bank may be mutated by another filter between calls, which would
// make the response meaningless).
func (f *Filter) ImpulseResponse(out []float32, n int) error {
	if f.owned == nil {
		return fmt.Errorf("%w: ImpulseResponse requires an owned bank", dspcore.ErrBadState)
	}
	if err := f.updateSettings(); err != nil {
		return err
	}
	impulse := make([]float32, n)
	if n > 0 {
		impulse[0] = 1
	}
	saved := append([]kernel.Biquad(nil), f.owned.Chain()...)
	for i := range f.owned.Chain() {
		f.owned.Chain()[i].Reset()
	}
	f.owned.Process(out, impulse, n)
	copy(f.owned.Chain(), saved)
	return nil
}

// LatencySamples returns the filter's processing latency, which is always
// zero: every biquad here is a direct-form update with no buffering delay.
func (f *Filter) LatencySamples() int { return 0 }
