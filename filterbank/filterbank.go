// Package filterbank implements the FilterBank unit from spec.md §4.2: up
// to filter.FilterChainsMax discrete biquads applied as one cascade per
// block, sized by the filter count as spec.md describes (the bank "chooses
// SIMD fan-out x1/x2/x4/x8 based on filter count" — here that just means
// picking how many sections kernel.BiquadProcess walks per call, since the
// actual vectorized fan-out is an internal/kernel concern).
package filterbank

import (
	"fmt"

	"github.com/sondrelabs/dspcore"
	"github.com/sondrelabs/dspcore/internal/kernel"
)

// MaxChains is the maximum number of biquad sections a bank holds,
// mirroring filter.FilterChainsMax (kept independent to avoid an import
// cycle between filter and filterbank).
const MaxChains = 32

// Bank holds up to MaxChains discrete biquads and applies them as one
// cascade per Process call.
type Bank struct {
	chain   []kernel.Biquad
	pending []kernel.Biquad
	open    bool
}

// Begin declares a new chain build. Chains added via AddChain before the
// matching End are staged, not yet live.
func (b *Bank) Begin() {
	b.pending = b.pending[:0]
	b.open = true
}

// AddChain appends a new biquad slot to the pending chain and returns its
// index, or an error if MaxChains would be exceeded.
func (b *Bank) AddChain() (int, error) {
	if !b.open {
		return 0, fmt.Errorf("%w: AddChain called outside Begin/End", dspcore.ErrBadState)
	}
	if len(b.pending) >= MaxChains {
		return 0, fmt.Errorf("%w: filter chain limit (%d) exceeded", dspcore.ErrInvalidValue, MaxChains)
	}
	b.pending = append(b.pending, kernel.Biquad{})
	return len(b.pending) - 1, nil
}

// SetChain overwrites the coefficients (not the state) of a pending chain
// slot previously returned by AddChain.
func (b *Bank) SetChain(idx int, coeffs kernel.Biquad) {
	state := b.pending[idx]
	coeffs.X1, coeffs.X2, coeffs.Y1, coeffs.Y2 = state.X1, state.X2, state.Y1, state.Y2
	b.pending[idx] = coeffs
}

// End finalizes the pending chain as the bank's live chain. When
// clearState is true (used when shape/slope changed) all filter history
// is zeroed; otherwise history carries over position-by-position from the
// previous chain, matching spec.md §4.2's "state is cleared on end(true)".
func (b *Bank) End(clearState bool) {
	for i := range b.pending {
		if clearState || i >= len(b.chain) {
			b.pending[i].Reset()
			continue
		}
		old := b.chain[i]
		b.pending[i].X1, b.pending[i].X2, b.pending[i].Y1, b.pending[i].Y2 = old.X1, old.X2, old.Y1, old.Y2
	}
	b.chain = append(b.chain[:0], b.pending...)
	b.open = false
}

// Len returns the number of live biquad sections.
func (b *Bank) Len() int { return len(b.chain) }

// Chain returns the live biquad sections, for callers (e.g. filter's
// FreqChart) that need direct read access to coefficients.
func (b *Bank) Chain() []kernel.Biquad { return b.chain }

// Process runs the live chain over n samples. With zero live sections
// (e.g. after Begin/End(true) with no AddChain) this is a pass-through
// copy, satisfying invariant 2 in spec.md §8 once combined with zeroed
// input.
func (b *Bank) Process(dst, src []float32, n int) {
	if len(b.chain) == 0 {
		kernel.Copy(dst[:n], src[:n])
		return
	}
	kernel.BiquadProcess(b.chain, dst[:n], src[:n])
}

// Reset zeroes every live section's history without touching coefficients.
func (b *Bank) Reset() {
	for i := range b.chain {
		b.chain[i].Reset()
	}
}
