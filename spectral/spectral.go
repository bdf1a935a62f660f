// Package spectral implements the multi-channel framed FFT/IFFT processor
// from spec.md §1 item 12: each channel accumulates a block of input, the
// whole block is transformed to the frequency domain, a caller-supplied
// callback inspects or rewrites the packed spectra in place, and (for
// channels with an output bound) the result is transformed back and
// emitted a block later.
//
// Grounded on
// original_source/include/lsp-plug.in/dsp-units/util/MultiSpectralProcessor.h,
// which is a declaration-only header with no matching .cpp anywhere in the
// retrieval pack — every method body here, not just a gap or two, is a
// reconstruction from its field names and doc comments; see DESIGN.md for
// the reasoning (block size from nRank, latency() == 1<<nRank meaning
// plain block processing rather than overlap-add, fPhase as a window
// phase parameter). FFT work goes through internal/fft.
package spectral

import (
	"math"

	"github.com/sondrelabs/dspcore"
	"github.com/sondrelabs/dspcore/internal/fft"
)

// Callback receives one channel's transformed spectrum per call, packed as
// complex128 bins of length 1<<rank. It may modify spectrum in place;
// channels with a bound output buffer get the inverse-FFT of whatever the
// callback left behind.
type Callback func(spectrum [][]complex128, rank int)

// Processor is a multi-channel framed spectral processor. The zero value
// is not usable; call Init first.
type Processor struct {
	channels  int
	maxRank   int
	rank      int
	frameSize int

	offset       int
	pendingValid bool
	pendingPos   int

	phase  float32
	update bool

	window  []float32
	inBuf   [][]float32
	pending [][]float32

	cb Callback
}

// Init allocates a processor for the given channel count and maximum FFT
// rank (the largest block size it will ever be asked to run at is
// 1<<maxRank). The initial rank equals maxRank.
func (p *Processor) Init(channels, maxRank int) error {
	if channels <= 0 || maxRank <= 0 {
		return dspcore.ErrBadArguments
	}
	*p = Processor{
		channels: channels,
		maxRank:  maxRank,
		rank:     maxRank,
		update:   true,
	}
	return nil
}

// BindHandler sets the spectrum callback. A nil callback leaves the
// spectrum untouched: bound output channels receive each input block
// delayed by one block and multiplied by the analysis window, not a pure
// passthrough.
func (p *Processor) BindHandler(cb Callback) { p.cb = cb }

// UnbindHandler clears the spectrum callback.
func (p *Processor) UnbindHandler() { p.cb = nil }

// Rank returns the current FFT rank (log2 of the block size).
func (p *Processor) Rank() int { return p.rank }

// SetRank changes the FFT rank, clamped to [0, maxRank]. Taking effect
// requires reallocating the framing buffers, deferred to the next Process
// call via the update flag, matching needs_update()/update_settings() in
// the original.
func (p *Processor) SetRank(rank int) {
	if rank < 0 {
		rank = 0
	}
	if rank > p.maxRank {
		rank = p.maxRank
	}
	if rank == p.rank {
		return
	}
	p.rank = rank
	p.update = true
}

// NeedsUpdate reports whether Process will reallocate buffers on its next
// call.
func (p *Processor) NeedsUpdate() bool { return p.update }

// Phase returns the window phase in [0, 1].
func (p *Processor) Phase() float32 { return p.phase }

// SetPhase sets the analysis window's phase offset in [0, 1]: 0 gives a
// window centered on the block, moving toward 1 slides the raised-cosine
// taper forward by one full sample period.
func (p *Processor) SetPhase(phase float32) {
	if phase < 0 {
		phase = 0
	}
	if phase > 1 {
		phase = 1
	}
	if p.phase == phase {
		return
	}
	p.phase = phase
	if len(p.window) > 0 {
		buildWindow(p.window, p.phase)
	}
}

// Latency returns the processor's output delay in samples: a full block,
// since transform runs once a block is complete rather than with
// overlap-add.
func (p *Processor) Latency() int { return p.frameSize }

// Remaining returns how many more samples are needed to complete the
// block currently being accumulated.
func (p *Processor) Remaining() int { return p.frameSize - p.offset }

// Reset clears all accumulated input and pending output, without changing
// rank, phase, or the bound callback.
func (p *Processor) Reset() {
	p.offset = 0
	p.pendingValid = false
	p.pendingPos = 0
	for ch := range p.inBuf {
		clear(p.inBuf[ch])
	}
	for ch := range p.pending {
		clear(p.pending[ch])
	}
}

func buildWindow(w []float32, phase float32) {
	n := len(w)
	for i := range w {
		t := (float64(i) + float64(phase)) / float64(n)
		w[i] = float32(0.5 - 0.5*math.Cos(2*math.Pi*t))
	}
}

func (p *Processor) rebuild() {
	p.frameSize = 1 << p.rank
	p.offset = 0
	p.pendingValid = false
	p.pendingPos = 0

	p.window = make([]float32, p.frameSize)
	buildWindow(p.window, p.phase)

	p.inBuf = make([][]float32, p.channels)
	p.pending = make([][]float32, p.channels)
	for ch := 0; ch < p.channels; ch++ {
		p.inBuf[ch] = make([]float32, p.frameSize)
		p.pending[ch] = make([]float32, p.frameSize)
	}

	p.update = false
}

// transform windows and FFTs every channel's accumulated block, runs the
// bound callback against the resulting spectra, and inverse-FFTs the
// (possibly modified) result into the pending output buffer.
func (p *Processor) transform() {
	state := fft.Get(p.frameSize)

	spectrum := make([][]complex128, p.channels)
	for ch := 0; ch < p.channels; ch++ {
		buf := make([]complex128, p.frameSize)
		for i, v := range p.inBuf[ch] {
			buf[i] = complex(float64(v)*float64(p.window[i]), 0)
		}
		state.Forward(buf)
		spectrum[ch] = buf
	}

	if p.cb != nil {
		p.cb(spectrum, p.rank)
	}

	for ch := 0; ch < p.channels; ch++ {
		state.Inverse(spectrum[ch])
		for i, c := range spectrum[ch] {
			p.pending[ch][i] = float32(real(c))
		}
	}
}

// Process runs n samples of every channel through the processor: outs[ch]
// receives the processed (delayed by Latency) signal for channels with a
// non-nil output buffer; ins[ch] may be nil to feed silence into that
// channel's analysis (its corresponding output, if any, is still driven by
// the joint spectrum the callback sees). len(ins) and len(outs) must both
// equal the channel count.
func (p *Processor) Process(outs, ins [][]float32, n int) error {
	if len(ins) != p.channels || len(outs) != p.channels {
		return dspcore.ErrBadArguments
	}
	if p.update {
		p.rebuild()
	}

	done := 0
	for done < n {
		todo := p.frameSize - p.offset
		if remaining := n - done; todo > remaining {
			todo = remaining
		}

		for ch := 0; ch < p.channels; ch++ {
			if ins[ch] != nil {
				copy(p.inBuf[ch][p.offset:p.offset+todo], ins[ch][done:done+todo])
			} else {
				clear(p.inBuf[ch][p.offset : p.offset+todo])
			}
			if outs[ch] != nil {
				if p.pendingValid {
					copy(outs[ch][done:done+todo], p.pending[ch][p.pendingPos:p.pendingPos+todo])
				} else {
					clear(outs[ch][done : done+todo])
				}
			}
		}

		p.offset += todo
		if p.pendingValid {
			p.pendingPos += todo
		}
		done += todo

		if p.offset == p.frameSize {
			p.transform()
			p.offset = 0
			p.pendingValid = true
			p.pendingPos = 0
		}
	}
	return nil
}
