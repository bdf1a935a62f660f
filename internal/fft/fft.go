// Copyright (c) 2003-2004, Mark Borgerding
// Lots of modifications by Jean-Marc Valin
// Copyright (c) 2005-2007, Xiph.Org Foundation
// Copyright (c) 2008, Xiph.Org Foundation, CSIRO
//
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
//
//   - Redistributions of source code must retain the above copyright notice,
//     this list of conditions and the following disclaimer.
//   - Redistributions in binary form must reproduce the above copyright notice,
//     this list of conditions and the following disclaimer in the
//     documentation and/or other materials provided with the distribution.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT OWNER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

// Package fft implements a radix-2 mixed-precision FFT used internally by
// the spectral and latency packages. It is a generalization of the
// mixed-radix kiss_fft port the CELT encoder carries (celt/kiss_fft.go in
// the retrieval pack's teacher): Opus-specific fixed sizes and scaling are
// stripped, and arbitrary power-of-two lengths are supported.
package fft

import (
	"math"
	"sync"
)

// State holds precomputed twiddle factors for one FFT length.
type State struct {
	n        int
	twiddles []complex128
	inverse  []complex128
}

var cache sync.Map // map[int]*State

// Get returns (building and caching if necessary) the FFT state for size n,
// which must be a power of two.
func Get(n int) *State {
	if v, ok := cache.Load(n); ok {
		return v.(*State)
	}
	s := build(n)
	actual, _ := cache.LoadOrStore(n, s)
	return actual.(*State)
}

func build(n int) *State {
	s := &State{n: n, twiddles: make([]complex128, n), inverse: make([]complex128, n)}
	for i := 0; i < n; i++ {
		theta := -2 * math.Pi * float64(i) / float64(n)
		s.twiddles[i] = complex(math.Cos(theta), math.Sin(theta))
		s.inverse[i] = complex(math.Cos(-theta), math.Sin(-theta))
	}
	return s
}

// Forward computes the in-place decimation-in-time FFT of buf (length must
// equal s.n, a power of two).
func (s *State) Forward(buf []complex128) {
	bitReverse(buf)
	fftCore(buf, s.twiddles)
}

// Inverse computes the in-place inverse FFT of buf, including the 1/n
// scaling (matching ReverseFFT named in spec.md §6).
func (s *State) Inverse(buf []complex128) {
	bitReverse(buf)
	fftCore(buf, s.inverse)
	scale := 1 / float64(s.n)
	for i := range buf {
		buf[i] *= complex(scale, 0)
	}
}

func bitReverse(buf []complex128) {
	n := len(buf)
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j &^= bit
		}
		j |= bit
		if i < j {
			buf[i], buf[j] = buf[j], buf[i]
		}
	}
}

func fftCore(buf []complex128, twiddles []complex128) {
	n := len(buf)
	for size := 2; size <= n; size <<= 1 {
		half := size / 2
		step := n / size
		for start := 0; start < n; start += size {
			for k := 0; k < half; k++ {
				w := twiddles[k*step]
				u := buf[start+k]
				v := buf[start+k+half] * w
				buf[start+k] = u + v
				buf[start+k+half] = u - v
			}
		}
	}
}

// RealForward FFTs a real-valued buffer of length n (power of two),
// returning the complex spectrum, used by spectral and latency for
// analysis frames. PComplexFillRI-style packed buffers are assembled by
// callers from the real and imaginary parts of the returned spectrum.
func RealForward(samples []float32) []complex128 {
	n := len(samples)
	buf := make([]complex128, n)
	for i, v := range samples {
		buf[i] = complex(float64(v), 0)
	}
	Get(n).Forward(buf)
	return buf
}

// RealInverse inverse-FFTs a complex spectrum back to a real-valued
// buffer, discarding residual imaginary parts from floating-point error.
func RealInverse(spectrum []complex128) []float32 {
	n := len(spectrum)
	buf := make([]complex128, n)
	copy(buf, spectrum)
	Get(n).Inverse(buf)
	out := make([]float32, n)
	for i, c := range buf {
		out[i] = float32(real(c))
	}
	return out
}

// NextPow2 returns the smallest power of two >= n.
func NextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
