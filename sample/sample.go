// Package sample implements the multi-channel PCM buffer described in
// spec.md §3 and the archive-transparent loader described in spec.md §4.8.
//
// A Sample owns a contiguous float32 array laid out channel-major with a
// per-channel stride equal to a 4-aligned capacity, matching the SIMD
// alignment quantum the rest of this module's kernels assume (see
// internal/kernel). Ownership is exclusive: Resize, Insert, Append, and
// Prepend reallocate only when the new length exceeds the current stride,
// and preserve data in the overlap of old and new strides, following
// original_source/src/main/sampling/Sample.cpp.
package sample

import (
	"fmt"

	"github.com/sondrelabs/dspcore"
)

// AlignQuantum is the minimum stride alignment, matching the SIMD
// alignment quantum referenced in spec.md §3.
const AlignQuantum = 4

// Sample is a multi-channel PCM buffer. The zero value is an empty, usable
// Sample at whatever SampleRate its first Init call sets.
type Sample struct {
	data       []float32
	channels   int
	length     int // valid samples per channel
	stride     int // capacity per channel, multiple of AlignQuantum
	sampleRate uint32
}

// SampleRate returns the sample's rate in Hz.
func (s *Sample) SampleRate() uint32 { return s.sampleRate }

// Channels returns the channel count.
func (s *Sample) Channels() int { return s.channels }

// Length returns the number of valid samples per channel.
func (s *Sample) Length() int { return s.length }

// Capacity returns the allocated per-channel stride.
func (s *Sample) Capacity() int { return s.stride }

func alignStride(n int) int {
	if n <= 0 {
		return AlignQuantum
	}
	return ((n + AlignQuantum - 1) / AlignQuantum) * AlignQuantum
}

// Init (re)allocates the sample to hold channels x length samples at
// sampleRate, discarding any prior contents.
func (s *Sample) Init(sampleRate uint32, channels, length int) error {
	if channels <= 0 || length < 0 {
		return fmt.Errorf("%w: channels=%d length=%d", dspcore.ErrBadArguments, channels, length)
	}
	stride := alignStride(length)
	data := make([]float32, channels*stride)
	if data == nil {
		return dspcore.ErrOutOfMemory
	}
	s.data = data
	s.channels = channels
	s.length = length
	s.stride = stride
	s.sampleRate = sampleRate
	return nil
}

// Destroy releases the sample's storage, leaving it in the zero state.
func (s *Sample) Destroy() {
	*s = Sample{}
}

// Channel returns a slice view of channel ch's valid samples (length
// Length(), not Capacity()). The slice aliases the sample's storage; it is
// invalidated by the next Resize/Insert/Append/Prepend.
func (s *Sample) Channel(ch int) []float32 {
	off := ch * s.stride
	return s.data[off : off+s.length]
}

// channelCap returns a slice view of channel ch's full capacity.
func (s *Sample) channelCap(ch int) []float32 {
	off := ch * s.stride
	return s.data[off : off+s.stride]
}

// Resize changes the logical length, reallocating if the new length
// exceeds the current capacity. Data in the overlap of the old and new
// stride is preserved; newly exposed samples beyond the old length are
// zeroed.
func (s *Sample) Resize(length int) error {
	if length < 0 {
		return fmt.Errorf("%w: negative length", dspcore.ErrBadArguments)
	}
	if length <= s.stride {
		if length > s.length {
			for ch := 0; ch < s.channels; ch++ {
				c := s.channelCap(ch)
				for i := s.length; i < length; i++ {
					c[i] = 0
				}
			}
		}
		s.length = length
		return nil
	}

	newStride := alignStride(length)
	newData := make([]float32, s.channels*newStride)
	for ch := 0; ch < s.channels; ch++ {
		copy(newData[ch*newStride:], s.channelCap(ch)[:s.length])
	}
	s.data = newData
	s.stride = newStride
	s.length = length
	return nil
}

// Append adds the samples in src (one slice per channel, same channel
// count as s) to the end of the sample. Length grows by len(src[0]).
func (s *Sample) Append(src [][]float32) error {
	if len(src) != s.channels {
		return fmt.Errorf("%w: channel count mismatch", dspcore.ErrBadArguments)
	}
	n := len(src[0])
	old := s.length
	if err := s.Resize(old + n); err != nil {
		return err
	}
	for ch := 0; ch < s.channels; ch++ {
		copy(s.channelCap(ch)[old:old+n], src[ch])
	}
	return nil
}

// Prepend adds src to the beginning of the sample, shifting existing
// samples forward by len(src[0]).
func (s *Sample) Prepend(src [][]float32) error {
	return s.Insert(0, src)
}

// Insert splices src into the sample at position pos, shifting existing
// samples at positions >= pos forward by len(src[0]). This is the
// operation invariant 6 in spec.md §8 describes: len increases by exactly
// len(src[0]), and samples at positions >= pos shift by that amount.
func (s *Sample) Insert(pos int, src [][]float32) error {
	if len(src) != s.channels {
		return fmt.Errorf("%w: channel count mismatch", dspcore.ErrBadArguments)
	}
	if pos < 0 || pos > s.length {
		return fmt.Errorf("%w: insert position out of range", dspcore.ErrInvalidValue)
	}
	n := len(src[0])
	old := s.length
	oldData := make([][]float32, s.channels)
	for ch := 0; ch < s.channels; ch++ {
		oldData[ch] = append([]float32(nil), s.Channel(ch)...)
	}
	if err := s.Resize(old + n); err != nil {
		return err
	}
	for ch := 0; ch < s.channels; ch++ {
		c := s.channelCap(ch)
		copy(c[pos+n:old+n], oldData[ch][pos:old])
		copy(c[pos:pos+n], src[ch])
		copy(c[:pos], oldData[ch][:pos])
	}
	return nil
}

// Swap exchanges the contents of s and other in O(1).
func (s *Sample) Swap(other *Sample) {
	*s, *other = *other, *s
}

// Clone returns an independent copy of s.
func (s *Sample) Clone() *Sample {
	out := &Sample{
		data:       append([]float32(nil), s.data...),
		channels:   s.channels,
		length:     s.length,
		stride:     s.stride,
		sampleRate: s.sampleRate,
	}
	return out
}
