// Package dspcore provides a set of reusable, sample-accurate DSP units for
// real-time audio processing: biquad filter design and discretization, a
// ray-traced room impulse response generator, a look-ahead peak limiter, a
// polyphase oversampler, a band-limited oscillator, a sample container and
// loader, a per-voice playback engine, a sidechain level detector, an ADSR
// envelope generator, static waveshaping functions, a chirp-based latency
// detector, and a framed spectral processor.
//
// Each unit follows the same lifecycle: construct, configure parameters,
// Process in a loop, then discard. Setters only stage new parameter values
// and mark the unit dirty; the (possibly expensive) recomputation runs
// lazily inside the unit's next processing call. Processing is not
// allocation-free in every unit: several, among them dynfilter, latency,
// limiter, oscillator and spectral, allocate scratch slices while
// processing.
//
// Every unit is single-threaded and safe to call only from one goroutine at
// a time, except the raytrace package, which parallelizes internally across
// a caller-supplied worker count.
package dspcore
