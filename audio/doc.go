// Package audio provides the sample-level building blocks of the voicebridge
// engine: integer-accumulator rate conversion between device and pipeline
// sample rates, frame accumulation, bounded frame queueing with drop-oldest
// backpressure, the unbounded playback sample buffer, PCM byte codecs, and a
// linear-interpolation resampler for non-real-time payload ingestion.
//
// # Architecture Overview
//
// The capture direction flows:
//
//	device samples → RateConverter → FrameAccumulator → FrameQueue
//
// The render direction flows:
//
//	PlaybackBuffer → RateConverter → device samples
//
// All types in this package are single-goroutine state machines. The engine
// serializes access to them behind its own mutex; nothing here locks, blocks,
// or performs I/O, so every call is safe inside a real-time device callback
// critical section.
//
// # Rate Conversion
//
// RateConverter deliberately trades fidelity for determinism: it uses a
// zero-order hold (sample repetition or decimation) driven by an integer
// accumulator, which bounds long-run timing error to less than one device
// sample period over arbitrarily long sessions. Resampler, by contrast, is a
// linear-interpolation converter intended for non-real-time use such as
// decoding submitted payloads; it is never called from a device callback.
package audio
