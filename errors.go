package voicebridge

import "errors"

// Sentinel errors for engine operations.
// These errors enable reliable error classification using errors.Is().

// Configuration validation errors.
var (
	// ErrInvalidSampleRate indicates a non-positive pipeline sample rate.
	ErrInvalidSampleRate = errors.New("sample rate must be positive")

	// ErrInvalidChannels indicates a non-positive device channel count.
	ErrInvalidChannels = errors.New("channel count must be positive")

	// ErrInvalidQueueCapacity indicates a non-positive capture queue capacity.
	ErrInvalidQueueCapacity = errors.New("capture queue capacity must be positive")

	// ErrInvalidStreamDelay indicates a negative stream delay hint.
	ErrInvalidStreamDelay = errors.New("stream delay must not be negative")
)

// Data-plane validation errors.
var (
	// ErrOddPlaybackLength indicates a playback submission whose byte length
	// is not a whole number of 16-bit samples.
	ErrOddPlaybackLength = errors.New("playback buffer requires an even byte length")

	// ErrEmptyPayload indicates an empty encoded payload submission.
	ErrEmptyPayload = errors.New("empty payload")
)

// Engine state errors.
var (
	// ErrStatePoisoned indicates a previous panic inside an engine critical
	// section. The engine refuses further operations until rebuilt.
	ErrStatePoisoned = errors.New("engine state poisoned by a previous failure")

	// ErrEngineClosed indicates use after Close released the device backend.
	ErrEngineClosed = errors.New("engine is closed")

	// ErrNoProcessor indicates a processor-directed operation on an engine
	// configured without one.
	ErrNoProcessor = errors.New("no processor configured")
)
