package voicebridge

import (
	"github.com/sirupsen/logrus"
)

// Default configuration values, applied by NewConfig.
const (
	// DefaultSampleRate is the default pipeline rate in Hz.
	DefaultSampleRate = 24000

	// MinSampleRate is the floor the pipeline rate is coerced to.
	MinSampleRate = 8000

	// DefaultStreamDelayMS is the default render-to-capture delay hint
	// forwarded to the processor.
	DefaultStreamDelayMS = 30

	// DefaultMaxCaptureFrames is the default capacity of each bounded
	// capture frame queue.
	DefaultMaxCaptureFrames = 400
)

// Config holds engine configuration. Use NewConfig to obtain the documented
// defaults, then override fields before passing it to New. There is no
// process-wide configuration state.
type Config struct {
	// SampleRate is the fixed pipeline rate in Hz. Frames are always
	// SampleRate/100 samples (10 ms). Rates below MinSampleRate are coerced
	// up; non-positive rates are rejected.
	SampleRate int

	// Channels is the channel count negotiated with the devices. The
	// pipeline itself is single-channel: capture keeps the first device
	// channel, render duplicates across all of them.
	Channels int

	// EnableAEC controls whether capture frames pass through the processor.
	// Render frames always reach the processor so it can track the far-end
	// signal regardless.
	EnableAEC bool

	// StreamDelayMS is the render-to-capture delay hint forwarded to the
	// processor at construction.
	StreamDelayMS int

	// MaxCaptureFrames bounds each capture frame queue (raw and processed).
	MaxCaptureFrames int

	// Processor handles render-reference adaptation and capture-frame echo
	// cancellation. Nil selects the built-in NLMS canceller.
	Processor Processor

	// Backend supplies device streams. Nil selects the malgo default-device
	// backend, created lazily on the first Start. Tests inject a fake here.
	Backend DeviceBackend
}

// NewConfig returns a Config populated with the default values.
func NewConfig() Config {
	return Config{
		SampleRate:       DefaultSampleRate,
		Channels:         1,
		EnableAEC:        true,
		StreamDelayMS:    DefaultStreamDelayMS,
		MaxCaptureFrames: DefaultMaxCaptureFrames,
	}
}

// validate checks the configuration and returns the effective values.
// Non-positive rates, channel counts, and queue capacities are rejected;
// sub-floor sample rates are coerced up to MinSampleRate.
func (c Config) validate() (Config, error) {
	logrus.WithFields(logrus.Fields{
		"function":           "validate",
		"sample_rate":        c.SampleRate,
		"channels":           c.Channels,
		"enable_aec":         c.EnableAEC,
		"stream_delay_ms":    c.StreamDelayMS,
		"max_capture_frames": c.MaxCaptureFrames,
	}).Debug("Validating engine configuration")

	if c.SampleRate <= 0 {
		return c, ErrInvalidSampleRate
	}
	if c.SampleRate < MinSampleRate {
		logrus.WithFields(logrus.Fields{
			"function":       "validate",
			"requested_rate": c.SampleRate,
			"coerced_rate":   MinSampleRate,
		}).Warn("Sample rate below floor, coercing")
		c.SampleRate = MinSampleRate
	}
	if c.Channels <= 0 {
		return c, ErrInvalidChannels
	}
	if c.MaxCaptureFrames <= 0 {
		return c, ErrInvalidQueueCapacity
	}
	if c.StreamDelayMS < 0 {
		return c, ErrInvalidStreamDelay
	}
	return c, nil
}

// FrameSize returns the pipeline frame size in samples (10 ms) for the
// configured sample rate.
func (c Config) FrameSize() int {
	return c.SampleRate / 100
}
