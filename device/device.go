package device

import (
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/sirupsen/logrus"
)

// IO owns the malgo context shared by all streams it opens. One IO instance
// outlives any number of stream open/close cycles; releasing it invalidates
// every stream opened through it.
type IO struct {
	ctx *malgo.AllocatedContext
}

// Options configures a stream to open. The zero value requests the engine
// defaults: signed 16-bit samples, one channel, and the device's preferred
// sample rate.
type Options struct {
	// SampleRate is the requested rate in Hz. The device may run at a
	// different native rate; Stream.SampleRate reports the actual one.
	SampleRate uint32

	// Channels is the interleaved channel count to negotiate. Zero means
	// mono.
	Channels int

	// Format is the device sample representation. Zero (FormatUnknown) means
	// FormatS16. Unsupported formats fail stream creation with
	// ErrUnsupportedFormat.
	Format malgo.FormatType
}

func (o Options) withDefaults() Options {
	if o.Channels <= 0 {
		o.Channels = 1
	}
	if o.Format == malgo.FormatUnknown {
		o.Format = malgo.FormatS16
	}
	return o
}

// New initializes the audio backend context.
func New() (*IO, error) {
	logrus.WithFields(logrus.Fields{
		"function": "New",
	}).Info("Initializing audio device context")

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logrus.WithFields(logrus.Fields{
			"function": "malgo",
			"message":  message,
		}).Debug("Audio backend log")
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "New",
			"error":    err.Error(),
		}).Error("Failed to initialize audio device context")
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	return &IO{ctx: ctx}, nil
}

// Close releases the backend context. All streams opened through this IO
// must be closed first.
func (io *IO) Close() error {
	logrus.WithFields(logrus.Fields{
		"function": "Close",
	}).Info("Releasing audio device context")

	if io.ctx == nil {
		return nil
	}
	err := io.ctx.Uninit()
	io.ctx.Free()
	io.ctx = nil
	if err != nil {
		return fmt.Errorf("uninit audio context: %w", err)
	}
	return nil
}

// OpenCapture opens the default capture device. fn is invoked from the
// device's real-time thread with a batch of mono int16 samples per callback;
// it must not block. The stream does not run until Start is called.
func (io *IO) OpenCapture(opts Options, fn func(samples []int16)) (*Stream, error) {
	opts = opts.withDefaults()

	logrus.WithFields(logrus.Fields{
		"function":    "OpenCapture",
		"sample_rate": opts.SampleRate,
		"channels":    opts.Channels,
		"format":      opts.Format,
	}).Info("Opening default capture device")

	codec, err := newSampleCodec(opts.Format)
	if err != nil {
		return nil, err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = opts.Format
	cfg.Capture.Channels = uint32(opts.Channels)
	cfg.SampleRate = opts.SampleRate
	cfg.PeriodSizeInMilliseconds = 10

	var scratch []int16
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			scratch = codec.decodeFirstChannel(input, opts.Channels, scratch)
			if len(scratch) > 0 {
				fn(scratch)
			}
		},
	}

	dev, err := malgo.InitDevice(io.ctx.Context, cfg, callbacks)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "OpenCapture",
			"error":    err.Error(),
		}).Error("Failed to open capture device")
		return nil, fmt.Errorf("open capture device: %w", err)
	}

	stream := &Stream{dev: dev, sampleRate: dev.SampleRate(), direction: "capture"}

	logrus.WithFields(logrus.Fields{
		"function":    "OpenCapture",
		"device_rate": stream.sampleRate,
	}).Info("Capture device opened")

	return stream, nil
}

// OpenRender opens the default render device. fn is invoked from the
// device's real-time thread with a mono int16 buffer to fill per callback;
// it must not block. The stream does not run until Start is called.
func (io *IO) OpenRender(opts Options, fn func(out []int16)) (*Stream, error) {
	opts = opts.withDefaults()

	logrus.WithFields(logrus.Fields{
		"function":    "OpenRender",
		"sample_rate": opts.SampleRate,
		"channels":    opts.Channels,
		"format":      opts.Format,
	}).Info("Opening default render device")

	codec, err := newSampleCodec(opts.Format)
	if err != nil {
		return nil, err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = opts.Format
	cfg.Playback.Channels = uint32(opts.Channels)
	cfg.SampleRate = opts.SampleRate
	cfg.PeriodSizeInMilliseconds = 10

	var scratch []int16
	callbacks := malgo.DeviceCallbacks{
		Data: func(output, _ []byte, frameCount uint32) {
			n := int(frameCount)
			if cap(scratch) < n {
				scratch = make([]int16, n)
			}
			scratch = scratch[:n]
			fn(scratch)
			codec.encodeAllChannels(scratch, opts.Channels, output)
		},
	}

	dev, err := malgo.InitDevice(io.ctx.Context, cfg, callbacks)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "OpenRender",
			"error":    err.Error(),
		}).Error("Failed to open render device")
		return nil, fmt.Errorf("open render device: %w", err)
	}

	stream := &Stream{dev: dev, sampleRate: dev.SampleRate(), direction: "render"}

	logrus.WithFields(logrus.Fields{
		"function":    "OpenRender",
		"device_rate": stream.sampleRate,
	}).Info("Render device opened")

	return stream, nil
}

// Stream is one opened capture or render device stream. It is owned by the
// control thread that opened it and must not be shared.
type Stream struct {
	dev        *malgo.Device
	sampleRate uint32
	direction  string
}

// SampleRate returns the device's actual native sample rate, which may
// differ from the requested one.
func (s *Stream) SampleRate() uint32 {
	return s.sampleRate
}

// Start begins callback delivery.
func (s *Stream) Start() error {
	logrus.WithFields(logrus.Fields{
		"function":  "Start",
		"direction": s.direction,
	}).Info("Starting device stream")

	if err := s.dev.Start(); err != nil {
		return fmt.Errorf("start %s stream: %w", s.direction, err)
	}
	return nil
}

// Stop halts callback delivery. The stream can be started again.
func (s *Stream) Stop() error {
	logrus.WithFields(logrus.Fields{
		"function":  "Stop",
		"direction": s.direction,
	}).Info("Stopping device stream")

	if s.dev == nil {
		return nil
	}
	if err := s.dev.Stop(); err != nil {
		return fmt.Errorf("stop %s stream: %w", s.direction, err)
	}
	return nil
}

// Close stops the stream if needed and releases the device. No callback is
// invoked after Close returns.
func (s *Stream) Close() error {
	logrus.WithFields(logrus.Fields{
		"function":  "Close",
		"direction": s.direction,
	}).Info("Closing device stream")

	if s.dev == nil {
		return nil
	}
	s.dev.Uninit()
	s.dev = nil
	return nil
}
