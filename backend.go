package voicebridge

import (
	"github.com/gen2brain/malgo"

	"github.com/opd-ai/voicebridge/device"
)

// DeviceBackend abstracts the device I/O layer so tests can substitute a
// deterministic fake for the OS audio subsystem.
//
// Capture callbacks deliver batches of mono int16 samples at the device's
// native rate; render callbacks receive a mono buffer to fill. Both run on
// real-time device threads and must not block.
type DeviceBackend interface {
	// OpenCapture opens the default capture device without starting it.
	OpenCapture(sampleRate uint32, channels int, fn func(samples []int16)) (DeviceStream, error)

	// OpenRender opens the default render device without starting it.
	OpenRender(sampleRate uint32, channels int, fn func(out []int16)) (DeviceStream, error)

	// Close releases the backend. All streams must be closed first.
	Close() error
}

// DeviceStream is one opened device stream. It is owned by the engine's
// control surface and never shared with callback threads.
type DeviceStream interface {
	// SampleRate reports the device's actual native rate.
	SampleRate() uint32

	// Start begins callback delivery.
	Start() error

	// Stop halts callback delivery; the stream may be started again.
	Stop() error

	// Close releases the stream. No callback runs after Close returns.
	Close() error
}

// malgoBackend adapts the device package to the DeviceBackend interface.
type malgoBackend struct {
	io *device.IO
}

func newMalgoBackend() (*malgoBackend, error) {
	io, err := device.New()
	if err != nil {
		return nil, err
	}
	return &malgoBackend{io: io}, nil
}

func (b *malgoBackend) OpenCapture(sampleRate uint32, channels int, fn func([]int16)) (DeviceStream, error) {
	return b.io.OpenCapture(device.Options{
		SampleRate: sampleRate,
		Channels:   channels,
		Format:     malgo.FormatS16,
	}, fn)
}

func (b *malgoBackend) OpenRender(sampleRate uint32, channels int, fn func([]int16)) (DeviceStream, error) {
	return b.io.OpenRender(device.Options{
		SampleRate: sampleRate,
		Channels:   channels,
		Format:     malgo.FormatS16,
	}, fn)
}

func (b *malgoBackend) Close() error {
	return b.io.Close()
}
