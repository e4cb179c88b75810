package aec

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name         string
		frameSize    int
		filterLength int
		sampleRate   int
		expectErr    bool
	}{
		{name: "valid", frameSize: 160, filterLength: 160, sampleRate: 16000, expectErr: false},
		{name: "zero_frame_size", frameSize: 0, filterLength: 160, sampleRate: 16000, expectErr: true},
		{name: "negative_filter", frameSize: 160, filterLength: -1, sampleRate: 16000, expectErr: true},
		{name: "zero_sample_rate", frameSize: 160, filterLength: 160, sampleRate: 0, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.frameSize, tt.filterLength, tt.sampleRate)

			if tt.expectErr {
				assert.ErrorIs(t, err, ErrInvalidParam)
				assert.Nil(t, c)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.frameSize, c.FrameSize())
			}
		})
	}
}

func TestCapturePassthroughWithSilentFarEnd(t *testing.T) {
	// With no far-end signal the reference power stays below the adaptation
	// floor, so the filter output is zero and capture passes through intact.
	c, err := New(160, 160, 16000)
	require.NoError(t, err)

	frame := make([]int16, 160)
	for i := range frame {
		frame[i] = int16(1000 * math.Sin(float64(i)/10))
	}

	out, err := c.ProcessCapture(frame, nil)
	require.NoError(t, err)
	assert.Equal(t, frame, out)
}

func TestProcessCaptureRejectsWrongLength(t *testing.T) {
	c, err := New(160, 160, 16000)
	require.NoError(t, err)

	_, err = c.ProcessCapture(make([]int16, 80), nil)
	assert.ErrorIs(t, err, ErrFrameLength)
}

func TestProcessRenderRejectsWrongLength(t *testing.T) {
	c, err := New(160, 160, 16000)
	require.NoError(t, err)

	_, err = c.ProcessRender(make([]int16, 161))
	assert.ErrorIs(t, err, ErrFrameLength)
}

func TestByteSurfaceValidatesFrameLength(t *testing.T) {
	c, err := New(160, 160, 16000)
	require.NoError(t, err)

	assert.ErrorIs(t, c.Playback(make([]byte, 100)), ErrFrameLength)

	_, err = c.Capture(make([]byte, 319))
	assert.ErrorIs(t, err, ErrFrameLength)
}

func TestByteSurfaceRoundTrip(t *testing.T) {
	c, err := New(4, 4, 16000)
	require.NoError(t, err)

	require.NoError(t, c.Playback(make([]byte, 8)))

	out, err := c.Capture([]byte{0x64, 0x00, 0x9c, 0xff, 0x00, 0x00, 0x01, 0x00})
	require.NoError(t, err)
	// Silent far end: the near-end frame survives byte-exact.
	assert.Equal(t, []byte{0x64, 0x00, 0x9c, 0xff, 0x00, 0x00, 0x01, 0x00}, out)
}

func TestEchoConvergence(t *testing.T) {
	// Near end is a pure copy of the far end (zero-delay echo path). The
	// NLMS filter must attenuate the echo as it adapts: late-frame residual
	// energy stays well below the near-end input energy.
	const frameSize = 160
	c, err := New(frameSize, 32, 16000)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	var inputEnergy, residualEnergy float64

	for frame := 0; frame < 50; frame++ {
		far := make([]int16, frameSize)
		for i := range far {
			far[i] = int16(rng.Intn(8000) - 4000)
		}

		_, err := c.ProcessRender(far)
		require.NoError(t, err)

		near := make([]int16, frameSize)
		copy(near, far)

		out, err := c.ProcessCapture(near, nil)
		require.NoError(t, err)

		// Measure only after the filter has had frames to adapt.
		if frame >= 40 {
			for i := range near {
				inputEnergy += float64(near[i]) * float64(near[i])
				residualEnergy += float64(out[i]) * float64(out[i])
			}
		}
	}

	require.Greater(t, inputEnergy, 0.0)
	assert.Less(t, residualEnergy, inputEnergy*0.5)
}

func TestResetClearsAdaptation(t *testing.T) {
	c, err := New(8, 8, 16000)
	require.NoError(t, err)

	far := []int16{4000, -4000, 4000, -4000, 4000, -4000, 4000, -4000}
	_, err = c.ProcessRender(far)
	require.NoError(t, err)

	c.Reset()

	// After reset the far-end history is gone: capture passes through.
	near := []int16{100, 200, 300, 400, 500, 600, 700, 800}
	out, err := c.ProcessCapture(near, nil)
	require.NoError(t, err)
	assert.Equal(t, near, out)
}

func TestSetDelayValidation(t *testing.T) {
	c, err := New(160, 160, 16000)
	require.NoError(t, err)

	assert.NoError(t, c.SetDelay(30))
	assert.ErrorIs(t, c.SetDelay(-1), ErrInvalidParam)
}

func TestClosedCancellerRejectsOperations(t *testing.T) {
	c, err := New(160, 160, 16000)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = c.ProcessRender(make([]int16, 160))
	assert.ErrorIs(t, err, ErrClosed)

	_, err = c.ProcessCapture(make([]int16, 160), nil)
	assert.ErrorIs(t, err, ErrClosed)

	assert.ErrorIs(t, c.SetDelay(10), ErrClosed)
}
