// Package aec implements a Normalized Least Mean Squares (NLMS) acoustic
// echo canceller for the voicebridge engine.
//
// The canceller keeps a circular history of the far-end (loudspeaker) signal
// and subtracts an adaptively estimated echo from each near-end (microphone)
// frame. It exposes two surfaces over the same state: a byte-level
// point-to-point API (Playback, Capture, Reset) for callers that work in
// encoded frames, and the engine's frame processor methods (ProcessRender,
// ProcessCapture, SetDelay) operating on int16 sample slices.
package aec

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultStep is the NLMS step size mu (0 < mu < 2). Conservative values
// converge more slowly but stay stable in the presence of double talk.
const DefaultStep = 0.1

// Sentinel errors for canceller operations.
var (
	// ErrInvalidParam indicates a non-positive frame size, filter length, or
	// sample rate at construction.
	ErrInvalidParam = errors.New("frame size, filter length, and sample rate must be positive")

	// ErrFrameLength indicates a frame buffer whose length does not match
	// the configured frame size.
	ErrFrameLength = errors.New("frame length does not match configured frame size")

	// ErrClosed indicates use after Close.
	ErrClosed = errors.New("echo canceller is closed")
)

// Canceller is an NLMS-based acoustic echo canceller.
//
// The far-end history buffer is sized frameSize + delay + taps so the
// ProcessRender writer and the ProcessCapture reader always touch disjoint
// regions; the mutex is held only for the reference copy and for
// configuration changes.
type Canceller struct {
	mu     sync.Mutex
	closed bool

	frameSize  int
	sampleRate int
	taps       int
	step       float64

	weights []float64

	farBuf  []float64
	farHead int
	delay   int // bulk delay in samples between render and captured echo
}

// New creates a canceller for frames of frameSize samples, an adaptive
// filter of filterLength taps, and the given sample rate. All three must be
// positive.
func New(frameSize, filterLength, sampleRate int) (*Canceller, error) {
	logrus.WithFields(logrus.Fields{
		"function":      "New",
		"frame_size":    frameSize,
		"filter_length": filterLength,
		"sample_rate":   sampleRate,
	}).Info("Creating echo canceller")

	if frameSize <= 0 || filterLength <= 0 || sampleRate <= 0 {
		logrus.WithFields(logrus.Fields{
			"function":      "New",
			"frame_size":    frameSize,
			"filter_length": filterLength,
			"sample_rate":   sampleRate,
			"error":         ErrInvalidParam.Error(),
		}).Error("Canceller parameter validation failed")
		return nil, ErrInvalidParam
	}

	c := &Canceller{
		frameSize:  frameSize,
		sampleRate: sampleRate,
		taps:       filterLength,
		step:       DefaultStep,
		weights:    make([]float64, filterLength),
	}
	c.rebuildFarBuffer()
	return c, nil
}

// rebuildFarBuffer resizes the far-end history for the current delay and
// clears it. Callers hold c.mu or have exclusive access.
func (c *Canceller) rebuildFarBuffer() {
	c.farBuf = make([]float64, c.frameSize+c.delay+c.taps)
	c.farHead = 0
}

// FrameSize returns the configured frame size in samples.
func (c *Canceller) FrameSize() int {
	return c.frameSize
}

// SetDelay adjusts the assumed bulk delay between a render frame leaving the
// engine and its echo arriving in the capture path. The far-end history and
// filter weights are rebuilt, so adaptation restarts from scratch.
func (c *Canceller) SetDelay(ms int) error {
	logrus.WithFields(logrus.Fields{
		"function": "SetDelay",
		"delay_ms": ms,
	}).Info("Updating echo canceller delay")

	if ms < 0 {
		return fmt.Errorf("%w: negative delay %dms", ErrInvalidParam, ms)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	c.delay = ms * c.sampleRate / 1000
	c.rebuildFarBuffer()
	for i := range c.weights {
		c.weights[i] = 0
	}
	return nil
}

// ProcessRender stores frame as the most recent far-end reference and
// returns it unchanged; the engine discards the return value and keeps
// calling purely for adaptation.
func (c *Canceller) ProcessRender(frame []int16) ([]int16, error) {
	if len(frame) != c.frameSize {
		return nil, fmt.Errorf("%w: got %d samples, want %d", ErrFrameLength, len(frame), c.frameSize)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	for _, s := range frame {
		c.farBuf[c.farHead] = float64(s) / 32768.0
		c.farHead = (c.farHead + 1) % len(c.farBuf)
	}
	return frame, nil
}

// ProcessCapture cancels the estimated echo from a near-end frame and
// returns the residual. The renderRef argument exists for processors without
// internal far-end state; this canceller relies on the history accumulated
// by ProcessRender and ignores it.
func (c *Canceller) ProcessCapture(frame, _ []int16) ([]int16, error) {
	if len(frame) != c.frameSize {
		return nil, fmt.Errorf("%w: got %d samples, want %d", ErrFrameLength, len(frame), c.frameSize)
	}

	ref, err := c.copyReference()
	if err != nil {
		return nil, err
	}

	// NLMS runs outside the lock: weights are only touched here, and capture
	// frames are serialized by the engine.
	out := make([]int16, len(frame))
	for i, s := range frame {
		refBase := i + c.taps - 1

		var y, power float64
		for k := 0; k < c.taps; k++ {
			x := ref[refBase-k]
			y += c.weights[k] * x
			power += x * x
		}

		e := float64(s)/32768.0 - y

		if power > 1e-10 {
			g := c.step * e / power
			for k := 0; k < c.taps; k++ {
				c.weights[k] += g * ref[refBase-k]
			}
		}

		out[i] = clampSample(e * 32768.0)
	}
	return out, nil
}

// copyReference snapshots the far-end window needed to cancel one frame:
// frameSize+taps-1 samples ending delay samples before the newest write.
func (c *Canceller) copyReference() ([]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	refLen := c.frameSize + c.taps - 1
	ref := make([]float64, refLen)
	bufLen := len(c.farBuf)
	start := c.farHead - c.frameSize - c.delay - c.taps + 1
	for j := 0; j < refLen; j++ {
		idx := ((start+j)%bufLen + bufLen) % bufLen
		ref[j] = c.farBuf[idx]
	}
	return ref, nil
}

// Reset clears the adaptive state: filter weights and far-end history. The
// configured delay persists.
func (c *Canceller) Reset() {
	logrus.WithFields(logrus.Fields{
		"function": "Reset",
	}).Info("Resetting echo canceller state")

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	for i := range c.weights {
		c.weights[i] = 0
	}
	c.rebuildFarBuffer()
}

// Close releases the canceller. Further calls fail with ErrClosed.
func (c *Canceller) Close() error {
	logrus.WithFields(logrus.Fields{
		"function": "Close",
	}).Info("Closing echo canceller")

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.farBuf = nil
	return nil
}

func clampSample(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
