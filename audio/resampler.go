package audio

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Resampler converts mono PCM between sample rates using linear
// interpolation. It exists for the non-real-time ingestion paths (decoded
// Opus payloads, file playback) where submitted audio may not match the
// pipeline rate; the device bridge itself uses RateConverter instead.
//
// The fractional read position and the last sample of the previous batch are
// carried across calls so consecutive buffers resample without seams.
type Resampler struct {
	inputRate  uint32
	outputRate uint32
	position   float64
	lastSample int16
	primed     bool
}

// NewResampler creates a mono resampler converting inputRate to outputRate.
func NewResampler(inputRate, outputRate uint32) (*Resampler, error) {
	logrus.WithFields(logrus.Fields{
		"function":    "NewResampler",
		"input_rate":  inputRate,
		"output_rate": outputRate,
	}).Debug("Creating linear resampler")

	if inputRate == 0 || outputRate == 0 {
		logrus.WithFields(logrus.Fields{
			"function":    "NewResampler",
			"input_rate":  inputRate,
			"output_rate": outputRate,
			"error":       "invalid sample rates",
		}).Error("Resampler rate validation failed")
		return nil, fmt.Errorf("invalid sample rates: input=%d, output=%d", inputRate, outputRate)
	}

	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
	}, nil
}

// InputRate returns the configured input sample rate.
func (r *Resampler) InputRate() uint32 {
	return r.inputRate
}

// OutputRate returns the configured output sample rate.
func (r *Resampler) OutputRate() uint32 {
	return r.outputRate
}

// Resample converts a batch of mono samples to the output rate. An empty
// input yields an empty output. Matched rates pass the input through as a
// copy.
func (r *Resampler) Resample(input []int16) []int16 {
	if len(input) == 0 {
		return nil
	}
	if r.inputRate == r.outputRate {
		out := make([]int16, len(input))
		copy(out, input)
		return out
	}

	ratio := float64(r.inputRate) / float64(r.outputRate)
	outputLen := int(float64(len(input))/ratio + 0.5)
	output := make([]int16, 0, outputLen)

	for i := 0; i < outputLen; i++ {
		idx := int(r.position)
		frac := r.position - float64(idx)
		if r.position < 0 {
			// Carried-over position between the previous batch's last sample
			// and this batch's first one.
			idx = -1
			frac = r.position + 1
		}
		output = append(output, r.interpolate(input, idx, frac))
		r.position += ratio
	}

	r.position -= float64(len(input))
	if r.position < -1 {
		r.position = 0
	}
	r.lastSample = input[len(input)-1]
	r.primed = true

	return output
}

// interpolate reads the sample at a fractional position, bridging batch
// boundaries with the last sample of the previous call.
func (r *Resampler) interpolate(input []int16, idx int, frac float64) int16 {
	var s0, s1 int16
	switch {
	case idx < 0:
		if r.primed {
			s0 = r.lastSample
		}
		s1 = input[0]
	case idx >= len(input)-1:
		s0 = input[len(input)-1]
		s1 = s0
	default:
		s0 = input[idx]
		s1 = input[idx+1]
	}
	return int16(float64(s0)*(1.0-frac) + float64(s1)*frac)
}

// Reset clears the fractional position and boundary state, for use at a
// stream discontinuity.
func (r *Resampler) Reset() {
	r.position = 0
	r.lastSample = 0
	r.primed = false
}
