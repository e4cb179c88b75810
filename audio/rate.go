package audio

// RateConverter maps a device-chosen sample rate onto the fixed pipeline rate
// using only integer arithmetic. Floating-point ratios accumulate rounding
// error over long sessions; the integer accumulator keeps the cumulative
// timing error below one device sample period no matter how long the stream
// runs.
//
// One converter instance serves one direction (render or capture). For every
// device sample the caller invokes Advance and receives the number of
// pipeline-rate samples to move: on the render side that many samples are
// consumed from the playback buffer (zero-order hold keeps the last one), on
// the capture side the current device sample is appended that many times.
type RateConverter struct {
	pipelineRate uint32
	deviceRate   uint32
	accum        uint64
}

// NewRateConverter creates a converter for the given pipeline rate. The
// device rate defaults to the pipeline rate (1:1) until SetDeviceRate is
// called with the rate reported by an opened stream.
func NewRateConverter(pipelineRate uint32) *RateConverter {
	c := &RateConverter{pipelineRate: pipelineRate}
	c.SetDeviceRate(pipelineRate)
	return c
}

// SetDeviceRate reconfigures the converter for a device stream running at
// rate Hz. A zero rate is coerced to 1 to avoid degenerate arithmetic. The
// accumulator is seeded to the device rate so the very first device sample
// triggers a pipeline step immediately instead of being delayed by one
// period.
func (c *RateConverter) SetDeviceRate(rate uint32) {
	if rate < 1 {
		rate = 1
	}
	c.deviceRate = rate
	c.accum = uint64(rate)
}

// Advance accounts for one device sample and returns how many pipeline-rate
// samples correspond to it: zero when the device runs faster than the
// pipeline (the held value repeats), one at matched rates, and more than one
// when the device runs slower (implicit decimation). The accumulator
// remainder persists across calls; it is never reset mid-stream.
func (c *RateConverter) Advance() int {
	c.accum += uint64(c.pipelineRate)

	steps := 0
	for c.accum >= uint64(c.deviceRate) {
		c.accum -= uint64(c.deviceRate)
		steps++
	}
	return steps
}

// DeviceRate returns the currently configured device rate.
func (c *RateConverter) DeviceRate() uint32 {
	return c.deviceRate
}

// PipelineRate returns the fixed pipeline rate.
func (c *RateConverter) PipelineRate() uint32 {
	return c.pipelineRate
}
