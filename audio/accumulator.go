package audio

// FrameAccumulator collects pipeline-rate samples and slices them into
// fixed-size frames in FIFO order. It holds at most frameSize-1 samples
// between drains; a partial frame waits indefinitely for more samples, there
// is no time-based flush.
type FrameAccumulator struct {
	frameSize int
	samples   []int16
}

// NewFrameAccumulator creates an accumulator producing frames of frameSize
// samples.
func NewFrameAccumulator(frameSize int) *FrameAccumulator {
	return &FrameAccumulator{
		frameSize: frameSize,
		samples:   make([]int16, 0, frameSize*2),
	}
}

// Append adds one sample to the accumulator.
func (a *FrameAccumulator) Append(sample int16) {
	a.samples = append(a.samples, sample)
}

// NextFrame slices one complete frame off the front of the accumulator.
// It returns false when fewer than frameSize samples are buffered. Callers
// drain in a loop, since a burst of appends can complete several frames.
func (a *FrameAccumulator) NextFrame() ([]int16, bool) {
	if len(a.samples) < a.frameSize {
		return nil, false
	}

	frame := make([]int16, a.frameSize)
	copy(frame, a.samples[:a.frameSize])
	n := copy(a.samples, a.samples[a.frameSize:])
	a.samples = a.samples[:n]
	return frame, true
}

// Pending returns the number of buffered samples not yet forming a frame.
func (a *FrameAccumulator) Pending() int {
	return len(a.samples)
}

// FrameSize returns the configured frame size in samples.
func (a *FrameAccumulator) FrameSize() int {
	return a.frameSize
}

// Reset discards any partially accumulated samples.
func (a *FrameAccumulator) Reset() {
	a.samples = a.samples[:0]
}
