package aec

import "fmt"

// Byte-level point-to-point surface. Frames are headerless little-endian
// signed 16-bit PCM, exactly FrameSize()*2 bytes each.

// Playback feeds a far-end (loudspeaker) frame to the canceller.
func (c *Canceller) Playback(frame []byte) error {
	if len(frame) != c.frameSize*2 {
		return fmt.Errorf("%w: playback frame must be %d bytes, got %d",
			ErrFrameLength, c.frameSize*2, len(frame))
	}

	_, err := c.ProcessRender(decodeFrame(frame))
	return err
}

// Capture processes a near-end (microphone) frame and returns the
// echo-cancelled output as a new byte frame of the same length.
func (c *Canceller) Capture(frame []byte) ([]byte, error) {
	if len(frame) != c.frameSize*2 {
		return nil, fmt.Errorf("%w: capture frame must be %d bytes, got %d",
			ErrFrameLength, c.frameSize*2, len(frame))
	}

	out, err := c.ProcessCapture(decodeFrame(frame), nil)
	if err != nil {
		return nil, err
	}
	return encodeFrame(out), nil
}

func decodeFrame(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return samples
}

func encodeFrame(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		data[i*2] = byte(s)
		data[i*2+1] = byte(s >> 8)
	}
	return data
}
