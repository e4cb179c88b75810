package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlaybackBufferEnqueueBytesDecodesLittleEndian(t *testing.T) {
	b := NewPlaybackBuffer()

	b.EnqueueBytes([]byte{0x64, 0x00, 0x9c, 0xff}) // 100, -100

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, int16(100), b.Consume())
	assert.Equal(t, int16(-100), b.Consume())
	assert.Equal(t, uint64(0), b.Underruns())
}

func TestPlaybackBufferUnderrunAccounting(t *testing.T) {
	// Property: N consumes from an empty buffer yield N underruns, each
	// producing a zero sample.
	b := NewPlaybackBuffer()

	for i := 0; i < 50; i++ {
		assert.Equal(t, int16(0), b.Consume())
	}

	assert.Equal(t, uint64(50), b.Underruns())
}

func TestPlaybackBufferFIFOAcrossBatches(t *testing.T) {
	b := NewPlaybackBuffer()

	b.EnqueueSamples([]int16{1, 2})
	assert.Equal(t, int16(1), b.Consume())
	b.EnqueueSamples([]int16{3})

	assert.Equal(t, int16(2), b.Consume())
	assert.Equal(t, int16(3), b.Consume())
	assert.Equal(t, 0, b.Len())
}

func TestPlaybackBufferReclaimsConsumedPrefix(t *testing.T) {
	b := NewPlaybackBuffer()

	samples := make([]int16, 10000)
	for i := range samples {
		samples[i] = int16(i)
	}
	b.EnqueueSamples(samples)

	for i := 0; i < 6000; i++ {
		assert.Equal(t, int16(i), b.Consume())
	}
	assert.Equal(t, 4000, b.Len())

	// Remaining samples survive compaction in order.
	for i := 6000; i < 10000; i++ {
		assert.Equal(t, int16(i), b.Consume())
	}
	assert.Equal(t, uint64(0), b.Underruns())
}

func TestPlaybackBufferReset(t *testing.T) {
	b := NewPlaybackBuffer()
	b.EnqueueSamples([]int16{1, 2, 3})
	b.Consume()

	b.Reset()

	assert.Equal(t, 0, b.Len())
	assert.Equal(t, uint64(0), b.Underruns())
}
