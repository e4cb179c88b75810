package audio

// PlaybackBuffer is the unbounded FIFO of pipeline-rate samples awaiting
// playback. Consuming from an empty buffer never blocks and never errors: it
// synthesizes silence and counts an underrun, so the render callback always
// has a sample to emit.
//
// Samples are stored in a slice with a read cursor so Consume is O(1); the
// consumed prefix is reclaimed each time the buffer drains or the cursor
// passes half the backing array.
type PlaybackBuffer struct {
	samples   []int16
	head      int
	underruns uint64
}

// NewPlaybackBuffer creates an empty playback buffer.
func NewPlaybackBuffer() *PlaybackBuffer {
	return &PlaybackBuffer{}
}

// EnqueueBytes decodes little-endian signed 16-bit PCM and appends the
// samples. The byte length must be even; the engine validates submissions
// before they reach this point, so a trailing odd byte is ignored here.
func (b *PlaybackBuffer) EnqueueBytes(pcm []byte) {
	for i := 0; i+1 < len(pcm); i += 2 {
		b.samples = append(b.samples, int16(pcm[i])|int16(pcm[i+1])<<8)
	}
}

// EnqueueSamples appends already-decoded pipeline-rate samples.
func (b *PlaybackBuffer) EnqueueSamples(samples []int16) {
	b.samples = append(b.samples, samples...)
}

// Consume pops the oldest sample. When the buffer is empty it increments the
// underrun counter and returns zero.
func (b *PlaybackBuffer) Consume() int16 {
	if b.head >= len(b.samples) {
		b.underruns++
		return 0
	}

	sample := b.samples[b.head]
	b.head++

	if b.head == len(b.samples) {
		b.samples = b.samples[:0]
		b.head = 0
	} else if b.head > len(b.samples)/2 && b.head >= 4096 {
		n := copy(b.samples, b.samples[b.head:])
		b.samples = b.samples[:n]
		b.head = 0
	}
	return sample
}

// Len returns the number of pending samples.
func (b *PlaybackBuffer) Len() int {
	return len(b.samples) - b.head
}

// Underruns returns the number of consume calls that found the buffer empty.
func (b *PlaybackBuffer) Underruns() uint64 {
	return b.underruns
}

// Reset discards pending samples and clears the underrun counter.
func (b *PlaybackBuffer) Reset() {
	b.samples = b.samples[:0]
	b.head = 0
	b.underruns = 0
}
