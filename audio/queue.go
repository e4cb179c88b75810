package audio

// FrameQueue is a bounded FIFO of byte-encoded frames with drop-oldest
// backpressure. Pushing onto a full queue evicts the oldest frame and
// increments the dropped counter by exactly one, so a stalled consumer costs
// bounded memory and an exact accounting of what was lost. Neither Push nor
// PopMany ever blocks.
type FrameQueue struct {
	frames   [][]byte
	capacity int
	dropped  uint64
}

// NewFrameQueue creates a queue holding at most capacity frames.
func NewFrameQueue(capacity int) *FrameQueue {
	return &FrameQueue{
		frames:   make([][]byte, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a frame, evicting the oldest one first when the queue is at
// capacity.
func (q *FrameQueue) Push(frame []byte) {
	if len(q.frames) >= q.capacity {
		n := copy(q.frames, q.frames[1:])
		q.frames = q.frames[:n]
		q.dropped++
	}
	q.frames = append(q.frames, frame)
}

// PopMany removes and returns up to max of the oldest frames, oldest first.
// It returns fewer than max (possibly none) without error when the queue
// holds fewer.
func (q *FrameQueue) PopMany(max int) [][]byte {
	if max > len(q.frames) {
		max = len(q.frames)
	}
	if max <= 0 {
		return nil
	}

	out := make([][]byte, max)
	copy(out, q.frames[:max])
	n := copy(q.frames, q.frames[max:])
	q.frames = q.frames[:n]
	return out
}

// Len returns the current number of queued frames.
func (q *FrameQueue) Len() int {
	return len(q.frames)
}

// Capacity returns the configured maximum queue length.
func (q *FrameQueue) Capacity() int {
	return q.capacity
}

// Dropped returns the number of frames evicted since creation or the last
// ResetDropped.
func (q *FrameQueue) Dropped() uint64 {
	return q.dropped
}

// Reset discards all queued frames and clears the dropped counter.
func (q *FrameQueue) Reset() {
	q.frames = q.frames[:0]
	q.dropped = 0
}
