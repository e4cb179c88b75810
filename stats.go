package voicebridge

// Stats is a point-in-time snapshot of the engine counters. All fields are
// non-negative and monotonically increasing between resets.
type Stats struct {
	// CaptureFrames counts complete frames produced by the capture path.
	CaptureFrames uint64

	// ProcessedFrames counts frames pushed to the processed queue. Matches
	// CaptureFrames 1:1 over the engine's lifetime.
	ProcessedFrames uint64

	// PlaybackUnderruns counts render-side consumes that found the playback
	// buffer empty and synthesized silence instead.
	PlaybackUnderruns uint64

	// PendingPlaybackSamples is the current playback buffer depth.
	PendingPlaybackSamples int

	// DroppedRawFrames counts evictions from the raw capture queue.
	DroppedRawFrames uint64

	// DroppedProcessedFrames counts evictions from the processed capture
	// queue.
	DroppedProcessedFrames uint64
}
