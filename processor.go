package voicebridge

// Processor is the external block-processing collaborator the engine drives:
// typically an echo canceller or noise suppressor. The engine hands it every
// completed render frame so it can learn the loudspeaker signal, and, when
// AEC is enabled, routes every capture frame through it.
//
// Frames are fixed-length pipeline-rate sample blocks. Implementations are
// called with the engine lock held, so they must not block or call back into
// the engine.
type Processor interface {
	// ProcessRender receives a completed render frame for far-end
	// adaptation. The engine discards the returned frame.
	ProcessRender(frame []int16) ([]int16, error)

	// ProcessCapture transforms a capture frame. renderRef is the most
	// recently completed render frame before this call, or nil when none has
	// completed yet; the alignment is best-effort, not synchronized.
	ProcessCapture(frame, renderRef []int16) ([]int16, error)

	// SetDelay forwards the render-to-capture delay hint in milliseconds.
	SetDelay(ms int) error
}

// PassthroughProcessor satisfies Processor without altering any audio. It is
// the processor of record when echo cancellation is handled elsewhere.
type PassthroughProcessor struct{}

// ProcessRender returns the frame unchanged.
func (PassthroughProcessor) ProcessRender(frame []int16) ([]int16, error) {
	return frame, nil
}

// ProcessCapture returns the capture frame unchanged.
func (PassthroughProcessor) ProcessCapture(frame, _ []int16) ([]int16, error) {
	return frame, nil
}

// SetDelay accepts and ignores the delay hint.
func (PassthroughProcessor) SetDelay(int) error {
	return nil
}
