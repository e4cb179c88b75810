package voicebridge

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/voicebridge/aec"
	"github.com/opd-ai/voicebridge/audio"
)

// Engine bridges the asynchronous, hardware-clocked device callbacks to the
// fixed-rate frame pipeline and exposes the pull/push control surface to
// non-real-time callers.
//
// The engine owns the device streams; the device callbacks share only the
// mutex-guarded pipeline state. Stopping the engine releases the streams but
// preserves buffered frames and counters, so a stopped engine can be drained
// and restarted.
type Engine struct {
	// mu guards the stream lifecycle and the lazily created backend. It is
	// distinct from the pipeline state lock so control operations never
	// contend with device callbacks beyond the bounded state critical
	// sections.
	mu sync.Mutex

	cfg     Config
	shared  *sharedState
	backend DeviceBackend
	ownsBE  bool
	capture DeviceStream
	render  DeviceStream
	closed  bool

	// opus is the lazily created Opus ingestion path, guarded by mu.
	opus *opusIngest
}

// sharedState is the single mutually-exclusive-access aggregate shared by
// the capture callback, the render callback, and the control surface. Device
// callbacks hold a pointer to it for their lifetime; they never touch the
// Engine itself.
type sharedState struct {
	mu       sync.Mutex
	poisoned atomic.Bool
	st       engineState
}

// with runs fn under the state lock. A panic inside fn poisons the state:
// the panic is absorbed, the error reports it, and every later call fails
// fast with ErrStatePoisoned instead of operating on corrupt state.
func (s *sharedState) with(fn func(*engineState) error) (err error) {
	if s.poisoned.Load() {
		return ErrStatePoisoned
	}
	s.mu.Lock()
	defer func() {
		if r := recover(); r != nil {
			s.poisoned.Store(true)
			logrus.WithFields(logrus.Fields{
				"function": "sharedState.with",
				"panic":    fmt.Sprint(r),
			}).Error("Engine critical section panicked, state poisoned")
			err = fmt.Errorf("%w: %v", ErrStatePoisoned, r)
		}
		s.mu.Unlock()
	}()
	return fn(&s.st)
}

// run is the callback-side variant of with: no error propagation, just a
// report of whether the state was usable. Callbacks degrade on false.
func (s *sharedState) run(fn func(*engineState)) bool {
	return s.with(func(st *engineState) error {
		fn(st)
		return nil
	}) == nil
}

// engineState is the pipeline bookkeeping proper. All access goes through
// sharedState; methods here assume the lock is held and perform no I/O, no
// blocking, and only amortized-bounded allocation.
type engineState struct {
	pipelineRate uint32
	frameSize    int
	aecEnabled   bool

	renderRate  *audio.RateConverter
	captureRate *audio.RateConverter

	renderAccum  *audio.FrameAccumulator
	captureAccum *audio.FrameAccumulator

	playback     *audio.PlaybackBuffer
	lastPlayback int16

	raw       *audio.FrameQueue
	processed *audio.FrameQueue

	processor Processor
	renderRef []int16

	captureFrames   uint64
	processedFrames uint64
}

// New creates an engine from the configuration. The device backend is not
// touched until Start.
func New(cfg Config) (*Engine, error) {
	logrus.WithFields(logrus.Fields{
		"function":           "New",
		"sample_rate":        cfg.SampleRate,
		"channels":           cfg.Channels,
		"enable_aec":         cfg.EnableAEC,
		"stream_delay_ms":    cfg.StreamDelayMS,
		"max_capture_frames": cfg.MaxCaptureFrames,
	}).Info("Creating voicebridge engine")

	cfg, err := cfg.validate()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "New",
			"error":    err.Error(),
		}).Error("Engine configuration validation failed")
		return nil, err
	}

	frameSize := cfg.FrameSize()

	processor := cfg.Processor
	if processor == nil {
		canceller, err := aec.New(frameSize, frameSize, cfg.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("create default echo canceller: %w", err)
		}
		if err := canceller.SetDelay(cfg.StreamDelayMS); err != nil {
			return nil, fmt.Errorf("seed stream delay: %w", err)
		}
		processor = canceller
	} else if err := processor.SetDelay(cfg.StreamDelayMS); err != nil {
		// Non-fatal by contract: the processor keeps its prior settings.
		logrus.WithFields(logrus.Fields{
			"function": "New",
			"delay_ms": cfg.StreamDelayMS,
			"error":    err.Error(),
		}).Warn("Processor rejected initial stream delay")
	}

	rate := uint32(cfg.SampleRate)
	engine := &Engine{
		cfg:     cfg,
		backend: cfg.Backend,
		shared: &sharedState{
			st: engineState{
				pipelineRate: rate,
				frameSize:    frameSize,
				aecEnabled:   cfg.EnableAEC,
				renderRate:   audio.NewRateConverter(rate),
				captureRate:  audio.NewRateConverter(rate),
				renderAccum:  audio.NewFrameAccumulator(frameSize),
				captureAccum: audio.NewFrameAccumulator(frameSize),
				playback:     audio.NewPlaybackBuffer(),
				raw:          audio.NewFrameQueue(cfg.MaxCaptureFrames),
				processed:    audio.NewFrameQueue(cfg.MaxCaptureFrames),
				processor:    processor,
			},
		},
	}

	logrus.WithFields(logrus.Fields{
		"function":    "New",
		"sample_rate": cfg.SampleRate,
		"frame_size":  frameSize,
	}).Info("Voicebridge engine created")

	return engine, nil
}

// Start opens the default capture and render devices, seeds the rate
// converters with their native rates, and begins callback delivery. Calling
// Start on a started engine is a no-op returning nil; no duplicate streams
// are opened.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Start",
	}).Info("Starting voicebridge engine")

	if e.closed {
		return ErrEngineClosed
	}
	if e.shared.poisoned.Load() {
		return ErrStatePoisoned
	}
	if e.capture != nil || e.render != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Start",
		}).Debug("Engine already started, ignoring")
		return nil
	}

	if e.backend == nil {
		backend, err := newMalgoBackend()
		if err != nil {
			return fmt.Errorf("initialize device backend: %w", err)
		}
		e.backend = backend
		e.ownsBE = true
	}

	shared := e.shared
	rate := uint32(e.cfg.SampleRate)

	capture, err := e.backend.OpenCapture(rate, e.cfg.Channels, func(samples []int16) {
		// Dropped silently when the state is poisoned; the callback has no
		// caller to report to.
		shared.run(func(st *engineState) {
			for _, sample := range samples {
				st.onCapturedSample(sample)
			}
		})
	})
	if err != nil {
		return fmt.Errorf("open capture device: %w", err)
	}

	render, err := e.backend.OpenRender(rate, e.cfg.Channels, func(out []int16) {
		ok := shared.run(func(st *engineState) {
			for i := range out {
				out[i] = st.nextOutputSample()
			}
		})
		if !ok {
			for i := range out {
				out[i] = 0
			}
		}
	})
	if err != nil {
		capture.Close()
		return fmt.Errorf("open render device: %w", err)
	}

	captureRate := capture.SampleRate()
	renderRate := render.SampleRate()
	if err := shared.with(func(st *engineState) error {
		st.captureRate.SetDeviceRate(captureRate)
		st.renderRate.SetDeviceRate(renderRate)
		return nil
	}); err != nil {
		capture.Close()
		render.Close()
		return err
	}

	if err := capture.Start(); err != nil {
		capture.Close()
		render.Close()
		return fmt.Errorf("start capture stream: %w", err)
	}
	if err := render.Start(); err != nil {
		capture.Close()
		render.Close()
		return fmt.Errorf("start render stream: %w", err)
	}

	e.capture = capture
	e.render = render

	logrus.WithFields(logrus.Fields{
		"function":     "Start",
		"capture_rate": captureRate,
		"render_rate":  renderRate,
	}).Info("Voicebridge engine started")

	return nil
}

// Stop halts and releases the device streams. Buffered frames, pending
// playback samples, and statistics persist; the engine can Start again.
// Stopping a stopped engine is a no-op.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopLocked()
}

func (e *Engine) stopLocked() error {
	logrus.WithFields(logrus.Fields{
		"function": "Stop",
		"running":  e.capture != nil,
	}).Info("Stopping voicebridge engine")

	if e.capture != nil {
		if err := e.capture.Stop(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Stop",
				"error":    err.Error(),
			}).Warn("Capture stream stop failed")
		}
		e.capture.Close()
		e.capture = nil
	}
	if e.render != nil {
		if err := e.render.Stop(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Stop",
				"error":    err.Error(),
			}).Warn("Render stream stop failed")
		}
		e.render.Close()
		e.render = nil
	}
	return nil
}

// Close stops the engine and releases the device backend. The engine cannot
// be started again, but buffered data remains drainable. Close is
// idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Close",
	}).Info("Closing voicebridge engine")

	if e.closed {
		return nil
	}
	if err := e.stopLocked(); err != nil {
		return err
	}
	if e.backend != nil && e.ownsBE {
		if err := e.backend.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Close",
				"error":    err.Error(),
			}).Warn("Device backend close failed")
		}
	}
	e.backend = nil
	e.closed = true
	return nil
}

// SubmitPlayback decodes a little-endian 16-bit PCM buffer at the pipeline
// rate and queues it for playback. The byte length must be even; odd-length
// submissions fail with ErrOddPlaybackLength and no partial effect.
func (e *Engine) SubmitPlayback(pcm []byte) error {
	if len(pcm)%2 != 0 {
		logrus.WithFields(logrus.Fields{
			"function":  "SubmitPlayback",
			"byte_size": len(pcm),
			"error":     ErrOddPlaybackLength.Error(),
		}).Error("Playback submission validation failed")
		return ErrOddPlaybackLength
	}

	return e.shared.with(func(st *engineState) error {
		st.playback.EnqueueBytes(pcm)
		return nil
	})
}

// DrainProcessed removes and returns up to max of the oldest processed
// capture frames. Fewer (possibly none) are returned when the queue holds
// fewer; the call never blocks.
func (e *Engine) DrainProcessed(max int) ([][]byte, error) {
	var frames [][]byte
	err := e.shared.with(func(st *engineState) error {
		frames = st.processed.PopMany(max)
		return nil
	})
	return frames, err
}

// DrainRaw removes and returns up to max of the oldest raw capture frames.
func (e *Engine) DrainRaw(max int) ([][]byte, error) {
	var frames [][]byte
	err := e.shared.with(func(st *engineState) error {
		frames = st.raw.PopMany(max)
		return nil
	})
	return frames, err
}

// SetEchoDelay forwards a new render-to-capture delay hint to the processor.
// A processor failure is reported to the caller but is non-fatal: processing
// continues with the prior settings.
func (e *Engine) SetEchoDelay(ms int) error {
	logrus.WithFields(logrus.Fields{
		"function": "SetEchoDelay",
		"delay_ms": ms,
	}).Info("Forwarding echo delay to processor")

	return e.shared.with(func(st *engineState) error {
		if st.processor == nil {
			return ErrNoProcessor
		}
		if err := st.processor.SetDelay(ms); err != nil {
			return fmt.Errorf("set processor delay: %w", err)
		}
		return nil
	})
}

// Stats returns a snapshot of the engine counters and the current playback
// buffer depth without mutating any state.
func (e *Engine) Stats() (Stats, error) {
	var stats Stats
	err := e.shared.with(func(st *engineState) error {
		stats = Stats{
			CaptureFrames:          st.captureFrames,
			ProcessedFrames:        st.processedFrames,
			PlaybackUnderruns:      st.playback.Underruns(),
			PendingPlaybackSamples: st.playback.Len(),
			DroppedRawFrames:       st.raw.Dropped(),
			DroppedProcessedFrames: st.processed.Dropped(),
		}
		return nil
	})
	return stats, err
}

// Reset clears all buffered audio and statistics: the playback buffer, both
// frame accumulators, both capture queues, and every counter. The configured
// rates and device streams are untouched, so a running engine keeps flowing
// with empty buffers.
func (e *Engine) Reset() error {
	logrus.WithFields(logrus.Fields{
		"function": "Reset",
	}).Info("Resetting engine buffers and statistics")

	return e.shared.with(func(st *engineState) error {
		st.playback.Reset()
		st.renderAccum.Reset()
		st.captureAccum.Reset()
		st.raw.Reset()
		st.processed.Reset()
		st.captureFrames = 0
		st.processedFrames = 0
		st.lastPlayback = 0
		st.renderRef = nil
		return nil
	})
}

// nextOutputSample produces one device output sample for the render
// callback: the rate converter decides how many pipeline samples to consume,
// and the most recently consumed (or synthesized) sample is held as the
// output value.
func (st *engineState) nextOutputSample() int16 {
	steps := st.renderRate.Advance()
	for i := 0; i < steps; i++ {
		st.consumePlaybackSample()
	}
	return st.lastPlayback
}

// consumePlaybackSample advances the render pipeline by one sample: pop from
// the playback buffer (or synthesize silence on underrun), update the hold
// value, and feed the render frame accumulator.
func (st *engineState) consumePlaybackSample() {
	sample := st.playback.Consume()
	st.lastPlayback = sample
	st.renderAccum.Append(sample)
	st.flushRenderFrames()
}

// onCapturedSample accounts for one device capture sample: the rate
// converter decides how many times it lands in the capture accumulator.
func (st *engineState) onCapturedSample(sample int16) {
	steps := st.captureRate.Advance()
	for i := 0; i < steps; i++ {
		st.captureAccum.Append(sample)
	}
	st.flushCaptureFrames()
}

// flushRenderFrames hands every completed render frame to the processor as
// the far-end reference. The processed output is discarded; only the call
// matters, for adaptation. The frame itself becomes the render reference for
// subsequent capture frames.
func (st *engineState) flushRenderFrames() {
	for {
		frame, ok := st.renderAccum.NextFrame()
		if !ok {
			return
		}
		if st.processor != nil {
			// Processor errors cannot surface from a device callback;
			// adaptation simply skips this frame.
			_, _ = st.processor.ProcessRender(frame)
		}
		st.renderRef = frame
	}
}

// flushCaptureFrames drains completed capture frames into both queues: the
// raw frame always, and the processed variant (echo-cancelled when AEC is
// enabled, identical otherwise). Both queues receive frames 1:1 in capture
// order.
func (st *engineState) flushCaptureFrames() {
	for {
		frame, ok := st.captureAccum.NextFrame()
		if !ok {
			return
		}

		st.captureFrames++
		st.raw.Push(audio.SamplesToBytes(frame))

		processed := frame
		if st.aecEnabled && st.processor != nil {
			out, err := st.processor.ProcessCapture(frame, st.renderRef)
			if err == nil && len(out) == st.frameSize {
				processed = out
			}
		}

		st.processedFrames++
		st.processed.Push(audio.SamplesToBytes(processed))
	}
}
