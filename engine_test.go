package voicebridge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/voicebridge/audio"
)

// fakeBackend implements DeviceBackend with controllable device rates and
// exposes the engine's callbacks so tests drive the pipeline directly.
type fakeBackend struct {
	captureRate uint32
	renderRate  uint32

	captureFn func([]int16)
	renderFn  func([]int16)

	captureOpens int
	renderOpens  int
	closed       bool
}

type fakeStream struct {
	rate    uint32
	started bool
	stopped bool
}

func (s *fakeStream) SampleRate() uint32 { return s.rate }
func (s *fakeStream) Start() error       { s.started = true; return nil }
func (s *fakeStream) Stop() error        { s.stopped = true; return nil }
func (s *fakeStream) Close() error       { return nil }

func (b *fakeBackend) OpenCapture(_ uint32, _ int, fn func([]int16)) (DeviceStream, error) {
	b.captureOpens++
	b.captureFn = fn
	return &fakeStream{rate: b.captureRate}, nil
}

func (b *fakeBackend) OpenRender(_ uint32, _ int, fn func([]int16)) (DeviceStream, error) {
	b.renderOpens++
	b.renderFn = fn
	return &fakeStream{rate: b.renderRate}, nil
}

func (b *fakeBackend) Close() error { b.closed = true; return nil }

// recordingProcessor counts processor invocations and remembers the render
// reference each capture frame saw.
type recordingProcessor struct {
	renderCalls  int
	captureCalls int
	lastRef      []int16
	delayMS      int
	delayErr     error
}

func (p *recordingProcessor) ProcessRender(frame []int16) ([]int16, error) {
	p.renderCalls++
	return frame, nil
}

func (p *recordingProcessor) ProcessCapture(frame, ref []int16) ([]int16, error) {
	p.captureCalls++
	p.lastRef = ref
	return frame, nil
}

func (p *recordingProcessor) SetDelay(ms int) error {
	if p.delayErr != nil {
		return p.delayErr
	}
	p.delayMS = ms
	return nil
}

func newTestEngine(t *testing.T, mutate func(*Config)) (*Engine, *fakeBackend) {
	t.Helper()

	backend := &fakeBackend{captureRate: 16000, renderRate: 16000}
	cfg := NewConfig()
	cfg.SampleRate = 16000
	cfg.Backend = backend
	cfg.Processor = &recordingProcessor{}
	if mutate != nil {
		mutate(&cfg)
	}

	engine, err := New(cfg)
	require.NoError(t, err)
	return engine, backend
}

func TestNewValidatesConfiguration(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		expectErr error
	}{
		{name: "zero_sample_rate", mutate: func(c *Config) { c.SampleRate = 0 }, expectErr: ErrInvalidSampleRate},
		{name: "negative_sample_rate", mutate: func(c *Config) { c.SampleRate = -8000 }, expectErr: ErrInvalidSampleRate},
		{name: "zero_channels", mutate: func(c *Config) { c.Channels = 0 }, expectErr: ErrInvalidChannels},
		{name: "zero_capacity", mutate: func(c *Config) { c.MaxCaptureFrames = 0 }, expectErr: ErrInvalidQueueCapacity},
		{name: "negative_delay", mutate: func(c *Config) { c.StreamDelayMS = -1 }, expectErr: ErrInvalidStreamDelay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(&cfg)

			engine, err := New(cfg)

			assert.ErrorIs(t, err, tt.expectErr)
			assert.Nil(t, engine)
		})
	}
}

func TestNewCoercesSampleRateFloor(t *testing.T) {
	engine, _ := newTestEngine(t, func(c *Config) { c.SampleRate = 4000 })

	assert.Equal(t, MinSampleRate, engine.cfg.SampleRate)
	assert.Equal(t, MinSampleRate/100, engine.shared.st.frameSize)
}

func TestSubmitPlaybackRejectsOddLength(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	err := engine.SubmitPlayback(make([]byte, 321))
	assert.ErrorIs(t, err, ErrOddPlaybackLength)

	// No partial effect.
	stats, err := engine.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.PendingPlaybackSamples)
}

func TestSubmitPlaybackQueuesSamples(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	require.NoError(t, engine.SubmitPlayback(make([]byte, 320)))

	stats, err := engine.Stats()
	require.NoError(t, err)
	assert.Equal(t, 160, stats.PendingPlaybackSamples)
}

func TestRenderCallbackDrainsPlayback(t *testing.T) {
	// 16 kHz pipeline, 16 kHz device: one render callback of 160 slots
	// consumes the 160 submitted samples. The seeded rate accumulator
	// advances one extra pipeline step on the very first device sample, so
	// exactly one underrun is recorded once the buffer empties.
	engine, backend := newTestEngine(t, nil)
	require.NoError(t, engine.Start())

	pcm := make([]byte, 320)
	for i := 0; i < len(pcm); i += 2 {
		pcm[i] = 100
	}
	require.NoError(t, engine.SubmitPlayback(pcm))

	out := make([]int16, 160)
	backend.renderFn(out)

	// The first device slot consumed two samples, so the final slot finds the
	// buffer empty and holds silence.
	for i := 0; i < 159; i++ {
		assert.Equal(t, int16(100), out[i], "slot %d", i)
	}
	assert.Equal(t, int16(0), out[159])

	stats, err := engine.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.PendingPlaybackSamples)
	assert.Equal(t, uint64(1), stats.PlaybackUnderruns)
}

func TestRenderUnderrunSynthesizesSilence(t *testing.T) {
	// Half a frame of playback against a full frame of device demand: the
	// submitted samples play first, the rest is synthesized silence, each
	// missing sample counted.
	engine, backend := newTestEngine(t, nil)
	require.NoError(t, engine.Start())

	pcm := make([]byte, 160) // 80 samples
	for i := 0; i < len(pcm); i += 2 {
		pcm[i] = 100
	}
	require.NoError(t, engine.SubmitPlayback(pcm))

	out := make([]int16, 160)
	backend.renderFn(out)

	// First device slot consumes two pipeline samples (seeded accumulator);
	// the submitted audio covers the first 79 output slots.
	for i := 0; i < 79; i++ {
		assert.Equal(t, int16(100), out[i], "slot %d", i)
	}
	for i := 79; i < 160; i++ {
		assert.Equal(t, int16(0), out[i], "slot %d", i)
	}

	stats, err := engine.Stats()
	require.NoError(t, err)
	assert.Equal(t, uint64(81), stats.PlaybackUnderruns)
	assert.Equal(t, 0, stats.PendingPlaybackSamples)
}

func TestCaptureProducesRawAndProcessedFrames(t *testing.T) {
	engine, backend := newTestEngine(t, nil)
	require.NoError(t, engine.Start())

	samples := make([]int16, 160)
	for i := range samples {
		samples[i] = int16(i)
	}
	backend.captureFn(samples)

	stats, err := engine.Stats()
	require.NoError(t, err)
	// The seeded capture accumulator duplicates the first device sample, so
	// one full frame completes and one sample carries over.
	assert.Equal(t, uint64(1), stats.CaptureFrames)
	assert.Equal(t, uint64(1), stats.ProcessedFrames)

	raw, err := engine.DrainRaw(10)
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.Len(t, raw[0], 320)

	processed, err := engine.DrainProcessed(10)
	require.NoError(t, err)
	require.Len(t, processed, 1)
	assert.Len(t, processed[0], 320)

	// Raw frame carries the captured values: sample 0 duplicated, then the
	// rest in order.
	decoded := audio.BytesToSamples(raw[0])
	assert.Equal(t, int16(0), decoded[0])
	assert.Equal(t, int16(0), decoded[1])
	assert.Equal(t, int16(1), decoded[2])
}

func TestRawProcessedCorrespondence(t *testing.T) {
	// Property: over the engine lifetime both queues receive the same
	// number of frames, in the same relative order, regardless of bursts.
	engine, backend := newTestEngine(t, nil)
	require.NoError(t, engine.Start())

	for burst := 0; burst < 7; burst++ {
		backend.captureFn(make([]int16, 555))
	}

	stats, err := engine.Stats()
	require.NoError(t, err)
	assert.Equal(t, stats.CaptureFrames, stats.ProcessedFrames)
	assert.Greater(t, stats.CaptureFrames, uint64(0))
}

func TestCaptureQueueEvictionAccounting(t *testing.T) {
	engine, backend := newTestEngine(t, func(c *Config) { c.MaxCaptureFrames = 2 })
	require.NoError(t, engine.Start())

	// Enough device samples for ~5 frames against a 2-frame queue bound.
	backend.captureFn(make([]int16, 800))

	stats, err := engine.Stats()
	require.NoError(t, err)
	assert.Greater(t, stats.DroppedRawFrames, uint64(0))
	assert.Equal(t, stats.DroppedRawFrames, stats.DroppedProcessedFrames)

	raw, err := engine.DrainRaw(100)
	require.NoError(t, err)
	assert.Len(t, raw, 2)
}

func TestCaptureFramesSeeRenderReference(t *testing.T) {
	proc := &recordingProcessor{}
	engine, backend := newTestEngine(t, func(c *Config) { c.Processor = proc })
	require.NoError(t, engine.Start())

	// Capture before any render frame completes: reference is nil.
	backend.captureFn(make([]int16, 200))
	require.Greater(t, proc.captureCalls, 0)
	assert.Nil(t, proc.lastRef)

	// Complete a render frame, then capture again.
	require.NoError(t, engine.SubmitPlayback(make([]byte, 400)))
	backend.renderFn(make([]int16, 200))
	require.Greater(t, proc.renderCalls, 0)

	backend.captureFn(make([]int16, 200))
	assert.Len(t, proc.lastRef, 160)
}

func TestAECDisabledBypassesProcessor(t *testing.T) {
	proc := &recordingProcessor{}
	engine, backend := newTestEngine(t, func(c *Config) {
		c.Processor = proc
		c.EnableAEC = false
	})
	require.NoError(t, engine.Start())

	backend.captureFn(make([]int16, 320))

	stats, err := engine.Stats()
	require.NoError(t, err)
	assert.Greater(t, stats.ProcessedFrames, uint64(0))
	assert.Zero(t, proc.captureCalls)
}

func TestStartIsIdempotent(t *testing.T) {
	engine, backend := newTestEngine(t, nil)

	require.NoError(t, engine.Start())
	require.NoError(t, engine.Start())

	assert.Equal(t, 1, backend.captureOpens)
	assert.Equal(t, 1, backend.renderOpens)
}

func TestStopPreservesStateAndAllowsRestart(t *testing.T) {
	engine, backend := newTestEngine(t, nil)
	require.NoError(t, engine.Start())

	backend.captureFn(make([]int16, 320))
	before, err := engine.Stats()
	require.NoError(t, err)
	require.Greater(t, before.CaptureFrames, uint64(0))

	require.NoError(t, engine.Stop())
	require.NoError(t, engine.Stop())

	after, err := engine.Stats()
	require.NoError(t, err)
	assert.Equal(t, before, after)

	frames, err := engine.DrainRaw(100)
	require.NoError(t, err)
	assert.NotEmpty(t, frames)

	require.NoError(t, engine.Start())
	assert.Equal(t, 2, backend.captureOpens)
}

func TestCloseReleasesOwnedBackendOnly(t *testing.T) {
	engine, backend := newTestEngine(t, nil)
	require.NoError(t, engine.Start())

	require.NoError(t, engine.Close())
	require.NoError(t, engine.Close())

	// Injected backends belong to the caller.
	assert.False(t, backend.closed)
	assert.ErrorIs(t, engine.Start(), ErrEngineClosed)
}

func TestDataPlaneLegalWhileStopped(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	require.NoError(t, engine.SubmitPlayback(make([]byte, 320)))

	frames, err := engine.DrainProcessed(10)
	require.NoError(t, err)
	assert.Empty(t, frames)

	stats, err := engine.Stats()
	require.NoError(t, err)
	assert.Equal(t, 160, stats.PendingPlaybackSamples)
}

func TestSetEchoDelayForwardsToProcessor(t *testing.T) {
	proc := &recordingProcessor{}
	engine, _ := newTestEngine(t, func(c *Config) { c.Processor = proc })

	require.NoError(t, engine.SetEchoDelay(55))
	assert.Equal(t, 55, proc.delayMS)
}

func TestSetEchoDelayReportsProcessorFailure(t *testing.T) {
	proc := &recordingProcessor{delayErr: errors.New("unsupported")}
	engine, _ := newTestEngine(t, func(c *Config) { c.Processor = proc })

	err := engine.SetEchoDelay(55)
	assert.Error(t, err)

	// Failure is non-fatal: the engine keeps operating.
	require.NoError(t, engine.SubmitPlayback(make([]byte, 2)))
}

func TestResetClearsBuffersAndCounters(t *testing.T) {
	engine, backend := newTestEngine(t, nil)
	require.NoError(t, engine.Start())

	require.NoError(t, engine.SubmitPlayback(make([]byte, 320)))
	backend.captureFn(make([]int16, 320))

	require.NoError(t, engine.Reset())

	stats, err := engine.Stats()
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

type panickingProcessor struct{ PassthroughProcessor }

func (panickingProcessor) ProcessCapture(_, _ []int16) ([]int16, error) {
	panic("processor blew up")
}

func TestPanicInCallbackPoisonsState(t *testing.T) {
	engine, backend := newTestEngine(t, func(c *Config) { c.Processor = panickingProcessor{} })
	require.NoError(t, engine.Start())

	// The capture callback absorbs the panic instead of crashing the
	// device thread.
	backend.captureFn(make([]int16, 320))

	// Every subsequent operation reports the poisoned state.
	assert.ErrorIs(t, engine.SubmitPlayback(make([]byte, 2)), ErrStatePoisoned)

	_, err := engine.Stats()
	assert.ErrorIs(t, err, ErrStatePoisoned)

	_, err = engine.DrainProcessed(1)
	assert.ErrorIs(t, err, ErrStatePoisoned)

	// The render callback degrades to silence.
	out := []int16{7, 7, 7}
	backend.renderFn(out)
	assert.Equal(t, []int16{0, 0, 0}, out)
}

func TestSubmitPlaybackOpusRejectsEmptyPacket(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	assert.ErrorIs(t, engine.SubmitPlaybackOpus(nil), ErrEmptyPayload)
}
