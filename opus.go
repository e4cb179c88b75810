package voicebridge

import (
	"fmt"

	"github.com/pion/opus"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/voicebridge/audio"
)

// opusFrameSamples bounds a decoded Opus frame: 40 ms at 48 kHz. Frames are
// decoded into a buffer of this many samples.
const opusFrameSamples = 1920

// opusIngest decodes submitted Opus packets to pipeline-rate PCM. The
// decoder and the rate-adapting resampler carry state between packets, so
// one ingest path serves one logical playback stream.
type opusIngest struct {
	decoder      opus.Decoder
	resampler    *audio.Resampler
	pipelineRate uint32
	buf          []byte
}

func newOpusIngest(pipelineRate uint32) *opusIngest {
	return &opusIngest{
		decoder:      opus.NewDecoder(),
		pipelineRate: pipelineRate,
		buf:          make([]byte, opusFrameSamples*2),
	}
}

// decode converts one Opus packet to mono pipeline-rate samples.
func (o *opusIngest) decode(packet []byte) ([]int16, error) {
	bandwidth, isStereo, err := o.decoder.Decode(packet, o.buf)
	if err != nil {
		return nil, fmt.Errorf("opus decode failed: %w", err)
	}

	pcm := audio.BytesToSamples(o.buf)
	if isStereo {
		// Collapse interleaved stereo to mono by averaging each pair.
		mono := make([]int16, len(pcm)/2)
		for i := range mono {
			mono[i] = int16((int32(pcm[i*2]) + int32(pcm[i*2+1])) / 2)
		}
		pcm = mono
	}

	rate := uint32(bandwidth.SampleRate())
	if rate == o.pipelineRate {
		return pcm, nil
	}

	// Recreate the resampler when the packet bandwidth changes mid-stream.
	if o.resampler == nil || o.resampler.InputRate() != rate {
		resampler, err := audio.NewResampler(rate, o.pipelineRate)
		if err != nil {
			return nil, fmt.Errorf("create opus resampler: %w", err)
		}
		o.resampler = resampler
	}
	return o.resampler.Resample(pcm), nil
}

// SubmitPlaybackOpus decodes an Opus packet, converts it to the pipeline
// rate, and queues the samples for playback. Stereo packets are collapsed to
// mono. An empty packet fails with ErrEmptyPayload.
func (e *Engine) SubmitPlaybackOpus(packet []byte) error {
	logrus.WithFields(logrus.Fields{
		"function":    "SubmitPlaybackOpus",
		"packet_size": len(packet),
	}).Debug("Decoding opus playback submission")

	if len(packet) == 0 {
		return ErrEmptyPayload
	}

	e.mu.Lock()
	if e.opus == nil {
		e.opus = newOpusIngest(uint32(e.cfg.SampleRate))
	}
	samples, err := e.opus.decode(packet)
	e.mu.Unlock()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "SubmitPlaybackOpus",
			"error":    err.Error(),
		}).Error("Opus playback decode failed")
		return err
	}

	return e.shared.with(func(st *engineState) error {
		st.playback.EnqueueSamples(samples)
		return nil
	})
}
