// Package record persists pipeline audio frames to WAV files. A Recorder
// wraps a single mono 16-bit PCM output; frames are appended in arrival
// order and the WAV header is finalized on Close.
package record

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/voicebridge/audio"
)

// Recorder errors.
var (
	// ErrInvalidSampleRate is returned when a recorder is created with a
	// non-positive sample rate.
	ErrInvalidSampleRate = errors.New("sample rate must be positive")

	// ErrOddFrameLength is returned when a byte frame does not hold whole
	// 16-bit samples.
	ErrOddFrameLength = errors.New("frame byte length must be even")

	// ErrRecorderClosed is returned when writing to a closed recorder.
	ErrRecorderClosed = errors.New("recorder is closed")
)

// Recorder writes mono 16-bit PCM frames to a WAV stream. It is safe for
// concurrent use; writes are serialized.
type Recorder struct {
	mu         sync.Mutex
	enc        *wav.Encoder
	file       *os.File
	sampleRate int
	frames     uint64
	closed     bool
}

// NewRecorder creates a recorder writing mono 16-bit PCM WAV data to w.
// The caller retains ownership of w; Close finalizes the WAV header but
// does not close w.
func NewRecorder(w io.WriteSeeker, sampleRate int) (*Recorder, error) {
	if sampleRate <= 0 {
		logrus.WithFields(logrus.Fields{
			"function":    "NewRecorder",
			"sample_rate": sampleRate,
			"error":       ErrInvalidSampleRate.Error(),
		}).Error("Recorder validation failed")
		return nil, ErrInvalidSampleRate
	}

	return &Recorder{
		enc:        wav.NewEncoder(w, sampleRate, 16, 1, 1),
		sampleRate: sampleRate,
	}, nil
}

// Create opens (truncating) the file at path and returns a recorder writing
// to it. Close finalizes the header and closes the file.
func Create(path string, sampleRate int) (*Recorder, error) {
	logrus.WithFields(logrus.Fields{
		"function":    "Create",
		"path":        path,
		"sample_rate": sampleRate,
	}).Info("Creating WAV recorder")

	if sampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create recording file: %w", err)
	}

	rec, err := NewRecorder(file, sampleRate)
	if err != nil {
		file.Close()
		return nil, err
	}
	rec.file = file
	return rec, nil
}

// WriteFrame appends a little-endian 16-bit PCM byte frame.
func (r *Recorder) WriteFrame(pcm []byte) error {
	if len(pcm)%2 != 0 {
		return ErrOddFrameLength
	}
	return r.WriteSamples(audio.BytesToSamples(pcm))
}

// WriteSamples appends pipeline-rate samples.
func (r *Recorder) WriteSamples(samples []int16) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRecorderClosed
	}
	if len(samples) == 0 {
		return nil
	}

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: r.sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := r.enc.Write(buf); err != nil {
		return fmt.Errorf("write WAV frame: %w", err)
	}
	r.frames++
	return nil
}

// Frames returns the number of frames written so far.
func (r *Recorder) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Close finalizes the WAV header. When the recorder owns its file (Create),
// the file is closed as well. Close is idempotent.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	logrus.WithFields(logrus.Fields{
		"function": "Close",
		"frames":   r.frames,
	}).Info("Closing WAV recorder")

	err := r.enc.Close()
	if r.file != nil {
		if cerr := r.file.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("finalize recording: %w", err)
	}
	return nil
}

// FrameSource yields batches of processed byte frames. It matches the
// drain surface of the engine, letting recorders pull from it without a
// package dependency.
type FrameSource interface {
	DrainProcessed(max int) ([][]byte, error)
}

// DrainFrom pulls up to max frames from src and writes each to the
// recorder, returning how many were written. A write failure stops the
// drain; the remaining frames stay consumed.
func (r *Recorder) DrainFrom(src FrameSource, max int) (int, error) {
	frames, err := src.DrainProcessed(max)
	if err != nil {
		return 0, fmt.Errorf("drain frames: %w", err)
	}
	for i, frame := range frames {
		if err := r.WriteFrame(frame); err != nil {
			return i, err
		}
	}
	return len(frames), nil
}
