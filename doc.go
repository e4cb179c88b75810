// Package voicebridge bridges hardware-clocked audio device callbacks to a
// fixed-rate, frame-oriented processing pipeline.
//
// The engine converts between each device's native sample rate and the
// pipeline rate with drift-free integer-accumulator resampling, assembles
// 10 ms frames, routes capture frames through an acoustic echo canceller
// against the most recent render frame, and buffers results in bounded
// queues with drop-oldest backpressure. A non-real-time controller pushes
// playback audio in and pulls captured frames out; the real-time device
// callbacks never block, never error, and degrade to silence on failure.
//
// # Getting Started
//
// Create an engine with options and start the default devices:
//
//	cfg := voicebridge.NewConfig()
//	cfg.SampleRate = 16000
//
//	engine, err := voicebridge.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	if err := engine.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Push audio to the loudspeaker (16-bit little-endian PCM).
//	engine.SubmitPlayback(pcm)
//
//	// Pull echo-cancelled microphone frames.
//	frames, _ := engine.DrainProcessed(64)
//
// # Core Types
//
// The package defines several core types:
//
//   - [Engine]: the control surface and pipeline owner
//   - [Config]: engine options with documented defaults
//   - [Processor]: the frame-processing collaborator interface
//   - [DeviceBackend]: injectable device I/O layer (testing support)
//   - [Stats]: snapshot of the engine counters
//
// # Concurrency
//
// Two real-time device callback threads (capture, render) and any number of
// control goroutines share one mutex-guarded state aggregate. Critical
// sections are strictly bounded: no device I/O, no blocking calls, no
// unbounded allocation. A panic inside a critical section poisons the state;
// later operations fail with ErrStatePoisoned rather than corrupting audio.
//
// Subpackages provide the pieces: audio (rate conversion, frame assembly,
// queues), device (malgo device I/O), aec (NLMS echo canceller), and record
// (WAV capture sink).
package voicebridge
