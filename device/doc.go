// Package device wraps malgo (miniaudio) to provide the voicebridge engine
// with default capture and render streams. It is the boundary collaborator
// the engine treats as opaque: it opens the OS default devices, reports
// their native sample rates, and invokes the engine's callbacks with mono
// pipeline-facing int16 samples regardless of the device's native sample
// format or channel count.
//
// Multi-channel devices are collapsed at this boundary: capture takes the
// first channel of each interleaved device frame, render duplicates the mono
// sample across all device channels.
//
// Device errors inside a running stream are logged and swallowed; they never
// crash the callback loop. Open-time failures (no default device,
// unsupported sample format) are returned to the caller.
package device
