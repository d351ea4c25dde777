// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for audio playback backends
package output

import (
	"time"

	"github.com/quartz-radio/quartz/pkg/audio"
)

// Output represents an audio output device
type Output interface {
	// Open initializes the output device
	Open(format audio.Format) error

	// Write outputs interleaved samples (blocks until written)
	Write(samples []float32) error

	// Close releases output resources
	Close() error
}

// Volume is implemented by outputs with software volume control.
type Volume interface {
	SetVolume(volume int)
	SetMuted(muted bool)
	Volume() int
	Muted() bool
}

// Latency is implemented by outputs that can report how much written audio
// is still queued in the device.
type Latency interface {
	Latency() time.Duration
}
