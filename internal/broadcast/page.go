// ABOUTME: Broadcast page and session options
// ABOUTME: A page is a run of Ogg bytes plus the play time it covers
package broadcast

import (
	"fmt"
	"time"

	"github.com/quartz-radio/quartz/internal/version"
	"github.com/quartz-radio/quartz/pkg/audio"
	"github.com/quartz-radio/quartz/pkg/audio/encode"
	"github.com/quartz-radio/quartz/pkg/audio/ogg"
)

// Page is one or more complete Ogg pages and the audio duration they carry.
// Data is shared between listeners and must not be modified.
type Page struct {
	ID       uint64
	Data     []byte
	Duration time.Duration
}

// Observer receives pipeline events. Implementations must not block.
type Observer interface {
	PagePushed(bytes int, duration time.Duration)
	PacingStall(behind time.Duration)
}

// Options configures an encoding session.
type Options struct {
	Format  audio.Format
	Encoder encode.Options
	// MaxPage bounds the audio carried by one page.
	MaxPage time.Duration
	// Buffer is the backlog retained for joining listeners, and the
	// furthest the pacer lets real time run ahead of the stream.
	Buffer   time.Duration
	Serial   int32
	Vendor   string
	Observer Observer
}

// DefaultOptions returns 48kHz stereo with one-second pages and a
// six-second backlog.
func DefaultOptions() Options {
	return Options{
		Format:  audio.DefaultFormat,
		Encoder: encode.DefaultOptions(),
		MaxPage: time.Second,
		Buffer:  6 * time.Second,
		Serial:  ogg.DefaultSerial,
		Vendor:  version.Vendor(),
	}
}

func (o Options) validate() error {
	if o.MaxPage <= 0 {
		return fmt.Errorf("max page duration must be positive, got %v", o.MaxPage)
	}
	if o.Buffer <= 0 {
		return fmt.Errorf("buffer length must be positive, got %v", o.Buffer)
	}
	return nil
}

type nopObserver struct{}

func (nopObserver) PagePushed(int, time.Duration) {}
func (nopObserver) PacingStall(time.Duration)     {}
