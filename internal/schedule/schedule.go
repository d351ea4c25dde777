// ABOUTME: Track scheduling for the station
// ABOUTME: Defines tracks and the Schedule contract the station pulls from
package schedule

import (
	"context"
	"errors"
)

// ErrEmpty is returned when a schedule has no tracks to offer.
var ErrEmpty = errors.New("schedule has no tracks")

// Track is one playable item. AudioURL is required, the rest is display
// metadata.
type Track struct {
	Title         string `yaml:"title,omitempty"`
	Subtitle      string `yaml:"subtitle,omitempty"`
	Author        string `yaml:"author,omitempty"`
	SourceURL     string `yaml:"source_url,omitempty"`
	BackgroundURL string `yaml:"background_url,omitempty"`
	AudioURL      string `yaml:"audio_url"`
}

// String formats the track for logs and the status display.
func (t Track) String() string {
	title := t.Title
	if title == "" {
		title = t.AudioURL
	}
	if t.Author != "" {
		return t.Author + " - " + title
	}
	return title
}

// Schedule decides what plays next. Implementations are used from a
// single goroutine.
type Schedule interface {
	Next(ctx context.Context) (Track, error)
}
