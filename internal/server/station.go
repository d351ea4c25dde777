// ABOUTME: Station control loop choosing what the broadcast plays
// ABOUTME: Pulls tracks from the schedule, opens them and waits for each to end
package server

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/quartz-radio/quartz/internal/metrics"
	"github.com/quartz-radio/quartz/internal/multiplexer"
	"github.com/quartz-radio/quartz/internal/schedule"
	"github.com/quartz-radio/quartz/pkg/audio"
)

// DefaultRetryDelay is the pause after a track fails to open.
const DefaultRetryDelay = 2 * time.Second

// Opener resolves a track URL into a source in the broadcast format.
type Opener interface {
	Open(ctx context.Context, rawURL string) (audio.Source, error)
}

// Station feeds tracks from a schedule into a multiplexer.
type Station struct {
	schedule schedule.Schedule
	opener   Opener
	handle   *multiplexer.Handle
	metrics  *metrics.Metrics

	RetryDelay time.Duration

	mu      sync.RWMutex
	current schedule.Track
	started time.Time
	playing bool
}

// NewStation creates a station. m may be nil.
func NewStation(sched schedule.Schedule, opener Opener, handle *multiplexer.Handle, m *metrics.Metrics) *Station {
	return &Station{
		schedule:   sched,
		opener:     opener,
		handle:     handle,
		metrics:    m,
		RetryDelay: DefaultRetryDelay,
	}
}

// Run plays tracks until ctx ends or the multiplexer closes. It returns
// an error only when the schedule fails.
func (s *Station) Run(ctx context.Context) error {
	for {
		track, err := s.schedule.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("schedule failed: %w", err)
		}

		src, err := s.opener.Open(ctx, track.AudioURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("Failed to open %s: %v", track, err)
			s.metrics.TrackFailed()
			s.setPlaying(schedule.Track{}, false)
			select {
			case <-time.After(s.RetryDelay):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		log.Printf("Now playing: %s", track)
		s.metrics.TrackStarted()
		s.setPlaying(track, true)
		s.handle.Switch(src)

		if !s.handle.Wait(ctx) {
			return nil
		}
		log.Printf("Finished: %s", track)
	}
}

func (s *Station) setPlaying(track schedule.Track, playing bool) {
	s.mu.Lock()
	s.current = track
	s.playing = playing
	s.started = time.Now()
	s.mu.Unlock()
}

// NowPlaying returns the current track and when it started. ok is false
// between tracks.
func (s *Station) NowPlaying() (track schedule.Track, started time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.started, s.playing
}

