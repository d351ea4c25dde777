// ABOUTME: Sequential schedule that loops over a fixed track list
// ABOUTME: Plays tracks in order and starts over at the end
package schedule

import "context"

// Sequential loops over its tracks in order.
type Sequential struct {
	tracks []Track
	next   int
}

func NewSequential(tracks []Track) *Sequential {
	return &Sequential{tracks: tracks}
}

func (s *Sequential) Next(ctx context.Context) (Track, error) {
	if err := ctx.Err(); err != nil {
		return Track{}, err
	}
	if len(s.tracks) == 0 {
		return Track{}, ErrEmpty
	}
	t := s.tracks[s.next]
	s.next = (s.next + 1) % len(s.tracks)
	return t, nil
}
