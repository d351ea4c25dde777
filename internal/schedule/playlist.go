// ABOUTME: YAML playlist loading
// ABOUTME: Reads a track list from disk and validates it
package schedule

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Playlist is the on-disk track list.
type Playlist struct {
	Tracks []Track `yaml:"tracks"`
}

// LoadPlaylist reads and validates a YAML playlist.
func LoadPlaylist(path string) (*Playlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read playlist: %w", err)
	}
	return ParsePlaylist(data)
}

// ParsePlaylist decodes a YAML playlist. Every track needs an audio_url.
func ParsePlaylist(data []byte) (*Playlist, error) {
	var p Playlist
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse playlist: %w", err)
	}
	if len(p.Tracks) == 0 {
		return nil, ErrEmpty
	}
	for i, t := range p.Tracks {
		if t.AudioURL == "" {
			return nil, fmt.Errorf("track %d (%q) has no audio_url", i+1, t.Title)
		}
	}
	return &p, nil
}
