// ABOUTME: Test tone generator for station tracks
// ABOUTME: Generates a sine wave of configurable frequency and length
package multiplexer

import (
	"io"
	"math"

	"github.com/quartz-radio/quartz/pkg/audio"
)

// ToneSource generates a sine wave at half volume
type ToneSource struct {
	format    audio.Format
	frequency float64
	frames    int64 // total length, negative for endless
	index     int64
}

// NewToneSource creates a tone generator. A non-positive frames count
// makes the tone endless.
func NewToneSource(format audio.Format, frequency float64, frames int64) *ToneSource {
	if frames <= 0 {
		frames = -1
	}
	return &ToneSource{format: format, frequency: frequency, frames: frames}
}

func (s *ToneSource) Format() audio.Format { return s.format }

func (s *ToneSource) Pull(samples []float32) (int, error) {
	channels := s.format.Channels
	n := 0
	for n+channels <= len(samples) {
		if s.frames >= 0 && s.index >= s.frames {
			break
		}
		t := float64(s.index) / float64(s.format.SampleRate)
		v := float32(0.5 * math.Sin(2*math.Pi*s.frequency*t))
		for ch := 0; ch < channels; ch++ {
			samples[n+ch] = v
		}
		n += channels
		s.index++
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (s *ToneSource) Close() error { return nil }
