package broadcast

import (
	"io"
	"math"
	"time"

	"github.com/quartz-radio/quartz/pkg/audio"
)

// toneSource generates a sine wave for a fixed number of frames, or
// forever when frames is negative.
type toneSource struct {
	format audio.Format
	frames int
	pos    int
	closed bool
}

func newTone(format audio.Format, d time.Duration) *toneSource {
	frames := -1
	if d > 0 {
		frames = format.Frames(d)
	}
	return &toneSource{format: format, frames: frames}
}

func (s *toneSource) Format() audio.Format { return s.format }

func (s *toneSource) Pull(samples []float32) (int, error) {
	n := 0
	for n+s.format.Channels <= len(samples) {
		if s.frames >= 0 && s.pos >= s.frames {
			break
		}
		v := float32(0.3 * math.Sin(2*math.Pi*440*float64(s.pos)/float64(s.format.SampleRate)))
		for ch := 0; ch < s.format.Channels; ch++ {
			samples[n+ch] = v
		}
		n += s.format.Channels
		s.pos++
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (s *toneSource) Close() error {
	s.closed = true
	return nil
}

type countingObserver struct {
	pages  int
	bytes  int
	stalls []time.Duration
}

func (o *countingObserver) PagePushed(bytes int, _ time.Duration) {
	o.pages++
	o.bytes += bytes
}

func (o *countingObserver) PacingStall(behind time.Duration) {
	o.stalls = append(o.stalls, behind)
}
