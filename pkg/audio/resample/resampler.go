// ABOUTME: Sample rate converters for interleaved float32 PCM
// ABOUTME: Linear interpolation and windowed-sinc via go-audio-resampling
package resample

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Quality selects the rate conversion algorithm.
type Quality string

const (
	QualityLinear Quality = "linear"
	QualitySinc   Quality = "sinc"
)

// ParseQuality accepts "linear" or "sinc".
func ParseQuality(s string) (Quality, error) {
	switch q := Quality(s); q {
	case QualityLinear, QualitySinc:
		return q, nil
	}
	return "", fmt.Errorf("invalid resampler quality %q", s)
}

// Resampler converts chunks of interleaved samples between two rates.
// Output may lag input; converters keep state across calls.
type Resampler interface {
	Process(input []float32) ([]float32, error)
	// Flush returns output still held back once input has ended.
	Flush() ([]float32, error)
}

// New creates a converter for the given rates and channel count.
func New(inputRate, outputRate, channels int, quality Quality) (Resampler, error) {
	if inputRate <= 0 || outputRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid resampler config %d -> %d Hz, %d channels", inputRate, outputRate, channels)
	}
	if quality == QualityLinear {
		return NewLinear(inputRate, outputRate, channels), nil
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(inputRate),
		OutputRate: float64(outputRate),
		Channels:   channels,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}
	return &sinc{r: r, channels: channels, padFrames: inputRate / 10}, nil
}

type sinc struct {
	r         resampling.Resampler
	buf       []float64
	channels  int
	padFrames int
}

func (s *sinc) Process(input []float32) ([]float32, error) {
	if cap(s.buf) < len(input) {
		s.buf = make([]float64, len(input))
	}
	buf := s.buf[:len(input)]
	for i, v := range input {
		buf[i] = float64(v)
	}
	out, err := s.r.Process(buf)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}
	return toFloat32(out), nil
}

// Flush drains the filter tail. The library's own flush is used when it
// has one, otherwise the tail is pushed out with silence; Converter trims
// the padding.
func (s *sinc) Flush() ([]float32, error) {
	if f, ok := any(s.r).(interface{ Flush() ([]float64, error) }); ok {
		out, err := f.Flush()
		if err != nil {
			return nil, fmt.Errorf("resample flush error: %w", err)
		}
		return toFloat32(out), nil
	}
	return s.Process(make([]float32, s.padFrames*s.channels))
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

// Linear performs linear interpolation to convert between sample rates
type Linear struct {
	channels int
	ratio    float64
	position float64   // read position in frames, relative to prev
	prev     []float32 // last frame of the previous chunk
	havePrev bool
}

// NewLinear creates a new linear resampler
func NewLinear(inputRate, outputRate, channels int) *Linear {
	return &Linear{
		channels: channels,
		ratio:    float64(inputRate) / float64(outputRate),
		prev:     make([]float32, channels),
	}
}

func (r *Linear) frame(input []float32, idx int) []float32 {
	if r.havePrev {
		if idx == 0 {
			return r.prev
		}
		idx--
	}
	return input[idx*r.channels : (idx+1)*r.channels]
}

// Process converts input samples to the output rate. The last input frame
// is held back so interpolation spans chunk boundaries.
func (r *Linear) Process(input []float32) ([]float32, error) {
	inputFrames := len(input) / r.channels
	if inputFrames == 0 {
		return nil, nil
	}
	frames := inputFrames
	if r.havePrev {
		frames++
	}

	out := make([]float32, 0, int(float64(frames)/r.ratio+1)*r.channels)
	for {
		idx := int(r.position)
		if idx >= frames-1 {
			break
		}
		frac := float32(r.position - float64(idx))
		a, b := r.frame(input, idx), r.frame(input, idx+1)
		for ch := 0; ch < r.channels; ch++ {
			out = append(out, a[ch]*(1-frac)+b[ch]*frac)
		}
		r.position += r.ratio
	}

	// re-anchor on the last frame, which becomes prev
	r.position -= float64(frames - 1)
	copy(r.prev, input[(inputFrames-1)*r.channels:inputFrames*r.channels])
	r.havePrev = true
	return out, nil
}

// Flush emits the output positions that fall on the held back last
// frame, then resets.
func (r *Linear) Flush() ([]float32, error) {
	var out []float32
	if r.havePrev {
		for ; r.position < 1; r.position += r.ratio {
			out = append(out, r.prev...)
		}
	}
	r.Reset()
	return out, nil
}

// Reset resets the resampler state
func (r *Linear) Reset() {
	r.position = 0
	r.havePrev = false
	clear(r.prev)
}
