// ABOUTME: Pull-based PCM source contract
// ABOUTME: Everything that feeds the encoder implements Source
package audio

import "io"

// Source produces interleaved float32 PCM in a fixed Format.
//
// Pull fills samples from the front and returns how many were written.
// Short reads are allowed. A source is exhausted when it returns zero
// samples; exhausted sources return (0, io.EOF) on every later call.
// Close releases the source and is called exactly once by its owner.
type Source interface {
	Format() Format
	Pull(samples []float32) (int, error)
	Close() error
}

// SliceSource serves a fixed buffer of samples, then reports exhaustion.
type SliceSource struct {
	format  Format
	samples []float32
	pos     int
}

// NewSliceSource wraps samples (interleaved, in format) as a Source.
func NewSliceSource(format Format, samples []float32) *SliceSource {
	return &SliceSource{format: format, samples: samples}
}

func (s *SliceSource) Format() Format { return s.format }

func (s *SliceSource) Pull(samples []float32) (int, error) {
	if s.pos >= len(s.samples) {
		return 0, io.EOF
	}
	n := copy(samples, s.samples[s.pos:])
	s.pos += n
	return n, nil
}

func (s *SliceSource) Close() error { return nil }
