// ABOUTME: FLAC audio source
// ABOUTME: Decodes a FLAC stream frame by frame with mewkiz/flac
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
	"github.com/quartz-radio/quartz/pkg/audio"
)

// FLACSource decodes FLAC
type FLACSource struct {
	stream  *flac.Stream
	closer  io.Closer
	format  audio.Format
	scale   float32
	pending []float32 // decoded samples not yet pulled
	done    bool
}

// NewFLAC creates a source decoding the FLAC stream in rc.
func NewFLAC(rc io.ReadCloser) (*FLACSource, error) {
	stream, err := flac.New(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	if info.BitsPerSample == 0 || info.BitsPerSample > 32 {
		return nil, fmt.Errorf("unsupported FLAC bit depth %d", info.BitsPerSample)
	}
	return &FLACSource{
		stream: stream,
		closer: rc,
		format: audio.Format{Channels: int(info.NChannels), SampleRate: int(info.SampleRate)},
		scale:  1 / float32(int64(1)<<(info.BitsPerSample-1)),
	}, nil
}

func (s *FLACSource) Format() audio.Format { return s.format }

func (s *FLACSource) Pull(samples []float32) (int, error) {
	for len(s.pending) == 0 {
		if s.done {
			return 0, io.EOF
		}
		if err := s.decodeFrame(); err != nil {
			s.done = true
			if errors.Is(err, io.EOF) {
				return 0, io.EOF
			}
			return 0, fmt.Errorf("flac decode error: %w", err)
		}
	}
	n := copy(samples, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *FLACSource) decodeFrame() error {
	frame, err := s.stream.ParseNext()
	if err != nil {
		return err
	}
	channels := s.format.Channels
	block := int(frame.BlockSize)
	out := make([]float32, block*channels)
	for ch := 0; ch < channels && ch < len(frame.Subframes); ch++ {
		sub := frame.Subframes[ch].Samples
		for i := 0; i < block && i < len(sub); i++ {
			out[i*channels+ch] = float32(sub[i]) * s.scale
		}
	}
	s.pending = out
	return nil
}

func (s *FLACSource) Close() error {
	return s.closer.Close()
}
