// ABOUTME: Raw PCM source
// ABOUTME: Reads 16-bit or 24-bit little-endian interleaved PCM from a stream
package decode

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/quartz-radio/quartz/pkg/audio"
)

// PCMSource decodes headerless little-endian PCM.
type PCMSource struct {
	r        *bufio.Reader
	c        io.Closer
	format   audio.Format
	bitDepth int
	buf      []byte
	carry    []byte
	done     bool
}

// NewPCM creates a source reading raw PCM of the given format and bit depth.
func NewPCM(rc io.ReadCloser, format audio.Format, bitDepth int) (*PCMSource, error) {
	if bitDepth != 16 && bitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", bitDepth)
	}
	if format.Channels < 1 || format.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid PCM format %v", format)
	}
	return &PCMSource{
		r:        bufio.NewReader(rc),
		c:        rc,
		format:   format,
		bitDepth: bitDepth,
	}, nil
}

func (s *PCMSource) Format() audio.Format { return s.format }

func (s *PCMSource) Pull(samples []float32) (int, error) {
	if s.done {
		return 0, io.EOF
	}
	if len(samples) == 0 {
		return 0, nil
	}
	width := s.bitDepth / 8
	want := len(samples) * width
	if cap(s.buf) < want {
		s.buf = make([]byte, want)
	}
	buf := s.buf[:want]

	// bytes of a sample split across reads are carried over
	n := copy(buf, s.carry)
	s.carry = s.carry[:0]
	m, err := io.ReadAtLeast(s.r, buf[n:], width-n)
	n += m
	if err != nil {
		s.done = true
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, io.EOF
		}
		return 0, err
	}

	count := n / width
	for i := 0; i < count; i++ {
		b := buf[i*width:]
		if width == 2 {
			samples[i] = audio.SampleFromInt16(int16(uint16(b[0]) | uint16(b[1])<<8))
		} else {
			samples[i] = audio.SampleFromInt24(audio.SampleFrom24Bit([3]byte{b[0], b[1], b[2]}))
		}
	}
	s.carry = append(s.carry, buf[count*width:n]...)
	return count, nil
}

func (s *PCMSource) Close() error {
	return s.c.Close()
}
