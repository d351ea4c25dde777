// ABOUTME: MP3 audio source
// ABOUTME: Decodes an MP3 stream with go-mp3 into float32 PCM
package decode

import (
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
	"github.com/quartz-radio/quartz/pkg/audio"
)

// MP3Source decodes MP3. go-mp3 always produces 16-bit stereo.
type MP3Source struct {
	pcm *PCMSource
}

// NewMP3 creates a source decoding the MP3 stream in rc.
func NewMP3(rc io.ReadCloser) (*MP3Source, error) {
	decoder, err := mp3.NewDecoder(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}
	format := audio.Format{Channels: 2, SampleRate: decoder.SampleRate()}
	pcm, err := NewPCM(struct {
		io.Reader
		io.Closer
	}{decoder, rc}, format, 16)
	if err != nil {
		return nil, err
	}
	return &MP3Source{pcm: pcm}, nil
}

func (s *MP3Source) Format() audio.Format { return s.pcm.Format() }

func (s *MP3Source) Pull(samples []float32) (int, error) {
	n, err := s.pcm.Pull(samples)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("mp3 decode error: %w", err)
	}
	return n, err
}

func (s *MP3Source) Close() error { return s.pcm.Close() }
