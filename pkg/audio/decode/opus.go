// ABOUTME: Opus packet decoder
// ABOUTME: Decodes individual Opus packets to float32 PCM with hraban/opus
package decode

import (
	"fmt"

	"github.com/quartz-radio/quartz/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// maxFrameSize is 120ms at 48kHz, the longest Opus packet.
const maxFrameSize = 5760

// OpusDecoder decodes Opus audio
type OpusDecoder struct {
	decoder *opus.Decoder
	format  audio.Format
	pcm16   []int16
}

// NewOpus creates a new Opus decoder producing format.
func NewOpus(format audio.Format) (*OpusDecoder, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid format for Opus decoder: %w", err)
	}

	dec, err := opus.NewDecoder(format.SampleRate, format.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	return &OpusDecoder{
		decoder: dec,
		format:  format,
		pcm16:   make([]int16, maxFrameSize*format.Channels),
	}, nil
}

// Format returns the PCM format Decode produces.
func (d *OpusDecoder) Format() audio.Format {
	return d.format
}

// Decode converts one Opus packet into interleaved samples.
func (d *OpusDecoder) Decode(packet []byte) ([]float32, error) {
	n, err := d.decoder.Decode(packet, d.pcm16)
	if err != nil {
		return nil, fmt.Errorf("opus decode failed: %w", err)
	}

	// n counts samples per channel
	count := n * d.format.Channels
	out := make([]float32, count)
	for i := 0; i < count; i++ {
		out[i] = audio.SampleFromInt16(d.pcm16[i])
	}
	return out, nil
}

// Close releases decoder resources
func (d *OpusDecoder) Close() error {
	return nil
}
