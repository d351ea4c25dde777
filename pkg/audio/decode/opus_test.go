// ABOUTME: Tests for Opus decoder
// ABOUTME: Decodes packets produced by the encoder package
package decode

import (
	"math"
	"testing"

	"github.com/quartz-radio/quartz/pkg/audio"
	"github.com/quartz-radio/quartz/pkg/audio/encode"
)

func TestNewOpus(t *testing.T) {
	tests := []struct {
		name    string
		format  audio.Format
		wantErr bool
	}{
		{"stereo", audio.Format{Channels: 2, SampleRate: 48000}, false},
		{"mono", audio.Format{Channels: 1, SampleRate: 48000}, false},
		{"invalid sample rate", audio.Format{Channels: 2, SampleRate: 44100}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoder, err := NewOpus(tt.format)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("failed to create decoder: %v", err)
			}
			decoder.Close()
		})
	}
}

func TestOpusDecodeEncodedFrames(t *testing.T) {
	opts := encode.DefaultOptions()
	opts.FrameSize = encode.FrameSize20ms
	enc, err := encode.NewOpus(audio.DefaultFormat, opts)
	if err != nil {
		t.Fatalf("failed to create encoder: %v", err)
	}
	defer enc.Close()

	dec, err := NewOpus(audio.DefaultFormat)
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}
	defer dec.Close()

	frame := make([]float32, enc.FrameSamples())
	var energy float64
	for i := 0; i < 10; i++ {
		for j := 0; j < len(frame); j += 2 {
			v := float32(0.5 * math.Sin(2*math.Pi*440*float64(i*960+j/2)/48000))
			frame[j], frame[j+1] = v, v
		}
		packet, err := enc.EncodeFrame(frame)
		if err != nil {
			t.Fatalf("EncodeFrame failed: %v", err)
		}
		pcm, err := dec.Decode(packet)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if len(pcm) != len(frame) {
			t.Fatalf("decoded %d samples, want %d", len(pcm), len(frame))
		}
		for _, s := range pcm {
			energy += float64(s) * float64(s)
		}
	}
	if energy == 0 {
		t.Error("decoded audio is silent")
	}
}
