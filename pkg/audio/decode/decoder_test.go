package decode

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		head []byte
		want Kind
	}{
		{"flac", []byte("fLaC\x00"), KindFLAC},
		{"id3 tagged mp3", []byte("ID3\x04"), KindMP3},
		{"bare mp3 frame", []byte{0xFF, 0xFB, 0x90, 0x00}, KindMP3},
		{"ogg", []byte("OggS"), KindUnknown},
		{"empty", nil, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.head); got != tt.want {
				t.Errorf("Sniff() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpen_UnknownFormat(t *testing.T) {
	_, err := Open(io.NopCloser(bytes.NewReader([]byte("RIFF....WAVE"))))
	if !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestOpen_CorruptFLAC(t *testing.T) {
	// signature only, no STREAMINFO block
	_, err := Open(io.NopCloser(bytes.NewReader([]byte("fLaC"))))
	if err == nil {
		t.Fatal("expected error for truncated FLAC")
	}
}
