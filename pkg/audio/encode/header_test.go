package encode

import (
	"bytes"
	"errors"
	"testing"

	"github.com/quartz-radio/quartz/pkg/audio"
)

func TestIdentificationHeader(t *testing.T) {
	got := IdentificationHeader(audio.Format{Channels: 2, SampleRate: 48000})
	want := []byte{
		'O', 'p', 'u', 's', 'H', 'e', 'a', 'd',
		0x01,       // version
		0x02,       // channels
		0x38, 0x01, // pre-skip 312
		0x80, 0xBB, 0x00, 0x00, // 48000
		0x00, 0x00, // output gain
		0x00, // mapping family
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("IdentificationHeader() = % x, want % x", got, want)
	}

	head, err := ParseHead(got)
	if err != nil {
		t.Fatalf("ParseHead() failed: %v", err)
	}
	if head.Format() != (audio.Format{Channels: 2, SampleRate: 48000}) {
		t.Errorf("unexpected format %v", head.Format())
	}
	if head.PreSkip != PreSkip || head.Version != 1 {
		t.Errorf("unexpected head %+v", head)
	}
}

func TestCommentHeader(t *testing.T) {
	got := CommentHeader("quartz 1.0", []string{"encoder=quartz 1.0 libopus"})

	var want bytes.Buffer
	want.WriteString("OpusTags")
	want.Write([]byte{10, 0, 0, 0})
	want.WriteString("quartz 1.0")
	want.Write([]byte{1, 0, 0, 0})
	want.Write([]byte{26, 0, 0, 0})
	want.WriteString("encoder=quartz 1.0 libopus")

	if !bytes.Equal(got, want.Bytes()) {
		t.Fatalf("CommentHeader() = %q, want %q", got, want.Bytes())
	}

	vendor, comments, err := ParseTags(got)
	if err != nil {
		t.Fatalf("ParseTags() failed: %v", err)
	}
	if vendor != "quartz 1.0" {
		t.Errorf("vendor = %q", vendor)
	}
	if len(comments) != 1 || comments[0] != "encoder=quartz 1.0 libopus" {
		t.Errorf("comments = %q", comments)
	}
}

func TestParseMalformedHeaders(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short head", []byte("OpusHead")},
		{"wrong magic", append([]byte("OpusTags"), make([]byte, 11)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseHead(tt.data); !errors.Is(err, ErrBadHeader) {
				t.Errorf("ParseHead() error = %v", err)
			}
		})
	}

	truncated := CommentHeader("vendor", []string{"a=b"})
	truncated = truncated[:len(truncated)-2]
	if _, _, err := ParseTags(truncated); !errors.Is(err, ErrBadHeader) {
		t.Errorf("ParseTags() on truncated packet error = %v", err)
	}
}
