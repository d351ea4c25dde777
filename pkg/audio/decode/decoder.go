// ABOUTME: Container sniffing and decoder selection
// ABOUTME: Opens an encoded byte stream as a PCM source
package decode

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/quartz-radio/quartz/pkg/audio"
)

// ErrUnknownFormat is returned by Open when the stream is not MP3 or FLAC.
var ErrUnknownFormat = errors.New("unrecognized audio container")

// Kind identifies a container format.
type Kind string

const (
	KindUnknown Kind = ""
	KindMP3     Kind = "mp3"
	KindFLAC    Kind = "flac"
)

// Sniff guesses the container format from the first bytes of a stream.
func Sniff(head []byte) Kind {
	switch {
	case bytes.HasPrefix(head, []byte("fLaC")):
		return KindFLAC
	case bytes.HasPrefix(head, []byte("ID3")):
		return KindMP3
	case len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0:
		// MPEG audio frame sync
		return KindMP3
	}
	return KindUnknown
}

// Open sniffs rc and returns a source decoding it. The source owns rc
// and closes it on Close. On error rc is left open.
func Open(rc io.ReadCloser) (audio.Source, error) {
	br := bufio.NewReaderSize(rc, 16*1024)
	head, err := br.Peek(4)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read stream header: %w", err)
	}

	body := struct {
		io.Reader
		io.Closer
	}{br, rc}

	switch Sniff(head) {
	case KindMP3:
		return NewMP3(body)
	case KindFLAC:
		return NewFLAC(body)
	}
	return nil, fmt.Errorf("%w: header % x", ErrUnknownFormat, head)
}
