// ABOUTME: Ogg Opus identification and comment header packets
// ABOUTME: Builds and parses OpusHead and OpusTags
package encode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/quartz-radio/quartz/pkg/audio"
)

// PreSkip is the number of 48kHz samples decoders discard at stream start.
const PreSkip = 312

// ErrBadHeader is returned when a header packet cannot be parsed.
var ErrBadHeader = errors.New("opus: malformed header packet")

var (
	headMagic = []byte("OpusHead")
	tagsMagic = []byte("OpusTags")
)

// Head is the content of an OpusHead identification packet.
type Head struct {
	Version       uint8
	Channels      uint8
	PreSkip       uint16
	SampleRate    uint32
	OutputGain    int16
	MappingFamily uint8
}

// IdentificationHeader returns the 19-byte OpusHead packet for format.
func IdentificationHeader(format audio.Format) []byte {
	b := make([]byte, 19)
	copy(b, headMagic)
	b[8] = 1
	b[9] = byte(format.Channels)
	binary.LittleEndian.PutUint16(b[10:], PreSkip)
	binary.LittleEndian.PutUint32(b[12:], uint32(format.SampleRate))
	// output gain and mapping family stay zero
	return b
}

// CommentHeader returns the OpusTags packet for vendor and comments.
func CommentHeader(vendor string, comments []string) []byte {
	var buf bytes.Buffer
	buf.Write(tagsMagic)
	writeString(&buf, vendor)
	binary.Write(&buf, binary.LittleEndian, uint32(len(comments)))
	for _, c := range comments {
		writeString(&buf, c)
	}
	return buf.Bytes()
}

func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint32(len(s)))
	buf.WriteString(s)
}

// ParseHead decodes an OpusHead packet.
func ParseHead(b []byte) (Head, error) {
	if len(b) < 19 || !bytes.Equal(b[:8], headMagic) {
		return Head{}, fmt.Errorf("%w: not an OpusHead", ErrBadHeader)
	}
	h := Head{
		Version:       b[8],
		Channels:      b[9],
		PreSkip:       binary.LittleEndian.Uint16(b[10:]),
		SampleRate:    binary.LittleEndian.Uint32(b[12:]),
		OutputGain:    int16(binary.LittleEndian.Uint16(b[16:])),
		MappingFamily: b[18],
	}
	if h.Channels == 0 {
		return Head{}, fmt.Errorf("%w: zero channels", ErrBadHeader)
	}
	return h, nil
}

// Format returns the input format recorded in the header.
func (h Head) Format() audio.Format {
	return audio.Format{Channels: int(h.Channels), SampleRate: int(h.SampleRate)}
}

// ParseTags decodes an OpusTags packet.
func ParseTags(b []byte) (vendor string, comments []string, err error) {
	if len(b) < 8 || !bytes.Equal(b[:8], tagsMagic) {
		return "", nil, fmt.Errorf("%w: not an OpusTags", ErrBadHeader)
	}
	r := bytes.NewReader(b[8:])

	vendor, err = readString(r)
	if err != nil {
		return "", nil, err
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return "", nil, fmt.Errorf("%w: comment count: %v", ErrBadHeader, err)
	}
	if int64(count)*4 > int64(r.Len()) {
		return "", nil, fmt.Errorf("%w: %d comments in %d bytes", ErrBadHeader, count, r.Len())
	}
	for i := uint32(0); i < count; i++ {
		c, err := readString(r)
		if err != nil {
			return "", nil, err
		}
		comments = append(comments, c)
	}
	return vendor, comments, nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", fmt.Errorf("%w: string length: %v", ErrBadHeader, err)
	}
	if int64(n) > int64(r.Len()) {
		return "", fmt.Errorf("%w: string of %d bytes overruns packet", ErrBadHeader, n)
	}
	s := make([]byte, n)
	r.Read(s)
	return string(s), nil
}
