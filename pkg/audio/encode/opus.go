// ABOUTME: Opus audio encoder backed by libopus
// ABOUTME: Encodes fixed-size float32 PCM frames into Opus packets
package encode

/*
#cgo pkg-config: opus
#include <opus.h>

static int quartz_set_bitrate(OpusEncoder *enc, opus_int32 v) {
    return opus_encoder_ctl(enc, OPUS_SET_BITRATE(v));
}

static int quartz_set_complexity(OpusEncoder *enc, opus_int32 v) {
    return opus_encoder_ctl(enc, OPUS_SET_COMPLEXITY(v));
}

static int quartz_set_signal(OpusEncoder *enc, opus_int32 v) {
    return opus_encoder_ctl(enc, OPUS_SET_SIGNAL(v));
}

static int quartz_set_bandwidth(OpusEncoder *enc, opus_int32 v) {
    return opus_encoder_ctl(enc, OPUS_SET_BANDWIDTH(v));
}

static int quartz_set_vbr(OpusEncoder *enc, opus_int32 v) {
    return opus_encoder_ctl(enc, OPUS_SET_VBR(v));
}
*/
import "C"

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/quartz-radio/quartz/pkg/audio"
)

var (
	// ErrFormat is returned when the codec cannot carry the requested format.
	ErrFormat = errors.New("opus: unsupported format")
	// ErrInit is returned when libopus rejects the encoder configuration.
	ErrInit = errors.New("opus: encoder initialization failed")
)

// Max Opus packet size
const maxPacketSize = 4000

// silenceEpsilon replaces a leading zero sample so an all-zero frame never
// reaches the codec verbatim.
const silenceEpsilon = 0.0001

// OpusEncoder encodes Opus audio
type OpusEncoder struct {
	enc       *C.OpusEncoder
	format    audio.Format
	frameSize int // per-channel samples
	scratch   []float32
	packet    []byte
}

// NewOpus creates a new Opus encoder
func NewOpus(format audio.Format, opts Options) (*OpusEncoder, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInit, err)
	}

	var cerr C.int
	enc := C.opus_encoder_create(C.opus_int32(format.SampleRate), C.int(format.Channels),
		applicationValue(opts.Application), &cerr)
	if cerr != C.OPUS_OK {
		return nil, fmt.Errorf("%w: %s", ErrInit, strerror(cerr))
	}

	e := &OpusEncoder{
		enc:       enc,
		format:    format,
		frameSize: format.Frames(opts.FrameSize.Duration()),
		packet:    make([]byte, maxPacketSize),
	}
	e.scratch = make([]float32, e.frameSize*format.Channels)

	if err := e.configure(opts); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *OpusEncoder) configure(opts Options) error {
	vbr := 0
	if opts.VBR {
		vbr = 1
	}
	ctls := []struct {
		name string
		ret  C.int
	}{
		{"bitrate", C.quartz_set_bitrate(e.enc, C.opus_int32(bitrateValue(opts.Bitrate)))},
		{"complexity", C.quartz_set_complexity(e.enc, C.opus_int32(opts.Complexity))},
		{"signal", C.quartz_set_signal(e.enc, signalValue(opts.Signal))},
		{"bandwidth", C.quartz_set_bandwidth(e.enc, bandwidthValue(opts.Bandwidth))},
		{"vbr", C.quartz_set_vbr(e.enc, C.opus_int32(vbr))},
	}
	for _, ctl := range ctls {
		if ctl.ret != C.OPUS_OK {
			return fmt.Errorf("%w: set %s: %s", ErrInit, ctl.name, strerror(ctl.ret))
		}
	}
	return nil
}

// Format returns the PCM format the encoder accepts.
func (e *OpusEncoder) Format() audio.Format {
	return e.format
}

// FrameSize returns the per-channel sample count of one frame.
func (e *OpusEncoder) FrameSize() int {
	return e.frameSize
}

// FrameSamples returns the interleaved sample count EncodeFrame expects.
func (e *OpusEncoder) FrameSamples() int {
	return len(e.scratch)
}

// EncodeFrame encodes exactly FrameSamples() interleaved samples into one
// Opus packet. The returned slice is reused by the next call.
func (e *OpusEncoder) EncodeFrame(pcm []float32) ([]byte, error) {
	if e.enc == nil {
		return nil, fmt.Errorf("opus: encoder is closed")
	}
	if len(pcm) != len(e.scratch) {
		return nil, fmt.Errorf("opus: frame has %d samples, want %d", len(pcm), len(e.scratch))
	}

	copy(e.scratch, pcm)
	if e.scratch[0] == 0 {
		e.scratch[0] = silenceEpsilon
	}

	n := C.opus_encode_float(e.enc,
		(*C.float)(unsafe.Pointer(&e.scratch[0])), C.int(e.frameSize),
		(*C.uchar)(unsafe.Pointer(&e.packet[0])), C.opus_int32(len(e.packet)))
	if n < 0 {
		return nil, fmt.Errorf("opus encode error: %s", strerror(C.int(n)))
	}
	return e.packet[:n], nil
}

// Close releases resources
func (e *OpusEncoder) Close() error {
	if e.enc != nil {
		C.opus_encoder_destroy(e.enc)
		e.enc = nil
	}
	return nil
}

func strerror(code C.int) string {
	return C.GoString(C.opus_strerror(code))
}

func applicationValue(a Application) C.int {
	switch a {
	case AppVoIP:
		return C.OPUS_APPLICATION_VOIP
	case AppRestrictedLowdelay:
		return C.OPUS_APPLICATION_RESTRICTED_LOWDELAY
	}
	return C.OPUS_APPLICATION_AUDIO
}

func bitrateValue(b int) int {
	switch b {
	case BitrateAuto:
		return int(C.OPUS_AUTO)
	case BitrateMax:
		return int(C.OPUS_BITRATE_MAX)
	}
	return b
}

func signalValue(s Signal) C.opus_int32 {
	switch s {
	case SignalVoice:
		return C.OPUS_SIGNAL_VOICE
	case SignalMusic:
		return C.OPUS_SIGNAL_MUSIC
	}
	return C.OPUS_AUTO
}

func bandwidthValue(b Bandwidth) C.opus_int32 {
	switch b {
	case Narrowband:
		return C.OPUS_BANDWIDTH_NARROWBAND
	case Mediumband:
		return C.OPUS_BANDWIDTH_MEDIUMBAND
	case Wideband:
		return C.OPUS_BANDWIDTH_WIDEBAND
	case SuperWideband:
		return C.OPUS_BANDWIDTH_SUPERWIDEBAND
	case Fullband:
		return C.OPUS_BANDWIDTH_FULLBAND
	}
	return C.OPUS_AUTO
}
