// ABOUTME: Opus encoder tuning options
// ABOUTME: Frame sizes, bitrate, signal, bandwidth and application settings with flag parsers
package encode

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FrameSize is the duration of audio carried by one Opus packet.
type FrameSize int

const (
	FrameSize2_5ms FrameSize = iota
	FrameSize5ms
	FrameSize10ms
	FrameSize20ms
	FrameSize40ms
	FrameSize60ms
)

// Duration returns the frame length.
func (f FrameSize) Duration() time.Duration {
	switch f {
	case FrameSize2_5ms:
		return 2500 * time.Microsecond
	case FrameSize5ms:
		return 5 * time.Millisecond
	case FrameSize10ms:
		return 10 * time.Millisecond
	case FrameSize20ms:
		return 20 * time.Millisecond
	case FrameSize40ms:
		return 40 * time.Millisecond
	case FrameSize60ms:
		return 60 * time.Millisecond
	}
	return 0
}

func (f FrameSize) String() string {
	if f == FrameSize2_5ms {
		return "2.5ms"
	}
	return f.Duration().String()
}

// ParseFrameSize accepts a frame length in milliseconds ("2.5", "20", "60ms").
func ParseFrameSize(s string) (FrameSize, error) {
	switch strings.TrimSuffix(strings.TrimSpace(s), "ms") {
	case "2.5":
		return FrameSize2_5ms, nil
	case "5":
		return FrameSize5ms, nil
	case "10":
		return FrameSize10ms, nil
	case "20":
		return FrameSize20ms, nil
	case "40":
		return FrameSize40ms, nil
	case "60":
		return FrameSize60ms, nil
	}
	return 0, fmt.Errorf("invalid opus frame size %q", s)
}

// Special bitrate values. Any positive value is a target in bits per second.
const (
	BitrateAuto = -1000
	BitrateMax  = -1
)

// ParseBitrate accepts "auto", "max" or a bitrate in bits per second.
func ParseBitrate(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto":
		return BitrateAuto, nil
	case "max":
		return BitrateMax, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid opus bitrate %q", s)
	}
	return n, nil
}

// Signal hints the codec about the kind of audio being encoded.
type Signal int

const (
	SignalAuto Signal = iota
	SignalVoice
	SignalMusic
)

// ParseSignal accepts "auto", "voice" or "music".
func ParseSignal(s string) (Signal, error) {
	switch strings.ToLower(s) {
	case "auto":
		return SignalAuto, nil
	case "voice":
		return SignalVoice, nil
	case "music":
		return SignalMusic, nil
	}
	return 0, fmt.Errorf("invalid opus signal %q", s)
}

// Bandwidth caps the audio bandwidth the encoder may use.
type Bandwidth int

const (
	BandwidthAuto Bandwidth = iota
	Narrowband
	Mediumband
	Wideband
	SuperWideband
	Fullband
)

// ParseBandwidth accepts "auto", "narrow", "medium", "wide", "superwide" or "full".
func ParseBandwidth(s string) (Bandwidth, error) {
	switch strings.TrimSuffix(strings.ToLower(s), "band") {
	case "auto":
		return BandwidthAuto, nil
	case "narrow":
		return Narrowband, nil
	case "medium":
		return Mediumband, nil
	case "wide":
		return Wideband, nil
	case "superwide":
		return SuperWideband, nil
	case "full":
		return Fullband, nil
	}
	return 0, fmt.Errorf("invalid opus bandwidth %q", s)
}

// Application selects the codec's coding mode.
type Application int

const (
	AppAudio Application = iota
	AppVoIP
	AppRestrictedLowdelay
)

// ParseApplication accepts "audio", "voip" or "lowdelay".
func ParseApplication(s string) (Application, error) {
	switch strings.ToLower(s) {
	case "audio":
		return AppAudio, nil
	case "voip":
		return AppVoIP, nil
	case "lowdelay", "restricted-lowdelay":
		return AppRestrictedLowdelay, nil
	}
	return 0, fmt.Errorf("invalid opus application %q", s)
}

// Options configures an OpusEncoder.
type Options struct {
	FrameSize   FrameSize
	Bitrate     int
	Signal      Signal
	Bandwidth   Bandwidth
	Application Application
	Complexity  int
	VBR         bool
}

// DefaultOptions returns settings tuned for music radio.
func DefaultOptions() Options {
	return Options{
		FrameSize:   FrameSize60ms,
		Bitrate:     BitrateMax,
		Signal:      SignalMusic,
		Bandwidth:   Fullband,
		Application: AppAudio,
		Complexity:  5,
		VBR:         true,
	}
}

func (o Options) validate() error {
	if o.FrameSize.Duration() == 0 {
		return fmt.Errorf("frame size %d out of range", o.FrameSize)
	}
	if o.Complexity < 0 || o.Complexity > 10 {
		return fmt.Errorf("complexity %d out of range 0-10", o.Complexity)
	}
	if o.Bitrate <= 0 && o.Bitrate != BitrateAuto && o.Bitrate != BitrateMax {
		return fmt.Errorf("bitrate %d out of range", o.Bitrate)
	}
	return nil
}
