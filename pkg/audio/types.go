// ABOUTME: Audio type definitions
// ABOUTME: Defines audio formats and sample conversions
package audio

import (
	"errors"
	"fmt"
	"time"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// ErrUnsupportedFormat is returned by Validate for formats Opus cannot carry.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Format describes an interleaved PCM stream. Formats compare with ==.
type Format struct {
	Channels   int
	SampleRate int
}

// DefaultFormat is 48kHz stereo, the native Opus rate.
var DefaultFormat = Format{Channels: 2, SampleRate: 48000}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch", f.SampleRate, f.Channels)
}

// Validate reports whether the format can be encoded as Opus.
func (f Format) Validate() error {
	switch f.SampleRate {
	case 8000, 12000, 16000, 24000, 48000:
	default:
		return fmt.Errorf("%w: sample rate %d", ErrUnsupportedFormat, f.SampleRate)
	}
	if f.Channels < 1 || f.Channels > 2 {
		return fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, f.Channels)
	}
	return nil
}

// Samples returns the interleaved sample count covering d.
func (f Format) Samples(d time.Duration) int {
	return f.Frames(d) * f.Channels
}

// Frames returns the per-channel sample count covering d.
func (f Format) Frames(d time.Duration) int {
	return int(int64(d) * int64(f.SampleRate) / int64(time.Second))
}

// Duration returns the play time of frames per-channel samples.
func (f Format) Duration(frames int64) time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(frames * int64(time.Second) / int64(f.SampleRate))
}

// SampleFromInt16 converts an int16 sample to float32 in [-1, 1)
func SampleFromInt16(sample int16) float32 {
	return float32(sample) / 32768
}

// SampleToInt16 converts a float32 sample to int16, clipping out-of-range values
func SampleToInt16(sample float32) int16 {
	v := sample * 32768
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// SampleFromInt24 converts a sign-extended 24-bit sample to float32
func SampleFromInt24(sample int32) float32 {
	return float32(sample) / 8388608
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	// Reconstruct 24-bit value and sign-extend to 32-bit
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}

// Silence zeroes buf.
func Silence(buf []float32) {
	clear(buf)
}
