// ABOUTME: Audio decoder package for multiple container formats
// ABOUTME: Turns MP3, FLAC, raw PCM and Opus packets into float32 PCM
// Package decode provides audio decoders producing audio.Source values.
//
// Supports: MP3 (go-mp3), FLAC (mewkiz/flac), 16-bit and 24-bit raw PCM,
// anything ffmpeg can read, and individual Opus packets.
//
// Container sources report the stream's native format; use the resample
// package to convert them to a broadcast format.
//
// Example:
//
//	src, err := decode.Open(body)
//	n, err := src.Pull(buf)
package decode
