// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, the Source contract and sample conversion functions
// Package audio provides the fundamental audio types shared by the radio pipeline.
//
// This package defines core types used throughout quartz:
//   - Format: channel count and sample rate of an interleaved PCM stream
//   - Source: a pull-based producer of interleaved float32 PCM
//
// It also provides utilities for converting between sample representations:
//   - int16 / 24-bit packed ↔ float32 conversions
//   - silence fill
//
// Example:
//
//	format := audio.Format{Channels: 2, SampleRate: 48000}
//	buf := make([]float32, format.Samples(60*time.Millisecond))
//	n, err := src.Pull(buf)
package audio
