// ABOUTME: Audio encoder package for encoding PCM to Opus
// ABOUTME: Provides the libopus frame encoder and Ogg Opus header packets
// Package encode provides the Opus encoder used by the broadcast pipeline.
//
// The encoder accepts fixed-size frames of interleaved float32 PCM and
// returns one Opus packet per frame. IdentificationHeader and CommentHeader
// build the two header packets every Ogg Opus stream starts with.
//
// Example:
//
//	enc, err := encode.NewOpus(audio.DefaultFormat, encode.DefaultOptions())
//	packet, err := enc.EncodeFrame(frame)
package encode
