// ABOUTME: Ogg container package backed by libogg
// ABOUTME: Provides the page muxer used for streaming and a demuxer for reading streams back
// Package ogg wraps libogg for framing Opus packets into Ogg pages.
//
// Muxer is the write side: packets go in with Put, pages come out of
// Take (natural page boundaries) or Flush (forced). Demuxer reads an
// Ogg byte stream back into packets.
//
// Both hold C memory and must be closed by their owner. Neither is safe
// for concurrent use.
package ogg
