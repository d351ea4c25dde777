// ABOUTME: Audio resampling package for sample rate and channel conversion
// ABOUTME: Wraps PCM sources so they match the broadcast format
// Package resample provides audio sample rate and channel conversion.
//
// Two rate converters are available: a windowed-sinc converter from
// go-audio-resampling (QualitySinc) and a linear interpolator
// (QualityLinear) that is cheap enough for constrained hosts.
//
// Example:
//
//	src, err := resample.Convert(decoded, audio.DefaultFormat, resample.QualitySinc)
//	n, err := src.Pull(buf)
package resample
