// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the Output interface and an oto implementation
// Package output plays decoded PCM on the local sound device.
//
// Example:
//
//	out := output.NewOto()
//	err := out.Open(audio.DefaultFormat)
//	err = out.Write(samples)
package output
