// ABOUTME: Oto-based audio output implementation
// ABOUTME: Handles PCM playback with software volume control using oto library
package output

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/quartz-radio/quartz/pkg/audio"
)

// Oto output implementation using oto library
type Oto struct {
	otoCtx     *oto.Context
	playerMu   sync.Mutex // player is read by Latency from other goroutines
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	format     audio.Format
	scratch    []byte
	ready      bool

	// set from the UI goroutine while Write runs
	volume atomic.Int32
	muted  atomic.Bool
}

// NewOto creates a new Oto output at full volume
func NewOto() *Oto {
	o := &Oto{}
	o.volume.Store(100)
	return o
}

// Open initializes the output device. oto allows one context per
// process, so a second Open must use the same format.
func (o *Oto) Open(format audio.Format) error {
	if o.otoCtx != nil {
		if format == o.format {
			log.Printf("Audio output already initialized with same format, reusing context")
			return nil
		}
		return fmt.Errorf("audio output already open as %v, cannot switch to %v", o.format, format)
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	o.otoCtx = ctx
	o.format = format

	// Create pipe for continuous streaming
	o.pipeReader, o.pipeWriter = io.Pipe()

	// Create persistent player that reads from the pipe
	player := o.otoCtx.NewPlayer(o.pipeReader)
	player.Play()
	o.playerMu.Lock()
	o.player = player
	o.playerMu.Unlock()

	o.ready = true

	log.Printf("Audio output initialized: %v", format)

	return nil
}

// Write outputs audio samples (blocks until written)
func (o *Oto) Write(samples []float32) error {
	if !o.ready {
		return fmt.Errorf("output not initialized")
	}

	o.scratch = encodeSamples(o.scratch[:0], samples, getVolumeMultiplier(o.Volume(), o.Muted()))

	// Write to pipe (which feeds the persistent player)
	if _, err := o.pipeWriter.Write(o.scratch); err != nil {
		return fmt.Errorf("pipe write failed: %w", err)
	}

	return nil
}

// Close releases output resources
func (o *Oto) Close() error {
	if o.pipeWriter != nil {
		o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	o.playerMu.Lock()
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	o.playerMu.Unlock()
	if o.pipeReader != nil {
		o.pipeReader.Close()
		o.pipeReader = nil
	}
	if o.otoCtx != nil {
		o.otoCtx.Suspend()
		o.ready = false
	}
	return nil
}

// Latency returns the audio queued in the device player but not yet heard.
func (o *Oto) Latency() time.Duration {
	o.playerMu.Lock()
	defer o.playerMu.Unlock()
	if o.player == nil {
		return 0
	}
	frames := o.player.BufferedSize() / (2 * o.format.Channels)
	return o.format.Duration(int64(frames))
}

// SetVolume sets the volume (0-100)
func (o *Oto) SetVolume(volume int) {
	volume = max(0, min(100, volume))
	o.volume.Store(int32(volume))
	log.Printf("Volume set to %d", volume)
}

// SetMuted sets mute state
func (o *Oto) SetMuted(muted bool) {
	o.muted.Store(muted)
	log.Printf("Muted: %v", muted)
}

// Volume returns current volume
func (o *Oto) Volume() int {
	return int(o.volume.Load())
}

// Muted returns mute state
func (o *Oto) Muted() bool {
	return o.muted.Load()
}

// encodeSamples appends samples as 16-bit little endian PCM scaled by
// multiplier, clipping at full scale.
func encodeSamples(dst []byte, samples []float32, multiplier float32) []byte {
	for _, s := range samples {
		v := audio.SampleToInt16(s * multiplier)
		dst = binary.LittleEndian.AppendUint16(dst, uint16(v))
	}
	return dst
}

// getVolumeMultiplier calculates volume multiplier
func getVolumeMultiplier(volume int, muted bool) float32 {
	if muted {
		return 0
	}
	return float32(volume) / 100
}
