// ABOUTME: Format-converting PCM source
// ABOUTME: Remaps channels and resamples a source to a target format
package resample

import (
	"errors"
	"io"
	"log"

	"github.com/quartz-radio/quartz/pkg/audio"
)

// chunk is the input read size in frames
const chunk = 1024

// Converter wraps a source and presents it in another format.
type Converter struct {
	src      audio.Source
	from     audio.Format
	to       audio.Format
	rate     Resampler
	in       []float32
	mapped   []float32
	pending  []float32
	finished bool

	// frames in and out of the resampler, to size the drained tail
	inFrames  int64
	outFrames int64
}

// Convert returns src unchanged when it already has format to,
// otherwise a Converter. The returned source owns src.
func Convert(src audio.Source, to audio.Format, quality Quality) (audio.Source, error) {
	from := src.Format()
	if from == to {
		return src, nil
	}

	c := &Converter{
		src:    src,
		from:   from,
		to:     to,
		in:     make([]float32, chunk*from.Channels),
		mapped: make([]float32, chunk*to.Channels),
	}
	if from.SampleRate != to.SampleRate {
		r, err := New(from.SampleRate, to.SampleRate, to.Channels, quality)
		if err != nil {
			return nil, err
		}
		c.rate = r
	}
	log.Printf("Converting %v -> %v (%s)", from, to, quality)
	return c, nil
}

func (c *Converter) Format() audio.Format { return c.to }

func (c *Converter) Pull(samples []float32) (int, error) {
	for len(c.pending) == 0 {
		if c.finished {
			return 0, io.EOF
		}
		if err := c.fill(); err != nil {
			c.finished = true
			if errors.Is(err, io.EOF) {
				return 0, io.EOF
			}
			return 0, err
		}
	}
	// only whole frames leave the converter
	n := copy(samples[:len(samples)/c.to.Channels*c.to.Channels], c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

func (c *Converter) fill() error {
	n, err := c.src.Pull(c.in)
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		if errors.Is(err, io.EOF) && c.rate != nil {
			return c.drain()
		}
		return err
	}
	frames := n / c.from.Channels
	mapped := c.mapped[:frames*c.to.Channels]
	remap(c.in[:frames*c.from.Channels], c.from.Channels, mapped, c.to.Channels)

	if c.rate == nil {
		c.pending = append(c.pending[:0], mapped...)
		return nil
	}
	out, rerr := c.rate.Process(mapped)
	if rerr != nil {
		return rerr
	}
	c.inFrames += int64(frames)
	c.outFrames += int64(len(out) / c.to.Channels)
	c.pending = out
	return nil
}

// drain flushes the resampler once the source is exhausted and trims the
// tail so the output is exactly as long as the input, in output frames.
// The next fill reports io.EOF.
func (c *Converter) drain() error {
	rate := c.rate
	c.rate = nil

	want := (c.inFrames*int64(c.to.SampleRate) + int64(c.from.SampleRate)/2) / int64(c.from.SampleRate)
	missing := (want - c.outFrames) * int64(c.to.Channels)
	if missing <= 0 {
		return io.EOF
	}

	tail, err := rate.Flush()
	if err != nil {
		return err
	}
	if int64(len(tail)) < missing {
		// still short, pad with silence
		tail = append(tail, make([]float32, missing-int64(len(tail)))...)
	}
	c.pending = tail[:missing]
	c.outFrames = want
	return nil
}

// remap copies frames between channel layouts. Mono output takes the
// first channel; stereo output duplicates a mono input.
func remap(in []float32, inCh int, out []float32, outCh int) {
	frames := len(in) / inCh
	for f := 0; f < frames; f++ {
		for ch := 0; ch < outCh; ch++ {
			src := ch
			if src >= inCh {
				src = inCh - 1
			}
			out[f*outCh+ch] = in[f*inCh+src]
		}
	}
}

func (c *Converter) Close() error {
	return c.src.Close()
}
