// ABOUTME: Page encoder combining the Opus frame encoder with the Ogg muxer
// ABOUTME: Pulls PCM frames and emits Ogg pages stamped with their duration
package broadcast

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/quartz-radio/quartz/pkg/audio"
	"github.com/quartz-radio/quartz/pkg/audio/encode"
	"github.com/quartz-radio/quartz/pkg/audio/ogg"
)

// opusClock is the rate granule positions are counted in.
const opusClock = 48000

// PageEncoder turns a PCM source into Ogg Opus pages.
type PageEncoder struct {
	opus   *encode.OpusEncoder
	mux    *ogg.Muxer
	format audio.Format
	header []byte
	frame  []float32

	frameSize      int64 // per-channel samples per frame
	granuleStep    int64
	maxPageSamples int64
	pageSamples    int64
	done           bool
}

// NewPageEncoder creates an encoder and produces the stream header pages.
func NewPageEncoder(opts Options) (*PageEncoder, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	enc, err := encode.NewOpus(opts.Format, opts.Encoder)
	if err != nil {
		return nil, err
	}
	mux, err := ogg.NewMuxer(opts.Serial)
	if err != nil {
		enc.Close()
		return nil, err
	}

	e := &PageEncoder{
		opus:           enc,
		mux:            mux,
		format:         opts.Format,
		frame:          make([]float32, enc.FrameSamples()),
		frameSize:      int64(enc.FrameSize()),
		granuleStep:    int64(enc.FrameSize()) * opusClock / int64(opts.Format.SampleRate),
		maxPageSamples: int64(opts.Format.Frames(opts.MaxPage)),
	}

	comments := []string{fmt.Sprintf("encoder=%s libopus", opts.Vendor)}
	header, err := e.writeHeader(encode.IdentificationHeader(opts.Format), encode.CommentHeader(opts.Vendor, comments))
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to write stream header: %w", err)
	}
	e.header = header
	return e, nil
}

func (e *PageEncoder) writeHeader(packets ...[]byte) ([]byte, error) {
	for _, p := range packets {
		if err := e.mux.Put(p, 0); err != nil {
			return nil, err
		}
		if err := e.mux.Flush(); err != nil {
			return nil, err
		}
	}
	return e.mux.Take()
}

// Header returns the identification and comment pages.
func (e *PageEncoder) Header() []byte {
	return e.header
}

// Format returns the PCM format the encoder consumes.
func (e *PageEncoder) Format() audio.Format {
	return e.format
}

// Next encodes frames from src until at least one page is complete.
// When src is exhausted the remaining packets are flushed and Next returns
// the final page, possibly empty, together with io.EOF.
func (e *PageEncoder) Next(src audio.Source) (Page, error) {
	if e.done {
		return Page{}, io.EOF
	}
	for {
		if e.pullFrame(src) == 0 {
			e.done = true
			if err := e.mux.Flush(); err != nil {
				return Page{}, err
			}
			page, err := e.take()
			if err != nil {
				return Page{}, err
			}
			return page, io.EOF
		}

		packet, err := e.opus.EncodeFrame(e.frame)
		if err != nil {
			return Page{}, err
		}
		if err := e.mux.Put(packet, e.granuleStep); err != nil {
			return Page{}, err
		}
		e.pageSamples += e.frameSize

		if e.pageSamples >= e.maxPageSamples {
			if err := e.mux.Flush(); err != nil {
				return Page{}, err
			}
		}

		page, err := e.take()
		if err != nil {
			return Page{}, err
		}
		if len(page.Data) > 0 {
			return page, nil
		}
	}
}

func (e *PageEncoder) take() (Page, error) {
	data, err := e.mux.Take()
	if err != nil {
		return Page{}, err
	}
	if len(data) == 0 {
		return Page{}, nil
	}
	page := Page{Data: data, Duration: e.format.Duration(e.pageSamples)}
	e.pageSamples = 0
	return page, nil
}

// pullFrame fills the frame buffer from src, looping over short reads.
// It returns the samples delivered; after a partial frame the rest is
// zeroed. Zero means the source is exhausted.
func (e *PageEncoder) pullFrame(src audio.Source) int {
	filled := 0
	for filled < len(e.frame) {
		n, err := src.Pull(e.frame[filled:])
		filled += n
		if n == 0 || errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Printf("Source error mid-frame: %v", err)
			break
		}
	}
	audio.Silence(e.frame[filled:])
	return filled
}

// Close releases the codec and muxer.
func (e *PageEncoder) Close() error {
	e.opus.Close()
	return e.mux.Close()
}
