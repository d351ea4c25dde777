// ABOUTME: Broadcast orchestrator running the encode-pace-buffer loop
// ABOUTME: Owns a source on a dedicated OS thread and fans pages out to receivers
package broadcast

import (
	"errors"
	"fmt"
	"io"
	"log"
	"runtime"
	"sync"

	"github.com/quartz-radio/quartz/pkg/audio"
)

// Broadcast encodes a source in real time into a shared page buffer.
type Broadcast struct {
	header   []byte
	buffer   *Buffer
	observer Observer

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	err      error
}

// New starts broadcasting src. The broadcast owns src and closes it when
// the loop ends. Initialization errors are returned before anything runs.
func New(src audio.Source, opts Options) (*Broadcast, error) {
	if src.Format() != opts.Format {
		return nil, fmt.Errorf("source format %v does not match broadcast format %v", src.Format(), opts.Format)
	}
	encoder, err := NewPageEncoder(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create page encoder: %w", err)
	}

	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	b := &Broadcast{
		header:   encoder.Header(),
		buffer:   NewBuffer(opts.Buffer),
		observer: observer,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	pump := NewPump(encoder, opts.Buffer, observer)

	go b.run(src, encoder, pump)
	return b, nil
}

func (b *Broadcast) run(src audio.Source, encoder *PageEncoder, pump *Pump) {
	// pacing runs on a dedicated OS thread
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(b.done)
	defer encoder.Close()
	defer src.Close()

	for {
		select {
		case <-b.stopChan:
			log.Printf("Broadcast stopped")
			return
		default:
		}

		page, err := pump.Step(src)
		if len(page.Data) > 0 {
			b.buffer.Push(page)
			b.observer.PagePushed(len(page.Data), page.Duration)
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			log.Printf("Broadcast source exhausted")
			return
		default:
			// codec or muxer failure, fatal
			b.err = err
			log.Printf("Broadcast aborted: %v", err)
			return
		}
	}
}

// Header returns the stream header every listener must receive first.
func (b *Broadcast) Header() []byte {
	return b.header
}

// Subscribe returns a new receiver for the page stream. Close it when the
// listener leaves.
func (b *Broadcast) Subscribe() *Receiver {
	return b.buffer.NewReceiver()
}

// Listeners returns the number of open receivers.
func (b *Broadcast) Listeners() int {
	return b.buffer.Receivers()
}

// Buffer exposes the page buffer.
func (b *Broadcast) Buffer() *Buffer {
	return b.buffer
}

// Done is closed when the broadcast loop has ended.
func (b *Broadcast) Done() <-chan struct{} {
	return b.done
}

// Err returns the error that aborted the loop, if any. Valid after Done.
func (b *Broadcast) Err() error {
	<-b.done
	return b.err
}

// Stop ends the loop before the next page and waits for it to exit.
func (b *Broadcast) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopChan)
	})
	<-b.done
}
