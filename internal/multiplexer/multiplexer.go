// ABOUTME: Live source multiplexer feeding the broadcast
// ABOUTME: Switches between sources without interrupting the stream, silence when idle
package multiplexer

import (
	"context"
	"io"
	"log"
	"sync"
	"sync/atomic"

	"github.com/quartz-radio/quartz/pkg/audio"
)

// completionBacklog bounds unobserved completions.
const completionBacklog = 16

// Multiplexer is an audio.Source that forwards whichever source was last
// switched in. The pull side is used by a single goroutine.
type Multiplexer struct {
	format  audio.Format
	current audio.Source
	debug   bool

	mu         sync.Mutex
	pending    *command
	closed     bool
	hasPending atomic.Bool
	released   atomic.Bool

	completions chan struct{}
	closeOnce   sync.Once
}

type command struct {
	source audio.Source
}

// Handle controls a Multiplexer from any goroutine.
type Handle struct {
	m *Multiplexer
}

// New creates an idle multiplexer producing format and its control handle.
func New(format audio.Format) (*Multiplexer, *Handle) {
	m := &Multiplexer{
		format:      format,
		completions: make(chan struct{}, completionBacklog),
	}
	return m, &Handle{m: m}
}

// SetDebug enables per-transition logging.
func (m *Multiplexer) SetDebug(debug bool) {
	m.debug = debug
}

func (m *Multiplexer) Format() audio.Format { return m.format }

// Pull forwards to the active source. While idle it fills samples with
// silence. It reports exhaustion only after the handle is closed and no
// switch is pending.
func (m *Multiplexer) Pull(samples []float32) (int, error) {
	m.applyPending()

	if m.current != nil {
		if f := m.current.Format(); f != m.format {
			log.Printf("Dropping source with format %v, broadcast is %v", f, m.format)
			m.finish()
		} else {
			n, err := m.current.Pull(samples)
			if n > 0 {
				return n, nil
			}
			if err != nil && err != io.EOF {
				log.Printf("Source failed: %v", err)
			} else if m.debug {
				log.Printf("[DEBUG] Source exhausted")
			}
			m.finish()
		}
	}

	if m.released.Load() && !m.hasPending.Load() {
		return 0, io.EOF
	}
	audio.Silence(samples)
	return len(samples), nil
}

func (m *Multiplexer) applyPending() {
	if !m.hasPending.Load() {
		return
	}
	m.mu.Lock()
	cmd := m.pending
	m.pending = nil
	m.hasPending.Store(false)
	m.mu.Unlock()
	if cmd == nil {
		return
	}

	m.closeCurrent()
	m.current = cmd.source
	if m.debug {
		if m.current == nil {
			log.Printf("[DEBUG] Multiplexer idle")
		} else {
			log.Printf("[DEBUG] Multiplexer switched source")
		}
	}
}

// finish drops the current source and signals completion.
func (m *Multiplexer) finish() {
	m.closeCurrent()
	select {
	case m.completions <- struct{}{}:
	default:
		log.Printf("Completion dropped, nobody is waiting")
	}
}

func (m *Multiplexer) closeCurrent() {
	if m.current == nil {
		return
	}
	if err := m.current.Close(); err != nil {
		log.Printf("Error closing source: %v", err)
	}
	m.current = nil
}

// Close drops the current source and wakes anyone waiting on completion.
// Called by the owner of the pull side once it stops pulling.
func (m *Multiplexer) Close() error {
	m.closeCurrent()

	m.mu.Lock()
	m.closed = true
	cmd := m.pending
	m.pending = nil
	m.hasPending.Store(false)
	m.mu.Unlock()
	if cmd != nil && cmd.source != nil {
		cmd.source.Close()
	}

	m.closeOnce.Do(func() {
		close(m.completions)
	})
	return nil
}

// Switch replaces the active source at the next pull. A nil source
// switches to silence. A switch still pending is superseded and its
// source closed. After the multiplexer closes, src is closed right away.
func (h *Handle) Switch(src audio.Source) {
	m := h.m
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		if src != nil {
			src.Close()
		}
		return
	}
	superseded := m.pending
	m.pending = &command{source: src}
	m.hasPending.Store(true)
	m.mu.Unlock()

	if superseded != nil && superseded.source != nil {
		superseded.source.Close()
	}
}

// Wait blocks until the active source ends or fails. It returns false if
// the multiplexer closed or ctx ended first.
func (h *Handle) Wait(ctx context.Context) bool {
	select {
	case _, ok := <-h.m.completions:
		return ok
	case <-ctx.Done():
		return false
	}
}

// Close tells the multiplexer no more sources will come. Once idle it
// reports exhaustion, ending the broadcast.
func (h *Handle) Close() {
	h.m.released.Store(true)
}
