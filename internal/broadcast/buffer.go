// ABOUTME: Versioned multi-reader page buffer
// ABOUTME: One pusher, any number of receivers each tracking their own position
package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Buffer retains recent pages for joining listeners and wakes waiting
// receivers on every push.
type Buffer struct {
	mu        sync.RWMutex
	queue     []Page
	length    time.Duration
	maxLength time.Duration

	version   atomic.Uint64
	changed   atomic.Pointer[chan struct{}]
	receivers atomic.Int64
}

// NewBuffer creates a buffer retaining about maxLength of audio.
func NewBuffer(maxLength time.Duration) *Buffer {
	if maxLength <= 0 {
		panic("broadcast: buffer length must be positive")
	}
	b := &Buffer{maxLength: maxLength}
	ch := make(chan struct{})
	b.changed.Store(&ch)
	return b
}

// Push appends page, evicting old pages first, and wakes all receivers.
// It returns the page with its sequence ID assigned.
func (b *Buffer) Push(page Page) Page {
	b.mu.Lock()
	for b.length >= b.maxLength {
		if len(b.queue) == 0 {
			panic("broadcast: buffered length without pages")
		}
		b.length -= b.queue[0].Duration
		b.queue[0] = Page{}
		b.queue = b.queue[1:]
	}
	page.ID = b.version.Load() + 1
	b.queue = append(b.queue, page)
	b.length += page.Duration
	b.version.Store(page.ID)
	b.mu.Unlock()

	next := make(chan struct{})
	close(*b.changed.Swap(&next))
	return page
}

// Length returns the audio duration currently retained.
func (b *Buffer) Length() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.length
}

// Version returns the ID of the most recent page, zero before any push.
func (b *Buffer) Version() uint64 {
	return b.version.Load()
}

// Receivers returns the number of open receivers.
func (b *Buffer) Receivers() int {
	return int(b.receivers.Load())
}

// NewReceiver returns a receiver positioned at the current version.
func (b *Buffer) NewReceiver() *Receiver {
	b.receivers.Add(1)
	return &Receiver{buf: b, cursor: b.version.Load()}
}

// after returns the page following version cursor, or the oldest retained
// page if that one was already evicted. Callers hold the read lock and
// know a newer page exists.
func (b *Buffer) after(cursor uint64) Page {
	front := b.queue[0].ID
	// distance in sequence space, wrap safe
	idx := int64(cursor + 1 - front)
	if idx < 0 {
		idx = 0
	}
	if idx >= int64(len(b.queue)) {
		idx = int64(len(b.queue)) - 1
	}
	return b.queue[idx]
}

// Receiver reads pages from a Buffer. A receiver is used by one goroutine.
type Receiver struct {
	buf    *Buffer
	cursor uint64
	closed atomic.Bool
}

// Clone returns an independent receiver positioned at the current version.
func (r *Receiver) Clone() *Receiver {
	return r.buf.NewReceiver()
}

// Buffered returns a snapshot of every retained page, oldest first, and
// moves the receiver past them.
func (r *Receiver) Buffered() []Page {
	r.buf.mu.RLock()
	defer r.buf.mu.RUnlock()
	pages := make([]Page, len(r.buf.queue))
	copy(pages, r.buf.queue)
	r.cursor = r.buf.version.Load()
	return pages
}

// Poll waits for a page newer than the last one this receiver saw. A
// receiver that keeps up gets every page once in push order; one that
// falls behind the retained backlog resumes at the oldest retained page.
func (r *Receiver) Poll(ctx context.Context) (Page, error) {
	for {
		// grab the channel before checking so a push in between still wakes us
		changed := *r.buf.changed.Load()
		if r.buf.version.Load() != r.cursor {
			r.buf.mu.RLock()
			page := r.buf.after(r.cursor)
			r.buf.mu.RUnlock()
			r.cursor = page.ID
			return page, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return Page{}, ctx.Err()
		}
	}
}

// Close releases the receiver. Safe to call multiple times.
func (r *Receiver) Close() {
	if r.closed.CompareAndSwap(false, true) {
		r.buf.receivers.Add(-1)
	}
}
