// ABOUTME: Ogg page muxer over libogg stream state
// ABOUTME: Turns Opus packets into Ogg pages with cumulative granule positions
package ogg

/*
#cgo pkg-config: ogg
#include <ogg/ogg.h>
#include <stdlib.h>

static ogg_stream_state* quartz_stream_alloc(int serial) {
    ogg_stream_state *s = (ogg_stream_state*)calloc(1, sizeof(ogg_stream_state));
    if (s && ogg_stream_init(s, serial) != 0) {
        free(s);
        return NULL;
    }
    return s;
}

static void quartz_stream_free(ogg_stream_state *s) {
    if (s) {
        ogg_stream_clear(s);
        free(s);
    }
}

static int quartz_packet_in(ogg_stream_state *s, unsigned char *data, long bytes,
                            int bos, ogg_int64_t granule, ogg_int64_t packetno) {
    ogg_packet p;
    p.packet = data;
    p.bytes = bytes;
    p.b_o_s = bos;
    p.e_o_s = 0;
    p.granulepos = granule;
    p.packetno = packetno;
    return ogg_stream_packetin(s, &p);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"unsafe"
)

// DefaultSerial is the logical stream serial used for broadcasts.
const DefaultSerial = 888765668

var (
	// ErrMalformedPage means libogg reported a page without a header.
	// The muxer state can no longer be trusted.
	ErrMalformedPage = errors.New("ogg: page without header")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("ogg: muxer closed")
)

// Muxer frames packets of one logical stream into Ogg pages.
type Muxer struct {
	state    *C.ogg_stream_state
	page     C.ogg_page
	packetNo int64
	granule  int64
	scratch  []byte
	closed   atomic.Bool
	cleanup  runtime.Cleanup
}

func freeStream(ptr uintptr) {
	C.quartz_stream_free((*C.ogg_stream_state)(unsafe.Pointer(ptr)))
}

// NewMuxer creates a muxer writing the logical stream serial.
func NewMuxer(serial int32) (*Muxer, error) {
	state := C.quartz_stream_alloc(C.int(serial))
	if state == nil {
		return nil, errors.New("ogg: failed to allocate stream state")
	}
	m := &Muxer{state: state}
	m.cleanup = runtime.AddCleanup(m, freeStream, uintptr(unsafe.Pointer(state)))
	return m, nil
}

// Put submits one packet carrying samples 48kHz samples. The granule
// position is the running sample total including this packet. Only the
// first packet of the stream carries the beginning-of-stream flag.
func (m *Muxer) Put(packet []byte, samples int64) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if len(packet) == 0 {
		return errors.New("ogg: empty packet")
	}

	m.granule += samples
	bos := 0
	if m.packetNo == 0 {
		bos = 1
	}
	ret := C.quartz_packet_in(m.state, (*C.uchar)(unsafe.Pointer(&packet[0])), C.long(len(packet)),
		C.int(bos), C.ogg_int64_t(m.granule), C.ogg_int64_t(m.packetNo))
	if ret != 0 {
		return fmt.Errorf("ogg: packetin failed for packet %d", m.packetNo)
	}
	// packet numbers wrap like the int64 they are stored in
	m.packetNo++
	return nil
}

// Flush forces every buffered packet out into pages held until Take.
func (m *Muxer) Flush() error {
	if m.closed.Load() {
		return ErrClosed
	}
	for C.ogg_stream_flush(m.state, &m.page) != 0 {
		if err := m.appendPage(); err != nil {
			return err
		}
	}
	return nil
}

// Take collects the pages libogg has completed on its own, appends them to
// anything Flush produced, and returns the lot. The result belongs to the
// caller; the muxer starts a fresh buffer.
func (m *Muxer) Take() ([]byte, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	for C.ogg_stream_pageout(m.state, &m.page) != 0 {
		if err := m.appendPage(); err != nil {
			return nil, err
		}
	}
	if len(m.scratch) == 0 {
		return nil, nil
	}
	out := m.scratch
	m.scratch = nil
	return out, nil
}

func (m *Muxer) appendPage() error {
	if m.page.header == nil || m.page.header_len <= 0 {
		return ErrMalformedPage
	}
	m.scratch = append(m.scratch, unsafe.Slice((*byte)(unsafe.Pointer(m.page.header)), int(m.page.header_len))...)
	if m.page.body_len > 0 {
		m.scratch = append(m.scratch, unsafe.Slice((*byte)(unsafe.Pointer(m.page.body)), int(m.page.body_len))...)
	}
	return nil
}

// Granule returns the granule position of the last packet submitted.
func (m *Muxer) Granule() int64 {
	return m.granule
}

// Close releases the libogg state. Safe to call multiple times.
func (m *Muxer) Close() error {
	if m.closed.CompareAndSwap(false, true) {
		m.cleanup.Stop()
		C.quartz_stream_free(m.state)
		m.state = nil
	}
	return nil
}
