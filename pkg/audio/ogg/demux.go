// ABOUTME: Ogg demuxer over libogg sync and stream state
// ABOUTME: Reads an Ogg byte stream back into packets with their granule positions
package ogg

/*
#cgo pkg-config: ogg
#include <ogg/ogg.h>
#include <stdlib.h>
#include <string.h>

static ogg_sync_state* quartz_sync_alloc(void) {
    ogg_sync_state *s = (ogg_sync_state*)calloc(1, sizeof(ogg_sync_state));
    if (s) {
        ogg_sync_init(s);
    }
    return s;
}

static void quartz_sync_free(ogg_sync_state *s) {
    if (s) {
        ogg_sync_clear(s);
        free(s);
    }
}

static int quartz_sync_write(ogg_sync_state *s, const unsigned char *data, long n) {
    char *buf = ogg_sync_buffer(s, n);
    if (!buf) {
        return -1;
    }
    memcpy(buf, data, n);
    return ogg_sync_wrote(s, n);
}

static ogg_stream_state* quartz_stream_alloc_for(int serial) {
    ogg_stream_state *s = (ogg_stream_state*)calloc(1, sizeof(ogg_stream_state));
    if (s && ogg_stream_init(s, serial) != 0) {
        free(s);
        return NULL;
    }
    return s;
}

static void quartz_stream_release(ogg_stream_state *s) {
    if (s) {
        ogg_stream_clear(s);
        free(s);
    }
}
*/
import "C"

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"unsafe"
)

// Packet is one packet read back from an Ogg stream.
type Packet struct {
	Data       []byte
	PacketNo   int64
	GranulePos int64 // -1 unless the packet ends a page
	BOS        bool
	EOS        bool
}

// Demuxer reads the packets of the first logical stream found in r.
type Demuxer struct {
	r      io.Reader
	sync   *C.ogg_sync_state
	stream *C.ogg_stream_state
	page   C.ogg_page
	packet C.ogg_packet
	buf    []byte
	pages  int
	holes  int
	closed atomic.Bool
}

// NewDemuxer creates a demuxer reading from r. Close must be called to
// release the libogg state.
func NewDemuxer(r io.Reader) (*Demuxer, error) {
	sync := C.quartz_sync_alloc()
	if sync == nil {
		return nil, errors.New("ogg: failed to allocate sync state")
	}
	return &Demuxer{r: r, sync: sync, buf: make([]byte, 4096)}, nil
}

// Pages returns the number of pages consumed so far.
func (d *Demuxer) Pages() int {
	return d.pages
}

// Holes returns how many gaps in the page sequence were skipped. A listener
// joining a live stream sees one between the header and the backlog.
func (d *Demuxer) Holes() int {
	return d.holes
}

// ReadPacket returns the next packet. Gaps in the page sequence are
// counted and skipped. It returns io.EOF when the reader is exhausted and
// no complete packet remains.
func (d *Demuxer) ReadPacket() (Packet, error) {
	if d.closed.Load() {
		return Packet{}, errors.New("ogg: demuxer closed")
	}
	for {
		if d.stream != nil {
			switch C.ogg_stream_packetout(d.stream, &d.packet) {
			case 1:
				return d.copyPacket(), nil
			case -1:
				d.holes++
				continue
			}
		}
		if err := d.nextPage(); err != nil {
			return Packet{}, err
		}
	}
}

func (d *Demuxer) nextPage() error {
	for {
		switch C.ogg_sync_pageout(d.sync, &d.page) {
		case 1:
			return d.submitPage()
		case -1:
			// lost sync, libogg skipped ahead
			continue
		}

		n, err := d.r.Read(d.buf)
		if n > 0 {
			if C.quartz_sync_write(d.sync, (*C.uchar)(unsafe.Pointer(&d.buf[0])), C.long(n)) != 0 {
				return errors.New("ogg: sync buffer write failed")
			}
		}
		if err != nil {
			if n > 0 && err == io.EOF {
				continue
			}
			return err
		}
	}
}

func (d *Demuxer) submitPage() error {
	serial := C.ogg_page_serialno(&d.page)
	if d.stream == nil {
		d.stream = C.quartz_stream_alloc_for(serial)
		if d.stream == nil {
			return errors.New("ogg: failed to allocate stream state")
		}
	} else if C.long(serial) != d.stream.serialno {
		// pages of other logical streams are skipped
		return nil
	}
	if C.ogg_stream_pagein(d.stream, &d.page) != 0 {
		return fmt.Errorf("ogg: page %d rejected", d.pages)
	}
	d.pages++
	return nil
}

func (d *Demuxer) copyPacket() Packet {
	return Packet{
		Data:       C.GoBytes(unsafe.Pointer(d.packet.packet), C.int(d.packet.bytes)),
		PacketNo:   int64(d.packet.packetno),
		GranulePos: int64(d.packet.granulepos),
		BOS:        d.packet.b_o_s != 0,
		EOS:        d.packet.e_o_s != 0,
	}
}

// Close releases the libogg state. Safe to call multiple times.
func (d *Demuxer) Close() error {
	if d.closed.CompareAndSwap(false, true) {
		C.quartz_sync_free(d.sync)
		C.quartz_stream_release(d.stream)
		d.sync = nil
		d.stream = nil
	}
	return nil
}
