// ABOUTME: Listener monitor that plays a station stream locally
// ABOUTME: Fetches the Ogg stream, decodes Opus and feeds an audio output
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quartz-radio/quartz/internal/version"
	"github.com/quartz-radio/quartz/pkg/audio"
	"github.com/quartz-radio/quartz/pkg/audio/decode"
	"github.com/quartz-radio/quartz/pkg/audio/encode"
	"github.com/quartz-radio/quartz/pkg/audio/ogg"
	"github.com/quartz-radio/quartz/pkg/audio/output"
)

// DefaultQueue is the number of decoded packets held ahead of the device.
const DefaultQueue = 8

// Config configures a monitor
type Config struct {
	URL   string
	Queue int
	Debug bool
}

// Info describes the stream from its headers.
type Info struct {
	Format   audio.Format
	PreSkip  int
	Vendor   string
	Comments []string
	Title    string
	Artist   string
}

// Stats counts progress through the stream.
type Stats struct {
	Pages    int64
	Packets  int64
	Gaps     int64 // skipped breaks in the page sequence
	Buffered time.Duration // decoded audio not yet heard, including the device queue
}

// Monitor plays one station stream.
type Monitor struct {
	config Config
	client *http.Client
	out    output.Output

	mu      sync.RWMutex
	info    Info
	hasInfo bool

	pages   atomic.Int64
	packets atomic.Int64
	gaps    atomic.Int64
	queued  atomic.Int64 // samples decoded but not yet written
}

// New creates a monitor playing to out
func New(config Config, out output.Output) *Monitor {
	if config.Queue <= 0 {
		config.Queue = DefaultQueue
	}
	return &Monitor{
		config: config,
		client: &http.Client{},
		out:    out,
	}
}

// Info returns the stream description once the headers were read.
func (m *Monitor) Info() (Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.info, m.hasInfo
}

// Stats returns current counters.
func (m *Monitor) Stats() Stats {
	s := Stats{
		Pages:   m.pages.Load(),
		Packets: m.packets.Load(),
		Gaps:    m.gaps.Load(),
	}
	if info, ok := m.Info(); ok {
		s.Buffered = info.Format.Duration(m.queued.Load() / int64(info.Format.Channels))
		if l, ok := m.out.(output.Latency); ok {
			s.Buffered += l.Latency()
		}
	}
	return s
}

// Run plays the stream until it ends, ctx ends, or an error occurs. A
// cancelled ctx is not an error.
func (m *Monitor) Run(ctx context.Context) error {
	err := m.run(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (m *Monitor) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	req, err := http.NewRequestWithContext(gctx, http.MethodGet, m.config.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set(version.RequestHeader, version.Version)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", m.config.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("station returned %s", resp.Status)
	}
	log.Printf("Connected to %s (%s)", m.config.URL, resp.Header.Get("Content-Type"))

	demux, err := ogg.NewDemuxer(resp.Body)
	if err != nil {
		return err
	}
	defer demux.Close()

	info, err := m.readHeaders(demux)
	if err != nil {
		return err
	}
	log.Printf("Stream: %v, vendor %q", info.Format, info.Vendor)

	dec, err := decode.NewOpus(info.Format)
	if err != nil {
		return err
	}
	defer dec.Close()

	if err := m.out.Open(info.Format); err != nil {
		return fmt.Errorf("failed to open audio output: %w", err)
	}

	frames := make(chan []float32, m.config.Queue)

	g.Go(func() error {
		defer close(frames)
		return m.decodeLoop(gctx, demux, dec, info, frames)
	})
	g.Go(func() error {
		for pcm := range frames {
			m.queued.Add(-int64(len(pcm)))
			if err := m.out.Write(pcm); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}

func (m *Monitor) readHeaders(demux *ogg.Demuxer) (Info, error) {
	p, err := demux.ReadPacket()
	if err != nil {
		return Info{}, fmt.Errorf("failed to read stream header: %w", err)
	}
	head, err := encode.ParseHead(p.Data)
	if err != nil {
		return Info{}, err
	}
	p, err = demux.ReadPacket()
	if err != nil {
		return Info{}, fmt.Errorf("failed to read stream tags: %w", err)
	}
	vendor, comments, err := encode.ParseTags(p.Data)
	if err != nil {
		return Info{}, err
	}

	info := Info{
		Format:   head.Format(),
		PreSkip:  int(head.PreSkip),
		Vendor:   vendor,
		Comments: comments,
	}
	for _, c := range comments {
		key, value, ok := strings.Cut(c, "=")
		if !ok {
			continue
		}
		switch strings.ToUpper(key) {
		case "TITLE":
			info.Title = value
		case "ARTIST":
			info.Artist = value
		}
	}

	m.mu.Lock()
	m.info = info
	m.hasInfo = true
	m.mu.Unlock()
	return info, nil
}

func (m *Monitor) decodeLoop(ctx context.Context, demux *ogg.Demuxer, dec *decode.OpusDecoder, info Info, frames chan<- []float32) error {
	// pre-skip is counted at 48kHz whatever the decode rate
	skip := info.PreSkip * info.Format.SampleRate / 48000 * info.Format.Channels
	for {
		p, err := demux.ReadPacket()
		if errors.Is(err, io.EOF) {
			log.Printf("Stream ended")
			return nil
		}
		if err != nil {
			return fmt.Errorf("stream read failed: %w", err)
		}
		m.packets.Add(1)
		m.pages.Store(int64(demux.Pages()))
		if holes := int64(demux.Holes()); holes != m.gaps.Load() {
			m.gaps.Store(holes)
			if m.config.Debug {
				log.Printf("[DEBUG] Page sequence gap before packet %d", p.PacketNo)
			}
		}

		pcm, err := dec.Decode(p.Data)
		if err != nil {
			if m.config.Debug {
				log.Printf("[DEBUG] Dropping packet %d: %v", p.PacketNo, err)
			}
			continue
		}
		if skip > 0 {
			n := min(skip, len(pcm))
			pcm = pcm[n:]
			skip -= n
			if len(pcm) == 0 {
				continue
			}
		}

		m.queued.Add(int64(len(pcm)))
		select {
		case frames <- pcm:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
