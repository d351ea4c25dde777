// ABOUTME: Tests for the listener monitor
// ABOUTME: Tests decoding a served stream, header parsing and failures
package monitor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/quartz-radio/quartz/internal/broadcast"
	"github.com/quartz-radio/quartz/internal/version"
	"github.com/quartz-radio/quartz/pkg/audio"
)

// fakeOutput records what would have been played.
type fakeOutput struct {
	mu      sync.Mutex
	format  audio.Format
	samples int
	opened  bool
	failing bool
}

func (o *fakeOutput) Open(format audio.Format) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.format = format
	o.opened = true
	return nil
}

func (o *fakeOutput) Write(samples []float32) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failing {
		return errors.New("device lost")
	}
	o.samples += len(samples)
	return nil
}

func (o *fakeOutput) Close() error { return nil }

// encodePages encodes d of tone into the stream header and its pages.
func encodePages(t *testing.T, d time.Duration) ([]byte, [][]byte) {
	t.Helper()
	opts := broadcast.DefaultOptions()
	opts.Vendor = "quartz test"
	opts.Encoder.Bitrate = 32000
	opts.MaxPage = 240 * time.Millisecond

	frames := opts.Format.Frames(d)
	pcm := make([]float32, frames*opts.Format.Channels)
	for i := 0; i < frames; i++ {
		v := float32(0.3 * math.Sin(2*math.Pi*440*float64(i)/float64(opts.Format.SampleRate)))
		pcm[i*2] = v
		pcm[i*2+1] = v
	}
	src := audio.NewSliceSource(opts.Format, pcm)

	enc, err := broadcast.NewPageEncoder(opts)
	if err != nil {
		t.Fatalf("NewPageEncoder failed: %v", err)
	}
	defer enc.Close()

	var pages [][]byte
	for {
		page, err := enc.Next(src)
		if len(page.Data) > 0 {
			pages = append(pages, page.Data)
		}
		if errors.Is(err, io.EOF) {
			return enc.Header(), pages
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
	}
}

// encodeStream produces a complete Ogg Opus stream of d of tone.
func encodeStream(t *testing.T, d time.Duration) []byte {
	t.Helper()
	header, pages := encodePages(t, d)
	return bytes.Join(append([][]byte{header}, pages...), nil)
}

func TestMonitorPlaysStream(t *testing.T) {
	stream := encodeStream(t, time.Second)
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get(version.RequestHeader)
		w.Header().Set("Content-Type", "audio/ogg")
		w.Write(stream)
	}))
	defer srv.Close()

	out := &fakeOutput{}
	m := New(Config{URL: srv.URL}, out)
	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if gotHeader != version.Version {
		t.Errorf("expected %s header, got %q", version.RequestHeader, gotHeader)
	}
	if !out.opened || out.format != audio.DefaultFormat {
		t.Errorf("expected output opened as %v, got %v", audio.DefaultFormat, out.format)
	}

	info, ok := m.Info()
	if !ok {
		t.Fatal("expected stream info")
	}
	if info.Vendor != "quartz test" || info.PreSkip != 312 {
		t.Errorf("unexpected info %+v", info)
	}

	// 60ms packets cover at least the source minus pre-skip
	want := (48000 - 312) * 2
	if out.samples < want {
		t.Errorf("expected at least %d samples played, got %d", want, out.samples)
	}
	if out.samples%2 != 0 {
		t.Errorf("played a partial frame: %d samples", out.samples)
	}

	stats := m.Stats()
	if stats.Packets < 17 {
		t.Errorf("expected at least 17 packets, got %d", stats.Packets)
	}
	if stats.Pages < 3 {
		t.Errorf("expected several pages, got %d", stats.Pages)
	}
	if stats.Buffered != 0 {
		t.Errorf("expected empty queue after the stream, got %v", stats.Buffered)
	}
}

func TestMonitorJoinsAfterEviction(t *testing.T) {
	// a listener joining late gets the header, then a backlog that no
	// longer starts at the first audio page
	header, pages := encodePages(t, 2*time.Second)
	if len(pages) < 6 {
		t.Fatalf("expected at least 6 pages, got %d", len(pages))
	}
	backlog := pages[3:]
	stream := bytes.Join(append([][]byte{header}, backlog...), nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(stream)
	}))
	defer srv.Close()

	out := &fakeOutput{}
	m := New(Config{URL: srv.URL, Debug: true}, out)
	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run failed on a mid-stream join: %v", err)
	}

	stats := m.Stats()
	if stats.Gaps != 1 {
		t.Errorf("expected one sequence gap, got %d", stats.Gaps)
	}
	// every backlog page holds at least one 60ms packet
	if stats.Packets < int64(len(backlog)) {
		t.Errorf("expected at least %d packets, got %d", len(backlog), stats.Packets)
	}
	if want := (len(backlog)*2880 - 312) * 2; out.samples < want {
		t.Errorf("expected backlog audio played, got %d samples", out.samples)
	}
}

func TestMonitorRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "broadcast has ended", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if err := New(Config{URL: srv.URL}, &fakeOutput{}).Run(context.Background()); err == nil {
		t.Fatal("expected error for 503 response")
	}
}

func TestMonitorRejectsNonOpusStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not an ogg stream"))
	}))
	defer srv.Close()

	out := &fakeOutput{}
	if err := New(Config{URL: srv.URL}, out).Run(context.Background()); err == nil {
		t.Fatal("expected error for garbage stream")
	}
	if out.opened {
		t.Error("output should not open without a valid header")
	}
}

func TestMonitorOutputFailure(t *testing.T) {
	stream := encodeStream(t, time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(stream)
	}))
	defer srv.Close()

	out := &fakeOutput{failing: true}
	if err := New(Config{URL: srv.URL}, out).Run(context.Background()); err == nil {
		t.Fatal("expected output error to stop the monitor")
	}
}

func TestMonitorCancel(t *testing.T) {
	stream := encodeStream(t, 200*time.Millisecond)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(stream)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	m := New(Config{URL: srv.URL}, &fakeOutput{})
	go func() { errc <- m.Run(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for m.Stats().Packets == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("expected nil after cancel, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("monitor did not stop after cancel")
	}
}
