// ABOUTME: Tests for the server lifecycle
// ABOUTME: Tests start, streaming over a real listener and shutdown
package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/quartz-radio/quartz/internal/schedule"
	"github.com/quartz-radio/quartz/pkg/audio/resample"
)

func TestServerLifecycle(t *testing.T) {
	sched := schedule.NewSequential([]schedule.Track{
		{Title: "Tone", AudioURL: "tone:440?seconds=1"},
		{Title: "Higher", AudioURL: "tone:880?seconds=1"},
	})
	srv := New(Config{
		Port:      0,
		Name:      "Test Station",
		Broadcast: testBroadcastOptions(),
		Quality:   resample.QualityLinear,
	}, sched)

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	addr, err := srv.Addr(ctx)
	if err != nil {
		t.Fatalf("server did not start listening: %v", err)
	}
	port := addr.(*net.TCPAddr).Port

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/stream", port))
	if err != nil {
		t.Fatalf("GET /stream failed: %v", err)
	}
	start := make([]byte, 4)
	if _, err := io.ReadFull(resp.Body, start); err != nil {
		t.Fatalf("failed to read stream: %v", err)
	}
	resp.Body.Close()
	if !bytes.Equal(start, []byte("OggS")) {
		t.Errorf("stream does not start with an Ogg page: %q", start)
	}

	if !waitFor(t, 3*time.Second, func() bool { return srv.status().NowPlaying != "" }) {
		t.Error("station never reported a playing track")
	}

	srv.Stop()
	srv.Stop()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServerInvalidBroadcastOptions(t *testing.T) {
	opts := testBroadcastOptions()
	opts.MaxPage = 0
	srv := New(Config{Broadcast: opts}, schedule.NewSequential(nil))
	if err := srv.Start(); err == nil {
		t.Fatal("expected error for invalid broadcast options")
	}
}

func TestServerScheduleFailureStopsServer(t *testing.T) {
	srv := New(Config{
		Port:      0,
		Broadcast: testBroadcastOptions(),
	}, schedule.NewSequential(nil))

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		if err == nil {
			t.Error("expected schedule error to stop the server")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop after schedule failure")
	}
}
