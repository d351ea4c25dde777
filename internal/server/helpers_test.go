package server

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quartz-radio/quartz/internal/broadcast"
	"github.com/quartz-radio/quartz/internal/multiplexer"
)

func testBroadcastOptions() broadcast.Options {
	opts := broadcast.DefaultOptions()
	opts.Vendor = "quartz test"
	opts.Encoder.Bitrate = 32000
	opts.MaxPage = 240 * time.Millisecond
	opts.Buffer = 2 * time.Second
	return opts
}

// startTone broadcasts an endless tone and stops it when the test ends.
func startTone(t *testing.T) *broadcast.Broadcast {
	t.Helper()
	opts := testBroadcastOptions()
	b, err := broadcast.New(multiplexer.NewToneSource(opts.Format, 440, 0), opts)
	if err != nil {
		t.Fatalf("failed to start broadcast: %v", err)
	}
	t.Cleanup(b.Stop)
	return b
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

// serve exposes h over HTTP. The broadcast stops before the server closes
// so streaming handlers return.
func serve(t *testing.T, b *broadcast.Broadcast, h *StreamHandler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	t.Cleanup(b.Stop)
	return srv
}
