// ABOUTME: Tests for station metrics
// ABOUTME: Tests exposition output, nil safety and the request middleware
package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics, update func()) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler(update).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from metrics handler, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestMetricsExposition(t *testing.T) {
	m := New()
	m.PagePushed(1000, time.Second)
	m.PagePushed(500, 500*time.Millisecond)
	m.PacingStall(3 * time.Second)
	m.TrackStarted()
	m.TrackStarted()
	m.TrackFailed()

	out := scrape(t, m, func() {
		m.SetListeners(3)
		m.SetBuffered(2500 * time.Millisecond)
	})

	for _, want := range []string{
		"quartz_pages_total 2",
		"quartz_page_bytes_total 1500",
		"quartz_audio_seconds_total 1.5",
		"quartz_pacing_stalls_total 1",
		"quartz_tracks_started_total 2",
		"quartz_tracks_failed_total 1",
		"quartz_listeners 3",
		"quartz_buffered_seconds 2.5",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in exposition:\n%s", want, out)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.PagePushed(10, time.Second)
	m.PacingStall(time.Second)
	m.TrackStarted()
	m.TrackFailed()
	m.SetListeners(1)
	m.SetBuffered(time.Second)
	m.observeRequest(200)
}

func TestRequestMiddleware(t *testing.T) {
	m := New()
	h := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/", "/", "/missing"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	out := scrape(t, m, nil)
	if !strings.Contains(out, `quartz_http_requests_total{status="2xx"} 2`) {
		t.Errorf("expected two 2xx requests:\n%s", out)
	}
	if !strings.Contains(out, `quartz_http_requests_total{status="4xx"} 1`) {
		t.Errorf("expected one 4xx request:\n%s", out)
	}
}

func TestResponseWriterFlushes(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &responseWriter{ResponseWriter: rec, status: http.StatusOK}
	w.Write([]byte("page"))
	w.Flush()
	if !rec.Flushed {
		t.Error("expected flush to reach the underlying writer")
	}
	if _, _, err := w.Hijack(); err == nil {
		t.Error("expected hijack error from a recorder")
	}
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{101: "1xx", 200: "2xx", 304: "3xx", 404: "4xx", 503: "5xx"}
	for code, want := range tests {
		if got := statusClass(code); got != want {
			t.Errorf("statusClass(%d) = %s, want %s", code, got, want)
		}
	}
}
