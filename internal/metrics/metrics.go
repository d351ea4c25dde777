// ABOUTME: Prometheus metrics for the station
// ABOUTME: Counts pages, tracks, pacing stalls and requests and exposes listener gauges
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the station's counters and gauges on a private registry.
// All methods are safe on a nil *Metrics so callers can run without it.
type Metrics struct {
	registry       *prometheus.Registry
	listeners      prometheus.Gauge
	buffered       prometheus.Gauge
	pagesTotal     prometheus.Counter
	pageBytesTotal prometheus.Counter
	audioSeconds   prometheus.Counter
	pacingStalls   prometheus.Counter
	tracksStarted  prometheus.Counter
	tracksFailed   prometheus.Counter
	requestsTotal  *prometheus.CounterVec
}

// New creates and registers the station metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		listeners: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quartz_listeners",
			Help: "Number of connected listeners",
		}),
		buffered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quartz_buffered_seconds",
			Help: "Seconds of audio retained for joining listeners",
		}),
		pagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quartz_pages_total",
			Help: "Total number of pages produced",
		}),
		pageBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quartz_page_bytes_total",
			Help: "Total bytes of Ogg pages produced",
		}),
		audioSeconds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quartz_audio_seconds_total",
			Help: "Total seconds of audio encoded",
		}),
		pacingStalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quartz_pacing_stalls_total",
			Help: "Times the encoder fell behind real time and skipped ahead",
		}),
		tracksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quartz_tracks_started_total",
			Help: "Total number of tracks switched in",
		}),
		tracksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quartz_tracks_failed_total",
			Help: "Total number of tracks that could not be opened",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quartz_http_requests_total",
			Help: "Total number of HTTP requests by status class",
		}, []string{"status"}),
	}

	registry.MustRegister(
		m.listeners,
		m.buffered,
		m.pagesTotal,
		m.pageBytesTotal,
		m.audioSeconds,
		m.pacingStalls,
		m.tracksStarted,
		m.tracksFailed,
		m.requestsTotal,
	)
	return m
}

// PagePushed records a produced page.
func (m *Metrics) PagePushed(bytes int, duration time.Duration) {
	if m == nil {
		return
	}
	m.pagesTotal.Inc()
	m.pageBytesTotal.Add(float64(bytes))
	m.audioSeconds.Add(duration.Seconds())
}

// PacingStall records the pacer skipping ahead after falling behind.
func (m *Metrics) PacingStall(behind time.Duration) {
	if m == nil {
		return
	}
	m.pacingStalls.Inc()
}

func (m *Metrics) TrackStarted() {
	if m == nil {
		return
	}
	m.tracksStarted.Inc()
}

func (m *Metrics) TrackFailed() {
	if m == nil {
		return
	}
	m.tracksFailed.Inc()
}

func (m *Metrics) SetListeners(n int) {
	if m == nil {
		return
	}
	m.listeners.Set(float64(n))
}

func (m *Metrics) SetBuffered(d time.Duration) {
	if m == nil {
		return
	}
	m.buffered.Set(d.Seconds())
}

func (m *Metrics) observeRequest(status int) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(statusClass(status)).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	}
	return "1xx"
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
