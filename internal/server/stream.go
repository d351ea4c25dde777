// ABOUTME: HTTP and WebSocket listener endpoints for the broadcast
// ABOUTME: Sends the stream header, the backlog, then live pages to each listener
package server

import (
	"context"
	"log"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/quartz-radio/quartz/internal/broadcast"
	"github.com/quartz-radio/quartz/internal/metrics"
)

const (
	pingInterval  = 30 * time.Second
	writeDeadline = 10 * time.Second
)

// Listener is one connected HTTP or WebSocket client.
type Listener struct {
	ID        string
	Remote    string
	Transport string
	Since     time.Time
	sent      atomic.Int64
}

// ListenerInfo is a snapshot of a listener for display.
type ListenerInfo struct {
	ID        string
	Remote    string
	Transport string
	Since     time.Time
	Bytes     int64
}

// StreamHandler serves a broadcast to listeners.
type StreamHandler struct {
	broadcast *broadcast.Broadcast
	metrics   *metrics.Metrics
	debug     bool
	upgrader  websocket.Upgrader

	listeners   map[string]*Listener
	listenersMu sync.RWMutex
}

// NewStreamHandler creates listener endpoints for b. m may be nil.
func NewStreamHandler(b *broadcast.Broadcast, m *metrics.Metrics, debug bool) *StreamHandler {
	return &StreamHandler{
		broadcast: b,
		metrics:   m,
		debug:     debug,
		upgrader: websocket.Upgrader{
			// listeners are players on any origin, the stream is public
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		listeners: make(map[string]*Listener),
	}
}

// Router mounts /stream, /ws and /metrics.
func (h *StreamHandler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(metrics.RequestMiddleware(h.metrics))
	r.Get("/stream", h.serveStream)
	r.Get("/ws", h.serveWebSocket)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler(h.updateGauges))
	}
	return r
}

func (h *StreamHandler) updateGauges() {
	h.metrics.SetListeners(h.broadcast.Listeners())
	h.metrics.SetBuffered(h.broadcast.Buffer().Length())
}

// Listeners returns the connected listeners, oldest first.
func (h *StreamHandler) Listeners() []ListenerInfo {
	h.listenersMu.RLock()
	defer h.listenersMu.RUnlock()

	out := make([]ListenerInfo, 0, len(h.listeners))
	for _, l := range h.listeners {
		out = append(out, ListenerInfo{
			ID:        l.ID,
			Remote:    l.Remote,
			Transport: l.Transport,
			Since:     l.Since,
			Bytes:     l.sent.Load(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Since.Before(out[j].Since) })
	return out
}

func (h *StreamHandler) register(r *http.Request, transport string) *Listener {
	l := &Listener{
		ID:        uuid.New().String(),
		Remote:    r.RemoteAddr,
		Transport: transport,
		Since:     time.Now(),
	}
	h.listenersMu.Lock()
	h.listeners[l.ID] = l
	h.listenersMu.Unlock()

	log.Printf("Listener connected: %s via %s", l.Remote, transport)
	return l
}

func (h *StreamHandler) unregister(l *Listener) {
	h.listenersMu.Lock()
	delete(h.listeners, l.ID)
	h.listenersMu.Unlock()

	log.Printf("Listener disconnected: %s (%d bytes)", l.Remote, l.sent.Load())
}

// listenerContext ends when parent ends or the broadcast stops.
func (h *StreamHandler) listenerContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-h.broadcast.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// serveStream writes the Ogg stream as one chunked HTTP response.
func (h *StreamHandler) serveStream(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.broadcast.Done():
		http.Error(w, "broadcast has ended", http.StatusServiceUnavailable)
		return
	default:
	}

	rx := h.broadcast.Subscribe()
	defer rx.Close()
	l := h.register(r, "http")
	defer h.unregister(l)

	hdr := w.Header()
	hdr.Set("Content-Type", "audio/ogg")
	hdr.Set("Cache-Control", "no-cache, no-store")
	hdr.Set("Pragma", "no-cache")
	hdr.Set("Expires", "0")
	hdr.Set("Access-Control-Allow-Origin", "*")
	hdr.Set("Connection", "close")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	write := func(data []byte) error {
		n, err := w.Write(data)
		l.sent.Add(int64(n))
		if err != nil {
			return err
		}
		return rc.Flush()
	}

	if err := write(h.broadcast.Header()); err != nil {
		return
	}
	backlog := rx.Buffered()
	if h.debug {
		log.Printf("[DEBUG] Sending %d backlog pages to %s", len(backlog), l.Remote)
	}
	for _, page := range backlog {
		if err := write(page.Data); err != nil {
			return
		}
	}

	ctx, cancel := h.listenerContext(r.Context())
	defer cancel()
	for {
		page, err := rx.Poll(ctx)
		if err != nil {
			return
		}
		if err := write(page.Data); err != nil {
			if h.debug {
				log.Printf("[DEBUG] Write to %s failed: %v", l.Remote, err)
			}
			return
		}
	}
}

// serveWebSocket sends the same byte sequence as /stream, one binary
// message per header or page.
func (h *StreamHandler) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	rx := h.broadcast.Subscribe()
	defer rx.Close()
	l := h.register(r, "websocket")
	defer h.unregister(l)

	ctx, cancel := h.listenerContext(context.Background())
	defer cancel()

	// Listeners send nothing but control frames, reading surfaces the close
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("WebSocket error: %v", err)
				}
				return
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
					cancel()
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	write := func(data []byte) error {
		conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			return err
		}
		l.sent.Add(int64(len(data)))
		return nil
	}

	if err := write(h.broadcast.Header()); err != nil {
		return
	}
	for _, page := range rx.Buffered() {
		if err := write(page.Data); err != nil {
			return
		}
	}

	for {
		page, err := rx.Poll(ctx)
		if err != nil {
			break
		}
		if err := write(page.Data); err != nil {
			log.Printf("Error writing page to %s: %v", l.Remote, err)
			return
		}
	}

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "broadcast ended"),
		time.Now().Add(writeDeadline))
}
