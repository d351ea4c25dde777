// ABOUTME: Main server implementation for a Quartz station
// ABOUTME: Wires schedule, multiplexer, broadcast and listener endpoints together
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quartz-radio/quartz/internal/broadcast"
	"github.com/quartz-radio/quartz/internal/discovery"
	"github.com/quartz-radio/quartz/internal/metrics"
	"github.com/quartz-radio/quartz/internal/multiplexer"
	"github.com/quartz-radio/quartz/internal/schedule"
	"github.com/quartz-radio/quartz/pkg/audio/resample"
)

// Config holds server configuration
type Config struct {
	Port       int
	Name       string
	EnableMDNS bool
	Debug      bool
	UseTUI     bool

	Broadcast broadcast.Options
	Quality   resample.Quality
	// FFmpeg enables the ffmpeg fallback for tracks without a built-in decoder
	FFmpeg bool
}

// Server runs one station
type Server struct {
	config    Config
	stationID string
	schedule  schedule.Schedule

	httpServer *http.Server
	listenAddr chan net.Addr

	broadcast *broadcast.Broadcast
	handle    *multiplexer.Handle
	streams   *StreamHandler
	station   *Station
	metrics   *metrics.Metrics

	// mDNS discovery
	mdnsManager *discovery.Manager

	// TUI
	tui       *ServerTUI
	startTime time.Time

	// Control
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a server playing tracks from sched
func New(config Config, sched schedule.Schedule) *Server {
	return &Server{
		config:     config,
		stationID:  uuid.New().String(),
		schedule:   sched,
		listenAddr: make(chan net.Addr, 1),
		startTime:  time.Now(),
		stopChan:   make(chan struct{}),
	}
}

// Start runs the station until Stop, a TUI quit, or a fatal error
func (s *Server) Start() error {
	if s.config.UseTUI {
		s.tui = NewServerTUI()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.tui.Start(s.config.Name, s.config.Port); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()

		// Give TUI time to initialize
		time.Sleep(100 * time.Millisecond)
	}

	log.Printf("Station starting: %s (ID: %s)", s.config.Name, s.stationID)

	s.metrics = metrics.New()
	opts := s.config.Broadcast
	opts.Observer = s.metrics

	mux, handle := multiplexer.New(opts.Format)
	mux.SetDebug(s.config.Debug)
	b, err := broadcast.New(mux, opts)
	if err != nil {
		mux.Close()
		s.stopTUI()
		s.wg.Wait()
		return fmt.Errorf("failed to start broadcast: %w", err)
	}
	s.broadcast = b
	s.handle = handle
	log.Printf("Broadcasting %v, %v pages, %v backlog", opts.Format, opts.MaxPage, opts.Buffer)

	s.streams = NewStreamHandler(b, s.metrics, s.config.Debug)

	opener := multiplexer.NewOpener(opts.Format, s.config.Quality)
	opener.FFmpeg = s.config.FFmpeg
	s.station = NewStation(s.schedule, opener, handle, s.metrics)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			Path:        "/stream",
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stationErr := make(chan error, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		stationErr <- s.station.Run(ctx)
	}()

	if s.tui != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.statusLoop(ctx)
		}()
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.shutdown(cancel)
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listenAddr <- ln.Addr()
	log.Printf("Stream available at http://%s/stream", ln.Addr())

	s.httpServer = &http.Server{
		Handler:           s.streams.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serverErr error
	var tuiQuitChan <-chan struct{}
	if s.tui != nil {
		tuiQuitChan = s.tui.QuitChan()
	}

	select {
	case <-s.stopChan:
		log.Printf("Server shutting down...")
	case <-tuiQuitChan:
		log.Printf("TUI quit requested, shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = fmt.Errorf("HTTP server failed: %w", err)
	case err := <-stationErr:
		if err != nil {
			log.Printf("Station error: %v", err)
			serverErr = err
		}
	case <-b.Done():
		if err := b.Err(); err != nil {
			serverErr = fmt.Errorf("broadcast failed: %w", err)
		}
	}

	s.shutdown(cancel)
	log.Printf("Server stopped cleanly")
	return serverErr
}

// shutdown stops the station, then the broadcast so listeners drain, then
// the HTTP server.
func (s *Server) shutdown(cancel context.CancelFunc) {
	s.stopTUI()

	cancel()
	s.handle.Close()
	s.broadcast.Stop()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}

	s.wg.Wait()
}

func (s *Server) stopTUI() {
	if s.tui != nil {
		s.tui.Stop()
	}
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Addr blocks until the server is listening and returns its address.
func (s *Server) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case addr := <-s.listenAddr:
		s.listenAddr <- addr
		return addr, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// statusLoop refreshes the TUI once a second
func (s *Server) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		s.updateTUI()
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
