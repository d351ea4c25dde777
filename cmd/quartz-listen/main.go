// ABOUTME: Entry point for the Quartz listener monitor
// ABOUTME: Finds a station, plays its stream locally and shows status
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/quartz-radio/quartz/internal/config"
	"github.com/quartz-radio/quartz/internal/discovery"
	"github.com/quartz-radio/quartz/internal/monitor"
	"github.com/quartz-radio/quartz/internal/ui"
	"github.com/quartz-radio/quartz/pkg/audio/output"
)

var (
	streamURL  = flag.String("url", "", "Stream URL (skip mDNS), e.g. http://host:8000/stream")
	volume     = flag.Int("volume", 100, "Initial volume 0-100")
	queue      = flag.Int("queue", monitor.DefaultQueue, "Decoded packets queued ahead of the audio device")
	logFile    = flag.String("log-file", "quartz-listen.log", "Log file path")
	debug      = flag.Bool("debug", false, "Enable debug logging")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	discoverIn = flag.Duration("discover-timeout", 10*time.Second, "How long to browse mDNS for a station")
)

func main() {
	flag.Parse()
	config.Load()

	useTUI := !*noTUI

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	url := *streamURL
	if url == "" {
		url = config.GetEnv("QUARTZ_URL", "")
	}
	stationName := url
	if url == "" {
		log.Printf("Starting station discovery...")
		disc := discovery.NewManager(discovery.Config{})
		disc.Browse()

		select {
		case station := <-disc.Servers():
			url = station.URL()
			stationName = station.Name
			log.Printf("Discovered station %s at %s", station.Name, url)
		case <-time.After(*discoverIn):
			log.Fatalf("No station found after %v", *discoverIn)
		case <-ctx.Done():
			return
		}
		disc.Stop()
	}

	out := output.NewOto()
	out.SetVolume(*volume)
	defer out.Close()

	mon := monitor.New(monitor.Config{URL: url, Queue: *queue, Debug: *debug}, out)

	var tuiProg *tea.Program
	volumeCtrl := ui.NewVolumeControl()
	if useTUI {
		tuiProg = ui.Run(volumeCtrl, out.Volume())
		go func() {
			if _, err := tuiProg.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
			stop()
		}()
	}

	updateTUI := func(msg ui.StatusMsg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()

		connected := false
		for {
			select {
			case change := <-volumeCtrl.Changes:
				out.SetVolume(change.Volume)
				out.SetMuted(change.Muted)
			case <-volumeCtrl.Quit:
				stop()
				return
			case <-ticker.C:
				msg := ui.StatusMsg{StationName: stationName, URL: url}
				if info, ok := mon.Info(); ok {
					if !connected {
						connected = true
						msg.Connected = &connected
					}
					msg.SampleRate = info.Format.SampleRate
					msg.Channels = info.Format.Channels
					msg.Vendor = info.Vendor
					msg.Title = info.Title
					msg.Artist = info.Artist
				}
				stats := mon.Stats()
				msg.Pages = stats.Pages
				msg.Packets = stats.Packets
				msg.Buffered = stats.Buffered
				updateTUI(msg)
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Printf("Listening to %s", url)
	runErr := mon.Run(ctx)

	if tuiProg != nil {
		disconnected := false
		msg := ui.StatusMsg{Connected: &disconnected}
		if runErr != nil {
			msg.Err = runErr.Error()
		}
		updateTUI(msg)
		tuiProg.Quit()
	}

	if runErr != nil {
		log.Fatalf("Listener error: %v", runErr)
	}
	log.Printf("Listener stopped")
}
