// ABOUTME: Entry point for the Quartz radio station
// ABOUTME: Parses CLI flags and environment and starts the station server
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quartz-radio/quartz/internal/broadcast"
	"github.com/quartz-radio/quartz/internal/config"
	"github.com/quartz-radio/quartz/internal/schedule"
	"github.com/quartz-radio/quartz/internal/server"
	"github.com/quartz-radio/quartz/internal/version"
	"github.com/quartz-radio/quartz/pkg/audio"
	"github.com/quartz-radio/quartz/pkg/audio/encode"
	"github.com/quartz-radio/quartz/pkg/audio/resample"
)

// defaultTrack plays when no playlist or track is given
const defaultTrack = "tone:440"

var (
	envFile     = flag.String("env", ".env", "Environment file to load before reading QUARTZ_* variables")
	port        = flag.Int("port", 0, "HTTP port (env QUARTZ_PORT, default 8000)")
	name        = flag.String("name", "", "Station name (env QUARTZ_NAME, default: hostname-quartz)")
	logFile     = flag.String("log-file", "", "Log file path (env QUARTZ_LOG_FILE, default quartz.log)")
	debug       = flag.Bool("debug", false, "Enable debug logging (env QUARTZ_DEBUG)")
	noMDNS      = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, stream logs to stdout instead")
	noFFmpeg    = flag.Bool("no-ffmpeg", false, "Do not fall back to ffmpeg for unknown containers")
	playlist    = flag.String("playlist", "", "YAML playlist (env QUARTZ_PLAYLIST). Extra arguments are played as tracks")
	shuffle     = flag.Bool("shuffle", false, "Requeue tracks in shuffled order instead of looping in sequence")
	sampleRate  = flag.Int("sample-rate", 0, "Broadcast sample rate (env QUARTZ_SAMPLE_RATE, default 48000)")
	channels    = flag.Int("channels", 0, "Broadcast channels, 1 or 2 (env QUARTZ_CHANNELS, default 2)")
	bitrate     = flag.String("bitrate", "", "Opus bitrate in bits/s, auto or max (env QUARTZ_BITRATE, default max)")
	complexity  = flag.Int("complexity", -1, "Opus complexity 0-10 (env QUARTZ_COMPLEXITY, default 5)")
	frameSize   = flag.String("frame", "", "Opus frame size: 2.5, 5, 10, 20, 40 or 60ms (env QUARTZ_FRAME, default 60ms)")
	signalType  = flag.String("signal", "", "Opus signal hint: auto, voice or music (env QUARTZ_SIGNAL, default music)")
	bandwidth   = flag.String("bandwidth", "", "Opus bandwidth: auto, narrow, medium, wide, superwide, full (env QUARTZ_BANDWIDTH)")
	application = flag.String("application", "", "Opus application: audio, voip or lowdelay (env QUARTZ_APPLICATION)")
	cbr         = flag.Bool("cbr", false, "Use constant bitrate instead of VBR")
	maxPage     = flag.Duration("max-page", 0, "Audio carried by one page (env QUARTZ_MAX_PAGE, default 1s)")
	bufferLen   = flag.Duration("buffer", 0, "Backlog kept for joining listeners (env QUARTZ_BUFFER, default 6s)")
	resampler   = flag.String("resampler", "", "Rate conversion: linear or sinc (env QUARTZ_RESAMPLER, default sinc)")
)

func main() {
	flag.Parse()

	// A missing env file is fine, flags and defaults still apply
	envErr := config.Load(*envFile)

	useTUI := !*noTUI && !config.GetEnvBool("QUARTZ_NO_TUI", false)
	debugLogs := *debug || config.GetEnvBool("QUARTZ_DEBUG", false)

	logPath := *logFile
	if logPath == "" {
		logPath = config.GetEnv("QUARTZ_LOG_FILE", "quartz.log")
	}
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}
	if envErr != nil && debugLogs {
		log.Printf("[DEBUG] No env file loaded: %v", envErr)
	}

	stationName := *name
	if stationName == "" {
		stationName = config.GetEnv("QUARTZ_NAME", "")
	}
	if stationName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		stationName = fmt.Sprintf("%s-quartz", hostname)
	}

	listenPort := *port
	if listenPort == 0 {
		listenPort = config.GetEnvInt("QUARTZ_PORT", 8000)
	}

	opts, err := broadcastOptions()
	if err != nil {
		log.Fatalf("Invalid broadcast settings: %v", err)
	}

	quality, err := resample.ParseQuality(stringSetting(*resampler, "QUARTZ_RESAMPLER", string(resample.QualitySinc)))
	if err != nil {
		log.Fatalf("Invalid resampler: %v", err)
	}

	sched, err := buildSchedule()
	if err != nil {
		log.Fatalf("Failed to load schedule: %v", err)
	}

	log.Printf("Starting %s %s: %s on port %d", version.Product, version.Version, stationName, listenPort)
	if debugLogs {
		log.Printf("Debug logging enabled")
	}
	log.Printf("Logging to: %s", logPath)
	log.Printf("Press Ctrl-C to stop")

	srv := server.New(server.Config{
		Port:       listenPort,
		Name:       stationName,
		EnableMDNS: !*noMDNS,
		Debug:      debugLogs,
		UseTUI:     useTUI,
		Broadcast:  opts,
		Quality:    quality,
		FFmpeg:     !*noFFmpeg,
	}, sched)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down gracefully...", sig)
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Printf("Server stopped")
}

func stringSetting(flagValue, env, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	return config.GetEnv(env, fallback)
}

func durationSetting(flagValue time.Duration, env string, fallback time.Duration) time.Duration {
	if flagValue != 0 {
		return flagValue
	}
	return config.GetEnvDuration(env, fallback)
}

// broadcastOptions merges flags, environment and defaults.
func broadcastOptions() (broadcast.Options, error) {
	opts := broadcast.DefaultOptions()

	rate := *sampleRate
	if rate == 0 {
		rate = config.GetEnvInt("QUARTZ_SAMPLE_RATE", audio.DefaultFormat.SampleRate)
	}
	ch := *channels
	if ch == 0 {
		ch = config.GetEnvInt("QUARTZ_CHANNELS", audio.DefaultFormat.Channels)
	}
	opts.Format = audio.Format{Channels: ch, SampleRate: rate}
	if err := opts.Format.Validate(); err != nil {
		return opts, err
	}

	var err error
	if s := stringSetting(*bitrate, "QUARTZ_BITRATE", ""); s != "" {
		if opts.Encoder.Bitrate, err = encode.ParseBitrate(s); err != nil {
			return opts, err
		}
	}
	if s := stringSetting(*frameSize, "QUARTZ_FRAME", ""); s != "" {
		if opts.Encoder.FrameSize, err = encode.ParseFrameSize(s); err != nil {
			return opts, err
		}
	}
	if s := stringSetting(*signalType, "QUARTZ_SIGNAL", ""); s != "" {
		if opts.Encoder.Signal, err = encode.ParseSignal(s); err != nil {
			return opts, err
		}
	}
	if s := stringSetting(*bandwidth, "QUARTZ_BANDWIDTH", ""); s != "" {
		if opts.Encoder.Bandwidth, err = encode.ParseBandwidth(s); err != nil {
			return opts, err
		}
	}
	if s := stringSetting(*application, "QUARTZ_APPLICATION", ""); s != "" {
		if opts.Encoder.Application, err = encode.ParseApplication(s); err != nil {
			return opts, err
		}
	}

	opts.Encoder.Complexity = *complexity
	if opts.Encoder.Complexity < 0 {
		opts.Encoder.Complexity = config.GetEnvInt("QUARTZ_COMPLEXITY", encode.DefaultOptions().Complexity)
	}
	opts.Encoder.VBR = !*cbr && !config.GetEnvBool("QUARTZ_CBR", false)

	opts.MaxPage = durationSetting(*maxPage, "QUARTZ_MAX_PAGE", opts.MaxPage)
	opts.Buffer = durationSetting(*bufferLen, "QUARTZ_BUFFER", opts.Buffer)
	return opts, nil
}

// buildSchedule loads the playlist and any tracks given as arguments.
func buildSchedule() (schedule.Schedule, error) {
	var tracks []schedule.Track

	path := stringSetting(*playlist, "QUARTZ_PLAYLIST", "")
	if path != "" {
		p, err := schedule.LoadPlaylist(path)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, p.Tracks...)
		log.Printf("Loaded %d tracks from %s", len(p.Tracks), path)
	}
	for _, arg := range flag.Args() {
		tracks = append(tracks, schedule.Track{AudioURL: arg})
	}
	if len(tracks) == 0 {
		log.Printf("No tracks given, playing test tone")
		tracks = append(tracks, schedule.Track{Title: "Test Tone (440Hz)", AudioURL: defaultTrack})
	}

	if *shuffle || config.GetEnvBool("QUARTZ_SHUFFLE", false) {
		r := schedule.NewRequeue(tracks, nil)
		r.Shuffle()
		return r, nil
	}
	return schedule.NewSequential(tracks), nil
}
