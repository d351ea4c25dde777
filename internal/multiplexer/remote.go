// ABOUTME: Track source opener for remote URLs, local files and test tones
// ABOUTME: Fetches, decodes and converts track audio into the broadcast format
package multiplexer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/quartz-radio/quartz/internal/version"
	"github.com/quartz-radio/quartz/pkg/audio"
	"github.com/quartz-radio/quartz/pkg/audio/decode"
	"github.com/quartz-radio/quartz/pkg/audio/resample"
)

// sniffBuffer is the read buffer put in front of fetched bodies.
const sniffBuffer = 16 * 1024

// requestHeaders are sent on every track fetch, ours or ffmpeg's.
func requestHeaders() http.Header {
	h := make(http.Header)
	h.Set(version.RequestHeader, version.Version)
	return h
}

type readCloser struct {
	io.Reader
	io.Closer
}

// Opener turns track URLs into sources in the broadcast format.
type Opener struct {
	Format  audio.Format
	Quality resample.Quality
	Client  *http.Client
	// FFmpeg enables the ffmpeg fallback for containers the built-in
	// decoders do not handle.
	FFmpeg bool
}

// NewOpener returns an opener with a default HTTP client.
func NewOpener(format audio.Format, quality resample.Quality) *Opener {
	return &Opener{
		Format:  format,
		Quality: quality,
		Client:  &http.Client{},
		FFmpeg:  true,
	}
}

// Open resolves rawURL. Supported forms are http(s) URLs, file paths
// (optionally file://) and tone:FREQ[?seconds=N] test tones. Connecting
// and probing happen here so the multiplexer receives a ready source.
func (o *Opener) Open(ctx context.Context, rawURL string) (audio.Source, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid track url %q: %w", rawURL, err)
	}

	switch u.Scheme {
	case "tone":
		return o.openTone(u)
	case "http", "https":
		return o.openHTTP(ctx, u)
	case "file":
		return o.openFile(ctx, u.Path)
	case "":
		return o.openFile(ctx, rawURL)
	}
	return nil, fmt.Errorf("unsupported track url scheme %q", u.Scheme)
}

func (o *Opener) openTone(u *url.URL) (audio.Source, error) {
	tone := u.Opaque
	if tone == "" {
		tone = strings.TrimPrefix(u.Host+u.Path, "/")
	}
	freq := 440.0
	if tone != "" {
		f, err := strconv.ParseFloat(tone, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("invalid tone frequency %q", tone)
		}
		freq = f
	}
	var frames int64
	if s := u.Query().Get("seconds"); s != "" {
		secs, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid tone length %q", s)
		}
		frames = int64(o.Format.Frames(time.Duration(secs * float64(time.Second))))
	}
	return NewToneSource(o.Format, freq, frames), nil
}

func (o *Opener) openHTTP(ctx context.Context, u *url.URL) (audio.Source, error) {
	if strings.HasSuffix(u.Path, ".m3u8") {
		// playlists are followed by ffmpeg itself
		return o.openFFmpeg(ctx, decode.FFmpegInput{URL: u.String(), Headers: requestHeaders()})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header = requestHeaders()

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", u.Redacted(), err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch %s: status %s", u.Redacted(), resp.Status)
	}

	br := bufio.NewReaderSize(resp.Body, sniffBuffer)
	head, err := br.Peek(4)
	if err != nil && !errors.Is(err, io.EOF) {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to read %s: %w", u.Redacted(), err)
	}
	body := readCloser{br, resp.Body}

	if decode.Sniff(head) == decode.KindUnknown {
		log.Printf("No built-in decoder for %s (%s)", u.Redacted(), resp.Header.Get("Content-Type"))
		// the body already open is handed to ffmpeg, not fetched twice
		src, err := o.openFFmpeg(ctx, decode.FFmpegInput{Reader: body})
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
		return src, nil
	}

	src, err := decode.Open(body)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}
	return o.convert(src)
}

func (o *Opener) openFile(ctx context.Context, path string) (audio.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open track: %w", err)
	}
	src, err := decode.Open(f)
	if errors.Is(err, decode.ErrUnknownFormat) {
		f.Close()
		return o.openFFmpeg(ctx, decode.FFmpegInput{URL: path})
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	return o.convert(src)
}

func (o *Opener) openFFmpeg(ctx context.Context, in decode.FFmpegInput) (audio.Source, error) {
	if !o.FFmpeg {
		return nil, fmt.Errorf("%w: %s", decode.ErrUnknownFormat, in)
	}
	// ffmpeg outlives this call, it is stopped by Close
	src, err := decode.NewFFmpeg(context.WithoutCancel(ctx), in, o.Format)
	if err != nil {
		return nil, err
	}
	return src, nil
}

func (o *Opener) convert(src audio.Source) (audio.Source, error) {
	conv, err := resample.Convert(src, o.Format, o.Quality)
	if err != nil {
		src.Close()
		return nil, err
	}
	return conv, nil
}
