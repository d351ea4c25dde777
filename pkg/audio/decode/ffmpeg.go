// ABOUTME: ffmpeg-backed audio source
// ABOUTME: Decodes any URL, file or stream ffmpeg understands (HLS, AAC, OGG) straight to the target format
package decode

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/quartz-radio/quartz/pkg/audio"
)

// FFmpegInput is what ffmpeg reads: a URL or file path, or an already
// open stream fed through stdin.
type FFmpegInput struct {
	URL string
	// Headers are sent when ffmpeg fetches an http(s) URL itself.
	Headers http.Header
	// Reader replaces URL when set. The source closes it.
	Reader io.ReadCloser
}

func (in FFmpegInput) String() string {
	if in.Reader != nil {
		return "stdin"
	}
	return in.URL
}

// FFmpegSource decodes through an ffmpeg subprocess writing s16le PCM.
type FFmpegSource struct {
	*PCMSource
	cmd   *exec.Cmd
	input io.Closer
}

// NewFFmpeg starts ffmpeg reading in and resampling it to format.
func NewFFmpeg(ctx context.Context, in FFmpegInput, format audio.Format) (*FFmpegSource, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", ffmpegArgs(in, format)...)
	if in.Reader != nil {
		cmd.Stdin = in.Reader
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	log.Printf("Decoding via ffmpeg: %s (%v)", in, format)

	s := &FFmpegSource{cmd: cmd, input: in.Reader}
	pcm, err := NewPCM(stdout, format, 16)
	if err != nil {
		s.stop()
		return nil, err
	}
	s.PCMSource = pcm
	return s, nil
}

// ffmpegArgs builds the command line. Input options precede -i.
func ffmpegArgs(in FFmpegInput, format audio.Format) []string {
	args := []string{"-loglevel", "error"}
	switch {
	case in.Reader != nil:
		args = append(args, "-i", "pipe:0")
	default:
		if h := headerOption(in.Headers); h != "" && isHTTP(in.URL) {
			args = append(args, "-headers", h)
		}
		args = append(args, "-i", in.URL)
	}
	return append(args,
		"-f", "s16le",
		"-ar", strconv.Itoa(format.SampleRate),
		"-ac", strconv.Itoa(format.Channels),
		"-")
}

// headerOption formats headers the way ffmpeg's -headers expects, one
// CRLF terminated line each, in a stable order.
func headerOption(h http.Header) string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range h[k] {
			fmt.Fprintf(&b, "%s: %s\r\n", k, v)
		}
	}
	return b.String()
}

func isHTTP(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

// stop closes the input, kills ffmpeg and reaps it. The input goes first
// so the stdin copier is not left blocked on a read.
func (s *FFmpegSource) stop() {
	if s.input != nil {
		s.input.Close()
	}
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	// ffmpeg exits non-zero when killed
	s.cmd.Wait()
}

func (s *FFmpegSource) Close() error {
	s.PCMSource.Close()
	s.stop()
	return nil
}

var _ audio.Source = (*FFmpegSource)(nil)
