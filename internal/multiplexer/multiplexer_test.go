// ABOUTME: Tests for the source multiplexer
// ABOUTME: Tests silence when idle, switching, completion and release
package multiplexer

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quartz-radio/quartz/pkg/audio"
)

var testFormat = audio.Format{Channels: 2, SampleRate: 48000}

// trackedSource serves a constant value and records Close.
type trackedSource struct {
	format    audio.Format
	value     float32
	remaining int
	err       error
	closed    atomic.Bool
}

func newTracked(value float32, samples int) *trackedSource {
	return &trackedSource{format: testFormat, value: value, remaining: samples}
}

func (s *trackedSource) Format() audio.Format { return s.format }

func (s *trackedSource) Pull(samples []float32) (int, error) {
	if s.remaining == 0 {
		if s.err != nil {
			return 0, s.err
		}
		return 0, io.EOF
	}
	n := min(len(samples), s.remaining)
	for i := 0; i < n; i++ {
		samples[i] = s.value
	}
	s.remaining -= n
	return n, nil
}

func (s *trackedSource) Close() error {
	s.closed.Store(true)
	return nil
}

func pullAll(t *testing.T, m *Multiplexer, size int) ([]float32, error) {
	t.Helper()
	buf := make([]float32, size)
	n, err := m.Pull(buf)
	return buf[:n], err
}

func allEqual(samples []float32, v float32) bool {
	for _, s := range samples {
		if s != v {
			return false
		}
	}
	return true
}

func TestIdleProducesSilence(t *testing.T) {
	m, _ := New(testFormat)
	defer m.Close()

	buf := make([]float32, 64)
	for i := range buf {
		buf[i] = 1
	}
	n, err := m.Pull(buf)
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("expected %d samples, got %d", len(buf), n)
	}
	if !allEqual(buf, 0) {
		t.Error("expected silence while idle")
	}
	if m.Format() != testFormat {
		t.Errorf("expected format %v, got %v", testFormat, m.Format())
	}
}

func TestSwitchForwardsUntilExhausted(t *testing.T) {
	m, h := New(testFormat)
	defer m.Close()

	src := newTracked(0.25, 100)
	h.Switch(src)

	got, err := pullAll(t, m, 64)
	if err != nil || len(got) != 64 || !allEqual(got, 0.25) {
		t.Fatalf("expected 64 samples of source audio, got %d (err %v)", len(got), err)
	}
	got, err = pullAll(t, m, 64)
	if err != nil || len(got) != 36 || !allEqual(got, 0.25) {
		t.Fatalf("expected short read of 36 samples, got %d (err %v)", len(got), err)
	}

	// Exhausted: completion fires and the pull is filled with silence
	got, err = pullAll(t, m, 64)
	if err != nil || len(got) != 64 || !allEqual(got, 0) {
		t.Fatalf("expected silence after exhaustion, got %d (err %v)", len(got), err)
	}
	if !src.closed.Load() {
		t.Error("expected exhausted source to be closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if !h.Wait(ctx) {
		t.Fatal("expected completion signal")
	}
}

func TestSwitchLatestWins(t *testing.T) {
	m, h := New(testFormat)
	defer m.Close()

	first := newTracked(0.1, 1000)
	second := newTracked(0.2, 1000)
	h.Switch(first)
	h.Switch(second)

	if !first.closed.Load() {
		t.Error("expected superseded source to be closed")
	}

	got, _ := pullAll(t, m, 32)
	if !allEqual(got, 0.2) {
		t.Errorf("expected second source audio, got %v", got[:4])
	}
}

func TestSwitchReplacesPlayingSource(t *testing.T) {
	m, h := New(testFormat)
	defer m.Close()

	first := newTracked(0.1, 1000)
	h.Switch(first)
	pullAll(t, m, 32)

	second := newTracked(0.3, 1000)
	h.Switch(second)
	got, _ := pullAll(t, m, 32)
	if !allEqual(got, 0.3) {
		t.Errorf("expected new source audio, got %v", got[:4])
	}
	if !first.closed.Load() {
		t.Error("expected replaced source to be closed")
	}

	// A replacement is not a completion
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if h.Wait(ctx) {
		t.Error("expected no completion for a replaced source")
	}
}

func TestSwitchNilGoesIdle(t *testing.T) {
	m, h := New(testFormat)
	defer m.Close()

	src := newTracked(0.5, 1000)
	h.Switch(src)
	pullAll(t, m, 32)

	h.Switch(nil)
	got, err := pullAll(t, m, 32)
	if err != nil || len(got) != 32 || !allEqual(got, 0) {
		t.Fatalf("expected silence after switching to nil, got %d (err %v)", len(got), err)
	}
	if !src.closed.Load() {
		t.Error("expected previous source to be closed")
	}
}

func TestFormatMismatchCompletes(t *testing.T) {
	m, h := New(testFormat)
	defer m.Close()

	src := newTracked(0.5, 1000)
	src.format = audio.Format{Channels: 1, SampleRate: 24000}
	h.Switch(src)

	got, err := pullAll(t, m, 32)
	if err != nil || !allEqual(got, 0) {
		t.Fatalf("expected silence for mismatched source, got err %v", err)
	}
	if !src.closed.Load() {
		t.Error("expected mismatched source to be closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if !h.Wait(ctx) {
		t.Fatal("expected completion for mismatched source")
	}
}

func TestSourceErrorCompletes(t *testing.T) {
	m, h := New(testFormat)
	defer m.Close()

	src := newTracked(0.5, 16)
	src.err = errors.New("connection reset")
	h.Switch(src)

	pullAll(t, m, 32)
	got, err := pullAll(t, m, 32)
	if err != nil || !allEqual(got, 0) {
		t.Fatalf("expected silence after source error, got err %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if !h.Wait(ctx) {
		t.Fatal("expected completion for failed source")
	}
}

func TestHandleCloseEndsWhenIdle(t *testing.T) {
	m, h := New(testFormat)
	defer m.Close()

	src := newTracked(0.5, 32)
	h.Switch(src)
	h.Close()

	// The playing source finishes first
	got, err := pullAll(t, m, 32)
	if err != nil || len(got) != 32 {
		t.Fatalf("expected source audio after release, got %d (err %v)", len(got), err)
	}

	n, err := m.Pull(make([]float32, 32))
	if n != 0 || err != io.EOF {
		t.Fatalf("expected exhaustion once idle, got n=%d err=%v", n, err)
	}
}

func TestHandleClosePendingSwitchStillPlays(t *testing.T) {
	m, h := New(testFormat)
	defer m.Close()

	h.Close()
	h.Switch(newTracked(0.5, 32))

	got, err := pullAll(t, m, 32)
	if err != nil || len(got) != 32 || !allEqual(got, 0.5) {
		t.Fatalf("expected pending source to play, got %d (err %v)", len(got), err)
	}
}

func TestWaitReturnsFalseOnClose(t *testing.T) {
	m, h := New(testFormat)

	done := make(chan bool)
	go func() {
		done <- h.Wait(context.Background())
	}()

	m.Close()
	select {
	case ok := <-done:
		if ok {
			t.Error("expected Wait to report false after close")
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after close")
	}

	// Close is idempotent
	if err := m.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestWaitHonoursContext(t *testing.T) {
	m, h := New(testFormat)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if h.Wait(ctx) {
		t.Error("expected Wait to report false for cancelled context")
	}
}

func TestCloseClosesCurrentSource(t *testing.T) {
	m, h := New(testFormat)

	src := newTracked(0.5, 1000)
	h.Switch(src)
	pullAll(t, m, 32)
	m.Close()

	if !src.closed.Load() {
		t.Error("expected current source to be closed")
	}
}

func TestSwitchAfterCloseClosesSource(t *testing.T) {
	m, h := New(testFormat)

	pending := newTracked(0.5, 1000)
	h.Switch(pending)
	m.Close()
	if !pending.closed.Load() {
		t.Error("expected pending source to be closed with the multiplexer")
	}

	late := newTracked(0.5, 1000)
	h.Switch(late)
	if !late.closed.Load() {
		t.Error("expected source switched after close to be closed")
	}
}
