// ABOUTME: Tests for the server TUI model
// ABOUTME: Tests rendering of station status and the quit key
package server

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestTUIViewShowsStatus(t *testing.T) {
	m := tuiModel{startTime: time.Now(), quitChan: make(chan struct{}, 1)}
	updated, _ := m.Update(statusMsg(ServerStatus{
		Name:       "Night Shift",
		Port:       8000,
		NowPlaying: "Someone - Song",
		TrackStart: time.Now(),
		Listeners: []ListenerInfo{
			{Remote: "10.0.0.2:5555", Transport: "http", Since: time.Now(), Bytes: 2048},
		},
		Pages:    42,
		Buffered: 1500 * time.Millisecond,
	}))

	view := updated.View()
	for _, want := range []string{"Night Shift", "Someone - Song", "Listeners (1)", "10.0.0.2:5555", "2.0 KiB", "42", "1.5s"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in view:\n%s", want, view)
		}
	}
}

func TestTUIViewIdle(t *testing.T) {
	m := tuiModel{startTime: time.Now()}
	view := m.View()
	if !strings.Contains(view, "Nothing (silence)") || !strings.Contains(view, "No listeners connected") {
		t.Errorf("unexpected idle view:\n%s", view)
	}
}

func TestTUIQuitKey(t *testing.T) {
	quit := make(chan struct{}, 1)
	m := tuiModel{startTime: time.Now(), quitChan: quit}

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	select {
	case <-quit:
	default:
		t.Error("expected quit signal")
	}
	if !strings.Contains(updated.View(), "Shutting down") {
		t.Error("expected shutdown message")
	}
}

func TestServerTUIUpdateAfterStop(t *testing.T) {
	tui := NewServerTUI()
	tui.Stop()
	tui.Stop()
	// must not panic on the closed channel
	tui.Update(ServerStatus{Name: "late"})
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		12:      "12 B",
		2048:    "2.0 KiB",
		3 << 20: "3.0 MiB",
	}
	for n, want := range tests {
		if got := formatBytes(n); got != want {
			t.Errorf("formatBytes(%d) = %s, want %s", n, got, want)
		}
	}
}
