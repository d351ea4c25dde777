// ABOUTME: Bubbletea model for listener TUI
// ABOUTME: Defines display state and key handling for quartz-listen
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Model represents the TUI state
type Model struct {
	// Connection
	connected   bool
	stationName string
	url         string

	// Stream
	sampleRate int
	channels   int
	vendor     string

	// Metadata
	title  string
	artist string

	// Playback
	volume int
	muted  bool

	// Stats
	pages    int64
	packets  int64
	buffered time.Duration
	lastErr  string

	showDebug bool

	volumeCtrl *VolumeControl

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString(m.renderStreamInfo())
	b.WriteString(m.renderControls())
	b.WriteString(m.renderStats())

	if m.showDebug {
		b.WriteString(m.renderDebug())
	}

	b.WriteString(m.renderHelp())

	return b.String()
}

// renderHeader renders connection status
func (m Model) renderHeader() string {
	connStatus := "Disconnected"
	if m.connected {
		connStatus = fmt.Sprintf("Listening to %s", m.stationName)
	}

	return fmt.Sprintf(`┌─ Quartz Listener ────────────────────────────────────┐
│ Status: %-44s │
├──────────────────────────────────────────────────────┤
`, truncate(connStatus, 44))
}

// renderStreamInfo renders current stream and metadata
func (m Model) renderStreamInfo() string {
	if !m.connected || m.sampleRate == 0 {
		return "│ No stream                                            │\n"
	}

	s := "│ Now Playing:                                         │\n"
	if m.title != "" {
		s += fmt.Sprintf("│   Track:  %-42s │\n", truncate(m.title, 42))
		s += fmt.Sprintf("│   Artist: %-42s │\n", truncate(m.artist, 42))
	} else {
		s += "│   (No metadata)                                      │\n"
	}

	s += "│                                                      │\n"
	s += fmt.Sprintf("│ Format: %-44s │\n",
		fmt.Sprintf("Opus %dHz %s", m.sampleRate, channelName(m.channels)))
	s += fmt.Sprintf("│ Vendor: %-44s │\n", truncate(m.vendor, 44))

	return s
}

// renderControls renders volume and buffer status
func (m Model) renderControls() string {
	muteIcon := ""
	if m.muted {
		muteIcon = " (muted)"
	}

	volume := fmt.Sprintf("[%s] %d%%%s", renderBar(m.volume, 100, 10), m.volume, muteIcon)
	buffer := fmt.Sprintf("%dms", m.buffered.Milliseconds())

	return fmt.Sprintf("│                                                      │\n"+
		"│ Volume: %-44s │\n"+
		"│ Buffer: %-44s │\n",
		volume, buffer)
}

// renderStats renders playback statistics
func (m Model) renderStats() string {
	stats := fmt.Sprintf("Pages: %d  Packets: %d", m.pages, m.packets)
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ %-52s │
│                                                      │
`, stats)
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ ↑/↓:Volume  m:Mute  d:Debug  q:Quit                  │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	lastErr := m.lastErr
	if lastErr == "" {
		lastErr = "none"
	}
	return fmt.Sprintf(`│ DEBUG:                                               │
│   URL:   %-43s │
│   Error: %-43s │
`, truncate(m.url, 43), truncate(lastErr, 43))
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.volumeCtrl != nil {
			select {
			case m.volumeCtrl.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "up":
		m.volume = min(100, m.volume+5)
		m.sendVolume()
	case "down":
		m.volume = max(0, m.volume-5)
		m.sendVolume()
	case "m":
		m.muted = !m.muted
		m.sendVolume()
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func (m Model) sendVolume() {
	if m.volumeCtrl == nil {
		return
	}
	select {
	case m.volumeCtrl.Changes <- VolumeChangeMsg{Volume: m.volume, Muted: m.muted}:
	default:
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Connected != nil {
		m.connected = *msg.Connected
	}
	if msg.StationName != "" {
		m.stationName = msg.StationName
	}
	if msg.URL != "" {
		m.url = msg.URL
	}
	if msg.SampleRate != 0 {
		m.sampleRate = msg.SampleRate
		m.channels = msg.Channels
	}
	if msg.Vendor != "" {
		m.vendor = msg.Vendor
	}
	if msg.Title != "" {
		m.title = msg.Title
		m.artist = msg.Artist
	}
	if msg.Volume != 0 {
		m.volume = msg.Volume
	}
	if msg.Packets != 0 {
		m.pages = msg.Pages
		m.packets = msg.Packets
		m.buffered = msg.Buffered
	}
	if msg.Err != "" {
		m.lastErr = msg.Err
	}
}

// StatusMsg updates TUI state. Zero fields leave the display unchanged.
type StatusMsg struct {
	Connected   *bool
	StationName string
	URL         string
	SampleRate  int
	Channels    int
	Vendor      string
	Title       string
	Artist      string
	Volume      int
	Pages       int64
	Packets     int64
	Buffered    time.Duration
	Err         string
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func channelName(channels int) string {
	if channels == 1 {
		return "Mono"
	}
	return "Stereo"
}
