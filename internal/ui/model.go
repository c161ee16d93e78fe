// ABOUTME: Bubbletea model for the speaker status view
// ABOUTME: Shows the current session's scheduler state, stats and last error
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zenkiosk/kiosk-speaker/pkg/playback"
)

// Model represents the TUI state
type Model struct {
	// Session
	sessionID string
	text      string
	state     playback.State
	started   time.Time

	// Stream
	codec      string
	sampleRate int
	channels   int
	bitDepth   int

	// Stats
	received  int64
	played    int64
	dropped   int64
	underruns int64
	decoded   int64
	failed    int64
	queued    int

	lastErr string

	showDebug bool

	controls *Controls

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
	b.WriteString(m.renderSession())
	b.WriteString(m.renderStats())
	if m.showDebug {
		b.WriteString(m.renderDebug())
	}
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderHeader() string {
	return fmt.Sprintf(`┌─ Kiosk Speaker ──────────────────────────────────────┐
│ State:  %s %-43s │
├──────────────────────────────────────────────────────┤
`, stateIcon(m.state), m.state)
}

func (m Model) renderSession() string {
	if m.sessionID == "" {
		return "│ No session                                           │\n"
	}

	s := fmt.Sprintf("│ Session: %-43s │\n", truncate(m.sessionID, 43))
	if m.text != "" {
		s += fmt.Sprintf("│   Text:  %-43s │\n", truncate(m.text, 43))
	}
	if m.codec != "" {
		format := fmt.Sprintf("%s %dHz %s %d-bit", m.codec, m.sampleRate, channelName(m.channels), m.bitDepth)
		s += fmt.Sprintf("│ Format:  %-43s │\n", truncate(format, 43))
	}
	if m.lastErr != "" {
		s += fmt.Sprintf("│ Error:   %-43s │\n", truncate(m.lastErr, 43))
	}
	return s
}

func (m Model) renderStats() string {
	line := fmt.Sprintf("RX: %d  Played: %d  Dropped: %d  Underruns: %d",
		m.received, m.played, m.dropped, m.underruns)
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ %-52s │
│ Queue: [%s] %-31d │
`, truncate(line, 52), renderBar(m.queued, playback.DefaultWarmupThreshold*2, 10), m.queued)
}

func (m Model) renderHelp() string {
	return `│ c:Cancel  d:Debug  q:Quit                            │
└──────────────────────────────────────────────────────┘
`
}

func (m Model) renderDebug() string {
	elapsed := "-"
	if !m.started.IsZero() {
		elapsed = time.Since(m.started).Truncate(time.Millisecond).String()
	}
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Decoded: %-6d Failed: %-6d Elapsed: %-14s │
`, m.decoded, m.failed, elapsed)
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.controls.quit()
		return m, tea.Quit
	case "c":
		m.controls.cancel()
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.SessionID != "" && msg.SessionID != m.sessionID {
		// a new utterance resets everything tied to the previous one
		m.sessionID = msg.SessionID
		m.text = ""
		m.lastErr = ""
		m.started = time.Time{}
	}
	if msg.Text != "" {
		m.text = msg.Text
	}
	if msg.State != nil {
		m.state = *msg.State
	}
	if msg.Codec != "" {
		m.codec = msg.Codec
		m.sampleRate = msg.SampleRate
		m.channels = msg.Channels
		m.bitDepth = msg.BitDepth
	}
	if msg.Stats != nil {
		st := msg.Stats
		m.received = st.Received
		m.played = st.Played
		m.dropped = st.Dropped
		m.underruns = st.Underruns
		m.decoded = st.Decoded
		m.failed = st.Failed
		m.started = st.Started
		m.queued = st.Queued
	}
	if msg.Err != nil {
		m.lastErr = msg.Err.Error()
	}
}

// StatusMsg updates TUI state. Nil pointers leave the field unchanged.
type StatusMsg struct {
	SessionID  string
	Text       string
	State      *playback.State
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
	Stats      *playback.Status
	Err        error
}

func stateIcon(s playback.State) string {
	switch s {
	case playback.Playing:
		return "▶"
	case playback.Warming:
		return "…"
	case playback.Draining:
		return "⚠"
	case playback.Finished:
		return "✓"
	default:
		return "■"
	}
}

func renderBar(value, max, width int) string {
	if value > max {
		value = max
	}
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
