// ABOUTME: Bubbletea model for the engine TUI
// ABOUTME: Renders published snapshots and maps keys to control operations
package ui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hushtone/hushtone-go/internal/engine"
	"github.com/hushtone/hushtone-go/internal/params"
)

// tickInterval drives snapshot refreshes.
const tickInterval = 200 * time.Millisecond

type tickMsg time.Time

// Model is the TUI state. All mutation goes through the controller's
// control operations; the view renders only published snapshots.
type Model struct {
	controller *engine.Controller
	snap       engine.Snapshot

	width  int
	height int
}

// NewModel creates a model bound to the controller.
func NewModel(controller *engine.Controller) Model {
	return Model{
		controller: controller,
		snap:       controller.Snapshot(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the refresh loop.
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.snap = m.controller.Snapshot()
		return m, tick()
	}
	return m, nil
}

// handleKey maps keyboard input to control operations.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "s":
		if m.snap.State == "idle" {
			m.controller.Start()
		} else {
			m.controller.Stop()
		}

	case "t":
		if m.snap.IsTonePlaying {
			m.controller.StopTone()
		} else {
			m.controller.StartTone()
		}

	case "n":
		if m.snap.IsNoisePlaying {
			m.controller.StopNoise()
		} else {
			m.controller.StartNoise()
		}

	case "c":
		m.controller.SetNoiseColor(nextColor(m.snap.NoiseColor))

	case "w":
		m.controller.SetWaveform(nextWaveform(m.snap.Left.Waveform))

	case "e":
		m.controller.SetEarSelection(nextEar(m.snap.EarSelection))

	case "up":
		m.controller.SetMasterVolume(m.snap.MasterVolume + 0.05)
	case "down":
		m.controller.SetMasterVolume(m.snap.MasterVolume - 0.05)

	case "left":
		m.controller.SetMatchedFrequency(params.EarBoth, m.snap.Left.FrequencyHz/1.02930) // down 1/24 octave
	case "right":
		m.controller.SetMatchedFrequency(params.EarBoth, m.snap.Left.FrequencyHz*1.02930) // up 1/24 octave

	case " ":
		if m.snap.MusicLoaded {
			if m.snap.IsMusicPlaying {
				m.controller.PauseMusic()
			} else {
				m.controller.PlayMusic()
			}
		}
	}

	m.snap = m.controller.Snapshot()
	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderTone()
	s += m.renderNoiseAndNotch()
	s += m.renderMusic()
	s += m.renderHelp()
	return s
}

func (m Model) renderHeader() string {
	state := m.snap.State
	if m.snap.IsInterrupted {
		state = "interrupted (muted)"
	}

	volumeBar := renderBar(int(m.snap.MasterVolume*100), 100, 10)

	return fmt.Sprintf(`┌─ Hushtone ───────────────────────────────────────────┐
│ Session: %-44s│
│ Master:  [%s] %3d%%%-29s│
├──────────────────────────────────────────────────────┤
`, state, volumeBar, int(m.snap.MasterVolume*100), "")
}

func (m Model) renderTone() string {
	toneState := "off"
	if m.snap.IsTonePlaying {
		toneState = "playing"
	}

	return fmt.Sprintf("│ Tone: %-8s %-8s ears:%-5s%-17s│\n"+
		"│   L: %8.1f Hz  amp %.2f%-25s│\n"+
		"│   R: %8.1f Hz  amp %.2f%-25s│\n",
		toneState, m.snap.Left.Waveform, m.snap.EarSelection, "",
		m.snap.Left.FrequencyHz, m.snap.Left.Amplitude, "",
		m.snap.Right.FrequencyHz, m.snap.Right.Amplitude, "")
}

func (m Model) renderNoiseAndNotch() string {
	noiseState := "off"
	if m.snap.IsNoisePlaying {
		noiseState = "playing"
	}

	return fmt.Sprintf("│ Noise: %-8s color:%-6s vol %.2f%-15s│\n"+
		"│ Notch: %8.1f Hz  width %.1f oct  depth %.2f%-8s│\n",
		noiseState, m.snap.NoiseColor, m.snap.NoiseVolume, "",
		m.snap.NotchCenterHz, m.snap.NotchWidthOctaves, m.snap.NotchDepth, "")
}

func (m Model) renderMusic() string {
	if !m.snap.MusicLoaded {
		return "│ Music: none loaded                                   │\n"
	}

	state := "paused"
	if m.snap.IsMusicPlaying {
		state = "playing"
	}

	pos := m.snap.Position.Round(time.Second)
	dur := m.snap.Duration.Round(time.Second)

	return fmt.Sprintf("│ Music: %-8s %s / %s%-24s│\n",
		state, pos, dur, "")
}

func (m Model) renderHelp() string {
	return `├──────────────────────────────────────────────────────┤
│ s:Session t:Tone n:Noise c:Color w:Wave e:Ears      │
│ ←/→:Frequency ↑/↓:Volume space:Music q:Quit         │
└──────────────────────────────────────────────────────┘
`
}

func nextColor(current string) params.NoiseColor {
	switch current {
	case "white":
		return params.Pink
	case "pink":
		return params.Brown
	default:
		return params.White
	}
}

func nextWaveform(current string) params.Waveform {
	switch current {
	case "sine":
		return params.Square
	case "square":
		return params.Triangle
	case "triangle":
		return params.Sawtooth
	default:
		return params.Sine
	}
}

func nextEar(current string) params.Ear {
	switch current {
	case "both":
		return params.EarLeft
	case "left":
		return params.EarRight
	default:
		return params.EarBoth
	}
}

func renderBar(value, max, width int) string {
	if value < 0 {
		value = 0
	}
	if value > max {
		value = max
	}
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}
