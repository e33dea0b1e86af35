package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"synesthetica/adapter"
	"synesthetica/config"
	"synesthetica/pipeline"
	"synesthetica/scene"
)

const frameFPS = 30

var (
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#c60"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#333"))
)

type frameMsg time.Time

func nextFrame() tea.Cmd {
	return tea.Tick(time.Second/frameFPS, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

type model struct {
	pipe   *pipeline.Pipeline
	clock  adapter.Clock
	ctl    *horizonControl
	cfg    *config.Config
	frame  scene.Frame
	width  int
	height int
	tempo  float64
	paused bool
}

func newModel(pipe *pipeline.Pipeline, clock adapter.Clock, ctl *horizonControl, cfg *config.Config) model {
	return model{
		pipe:   pipe,
		clock:  clock,
		ctl:    ctl,
		cfg:    cfg,
		tempo:  cfg.Tempo,
		width:  80,
		height: 24,
	}
}

func (m model) Init() tea.Cmd {
	return nextFrame()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case frameMsg:
		if !m.paused {
			m.frame = m.pipe.RequestFrame(m.clock())
		}
		return m, nextFrame()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "[":
			m.ctl.set(m.ctl.value - 0.05)
		case "]":
			m.ctl.set(m.ctl.value + 0.05)

		case "+", "=":
			m.tempo += 5
			m.pipe.SetPrescribedTempo(m.tempo)
		case "-", "_":
			if m.tempo >= 5 {
				m.tempo -= 5
			}
			m.pipe.SetPrescribedTempo(m.tempo)

		case "r":
			m.pipe.Reset()

		case " ":
			m.paused = !m.paused
		}
	}
	return m, nil
}

// cell is one rendered character of the scene grid.
type cell struct {
	r     rune
	color string
	alpha float64
}

func (m model) View() string {
	gridW := m.width
	gridH := m.height - 2 // status lines
	if gridW < 8 || gridH < 4 {
		return "window too small"
	}

	grid := make([]cell, gridW*gridH)
	for _, e := range m.frame.Entities {
		if e.Position == nil {
			continue
		}
		x := int(e.Position.X / m.cfg.CanvasWidth * float64(gridW))
		y := int(e.Position.Y / m.cfg.CanvasHeight * float64(gridH))
		if x < 0 || x >= gridW || y < 0 || y >= gridH {
			continue
		}
		c := &grid[y*gridW+x]
		if e.Style.Color.A < c.alpha {
			continue // keep the most opaque entity per cell
		}
		*c = cell{
			r:     runeFor(e),
			color: dimmed(e.Style.Color),
			alpha: e.Style.Color.A,
		}
	}

	var b strings.Builder
	for y := 0; y < gridH; y++ {
		for x := 0; x < gridW; x++ {
			c := grid[y*gridW+x]
			if c.r == 0 {
				b.WriteByte(' ')
				continue
			}
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(c.color)).Render(string(c.r)))
		}
		b.WriteByte('\n')
	}

	b.WriteString(borderStyle.Render(strings.Repeat("─", gridW)))
	b.WriteByte('\n')

	status := fmt.Sprintf(" t=%5.1fs  entities=%-4d horizon=%.2f  tempo=%s",
		float64(m.frame.Time)/1000, len(m.frame.Entities), m.ctl.value, tempoLabel(m.tempo))
	if part, ok := m.pipe.Activity().MostActive(m.frame.Time, 3000); ok {
		status += "  active=" + part
	}
	if m.paused {
		status += "  [paused]"
	}
	b.WriteString(statusStyle.Render(status))

	for _, d := range m.frame.Diagnostics {
		b.WriteByte('\n')
		b.WriteString(warnStyle.Render(" ! " + d.Message))
	}
	return b.String()
}

func runeFor(e scene.Entity) rune {
	switch e.Kind {
	case scene.KindTrail:
		return '━'
	case scene.KindField:
		if e.Data != nil && e.Data["role"] == "bar" {
			return '┃'
		}
		return '│'
	case scene.KindGlyph:
		if e.Data != nil && e.Data["role"] == "drift-dir" {
			return '‹'
		}
		return '·'
	default:
		if e.Style.Color.A > 0.6 {
			return '●'
		}
		return '○'
	}
}

// dimmed folds alpha into value, since the terminal has no real alpha.
func dimmed(c scene.HSVA) string {
	c.V *= 0.35 + 0.65*c.A
	return c.Hex()
}

func tempoLabel(bpm float64) string {
	if bpm <= 0 {
		return "auto"
	}
	return fmt.Sprintf("%.0f", bpm)
}
