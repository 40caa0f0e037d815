// Package live is the optional terminal dashboard shown while a test
// runs. It consumes the runner's snapshot channel and quits on its own
// when the run completes.
package live

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"loadpulse/internal/runner"
	"loadpulse/internal/styles"
)

// SnapshotMsg carries a fresh LiveSnapshot into the model.
type SnapshotMsg runner.LiveSnapshot

// DoneMsg tells the model the run has finished.
type DoneMsg struct{}

type Model struct {
	Progress progress.Model
	Stats    runner.LiveSnapshot

	cancel context.CancelFunc
	width  int
}

// NewModel builds the dashboard; cancel aborts the run when the user
// quits early.
func NewModel(cancel context.CancelFunc) Model {
	return Model{
		Progress: progress.New(progress.WithDefaultGradient()),
		cancel:   cancel,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancel()
			return m, tea.Quit
		}

	case SnapshotMsg:
		m.Stats = runner.LiveSnapshot(msg)
		pct := 0.0
		if m.Stats.Total > 0 {
			pct = float64(m.Stats.Elapsed) / float64(m.Stats.Total)
		}
		if pct > 1.0 {
			pct = 1.0
		}
		return m, m.Progress.SetPercent(pct)

	case DoneMsg:
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.Progress.Width = msg.Width - 8
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}

	errStyle := styles.Active
	if m.Stats.ErrorRate > 0.05 {
		errStyle = styles.Error
	} else if m.Stats.ErrorRate > 0.01 {
		errStyle = styles.Warn
	}

	col1 := fmt.Sprintf("REQ: %d\nVUs: %d", m.Stats.Requests, m.Stats.ActiveVUs)
	col2 := fmt.Sprintf("ERR: %.2f%%\nFAIL: %d", m.Stats.ErrorRate*100, m.Stats.Failed)
	col3 := fmt.Sprintf("AVG: %.1f ms\nP95: %.1f ms", m.Stats.AvgMs, m.Stats.P95Ms)

	grid := lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(errStyle.Render(col2)),
		styles.Box.Render(col3),
	)
	s.WriteString(grid)
	s.WriteString("\n\n ")
	s.WriteString(m.Progress.View())
	s.WriteString("\n\n ")
	s.WriteString(styles.Subtle.Render(fmt.Sprintf("%s / %s  ·  press q to abort",
		m.Stats.Elapsed.Round(time.Second), m.Stats.Total)))
	s.WriteString("\n")

	return s.String()
}
