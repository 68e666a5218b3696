package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/logsift/internal/analyzer"
	"github.com/tinytelemetry/logsift/internal/model"
)

const progressBuffer = 64

type progressMsg analyzer.Progress

type progressDoneMsg struct{}

type progressModel struct {
	bar     progress.Model
	total   int
	done    int
	failed  int
	current string
}

var (
	progressDim  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	progressWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
)

func newProgressModel(total int) progressModel {
	return progressModel{
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		total: total,
	}
}

func (m progressModel) Init() tea.Cmd { return nil }

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.done = msg.Completed
		m.current = filepath.Base(msg.Path)
		if msg.State == model.FileFailed {
			m.failed++
		}
		return m, nil
	case progressDoneMsg:
		return m, tea.Quit
	case tea.WindowSizeMsg:
		if w := msg.Width - 30; w > 10 && w < 60 {
			m.bar.Width = w
		}
		return m, nil
	}
	return m, nil
}

func (m progressModel) View() string {
	pct := 0.0
	if m.total > 0 {
		pct = float64(m.done) / float64(m.total)
	}
	line := fmt.Sprintf("%s %d/%d files", m.bar.ViewAs(pct), m.done, m.total)
	if m.failed > 0 {
		line += progressWarn.Render(fmt.Sprintf(" (%d failed)", m.failed))
	}
	if m.current != "" {
		line += " " + progressDim.Render(m.current)
	}
	return line + "\n"
}

// progressUI runs a bubbletea program fed from a buffered channel so that
// the analyzer callback never waits on rendering.
type progressUI struct {
	updates chan analyzer.Progress
	program *tea.Program
	done    chan struct{}
}

func startProgressUI(out io.Writer, total int) *progressUI {
	ui := &progressUI{
		updates: make(chan analyzer.Progress, progressBuffer),
		done:    make(chan struct{}),
	}
	ui.program = tea.NewProgram(newProgressModel(total),
		tea.WithOutput(out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)

	go func() {
		defer close(ui.done)
		_, _ = ui.program.Run()
	}()
	go func() {
		for p := range ui.updates {
			ui.program.Send(progressMsg(p))
		}
		ui.program.Send(progressDoneMsg{})
	}()
	return ui
}

// Callback drops updates when the buffer is full; the next update carries
// the newer completed count anyway.
func (ui *progressUI) Callback(p analyzer.Progress) {
	select {
	case ui.updates <- p:
	default:
	}
}

// Stop flushes pending updates and waits for the program to exit.
func (ui *progressUI) Stop() {
	close(ui.updates)
	<-ui.done
}
