package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Elapsed time is shown once a turn has taken this long.
const showElapsedAfter = 3 * time.Second

type turnDoneMsg struct {
	err error
}

type thinkingModel struct {
	spinner spinner.Model
	label   string
	started time.Time
	now     func() time.Time
	turn    tea.Cmd
	err     error
	done    bool
}

func newThinkingModel(label string, turn tea.Cmd, now func() time.Time) thinkingModel {
	return thinkingModel{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("212"))),
		),
		label:   label,
		started: now(),
		now:     now,
		turn:    turn,
	}
}

func (m thinkingModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.turn)
}

func (m thinkingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case turnDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m thinkingModel) View() string {
	if m.done {
		return ""
	}

	line := m.spinner.View() + " " + m.label
	if elapsed := m.now().Sub(m.started); elapsed >= showElapsedAfter {
		line += fmt.Sprintf(" (%ds)", int(elapsed.Seconds()))
	}
	return line
}

// runWithSpinner shows label on output while work runs. Without a terminal
// the work runs plainly so piped output stays free of escape codes.
func runWithSpinner(ctx context.Context, output io.Writer, label string, work func(context.Context) error) error {
	if !isTerminal(output) {
		return work(ctx)
	}

	program := tea.NewProgram(
		newThinkingModel(label, func() tea.Msg {
			return turnDoneMsg{err: work(ctx)}
		}, time.Now),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	final, err := program.Run()
	if err != nil {
		return fmt.Errorf("run spinner: %w", err)
	}

	result, ok := final.(thinkingModel)
	if !ok {
		return fmt.Errorf("unexpected spinner model %T", final)
	}
	return result.err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
