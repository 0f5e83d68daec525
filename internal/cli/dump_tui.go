package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"zipstream/internal/domain"
	"zipstream/pkg/config"
	"zipstream/pkg/logger"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// dumpProgressMsg carries the running byte total.
type dumpProgressMsg int64

// dumpDoneMsg ends the program.
type dumpDoneMsg struct {
	transfer *domain.Transfer
	err      error
}

type dumpModel struct {
	spinner    spinner.Model
	source     string
	target     string
	bytes      int64
	start      time.Time
	cancel     context.CancelFunc
	cancelling bool
	done       bool
	transfer   *domain.Transfer
	err        error
}

func newDumpModel(source, target string, cancel context.CancelFunc) *dumpModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &dumpModel{
		spinner: s,
		source:  source,
		target:  target,
		start:   time.Now(),
		cancel:  cancel,
	}
}

func (m *dumpModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *dumpModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			// keep running until the pipeline reports back so the tool is reaped
			m.cancelling = true
			m.cancel()
		}
		return m, nil
	case dumpProgressMsg:
		m.bytes = int64(msg)
		return m, nil
	case dumpDoneMsg:
		m.done = true
		m.transfer = msg.transfer
		m.err = msg.err
		if m.transfer != nil {
			m.bytes = m.transfer.Bytes
		}
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *dumpModel) View() string {
	var b strings.Builder

	if m.done {
		switch {
		case m.err == nil:
			b.WriteString(successStyle.Render("✓ "))
			fmt.Fprintf(&b, "Wrote %s ", m.target)
			b.WriteString(infoStyle.Render(fmt.Sprintf("(%s, %s)", formatBytes(m.bytes), time.Since(m.start).Round(time.Millisecond))))
		case errors.Is(m.err, context.Canceled):
			b.WriteString(errorStyle.Render("Cancelled"))
			fmt.Fprintf(&b, " after %s", formatBytes(m.bytes))
		default:
			b.WriteString(errorStyle.Render("Failed: " + m.err.Error()))
		}
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(titleStyle.Render("zipstream dump"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s Archiving %s → %s  %s",
		m.spinner.View(), m.source, m.target, formatBytes(m.bytes))
	b.WriteString(infoStyle.Render(fmt.Sprintf("  %s", time.Since(m.start).Round(time.Second))))
	b.WriteString("\n\n")
	if m.cancelling {
		b.WriteString(infoStyle.Render("Stopping archive process..."))
	} else {
		b.WriteString(infoStyle.Render("Press q to cancel"))
	}
	b.WriteString("\n")
	return b.String()
}

func runDumpTUI(ctx context.Context, c *config.Config, dir, out string) error {
	// log lines would tear through the rendered frame
	if dest := strings.ToLower(c.Logging.Output); dest == "" || dest == "stdout" || dest == "stderr" {
		closer, err := logger.Configure(c.Logging.Level, c.Logging.Format, os.DevNull)
		if err != nil {
			return err
		}
		defer closer.Close()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prog := tea.NewProgram(newDumpModel(dir, out, cancel))

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		transfer, err := dumpDirectory(ctx, c.Archive, dir, out, func(total int64) {
			prog.Send(dumpProgressMsg(total))
		})
		prog.Send(dumpDoneMsg{transfer: transfer, err: err})
	}()

	final, err := prog.Run()
	cancel()
	<-finished
	if err != nil {
		return fmt.Errorf("progress display failed: %w", err)
	}

	if m, ok := final.(*dumpModel); ok && m.done {
		return m.err
	}
	return context.Canceled
}
