package ui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/rackhost/internal/events"
	"github.com/mattjoyce/rackhost/internal/log"
)

// Terminal is the "ui" subsystem. Init probes the terminal and settles the theme.
type Terminal struct {
	logger *slog.Logger

	mu    sync.Mutex
	theme Theme
}

func NewTerminal(logger *slog.Logger) *Terminal {
	if logger == nil {
		logger = log.WithComponent("ui")
	}
	return &Terminal{logger: logger, theme: NewTheme(true)}
}

func (t *Terminal) Name() string { return "ui" }

func (t *Terminal) Init(context.Context) error {
	dark := lipgloss.HasDarkBackground()
	t.mu.Lock()
	t.theme = NewTheme(dark)
	t.mu.Unlock()
	t.logger.Info("terminal ready", "dark_background", dark, "color_profile", int(lipgloss.ColorProfile()))
	return nil
}

func (t *Terminal) Destroy() error { return nil }

// Theme returns the active theme.
func (t *Terminal) Theme() Theme {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.theme
}

// Runner runs the rack view as the UI run loop.
type Runner struct {
	opts   func() Options
	in     io.Reader
	out    io.Writer
	logger *slog.Logger
}

// NewRunner creates a runner. opts is evaluated when Run starts, after the
// parameter bank is complete.
func NewRunner(opts func() Options, in io.Reader, out io.Writer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = log.WithComponent("ui")
	}
	return &Runner{opts: opts, in: in, out: out, logger: logger}
}

// Run blocks until the user quits or ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	opts := r.opts()

	var evs <-chan events.Event
	if opts.Hub != nil {
		ch, cancel := opts.Hub.Subscribe()
		defer cancel()
		evs = ch
	}

	p := tea.NewProgram(NewRack(opts, evs),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
		tea.WithInput(r.in),
		tea.WithOutput(r.out),
	)
	r.logger.Info("ui run loop started")
	_, err := p.Run()
	if err != nil && ctx.Err() != nil && errors.Is(err, tea.ErrProgramKilled) {
		err = nil
	}
	r.logger.Info("ui run loop ended", "error", err)
	return err
}
