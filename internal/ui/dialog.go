package ui

import (
	"io"
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/rackhost/internal/log"
)

// dialog is a modal yes/no or acknowledge box shown before the rack starts.
type dialog struct {
	theme    Theme
	text     string
	question bool
	yes      bool
	answered bool
}

func newConfirm(theme Theme, question string) *dialog {
	return &dialog{theme: theme, text: question, question: true, yes: true}
}

func newAlert(theme Theme, message string) *dialog {
	return &dialog{theme: theme, text: message}
}

func (d *dialog) Init() tea.Cmd { return nil }

func (d *dialog) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return d, nil
	}
	if !d.question {
		d.answered = true
		return d, tea.Quit
	}

	switch strings.ToLower(km.String()) {
	case "y":
		d.yes, d.answered = true, true
	case "n", "esc", "ctrl+c":
		d.yes, d.answered = false, true
	case "left", "right", "tab", "h", "l":
		d.yes = !d.yes
	case "enter":
		d.answered = true
	}
	if d.answered {
		return d, tea.Quit
	}
	return d, nil
}

func (d *dialog) View() string {
	t := d.theme
	body := []string{d.text, ""}
	if d.question {
		yes, no := t.Button, t.Selected
		if d.yes {
			yes, no = t.Selected, t.Button
		}
		body = append(body, lipgloss.JoinHorizontal(lipgloss.Top, yes.Render("Yes"), " ", no.Render("No")))
	} else {
		body = append(body, t.Dim.Render("press any key"))
	}
	return t.Dialog.Width(60).Render(strings.Join(body, "\n")) + "\n"
}

// Prompter shows modal dialogs on the terminal.
type Prompter struct {
	in     io.Reader
	out    io.Writer
	theme  func() Theme
	logger *slog.Logger
}

// NewPrompter creates a prompter; theme is read when each dialog opens.
func NewPrompter(in io.Reader, out io.Writer, theme func() Theme, logger *slog.Logger) *Prompter {
	if logger == nil {
		logger = log.WithComponent("ui")
	}
	return &Prompter{in: in, out: out, theme: theme, logger: logger}
}

func (p *Prompter) run(d *dialog) *dialog {
	final, err := tea.NewProgram(d, tea.WithInput(p.in), tea.WithOutput(p.out)).Run()
	if err != nil {
		p.logger.Error("dialog failed", "error", err)
		return d
	}
	if fd, ok := final.(*dialog); ok {
		return fd
	}
	return d
}

// Confirm asks a yes/no question. It answers no when the dialog cannot be shown.
func (p *Prompter) Confirm(question string) bool {
	d := p.run(newConfirm(p.theme(), question))
	answer := d.answered && d.yes
	p.logger.Info("dialog answered", "question", question, "yes", answer)
	return answer
}

// Alert shows a message and waits for acknowledgement.
func (p *Prompter) Alert(message string) {
	p.logger.Warn("alert", "message", message)
	p.run(newAlert(p.theme(), message))
}
