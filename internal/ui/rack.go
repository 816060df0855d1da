package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/rackhost/internal/events"
	"github.com/mattjoyce/rackhost/internal/input"
	"github.com/mattjoyce/rackhost/internal/param"
)

// Knob cell geometry in terminal cells. The grid starts below the header.
const (
	cellWidth  = 20
	cellHeight = 4
	gridTop    = 2
	barWidth   = 14
)

// Session receives user edits and save requests.
type Session interface {
	MarkDirty()
	SaveLast() error
}

// Options configures the rack view.
type Options struct {
	Bank    *param.Bank
	Keys    input.KeyMap
	Theme   Theme
	Session Session
	Hub     *events.Hub
	Title   string
	// KnobSpeed scales drag sensitivity; RowsPerRange is how many rows of
	// vertical drag sweep a knob's whole range at speed 1.
	KnobSpeed    float64
	RowsPerRange float64
}

type knobView struct {
	knob *param.Knob
	p    *param.Param
}

type eventMsg events.Event

// Rack is the main bubbletea model: a grid of knobs bound to parameter slots.
type Rack struct {
	opts   Options
	knobs  []knobView
	events <-chan events.Event
	help   help.Model

	width    int
	height   int
	selected int
	active   int
	status   string
	failed   bool
}

// NewRack builds one knob per parameter. evs may be nil.
func NewRack(opts Options, evs <-chan events.Event) *Rack {
	if opts.RowsPerRange <= 0 {
		opts.RowsPerRange = 20
	}
	if opts.KnobSpeed <= 0 {
		opts.KnobSpeed = param.DefaultSpeed
	}
	if opts.Title == "" {
		opts.Title = "RACK"
	}

	r := &Rack{opts: opts, events: evs, help: help.New(), active: -1}
	if opts.Hub != nil {
		if ev, ok := opts.Hub.Last(); ok {
			r.status = describe(ev)
		}
	}
	for _, p := range opts.Bank.All() {
		k := param.KnobFor(p)
		k.Speed = (p.Max - p.Min) / opts.RowsPerRange * opts.KnobSpeed
		r.knobs = append(r.knobs, knobView{knob: k, p: p})
	}
	return r
}

func waitForEvent(ch <-chan events.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

func (r *Rack) Init() tea.Cmd {
	return waitForEvent(r.events)
}

func (r *Rack) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		r.width = msg.Width
		r.height = msg.Height
		r.help.Width = msg.Width

	case tea.KeyMsg:
		return r, r.handleKey(msg)

	case tea.MouseMsg:
		r.handleMouse(tea.MouseEvent(msg))

	case eventMsg:
		r.status = describe(events.Event(msg))
		r.failed = false
		return r, waitForEvent(r.events)
	}
	return r, nil
}

func (r *Rack) handleKey(msg tea.KeyMsg) tea.Cmd {
	keys := r.opts.Keys
	switch {
	case key.Matches(msg, keys.Quit):
		if r.active >= 0 {
			r.knobs[r.active].knob.DragEnd()
			r.active = -1
		}
		return tea.Quit
	case key.Matches(msg, keys.Save):
		r.save()
	case key.Matches(msg, keys.Next):
		if len(r.knobs) > 0 {
			r.selected = (r.selected + 1) % len(r.knobs)
		}
	case key.Matches(msg, keys.Prev):
		if len(r.knobs) > 0 {
			r.selected = (r.selected - 1 + len(r.knobs)) % len(r.knobs)
		}
	case key.Matches(msg, keys.Increase):
		r.nudge(1)
	case key.Matches(msg, keys.Decrease):
		r.nudge(-1)
	case key.Matches(msg, keys.Help):
		r.help.ShowAll = !r.help.ShowAll
	}
	return nil
}

func (r *Rack) save() {
	if r.opts.Session == nil {
		return
	}
	if err := r.opts.Session.SaveLast(); err != nil {
		r.status = "save failed: " + err.Error()
		r.failed = true
		return
	}
	r.status = "patch saved"
	r.failed = false
}

// nudge moves the selected knob by one row's worth of drag.
func (r *Rack) nudge(dir float64) {
	if len(r.knobs) == 0 {
		return
	}
	kv := r.knobs[r.selected]
	v := kv.p.Clamp(kv.p.Slot.Read() + dir*kv.knob.Speed)
	kv.p.Slot.Propose(v)
	r.edited(kv, v)
}

func toButton(b tea.MouseButton) (param.Button, bool) {
	switch b {
	case tea.MouseButtonLeft:
		return param.ButtonPrimary, true
	case tea.MouseButtonRight:
		return param.ButtonSecondary, true
	case tea.MouseButtonMiddle:
		return param.ButtonMiddle, true
	default:
		return 0, false
	}
}

func (r *Rack) handleMouse(ev tea.MouseEvent) {
	pos := param.Point{X: float64(ev.X), Y: float64(ev.Y)}

	switch ev.Action {
	case tea.MouseActionPress:
		// A press during a drag means the release was lost, usually outside
		// the window. End the stale drag and treat this as a fresh press.
		if r.active >= 0 {
			r.knobs[r.active].knob.DragEnd()
			r.active = -1
		}
		b, ok := toButton(ev.Button)
		if !ok {
			return
		}
		idx, hit := r.hit(ev.X, ev.Y)
		if !hit {
			return
		}
		r.selected = idx
		if r.knobs[idx].knob.Press(b, pos) {
			r.active = idx
		}

	case tea.MouseActionMotion:
		if r.active < 0 {
			return
		}
		// Ctrl or Alt held during the drag is the precision modifier.
		r.knobs[r.active].knob.Move(pos, ev.Ctrl || ev.Alt)
		if r.opts.Session != nil {
			r.opts.Session.MarkDirty()
		}

	case tea.MouseActionRelease:
		if r.active < 0 {
			return
		}
		kv := r.knobs[r.active]
		kv.knob.Release()
		r.active = -1
		r.edited(kv, kv.knob.Value())
	}
}

func (r *Rack) edited(kv knobView, v float64) {
	if r.opts.Session != nil {
		r.opts.Session.MarkDirty()
	}
	if r.opts.Hub != nil {
		r.opts.Hub.Publish(events.ParamProposed, map[string]any{"param": kv.p.ID, "value": v, "source": "ui"})
	}
}

func (r *Rack) columns() int {
	if r.width < cellWidth {
		return 1
	}
	return r.width / cellWidth
}

// hit maps a cell position to the knob drawn there.
func (r *Rack) hit(x, y int) (int, bool) {
	if x < 0 || y < gridTop {
		return 0, false
	}
	cols := r.columns()
	col := x / cellWidth
	if col >= cols {
		return 0, false
	}
	idx := ((y-gridTop)/cellHeight)*cols + col
	if idx >= len(r.knobs) {
		return 0, false
	}
	return idx, true
}

func (r *Rack) View() string {
	t := r.opts.Theme

	status := t.Status.Render(r.status)
	if r.failed {
		status = t.Error.Render(r.status)
	}
	header := t.Title.Render(r.opts.Title) + "  " + status

	var rows []string
	cols := r.columns()
	for start := 0; start < len(r.knobs); start += cols {
		end := min(start+cols, len(r.knobs))
		cells := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			cells = append(cells, r.renderKnob(i))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	grid := lipgloss.JoinVertical(lipgloss.Left, rows...)
	if len(r.knobs) == 0 {
		grid = t.Dim.Render("no parameters")
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, "", grid, r.help.View(r.opts.Keys))
}

func (r *Rack) renderKnob(i int) string {
	t := r.opts.Theme
	kv := r.knobs[i]
	v := kv.p.Slot.Read()

	label := t.Label
	switch {
	case i == r.active:
		label = t.Dragging
	case i == r.selected:
		label = t.Focused
	}

	frac := 0.0
	if kv.p.Max > kv.p.Min {
		frac = (v - kv.p.Min) / (kv.p.Max - kv.p.Min)
	}
	filled := int(math.Round(frac * barWidth))
	bar := t.BarFill.Render(strings.Repeat("█", filled)) + t.BarEmpty.Render(strings.Repeat("░", barWidth-filled))

	name := kv.p.Name
	if name == "" {
		name = kv.p.ID
	}
	lines := []string{
		label.Render(truncate(name, cellWidth-2)),
		bar,
		t.Dim.Render(fmt.Sprintf("%.3f", v)),
	}
	return lipgloss.NewStyle().Width(cellWidth).Height(cellHeight).Render(strings.Join(lines, "\n"))
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n-1]) + "…"
}

func describe(ev events.Event) string {
	return fmt.Sprintf("%s %s", ev.At.Local().Format("15:04:05"), ev.Type)
}
