package input

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/key"

	"github.com/mattjoyce/rackhost/internal/log"
)

// KeyMap is the set of UI key bindings. It satisfies help.KeyMap.
type KeyMap struct {
	Quit     key.Binding
	Save     key.Binding
	Next     key.Binding
	Prev     key.Binding
	Increase key.Binding
	Decrease key.Binding
	Help     key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Save:     key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save patch")),
		Next:     key.NewBinding(key.WithKeys("tab", "right", "l"), key.WithHelp("→/tab", "next knob")),
		Prev:     key.NewBinding(key.WithKeys("shift+tab", "left", "h"), key.WithHelp("←", "prev knob")),
		Increase: key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑", "increase")),
		Decrease: key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓", "decrease")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	}
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Increase, k.Decrease, k.Next, k.Save, k.Quit, k.Help}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Increase, k.Decrease, k.Next, k.Prev},
		{k.Save, k.Help, k.Quit},
	}
}

func (k *KeyMap) byAction() map[string]*key.Binding {
	return map[string]*key.Binding{
		"quit":     &k.Quit,
		"save":     &k.Save,
		"next":     &k.Next,
		"prev":     &k.Prev,
		"increase": &k.Increase,
		"decrease": &k.Decrease,
		"help":     &k.Help,
	}
}

// Apply returns km with the given action overrides applied.
func Apply(km KeyMap, overrides map[string][]string) (KeyMap, error) {
	actions := km.byAction()

	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		b, ok := actions[strings.ToLower(name)]
		if !ok {
			return km, fmt.Errorf("unknown key action %q", name)
		}
		keys := overrides[name]
		if len(keys) == 0 {
			return km, fmt.Errorf("key action %q has no keys", name)
		}
		b.SetKeys(keys...)
		b.SetHelp(strings.Join(keys, "/"), b.Help().Desc)
	}
	return km, nil
}

// Bindings is the "input" subsystem: it resolves the key map at bring-up.
type Bindings struct {
	overrides map[string][]string
	logger    *slog.Logger

	mu   sync.Mutex
	keys KeyMap
}

func New(overrides map[string][]string, logger *slog.Logger) *Bindings {
	if logger == nil {
		logger = log.WithComponent("input")
	}
	return &Bindings{
		overrides: overrides,
		logger:    logger,
		keys:      DefaultKeyMap(),
	}
}

func (b *Bindings) Name() string { return "input" }

func (b *Bindings) Init(context.Context) error {
	km, err := Apply(DefaultKeyMap(), b.overrides)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.keys = km
	b.mu.Unlock()
	b.logger.Debug("key bindings ready", "overrides", len(b.overrides))
	return nil
}

func (b *Bindings) Destroy() error {
	b.mu.Lock()
	b.keys = DefaultKeyMap()
	b.mu.Unlock()
	return nil
}

// Keys returns the active key map; defaults until Init succeeds.
func (b *Bindings) Keys() KeyMap {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.keys
}
