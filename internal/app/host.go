package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mattjoyce/rackhost/internal/asset"
	"github.com/mattjoyce/rackhost/internal/bridge"
	"github.com/mattjoyce/rackhost/internal/config"
	"github.com/mattjoyce/rackhost/internal/engine"
	"github.com/mattjoyce/rackhost/internal/events"
	"github.com/mattjoyce/rackhost/internal/input"
	"github.com/mattjoyce/rackhost/internal/log"
	"github.com/mattjoyce/rackhost/internal/midi"
	"github.com/mattjoyce/rackhost/internal/param"
	"github.com/mattjoyce/rackhost/internal/patch"
	"github.com/mattjoyce/rackhost/internal/plugin"
	"github.com/mattjoyce/rackhost/internal/random"
	"github.com/mattjoyce/rackhost/internal/session"
	"github.com/mattjoyce/rackhost/internal/settings"
	"github.com/mattjoyce/rackhost/internal/storage"
	"github.com/mattjoyce/rackhost/internal/subsystem"
	"github.com/mattjoyce/rackhost/internal/ui"
)

// Options configures a Host.
type Options struct {
	AppName string
	Version string
	DevMode bool
	Dirs    asset.Dirs
	Config  *config.Config
	In      io.Reader
	Out     io.Writer

	// Optional replacements for the terminal run loop, dialogs, entropy, and
	// block processor.
	UI        UI
	Prompter  session.Prompter
	Entropy   io.Reader
	Processor engine.Processor
}

// Host owns every long-lived component of one run.
type Host struct {
	opts     Options
	bank     *param.Bank
	hub      *events.Hub
	metrics  *prometheus.Registry
	engine   *engine.Engine
	router   *midi.Router
	bindings *input.Bindings
	terminal *ui.Terminal
	loader   *plugin.Loader
	bridge   *bridge.Server
	registry *subsystem.Registry
	ui       UI
	prompter session.Prompter

	session atomic.Pointer[session.Manager]
}

// New wires the host without starting anything.
func New(opts Options) (*Host, error) {
	if opts.Config == nil {
		opts.Config = config.Defaults()
	}
	if opts.AppName == "" {
		opts.AppName = "Rack"
	}
	if opts.Entropy == nil {
		opts.Entropy = rand.Reader
	}
	cfg := opts.Config

	h := &Host{
		opts:    opts,
		bank:    param.NewBank(),
		hub:     events.NewHub(256),
		metrics: prometheus.NewRegistry(),
	}
	h.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	eng, err := engine.New(engine.Config{
		SampleRate: cfg.Engine.SampleRate,
		BlockSize:  cfg.Engine.BlockSize,
		InboxSize:  cfg.Engine.InboxSize,
	}, h.bank, opts.Processor, engine.NewMetrics(h.metrics), log.WithComponent("engine"))
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	h.engine = eng

	h.router = midi.NewRouter(h.bank, log.WithComponent("midi"))
	h.router.Attach(h.engine)
	h.router.OnMapped(func(m midi.Mapped) { h.hub.Publish(events.MIDIMapped, m) })

	h.bindings = input.New(cfg.Input.Keys, log.WithComponent("input"))
	h.terminal = ui.NewTerminal(log.WithComponent("ui"))

	h.loader = plugin.NewLoader(pluginRoots(opts.Dirs, cfg.Plugins.Dirs), h.bank, log.WithComponent("plugin"))

	h.ui = opts.UI
	if h.ui == nil {
		h.ui = ui.NewRunner(h.uiOptions, opts.In, opts.Out, log.WithComponent("ui"))
	}
	h.prompter = opts.Prompter
	if h.prompter == nil {
		h.prompter = ui.NewPrompter(opts.In, opts.Out, h.terminal.Theme, log.WithComponent("ui"))
	}

	table := []subsystem.Descriptor{
		subsystem.Required(subsystem.Func{
			ID:        "random",
			InitFn:    func(context.Context) error { return random.Init(opts.Entropy) },
			DestroyFn: random.Destroy,
		}),
		subsystem.Required(subsystem.Func{
			ID:     "asset",
			InitFn: func(context.Context) error { return opts.Dirs.Init() },
		}),
		subsystem.Required(subsystem.Func{
			ID:        "logger",
			InitFn:    h.initLogger,
			DestroyFn: log.Destroy,
		}),
		subsystem.Optional(subsystem.Func{
			ID: "midi",
			InitFn: func(ctx context.Context) error {
				if err := h.router.Configure(mappings(cfg.MIDI.Mappings)); err != nil {
					return err
				}
				return h.router.Init(ctx)
			},
			DestroyFn: h.router.Destroy,
		}),
		subsystem.Optional(h.bindings),
	}
	if cfg.Bridge.Enabled {
		h.bridge = bridge.New(bridge.Config{Listen: cfg.Bridge.Listen, Token: cfg.Bridge.Token},
			h.bank, h.router, h.hub, h.metrics, log.WithComponent("bridge"))
		h.bridge.OnEdit(h.markDirty)
		table = append(table, subsystem.Optional(h.bridge))
	}
	table = append(table,
		subsystem.Optional(h.terminal),
		subsystem.Optional(h.loader),
	)

	h.registry = subsystem.NewRegistry(log.WithComponent("subsystem"), table...)
	h.registry.Observe(h.publishChange)
	return h, nil
}

// pluginRoots lists system, user, then configured roots. In dev mode the
// system and user dirs coincide, so duplicates are dropped.
func pluginRoots(dirs asset.Dirs, extra []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range append([]string{dirs.SystemPath("plugins"), dirs.Plugins()}, extra...) {
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

func mappings(in []config.CCMapping) []midi.Mapping {
	out := make([]midi.Mapping, 0, len(in))
	for _, m := range in {
		out = append(out, midi.Mapping{Channel: m.Channel, Controller: m.Controller, Param: m.Param})
	}
	return out
}

func (h *Host) initLogger(context.Context) error {
	if err := log.Init(h.opts.DevMode, h.opts.Config.Log.Level, h.opts.Dirs.User); err != nil {
		return err
	}
	log.Info(h.opts.AppName+" "+h.opts.Version, "version", h.opts.Version)
	if h.opts.DevMode {
		log.Info("Development mode")
	}
	log.Info("System directory", "path", h.opts.Dirs.System)
	log.Info("User directory", "path", h.opts.Dirs.User)
	return nil
}

func (h *Host) publishChange(c subsystem.Change) {
	kind := events.SubsystemUp
	switch c.State {
	case subsystem.StateFailed:
		kind = events.SubsystemFailed
	case subsystem.StateDown:
		kind = events.SubsystemDown
	}
	data := map[string]string{"name": c.Name}
	if c.Err != nil {
		data["error"] = c.Err.Error()
	}
	h.hub.Publish(kind, data)
}

func (h *Host) markDirty() {
	if s := h.session.Load(); s != nil {
		s.MarkDirty()
	}
}

func (h *Host) openSettings(ctx context.Context) (settings.Store, io.Closer, error) {
	db, err := storage.OpenSQLite(ctx, h.opts.Dirs.Settings())
	if err != nil {
		return nil, nil, err
	}
	return settings.NewSQLiteStore(db), db, nil
}

func (h *Host) newSession(store settings.Store) Session {
	ws := patch.NewWorkspace(h.bank, random.NewID, log.WithComponent("workspace"))
	m := session.New(session.Options{
		Store:        store,
		Workspace:    ws,
		Prompter:     h.prompter,
		AutosavePath: h.opts.Dirs.Autosave(),
		Logger:       log.WithComponent("session"),
		Observer: func(e session.Event) {
			data := map[string]any{"kind": e.Kind, "state": e.State.String(), "patch_id": ws.ID()}
			if e.Path != "" {
				data["path"] = e.Path
			}
			if e.Err != nil {
				data["error"] = e.Err.Error()
			}
			h.hub.Publish(events.SessionChanged, data)
		},
	})
	h.session.Store(m)
	return m
}

func (h *Host) uiOptions() ui.Options {
	opts := ui.Options{
		Bank:         h.bank,
		Keys:         h.bindings.Keys(),
		Theme:        h.terminal.Theme(),
		Hub:          h.hub,
		Title:        h.opts.AppName,
		KnobSpeed:    h.opts.Config.UI.KnobSpeed,
		RowsPerRange: h.opts.Config.UI.RowsPerRange,
	}
	if s := h.session.Load(); s != nil {
		opts.Session = s
	}
	return opts
}

// Run executes one host lifetime. See the package-level Run.
func (h *Host) Run(ctx context.Context, patchPath string) error {
	return Run(ctx, Deps{
		Registry:     h.registry,
		OpenSettings: h.openSettings,
		NewSession:   h.newSession,
		Ready:        h.bank.Freeze,
		Engine:       h.engine,
		UI:           h.ui,
		Events:       h.hub,
		Logger:       log.WithComponent("app"),
	}, patchPath)
}

// Bank returns the live parameter bank.
func (h *Host) Bank() *param.Bank { return h.bank }

// Events returns the lifecycle event hub.
func (h *Host) Events() *events.Hub { return h.hub }

// Session returns the session once resolved, or nil.
func (h *Host) Session() *session.Manager { return h.session.Load() }

// Engine returns the engine.
func (h *Host) Engine() *engine.Engine { return h.engine }
