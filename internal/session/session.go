package session

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/mattjoyce/rackhost/internal/log"
	"github.com/mattjoyce/rackhost/internal/settings"
)

//go:generate mockgen -destination=mocks/mock_session.go -package=mocks github.com/mattjoyce/rackhost/internal/session Prompter,Workspace

const recoveryQuestion = "The previous session did not finish loading its patch, possibly because of a faulty module. Clear the patch and start over?"

// State is the session lifecycle state.
type State int

const (
	Fresh State = iota
	Recovering
	Loaded
	Dirty
	Saved
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Recovering:
		return "recovering"
	case Loaded:
		return "loaded"
	case Dirty:
		return "dirty"
	case Saved:
		return "saved"
	default:
		return "unknown"
	}
}

// Workspace is the working patch document.
type Workspace interface {
	Load(path string) error
	Save(path string) error
	Clear()
	LastPath() string
	SetLastPath(path string)
}

// Prompter surfaces decisions and failures to the user.
type Prompter interface {
	Confirm(question string) bool
	Alert(message string)
}

// Event is reported to the Observer after every state change or settings flush.
type Event struct {
	Kind             string
	State            State
	Path             string
	SkipLoadOnLaunch bool
	Err              error
}

// Observer receives session events. It runs synchronously on the caller's goroutine.
type Observer func(Event)

// Options wires a Manager to its collaborators.
type Options struct {
	Store        settings.Store
	Workspace    Workspace
	Prompter     Prompter
	AutosavePath string
	Logger       *slog.Logger
	Observer     Observer
}

// Manager decides which patch to load at startup and persists the session at
// shutdown. Its methods other than State and MarkDirty must be called from a
// single goroutine while the engine is not making structural changes.
type Manager struct {
	store    settings.Store
	ws       Workspace
	prompt   Prompter
	autosave string
	logger   *slog.Logger
	observer Observer

	settings *settings.Settings

	mu    sync.Mutex
	state State
}

// New creates a manager in the Fresh state.
func New(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = log.WithComponent("session")
	}
	observer := opts.Observer
	if observer == nil {
		observer = func(Event) {}
	}
	return &Manager{
		store:    opts.Store,
		ws:       opts.Workspace,
		prompt:   opts.Prompter,
		autosave: opts.AutosavePath,
		logger:   logger,
		observer: observer,
		state:    Fresh,
	}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s State, kind, path string) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	m.observer(Event{Kind: kind, State: s, Path: path})
}

// Open reads persisted settings. It returns ErrCrashRecoveryDetected when the
// load flag was left set by the previous launch. Unreadable settings are logged
// and replaced by defaults.
func (m *Manager) Open(ctx context.Context) error {
	st, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Warn("settings unreadable, using defaults", "error", err)
		st = &settings.Settings{}
	}
	m.settings = st
	if st.SkipLoadOnLaunch {
		return ErrCrashRecoveryDetected
	}
	return nil
}

// Resolve loads the startup patch. An explicit path is loaded directly;
// otherwise the autosave is loaded under the crash-recovery flag. A failed load
// is alerted, leaves an empty working document, and is returned as *LoadError.
func (m *Manager) Resolve(ctx context.Context, explicitPath string) error {
	if m.settings == nil {
		if err := m.Open(ctx); err != nil && !errors.Is(err, ErrCrashRecoveryDetected) {
			return err
		}
	}
	if explicitPath != "" {
		return m.loadExplicit(explicitPath)
	}

	recovering := m.settings.SkipLoadOnLaunch

	// The flag must be durable before anything risky happens, and it is only
	// cleared once the attempt has returned. No defer: a panic here must leave
	// the flag set on disk.
	m.settings.SkipLoadOnLaunch = true
	m.flush(ctx, "load-begin")

	err := m.loadAutosave(recovering)

	m.settings.SkipLoadOnLaunch = false
	m.flush(ctx, "load-end")
	return err
}

func (m *Manager) loadExplicit(path string) error {
	if err := m.ws.Load(path); err != nil {
		return m.loadFailed(path, err)
	}
	m.ws.SetLastPath(path)
	m.setState(Loaded, "loaded", path)
	return nil
}

func (m *Manager) loadAutosave(recovering bool) error {
	if recovering {
		m.setState(Recovering, "recovering", m.autosave)
		m.logger.Warn("crash recovery detected", "autosave", m.autosave)
		if m.prompt.Confirm(recoveryQuestion) {
			m.ws.Clear()
			m.ws.SetLastPath("")
			m.setState(Fresh, "discarded", m.autosave)
			m.logger.Info("autosave discarded")
			return nil
		}
	}

	lastPath := m.ws.LastPath()
	err := m.ws.Load(m.autosave)
	m.ws.SetLastPath(lastPath)
	if errors.Is(err, fs.ErrNotExist) {
		m.logger.Info("no autosave, starting empty", "autosave", m.autosave)
		m.setState(Fresh, "empty", m.autosave)
		return nil
	}
	if err != nil {
		return m.loadFailed(m.autosave, err)
	}
	m.setState(Loaded, "loaded", m.autosave)
	return nil
}

func (m *Manager) loadFailed(path string, cause error) error {
	lerr := &LoadError{Path: path, Cause: cause}
	m.logger.Error("patch load failed", "path", path, "error", cause)
	m.prompt.Alert(lerr.Error())
	m.ws.Clear()
	m.setState(Fresh, "load-failed", path)
	return lerr
}

// MarkDirty records a user edit.
func (m *Manager) MarkDirty() {
	m.mu.Lock()
	changed := m.state != Dirty
	m.state = Dirty
	m.mu.Unlock()
	if changed {
		m.observer(Event{Kind: "dirty", State: Dirty})
	}
}

// Save writes the working document to path and makes it the last user path.
func (m *Manager) Save(path string) error {
	if err := m.ws.Save(path); err != nil {
		serr := &SaveError{Path: path, Cause: err}
		m.logger.Error("patch save failed", "path", path, "error", err)
		m.prompt.Alert(serr.Error())
		return serr
	}
	m.ws.SetLastPath(path)
	m.setState(Saved, "saved", path)
	return nil
}

// SaveLast saves to the last user path.
func (m *Manager) SaveLast() error {
	path := m.ws.LastPath()
	if path == "" {
		return ErrNoPath
	}
	return m.Save(path)
}

// Shutdown writes the autosave and flushes settings unconditionally. A failed
// autosave is returned as *SaveError; a failed flush is logged only.
func (m *Manager) Shutdown(ctx context.Context) error {
	var serr error
	if err := m.ws.Save(m.autosave); err != nil {
		serr = &SaveError{Path: m.autosave, Cause: err}
	}
	if m.settings == nil {
		m.settings = &settings.Settings{}
	}
	m.flush(ctx, "shutdown")
	if serr != nil {
		m.observer(Event{Kind: "autosave-failed", State: m.State(), Path: m.autosave, Err: serr})
		return serr
	}
	m.setState(Saved, "autosaved", m.autosave)
	return nil
}

func (m *Manager) flush(ctx context.Context, step string) {
	err := m.store.Save(ctx, m.settings.Clone())
	if err != nil {
		m.logger.Warn("settings flush failed", "step", step, "error", err)
	} else {
		m.logger.Debug("settings flushed", "step", step, "skip_load_on_launch", m.settings.SkipLoadOnLaunch)
	}
	m.observer(Event{Kind: "flush:" + step, State: m.State(), SkipLoadOnLaunch: m.settings.SkipLoadOnLaunch, Err: err})
}
