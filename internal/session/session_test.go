package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/rackhost/internal/param"
	"github.com/mattjoyce/rackhost/internal/patch"
	"github.com/mattjoyce/rackhost/internal/session/mocks"
	"github.com/mattjoyce/rackhost/internal/settings"
	"github.com/mattjoyce/rackhost/internal/storage"
)

func openStore(t *testing.T, path string) *settings.SQLiteStore {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return settings.NewSQLiteStore(db)
}

func diskFlag(t *testing.T, s settings.Store) bool {
	t.Helper()
	st, err := s.Load(context.Background())
	require.NoError(t, err)
	return st.SkipLoadOnLaunch
}

func presetFlag(t *testing.T, s settings.Store, v bool) {
	t.Helper()
	require.NoError(t, s.Save(context.Background(), &settings.Settings{SkipLoadOnLaunch: v}))
}

type fakeWorkspace struct {
	onLoad   func(path string)
	loadErr  error
	saveErr  error
	loads    []string
	saves    []string
	cleared  int
	lastPath string
}

func (w *fakeWorkspace) Load(path string) error {
	w.loads = append(w.loads, path)
	if w.onLoad != nil {
		w.onLoad(path)
	}
	return w.loadErr
}

func (w *fakeWorkspace) Save(path string) error {
	w.saves = append(w.saves, path)
	return w.saveErr
}

func (w *fakeWorkspace) Clear()                  { w.cleared++ }
func (w *fakeWorkspace) LastPath() string        { return w.lastPath }
func (w *fakeWorkspace) SetLastPath(path string) { w.lastPath = path }

type failingStore struct{}

func (failingStore) Load(context.Context) (*settings.Settings, error) {
	return nil, errors.New("disk on fire")
}

func (failingStore) Save(context.Context, *settings.Settings) error {
	return errors.New("disk on fire")
}

func TestFlagIsSetOnDiskDuringAutosaveLoad(t *testing.T) {
	dir := t.TempDir()
	store := openStore(t, filepath.Join(dir, "settings.db"))
	ws := &fakeWorkspace{}

	var seenDuringLoad []bool
	ws.onLoad = func(string) { seenDuringLoad = append(seenDuringLoad, diskFlag(t, store)) }

	var flushes []Event
	m := New(Options{
		Store:        store,
		Workspace:    ws,
		Prompter:     mocks.NewMockPrompter(gomock.NewController(t)),
		AutosavePath: filepath.Join(dir, "autosave.vcv"),
		Observer: func(e Event) {
			if e.Kind == "flush:load-begin" || e.Kind == "flush:load-end" {
				flushes = append(flushes, e)
			}
		},
	})

	require.NoError(t, m.Open(context.Background()))
	require.NoError(t, m.Resolve(context.Background(), ""))

	assert.Equal(t, []bool{true}, seenDuringLoad)
	assert.False(t, diskFlag(t, store), "flag must be cleared after a completed load")
	require.Len(t, flushes, 2)
	assert.True(t, flushes[0].SkipLoadOnLaunch)
	assert.False(t, flushes[1].SkipLoadOnLaunch)
	assert.Equal(t, Loaded, m.State())
}

func TestFlagIsClearedAfterFailedAutosaveLoad(t *testing.T) {
	dir := t.TempDir()
	store := openStore(t, filepath.Join(dir, "settings.db"))
	ws := &fakeWorkspace{loadErr: errors.New("corrupt")}

	prompt := mocks.NewMockPrompter(gomock.NewController(t))
	prompt.EXPECT().Alert(gomock.Any()).Times(1)

	m := New(Options{Store: store, Workspace: ws, Prompter: prompt, AutosavePath: filepath.Join(dir, "autosave.vcv")})
	err := m.Resolve(context.Background(), "")

	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.False(t, diskFlag(t, store))
	assert.Equal(t, 1, ws.cleared)
	assert.Equal(t, Fresh, m.State())
}

func TestSimulatedCrashIsDetectedOnRestart(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "settings.db")
	autosave := filepath.Join(dir, "autosave.vcv")

	first := New(Options{
		Store:        openStore(t, dbPath),
		Workspace:    &fakeWorkspace{onLoad: func(string) { panic("module crashed while loading") }},
		Prompter:     mocks.NewMockPrompter(gomock.NewController(t)),
		AutosavePath: autosave,
	})
	require.NoError(t, first.Open(context.Background()))
	assert.Panics(t, func() { _ = first.Resolve(context.Background(), "") })

	second := New(Options{
		Store:        openStore(t, dbPath),
		Workspace:    &fakeWorkspace{},
		Prompter:     mocks.NewMockPrompter(gomock.NewController(t)),
		AutosavePath: autosave,
	})
	assert.ErrorIs(t, second.Open(context.Background()), ErrCrashRecoveryDetected)
}

func TestRecoveryDiscardClearsWorkspace(t *testing.T) {
	dir := t.TempDir()
	store := openStore(t, filepath.Join(dir, "settings.db"))
	presetFlag(t, store, true)

	ws := &fakeWorkspace{lastPath: "/patches/song.vcv"}
	prompt := mocks.NewMockPrompter(gomock.NewController(t))
	prompt.EXPECT().Confirm(gomock.Any()).Return(true)

	var states []State
	m := New(Options{
		Store:        store,
		Workspace:    ws,
		Prompter:     prompt,
		AutosavePath: filepath.Join(dir, "autosave.vcv"),
		Observer: func(e Event) {
			if e.Kind == "recovering" || e.Kind == "discarded" {
				states = append(states, e.State)
			}
		},
	})

	require.ErrorIs(t, m.Open(context.Background()), ErrCrashRecoveryDetected)
	require.NoError(t, m.Resolve(context.Background(), ""))

	assert.Empty(t, ws.loads)
	assert.Equal(t, 1, ws.cleared)
	assert.Empty(t, ws.lastPath)
	assert.Equal(t, []State{Recovering, Fresh}, states)
	assert.False(t, diskFlag(t, store))
}

func TestRecoveryLoadAnywayPreservesLastPath(t *testing.T) {
	dir := t.TempDir()
	store := openStore(t, filepath.Join(dir, "settings.db"))
	presetFlag(t, store, true)

	autosave := filepath.Join(dir, "autosave.vcv")
	ws := &fakeWorkspace{lastPath: "/patches/song.vcv"}
	ws.onLoad = func(string) { ws.lastPath = autosave }

	prompt := mocks.NewMockPrompter(gomock.NewController(t))
	prompt.EXPECT().Confirm(gomock.Any()).Return(false)

	m := New(Options{Store: store, Workspace: ws, Prompter: prompt, AutosavePath: autosave})
	require.NoError(t, m.Resolve(context.Background(), ""))

	assert.Equal(t, []string{autosave}, ws.loads)
	assert.Equal(t, "/patches/song.vcv", ws.lastPath)
	assert.Equal(t, Loaded, m.State())
	assert.False(t, diskFlag(t, store))
}

func TestExplicitPathBypassesRecovery(t *testing.T) {
	dir := t.TempDir()
	store := openStore(t, filepath.Join(dir, "settings.db"))
	presetFlag(t, store, true)

	ws := &fakeWorkspace{}
	m := New(Options{
		Store:        store,
		Workspace:    ws,
		Prompter:     mocks.NewMockPrompter(gomock.NewController(t)),
		AutosavePath: filepath.Join(dir, "autosave.vcv"),
	})

	require.NoError(t, m.Resolve(context.Background(), "/patches/live.vcv"))
	assert.Equal(t, []string{"/patches/live.vcv"}, ws.loads)
	assert.Equal(t, "/patches/live.vcv", ws.lastPath)
	assert.Equal(t, Loaded, m.State())
	assert.True(t, diskFlag(t, store), "explicit load must not touch the flag")
}

func TestExplicitPathParseFailureLeavesEmptyDocument(t *testing.T) {
	dir := t.TempDir()
	store := openStore(t, filepath.Join(dir, "settings.db"))

	bank := param.NewBank()
	cutoff, err := bank.Add(param.Spec{ID: "vcf.cutoff", Min: 0, Max: 1, Default: 0.5})
	require.NoError(t, err)
	cutoff.Slot.Propose(0.9)

	n := 0
	ws := patch.NewWorkspace(bank, func() string { n++; return fmt.Sprintf("patch-%d", n) }, nil)
	before := ws.ID()

	bad := filepath.Join(dir, "broken.vcv")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))

	prompt := mocks.NewMockPrompter(gomock.NewController(t))
	prompt.EXPECT().Alert(gomock.Any()).Times(1)

	autosave := filepath.Join(dir, "autosave.vcv")
	m := New(Options{Store: store, Workspace: ws, Prompter: prompt, AutosavePath: autosave})

	err = m.Resolve(context.Background(), bad)
	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, bad, lerr.Path)
	assert.NotEqual(t, before, ws.ID())
	assert.Equal(t, 0.5, cutoff.Slot.Read())
	assert.Empty(t, ws.LastPath())

	require.NoError(t, m.Shutdown(context.Background()))
	doc, err := patch.Read(autosave)
	require.NoError(t, err)
	assert.Equal(t, ws.ID(), doc.ID)
}

func TestMissingAutosaveStartsFresh(t *testing.T) {
	dir := t.TempDir()
	store := openStore(t, filepath.Join(dir, "settings.db"))
	ws := &fakeWorkspace{loadErr: fmt.Errorf("read patch: %w", fs.ErrNotExist)}

	m := New(Options{
		Store:        store,
		Workspace:    ws,
		Prompter:     mocks.NewMockPrompter(gomock.NewController(t)),
		AutosavePath: filepath.Join(dir, "autosave.vcv"),
	})
	require.NoError(t, m.Resolve(context.Background(), ""))
	assert.Equal(t, Fresh, m.State())
	assert.Zero(t, ws.cleared)
}

func TestShutdownSwallowsFlushFailure(t *testing.T) {
	ws := &fakeWorkspace{}
	m := New(Options{
		Store:        failingStore{},
		Workspace:    ws,
		Prompter:     mocks.NewMockPrompter(gomock.NewController(t)),
		AutosavePath: "/rack/autosave.vcv",
	})

	assert.NoError(t, m.Open(context.Background()))
	assert.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, []string{"/rack/autosave.vcv"}, ws.saves)
	assert.Equal(t, Saved, m.State())
}

func TestShutdownReportsAutosaveFailureAndStillFlushes(t *testing.T) {
	dir := t.TempDir()
	store := openStore(t, filepath.Join(dir, "settings.db"))
	presetFlag(t, store, true)

	ws := &fakeWorkspace{saveErr: errors.New("read-only")}
	m := New(Options{
		Store:        store,
		Workspace:    ws,
		Prompter:     mocks.NewMockPrompter(gomock.NewController(t)),
		AutosavePath: filepath.Join(dir, "autosave.vcv"),
	})
	require.ErrorIs(t, m.Open(context.Background()), ErrCrashRecoveryDetected)

	err := m.Shutdown(context.Background())
	var serr *SaveError
	require.ErrorAs(t, err, &serr)
	assert.Len(t, ws.saves, 1)
	assert.True(t, diskFlag(t, store), "settings are flushed as loaded")
}

func TestShutdownSavesEvenWhenClean(t *testing.T) {
	ws := &fakeWorkspace{}
	m := New(Options{
		Store:        openStore(t, filepath.Join(t.TempDir(), "settings.db")),
		Workspace:    ws,
		Prompter:     mocks.NewMockPrompter(gomock.NewController(t)),
		AutosavePath: "autosave.vcv",
	})
	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, []string{"autosave.vcv"}, ws.saves)
}

func TestMarkDirtyAndSaveLast(t *testing.T) {
	ws := &fakeWorkspace{}
	prompt := mocks.NewMockPrompter(gomock.NewController(t))
	m := New(Options{
		Store:        openStore(t, filepath.Join(t.TempDir(), "settings.db")),
		Workspace:    ws,
		Prompter:     prompt,
		AutosavePath: "autosave.vcv",
	})

	m.MarkDirty()
	assert.Equal(t, Dirty, m.State())
	assert.ErrorIs(t, m.SaveLast(), ErrNoPath)

	ws.lastPath = "/patches/song.vcv"
	require.NoError(t, m.SaveLast())
	assert.Equal(t, Saved, m.State())
	assert.Equal(t, []string{"/patches/song.vcv"}, ws.saves)

	ws.saveErr = errors.New("disk full")
	prompt.EXPECT().Alert(gomock.Any())
	var serr *SaveError
	assert.ErrorAs(t, m.Save("/patches/other.vcv"), &serr)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "recovering", Recovering.String())
	assert.Equal(t, "unknown", State(42).String())
}
