package app

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/rackhost/internal/events"
	"github.com/mattjoyce/rackhost/internal/settings"
	"github.com/mattjoyce/rackhost/internal/subsystem"
)

type callLog struct{ calls []string }

func (c *callLog) add(s string) { c.calls = append(c.calls, s) }

type fakeRegistry struct {
	log     *callLog
	initErr error
}

func (f *fakeRegistry) BringUp(context.Context) error { f.log.add("bringup"); return f.initErr }
func (f *fakeRegistry) TearDown() error               { f.log.add("teardown"); return nil }
func (f *fakeRegistry) Running() []string             { return nil }

type fakeEngine struct {
	log      *callLog
	startErr error
}

func (f *fakeEngine) Start() error { f.log.add("engine.start"); return f.startErr }
func (f *fakeEngine) Stop()        { f.log.add("engine.stop") }

type fakeUI struct {
	log *callLog
	err error
}

func (f *fakeUI) Run(context.Context) error { f.log.add("ui.run"); return f.err }

type fakeSession struct {
	log         *callLog
	store       settings.Store
	resolveErr  error
	shutdownErr error
	path        string
}

func (f *fakeSession) Open(context.Context) error { f.log.add("session.open"); return nil }
func (f *fakeSession) Resolve(_ context.Context, p string) error {
	f.path = p
	f.log.add("session.resolve")
	return f.resolveErr
}
func (f *fakeSession) Shutdown(context.Context) error {
	f.log.add("session.shutdown")
	return f.shutdownErr
}

type closerFunc func() error

func (c closerFunc) Close() error { return c() }

func testDeps(l *callLog, sess *fakeSession) Deps {
	return Deps{
		Registry: &fakeRegistry{log: l},
		OpenSettings: func(context.Context) (settings.Store, io.Closer, error) {
			l.add("settings.open")
			return settings.NewMemoryStore(), closerFunc(func() error { l.add("settings.close"); return nil }), nil
		},
		NewSession: func(store settings.Store) Session {
			sess.log = l
			sess.store = store
			return sess
		},
		Ready:  func() { l.add("ready") },
		Engine: &fakeEngine{log: l},
		UI:     &fakeUI{log: l},
		Events: events.NewHub(32),
	}
}

func TestRunOrdering(t *testing.T) {
	l := &callLog{}
	sess := &fakeSession{}
	d := testDeps(l, sess)

	require.NoError(t, Run(context.Background(), d, "song.vcv"))
	assert.Equal(t, []string{
		"bringup", "ready", "settings.open", "session.open", "session.resolve",
		"engine.start", "ui.run", "engine.stop", "session.shutdown", "settings.close", "teardown",
	}, l.calls)
	assert.Equal(t, "song.vcv", sess.path)

	var kinds []string
	for _, e := range d.Events.Since(0) {
		kinds = append(kinds, e.Type)
	}
	assert.Equal(t, []string{events.EngineStarted, events.EngineStopped}, kinds)
}

func TestRunRequiredFailureStopsEarly(t *testing.T) {
	l := &callLog{}
	d := testDeps(l, &fakeSession{})
	d.Registry = &fakeRegistry{log: l, initErr: &subsystem.InitError{Name: "asset", Cause: errors.New("read-only")}}

	err := Run(context.Background(), d, "")
	var ierr *subsystem.InitError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, "asset", ierr.Name)
	assert.Equal(t, []string{"bringup"}, l.calls)
}

func TestRunFailuresDoNotUnwind(t *testing.T) {
	l := &callLog{}
	sess := &fakeSession{
		resolveErr:  errors.New("bad patch"),
		shutdownErr: errors.New("disk full"),
	}
	d := testDeps(l, sess)
	d.Engine = &fakeEngine{log: l, startErr: errors.New("already running")}
	d.UI = &fakeUI{log: l, err: errors.New("tty gone")}

	require.NoError(t, Run(context.Background(), d, ""))
	assert.Equal(t, "teardown", l.calls[len(l.calls)-1])
	assert.Contains(t, l.calls, "session.shutdown")
}

func TestRunFallsBackToMemorySettings(t *testing.T) {
	l := &callLog{}
	sess := &fakeSession{}
	d := testDeps(l, sess)
	d.OpenSettings = func(context.Context) (settings.Store, io.Closer, error) {
		return nil, nil, errors.New("locked")
	}

	require.NoError(t, Run(context.Background(), d, ""))
	assert.IsType(t, &settings.MemoryStore{}, sess.store)
	assert.NotContains(t, l.calls, "settings.close")
}

func TestRunShutdownSurvivesCancelledContext(t *testing.T) {
	l := &callLog{}
	d := testDeps(l, &fakeSession{})
	ctx, cancel := context.WithCancel(context.Background())
	d.UI = uiFunc(func(context.Context) error {
		l.add("ui.run")
		cancel()
		return nil
	})

	require.NoError(t, Run(ctx, d, ""))
	assert.Contains(t, l.calls, "session.shutdown")
	assert.Equal(t, "teardown", l.calls[len(l.calls)-1])
}

type uiFunc func(context.Context) error

func (f uiFunc) Run(ctx context.Context) error { return f(ctx) }
