// Package app composes the host: subsystem bring-up, session resolution, the
// engine, the UI run loop, and the ordered shutdown that follows.
package app

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/mattjoyce/rackhost/internal/events"
	"github.com/mattjoyce/rackhost/internal/log"
	"github.com/mattjoyce/rackhost/internal/session"
	"github.com/mattjoyce/rackhost/internal/settings"
	"github.com/mattjoyce/rackhost/internal/subsystem"
)

// Registry brings subsystems up and down.
type Registry interface {
	BringUp(ctx context.Context) error
	TearDown() error
	Running() []string
}

// Engine is the real-time processing lifecycle.
type Engine interface {
	Start() error
	Stop()
}

// UI is the blocking run loop.
type UI interface {
	Run(ctx context.Context) error
}

// Session resolves the startup patch and persists at shutdown.
type Session interface {
	Open(ctx context.Context) error
	Resolve(ctx context.Context, explicitPath string) error
	Shutdown(ctx context.Context) error
}

// Deps are the collaborators of one run.
type Deps struct {
	Registry Registry
	// OpenSettings opens the settings store once subsystems are up.
	OpenSettings func(ctx context.Context) (settings.Store, io.Closer, error)
	// NewSession binds a session to the opened store.
	NewSession func(store settings.Store) Session
	// Ready runs after bring-up, before the session touches parameters.
	Ready  func()
	Engine Engine
	UI     UI
	Events *events.Hub
	Logger *slog.Logger
}

// Run drives one host lifetime. Subsystem and session failures are logged and
// never unwind past here; the only error returned is a required subsystem
// failing to come up, after its predecessors have been rolled back.
func Run(ctx context.Context, d Deps, patchPath string) error {
	logger := d.Logger
	if logger == nil {
		logger = log.WithComponent("app")
	}
	publish := func(kind string, data any) {
		if d.Events != nil {
			d.Events.Publish(kind, data)
		}
	}

	if err := d.Registry.BringUp(ctx); err != nil {
		var ierr *subsystem.InitError
		if errors.As(err, &ierr) {
			logger.Error("required subsystem failed", "subsystem", ierr.Name, "error", ierr.Cause)
		} else {
			logger.Error("bring-up failed", "error", err)
		}
		return err
	}
	logger.Info("subsystems up", "running", d.Registry.Running())
	if d.Ready != nil {
		d.Ready()
	}

	store, closer, err := d.OpenSettings(ctx)
	if err != nil {
		logger.Warn("settings unavailable, changes will not persist", "error", err)
		store, closer = settings.NewMemoryStore(), nil
	}

	sess := d.NewSession(store)
	if err := sess.Open(ctx); err != nil {
		logger.Warn("session open", "error", err)
	}
	if err := sess.Resolve(ctx, patchPath); err != nil {
		logger.Warn("startup patch not loaded, continuing with empty patch", "error", err)
	}

	if err := d.Engine.Start(); err != nil {
		logger.Error("engine start failed", "error", err)
	} else {
		publish(events.EngineStarted, nil)
	}

	if err := d.UI.Run(ctx); err != nil {
		logger.Error("ui run loop failed", "error", err)
	}

	d.Engine.Stop()
	publish(events.EngineStopped, nil)

	// The engine is joined; persisting now cannot race structural changes.
	if err := sess.Shutdown(context.WithoutCancel(ctx)); err != nil {
		logger.Error("autosave failed", "error", err)
	}
	if closer != nil {
		if err := closer.Close(); err != nil {
			logger.Warn("settings close failed", "error", err)
		}
	}

	if err := d.Registry.TearDown(); err != nil {
		logger.Warn("teardown reported errors", "error", err)
	}
	return nil
}

var _ Session = (*session.Manager)(nil)
