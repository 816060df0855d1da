package subsystem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mattjoyce/rackhost/internal/log"
)

//go:generate mockgen -destination=mocks/mock_subsystem.go -package=mocks github.com/mattjoyce/rackhost/internal/subsystem Subsystem

// Subsystem is an independently initialisable host service.
type Subsystem interface {
	Name() string
	Init(ctx context.Context) error
	Destroy() error
}

// Descriptor is one row of the registry table.
type Descriptor struct {
	Subsystem
	// Required subsystems abort bring-up on failure; optional ones are skipped.
	Required bool
}

// InitError reports the subsystem whose Init failed.
type InitError struct {
	Name  string
	Cause error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("subsystem %q init failed: %v", e.Name, e.Cause)
}

func (e *InitError) Unwrap() error { return e.Cause }

// Func adapts a pair of closures into a Subsystem.
type Func struct {
	ID        string
	InitFn    func(ctx context.Context) error
	DestroyFn func() error
}

func (f Func) Name() string { return f.ID }

func (f Func) Init(ctx context.Context) error {
	if f.InitFn == nil {
		return nil
	}
	return f.InitFn(ctx)
}

func (f Func) Destroy() error {
	if f.DestroyFn == nil {
		return nil
	}
	return f.DestroyFn()
}

// ChangeState is the outcome of one registry transition.
type ChangeState string

const (
	StateUp     ChangeState = "up"
	StateFailed ChangeState = "failed"
	StateDown   ChangeState = "down"
)

// Change reports a subsystem coming up, failing Init, or being destroyed.
// Err is set for a failed Init or a failed Destroy.
type Change struct {
	Name  string
	State ChangeState
	Err   error
}

// Registry brings subsystems up in table order and tears them down in reverse.
type Registry struct {
	table  []Descriptor
	up     []Subsystem
	logger *slog.Logger
	notify func(Change)
}

// NewRegistry creates a registry over the given table.
func NewRegistry(logger *slog.Logger, table ...Descriptor) *Registry {
	if logger == nil {
		logger = log.WithComponent("subsystem")
	}
	return &Registry{
		table:  table,
		logger: logger,
	}
}

// Observe registers fn to receive every transition.
func (r *Registry) Observe(fn func(Change)) { r.notify = fn }

func (r *Registry) emit(c Change) {
	if r.notify != nil {
		r.notify(c)
	}
}

// Required marks s as required.
func Required(s Subsystem) Descriptor { return Descriptor{Subsystem: s, Required: true} }

// Optional marks s as optional.
func Optional(s Subsystem) Descriptor { return Descriptor{Subsystem: s} }

// BringUp initialises every subsystem in order. When a required subsystem
// fails, everything already up is destroyed in reverse order and the failure
// is returned as *InitError. The failing subsystem itself is not destroyed.
func (r *Registry) BringUp(ctx context.Context) error {
	for _, d := range r.table {
		name := d.Name()
		if err := d.Init(ctx); err != nil {
			r.emit(Change{Name: name, State: StateFailed, Err: err})
			if !d.Required {
				r.logger.Warn("optional subsystem failed to start; continuing without it", "subsystem", name, "error", err)
				continue
			}
			r.logger.Error("subsystem failed to start; rolling back", "subsystem", name, "error", err)
			_ = r.TearDown()
			return &InitError{Name: name, Cause: err}
		}
		r.up = append(r.up, d.Subsystem)
		r.emit(Change{Name: name, State: StateUp})
		r.logger.Debug("subsystem up", "subsystem", name)
	}
	return nil
}

// TearDown destroys every initialised subsystem in reverse order. Failures
// are logged and collected; they never stop the remaining teardown.
func (r *Registry) TearDown() error {
	var errs []error
	for i := len(r.up) - 1; i >= 0; i-- {
		s := r.up[i]
		err := s.Destroy()
		r.emit(Change{Name: s.Name(), State: StateDown, Err: err})
		if err != nil {
			r.logger.Error("subsystem destroy failed", "subsystem", s.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		r.logger.Debug("subsystem down", "subsystem", s.Name())
	}
	r.up = nil
	return errors.Join(errs...)
}

// Running returns the names of initialised subsystems in init order.
func (r *Registry) Running() []string {
	out := make([]string, 0, len(r.up))
	for _, s := range r.up {
		out = append(out, s.Name())
	}
	return out
}
