package midi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/mattjoyce/rackhost/internal/log"
	"github.com/mattjoyce/rackhost/internal/param"
)

// ErrNotControlChange is returned for messages the router does not map.
var ErrNotControlChange = errors.New("not a control change message")

// Driver accepts externally driven parameter values without blocking.
type Driver interface {
	Drive(id string, v float64) bool
}

// Mapping binds one controller on one channel to a parameter.
type Mapping struct {
	Channel    uint8
	Controller uint8
	Param      string
}

// Mapped describes a control change that was routed to a parameter.
type Mapped struct {
	Channel    uint8   `json:"channel"`
	Controller uint8   `json:"controller"`
	Raw        uint8   `json:"raw"`
	Param      string  `json:"param"`
	Value      float64 `json:"value"`
	Queued     bool    `json:"queued"`
}

type route struct{ ch, cc uint8 }

// Router maps MIDI control changes onto the parameter bank. It is the "midi"
// subsystem: Init activates it and Destroy detaches it from the engine.
type Router struct {
	bank   *param.Bank
	logger *slog.Logger

	mu       sync.RWMutex
	routes   map[route]string
	target   Driver
	onMapped func(Mapped)

	active  atomic.Bool
	handled atomic.Int64
}

func NewRouter(bank *param.Bank, logger *slog.Logger) *Router {
	if logger == nil {
		logger = log.WithComponent("midi")
	}
	return &Router{
		bank:   bank,
		logger: logger,
		routes: make(map[route]string),
	}
}

// Configure replaces the mapping table.
func (r *Router) Configure(mappings []Mapping) error {
	routes := make(map[route]string, len(mappings))
	for _, m := range mappings {
		if m.Channel > 15 || m.Controller > 127 {
			return fmt.Errorf("midi mapping ch=%d cc=%d out of range", m.Channel, m.Controller)
		}
		k := route{m.Channel, m.Controller}
		if prev, dup := routes[k]; dup {
			return fmt.Errorf("midi ch=%d cc=%d mapped to both %q and %q", m.Channel, m.Controller, prev, m.Param)
		}
		routes[k] = m.Param
	}
	r.mu.Lock()
	r.routes = routes
	r.mu.Unlock()
	return nil
}

// Attach sets the engine that receives mapped values.
func (r *Router) Attach(target Driver) {
	r.mu.Lock()
	r.target = target
	r.mu.Unlock()
}

// OnMapped registers a callback for every routed control change.
func (r *Router) OnMapped(fn func(Mapped)) {
	r.mu.Lock()
	r.onMapped = fn
	r.mu.Unlock()
}

func (r *Router) Name() string { return "midi" }

func (r *Router) Init(context.Context) error {
	r.mu.RLock()
	n := len(r.routes)
	r.mu.RUnlock()
	r.active.Store(true)
	r.logger.Info("midi router ready", "mappings", n)
	return nil
}

func (r *Router) Destroy() error {
	r.active.Store(false)
	r.Attach(nil)
	r.logger.Info("midi router stopped", "handled", r.handled.Load())
	return nil
}

// HandleBytes decodes a raw MIDI message and routes it.
func (r *Router) HandleBytes(b []byte) (Mapped, bool, error) {
	return r.Handle(gomidi.Message(b))
}

// Handle routes a control change to its mapped parameter, scaling 0..127 onto
// the parameter range. ok is false when the message is unmapped or the router
// is not ready.
func (r *Router) Handle(msg gomidi.Message) (Mapped, bool, error) {
	var ch, cc, val uint8
	if !msg.GetControlChange(&ch, &cc, &val) {
		return Mapped{}, false, fmt.Errorf("%w: %s", ErrNotControlChange, msg.String())
	}
	if !r.active.Load() || !r.bank.Frozen() {
		return Mapped{}, false, nil
	}

	r.mu.RLock()
	id, mapped := r.routes[route{ch, cc}]
	target := r.target
	notify := r.onMapped
	r.mu.RUnlock()

	if !mapped || target == nil {
		r.logger.Debug("unmapped control change", "channel", ch, "controller", cc)
		return Mapped{}, false, nil
	}
	p, ok := r.bank.Get(id)
	if !ok {
		return Mapped{}, false, nil
	}

	out := Mapped{
		Channel:    ch,
		Controller: cc,
		Raw:        val,
		Param:      id,
		Value:      Scale(val, p.Min, p.Max),
	}
	out.Queued = target.Drive(id, out.Value)
	r.handled.Add(1)
	if notify != nil {
		notify(out)
	}
	return out, true, nil
}

// Scale maps a 7-bit controller value onto [min, max].
func Scale(v uint8, min, max float64) float64 {
	return min + float64(v)/127*(max-min)
}
