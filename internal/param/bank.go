package param

import (
	"fmt"
	"math"
	"sort"
	"sync/atomic"
)

// Spec describes one parameter exposed by a module.
type Spec struct {
	ID      string  `yaml:"id" json:"id"`
	Name    string  `yaml:"name" json:"name"`
	Min     float64 `yaml:"min" json:"min"`
	Max     float64 `yaml:"max" json:"max"`
	Default float64 `yaml:"default" json:"default"`
}

// Validate checks the range and default.
func (s Spec) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("param id is empty")
	}
	for _, v := range []float64{s.Min, s.Max, s.Default} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("param %q: range and default must be finite", s.ID)
		}
	}
	if s.Min > s.Max {
		return fmt.Errorf("param %q: min %v greater than max %v", s.ID, s.Min, s.Max)
	}
	if s.Default < s.Min || s.Default > s.Max {
		return fmt.Errorf("param %q: default %v outside [%v, %v]", s.ID, s.Default, s.Min, s.Max)
	}
	return nil
}

// Clamp limits v to the parameter range.
func (s Spec) Clamp(v float64) float64 {
	if v < s.Min {
		return s.Min
	}
	if v > s.Max {
		return s.Max
	}
	return v
}

// Param pairs a spec with its live slot. The slot outlives any widget bound to it.
type Param struct {
	Spec
	Slot *Slot
}

// Bank is the set of live parameters for a session.
// Add every parameter, then Freeze before the engine starts; lookups after
// Freeze are lock-free reads of an immutable map.
type Bank struct {
	params map[string]*Param
	order  []string
	frozen atomic.Bool
}

func NewBank() *Bank {
	return &Bank{params: make(map[string]*Param)}
}

// Add registers a parameter at its default value.
func (b *Bank) Add(spec Spec) (*Param, error) {
	if b.frozen.Load() {
		return nil, fmt.Errorf("param bank is frozen")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if _, exists := b.params[spec.ID]; exists {
		return nil, fmt.Errorf("param %q already registered", spec.ID)
	}
	p := &Param{Spec: spec, Slot: NewSlot(spec.Default)}
	b.params[spec.ID] = p
	b.order = append(b.order, spec.ID)
	return p, nil
}

// Freeze stops further structural changes.
func (b *Bank) Freeze() { b.frozen.Store(true) }

// Frozen reports whether the bank may be read from other goroutines.
func (b *Bank) Frozen() bool { return b.frozen.Load() }

// Get looks up a parameter by id. Goroutines other than the one building the
// bank must check Frozen first.
func (b *Bank) Get(id string) (*Param, bool) {
	p, ok := b.params[id]
	return p, ok
}

// All returns parameters in registration order.
func (b *Bank) All() []*Param {
	out := make([]*Param, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.params[id])
	}
	return out
}

// Len returns the number of registered parameters.
func (b *Bank) Len() int { return len(b.order) }

// Snapshot copies current values keyed by id.
func (b *Bank) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(b.params))
	for id, p := range b.params {
		out[id] = p.Slot.Read()
	}
	return out
}

// Apply writes values into matching slots, clamped to range. Unknown ids are
// returned sorted so the caller can report them.
func (b *Bank) Apply(values map[string]float64) []string {
	var unknown []string
	for id, v := range values {
		p, ok := b.params[id]
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		p.Slot.Propose(p.Clamp(v))
	}
	sort.Strings(unknown)
	return unknown
}

// Reset returns every slot to its default value.
func (b *Bank) Reset() {
	for _, p := range b.params {
		p.Slot.Propose(p.Default)
	}
}
