package param

import (
	"math"
	"sync/atomic"
)

// Channel is the cross-goroutine contract consumed by every continuous-control widget.
type Channel interface {
	Propose(v float64)
	Read() float64
}

// Slot is a single lock-free float64 value.
type Slot struct {
	bits atomic.Uint64
}

// NewSlot returns a slot initialised to v.
func NewSlot(v float64) *Slot {
	s := &Slot{}
	s.bits.Store(math.Float64bits(v))
	return s
}

// Propose publishes a UI-side value.
func (s *Slot) Propose(v float64) {
	s.bits.Store(math.Float64bits(v))
}

// Store publishes an engine-side authoritative value.
func (s *Slot) Store(v float64) {
	s.bits.Store(math.Float64bits(v))
}

// Read returns the most recently published value.
func (s *Slot) Read() float64 {
	return math.Float64frombits(s.bits.Load())
}
