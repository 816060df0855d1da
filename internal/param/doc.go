// Package param implements the value channel shared between control widgets
// and the engine goroutine.
//
// Each parameter owns a Slot holding one float64 as atomic bits. The UI side
// publishes intent with Propose, the engine reads at the top of every block
// and may Store values of its own when a parameter is driven externally.
// Nothing on this path takes a lock.
//
// Knob is the vertical-drag state machine used by continuous-control widgets.
// It only ever talks to a Channel, so sliders and remote controls reuse the
// same contract.
package param
