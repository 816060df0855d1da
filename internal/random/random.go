// Package random owns the host's entropy source for identifiers.
package random

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Init seeds identifier generation from r (crypto/rand when nil) and turns on
// the pooled generator. It fails if the source cannot produce bytes.
func Init(r io.Reader) error {
	if r == nil {
		r = rand.Reader
	}
	probe := make([]byte, 16)
	if _, err := io.ReadFull(r, probe); err != nil {
		return fmt.Errorf("entropy source unavailable: %w", err)
	}
	uuid.SetRand(r)
	uuid.EnableRandPool()
	return nil
}

// Destroy turns the pool off and restores the default source.
func Destroy() error {
	uuid.DisableRandPool()
	uuid.SetRand(nil)
	return nil
}

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.NewString()
}
