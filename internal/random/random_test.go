package random

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("dry") }

func TestInitFailsWithoutEntropy(t *testing.T) {
	if err := Init(failingReader{}); err == nil {
		t.Fatal("expected error from failing source")
	}
}

func TestNewIDUnique(t *testing.T) {
	if err := Init(nil); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = Destroy() })

	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := NewID()
		if _, err := uuid.Parse(id); err != nil {
			t.Fatalf("invalid id %q: %v", id, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}
