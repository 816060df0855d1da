package settings

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore keeps settings in memory. It stands in when the settings
// database cannot be opened, so a run can still complete.
type MemoryStore struct {
	mu sync.Mutex
	s  *Settings
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load(context.Context) (*Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.s == nil {
		return &Settings{Prefs: map[string]json.RawMessage{}}, nil
	}
	return m.s.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s *Settings) error {
	m.mu.Lock()
	m.s = s.Clone()
	m.mu.Unlock()
	return nil
}
