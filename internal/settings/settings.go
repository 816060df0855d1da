package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
)

const skipLoadKey = "skipLoadOnLaunch"

// Settings is the persisted user settings document. The host owns only
// SkipLoadOnLaunch; every other key is carried through untouched.
type Settings struct {
	SkipLoadOnLaunch bool
	Prefs            map[string]json.RawMessage
}

// Store persists settings. Save must not return until the write is durable.
type Store interface {
	Load(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, s *Settings) error
}

// Clone returns a deep copy.
func (s *Settings) Clone() *Settings {
	out := &Settings{SkipLoadOnLaunch: s.SkipLoadOnLaunch, Prefs: make(map[string]json.RawMessage, len(s.Prefs))}
	maps.Copy(out.Prefs, s.Prefs)
	return out
}

func (s *Settings) MarshalJSON() ([]byte, error) {
	obj := make(map[string]json.RawMessage, len(s.Prefs)+1)
	maps.Copy(obj, s.Prefs)
	obj[skipLoadKey] = json.RawMessage("false")
	if s.SkipLoadOnLaunch {
		obj[skipLoadKey] = json.RawMessage("true")
	}
	return json.Marshal(obj)
}

func (s *Settings) UnmarshalJSON(b []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	s.SkipLoadOnLaunch = false
	if raw, ok := obj[skipLoadKey]; ok {
		if err := json.Unmarshal(raw, &s.SkipLoadOnLaunch); err != nil {
			return fmt.Errorf("decode %s: %w", skipLoadKey, err)
		}
		delete(obj, skipLoadKey)
	}
	if obj == nil {
		obj = map[string]json.RawMessage{}
	}
	s.Prefs = obj
	return nil
}
