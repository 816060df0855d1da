// Package asset resolves the system and user directories of a run.
package asset

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dirs holds resolved asset directories.
type Dirs struct {
	System string
	User   string
}

// Resolve fills in missing directories. In dev mode both default to the
// working directory; otherwise the system dir is next to the executable and
// the user dir is the per-user config directory.
func Resolve(devMode bool, systemDir, userDir string) (Dirs, error) {
	d := Dirs{System: systemDir, User: userDir}

	if devMode {
		cwd, err := os.Getwd()
		if err != nil {
			return Dirs{}, fmt.Errorf("resolve working directory: %w", err)
		}
		if d.System == "" {
			d.System = cwd
		}
		if d.User == "" {
			d.User = cwd
		}
	}

	if d.System == "" {
		exe, err := os.Executable()
		if err != nil {
			return Dirs{}, fmt.Errorf("resolve executable: %w", err)
		}
		d.System = filepath.Dir(exe)
	}
	if d.User == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return Dirs{}, fmt.Errorf("resolve user config dir: %w", err)
		}
		d.User = filepath.Join(base, "Rack")
	}

	var err error
	if d.System, err = filepath.Abs(d.System); err != nil {
		return Dirs{}, fmt.Errorf("resolve system dir: %w", err)
	}
	if d.User, err = filepath.Abs(d.User); err != nil {
		return Dirs{}, fmt.Errorf("resolve user dir: %w", err)
	}
	return d, nil
}

// Init creates the user directory.
func (d Dirs) Init() error {
	if err := os.MkdirAll(d.User, 0o755); err != nil {
		return fmt.Errorf("create user dir: %w", err)
	}
	return nil
}

// UserPath joins name onto the user directory.
func (d Dirs) UserPath(name string) string { return filepath.Join(d.User, name) }

// SystemPath joins name onto the system directory.
func (d Dirs) SystemPath(name string) string { return filepath.Join(d.System, name) }

// Well-known user files.
func (d Dirs) Autosave() string { return d.UserPath("autosave.vcv") }
func (d Dirs) Settings() string { return d.UserPath("settings.db") }
func (d Dirs) Config() string   { return d.UserPath("config.yaml") }
func (d Dirs) Plugins() string  { return d.UserPath("plugins") }
