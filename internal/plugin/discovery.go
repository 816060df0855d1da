package plugin

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/rackhost/internal/log"
	"github.com/mattjoyce/rackhost/internal/param"
)

const manifestFilename = "manifest.yaml"

// Registry holds discovered plugins indexed by slug.
type Registry struct {
	plugins map[string]*Plugin
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]*Plugin),
	}
}

// Get retrieves a plugin by slug.
func (r *Registry) Get(slug string) (*Plugin, bool) {
	p, ok := r.plugins[slug]
	return p, ok
}

// Add registers a plugin in the registry.
func (r *Registry) Add(p *Plugin) error {
	if _, exists := r.plugins[p.Slug]; exists {
		return fmt.Errorf("plugin %q already registered", p.Slug)
	}
	r.plugins[p.Slug] = p
	return nil
}

// Sorted returns plugins ordered by slug.
func (r *Registry) Sorted() []*Plugin {
	out := make([]*Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

func (r *Registry) Len() int { return len(r.plugins) }

// DiscoverMany scans plugin roots for manifest.yaml files. Roots are processed
// in input order; missing roots are skipped; duplicate slugs keep the first
// discovered plugin. Invalid plugins are logged but not fatal.
func DiscoverMany(roots []string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registry := NewRegistry()
	seen := make(map[string]struct{}, len(roots))
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve plugin root %q: %w", root, err)
		}
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}

		info, err := os.Stat(abs)
		if os.IsNotExist(err) {
			logger.Debug("plugin root missing", "root", abs)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("stat plugin root %s: %w", abs, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("plugin root is not a directory: %s", abs)
		}

		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() || d.Name() != manifestFilename {
				return nil
			}

			p, err := loadPlugin(filepath.Dir(path), abs)
			if err != nil {
				logger.Warn("failed to load plugin", "root", abs, "path", filepath.Dir(path), "error", err)
				return nil
			}
			if err := registry.Add(p); err != nil {
				existing, _ := registry.Get(p.Slug)
				logger.Warn("duplicate plugin ignored (keeping first discovered)",
					"plugin", p.Slug, "ignored_path", p.Path, "kept_path", existing.Path)
				return nil
			}
			logger.Info("loaded plugin", "plugin", p.Slug, "path", p.Path, "version", p.Version, "modules", len(p.Modules))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan plugin root %s: %w", abs, err)
		}
	}
	return registry, nil
}

func loadPlugin(pluginPath, root string) (*Plugin, error) {
	if err := validateTrust(pluginPath, root); err != nil {
		return nil, fmt.Errorf("trust validation failed: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(pluginPath, manifestFilename))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest YAML: %w", err)
	}
	if err := validateManifest(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &Plugin{Manifest: m, Path: pluginPath}, nil
}

// validateTrust refuses plugin directories that resolve outside their root or
// that any user can write to.
func validateTrust(pluginPath, root string) error {
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("resolve plugin root symlink %s: %w", root, err)
	}
	resolved, err := filepath.EvalSymlinks(pluginPath)
	if err != nil {
		return fmt.Errorf("resolve plugin path symlink: %w", err)
	}
	if resolved != resolvedRoot && !strings.HasPrefix(resolved, resolvedRoot+string(os.PathSeparator)) {
		return fmt.Errorf("plugin %s is not under plugin root %s", resolved, resolvedRoot)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return fmt.Errorf("plugin directory not found: %w", err)
	}
	if info.Mode().Perm()&0o002 != 0 {
		return fmt.Errorf("plugin directory is world-writable: %s", resolved)
	}
	return nil
}

// Loader is the "plugin" subsystem. Init discovers plugins and registers every
// declared parameter, built-in ones first, in the bank.
type Loader struct {
	roots  []string
	bank   *param.Bank
	logger *slog.Logger

	registry *Registry
}

func NewLoader(roots []string, bank *param.Bank, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = log.WithComponent("plugin")
	}
	return &Loader{roots: roots, bank: bank, logger: logger}
}

func (l *Loader) Name() string { return "plugin" }

func (l *Loader) Init(ctx context.Context) error {
	reg, err := DiscoverMany(l.roots, l.logger)
	if err != nil {
		return err
	}

	plugins := append([]*Plugin{Core()}, reg.Sorted()...)
	for _, p := range plugins {
		if p.Slug == "core" && p.Path != "builtin" {
			l.logger.Warn("plugin slug reserved, skipping", "plugin", p.Slug, "path", p.Path)
			continue
		}
		specs := p.Specs()
		if id, clash := l.clash(specs); clash {
			l.logger.Warn("plugin param id already registered, skipping plugin", "plugin", p.Slug, "param", id)
			continue
		}
		for _, spec := range specs {
			if _, err := l.bank.Add(spec); err != nil {
				return fmt.Errorf("register %s params: %w", p.Slug, err)
			}
		}
	}
	l.registry = reg
	l.logger.Info("plugins loaded", "plugins", reg.Len(), "params", l.bank.Len())
	return nil
}

func (l *Loader) clash(specs []param.Spec) (string, bool) {
	for _, s := range specs {
		if _, exists := l.bank.Get(s.ID); exists {
			return s.ID, true
		}
	}
	return "", false
}

func (l *Loader) Destroy() error {
	l.registry = nil
	return nil
}

// Registry returns the discovered plugins, or nil before Init.
func (l *Loader) Registry() *Registry { return l.registry }
