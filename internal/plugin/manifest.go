package plugin

import (
	"fmt"
	"math"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/rackhost/internal/param"
)

const SupportedManifestVersion = 1

// ParamDecl declares one continuous parameter of a module.
type ParamDecl struct {
	ID      string  `yaml:"id"`
	Name    string  `yaml:"name,omitempty"`
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
	Default float64 `yaml:"default"`
}

// Params is a list of parameter declarations.
//
// Accepted formats:
//   - compact string array: params: [cutoff, resonance] (unit range, default 0)
//   - object array: params: [{id: cutoff, min: 0, max: 10, default: 5}]
type Params []ParamDecl

func (p *Params) UnmarshalYAML(n *yaml.Node) error {
	if n == nil {
		*p = nil
		return nil
	}
	if n.Kind != yaml.SequenceNode {
		return fmt.Errorf("params must be a sequence")
	}

	out := make([]ParamDecl, 0, len(n.Content))
	for _, item := range n.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			id := strings.TrimSpace(item.Value)
			out = append(out, ParamDecl{ID: id, Name: id, Min: 0, Max: 1})
		case yaml.MappingNode:
			var tmp ParamDecl
			// Unit range unless overridden.
			tmp.Max = 1
			if err := item.Decode(&tmp); err != nil {
				return fmt.Errorf("invalid param object: %w", err)
			}
			tmp.ID = strings.TrimSpace(tmp.ID)
			if tmp.Name == "" {
				tmp.Name = tmp.ID
			}
			out = append(out, tmp)
		default:
			return fmt.Errorf("invalid param entry (must be string or object)")
		}
	}
	*p = out
	return nil
}

// Module declares a module type and its parameters.
type Module struct {
	Slug        string `yaml:"slug"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Params      Params `yaml:"params"`
}

// Manifest is the manifest.yaml of a plugin directory.
type Manifest struct {
	ManifestVersion int      `yaml:"manifest_version"`
	Slug            string   `yaml:"slug"`
	Name            string   `yaml:"name"`
	Version         string   `yaml:"version"`
	Description     string   `yaml:"description,omitempty"`
	Modules         []Module `yaml:"modules"`
}

// Plugin is a validated manifest plus where it was found.
type Plugin struct {
	Manifest
	Path string
}

// ParamID is the bank id of a module parameter.
func ParamID(plugin, module, param string) string {
	return strings.ToLower(plugin + "." + module + "." + param)
}

// Specs returns the bank specs for every parameter the plugin declares.
func (p *Plugin) Specs() []param.Spec {
	var out []param.Spec
	for _, m := range p.Modules {
		for _, d := range m.Params {
			out = append(out, param.Spec{
				ID:      ParamID(p.Slug, m.Slug, d.ID),
				Name:    m.Name + " " + d.Name,
				Min:     d.Min,
				Max:     d.Max,
				Default: d.Default,
			})
		}
	}
	return out
}

func validSlug(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

func validateManifest(m *Manifest) error {
	if m.ManifestVersion == 0 {
		return fmt.Errorf("manifest_version is required")
	}
	if m.ManifestVersion != SupportedManifestVersion {
		return fmt.Errorf("unsupported manifest_version %d (supported: %d)", m.ManifestVersion, SupportedManifestVersion)
	}
	if !validSlug(m.Slug) {
		return fmt.Errorf("invalid plugin slug %q", m.Slug)
	}
	if len(m.Modules) == 0 {
		return fmt.Errorf("at least one module must be declared")
	}

	modules := make(map[string]bool, len(m.Modules))
	for _, mod := range m.Modules {
		if !validSlug(mod.Slug) {
			return fmt.Errorf("invalid module slug %q", mod.Slug)
		}
		if modules[mod.Slug] {
			return fmt.Errorf("duplicate module %q", mod.Slug)
		}
		modules[mod.Slug] = true

		params := make(map[string]bool, len(mod.Params))
		for _, d := range mod.Params {
			if !validSlug(d.ID) {
				return fmt.Errorf("module %s: invalid param id %q", mod.Slug, d.ID)
			}
			if params[d.ID] {
				return fmt.Errorf("module %s: duplicate param %q", mod.Slug, d.ID)
			}
			params[d.ID] = true
			if !finite(d.Min) || !finite(d.Max) || !finite(d.Default) {
				return fmt.Errorf("module %s param %s: min, max and default must be finite", mod.Slug, d.ID)
			}
			if d.Min >= d.Max {
				return fmt.Errorf("module %s param %s: min %v must be below max %v", mod.Slug, d.ID, d.Min, d.Max)
			}
			if d.Default < d.Min || d.Default > d.Max {
				return fmt.Errorf("module %s param %s: default %v outside [%v, %v]", mod.Slug, d.ID, d.Default, d.Min, d.Max)
			}
		}
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Core is the built-in plugin that is always present.
func Core() *Plugin {
	return &Plugin{
		Manifest: Manifest{
			ManifestVersion: SupportedManifestVersion,
			Slug:            "core",
			Name:            "Core",
			Version:         "1.0.0",
			Modules: []Module{
				{
					Slug: "audio",
					Name: "Audio",
					Params: Params{
						{ID: "level", Name: "Level", Min: 0, Max: 1, Default: 1},
					},
				},
				{
					Slug: "midi-cv",
					Name: "MIDI-CV",
					Params: Params{
						{ID: "glide", Name: "Glide", Min: 0, Max: 1, Default: 0},
						{ID: "bend", Name: "Bend range", Min: 0, Max: 24, Default: 2},
					},
				},
			},
		},
		Path: "builtin",
	}
}
