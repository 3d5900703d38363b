// Package reconciler defines lookup modules and the registry that lists them.
//
// A module bundles everything the pipeline needs to enrich one kind of entry:
// how to address the API (locator), how it pages (pager), how to read a page
// (decoder) and which predicates decide a match. Modules register themselves
// from init functions in their own packages.
package reconciler

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Sternrassler/lookup-reconciler/pkg/locator"
	"github.com/Sternrassler/lookup-reconciler/pkg/matcher"
	"github.com/Sternrassler/lookup-reconciler/pkg/pagination"
	"github.com/Sternrassler/lookup-reconciler/pkg/record"
)

// ErrConfig is matched by every *ConfigError.
var ErrConfig = errors.New("invalid module configuration")

// ConfigError reports a module that cannot be built from its settings.
type ConfigError struct {
	Module string
	Option string
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Option == "" {
		return fmt.Sprintf("module %s: %s", e.Module, e.Reason)
	}
	return fmt.Sprintf("module %s: option %s: %s", e.Module, e.Option, e.Reason)
}

// Is implements errors.Is support.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// Option is one configuration setting a module accepts.
type Option struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty"`
}

// Manifest is a module's self-description.
type Manifest struct {
	ID          string        `json:"id" yaml:"id"`
	Description string        `json:"description" yaml:"description"`
	Options     []Option      `json:"options" yaml:"options"`
	Columns     record.Schema `json:"columns" yaml:"columns"`
	NoMatch     string        `json:"noMatch" yaml:"noMatch"`
}

// Settings map option names to values. Column options hold entry column
// names; flag options hold "true" or "false".
type Settings map[string]string

// Get returns the trimmed value of an option.
func (s Settings) Get(name string) string {
	return strings.TrimSpace(s[name])
}

// Bool reports whether a flag option is set to a true value.
func (s Settings) Bool(name string) bool {
	v, err := strconv.ParseBool(s.Get(name))
	return err == nil && v
}

// Module is a built module ready for a pipeline.
type Module struct {
	Manifest Manifest
	Locator  locator.Config
	Pager    pagination.Pager
	Decoder  matcher.Decoder
	Matcher  matcher.Config
}

// Schema returns the module's output columns.
func (m *Module) Schema() record.Schema {
	return m.Manifest.Columns
}

// Factory builds a module from settings.
type Factory func(settings Settings) (*Module, error)

// Registration couples a manifest with its factory.
type Registration struct {
	Manifest Manifest
	Factory  Factory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Registration)
)

// Register adds a module. It panics on a duplicate or empty ID.
func Register(manifest Manifest, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if manifest.ID == "" {
		panic("reconciler: Register with empty module id")
	}
	if factory == nil {
		panic("reconciler: Register with nil factory for " + manifest.ID)
	}
	if _, dup := registry[manifest.ID]; dup {
		panic("reconciler: Register called twice for " + manifest.ID)
	}
	registry[manifest.ID] = Registration{Manifest: manifest, Factory: factory}
}

// Lookup returns the registration for id.
func Lookup(id string) (Registration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	r, ok := registry[id]
	return r, ok
}

// All returns every registered manifest sorted by ID.
func All() []Manifest {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]Manifest, 0, len(registry))
	for _, r := range registry {
		out = append(out, r.Manifest)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Build looks up id, checks required options and runs its factory.
func Build(id string, settings Settings) (*Module, error) {
	r, ok := Lookup(id)
	if !ok {
		return nil, &ConfigError{Module: id, Reason: "unknown module"}
	}
	settings = Canonical(r.Manifest, settings)
	if err := Validate(r.Manifest, settings); err != nil {
		return nil, err
	}
	m, err := r.Factory(settings)
	if err != nil {
		return nil, err
	}
	m.Manifest = r.Manifest
	return m, nil
}

// Canonical rewrites option names to the manifest's spelling, matching
// case-insensitively. Configuration layers that fold keys to lower case rely on it.
func Canonical(manifest Manifest, settings Settings) Settings {
	names := make(map[string]string, len(manifest.Options))
	for _, opt := range manifest.Options {
		names[strings.ToLower(opt.Name)] = opt.Name
	}

	out := make(Settings, len(settings))
	for k, v := range settings {
		if name, ok := names[strings.ToLower(k)]; ok {
			out[name] = v
			continue
		}
		out[k] = v
	}
	return out
}

// Validate checks that every required option is set and no unknown option is given.
func Validate(manifest Manifest, settings Settings) error {
	known := make(map[string]bool, len(manifest.Options))
	for _, opt := range manifest.Options {
		known[opt.Name] = true
		if opt.Required && settings.Get(opt.Name) == "" {
			return &ConfigError{Module: manifest.ID, Option: opt.Name, Reason: "is required"}
		}
	}

	var unknown []string
	for name := range settings {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return &ConfigError{Module: manifest.ID, Reason: "unknown options " + strings.Join(unknown, ", ")}
	}
	return nil
}
