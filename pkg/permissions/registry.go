// Package permissions maps component types to the Android permissions they need
package permissions

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"

	"github.com/apkforge/apkforge/pkg/logger"
	"github.com/apkforge/apkforge/pkg/resources"
)

var (
	// ErrPermissionLoad indicates the permission document could not be read or parsed
	ErrPermissionLoad = errors.New("component permissions could not be loaded")

	// ErrUnknownComponent indicates a component type missing from the permission document
	ErrUnknownComponent = errors.New("unknown component type")
)

// LoadError wraps a failure to load the permission document
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%v: %v", ErrPermissionLoad, e.Err)
}

func (e *LoadError) Unwrap() []error {
	return []error{ErrPermissionLoad, e.Err}
}

// Resolver materializes bundled resources. Satisfied by *resources.Cache.
type Resolver interface {
	Resolve(logicalPath string) (string, error)
}

type componentEntry struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// Registry holds the component to permission map. It is loaded at most
// once successfully and is read-only afterwards.
type Registry struct {
	source func() ([]byte, error)
	logger logger.Logger

	mu         sync.Mutex
	loaded     bool
	components map[string]Set
}

// NewRegistry creates a registry that reads its document through resolver
func NewRegistry(resolver Resolver, log logger.Logger) *Registry {
	return newRegistry(func() ([]byte, error) {
		p, err := resolver.Resolve(resources.ComponentPermissions)
		if err != nil {
			return nil, err
		}
		return os.ReadFile(p)
	}, log)
}

// NewRegistryFS creates a registry that reads its document straight from fsys
func NewRegistryFS(fsys fs.FS, log logger.Logger) *Registry {
	return newRegistry(func() ([]byte, error) {
		return fs.ReadFile(fsys, resources.ComponentPermissions)
	}, log)
}

func newRegistry(source func() ([]byte, error), log logger.Logger) *Registry {
	if log == nil {
		log = logger.Discard()
	}
	return &Registry{source: source, logger: log}
}

// Load populates the registry. Concurrent callers block until the single
// load finishes; once loaded, further calls return immediately. A failed
// load leaves the registry empty so that a later call can retry.
func (r *Registry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		return nil
	}

	data, err := r.source()
	if err != nil {
		return &LoadError{Err: err}
	}

	var entries []componentEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return &LoadError{Err: err}
	}

	components := make(map[string]Set, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			return &LoadError{Err: errors.New("component entry without a name")}
		}
		set := components[e.Name]
		if set == nil {
			set = NewSet()
			components[e.Name] = set
		}
		set.Add(e.Permissions...)
	}

	r.components = components
	r.loaded = true
	r.logger.Debug("Loaded component permissions", logger.WithField("components", len(components)))
	return nil
}

// PermissionsFor returns the union of the permissions of every component
// type named. It loads the registry first if needed.
func (r *Registry) PermissionsFor(componentTypes []string) (Set, error) {
	if err := r.Load(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	result := NewSet()
	for _, ct := range componentTypes {
		perms, ok := r.components[ct]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, ct)
		}
		result.Union(perms)
	}
	return result, nil
}

// Components lists the known component types in sorted order
func (r *Registry) Components() ([]string, error) {
	if err := r.Load(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.components))
	for name := range r.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
