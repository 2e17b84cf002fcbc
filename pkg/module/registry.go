// SPDX-License-Identifier: Apache-2.0

package module

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Registry holds loaded module descriptors keyed by name.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*Module
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]*Module)}
}

// Register validates and stores a module. Registering a name twice fails.
func (r *Registry) Register(m *Module) error {
	if err := m.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[m.Name]; exists {
		return fmt.Errorf("module %q is already registered", m.Name)
	}
	r.modules[m.Name] = m
	return nil
}

// Get returns a module by name. It satisfies the Lookup signature.
func (r *Registry) Get(name string) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	return m, ok
}

// List returns all registered modules sorted by name.
func (r *Registry) List() []*Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Module, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.modules)
}

// ReloadDir re-scans dir and atomically replaces the registry contents.
// On a failed scan the current contents stay in place, so lookups held by
// a running orchestrator never observe a half-loaded registry.
func (r *Registry) ReloadDir(dir string) error {
	next := NewRegistry()
	if err := next.LoadDir(dir); err != nil {
		return err
	}
	r.mu.Lock()
	r.modules = next.modules
	r.mu.Unlock()
	return nil
}

// LoadDir walks a directory tree and registers every .yaml/.yml/.json
// manifest found. The first error aborts the walk.
func (r *Registry) LoadDir(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml", ".json":
		default:
			return nil
		}
		m, err := LoadFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := r.Register(m); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		return nil
	})
}
