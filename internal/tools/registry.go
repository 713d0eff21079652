package tools

import (
	"sort"
	"strings"
	"sync"

	"advisor/pkg/errors"
)

// Registry maps tool names to implementations. Tools are registered and
// wrapped at startup; agents only read from it afterwards.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds tools. A name registered twice is a wiring bug and is
// rejected with ErrConfig.
func (r *Registry) Register(ts ...Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range ts {
		if _, dup := r.tools[t.Name()]; dup {
			return errors.Wrapf(errors.ErrConfig, "tool %s registered twice", t.Name())
		}
		r.tools[t.Name()] = t
	}
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns the registered names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select resolves names to tools in the given order.
func (r *Registry) Select(names ...string) ([]Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(names))
	for _, name := range names {
		t, ok := r.tools[name]
		if !ok {
			return nil, errors.Wrapf(errors.ErrNotFound, "tool %s is not registered", name)
		}
		out = append(out, t)
	}
	return out, nil
}

// Verify checks that every catalog definition has an implementation.
func (r *Registry) Verify(defs []Definition) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing []string
	for _, def := range defs {
		if _, ok := r.tools[def.Name]; !ok {
			missing = append(missing, def.Name)
		}
	}
	if len(missing) > 0 {
		return errors.Wrapf(errors.ErrConfig, "catalog tools without implementation: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Wrap applies middleware to every registered tool.
func (r *Registry) Wrap(mw ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, t := range r.tools {
		r.tools[name] = Chain(t, mw...)
	}
}

// Middleware decorates a tool.
type Middleware interface {
	Wrap(t Tool) Tool
}

// Chain applies middleware so the first listed is the outermost.
func Chain(t Tool, mw ...Middleware) Tool {
	for i := len(mw) - 1; i >= 0; i-- {
		if mw[i] != nil {
			t = mw[i].Wrap(t)
		}
	}
	return t
}
