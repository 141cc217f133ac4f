package gate

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Errors for registry operations.
var (
	// ErrUnknownGate indicates the requested id has neither a built-in
	// nor a registered factory. It is a usage error and aborts the
	// enclosing orchestrator run.
	ErrUnknownGate = errors.New("unknown gate")
)

// Diagnostic records a built-in gate that failed to construct during
// first-access loading. The gate is omitted from the registry and the
// run proceeds without it.
type Diagnostic struct {
	GateID ID     `json:"gate_id"`
	Reason string `json:"reason"`
}

// Registry binds gate identifiers to constructible gate instances.
//
// Built-in factories are supplied at construction (dependency injection
// at process start); their instances are still built on first access so
// callers that need a single gate do not pay for every gate's
// dependency graph. Get returns a cached singleton: the same id always
// yields the identical instance for the life of the registry.
//
// Registries are explicitly constructed and owned by their callers,
// never ambient process globals, so tests and concurrent runs can use
// isolated instances. All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	builtins map[ID]Factory
	custom   map[ID]Factory
	cache    map[ID]Gate
	diags    []Diagnostic
	loaded   bool
	logger   *zap.Logger
}

// NewRegistry creates a registry with the given built-in factories.
// builtins may be nil for a registry holding only custom gates.
func NewRegistry(builtins map[ID]Factory, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := make(map[ID]Factory, len(builtins))
	for id, f := range builtins {
		b[id] = f
	}
	return &Registry{
		builtins: b,
		custom:   make(map[ID]Factory),
		cache:    make(map[ID]Gate),
		logger:   logger,
	}
}

// ensureLoaded constructs every built-in gate exactly once. Caller must
// hold the write lock: the loaded flag is a mutex-guarded check-and-set
// so two concurrent first calls cannot observe a partially populated
// cache or double-construct a gate.
func (r *Registry) ensureLoaded() {
	if r.loaded {
		return
	}
	for id, factory := range r.builtins {
		if _, shadowed := r.custom[id]; shadowed {
			continue
		}
		g, err := factory()
		if err != nil {
			r.diags = append(r.diags, Diagnostic{GateID: id, Reason: err.Error()})
			r.logger.Warn("built-in gate unavailable",
				zap.String("gate_id", string(id)),
				zap.Error(err),
			)
			continue
		}
		r.cache[id] = g
	}
	r.loaded = true
}

// Register binds a custom factory to an id, replacing any previous
// binding and dropping a cached instance built from it. A custom
// binding shadows a built-in with the same id until Unregister.
func (r *Registry) Register(id ID, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.custom[id] = factory
	delete(r.cache, id)
}

// Unregister removes a custom factory and its cached instance. Built-in
// bindings are unaffected; a built-in shadowed by the removed binding
// becomes available again on the next access.
func (r *Registry) Unregister(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.custom, id)
	delete(r.cache, id)
}

// Get returns the gate bound to id, constructing and caching it on
// first access. Custom bindings take precedence over built-ins with the
// same id. It fails with ErrUnknownGate when the id has neither a
// built-in nor a custom factory.
func (r *Registry) Get(id ID) (Gate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ensureLoaded()

	// The cache only ever holds the instance of the effective binding:
	// ensureLoaded skips shadowed built-ins and Register drops the
	// shadowed instance.
	if g, ok := r.cache[id]; ok {
		return g, nil
	}

	factory, ok := r.custom[id]
	if !ok {
		// A built-in shadowed earlier and since unregistered is
		// constructed on demand here. A built-in that failed at load
		// stays omitted; its Diagnostic already records why.
		if factory, ok = r.builtins[id]; !ok || r.failedBuiltin(id) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownGate, id)
		}
	}

	g, err := factory()
	if err != nil {
		return nil, fmt.Errorf("constructing gate %s: %w", id, err)
	}
	r.cache[id] = g
	return g, nil
}

// failedBuiltin reports whether the built-in for id failed its one-time
// load. Caller must hold the lock.
func (r *Registry) failedBuiltin(id ID) bool {
	for _, d := range r.diags {
		if d.GateID == id {
			return true
		}
	}
	return false
}

// Has reports whether id resolves to a built-in or custom gate. A
// built-in whose factory failed to construct is not available.
func (r *Registry) Has(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ensureLoaded()

	if _, ok := r.custom[id]; ok {
		return true
	}
	if _, ok := r.cache[id]; ok {
		return true
	}
	_, ok := r.builtins[id]
	return ok && !r.failedBuiltin(id)
}

// List returns the ids of all available gates, sorted.
func (r *Registry) List() []ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ensureLoaded()

	seen := make(map[ID]struct{}, len(r.builtins)+len(r.custom))
	for id := range r.builtins {
		if !r.failedBuiltin(id) {
			seen[id] = struct{}{}
		}
	}
	for id := range r.custom {
		seen[id] = struct{}{}
	}

	ids := make([]ID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Diagnostics returns the built-in load failures recorded during first
// access. The slice is a copy.
func (r *Registry) Diagnostics() []Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ensureLoaded()

	out := make([]Diagnostic, len(r.diags))
	copy(out, r.diags)
	return out
}

// Clear drops all cached instances but keeps factories. The next Get
// reconstructs from the surviving bindings.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache = make(map[ID]Gate)
	r.diags = nil
	r.loaded = false
}

// Reset drops cached instances and custom factories, for testing.
// Built-in factories supplied at construction remain and reload on the
// next access.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache = make(map[ID]Gate)
	r.custom = make(map[ID]Factory)
	r.diags = nil
	r.loaded = false
}
