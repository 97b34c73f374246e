package function

import (
	"fmt"
	"sort"
	"sync"
)

// Constructor builds a strategy from resolved parameters.
type Constructor func(p Params, count RequestCount) (GenFunction, error)

// Entry describes a registered strategy.
type Entry struct {
	Name   string      `json:"name"`
	Title  string      `json:"title"`
	Help   string      `json:"help"`
	Params []ParamSpec `json:"params"`
	build  Constructor
}

// Registry maps strategy names to their parameter schemas and constructors.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds a strategy. Registering a name twice is an error.
func (r *Registry) Register(e Entry, build Constructor) error {
	if e.Name == "" {
		return fmt.Errorf("register: empty strategy name")
	}
	if build == nil {
		return fmt.Errorf("register %s: nil constructor", e.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[e.Name]; ok {
		return fmt.Errorf("register %s: already registered", e.Name)
	}
	e.build = build
	r.entries[e.Name] = e
	return nil
}

// Lookup returns the entry registered under name.
func (r *Registry) Lookup(name string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownFunction, name)
	}
	return e, nil
}

// Names returns the registered strategy names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Describe returns the parameter schema of a strategy.
func (r *Registry) Describe(name string) ([]ParamSpec, error) {
	e, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	out := make([]ParamSpec, len(e.Params))
	copy(out, e.Params)
	return out, nil
}

// Resolve validates kwargs against the schema of a strategy and returns the
// full parameter set with defaults filled in.
func (r *Registry) Resolve(name string, kwargs map[string]any) (Params, error) {
	e, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return resolveParams(name, e.Params, kwargs)
}

// Build validates kwargs and constructs the strategy.
func (r *Registry) Build(name string, kwargs map[string]any, count RequestCount) (GenFunction, error) {
	e, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	p, err := resolveParams(name, e.Params, kwargs)
	if err != nil {
		return nil, err
	}
	return e.build(p, count)
}

// Default is the registry holding the built-in strategies.
var Default = newDefaultRegistry()

func newDefaultRegistry() *Registry {
	r := NewRegistry()
	mustRegister(r, Entry{
		Name:   NameRandomGenerator,
		Title:  "Random Generator",
		Help:   "uniform file choice, sizes drawn uniformly per request",
		Params: randomParams(),
	}, constructor(NewRandomGenerator))
	mustRegister(r, Entry{
		Name:   NameHighFrequencyDataset,
		Title:  "High Frequency Dataset",
		Help:   "a small frequent file subset receives most requests",
		Params: highFrequencyParams(),
	}, constructor(NewHighFrequencyDataset))
	mustRegister(r, Entry{
		Name:   NameRecencyFocusedDataset,
		Title:  "Recency Focused Dataset",
		Help:   "recently created files are requested more often",
		Params: recencyParams(),
	}, constructor(NewRecencyFocusedDataset))
	mustRegister(r, Entry{
		Name:   NameSizeFocusedDataset,
		Title:  "Size Focused Dataset",
		Help:   "sizes from a primary range plus outliers from a noise range",
		Params: sizeFocusedParams(),
	}, constructor(NewSizeFocusedDataset))
	return r
}

// constructor adapts a typed constructor, keeping a nil interface on error.
func constructor[T GenFunction](f func(Params, RequestCount) (T, error)) Constructor {
	return func(p Params, c RequestCount) (GenFunction, error) {
		g, err := f(p, c)
		if err != nil {
			return nil, err
		}
		return g, nil
	}
}

func mustRegister(r *Registry, e Entry, build Constructor) {
	if err := r.Register(e, build); err != nil {
		panic(err)
	}
}
