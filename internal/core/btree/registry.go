package btree

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnregistered is wrapped by factory lookups for names nothing registered.
var ErrUnregistered = errors.New("unregistered name")

type (
	LeafFactory      func(params map[string]any) (Leaf, error)
	ConditionFactory func(params map[string]any) (Condition, error)
)

// Registry maps the leaf and condition names used by definitions to factories.
// The binder resolves every name once; evaluation never touches the registry.
type Registry struct {
	mu     sync.RWMutex
	leaves map[string]LeafFactory
	conds  map[string]ConditionFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		leaves: make(map[string]LeafFactory),
		conds:  make(map[string]ConditionFactory),
	}
}

func (r *Registry) RegisterLeaf(name string, factory LeafFactory) {
	r.mu.Lock()
	r.leaves[name] = factory
	r.mu.Unlock()
}

func (r *Registry) RegisterCondition(name string, factory ConditionFactory) {
	r.mu.Lock()
	r.conds[name] = factory
	r.mu.Unlock()
}

// RegisterLeafValue registers a stateless leaf that ignores params.
func (r *Registry) RegisterLeafValue(name string, leaf Leaf) {
	r.RegisterLeaf(name, func(map[string]any) (Leaf, error) { return leaf, nil })
}

// RegisterConditionValue registers a stateless condition that ignores params.
func (r *Registry) RegisterConditionValue(name string, cond Condition) {
	r.RegisterCondition(name, func(map[string]any) (Condition, error) { return cond, nil })
}

func (r *Registry) NewLeaf(name string, params map[string]any) (Leaf, error) {
	r.mu.RLock()
	f := r.leaves[name]
	r.mu.RUnlock()
	if f == nil {
		return nil, fmt.Errorf("%w: leaf %q", ErrUnregistered, name)
	}
	return f(params)
}

func (r *Registry) NewCondition(name string, params map[string]any) (Condition, error) {
	r.mu.RLock()
	f := r.conds[name]
	r.mu.RUnlock()
	if f == nil {
		return nil, fmt.Errorf("%w: condition %q", ErrUnregistered, name)
	}
	return f(params)
}

// Leaves lists registered leaf names, sorted.
func (r *Registry) Leaves() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.leaves)
}

// Conditions lists registered condition names, sorted.
func (r *Registry) Conditions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.conds)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
