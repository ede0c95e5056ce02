package btree

import (
	"maps"
	"sort"
	"sync"
)

// Blackboard is an agent's key/value memory. Leaves and guard conditions read it
// through the Frame's World. Evaluation of one agent is exclusive, the lock only
// matters for readers outside the tick (telemetry, persistence).
type Blackboard struct {
	mu      sync.RWMutex
	data    map[string]any
	version uint64
}

// NewBlackboard creates an empty blackboard
func NewBlackboard() *Blackboard {
	return &Blackboard{data: make(map[string]any)}
}

// Set stores a value
func (bb *Blackboard) Set(key string, value any) {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	bb.data[key] = value
	bb.version++
}

// Get retrieves a value
func (bb *Blackboard) Get(key string) (any, bool) {
	bb.mu.RLock()
	defer bb.mu.RUnlock()

	value, exists := bb.data[key]
	return value, exists
}

// GetBool retrieves a boolean value
func (bb *Blackboard) GetBool(key string) (bool, bool) {
	value, exists := bb.Get(key)
	if !exists {
		return false, false
	}

	b, ok := value.(bool)
	return b, ok
}

// GetInt retrieves an integer value, accepting the numeric shapes decoders produce.
func (bb *Blackboard) GetInt(key string) (int64, bool) {
	value, exists := bb.Get(key)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case uint64:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// Delete removes a key
func (bb *Blackboard) Delete(key string) {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	if _, ok := bb.data[key]; ok {
		delete(bb.data, key)
		bb.version++
	}
}

// Keys returns the sorted key set.
func (bb *Blackboard) Keys() []string {
	bb.mu.RLock()
	defer bb.mu.RUnlock()

	keys := make([]string, 0, len(bb.data))
	for key := range bb.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot copies the current contents.
func (bb *Blackboard) Snapshot() map[string]any {
	bb.mu.RLock()
	out := make(map[string]any, len(bb.data))
	bb.mu.RUnlock()

	bb.CopyTo(out)
	return out
}

// CopyTo writes the current contents into dst. Keys already in dst and absent here
// are left alone.
func (bb *Blackboard) CopyTo(dst map[string]any) {
	bb.mu.RLock()
	defer bb.mu.RUnlock()

	maps.Copy(dst, bb.data)
}

// Version increases on every mutation.
func (bb *Blackboard) Version() uint64 {
	bb.mu.RLock()
	defer bb.mu.RUnlock()

	return bb.version
}

// Clear removes all data
func (bb *Blackboard) Clear() {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	clear(bb.data)
	bb.version++
}
