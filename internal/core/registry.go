package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]*Definition)
	registryMu sync.RWMutex
)

// Register adds a form definition to the registry.
// Panics if a form with the same key is already registered or if the
// definition does not validate.
func Register(def Definition) {
	if def.index == nil {
		if err := def.normalize(); err != nil {
			panic(fmt.Sprintf("invalid form definition %q: %v", def.Key, err))
		}
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Key]; exists {
		panic(fmt.Sprintf("form already registered: %s", def.Key))
	}
	registry[def.Key] = &def
}

// Get returns a form definition by key.
// Returns false if not found.
func Get(key string) (*Definition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// All returns all registered definitions sorted by key.
func All() []*Definition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]*Definition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})
	return result
}

// FormCount returns the number of registered forms.
func FormCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered forms.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]*Definition)
}
