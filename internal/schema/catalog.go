package schema

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"sync"
)

// DefaultKey is the schema version used when a caller does not name one.
const DefaultKey = "poliris-1.04"

//go:embed versions/*.yaml
var versionFiles embed.FS

var (
	catalog   = make(map[string]*Registry)
	catalogMu sync.RWMutex
)

func init() {
	if err := registerEmbedded(); err != nil {
		panic(err)
	}
}

// registerEmbedded registers every rule table shipped with the binary.
func registerEmbedded() error {
	files, err := fs.Glob(versionFiles, "versions/*.yaml")
	if err != nil {
		return err
	}
	for _, name := range files {
		data, err := versionFiles.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		reg, err := Parse(data)
		if err != nil {
			return fmt.Errorf("load %s: %w", name, err)
		}
		if err := Register(reg); err != nil {
			return err
		}
	}
	return nil
}

// Register adds a schema version to the catalog.
func Register(reg *Registry) error {
	catalogMu.Lock()
	defer catalogMu.Unlock()

	if _, exists := catalog[reg.Key()]; exists {
		return &SchemaError{Schema: reg.Key(), Reason: "already registered"}
	}
	catalog[reg.Key()] = reg
	return nil
}

// Replace registers reg, overwriting any version with the same key.
// Used at startup when a header resource renames an embedded version.
func Replace(reg *Registry) {
	catalogMu.Lock()
	defer catalogMu.Unlock()
	catalog[reg.Key()] = reg
}

// Get returns a schema version by key.
func Get(key string) (*Registry, bool) {
	catalogMu.RLock()
	defer catalogMu.RUnlock()

	reg, ok := catalog[key]
	return reg, ok
}

// Default returns the default schema version.
func Default() *Registry {
	reg, _ := Get(DefaultKey)
	return reg
}

// Keys returns all registered keys, sorted.
func Keys() []string {
	catalogMu.RLock()
	defer catalogMu.RUnlock()

	keys := make([]string, 0, len(catalog))
	for k := range catalog {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// All returns all registered versions sorted by key.
func All() []*Registry {
	keys := Keys()

	catalogMu.RLock()
	defer catalogMu.RUnlock()

	out := make([]*Registry, 0, len(keys))
	for _, k := range keys {
		if reg, ok := catalog[k]; ok {
			out = append(out, reg)
		}
	}
	return out
}

// Clear removes all registered versions.
// Primarily useful for testing.
func Clear() {
	catalogMu.Lock()
	defer catalogMu.Unlock()
	catalog = make(map[string]*Registry)
}
