// Package registry records which artifacts are present in the process.
//
// A [Registry] holds two namespaces: library keys (group:artifact[:suffix])
// and mod ids. Each entry remembers the version that was loaded and who
// requested it first. Writes are insert-if-absent and the registry never
// shrinks, so the first loader of an artifact owns it for the process
// lifetime.
package registry

import (
	"sort"
	"sync"

	"github.com/matzehuels/deploader/pkg/version"
)

// Entry is a loaded artifact version and the requester that loaded it.
type Entry struct {
	Version version.Version
	Owner   string
}

// Registry is a concurrent record of loaded libraries and mods.
// The zero value is ready to use.
type Registry struct {
	libraries sync.Map // string -> Entry
	mods      sync.Map // string -> Entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// RegisterLibrary records key as loaded with v by owner. It returns false
// and leaves the existing entry untouched when key is already present.
func (r *Registry) RegisterLibrary(key string, v version.Version, owner string) bool {
	_, loaded := r.libraries.LoadOrStore(key, Entry{Version: v, Owner: owner})
	return !loaded
}

// Library returns the entry for a library key.
func (r *Registry) Library(key string) (Entry, bool) {
	e, ok := r.libraries.Load(key)
	if !ok {
		return Entry{}, false
	}
	return e.(Entry), true
}

// RegisterMod records a mod id as present with v. Like [Registry.RegisterLibrary]
// it never overwrites.
func (r *Registry) RegisterMod(id string, v version.Version, owner string) bool {
	_, loaded := r.mods.LoadOrStore(id, Entry{Version: v, Owner: owner})
	return !loaded
}

// Mod returns the entry for a mod id.
func (r *Registry) Mod(id string) (Entry, bool) {
	e, ok := r.mods.Load(id)
	if !ok {
		return Entry{}, false
	}
	return e.(Entry), true
}

// Libraries returns a snapshot of all library entries.
func (r *Registry) Libraries() map[string]Entry {
	return snapshot(&r.libraries)
}

// Mods returns a snapshot of all mod entries.
func (r *Registry) Mods() map[string]Entry {
	return snapshot(&r.mods)
}

// LibraryKeys returns the registered library keys in sorted order.
func (r *Registry) LibraryKeys() []string {
	return sortedKeys(r.Libraries())
}

// ModIDs returns the registered mod ids in sorted order.
func (r *Registry) ModIDs() []string {
	return sortedKeys(r.Mods())
}

func snapshot(m *sync.Map) map[string]Entry {
	out := make(map[string]Entry)
	m.Range(func(k, v any) bool {
		out[k.(string)] = v.(Entry)
		return true
	})
	return out
}

func sortedKeys(m map[string]Entry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
