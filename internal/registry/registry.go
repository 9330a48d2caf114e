// Package registry keeps, per bundle, the build descriptors registered by the
// upstream parser. Entries are keyed by build-descriptor path and keep their
// first registration position, so iteration is stable across cycles.
package registry

import (
	"slices"
	"sync"
	"time"

	ferrors "git.home.luguber.info/inful/loaderbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/loaderbuild/internal/models"
)

// ErrMissingBuildfile is returned when a descriptor without a buildfile path is registered.
var ErrMissingBuildfile = ferrors.RegistryError("build descriptor has no buildfile").Build()

// Entry is the value stored for one build-descriptor path: either a parsed
// descriptor or only the time the file was last seen.
type Entry struct {
	Descriptor *models.BuildDescriptor
	Timestamp  time.Time
}

// HasDescriptor reports whether the entry carries a parsed descriptor.
func (e Entry) HasDescriptor() bool { return e.Descriptor != nil }

type table struct {
	order    []string
	entries  map[string]Entry
	revision uint64
}

// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	bundles map[string]*table
	seq     uint64
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{bundles: make(map[string]*table)}
}

func (r *Registry) tableFor(bundle string) *table {
	t, ok := r.bundles[bundle]
	if !ok {
		t = &table{entries: make(map[string]Entry)}
		r.bundles[bundle] = t
	}
	return t
}

// bump must be called with the write lock held.
func (r *Registry) bump(t *table) {
	r.seq++
	t.revision = r.seq
}

// Register stores entry under (bundle, buildfile). A later registration for the
// same key replaces the entry but keeps its original position.
func (r *Registry) Register(bundle, buildfile string, entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.tableFor(bundle)
	if _, exists := t.entries[buildfile]; !exists {
		t.order = append(t.order, buildfile)
	}
	t.entries[buildfile] = entry
	r.bump(t)
}

// RegisterDescriptor registers d under its own buildfile path.
func (r *Registry) RegisterDescriptor(bundle string, d *models.BuildDescriptor) error {
	if d == nil || d.Buildfile == "" {
		return ErrMissingBuildfile.WithContext("bundle", bundle)
	}
	r.Register(bundle, d.Buildfile, Entry{Descriptor: d, Timestamp: time.Now()})
	return nil
}

// Touch records that buildfile was seen at ts without a parsed descriptor.
// It replaces any descriptor previously stored under that key.
func (r *Registry) Touch(bundle, buildfile string, ts time.Time) {
	r.Register(bundle, buildfile, Entry{Timestamp: ts})
}

// ReplaceBundle swaps the whole table of bundle for descriptors, in the given order.
func (r *Registry) ReplaceBundle(bundle string, descriptors []*models.BuildDescriptor) error {
	t := &table{entries: make(map[string]Entry, len(descriptors))}
	now := time.Now()
	for _, d := range descriptors {
		if d == nil || d.Buildfile == "" {
			return ErrMissingBuildfile.WithContext("bundle", bundle)
		}
		if _, exists := t.entries[d.Buildfile]; !exists {
			t.order = append(t.order, d.Buildfile)
		}
		t.entries[d.Buildfile] = Entry{Descriptor: d, Timestamp: now}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bundles[bundle] = t
	r.bump(t)
	return nil
}

// RemoveBundle forgets every entry of bundle.
func (r *Registry) RemoveBundle(bundle string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bundles, bundle)
}

// Lookup returns the entry stored under (bundle, buildfile).
func (r *Registry) Lookup(bundle, buildfile string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.bundles[bundle]
	if !ok {
		return Entry{}, false
	}
	e, ok := t.entries[buildfile]
	return e, ok
}

// Descriptor returns the descriptor stored under (bundle, buildfile), if any.
func (r *Registry) Descriptor(bundle, buildfile string) (*models.BuildDescriptor, bool) {
	e, ok := r.Lookup(bundle, buildfile)
	if !ok || !e.HasDescriptor() {
		return nil, false
	}
	return e.Descriptor, true
}

// Buildfiles lists every registered path of bundle in registration order.
func (r *Registry) Buildfiles(bundle string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.bundles[bundle]
	if !ok {
		return nil
	}
	return slices.Clone(t.order)
}

// Descriptors lists the parsed descriptors of bundle in registration order.
// Timestamp-only entries are skipped.
func (r *Registry) Descriptors(bundle string) []*models.BuildDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.bundles[bundle]
	if !ok {
		return nil
	}
	out := make([]*models.BuildDescriptor, 0, len(t.order))
	for _, path := range t.order {
		if e := t.entries[path]; e.HasDescriptor() {
			out = append(out, e.Descriptor)
		}
	}
	return out
}

// Revision changes whenever the table of bundle changes. Zero means the bundle
// has never been registered.
func (r *Registry) Revision(bundle string) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.bundles[bundle]; ok {
		return t.revision
	}
	return 0
}

// Bundles returns the names of all bundles with a table, sorted.
func (r *Registry) Bundles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.bundles))
	for name := range r.bundles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Count returns the number of entries registered for bundle.
func (r *Registry) Count(bundle string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.bundles[bundle]; ok {
		return len(t.order)
	}
	return 0
}
