// Package resolver works out which registered build targets a set of changed
// files affects.
package resolver

import (
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/loaderbuild/internal/models"
	"git.home.luguber.info/inful/loaderbuild/internal/registry"
)

// BuildDescriptorFile is the base name of directory-level build descriptors.
const BuildDescriptorFile = "build.json"

// Resolution is the outcome of one resolve call.
type Resolution struct {
	// Targets are the affected build-descriptor files, deduplicated in first-seen order.
	Targets []string
	// Builds are the build names the affected descriptors declare.
	Builds []string
}

// Empty reports whether nothing needs to be rebuilt.
func (r Resolution) Empty() bool { return len(r.Targets) == 0 }

// Resolver matches changed files against a registry. It never registers anything.
type Resolver struct {
	registry *registry.Registry
	skip     func(b *models.Bundle, path string) bool
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithSkip replaces the predicate deciding which changed files are ignored outright.
func WithSkip(skip func(b *models.Bundle, path string) bool) Option {
	return func(r *Resolver) { r.skip = skip }
}

// New creates a resolver reading from reg. By default the bundle's own
// generated loader files are skipped.
func New(reg *registry.Registry, opts ...Option) *Resolver {
	r := &Resolver{registry: reg, skip: SkipGeneratedLoader}
	for _, o := range opts {
		o(r)
	}
	return r
}

// SkipGeneratedLoader ignores loader-<bundle>.js and loader-<bundle>.json.
func SkipGeneratedLoader(b *models.Bundle, path string) bool {
	base := filepath.Base(path)
	name := b.LoaderModuleName()
	return base == name+".js" || base == name+".json"
}

// SkipGenerated ignores the client loader data file named by clientPath and the
// compiled loader module named by moduleName. Nil functions fall back to the
// loader-<bundle> names.
func SkipGenerated(clientPath, moduleName func(b *models.Bundle) string) func(b *models.Bundle, path string) bool {
	return func(b *models.Bundle, path string) bool {
		base := filepath.Base(path)
		if clientPath != nil && base == filepath.Base(clientPath(b)) {
			return true
		}
		if moduleName == nil {
			return SkipGeneratedLoader(b, path)
		}
		name := moduleName(b)
		return base == name+".js" || base == name+".json"
	}
}

// Resolve returns the targets affected by changed. A changed file is affected
// when it is itself a registered build file, or when it lives under the
// directory of a registered build.json listed in registeredBuildFiles.
func (r *Resolver) Resolve(b *models.Bundle, changed, registeredBuildFiles []string) Resolution {
	var res Resolution
	seenTarget := make(map[string]bool)
	seenBuild := make(map[string]bool)

	add := func(target string, e registry.Entry) {
		if seenTarget[target] {
			return
		}
		seenTarget[target] = true
		res.Targets = append(res.Targets, target)
		if !e.HasDescriptor() {
			return
		}
		for _, name := range e.Descriptor.BuildNames() {
			if !seenBuild[name] {
				seenBuild[name] = true
				res.Builds = append(res.Builds, name)
			}
		}
	}

	dirDescriptors := r.directoryDescriptors(b, registeredBuildFiles)

	for _, path := range changed {
		if r.skip != nil && r.skip(b, path) {
			continue
		}
		if e, ok := r.lookup(b, path); ok {
			add(path, e)
		}
		for _, dd := range dirDescriptors {
			if within(dd.dir, path) {
				add(dd.path, dd.entry)
			}
		}
	}
	return res
}

type dirDescriptor struct {
	path  string
	dir   string
	entry registry.Entry
}

func (r *Resolver) directoryDescriptors(b *models.Bundle, files []string) []dirDescriptor {
	var out []dirDescriptor
	for _, f := range files {
		if filepath.Base(f) != BuildDescriptorFile {
			continue
		}
		e, ok := r.lookup(b, f)
		if !ok {
			continue
		}
		abs := f
		if !filepath.IsAbs(abs) && b.BuildDirectory != "" {
			abs = filepath.Join(b.BuildDirectory, filepath.FromSlash(f))
		}
		out = append(out, dirDescriptor{path: f, dir: filepath.Dir(abs), entry: e})
	}
	return out
}

// lookup accepts registry keys that are either full paths or paths relative to
// the bundle's build directory.
func (r *Resolver) lookup(b *models.Bundle, path string) (registry.Entry, bool) {
	if e, ok := r.registry.Lookup(b.Name, path); ok {
		return e, true
	}
	if b.BuildDirectory == "" {
		return registry.Entry{}, false
	}
	rel, err := filepath.Rel(b.BuildDirectory, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return registry.Entry{}, false
	}
	return r.registry.Lookup(b.Name, filepath.ToSlash(rel))
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
