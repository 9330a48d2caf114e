// Package models holds the data types shared by the loader build pipeline:
// bundles and their change notifications, build descriptors registered for a
// bundle, and the loader metadata produced from them.
package models

import (
	"path/filepath"
	"slices"
	"strings"
)

// Affinity says where a build target runs.
type Affinity string

const (
	AffinityNone   Affinity = ""
	AffinityClient Affinity = "client"
	AffinityServer Affinity = "server"
	AffinityCommon Affinity = "common"
)

// ParseAffinity normalizes a raw affinity value. Unknown values are kept verbatim
// so that aggregation can pass them through untouched.
func ParseAffinity(raw string) Affinity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "client":
		return AffinityClient
	case "server":
		return AffinityServer
	case "common":
		return AffinityCommon
	case "":
		return AffinityNone
	default:
		return Affinity(raw)
	}
}

// Bundle is a named unit of application code with its own build output tree.
// The host owns it; the pipeline only sets Loader.Server.
type Bundle struct {
	Name           string
	BuildDirectory string
	// CSSProc, when set, is handed to the compiler as the CSS post-processing target.
	CSSProc string
	Loader  *LoaderHolder
}

// LoaderHolder is the namespaced loader metadata attached to a bundle.
type LoaderHolder struct {
	Server map[string]ModuleMeta
}

// LoaderModuleName returns the conventional name of the bundle's loader meta-module.
func (b *Bundle) LoaderModuleName() string {
	return "loader-" + b.Name
}

// ChangeEvent is one changed file of a bundle-update notification.
type ChangeEvent struct {
	FullPath     string `json:"fullPath"`
	RelativePath string `json:"relativePath,omitempty"`
}

// NewChangeEvent builds an event for path, deriving the path relative to root when possible.
func NewChangeEvent(root, path string) ChangeEvent {
	ev := ChangeEvent{FullPath: path}
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		ev.RelativePath = filepath.ToSlash(rel)
	}
	return ev
}

// BuildConfig is one declared build target of a descriptor.
type BuildConfig struct {
	Name     string
	Requires []string
	Affinity Affinity
}

// BuildDescriptor is the parsed content of a build-descriptor source file.
type BuildDescriptor struct {
	// Buildfile is the path of the source file, which is also the registry key.
	Buildfile string
	Name      string
	Builds    map[string]BuildConfig
}

// BuildNames returns the descriptor's target names in sorted order.
func (d *BuildDescriptor) BuildNames() []string {
	names := make([]string, 0, len(d.Builds))
	for name := range d.Builds {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ModuleMeta is the loader metadata of a single module.
type ModuleMeta struct {
	Group    string   `json:"group"`
	Requires []string `json:"requires"`
	Affinity Affinity `json:"affinity,omitempty"`
}

// LoaderData is the merged loader metadata for one bundle and one selector.
type LoaderData struct {
	JSON map[string]ModuleMeta `json:"json"`
}

// Clone returns a deep copy.
func (d *LoaderData) Clone() *LoaderData {
	if d == nil {
		return nil
	}
	out := &LoaderData{JSON: make(map[string]ModuleMeta, len(d.JSON))}
	for name, meta := range d.JSON {
		meta.Requires = append([]string{}, meta.Requires...)
		out.JSON[name] = meta
	}
	return out
}
