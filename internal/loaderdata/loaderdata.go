// Package loaderdata merges the build configs registered for a bundle into a
// module-loader metadata document.
package loaderdata

import (
	"git.home.luguber.info/inful/loaderbuild/internal/models"
)

// Selector decides whether a build target belongs in a document.
type Selector func(name string, cfg models.BuildConfig) bool

// ServerSelector keeps every target not pinned to the client.
func ServerSelector(_ string, cfg models.BuildConfig) bool {
	return cfg.Affinity != models.AffinityClient
}

// ClientSelector keeps targets pinned to the client.
func ClientSelector(_ string, cfg models.BuildConfig) bool {
	return cfg.Affinity == models.AffinityClient
}

// Aggregate builds the document for b from descriptors, in the given order.
// A later descriptor declaring an already-seen build name wins. Requires lists
// are copied as-is.
func Aggregate(b *models.Bundle, descriptors []*models.BuildDescriptor, sel Selector) *models.LoaderData {
	data := &models.LoaderData{JSON: make(map[string]models.ModuleMeta)}
	for _, d := range descriptors {
		if d == nil {
			continue
		}
		for _, name := range d.BuildNames() {
			cfg := d.Builds[name]
			if !sel(name, cfg) {
				continue
			}
			data.JSON[name] = models.ModuleMeta{
				Group:    b.Name,
				Requires: copyRequires(cfg.Requires),
				Affinity: cfg.Affinity,
			}
		}
	}
	return data
}

// WithLoaderModule adds the bundle's loader meta-module to data under name.
func WithLoaderModule(data *models.LoaderData, b *models.Bundle, name string) *models.LoaderData {
	if data.JSON == nil {
		data.JSON = make(map[string]models.ModuleMeta)
	}
	data.JSON[name] = models.ModuleMeta{
		Group:    b.Name,
		Requires: []string{},
		Affinity: models.AffinityClient,
	}
	return data
}

func copyRequires(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
