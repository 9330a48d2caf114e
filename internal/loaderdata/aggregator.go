package loaderdata

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"git.home.luguber.info/inful/loaderbuild/internal/models"
	"git.home.luguber.info/inful/loaderbuild/internal/registry"
)

// Kind names one of the two documents produced per bundle.
type Kind string

const (
	KindServer Kind = "server"
	KindClient Kind = "client"
)

// DefaultCacheSize bounds the number of cached documents.
const DefaultCacheSize = 256

// Aggregator produces server and client documents straight from a registry and
// caches them per registry revision.
type Aggregator struct {
	registry   *registry.Registry
	cache      *lru.Cache[string, *models.LoaderData]
	moduleName func(b *models.Bundle) string
}

// AggregatorOption customizes an Aggregator.
type AggregatorOption func(*Aggregator)

// WithModuleName overrides the loader meta-module name added to client documents.
func WithModuleName(fn func(b *models.Bundle) string) AggregatorOption {
	return func(a *Aggregator) { a.moduleName = fn }
}

// NewAggregator creates an aggregator holding at most size documents.
func NewAggregator(reg *registry.Registry, size int, opts ...AggregatorOption) (*Aggregator, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *models.LoaderData](size)
	if err != nil {
		return nil, err
	}
	a := &Aggregator{
		registry:   reg,
		cache:      cache,
		moduleName: (*models.Bundle).LoaderModuleName,
	}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

// Server returns the server document of b.
func (a *Aggregator) Server(b *models.Bundle) *models.LoaderData {
	return a.Document(b, KindServer)
}

// Client returns the client document of b, including its loader meta-module.
func (a *Aggregator) Client(b *models.Bundle) *models.LoaderData {
	return a.Document(b, KindClient)
}

// Document returns a private copy of the kind document of b.
func (a *Aggregator) Document(b *models.Bundle, kind Kind) *models.LoaderData {
	// Read the revision before the descriptors: a registration racing with us
	// can only leave newer data under an older key, never the reverse.
	rev := a.registry.Revision(b.Name)
	key := fmt.Sprintf("%s\x00%s\x00%d", b.Name, kind, rev)
	if cached, ok := a.cache.Get(key); ok {
		return cached.Clone()
	}

	descriptors := a.registry.Descriptors(b.Name)
	var data *models.LoaderData
	switch kind {
	case KindClient:
		data = WithLoaderModule(Aggregate(b, descriptors, ClientSelector), b, a.moduleName(b))
	default:
		data = Aggregate(b, descriptors, ServerSelector)
	}
	a.cache.Add(key, data)
	return data.Clone()
}

// Purge drops every cached document.
func (a *Aggregator) Purge() { a.cache.Purge() }

// Len reports the number of cached documents.
func (a *Aggregator) Len() int { return a.cache.Len() }
