// Package ixgest turns provider XML feeds into listing.RawRecords.
//
// Each provider format is one Adapter. Adapters only locate fields in their
// schema; every business rule (offer type, lookups, dedup) belongs to the
// normalize package. Adding a provider means adding an Adapter to the
// Registry; nothing in the orchestration layer changes.
package ixgest

import (
	"slices"
	"sync"

	"github.com/antchfx/xmlquery"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
	"github.com/matheusluizig/imovelguide-integracao-sub000/listing"
)

// SystemAuto selects the adapter by inspecting the document.
const SystemAuto = "auto"

// Adapter extracts raw records from one provider format.
type Adapter interface {
	// Name is the integration system identifier, e.g. "vrsync".
	Name() string
	// Detect reports whether doc looks like this adapter's format.
	Detect(doc *xmlquery.Node) bool
	// Extract returns one RawRecord per listing element, in feed order.
	// Missing required structure is ErrInvalidFeed.
	Extract(doc *xmlquery.Node) ([]listing.RawRecord, error)
}

// Registry holds the adapters keyed by system name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	order    []string
}

// NewRegistry creates a registry with adapters. Later registrations of the
// same name panic, as they can only come from programming errors.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, a := range adapters {
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds an adapter.
func (r *Registry) Register(a Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[a.Name()]; exists {
		return errors.Wrapf(errors.ErrConflict, "adapter %q already registered", a.Name())
	}
	r.adapters[a.Name()] = a
	r.order = append(r.order, a.Name())
	return nil
}

// Get returns the adapter for system.
func (r *Registry) Get(system string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[system]
	if !ok {
		return nil, errors.WithHintf(errors.NewNotFoundError("adapter %q", system),
			"registered systems: %v", r.order)
	}
	return a, nil
}

// Detect returns the first registered adapter recognizing doc.
func (r *Registry) Detect(doc *xmlquery.Node) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.order {
		if a := r.adapters[name]; a.Detect(doc) {
			return a, nil
		}
	}
	return nil, errors.Wrapf(errors.ErrInvalidFeed, "no adapter recognizes root element <%s>", RootName(doc))
}

// Resolve returns the adapter for system, detecting it from doc when system
// is SystemAuto or empty.
func (r *Registry) Resolve(system string, doc *xmlquery.Node) (Adapter, error) {
	if system == "" || system == SystemAuto {
		return r.Detect(doc)
	}
	return r.Get(system)
}

// Names returns the registered system names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := slices.Clone(r.order)
	slices.Sort(names)
	return names
}

// UnexpectedRoot is the error adapters return when Extract is handed a
// document of another format.
func UnexpectedRoot(doc *xmlquery.Node, want string) error {
	return errors.Wrapf(errors.ErrInvalidFeed, "expected root element <%s>, got <%s>", want, RootName(doc))
}
