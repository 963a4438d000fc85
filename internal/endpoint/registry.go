package endpoint

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNotFound is returned by Registry.Get for unknown endpoint ids.
var ErrNotFound = errors.New("endpoint not found")

// File is the on-disk shape of the endpoint configuration: the descriptor
// list plus the static map from a mutated resource kind to the list-cache
// prefixes that aggregate it.
type File struct {
	Endpoints    []Descriptor        `yaml:"endpoints"`
	Invalidation map[string][]string `yaml:"invalidation,omitempty"`
}

// Registry is the immutable, process-wide set of endpoint descriptors.
// It is fully validated at construction and safe for concurrent use without
// locking because it is never mutated afterwards.
type Registry struct {
	byID map[string]Descriptor
	deps map[string][]string
}

// NewRegistry validates the configured descriptors and builds the registry.
// Any schema violation (duplicate id, undeclared placeholder, unknown method)
// is fatal here, at startup, rather than surfacing on a later request.
func NewRegistry(file File) (*Registry, error) {
	if len(file.Endpoints) == 0 {
		return nil, errors.New("endpoint config declares no endpoints")
	}

	byID := make(map[string]Descriptor, len(file.Endpoints))
	for _, d := range file.Endpoints {
		if d.ID == "" {
			return nil, errors.New("endpoint with empty id")
		}
		if _, dup := byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate endpoint id %q", d.ID)
		}
		if err := validateDescriptor(d); err != nil {
			return nil, fmt.Errorf("endpoint %q: %w", d.ID, err)
		}
		byID[d.ID] = d
	}

	deps := make(map[string][]string, len(file.Invalidation))
	for kind, prefixes := range file.Invalidation {
		if kind == "" {
			return nil, errors.New("invalidation entry with empty resource kind")
		}
		deps[kind] = append([]string(nil), prefixes...)
	}

	return &Registry{byID: byID, deps: deps}, nil
}

func validateDescriptor(d Descriptor) error {
	if !d.Method.Valid() {
		return fmt.Errorf("unknown method %q", d.Method)
	}
	if len(d.Templates) == 0 {
		return errors.New("no templates declared")
	}
	for _, p := range d.PathParams {
		if !validParamName(p) {
			return fmt.Errorf("invalid path parameter name %q", p)
		}
	}
	for surface, tpl := range d.Templates {
		if surface == "" {
			return errors.New("template with empty surface name")
		}
		names, err := Placeholders(tpl)
		if err != nil {
			return fmt.Errorf("surface %q: %w", surface, err)
		}
		for _, name := range names {
			if !d.HasPathParam(name) {
				return fmt.Errorf("surface %q references undeclared placeholder {%s}", surface, name)
			}
		}
	}
	if d.CachePolicy != nil && d.CachePolicy.IDParam != "" && !d.HasPathParam(d.CachePolicy.IDParam) {
		return fmt.Errorf("cache policy id_param %q is not a path parameter", d.CachePolicy.IDParam)
	}
	if d.Invalidates != nil {
		if d.Invalidates.Kind == "" {
			return errors.New("invalidates.kind must not be empty")
		}
		if !d.HasPathParam(d.Invalidates.IDParam) {
			return fmt.Errorf("invalidates.id_param %q is not a path parameter", d.Invalidates.IDParam)
		}
	}
	return nil
}

// Get returns the descriptor for id, or ErrNotFound.
func (r *Registry) Get(id string) (Descriptor, error) {
	d, ok := r.byID[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return d, nil
}

// IDs returns all registered endpoint ids, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DependentPrefixes returns the list-cache key prefixes that aggregate the
// given resource kind. The slice is a copy; callers may keep it.
func (r *Registry) DependentPrefixes(kind string) []string {
	return append([]string(nil), r.deps[kind]...)
}
