// Package resolve turns an endpoint id plus caller parameters into the
// concrete path to call on a given surface.
package resolve

import (
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/trackhub/internal/endpoint"
)

// ResolvedPath is the output of one resolution: the concrete path (query
// string included), the surface it was built for, and the parameters that
// were consumed, kept for diagnostics and cache keying.
type ResolvedPath struct {
	Path     string
	Surface  string
	Method   endpoint.Method
	Consumed map[string]string
}

// Resolver builds concrete paths from registered templates. It is pure and
// synchronous; all its state is the immutable registry.
type Resolver struct {
	reg *endpoint.Registry
	log zerolog.Logger
}

// New creates a resolver over the given registry.
func New(reg *endpoint.Registry, log zerolog.Logger) *Resolver {
	return &Resolver{reg: reg, log: log}
}

// Resolve validates and substitutes params into the template that endpoint id
// declares for surface. Placeholders are substituted left to right, each
// occurrence identically; the first missing parameter aborts resolution.
// Entries in params that match no placeholder are appended as query
// parameters when declared, and dropped with a debug diagnostic otherwise,
// so callers may pass a superset.
func (r *Resolver) Resolve(id, surface string, params map[string]string) (*ResolvedPath, error) {
	desc, err := r.reg.Get(id)
	if err != nil {
		return nil, &UnknownEndpointError{ID: id}
	}
	tpl, ok := desc.Templates[surface]
	if !ok {
		return nil, &UnknownSurfaceError{ID: id, Surface: surface}
	}

	names, err := endpoint.Placeholders(tpl)
	if err != nil {
		// Unreachable for a validated registry, but surfaced rather than
		// silently producing a broken path.
		return nil, err
	}

	consumed := make(map[string]string, len(params))
	path := tpl
	for _, name := range names {
		value, ok := params[name]
		if !ok || value == "" {
			return nil, &MissingParameterError{Name: name}
		}
		if strings.Contains(value, "/") {
			return nil, &InvalidParameterError{Name: name, Reason: "value must not contain '/'"}
		}
		path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(value))
		consumed[name] = value
	}

	query := url.Values{}
	for name, value := range params {
		if _, ok := consumed[name]; ok {
			continue
		}
		if desc.HasQueryParam(name) {
			query.Set(name, value)
			consumed[name] = value
			continue
		}
		r.log.Debug().Str("endpoint", id).Str("param", name).Msg("dropping undeclared parameter")
	}
	if len(query) > 0 {
		// Encode sorts by key, so the query string is deterministic.
		path += "?" + query.Encode()
	}

	return &ResolvedPath{Path: path, Surface: surface, Method: desc.Method, Consumed: consumed}, nil
}
