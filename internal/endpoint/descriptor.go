// Package endpoint holds the static descriptors for every logical operation
// the facade knows how to reach, and the read-only registry built from them.
package endpoint

import (
	"fmt"
	"strings"
	"time"

	"github.com/briangreenhill/trackhub/internal/cache"
)

// Method is the HTTP method an endpoint uses against the upstream API.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodPatch  Method = "PATCH"
	MethodDelete Method = "DELETE"
)

// Valid reports whether m is one of the supported methods.
func (m Method) Valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete:
		return true
	}
	return false
}

// Conventional surface names. Surfaces are data-driven; these are the ones the
// shipped endpoint files use.
const (
	SurfaceClient   = "client"
	SurfaceInternal = "internal"
	SurfaceUpstream = "upstream"
)

// CachePolicy controls whether and how long a read endpoint's responses are
// cached. KeyPrefix defaults to the endpoint id; when IDParam is set, the
// value of that path parameter is appended so the entry can be invalidated by
// resource identity (e.g. "issue:123").
type CachePolicy struct {
	Cacheable  bool   `yaml:"cacheable"`
	TTLSeconds int    `yaml:"ttl_seconds"`
	KeyPrefix  string `yaml:"key_prefix,omitempty"`
	IDParam    string `yaml:"id_param,omitempty"`
}

// Invalidates declares which resource a mutation endpoint touches, so the
// invalidation manager can clear the right cache entries after it succeeds.
type Invalidates struct {
	Kind    string `yaml:"kind"`
	IDParam string `yaml:"id_param"`
}

// Descriptor is the static record for one logical operation: its path
// templates per surface, parameter lists, method, and cache behavior.
// Descriptors are loaded once at startup and never mutated.
type Descriptor struct {
	ID          string            `yaml:"id"`
	Method      Method            `yaml:"method"`
	Templates   map[string]string `yaml:"templates"`
	PathParams  []string          `yaml:"path_params"`
	QueryParams []string          `yaml:"query_params,omitempty"`
	CachePolicy *CachePolicy      `yaml:"cache_policy,omitempty"`
	Invalidates *Invalidates      `yaml:"invalidates,omitempty"`
}

// Cacheable reports whether responses for this endpoint may be cached.
func (d Descriptor) Cacheable() bool {
	return d.CachePolicy != nil && d.CachePolicy.Cacheable && d.CachePolicy.TTLSeconds > 0
}

// TTL returns the cache TTL, or zero for uncacheable endpoints.
func (d Descriptor) TTL() time.Duration {
	if !d.Cacheable() {
		return 0
	}
	return time.Duration(d.CachePolicy.TTLSeconds) * time.Second
}

// HasQueryParam reports whether name is a declared query parameter.
func (d Descriptor) HasQueryParam(name string) bool {
	for _, q := range d.QueryParams {
		if q == name {
			return true
		}
	}
	return false
}

// HasPathParam reports whether name is a declared path parameter.
func (d Descriptor) HasPathParam(name string) bool {
	for _, p := range d.PathParams {
		if p == name {
			return true
		}
	}
	return false
}

// CacheKey builds the deterministic cache key for a read of this endpoint
// with the given consumed parameters. The resource id parameter, when
// declared, becomes part of the key prefix rather than the sorted parameter
// tail so invalidation by "kind:id" prefix finds the entry.
func (d Descriptor) CacheKey(params map[string]string) string {
	prefix := d.ID
	rest := params
	if d.CachePolicy != nil {
		if d.CachePolicy.KeyPrefix != "" {
			prefix = d.CachePolicy.KeyPrefix
		}
		if d.CachePolicy.IDParam != "" {
			if id, ok := params[d.CachePolicy.IDParam]; ok {
				prefix = prefix + ":" + cache.Component(id)
				rest = make(map[string]string, len(params))
				for k, v := range params {
					if k != d.CachePolicy.IDParam {
						rest[k] = v
					}
				}
			}
		}
	}
	return cache.Key(prefix, rest)
}

// Placeholders returns the {name} placeholders in template in order of
// appearance, duplicates included. Stray or unclosed braces are an error so
// misconfigured templates are caught at load time.
func Placeholders(template string) ([]string, error) {
	var names []string
	for i := 0; i < len(template); i++ {
		switch template[i] {
		case '{':
			j := strings.IndexByte(template[i+1:], '}')
			if j < 0 {
				return nil, fmt.Errorf("unclosed placeholder at offset %d", i)
			}
			name := template[i+1 : i+1+j]
			if !validParamName(name) {
				return nil, fmt.Errorf("invalid placeholder name %q", name)
			}
			names = append(names, name)
			i += j + 1
		case '}':
			return nil, fmt.Errorf("unmatched '}' at offset %d", i)
		}
	}
	return names, nil
}

func validParamName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
