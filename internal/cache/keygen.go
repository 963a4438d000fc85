// Package cache provides the two-tier read-through cache used for upstream
// responses: a remote redis store with a bounded per-call timeout, and an
// in-process fallback store that takes over when the remote is unreachable.
package cache

import (
	"net/url"
	"sort"
	"strings"
)

// Key builds a stable cache key from a name prefix and parameters.
// Parameters are sorted by name before joining so that equivalent requests
// with different argument order produce the same key. Names and values are
// query-escaped before joining; a value containing the ":" or "=" separators
// must not alias the key of a different parameter map.
func Key(prefix string, params map[string]string) string {
	if len(params) == 0 {
		return prefix
	}
	parts := make([]string, 0, len(params))
	for k, v := range params {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
	}
	sort.Strings(parts)
	return prefix + ":" + strings.Join(parts, ":")
}

// Component escapes a single value for embedding into a key or prefix, so an
// id containing ":" cannot reach across a prefix boundary.
func Component(s string) string {
	return url.QueryEscape(s)
}

// matchesPrefix reports whether key belongs to prefix. A key matches when it
// is exactly the prefix or extends it at a ":" boundary, so invalidating
// "issue:12" never sweeps up "issue:123".
func matchesPrefix(key, prefix string) bool {
	return key == prefix || strings.HasPrefix(key, prefix+":")
}
