// Package invalidate clears cache entries after mutations. Invalidation is
// eventually consistent: a failure is logged and retried in the background,
// never surfaced to the mutation that triggered it.
package invalidate

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/trackhub/internal/cache"
	"github.com/briangreenhill/trackhub/internal/endpoint"
)

// Enqueuer schedules a background retry for prefixes whose remote deletion
// failed. Implementations must be safe for concurrent use.
type Enqueuer interface {
	EnqueueRetry(ctx context.Context, prefixes []string) error
}

// Manager maps a mutated resource to the cache prefixes that must go stale
// and clears them through the facade.
type Manager struct {
	cache *cache.Facade
	reg   *endpoint.Registry
	queue Enqueuer
	log   zerolog.Logger
}

// New creates a manager. queue may be nil, which disables background retries
// (failures are still logged).
func New(facade *cache.Facade, reg *endpoint.Registry, queue Enqueuer, log zerolog.Logger) *Manager {
	return &Manager{cache: facade, reg: reg, queue: queue, log: log}
}

// Invalidate removes the entries for one mutated resource plus every
// list-cache prefix statically registered as aggregating its kind. It never
// returns an error: the mutation already succeeded and its outcome must not
// depend on cache consistency.
func (m *Manager) Invalidate(ctx context.Context, kind, id string) {
	// The id is escaped exactly as CacheKey embeds it, so the prefix lands on
	// the entries of this resource and no other.
	prefixes := append([]string{kind + ":" + cache.Component(id)}, m.reg.DependentPrefixes(kind)...)

	var failed []string
	for _, prefix := range prefixes {
		if err := m.cache.DeleteByPrefix(ctx, prefix); err != nil {
			m.log.Warn().Err(err).Str("prefix", prefix).Msg("cache invalidation failed, scheduling retry")
			failed = append(failed, prefix)
		}
	}
	if len(failed) == 0 || m.queue == nil {
		return
	}
	if err := m.queue.EnqueueRetry(ctx, failed); err != nil {
		m.log.Error().Err(err).Strs("prefixes", failed).Msg("could not enqueue invalidation retry")
	}
}
