package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Status reports how a lookup was answered.
type Status string

const (
	StatusHit    Status = "HIT"
	StatusMiss   Status = "MISS"
	StatusBypass Status = "BYPASS"
)

// Result is the outcome of one facade lookup. TTL is the remaining lifetime
// of the entry (the full TTL when freshly computed). Degraded marks calls
// answered by the local tier because the remote store was unreachable.
type Result struct {
	Value    []byte
	Status   Status
	TTL      time.Duration
	Degraded bool
}

// ComputeFunc produces the value for a key on a miss.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// Facade is the read-through cache over the remote and local tiers. Each call
// walks a small state machine: try remote → hit | miss | unavailable → try
// local. A remote outage is observable only through the degraded log signal
// and Result.Degraded, never as a caller error.
//
// Concurrent misses on the same key are collapsed with singleflight on a
// best-effort basis: callers that arrive while a compute is in flight share
// its result, but a bypass call never joins a flight.
type Facade struct {
	remote Store
	local  Store
	group  singleflight.Group
	log    zerolog.Logger
	now    func() time.Time
}

// New builds a facade over the given tiers. remote may be nil, in which case
// only the local tier is used (useful in tests and single-process setups).
func New(remote, local Store, log zerolog.Logger) *Facade {
	return &Facade{remote: remote, local: local, log: log, now: time.Now}
}

// GetOrCompute returns the cached value for key, computing and storing it on
// a miss. With bypass set, the read and the flight are skipped and compute
// runs unconditionally, but the fresh value still refreshes the cache so the
// next plain read hits.
func (f *Facade) GetOrCompute(ctx context.Context, key string, ttl time.Duration, bypass bool, compute ComputeFunc) (*Result, error) {
	if bypass {
		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		degraded := f.store(ctx, key, value, ttl, false)
		return &Result{Value: value, Status: StatusBypass, TTL: ttl, Degraded: degraded}, nil
	}

	entry, degraded := f.lookup(ctx, key)
	if entry != nil {
		return &Result{
			Value:    entry.Value,
			Status:   StatusHit,
			TTL:      entry.ExpiresAt.Sub(f.now()),
			Degraded: degraded,
		}, nil
	}

	v, err, _ := f.group.Do(key, func() (any, error) {
		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		f.store(ctx, key, value, ttl, degraded)
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return &Result{Value: v.([]byte), Status: StatusMiss, TTL: ttl, Degraded: degraded}, nil
}

// lookup reads key from the remote tier, falling back to the local tier when
// the remote is unreachable. The second return is true on fallback.
func (f *Facade) lookup(ctx context.Context, key string) (*Entry, bool) {
	if f.remote != nil {
		entry, err := f.remote.Get(ctx, key)
		if err == nil {
			return entry, false
		}
		f.log.Warn().Err(err).Str("key", key).Msg("remote cache unavailable, serving from local store")
	} else {
		return f.entryFromLocal(ctx, key), false
	}
	return f.entryFromLocal(ctx, key), true
}

func (f *Facade) entryFromLocal(ctx context.Context, key string) *Entry {
	entry, err := f.local.Get(ctx, key)
	if err != nil {
		f.log.Error().Err(err).Str("key", key).Msg("local cache read failed")
		return nil
	}
	return entry
}

// store writes to the tier that is answering this call: remote when healthy,
// local otherwise. Returns true when the write ended up in the local tier
// because the remote was unavailable.
func (f *Facade) store(ctx context.Context, key string, value []byte, ttl time.Duration, degraded bool) bool {
	if ttl <= 0 {
		return degraded
	}
	if f.remote != nil && !degraded {
		err := f.remote.Set(ctx, key, value, ttl)
		if err == nil {
			return false
		}
		f.log.Warn().Err(err).Str("key", key).Msg("remote cache write failed, writing to local store")
		degraded = true
	}
	if err := f.local.Set(ctx, key, value, ttl); err != nil {
		f.log.Error().Err(err).Str("key", key).Msg("local cache write failed")
	}
	return degraded
}

// DeleteByPrefix removes matching entries from both tiers. The local tier is
// always cleared; a remote failure is returned so the invalidation manager
// can schedule a retry.
func (f *Facade) DeleteByPrefix(ctx context.Context, prefix string) error {
	if err := f.local.DeleteByPrefix(ctx, prefix); err != nil {
		f.log.Error().Err(err).Str("prefix", prefix).Msg("local cache invalidation failed")
	}
	if f.remote == nil {
		return nil
	}
	return f.remote.DeleteByPrefix(ctx, prefix)
}
