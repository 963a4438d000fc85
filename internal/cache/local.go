package cache

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const defaultShardCount = 16

// LocalStore is the in-process fallback tier. Entries are sharded by key hash
// so concurrent traffic on unrelated keys does not serialize on one lock.
// Expired entries are dropped lazily on read.
type LocalStore struct {
	shards []*localShard
	now    func() time.Time
}

type localShard struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewLocalStore creates a local store with the given shard count.
// A count below one falls back to the default.
func NewLocalStore(shardCount int) *LocalStore {
	if shardCount < 1 {
		shardCount = defaultShardCount
	}
	shards := make([]*localShard, shardCount)
	for i := range shards {
		shards[i] = &localShard{entries: make(map[string]Entry)}
	}
	return &LocalStore{shards: shards, now: time.Now}
}

func (s *LocalStore) shard(key string) *localShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Get implements Store. It never fails; a miss or an expired entry is (nil, nil).
func (s *LocalStore) Get(_ context.Context, key string) (*Entry, error) {
	sh := s.shard(key)
	sh.mu.RLock()
	e, ok := sh.entries[key]
	sh.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !s.now().Before(e.ExpiresAt) {
		sh.mu.Lock()
		// Re-check under the write lock; another caller may have replaced it.
		if cur, ok := sh.entries[key]; ok && !s.now().Before(cur.ExpiresAt) {
			delete(sh.entries, key)
		}
		sh.mu.Unlock()
		return nil, nil
	}
	out := e
	return &out, nil
}

// Set implements Store.
func (s *LocalStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	sh := s.shard(key)
	sh.mu.Lock()
	sh.entries[key] = Entry{Value: value, ExpiresAt: s.now().Add(ttl)}
	sh.mu.Unlock()
	return nil
}

// DeleteByPrefix implements Store.
func (s *LocalStore) DeleteByPrefix(_ context.Context, prefix string) error {
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key := range sh.entries {
			if matchesPrefix(key, prefix) {
				delete(sh.entries, key)
			}
		}
		sh.mu.Unlock()
	}
	return nil
}

// Len returns the number of live entries, expired ones included until their
// next read. Used in tests and diagnostics.
func (s *LocalStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}
