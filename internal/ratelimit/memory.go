package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const (
	shardCount = 64
	// a shard sweeps expired windows once it holds this many keys
	pruneThreshold = 4096
)

type window struct {
	count   int64
	resetAt time.Time
}

type shard struct {
	mu      sync.Mutex
	windows map[string]*window
}

// MemoryStore keeps counters in process. Keys are spread over mutex-guarded
// shards so unrelated identities do not contend. Windows reset lazily on the
// first hit after they end.
type MemoryStore struct {
	shards [shardCount]shard
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i].windows = make(map[string]*window)
	}
	return s
}

// Increment implements CounterStore.
func (s *MemoryStore) Increment(_ context.Context, key string, win time.Duration, now time.Time) (int64, time.Time, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	w, ok := sh.windows[key]
	if !ok || !now.Before(w.resetAt) {
		if !ok && len(sh.windows) >= pruneThreshold {
			sh.prune(now)
		}
		w = &window{resetAt: now.Add(win)}
		sh.windows[key] = w
	}
	w.count++
	return w.count, w.resetAt, nil
}

// Len reports how many keys are tracked.
func (s *MemoryStore) Len() int {
	n := 0
	for i := range s.shards {
		s.shards[i].mu.Lock()
		n += len(s.shards[i].windows)
		s.shards[i].mu.Unlock()
	}
	return n
}

func (s *MemoryStore) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.shards[h.Sum32()%shardCount]
}

// prune drops ended windows. Caller holds sh.mu.
func (sh *shard) prune(now time.Time) {
	for k, w := range sh.windows {
		if !now.Before(w.resetAt) {
			delete(sh.windows, k)
		}
	}
}
