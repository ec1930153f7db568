package cache

import (
	"sync"

	"github.com/IvanBrykalov/refreshcache/internal/util"
)

// shardedStore splits the key space into a power-of-two number of shards,
// each an independent map under its own RWMutex. There is no global lock.
type shardedStore[K comparable, V any] struct {
	shards []*shard[K, V]
	hash   func(K) uint64

	_ util.CacheLinePad
	n util.PaddedAtomicInt64 // resident entries across all shards
}

// shard is an independent partition of the store.
type shard[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]*Entry[V]
}

// NewShardedStore returns the default Store. capacity is a sizing hint split
// evenly across shards; shards <= 0 picks a count from GOMAXPROCS.
// Neither value bounds the number of entries.
func NewShardedStore[K comparable, V any](capacity, shards int) Store[K, V] {
	sh := util.ShardCount(shards)
	per := util.PerShard(capacity, sh)

	s := &shardedStore[K, V]{
		shards: make([]*shard[K, V], sh),
		hash:   util.KeyHash[K],
	}
	for i := range s.shards {
		s.shards[i] = &shard[K, V]{m: make(map[K]*Entry[V], per)}
	}
	return s
}

func (s *shardedStore[K, V]) getShard(k K) *shard[K, V] {
	return s.shards[util.ShardIndex(s.hash(k), len(s.shards))]
}

func (s *shardedStore[K, V]) Load(k K) (*Entry[V], bool) {
	sh := s.getShard(k)
	sh.mu.RLock()
	e, ok := sh.m[k]
	sh.mu.RUnlock()
	return e, ok
}

func (s *shardedStore[K, V]) Swap(k K, e *Entry[V]) (*Entry[V], bool) {
	sh := s.getShard(k)
	sh.mu.Lock()
	old, ok := sh.m[k]
	sh.m[k] = e
	sh.mu.Unlock()
	if !ok {
		s.n.Add(1)
	}
	return old, ok
}

func (s *shardedStore[K, V]) Delete(k K) (*Entry[V], bool) {
	sh := s.getShard(k)
	sh.mu.Lock()
	old, ok := sh.m[k]
	if ok {
		delete(sh.m, k)
	}
	sh.mu.Unlock()
	if ok {
		s.n.Add(-1)
	}
	return old, ok
}

func (s *shardedStore[K, V]) CompareAndDelete(k K, version uint64) (*Entry[V], bool) {
	sh := s.getShard(k)
	sh.mu.Lock()
	old, ok := sh.m[k]
	if !ok || old.ver != version {
		sh.mu.Unlock()
		return nil, false
	}
	delete(sh.m, k)
	sh.mu.Unlock()
	s.n.Add(-1)
	return old, true
}

func (s *shardedStore[K, V]) Len() int {
	return int(s.n.Load())
}

// Drain empties the shards one at a time; entries stored into an already
// drained shard while Drain runs stay resident.
func (s *shardedStore[K, V]) Drain() []*Entry[V] {
	var out []*Entry[V]
	for _, sh := range s.shards {
		sh.mu.Lock()
		if len(sh.m) == 0 {
			sh.mu.Unlock()
			continue
		}
		for _, e := range sh.m {
			out = append(out, e)
		}
		n := len(sh.m)
		sh.m = make(map[K]*Entry[V])
		sh.mu.Unlock()
		s.n.Add(int64(-n))
	}
	return out
}
