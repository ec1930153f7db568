package cache

import (
	"sync"
	"sync/atomic"
)

// mapStore is a Store over sync.Map. It suits read-mostly key sets that are
// written once and read many times.
type mapStore[K comparable, V any] struct {
	m sync.Map // K -> *Entry[V]
	n atomic.Int64
}

// NewMapStore returns a Store backed by sync.Map.
func NewMapStore[K comparable, V any]() Store[K, V] {
	return &mapStore[K, V]{}
}

func (s *mapStore[K, V]) Load(k K) (*Entry[V], bool) {
	v, ok := s.m.Load(k)
	if !ok {
		return nil, false
	}
	return v.(*Entry[V]), true
}

func (s *mapStore[K, V]) Swap(k K, e *Entry[V]) (*Entry[V], bool) {
	prev, loaded := s.m.Swap(k, e)
	if !loaded {
		s.n.Add(1)
		return nil, false
	}
	return prev.(*Entry[V]), true
}

func (s *mapStore[K, V]) Delete(k K) (*Entry[V], bool) {
	prev, loaded := s.m.LoadAndDelete(k)
	if !loaded {
		return nil, false
	}
	s.n.Add(-1)
	return prev.(*Entry[V]), true
}

func (s *mapStore[K, V]) CompareAndDelete(k K, version uint64) (*Entry[V], bool) {
	v, ok := s.m.Load(k)
	if !ok {
		return nil, false
	}
	e := v.(*Entry[V])
	if e.ver != version {
		return nil, false
	}
	// Pointer identity: fails if e was replaced after the Load above.
	if !s.m.CompareAndDelete(k, e) {
		return nil, false
	}
	s.n.Add(-1)
	return e, true
}

func (s *mapStore[K, V]) Len() int {
	return int(s.n.Load())
}

func (s *mapStore[K, V]) Drain() []*Entry[V] {
	var out []*Entry[V]
	s.m.Range(func(k, _ any) bool {
		if v, ok := s.m.LoadAndDelete(k); ok {
			s.n.Add(-1)
			out = append(out, v.(*Entry[V]))
		}
		return true
	})
	return out
}
