package cache

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/IvanBrykalov/refreshcache/runner"
)

// Loader fetches the authoritative value for k from the slow data source.
// ok=false with a nil error means the source has no value for k.
// It is called from caller goroutines (misses, bypassed reads) and from
// runner workers (refreshes), so it must be safe for concurrent use.
type Loader[K comparable, V any] func(ctx context.Context, k K) (v V, ok bool, err error)

// ChangeReason explains what caused a Change.
type ChangeReason int

const (
	// ChangeLoad: stored by a foreground load or a background refresh.
	ChangeLoad ChangeReason = iota
	// ChangePut: stored by Put/PutAll.
	ChangePut
	// ChangeRemove: removed by Remove or by a load that found no value.
	ChangeRemove
	// ChangeExpire: removed because its TTL elapsed.
	ChangeExpire
)

func (r ChangeReason) String() string {
	switch r {
	case ChangeLoad:
		return "load"
	case ChangePut:
		return "put"
	case ChangeRemove:
		return "remove"
	case ChangeExpire:
		return "expire"
	default:
		return fmt.Sprintf("ChangeReason(%d)", int(r))
	}
}

// Change describes one insert, update or removal.
// HadOld/HasNew distinguish "no value" from a zero value.
type Change[K comparable, V any] struct {
	Key    K
	Old    V
	HadOld bool
	New    V
	HasNew bool
	Reason ChangeReason
}

// Options configures the cache. Loader and Runner are required; every other
// field has a safe zero value. Defaults applied in New():
//   - nil Store    => sharded store sized by Capacity/Shards
//   - nil Equal    => reflect.DeepEqual
//   - nil hooks    => no-op
//   - nil Metrics  => NoopMetrics
type Options[K comparable, V any] struct {
	// Capacity is a sizing hint for the store, not an eviction bound.
	Capacity int

	// Shards defines the number of shards of the default store. If 0, an
	// automatic value is chosen (≈ 2*GOMAXPROCS) and rounded to a power of two.
	Shards int

	// Store replaces the default sharded store.
	Store Store[K, V]

	// Loader fetches values on misses, bypassed reads and refreshes.
	Loader Loader[K, V]

	// Runner executes background refreshes and TTL expirations.
	// The cache never closes it.
	Runner runner.Runner

	// TTL removes an entry this long after it was last stored. 0 disables it.
	TTL time.Duration

	// RemoveOnNilLoad removes the cached entry when the Loader reports no value.
	RemoveOnNilLoad bool

	// CoalesceRefresh lets overlapping background refreshes of one key share
	// a single Loader call.
	CoalesceRefresh bool

	// Equal decides whether a store changed the value; equal writes fire no
	// AfterChange.
	Equal func(a, b V) bool

	// Hooks. They run on the goroutine that triggered them (caller or runner
	// worker), outside any store lock, and may run concurrently.
	BeforeRefresh func(k K)
	OnHit         func(k K)
	OnMiss        func(k K)
	OnLoadError   func(k K, err error)
	AfterChange   func(c Change[K, V])
	AfterRefresh  func(k K, v V)

	Metrics Metrics
}

// withDefaults validates o and fills every optional field.
func (o Options[K, V]) withDefaults() (Options[K, V], error) {
	if o.Loader == nil {
		return o, ErrNoLoader
	}
	if o.Runner == nil {
		return o, ErrNoRunner
	}
	if o.TTL < 0 {
		return o, fmt.Errorf("%w: TTL must be positive or 0 (disabled), got %v", ErrInvalidArgument, o.TTL)
	}
	if o.Capacity < 0 {
		return o, fmt.Errorf("%w: Capacity must be >= 0, got %d", ErrInvalidArgument, o.Capacity)
	}

	if o.Store == nil {
		o.Store = NewShardedStore[K, V](o.Capacity, o.Shards)
	}
	if o.Equal == nil {
		o.Equal = func(a, b V) bool { return reflect.DeepEqual(a, b) }
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
	if o.BeforeRefresh == nil {
		o.BeforeRefresh = func(K) {}
	}
	if o.OnHit == nil {
		o.OnHit = func(K) {}
	}
	if o.OnMiss == nil {
		o.OnMiss = func(K) {}
	}
	if o.OnLoadError == nil {
		o.OnLoadError = func(K, error) {}
	}
	if o.AfterChange == nil {
		o.AfterChange = func(Change[K, V]) {}
	}
	if o.AfterRefresh == nil {
		o.AfterRefresh = func(K, V) {}
	}
	return o, nil
}
