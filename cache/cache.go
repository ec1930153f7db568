package cache

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	logging "github.com/ipfs/go-log/v2"

	"github.com/IvanBrykalov/refreshcache/internal/singleflight"
	"github.com/IvanBrykalov/refreshcache/internal/util"
)

var log = logging.Logger("refreshcache")

// cache is the read-through, refresh-ahead engine on top of a Store.
type cache[K comparable, V any] struct {
	store  Store[K, V]
	opt    Options[K, V]
	closed atomic.Bool

	// seq hands out entry versions; expirations compare against them.
	seq util.PaddedAtomicUint64

	// sf coalesces overlapping refreshes when Options.CoalesceRefresh is set.
	sf singleflight.Group[K, loadResult[V]]
}

type loadResult[V any] struct {
	val V
	ok  bool
}

// New constructs a cache from opt. It fails with ErrNoLoader or ErrNoRunner
// when a required collaborator is missing, and with an ErrInvalidArgument
// wrapper for a negative TTL or Capacity.
func New[K comparable, V any](opt Options[K, V]) (Cache[K, V], error) {
	opt, err := opt.withDefaults()
	if err != nil {
		return nil, err
	}
	return &cache[K, V]{
		store: opt.Store,
		opt:   opt,
	}, nil
}

// ---- Cache[K,V] implementation ----

func (c *cache[K, V]) Get(ctx context.Context, k K) (V, bool, error) {
	return c.GetBypass(ctx, k, false)
}

func (c *cache[K, V]) GetBypass(ctx context.Context, k K, bypassCache bool) (V, bool, error) {
	var zero V
	if err := c.checkKey(k); err != nil {
		return zero, false, err
	}

	e, hit := c.store.Load(k)
	if hit {
		c.opt.Metrics.Hit()
		c.opt.OnHit(k)
	} else {
		c.opt.Metrics.Miss()
		c.opt.OnMiss(k)
	}

	if hit && !bypassCache {
		c.refreshLater(ctx, k)
		return e.val, true, nil
	}

	v, ok, err := c.load(ctx, k, false)
	if c.closed.Load() {
		return zero, false, ErrClosed
	}
	if err != nil {
		return zero, false, nil
	}
	if ok {
		c.putInternal(k, v, ChangeLoad)
		return v, true, nil
	}
	if c.opt.RemoveOnNilLoad {
		c.removeInternal(k, ChangeRemove)
	}
	return zero, false, nil
}

func (c *cache[K, V]) Put(k K, v V) error {
	if err := c.checkKey(k); err != nil {
		return err
	}
	if err := validateValue(v); err != nil {
		return err
	}
	c.putInternal(k, v, ChangePut)
	return nil
}

func (c *cache[K, V]) PutAll(entries map[K]V) error {
	if c.closed.Load() {
		return ErrClosed
	}
	var errs error
	for k, v := range entries {
		if err := validateKey(k); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("key %v: %w", k, err))
			continue
		}
		if err := validateValue(v); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("key %v: %w", k, err))
		}
	}
	if errs != nil {
		return errs
	}
	for k, v := range entries {
		c.putInternal(k, v, ChangePut)
	}
	return nil
}

func (c *cache[K, V]) Remove(k K) (V, bool, error) {
	if err := c.checkKey(k); err != nil {
		var zero V
		return zero, false, err
	}
	v, ok := c.removeInternal(k, ChangeRemove)
	return v, ok, nil
}

func (c *cache[K, V]) ContainsKey(k K) (bool, error) {
	if err := c.checkKey(k); err != nil {
		return false, err
	}
	_, ok := c.store.Load(k)
	return ok, nil
}

func (c *cache[K, V]) IsEmpty() bool { return c.store.Len() == 0 }

func (c *cache[K, V]) Size() int { return c.store.Len() }

func (c *cache[K, V]) Clear() {
	drained := c.store.Drain()
	for _, e := range drained {
		e.retire()
	}
	c.opt.Metrics.Size(c.store.Len())
	log.Debugw("cache cleared", "entries", len(drained))
}

func (c *cache[K, V]) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.Clear()
	return nil
}

// ---- internals ----

func (c *cache[K, V]) checkKey(k K) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return validateKey(k)
}

// load calls the Loader and routes failures to OnLoadError.
// A value of a nil-able type that is nil counts as "no value".
func (c *cache[K, V]) load(ctx context.Context, k K, background bool) (V, bool, error) {
	c.opt.Metrics.Load(background)
	v, ok, err := c.opt.Loader(ctx, k)
	if err != nil {
		c.opt.Metrics.LoadError(background)
		log.Debugw("load failed", "key", k, "background", background, "err", err)
		c.opt.OnLoadError(k, err)
		var zero V
		return zero, false, err
	}
	if !ok || isNil(v) {
		var zero V
		return zero, false, nil
	}
	return v, true, nil
}

// refreshLater submits a refresh of k. The refresh outlives the caller's
// context cancellation but keeps its values.
func (c *cache[K, V]) refreshLater(ctx context.Context, k K) {
	bg := context.WithoutCancel(ctx)
	c.opt.Runner.Submit(func() { c.refreshNow(bg, k) })
}

// refreshNow runs on a runner worker. It never records hits or misses.
func (c *cache[K, V]) refreshNow(ctx context.Context, k K) {
	if c.closed.Load() {
		return
	}
	c.opt.BeforeRefresh(k)

	var (
		v   V
		ok  bool
		err error
	)
	if c.opt.CoalesceRefresh {
		var (
			r      loadResult[V]
			shared bool
		)
		r, err, shared = c.sf.Do(ctx, k, func() (loadResult[V], error) {
			v, ok, err := c.load(ctx, k, true)
			return loadResult[V]{val: v, ok: ok}, err
		})
		if shared {
			// The leader stores the result and fires the hooks.
			log.Debugw("refresh coalesced", "key", k)
			return
		}
		v, ok = r.val, r.ok
	} else {
		v, ok, err = c.load(ctx, k, true)
	}
	if err != nil {
		return
	}
	if c.closed.Load() {
		log.Debugw("refresh result dropped, cache closed", "key", k)
		return
	}

	if ok {
		c.putInternal(k, v, ChangeLoad)
		c.opt.AfterRefresh(k, v)
		return
	}
	if c.opt.RemoveOnNilLoad {
		c.removeInternal(k, ChangeRemove)
	}
}

// putInternal stores v under k, retires the entry it replaces and arms a TTL
// expiration for the new entry. AfterChange fires unless the value is equal
// to the one replaced. A store that lands after Close is undone.
func (c *cache[K, V]) putInternal(k K, v V, reason ChangeReason) {
	e := newEntry(v, c.seq.Add(1))
	old, replaced := c.store.Swap(k, e)
	if replaced {
		old.retire()
	}
	// Close sets closed before draining, so a Swap that missed the drain
	// sees it here.
	if c.closed.Load() {
		if gone, ok := c.store.CompareAndDelete(k, e.ver); ok {
			gone.retire()
		}
		return
	}
	if c.opt.TTL > 0 {
		ver := e.ver
		e.arm(c.opt.Runner.Schedule(c.opt.TTL, func() { c.expire(k, ver) }))
	}
	c.opt.Metrics.Size(c.store.Len())

	if replaced && c.opt.Equal(old.val, v) {
		return
	}
	ch := Change[K, V]{Key: k, New: v, HasNew: true, Reason: reason}
	if replaced {
		ch.Old, ch.HadOld = old.val, true
	}
	c.notify(ch)
}

// removeInternal deletes k and fires AfterChange if an entry was present.
func (c *cache[K, V]) removeInternal(k K, reason ChangeReason) (V, bool) {
	old, ok := c.store.Delete(k)
	if !ok {
		var zero V
		return zero, false
	}
	old.retire()
	c.opt.Metrics.Size(c.store.Len())
	c.notify(Change[K, V]{Key: k, Old: old.val, HadOld: true, Reason: reason})
	return old.val, true
}

// expire runs when the TTL of the entry stored with version ver elapses.
// It removes k only if that entry is still resident, so an expiration whose
// cancellation lost a race against a newer store is a no-op.
func (c *cache[K, V]) expire(k K, ver uint64) {
	if c.closed.Load() {
		return
	}
	old, ok := c.store.CompareAndDelete(k, ver)
	if !ok {
		log.Debugw("stale expiration ignored", "key", k, "version", ver)
		return
	}
	old.retire()
	c.opt.Metrics.Size(c.store.Len())
	c.notify(Change[K, V]{Key: k, Old: old.val, HadOld: true, Reason: ChangeExpire})
}

func (c *cache[K, V]) notify(ch Change[K, V]) {
	c.opt.Metrics.Change(ch.Reason)
	c.opt.AfterChange(ch)
}
