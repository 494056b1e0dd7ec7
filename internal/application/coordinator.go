// Package application contains use-case orchestration: the cache-first
// load pipeline, the per-domain collections built on it, guarded
// mutations, and the draft lifecycle.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lvalenta/pilltrack/internal/cache"
	"github.com/lvalenta/pilltrack/internal/domain/model"
	"github.com/lvalenta/pilltrack/internal/domain/port/driven"
)

// Outcome is the simplified result a Load caller receives. Fetch errors
// are absorbed here; only mutation errors propagate verbatim.
type Outcome string

const (
	// OutcomeUsingCache means the cached snapshot (possibly stale) is the
	// final value for this call.
	OutcomeUsingCache Outcome = "using_cache"
	// OutcomeRefreshed means a remote fetch succeeded and was published.
	OutcomeRefreshed Outcome = "refreshed"
	// OutcomeFailedNoCache means the fetch failed and nothing was cached
	// to fall back on.
	OutcomeFailedNoCache Outcome = "failed_no_cache"
)

// FetchFunc retrieves one owner's collection from the remote store.
type FetchFunc[T any] func(ctx context.Context, ownerID string) ([]T, error)

// Options configures one collection's coordinator.
type Options struct {
	// Collection is the cache key namespace, e.g. "prescriptions".
	Collection string
	// TTL is how long a fetched snapshot stays fresh.
	TTL time.Duration
	// FetchTimeout bounds a single remote fetch. It also acts as the
	// watchdog cap on the in-flight marker: a hung fetch cannot starve
	// later loads.
	FetchTimeout time.Duration
}

const (
	defaultTTL          = 5 * time.Minute
	defaultFetchTimeout = 10 * time.Second
)

// Coordinator runs the stampede-safe, cache-first read pipeline for one
// collection: publish cached snapshot, decide whether to fetch, dedupe
// concurrent fetches, write through, notify subscribers. All cache
// writes for the collection flow through it (single-writer discipline).
type Coordinator[T any] struct {
	opts   Options
	store  *cache.Store[[]T]
	meta   driven.SyncMetaStore
	probe  driven.ConnectivityProbe
	fetch  FetchFunc[T]
	sort   func([]T)
	logger *slog.Logger
	now    func() time.Time

	group singleflight.Group

	mu     sync.Mutex
	latest map[string][]T
	asOf   map[string]time.Time
	subs   map[string][]*Subscription[T]
}

// NewCoordinator creates a coordinator for one collection. sortFn is the
// domain's ordering policy, applied to every fetched snapshot before it
// is written through; it may be nil.
func NewCoordinator[T any](
	opts Options,
	meta driven.SyncMetaStore,
	probe driven.ConnectivityProbe,
	fetch FetchFunc[T],
	sortFn func([]T),
	logger *slog.Logger,
) *Coordinator[T] {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator[T]{
		opts:   opts,
		store:  cache.New[[]T](),
		meta:   meta,
		probe:  probe,
		fetch:  fetch,
		sort:   sortFn,
		logger: logger,
		now:    time.Now,
		latest: make(map[string][]T),
		asOf:   make(map[string]time.Time),
		subs:   make(map[string][]*Subscription[T]),
	}
}

// Load runs the cache-first read for one owner.
//
// The cached snapshot, when present, is published synchronously before
// any network activity; screens never block on a spinner while stale
// data exists. Offline with force unset, the cached value (even expired)
// is final. Concurrent loads for the same key share a single remote
// fetch. A fetch failure is suppressed when a cached value was already
// published and surfaced only when nothing was cached at all.
func (c *Coordinator[T]) Load(ctx context.Context, ownerID string, force bool) (Outcome, error) {
	key := cache.Key(c.opts.Collection, ownerID)

	rec, hadCache := c.store.Get(key)
	if hadCache {
		c.publish(key, rec.Value, rec.CreatedAt)
	} else {
		// First sight of this key: publish an empty snapshot so screens
		// render an empty state instead of blocking while the fetch runs.
		c.mu.Lock()
		_, seen := c.latest[key]
		c.mu.Unlock()
		if !seen {
			c.publish(key, []T{}, c.now())
		}
	}

	if !force {
		if conn := c.probe.Check(ctx); !conn.Online() {
			if hadCache {
				return OutcomeUsingCache, nil
			}
			return OutcomeFailedNoCache, fmt.Errorf("load %s: %w", key, model.ErrOffline)
		}
		if hadCache && !rec.Expired(c.now()) {
			return OutcomeUsingCache, nil
		}
	}

	ch := c.group.DoChan(key, func() (any, error) {
		return c.refresh(ownerID, key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			if hadCache {
				c.logger.Warn("refresh failed, keeping cached value",
					"key", key,
					"error", res.Err,
				)
				return OutcomeUsingCache, nil
			}
			return OutcomeFailedNoCache, res.Err
		}
		return OutcomeRefreshed, nil
	case <-ctx.Done():
		// The shared fetch keeps running so the cache and other
		// subscribers still get the result; this caller stops waiting.
		if hadCache {
			return OutcomeUsingCache, ctx.Err()
		}
		return OutcomeFailedNoCache, ctx.Err()
	}
}

// refresh performs the remote fetch with write-through. It runs inside
// the singleflight group, detached from any caller's context, and is
// bounded by FetchTimeout: a fetch that outlives the timeout releases
// the in-flight marker and its late result is discarded so it can never
// overwrite a newer snapshot.
func (c *Coordinator[T]) refresh(ownerID, key string) ([]T, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.FetchTimeout)
	defer cancel()

	type result struct {
		records []T
		err     error
	}

	done := make(chan result, 1)
	go func() {
		records, err := c.fetch(ctx, ownerID)
		done <- result{records: records, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("fetch %s: %w", key, res.err)
		}

		records := res.records
		if records == nil {
			records = []T{}
		}
		if c.sort != nil {
			c.sort(records)
		}

		c.writeThrough(key, records, c.opts.TTL)

		if err := c.meta.Upsert(ctx, model.SyncMetadata{
			Collection:  c.opts.Collection,
			OwnerID:     ownerID,
			LastSyncAt:  c.now(),
			RecordCount: len(records),
		}); err != nil {
			c.logger.Warn("sync metadata update failed", "key", key, "error", err)
		}

		return records, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch %s: %w", key, ctx.Err())
	}
}

// writeThrough stores the snapshot and publishes it stamped with the
// stored record's creation time, so publish ordering and cache state
// always agree.
func (c *Coordinator[T]) writeThrough(key string, records []T, ttl time.Duration) {
	c.store.Set(key, records, ttl)
	if rec, ok := c.store.Get(key); ok {
		c.publish(key, rec.Value, rec.CreatedAt)
	}
}

// publish records the latest snapshot for key and notifies live
// subscribers. Ordering is monotonic per key: a snapshot strictly older
// than the last published one is dropped, so cached data can never
// overwrite a fresher fetch result that raced ahead of it.
func (c *Coordinator[T]) publish(key string, records []T, asOf time.Time) {
	c.mu.Lock()
	if last, ok := c.asOf[key]; ok && asOf.Before(last) {
		c.mu.Unlock()
		return
	}
	c.asOf[key] = asOf
	c.latest[key] = records

	live := c.subs[key][:0]
	for _, sub := range c.subs[key] {
		if sub.alive() {
			live = append(live, sub)
		}
	}
	c.subs[key] = live
	targets := slices.Clone(live)
	c.mu.Unlock()

	for _, sub := range targets {
		sub.deliver(records)
	}
}

// Current returns the last published snapshot for the owner, falling
// back to the cached record before the first publish. Nil when nothing
// is known yet.
func (c *Coordinator[T]) Current(ownerID string) []T {
	key := cache.Key(c.opts.Collection, ownerID)

	c.mu.Lock()
	records, ok := c.latest[key]
	c.mu.Unlock()
	if ok {
		return records
	}

	if rec, ok := c.store.Get(key); ok {
		return rec.Value
	}
	return nil
}

// Subscribe registers an observer for the owner's collection. Multiple
// screens observing the same collection share one coordinator and never
// trigger duplicate fetches. The last published snapshot, if any, is
// delivered immediately.
func (c *Coordinator[T]) Subscribe(ctx context.Context, ownerID string) *Subscription[T] {
	key := cache.Key(c.opts.Collection, ownerID)
	sub := newSubscription[T](ctx)

	c.mu.Lock()
	c.subs[key] = append(c.subs[key], sub)
	snapshot, ok := c.latest[key]
	c.mu.Unlock()

	if ok {
		sub.deliver(snapshot)
	}
	return sub
}

// ApplyLocal rewrites the current snapshot through fn and republishes,
// preserving the cached record's expiry wall-clock so an optimistic
// update never makes stale data look freshly synced. The mutation guard
// is the only intended caller; nothing else writes the cache directly.
func (c *Coordinator[T]) ApplyLocal(ownerID string, fn func([]T) []T) {
	key := cache.Key(c.opts.Collection, ownerID)
	now := c.now()

	var base []T
	var remaining time.Duration
	if rec, ok := c.store.Get(key); ok {
		base = rec.Value
		remaining = rec.Remaining(now)
	} else {
		c.mu.Lock()
		base = c.latest[key]
		c.mu.Unlock()
	}

	updated := fn(slices.Clone(base))
	if c.sort != nil {
		c.sort(updated)
	}

	c.writeThrough(key, updated, remaining)
}

// Invalidate drops the owner's cached snapshot so the next Load
// re-fetches. The last published value stays visible in the meantime.
func (c *Coordinator[T]) Invalidate(ownerID string) {
	c.store.Invalidate(cache.Key(c.opts.Collection, ownerID))
}

// RemainingTTL exposes the cached snapshot's remaining freshness window.
func (c *Coordinator[T]) RemainingTTL(ownerID string) time.Duration {
	return c.store.RemainingTTL(cache.Key(c.opts.Collection, ownerID))
}

// Metadata returns the owner's last sync metadata, nil when the
// collection has never synced.
func (c *Coordinator[T]) Metadata(ctx context.Context, ownerID string) (*model.SyncMetadata, error) {
	return c.meta.Get(ctx, c.opts.Collection, ownerID)
}

// Collection returns the coordinator's cache key namespace.
func (c *Coordinator[T]) Collection() string {
	return c.opts.Collection
}
