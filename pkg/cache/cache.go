// Package cache implements the in-memory response cache that sits between
// the handlers and the upstream config APIs. Entries carry a fresh TTL, a
// stale-while-revalidate window, and invalidation tags so a change event can
// drop every response derived from the scope it names.
package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Options sets the cache windows and capacity.
type Options struct {
	TTL                  time.Duration
	StaleWhileRevalidate time.Duration
	NegativeTTL          time.Duration
	MaxEntries           int
}

// MetricsHooks receives lookup outcomes. Nil hooks are skipped.
type MetricsHooks struct {
	OnHit   func(labels map[string]string)
	OnMiss  func(labels map[string]string)
	OnStale func(labels map[string]string)
	OnStore func(labels map[string]string)
	// OnError fires when a load fails and the failure is not worth caching,
	// which happens whenever NegativeTTL is zero.
	OnError func(labels map[string]string)
}

// record is one cached response. freshUntil ends the fresh window and
// serveUntil ends the stale-while-revalidate window; a negative record sets
// both to the same instant since errors are never served stale.
type record struct {
	payload    interface{}
	loadErr    error
	freshUntil time.Time
	serveUntil time.Time
	negative   bool
	storedAt   time.Time
	tags       []string
}

type lookupState int

const (
	lookupMiss lookupState = iota
	lookupFresh
	lookupStale
	lookupExpired
)

// stateAt classifies the record against its two windows.
func (r *record) stateAt(now time.Time) lookupState {
	switch {
	case now.Before(r.freshUntil):
		return lookupFresh
	case now.Before(r.serveUntil):
		return lookupStale
	default:
		return lookupExpired
	}
}

// Cache is safe for concurrent use. Loads are deduplicated per key, so a
// thundering herd on one expired entry costs a single upstream call.
type Cache struct {
	mu      sync.RWMutex
	items   map[string]*record
	order   []string
	tags    map[string]map[string]struct{}
	opts    Options
	metrics MetricsHooks
	sf      singleflight.Group
}

// SnapshotEntry is a point-in-time view of one entry, for debugging.
type SnapshotEntry struct {
	Key       string
	Value     interface{}
	Err       error
	ExpiresAt time.Time
	StaleAt   time.Time
	StoredAt  time.Time
	Negative  bool
}

func New(opts Options, hooks MetricsHooks) *Cache {
	return &Cache{
		items:   make(map[string]*record),
		tags:    make(map[string]map[string]struct{}),
		opts:    opts,
		metrics: hooks,
	}
}

// Loader fetches the value for key. ok=false marks a negative result whose
// error may be cached for NegativeTTL.
type Loader func(ctx context.Context, key string) (interface{}, bool, error)

// loaded carries a Loader's three results through singleflight, which only
// passes one value.
type loaded struct {
	value interface{}
	ok    bool
	err   error
}

// inspect classifies the entry under key without loading anything.
func (c *Cache) inspect(key string, now time.Time) (val interface{}, negErr error, negative bool, tags []string, state lookupState) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.items[key]
	if !ok {
		return nil, nil, false, nil, lookupMiss
	}
	if state = r.stateAt(now); state == lookupExpired {
		return nil, nil, false, nil, lookupExpired
	}
	return r.payload, r.loadErr, r.negative, r.tags, state
}

func (c *Cache) Get(ctx context.Context, key string, loader Loader) (interface{}, bool, error) {
	return c.GetWithTags(ctx, key, nil, loader)
}

// GetWithTags behaves like Get but records the given tags when the loaded
// value is stored, so the entry can later be dropped via InvalidateTag.
func (c *Cache) GetWithTags(ctx context.Context, key string, tags []string, loader Loader) (interface{}, bool, error) {
	val, negErr, negative, entryTags, state := c.inspect(key, time.Now())

	switch state {
	case lookupFresh:
		c.hook(c.metrics.OnHit, map[string]string{"key": key})
		if negative {
			return nil, false, negErr
		}
		return val, true, nil

	case lookupStale:
		// Serve the stale value now and refresh once in the background.
		// The refreshed entry keeps the tags it was stored under, and the
		// reload must outlive the request that tripped it.
		c.hook(c.metrics.OnStale, map[string]string{"key": key})
		refreshCtx := context.WithoutCancel(ctx)
		go func() {
			_, _, _ = c.sf.Do("refresh:"+key, func() (interface{}, error) {
				c.refresh(refreshCtx, key, entryTags, loader)
				return nil, nil
			})
		}()
		if negative {
			return nil, false, negErr
		}
		return val, true, nil

	case lookupExpired:
		// Past the stale window; drop it and load like a miss.
		c.Delete(key)
	}

	c.hook(c.metrics.OnMiss, map[string]string{"key": key})
	flight, _, _ := c.sf.Do(key, func() (interface{}, error) {
		value, ok, err := loader(ctx, key)
		c.store(key, value, ok, err, tags)
		return loaded{value: value, ok: ok, err: err}, nil
	})
	result := flight.(loaded)
	if !result.ok {
		return nil, false, result.err
	}
	return result.value, true, nil
}

func (c *Cache) hook(fn func(map[string]string), labels map[string]string) {
	if fn != nil {
		fn(labels)
	}
}

func (c *Cache) refresh(ctx context.Context, key string, tags []string, loader Loader) {
	value, ok, err := loader(ctx, key)
	c.store(key, value, ok, err, tags)
}

func (c *Cache) store(key string, val interface{}, ok bool, err error, tags []string) {
	now := time.Now()
	r := &record{storedAt: now, tags: tags}
	switch {
	case ok:
		r.payload = val
		r.freshUntil = now.Add(c.opts.TTL)
		r.serveUntil = r.freshUntil.Add(c.opts.StaleWhileRevalidate)
	case c.opts.NegativeTTL > 0:
		r.loadErr = err
		r.negative = true
		r.freshUntil = now.Add(c.opts.NegativeTTL)
		r.serveUntil = r.freshUntil
	default:
		c.hook(c.metrics.OnError, map[string]string{"key": key})
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	prev, exists := c.items[key]
	if exists {
		// Overwrite keeps the order slot but must release the old tags.
		c.removeTagsLocked(key, prev.tags)
	} else {
		c.order = append(c.order, key)
	}
	c.items[key] = r
	c.addTagsLocked(key, tags)
	c.trimToCapacity()
	c.hook(c.metrics.OnStore, map[string]string{"key": key, "ok": strconv.FormatBool(ok)})
}

func (c *Cache) dropOrderSlot(key string) {
	for i, k := range c.order {
		if k != key {
			continue
		}
		c.order = append(c.order[:i], c.order[i+1:]...)
		return
	}
}

func (c *Cache) addTagsLocked(key string, tags []string) {
	for _, tag := range tags {
		set, ok := c.tags[tag]
		if !ok {
			set = make(map[string]struct{})
			c.tags[tag] = set
		}
		set[key] = struct{}{}
	}
}

func (c *Cache) removeTagsLocked(key string, tags []string) {
	for _, tag := range tags {
		if set, ok := c.tags[tag]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(c.tags, tag)
			}
		}
	}
}

// deleteLocked removes an entry plus its order slot and tag index links.
func (c *Cache) deleteLocked(key string) {
	if r, ok := c.items[key]; ok {
		c.removeTagsLocked(key, r.tags)
	}
	delete(c.items, key)
	c.dropOrderSlot(key)
}

// trimToCapacity drops the oldest entries, FIFO in insertion order, until
// the cache fits MaxEntries again.
func (c *Cache) trimToCapacity() {
	if c.opts.MaxEntries <= 0 {
		return
	}
	for len(c.items) > c.opts.MaxEntries && len(c.order) > 0 {
		victim := c.order[0]
		c.order = c.order[1:]
		if r, ok := c.items[victim]; ok {
			c.removeTagsLocked(victim, r.tags)
		}
		delete(c.items, victim)
	}
}

// Set stores a value directly, bypassing the loader path. The entry carries
// no tags.
func (c *Cache) Set(key string, val interface{}, ttl time.Duration) {
	now := time.Now()
	r := &record{
		payload:    val,
		freshUntil: now.Add(ttl),
		serveUntil: now.Add(ttl).Add(c.opts.StaleWhileRevalidate),
		storedAt:   now,
	}
	c.mu.Lock()
	prev, exists := c.items[key]
	if exists {
		c.removeTagsLocked(key, prev.tags)
	} else {
		c.order = append(c.order, key)
	}
	c.items[key] = r
	c.trimToCapacity()
	c.mu.Unlock()
}

// Peek returns a cached value without triggering a load. Stale entries are
// allowed; negatives and hard-expired entries are not.
func (c *Cache) Peek(key string) (interface{}, bool) {
	now := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.items[key]
	if !ok || r.negative || now.After(r.serveUntil) {
		return nil, false
	}
	return r.payload, true
}

// Snapshot copies the current entries for debugging and inspection.
func (c *Cache) Snapshot() []SnapshotEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]SnapshotEntry, 0, len(c.items))
	for key, r := range c.items {
		out = append(out, SnapshotEntry{
			Key:       key,
			Value:     r.payload,
			Err:       r.loadErr,
			ExpiresAt: r.freshUntil,
			StaleAt:   r.serveUntil,
			StoredAt:  r.storedAt,
			Negative:  r.negative,
		})
	}
	return out
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	c.deleteLocked(key)
	c.mu.Unlock()
}

// InvalidateTag drops every entry stored under the given tag and reports how
// many were removed. Unknown tags are a no-op.
func (c *Cache) InvalidateTag(tag string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.tags[tag]
	if !ok {
		return 0
	}
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	for _, key := range keys {
		c.deleteLocked(key)
	}
	return len(keys)
}

// Len reports the number of live entries, stale included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
