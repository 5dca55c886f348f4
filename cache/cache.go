// Package cache implements the always-on, stale-while-revalidate LRU
// described in spec §3/§4.4: entries are never evicted by TTL expiry
// alone, only by capacity pressure or explicit invalidation, and a stale
// hit is served immediately while at most one background refresh per key
// is in flight.
//
// The teacher's own cache (cache/cache.go, an approximate, sharded,
// random-sampling-eviction cache) does not satisfy the strict "evict the
// least recently used entry" property the spec requires, so this is a
// fresh container/list-based exact LRU rather than an adaptation of that
// file; see DESIGN.md.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"
)

// Status describes the outcome of a Get.
type Status int

const (
	// Miss means no entry exists for the key.
	Miss Status = iota
	// Fresh means the entry's min TTL has not yet elapsed.
	Fresh
	// Stale means the entry exists but its min TTL has elapsed; the
	// caller should serve it immediately and may trigger a refresh.
	Stale
)

// MinCacheTTL is the floor every entry's min_ttl is clamped to, per spec
// §3 ("clamped to ≥1s"), matching the teacher's util.MinCacheTTL floor
// philosophy for degenerate zero/negative TTL answers.
const MinCacheTTL = time.Second

// Result is the outcome of a Get: a Status plus the cached message when
// Status is Fresh or Stale.
type Result struct {
	Status Status
	Msg    *dns.Msg
}

type entry struct {
	key        uint64
	msg        *dns.Msg
	insertedAt time.Time
	minTTL     time.Duration
	refreshing atomic.Bool
	elem       *list.Element
}

// Cache is a size-bounded, exact LRU keyed by cache.Key, safe for
// concurrent use. A capacity of 0 disables caching entirely: Get always
// reports Miss and Put is a no-op, matching the "cache_size: 0" boundary
// case named in spec §8.
type Cache struct {
	mu       sync.Mutex
	capacity int
	items    map[uint64]*entry
	order    *list.List // front = most recently used

	now func() time.Time // overridable for tests
}

// New returns a Cache bounded to capacity entries.
func New(capacity int) *Cache {
	c := &Cache{
		capacity: capacity,
		items:    make(map[uint64]*entry),
		order:    list.New(),
		now:      time.Now,
	}
	return c
}

// Get reports whether key holds a Fresh, Stale, or absent entry. A Fresh
// or Stale hit moves the entry to the front of the LRU order.
func (c *Cache) Get(key uint64) Result {
	if c.capacity <= 0 {
		return Result{Status: Miss}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return Result{Status: Miss}
	}

	c.order.MoveToFront(e.elem)

	if c.now().Sub(e.insertedAt) < e.minTTL {
		return Result{Status: Fresh, Msg: e.msg}
	}
	return Result{Status: Stale, Msg: e.msg}
}

// Put inserts or overwrites the entry for key, evicting the least
// recently used entry if the cache is at capacity, and clears any
// in-flight refreshing flag (a fresh Put always supersedes a pending
// refresh).
func (c *Cache) Put(key uint64, msg *dns.Msg) {
	if c.capacity <= 0 {
		return
	}

	minTTL := ComputeMinTTL(msg)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		e.msg = msg
		e.insertedAt = c.now()
		e.minTTL = minTTL
		e.refreshing.Store(false)
		c.order.MoveToFront(e.elem)
		return
	}

	e := &entry{key: key, msg: msg, insertedAt: c.now(), minTTL: minTTL}
	e.elem = c.order.PushFront(e)
	c.items[key] = e

	if c.order.Len() > c.capacity {
		c.evictOldest()
	}
}

// evictOldest removes the back (least recently used) entry. Callers must
// hold c.mu.
func (c *Cache) evictOldest() {
	back := c.order.Back()
	if back == nil {
		return
	}
	e := back.Value.(*entry)
	c.order.Remove(back)
	delete(c.items, e.key)
}

// MarkRefreshing atomically sets key's refreshing flag from false to
// true, returning whether the caller won the race and should perform the
// background refresh. Reports false if the key is absent.
func (c *Cache) MarkRefreshing(key uint64) bool {
	c.mu.Lock()
	e, ok := c.items[key]
	c.mu.Unlock()
	if !ok {
		return false
	}
	return e.refreshing.CompareAndSwap(false, true)
}

// ClearRefreshing clears key's refreshing flag, allowing a subsequent
// stale hit to trigger another background refresh. Safe to call after
// the key has been evicted.
func (c *Cache) ClearRefreshing(key uint64) {
	c.mu.Lock()
	e, ok := c.items[key]
	c.mu.Unlock()
	if ok {
		e.refreshing.Store(false)
	}
}

// SetClockForTest overrides the cache's clock, for tests that need to
// force entries stale without a real sleep.
func (c *Cache) SetClockForTest(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Len reports the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// ComputeMinTTL returns the minimum TTL across msg's Answer records,
// clamped to ≥ MinCacheTTL, per spec §3's literal "min TTL across all
// answer RRs" definition. Unlike the teacher's broader
// util.CalculateCacheTTL (which also scans Ns/Extra), only the answer
// section is considered: a short-TTL authority or additional record must
// not make an entry go stale earlier than the spec mandates.
func ComputeMinTTL(msg *dns.Msg) time.Duration {
	min := time.Duration(-1)

	for _, rr := range msg.Answer {
		ttl := time.Duration(rr.Header().Ttl) * time.Second
		if min < 0 || ttl < min {
			min = ttl
		}
	}

	if min < MinCacheTTL {
		return MinCacheTTL
	}
	return min
}
