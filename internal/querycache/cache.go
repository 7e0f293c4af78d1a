// Package querycache is the keyed store of server data shared by every hook.
package querycache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"chub/internal/observability"

	"golang.org/x/sync/singleflight"
)

// EventType describes a change to a cache entry.
type EventType string

const (
	EventUpdated     EventType = "updated"
	EventInvalidated EventType = "invalidated"
	EventRemoved     EventType = "removed"
)

// Event is delivered to subscribers after the cache lock is released.
type Event struct {
	Type EventType
	Key  Key
}

// ErrRemoved is returned to callers of a fetch whose entry was removed, for
// example by Clear on logout, before the result landed. The result is dropped.
var ErrRemoved = errors.New("query cache: entry removed while fetching")

// FetchFunc loads the value for a key.
type FetchFunc func(ctx context.Context) (any, error)

// MarkFunc reads a position in an outside sequence when a fetch starts. Every
// caller sharing the fetch gets that one mark back with the data.
type MarkFunc func() uint64

// Snapshot is the observable state of one entry.
type Snapshot struct {
	Data      any
	Err       error
	HasData   bool
	Stale     bool
	Fetching  bool
	UpdatedAt time.Time
	// Mark is the mark taken when the fetch that produced Data started.
	Mark uint64
}

type entry struct {
	key       Key
	data      any
	err       error
	hasData   bool
	updatedAt time.Time
	// invalidated is set by Invalidate and cleared by a fetch that started after it.
	invalidated bool
	generation  uint64
	fetching    int
	mark        uint64
	loadMark    uint64
	// serial names this incarnation of the key; a removed and recreated
	// entry never joins the old entry's fetch.
	serial uint64
}

type loaded struct {
	data any
	mark uint64
}

// Cache is safe for concurrent use. Writes are last-write-wins per key.
type Cache struct {
	staleTime time.Duration
	now       func() time.Time
	log       *observability.ClientLogger
	group     singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry
	serial  uint64
	subs    map[int]func(Event)
	nextSub int
}

// Option configures a Cache.
type Option func(*Cache)

// WithStaleTime keeps fetched data fresh for d. Zero means data is stale as
// soon as it is written, so every Fetch goes to the network.
func WithStaleTime(d time.Duration) Option {
	return func(c *Cache) { c.staleTime = d }
}

// WithClock overrides the clock used for staleness.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger for cache events.
func WithLogger(l *observability.Logger) Option {
	return func(c *Cache) { c.log = observability.NewClientLogger("querycache", l) }
}

// New returns an empty Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		now:     time.Now,
		log:     observability.NewClientLogger("querycache", nil),
		entries: make(map[string]*entry),
		subs:    make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) entryLocked(key Key) *entry {
	e, ok := c.entries[key.id()]
	if !ok {
		c.serial++
		e = &entry{key: key.clone(), serial: c.serial}
		c.entries[key.id()] = e
	}
	return e
}

func (c *Cache) staleLocked(e *entry) bool {
	if !e.hasData || e.invalidated {
		return true
	}
	if c.staleTime <= 0 {
		return true
	}
	return c.now().Sub(e.updatedAt) >= c.staleTime
}

// Fetch returns fresh cached data for key, or runs fn and stores its result.
// Concurrent fetches of one key share a single call of fn. A result that lands
// after an Invalidate issued during the fetch is stored but stays stale; one
// that lands after the entry was removed is dropped and ErrRemoved returned.
func (c *Cache) Fetch(ctx context.Context, key Key, fn FetchFunc) (any, error) {
	data, _, err := c.FetchMarked(ctx, key, nil, fn)
	return data, err
}

// FetchMarked is Fetch that also reports the mark of the fetch that produced
// the data. mark runs once, when the shared fetch starts; nil means zero.
func (c *Cache) FetchMarked(ctx context.Context, key Key, mark MarkFunc, fn FetchFunc) (any, uint64, error) {
	c.mu.Lock()
	e := c.entryLocked(key)
	if !c.staleLocked(e) {
		data, m := e.data, e.mark
		c.mu.Unlock()
		observability.QueryCacheEvents.WithLabelValues("hit").Inc()
		c.log.LogCache(ctx, "hit", key.String())
		return data, m, nil
	}
	flight := fmt.Sprintf("%s#%d", key.id(), e.serial)
	c.mu.Unlock()

	ch := c.group.DoChan(flight, func() (any, error) {
		return c.load(ctx, key, e, mark, fn)
	})
	select {
	case res := <-ch:
		if res.Shared {
			observability.QueryCacheEvents.WithLabelValues("shared").Inc()
		}
		if res.Err != nil {
			return nil, 0, res.Err
		}
		l := res.Val.(loaded)
		return l.data, l.mark, nil
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}
}

func (c *Cache) load(ctx context.Context, key Key, e *entry, mark MarkFunc, fn FetchFunc) (any, error) {
	c.mu.Lock()
	if c.entries[key.id()] != e {
		c.mu.Unlock()
		return nil, ErrRemoved
	}
	gen := e.generation
	var m uint64
	if mark != nil {
		m = mark()
	}
	e.fetching++
	e.loadMark = m
	c.mu.Unlock()

	observability.QueryCacheEvents.WithLabelValues("miss").Inc()
	c.log.LogCache(ctx, "miss", key.String())

	data, err := fn(ctx)

	c.mu.Lock()
	if e.fetching > 0 {
		e.fetching--
	}
	if c.entries[key.id()] != e {
		c.mu.Unlock()
		c.log.LogCache(ctx, "discard", key.String())
		return nil, ErrRemoved
	}
	if err != nil {
		e.err = err
		c.mu.Unlock()
		return nil, err
	}
	e.data = data
	e.err = nil
	e.hasData = true
	e.updatedAt = c.now()
	e.invalidated = e.generation != gen
	e.mark = m
	subs := c.subscribersLocked()
	c.mu.Unlock()

	c.emit(subs, Event{Type: EventUpdated, Key: key.clone()})
	return loaded{data: data, mark: m}, nil
}

// MarkFloor returns the lowest mark held by stored data or an in-flight fetch,
// or the largest uint64 when the cache holds neither.
func (c *Cache) MarkFloor() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	floor := ^uint64(0)
	for _, e := range c.entries {
		if e.hasData {
			floor = min(floor, e.mark)
		}
		if e.fetching > 0 {
			floor = min(floor, e.loadMark)
		}
	}
	return floor
}

// Peek reports the entry state without fetching.
func (c *Cache) Peek(key Key) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.id()]
	if !ok {
		return Snapshot{Stale: true}
	}
	return Snapshot{
		Data:      e.data,
		Err:       e.err,
		HasData:   e.hasData,
		Stale:     c.staleLocked(e),
		Fetching:  e.fetching > 0,
		UpdatedAt: e.updatedAt,
		Mark:      e.mark,
	}
}

// IsStale reports whether the next Fetch of key would go to the network.
func (c *Cache) IsStale(key Key) bool {
	return c.Peek(key).Stale
}

// Set stores data under key as freshly fetched. Its mark is zero.
func (c *Cache) Set(key Key, data any) {
	c.mu.Lock()
	e := c.entryLocked(key)
	e.data = data
	e.mark = 0
	e.err = nil
	e.hasData = true
	e.updatedAt = c.now()
	e.invalidated = false
	subs := c.subscribersLocked()
	c.mu.Unlock()
	c.emit(subs, Event{Type: EventUpdated, Key: key.clone()})
}

// Update replaces the data stored under key with fn(old). It does nothing and
// returns false when the key holds no data. Staleness is unchanged.
func (c *Cache) Update(key Key, fn func(old any) any) bool {
	c.mu.Lock()
	e, ok := c.entries[key.id()]
	if !ok || !e.hasData {
		c.mu.Unlock()
		return false
	}
	e.data = fn(e.data)
	subs := c.subscribersLocked()
	c.mu.Unlock()
	c.emit(subs, Event{Type: EventUpdated, Key: key.clone()})
	return true
}

// UpdatePrefix applies fn to every entry with data whose key has prefix and
// returns how many entries were touched.
func (c *Cache) UpdatePrefix(prefix Key, fn func(key Key, old any) any) int {
	c.mu.Lock()
	var touched []Key
	for _, e := range c.entries {
		if !e.hasData || !e.key.HasPrefix(prefix) {
			continue
		}
		e.data = fn(e.key.clone(), e.data)
		touched = append(touched, e.key.clone())
	}
	subs := c.subscribersLocked()
	c.mu.Unlock()

	for _, k := range touched {
		c.emit(subs, Event{Type: EventUpdated, Key: k})
	}
	return len(touched)
}

// Invalidate marks every entry under any of the prefixes stale so the next
// read refetches. It returns the number of entries marked.
func (c *Cache) Invalidate(prefixes ...Key) int {
	c.mu.Lock()
	var marked []Key
	for _, e := range c.entries {
		if !matchesAny(e.key, prefixes) {
			continue
		}
		e.invalidated = true
		e.generation++
		marked = append(marked, e.key.clone())
	}
	subs := c.subscribersLocked()
	c.mu.Unlock()

	observability.QueryCacheInvalidations.Add(float64(len(marked)))
	for _, k := range marked {
		c.log.LogCache(context.Background(), "invalidate", k.String())
		c.emit(subs, Event{Type: EventInvalidated, Key: k})
	}
	return len(marked)
}

// Remove drops every entry under any of the prefixes.
func (c *Cache) Remove(prefixes ...Key) int {
	c.mu.Lock()
	var removed []Key
	for id, e := range c.entries {
		if !matchesAny(e.key, prefixes) {
			continue
		}
		delete(c.entries, id)
		removed = append(removed, e.key)
	}
	subs := c.subscribersLocked()
	c.mu.Unlock()

	for _, k := range removed {
		c.emit(subs, Event{Type: EventRemoved, Key: k})
	}
	return len(removed)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.Remove(Key{})
}

// Keys lists the cached keys in lexical order.
func (c *Cache) Keys() []Key {
	c.mu.Lock()
	keys := make([]Key, 0, len(c.entries))
	for _, e := range c.entries {
		keys = append(keys, e.key.clone())
	}
	c.mu.Unlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Subscribe registers fn for cache events and returns an unsubscribe function.
func (c *Cache) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Cache) subscribersLocked() []func(Event) {
	if len(c.subs) == 0 {
		return nil
	}
	out := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		out = append(out, fn)
	}
	return out
}

func (c *Cache) emit(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(ev)
	}
}

func matchesAny(k Key, prefixes []Key) bool {
	for _, p := range prefixes {
		if k.HasPrefix(p) {
			return true
		}
	}
	return false
}

// FetchAs is Fetch with a typed result.
func FetchAs[T any](ctx context.Context, c *Cache, key Key, fn func(ctx context.Context) (T, error)) (T, error) {
	out, _, err := FetchMarkedAs(ctx, c, key, nil, fn)
	return out, err
}

// FetchMarkedAs is FetchMarked with a typed result.
func FetchMarkedAs[T any](ctx context.Context, c *Cache, key Key, mark MarkFunc, fn func(ctx context.Context) (T, error)) (T, uint64, error) {
	v, m, err := c.FetchMarked(ctx, key, mark, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, 0, err
	}
	out, ok := v.(T)
	if !ok {
		var zero T
		return zero, 0, fmt.Errorf("query cache: %s holds %T, not %T", key, v, zero)
	}
	return out, m, nil
}

// GetAs returns the typed data stored under key, if any.
func GetAs[T any](c *Cache, key Key) (T, bool) {
	snap := c.Peek(key)
	out, ok := snap.Data.(T)
	return out, ok && snap.HasData
}

// UpdateAs is Update for entries holding a T. Entries of another type are left alone.
func UpdateAs[T any](c *Cache, key Key, fn func(T) T) bool {
	applied := false
	c.Update(key, func(old any) any {
		v, ok := old.(T)
		if !ok {
			return old
		}
		applied = true
		return fn(v)
	})
	return applied
}

// UpdatePrefixAs is UpdatePrefix for entries holding a T.
func UpdatePrefixAs[T any](c *Cache, prefix Key, fn func(T) T) int {
	n := 0
	c.UpdatePrefix(prefix, func(_ Key, old any) any {
		v, ok := old.(T)
		if !ok {
			return old
		}
		n++
		return fn(v)
	})
	return n
}
