package hooks

import (
	"context"
	"errors"

	"chub/internal/apiclient"
	"chub/internal/querycache"
	"chub/internal/session"
)

// Result is what a query hands to the UI layer.
type Result[T any] struct {
	Data T
	// IsLoading is true while the first fetch is outstanding and no data exists.
	IsLoading bool
	// IsFetching is true while any fetch is outstanding.
	IsFetching bool
	Stale      bool
	// Idle means the query's gate is closed and no request was issued.
	Idle bool
	Err  error
	// Message is the user-facing text for Err.
	Message string
}

// overlayFunc writes tracked toggle values into a relationship flag and count.
type overlayFunc func(key string, flag *bool, count *int)

// Query is a gated, cached read.
type Query[T any] struct {
	c        *core
	key      querycache.Key
	enabled  bool
	fallback string
	fetch    func(ctx context.Context, token string) (T, error)
	view     func(data T, overlay overlayFunc) T
}

func newQuery[T any](c *core, key querycache.Key, enabled bool, fallback string, fetch func(ctx context.Context, token string) (T, error)) *Query[T] {
	return &Query[T]{c: c, key: key, enabled: enabled, fallback: fallback, fetch: fetch}
}

func (q *Query[T]) withView(view func(T, overlayFunc) T) *Query[T] {
	q.view = view
	return q
}

// Key returns the cache key.
func (q *Query[T]) Key() querycache.Key {
	return q.key
}

// Enabled reports whether the query's gate is open.
func (q *Query[T]) Enabled() bool {
	return q.enabled
}

// Fetch returns fresh data, sharing any in-flight request for the same key.
// It waits for the session to resolve and issues nothing for anonymous
// sessions or a closed gate.
func (q *Query[T]) Fetch(ctx context.Context) Result[T] {
	if !q.enabled {
		return Result[T]{Idle: true}
	}
	status, _ := q.c.session.Resolve(ctx)
	if status != session.StatusAuthenticated {
		return Result[T]{Idle: true}
	}
	token := q.c.session.Token()

	data, mark, err := querycache.FetchMarkedAs(ctx, q.c.cache, q.key, q.c.tracker.Mark, func(ctx context.Context) (T, error) {
		return q.fetch(ctx, token)
	})
	if errors.Is(err, querycache.ErrRemoved) {
		// The session that issued the request ended while it was in flight.
		return Result[T]{Idle: true}
	}
	if err != nil {
		res := q.Peek()
		res.IsLoading = false
		res.IsFetching = false
		res.Err = err
		res.Message = apiclient.UserMessage(err, q.fallback)
		return res
	}
	if q.view != nil {
		data = q.view(data, func(key string, flag *bool, count *int) {
			q.c.tracker.Apply(key, mark, flag, count)
		})
	}
	q.c.pruneToggles()
	return Result[T]{Data: data, Stale: q.c.cache.IsStale(q.key)}
}

// pruneToggles forgets settled toggles that no cached or in-flight data
// predates. The tracker is read first so a fetch starting in between carries
// a mark at least as new.
func (c *core) pruneToggles() {
	seq := c.tracker.Mark()
	c.tracker.Prune(min(seq, c.cache.MarkFloor()))
}

// Peek reports cached state without issuing a request.
func (q *Query[T]) Peek() Result[T] {
	if !q.enabled {
		return Result[T]{Idle: true}
	}
	snap := q.c.cache.Peek(q.key)
	res := Result[T]{
		IsFetching: snap.Fetching,
		IsLoading:  snap.Fetching && !snap.HasData,
		Stale:      snap.Stale,
		Err:        snap.Err,
	}
	if v, ok := snap.Data.(T); ok && snap.HasData {
		if q.view != nil {
			v = q.view(v, func(key string, flag *bool, count *int) {
				q.c.tracker.Apply(key, snap.Mark, flag, count)
			})
		}
		res.Data = v
	}
	if res.Err != nil {
		res.Message = apiclient.UserMessage(res.Err, q.fallback)
	}
	return res
}
