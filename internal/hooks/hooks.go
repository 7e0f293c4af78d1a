// Package hooks binds backend endpoints to cache-aware reads and writes.
//
// Reads are Query values: describe once, Fetch or Peek many times. Writes are
// methods that validate input, send the request, invalidate the affected
// cache keys, notify the user and return the error unchanged on failure.
package hooks

import (
	"context"
	"net/url"

	"chub/internal/apiclient"
	"chub/internal/notify"
	"chub/internal/observability"
	"chub/internal/optimistic"
	"chub/internal/querycache"
	"chub/internal/session"
	"chub/internal/upload"
)

// Deps are the collaborators shared by every hook.
type Deps struct {
	Client   *apiclient.Client
	Session  *session.Manager
	Cache    *querycache.Cache
	Notifier notify.Notifier
	Tracker  *optimistic.Tracker
	Uploader upload.Uploader
	Logger   *observability.Logger
}

// Hooks groups the resource hooks.
type Hooks struct {
	Auth           *Auth
	Posts          *Posts
	Interactions   *Interactions
	SavedPosts     *SavedPosts
	Comments       *Comments
	PrayerRequests *PrayerRequests
	Uploads        *Uploads
}

type core struct {
	client   *apiclient.Client
	session  *session.Manager
	cache    *querycache.Cache
	notifier notify.Notifier
	tracker  *optimistic.Tracker
	log      *observability.ClientLogger
}

// New wires the hooks. Cache, Notifier and Tracker get defaults when nil;
// Client and Session are required.
func New(d Deps) *Hooks {
	c := &core{
		client:   d.Client,
		session:  d.Session,
		cache:    d.Cache,
		notifier: d.Notifier,
		tracker:  d.Tracker,
		log:      observability.NewClientLogger("hooks", d.Logger),
	}
	if c.cache == nil {
		c.cache = querycache.New()
	}
	if c.notifier == nil {
		c.notifier = notify.Nop{}
	}
	if c.tracker == nil {
		c.tracker = optimistic.NewTracker(nil)
	}
	uploader := d.Uploader
	if uploader == nil {
		uploader = upload.NewBackendUploader(d.Client)
	}

	posts := &Posts{c: c}
	return &Hooks{
		Auth:           &Auth{c: c},
		Posts:          posts,
		Interactions:   &Interactions{c: c, posts: posts},
		SavedPosts:     &SavedPosts{c: c},
		Comments:       &Comments{c: c},
		PrayerRequests: &PrayerRequests{c: c},
		Uploads:        &Uploads{c: c, uploader: uploader},
	}
}

// Cache returns the shared query cache.
func (h *Hooks) Cache() *querycache.Cache {
	return h.Posts.c.cache
}

// Session returns the session manager.
func (h *Hooks) Session() *session.Manager {
	return h.Posts.c.session
}

// call sends one request. route is the templated path used for metrics.
func (c *core) call(ctx context.Context, method, route, path, token string, query url.Values, body, out any) error {
	return c.client.Do(ctx, apiclient.Request{
		Method: method,
		Path:   path,
		Route:  route,
		Query:  query,
		Body:   body,
		Token:  token,
	}, out)
}
