package hooks_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"chub/internal/apiclient"
	"chub/internal/hooks"
	"chub/internal/models"
	"chub/internal/notify"
	"chub/internal/querycache"
	"chub/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBackend answers a fixed set of routes and records Authorization headers.
type stubBackend struct {
	mu    sync.Mutex
	auth  map[string]string
	calls []string
}

func (b *stubBackend) handle(mux *http.ServeMux, pattern string, status int, body any) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.auth[r.Method+" "+r.URL.Path] = r.Header.Get("Authorization")
		b.calls = append(b.calls, r.Method+" "+r.URL.Path)
		b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if body != nil {
			_ = json.NewEncoder(w).Encode(body)
		}
	})
}

func (b *stubBackend) header(route string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.auth[route]
}

func newStubHooks(t *testing.T, routes func(b *stubBackend, mux *http.ServeMux)) (*hooks.Hooks, *notify.Recorder, *stubBackend) {
	t.Helper()
	b := &stubBackend{auth: make(map[string]string)}
	mux := http.NewServeMux()
	routes(b, mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	rec := notify.NewRecorder()
	h := hooks.New(hooks.Deps{
		Client:   apiclient.New(srv.URL),
		Session:  session.NewManager(session.NewMemoryStore()),
		Cache:    querycache.New(querycache.WithStaleTime(time.Hour)),
		Notifier: rec,
	})
	return h, rec, b
}

func TestLoginThenCreatePostScenario(t *testing.T) {
	h, rec, b := newStubHooks(t, func(b *stubBackend, mux *http.ServeMux) {
		mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
			var req models.LoginRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Email != "a@b.com" || req.Password != "secret1" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"Invalid credentials"}`))
				return
			}
			_, _ = w.Write([]byte(`{"token":"t1","user":{"id":7,"username":"abby","email":"a@b.com"}}`))
		})
		b.handle(mux, "GET /posts", http.StatusOK, []models.Post{})
		b.handle(mux, "POST /posts", http.StatusCreated, models.Post{ID: 1, Title: "Hello church"})
	})
	ctx := context.Background()

	out, err := h.Auth.Login(ctx, models.LoginRequest{Email: "a@b.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "t1", out.Token)
	assert.Equal(t, "t1", h.Session().Token())
	assert.Equal(t, uint(7), h.Session().User().ID)

	require.NoError(t, h.Posts.List(0, 0).Fetch(ctx).Err)
	assert.Equal(t, "Bearer t1", b.header("GET /posts"))
	require.False(t, h.Cache().IsStale(hooks.KeyPosts))

	_, err = h.Posts.Create(ctx, models.CreatePostRequest{Title: "Hello church", Content: "First post"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer t1", b.header("POST /posts"))
	assert.True(t, h.Cache().IsStale(hooks.KeyPosts))
	assert.Equal(t, []string{"Post created successfully!"}, rec.Successes())
}

func TestLikeServerErrorScenario(t *testing.T) {
	h, rec, b := newStubHooks(t, func(b *stubBackend, mux *http.ServeMux) {
		b.handle(mux, "GET /posts/42", http.StatusOK, models.Post{ID: 42, Title: "Potluck", Likes: 5})
		b.handle(mux, "POST /posts/42/like", http.StatusInternalServerError, nil)
	})
	ctx := context.Background()
	require.NoError(t, h.Session().SetSession(ctx, "t1", models.User{ID: 7}))

	before := h.Posts.Get(42).Fetch(ctx)
	require.NoError(t, before.Err)

	_, err := h.Interactions.LikePost(ctx, 42)
	require.Error(t, err)
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apiclient.KindServer, apiErr.Kind)

	after := h.Posts.Get(42).Peek()
	assert.Equal(t, before.Data.Likes, after.Data.Likes)
	assert.Equal(t, before.Data.IsLiked, after.Data.IsLiked)
	assert.Equal(t, []string{"Failed to like post"}, rec.Errors())
	assert.Equal(t, "Bearer t1", b.header("POST /posts/42/like"))
}

func TestUnlikeNeverGoesNegative(t *testing.T) {
	h, _, _ := newStubHooks(t, func(b *stubBackend, mux *http.ServeMux) {
		b.handle(mux, "GET /posts/9", http.StatusOK, models.Post{ID: 9, Likes: 0, IsLiked: true})
		b.handle(mux, "DELETE /posts/9/like", http.StatusOK, map[string]any{"message": "Post unliked", "is_liked": false})
	})
	ctx := context.Background()
	require.NoError(t, h.Session().SetSession(ctx, "t1", models.User{ID: 7}))
	require.NoError(t, h.Posts.Get(9).Fetch(ctx).Err)

	_, err := h.Interactions.UnlikePost(ctx, 9)
	require.NoError(t, err)
	got := h.Posts.Get(9).Peek().Data
	assert.False(t, got.IsLiked)
	assert.Equal(t, 0, got.Likes)
}
