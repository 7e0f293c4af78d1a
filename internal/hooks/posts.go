package hooks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"chub/internal/models"
	"chub/internal/optimistic"
	"chub/internal/querycache"
	"chub/internal/validation"
)

// Posts covers the feed and post CRUD.
type Posts struct {
	c *core
}

func pageQuery(page, limit int) url.Values {
	if page <= 0 && limit <= 0 {
		return nil
	}
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}

// List reads the feed. Zero page and limit leave paging to the backend.
func (p *Posts) List(page, limit int) *Query[[]models.Post] {
	return newQuery(p.c, PostListKey(page, limit), true, "Failed to load posts",
		func(ctx context.Context, token string) ([]models.Post, error) {
			var out []models.Post
			err := p.c.call(ctx, http.MethodGet, "/posts", "/posts", token, pageQuery(page, limit), nil, &out)
			return out, err
		}).withView(overlayPosts)
}

// Get reads one post. The gate stays closed for id 0.
func (p *Posts) Get(id uint) *Query[models.Post] {
	return newQuery(p.c, PostKey(id), id != 0, "Failed to load post",
		func(ctx context.Context, token string) (models.Post, error) {
			var out models.Post
			err := p.c.call(ctx, http.MethodGet, "/posts/{id}", fmt.Sprintf("/posts/%d", id), token, nil, nil, &out)
			return out, err
		}).withView(overlayPost)
}

// UserPosts reads one author's posts. The gate stays closed until userID is known.
func (p *Posts) UserPosts(userID uint) *Query[[]models.Post] {
	return newQuery(p.c, UserPostsKey(userID), userID != 0, "Failed to load posts",
		func(ctx context.Context, token string) ([]models.Post, error) {
			var out []models.Post
			err := p.c.call(ctx, http.MethodGet, "/users/{id}/posts", fmt.Sprintf("/users/%d/posts", userID), token, nil, nil, &out)
			return out, err
		}).withView(overlayPosts)
}

// MyPosts resolves the session and reads the current user's posts.
func (p *Posts) MyPosts(ctx context.Context) Result[[]models.Post] {
	if _, err := p.c.session.Resolve(ctx); err != nil {
		p.c.log.LogStorageError(ctx, "session", "hydrate", err)
	}
	var id uint
	if user := p.c.session.User(); user != nil {
		id = user.ID
	}
	return p.UserPosts(id).Fetch(ctx)
}

// Create publishes a post and marks the feed and author lists stale.
func (p *Posts) Create(ctx context.Context, req models.CreatePostRequest) (models.Post, error) {
	m := &Mutation[models.CreatePostRequest, models.Post]{
		c:        p.c,
		action:   "create a post",
		validate: validation.ValidatePost,
		do: func(ctx context.Context, token string, in models.CreatePostRequest) (models.Post, error) {
			var out models.Post
			err := p.c.call(ctx, http.MethodPost, "/posts", "/posts", token, nil, in, &out)
			return out, err
		},
		invalidates: []querycache.Key{KeyPosts, KeyUserPosts},
		success:     "Post created successfully!",
		failure:     "Failed to create post",
	}
	return m.Run(ctx, req)
}

// UpdatePostInput addresses a post update.
type UpdatePostInput struct {
	ID      uint
	Request models.UpdatePostRequest
}

// Update edits a post.
func (p *Posts) Update(ctx context.Context, id uint, req models.UpdatePostRequest) (models.Post, error) {
	m := &Mutation[UpdatePostInput, models.Post]{
		c:      p.c,
		action: "update a post",
		validate: func(in UpdatePostInput) error {
			if in.ID == 0 {
				return models.NewValidationError("Post ID is required")
			}
			return validation.ValidatePostUpdate(in.Request)
		},
		do: func(ctx context.Context, token string, in UpdatePostInput) (models.Post, error) {
			var out models.Post
			err := p.c.call(ctx, http.MethodPut, "/posts/{id}", fmt.Sprintf("/posts/%d", in.ID), token, nil, in.Request, &out)
			return out, err
		},
		invalidates: []querycache.Key{KeyPosts},
		success:     "Post updated successfully!",
		failure:     "Failed to update post",
	}
	return m.Run(ctx, UpdatePostInput{ID: id, Request: req})
}

// Delete removes a post.
func (p *Posts) Delete(ctx context.Context, id uint) error {
	m := &Mutation[uint, models.MessageResponse]{
		c:        p.c,
		action:   "delete a post",
		validate: requireID("Post"),
		do: func(ctx context.Context, token string, id uint) (models.MessageResponse, error) {
			var out models.MessageResponse
			err := p.c.call(ctx, http.MethodDelete, "/posts/{id}", fmt.Sprintf("/posts/%d", id), token, nil, nil, &out)
			return out, err
		},
		invalidates: []querycache.Key{KeyPosts},
		success:     "Post deleted successfully!",
		failure:     "Failed to delete post",
		onSuccess: func(_ context.Context, id uint, _ models.MessageResponse) {
			p.c.tracker.Forget(optimistic.ResourceKey("post", id, optimistic.RelLike))
			p.c.tracker.Forget(optimistic.ResourceKey("post", id, optimistic.RelSave))
		},
	}
	_, err := m.Run(ctx, id)
	return err
}

func requireID(what string) func(uint) error {
	return func(id uint) error {
		if id == 0 {
			return models.NewValidationError(what + " ID is required")
		}
		return nil
	}
}

func likeKey(postID uint) string { return optimistic.ResourceKey("post", postID, optimistic.RelLike) }
func saveKey(postID uint) string { return optimistic.ResourceKey("post", postID, optimistic.RelSave) }

func overlayPost(post models.Post, overlay overlayFunc) models.Post {
	overlay(likeKey(post.ID), &post.IsLiked, &post.Likes)
	overlay(saveKey(post.ID), &post.IsSaved, nil)
	return post
}

func overlayPosts(posts []models.Post, overlay overlayFunc) []models.Post {
	if posts == nil {
		return nil
	}
	out := make([]models.Post, len(posts))
	for i, post := range posts {
		out[i] = overlayPost(post, overlay)
	}
	return out
}
