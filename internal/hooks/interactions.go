package hooks

import (
	"context"
	"fmt"
	"net/http"

	"chub/internal/models"
	"chub/internal/optimistic"
	"chub/internal/querycache"
)

// Interactions covers the viewer's like and save relationships to posts.
type Interactions struct {
	c     *core
	posts *Posts
}

// likeBody decodes {message, likes, is_liked} keeping absent fields absent.
type likeBody struct {
	Message string `json:"message"`
	Likes   *int   `json:"likes"`
	IsLiked *bool  `json:"is_liked"`
}

// outcome reports only what the server sent; a missing count keeps the displayed one.
func (b likeBody) outcome(want bool, err error) optimistic.Outcome {
	if err != nil {
		return optimistic.Outcome{Err: err}
	}
	flag := want
	if b.IsLiked != nil {
		flag = *b.IsLiked
	}
	return optimistic.Outcome{Flag: &flag, Count: b.Likes}
}

func (b likeBody) response(want bool) models.LikeResponse {
	out := models.LikeResponse{Message: b.Message, IsLiked: want}
	if b.Likes != nil {
		out.Likes = *b.Likes
	}
	if b.IsLiked != nil {
		out.IsLiked = *b.IsLiked
	}
	return out
}

func (i *Interactions) likeTarget(id uint) toggleTarget {
	return toggleTarget{
		key:     likeKey(id),
		label:   "Like",
		counted: true,
		read: func() (bool, int, bool) {
			p, ok := i.c.findPost(id)
			return p.IsLiked, p.Likes, ok
		},
		write: func(flag bool, count int) {
			i.c.patchPost(id, func(p *models.Post) {
				p.IsLiked = flag
				p.Likes = count
			})
		},
	}
}

func (i *Interactions) saveTarget(id uint) toggleTarget {
	return toggleTarget{
		key:   saveKey(id),
		label: "Save",
		read: func() (bool, int, bool) {
			p, ok := i.c.findPost(id)
			return p.IsSaved, 0, ok
		},
		write: func(flag bool, _ int) {
			i.c.patchPost(id, func(p *models.Post) { p.IsSaved = flag })
		},
	}
}

// LikePost likes a post, showing the like before the server confirms it.
func (i *Interactions) LikePost(ctx context.Context, id uint) (models.LikeResponse, error) {
	return i.setLike(ctx, id, true)
}

// UnlikePost removes the viewer's like.
func (i *Interactions) UnlikePost(ctx context.Context, id uint) (models.LikeResponse, error) {
	return i.setLike(ctx, id, false)
}

func (i *Interactions) setLike(ctx context.Context, id uint, want bool) (models.LikeResponse, error) {
	run := &toggleRun{c: i.c, target: i.likeTarget(id), want: want}
	method, action, failure := http.MethodPost, "like a post", "Failed to like post"
	if !want {
		method, action, failure = http.MethodDelete, "unlike a post", "Failed to unlike post"
	}

	m := &Mutation[uint, likeBody]{
		c:        i.c,
		action:   action,
		validate: requireID("Post"),
		prepare:  func(ctx context.Context, _ uint) error { return run.begin(ctx) },
		do: func(ctx context.Context, token string, id uint) (likeBody, error) {
			var body likeBody
			err := i.c.call(ctx, method, "/posts/{id}/like", fmt.Sprintf("/posts/%d/like", id), token, nil, nil, &body)
			return body, err
		},
		settled: func(_ context.Context, _ uint, body likeBody, err error) {
			run.settle(body.outcome(want, err))
		},
		invalidates: []querycache.Key{KeyPosts},
		failure:     failure,
	}
	body, err := m.Run(ctx, id)
	if err != nil {
		return models.LikeResponse{}, err
	}
	return body.response(want), nil
}

// TogglePostLike likes or unlikes depending on the current displayed state.
func (i *Interactions) TogglePostLike(ctx context.Context, id uint) (models.LikeResponse, error) {
	liked, err := i.displayed(ctx, id, likeKey(id), func(p models.Post) bool { return p.IsLiked })
	if err != nil {
		return models.LikeResponse{}, err
	}
	return i.setLike(ctx, id, !liked)
}

// SavePost bookmarks a post.
func (i *Interactions) SavePost(ctx context.Context, id uint) error {
	return i.setSaved(ctx, id, true)
}

// UnsavePost removes a bookmark.
func (i *Interactions) UnsavePost(ctx context.Context, id uint) error {
	return i.setSaved(ctx, id, false)
}

func (i *Interactions) setSaved(ctx context.Context, id uint, want bool) error {
	run := &toggleRun{c: i.c, target: i.saveTarget(id), want: want}
	method, action := http.MethodPost, "save a post"
	success, failure := "Post saved", "Failed to save post"
	if !want {
		method, action = http.MethodDelete, "unsave a post"
		success, failure = "Post removed from saved", "Failed to unsave post"
	}

	m := &Mutation[uint, models.MessageResponse]{
		c:        i.c,
		action:   action,
		validate: requireID("Post"),
		prepare:  func(ctx context.Context, _ uint) error { return run.begin(ctx) },
		do: func(ctx context.Context, token string, id uint) (models.MessageResponse, error) {
			var out models.MessageResponse
			err := i.c.call(ctx, method, "/saved-posts/{id}", fmt.Sprintf("/saved-posts/%d", id), token, nil, nil, &out)
			return out, err
		},
		settled: func(_ context.Context, id uint, _ models.MessageResponse, err error) {
			if err != nil {
				run.settle(optimistic.Outcome{Err: err})
				return
			}
			run.settle(optimistic.Outcome{Flag: &want})
			if !want {
				querycache.UpdateAs(i.c.cache, KeySavedPosts, func(saved []models.SavedPost) []models.SavedPost {
					out := make([]models.SavedPost, 0, len(saved))
					for _, s := range saved {
						if s.PostID != id {
							out = append(out, s)
						}
					}
					return out
				})
			}
		},
		invalidates: []querycache.Key{KeyPosts, KeySavedPosts},
		success:     success,
		failure:     failure,
	}
	_, err := m.Run(ctx, id)
	return err
}

// TogglePostSave saves or unsaves depending on the current displayed state.
func (i *Interactions) TogglePostSave(ctx context.Context, id uint) error {
	saved, err := i.displayed(ctx, id, saveKey(id), func(p models.Post) bool { return p.IsSaved })
	if err != nil {
		return err
	}
	return i.setSaved(ctx, id, !saved)
}

// displayed returns the relationship flag as the user currently sees it,
// loading the post when it is not cached.
func (i *Interactions) displayed(ctx context.Context, id uint, key string, flag func(models.Post) bool) (bool, error) {
	post, ok := i.c.findPost(id)
	if !ok {
		res := i.posts.Get(id).Fetch(ctx)
		if res.Err != nil {
			i.c.notifier.Error(ctx, res.Message)
			return false, res.Err
		}
		if res.Idle {
			err := models.NewNotAuthenticatedError("change a post")
			i.c.notifier.Error(ctx, err.Message)
			return false, err
		}
		post = res.Data
	}
	v := flag(post)
	i.c.tracker.Overlay(key, &v, nil)
	return v, nil
}
