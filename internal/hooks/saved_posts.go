package hooks

import (
	"context"
	"fmt"
	"net/http"

	"chub/internal/models"
)

// SavedPosts covers the viewer's bookmarks.
type SavedPosts struct {
	c *core
}

// List reads the viewer's saved posts.
func (s *SavedPosts) List() *Query[[]models.SavedPost] {
	return newQuery(s.c, KeySavedPosts, true, "Failed to load saved posts",
		func(ctx context.Context, token string) ([]models.SavedPost, error) {
			var out models.SavedPostsResponse
			err := s.c.call(ctx, http.MethodGet, "/saved-posts", "/saved-posts", token, nil, nil, &out)
			return out.SavedPosts, err
		}).withView(func(saved []models.SavedPost, overlay overlayFunc) []models.SavedPost {
		if saved == nil {
			return nil
		}
		out := make([]models.SavedPost, len(saved))
		copy(out, saved)
		for i := range out {
			if out[i].Post != nil {
				p := overlayPost(*out[i].Post, overlay)
				out[i].Post = &p
			}
		}
		return out
	})
}

// IsSaved asks the backend whether the viewer saved postID.
func (s *SavedPosts) IsSaved(postID uint) *Query[bool] {
	return newQuery(s.c, SavedCheckKey(postID), postID != 0, "Failed to check saved post",
		func(ctx context.Context, token string) (bool, error) {
			var out models.SavedCheckResponse
			err := s.c.call(ctx, http.MethodGet, "/saved-posts/{id}/check", fmt.Sprintf("/saved-posts/%d/check", postID), token, nil, nil, &out)
			return out.IsSaved, err
		}).withView(func(saved bool, overlay overlayFunc) bool {
		overlay(saveKey(postID), &saved, nil)
		return saved
	})
}
