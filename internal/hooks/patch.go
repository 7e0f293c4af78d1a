package hooks

import (
	"chub/internal/models"
	"chub/internal/querycache"
)

// Cached slices are shared with readers, so every patch copies before writing.

// patchPost applies fn to every cached copy of post id: detail, lists and
// saved-post entries.
func (c *core) patchPost(id uint, fn func(*models.Post)) {
	querycache.UpdatePrefixAs(c.cache, KeyPosts, func(p models.Post) models.Post {
		if p.ID == id {
			fn(&p)
		}
		return p
	})
	querycache.UpdatePrefixAs(c.cache, KeyPosts, func(posts []models.Post) []models.Post {
		return mapPosts(posts, id, fn)
	})
	querycache.UpdatePrefixAs(c.cache, KeySavedPosts, func(saved []models.SavedPost) []models.SavedPost {
		out := make([]models.SavedPost, len(saved))
		copy(out, saved)
		for i := range out {
			if out[i].Post != nil && out[i].PostID == id {
				p := *out[i].Post
				fn(&p)
				out[i].Post = &p
			}
		}
		return out
	})
}

func mapPosts(posts []models.Post, id uint, fn func(*models.Post)) []models.Post {
	out := make([]models.Post, len(posts))
	copy(out, posts)
	for i := range out {
		if out[i].ID == id {
			fn(&out[i])
		}
	}
	return out
}

// findPost returns the cached copy of post id, preferring the detail entry.
func (c *core) findPost(id uint) (models.Post, bool) {
	if p, ok := querycache.GetAs[models.Post](c.cache, PostKey(id)); ok {
		return p, true
	}
	for _, k := range c.cache.Keys() {
		if !k.HasPrefix(KeyPosts) {
			continue
		}
		posts, ok := querycache.GetAs[[]models.Post](c.cache, k)
		if !ok {
			continue
		}
		for _, p := range posts {
			if p.ID == id {
				return p, true
			}
		}
	}
	if saved, ok := querycache.GetAs[[]models.SavedPost](c.cache, KeySavedPosts); ok {
		for _, s := range saved {
			if s.PostID == id && s.Post != nil {
				return *s.Post, true
			}
		}
	}
	return models.Post{}, false
}

// patchComment applies fn to every cached copy of comment id, including replies.
func (c *core) patchComment(id uint, fn func(*models.Comment)) {
	querycache.UpdatePrefixAs(c.cache, KeyComments, func(comments []models.Comment) []models.Comment {
		return mapComments(comments, id, fn)
	})
}

func mapComments(comments []models.Comment, id uint, fn func(*models.Comment)) []models.Comment {
	if comments == nil {
		return nil
	}
	out := make([]models.Comment, len(comments))
	copy(out, comments)
	for i := range out {
		if out[i].ID == id {
			fn(&out[i])
		}
		if len(out[i].Replies) > 0 {
			out[i].Replies = mapComments(out[i].Replies, id, fn)
		}
	}
	return out
}

func (c *core) findComment(id uint) (models.Comment, bool) {
	for _, k := range c.cache.Keys() {
		if !k.HasPrefix(KeyComments) {
			continue
		}
		comments, ok := querycache.GetAs[[]models.Comment](c.cache, k)
		if !ok {
			continue
		}
		if cm, ok := searchComments(comments, id); ok {
			return cm, true
		}
	}
	return models.Comment{}, false
}

func searchComments(comments []models.Comment, id uint) (models.Comment, bool) {
	for _, cm := range comments {
		if cm.ID == id {
			return cm, true
		}
		if r, ok := searchComments(cm.Replies, id); ok {
			return r, true
		}
	}
	return models.Comment{}, false
}
