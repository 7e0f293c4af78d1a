package hooks

import (
	"strconv"

	"chub/internal/querycache"
)

// Cache key roots. Invalidating a root marks every key below it stale.
var (
	KeyPosts          = querycache.K("posts")
	KeyUserPosts      = querycache.K("posts", "user")
	KeySavedPosts     = querycache.K("saved-posts")
	KeyComments       = querycache.K("comments")
	KeyPrayerRequests = querycache.K("prayer-requests")
	KeyProfile        = querycache.K("profile")
)

func u(id uint) string { return strconv.FormatUint(uint64(id), 10) }

// PostListKey is posts for the unpaged feed and posts/list/{page}/{limit} otherwise.
func PostListKey(page, limit int) querycache.Key {
	if page <= 0 && limit <= 0 {
		return KeyPosts
	}
	return querycache.K("posts", "list", strconv.Itoa(page), strconv.Itoa(limit))
}

// PostKey is posts/{id}.
func PostKey(id uint) querycache.Key {
	return querycache.K("posts", u(id))
}

// UserPostsKey is posts/user/{userId}.
func UserPostsKey(userID uint) querycache.Key {
	return querycache.K("posts", "user", u(userID))
}

// SavedCheckKey is saved-posts/check/{postId}.
func SavedCheckKey(postID uint) querycache.Key {
	return querycache.K("saved-posts", "check", u(postID))
}

// CommentsKey is comments/{postId}, the root of a post's comment pages.
func CommentsKey(postID uint) querycache.Key {
	return querycache.K("comments", u(postID))
}

// CommentsPageKey is comments/{postId} unpaged, comments/{postId}/{page}/{limit} otherwise.
func CommentsPageKey(postID uint, page, limit int) querycache.Key {
	if page <= 0 && limit <= 0 {
		return CommentsKey(postID)
	}
	return append(CommentsKey(postID), strconv.Itoa(page), strconv.Itoa(limit))
}

// RandomPrayersKey is prayer-requests/random/{limit}.
func RandomPrayersKey(limit int) querycache.Key {
	return querycache.K("prayer-requests", "random", strconv.Itoa(limit))
}

// PrayerRequestKey is prayer-requests/{id}.
func PrayerRequestKey(id uint) querycache.Key {
	return querycache.K("prayer-requests", u(id))
}

func keyStrings(keys []querycache.Key) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}
