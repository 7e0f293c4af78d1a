package hooks_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"chub/internal/hooks"
	"chub/internal/models"
	"chub/internal/optimistic"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func likePath(id uint) string { return fmt.Sprintf("/posts/%d/like", id) }

func TestLikePostSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.loginAs(t, "dinah")
	post := f.createPost(t, "Harvest festival")
	require.NoError(t, f.hooks.Posts.Get(post.ID).Fetch(ctx).Err)
	require.NoError(t, f.hooks.Posts.List(0, 0).Fetch(ctx).Err)

	res, err := f.hooks.Interactions.LikePost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Likes)
	assert.True(t, res.IsLiked)
	assert.Empty(t, f.toasts.Toasts(), "post likes succeed silently")

	detail := f.hooks.Posts.Get(post.ID).Peek()
	assert.True(t, detail.Data.IsLiked)
	assert.Equal(t, 1, detail.Data.Likes)
	assert.True(t, detail.Stale)
	list := f.hooks.Posts.List(0, 0).Peek()
	require.Len(t, list.Data, 1)
	assert.True(t, list.Data[0].IsLiked)

	res, err = f.hooks.Interactions.UnlikePost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Likes)
	assert.False(t, res.IsLiked)

	refetched := f.hooks.Posts.Get(post.ID).Fetch(ctx)
	require.NoError(t, refetched.Err)
	assert.False(t, refetched.Data.IsLiked)
	assert.Equal(t, 0, refetched.Data.Likes)
}

func TestLikePostFailureReverts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.loginAs(t, "abigail")
	post := f.createPost(t, "Food drive")
	require.NoError(t, f.hooks.Posts.Get(post.ID).Fetch(ctx).Err)

	f.api.FailNext(http.MethodPost, likePath(post.ID), http.StatusInternalServerError, "")
	_, err := f.hooks.Interactions.LikePost(ctx, post.ID)
	require.Error(t, err)

	got := f.hooks.Posts.Get(post.ID).Peek().Data
	assert.False(t, got.IsLiked)
	assert.Equal(t, 0, got.Likes)
	assert.Equal(t, []string{"Injected failure"}, f.toasts.Errors())
	assert.False(t, f.hooks.Posts.Get(post.ID).Peek().Stale, "failed writes invalidate nothing")
}

func TestLikeShowsPendingStateAndRejectsConcurrentToggle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.loginAs(t, "joanna")
	post := f.createPost(t, "Night vigil")
	require.NoError(t, f.hooks.Posts.Get(post.ID).Fetch(ctx).Err)

	release := f.api.Hold(http.MethodPost, likePath(post.ID))
	t.Cleanup(release)
	done := make(chan error, 1)
	go func() {
		_, err := f.hooks.Interactions.LikePost(ctx, post.ID)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return f.hooks.Posts.Get(post.ID).Peek().Data.IsLiked
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.hooks.Posts.Get(post.ID).Peek().Data.Likes)

	_, err := f.hooks.Interactions.TogglePostLike(ctx, post.ID)
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeTogglePending))
	assert.Equal(t, []string{"Like is still being updated"}, f.toasts.Errors())

	release()
	require.NoError(t, <-done)
	assert.Equal(t, 1, f.api.Count(http.MethodPost, likePath(post.ID)))
	assert.Zero(t, f.api.Count(http.MethodDelete, likePath(post.ID)))
}

func TestOptimisticFlagOff(t *testing.T) {
	f := newFixture(t, withTracker(optimistic.NewTracker(func() bool { return false })))
	ctx := context.Background()
	f.loginAs(t, "salome")
	post := f.createPost(t, "Baptism class")
	require.NoError(t, f.hooks.Posts.Get(post.ID).Fetch(ctx).Err)

	release := f.api.Hold(http.MethodPost, likePath(post.ID))
	t.Cleanup(release)
	done := make(chan error, 1)
	go func() {
		_, err := f.hooks.Interactions.LikePost(ctx, post.ID)
		done <- err
	}()

	require.Eventually(t, func() bool { return f.api.Count(http.MethodPost, likePath(post.ID)) == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, f.hooks.Posts.Get(post.ID).Peek().Data.IsLiked, "no flip before confirmation")

	release()
	require.NoError(t, <-done)
	got := f.hooks.Posts.Get(post.ID).Peek().Data
	assert.True(t, got.IsLiked)
	assert.Equal(t, 1, got.Likes)
}

func TestTogglePostLikeLoadsUncachedPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.loginAs(t, "julia")
	post := f.createPost(t, "Prayer walk")
	f.cache.Clear()

	res, err := f.hooks.Interactions.TogglePostLike(ctx, post.ID)
	require.NoError(t, err)
	assert.True(t, res.IsLiked)
	assert.Equal(t, 1, f.api.Count(http.MethodGet, fmt.Sprintf("/posts/%d", post.ID)))

	res, err = f.hooks.Interactions.TogglePostLike(ctx, post.ID)
	require.NoError(t, err)
	assert.False(t, res.IsLiked)
}

func TestSaveAndUnsave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.loginAs(t, "zipporah")
	post := f.createPost(t, "Wedding blessing")
	require.NoError(t, f.hooks.Posts.Get(post.ID).Fetch(ctx).Err)

	require.NoError(t, f.hooks.Interactions.SavePost(ctx, post.ID))
	assert.True(t, f.hooks.Posts.Get(post.ID).Peek().Data.IsSaved)
	assert.Equal(t, "Post saved", lastMessage(t, f.toasts))

	check := f.hooks.SavedPosts.IsSaved(post.ID).Fetch(ctx)
	require.NoError(t, check.Err)
	assert.True(t, check.Data)

	saved := f.hooks.SavedPosts.List().Fetch(ctx)
	require.NoError(t, saved.Err)
	require.Len(t, saved.Data, 1)
	assert.Equal(t, post.ID, saved.Data[0].PostID)

	require.NoError(t, f.hooks.Interactions.TogglePostSave(ctx, post.ID))
	assert.False(t, f.hooks.Posts.Get(post.ID).Peek().Data.IsSaved)
	assert.Empty(t, f.hooks.SavedPosts.List().Peek().Data, "unsaved post leaves the cached list at once")
	assert.True(t, f.cache.IsStale(hooks.KeySavedPosts))
}

func TestSaveFailureReverts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.loginAs(t, "keturah")
	post := f.createPost(t, "Youth camp")
	require.NoError(t, f.hooks.Posts.Get(post.ID).Fetch(ctx).Err)

	f.api.FailNext(http.MethodPost, fmt.Sprintf("/saved-posts/%d", post.ID), http.StatusServiceUnavailable, "")
	require.Error(t, f.hooks.Interactions.SavePost(ctx, post.ID))
	assert.False(t, f.hooks.Posts.Get(post.ID).Peek().Data.IsSaved)
	assert.Equal(t, []string{"Injected failure"}, f.toasts.Errors())
}

func TestDeletedPostCannotBeLiked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.loginAs(t, "jael")
	post := f.createPost(t, "Bake sale")
	require.NoError(t, f.hooks.Posts.Delete(ctx, post.ID))
	f.toasts.Reset()

	_, err := f.hooks.Interactions.LikePost(ctx, post.ID)
	require.Error(t, err)
	assert.Equal(t, []string{"Post not found"}, f.toasts.Errors())
}
