package hooks_test

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"

	"chub/internal/hooks"
	"chub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestPrayerRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.loginAs(t, "deborah")

	random := f.hooks.PrayerRequests.Random(0)
	assert.Equal(t, hooks.RandomPrayersKey(hooks.DefaultPrayerLimit), random.Key())
	require.NoError(t, random.Fetch(ctx).Err)

	submitted, err := f.hooks.PrayerRequests.Submit(ctx, "Strength for the week")
	require.NoError(t, err)
	assert.Equal(t, "Prayer request submitted", lastMessage(t, f.toasts))
	assert.False(t, f.cache.IsStale(random.Key()), "submitting leaves random selections alone")

	one := f.hooks.PrayerRequests.Get(submitted.ID).Fetch(ctx)
	require.NoError(t, one.Err)
	assert.Equal(t, "Strength for the week", one.Data.Content)

	reqs := f.api.Requests()
	var query string
	for _, r := range reqs {
		if r.Path == "/prayer-requests/random" {
			query = r.Query
		}
	}
	assert.Equal(t, "limit=3", query)

	_, err = f.hooks.PrayerRequests.Submit(ctx, strings.Repeat("a", 2001))
	require.Error(t, err)
	assert.Equal(t, 1, f.api.Count(http.MethodPost, "/prayer-requests"))
}

func TestUploadImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.loginAs(t, "huldah")

	url, err := f.hooks.Uploads.UploadImage(ctx, "dove.png", bytes.NewReader(pngBytes))
	require.NoError(t, err)
	assert.Contains(t, url, "/uploads/")
	assert.Equal(t, "Image uploaded", lastMessage(t, f.toasts))

	post, err := f.hooks.Posts.Create(ctx, models.CreatePostRequest{Title: "Dove", Content: "Peace", ImageURL: url})
	require.NoError(t, err)
	assert.Equal(t, url, post.ImageURL)

	_, err = f.hooks.Uploads.UploadImage(ctx, "notes.txt", strings.NewReader("just text"))
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeValidation))
	assert.Equal(t, 1, f.api.Count(http.MethodPost, "/upload"))
}
