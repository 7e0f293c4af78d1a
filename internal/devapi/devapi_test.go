package devapi_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"chub/internal/apiclient"
	"chub/internal/devapi"
	"chub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type fixture struct {
	srv    *devapi.Server
	http   *httptest.Server
	client *apiclient.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := devapi.New(devapi.Options{JWTSecret: "test-secret"})
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	return &fixture{srv: srv, http: hs, client: apiclient.New(hs.URL + devapi.Prefix)}
}

func (f *fixture) login(t *testing.T, username, email string) (string, models.User) {
	t.Helper()
	_, err := f.srv.CreateUser(username, email, "secret1")
	require.NoError(t, err)
	var out models.LoginResponse
	require.NoError(t, f.client.Post(context.Background(), "/login", "", models.LoginRequest{Email: email, Password: "secret1"}, &out))
	require.NotEmpty(t, out.Token)
	return out.Token, out.User
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var user models.User
	err := f.client.Post(ctx, "/register", "", models.RegisterRequest{Username: "ruth", Email: "ruth@example.com", Password: "secret1"}, &user)
	require.NoError(t, err)
	assert.Equal(t, "ruth", user.Username)
	assert.NotZero(t, user.ID)

	err = f.client.Post(ctx, "/register", "", models.RegisterRequest{Username: "ruth2", Email: "ruth@example.com", Password: "secret1"}, nil)
	require.Error(t, err)
	assert.Equal(t, "Email already registered", apiclient.UserMessage(err, ""))

	var login models.LoginResponse
	require.NoError(t, f.client.Post(ctx, "/login", "", models.LoginRequest{Email: "ruth@example.com", Password: "secret1"}, &login))
	assert.Equal(t, user.ID, login.User.ID)

	var profile models.User
	require.NoError(t, f.client.Get(ctx, "/profile", login.Token, &profile))
	assert.Equal(t, "ruth@example.com", profile.Email)

	err = f.client.Post(ctx, "/login", "", models.LoginRequest{Email: "ruth@example.com", Password: "wrong"}, nil)
	assert.True(t, apiclient.IsUnauthorized(err))
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		token string
	}{
		{"Missing", ""},
		{"Garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.client.Get(ctx, "/posts", tt.token, nil)
			assert.True(t, apiclient.IsUnauthorized(err))
		})
	}

	user, err := f.srv.CreateUser("naomi", "naomi@example.com", "secret1")
	require.NoError(t, err)
	f.srv.AddToken("t1", user.ID)
	assert.NoError(t, f.client.Get(ctx, "/posts", "t1", nil))
}

func TestExpiredTokenRejected(t *testing.T) {
	now := time.Now()
	srv := devapi.New(devapi.Options{JWTSecret: "s", TokenTTL: time.Minute, Clock: func() time.Time { return now }})
	hs := httptest.NewServer(srv.Handler())
	defer hs.Close()
	client := apiclient.New(hs.URL + devapi.Prefix)

	user, err := srv.CreateUser("eli", "eli@example.com", "secret1")
	require.NoError(t, err)
	token, err := srv.IssueToken(user.ID, user.Username)
	require.NoError(t, err)
	require.NoError(t, client.Get(context.Background(), "/profile", token, nil))

	now = now.Add(2 * time.Minute)
	err = client.Get(context.Background(), "/profile", token, nil)
	assert.True(t, apiclient.IsUnauthorized(err))
}

func TestPostLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token, user := f.login(t, "miriam", "miriam@example.com")
	other, _ := f.login(t, "aaron", "aaron@example.com")

	var post models.Post
	require.NoError(t, f.client.Post(ctx, "/posts", token, models.CreatePostRequest{Title: "Morning psalm", Content: "Psalm 5"}, &post))
	assert.Equal(t, user.ID, post.User.ID)

	var list []models.Post
	require.NoError(t, f.client.Get(ctx, "/posts", token, &list))
	require.Len(t, list, 1)

	var like models.LikeResponse
	require.NoError(t, f.client.Post(ctx, "/posts/"+itoa(post.ID)+"/like", other, nil, &like))
	assert.Equal(t, models.LikeResponse{Message: "Post liked", Likes: 1, IsLiked: true}, like)

	var asAuthor models.Post
	require.NoError(t, f.client.Get(ctx, "/posts/"+itoa(post.ID), token, &asAuthor))
	assert.Equal(t, 1, asAuthor.Likes)
	assert.False(t, asAuthor.IsLiked, "like flags are viewer-relative")

	err := f.client.Put(ctx, "/posts/"+itoa(post.ID), other, models.UpdatePostRequest{Title: "Hijacked"}, nil)
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)

	var updated models.Post
	require.NoError(t, f.client.Put(ctx, "/posts/"+itoa(post.ID), token, models.UpdatePostRequest{Title: "Evening psalm"}, &updated))
	assert.Equal(t, "Evening psalm", updated.Title)
	assert.Equal(t, "Psalm 5", updated.Content)

	var mine []models.Post
	require.NoError(t, f.client.Get(ctx, "/users/"+itoa(user.ID)+"/posts", other, &mine))
	assert.Len(t, mine, 1)

	require.NoError(t, f.client.Delete(ctx, "/posts/"+itoa(post.ID), token, nil))
	err = f.client.Get(ctx, "/posts/"+itoa(post.ID), token, nil)
	assert.True(t, apiclient.IsNotFound(err))
}

func TestPostValidation(t *testing.T) {
	f := newFixture(t)
	token, _ := f.login(t, "lydia", "lydia@example.com")

	err := f.client.Post(context.Background(), "/posts", token, models.CreatePostRequest{Title: "Hi", Content: "x"}, nil)
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apiclient.KindValidation, apiErr.Kind)
	assert.Equal(t, "Title must be between 3 and 255 characters", apiErr.ServerMessage)
}

func TestSavedPosts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token, _ := f.login(t, "dorcas", "dorcas@example.com")

	var post models.Post
	require.NoError(t, f.client.Post(ctx, "/posts", token, models.CreatePostRequest{Title: "Sewing circle", Content: "Thursday"}, &post))
	id := itoa(post.ID)

	require.NoError(t, f.client.Post(ctx, "/saved-posts/"+id, token, nil, nil))
	err := f.client.Post(ctx, "/saved-posts/"+id, token, nil, nil)
	assert.Error(t, err, "saving twice conflicts")

	var check models.SavedCheckResponse
	require.NoError(t, f.client.Get(ctx, "/saved-posts/"+id+"/check", token, &check))
	assert.True(t, check.IsSaved)

	var saved models.SavedPostsResponse
	require.NoError(t, f.client.Get(ctx, "/saved-posts", token, &saved))
	require.Len(t, saved.SavedPosts, 1)
	require.NotNil(t, saved.SavedPosts[0].Post)
	assert.True(t, saved.SavedPosts[0].Post.IsSaved)

	require.NoError(t, f.client.Delete(ctx, "/saved-posts/"+id, token, nil))
	require.NoError(t, f.client.Get(ctx, "/saved-posts/"+id+"/check", token, &check))
	assert.False(t, check.IsSaved)
}

func TestCommentsAndReplies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token, _ := f.login(t, "silas", "silas@example.com")

	var post models.Post
	require.NoError(t, f.client.Post(ctx, "/posts", token, models.CreatePostRequest{Title: "Hymn night", Content: "Bring songs"}, &post))
	path := "/posts/" + itoa(post.ID) + "/comments"

	var top models.Comment
	require.NoError(t, f.client.Post(ctx, path, token, models.CreateCommentRequest{Content: "I'll come"}, &top))
	var reply models.Comment
	require.NoError(t, f.client.Post(ctx, path, token, models.CreateCommentRequest{Content: "Me too", ParentID: &top.ID}, &reply))

	err := f.client.Post(ctx, path, token, models.CreateCommentRequest{Content: "deeper", ParentID: &reply.ID}, nil)
	assert.Error(t, err)

	var like models.LikeResponse
	require.NoError(t, f.client.Post(ctx, "/comments/"+itoa(reply.ID)+"/like", token, nil, &like))
	assert.Equal(t, 1, like.Likes)

	var thread []models.Comment
	require.NoError(t, f.client.Get(ctx, path, token, &thread))
	require.Len(t, thread, 1)
	assert.Equal(t, 1, thread[0].ReplyCount)
	require.Len(t, thread[0].Replies, 1)
	assert.True(t, thread[0].Replies[0].IsLiked)

	require.NoError(t, f.client.Delete(ctx, "/comments/"+itoa(top.ID), token, nil))
	require.NoError(t, f.client.Get(ctx, path, token, &thread))
	assert.Empty(t, thread)
}

func TestPrayerRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token, _ := f.login(t, "hannah", "hannah@example.com")

	for _, content := range []string{"Healing for my aunt", "Safe travels", "New job", "Peace"} {
		require.NoError(t, f.client.Post(ctx, "/prayer-requests", token, models.CreatePrayerRequest{Content: content}, nil))
	}

	var out models.PrayerRequestsResponse
	require.NoError(t, f.client.Do(ctx, apiclient.Request{
		Method: http.MethodGet,
		Path:   "/prayer-requests/random",
		Query:  map[string][]string{"limit": {"3"}},
		Token:  token,
	}, &out))
	require.Len(t, out.PrayerRequests, 3)

	var one models.PrayerRequest
	require.NoError(t, f.client.Get(ctx, "/prayer-requests/"+itoa(out.PrayerRequests[0].ID), token, &one))
	assert.Equal(t, out.PrayerRequests[0].Content, one.Content)
}

func TestUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token, _ := f.login(t, "bezalel", "bezalel@example.com")

	var out models.UploadResponse
	require.NoError(t, f.client.DoMultipart(ctx, "/upload", token, "file", "cross.png", bytes.NewReader(pngBytes), &out))
	require.Contains(t, out.URL, devapi.Prefix+"/uploads/")

	resp, err := http.Get(out.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, pngBytes, body)

	err = f.client.DoMultipart(ctx, "/upload", token, "file", "notes.txt", bytes.NewReader([]byte("plain text")), nil)
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestFailNextAndRecorder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token, _ := f.login(t, "phoebe", "phoebe@example.com")
	f.srv.ResetRequests()

	f.srv.FailNext(http.MethodGet, "/posts", http.StatusInternalServerError, "")
	err := f.client.Get(ctx, "/posts", token, nil)
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apiclient.KindServer, apiErr.Kind)
	assert.Equal(t, "Injected failure", apiErr.ServerMessage)

	require.NoError(t, f.client.Get(ctx, "/posts", token, nil), "faults are one-shot")
	assert.Equal(t, 2, f.srv.Count(http.MethodGet, "/posts"))
	reqs := f.srv.Requests()
	assert.Equal(t, "Bearer "+token, reqs[0].Authorization)
}

func TestHold(t *testing.T) {
	f := newFixture(t)
	token, _ := f.login(t, "tabitha", "tabitha@example.com")
	release := f.srv.Hold(http.MethodGet, "/profile")

	done := make(chan error, 1)
	go func() { done <- f.client.Get(context.Background(), "/profile", token, nil) }()

	select {
	case <-done:
		t.Fatal("held request completed early")
	case <-time.After(50 * time.Millisecond):
	}
	release()
	release()
	require.NoError(t, <-done)
}

func TestHoldResponse_ServesDataFromBeforeRelease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token, _ := f.login(t, "lydia", "lydia@example.com")
	var post models.Post
	require.NoError(t, f.client.Post(ctx, "/posts", token, models.CreatePostRequest{Title: "Purple cloth", Content: "Acts 16"}, &post))

	path := "/posts/" + itoa(post.ID)
	release := f.srv.HoldResponse(http.MethodGet, path)
	t.Cleanup(release)

	done := make(chan models.Post, 1)
	go func() {
		var got models.Post
		_ = f.client.Get(ctx, path, token, &got)
		done <- got
	}()
	require.Eventually(t, func() bool { return f.srv.Waiting(http.MethodGet, path) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.client.Put(ctx, path, token, models.UpdatePostRequest{Title: "Thyatira"}, nil))
	release()

	assert.Equal(t, "Purple cloth", (<-done).Title, "the held response was read before the update")
	assert.Zero(t, f.srv.Waiting(http.MethodGet, path))
}

func TestSeed(t *testing.T) {
	f := newFixture(t)
	sum, err := f.srv.Seed(devapi.SeedOptions{Users: 3, PostsPerUser: 2, CommentsPerPost: 1, Prayers: 4, Seed: 7})
	require.NoError(t, err)
	assert.Len(t, sum.Users, 3)
	assert.Equal(t, 6, sum.Posts)
	assert.Equal(t, 6, sum.Comments)

	var login models.LoginResponse
	require.NoError(t, f.client.Post(context.Background(), "/login", "",
		models.LoginRequest{Email: sum.Users[0].Email, Password: devapi.SeedPassword}, &login))
	var posts []models.Post
	require.NoError(t, f.client.Get(context.Background(), "/posts", login.Token, &posts))
	assert.Len(t, posts, 6)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	_ = f.client.Get(context.Background(), "/posts", "", nil)

	resp, err := http.Get(f.http.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "http_requests_total")
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
