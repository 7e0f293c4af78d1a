package notify

import (
	"bytes"
	"context"
	"testing"
	"time"

	redispkg "chub/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()
	_, ok := r.Last()
	assert.False(t, ok)

	r.Success(ctx, "Post created")
	r.Error(ctx, "Failed to like post")

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, LevelError, last.Level)
	assert.Equal(t, []string{"Post created"}, r.Successes())
	assert.Equal(t, []string{"Failed to like post"}, r.Errors())
	assert.Len(t, r.Toasts(), 2)

	r.Reset()
	assert.Empty(t, r.Toasts())
}

func TestMulti(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	m := Multi{a, nil, b}
	m.Success(context.Background(), "ok")
	m.Error(context.Background(), "bad")
	assert.Len(t, a.Toasts(), 2)
	assert.Len(t, b.Toasts(), 2)
}

func TestWriterNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewWriterNotifier(&buf)
	n.Success(context.Background(), "Saved")
	n.Error(context.Background(), "Nope")
	assert.Equal(t, "✓ Saved\n✗ Nope\n", buf.String())
}

func TestUserChannel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		userID   uint
		expected string
	}{
		{1, "notifications:user:1"},
		{100, "notifications:user:100"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, UserChannel(tt.userID))
	}
}

func TestRedisNotifier_NilClientIsNoop(t *testing.T) {
	n := NewRedisNotifier(nil, nil, nil)
	n.Success(context.Background(), "ignored")
	assert.NoError(t, n.Subscribe(context.Background(), 1, func(string, Toast) {}))
}

func TestRedisNotifier_PublishAndSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redispkg.NewClient(mr.Addr())
	defer func() { _ = rdb.Close() }()

	var userID uint = 7
	n := NewRedisNotifier(rdb, func() uint { return userID }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Toast, 2)
	channels := make(chan string, 2)
	require.NoError(t, n.Subscribe(ctx, 7, func(channel string, t Toast) {
		channels <- channel
		got <- t
	}))

	n.Success(ctx, "Post created")
	select {
	case toast := <-got:
		assert.Equal(t, LevelSuccess, toast.Level)
		assert.Equal(t, "Post created", toast.Message)
		assert.Equal(t, uint(7), toast.UserID)
		assert.Equal(t, UserChannel(7), <-channels)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for user toast")
	}

	userID = 0
	n.Error(ctx, "Failed")
	select {
	case toast := <-got:
		assert.Equal(t, LevelError, toast.Level)
		assert.Equal(t, BroadcastChannel, <-channels)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast toast")
	}
}
