package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"chub/internal/observability"

	"github.com/redis/go-redis/v9"
)

// BroadcastChannel receives toasts for anonymous sessions.
const BroadcastChannel = "notifications:broadcast"

// UserChannel returns the Redis channel for one user's toasts.
func UserChannel(userID uint) string {
	return fmt.Sprintf("notifications:user:%d", userID)
}

// RedisNotifier publishes toasts as JSON so other processes (another
// terminal, a desktop tray) can display them.
type RedisNotifier struct {
	rdb    *redis.Client
	userID func() uint
	log    *observability.Logger
}

// NewRedisNotifier publishes on rdb. userID picks the channel; nil or a zero
// id publishes to BroadcastChannel.
func NewRedisNotifier(rdb *redis.Client, userID func() uint, log *observability.Logger) *RedisNotifier {
	if log == nil {
		log = observability.GlobalLogger
	}
	return &RedisNotifier{rdb: rdb, userID: userID, log: log}
}

func (n *RedisNotifier) Success(ctx context.Context, message string) {
	n.publish(ctx, LevelSuccess, message)
}

func (n *RedisNotifier) Error(ctx context.Context, message string) {
	n.publish(ctx, LevelError, message)
}

func (n *RedisNotifier) publish(ctx context.Context, level Level, message string) {
	if n.rdb == nil {
		return
	}
	var id uint
	if n.userID != nil {
		id = n.userID()
	}
	channel := BroadcastChannel
	if id != 0 {
		channel = UserChannel(id)
	}
	payload, err := json.Marshal(Toast{Level: level, Message: message, UserID: id, At: time.Now().UTC()})
	if err != nil {
		return
	}
	if err := n.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		n.log.WarnContext(ctx, "failed to publish notification",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

// Subscribe delivers toasts published for userID and broadcasts until ctx is
// done. It returns once the subscription is confirmed.
func (n *RedisNotifier) Subscribe(ctx context.Context, userID uint, onToast func(channel string, t Toast)) error {
	if n.rdb == nil {
		return nil
	}
	channels := []string{BroadcastChannel}
	if userID != 0 {
		channels = append(channels, UserChannel(userID))
	}
	sub := n.rdb.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe notifications: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var t Toast
				if err := json.Unmarshal([]byte(msg.Payload), &t); err != nil {
					n.log.Warn("dropping malformed notification", slog.String("channel", msg.Channel))
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							n.log.Error("panic in notification handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onToast(msg.Channel, t)
				}()
			}
		}
	}()
	return nil
}
