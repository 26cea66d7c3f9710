package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"neighborly/pkg/logger"
)

const (
	relayRoom = "room"
	relayUser = "user"
)

// RelayMessage carries an encoded frame between API instances.
type RelayMessage struct {
	Origin string          `json:"origin"`
	Kind   string          `json:"kind"`
	Target string          `json:"target"`
	Frame  json.RawMessage `json:"frame"`
}

// Relay fans frames out to other instances and shares room presence.
type Relay interface {
	Publish(ctx context.Context, msg RelayMessage) error
	Subscribe(ctx context.Context, handle func(RelayMessage)) error
	TrackPresence(ctx context.Context, room, userID string, delta int64)
	Present(ctx context.Context, room, userID string) bool
}

// RedisRelay implements Relay with redis pub/sub and a per-room hash of
// session counts.
type RedisRelay struct {
	client  *redis.Client
	channel string
}

func NewRedisRelay(client *redis.Client, channel string) *RedisRelay {
	return &RedisRelay{client: client, channel: channel}
}

// NewRedisClient parses a redis:// URL; password and db override the URL.
func NewRedisClient(url, password string, db int) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	if db != 0 {
		opts.DB = db
	}
	return redis.NewClient(opts), nil
}

func (r *RedisRelay) Publish(ctx context.Context, msg RelayMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}

func (r *RedisRelay) Subscribe(ctx context.Context, handle func(RelayMessage)) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg RelayMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				logger.Warn("WebSocket: dropping malformed relay message: %v", err)
				continue
			}
			handle(msg)
		}
	}
}

func (r *RedisRelay) TrackPresence(ctx context.Context, room, userID string, delta int64) {
	key := presenceKey(room)
	n, err := r.client.HIncrBy(ctx, key, userID, delta).Result()
	if err != nil {
		logger.Warn("WebSocket: presence update for %s in %s failed: %v", userID, room, err)
		return
	}
	if n <= 0 {
		r.client.HDel(ctx, key, userID)
	}
}

func (r *RedisRelay) Present(ctx context.Context, room, userID string) bool {
	n, err := r.client.HGet(ctx, presenceKey(room), userID).Int64()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("WebSocket: presence lookup for %s in %s failed: %v", userID, room, err)
		}
		return false
	}
	return n > 0
}

func presenceKey(room string) string {
	return "neighborly:room:" + room
}
