package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"zephyrm-backend/internal/domain"
	"zephyrm-backend/internal/logger"
)

// relayMessage is what travels over the Redis channel.
type relayMessage struct {
	UserID       int32                `json:"user_id"`
	Notification *domain.Notification `json:"notification"`
}

// RedisRelay lets several server instances share realtime delivery. Every
// instance publishes deliveries to one Redis channel and pushes whatever it
// receives to its local hub, so a user connected anywhere gets the message.
type RedisRelay struct {
	client  *redis.Client
	channel string
	local   *Hub
}

func NewRedisRelay(ctx context.Context, url, channel string, local *Hub) (*RedisRelay, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisRelay{client: client, channel: channel, local: local}, nil
}

// Deliver publishes n. When Redis is unreachable the local hub is used so
// users on this instance still get it.
func (r *RedisRelay) Deliver(ctx context.Context, userID int32, n *domain.Notification) error {
	payload, err := json.Marshal(relayMessage{UserID: userID, Notification: n})
	if err != nil {
		return fmt.Errorf("failed to marshal relay message: %w", err)
	}

	logger.ExternalServiceCall("redis", "Publish", "channel", r.channel, "userID", userID)
	err = r.client.Publish(ctx, r.channel, payload).Err()
	logger.ExternalServiceResult("redis", "Publish", err, "channel", r.channel)
	if err != nil {
		return r.local.Deliver(ctx, userID, n)
	}
	return nil
}

// Run feeds the local hub from the Redis channel until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	logger.Info("Realtime relay subscribed", "channel", r.channel)

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *RedisRelay) handle(payload string) {
	var m relayMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		logger.Warn("Discarding malformed relay message", "error", err)
		return
	}
	if m.UserID == 0 || m.Notification == nil {
		logger.Warn("Discarding incomplete relay message", "userID", m.UserID)
		return
	}
	if err := r.local.Deliver(context.Background(), m.UserID, m.Notification); err != nil {
		logger.Error("Failed to deliver relayed notification", "userID", m.UserID, "error", err)
	}
}

func (r *RedisRelay) Close() error {
	return r.client.Close()
}
