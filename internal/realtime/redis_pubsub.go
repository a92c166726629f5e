package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "live:room:"

// Envelope is the message published to Redis for cross-instance fanout.
// Origin is the publishing subscription id, so every instance can skip it.
type Envelope struct {
	Origin string          `json:"origin,omitempty"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
	At     int64           `json:"at"`
}

// RedisPubSub implements RedisPublisher and RedisSubscriber using Redis pub/sub.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for room events.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, logger: logger}
}

// PublishRoomEvent publishes an envelope to the room's Redis channel.
func (r *RedisPubSub) PublishRoomEvent(ctx context.Context, roomID string, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channelPrefix+roomID, body).Err()
}

// SubscribeRoom subscribes to a room's Redis channel and calls handler for each message.
// Returns a cancel function to stop the subscription.
func (r *RedisPubSub) SubscribeRoom(roomID string, handler func(env Envelope)) (cancel func(), err error) {
	channel := channelPrefix + roomID
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, channel)
	if _, err = pubsub.Receive(ctx); err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					r.logger.Warn("invalid room envelope", zap.String("channel", channel), zap.Error(err))
					continue
				}
				handler(env)
			}
		}
	}()
	return cancelCtx, nil
}
