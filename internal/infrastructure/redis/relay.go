package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Relay fans push frames out to every gateway instance over a Redis
// pub/sub channel. Each instance publishes and also consumes its own
// frames, so local delivery goes through the same path.
type Relay struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRelay 创建跨实例事件中继
func NewRelay(client *redis.Client, channel string, logger *zap.Logger) *Relay {
	if channel == "" {
		channel = "srcchat:events"
	}
	return &Relay{
		client:  client,
		channel: channel,
		logger:  logger.With(zap.String("component", "redis-relay")),
	}
}

// Channel returns the pub/sub channel name.
func (r *Relay) Channel() string {
	return r.channel
}

// Publish sends one encoded frame to all subscribers.
func (r *Relay) Publish(ctx context.Context, payload []byte) error {
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Run subscribes and hands every payload to deliver until ctx is done.
func (r *Relay) Run(ctx context.Context, deliver func(payload []byte)) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	// 等待订阅确认, 避免启动早期的帧丢失
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", r.channel, err)
	}
	r.logger.Info("Relay subscribed", zap.String("channel", r.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis subscription %s closed", r.channel)
			}
			deliver([]byte(msg.Payload))
		}
	}
}
