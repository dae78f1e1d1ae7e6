package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Envelope is the JSON message published for every notice.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	SentAt  time.Time       `json:"sent_at"`
	Payload json.RawMessage `json:"payload"`
}

type redisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier publishes notices on a Redis pub/sub channel for the
// transport process to render.
func NewRedisNotifier(client *redis.Client, channel string) Notifier {
	return &redisNotifier{client: client, channel: channel}
}

func (n *redisNotifier) publish(ctx context.Context, kind Kind, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s notice: %w", kind, err)
	}
	msg, err := json.Marshal(Envelope{Kind: kind, SentAt: time.Now().UTC(), Payload: body})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, msg).Err(); err != nil {
		return fmt.Errorf("publish %s notice: %w", kind, err)
	}
	return nil
}

func (n *redisNotifier) OnCredited(ctx context.Context, c CreditNotice) error {
	return n.publish(ctx, KindCredited, c)
}

func (n *redisNotifier) OnBlocked(ctx context.Context, b BlockNotice) error {
	return n.publish(ctx, KindBlocked, b)
}

func (n *redisNotifier) OnWelcome(ctx context.Context, w WelcomeNotice) error {
	return n.publish(ctx, KindWelcome, w)
}
