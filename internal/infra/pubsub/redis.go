package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pnr_tracker/internal/domain/transport"
)

// NewRedisClient parses redisURL and checks the connection.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// ErrNoSubscribers is returned when a notification was published but nobody was listening.
var ErrNoSubscribers = errors.New("no subscribers on notification topic")

// Payload is the JSON document published for each notification.
type Payload struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
}

// Publisher is the subset of *redis.Client the transport needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisTransport publishes notifications to a topic for a downstream mailer.
// Success means at least one subscriber received the message, not that it was delivered.
type RedisTransport struct {
	client Publisher
	topic  string
}

func NewRedisTransport(client Publisher, topic string) *RedisTransport {
	return &RedisTransport{client: client, topic: topic}
}

func (t *RedisTransport) Send(ctx context.Context, msg transport.Message) error {
	data, err := json.Marshal(Payload{
		Channel:   string(msg.Channel),
		Recipient: msg.Recipient,
		Subject:   msg.Subject,
		Message:   msg.Body,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	receivers, err := t.client.Publish(ctx, t.topic, data).Result()
	if err != nil {
		return fmt.Errorf("failed to publish notification to %s: %w", t.topic, err)
	}
	if receivers == 0 {
		return fmt.Errorf("publishing to %s: %w", t.topic, ErrNoSubscribers)
	}
	return nil
}
