// Package lock provides a cross-replica guard so that only one reconciliation pass runs at a
// time when several tracker processes share a store.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const DefaultKey = "pnr_tracker:reconcile:lock"

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisRunGuard struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *logrus.Entry
}

// NewRedisRunGuard returns a guard holding key for at most ttl. The ttl bounds how long a
// crashed holder can block other replicas.
func NewRedisRunGuard(client *redis.Client, key string, ttl time.Duration, logger *logrus.Entry) *RedisRunGuard {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &RedisRunGuard{
		client: client,
		key:    key,
		ttl:    ttl,
		logger: logger.WithField("component", "run_guard"),
	}
}

func (g *RedisRunGuard) TryAcquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, g.key, token, g.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", g.key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, g.client, []string{g.key}, token).Err(); err != nil {
			g.logger.WithError(err).Warn("Failed to release reconciliation lock; it will expire on its own")
		}
	}
	return release, true, nil
}
