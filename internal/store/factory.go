package store

import (
	"fmt"

	"player-watch/internal/types"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// NewStore creates a Store based on configuration: Redis when REDIS_DSN is
// set, otherwise the in-memory store.
func NewStore(configManager types.ConfigManager) (Store, error) {
	redisDSN := configManager.GetRedisDSN()
	if redisDSN == "" {
		logrus.Debug("Using in-memory store")
		return NewMemoryStore(), nil
	}

	opt, err := redis.ParseURL(redisDSN)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DSN: %w", err)
	}

	client := redis.NewClient(opt)
	logrus.Debug("Using Redis store")
	return NewRedisStore(client), nil
}
