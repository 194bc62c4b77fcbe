package drafts

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/codr1/Excursions/internal/config"
)

const redisPingTimeout = 5 * time.Second

// Open builds the configured draft store. The returned close function
// releases any connection it holds.
func Open(ctx context.Context, cfg *config.Config) (Store, func() error, error) {
	switch cfg.Drafts.Backend {
	case config.DraftBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Drafts.RedisAddr,
			Password: cfg.Drafts.RedisPassword,
			DB:       cfg.Drafts.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.Drafts.RedisAddr, err)
		}
		return NewRedisStore(client, cfg.Drafts.KeyPrefix, cfg.Booking.DraftTTL), client.Close, nil
	case config.DraftBackendMemory, "":
		return NewMemoryStore(cfg.Booking.DraftTTL), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported drafts backend: %s", cfg.Drafts.Backend)
	}
}
