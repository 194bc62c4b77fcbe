package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/codr1/Excursions/internal/booking"
)

// RedisStore keeps drafts as JSON values whose TTL Redis enforces.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) Create(ctx context.Context, w booking.Wizard) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	created, err := s.client.SetNX(ctx, s.key(w.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("store draft: %w", err)
	}
	if !created {
		return fmt.Errorf("draft %s already exists", w.ID)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (booking.Wizard, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return booking.Wizard{}, booking.ErrDraftNotFound
	}
	if err != nil {
		return booking.Wizard{}, fmt.Errorf("load draft: %w", err)
	}
	return decodeWizard(data)
}

func (s *RedisStore) Update(ctx context.Context, id string, fn func(*booking.Wizard) error) (booking.Wizard, error) {
	key := s.key(id)
	var updated booking.Wizard

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return booking.ErrDraftNotFound
		}
		if err != nil {
			return fmt.Errorf("load draft: %w", err)
		}
		w, err := decodeWizard(data)
		if err != nil {
			return err
		}
		if err := fn(&w); err != nil {
			return err
		}
		encoded, err := json.Marshal(w)
		if err != nil {
			return fmt.Errorf("encode draft: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		updated = w
		return nil
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return booking.Wizard{}, err
		}
		return updated, nil
	}
	return booking.Wizard{}, ErrConflict
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	removed, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	if removed == 0 {
		return booking.ErrDraftNotFound
	}
	return nil
}

// PurgeExpired is a no-op: Redis drops keys once their TTL lapses.
func (s *RedisStore) PurgeExpired(ctx context.Context) (int, error) {
	return 0, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
