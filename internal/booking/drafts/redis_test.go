package drafts

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/codr1/Excursions/internal/booking"
)

// Set EXCURSIONS_TEST_REDIS_ADDR to run against a live Redis.
func newRedisTestStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("EXCURSIONS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("EXCURSIONS_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return NewRedisStore(client, "excursions:test:"+uuid.NewString()+":", time.Minute)
}

func TestRedisStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newRedisTestStore(t)

	require.NoError(t, store.Create(ctx, testWizard("a")))
	require.Error(t, store.Create(ctx, testWizard("a")))

	updated, err := store.Update(ctx, "a", func(w *booking.Wizard) error {
		w.Step = booking.StepContact
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, booking.StepContact, updated.Step)

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, booking.StepContact, got.Step)

	ttl, err := store.client.TTL(ctx, store.key("a")).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))

	require.NoError(t, store.Delete(ctx, "a"))
	_, err = store.Get(ctx, "a")
	require.ErrorIs(t, err, booking.ErrDraftNotFound)
}
