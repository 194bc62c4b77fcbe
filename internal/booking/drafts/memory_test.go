package drafts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/codr1/Excursions/internal/booking"
	"github.com/codr1/Excursions/internal/config"
	"github.com/codr1/Excursions/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testWizard(id string) booking.Wizard {
	return booking.Wizard{
		ID:   id,
		Step: booking.StepDateTime,
		Data: booking.Data{
			ExperienceID: 1,
			Participants: booking.DefaultParticipants(),
		},
		Experience: models.Experience{ID: 1, Status: models.ExperienceStatusApproved},
	}
}

func newTestStore() (*MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 11, 10, 10, 0, 0, 0, time.UTC)}
	return NewMemoryStore(time.Hour).WithClock(clock.Now), clock
}

func TestMemoryStoreCreateGet(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()

	require.NoError(t, store.Create(ctx, testWizard("a")))
	require.Error(t, store.Create(ctx, testWizard("a")))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "a", got.ID)
	require.Equal(t, 1, got.Data.Participants.Adults)

	_, err = store.Get(ctx, "missing")
	require.ErrorIs(t, err, booking.ErrDraftNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	require.NoError(t, store.Create(ctx, testWizard("a")))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	got.Data.Participants.Adults = 5

	again, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 1, again.Data.Participants.Adults)
}

func TestMemoryStoreUpdate(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	require.NoError(t, store.Create(ctx, testWizard("a")))

	updated, err := store.Update(ctx, "a", func(w *booking.Wizard) error {
		w.Step = booking.StepParticipants
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, booking.StepParticipants, updated.Step)

	sentinel := errors.New("rejected")
	_, err = store.Update(ctx, "a", func(w *booking.Wizard) error {
		w.Step = booking.StepPayment
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, booking.StepParticipants, got.Step, "failed update must not be written")

	_, err = store.Update(ctx, "missing", func(*booking.Wizard) error { return nil })
	require.ErrorIs(t, err, booking.ErrDraftNotFound)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore()
	require.NoError(t, store.Create(ctx, testWizard("old")))

	clock.Advance(30 * time.Minute)
	require.NoError(t, store.Create(ctx, testWizard("new")))

	clock.Advance(20 * time.Minute)
	_, err := store.Update(ctx, "old", func(*booking.Wizard) error { return nil })
	require.NoError(t, err, "update refreshes the ttl")

	clock.Advance(45 * time.Minute)
	_, err = store.Get(ctx, "old")
	require.NoError(t, err)
	_, err = store.Get(ctx, "new")
	require.ErrorIs(t, err, booking.ErrDraftNotFound)

	removed, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	require.Equal(t, 1, store.Len())
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	require.NoError(t, store.Create(ctx, testWizard("a")))
	require.NoError(t, store.Delete(ctx, "a"))
	require.ErrorIs(t, store.Delete(ctx, "a"), booking.ErrDraftNotFound)
}

func TestMemoryStoreConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	require.NoError(t, store.Create(ctx, testWizard("a")))

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_, err := store.Update(ctx, "a", func(w *booking.Wizard) error {
					w.Data.Participants.Children++
					return nil
				})
				if errors.Is(err, ErrConflict) {
					continue
				}
				errs <- err
				return
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, writers, got.Data.Participants.Children)
}

func TestMemoryStoreHonoursCancelledContext(t *testing.T) {
	store, _ := newTestStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.Get(ctx, "a")
	require.ErrorIs(t, err, context.Canceled)
}

func TestOpenMemoryBackend(t *testing.T) {
	cfg := &config.Config{}
	cfg.Drafts.Backend = config.DraftBackendMemory
	cfg.Booking.DraftTTL = time.Minute

	store, closeFn, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, store)
	require.NoError(t, closeFn())

	cfg.Drafts.Backend = "etcd"
	_, _, err = Open(context.Background(), cfg)
	require.Error(t, err)
}
