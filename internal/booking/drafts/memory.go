package drafts

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/codr1/Excursions/internal/booking"
)

type memoryEntry struct {
	data      []byte
	version   uint64
	expiresAt time.Time
}

// MemoryStore keeps drafts in process memory as encoded snapshots so callers
// never share a wizard value.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock swaps the store's time source.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Create(ctx context.Context, w booking.Wizard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.liveEntry(w.ID); ok {
		return fmt.Errorf("draft %s already exists", w.ID)
	}
	s.entries[w.ID] = memoryEntry{data: data, version: 1, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (booking.Wizard, error) {
	if err := ctx.Err(); err != nil {
		return booking.Wizard{}, err
	}
	s.mu.Lock()
	entry, ok := s.liveEntry(id)
	s.mu.Unlock()
	if !ok {
		return booking.Wizard{}, booking.ErrDraftNotFound
	}
	return decodeWizard(entry.data)
}

func (s *MemoryStore) Update(ctx context.Context, id string, fn func(*booking.Wizard) error) (booking.Wizard, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return booking.Wizard{}, err
		}

		s.mu.Lock()
		entry, ok := s.liveEntry(id)
		s.mu.Unlock()
		if !ok {
			return booking.Wizard{}, booking.ErrDraftNotFound
		}

		w, err := decodeWizard(entry.data)
		if err != nil {
			return booking.Wizard{}, err
		}
		if err := fn(&w); err != nil {
			return booking.Wizard{}, err
		}
		data, err := json.Marshal(w)
		if err != nil {
			return booking.Wizard{}, fmt.Errorf("encode draft: %w", err)
		}

		s.mu.Lock()
		current, ok := s.liveEntry(id)
		if !ok {
			s.mu.Unlock()
			return booking.Wizard{}, booking.ErrDraftNotFound
		}
		if current.version != entry.version {
			s.mu.Unlock()
			continue
		}
		s.entries[id] = memoryEntry{data: data, version: entry.version + 1, expiresAt: s.now().Add(s.ttl)}
		s.mu.Unlock()
		return w, nil
	}
	return booking.Wizard{}, ErrConflict
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.liveEntry(id); !ok {
		return booking.ErrDraftNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *MemoryStore) PurgeExpired(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of stored drafts, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// liveEntry must be called with mu held.
func (s *MemoryStore) liveEntry(id string) (memoryEntry, bool) {
	entry, ok := s.entries[id]
	if !ok || !s.now().Before(entry.expiresAt) {
		return memoryEntry{}, false
	}
	return entry, true
}

func decodeWizard(data []byte) (booking.Wizard, error) {
	var w booking.Wizard
	if err := json.Unmarshal(data, &w); err != nil {
		return booking.Wizard{}, fmt.Errorf("decode draft: %w", err)
	}
	return w, nil
}
