// Package social serves the marketplace's social widgets from a fixed catalog.
// Toggles are per user, held in memory and never rolled back. Viewer state is
// bounded: idle viewers are pruned and the busiest cap evicts the least
// recently active one, taking their toggles off the shared counters.
package social

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const MaxStoryLength = 280

var (
	ErrItemNotFound = errors.New("social item not found")
	ErrStoryInvalid = errors.New("story is invalid")
)

// Limits bounds the memory held for viewers and posted stories. Zero fields
// take the defaults.
type Limits struct {
	MaxViewers int
	ViewerIdle time.Duration
	MaxStories int
}

const (
	defaultMaxViewers = 10000
	defaultViewerIdle = 30 * 24 * time.Hour
	defaultMaxStories = 200
)

func (l Limits) withDefaults() Limits {
	if l.MaxViewers <= 0 {
		l.MaxViewers = defaultMaxViewers
	}
	if l.ViewerIdle <= 0 {
		l.ViewerIdle = defaultViewerIdle
	}
	if l.MaxStories <= 0 {
		l.MaxStories = defaultMaxStories
	}
	return l
}

type toggles struct {
	bookmarks  map[string]bool
	joined     map[string]bool
	storyLikes map[string]bool
	ugcLikes   map[string]bool
	lastSeen   time.Time
}

func newToggles() *toggles {
	return &toggles{
		bookmarks:  make(map[string]bool),
		joined:     make(map[string]bool),
		storyLikes: make(map[string]bool),
		ugcLikes:   make(map[string]bool),
	}
}

type Service struct {
	catalog Catalog
	latency time.Duration
	limits  Limits
	now     func() time.Time

	mu     sync.RWMutex
	users  map[string]*toggles
	posted []Story
	// counts shifts shared counters by every user's toggles.
	counts map[string]int
}

func NewService(catalog Catalog, latency time.Duration, limits Limits) *Service {
	return &Service{
		catalog: catalog,
		latency: latency,
		limits:  limits.withDefaults(),
		now:     time.Now,
		users:   make(map[string]*toggles),
		counts:  make(map[string]int),
	}
}

// wait simulates a slow upstream and returns early when ctx is done.
func (s *Service) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// userToggles returns user's state for a write, creating it if needed. Must
// be called with mu held.
func (s *Service) userToggles(user string) *toggles {
	t := s.users[user]
	if t == nil {
		if len(s.users) >= s.limits.MaxViewers {
			s.evictIdlest()
		}
		t = newToggles()
		s.users[user] = t
	}
	t.lastSeen = s.now()
	return t
}

func (s *Service) evictIdlest() {
	var (
		idlest string
		oldest time.Time
	)
	for user, t := range s.users {
		if idlest == "" || t.lastSeen.Before(oldest) {
			idlest, oldest = user, t.lastSeen
		}
	}
	if idlest != "" {
		s.forget(idlest)
	}
}

// forget drops user's state and takes their toggles off the shared counters.
func (s *Service) forget(user string) {
	t := s.users[user]
	if t == nil {
		return
	}
	for id := range t.bookmarks {
		s.counts["rec:"+id]--
	}
	for id := range t.joined {
		s.counts["challenge:"+id]--
	}
	for id := range t.storyLikes {
		s.counts["story:"+id]--
	}
	for id := range t.ugcLikes {
		s.counts["ugc:"+id]--
	}
	delete(s.users, user)
}

// Prune forgets viewers that have not toggled anything within the idle
// window and reports how many were removed.
func (s *Service) Prune() int {
	cutoff := s.now().Add(-s.limits.ViewerIdle)
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for user, t := range s.users {
		if t.lastSeen.Before(cutoff) {
			s.forget(user)
			removed++
		}
	}
	return removed
}

// Viewers reports how many viewers hold toggle state.
func (s *Service) Viewers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// lookup must be called with mu held.
func (s *Service) lookup(user string) *toggles {
	if t := s.users[user]; t != nil {
		return t
	}
	return newToggles()
}

func (s *Service) Recommendations(ctx context.Context, user string) ([]Recommendation, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.lookup(user)
	out := make([]Recommendation, len(s.catalog.Recommendations))
	for i, r := range s.catalog.Recommendations {
		r.Bookmarks += s.counts["rec:"+r.ID]
		r.Bookmarked = t.bookmarks[r.ID]
		out[i] = r
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MatchScore > out[j].MatchScore })
	return out, nil
}

func (s *Service) CoachTips(ctx context.Context) ([]CoachTip, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return append([]CoachTip(nil), s.catalog.CoachTips...), nil
}

// Sentiment returns every summary, or only the one for slug when it is set.
func (s *Service) Sentiment(ctx context.Context, slug string) ([]Sentiment, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	out := make([]Sentiment, 0, len(s.catalog.Sentiment))
	for _, item := range s.catalog.Sentiment {
		if slug == "" || item.ExperienceSlug == slug {
			out = append(out, item)
		}
	}
	return out, nil
}

// Stories lists posted and catalog stories, newest first.
func (s *Service) Stories(ctx context.Context, user string) ([]Story, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.lookup(user)
	out := make([]Story, 0, len(s.posted)+len(s.catalog.Stories))
	out = append(out, s.posted...)
	out = append(out, s.catalog.Stories...)
	for i := range out {
		out[i].Likes += s.counts["story:"+out[i].ID]
		out[i].Liked = t.storyLikes[out[i].ID]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PostedAt.After(out[j].PostedAt) })
	return out, nil
}

func (s *Service) Challenges(ctx context.Context, user string) ([]Challenge, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.lookup(user)
	out := make([]Challenge, len(s.catalog.Challenges))
	for i, c := range s.catalog.Challenges {
		c.Participants += s.counts["challenge:"+c.ID]
		c.Joined = t.joined[c.ID]
		out[i] = c
	}
	return out, nil
}

func (s *Service) UGC(ctx context.Context, user string) ([]UGCItem, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.lookup(user)
	out := make([]UGCItem, len(s.catalog.UGC))
	for i, item := range s.catalog.UGC {
		item.Likes += s.counts["ugc:"+item.ID]
		item.Liked = t.ugcLikes[item.ID]
		out[i] = item
	}
	return out, nil
}

// flip toggles state[id] and moves the shared counter with it. It returns the
// new state. Must be called with mu held.
func (s *Service) flip(state map[string]bool, counter, id string) bool {
	on := !state[id]
	if on {
		state[id] = true
		s.counts[counter]++
	} else {
		delete(state, id)
		s.counts[counter]--
	}
	return on
}

func (s *Service) ToggleBookmark(user, id string) (Recommendation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.catalog.Recommendations {
		if r.ID != id {
			continue
		}
		t := s.userToggles(user)
		r.Bookmarked = s.flip(t.bookmarks, "rec:"+id, id)
		r.Bookmarks += s.counts["rec:"+id]
		return r, nil
	}
	return Recommendation{}, fmt.Errorf("recommendation %q: %w", id, ErrItemNotFound)
}

func (s *Service) ToggleJoin(user, id string) (Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.catalog.Challenges {
		if c.ID != id {
			continue
		}
		t := s.userToggles(user)
		c.Joined = s.flip(t.joined, "challenge:"+id, id)
		c.Participants += s.counts["challenge:"+id]
		return c, nil
	}
	return Challenge{}, fmt.Errorf("challenge %q: %w", id, ErrItemNotFound)
}

func (s *Service) ToggleStoryLike(user, id string) (Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	story, ok := s.findStory(id)
	if !ok {
		return Story{}, fmt.Errorf("story %q: %w", id, ErrItemNotFound)
	}
	t := s.userToggles(user)
	story.Liked = s.flip(t.storyLikes, "story:"+id, id)
	story.Likes += s.counts["story:"+id]
	return story, nil
}

func (s *Service) ToggleUGCLike(user, id string) (UGCItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.catalog.UGC {
		if item.ID != id {
			continue
		}
		t := s.userToggles(user)
		item.Liked = s.flip(t.ugcLikes, "ugc:"+id, id)
		item.Likes += s.counts["ugc:"+id]
		return item, nil
	}
	return UGCItem{}, fmt.Errorf("ugc item %q: %w", id, ErrItemNotFound)
}

// PostStory publishes a story from the story composer.
func (s *Service) PostStory(ctx context.Context, author, body string) (Story, error) {
	author = strings.TrimSpace(author)
	body = strings.TrimSpace(body)
	switch {
	case author == "":
		return Story{}, fmt.Errorf("author is required: %w", ErrStoryInvalid)
	case body == "":
		return Story{}, fmt.Errorf("body is required: %w", ErrStoryInvalid)
	case utf8.RuneCountInString(body) > MaxStoryLength:
		return Story{}, fmt.Errorf("body must be %d characters or fewer: %w", MaxStoryLength, ErrStoryInvalid)
	}

	story := Story{
		ID:       "story-" + uuid.NewString(),
		Author:   author,
		Body:     body,
		PostedAt: s.now().UTC(),
	}
	s.mu.Lock()
	s.posted = append(s.posted, story)
	for len(s.posted) > s.limits.MaxStories {
		s.dropStory(s.posted[0].ID)
		s.posted = s.posted[1:]
	}
	s.mu.Unlock()

	log.Ctx(ctx).Info().Str("story_id", story.ID).Msg("Story posted")
	return story, nil
}

// dropStory clears likes for a posted story that is no longer retained.
func (s *Service) dropStory(id string) {
	delete(s.counts, "story:"+id)
	for _, t := range s.users {
		delete(t.storyLikes, id)
	}
}

// findStory must be called with mu held.
func (s *Service) findStory(id string) (Story, bool) {
	for _, story := range s.posted {
		if story.ID == id {
			return story, true
		}
	}
	for _, story := range s.catalog.Stories {
		if story.ID == id {
			return story, true
		}
	}
	return Story{}, false
}
