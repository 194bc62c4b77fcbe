package social

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestService(t *testing.T, latency time.Duration) *Service {
	t.Helper()
	catalog, err := DefaultCatalog()
	require.NoError(t, err)
	svc := NewService(catalog, latency, Limits{})
	svc.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestDefaultCatalogHasEveryFeed(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)
	require.NotEmpty(t, c.Recommendations)
	require.NotEmpty(t, c.CoachTips)
	require.NotEmpty(t, c.Sentiment)
	require.NotEmpty(t, c.Stories)
	require.NotEmpty(t, c.Challenges)
	require.NotEmpty(t, c.UGC)
}

func TestFetchHonoursCancellation(t *testing.T) {
	svc := newTestService(t, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := svc.Recommendations(ctx, "u1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)
}

func TestFetchWaitsForLatency(t *testing.T) {
	svc := newTestService(t, 20*time.Millisecond)

	start := time.Now()
	tips, err := svc.CoachTips(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, tips)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestRecommendationsSortedByMatchScore(t *testing.T) {
	svc := newTestService(t, 0)
	recs, err := svc.Recommendations(context.Background(), "u1")
	require.NoError(t, err)
	for i := 1; i < len(recs); i++ {
		require.GreaterOrEqual(t, recs[i-1].MatchScore, recs[i].MatchScore)
	}
}

func TestToggleBookmarkFlipsStateAndCounter(t *testing.T) {
	svc := newTestService(t, 0)
	base := svc.catalog.Recommendations[0]

	on, err := svc.ToggleBookmark("u1", base.ID)
	require.NoError(t, err)
	require.True(t, on.Bookmarked)
	require.Equal(t, base.Bookmarks+1, on.Bookmarks)

	// Another user sees the shared counter but not the first user's state.
	recs, err := svc.Recommendations(context.Background(), "u2")
	require.NoError(t, err)
	for _, r := range recs {
		if r.ID == base.ID {
			require.False(t, r.Bookmarked)
			require.Equal(t, base.Bookmarks+1, r.Bookmarks)
		}
	}

	off, err := svc.ToggleBookmark("u1", base.ID)
	require.NoError(t, err)
	require.False(t, off.Bookmarked)
	require.Equal(t, base.Bookmarks, off.Bookmarks)
}

func TestToggleJoinAndLikes(t *testing.T) {
	svc := newTestService(t, 0)

	challenge := svc.catalog.Challenges[0]
	joined, err := svc.ToggleJoin("u1", challenge.ID)
	require.NoError(t, err)
	require.True(t, joined.Joined)
	require.Equal(t, challenge.Participants+1, joined.Participants)

	item := svc.catalog.UGC[0]
	liked, err := svc.ToggleUGCLike("u1", item.ID)
	require.NoError(t, err)
	require.True(t, liked.Liked)
	require.Equal(t, item.Likes+1, liked.Likes)

	story := svc.catalog.Stories[0]
	storyLiked, err := svc.ToggleStoryLike("u1", story.ID)
	require.NoError(t, err)
	require.True(t, storyLiked.Liked)
	require.Equal(t, story.Likes+1, storyLiked.Likes)
}

func TestToggleUnknownItem(t *testing.T) {
	svc := newTestService(t, 0)

	_, err := svc.ToggleBookmark("u1", "missing")
	require.ErrorIs(t, err, ErrItemNotFound)
	_, err = svc.ToggleJoin("u1", "missing")
	require.ErrorIs(t, err, ErrItemNotFound)
	_, err = svc.ToggleStoryLike("u1", "missing")
	require.ErrorIs(t, err, ErrItemNotFound)
	_, err = svc.ToggleUGCLike("u1", "missing")
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestPostStory(t *testing.T) {
	svc := newTestService(t, 0)
	ctx := context.Background()

	story, err := svc.PostStory(ctx, " Ada ", " Loved the tram. ")
	require.NoError(t, err)
	require.Equal(t, "Ada", story.Author)
	require.Equal(t, "Loved the tram.", story.Body)
	require.True(t, strings.HasPrefix(story.ID, "story-"))

	stories, err := svc.Stories(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, story.ID, stories[0].ID, "newest story first")

	liked, err := svc.ToggleStoryLike("u1", story.ID)
	require.NoError(t, err)
	require.Equal(t, 1, liked.Likes)

	_, err = svc.PostStory(ctx, "Ada", "   ")
	require.ErrorIs(t, err, ErrStoryInvalid)
	_, err = svc.PostStory(ctx, "", "hello")
	require.ErrorIs(t, err, ErrStoryInvalid)
	_, err = svc.PostStory(ctx, "Ada", strings.Repeat("x", MaxStoryLength+1))
	require.ErrorIs(t, err, ErrStoryInvalid)
}

func TestSentimentFilter(t *testing.T) {
	svc := newTestService(t, 0)
	all, err := svc.Sentiment(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all, len(svc.catalog.Sentiment))

	one, err := svc.Sentiment(context.Background(), all[0].ExperienceSlug)
	require.NoError(t, err)
	require.Len(t, one, 1)
	require.Equal(t, 100, one[0].Positive+one[0].Neutral+one[0].Negative)
}

func TestConcurrentToggles(t *testing.T) {
	svc := newTestService(t, 0)
	id := svc.catalog.UGC[0].ID

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			user := "u" + string(rune('a'+n))
			_, _ = svc.ToggleUGCLike(user, id)
			_, _ = svc.UGC(context.Background(), user)
		}(i)
	}
	wg.Wait()

	items, err := svc.UGC(context.Background(), "observer")
	require.NoError(t, err)
	require.Equal(t, svc.catalog.UGC[0].Likes+20, items[0].Likes)
}

func TestViewerCapEvictsLeastRecentlyActive(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)
	svc := NewService(catalog, 0, Limits{MaxViewers: 2})
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	challenge := catalog.Challenges[0]

	for _, user := range []string{"visitor:a", "visitor:b"} {
		_, err := svc.ToggleJoin(user, challenge.ID)
		require.NoError(t, err)
		now = now.Add(time.Minute)
	}
	got, err := svc.ToggleJoin("visitor:c", challenge.ID)
	require.NoError(t, err)

	require.Equal(t, 2, svc.Viewers())
	// visitor:a was evicted and its join no longer counts.
	require.Equal(t, challenge.Participants+2, got.Participants)
	challenges, err := svc.Challenges(context.Background(), "visitor:a")
	require.NoError(t, err)
	require.False(t, challenges[0].Joined)
}

func TestPruneForgetsIdleViewers(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)
	svc := NewService(catalog, 0, Limits{ViewerIdle: time.Hour})
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	item := catalog.UGC[0]

	_, err = svc.ToggleUGCLike("visitor:old", item.ID)
	require.NoError(t, err)
	now = now.Add(90 * time.Minute)
	_, err = svc.ToggleUGCLike("user:7", item.ID)
	require.NoError(t, err)

	require.Equal(t, 1, svc.Prune())
	require.Equal(t, 1, svc.Viewers())
	items, err := svc.UGC(context.Background(), "user:7")
	require.NoError(t, err)
	require.True(t, items[0].Liked)
	require.Equal(t, item.Likes+1, items[0].Likes)
}

func TestPostedStoriesAreCapped(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)
	svc := NewService(catalog, 0, Limits{MaxStories: 3})
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { now = now.Add(time.Second); return now }

	first, err := svc.PostStory(context.Background(), "Ana", "first")
	require.NoError(t, err)
	_, err = svc.ToggleStoryLike("user:1", first.ID)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := svc.PostStory(context.Background(), "Ana", "later")
		require.NoError(t, err)
	}

	stories, err := svc.Stories(context.Background(), "user:1")
	require.NoError(t, err)
	require.Len(t, stories, 3+len(catalog.Stories))
	for _, story := range stories {
		require.NotEqual(t, first.ID, story.ID)
	}
	_, err = svc.ToggleStoryLike("user:1", first.ID)
	require.ErrorIs(t, err, ErrItemNotFound)
}
