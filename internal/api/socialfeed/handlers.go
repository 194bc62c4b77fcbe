// internal/api/socialfeed/handlers.go
package socialfeed

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/codr1/Excursions/internal/api/apiutil"
	"github.com/codr1/Excursions/internal/api/authz"
	"github.com/codr1/Excursions/internal/social"
)

const (
	visitorCookieName = "excursions_visitor"
	visitorCookieTTL  = 90 * 24 * time.Hour
	// feedTimeout bounds a feed request, simulated latency included.
	feedTimeout = 10 * time.Second
)

var (
	service     *social.Service
	secure      bool
	serviceOnce sync.Once
)

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(svc *social.Service, secureCookies bool) {
	if svc == nil {
		return
	}
	serviceOnce.Do(func() {
		service = svc
		secure = secureCookies
	})
}

type storyRequest struct {
	Body string `json:"body" validate:"required"`
}

// GET /api/v1/social/recommendations
func HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	serveFeed(w, r, "recommendations", func(ctx context.Context, viewer string) (any, error) {
		return service.Recommendations(ctx, viewer)
	})
}

// GET /api/v1/social/coach
func HandleCoachTips(w http.ResponseWriter, r *http.Request) {
	serveFeed(w, r, "tips", func(ctx context.Context, _ string) (any, error) {
		return service.CoachTips(ctx)
	})
}

// GET /api/v1/social/sentiment?experience=
func HandleSentiment(w http.ResponseWriter, r *http.Request) {
	slug := apiutil.QueryString(r, "experience")
	serveFeed(w, r, "sentiment", func(ctx context.Context, _ string) (any, error) {
		return service.Sentiment(ctx, slug)
	})
}

// GET /api/v1/social/stories
func HandleStories(w http.ResponseWriter, r *http.Request) {
	serveFeed(w, r, "stories", func(ctx context.Context, viewer string) (any, error) {
		return service.Stories(ctx, viewer)
	})
}

// GET /api/v1/social/challenges
func HandleChallenges(w http.ResponseWriter, r *http.Request) {
	serveFeed(w, r, "challenges", func(ctx context.Context, viewer string) (any, error) {
		return service.Challenges(ctx, viewer)
	})
}

// GET /api/v1/social/ugc
func HandleUGC(w http.ResponseWriter, r *http.Request) {
	serveFeed(w, r, "items", func(ctx context.Context, viewer string) (any, error) {
		return service.UGC(ctx, viewer)
	})
}

// POST /api/v1/social/recommendations/{id}/bookmark
func HandleBookmark(w http.ResponseWriter, r *http.Request) {
	toggle(w, r, func(viewer, id string) (any, error) {
		return service.ToggleBookmark(viewer, id)
	})
}

// POST /api/v1/social/challenges/{id}/join
func HandleJoin(w http.ResponseWriter, r *http.Request) {
	toggle(w, r, func(viewer, id string) (any, error) {
		return service.ToggleJoin(viewer, id)
	})
}

// POST /api/v1/social/stories/{id}/like
func HandleStoryLike(w http.ResponseWriter, r *http.Request) {
	toggle(w, r, func(viewer, id string) (any, error) {
		return service.ToggleStoryLike(viewer, id)
	})
}

// POST /api/v1/social/ugc/{id}/like
func HandleUGCLike(w http.ResponseWriter, r *http.Request) {
	toggle(w, r, func(viewer, id string) (any, error) {
		return service.ToggleUGCLike(viewer, id)
	})
}

// POST /api/v1/social/stories
func HandleStoryPost(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	user := apiutil.RequireRole(w, r)
	if user == nil {
		return
	}

	var req storyRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fields := apiutil.ValidateStruct(req); len(fields) > 0 {
		apiutil.WriteFieldErrors(w, "Invalid story", fields)
		return
	}

	story, err := service.PostStory(r.Context(), user.Name, req.Body)
	if err != nil {
		if errors.Is(err, social.ErrStoryInvalid) {
			apiutil.WriteFieldErrors(w, "Invalid story", []apiutil.FieldError{{Field: "body", Reason: err.Error()}})
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to post story")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to post story")
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusCreated, story)
}

func serveFeed(w http.ResponseWriter, r *http.Request, key string, fetch func(context.Context, string) (any, error)) {
	if !ready(w, r) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), feedTimeout)
	defer cancel()

	items, err := fetch(ctx, viewerKey(w, r, false))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Client went away; nothing to answer.
			return
		}
		log.Ctx(r.Context()).Warn().Err(err).Str("feed", key).Msg("Social feed failed")
		apiutil.WriteError(w, http.StatusGatewayTimeout, "Feed is taking too long to load")
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, map[string]any{key: items})
}

func toggle(w http.ResponseWriter, r *http.Request, flip func(viewer, id string) (any, error)) {
	if !ready(w, r) {
		return
	}
	item, err := flip(viewerKey(w, r, true), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, social.ErrItemNotFound) {
			apiutil.WriteError(w, http.StatusNotFound, "Item not found")
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Msg("Social toggle failed")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to update")
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, item)
}

// viewerKey scopes toggle state to the signed-in user, or to a visitor cookie
// for anonymous callers. The cookie is only issued when mint is set, so
// browsing alone leaves no trace; an empty key reads as a viewer with no
// toggles.
func viewerKey(w http.ResponseWriter, r *http.Request, mint bool) string {
	if user := authz.UserFromContext(r.Context()); user != nil {
		return "user:" + strconv.FormatInt(user.ID, 10)
	}
	if c, err := r.Cookie(visitorCookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return "visitor:" + c.Value
		}
	}
	if !mint {
		return ""
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     visitorCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(visitorCookieTTL.Seconds()),
	})
	return "visitor:" + id
}

func ready(w http.ResponseWriter, r *http.Request) bool {
	if service == nil {
		log.Ctx(r.Context()).Error().Msg("Social handlers not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return false
	}
	return true
}
