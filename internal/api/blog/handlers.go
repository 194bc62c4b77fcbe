// internal/api/blog/handlers.go
package blog

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Excursions/internal/api/apiutil"
	dbq "github.com/codr1/Excursions/internal/db/queries"
)

const blogQueryTimeout = 5 * time.Second

var (
	queries     *dbq.Queries
	now         = time.Now
	queriesOnce sync.Once
)

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(q *dbq.Queries) {
	if q == nil {
		return
	}
	queriesOnce.Do(func() {
		queries = q
	})
}

// GET /api/v1/blog
// Lists published posts newest first, without bodies.
func HandleBlogList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), blogQueryTimeout)
	defer cancel()

	posts, err := queries.ListPublishedBlogPosts(ctx, now())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list blog posts")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load blog")
		return
	}
	if posts == nil {
		posts = []dbq.BlogPost{}
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

// GET /api/v1/blog/{slug}
func HandleBlogPost(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), blogQueryTimeout)
	defer cancel()

	slug := r.PathValue("slug")
	post, err := queries.GetPublishedBlogPost(ctx, dbq.GetPublishedBlogPostParams{Slug: slug, Now: now()})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "Post not found")
			return
		}
		logger.Error().Err(err).Str("slug", slug).Msg("Failed to load blog post")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load post")
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, post)
}
