// cmd/server/server.go
package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Excursions/internal/api"
	"github.com/codr1/Excursions/internal/api/admin"
	"github.com/codr1/Excursions/internal/api/apiutil"
	"github.com/codr1/Excursions/internal/api/auth"
	"github.com/codr1/Excursions/internal/api/authz"
	"github.com/codr1/Excursions/internal/api/blog"
	"github.com/codr1/Excursions/internal/api/bookings"
	"github.com/codr1/Excursions/internal/api/contact"
	"github.com/codr1/Excursions/internal/api/experiences"
	"github.com/codr1/Excursions/internal/api/host"
	"github.com/codr1/Excursions/internal/api/pages"
	"github.com/codr1/Excursions/internal/api/settings"
	"github.com/codr1/Excursions/internal/api/socialfeed"
	"github.com/codr1/Excursions/internal/booking"
	"github.com/codr1/Excursions/internal/booking/drafts"
	"github.com/codr1/Excursions/internal/config"
	"github.com/codr1/Excursions/internal/db"
	"github.com/codr1/Excursions/internal/email"
	"github.com/codr1/Excursions/internal/ratelimit"
	"github.com/codr1/Excursions/internal/social"
)

type serverDeps struct {
	database *db.DB
	drafts   drafts.Store
	email    email.EmailSender
	limiter  *ratelimit.Limiter
	social   *social.Service
}

func newServer(cfg *config.Config, deps serverDeps) *http.Server {
	initHandlers(cfg, deps)

	router := http.NewServeMux()

	// Listed innermost first; WithRequestID sees the request before anything else.
	handler := api.ChainMiddleware(
		router,
		api.WithAuth,
		api.WithLogging,
		api.WithRecovery,
		api.WithSecurityHeaders(strings.HasPrefix(cfg.App.BaseURL, "https://")),
		api.WithRequestID,
	)

	// Register routes
	registerRoutes(router, cfg, deps)

	return &http.Server{
		Addr:         listenAddr(cfg),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func initHandlers(cfg *config.Config, deps serverDeps) {
	q := deps.database.Queries
	auth.InitHandlers(q, cfg, deps.limiter)
	experiences.InitHandlers(q)
	engine := booking.NewEngine(cfg.Booking.PhoneRegion)
	engine.Location = cfg.Location()
	bookings.InitHandlers(deps.database, deps.drafts, engine, deps.email, deps.limiter, cfg)
	host.InitHandlers(deps.database, cfg.Now)
	admin.InitHandlers(deps.database)
	settings.InitHandlers(q)
	contact.InitHandlers(q, deps.limiter, deps.email, cfg)
	blog.InitHandlers(q)
	socialfeed.InitHandlers(deps.social, !cfg.IsDevelopment())
	pages.InitHandlers(q, cfg.App.Name)
}

func registerRoutes(mux *http.ServeMux, cfg *config.Config, deps serverDeps) {
	// Pages
	mux.HandleFunc("GET /{$}", pages.HandleHome)
	mux.HandleFunc("GET /terms", pages.HandleTerms)
	mux.HandleFunc("GET /privacy", pages.HandlePrivacy)

	// Health check
	mux.HandleFunc("GET /health", handleHealth(deps.database))

	// Auth
	mux.HandleFunc("POST /api/v1/auth/register", auth.HandleRegister)
	mux.HandleFunc("POST /api/v1/auth/login", auth.HandleLogin)
	mux.HandleFunc("POST /api/v1/auth/logout", auth.HandleLogout)
	mux.HandleFunc("GET /api/v1/auth/me", auth.HandleMe)

	// Catalog
	mux.HandleFunc("GET /api/v1/experiences", experiences.HandleExperienceList)
	mux.HandleFunc("GET /api/v1/experiences/{slug}", experiences.HandleExperienceDetail)

	// Booking wizard
	mux.HandleFunc("POST /api/v1/bookings/drafts", bookings.HandleDraftCreate)
	mux.HandleFunc("GET /api/v1/bookings/drafts/{id}", bookings.HandleDraftGet)
	mux.HandleFunc("DELETE /api/v1/bookings/drafts/{id}", bookings.HandleDraftDelete)
	mux.HandleFunc("PUT /api/v1/bookings/drafts/{id}/date", bookings.HandleDraftSetDate)
	mux.HandleFunc("PUT /api/v1/bookings/drafts/{id}/time", bookings.HandleDraftSetTime)
	mux.HandleFunc("PUT /api/v1/bookings/drafts/{id}/participants", bookings.HandleDraftParticipants)
	mux.HandleFunc("PUT /api/v1/bookings/drafts/{id}/contact", bookings.HandleDraftContact)
	mux.HandleFunc("PUT /api/v1/bookings/drafts/{id}/payment", bookings.HandleDraftPayment)
	mux.HandleFunc("POST /api/v1/bookings/drafts/{id}/next", bookings.HandleDraftNext)
	mux.HandleFunc("POST /api/v1/bookings/drafts/{id}/back", bookings.HandleDraftBack)
	mux.HandleFunc("POST /api/v1/bookings/drafts/{id}/complete", bookings.HandleDraftComplete)
	mux.HandleFunc("POST /api/v1/bookings/drafts/{id}/close", bookings.HandleDraftClose)

	// Bookings
	mux.HandleFunc("GET /api/v1/bookings/{code}", bookings.HandleBookingGet)
	mux.HandleFunc("POST /api/v1/bookings/{code}/cancel", bookings.HandleBookingCancel)
	mux.HandleFunc("GET /api/v1/me/bookings", bookings.HandleMyBookings)

	// Host routes
	hostMux := http.NewServeMux()
	hostMux.HandleFunc("GET /api/v1/host/dashboard", host.HandleDashboard)
	hostMux.HandleFunc("GET /api/v1/host/experiences", host.HandleExperienceList)
	hostMux.HandleFunc("POST /api/v1/host/experiences", host.HandleExperienceCreate)
	hostMux.HandleFunc("PUT /api/v1/host/experiences/{id}", host.HandleExperienceUpdate)
	hostMux.HandleFunc("POST /api/v1/host/experiences/{id}/submit", host.HandleExperienceSubmit)
	mux.Handle("/api/v1/host/", api.ChainMiddleware(hostMux, api.WithRoles(authz.RoleHost)))

	// Admin routes
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET /api/v1/admin/moderation", admin.HandleModerationQueue)
	adminMux.HandleFunc("POST /api/v1/admin/experiences/{id}/approve", admin.HandleApprove)
	adminMux.HandleFunc("POST /api/v1/admin/experiences/{id}/reject", admin.HandleReject)
	adminMux.HandleFunc("GET /api/v1/admin/contact-messages", admin.HandleContactMessages)
	mux.Handle("/api/v1/admin/", api.ChainMiddleware(adminMux, api.WithRoles(authz.RoleAdmin)))

	// Settings, contact, blog
	mux.HandleFunc("GET /api/v1/settings", settings.HandleSettingsGet)
	mux.HandleFunc("PUT /api/v1/settings", settings.HandleSettingsUpdate)
	mux.HandleFunc("POST /api/v1/contact", contact.HandleContactSubmit)
	mux.HandleFunc("GET /api/v1/blog", blog.HandleBlogList)
	mux.HandleFunc("GET /api/v1/blog/{slug}", blog.HandleBlogPost)

	// Social widgets
	mux.HandleFunc("GET /api/v1/social/recommendations", socialfeed.HandleRecommendations)
	mux.HandleFunc("POST /api/v1/social/recommendations/{id}/bookmark", socialfeed.HandleBookmark)
	mux.HandleFunc("GET /api/v1/social/coach", socialfeed.HandleCoachTips)
	mux.HandleFunc("GET /api/v1/social/sentiment", socialfeed.HandleSentiment)
	mux.HandleFunc("GET /api/v1/social/stories", socialfeed.HandleStories)
	mux.HandleFunc("POST /api/v1/social/stories", socialfeed.HandleStoryPost)
	mux.HandleFunc("POST /api/v1/social/stories/{id}/like", socialfeed.HandleStoryLike)
	mux.HandleFunc("GET /api/v1/social/challenges", socialfeed.HandleChallenges)
	mux.HandleFunc("POST /api/v1/social/challenges/{id}/join", socialfeed.HandleJoin)
	mux.HandleFunc("GET /api/v1/social/ugc", socialfeed.HandleUGC)
	mux.HandleFunc("POST /api/v1/social/ugc/{id}/like", socialfeed.HandleUGCLike)

	// Static file handling
	staticDir := cfg.App.StaticDir
	fs := http.FileServer(http.Dir(staticDir))
	mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Ctx(r.Context()).Debug().
			Str("path", r.URL.Path).
			Str("static_dir", staticDir).
			Msg("Static file request")
		http.StripPrefix("/static/", fs).ServeHTTP(w, r)
	}))
}

// handleHealth reports 503 when the database stops answering.
func handleHealth(database *db.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := database.Ping(ctx); err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("Health check failed")
			_ = apiutil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		_ = apiutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
