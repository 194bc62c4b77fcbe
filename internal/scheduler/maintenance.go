package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Excursions/internal/booking/drafts"
	"github.com/codr1/Excursions/internal/config"
	"github.com/codr1/Excursions/internal/db"
	"github.com/codr1/Excursions/internal/models"
	"github.com/codr1/Excursions/internal/ratelimit"
	"github.com/codr1/Excursions/internal/social"
)

// MaintenanceJobs returns the draft purge, the booking completion sweep, the
// rate limit sweep and the social viewer prune.
func MaintenanceJobs(database *db.DB, store drafts.Store, limiter *ratelimit.Limiter, feeds *social.Service, cfg *config.Config) ([]Job, error) {
	if database == nil || store == nil || limiter == nil || feeds == nil || cfg == nil {
		return nil, fmt.Errorf("maintenance jobs require database, draft store, limiter, social service and config")
	}
	return []Job{
		{
			Name: "draft_purge",
			Cron: cfg.Scheduler.DraftCleanupCron,
			Run: func(ctx context.Context) error {
				removed, err := store.PurgeExpired(ctx)
				if err != nil {
					return fmt.Errorf("purge expired drafts: %w", err)
				}
				if removed > 0 {
					log.Ctx(ctx).Info().Int("removed", removed).Msg("Purged expired booking drafts")
				}
				return nil
			},
		},
		{
			Name: "booking_sweep",
			Cron: cfg.Scheduler.BookingSweepCron,
			Run: func(ctx context.Context) error {
				_, err := CompletePastBookings(ctx, database, cfg.Now())
				return err
			},
		},
		{
			Name: "rate_limit_sweep",
			Cron: cfg.Scheduler.RateLimitSweepCron,
			Run: func(ctx context.Context) error {
				if removed := limiter.Sweep(); removed > 0 {
					log.Ctx(ctx).Debug().Int("removed", removed).Int("tracked", limiter.Len()).Msg("Swept rate limit entries")
				}
				return nil
			},
		},
		{
			Name: "social_prune",
			Cron: cfg.Scheduler.SocialPruneCron,
			Run: func(ctx context.Context) error {
				if removed := feeds.Prune(); removed > 0 {
					log.Ctx(ctx).Debug().Int("removed", removed).Int("viewers", feeds.Viewers()).Msg("Pruned idle social viewers")
				}
				return nil
			},
		},
	}, nil
}

// CompletePastBookings marks confirmed bookings dated before today as completed.
func CompletePastBookings(ctx context.Context, database *db.DB, now time.Time) (int64, error) {
	if database == nil {
		return 0, fmt.Errorf("booking sweep requires database")
	}
	today := models.DateKey(now)
	completed, err := database.Queries.CompletePastBookings(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("complete past bookings: %w", err)
	}
	if completed > 0 {
		log.Ctx(ctx).Info().Int64("completed", completed).Str("before", today).Msg("Marked past bookings completed")
	}
	return completed, nil
}
