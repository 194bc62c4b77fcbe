// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/codr1/Excursions/internal/booking/drafts"
	"github.com/codr1/Excursions/internal/config"
	"github.com/codr1/Excursions/internal/db"
	"github.com/codr1/Excursions/internal/email"
	"github.com/codr1/Excursions/internal/ratelimit"
	"github.com/codr1/Excursions/internal/scheduler"
	"github.com/codr1/Excursions/internal/seed"
	"github.com/codr1/Excursions/internal/social"
)

func setupLogger(environment string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func defaultConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "config/config.yaml"
}

func main() {
	configPath := flag.String("config", defaultConfigPath(), "Path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load configuration")
	}

	setupLogger(cfg.App.Environment)

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.Logger.WithContext(ctx)

	database, err := db.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	if cfg.App.SeedDemoData {
		catalog, err := seed.DefaultCatalog()
		if err != nil {
			return fmt.Errorf("load seed catalog: %w", err)
		}
		if _, err := seed.Load(ctx, database, catalog); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}

	draftStore, closeDrafts, err := drafts.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open draft store: %w", err)
	}
	defer func() {
		if err := closeDrafts(); err != nil {
			log.Warn().Err(err).Msg("Failed to close draft store")
		}
	}()

	emailClient, err := email.NewSender(cfg)
	if err != nil {
		return fmt.Errorf("init email sender: %w", err)
	}

	limiter := ratelimit.New(ratelimit.DefaultConfig())

	catalog, err := social.DefaultCatalog()
	if err != nil {
		return fmt.Errorf("load social catalog: %w", err)
	}

	deps := serverDeps{
		database: database,
		drafts:   draftStore,
		email:    emailClient,
		limiter:  limiter,
		social:   social.NewService(catalog, cfg.Social.SimulatedLatency, social.Limits{
			MaxViewers: cfg.Social.MaxViewers,
			ViewerIdle: cfg.Social.ViewerIdleTTL,
			MaxStories: cfg.Social.MaxStories,
		}),
	}
	server := newServer(cfg, deps)

	if !cfg.Scheduler.DisableBackgroundJobs {
		jobs, err := startScheduler(cfg, deps)
		if err != nil {
			return err
		}
		defer func() {
			if err := jobs.Stop(); err != nil {
				log.Warn().Err(err).Msg("Failed to stop scheduler")
			}
		}()
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Int("port", cfg.App.Port).Str("environment", cfg.App.Environment).Msg("Starting server")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		log.Info().Msg("Shutting down server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func startScheduler(cfg *config.Config, deps serverDeps) (*scheduler.Service, error) {
	reminders, err := scheduler.ReminderJob(deps.database, deps.email, cfg)
	if err != nil {
		return nil, fmt.Errorf("build reminder job: %w", err)
	}
	maintenance, err := scheduler.MaintenanceJobs(deps.database, deps.drafts, deps.limiter, deps.social, cfg)
	if err != nil {
		return nil, fmt.Errorf("build maintenance jobs: %w", err)
	}

	svc, err := scheduler.New(cfg.Location())
	if err != nil {
		return nil, err
	}
	if err := svc.Register(append(maintenance, reminders)...); err != nil {
		_ = svc.Stop()
		return nil, err
	}
	svc.Start()
	return svc, nil
}

func listenAddr(cfg *config.Config) string {
	return ":" + strconv.Itoa(cfg.App.Port)
}
