// Package scheduler runs the background jobs: booking reminders, the draft
// purge, the booking completion sweep and the rate limit sweep.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyJobName  = errors.New("job name is required")
	ErrEmptyCronExpr = errors.New("cron expression is required")
	ErrNoRunFunc     = errors.New("job run func is required")
)

// Job is a cron-triggered unit of background work.
type Job struct {
	Name string
	Cron string
	// Timeout bounds a single run. Zero means one minute.
	Timeout time.Duration
	// Wait queues an overlapping run instead of skipping it.
	Wait bool
	Run  func(ctx context.Context) error
}

func (j Job) validate() error {
	switch {
	case strings.TrimSpace(j.Name) == "":
		return ErrEmptyJobName
	case strings.TrimSpace(j.Cron) == "":
		return fmt.Errorf("%s: %w", j.Name, ErrEmptyCronExpr)
	case j.Run == nil:
		return fmt.Errorf("%s: %w", j.Name, ErrNoRunFunc)
	}
	return nil
}

// Service wraps a gocron scheduler.
type Service struct {
	scheduler gocron.Scheduler
	stopOnce  sync.Once
	stopErr   error
}

// New builds a stopped scheduler. Panics inside jobs are logged, not fatal.
func New(loc *time.Location) (*Service, error) {
	if loc == nil {
		loc = time.UTC
	}
	sched, err := gocron.NewScheduler(
		gocron.WithLocation(loc),
		gocron.WithGlobalJobOptions(
			gocron.WithEventListeners(
				gocron.AfterJobRunsWithPanic(func(jobID uuid.UUID, jobName string, recoverData any) {
					log.Error().
						Str("job_id", jobID.String()).
						Str("job_name", jobName).
						Interface("panic", recoverData).
						Msg("Scheduler job panicked")
				}),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}
	return &Service{scheduler: sched}, nil
}

// Register adds jobs. It stops at the first invalid job or cron expression.
func (s *Service) Register(jobs ...Job) error {
	for _, job := range jobs {
		if err := job.validate(); err != nil {
			return err
		}
		var mode gocron.LimitMode = gocron.LimitModeReschedule
		if job.Wait {
			mode = gocron.LimitModeWait
		}
		_, err := s.scheduler.NewJob(
			gocron.CronJob(job.Cron, false),
			gocron.NewTask(wrap(job)),
			gocron.WithName(job.Name),
			gocron.WithSingletonMode(mode),
		)
		if err != nil {
			return fmt.Errorf("register %s: %w", job.Name, err)
		}
		log.Info().Str("job_name", job.Name).Str("cron", job.Cron).Msg("Scheduler job registered")
	}
	return nil
}

func wrap(job Job) func() {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	logger := log.With().Str("job_name", job.Name).Logger()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		ctx = logger.WithContext(ctx)

		started := time.Now()
		if err := job.Run(ctx); err != nil {
			logger.Error().Err(err).Dur("duration", time.Since(started)).Msg("Scheduler job failed")
			return
		}
		logger.Debug().Dur("duration", time.Since(started)).Msg("Scheduler job completed")
	}
}

// Start begins running registered jobs.
func (s *Service) Start() {
	log.Info().Int("jobs", len(s.scheduler.Jobs())).Msg("Scheduler starting")
	s.scheduler.Start()
}

// JobInfo describes a registered job.
type JobInfo struct {
	Name    string
	NextRun time.Time
}

// Jobs lists registered jobs. NextRun is zero until the scheduler starts.
func (s *Service) Jobs() []JobInfo {
	jobs := s.scheduler.Jobs()
	infos := make([]JobInfo, 0, len(jobs))
	for _, job := range jobs {
		next, _ := job.NextRun()
		infos = append(infos, JobInfo{Name: job.Name(), NextRun: next})
	}
	return infos
}

// Stop shuts the scheduler down and waits for running jobs. Safe to call twice.
func (s *Service) Stop() error {
	s.stopOnce.Do(func() {
		log.Info().Msg("Scheduler stopping")
		s.stopErr = s.scheduler.Shutdown()
	})
	return s.stopErr
}
