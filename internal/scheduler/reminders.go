package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/Excursions/internal/config"
	"github.com/codr1/Excursions/internal/db"
	dbq "github.com/codr1/Excursions/internal/db/queries"
	"github.com/codr1/Excursions/internal/email"
	"github.com/codr1/Excursions/internal/models"
	"github.com/codr1/Excursions/internal/pricing"
)

const reminderJobTimeout = 2 * time.Minute

// ReminderJob returns the booking reminder job. Without an email client each
// run is a no-op.
func ReminderJob(database *db.DB, emailClient email.EmailSender, cfg *config.Config) (Job, error) {
	if database == nil || cfg == nil {
		return Job{}, fmt.Errorf("reminder job requires database and config")
	}
	leadTime := cfg.Booking.ReminderLeadTime
	sender := cfg.Email.Sender

	return Job{
		Name:    "booking_reminders",
		Cron:    cfg.Scheduler.ReminderCron,
		Timeout: reminderJobTimeout,
		Wait:    true,
		Run: func(ctx context.Context) error {
			if emailClient == nil {
				log.Ctx(ctx).Debug().Msg("Reminder job skipped: email client not configured")
				return nil
			}
			sent, err := SendDueReminders(ctx, database, emailClient, sender, cfg.Now(), leadTime)
			if err != nil {
				return fmt.Errorf("send reminders (sent %d): %w", sent, err)
			}
			if sent > 0 {
				log.Ctx(ctx).Info().Int("sent", sent).Dur("lead_time", leadTime).Msg("Booking reminders sent")
			}
			return nil
		},
	}, nil
}

// SendDueReminders emails every confirmed booking starting within leadTime of
// now that has not been reminded yet. A booking is marked only after its email
// is accepted, so failures are retried on the next run.
func SendDueReminders(ctx context.Context, database *db.DB, client email.EmailSender, sender string, now time.Time, leadTime time.Duration) (int, error) {
	if database == nil {
		return 0, fmt.Errorf("reminders require database")
	}
	logger := log.Ctx(ctx)

	rows, err := database.Queries.ListBookingsStartingBetween(ctx, dbq.ListBookingsStartingBetweenParams{
		From: now.Format(models.StartLayout),
		To:   now.Add(leadTime).Format(models.StartLayout),
	})
	if err != nil {
		return 0, fmt.Errorf("list upcoming bookings: %w", err)
	}

	experiences := make(map[int64]dbq.Experience)
	sent := 0
	for _, row := range rows {
		exp, ok := experiences[row.ExperienceID]
		if !ok {
			exp, err = database.Queries.GetExperienceByID(ctx, row.ExperienceID)
			if err != nil {
				logger.Error().Err(err).Int64("experience_id", row.ExperienceID).Msg("Failed to load experience for reminder")
				continue
			}
			experiences[row.ExperienceID] = exp
		}

		if err := sendBookingReminder(ctx, database, client, sender, exp, row, now, logger); err != nil {
			logger.Error().Err(err).Str("confirmation_code", row.ConfirmationCode).Msg("Failed to send booking reminder")
			continue
		}
		sent++
	}
	return sent, nil
}

func sendBookingReminder(ctx context.Context, database *db.DB, client email.EmailSender, sender string, exp dbq.Experience, row dbq.Booking, now time.Time, logger *zerolog.Logger) error {
	date, slot := email.FormatBookingDate(row.SelectedDate, row.SelectedTime)
	message := email.BuildBookingReminder(email.BookingDetails{
		ExperienceTitle:  exp.Title,
		City:             exp.City,
		Date:             date,
		Time:             slot,
		ConfirmationCode: row.ConfirmationCode,
		ContactName:      row.ContactName,
		Adults:           int(row.Adults),
		Children:         int(row.Children),
		Infants:          int(row.Infants),
		Total:            pricing.FormatAmount(row.TotalAmount, exp.Currency),
	})

	if err := email.Deliver(ctx, client, email.Envelope{To: row.ContactEmail, From: sender, Message: message}); err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}

	marked, err := database.Queries.MarkReminderSent(ctx, dbq.MarkReminderSentParams{ID: row.ID, SentAt: now.UTC()})
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	if marked == 0 {
		logger.Warn().Str("confirmation_code", row.ConfirmationCode).Msg("Reminder already marked by another run")
	}
	return nil
}
