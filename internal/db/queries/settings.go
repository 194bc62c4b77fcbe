package queries

import (
	"context"
	"time"
)

type UserSetting struct {
	UserID             int64
	EmailNotifications bool
	SmsNotifications   bool
	MarketingEmails    bool
	Language           string
	Currency           string
	Timezone           string
	UpdatedAt          time.Time
}

const userSettingColumns = `user_id, email_notifications, sms_notifications, marketing_emails, language, currency, timezone, updated_at`

func scanUserSetting(row rowScanner) (UserSetting, error) {
	var s UserSetting
	err := row.Scan(&s.UserID, &s.EmailNotifications, &s.SmsNotifications, &s.MarketingEmails, &s.Language, &s.Currency, &s.Timezone, &s.UpdatedAt)
	return s, err
}

const getUserSettings = `SELECT ` + userSettingColumns + ` FROM user_settings WHERE user_id = ?`

func (q *Queries) GetUserSettings(ctx context.Context, userID int64) (UserSetting, error) {
	return scanUserSetting(q.db.QueryRowContext(ctx, getUserSettings, userID))
}

type UpsertUserSettingsParams struct {
	UserID             int64
	EmailNotifications bool
	SmsNotifications   bool
	MarketingEmails    bool
	Language           string
	Currency           string
	Timezone           string
}

const upsertUserSettings = `INSERT INTO user_settings (user_id, email_notifications, sms_notifications, marketing_emails, language, currency, timezone)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
    email_notifications = excluded.email_notifications,
    sms_notifications = excluded.sms_notifications,
    marketing_emails = excluded.marketing_emails,
    language = excluded.language,
    currency = excluded.currency,
    timezone = excluded.timezone,
    updated_at = CURRENT_TIMESTAMP
RETURNING ` + userSettingColumns

func (q *Queries) UpsertUserSettings(ctx context.Context, arg UpsertUserSettingsParams) (UserSetting, error) {
	return scanUserSetting(q.db.QueryRowContext(ctx, upsertUserSettings,
		arg.UserID, arg.EmailNotifications, arg.SmsNotifications, arg.MarketingEmails, arg.Language, arg.Currency, arg.Timezone,
	))
}
