package queries

import (
	"context"
	"time"
)

type ModerationAction struct {
	ID           int64     `json:"id"`
	ExperienceID int64     `json:"experienceId"`
	AdminUserID  int64     `json:"adminUserId"`
	Action       string    `json:"action"`
	Notes        string    `json:"notes"`
	CreatedAt    time.Time `json:"createdAt"`
}

type CreateModerationActionParams struct {
	ExperienceID int64
	AdminUserID  int64
	Action       string
	Notes        string
}

const createModerationAction = `INSERT INTO moderation_actions (experience_id, admin_user_id, action, notes)
VALUES (?, ?, ?, ?)
RETURNING id, experience_id, admin_user_id, action, notes, created_at`

func (q *Queries) CreateModerationAction(ctx context.Context, arg CreateModerationActionParams) (ModerationAction, error) {
	var a ModerationAction
	err := q.db.QueryRowContext(ctx, createModerationAction, arg.ExperienceID, arg.AdminUserID, arg.Action, arg.Notes).
		Scan(&a.ID, &a.ExperienceID, &a.AdminUserID, &a.Action, &a.Notes, &a.CreatedAt)
	return a, err
}

const listModerationActions = `SELECT id, experience_id, admin_user_id, action, notes, created_at
FROM moderation_actions
WHERE experience_id = ?
ORDER BY id ASC`

func (q *Queries) ListModerationActions(ctx context.Context, experienceID int64) ([]ModerationAction, error) {
	rows, err := q.db.QueryContext(ctx, listModerationActions, experienceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ModerationAction
	for rows.Next() {
		var a ModerationAction
		if err := rows.Scan(&a.ID, &a.ExperienceID, &a.AdminUserID, &a.Action, &a.Notes, &a.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
