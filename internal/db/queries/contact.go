package queries

import (
	"context"
	"time"
)

type ContactMessage struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateContactMessageParams struct {
	Name    string
	Email   string
	Subject string
	Message string
}

const createContactMessage = `INSERT INTO contact_messages (name, email, subject, message)
VALUES (?, ?, ?, ?)
RETURNING id, name, email, subject, message, created_at`

func (q *Queries) CreateContactMessage(ctx context.Context, arg CreateContactMessageParams) (ContactMessage, error) {
	var m ContactMessage
	err := q.db.QueryRowContext(ctx, createContactMessage, arg.Name, arg.Email, arg.Subject, arg.Message).
		Scan(&m.ID, &m.Name, &m.Email, &m.Subject, &m.Message, &m.CreatedAt)
	return m, err
}

const listContactMessages = `SELECT id, name, email, subject, message, created_at
FROM contact_messages
ORDER BY created_at DESC, id DESC
LIMIT ?`

func (q *Queries) ListContactMessages(ctx context.Context, limit int64) ([]ContactMessage, error) {
	rows, err := q.db.QueryContext(ctx, listContactMessages, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ContactMessage
	for rows.Next() {
		var m ContactMessage
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Subject, &m.Message, &m.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
