package queries

import (
	"context"
	"time"
)

type BlogPost struct {
	ID          int64     `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Excerpt     string    `json:"excerpt"`
	Body        string    `json:"body,omitempty"`
	Author      string    `json:"author"`
	PublishedAt time.Time `json:"publishedAt"`
}

type CreateBlogPostParams struct {
	Slug        string
	Title       string
	Excerpt     string
	Body        string
	Author      string
	PublishedAt time.Time
}

const createBlogPost = `INSERT INTO blog_posts (slug, title, excerpt, body, author, published_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id, slug, title, excerpt, body, author, published_at`

func (q *Queries) CreateBlogPost(ctx context.Context, arg CreateBlogPostParams) (BlogPost, error) {
	var p BlogPost
	err := q.db.QueryRowContext(ctx, createBlogPost, arg.Slug, arg.Title, arg.Excerpt, arg.Body, arg.Author, arg.PublishedAt.UTC()).
		Scan(&p.ID, &p.Slug, &p.Title, &p.Excerpt, &p.Body, &p.Author, &p.PublishedAt)
	return p, err
}

const listPublishedBlogPosts = `SELECT id, slug, title, excerpt, '', author, published_at
FROM blog_posts
WHERE published_at <= ?
ORDER BY published_at DESC, id DESC`

// ListPublishedBlogPosts omits post bodies.
func (q *Queries) ListPublishedBlogPosts(ctx context.Context, now time.Time) ([]BlogPost, error) {
	rows, err := q.db.QueryContext(ctx, listPublishedBlogPosts, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []BlogPost
	for rows.Next() {
		var p BlogPost
		if err := rows.Scan(&p.ID, &p.Slug, &p.Title, &p.Excerpt, &p.Body, &p.Author, &p.PublishedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type GetPublishedBlogPostParams struct {
	Slug string
	Now  time.Time
}

const getPublishedBlogPost = `SELECT id, slug, title, excerpt, body, author, published_at
FROM blog_posts
WHERE slug = ? AND published_at <= ?`

func (q *Queries) GetPublishedBlogPost(ctx context.Context, arg GetPublishedBlogPostParams) (BlogPost, error) {
	var p BlogPost
	err := q.db.QueryRowContext(ctx, getPublishedBlogPost, arg.Slug, arg.Now.UTC()).
		Scan(&p.ID, &p.Slug, &p.Title, &p.Excerpt, &p.Body, &p.Author, &p.PublishedAt)
	return p, err
}
