package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lysyi3m/postcard/app/feed"
)

var _ PostRepository = (*PostRepo)(nil)

type PostRepo struct {
	db *DB
}

func NewPostRepository(db *DB) *PostRepo {
	return &PostRepo{db: db}
}

func (r *PostRepo) GetPost(ctx context.Context, date feed.Date) (*feed.Post, error) {
	var post feed.Post
	err := r.db.QueryRowContext(ctx, `
		SELECT title, link, summary, body
		FROM posts
		WHERE date_key = ?
	`, date.String()).Scan(&post.Title, &post.Link, &post.Summary, &post.Body)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post for %s: %w", date, err)
	}

	return &post, nil
}

func (r *PostRepo) ReplacePosts(ctx context.Context, posts map[feed.Date]feed.Post) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM posts`); err != nil {
		return fmt.Errorf("failed to clear posts: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO posts (date_key, published_on, title, link, summary, body, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare post insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Unix()
	for date, post := range posts {
		_, err := stmt.ExecContext(ctx, date.String(), date.Time().Format(time.DateOnly),
			post.Title, post.Link, post.Summary, post.Body, now)
		if err != nil {
			return fmt.Errorf("failed to insert post for %s: %w", date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit posts: %w", err)
	}

	return nil
}

func (r *PostRepo) CountPosts(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get post count: %w", err)
	}
	return count, nil
}

func (r *PostRepo) ListPosts(ctx context.Context, limit int) ([]feed.DatedPost, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT date_key, title, link, summary, body
		FROM posts
		ORDER BY published_on DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []feed.DatedPost
	for rows.Next() {
		var key string
		var p feed.DatedPost
		if err := rows.Scan(&key, &p.Post.Title, &p.Post.Link, &p.Post.Summary, &p.Post.Body); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		if p.Date, err = feed.ParseDate(key); err != nil {
			return nil, fmt.Errorf("failed to parse post date: %w", err)
		}
		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}

	return posts, nil
}
