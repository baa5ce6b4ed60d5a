package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JamesDimonaco/Carten-Location-Tracker/internal/domain"
)

// CommentRepo stores comment board entries. Comments are immutable once
// created; there is no delete path.
type CommentRepo struct {
	pool *pgxpool.Pool
}

func NewCommentRepo(pool *pgxpool.Pool) *CommentRepo {
	return &CommentRepo{pool: pool}
}

// Insert persists a comment. The store assigns id and created_at; the
// persisted row is returned.
func (r *CommentRepo) Insert(ctx context.Context, content string, name, imageURL *string) (*domain.Comment, error) {
	var comment domain.Comment
	err := r.pool.QueryRow(ctx, `
		INSERT INTO comments (content, name, image_url)
		VALUES ($1, $2, $3)
		RETURNING id, content, name, image_url, created_at
	`, content, name, imageURL).Scan(
		&comment.ID, &comment.Content, &comment.Name, &comment.ImageURL, &comment.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert comment: %w", err)
	}

	return &comment, nil
}

// Recent returns up to limit comments, most recent first.
func (r *CommentRepo) Recent(ctx context.Context, limit int) ([]domain.Comment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, content, name, image_url, created_at
		FROM comments
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent comments: %w", err)
	}
	defer rows.Close()

	comments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Comment, error) {
		var c domain.Comment
		err := row.Scan(&c.ID, &c.Content, &c.Name, &c.ImageURL, &c.CreatedAt)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan comments: %w", err)
	}

	return comments, nil
}
