package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JamesDimonaco/Carten-Location-Tracker/internal/domain"
)

// LocationRepo stores GPS fixes. Rows are append-only: a newer fix is a new
// row, never an update.
type LocationRepo struct {
	pool *pgxpool.Pool
}

func NewLocationRepo(pool *pgxpool.Pool) *LocationRepo {
	return &LocationRepo{pool: pool}
}

func (r *LocationRepo) Insert(ctx context.Context, sample domain.LocationSample) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO locations (time, lat, lng)
		VALUES ($1, $2, $3)
	`, sample.Time, sample.Lat, sample.Lng)
	if err != nil {
		return fmt.Errorf("failed to insert location: %w", err)
	}
	return nil
}

// Latest returns the most recent sample by time, or nil if the table is empty.
func (r *LocationRepo) Latest(ctx context.Context) (*domain.LocationSample, error) {
	var sample domain.LocationSample
	err := r.pool.QueryRow(ctx, `
		SELECT time, lat, lng
		FROM locations
		ORDER BY time DESC
		LIMIT 1
	`).Scan(&sample.Time, &sample.Lat, &sample.Lng)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest location: %w", err)
	}

	return &sample, nil
}
