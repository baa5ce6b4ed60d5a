package domain

import (
	"context"
	"math"
	"time"
)

// --- Model types ---

// LocationSample is a single GPS fix reported by the mobile client.
// Samples are append-only: newer fixes supersede older ones, nothing is
// ever mutated in place.
type LocationSample struct {
	Time time.Time `db:"time"`
	Lat  float64   `db:"lat"`
	Lng  float64   `db:"lng"`
}

// Validate checks that the coordinates are finite and within range.
func (s LocationSample) Validate() error {
	if math.IsNaN(s.Lat) || math.IsInf(s.Lat, 0) || math.IsNaN(s.Lng) || math.IsInf(s.Lng, 0) {
		return ErrInvalidCoordinates
	}
	if s.Lat < -90 || s.Lat > 90 {
		return ErrInvalidCoordinates
	}
	if s.Lng < -180 || s.Lng > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// Comment is a single message on the comment board. Immutable once created;
// the store assigns ID and CreatedAt.
type Comment struct {
	ID        int64     `db:"id" json:"id"`
	Content   string    `db:"content" json:"content"`
	Name      *string   `db:"name" json:"name,omitempty"`
	ImageURL  *string   `db:"image_url" json:"image_url,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// --- Shared value types ---

// LocationUpdate is the wire message pushed to location subscribers.
type LocationUpdate struct {
	Time string  `json:"time"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// NewLocationUpdate converts a stored sample into its wire form.
// Time is rendered as ISO-8601 in UTC.
func NewLocationUpdate(s LocationSample) LocationUpdate {
	return LocationUpdate{
		Time: s.Time.UTC().Format(time.RFC3339),
		Lat:  s.Lat,
		Lng:  s.Lng,
	}
}

// ViewerCount is the wire message announcing how many location subscribers
// are currently connected.
type ViewerCount struct {
	Viewers int `json:"viewers"`
}

// --- Interfaces ---

// LocationStore persists GPS fixes.
type LocationStore interface {
	Insert(ctx context.Context, sample LocationSample) error
	// Latest returns the most recent sample by time, or nil if none exist.
	Latest(ctx context.Context) (*LocationSample, error)
}

// CommentStore persists comment board entries.
type CommentStore interface {
	Insert(ctx context.Context, content string, name, imageURL *string) (*Comment, error)
	// Recent returns up to limit comments, most recent first.
	Recent(ctx context.Context, limit int) ([]Comment, error)
}
