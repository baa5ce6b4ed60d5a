package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/JamesDimonaco/Carten-Location-Tracker/internal/domain"
	"github.com/JamesDimonaco/Carten-Location-Tracker/internal/metrics"
)

// mobileLocationRequest is the body POSTed by the mobile client.
// Pointer fields distinguish absent from zero.
type mobileLocationRequest struct {
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	Timestamp *int64   `json:"timestamp"` // epoch milliseconds
}

// commentRequest is the body POSTed by the comment board.
type commentRequest struct {
	Content  string  `json:"content"`
	Name     *string `json:"name"`
	ImageURL *string `json:"image_url"`
}

// handleMobileLocation validates and persists a GPS fix. There is no fan-out
// here: the poller picks the row up on its next tick, so subscribers see the
// new position at most one poll interval later.
func (s *Server) handleMobileLocation(c echo.Context) error {
	var req mobileLocationRequest
	if err := c.Bind(&req); err != nil {
		metrics.LocationWritesTotal.WithLabelValues("invalid").Inc()
		return c.String(http.StatusBadRequest, "Invalid body")
	}

	if req.Lat == nil || req.Lng == nil || req.Timestamp == nil {
		metrics.LocationWritesTotal.WithLabelValues("invalid").Inc()
		return c.String(http.StatusBadRequest, "lat, lng and timestamp are required")
	}

	sample := domain.LocationSample{
		Time: time.UnixMilli(*req.Timestamp).UTC(),
		Lat:  *req.Lat,
		Lng:  *req.Lng,
	}
	if err := sample.Validate(); err != nil {
		metrics.LocationWritesTotal.WithLabelValues("invalid").Inc()
		return c.String(http.StatusBadRequest, err.Error())
	}

	if err := s.locations.Insert(c.Request().Context(), sample); err != nil {
		slog.Error("Failed to save location", "error", err)
		metrics.LocationWritesTotal.WithLabelValues("error").Inc()
		return c.String(http.StatusInternalServerError, "Error saving location")
	}

	metrics.LocationWritesTotal.WithLabelValues("ok").Inc()
	return c.String(http.StatusOK, "Location saved")
}

// handleComment persists a comment and pushes it to comment subscribers
// before responding, so the HTTP 200 implies the broadcast happened.
// Content emptiness is not re-checked here: the web client trims and rejects
// empty input before calling the relay.
func (s *Server) handleComment(c echo.Context) error {
	var req commentRequest
	if err := c.Bind(&req); err != nil {
		metrics.CommentWritesTotal.WithLabelValues("invalid").Inc()
		return c.String(http.StatusBadRequest, "Invalid body")
	}

	comment, err := s.comments.Insert(c.Request().Context(), req.Content, req.Name, req.ImageURL)
	if err != nil {
		slog.Error("Failed to save comment", "error", err)
		metrics.CommentWritesTotal.WithLabelValues("error").Inc()
		return c.String(http.StatusInternalServerError, "Error saving comment")
	}

	s.broadcaster.PublishComment(*comment)

	metrics.CommentWritesTotal.WithLabelValues("ok").Inc()
	return c.JSON(http.StatusOK, comment)
}
