package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JamesDimonaco/Carten-Location-Tracker/internal/broadcast"
	"github.com/JamesDimonaco/Carten-Location-Tracker/internal/config"
	"github.com/JamesDimonaco/Carten-Location-Tracker/internal/domain"
)

// --- Mocks ---

type mockBroadcaster struct {
	mu        sync.Mutex
	published []domain.Comment
}

func (m *mockBroadcaster) Subscribe(_ broadcast.Group, _ *websocket.Conn) error { return nil }
func (m *mockBroadcaster) Unsubscribe(_ *websocket.Conn)                        {}

func (m *mockBroadcaster) PublishComment(comment domain.Comment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, comment)
}

func (m *mockBroadcaster) publishedComments() []domain.Comment {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]domain.Comment, len(m.published))
	copy(result, m.published)
	return result
}

type mockLocationStore struct {
	mu       sync.Mutex
	inserted []domain.LocationSample
	insertFn func(ctx context.Context, sample domain.LocationSample) error
}

func (m *mockLocationStore) Insert(ctx context.Context, sample domain.LocationSample) error {
	m.mu.Lock()
	m.inserted = append(m.inserted, sample)
	m.mu.Unlock()
	if m.insertFn != nil {
		return m.insertFn(ctx, sample)
	}
	return nil
}

func (m *mockLocationStore) Latest(_ context.Context) (*domain.LocationSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.inserted) == 0 {
		return nil, nil
	}
	latest := m.inserted[len(m.inserted)-1]
	return &latest, nil
}

func (m *mockLocationStore) insertedSamples() []domain.LocationSample {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]domain.LocationSample, len(m.inserted))
	copy(result, m.inserted)
	return result
}

type mockCommentStore struct {
	insertFn func(ctx context.Context, content string, name, imageURL *string) (*domain.Comment, error)
}

func (m *mockCommentStore) Insert(ctx context.Context, content string, name, imageURL *string) (*domain.Comment, error) {
	if m.insertFn != nil {
		return m.insertFn(ctx, content, name, imageURL)
	}
	return &domain.Comment{ID: 1, Content: content, Name: name, ImageURL: imageURL, CreatedAt: time.Now().UTC()}, nil
}

func (m *mockCommentStore) Recent(_ context.Context, _ int) ([]domain.Comment, error) {
	return nil, nil
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

func newTestServer(t *testing.T, broadcaster relayBroadcaster, locations domain.LocationStore, comments domain.CommentStore, db databasePinger) *Server {
	t.Helper()

	if broadcaster == nil {
		broadcaster = &mockBroadcaster{}
	}
	if locations == nil {
		locations = &mockLocationStore{}
	}
	if comments == nil {
		comments = &mockCommentStore{}
	}
	if db == nil {
		db = &mockPinger{}
	}

	cfg := &config.Config{Port: "0"}
	return NewServer(cfg, broadcaster, locations, comments, db)
}

// --- POST /mobile ---

func TestHandleMobileLocation_Success(t *testing.T) {
	locations := &mockLocationStore{}
	srv := newTestServer(t, nil, locations, nil, nil)

	body := `{"lat": 51.4816, "lng": -3.1791, "timestamp": 1746867600000}`
	req := httptest.NewRequest(http.MethodPost, "/mobile", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "Location saved", rec.Body.String())

	inserted := locations.insertedSamples()
	require.Len(t, inserted, 1)
	assert.InDelta(t, 51.4816, inserted[0].Lat, 1e-9)
	assert.InDelta(t, -3.1791, inserted[0].Lng, 1e-9)
	assert.Equal(t, time.UnixMilli(1746867600000).UTC(), inserted[0].Time)
}

func TestHandleMobileLocation_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing lat", `{"lng": -3.1, "timestamp": 1746867600000}`},
		{"missing lng", `{"lat": 51.4, "timestamp": 1746867600000}`},
		{"missing timestamp", `{"lat": 51.4, "lng": -3.1}`},
		{"empty body", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locations := &mockLocationStore{}
			srv := newTestServer(t, nil, locations, nil, nil)

			req := httptest.NewRequest(http.MethodPost, "/mobile", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			srv.echo.ServeHTTP(rec, req)

			assert.Equal(t, 400, rec.Code)
			assert.Empty(t, locations.insertedSamples())
		})
	}
}

func TestHandleMobileLocation_OutOfRangeCoordinates(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"lat too high", `{"lat": 90.5, "lng": 0, "timestamp": 1746867600000}`},
		{"lat too low", `{"lat": -90.5, "lng": 0, "timestamp": 1746867600000}`},
		{"lng too high", `{"lat": 0, "lng": 180.5, "timestamp": 1746867600000}`},
		{"lng too low", `{"lat": 0, "lng": -180.5, "timestamp": 1746867600000}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, nil, nil, nil, nil)

			req := httptest.NewRequest(http.MethodPost, "/mobile", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			srv.echo.ServeHTTP(rec, req)

			assert.Equal(t, 400, rec.Code)
		})
	}
}

func TestHandleMobileLocation_StoreError(t *testing.T) {
	locations := &mockLocationStore{
		insertFn: func(_ context.Context, _ domain.LocationSample) error {
			return errors.New("connection refused")
		},
	}
	srv := newTestServer(t, nil, locations, nil, nil)

	body := `{"lat": 51.4, "lng": -3.1, "timestamp": 1746867600000}`
	req := httptest.NewRequest(http.MethodPost, "/mobile", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, 500, rec.Code)
	assert.Equal(t, "Error saving location", rec.Body.String())
}

// --- POST /comment ---

func TestHandleComment_Success(t *testing.T) {
	broadcaster := &mockBroadcaster{}
	name := "Dave"
	comments := &mockCommentStore{
		insertFn: func(_ context.Context, content string, name, imageURL *string) (*domain.Comment, error) {
			return &domain.Comment{ID: 42, Content: content, Name: name, ImageURL: imageURL, CreatedAt: time.Now().UTC()}, nil
		},
	}
	srv := newTestServer(t, broadcaster, nil, comments, nil)

	body := `{"content": "Go on James!", "name": "Dave"}`
	req := httptest.NewRequest(http.MethodPost, "/comment", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)

	var resp domain.Comment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(42), resp.ID)
	assert.Equal(t, "Go on James!", resp.Content)
	require.NotNil(t, resp.Name)
	assert.Equal(t, name, *resp.Name)
	assert.False(t, resp.CreatedAt.IsZero())

	// The broadcast happened before the response was written.
	published := broadcaster.publishedComments()
	require.Len(t, published, 1)
	assert.Equal(t, int64(42), published[0].ID)
}

func TestHandleComment_EmptyContentNotRejected(t *testing.T) {
	// The web client trims and rejects empty content before calling the
	// relay; the relay itself does not double-validate.
	broadcaster := &mockBroadcaster{}
	srv := newTestServer(t, broadcaster, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/comment", strings.NewReader(`{"content": ""}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Len(t, broadcaster.publishedComments(), 1)
}

func TestHandleComment_StoreError(t *testing.T) {
	broadcaster := &mockBroadcaster{}
	comments := &mockCommentStore{
		insertFn: func(_ context.Context, _ string, _, _ *string) (*domain.Comment, error) {
			return nil, errors.New("connection refused")
		},
	}
	srv := newTestServer(t, broadcaster, nil, comments, nil)

	req := httptest.NewRequest(http.MethodPost, "/comment", strings.NewReader(`{"content": "hi"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, 500, rec.Code)
	assert.Empty(t, broadcaster.publishedComments(), "no broadcast on store failure")
}

// --- Routing ---

func TestUnknownPathReturns404(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, 404, rec.Code)
}

func TestRootWithoutUpgradeReturns404(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, 404, rec.Code)
}

// --- Health ---

func TestHandleLiveness(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
}

func TestHandleReadiness(t *testing.T) {
	t.Run("database reachable", func(t *testing.T) {
		srv := newTestServer(t, nil, nil, nil, &mockPinger{})

		req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
		rec := httptest.NewRecorder()
		srv.echo.ServeHTTP(rec, req)

		assert.Equal(t, 200, rec.Code)
	})

	t.Run("database unreachable", func(t *testing.T) {
		srv := newTestServer(t, nil, nil, nil, &mockPinger{err: errors.New("dial refused")})

		req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
		rec := httptest.NewRecorder()
		srv.echo.ServeHTTP(rec, req)

		assert.Equal(t, 503, rec.Code)
	})
}

