// Package server exposes the relay's HTTP surface: the mobile location and
// comment write endpoints, the WebSocket upgrade paths, and the
// observability endpoints.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/JamesDimonaco/Carten-Location-Tracker/internal/broadcast"
	"github.com/JamesDimonaco/Carten-Location-Tracker/internal/config"
	"github.com/JamesDimonaco/Carten-Location-Tracker/internal/domain"
)

// relayBroadcaster is the broadcaster surface the handlers need.
type relayBroadcaster interface {
	Subscribe(group broadcast.Group, conn *websocket.Conn) error
	Unsubscribe(conn *websocket.Conn)
	PublishComment(comment domain.Comment)
}

// databasePinger reports whether the store is reachable.
type databasePinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo        *echo.Echo
	config      *config.Config
	broadcaster relayBroadcaster
	locations   domain.LocationStore
	comments    domain.CommentStore
	db          databasePinger
	startTime   time.Time
}

func NewServer(cfg *config.Config, broadcaster relayBroadcaster, locations domain.LocationStore, comments domain.CommentStore, db databasePinger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())

	srv := &Server{
		echo:        e,
		config:      cfg,
		broadcaster: broadcaster,
		locations:   locations,
		comments:    comments,
		db:          db,
		startTime:   time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
