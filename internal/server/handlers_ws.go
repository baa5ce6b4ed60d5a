package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/JamesDimonaco/Carten-Location-Tracker/internal/broadcast"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the map and comment board are served from other origins
	},
}

func (s *Server) handleLocationSocket(c echo.Context) error {
	return s.handleSocket(c, broadcast.GroupLocation)
}

func (s *Server) handleCommentSocket(c echo.Context) error {
	return s.handleSocket(c, broadcast.GroupComment)
}

func (s *Server) handleSocket(c echo.Context, group broadcast.Group) error {
	if !websocket.IsWebSocketUpgrade(c.Request()) {
		return c.String(http.StatusNotFound, "Not found")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	clientID := uuid.New()

	if err := s.broadcaster.Subscribe(group, conn); err != nil {
		slog.Warn("Failed to subscribe client", "client_id", clientID.String(), "group", group, "error", err)
		return nil
	}

	slog.Debug("Client subscribed", "client_id", clientID.String(), "group", group, "remote", conn.RemoteAddr().String())

	// Read pump: blocks until the connection closes. Inbound messages are
	// ignored; the socket exists for server-to-client pushes only.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.broadcaster.Unsubscribe(conn)
	slog.Debug("Client disconnected", "client_id", clientID.String(), "group", group)

	return nil //nolint:nilerr // ReadMessage err is block-scoped; outer err is nil
}
