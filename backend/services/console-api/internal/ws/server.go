package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"evconsole/backend/services/console-api/internal/authz"
)

// Server upgrades authenticated HTTP requests to feed connections.
type Server struct {
	hub          *Hub
	logger       *zap.Logger
	writeTimeout time.Duration
	pingInterval time.Duration
	upgrader     websocket.Upgrader
}

// NewServer builds the feed endpoint. allowOrigin decides cross-origin upgrades; nil allows all.
func NewServer(hub *Hub, writeTimeout, pingInterval time.Duration, allowOrigin func(origin string) bool, logger *zap.Logger) *Server {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	if pingInterval <= 0 || pingInterval >= pongWait {
		pingInterval = 30 * time.Second
	}
	return &Server{
		hub:          hub,
		logger:       logger,
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowOrigin == nil {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || allowOrigin(origin)
			},
		},
	}
}

// HandleWS serves GET /ws/bookings. The caller must already be authenticated.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	principal, ok := authz.PrincipalFromContext(r.Context())
	if !ok || !principal.CanAny(authz.ActionReadStation) {
		http.Error(w, "not authorized", http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(uuid.NewString(), principal, conn, s.writeTimeout, s.pingInterval, s.logger, s.hub.remove)
	s.hub.add(client)
	s.logger.Info("feed client connected", zap.String("client_id", client.ID()), zap.String("user_id", principal.UserID))

	go client.run(context.Background())
}
