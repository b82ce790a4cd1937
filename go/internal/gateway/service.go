package gateway

import (
	"context"
	"errors"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/room"
)

// Service is the session protocol layer: websocket clients, HTTP state and the admin RPC.
type Service struct {
	connectionManager *ConnectionManager
	router            *Router
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	admin             *AdminService
	rooms             Rooms
}

// NewService wires the gateway around an existing connection manager. The same manager must
// be the rooms' notifier.
func NewService(cm *ConnectionManager, rooms Rooms, difficulties Difficulties) *Service {
	router := NewRouter(rooms)
	s := &Service{
		connectionManager: cm,
		router:            router,
		wsHandler:         NewWebSocketHandler(cm, router, rooms),
		stateHandler:      NewStateHandler(rooms, difficulties),
		admin:             NewAdminService(rooms),
		rooms:             rooms,
	}
	cm.OnLastClose(s.playerGone)
	return s
}

// playerGone marks a player whose last connection closed as disconnected. A connection that
// opened for the player in the meantime wins, and the player stays connected.
func (s *Service) playerGone(playerID string) {
	s.connectionManager.whenOffline(playerID, func() {
		if err := s.rooms.Disconnect(playerID); err != nil && !errors.Is(err, room.ErrNotInRoom) {
			log.Error().Err(err).Str("player_id", playerID).Msg("failed to disconnect player")
		}
		if _, err := s.rooms.RoomOf(playerID); errors.Is(err, room.ErrNotInRoom) {
			s.wsHandler.sessions.forget(playerID)
		}
	})
}

// Start runs the broadcast loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting session gateway")
	s.connectionManager.Start(ctx)
	log.Info().Msg("session gateway stopped")
}

func (s *Service) RegisterRoutes(r chi.Router) {
	s.wsHandler.RegisterRoutes(r)
	s.stateHandler.RegisterRoutes(r)
	path, handler := s.admin.Handler()
	r.Handle(path+"*", handler)
	log.Info().Msg("gateway routes registered")
}
