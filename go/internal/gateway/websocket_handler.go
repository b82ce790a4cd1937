package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler upgrades player connections and attaches them to the router.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	router            *Router
	rooms             Rooms
	sessions          *sessionStore
}

func NewWebSocketHandler(cm *ConnectionManager, router *Router, rooms Rooms) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		router:            router,
		rooms:             rooms,
		sessions:          newSessionStore(),
	}
}

type sessionData struct {
	PlayerID     string `json:"playerId"`
	SessionToken string `json:"sessionToken"`
	Resumed      bool   `json:"resumed"`
}

// HandleConnection serves GET /ws. A known ?session= token resumes its player; anything else
// gets a fresh player id and token.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("session")
	playerID, resumed := h.sessions.resolve(token)
	if !resumed {
		playerID, token = h.sessions.issue()
	}

	conn, err := h.connectionManager.upgrade(w, r, playerID)
	if err != nil {
		// The upgrader has already written an HTTP error.
		log.Error().Err(err).Str("player_id", playerID).Msg("failed to upgrade websocket connection")
		return
	}

	h.router.send(conn, message{Type: eventTypeSession, Data: sessionData{PlayerID: playerID, SessionToken: token, Resumed: resumed}})
	if resumed {
		h.resume(playerID)
	}

	go conn.writePump()
	go conn.readPump(h.router.serve)
}

// resume reconnects a returning player to the room they were in, if it still exists.
func (h *WebSocketHandler) resume(playerID string) {
	v, err := h.rooms.RoomOf(playerID)
	if err != nil {
		return
	}
	if _, err := h.rooms.JoinRoom(v.Code, playerID); err != nil {
		log.Debug().Err(err).Str("player_id", playerID).Str("room_code", v.Code).Msg("could not resume room")
		return
	}
	log.Info().Str("player_id", playerID).Str("room_code", v.Code).Msg("session resumed")
}

type statsResponse struct {
	ConnectionStats
	ActiveRooms int `json:"active_rooms"`
}

// HandleConnectionStats serves GET /ws/stats.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	stats := statsResponse{
		ConnectionStats: h.connectionManager.GetConnectionStats(),
		ActiveRooms:     len(h.rooms.Rooms()),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.HandleConnection)
	r.Get("/ws/stats", h.HandleConnectionStats)
}
