package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/difficulty"
	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/room"
)

// Difficulties lists the presets a room can pick from.
type Difficulties interface {
	All() []difficulty.Preset
}

// StateHandler serves read-only room state over plain HTTP.
type StateHandler struct {
	rooms        Rooms
	difficulties Difficulties
}

func NewStateHandler(rooms Rooms, difficulties Difficulties) *StateHandler {
	return &StateHandler{
		rooms:        rooms,
		difficulties: difficulties,
	}
}

// HandleListRooms handles GET /api/rooms
func (h *StateHandler) HandleListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.rooms.Rooms())
}

// HandleGetRoom handles GET /api/rooms/{code}
func (h *StateHandler) HandleGetRoom(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	v, err := h.rooms.Room(code)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			http.Error(w, "Room not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("room_code", code).Msg("failed to get room state")
		http.Error(w, "Failed to get room state", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type difficultyInfo struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	PuzzleCount int    `json:"puzzleCount"`
	TimeSeconds int    `json:"timeSeconds"`
	Diagnostic  bool   `json:"diagnostic"`
}

// HandleListDifficulties handles GET /api/difficulties
func (h *StateHandler) HandleListDifficulties(w http.ResponseWriter, r *http.Request) {
	presets := h.difficulties.All()
	out := make([]difficultyInfo, 0, len(presets))
	for _, p := range presets {
		out = append(out, difficultyInfo{
			Name:        p.Name,
			Label:       p.Label,
			PuzzleCount: p.PuzzleCount,
			TimeSeconds: p.TimeSeconds,
			Diagnostic:  p.Diagnostic,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *StateHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/rooms", h.HandleListRooms)
		r.Get("/rooms/{code}", h.HandleGetRoom)
		r.Get("/difficulties", h.HandleListDifficulties)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
