package room

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Client event types.
const (
	EventRoomUpdated         = "room-updated"
	EventGameStateUpdated    = "game-state-updated"
	EventPuzzleResult        = "puzzle-result"
	EventGameOver            = "game-over"
	EventDefuserDisconnected = "defuser-disconnected"
	EventTakeoverAvailable   = "takeover-available"
	EventLeaderboardSynced   = "leaderboard-synced"
)

// Event is a message for room members. Data is marshalled while the room is locked.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Notifier delivers events to the connections of the given players. Implementations must
// not block and must not call back into the Manager.
type Notifier interface {
	Notify(roomCode string, recipients []string, event Event)
}

type NopNotifier struct{}

func (NopNotifier) Notify(string, []string, Event) {}

func newEvent(eventType string, data any) Event {
	return Event{Type: eventType, Data: mustMarshal(data)}
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msgf("failed to marshal %T", v)
		return json.RawMessage("null")
	}
	return b
}

type PuzzleResultData struct {
	PuzzleID   string `json:"puzzleId"`
	Correct    bool   `json:"correct"`
	Strike     bool   `json:"strike"`
	NewStrikes int    `json:"newStrikes"`
	Message    string `json:"message,omitempty"`
}

type GameOverData struct {
	Victory   bool `json:"victory"`
	FinalTime int  `json:"finalTime"`
	Strikes   int  `json:"strikes"`
	Score     int  `json:"score"`
	Completed int  `json:"completed"`
	Total     int  `json:"total"`
}

type DefuserDisconnectedData struct {
	PlayerID string `json:"playerId"`
}

type TakeoverAvailableData struct {
	PreviousDefuser string `json:"previousDefuser"`
	PlayerID        string `json:"playerId"`
}
