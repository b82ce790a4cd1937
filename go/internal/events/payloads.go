package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types published for every room lifecycle and game transition.
const (
	TypeRoomCreated   = "room.created"
	TypeRoomDestroyed = "room.destroyed"
	TypeGameStarted   = "game.started"
	TypeGamePaused    = "game.paused"
	TypeGameResumed   = "game.resumed"
	TypePuzzleSolved  = "puzzle.solved"
	TypePuzzleStrike  = "puzzle.strike"
	TypeGameOver      = "game.over"
)

// Event is the envelope handed to a publisher. Payload is one of the payload types below.
type Event struct {
	ID        uuid.UUID
	Type      string
	RoomCode  string
	Timestamp time.Time
	Payload   any
}

// New stamps an event with a fresh id and the given time.
func New(eventType, roomCode string, at time.Time, payload any) Event {
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		RoomCode:  roomCode,
		Timestamp: at.UTC(),
		Payload:   payload,
	}
}

type RoomCreatedPayload struct {
	HostID     string `json:"host_id"`
	Difficulty string `json:"difficulty"`
}

type RoomDestroyedPayload struct {
	Reason string `json:"reason"`
}

type GameStartedPayload struct {
	Difficulty   string   `json:"difficulty"`
	PuzzleTypes  []string `json:"puzzle_types"`
	TimeSeconds  int      `json:"time_seconds"`
	SerialNumber string   `json:"serial_number"`
	DefuserID    string   `json:"defuser_id"`
	PlayerCount  int      `json:"player_count"`
}

type GamePausedPayload struct {
	PreviousDefuserID string `json:"previous_defuser_id"`
	TimeRemaining     int    `json:"time_remaining"`
	Reason            string `json:"reason"`
}

type GameResumedPayload struct {
	DefuserID     string `json:"defuser_id"`
	TimeRemaining int    `json:"time_remaining"`
	Takeover      bool   `json:"takeover"`
}

type PuzzleSolvedPayload struct {
	PuzzleID       string `json:"puzzle_id"`
	PuzzleType     string `json:"puzzle_type"`
	CompletedCount int    `json:"completed_count"`
	Skipped        bool   `json:"skipped"`
}

type PuzzleStrikePayload struct {
	PuzzleID   string `json:"puzzle_id"`
	PuzzleType string `json:"puzzle_type"`
	Strikes    int    `json:"strikes"`
	MaxStrikes int    `json:"max_strikes"`
}

type GameOverPayload struct {
	Victory        bool   `json:"victory"`
	Reason         string `json:"reason"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
	Strikes        int    `json:"strikes"`
	CompletedCount int    `json:"completed_count"`
	Score          int    `json:"score"`
}
