package gateway

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/puzzle"
	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/room"
)

// Request types accepted over the websocket.
const (
	RequestCreateRoom      = "create-room"
	RequestJoinRoom        = "join-room"
	RequestLeaveRoom       = "leave-room"
	RequestSetName         = "set-name"
	RequestSetRole         = "set-role"
	RequestToggleReady     = "toggle-ready"
	RequestSetDifficulty   = "set-difficulty"
	RequestStartGame       = "start-game"
	RequestPuzzleAction    = "puzzle-action"
	RequestSkipPuzzle      = "skip-puzzle"
	RequestPuzzleSolution  = "get-puzzle-solution"
	RequestTakeover        = "request-takeover"
	RequestSyncLeaderboard = "sync-leaderboard"
	RequestPlayAgain       = "play-again"
	RequestGetRoom         = "get-room"
)

const (
	eventTypeAck     = "ack"
	eventTypeError   = "error"
	eventTypeSession = "session"

	internalErrorMessage    = "internal error"
	malformedRequestMessage = "malformed request"
)

// Rooms is the part of the room manager the gateway drives.
type Rooms interface {
	CreateRoom(playerID string) (room.View, error)
	JoinRoom(code, playerID string) (room.View, error)
	LeaveRoom(playerID string) error
	Disconnect(playerID string) error
	SetName(playerID, name string) (string, error)
	SetRole(playerID string, role room.Role) error
	ToggleReady(playerID string) (bool, error)
	SetDifficulty(playerID, name string) error
	StartGame(playerID string) (room.View, error)
	PuzzleAction(playerID, puzzleID string, action json.RawMessage) (room.ActionOutcome, error)
	SkipPuzzle(playerID string) error
	PuzzleSolution(playerID string) (json.RawMessage, error)
	RequestTakeover(playerID string) (room.View, error)
	SyncLeaderboard(playerID string, entries []room.LeaderboardEntry) ([]room.LeaderboardEntry, error)
	PlayAgain(playerID string) (room.View, error)
	RoomOf(playerID string) (room.View, error)
	Room(code string) (room.View, error)
	Rooms() []room.Summary
}

// Request is one client message.
type Request struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Ack answers exactly one request.
type Ack struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type errorData struct {
	Message string `json:"message"`
}

// payloadError marks a request whose payload could not be decoded.
type payloadError struct {
	requestType string
	err         error
}

func (e *payloadError) Error() string {
	return fmt.Sprintf("invalid payload for %s", e.requestType)
}

func (e *payloadError) Unwrap() error { return e.err }

// Router decodes client requests, runs them against the rooms and answers with an ack.
type Router struct {
	rooms Rooms
}

func NewRouter(rooms Rooms) *Router {
	return &Router{rooms: rooms}
}

type roomAck struct {
	RoomCode string    `json:"roomCode"`
	PlayerID string    `json:"playerId"`
	Room     room.View `json:"room"`
}

type actionAck struct {
	Success bool `json:"success"`
	room.ActionOutcome
}

type successAck struct {
	Success bool `json:"success"`
}

// Handle runs one request for playerID and returns the ack data.
func (rt *Router) Handle(playerID string, req Request) (any, error) {
	switch req.Type {
	case RequestCreateRoom:
		v, err := rt.rooms.CreateRoom(playerID)
		if err != nil {
			return nil, err
		}
		return roomAck{RoomCode: v.Code, PlayerID: playerID, Room: v}, nil

	case RequestJoinRoom:
		var p struct {
			RoomCode string `json:"roomCode"`
		}
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		v, err := rt.rooms.JoinRoom(p.RoomCode, playerID)
		if err != nil {
			return nil, err
		}
		return roomAck{RoomCode: v.Code, PlayerID: playerID, Room: v}, nil

	case RequestLeaveRoom:
		return nil, rt.rooms.LeaveRoom(playerID)

	case RequestSetName:
		var p struct {
			Name string `json:"name"`
		}
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		name, err := rt.rooms.SetName(playerID, p.Name)
		if err != nil {
			return nil, err
		}
		return map[string]string{"name": name}, nil

	case RequestSetRole:
		var p struct {
			Role string `json:"role"`
		}
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		return nil, rt.rooms.SetRole(playerID, room.Role(p.Role))

	case RequestToggleReady:
		ready, err := rt.rooms.ToggleReady(playerID)
		if err != nil {
			return nil, err
		}
		return map[string]bool{"isReady": ready}, nil

	case RequestSetDifficulty:
		var p struct {
			Difficulty string `json:"difficulty"`
		}
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		return nil, rt.rooms.SetDifficulty(playerID, p.Difficulty)

	case RequestStartGame:
		return rt.rooms.StartGame(playerID)

	case RequestPuzzleAction:
		var p struct {
			PuzzleID string          `json:"puzzleId"`
			Action   json.RawMessage `json:"action"`
		}
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		out, err := rt.rooms.PuzzleAction(playerID, p.PuzzleID, p.Action)
		if err != nil {
			return nil, err
		}
		return actionAck{Success: true, ActionOutcome: out}, nil

	case RequestSkipPuzzle:
		if err := rt.rooms.SkipPuzzle(playerID); err != nil {
			return nil, err
		}
		return successAck{Success: true}, nil

	case RequestPuzzleSolution:
		return rt.rooms.PuzzleSolution(playerID)

	case RequestTakeover:
		return rt.rooms.RequestTakeover(playerID)

	case RequestSyncLeaderboard:
		var p struct {
			Entries []room.LeaderboardEntry `json:"entries"`
		}
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		merged, err := rt.rooms.SyncLeaderboard(playerID, p.Entries)
		if err != nil {
			return nil, err
		}
		return map[string]any{"entries": merged}, nil

	case RequestPlayAgain:
		return rt.rooms.PlayAgain(playerID)

	case RequestGetRoom:
		return rt.rooms.RoomOf(playerID)
	}
	return nil, errUnknownRequest
}

var errUnknownRequest = errors.New("unknown request type")

func decode(req Request, v any) error {
	if len(req.Payload) == 0 {
		return &payloadError{requestType: req.Type, err: errors.New("missing payload")}
	}
	if err := json.Unmarshal(req.Payload, v); err != nil {
		return &payloadError{requestType: req.Type, err: err}
	}
	return nil
}

// errorMessage is the text a client sees for err. Configuration faults are not exposed.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, puzzle.ErrUnknownPuzzleType), errors.Is(err, puzzle.ErrStateMismatch):
		return internalErrorMessage
	}
	var pe *payloadError
	if errors.As(err, &pe) {
		return pe.Error()
	}
	return err.Error()
}

// serve handles one raw websocket message from c.
func (rt *Router) serve(c *Connection, raw []byte) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil || req.Type == "" {
		log.Debug().Str("connection_id", c.ID).Msg("malformed client message")
		rt.send(c, message{Type: eventTypeError, Data: errorData{Message: malformedRequestMessage}})
		return
	}

	data, err := rt.Handle(c.PlayerID, req)
	if err != nil {
		msg := errorMessage(err)
		if msg == internalErrorMessage {
			log.Error().Err(err).Str("player_id", c.PlayerID).Str("request_type", req.Type).Msg("request failed")
		} else {
			log.Debug().Err(err).Str("player_id", c.PlayerID).Str("request_type", req.Type).Msg("request rejected")
		}
		rt.send(c, Ack{Type: eventTypeAck, ID: req.ID, OK: false, Error: msg})
		rt.send(c, message{Type: eventTypeError, Data: errorData{Message: msg}})
		return
	}
	rt.send(c, Ack{Type: eventTypeAck, ID: req.ID, OK: true, Data: data})
}

func (rt *Router) send(c *Connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal reply")
		return
	}
	if !c.Manager.sendTo(c, data) {
		log.Warn().Str("connection_id", c.ID).Msg("could not queue reply")
	}
}
