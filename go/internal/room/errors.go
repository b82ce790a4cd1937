package room

import "errors"

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrGameInProgress     = errors.New("game already in progress")
	ErrNotInRoom          = errors.New("player is not in a room")
	ErrNotHost            = errors.New("only the host can do that")
	ErrNotDefuser         = errors.New("only the defuser can do that")
	ErrNotReader          = errors.New("only a connected reader can take over")
	ErrWrongPhase         = errors.New("not allowed in the current phase")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidName        = errors.New("name cannot be empty")
	ErrCodeSpaceExhausted = errors.New("could not allocate a unique room code")
)

// StartError carries the reason a game cannot start yet.
type StartError struct {
	Reason string
}

func (e *StartError) Error() string {
	return "cannot start game: " + e.Reason
}
