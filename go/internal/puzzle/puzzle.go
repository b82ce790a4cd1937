package puzzle

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

var (
	// ErrUnknownPuzzleType is returned when a puzzle type has no registered module.
	ErrUnknownPuzzleType = errors.New("unknown puzzle type")
	// ErrInvalidAction is returned for malformed or impossible actions. It never costs a strike.
	ErrInvalidAction = errors.New("invalid action")
	// ErrStateMismatch is returned when an instance carries state built by a different module.
	ErrStateMismatch = errors.New("puzzle state does not match puzzle type")
)

// Type tags a puzzle module.
type Type string

const (
	TypeWires            Type = "wires"
	TypeKeypad           Type = "keypad"
	TypeSimon            Type = "simon"
	TypeMemory           Type = "memory"
	TypeSwitches         Type = "switches"
	TypeCipher           Type = "cipher"
	TypeButton           Type = "button"
	TypePassword         Type = "password"
	TypeMorse            Type = "morse"
	TypeMaze             Type = "maze"
	TypeWhosOnFirst      Type = "whos-on-first"
	TypeComplicatedWires Type = "complicated-wires"
)

// AllTypes returns every puzzle type in its canonical order.
func AllTypes() []Type {
	return []Type{
		TypeWires,
		TypeKeypad,
		TypeSimon,
		TypeMemory,
		TypeSwitches,
		TypeCipher,
		TypeButton,
		TypePassword,
		TypeMorse,
		TypeMaze,
		TypeWhosOnFirst,
		TypeComplicatedWires,
	}
}

// ParseType resolves a tag to a known Type.
func ParseType(s string) (Type, bool) {
	for _, t := range AllTypes() {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Context is the shared input every generator in a session sees.
type Context struct {
	Level        int
	SerialNumber string
	Indicators   []Indicator
}

// Env is the live session data a validator may consult.
type Env struct {
	SerialNumber  string
	Indicators    []Indicator
	Strikes       int
	TimeRemaining int
}

// Result is the tri-state outcome of a validated action.
// Neither flag set means accepted progress with no penalty.
type Result struct {
	Correct bool   `json:"correct"`
	Strike  bool   `json:"strike"`
	Message string `json:"message,omitempty"`
}

func solved(msg string) Result { return Result{Correct: true, Message: msg} }
func strike(msg string) Result { return Result{Strike: true, Message: msg} }
func progress(msg string) Result { return Result{Message: msg} }

// State is the per-type view and solution pair owned by one puzzle instance.
type State interface {
	Type() Type
	// DefuserView is the client-visible, mutable part.
	DefuserView() any
	// Solution is the hidden judging data. It must never reach a standard client.
	Solution() any
}

// Instance is one puzzle in a session's pipeline.
type Instance struct {
	ID          string
	Type        Type
	State       State
	IsCompleted bool
	Attempts    int
}

// MarshalJSON renders the public form of the instance; the solution is left out.
func (i *Instance) MarshalJSON() ([]byte, error) {
	var view any
	if i.State != nil {
		view = i.State.DefuserView()
	}
	return json.Marshal(struct {
		ID          string `json:"id"`
		Type        Type   `json:"type"`
		DefuserView any    `json:"defuserView"`
		IsCompleted bool   `json:"isCompleted"`
		Attempts    int    `json:"attempts"`
	}{
		ID:          i.ID,
		Type:        i.Type,
		DefuserView: view,
		IsCompleted: i.IsCompleted,
		Attempts:    i.Attempts,
	})
}

// actionKind is embedded by every typed action payload.
type actionKind struct {
	Kind string `json:"kind"`
}

// decodeAction unmarshals raw into a typed action, mapping every failure to ErrInvalidAction.
func decodeAction[T any](raw json.RawMessage) (T, error) {
	var dst T
	if len(raw) == 0 {
		return dst, fmt.Errorf("%w: empty payload", ErrInvalidAction)
	}
	if err := json.Unmarshal(raw, &dst); err != nil {
		return dst, fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	return dst, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidAction, fmt.Sprintf(format, args...))
}

func pick[T any](rng *rand.Rand, items []T) T {
	return items[rng.IntN(len(items))]
}

func sample[T any](rng *rand.Rand, items []T, n int) []T {
	idx := rng.Perm(len(items))[:n]
	out := make([]T, n)
	for i, j := range idx {
		out[i] = items[j]
	}
	return out
}

func normalizeWord(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
