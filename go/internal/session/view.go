package session

import (
	"encoding/json"

	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/puzzle"
)

// MarshalJSON renders the game state every room member may see. Puzzle solutions are omitted.
func (s *Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Difficulty         string             `json:"difficulty"`
		TotalTime          int                `json:"totalTime"`
		TimeRemaining      int                `json:"timeRemaining"`
		Strikes            int                `json:"strikes"`
		MaxStrikes         int                `json:"maxStrikes"`
		Puzzles            []*puzzle.Instance `json:"puzzles"`
		CurrentPuzzleIndex int                `json:"currentPuzzleIndex"`
		CompletedCount     int                `json:"completedCount"`
		SerialNumber       string             `json:"serialNumber"`
		Indicators         []puzzle.Indicator `json:"indicators"`
		Score              int                `json:"score"`
		Outcome            Outcome            `json:"outcome,omitempty"`
	}{
		Difficulty:         s.Difficulty,
		TotalTime:          s.TotalTime,
		TimeRemaining:      s.TimeRemaining,
		Strikes:            s.Strikes,
		MaxStrikes:         s.MaxStrikes,
		Puzzles:            s.Puzzles,
		CurrentPuzzleIndex: s.CurrentPuzzleIndex,
		CompletedCount:     s.CompletedCount,
		SerialNumber:       s.SerialNumber,
		Indicators:         s.Indicators,
		Score:              s.Score,
		Outcome:            s.Outcome,
	})
}

// SolutionReport is the debug dump for the active puzzle, including its hidden solution.
type SolutionReport struct {
	PuzzleID     string             `json:"puzzleId"`
	PuzzleType   puzzle.Type        `json:"puzzleType"`
	Solution     any                `json:"solution"`
	DefuserView  any                `json:"defuserView"`
	SerialNumber string             `json:"serialNumber"`
	Indicators   []puzzle.Indicator `json:"indicators"`
	Strikes      int                `json:"strikes"`
}

// Solution reports the active puzzle's solution. Only diagnostic sessions allow it.
func (s *Session) Solution() (SolutionReport, error) {
	if !s.Diagnostic {
		return SolutionReport{}, ErrDiagnosticOnly
	}
	if s.Finished() {
		return SolutionReport{}, ErrGameOver
	}
	inst := s.CurrentPuzzle()
	return SolutionReport{
		PuzzleID:     inst.ID,
		PuzzleType:   inst.Type,
		Solution:     inst.State.Solution(),
		DefuserView:  inst.State.DefuserView(),
		SerialNumber: s.SerialNumber,
		Indicators:   s.Indicators,
		Strikes:      s.Strikes,
	}, nil
}
