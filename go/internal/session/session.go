package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/difficulty"
	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/puzzle"
)

var (
	// ErrGameOver is returned for any mutation attempted after victory or defeat.
	ErrGameOver = errors.New("game is over")
	// ErrInvalidPuzzle is returned when the target puzzle does not exist, is completed or is not the active one.
	ErrInvalidPuzzle = errors.New("invalid puzzle")
	// ErrDiagnosticOnly is returned when a debug operation is used outside a diagnostic difficulty.
	ErrDiagnosticOnly = errors.New("only available in diagnostic difficulties")
)

// DefaultMaxStrikes is used when an engine is built with a non-positive strike limit.
const DefaultMaxStrikes = 3

type Outcome string

const (
	OutcomeNone    Outcome = ""
	OutcomeVictory Outcome = "victory"
	OutcomeDefeat  Outcome = "defeat"
)

// Engine builds sessions. It owns the registry and the source of randomness.
type Engine struct {
	registry   *puzzle.Registry
	maxStrikes int
	newRand    func() *rand.Rand
}

type Option func(*Engine)

// WithRand replaces the per-session random source, mainly for deterministic tests.
func WithRand(newRand func() *rand.Rand) Option {
	return func(e *Engine) { e.newRand = newRand }
}

func NewEngine(registry *puzzle.Registry, maxStrikes int, opts ...Option) *Engine {
	if maxStrikes <= 0 {
		maxStrikes = DefaultMaxStrikes
	}
	e := &Engine{
		registry:   registry,
		maxStrikes: maxStrikes,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Registry() *puzzle.Registry {
	return e.registry
}

// Session is one game's countdown, puzzle pipeline, strikes and score. It is not safe for
// concurrent use; the owning room serializes every call.
type Session struct {
	Difficulty         string
	Diagnostic         bool
	TotalTime          int
	TimeRemaining      int
	Strikes            int
	MaxStrikes         int
	Puzzles            []*puzzle.Instance
	CurrentPuzzleIndex int
	CompletedCount     int
	SerialNumber       string
	Indicators         []puzzle.Indicator
	Score              int
	Outcome            Outcome

	registry *puzzle.Registry
}

// Generate builds a session for preset. The serial number and indicators are drawn once and
// every generator sees the same pair.
func (e *Engine) Generate(preset difficulty.Preset) (*Session, error) {
	rng := e.newRand()
	ctx := puzzle.Context{
		Level:        preset.Level,
		SerialNumber: puzzle.GenerateSerial(rng),
		Indicators:   puzzle.GenerateIndicators(rng),
	}

	types := preset.Select(rng)
	puzzles := make([]*puzzle.Instance, 0, len(types))
	for _, t := range types {
		state, err := e.registry.Generate(t, rng, ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to generate session: %w", err)
		}
		puzzles = append(puzzles, &puzzle.Instance{
			ID:    uuid.NewString(),
			Type:  t,
			State: state,
		})
	}
	if len(puzzles) == 0 {
		return nil, fmt.Errorf("difficulty %q selected no puzzles", preset.Name)
	}

	return &Session{
		Difficulty:    preset.Name,
		Diagnostic:    preset.Diagnostic,
		TotalTime:     preset.TimeSeconds,
		TimeRemaining: preset.TimeSeconds,
		MaxStrikes:    e.maxStrikes,
		Puzzles:       puzzles,
		SerialNumber:  ctx.SerialNumber,
		Indicators:    ctx.Indicators,
		registry:      e.registry,
	}, nil
}

// ActionResult describes what one puzzle action did to the session.
type ActionResult struct {
	puzzle.Result
	PuzzleID string
	Strikes  int
	Outcome  Outcome
	Finished bool
}

func (s *Session) Finished() bool {
	return s.Outcome != OutcomeNone
}

// CurrentPuzzle returns the active puzzle, or nil once every puzzle is complete.
func (s *Session) CurrentPuzzle() *puzzle.Instance {
	if s.CurrentPuzzleIndex < 0 || s.CurrentPuzzleIndex >= len(s.Puzzles) {
		return nil
	}
	return s.Puzzles[s.CurrentPuzzleIndex]
}

func (s *Session) env() puzzle.Env {
	return puzzle.Env{
		SerialNumber:  s.SerialNumber,
		Indicators:    s.Indicators,
		Strikes:       s.Strikes,
		TimeRemaining: s.TimeRemaining,
	}
}

// ApplyAction validates action against the active puzzle and applies the outcome. One action
// completes the puzzle or records a strike, never both.
func (s *Session) ApplyAction(puzzleID string, action json.RawMessage) (ActionResult, error) {
	if s.Finished() {
		return ActionResult{}, ErrGameOver
	}
	inst := s.CurrentPuzzle()
	if inst == nil || inst.ID != puzzleID {
		for _, p := range s.Puzzles {
			if p.ID == puzzleID && p.IsCompleted {
				return ActionResult{}, fmt.Errorf("%w: puzzle %s is already completed", ErrInvalidPuzzle, puzzleID)
			}
		}
		return ActionResult{}, fmt.Errorf("%w: puzzle %s is not active", ErrInvalidPuzzle, puzzleID)
	}

	res, err := s.registry.Validate(inst, action, s.env())
	if err != nil {
		return ActionResult{}, err
	}

	switch {
	case res.Correct:
		res.Strike = false
		s.completeCurrent()
	case res.Strike:
		inst.Attempts++
		s.Strikes++
		if s.Strikes >= s.MaxStrikes {
			s.Strikes = s.MaxStrikes
			s.finish(OutcomeDefeat)
		}
	}

	return ActionResult{
		PuzzleID: puzzleID,
		Result:   res,
		Strikes:  s.Strikes,
		Outcome:  s.Outcome,
		Finished: s.Finished(),
	}, nil
}

func (s *Session) completeCurrent() {
	inst := s.CurrentPuzzle()
	inst.IsCompleted = true
	s.CompletedCount++
	s.CurrentPuzzleIndex++
	if s.CompletedCount == len(s.Puzzles) {
		s.CurrentPuzzleIndex = len(s.Puzzles) - 1
		s.finish(OutcomeVictory)
	}
}

// Skip marks the active puzzle solved without validation. Only diagnostic sessions allow it.
func (s *Session) Skip() (ActionResult, error) {
	if s.Finished() {
		return ActionResult{}, ErrGameOver
	}
	if !s.Diagnostic {
		return ActionResult{}, ErrDiagnosticOnly
	}
	inst := s.CurrentPuzzle()
	s.completeCurrent()
	return ActionResult{
		PuzzleID: inst.ID,
		Result:   puzzle.Result{Correct: true, Message: "skipped"},
		Strikes:  s.Strikes,
		Outcome:  s.Outcome,
		Finished: s.Finished(),
	}, nil
}

// Tick advances the countdown by one second. It reports whether the tick ended the game.
// Ticks after the game is over change nothing.
func (s *Session) Tick() bool {
	if s.Finished() {
		return false
	}
	if s.TimeRemaining > 0 {
		s.TimeRemaining--
	}
	if s.TimeRemaining == 0 {
		s.finish(OutcomeDefeat)
		return true
	}
	return false
}

// ForceDefeat ends a running game, for example when everybody has disconnected.
func (s *Session) ForceDefeat() bool {
	if s.Finished() {
		return false
	}
	s.finish(OutcomeDefeat)
	return true
}

func (s *Session) finish(o Outcome) {
	s.Outcome = o
	if o == OutcomeVictory {
		s.Score = ComputeScore(s.CompletedCount, s.TimeRemaining, s.Strikes)
	} else {
		s.Score = 0
	}
}

// ComputeScore rewards solved puzzles and leftover time and penalises strikes. It never goes below zero.
func ComputeScore(completed, timeRemaining, strikes int) int {
	return max(completed*100+timeRemaining*2-strikes*50, 0)
}

// ElapsedSeconds is how much of the countdown has been used.
func (s *Session) ElapsedSeconds() int {
	return s.TotalTime - s.TimeRemaining
}
