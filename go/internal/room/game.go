package room

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/events"
	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/puzzle"
	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/session"
)

// ActionOutcome is what the acting defuser gets back for one puzzle action.
type ActionOutcome struct {
	PuzzleID string `json:"puzzleId"`
	Correct  bool   `json:"correct"`
	Strike   bool   `json:"strike"`
	Strikes  int    `json:"strikes"`
	Message  string `json:"message,omitempty"`
}

// StartGame generates a session for the room's difficulty and starts the countdown. Host only.
func (m *Manager) StartGame(playerID string) (View, error) {
	var v View
	err := m.withPlayer(playerID, func(r *Room, p *Player) error {
		if r.Phase != PhaseLobby {
			return ErrGameInProgress
		}
		if r.HostID != p.ID {
			return ErrNotHost
		}
		if reason := r.startBlocker(); reason != "" {
			return &StartError{Reason: reason}
		}
		preset, err := m.catalog.Get(r.Difficulty)
		if err != nil {
			return err
		}
		game, err := m.engine.Generate(preset)
		if err != nil {
			log.Error().Err(err).Str("room_code", r.Code).Str("difficulty", r.Difficulty).Msg("failed to generate game")
			return fmt.Errorf("failed to start game: %w", err)
		}

		r.Game = game
		r.Phase = PhasePlaying
		r.pausedDefuserID = ""
		m.startTimer(r)

		types := make([]string, 0, len(game.Puzzles))
		for _, inst := range game.Puzzles {
			types = append(types, string(inst.Type))
		}
		defuserID := ""
		if d := r.defuser(); d != nil {
			defuserID = d.ID
		}
		log.Info().
			Str("room_code", r.Code).
			Str("difficulty", game.Difficulty).
			Int("puzzles", len(game.Puzzles)).
			Int("time_seconds", game.TotalTime).
			Msg("game started")
		m.emit(r, events.TypeGameStarted, events.GameStartedPayload{
			Difficulty:   game.Difficulty,
			PuzzleTypes:  types,
			TimeSeconds:  game.TotalTime,
			SerialNumber: game.SerialNumber,
			DefuserID:    defuserID,
			PlayerCount:  len(r.Players),
		})

		m.notifyRoom(r)
		m.notifyAll(r, newEvent(EventGameStateUpdated, r.Game))
		v = r.view()
		return nil
	})
	return v, err
}

// activeGame checks that the room has a game that accepts actions.
func activeGame(r *Room) error {
	switch {
	case r.Game == nil:
		return ErrWrongPhase
	case r.Phase == PhaseVictory || r.Phase == PhaseDefeat:
		return session.ErrGameOver
	case r.Phase != PhasePlaying:
		return ErrWrongPhase
	}
	return nil
}

// PuzzleAction applies one defuser action to the active puzzle.
func (m *Manager) PuzzleAction(playerID, puzzleID string, action json.RawMessage) (ActionOutcome, error) {
	var out ActionOutcome
	err := m.withPlayer(playerID, func(r *Room, p *Player) error {
		if err := activeGame(r); err != nil {
			return err
		}
		if p.Role != RoleDefuser {
			return ErrNotDefuser
		}

		res, err := r.Game.ApplyAction(puzzleID, action)
		if err != nil {
			if errors.Is(err, puzzle.ErrUnknownPuzzleType) || errors.Is(err, puzzle.ErrStateMismatch) {
				log.Error().Err(err).Str("room_code", r.Code).Str("puzzle_id", puzzleID).Msg("puzzle configuration error")
			}
			return err
		}

		out = ActionOutcome{
			PuzzleID: res.PuzzleID,
			Correct:  res.Correct,
			Strike:   res.Strike,
			Strikes:  res.Strikes,
			Message:  res.Message,
		}
		m.applyResult(r, res, false)
		return nil
	})
	return out, err
}

// SkipPuzzle completes the active puzzle without solving it. Diagnostic difficulties only.
func (m *Manager) SkipPuzzle(playerID string) error {
	return m.withPlayer(playerID, func(r *Room, p *Player) error {
		if err := activeGame(r); err != nil {
			return err
		}
		res, err := r.Game.Skip()
		if err != nil {
			return err
		}
		log.Debug().Str("room_code", r.Code).Str("puzzle_id", res.PuzzleID).Msg("puzzle skipped")
		m.applyResult(r, res, true)
		return nil
	})
}

// applyResult broadcasts the outcome of an action and ends the game if it is over. Caller holds r.mu.
func (m *Manager) applyResult(r *Room, res session.ActionResult, skipped bool) {
	inst := m.instance(r, res.PuzzleID)
	if res.Correct || res.Strike {
		m.notifyAll(r, newEvent(EventPuzzleResult, PuzzleResultData{
			PuzzleID:   res.PuzzleID,
			Correct:    res.Correct,
			Strike:     res.Strike,
			NewStrikes: res.Strikes,
			Message:    res.Message,
		}))
	}
	switch {
	case res.Correct:
		log.Info().Str("room_code", r.Code).Str("puzzle_id", res.PuzzleID).Msg("puzzle solved")
		m.emit(r, events.TypePuzzleSolved, events.PuzzleSolvedPayload{
			PuzzleID:       res.PuzzleID,
			PuzzleType:     string(inst.Type),
			CompletedCount: r.Game.CompletedCount,
			Skipped:        skipped,
		})
	case res.Strike:
		log.Info().Str("room_code", r.Code).Str("puzzle_id", res.PuzzleID).Int("strikes", res.Strikes).Msg("strike")
		m.emit(r, events.TypePuzzleStrike, events.PuzzleStrikePayload{
			PuzzleID:   res.PuzzleID,
			PuzzleType: string(inst.Type),
			Strikes:    res.Strikes,
			MaxStrikes: r.Game.MaxStrikes,
		})
	}
	m.notifyAll(r, newEvent(EventGameStateUpdated, r.Game))

	if res.Finished {
		reason := "all puzzles solved"
		if res.Outcome == session.OutcomeDefeat {
			reason = "too many strikes"
		}
		m.finishGame(r, reason)
	}
}

func (m *Manager) instance(r *Room, puzzleID string) *puzzle.Instance {
	for _, inst := range r.Game.Puzzles {
		if inst.ID == puzzleID {
			return inst
		}
	}
	return &puzzle.Instance{ID: puzzleID}
}

// finishGame stops the countdown and moves the room to its terminal phase. Caller holds r.mu
// and the session has already reached an outcome.
func (m *Manager) finishGame(r *Room, reason string) {
	r.timer.cancel()
	g := r.Game
	victory := g.Outcome == session.OutcomeVictory
	if victory {
		r.Phase = PhaseVictory
	} else {
		r.Phase = PhaseDefeat
	}
	r.pausedDefuserID = ""

	log.Info().
		Str("room_code", r.Code).
		Bool("victory", victory).
		Str("reason", reason).
		Int("strikes", g.Strikes).
		Int("score", g.Score).
		Msg("game over")
	m.emit(r, events.TypeGameOver, events.GameOverPayload{
		Victory:        victory,
		Reason:         reason,
		ElapsedSeconds: g.ElapsedSeconds(),
		Strikes:        g.Strikes,
		CompletedCount: g.CompletedCount,
		Score:          g.Score,
	})
	m.notifyAll(r, newEvent(EventGameOver, GameOverData{
		Victory:   victory,
		FinalTime: g.TimeRemaining,
		Strikes:   g.Strikes,
		Score:     g.Score,
		Completed: g.CompletedCount,
		Total:     len(g.Puzzles),
	}))
	m.notifyRoom(r)
}

// pause freezes the countdown after the defuser left. Caller holds r.mu.
func (m *Manager) pause(r *Room, defuserID, reason string) {
	r.timer.cancel()
	r.Phase = PhasePaused
	r.pausedDefuserID = defuserID

	previous := defuserID
	if d := r.player(defuserID); d != nil {
		previous = d.Name
	}
	log.Info().Str("room_code", r.Code).Str("player_id", defuserID).Str("reason", reason).Msg("game paused")
	m.emit(r, events.TypeGamePaused, events.GamePausedPayload{
		PreviousDefuserID: defuserID,
		TimeRemaining:     r.Game.TimeRemaining,
		Reason:            reason,
	})
	m.notifyAll(r, newEvent(EventDefuserDisconnected, DefuserDisconnectedData{PlayerID: defuserID}))
	if r.connectedCount(RoleReader) > 0 {
		m.notifyAll(r, newEvent(EventTakeoverAvailable, TakeoverAvailableData{
			PreviousDefuser: previous,
			PlayerID:        defuserID,
		}))
	}
}

// resume restarts the countdown from the unchanged remaining time. Caller holds r.mu.
func (m *Manager) resume(r *Room, defuser *Player, takeover bool) {
	r.Phase = PhasePlaying
	r.pausedDefuserID = ""
	m.startTimer(r)

	log.Info().
		Str("room_code", r.Code).
		Str("player_id", defuser.ID).
		Bool("takeover", takeover).
		Int("time_remaining", r.Game.TimeRemaining).
		Msg("game resumed")
	m.emit(r, events.TypeGameResumed, events.GameResumedPayload{
		DefuserID:     defuser.ID,
		TimeRemaining: r.Game.TimeRemaining,
		Takeover:      takeover,
	})
}

// RequestTakeover promotes a connected reader to defuser and resumes a paused game.
func (m *Manager) RequestTakeover(playerID string) (View, error) {
	var v View
	err := m.withPlayer(playerID, func(r *Room, p *Player) error {
		if r.Phase != PhasePaused || r.Game == nil {
			return ErrWrongPhase
		}
		if p.Role != RoleReader || !p.IsConnected {
			return ErrNotReader
		}

		for _, other := range append([]*Player(nil), r.Players...) {
			if other.Role != RoleDefuser {
				continue
			}
			if other.IsConnected {
				other.Role = RoleReader
				continue
			}
			r.removePlayer(other.ID)
			m.mu.Lock()
			if m.members[other.ID] == r.Code {
				delete(m.members, other.ID)
			}
			m.mu.Unlock()
		}
		p.Role = RoleDefuser
		r.electHost()
		m.resume(r, p, true)

		m.notifyRoom(r)
		m.notifyAll(r, newEvent(EventGameStateUpdated, r.Game))
		v = r.view()
		return nil
	})
	return v, err
}

// PuzzleSolution exposes the judging data of the active puzzle. Diagnostic difficulties only.
func (m *Manager) PuzzleSolution(playerID string) (json.RawMessage, error) {
	var out json.RawMessage
	err := m.withPlayer(playerID, func(r *Room, _ *Player) error {
		if r.Game == nil {
			return ErrWrongPhase
		}
		report, err := r.Game.Solution()
		if err != nil {
			return err
		}
		out = mustMarshal(report)
		return nil
	})
	return out, err
}

// PlayAgain returns a finished room to its lobby.
func (m *Manager) PlayAgain(playerID string) (View, error) {
	var v View
	err := m.withPlayer(playerID, func(r *Room, _ *Player) error {
		if r.Phase != PhaseVictory && r.Phase != PhaseDefeat {
			return ErrWrongPhase
		}
		m.resetToLobby(r)
		v = r.view()
		return nil
	})
	return v, err
}

// resetToLobby drops the game and clears ready flags. Caller holds r.mu.
func (m *Manager) resetToLobby(r *Room) {
	r.timer.cancel()
	r.Game = nil
	r.Phase = PhaseLobby
	r.pausedDefuserID = ""
	r.clearReady()
	log.Info().Str("room_code", r.Code).Msg("room reset to lobby")
	m.notifyRoom(r)
	m.notifyAll(r, newEvent(EventGameStateUpdated, nil))
}

// SyncLeaderboard merges a client's entries into the room leaderboard and shares the result.
func (m *Manager) SyncLeaderboard(playerID string, entries []LeaderboardEntry) ([]LeaderboardEntry, error) {
	var merged []LeaderboardEntry
	err := m.withPlayer(playerID, func(r *Room, _ *Player) error {
		r.Leaderboard = mergeLeaderboard(r.Leaderboard, entries)
		merged = append([]LeaderboardEntry(nil), r.Leaderboard...)
		m.notifyAll(r, newEvent(EventLeaderboardSynced, merged))
		return nil
	})
	return merged, err
}
