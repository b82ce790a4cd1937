package puzzle

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
)

const memoryStages = 5

type MemoryStage struct {
	Display int    `json:"display"`
	Labels  [4]int `json:"labels"`
}

// MemoryPress records what was pressed in a completed stage. Later stages read it.
type MemoryPress struct {
	Position int `json:"position"`
	Label    int `json:"label"`
}

type MemoryView struct {
	Stage   int           `json:"stage"`
	Display int           `json:"display"`
	Labels  [4]int        `json:"labels"`
	History []MemoryPress `json:"history"`
}

type MemorySolution struct {
	Stages []MemoryStage `json:"stages"`
}

type MemoryPuzzle struct {
	View   MemoryView
	Answer MemorySolution
}

func (p *MemoryPuzzle) Type() Type       { return TypeMemory }
func (p *MemoryPuzzle) DefuserView() any { return p.View }
func (p *MemoryPuzzle) Solution() any    { return p.Answer }

type pressPositionAction struct {
	actionKind
	Position *int `json:"position"`
}

// MemoryModule runs five stages whose answers depend on earlier presses.
type MemoryModule struct{}

func (MemoryModule) Type() Type { return TypeMemory }

func (MemoryModule) Generate(rng *rand.Rand, _ Context) (State, error) {
	stages := make([]MemoryStage, memoryStages)
	for i := range stages {
		stages[i].Display = 1 + rng.IntN(4)
		for j, v := range rng.Perm(4) {
			stages[i].Labels[j] = v + 1
		}
	}
	p := &MemoryPuzzle{Answer: MemorySolution{Stages: stages}}
	p.resetToStage(1)
	return p, nil
}

func (p *MemoryPuzzle) resetToStage(stage int) {
	st := p.Answer.Stages[stage-1]
	p.View.Stage = stage
	p.View.Display = st.Display
	p.View.Labels = st.Labels
	if stage == 1 {
		p.View.History = []MemoryPress{}
	}
}

func (MemoryModule) Validate(s State, raw json.RawMessage, _ Env) (Result, error) {
	p, err := stateAs[*MemoryPuzzle](s)
	if err != nil {
		return Result{}, err
	}
	act, err := decodeAction[pressPositionAction](raw)
	if err != nil {
		return Result{}, err
	}
	if act.Kind != "press" || act.Position == nil {
		return Result{}, invalid("expected press with position")
	}
	pos := *act.Position
	if pos < 0 || pos > 3 {
		return Result{}, invalid("position %d out of range", pos)
	}
	want, err := memoryAnswer(p.View.Stage, p.View.Display, p.View.Labels, p.View.History)
	if err != nil {
		return Result{}, err
	}
	if pos != want {
		p.resetToStage(1)
		return strike("wrong button, back to stage 1"), nil
	}
	p.View.History = append(p.View.History, MemoryPress{Position: pos, Label: p.View.Labels[pos]})
	if p.View.Stage == memoryStages {
		return solved("all stages complete"), nil
	}
	p.resetToStage(p.View.Stage + 1)
	return progress("stage complete"), nil
}

// memoryAnswer returns the 0-based position to press. history holds every earlier stage.
func memoryAnswer(stage, display int, labels [4]int, history []MemoryPress) (int, error) {
	if len(history) != stage-1 {
		return 0, fmt.Errorf("memory stage %d has %d recorded presses", stage, len(history))
	}
	byLabel := func(label int) int {
		for i, l := range labels {
			if l == label {
				return i
			}
		}
		return 0
	}
	switch stage {
	case 1:
		switch display {
		case 1, 2:
			return 1, nil
		case 3:
			return 2, nil
		default:
			return 3, nil
		}
	case 2:
		switch display {
		case 1:
			return byLabel(4), nil
		case 3:
			return 0, nil
		default:
			return history[0].Position, nil
		}
	case 3:
		switch display {
		case 1:
			return byLabel(history[1].Label), nil
		case 2:
			return byLabel(history[0].Label), nil
		case 3:
			return 2, nil
		default:
			return byLabel(4), nil
		}
	case 4:
		switch display {
		case 1:
			return history[0].Position, nil
		case 2:
			return 0, nil
		default:
			return history[1].Position, nil
		}
	default:
		switch display {
		case 1:
			return byLabel(history[0].Label), nil
		case 2:
			return byLabel(history[1].Label), nil
		case 3:
			return byLabel(history[3].Label), nil
		default:
			return byLabel(history[2].Label), nil
		}
	}
}
