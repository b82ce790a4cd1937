package puzzle

import (
	"encoding/json"
	"math/rand/v2"
	"slices"
)

const (
	whosOnFirstStages  = 3
	whosOnFirstButtons = 6
)

// whosOnFirstDisplay maps the display word to the button position whose label must be read.
var whosOnFirstDisplay = map[string]int{
	"YES":     2,
	"FIRST":   1,
	"DISPLAY": 5,
	"OKAY":    1,
	"SAYS":    5,
	"NOTHING": 2,
	"BLANK":   3,
	"NO":      5,
	"LED":     2,
	"LEAD":    5,
	"READ":    3,
	"RED":     3,
}

var whosOnFirstDisplayWords = []string{
	"YES", "FIRST", "DISPLAY", "OKAY", "SAYS", "NOTHING", "BLANK", "NO", "LED", "LEAD", "READ", "RED",
}

var whosOnFirstLabels = []string{"READY", "FIRST", "NO", "BLANK", "NOTHING", "YES", "WHAT", "LEFT"}

// whosOnFirstPriority lists, per read label, the labels to look for in order. Each list
// ends with the label itself so the search always terminates on a shown button.
var whosOnFirstPriority = map[string][]string{
	"READY":   {"YES", "NO", "FIRST", "WHAT", "LEFT", "BLANK", "NOTHING", "READY"},
	"FIRST":   {"LEFT", "YES", "BLANK", "NO", "READY", "WHAT", "NOTHING", "FIRST"},
	"NO":      {"BLANK", "WHAT", "FIRST", "LEFT", "READY", "NOTHING", "YES", "NO"},
	"BLANK":   {"WHAT", "LEFT", "NO", "FIRST", "YES", "READY", "NOTHING", "BLANK"},
	"NOTHING": {"READY", "BLANK", "LEFT", "WHAT", "NO", "YES", "FIRST", "NOTHING"},
	"YES":     {"FIRST", "NOTHING", "READY", "NO", "BLANK", "LEFT", "WHAT", "YES"},
	"WHAT":    {"NOTHING", "READY", "YES", "BLANK", "FIRST", "NO", "LEFT", "WHAT"},
	"LEFT":    {"NO", "FIRST", "WHAT", "NOTHING", "YES", "BLANK", "READY", "LEFT"},
}

type WhosOnFirstStage struct {
	Display string   `json:"display"`
	Buttons []string `json:"buttons"`
}

type WhosOnFirstView struct {
	Stage   int      `json:"stage"`
	Stages  int      `json:"stages"`
	Display string   `json:"display"`
	Buttons []string `json:"buttons"`
}

type WhosOnFirstSolution struct {
	Stages  []WhosOnFirstStage `json:"stages"`
	Answers []string           `json:"answers"`
}

type WhosOnFirstPuzzle struct {
	View   WhosOnFirstView
	Answer WhosOnFirstSolution
}

func (p *WhosOnFirstPuzzle) Type() Type       { return TypeWhosOnFirst }
func (p *WhosOnFirstPuzzle) DefuserView() any { return p.View }
func (p *WhosOnFirstPuzzle) Solution() any    { return p.Answer }

type pressLabelAction struct {
	actionKind
	Label string `json:"label"`
}

// WhosOnFirstModule reads a display word, finds a label on the board, then presses by priority.
type WhosOnFirstModule struct{}

func (WhosOnFirstModule) Type() Type { return TypeWhosOnFirst }

func (WhosOnFirstModule) Generate(rng *rand.Rand, _ Context) (State, error) {
	stages := make([]WhosOnFirstStage, whosOnFirstStages)
	answers := make([]string, whosOnFirstStages)
	for i := range stages {
		stages[i] = WhosOnFirstStage{
			Display: pick(rng, whosOnFirstDisplayWords),
			Buttons: sample(rng, whosOnFirstLabels, whosOnFirstButtons),
		}
		answers[i] = whosOnFirstAnswer(stages[i])
	}
	p := &WhosOnFirstPuzzle{Answer: WhosOnFirstSolution{Stages: stages, Answers: answers}}
	p.showStage(1)
	return p, nil
}

func (p *WhosOnFirstPuzzle) showStage(stage int) {
	st := p.Answer.Stages[stage-1]
	p.View = WhosOnFirstView{
		Stage:   stage,
		Stages:  len(p.Answer.Stages),
		Display: st.Display,
		Buttons: st.Buttons,
	}
}

func whosOnFirstAnswer(st WhosOnFirstStage) string {
	read := st.Buttons[whosOnFirstDisplay[st.Display]]
	for _, label := range whosOnFirstPriority[read] {
		if slices.Contains(st.Buttons, label) {
			return label
		}
	}
	return read
}

func (WhosOnFirstModule) Validate(s State, raw json.RawMessage, _ Env) (Result, error) {
	p, err := stateAs[*WhosOnFirstPuzzle](s)
	if err != nil {
		return Result{}, err
	}
	act, err := decodeAction[pressLabelAction](raw)
	if err != nil {
		return Result{}, err
	}
	label := normalizeWord(act.Label)
	if act.Kind != "press" || !slices.Contains(p.View.Buttons, label) {
		return Result{}, invalid("expected press with a label on the board")
	}
	if label != p.Answer.Answers[p.View.Stage-1] {
		return strike("wrong label"), nil
	}
	if p.View.Stage == p.View.Stages {
		return solved("all stages complete"), nil
	}
	p.showStage(p.View.Stage + 1)
	return progress("stage complete"), nil
}
