package puzzle

import (
	"encoding/json"
	"math/rand/v2"
	"slices"
)

var simonColors = []string{colorRed, colorBlue, colorGreen, colorYellow}

// simonTables is indexed by [serial has vowel][strikes clamped to 2] and maps a flashed
// colour to the colour that must be pressed.
var simonTables = [2][3]map[string]string{
	// no vowel
	{
		{colorRed: colorBlue, colorBlue: colorYellow, colorGreen: colorGreen, colorYellow: colorRed},
		{colorRed: colorRed, colorBlue: colorBlue, colorGreen: colorYellow, colorYellow: colorGreen},
		{colorRed: colorYellow, colorBlue: colorGreen, colorGreen: colorBlue, colorYellow: colorRed},
	},
	// vowel
	{
		{colorRed: colorBlue, colorBlue: colorRed, colorGreen: colorYellow, colorYellow: colorGreen},
		{colorRed: colorYellow, colorBlue: colorGreen, colorGreen: colorBlue, colorYellow: colorRed},
		{colorRed: colorGreen, colorBlue: colorRed, colorGreen: colorYellow, colorYellow: colorBlue},
	},
}

type SimonView struct {
	Flashes []string `json:"flashes"`
	Round   int      `json:"round"`
	Rounds  int      `json:"rounds"`
	Input   []string `json:"input"`
}

type SimonSolution struct {
	Sequence []string `json:"sequence"`
}

type SimonPuzzle struct {
	View   SimonView
	Answer SimonSolution
}

func (p *SimonPuzzle) Type() Type       { return TypeSimon }
func (p *SimonPuzzle) DefuserView() any { return p.View }
func (p *SimonPuzzle) Solution() any    { return p.Answer }

type pressColorAction struct {
	actionKind
	Color string `json:"color"`
}

// SimonModule repeats a growing flash sequence through a serial and strike dependent table.
type SimonModule struct{}

func (SimonModule) Type() Type { return TypeSimon }

func (SimonModule) Generate(rng *rand.Rand, ctx Context) (State, error) {
	rounds := 3
	switch {
	case ctx.Level >= 3:
		rounds = 5
	case ctx.Level == 2:
		rounds = 4
	}
	seq := make([]string, rounds)
	for i := range seq {
		seq[i] = pick(rng, simonColors)
	}
	return &SimonPuzzle{
		View: SimonView{
			Flashes: seq[:1:1],
			Round:   1,
			Rounds:  rounds,
			Input:   []string{},
		},
		Answer: SimonSolution{Sequence: seq},
	}, nil
}

func (SimonModule) Validate(s State, raw json.RawMessage, env Env) (Result, error) {
	p, err := stateAs[*SimonPuzzle](s)
	if err != nil {
		return Result{}, err
	}
	act, err := decodeAction[pressColorAction](raw)
	if err != nil {
		return Result{}, err
	}
	if act.Kind != "press" || !slices.Contains(simonColors, act.Color) {
		return Result{}, invalid("expected press with a simon colour")
	}
	flashed := p.Answer.Sequence[len(p.View.Input)]
	if act.Color != simonTranslate(flashed, env.SerialNumber, env.Strikes) {
		p.View.Input = []string{}
		return strike("wrong colour"), nil
	}
	p.View.Input = append(p.View.Input, act.Color)
	if len(p.View.Input) < p.View.Round {
		return progress("colour accepted"), nil
	}
	if p.View.Round == p.View.Rounds {
		return solved("sequence complete"), nil
	}
	p.View.Round++
	p.View.Flashes = p.Answer.Sequence[:p.View.Round:p.View.Round]
	p.View.Input = []string{}
	return progress("round complete"), nil
}

func simonTranslate(flashed, serial string, strikes int) string {
	vowel := 0
	if HasVowel(serial) {
		vowel = 1
	}
	return simonTables[vowel][min(max(strikes, 0), 2)][flashed]
}
