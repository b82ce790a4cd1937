package puzzle

import (
	"encoding/json"
	"math/rand/v2"
	"slices"
)

// keypadColumns are the manual's symbol columns; the press order is column order.
var keypadColumns = [][]string{
	{"balloon", "at", "lambda", "lightning", "squidknife", "hookn", "leftc"},
	{"euro", "balloon", "leftc", "cursive", "hollowstar", "hookn", "questionmark"},
	{"copyright", "pumpkin", "cursive", "doublek", "meltedthree", "lambda", "hollowstar"},
	{"six", "paragraph", "bt", "squidknife", "doublek", "questionmark", "smileyface"},
	{"pitchfork", "smileyface", "bt", "rightc", "paragraph", "dragon", "filledstar"},
	{"six", "euro", "tracks", "ae", "pitchfork", "nwithhat", "omega"},
}

const keypadSize = 4

type KeypadView struct {
	Symbols []string `json:"symbols"`
	Pressed []string `json:"pressed"`
}

type KeypadSolution struct {
	Column int      `json:"column"`
	Order  []string `json:"order"`
}

type KeypadPuzzle struct {
	View   KeypadView
	Answer KeypadSolution
}

func (p *KeypadPuzzle) Type() Type       { return TypeKeypad }
func (p *KeypadPuzzle) DefuserView() any { return p.View }
func (p *KeypadPuzzle) Solution() any    { return p.Answer }

type pressSymbolAction struct {
	actionKind
	Symbol string `json:"symbol"`
}

// KeypadModule presses four symbols in the order they appear in their column.
type KeypadModule struct{}

func (KeypadModule) Type() Type { return TypeKeypad }

func (KeypadModule) Generate(rng *rand.Rand, _ Context) (State, error) {
	col := rng.IntN(len(keypadColumns))
	positions := rng.Perm(len(keypadColumns[col]))[:keypadSize]
	shown := make([]string, keypadSize)
	for i, pos := range positions {
		shown[i] = keypadColumns[col][pos]
	}
	slices.Sort(positions)
	order := make([]string, keypadSize)
	for i, pos := range positions {
		order[i] = keypadColumns[col][pos]
	}
	return &KeypadPuzzle{
		View:   KeypadView{Symbols: shown, Pressed: []string{}},
		Answer: KeypadSolution{Column: col, Order: order},
	}, nil
}

func (KeypadModule) Validate(s State, raw json.RawMessage, _ Env) (Result, error) {
	p, err := stateAs[*KeypadPuzzle](s)
	if err != nil {
		return Result{}, err
	}
	act, err := decodeAction[pressSymbolAction](raw)
	if err != nil {
		return Result{}, err
	}
	if act.Kind != "press" || act.Symbol == "" {
		return Result{}, invalid("expected press with symbol")
	}
	if !slices.Contains(p.View.Symbols, act.Symbol) {
		return Result{}, invalid("symbol %q not on keypad", act.Symbol)
	}
	if slices.Contains(p.View.Pressed, act.Symbol) {
		return Result{}, invalid("symbol %q already pressed", act.Symbol)
	}
	next := p.Answer.Order[len(p.View.Pressed)]
	if act.Symbol != next {
		return strike("wrong symbol"), nil
	}
	p.View.Pressed = append(p.View.Pressed, act.Symbol)
	if len(p.View.Pressed) == keypadSize {
		return solved("keypad complete"), nil
	}
	return progress("symbol accepted"), nil
}
