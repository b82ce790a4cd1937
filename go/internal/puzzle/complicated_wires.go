package puzzle

import (
	"encoding/json"
	"math/rand/v2"
	"slices"
)

type ComplicatedWire struct {
	Red  bool `json:"red"`
	Blue bool `json:"blue"`
	Star bool `json:"star"`
	LED  bool `json:"led"`
	Cut  bool `json:"cut"`
}

type ComplicatedWiresView struct {
	Wires []ComplicatedWire `json:"wires"`
}

type ComplicatedWiresSolution struct {
	Letters  []string `json:"letters"`
	Required []bool   `json:"required"`
}

type ComplicatedWiresPuzzle struct {
	View   ComplicatedWiresView
	Answer ComplicatedWiresSolution
}

func (p *ComplicatedWiresPuzzle) Type() Type       { return TypeComplicatedWires }
func (p *ComplicatedWiresPuzzle) DefuserView() any { return p.View }
func (p *ComplicatedWiresPuzzle) Solution() any    { return p.Answer }

// ComplicatedWiresModule cuts every wire the Venn diagram marks as required.
type ComplicatedWiresModule struct{}

func (ComplicatedWiresModule) Type() Type { return TypeComplicatedWires }

func (ComplicatedWiresModule) Generate(rng *rand.Rand, ctx Context) (State, error) {
	n := 3 + rng.IntN(4)
	wires := make([]ComplicatedWire, n)
	for i := range wires {
		wires[i] = ComplicatedWire{
			Red:  rng.IntN(2) == 0,
			Blue: rng.IntN(2) == 0,
			Star: rng.IntN(2) == 0,
			LED:  rng.IntN(2) == 0,
		}
	}
	letters, required := complicatedWiresPlan(wires, ctx.SerialNumber, ctx.Indicators)
	if !slices.Contains(required, true) {
		wires[0] = ComplicatedWire{}
		letters, required = complicatedWiresPlan(wires, ctx.SerialNumber, ctx.Indicators)
	}
	return &ComplicatedWiresPuzzle{
		View:   ComplicatedWiresView{Wires: wires},
		Answer: ComplicatedWiresSolution{Letters: letters, Required: required},
	}, nil
}

func complicatedWiresPlan(wires []ComplicatedWire, serial string, indicators []Indicator) ([]string, []bool) {
	letters := make([]string, len(wires))
	required := make([]bool, len(wires))
	for i, w := range wires {
		letters[i] = vennLetter(w)
		required[i] = vennCut(letters[i], serial, indicators)
	}
	return letters, required
}

// vennLetter classifies a wire: C cut, D do not cut, S cut on an even serial digit,
// P cut with lit FRK, B cut with two or more lit indicators.
func vennLetter(w ComplicatedWire) string {
	switch {
	case w.Red && w.Blue && w.Star && w.LED:
		return "D"
	case w.Red && w.Blue && w.Star:
		return "P"
	case w.Red && w.Blue && w.LED:
		return "S"
	case w.Red && w.Blue:
		return "S"
	case w.Red && w.Star && w.LED:
		return "B"
	case w.Red && w.Star:
		return "C"
	case w.Red && w.LED:
		return "B"
	case w.Red:
		return "S"
	case w.Blue && w.Star && w.LED:
		return "P"
	case w.Blue && w.Star:
		return "D"
	case w.Blue && w.LED:
		return "P"
	case w.Blue:
		return "S"
	case w.Star && w.LED:
		return "B"
	case w.LED:
		return "D"
	default:
		return "C"
	}
}

func vennCut(letter, serial string, indicators []Indicator) bool {
	switch letter {
	case "C":
		return true
	case "S":
		return LastDigit(serial)%2 == 0
	case "P":
		return IsLit(indicators, IndicatorFRK)
	case "B":
		return LitCount(indicators) >= 2
	default:
		return false
	}
}

func (ComplicatedWiresModule) Validate(s State, raw json.RawMessage, _ Env) (Result, error) {
	p, err := stateAs[*ComplicatedWiresPuzzle](s)
	if err != nil {
		return Result{}, err
	}
	act, err := decodeAction[cutAction](raw)
	if err != nil {
		return Result{}, err
	}
	if act.Kind != "cut" || act.Index == nil {
		return Result{}, invalid("expected cut with index")
	}
	i := *act.Index
	if i < 0 || i >= len(p.View.Wires) {
		return Result{}, invalid("wire %d out of range", i)
	}
	if p.View.Wires[i].Cut {
		return Result{}, invalid("wire %d already cut", i)
	}
	p.View.Wires[i].Cut = true
	if !p.Answer.Required[i] {
		return strike("that wire should not be cut"), nil
	}
	for j, req := range p.Answer.Required {
		if req && !p.View.Wires[j].Cut {
			return progress("wire cut"), nil
		}
	}
	return solved("all required wires cut"), nil
}
