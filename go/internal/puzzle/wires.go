package puzzle

import (
	"encoding/json"
	"math/rand/v2"
)

const (
	colorRed    = "red"
	colorBlue   = "blue"
	colorYellow = "yellow"
	colorBlack  = "black"
	colorWhite  = "white"
	colorGreen  = "green"
)

var wireColors = []string{colorRed, colorBlue, colorYellow, colorBlack, colorWhite}

type Wire struct {
	Color string `json:"color"`
	Cut   bool   `json:"cut"`
}

type WiresView struct {
	Wires []Wire `json:"wires"`
}

type WiresSolution struct {
	CutIndex int    `json:"cutIndex"`
	Rule     string `json:"rule"`
}

// WiresPuzzle holds one wire panel.
type WiresPuzzle struct {
	View   WiresView
	Answer WiresSolution
}

func (p *WiresPuzzle) Type() Type       { return TypeWires }
func (p *WiresPuzzle) DefuserView() any { return p.View }
func (p *WiresPuzzle) Solution() any    { return p.Answer }

type cutAction struct {
	actionKind
	Index *int `json:"index"`
}

// WiresModule cuts exactly one wire, chosen by count-dependent rules.
type WiresModule struct{}

func (WiresModule) Type() Type { return TypeWires }

func (WiresModule) Generate(rng *rand.Rand, ctx Context) (State, error) {
	count := 4
	switch {
	case ctx.Level >= 3:
		count = 4 + rng.IntN(3)
	case ctx.Level == 2:
		count = 4 + rng.IntN(2)
	}
	colors := make([]string, count)
	wires := make([]Wire, count)
	for i := range colors {
		colors[i] = pick(rng, wireColors)
		wires[i] = Wire{Color: colors[i]}
	}
	idx, rule := wireToCut(colors, ctx.SerialNumber)
	return &WiresPuzzle{
		View:   WiresView{Wires: wires},
		Answer: WiresSolution{CutIndex: idx, Rule: rule},
	}, nil
}

func (WiresModule) Validate(s State, raw json.RawMessage, _ Env) (Result, error) {
	p, err := stateAs[*WiresPuzzle](s)
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
	if i == p.Answer.CutIndex {
		return solved("correct wire"), nil
	}
	return strike("wrong wire"), nil
}

// wireToCut applies the 4, 5 and 6 wire rule sets.
func wireToCut(colors []string, serial string) (int, string) {
	odd := LastDigit(serial)%2 == 1
	n := len(colors)
	count := func(c string) int {
		k := 0
		for _, col := range colors {
			if col == c {
				k++
			}
		}
		return k
	}
	lastOf := func(c string) int {
		for i := n - 1; i >= 0; i-- {
			if colors[i] == c {
				return i
			}
		}
		return -1
	}

	switch n {
	case 4:
		switch {
		case count(colorRed) > 1 && odd:
			return lastOf(colorRed), "more than one red wire and odd serial: cut the last red wire"
		case colors[3] == colorYellow && count(colorRed) == 0:
			return 0, "last wire yellow and no red wires: cut the first wire"
		case count(colorBlue) == 1:
			return 0, "exactly one blue wire: cut the first wire"
		case count(colorYellow) > 1:
			return 3, "more than one yellow wire: cut the last wire"
		default:
			return 1, "otherwise: cut the second wire"
		}
	case 5:
		switch {
		case colors[4] == colorBlack && odd:
			return 3, "last wire black and odd serial: cut the fourth wire"
		case count(colorRed) == 1 && count(colorYellow) > 1:
			return 0, "one red and more than one yellow: cut the first wire"
		case count(colorBlack) == 0:
			return 1, "no black wires: cut the second wire"
		default:
			return 0, "otherwise: cut the first wire"
		}
	default:
		switch {
		case count(colorYellow) == 0 && odd:
			return 2, "no yellow wires and odd serial: cut the third wire"
		case count(colorYellow) == 1 && count(colorWhite) > 1:
			return 3, "one yellow and more than one white: cut the fourth wire"
		case count(colorRed) == 0:
			return n - 1, "no red wires: cut the last wire"
		default:
			return 3, "otherwise: cut the fourth wire"
		}
	}
}
