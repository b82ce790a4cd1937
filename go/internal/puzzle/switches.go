package puzzle

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
)

// switchPositions fixes the panel: four 4-way switches and two 3-way switches.
var switchPositions = []int{4, 4, 4, 4, 3, 3}

// maxSwitchSearch bounds the brute-force target search. The current panel has
// 4*4*4*4*3*3 = 2304 configurations; growing the panel past the bound fails generation.
const maxSwitchSearch = 4096

const switchGenerateAttempts = 64

var switchSymbols = []string{"alpha", "delta", "sigma", "omega"}

var switchHousings = []string{colorRed, colorBlue, colorYellow, colorGreen}

type Switch struct {
	Symbol    string `json:"symbol"`
	Housing   string `json:"housing"`
	Position  int    `json:"position"`
	Positions int    `json:"positions"`
	Locked    bool   `json:"locked"`
}

type SwitchesView struct {
	Switches []Switch `json:"switches"`
	// Lights is the target pattern: light i must be lit iff switch i sits at an odd position.
	Lights []bool `json:"lights"`
}

type SwitchesSolution struct {
	Target   []int `json:"target"`
	Searched int   `json:"searched"`
}

type SwitchesPuzzle struct {
	View   SwitchesView
	Answer SwitchesSolution
}

func (p *SwitchesPuzzle) Type() Type       { return TypeSwitches }
func (p *SwitchesPuzzle) DefuserView() any { return p.View }
func (p *SwitchesPuzzle) Solution() any    { return p.Answer }

type switchAction struct {
	actionKind
	Index    *int `json:"index"`
	Position *int `json:"position"`
}

// SwitchesModule sets a switch panel to a configuration matching the lights and the housing rules.
type SwitchesModule struct{}

func (SwitchesModule) Type() Type { return TypeSwitches }

func (SwitchesModule) Generate(rng *rand.Rand, ctx Context) (State, error) {
	locks := min(max(ctx.Level-1, 0), 3)
	for attempt := 0; attempt < switchGenerateAttempts; attempt++ {
		switches := make([]Switch, len(switchPositions))
		for i, n := range switchPositions {
			switches[i] = Switch{
				Symbol:    pick(rng, switchSymbols),
				Housing:   pick(rng, switchHousings),
				Position:  rng.IntN(n),
				Positions: n,
			}
		}
		lockSwitches(rng, switches, ctx.Indicators, locks)
		target, searched, err := findTargetConfiguration(switches, nil, ctx.Indicators)
		if err != nil {
			return nil, err
		}
		if target == nil {
			continue
		}
		lights := make([]bool, len(target))
		for i, pos := range target {
			lights[i] = pos%2 == 1
		}
		p := &SwitchesPuzzle{
			View:   SwitchesView{Switches: switches, Lights: lights},
			Answer: SwitchesSolution{Target: target, Searched: searched},
		}
		p.unsolve()
		return p, nil
	}
	return fallbackSwitches(), nil
}

// lockSwitches locks up to n switches at their starting position. A switch that starts
// in violation of an indicator-forced rule is never locked, so the fix stays reachable.
func lockSwitches(rng *rand.Rand, switches []Switch, indicators []Indicator, n int) {
	frk := IsLit(indicators, IndicatorFRK)
	var candidates []int
	for i, sw := range switches {
		if frk && sw.Housing == colorBlue && sw.Position != 0 {
			continue
		}
		candidates = append(candidates, i)
	}
	rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
	for _, i := range candidates[:min(n, len(candidates))] {
		switches[i].Locked = true
	}
}

// unsolve makes sure the starting panel is not already a valid answer by flipping the
// parity of the first unlocked switch that matches its light.
func (p *SwitchesPuzzle) unsolve() {
	positions := make([]int, len(p.View.Switches))
	for i, sw := range p.View.Switches {
		positions[i] = sw.Position
	}
	if len(switchViolations(p.View.Switches, positions, p.View.Lights, nil)) > 0 {
		return
	}
	for i := range p.View.Switches {
		sw := &p.View.Switches[i]
		if sw.Locked {
			continue
		}
		if sw.Position+1 < sw.Positions {
			sw.Position++
		} else {
			sw.Position--
		}
		return
	}
}

func fallbackSwitches() *SwitchesPuzzle {
	switches := make([]Switch, len(switchPositions))
	target := make([]int, len(switchPositions))
	lights := make([]bool, len(switchPositions))
	for i, n := range switchPositions {
		switches[i] = Switch{Symbol: switchSymbols[i%len(switchSymbols)], Housing: colorGreen, Position: 1, Positions: n}
	}
	return &SwitchesPuzzle{
		View:   SwitchesView{Switches: switches, Lights: lights},
		Answer: SwitchesSolution{Target: target},
	}
}

// findTargetConfiguration enumerates panel configurations in order and returns the first
// one satisfying every rule. Locked switches stay where they are. lights == nil means
// the light pattern is not constrained yet.
func findTargetConfiguration(switches []Switch, lights []bool, indicators []Indicator) ([]int, int, error) {
	total := 1
	for _, sw := range switches {
		total *= sw.Positions
	}
	if total > maxSwitchSearch {
		return nil, 0, fmt.Errorf("switch panel has %d configurations, limit is %d", total, maxSwitchSearch)
	}
	config := make([]int, len(switches))
	for n := 0; n < total; n++ {
		rest := n
		for i := len(switches) - 1; i >= 0; i-- {
			config[i] = rest % switches[i].Positions
			rest /= switches[i].Positions
		}
		if len(switchViolations(switches, config, lights, indicators)) == 0 {
			return append([]int(nil), config...), n + 1, nil
		}
	}
	return nil, total, nil
}

// switchViolations lists every rule the given positions break.
func switchViolations(switches []Switch, positions []int, lights []bool, indicators []Indicator) []string {
	var out []string
	frk := IsLit(indicators, IndicatorFRK)
	for i, sw := range switches {
		pos := positions[i]
		if sw.Locked && pos != sw.Position {
			out = append(out, fmt.Sprintf("switch %d is locked", i))
		}
		if lights != nil && (pos%2 == 1) != lights[i] {
			out = append(out, fmt.Sprintf("switch %d does not match its light", i))
		}
		if sw.Housing == colorRed && pos == 0 {
			out = append(out, fmt.Sprintf("switch %d has a red housing and sits at the top", i))
		}
		if sw.Housing == colorYellow && pos == sw.Positions-1 {
			out = append(out, fmt.Sprintf("switch %d has a yellow housing and sits at the bottom", i))
		}
		if frk && sw.Housing == colorBlue && pos != 0 {
			out = append(out, fmt.Sprintf("switch %d has a blue housing and FRK is lit", i))
		}
		for j := i + 1; j < len(switches); j++ {
			if switches[j].Symbol == sw.Symbol && positions[j] != pos {
				out = append(out, fmt.Sprintf("switches %d and %d share a symbol but not a position", i, j))
			}
		}
	}
	return out
}

func (SwitchesModule) Validate(s State, raw json.RawMessage, env Env) (Result, error) {
	p, err := stateAs[*SwitchesPuzzle](s)
	if err != nil {
		return Result{}, err
	}
	act, err := decodeAction[switchAction](raw)
	if err != nil {
		return Result{}, err
	}
	switch act.Kind {
	case "set":
		if act.Index == nil || act.Position == nil {
			return Result{}, invalid("set needs index and position")
		}
		i, pos := *act.Index, *act.Position
		if i < 0 || i >= len(p.View.Switches) {
			return Result{}, invalid("switch %d out of range", i)
		}
		sw := &p.View.Switches[i]
		if sw.Locked {
			return Result{}, invalid("switch %d is locked", i)
		}
		if pos < 0 || pos >= sw.Positions {
			return Result{}, invalid("position %d out of range for switch %d", pos, i)
		}
		sw.Position = pos
		return progress("switch moved"), nil
	case "confirm":
		positions := make([]int, len(p.View.Switches))
		for i, sw := range p.View.Switches {
			positions[i] = sw.Position
		}
		if v := switchViolations(p.View.Switches, positions, p.View.Lights, env.Indicators); len(v) > 0 {
			return strike(v[0]), nil
		}
		return solved("panel accepted"), nil
	default:
		return Result{}, invalid("unknown switches action %q", act.Kind)
	}
}
