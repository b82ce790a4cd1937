package puzzle

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
)

var (
	buttonColors = []string{colorRed, colorBlue, colorYellow, colorWhite}
	buttonLabels = []string{"ABORT", "DETONATE", "HOLD", "PRESS"}
	stripColors  = []string{colorRed, colorBlue, colorYellow, colorWhite}
)

type ButtonView struct {
	Color string `json:"color"`
	Label string `json:"label"`
	Held  bool   `json:"held"`
	// Strip is empty until the button is held.
	Strip string `json:"strip,omitempty"`
}

type ButtonSolution struct {
	Hold      bool   `json:"hold"`
	Rule      string `json:"rule"`
	Strip     string `json:"strip"`
	ReleaseOn int    `json:"releaseOn"`
}

type ButtonPuzzle struct {
	View   ButtonView
	Answer ButtonSolution
}

func (p *ButtonPuzzle) Type() Type       { return TypeButton }
func (p *ButtonPuzzle) DefuserView() any { return p.View }
func (p *ButtonPuzzle) Solution() any    { return p.Answer }

// ButtonModule decides between tapping and holding a button, then timing the release.
type ButtonModule struct{}

func (ButtonModule) Type() Type { return TypeButton }

func (ButtonModule) Generate(rng *rand.Rand, ctx Context) (State, error) {
	color := pick(rng, buttonColors)
	label := pick(rng, buttonLabels)
	hold, rule := buttonRule(color, label, ctx.Indicators)
	strip := pick(rng, stripColors)
	return &ButtonPuzzle{
		View: ButtonView{Color: color, Label: label},
		Answer: ButtonSolution{
			Hold:      hold,
			Rule:      rule,
			Strip:     strip,
			ReleaseOn: stripDigit(strip),
		},
	}, nil
}

func (ButtonModule) Validate(s State, raw json.RawMessage, env Env) (Result, error) {
	p, err := stateAs[*ButtonPuzzle](s)
	if err != nil {
		return Result{}, err
	}
	act, err := decodeAction[actionKind](raw)
	if err != nil {
		return Result{}, err
	}
	switch act.Kind {
	case "tap":
		if p.View.Held {
			return Result{}, invalid("button is held")
		}
		if p.Answer.Hold {
			return strike("button should have been held"), nil
		}
		return solved("button tapped"), nil
	case "hold":
		if p.View.Held {
			return Result{}, invalid("button already held")
		}
		if !p.Answer.Hold {
			return strike("button should have been tapped"), nil
		}
		p.View.Held = true
		p.View.Strip = p.Answer.Strip
		return progress("strip lit"), nil
	case "release":
		if !p.View.Held {
			return Result{}, invalid("button is not held")
		}
		p.View.Held = false
		p.View.Strip = ""
		if !countdownContains(env.TimeRemaining, p.Answer.ReleaseOn) {
			return strike(fmt.Sprintf("released without a %d on the timer", p.Answer.ReleaseOn)), nil
		}
		return solved("button released"), nil
	default:
		return Result{}, invalid("unknown button action %q", act.Kind)
	}
}

// buttonRule applies the rules in order; the first match wins. hold is false for a tap.
func buttonRule(color, label string, indicators []Indicator) (bool, string) {
	lit := LitCount(indicators)
	switch {
	case color == colorBlue && label == "ABORT":
		return true, "blue ABORT: hold"
	case label == "DETONATE" && lit >= 2:
		return false, "DETONATE with two or more lit indicators: tap"
	case color == colorWhite && IsLit(indicators, IndicatorCAR):
		return true, "white with lit CAR: hold"
	case IsLit(indicators, IndicatorFRK):
		return false, "lit FRK: tap"
	case color == colorYellow:
		return true, "yellow: hold"
	case color == colorRed && label == "HOLD":
		return false, "red HOLD: tap"
	default:
		return true, "otherwise: hold"
	}
}

func stripDigit(strip string) int {
	switch strip {
	case colorBlue:
		return 4
	case colorYellow:
		return 5
	default:
		return 1
	}
}

func countdownContains(seconds, digit int) bool {
	seconds = max(seconds, 0)
	clock := fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
	return strings.ContainsRune(clock, rune('0'+digit))
}
