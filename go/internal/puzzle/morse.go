package puzzle

import (
	"encoding/json"
	"math/rand/v2"
	"strings"
)

type morseEntry struct {
	Word      string
	Frequency string
}

var morseTable = []morseEntry{
	{"SHELL", "3.505"},
	{"HALLS", "3.515"},
	{"SLICK", "3.522"},
	{"TRICK", "3.532"},
	{"BOXES", "3.535"},
	{"LEAKS", "3.542"},
	{"STROBE", "3.545"},
	{"BISTRO", "3.552"},
	{"FLICK", "3.555"},
	{"BOMBS", "3.565"},
	{"BREAK", "3.572"},
	{"BRICK", "3.575"},
	{"STEAK", "3.582"},
	{"STING", "3.592"},
	{"VECTOR", "3.595"},
	{"BEATS", "3.600"},
}

var morseCode = map[rune]string{
	'A': ".-", 'B': "-...", 'C': "-.-.", 'D': "-..", 'E': ".", 'F': "..-.", 'G': "--.",
	'H': "....", 'I': "..", 'J': ".---", 'K': "-.-", 'L': ".-..", 'M': "--", 'N': "-.",
	'O': "---", 'P': ".--.", 'Q': "--.-", 'R': ".-.", 'S': "...", 'T': "-", 'U': "..-",
	'V': "...-", 'W': ".--", 'X': "-..-", 'Y': "-.--", 'Z': "--..",
}

type MorseView struct {
	// Pattern separates letters with a single space.
	Pattern     string   `json:"pattern"`
	Frequencies []string `json:"frequencies"`
}

type MorseSolution struct {
	Word      string `json:"word"`
	Frequency string `json:"frequency"`
}

type MorsePuzzle struct {
	View   MorseView
	Answer MorseSolution
}

func (p *MorsePuzzle) Type() Type       { return TypeMorse }
func (p *MorsePuzzle) DefuserView() any { return p.View }
func (p *MorsePuzzle) Solution() any    { return p.Answer }

type transmitAction struct {
	actionKind
	Frequency string `json:"frequency"`
}

// MorseModule decodes a blinking word and transmits on the frequency it maps to.
type MorseModule struct{}

func (MorseModule) Type() Type { return TypeMorse }

func (MorseModule) Generate(rng *rand.Rand, _ Context) (State, error) {
	entry := pick(rng, morseTable)
	freqs := make([]string, len(morseTable))
	for i, e := range morseTable {
		freqs[i] = e.Frequency
	}
	return &MorsePuzzle{
		View:   MorseView{Pattern: encodeMorse(entry.Word), Frequencies: freqs},
		Answer: MorseSolution{Word: entry.Word, Frequency: entry.Frequency},
	}, nil
}

func (MorseModule) Validate(s State, raw json.RawMessage, _ Env) (Result, error) {
	p, err := stateAs[*MorsePuzzle](s)
	if err != nil {
		return Result{}, err
	}
	act, err := decodeAction[transmitAction](raw)
	if err != nil {
		return Result{}, err
	}
	freq := strings.TrimSpace(act.Frequency)
	if act.Kind != "transmit" || freq == "" {
		return Result{}, invalid("expected transmit with frequency")
	}
	known := false
	for _, e := range morseTable {
		if e.Frequency == freq {
			known = true
			break
		}
	}
	if !known {
		return Result{}, invalid("frequency %s is not on the dial", freq)
	}
	if freq != p.Answer.Frequency {
		return strike("wrong frequency"), nil
	}
	return solved("transmission received"), nil
}

func encodeMorse(word string) string {
	parts := make([]string, 0, len(word))
	for _, r := range strings.ToUpper(word) {
		if code, ok := morseCode[r]; ok {
			parts = append(parts, code)
		}
	}
	return strings.Join(parts, " ")
}
