package puzzle

import (
	"encoding/json"
	"math/rand/v2"
	"strings"
)

var cipherWords = []string{
	"APPLE", "BRAVE", "CHAIR", "DANCE", "EAGLE", "FLAME", "GHOST", "HEART",
	"IVORY", "JOKER", "KNIFE", "LEMON", "MONEY", "NIGHT", "OCEAN", "PIANO",
	"QUEEN", "RIVER", "STONE", "TIGER", "UNCLE", "VOICE", "WATER", "YOUTH",
}

type CipherView struct {
	Encrypted string `json:"encrypted"`
}

type CipherSolution struct {
	Word  string `json:"word"`
	Shift int    `json:"shift"`
}

type CipherPuzzle struct {
	View   CipherView
	Answer CipherSolution
}

func (p *CipherPuzzle) Type() Type       { return TypeCipher }
func (p *CipherPuzzle) DefuserView() any { return p.View }
func (p *CipherPuzzle) Solution() any    { return p.Answer }

type submitAnswerAction struct {
	actionKind
	Answer string `json:"answer"`
}

// CipherModule decodes a Caesar-shifted word. The shift comes from the serial and the indicators.
type CipherModule struct{}

func (CipherModule) Type() Type { return TypeCipher }

func (CipherModule) Generate(rng *rand.Rand, ctx Context) (State, error) {
	word := pick(rng, cipherWords)
	shift := cipherShift(ctx.SerialNumber, ctx.Indicators)
	return &CipherPuzzle{
		View:   CipherView{Encrypted: caesar(word, shift)},
		Answer: CipherSolution{Word: word, Shift: shift},
	}, nil
}

func (CipherModule) Validate(s State, raw json.RawMessage, _ Env) (Result, error) {
	p, err := stateAs[*CipherPuzzle](s)
	if err != nil {
		return Result{}, err
	}
	act, err := decodeAction[submitAnswerAction](raw)
	if err != nil {
		return Result{}, err
	}
	if act.Kind != "submit" || strings.TrimSpace(act.Answer) == "" {
		return Result{}, invalid("expected submit with answer")
	}
	if normalizeWord(act.Answer) != p.Answer.Word {
		return strike("wrong word"), nil
	}
	return solved("word decoded"), nil
}

// cipherShift is the signed shift applied when encrypting. Flickering indicators reverse it.
func cipherShift(serial string, indicators []Indicator) int {
	shift := (LastDigit(serial) + LitCount(indicators)) % 26
	if shift == 0 {
		shift = 1
	}
	if AnyFlickering(indicators) {
		shift = -shift
	}
	return shift
}

func caesar(word string, shift int) string {
	shift = ((shift % 26) + 26) % 26
	out := []byte(word)
	for i, c := range out {
		if c >= 'A' && c <= 'Z' {
			out[i] = 'A' + (c-'A'+byte(shift))%26
		}
	}
	return string(out)
}
