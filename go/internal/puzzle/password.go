package puzzle

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
)

var passwordWords = []string{
	"ABOUT", "AFTER", "AGAIN", "BELOW", "COULD", "EVERY", "FIRST", "FOUND", "GREAT",
	"HOUSE", "LARGE", "LEARN", "NEVER", "OTHER", "PLACE", "PLANT", "POINT", "RIGHT",
	"SMALL", "SOUND", "SPELL", "STILL", "STUDY", "THEIR", "THERE", "THESE", "THING",
	"THINK", "THREE", "WATER", "WHERE", "WHICH", "WORLD", "WOULD", "WRITE",
}

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

type PasswordView struct {
	Columns [][]string `json:"columns"`
	// Selected holds the index of the letter showing in each column.
	Selected []int  `json:"selected"`
	Current  string `json:"current"`
}

type PasswordSolution struct {
	Word string `json:"word"`
}

type PasswordPuzzle struct {
	View   PasswordView
	Answer PasswordSolution
}

func (p *PasswordPuzzle) Type() Type       { return TypePassword }
func (p *PasswordPuzzle) DefuserView() any { return p.View }
func (p *PasswordPuzzle) Solution() any    { return p.Answer }

type cycleAction struct {
	actionKind
	Column    *int   `json:"column"`
	Direction string `json:"direction"`
}

// PasswordModule spins letter columns until they spell the one dictionary word they can form.
type PasswordModule struct{}

func (PasswordModule) Type() Type { return TypePassword }

func (PasswordModule) Generate(rng *rand.Rand, ctx Context) (State, error) {
	size := 5
	if ctx.Level >= 3 {
		size = 6
	}
	word := pick(rng, passwordWords)
	columns, err := passwordColumns(rng, word, size)
	if err != nil {
		return nil, err
	}
	p := &PasswordPuzzle{
		View:   PasswordView{Columns: columns, Selected: make([]int, len(columns))},
		Answer: PasswordSolution{Word: word},
	}
	for i := range p.View.Selected {
		p.View.Selected[i] = rng.IntN(size)
	}
	if p.current() == word {
		p.View.Selected[0] = (p.View.Selected[0] + 1) % size
	}
	p.View.Current = p.current()
	return p, nil
}

// passwordColumns fills each column with the answer letter plus random letters, then
// blocks every other formable word by swapping one of its letters for a letter no
// dictionary word uses at that position. Swaps never make a new word formable.
func passwordColumns(rng *rand.Rand, word string, size int) ([][]string, error) {
	columns := make([][]string, len(word))
	for i := range word {
		letters := []string{string(word[i])}
		for _, j := range rng.Perm(len(alphabet)) {
			if len(letters) == size {
				break
			}
			if l := string(alphabet[j]); !slices.Contains(letters, l) {
				letters = append(letters, l)
			}
		}
		rng.Shuffle(len(letters), func(a, b int) { letters[a], letters[b] = letters[b], letters[a] })
		columns[i] = letters
	}

	for _, other := range passwordWords {
		if other == word || !formable(columns, other) {
			continue
		}
		blocked := false
		for j := range other {
			if other[j] == word[j] {
				continue
			}
			spare := unusedLetters(j, columns[j])
			if len(spare) == 0 {
				continue
			}
			idx := slices.Index(columns[j], string(other[j]))
			columns[j][idx] = pick(rng, spare)
			blocked = true
			break
		}
		if !blocked {
			return nil, fmt.Errorf("cannot block %s while keeping %s formable", other, word)
		}
	}
	return columns, nil
}

func unusedLetters(pos int, column []string) []string {
	var out []string
	for _, c := range alphabet {
		l := string(c)
		if slices.Contains(column, l) {
			continue
		}
		used := false
		for _, w := range passwordWords {
			if w[pos] == byte(c) {
				used = true
				break
			}
		}
		if !used {
			out = append(out, l)
		}
	}
	return out
}

func formable(columns [][]string, word string) bool {
	if len(word) != len(columns) {
		return false
	}
	for i := range word {
		if !slices.Contains(columns[i], string(word[i])) {
			return false
		}
	}
	return true
}

func (p *PasswordPuzzle) current() string {
	var b strings.Builder
	for i, col := range p.View.Columns {
		b.WriteString(col[p.View.Selected[i]])
	}
	return b.String()
}

func (PasswordModule) Validate(s State, raw json.RawMessage, _ Env) (Result, error) {
	p, err := stateAs[*PasswordPuzzle](s)
	if err != nil {
		return Result{}, err
	}
	act, err := decodeAction[cycleAction](raw)
	if err != nil {
		return Result{}, err
	}
	switch act.Kind {
	case "cycle":
		if act.Column == nil || *act.Column < 0 || *act.Column >= len(p.View.Columns) {
			return Result{}, invalid("column out of range")
		}
		col := *act.Column
		n := len(p.View.Columns[col])
		switch act.Direction {
		case "up":
			p.View.Selected[col] = (p.View.Selected[col] + n - 1) % n
		case "down":
			p.View.Selected[col] = (p.View.Selected[col] + 1) % n
		default:
			return Result{}, invalid("direction must be up or down")
		}
		p.View.Current = p.current()
		return progress("column cycled"), nil
	case "submit":
		if p.current() != p.Answer.Word {
			return strike(fmt.Sprintf("%s is not the password", p.current())), nil
		}
		return solved("password accepted"), nil
	default:
		return Result{}, invalid("unknown password action %q", act.Kind)
	}
}
