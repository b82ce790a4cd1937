package puzzle

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func action(kind string, kv ...any) json.RawMessage {
	m := map[string]any{"kind": kind}
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i].(string)] = kv[i+1]
	}
	b, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	return b
}

func testRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// solveSteps returns the actions that solve inst, computed from its hidden solution.
func solveSteps(t *testing.T, inst *Instance, env *Env) {
	t.Helper()
	reg := DefaultRegistry()
	apply := func(raw json.RawMessage) Result {
		t.Helper()
		res, err := reg.Validate(inst, raw, *env)
		require.NoError(t, err, "action %s", raw)
		require.False(t, res.Strike, "action %s struck: %s", raw, res.Message)
		return res
	}
	var last Result
	switch p := inst.State.(type) {
	case *WiresPuzzle:
		last = apply(action("cut", "index", p.Answer.CutIndex))
	case *KeypadPuzzle:
		for _, sym := range p.Answer.Order {
			last = apply(action("press", "symbol", sym))
		}
	case *SimonPuzzle:
		for round := 1; round <= p.View.Rounds; round++ {
			for k := 0; k < round; k++ {
				last = apply(action("press", "color", simonTranslate(p.Answer.Sequence[k], env.SerialNumber, env.Strikes)))
			}
		}
	case *MemoryPuzzle:
		for range memoryStages {
			pos, err := memoryAnswer(p.View.Stage, p.View.Display, p.View.Labels, p.View.History)
			require.NoError(t, err)
			last = apply(action("press", "position", pos))
		}
	case *SwitchesPuzzle:
		for i, sw := range p.View.Switches {
			if !sw.Locked {
				apply(action("set", "index", i, "position", p.Answer.Target[i]))
			}
		}
		last = apply(action("confirm"))
	case *CipherPuzzle:
		last = apply(action("submit", "answer", strings.ToLower(p.Answer.Word)))
	case *ButtonPuzzle:
		if !p.Answer.Hold {
			last = apply(action("tap"))
			break
		}
		apply(action("hold"))
		env.TimeRemaining = p.Answer.ReleaseOn*60 + 7
		last = apply(action("release"))
	case *PasswordPuzzle:
		for i, col := range p.View.Columns {
			for col[p.View.Selected[i]] != string(p.Answer.Word[i]) {
				apply(action("cycle", "column", i, "direction", "down"))
			}
		}
		last = apply(action("submit"))
	case *MorsePuzzle:
		last = apply(action("transmit", "frequency", p.Answer.Frequency))
	case *MazePuzzle:
		for _, dir := range mazePath(p) {
			last = apply(action("move", "direction", dir))
		}
	case *WhosOnFirstPuzzle:
		for range p.View.Stages {
			last = apply(action("press", "label", p.Answer.Answers[p.View.Stage-1]))
		}
	case *ComplicatedWiresPuzzle:
		for i, req := range p.Answer.Required {
			if req {
				last = apply(action("cut", "index", i))
			}
		}
	default:
		t.Fatalf("no solver for %T", p)
	}
	require.True(t, last.Correct, "%s not solved: %s", inst.Type, last.Message)
}

// mazePath finds the route from the current position to the goal with a breadth-first search.
func mazePath(p *MazePuzzle) []string {
	type node struct {
		cell Cell
		path []string
	}
	seen := map[Cell]bool{p.View.Position: true}
	queue := []node{{cell: p.View.Position}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.cell == p.View.Goal {
			return cur.path
		}
		for _, d := range mazeDirections {
			st := mazeSteps[d]
			if p.Answer.Walls[cur.cell.Row][cur.cell.Col]&st.wall != 0 {
				continue
			}
			next := Cell{Row: cur.cell.Row + st.dr, Col: cur.cell.Col + st.dc}
			if seen[next] {
				continue
			}
			seen[next] = true
			queue = append(queue, node{cell: next, path: append(append([]string(nil), cur.path...), d)})
		}
	}
	return nil
}

func TestEveryPuzzleTypeIsSolvable(t *testing.T) {
	reg := DefaultRegistry()
	for _, typ := range AllTypes() {
		for seed := uint64(1); seed <= 40; seed++ {
			t.Run(fmt.Sprintf("%s/%d", typ, seed), func(t *testing.T) {
				rng := testRNG(seed)
				ctx := Context{
					Level:        1 + int(seed%4),
					SerialNumber: GenerateSerial(rng),
					Indicators:   GenerateIndicators(rng),
				}
				state, err := reg.Generate(typ, rng, ctx)
				require.NoError(t, err)
				require.Equal(t, typ, state.Type())
				inst := &Instance{ID: "p1", Type: typ, State: state}
				env := Env{SerialNumber: ctx.SerialNumber, Indicators: ctx.Indicators, TimeRemaining: 300}
				solveSteps(t, inst, &env)
			})
		}
	}
}

func TestRegistryRejectsDuplicateAndEmptyTypes(t *testing.T) {
	_, err := NewRegistry(WiresModule{}, WiresModule{})
	require.Error(t, err)

	_, err = NewRegistry(emptyModule{})
	require.Error(t, err)

	reg, err := NewRegistry(WiresModule{}, KeypadModule{})
	require.NoError(t, err)
	assert.Equal(t, []Type{TypeWires, TypeKeypad}, reg.Types())
}

type emptyModule struct{ WiresModule }

func (emptyModule) Type() Type { return "" }

func TestRegistryUnknownType(t *testing.T) {
	reg, err := NewRegistry(WiresModule{})
	require.NoError(t, err)

	_, err = reg.Generate(TypeMaze, testRNG(1), Context{})
	require.ErrorIs(t, err, ErrUnknownPuzzleType)

	_, err = reg.Validate(&Instance{ID: "x", Type: "bogus"}, action("cut", "index", 0), Env{})
	require.ErrorIs(t, err, ErrUnknownPuzzleType)
}

func TestRegistryStateMismatch(t *testing.T) {
	reg := DefaultRegistry()
	state, err := reg.Generate(TypeKeypad, testRNG(3), Context{Level: 1, SerialNumber: "AB1CD2"})
	require.NoError(t, err)

	_, err = reg.Validate(&Instance{ID: "x", Type: TypeWires, State: state}, action("cut", "index", 0), Env{})
	require.ErrorIs(t, err, ErrStateMismatch)
}

func TestMalformedActionsAreInvalid(t *testing.T) {
	reg := DefaultRegistry()
	for _, typ := range AllTypes() {
		state, err := reg.Generate(typ, testRNG(7), Context{Level: 2, SerialNumber: "AB1CD2"})
		require.NoError(t, err)
		inst := &Instance{ID: "x", Type: typ, State: state}

		_, err = reg.Validate(inst, json.RawMessage(`{not json`), Env{})
		assert.ErrorIs(t, err, ErrInvalidAction, typ)

		_, err = reg.Validate(inst, action("explode"), Env{})
		assert.ErrorIs(t, err, ErrInvalidAction, typ)

		_, err = reg.Validate(inst, nil, Env{})
		assert.ErrorIs(t, err, ErrInvalidAction, typ)
	}
}

func TestInstanceJSONHidesSolution(t *testing.T) {
	state, err := DefaultRegistry().Generate(TypeCipher, testRNG(9), Context{Level: 1, SerialNumber: "AB1CD4"})
	require.NoError(t, err)
	inst := &Instance{ID: "p1", Type: TypeCipher, State: state}

	b, err := json.Marshal(inst)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "p1", out["id"])
	assert.Equal(t, "cipher", out["type"])
	assert.Contains(t, out, "defuserView")
	assert.NotContains(t, string(b), state.(*CipherPuzzle).Answer.Word)
}

func TestGenerateSerialEndsInDigit(t *testing.T) {
	rng := testRNG(11)
	for range 200 {
		s := GenerateSerial(rng)
		require.Len(t, s, 6)
		last := s[len(s)-1]
		require.True(t, last >= '0' && last <= '9', s)
	}
}

func TestGenerateIndicatorsAreDistinct(t *testing.T) {
	rng := testRNG(12)
	for range 200 {
		inds := GenerateIndicators(rng)
		require.NotEmpty(t, inds)
		require.LessOrEqual(t, len(inds), 3)
		seen := map[string]bool{}
		for _, ind := range inds {
			require.False(t, seen[ind.Label])
			seen[ind.Label] = true
			if ind.IsFlickering {
				require.True(t, ind.IsLit)
			}
		}
	}
}
