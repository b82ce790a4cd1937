package puzzle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWireToCut(t *testing.T) {
	tests := []struct {
		name   string
		colors []string
		serial string
		want   int
	}{
		{"four wires two red odd serial", []string{colorRed, colorBlue, colorRed, colorWhite}, "AB1CD3", 2},
		{"four wires last yellow no red", []string{colorBlue, colorBlue, colorWhite, colorYellow}, "AB1CD2", 0},
		{"four wires single blue", []string{colorRed, colorBlue, colorWhite, colorBlack}, "AB1CD2", 0},
		{"four wires fallback", []string{colorWhite, colorWhite, colorBlack, colorBlack}, "AB1CD2", 1},
		{"five wires last black odd", []string{colorRed, colorBlue, colorWhite, colorWhite, colorBlack}, "AB1CD7", 3},
		{"five wires no black", []string{colorRed, colorBlue, colorWhite, colorWhite, colorBlue}, "AB1CD2", 1},
		{"six wires no yellow odd", []string{colorRed, colorBlue, colorWhite, colorWhite, colorBlue, colorRed}, "AB1CD5", 2},
		{"six wires no red", []string{colorYellow, colorBlue, colorWhite, colorYellow, colorBlue, colorBlack}, "AB1CD4", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rule := wireToCut(tt.colors, tt.serial)
			assert.Equal(t, tt.want, got, rule)
		})
	}
}

func TestWiresStrikeCutsTheWire(t *testing.T) {
	p := &WiresPuzzle{
		View:   WiresView{Wires: []Wire{{Color: colorRed}, {Color: colorBlue}, {Color: colorWhite}, {Color: colorBlack}}},
		Answer: WiresSolution{CutIndex: 1},
	}
	res, err := WiresModule{}.Validate(p, action("cut", "index", 0), Env{})
	require.NoError(t, err)
	assert.True(t, res.Strike)
	assert.True(t, p.View.Wires[0].Cut)

	_, err = WiresModule{}.Validate(p, action("cut", "index", 0), Env{})
	require.ErrorIs(t, err, ErrInvalidAction)

	_, err = WiresModule{}.Validate(p, action("cut", "index", 9), Env{})
	require.ErrorIs(t, err, ErrInvalidAction)
}

func TestSimonUsesLiveStrikes(t *testing.T) {
	assert.Equal(t, colorBlue, simonTranslate(colorRed, "BC1DF2", 0))
	assert.Equal(t, colorRed, simonTranslate(colorRed, "BC1DF2", 1))
	assert.Equal(t, colorYellow, simonTranslate(colorRed, "BC1DF2", 5))
	assert.Equal(t, colorYellow, simonTranslate(colorRed, "AC1DF2", 1))

	p := &SimonPuzzle{
		View:   SimonView{Flashes: []string{colorRed}, Round: 1, Rounds: 2, Input: []string{}},
		Answer: SimonSolution{Sequence: []string{colorRed, colorGreen}},
	}
	env := Env{SerialNumber: "BC1DF2", Strikes: 1}
	res, err := SimonModule{}.Validate(p, action("press", "color", colorBlue), env)
	require.NoError(t, err)
	assert.True(t, res.Strike)
	assert.Empty(t, p.View.Input)

	res, err = SimonModule{}.Validate(p, action("press", "color", colorRed), env)
	require.NoError(t, err)
	assert.False(t, res.Strike)
	assert.False(t, res.Correct)
	assert.Equal(t, 2, p.View.Round)
	assert.Equal(t, []string{colorRed, colorGreen}, p.View.Flashes)
}

func TestMemoryWrongPressResetsHistory(t *testing.T) {
	stages := []MemoryStage{
		{Display: 1, Labels: [4]int{4, 3, 2, 1}},
		{Display: 1, Labels: [4]int{1, 2, 3, 4}},
		{Display: 3, Labels: [4]int{1, 2, 3, 4}},
		{Display: 2, Labels: [4]int{1, 2, 3, 4}},
		{Display: 1, Labels: [4]int{2, 1, 4, 3}},
	}
	p := &MemoryPuzzle{Answer: MemorySolution{Stages: stages}}
	p.resetToStage(1)

	res, err := MemoryModule{}.Validate(p, action("press", "position", 1), Env{})
	require.NoError(t, err)
	assert.False(t, res.Strike)
	assert.Equal(t, 2, p.View.Stage)
	assert.Equal(t, []MemoryPress{{Position: 1, Label: 3}}, p.View.History)

	// Stage 2 display 1 wants the button labelled 4, which sits at position 3.
	res, err = MemoryModule{}.Validate(p, action("press", "position", 0), Env{})
	require.NoError(t, err)
	assert.True(t, res.Strike)
	assert.Equal(t, 1, p.View.Stage)
	assert.Empty(t, p.View.History)
	assert.Equal(t, stages[0].Labels, p.View.Labels)

	for _, pos := range []int{1, 3, 2, 0} {
		res, err = MemoryModule{}.Validate(p, action("press", "position", pos), Env{})
		require.NoError(t, err)
		require.False(t, res.Strike)
	}
	// Stage 5 display 1 wants the stage 1 label (3), at position 3.
	res, err = MemoryModule{}.Validate(p, action("press", "position", 3), Env{})
	require.NoError(t, err)
	assert.True(t, res.Correct)
}

func TestSwitchesRules(t *testing.T) {
	switches := []Switch{
		{Symbol: "alpha", Housing: colorRed, Positions: 4},
		{Symbol: "alpha", Housing: colorGreen, Positions: 4},
		{Symbol: "delta", Housing: colorYellow, Positions: 3},
		{Symbol: "sigma", Housing: colorBlue, Positions: 3},
	}
	frk := []Indicator{{Label: IndicatorFRK, IsLit: true}}

	assert.NotEmpty(t, switchViolations(switches, []int{0, 0, 0, 0}, nil, nil), "red at top")
	assert.NotEmpty(t, switchViolations(switches, []int{1, 2, 0, 0}, nil, nil), "shared symbol")
	assert.NotEmpty(t, switchViolations(switches, []int{1, 1, 2, 0}, nil, nil), "yellow at bottom")
	assert.NotEmpty(t, switchViolations(switches, []int{1, 1, 0, 1}, nil, frk), "blue with FRK")
	assert.Empty(t, switchViolations(switches, []int{1, 1, 0, 1}, nil, nil))
	assert.NotEmpty(t, switchViolations(switches, []int{1, 1, 0, 0}, []bool{true, true, false, true}, nil), "lights")

	target, searched, err := findTargetConfiguration(switches, nil, frk)
	require.NoError(t, err)
	require.NotNil(t, target)
	assert.Positive(t, searched)
	assert.Empty(t, switchViolations(switches, target, nil, frk))
}

func TestSwitchesSearchIsBounded(t *testing.T) {
	big := make([]Switch, 7)
	for i := range big {
		big[i] = Switch{Symbol: "alpha", Housing: colorGreen, Positions: 4}
	}
	_, _, err := findTargetConfiguration(big, nil, nil)
	require.Error(t, err)
}

func TestSwitchesLockedSwitchCannotMove(t *testing.T) {
	rng := testRNG(21)
	state, err := SwitchesModule{}.Generate(rng, Context{Level: 4, SerialNumber: "AB1CD2"})
	require.NoError(t, err)
	p := state.(*SwitchesPuzzle)

	locked := -1
	for i, sw := range p.View.Switches {
		if sw.Locked {
			locked = i
			assert.Equal(t, p.Answer.Target[i], sw.Position)
		}
	}
	if locked < 0 {
		t.Skip("fallback panel has no locked switches")
	}
	_, err = SwitchesModule{}.Validate(p, action("set", "index", locked, "position", 0), Env{})
	require.ErrorIs(t, err, ErrInvalidAction)
}

func TestSwitchesNeverStartSolved(t *testing.T) {
	for seed := uint64(1); seed <= 50; seed++ {
		rng := testRNG(seed)
		ctx := Context{Level: 3, SerialNumber: GenerateSerial(rng), Indicators: GenerateIndicators(rng)}
		state, err := SwitchesModule{}.Generate(rng, ctx)
		require.NoError(t, err)
		res, err := SwitchesModule{}.Validate(state, action("confirm"), Env{Indicators: ctx.Indicators})
		require.NoError(t, err)
		require.True(t, res.Strike, "seed %d", seed)
	}
}

func TestCipherShift(t *testing.T) {
	assert.Equal(t, 3, cipherShift("AB1CD3", nil))
	assert.Equal(t, 1, cipherShift("AB1CD0", nil))
	lit := []Indicator{{Label: "SND", IsLit: true}, {Label: "CLR", IsLit: true, IsFlickering: true}}
	assert.Equal(t, -5, cipherShift("AB1CD3", lit))

	assert.Equal(t, "DSSOH", caesar("APPLE", 3))
	assert.Equal(t, "XMMIB", caesar("APPLE", -3))
}

func TestCipherAcceptsAnyCase(t *testing.T) {
	p := &CipherPuzzle{View: CipherView{Encrypted: "DSSOH"}, Answer: CipherSolution{Word: "APPLE", Shift: 3}}
	res, err := CipherModule{}.Validate(p, action("submit", "answer", "  apple "), Env{})
	require.NoError(t, err)
	assert.True(t, res.Correct)

	res, err = CipherModule{}.Validate(p, action("submit", "answer", "pear"), Env{})
	require.NoError(t, err)
	assert.True(t, res.Strike)
}

func TestButtonRule(t *testing.T) {
	frk := []Indicator{{Label: IndicatorFRK, IsLit: true}}
	car := []Indicator{{Label: IndicatorCAR, IsLit: true}}
	two := []Indicator{{Label: "SND", IsLit: true}, {Label: "BOB", IsLit: true}}

	tests := []struct {
		name       string
		color      string
		label      string
		indicators []Indicator
		hold       bool
	}{
		{"blue abort", colorBlue, "ABORT", frk, true},
		{"detonate two lit", colorWhite, "DETONATE", two, false},
		{"white car", colorWhite, "PRESS", car, true},
		{"frk lit", colorYellow, "PRESS", frk, false},
		{"yellow", colorYellow, "PRESS", nil, true},
		{"red hold", colorRed, "HOLD", nil, false},
		{"otherwise", colorRed, "PRESS", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hold, _ := buttonRule(tt.color, tt.label, tt.indicators)
			assert.Equal(t, tt.hold, hold)
		})
	}
}

func TestButtonReleaseDigit(t *testing.T) {
	assert.True(t, countdownContains(245, 4))  // 4:05
	assert.False(t, countdownContains(125, 4)) // 2:05
	assert.True(t, countdownContains(61, 1))   // 1:01
	assert.True(t, countdownContains(5, 5))    // 0:05

	p := &ButtonPuzzle{
		View:   ButtonView{Color: colorBlue, Label: "ABORT"},
		Answer: ButtonSolution{Hold: true, Strip: colorBlue, ReleaseOn: 4},
	}
	_, err := ButtonModule{}.Validate(p, action("release"), Env{})
	require.ErrorIs(t, err, ErrInvalidAction)

	res, err := ButtonModule{}.Validate(p, action("hold"), Env{})
	require.NoError(t, err)
	assert.False(t, res.Strike)
	assert.Equal(t, colorBlue, p.View.Strip)

	res, err = ButtonModule{}.Validate(p, action("release"), Env{TimeRemaining: 125})
	require.NoError(t, err)
	assert.True(t, res.Strike)
	assert.False(t, p.View.Held)

	_, err = ButtonModule{}.Validate(p, action("hold"), Env{})
	require.NoError(t, err)
	res, err = ButtonModule{}.Validate(p, action("release"), Env{TimeRemaining: 245})
	require.NoError(t, err)
	assert.True(t, res.Correct)
}

func TestPasswordHasExactlyOneWord(t *testing.T) {
	for seed := uint64(1); seed <= 100; seed++ {
		rng := testRNG(seed)
		state, err := PasswordModule{}.Generate(rng, Context{Level: 1 + int(seed%4)})
		require.NoError(t, err)
		p := state.(*PasswordPuzzle)

		var formableWords []string
		for _, w := range passwordWords {
			if formable(p.View.Columns, w) {
				formableWords = append(formableWords, w)
			}
		}
		require.Equal(t, []string{p.Answer.Word}, formableWords, "seed %d", seed)
		require.NotEqual(t, p.Answer.Word, p.View.Current)
	}
}

func TestMorsePattern(t *testing.T) {
	assert.Equal(t, "... .... . .-.. .-..", encodeMorse("shell"))

	p := &MorsePuzzle{Answer: MorseSolution{Word: "SHELL", Frequency: "3.505"}}
	_, err := MorseModule{}.Validate(p, action("transmit", "frequency", "9.999"), Env{})
	require.ErrorIs(t, err, ErrInvalidAction)

	res, err := MorseModule{}.Validate(p, action("transmit", "frequency", "3.600"), Env{})
	require.NoError(t, err)
	assert.True(t, res.Strike)
}

func TestMazeWallsStrikeWithoutMoving(t *testing.T) {
	walls := make([][]int, 2)
	for r := range walls {
		walls[r] = make([]int, 2)
	}
	walls[0][0] = wallNorth | wallWest | wallSouth
	walls[0][1] = wallNorth | wallEast
	walls[1][0] = wallNorth | wallWest | wallSouth
	walls[1][1] = wallEast | wallSouth
	p := &MazePuzzle{
		View:   MazeView{Size: 2, Position: Cell{0, 0}, Goal: Cell{1, 0}},
		Answer: MazeSolution{Walls: walls},
	}

	res, err := MazeModule{}.Validate(p, action("move", "direction", "down"), Env{})
	require.NoError(t, err)
	assert.True(t, res.Strike)
	assert.Equal(t, Cell{0, 0}, p.View.Position)

	res, err = MazeModule{}.Validate(p, action("move", "direction", "left"), Env{})
	require.NoError(t, err)
	assert.True(t, res.Strike)

	for _, dir := range []string{"right", "down", "left"} {
		res, err = MazeModule{}.Validate(p, action("move", "direction", dir), Env{})
		require.NoError(t, err)
		require.False(t, res.Strike, dir)
	}
	assert.True(t, res.Correct)
	assert.Equal(t, 3, p.View.Moves)
}

func TestCarveMazeIsPerfect(t *testing.T) {
	walls := carveMaze(testRNG(5), mazeSize)
	open := 0
	for r := range walls {
		for c := range walls[r] {
			if walls[r][c]&wallEast == 0 {
				open++
			}
			if walls[r][c]&wallSouth == 0 {
				open++
			}
		}
	}
	// A spanning tree over 36 cells has 35 passages.
	assert.Equal(t, mazeSize*mazeSize-1, open)
}

func TestWhosOnFirstWrongPressKeepsStage(t *testing.T) {
	stage := WhosOnFirstStage{Display: "YES", Buttons: []string{"READY", "FIRST", "NO", "BLANK", "NOTHING", "YES"}}
	// YES reads position 2 (NO); NO's list starts BLANK.
	assert.Equal(t, "BLANK", whosOnFirstAnswer(stage))

	p := &WhosOnFirstPuzzle{Answer: WhosOnFirstSolution{
		Stages:  []WhosOnFirstStage{stage, stage, stage},
		Answers: []string{"BLANK", "BLANK", "BLANK"},
	}}
	p.showStage(1)

	res, err := WhosOnFirstModule{}.Validate(p, action("press", "label", "yes"), Env{})
	require.NoError(t, err)
	assert.True(t, res.Strike)
	assert.Equal(t, 1, p.View.Stage)
	assert.Equal(t, stage.Buttons, p.View.Buttons)

	_, err = WhosOnFirstModule{}.Validate(p, action("press", "label", "LEFT"), Env{})
	require.ErrorIs(t, err, ErrInvalidAction)
}

func TestComplicatedWires(t *testing.T) {
	assert.Equal(t, "C", vennLetter(ComplicatedWire{}))
	assert.Equal(t, "D", vennLetter(ComplicatedWire{Red: true, Blue: true, Star: true, LED: true}))
	assert.Equal(t, "P", vennLetter(ComplicatedWire{Blue: true, LED: true}))
	assert.Equal(t, "B", vennLetter(ComplicatedWire{Star: true, LED: true}))
	assert.Equal(t, "S", vennLetter(ComplicatedWire{Red: true}))

	frk := []Indicator{{Label: IndicatorFRK, IsLit: true}}
	assert.True(t, vennCut("S", "AB1CD4", nil))
	assert.False(t, vennCut("S", "AB1CD3", nil))
	assert.True(t, vennCut("P", "AB1CD3", frk))
	assert.False(t, vennCut("B", "AB1CD3", frk))

	p := &ComplicatedWiresPuzzle{
		View:   ComplicatedWiresView{Wires: make([]ComplicatedWire, 3)},
		Answer: ComplicatedWiresSolution{Required: []bool{true, false, true}},
	}
	res, err := ComplicatedWiresModule{}.Validate(p, action("cut", "index", 0), Env{})
	require.NoError(t, err)
	assert.False(t, res.Correct)
	assert.False(t, res.Strike)

	res, err = ComplicatedWiresModule{}.Validate(p, action("cut", "index", 1), Env{})
	require.NoError(t, err)
	assert.True(t, res.Strike)

	_, err = ComplicatedWiresModule{}.Validate(p, action("cut", "index", 1), Env{})
	require.ErrorIs(t, err, ErrInvalidAction)

	res, err = ComplicatedWiresModule{}.Validate(p, action("cut", "index", 2), Env{})
	require.NoError(t, err)
	assert.True(t, res.Correct)
}

func TestComplicatedWiresAlwaysNeedACut(t *testing.T) {
	for seed := uint64(1); seed <= 100; seed++ {
		rng := testRNG(seed)
		ctx := Context{Level: 2, SerialNumber: GenerateSerial(rng), Indicators: GenerateIndicators(rng)}
		state, err := ComplicatedWiresModule{}.Generate(rng, ctx)
		require.NoError(t, err)
		assert.Contains(t, state.(*ComplicatedWiresPuzzle).Answer.Required, true)
	}
}
