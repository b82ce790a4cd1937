package puzzle

import (
	"encoding/json"
	"math/rand/v2"
)

const mazeSize = 6

// Wall bits for one cell.
const (
	wallNorth = 1 << iota
	wallEast
	wallSouth
	wallWest
)

type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type MazeView struct {
	Size     int    `json:"size"`
	Position Cell   `json:"position"`
	Goal     Cell   `json:"goal"`
	Markers  []Cell `json:"markers"`
	Moves    int    `json:"moves"`
}

type MazeSolution struct {
	// Walls is indexed [row][col]; each entry is a bitmask of wallNorth|wallEast|wallSouth|wallWest.
	Walls [][]int `json:"walls"`
	Start Cell    `json:"start"`
}

type MazePuzzle struct {
	View   MazeView
	Answer MazeSolution
}

func (p *MazePuzzle) Type() Type       { return TypeMaze }
func (p *MazePuzzle) DefuserView() any { return p.View }
func (p *MazePuzzle) Solution() any    { return p.Answer }

type moveAction struct {
	actionKind
	Direction string `json:"direction"`
}

type mazeStep struct {
	dr, dc    int
	wall      int
	oppositeW int
}

var mazeSteps = map[string]mazeStep{
	"up":    {-1, 0, wallNorth, wallSouth},
	"down":  {1, 0, wallSouth, wallNorth},
	"left":  {0, -1, wallWest, wallEast},
	"right": {0, 1, wallEast, wallWest},
}

var mazeDirections = []string{"up", "down", "left", "right"}

// MazeModule walks a hidden-wall maze from start to goal. The defuser sees only the markers.
type MazeModule struct{}

func (MazeModule) Type() Type { return TypeMaze }

func (MazeModule) Generate(rng *rand.Rand, _ Context) (State, error) {
	walls := carveMaze(rng, mazeSize)
	cells := rng.Perm(mazeSize * mazeSize)
	at := func(i int) Cell { return Cell{Row: cells[i] / mazeSize, Col: cells[i] % mazeSize} }
	start, goal := at(0), at(1)
	return &MazePuzzle{
		View: MazeView{
			Size:     mazeSize,
			Position: start,
			Goal:     goal,
			Markers:  []Cell{at(2), at(3)},
		},
		Answer: MazeSolution{Walls: walls, Start: start},
	}, nil
}

// carveMaze builds a perfect maze with an iterative randomised depth-first search.
func carveMaze(rng *rand.Rand, size int) [][]int {
	walls := make([][]int, size)
	visited := make([][]bool, size)
	for r := range walls {
		walls[r] = make([]int, size)
		visited[r] = make([]bool, size)
		for c := range walls[r] {
			walls[r][c] = wallNorth | wallEast | wallSouth | wallWest
		}
	}
	stack := []Cell{{Row: rng.IntN(size), Col: rng.IntN(size)}}
	visited[stack[0].Row][stack[0].Col] = true
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		var next []string
		for _, d := range mazeDirections {
			st := mazeSteps[d]
			r, c := cur.Row+st.dr, cur.Col+st.dc
			if r >= 0 && r < size && c >= 0 && c < size && !visited[r][c] {
				next = append(next, d)
			}
		}
		if len(next) == 0 {
			stack = stack[:len(stack)-1]
			continue
		}
		st := mazeSteps[pick(rng, next)]
		r, c := cur.Row+st.dr, cur.Col+st.dc
		walls[cur.Row][cur.Col] &^= st.wall
		walls[r][c] &^= st.oppositeW
		visited[r][c] = true
		stack = append(stack, Cell{Row: r, Col: c})
	}
	return walls
}

func (MazeModule) Validate(s State, raw json.RawMessage, _ Env) (Result, error) {
	p, err := stateAs[*MazePuzzle](s)
	if err != nil {
		return Result{}, err
	}
	act, err := decodeAction[moveAction](raw)
	if err != nil {
		return Result{}, err
	}
	st, ok := mazeSteps[act.Direction]
	if act.Kind != "move" || !ok {
		return Result{}, invalid("expected move up, down, left or right")
	}
	pos := p.View.Position
	r, c := pos.Row+st.dr, pos.Col+st.dc
	if r < 0 || r >= p.View.Size || c < 0 || c >= p.View.Size {
		return strike("walked off the edge"), nil
	}
	if p.Answer.Walls[pos.Row][pos.Col]&st.wall != 0 {
		return strike("hit a wall"), nil
	}
	p.View.Position = Cell{Row: r, Col: c}
	p.View.Moves++
	if p.View.Position == p.View.Goal {
		return solved("reached the goal"), nil
	}
	return progress("moved"), nil
}
