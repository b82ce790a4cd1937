package difficulty

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/puzzle"
)

//go:embed presets.yaml
var defaultPresets []byte

// ErrUnknownDifficulty is returned when a preset name is not in the catalog.
var ErrUnknownDifficulty = errors.New("unknown difficulty")

// Preset fixes how many puzzles a game gets, which types they are drawn from and how long the timer runs.
type Preset struct {
	Name         string        `yaml:"name" json:"name"`
	Label        string        `yaml:"label" json:"label"`
	Level        int           `yaml:"level" json:"level"`
	PuzzleCount  int           `yaml:"puzzle_count" json:"puzzleCount"`
	TimeSeconds  int           `yaml:"time_seconds" json:"timeSeconds"`
	Pool         []puzzle.Type `yaml:"pool" json:"pool,omitempty"`
	Fixed        []puzzle.Type `yaml:"fixed" json:"fixed,omitempty"`
	AllowRepeats bool          `yaml:"allow_repeats" json:"allowRepeats"`
	// Diagnostic presets unlock skip-puzzle and get-puzzle-solution.
	Diagnostic bool `yaml:"diagnostic" json:"diagnostic"`
}

// Select draws the puzzle types for one game. Fixed presets always return the same ordered set.
func (p Preset) Select(rng *rand.Rand) []puzzle.Type {
	if len(p.Fixed) > 0 {
		return slices.Clone(p.Fixed)
	}
	out := make([]puzzle.Type, 0, p.PuzzleCount)
	if p.AllowRepeats {
		for range p.PuzzleCount {
			out = append(out, p.Pool[rng.IntN(len(p.Pool))])
		}
		return out
	}
	// Without repeats the pool is drawn in shuffled rounds, so a count larger than
	// the pool only repeats once every type has appeared.
	for len(out) < p.PuzzleCount {
		for _, i := range rng.Perm(len(p.Pool)) {
			if len(out) == p.PuzzleCount {
				break
			}
			out = append(out, p.Pool[i])
		}
	}
	return out
}

type perTypeTests struct {
	Prefix      string `yaml:"prefix"`
	Level       int    `yaml:"level"`
	TimeSeconds int    `yaml:"time_seconds"`
}

type fileFormat struct {
	Default      string        `yaml:"default"`
	Presets      []Preset      `yaml:"presets"`
	PerTypeTests *perTypeTests `yaml:"per_type_tests"`
}

// Catalog is the validated, read-only set of presets.
type Catalog struct {
	presets     map[string]Preset
	order       []string
	defaultName string
}

// Load parses presets from path, or from the embedded defaults when path is empty, and
// checks every referenced puzzle type against the registry.
func Load(path string, reg *puzzle.Registry) (*Catalog, error) {
	data := defaultPresets
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read difficulty config: %w", err)
		}
	}
	return Parse(data, reg)
}

// Parse builds a catalog from YAML.
func Parse(data []byte, reg *puzzle.Registry) (*Catalog, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse difficulty config: %w", err)
	}

	presets := f.Presets
	if t := f.PerTypeTests; t != nil {
		for _, typ := range reg.Types() {
			presets = append(presets, Preset{
				Name:        t.Prefix + string(typ),
				Label:       "Test " + string(typ),
				Level:       t.Level,
				PuzzleCount: 1,
				TimeSeconds: t.TimeSeconds,
				Fixed:       []puzzle.Type{typ},
				Diagnostic:  true,
			})
		}
	}

	c := &Catalog{presets: make(map[string]Preset, len(presets))}
	for _, p := range presets {
		if err := validatePreset(&p, reg); err != nil {
			return nil, err
		}
		if _, dup := c.presets[p.Name]; dup {
			return nil, fmt.Errorf("difficulty %q defined twice", p.Name)
		}
		c.presets[p.Name] = p
		c.order = append(c.order, p.Name)
	}
	if len(c.order) == 0 {
		return nil, errors.New("difficulty config defines no presets")
	}

	c.defaultName = f.Default
	if c.defaultName == "" {
		c.defaultName = c.order[0]
	}
	if _, ok := c.presets[c.defaultName]; !ok {
		return nil, fmt.Errorf("default difficulty %q: %w", c.defaultName, ErrUnknownDifficulty)
	}
	return c, nil
}

func validatePreset(p *Preset, reg *puzzle.Registry) error {
	if p.Name == "" {
		return errors.New("difficulty name cannot be empty")
	}
	if p.Label == "" {
		p.Label = p.Name
	}
	if p.Level < 1 {
		p.Level = 1
	}
	if p.PuzzleCount <= 0 {
		return fmt.Errorf("difficulty %q: puzzle_count must be positive", p.Name)
	}
	if p.TimeSeconds <= 0 {
		return fmt.Errorf("difficulty %q: time_seconds must be positive", p.Name)
	}
	if len(p.Fixed) > 0 && len(p.Fixed) != p.PuzzleCount {
		return fmt.Errorf("difficulty %q: fixed lists %d puzzles but puzzle_count is %d", p.Name, len(p.Fixed), p.PuzzleCount)
	}
	if len(p.Fixed) == 0 && len(p.Pool) == 0 {
		return fmt.Errorf("difficulty %q: needs a pool or a fixed list", p.Name)
	}
	for _, t := range append(slices.Clone(p.Pool), p.Fixed...) {
		if _, err := reg.Lookup(t); err != nil {
			return fmt.Errorf("difficulty %q: %w", p.Name, err)
		}
	}
	return nil
}

// Get returns the named preset.
func (c *Catalog) Get(name string) (Preset, error) {
	p, ok := c.presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", ErrUnknownDifficulty, name)
	}
	return p, nil
}

// Default is the preset new rooms start with.
func (c *Catalog) Default() Preset {
	return c.presets[c.defaultName]
}

// All lists presets in file order, generated per-type tests last.
func (c *Catalog) All() []Preset {
	out := make([]Preset, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.presets[name])
	}
	return out
}
