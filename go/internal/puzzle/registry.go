package puzzle

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
)

// Module is one puzzle type: a generator and the only validator allowed to mutate its state.
type Module interface {
	Type() Type
	Generate(rng *rand.Rand, ctx Context) (State, error)
	Validate(state State, action json.RawMessage, env Env) (Result, error)
}

// Registry is the dispatch table from puzzle type to module. It is built once at startup
// and handed to whoever needs it.
type Registry struct {
	modules map[Type]Module
	order   []Type
}

// NewRegistry builds a registry, rejecting empty and duplicate types.
func NewRegistry(modules ...Module) (*Registry, error) {
	r := &Registry{modules: make(map[Type]Module, len(modules))}
	for _, m := range modules {
		t := m.Type()
		if t == "" {
			return nil, fmt.Errorf("puzzle module type cannot be empty")
		}
		if _, exists := r.modules[t]; exists {
			return nil, fmt.Errorf("puzzle module already registered for type %q", t)
		}
		r.modules[t] = m
		r.order = append(r.order, t)
	}
	return r, nil
}

// DefaultRegistry returns a registry holding all twelve puzzle modules.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(
		WiresModule{},
		KeypadModule{},
		SimonModule{},
		MemoryModule{},
		SwitchesModule{},
		CipherModule{},
		ButtonModule{},
		PasswordModule{},
		MorseModule{},
		MazeModule{},
		WhosOnFirstModule{},
		ComplicatedWiresModule{},
	)
	if err != nil {
		panic(err)
	}
	return r
}

// Types lists registered types in registration order.
func (r *Registry) Types() []Type {
	return append([]Type(nil), r.order...)
}

// Lookup returns the module for t or ErrUnknownPuzzleType.
func (r *Registry) Lookup(t Type) (Module, error) {
	m, ok := r.modules[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPuzzleType, t)
	}
	return m, nil
}

// Generate runs the generator registered for t.
func (r *Registry) Generate(t Type, rng *rand.Rand, ctx Context) (State, error) {
	m, err := r.Lookup(t)
	if err != nil {
		return nil, err
	}
	state, err := m.Generate(rng, ctx)
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", t, err)
	}
	return state, nil
}

// Validate dispatches action to the module owning inst.
func (r *Registry) Validate(inst *Instance, action json.RawMessage, env Env) (Result, error) {
	m, err := r.Lookup(inst.Type)
	if err != nil {
		return Result{}, err
	}
	if inst.State == nil || inst.State.Type() != inst.Type {
		return Result{}, fmt.Errorf("%w: instance %s", ErrStateMismatch, inst.ID)
	}
	return m.Validate(inst.State, action, env)
}

// stateAs narrows a State to the concrete type a module expects.
func stateAs[T State](s State) (T, error) {
	typed, ok := s.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: got %T", ErrStateMismatch, s)
	}
	return typed, nil
}
