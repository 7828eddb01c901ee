package tldfa

import (
	"fmt"
	"unicode/utf8"
)

// Value is the small integer attached to a final state,
// usually a set of acceptance flags.
type Value int

// NoValue marks a state without an attached value.
const NoValue Value = -1

// edge holds all targets registered for a single symbol.
// Only the first target is relevant for lookups, more
// than one target is a transient construction state.
type edge struct {
	sym     rune
	targets []int
}

// State is a node in the automaton.
type State struct {
	id    int
	start bool
	final bool
	value Value

	// Outgoing transitions in insertion order
	edges []edge
}

// ID of the state, which is its index in the state arena.
func (s *State) ID() int {
	return s.id
}

// IsStart is true for the unique start state.
func (s *State) IsStart() bool {
	return s.start
}

// IsFinal is true for accepting states.
func (s *State) IsFinal() bool {
	return s.final
}

// Value attached to the state. This is NoValue,
// if the state is not final or was never tagged.
func (s *State) Value() Value {
	if !s.final {
		return NoValue
	}
	return s.value
}

// Transitions is the number of symbols with outgoing transitions.
func (s *State) Transitions() int {
	return len(s.edges)
}

// Each calls fn for every outgoing transition in insertion order.
func (s *State) Each(fn func(sym rune, target int)) {
	for _, e := range s.edges {
		fn(e.sym, e.targets[0])
	}
}

// Final state without any outgoing transitions
func (s *State) dangling() bool {
	return s.final && len(s.edges) == 0
}

func (s *State) edge(sym rune) *edge {
	for i := range s.edges {
		if s.edges[i].sym == sym {
			return &s.edges[i]
		}
	}
	return nil
}

// Option configures an Automaton.
type Option func(*Automaton)

// Deterministic makes AddTransition fail with ErrAmbiguousTransition
// instead of recording a second target for an existing symbol.
func Deterministic() Option {
	return func(auto *Automaton) {
		auto.deterministic = true
	}
}

// Automaton is a state graph stored in an arena,
// addressed by state ids. Removed states leave
// a nil slot until the arena is renumbered.
type Automaton struct {
	states        []*State
	start         int
	live          int
	deterministic bool
}

// NewAutomaton creates an empty automaton.
func NewAutomaton(opts ...Option) *Automaton {
	auto := &Automaton{
		start: -1,
	}
	for _, opt := range opts {
		opt(auto)
	}
	return auto
}

// Resize the arena when necessary
func (auto *Automaton) resize(id int) {
	if len(auto.states) <= id {
		auto.states = append(auto.states, make([]*State, id-len(auto.states)+1)...)
	}
}

// AddState registers a new state with the given id.
func (auto *Automaton) AddState(id int, start, final bool, value Value) (*State, error) {
	if id < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStateID, id)
	}

	if auto.State(id) != nil {
		return nil, fmt.Errorf("%w: %d", ErrStateExists, id)
	}

	if start && auto.start != -1 {
		return nil, fmt.Errorf("%w: %d is start, %d requested", ErrDuplicateStart, auto.start, id)
	}

	auto.resize(id)
	st := &State{
		id:    id,
		start: start,
		final: final,
		value: value,
	}
	auto.states[id] = st
	auto.live++

	if start {
		auto.start = id
	}
	return st, nil
}

// AddTransition adds a transition from one state to another on sym.
// Missing states are created on demand.
//
// Registering a second, distinct target for the same symbol keeps
// both targets, with the first one winning in lookups. This fails
// with ErrAmbiguousTransition in deterministic mode.
func (auto *Automaton) AddTransition(from, to int, sym rune) error {
	src, err := auto.stateOrNew(from)
	if err != nil {
		return err
	}
	if _, err = auto.stateOrNew(to); err != nil {
		return err
	}

	e := src.edge(sym)
	if e == nil {
		src.edges = append(src.edges, edge{sym: sym, targets: []int{to}})
		return nil
	}

	for _, t := range e.targets {
		if t == to {
			return nil
		}
	}

	if auto.deterministic {
		return fmt.Errorf("%w: state %d on %q (%d, %d)",
			ErrAmbiguousTransition, from, sym, e.targets[0], to)
	}
	e.targets = append(e.targets, to)
	return nil
}

func (auto *Automaton) stateOrNew(id int) (*State, error) {
	if st := auto.State(id); st != nil {
		return st, nil
	}
	return auto.AddState(id, false, false, NoValue)
}

// State returns the state with the given id or nil.
func (auto *Automaton) State(id int) *State {
	if id < 0 || id >= len(auto.states) {
		return nil
	}
	return auto.states[id]
}

// Start returns the start state or nil.
func (auto *Automaton) Start() *State {
	return auto.State(auto.start)
}

// Len is the number of live states.
func (auto *Automaton) Len() int {
	return auto.live
}

// Step returns the target of the transition on sym or nil.
func (auto *Automaton) Step(s *State, sym rune) *State {
	if s == nil {
		return nil
	}
	e := s.edge(sym)
	if e == nil {
		return nil
	}
	return auto.State(e.targets[0])
}

// Accepts checks if the input is part of the language
// recognized by the automaton. Input that is not valid
// UTF-8 is never accepted.
func (auto *Automaton) Accepts(input string) bool {
	t := auto.Start()
	if t == nil || !utf8.ValidString(input) {
		return false
	}
	for _, sym := range input {
		t = auto.Step(t, sym)
		if t == nil {
			return false
		}
	}
	return t.final
}

// IsValid checks that there is exactly one start state,
// at least one final state, and that all states are
// reachable from the start state.
func (auto *Automaton) IsValid() bool {
	if auto.Start() == nil {
		return false
	}

	starts, finals := 0, 0
	for _, st := range auto.states {
		if st == nil {
			continue
		}
		if st.start {
			starts++
		}
		if st.final {
			finals++
		}
	}
	if starts != 1 || finals == 0 {
		return false
	}

	visited, ok := auto.reachable()
	return ok && visited == auto.live
}

// Count all states reachable from the start state.
// This fails if a transition points to a missing state.
func (auto *Automaton) reachable() (int, bool) {
	seen := make([]bool, len(auto.states))
	count := 0
	ok := true
	auto.walk(func(st *State) {
		count++
		for _, e := range st.edges {
			for _, t := range e.targets {
				if auto.State(t) == nil {
					ok = false
				}
			}
		}
	}, seen)
	return count, ok
}

// Walk all states reachable from the start state in depth-first
// preorder, following transitions in insertion order. An explicit
// work stack replaces recursion, so the depth of the automaton
// is not bound by the call stack.
func (auto *Automaton) walk(visit func(*State), seen []bool) {
	if auto.start < 0 {
		return
	}

	stack := []int{auto.start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if seen[id] {
			continue
		}
		seen[id] = true

		st := auto.states[id]
		visit(st)

		// Push in reverse, so the first transition is visited first
		for i := len(st.edges) - 1; i >= 0; i-- {
			for j := len(st.edges[i].targets) - 1; j >= 0; j-- {
				t := st.edges[i].targets[j]
				if t < len(seen) && !seen[t] && auto.states[t] != nil {
					stack = append(stack, t)
				}
			}
		}
	}
}

// Check that no state has more than one target per symbol
func (auto *Automaton) checkDeterministic() error {
	for _, st := range auto.states {
		if st == nil {
			continue
		}
		for _, e := range st.edges {
			if len(e.targets) != 1 {
				return fmt.Errorf("%w: state %d on %q has %d targets",
					ErrAmbiguousTransition, st.id, e.sym, len(e.targets))
			}
		}
	}
	return nil
}
