package tldfa

import (
	"fmt"
	"sort"
	"unicode/utf8"
)

// DFA is the finalized, immutable automaton.
// States are numbered densely, the start state has id 0.
type DFA struct {
	auto  *Automaton
	sinks []int
}

// Finalize coalesces all final states without outgoing
// transitions into canonical accept states, removes the
// coalesced states and renumbers the remaining states
// in depth-first order.
//
// Dangling states are coalesced per attached value instead of
// into one single canonical accept state, so values survive
// finalization. An untagged language still ends up with exactly
// one canonical accept state, a language with n distinct values
// on its dangling states with n of them (see AcceptStates and
// Metadata.AcceptIDs).
//
// Finalize runs once. Subsequent calls return the same DFA.
func (trie *Trie) Finalize() (*DFA, error) {
	trie.mu.Lock()
	defer trie.mu.Unlock()

	if trie.dfa != nil {
		return trie.dfa, nil
	}

	auto := trie.auto

	if !auto.IsValid() {
		return nil, fmt.Errorf("%w: can't finalize", ErrInvalidAutomaton)
	}

	if err := auto.checkDeterministic(); err != nil {
		return nil, err
	}

	sinks, err := auto.coalesce()
	if err != nil {
		return nil, err
	}

	if !auto.IsValid() {
		return nil, fmt.Errorf("%w: coalesced automaton has unreachable states", ErrInvalidAutomaton)
	}

	if err = auto.renumber(); err != nil {
		return nil, err
	}

	auto.deterministic = true

	dfa := &DFA{
		auto:  auto,
		sinks: make([]int, 0, len(sinks)),
	}
	for _, st := range sinks {
		dfa.sinks = append(dfa.sinks, st.id)
	}
	sort.Ints(dfa.sinks)

	trie.dfa = dfa
	return dfa, nil
}

// Redirect all transitions targeting dangling states to the
// canonical accept state for their value and remove the
// dangling states. Returns the canonical accept states.
func (auto *Automaton) coalesce() ([]*State, error) {
	byValue := make(map[Value]*State)
	sinks := make([]*State, 0, 1)

	var dangling []int
	var err error

	// Sinks are appended to the arena beyond the seen list,
	// so the walk never descends into them.
	seen := make([]bool, len(auto.states))

	auto.walk(func(st *State) {
		for i := range st.edges {
			target := auto.states[st.edges[i].targets[0]]

			if !target.dangling() || target.id >= len(seen) {
				continue
			}

			sink, ok := byValue[target.value]
			if !ok {
				sink, err = auto.AddState(len(auto.states), false, true, target.value)
				if err != nil {
					return
				}
				byValue[target.value] = sink
				sinks = append(sinks, sink)
			}

			st.edges[i].targets[0] = sink.id

			if !seen[target.id] {
				seen[target.id] = true
				dangling = append(dangling, target.id)
			}
		}
	}, seen)

	if err != nil {
		return nil, err
	}

	for _, id := range dangling {
		auto.states[id] = nil
		auto.live--
	}

	return sinks, nil
}

// Renumber all live states densely in depth-first order,
// starting with the start state at id 0.
func (auto *Automaton) renumber() error {
	order := make([]*State, 0, auto.live)
	auto.walk(func(st *State) {
		order = append(order, st)
	}, make([]bool, len(auto.states)))

	if len(order) != auto.live {
		return fmt.Errorf("%w: renumbered %d of %d states", ErrStructural, len(order), auto.live)
	}

	remap := make([]int, len(auto.states))
	for i := range remap {
		remap[i] = -1
	}
	for n, st := range order {
		remap[st.id] = n
	}

	for n, st := range order {
		st.id = n
		for i := range st.edges {
			for j, t := range st.edges[i].targets {
				st.edges[i].targets[j] = remap[t]
			}
		}
	}

	auto.states = order
	auto.start = remap[auto.start]

	if auto.start != 0 || !auto.states[0].start {
		return fmt.Errorf("%w: first state is not the start state", ErrStructural)
	}
	return nil
}

// Len is the number of states.
func (dfa *DFA) Len() int {
	return dfa.auto.Len()
}

// State returns the state with the given id or nil.
func (dfa *DFA) State(id int) *State {
	return dfa.auto.State(id)
}

// Start returns the start state.
func (dfa *DFA) Start() *State {
	return dfa.auto.Start()
}

// Step returns the target of the transition on sym or nil.
func (dfa *DFA) Step(s *State, sym rune) *State {
	return dfa.auto.Step(s, sym)
}

// Accepts checks if the input is part of the language.
func (dfa *DFA) Accepts(input string) bool {
	return dfa.auto.Accepts(input)
}

// Lookup returns the value attached to the input,
// and whether the input is accepted at all.
func (dfa *DFA) Lookup(input string) (Value, bool) {
	if !utf8.ValidString(input) {
		return NoValue, false
	}
	t := dfa.auto.Start()
	for _, sym := range input {
		t = dfa.auto.Step(t, sym)
		if t == nil {
			return NoValue, false
		}
	}
	if !t.final {
		return NoValue, false
	}
	return t.value, true
}

// IsValid checks the automaton invariants.
func (dfa *DFA) IsValid() bool {
	return dfa.auto.IsValid()
}

// Language lists all accepted words in depth-first order.
func (dfa *DFA) Language() []string {
	return dfa.auto.language()
}

// AcceptStates lists the ids of the canonical accept states.
func (dfa *DFA) AcceptStates() []int {
	return append([]int(nil), dfa.sinks...)
}
