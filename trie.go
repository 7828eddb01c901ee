package tldfa

import (
	"fmt"
	"sync"
	"unicode/utf8"
)

// Entry is a word of the recognized language,
// optionally tagged with a value.
type Entry struct {
	Word  string
	Value Value
}

// TrieOption configures a Trie.
type TrieOption func(*Trie)

// RejectDuplicates makes the trie refuse to re-insert a word
// with a value different from the one it already carries.
// Without this option the last inserted value wins.
func RejectDuplicates() TrieOption {
	return func(trie *Trie) {
		trie.strict = true
	}
}

// Trie is the mutable construction stage of the automaton.
// Words are inserted sharing their longest common prefix
// with the words already present. Once finalized, the trie
// refuses further insertions.
type Trie struct {
	mu     sync.Mutex
	auto   *Automaton
	next   int
	strict bool
	dfa    *DFA
}

// NewTrie creates an empty trie.
func NewTrie(opts ...TrieOption) *Trie {
	trie := &Trie{
		auto: NewAutomaton(),
	}
	for _, opt := range opts {
		opt(trie)
	}
	return trie
}

// Insert adds a word without an attached value.
func (trie *Trie) Insert(word string) error {
	return trie.InsertValue(word, NoValue)
}

// InsertValue adds a word and attaches the value
// to its final state.
func (trie *Trie) InsertValue(word string, v Value) error {
	trie.mu.Lock()
	defer trie.mu.Unlock()

	if trie.dfa != nil {
		return fmt.Errorf("%w: can't insert %q", ErrAlreadyFinalized, word)
	}

	if word == "" {
		return ErrEmptyWord
	}

	// Invalid bytes would all collapse to U+FFFD
	if !utf8.ValidString(word) {
		return fmt.Errorf("%w: %q", ErrInvalidWord, word)
	}

	// Create start state if necessary
	if trie.auto.Start() == nil {
		if _, err := trie.auto.AddState(trie.next, true, false, NoValue); err != nil {
			return err
		}
		trie.next++
	}

	syms := []rune(word)

	// Follow the longest prefix already in the trie
	t := trie.auto.Start()
	i := 0
	for ; i < len(syms); i++ {
		next := trie.auto.Step(t, syms[i])
		if next == nil {
			break
		}
		t = next
	}

	if i == len(syms) && t.final && trie.strict && t.value != v {
		return fmt.Errorf("%w: %q (%d, %d)", ErrDuplicateWord, word, t.value, v)
	}

	// Create new states for the remaining symbols
	for _, sym := range syms[i:] {
		id := trie.next
		trie.next++
		if err := trie.auto.AddTransition(t.id, id, sym); err != nil {
			return err
		}
		t = trie.auto.State(id)
	}

	t.final = true
	t.value = v
	return nil
}

// Accepts checks if the word was inserted.
func (trie *Trie) Accepts(word string) bool {
	trie.mu.Lock()
	defer trie.mu.Unlock()
	return trie.auto.Accepts(word)
}

// IsValid checks the automaton invariants.
func (trie *Trie) IsValid() bool {
	trie.mu.Lock()
	defer trie.mu.Unlock()
	return trie.auto.IsValid()
}

// Len is the number of states in the trie.
func (trie *Trie) Len() int {
	trie.mu.Lock()
	defer trie.mu.Unlock()
	return trie.auto.Len()
}

// Language lists all accepted words in depth-first order.
func (trie *Trie) Language() []string {
	trie.mu.Lock()
	defer trie.mu.Unlock()
	return trie.auto.language()
}

// Finalized is true once Finalize succeeded.
func (trie *Trie) Finalized() bool {
	trie.mu.Lock()
	defer trie.mu.Unlock()
	return trie.dfa != nil
}

// Build inserts all entries in order and finalizes the trie.
func Build(entries []Entry, opts ...TrieOption) (*DFA, error) {
	trie := NewTrie(opts...)
	for _, e := range entries {
		if err := trie.InsertValue(e.Word, e.Value); err != nil {
			return nil, err
		}
	}
	return trie.Finalize()
}

// Enumerate the accepted words in depth-first order,
// following transitions in insertion order.
// Paths longer than the number of states are cut,
// so a cyclic automaton can't loop forever.
func (auto *Automaton) language() []string {
	start := auto.Start()
	if start == nil {
		return nil
	}

	type frame struct {
		id     int
		prefix []rune
	}

	lang := make([]string, 0, auto.live)
	stack := []frame{{id: start.id}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		st := auto.states[f.id]
		if st.final {
			lang = append(lang, string(f.prefix))
		}

		if len(f.prefix) >= auto.live {
			continue
		}

		for i := len(st.edges) - 1; i >= 0; i-- {
			e := st.edges[i]
			if auto.State(e.targets[0]) == nil {
				continue
			}
			prefix := make([]rune, len(f.prefix)+1)
			copy(prefix, f.prefix)
			prefix[len(f.prefix)] = e.sym
			stack = append(stack, frame{id: e.targets[0], prefix: prefix})
		}
	}
	return lang
}
