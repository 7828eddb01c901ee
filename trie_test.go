package tldfa

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func buildTrie(t *testing.T, words ...string) *Trie {
	trie := NewTrie()
	for _, w := range words {
		assert.Nil(t, trie.Insert(w))
	}
	return trie
}

// All strings over the alphabet up to the given length
func allStrings(alphabet string, max int) []string {
	all := []string{""}
	last := []string{""}
	for l := 0; l < max; l++ {
		next := make([]string, 0, len(last)*len(alphabet))
		for _, p := range last {
			for _, c := range alphabet {
				next = append(next, p+string(c))
			}
		}
		all = append(all, next...)
		last = next
	}
	return all
}

// Every state has at most one target per symbol
func assertDeterministic(t *testing.T, dfa *DFA) {
	for id := 0; id < dfa.Len(); id++ {
		st := dfa.State(id)
		assert.NotNil(t, st)
		for _, e := range st.edges {
			assert.Len(t, e.targets, 1)
		}
	}
}

func TestTrieScenarioSharedPrefix(t *testing.T) {
	assert := assert.New(t)

	trie := buildTrie(t, "com", "co", "net")

	// co reuses the chain of com
	assert.Equal(7, trie.Len())
	assert.True(trie.IsValid())
	assert.True(trie.Accepts("com"))
	assert.True(trie.Accepts("co"))
	assert.False(trie.Accepts("c"))
	assert.False(trie.Accepts("coma"))
	assert.Equal([]string{"co", "com", "net"}, trie.Language())

	dfa, err := trie.Finalize()
	assert.Nil(err)
	assert.True(trie.Finalized())

	assert.True(dfa.Accepts("com"))
	assert.True(dfa.Accepts("co"))
	assert.True(dfa.Accepts("net"))
	assert.False(dfa.Accepts("c"))
	assert.False(dfa.Accepts("coma"))
	assert.False(dfa.Accepts("ne"))
	assert.False(dfa.Accepts(""))

	// Dangling states of com and net are coalesced
	assert.Equal(6, dfa.Len())
	assert.Equal([]int{3}, dfa.AcceptStates())
	assert.True(dfa.IsValid())
	assertDeterministic(t, dfa)

	assert.Equal(0, dfa.Start().ID())
	assert.Equal(1, dfa.Step(dfa.Start(), 'c').ID())
	assert.Equal(4, dfa.Step(dfa.Start(), 'n').ID())

	// co keeps its own state
	co := dfa.Step(dfa.Step(dfa.Start(), 'c'), 'o')
	assert.Equal(2, co.ID())
	assert.True(co.IsFinal())
	assert.Equal(1, co.Transitions())

	// The trie answers with the finalized automaton
	assert.True(trie.Accepts("net"))
	assert.Equal(6, trie.Len())
}

func TestTrieScenarioValues(t *testing.T) {
	assert := assert.New(t)

	trie := NewTrie()
	assert.Nil(trie.InsertValue("fw", 2))
	assert.Nil(trie.InsertValue("lan", 3))
	assert.Nil(trie.InsertValue("thc", 2))

	// Three independent chains
	assert.Equal(9, trie.Len())

	dfa, err := trie.Finalize()
	assert.Nil(err)

	// One canonical accept state per value
	assert.Equal(8, dfa.Len())
	assert.Len(dfa.AcceptStates(), 2)

	v, ok := dfa.Lookup("fw")
	assert.True(ok)
	assert.Equal(Value(2), v)

	v, ok = dfa.Lookup("lan")
	assert.True(ok)
	assert.Equal(Value(3), v)

	v, ok = dfa.Lookup("thc")
	assert.True(ok)
	assert.Equal(Value(2), v)

	v, ok = dfa.Lookup("la")
	assert.False(ok)
	assert.Equal(NoValue, v)

	_, ok = dfa.Lookup("lans")
	assert.False(ok)

	for _, id := range dfa.AcceptStates() {
		st := dfa.State(id)
		assert.True(st.IsFinal())
		assert.Equal(0, st.Transitions())
		assert.NotEqual(NoValue, st.Value())
	}
}

func TestTrieScenarioPrefixCompression(t *testing.T) {
	assert := assert.New(t)

	trie := NewTrie()
	sum := 0
	for i := 0; i < 1000; i++ {
		w := fmt.Sprintf("abcde%03d", i)
		sum += len(w)
		assert.Nil(trie.Insert(w))
	}

	// Root, the common prefix, and all digit prefixes
	assert.Equal(1+5+10+100+1000, trie.Len())

	dfa, err := trie.Finalize()
	assert.Nil(err)

	// All leaves collapse into a single sink
	assert.Equal(1+5+10+100+1, dfa.Len())
	assert.Less(dfa.Len(), sum)
	assert.Len(dfa.AcceptStates(), 1)

	sink := dfa.AcceptStates()[0]
	for i := 0; i < 1000; i++ {
		w := fmt.Sprintf("abcde%03d", i)
		assert.True(dfa.Accepts(w), w)
	}
	assert.False(dfa.Accepts("abcde"))
	assert.False(dfa.Accepts("abcde00"))
	assert.False(dfa.Accepts("abcde0000"))

	// Every final state is the sink
	for id := 0; id < dfa.Len(); id++ {
		if dfa.State(id).IsFinal() {
			assert.Equal(sink, id)
		}
	}
	assertDeterministic(t, dfa)
}

func TestTrieFinalizeIdempotent(t *testing.T) {
	assert := assert.New(t)

	trie := buildTrie(t, "it", "com", "org", "co", "eu", "arpa")

	dfa, err := trie.Finalize()
	assert.Nil(err)
	mat, err := dfa.ToMatrix(dfa.Tokenize())
	assert.Nil(err)

	dfa2, err := trie.Finalize()
	assert.Nil(err)
	assert.Same(dfa, dfa2)

	mat2, err := dfa2.ToMatrix(dfa2.Tokenize())
	assert.Nil(err)
	assert.Empty(cmp.Diff(mat.Rows, mat2.Rows))
	assert.Empty(cmp.Diff(mat.Tokens, mat2.Tokens))
	assert.Empty(cmp.Diff(mat.Meta, mat2.Meta))
}

func TestTrieAlreadyFinalized(t *testing.T) {
	assert := assert.New(t)

	trie := buildTrie(t, "com")
	_, err := trie.Finalize()
	assert.Nil(err)

	err = trie.Insert("net")
	assert.True(errors.Is(err, ErrAlreadyFinalized))
	assert.False(IsFatal(err))
	assert.False(trie.Accepts("net"))
	assert.True(trie.Accepts("com"))
	assert.True(trie.IsValid())

	err = trie.InsertValue("com", 4)
	assert.True(errors.Is(err, ErrAlreadyFinalized))
}

func TestTrieEmptyWord(t *testing.T) {
	assert := assert.New(t)
	trie := NewTrie()
	assert.True(errors.Is(trie.Insert(""), ErrEmptyWord))
	assert.Equal(0, trie.Len())
}

func TestTrieInvalidUTF8(t *testing.T) {
	assert := assert.New(t)

	trie := NewTrie(RejectDuplicates())
	assert.True(errors.Is(trie.Insert("a\xff"), ErrInvalidWord))
	assert.True(errors.Is(trie.InsertValue("\xff", 1), ErrInvalidWord))
	assert.Equal(0, trie.Len())

	// The replacement character itself is a valid symbol
	assert.Nil(trie.InsertValue("a\uFFFD", 1))
	assert.Nil(trie.InsertValue("b", 2))

	assert.True(trie.Accepts("a\uFFFD"))
	assert.False(trie.Accepts("a\xff"))
	assert.False(trie.Accepts("a\xfe"))

	dfa, err := trie.Finalize()
	assert.Nil(err)
	assert.True(dfa.Accepts("a\uFFFD"))
	assert.False(dfa.Accepts("a\xfe"))

	_, ok := dfa.Lookup("a\xff")
	assert.False(ok)
	v, ok := dfa.Lookup("a\uFFFD")
	assert.True(ok)
	assert.Equal(Value(1), v)
}

func TestTrieDuplicates(t *testing.T) {
	assert := assert.New(t)

	// Last write wins
	trie := NewTrie()
	assert.Nil(trie.InsertValue("com", 1))
	assert.Nil(trie.InsertValue("com", 3))
	assert.Equal(4, trie.Len())

	dfa, err := trie.Finalize()
	assert.Nil(err)
	v, ok := dfa.Lookup("com")
	assert.True(ok)
	assert.Equal(Value(3), v)

	// Strict mode refuses a different value
	trie = NewTrie(RejectDuplicates())
	assert.Nil(trie.InsertValue("com", 1))
	assert.Nil(trie.InsertValue("com", 1))
	assert.Nil(trie.InsertValue("co", 2))
	err = trie.InsertValue("com", 3)
	assert.True(errors.Is(err, ErrDuplicateWord))

	dfa, err = trie.Finalize()
	assert.Nil(err)
	v, _ = dfa.Lookup("com")
	assert.Equal(Value(1), v)
	v, _ = dfa.Lookup("co")
	assert.Equal(Value(2), v)
}

func TestTrieFinalizeInvalid(t *testing.T) {
	assert := assert.New(t)

	// Nothing inserted
	_, err := NewTrie().Finalize()
	assert.True(errors.Is(err, ErrInvalidAutomaton))
	assert.True(IsFatal(err))

	// Unreachable state
	trie := buildTrie(t, "com")
	trie.auto.AddState(50, false, true, NoValue)
	_, err = trie.Finalize()
	assert.True(errors.Is(err, ErrInvalidAutomaton))
	assert.False(trie.Finalized())
}

func TestTrieFinalizeAmbiguous(t *testing.T) {
	assert := assert.New(t)

	trie := buildTrie(t, "com", "net")
	assert.Nil(trie.auto.AddTransition(0, 20, 'c'))
	trie.auto.State(20).final = true

	// First target wins before finalization
	assert.True(trie.Accepts("com"))
	assert.False(trie.Accepts("c"))

	_, err := trie.Finalize()
	assert.True(errors.Is(err, ErrAmbiguousTransition))
	assert.True(IsFatal(err))
}

func TestTrieLanguageEquivalence(t *testing.T) {
	assert := assert.New(t)

	r := rand.New(rand.NewSource(42))
	alphabet := "abcd"

	for round := 0; round < 20; round++ {
		words := make(map[string]bool)
		trie := NewTrie()
		for i := 0; i < 1+r.Intn(30); i++ {
			l := 1 + r.Intn(4)
			w := make([]byte, l)
			for j := range w {
				w[j] = alphabet[r.Intn(len(alphabet))]
			}
			words[string(w)] = true
			assert.Nil(trie.Insert(string(w)))
		}

		// Fuzz alphabet is larger than the language alphabet
		inputs := allStrings(alphabet+"x", 5)

		for _, in := range inputs {
			assert.Equal(words[in], trie.Accepts(in), in)
		}

		dfa, err := trie.Finalize()
		assert.Nil(err)
		assert.True(dfa.IsValid())
		assertDeterministic(t, dfa)
		assert.Len(dfa.AcceptStates(), 1)
		assert.Len(dfa.Language(), len(words))

		mat, err := dfa.ToMatrix(dfa.Tokenize())
		assert.Nil(err)

		for _, in := range inputs {
			assert.Equal(words[in], dfa.Accepts(in), in)
			_, ok := mat.Match(in)
			assert.Equal(words[in], ok, in)
		}
	}
}

func TestTrieLanguageEquivalenceValues(t *testing.T) {
	assert := assert.New(t)

	r := rand.New(rand.NewSource(7))
	alphabet := "abc"

	for round := 0; round < 20; round++ {
		words := make(map[string]Value)
		trie := NewTrie()
		for i := 0; i < 1+r.Intn(25); i++ {
			l := 1 + r.Intn(4)
			w := make([]byte, l)
			for j := range w {
				w[j] = alphabet[r.Intn(len(alphabet))]
			}
			v := Value(1 + r.Intn(3))
			words[string(w)] = v
			assert.Nil(trie.InsertValue(string(w), v))
		}

		// Words that are no prefix of another word end
		// in a canonical accept state for their value
		sinkValues := make(map[Value]bool)
		for w, v := range words {
			dangling := true
			for o := range words {
				if len(o) > len(w) && o[:len(w)] == w {
					dangling = false
					break
				}
			}
			if dangling {
				sinkValues[v] = true
			}
		}

		dfa, err := trie.Finalize()
		assert.Nil(err)
		assert.True(dfa.IsValid())
		assertDeterministic(t, dfa)
		assert.Len(dfa.AcceptStates(), len(sinkValues))

		for _, id := range dfa.AcceptStates() {
			st := dfa.State(id)
			assert.True(st.IsFinal())
			assert.Equal(0, st.Transitions())
			assert.True(sinkValues[st.Value()])
		}

		mat, err := dfa.ToMatrix(dfa.Tokenize())
		assert.Nil(err)
		assert.Len(mat.Meta.AcceptIDs, len(sinkValues))

		for _, in := range allStrings(alphabet+"x", 5) {
			expected, known := words[in]

			v, ok := dfa.Lookup(in)
			assert.Equal(known, ok, in)
			if known {
				assert.Equal(expected, v, in)
			}

			v, ok = mat.Match(in)
			assert.Equal(known, ok, in)
			if known {
				assert.Equal(expected, v, in)
			}
		}
	}
}

func TestBuild(t *testing.T) {
	assert := assert.New(t)

	dfa, err := Build([]Entry{
		{Word: "lan", Value: 3},
		{Word: "fw", Value: 2},
		{Word: "it", Value: 3},
	})
	assert.Nil(err)
	v, ok := dfa.Lookup("it")
	assert.True(ok)
	assert.Equal(Value(3), v)

	_, err = Build([]Entry{{Word: "com"}, {Word: ""}})
	assert.True(errors.Is(err, ErrEmptyWord))

	_, err = Build([]Entry{{Word: "com", Value: 1}, {Word: "com", Value: 2}}, RejectDuplicates())
	assert.True(errors.Is(err, ErrDuplicateWord))
}
