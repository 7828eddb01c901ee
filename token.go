package tldfa

import (
	"fmt"
)

// AcceptSymbol is the pseudo-symbol occupying token 0,
// when the accept token is reserved.
const AcceptSymbol rune = 0

// Token maps a symbol of the alphabet to a column
// of the state matrix.
type Token struct {
	Sym   rune
	Index int
}

func (t Token) String() string {
	if t.Sym == AcceptSymbol {
		return fmt.Sprintf("%d:ACCEPT", t.Index)
	}
	return fmt.Sprintf("%d:%q", t.Index, t.Sym)
}

// TokenMap is a bijection between symbols and token indices.
type TokenMap struct {
	tokens []Token
	index  map[rune]int
	accept bool
}

// TokenOption configures the tokenizer.
type TokenOption func(*TokenMap)

// ReserveAccept reserves token 0 for the accept pseudo-symbol.
// Real symbols start at index 1.
func ReserveAccept() TokenOption {
	return func(tm *TokenMap) {
		tm.accept = true
	}
}

// NewTokenMap creates a token map for the given symbols
// in the given order. Repeated symbols are ignored.
func NewTokenMap(syms []rune, opts ...TokenOption) *TokenMap {
	tm := &TokenMap{
		index: make(map[rune]int),
	}
	for _, opt := range opts {
		opt(tm)
	}

	if tm.accept {
		tm.add(AcceptSymbol)
	}

	for _, sym := range syms {
		tm.add(sym)
	}
	return tm
}

func (tm *TokenMap) add(sym rune) {
	if _, ok := tm.index[sym]; ok {
		return
	}
	idx := len(tm.tokens)
	tm.index[sym] = idx
	tm.tokens = append(tm.tokens, Token{Sym: sym, Index: idx})
}

// Tokenize assigns a token to every symbol of the language,
// in the order of their first occurrence while enumerating
// the language depth-first.
func (dfa *DFA) Tokenize(opts ...TokenOption) *TokenMap {
	syms := make([]rune, 0, 64)
	for _, word := range dfa.Language() {
		syms = append(syms, []rune(word)...)
	}
	return NewTokenMap(syms, opts...)
}

// Tokens lists all tokens ordered by index.
func (tm *TokenMap) Tokens() []Token {
	return append([]Token(nil), tm.tokens...)
}

// Index returns the token index of a symbol.
func (tm *TokenMap) Index(sym rune) (int, bool) {
	idx, ok := tm.index[sym]
	return idx, ok
}

// Len is the number of tokens, i.e. the width of the matrix.
func (tm *TokenMap) Len() int {
	return len(tm.tokens)
}

// AcceptReserved is true if token 0 is the accept pseudo-symbol.
func (tm *TokenMap) AcceptReserved() bool {
	return tm.accept
}
