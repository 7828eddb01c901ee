// Package emit turns a state matrix into source code,
// which embeds the matrix as a static lookup table.
package emit

import (
	"errors"
	"sort"
)

var (
	ErrUnsupportedSymbol = errors.New("emit: symbol can't be represented")
	ErrEmptyMatrix       = errors.New("emit: matrix has no rows")
	ErrValueRange        = errors.New("emit: value does not fit into a byte")
)

// Define is a named constant written to the generated code.
type Define struct {
	Name  string
	Value int
}

// Options control names in the generated code.
type Options struct {
	// Acceptance flags, written as ACCEPT_<NAME> in C
	// and Accept<Name> in Go
	Defines []Define

	// Prefix of the token enum entries in C
	TokenPrefix string

	// Name of the state table
	Table string

	// Macro that needs to be defined before including
	// the C header
	Guard string

	// Package name of the Go file
	Package string
}

// DefaultOptions returns the names used by the IRC services.
func DefaultOptions() Options {
	return Options{
		Defines: []Define{
			{Name: "mail", Value: 1},
			{Name: "host", Value: 2},
		},
		TokenPrefix: "TLD_TOK_",
		Table:       "tld_dfa",
		Guard:       "I_HAVE_A_VERY_GOOD_REASON_TO_INCLUDE_TLD_TAB_H",
		Package:     "tld",
	}
}

// DefinesFromFlags turns a flag map into defines ordered by value.
func DefinesFromFlags(flags map[string]int) []Define {
	defs := make([]Define, 0, len(flags))
	for name, v := range flags {
		defs = append(defs, Define{Name: name, Value: v})
	}
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Value != defs[j].Value {
			return defs[i].Value < defs[j].Value
		}
		return defs[i].Name < defs[j].Name
	})
	return defs
}
