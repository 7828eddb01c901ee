package emit

import (
	"io"
	"strings"
	"unicode"

	"github.com/KorAP/tldfa"
	"github.com/dave/jennifer/jen"
	"github.com/rs/zerolog/log"
)

// WriteGo writes the matrix as a Go source file with
// a Lookup function that replays a label over the table.
func WriteGo(w io.Writer, mat *tldfa.StateMatrix, opts Options) error {
	if len(mat.Rows) == 0 {
		return ErrEmptyMatrix
	}

	table := goName(opts.Table, false)
	width := len(mat.Tokens)

	f := jen.NewFile(opts.Package)
	f.HeaderComment("Code generated by tldgen. DO NOT EDIT.")

	// Acceptance flags
	if len(opts.Defines) > 0 {
		defs := make([]jen.Code, 0, len(opts.Defines))
		for _, d := range opts.Defines {
			defs = append(defs, jen.Id("Accept"+goName(d.Name, true)).Op("=").Lit(d.Value))
		}
		f.Const().Defs(defs...)
	}

	f.Comment("stateInvalid marks a missing transition")
	f.Const().Id("stateInvalid").Op("=").Lit(mat.Meta.Invalid)

	// Token table
	tokens := jen.Dict{}
	for _, t := range mat.Tokens {
		if mat.AcceptReserved() && t.Index == 0 {
			continue
		}
		tokens[jen.LitRune(t.Sym)] = jen.Lit(t.Index)
	}
	f.Comment("tokenValue maps a character to its column in the state table")
	f.Var().Id("tokenValue").Op("=").Map(jen.Rune()).Int().Values(tokens)

	f.Type().Id("dfaState").Struct(
		jen.Id("final").Bool(),
		jen.Id("flags").Int(),
		jen.Id("transitions").Index(jen.Lit(width)).Int(),
	)

	rows := make([]jen.Code, 0, len(mat.Rows))
	for _, row := range mat.Rows {
		trans := make([]jen.Code, len(row.Trans))
		for i, t := range row.Trans {
			trans[i] = jen.Lit(t)
		}
		rows = append(rows, jen.Values(jen.Dict{
			jen.Id("final"):       jen.Lit(row.Final),
			jen.Id("flags"):       jen.Lit(int(row.Value)),
			jen.Id("transitions"): jen.Index(jen.Lit(width)).Int().Values(trans...),
		}))
	}
	f.Comment(table + " is the state table, the initial state is always state 0")
	f.Var().Id(table).Op("=").Index(jen.Op("...")).Id("dfaState").Values(rows...)

	f.Comment("Lookup returns the flags of a label and whether the label is accepted.")
	f.Func().Id("Lookup").Params(jen.Id("label").String()).Params(jen.Int(), jen.Bool()).Block(
		jen.Id("state").Op(":=").Lit(0),
		jen.For(jen.List(jen.Id("_"), jen.Id("c")).Op(":=").Range().Id("label")).Block(
			jen.List(jen.Id("tok"), jen.Id("ok")).Op(":=").Id("tokenValue").Index(jen.Id("c")),
			jen.If(jen.Op("!").Id("ok")).Block(
				jen.Return(jen.Lit(0), jen.False()),
			),
			jen.Id("state").Op("=").Id(table).Index(jen.Id("state")).Dot("transitions").Index(jen.Id("tok")),
			jen.If(jen.Id("state").Op("==").Id("stateInvalid")).Block(
				jen.Return(jen.Lit(0), jen.False()),
			),
		),
		jen.Return(
			jen.Id(table).Index(jen.Id("state")).Dot("flags"),
			jen.Id(table).Index(jen.Id("state")).Dot("final"),
		),
	)

	log.Debug().Int("tokens", width).Int("states", len(mat.Rows)).Str("package", opts.Package).Msg("Write Go source")

	return f.Render(w)
}

// Turn a snake case name into a Go identifier
func goName(name string, exported bool) string {
	var sb strings.Builder
	upper := exported
	for _, r := range name {
		if r == '_' || r == '-' || r == ' ' {
			upper = true
			continue
		}
		if upper {
			sb.WriteRune(unicode.ToUpper(r))
			upper = false
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
