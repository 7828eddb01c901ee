package emit

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/template"

	"github.com/KorAP/tldfa"
	"github.com/rs/zerolog/log"
)

var cHeader = template.Must(template.New("tld_tab.h").Parse(`/*
 * tld_tab.h - DFA state matrix for TLD check
 * THIS FILE IS AUTOGENERATED - DO NOT EDIT!
 */

#ifndef {{.Guard}}
#error "*NEVER* *EVER* include this file unless you know what you're doing"
#endif /* {{.Guard}} */
{{range .Defines}}
#define ACCEPT_{{.Name}} {{.Value}}{{end}}

/* Token values */
enum
{
    {{.Prefix}}INVALID = -1,
{{- range $i, $t := .Tokens}}{{if $i}},{{end}}
    {{$t.Name}} = {{$t.Index}}{{end}}
};

#define TRANS_TBL_SIZE {{.Size}}
#define STATE_COUNT {{.States}}

/* Marks a missing transition */
#define STATE_INVALID {{.Invalid}}

/* DFA state */
typedef struct _dfa_state
{
    /* State number is implicitly defined by order in state array.
     * Also, initial state is always state 0.
     */
     unsigned char final;                   /* Non-zero if state is final */
     unsigned char flags;                   /* TLD flags (0 if state is not final) */
     int transitions[TRANS_TBL_SIZE];       /* Transition table (indexed by token) */
} dfa_state;

/* Mapping function from character to token */
static inline int token_value(unsigned char t)
{
    switch (t)
    {
{{- range .Tokens}}{{if .Case}}
    case {{.Case}}:
        return {{.Name}};{{end}}{{end}}
    default:
        return {{.Prefix}}INVALID;
    }
}

/* The state array itself (YIKES!) */
static dfa_state {{.Table}}[] = {
{{- range $i, $r := .Rows}}{{if $i}},{{end}}
    {{$r}}{{end}}
};
`))

type cToken struct {
	Name  string
	Index int
	Case  string
}

type cData struct {
	Guard   string
	Prefix  string
	Table   string
	Defines []Define
	Tokens  []cToken
	Size    int
	States  int
	Invalid int
	Rows    []string
}

// WriteC writes the matrix as a C header file.
func WriteC(w io.Writer, mat *tldfa.StateMatrix, opts Options) error {
	if len(mat.Rows) == 0 {
		return ErrEmptyMatrix
	}

	data := cData{
		Guard:   opts.Guard,
		Prefix:  opts.TokenPrefix,
		Table:   opts.Table,
		Size:    len(mat.Tokens),
		States:  mat.Meta.RowCount,
		Invalid: mat.Meta.Invalid,
		Tokens:  make([]cToken, 0, len(mat.Tokens)),
		Rows:    make([]string, 0, len(mat.Rows)),
	}

	for _, d := range opts.Defines {
		data.Defines = append(data.Defines, Define{
			Name:  strings.ToUpper(d.Name),
			Value: d.Value,
		})
	}

	for _, t := range mat.Tokens {
		tok := cToken{
			Name:  fmt.Sprintf("%s%02d", opts.TokenPrefix, t.Index),
			Index: t.Index,
		}

		if mat.AcceptReserved() && t.Index == 0 {
			tok.Name = opts.TokenPrefix + "ACCEPT"
		} else {
			lit, err := cCharLiteral(t.Sym)
			if err != nil {
				return err
			}
			tok.Case = lit
		}
		data.Tokens = append(data.Tokens, tok)
	}

	var sb strings.Builder
	for id, row := range mat.Rows {
		// Values are stored as unsigned char
		if row.Value < 0 || row.Value > 0xff {
			return fmt.Errorf("%w: %d in state %d", ErrValueRange, row.Value, id)
		}

		sb.Reset()
		sb.WriteByte('{')
		if row.Final {
			sb.WriteString("1, ")
		} else {
			sb.WriteString("0, ")
		}
		sb.WriteString(strconv.Itoa(int(row.Value)))
		sb.WriteString(", {")
		for i, t := range row.Trans {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Itoa(t))
		}
		sb.WriteString("}}")
		data.Rows = append(data.Rows, sb.String())
	}

	log.Debug().Int("tokens", data.Size).Int("states", data.States).Msg("Write C header")

	return cHeader.Execute(w, data)
}

// Character literal for the token switch
func cCharLiteral(sym rune) (string, error) {
	switch {
	case sym < 0 || sym > 0xff:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSymbol, sym)
	case sym == '\'' || sym == '\\':
		return `'\` + string(sym) + `'`, nil
	case sym >= 0x20 && sym < 0x7f:
		return "'" + string(sym) + "'", nil
	}
	return fmt.Sprintf("0x%02x", sym), nil
}
