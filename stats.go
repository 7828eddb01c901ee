package tldfa

import (
	"bufio"
	"io"
	"sort"
	"strconv"
)

// WriteStats writes the sorted language accepted by the
// automaton followed by a dump of all states.
func (dfa *DFA) WriteStats(w io.Writer) error {
	wb := bufio.NewWriter(w)

	lang := dfa.Language()
	sort.Strings(lang)

	wb.WriteString("Language accepted by this DFA:\n")
	for _, word := range lang {
		wb.WriteString("    ")
		wb.WriteString(word)
		wb.WriteByte('\n')
	}

	wb.WriteString("\nStates of DFA:\n\n")
	for id := 0; id < dfa.Len(); id++ {
		writeState(wb, dfa.State(id))
		wb.WriteByte('\n')
	}

	return wb.Flush()
}

func writeState(wb *bufio.Writer, st *State) {
	wb.WriteString("State: ")
	wb.WriteString(strconv.Itoa(st.id))

	if st.start {
		wb.WriteString(" start state\n")
	} else if st.final {
		wb.WriteString(" final state")
		if st.value != NoValue {
			wb.WriteString(" (value: ")
			wb.WriteString(strconv.Itoa(int(st.value)))
			wb.WriteByte(')')
		}
		wb.WriteByte('\n')
	} else {
		wb.WriteByte('\n')
	}

	st.Each(func(sym rune, target int) {
		wb.WriteString("  ")
		wb.WriteRune(sym)
		wb.WriteString(" -> ")
		wb.WriteString(strconv.Itoa(target))
		wb.WriteByte('\n')
	})
}
