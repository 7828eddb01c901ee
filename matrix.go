package tldfa

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

const (
	MAMAGIC = "TLDFA"
	VERSION = uint16(1)

	// Header flag for matrices with a reserved accept token
	acceptFlag = uint16(1)
)

// Serialization is always little endian
var bo binary.ByteOrder = binary.LittleEndian

// Row is the serialized form of a state.
type Row struct {
	Final bool

	// Value attached to the state, 0 if the state
	// is not final or carries no value
	Value Value

	// Target state per token index, or the invalid sentinel
	Trans []int
}

// Metadata describes how to read the rows of a state matrix.
type Metadata struct {
	StartID int

	// The canonical accept state or -1, in case there is
	// none or there is one canonical accept state per value
	AcceptID  int
	AcceptIDs []int

	// Marks a missing transition. This is the number of rows,
	// so a bounds check on the state id detects it.
	Invalid  int
	RowCount int
}

// StateMatrix is the dense table representation of a DFA,
// with one row per state and one column per token.
type StateMatrix struct {
	Tokens []Token
	Rows   []Row
	Meta   Metadata

	accept     bool
	sigma      map[rune]int
	sigmaASCII [256]int
}

// ToMatrix turns the finalized automaton into a
// matrix representation.
//
// With a reserved accept token, column 0 of every final row
// points to the canonical accept state for the row's value,
// or to the row itself if there is none.
func (dfa *DFA) ToMatrix(tm *TokenMap) (*StateMatrix, error) {
	n := dfa.Len()

	mat := &StateMatrix{
		Tokens: tm.Tokens(),
		Rows:   make([]Row, n),
		Meta: Metadata{
			StartID:   0,
			AcceptID:  -1,
			AcceptIDs: dfa.AcceptStates(),
			Invalid:   n,
			RowCount:  n,
		},
		accept: tm.AcceptReserved(),
	}

	if len(mat.Meta.AcceptIDs) == 1 {
		mat.Meta.AcceptID = mat.Meta.AcceptIDs[0]
	}

	start := dfa.Start()
	if start == nil || start.id != 0 {
		return nil, fmt.Errorf("%w: first state is not the start state", ErrStructural)
	}

	sinks := make(map[Value]int, len(dfa.sinks))
	for _, id := range dfa.sinks {
		sinks[dfa.State(id).value] = id
	}

	for id := 0; id < n; id++ {
		st := dfa.State(id)
		if st == nil || st.id != id {
			return nil, fmt.Errorf("%w: state %d is not densely numbered", ErrStructural, id)
		}

		row := Row{
			Final: st.final,
			Trans: make([]int, tm.Len()),
		}

		if st.final && st.value != NoValue {
			row.Value = st.value
		}

		for i := range row.Trans {
			row.Trans[i] = mat.Meta.Invalid
		}

		for _, e := range st.edges {
			idx, ok := tm.Index(e.sym)
			if !ok || (mat.accept && e.sym == AcceptSymbol) {
				return nil, fmt.Errorf("%w: %q in state %d", ErrUnknownSymbol, e.sym, id)
			}
			row.Trans[idx] = e.targets[0]
		}

		if mat.accept && st.final {
			if sink, ok := sinks[st.value]; ok {
				row.Trans[0] = sink
			} else {
				row.Trans[0] = id
			}
		}

		mat.Rows[id] = row
	}

	mat.initSigma()
	return mat, nil
}

// Build the symbol lookup tables
func (mat *StateMatrix) initSigma() {
	mat.sigma = make(map[rune]int, len(mat.Tokens))
	for i := range mat.sigmaASCII {
		mat.sigmaASCII[i] = -1
	}

	for _, t := range mat.Tokens {
		if mat.accept && t.Index == 0 {
			continue
		}
		if t.Sym < 256 {
			mat.sigmaASCII[int(t.Sym)] = t.Index
		}
		mat.sigma[t.Sym] = t.Index
	}
}

// AcceptReserved is true if token 0 is the accept pseudo-symbol.
func (mat *StateMatrix) AcceptReserved() bool {
	return mat.accept
}

// Token index of a symbol or -1
func (mat *StateMatrix) token(sym rune) int {
	if sym >= 0 && sym < 256 {
		return mat.sigmaASCII[sym]
	}
	if a, ok := mat.sigma[sym]; ok {
		return a
	}
	return -1
}

// Match replays a word over the matrix rows, starting
// at the start row, and returns the value of the row
// reached, if that row is final.
func (mat *StateMatrix) Match(word string) (Value, bool) {
	if len(mat.Rows) == 0 || !utf8.ValidString(word) {
		return 0, false
	}

	t := mat.Meta.StartID

	for _, sym := range word {
		a := mat.token(sym)
		if a < 0 {
			return 0, false
		}

		t = mat.Rows[t].Trans[a]

		// Transition is invalid
		if t < 0 || t >= mat.Meta.RowCount {
			return 0, false
		}
	}

	row := mat.Rows[t]

	// Accepting states have a transition on the accept token
	if mat.accept {
		return row.Value, row.Trans[0] != mat.Meta.Invalid
	}

	return row.Value, row.Final
}

// Save stores the matrix data in a file
func (mat *StateMatrix) Save(file string) (n int64, err error) {
	f, err := os.Create(file)
	if err != nil {
		log.Error().Err(err).Str("file", file).Msg("Can't create matrix file")
		return 0, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			log.Error().Err(cerr).Str("file", file).Msg("Can't close matrix file")
			err = cerr
		}
	}()

	gz := gzip.NewWriter(f)
	n, err = mat.WriteTo(gz)
	if err != nil {
		gz.Close()
		log.Error().Err(err).Str("file", file).Msg("Can't write matrix")
		return n, err
	}

	// Closing writes the gzip footer
	if err = gz.Close(); err != nil {
		log.Error().Err(err).Str("file", file).Msg("Can't write matrix")
		return n, err
	}
	return n, nil
}

// WriteTo stores the matrix data in an io.Writer.
func (mat *StateMatrix) WriteTo(w io.Writer) (n int64, err error) {

	if len(mat.Tokens) > math.MaxUint16 {
		return 0, fmt.Errorf("%w: %d tokens", ErrMatrixSize, len(mat.Tokens))
	}
	if len(mat.Meta.AcceptIDs) > math.MaxUint16 {
		return 0, fmt.Errorf("%w: %d accept states", ErrMatrixSize, len(mat.Meta.AcceptIDs))
	}
	if mat.Meta.RowCount > math.MaxInt32 || mat.Meta.Invalid > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %d rows", ErrMatrixSize, mat.Meta.RowCount)
	}

	wb := bufio.NewWriter(w)

	// Store magical header
	all, err := wb.Write([]byte(MAMAGIC))
	if err != nil {
		return int64(all), err
	}

	var flags uint16
	if mat.accept {
		flags |= acceptFlag
	}

	buf := make([]byte, 16)
	bo.PutUint16(buf[0:2], VERSION)
	bo.PutUint16(buf[2:4], flags)
	bo.PutUint32(buf[4:8], uint32(mat.Meta.RowCount))
	bo.PutUint16(buf[8:10], uint16(len(mat.Tokens)))
	bo.PutUint32(buf[10:14], uint32(mat.Meta.Invalid))
	bo.PutUint16(buf[14:16], uint16(len(mat.Meta.AcceptIDs)))
	more, err := wb.Write(buf[0:16])
	all += more
	if err != nil {
		return int64(all), err
	}

	// Write canonical accept states
	for _, id := range mat.Meta.AcceptIDs {
		bo.PutUint32(buf[0:4], uint32(id))
		more, err = wb.Write(buf[0:4])
		all += more
		if err != nil {
			return int64(all), err
		}
	}

	// Write sigma
	for _, t := range mat.Tokens {
		more, err = wb.WriteRune(t.Sym)
		all += more
		if err != nil {
			return int64(all), err
		}
	}

	// Test marker - could be checksum
	more, err = wb.Write([]byte("M"))
	all += more
	if err != nil {
		return int64(all), err
	}

	for _, row := range mat.Rows {
		if row.Final {
			buf[0] = 1
		} else {
			buf[0] = 0
		}
		bo.PutUint32(buf[1:5], uint32(int32(row.Value)))
		more, err = wb.Write(buf[0:5])
		all += more
		if err != nil {
			return int64(all), err
		}

		for _, x := range row.Trans {
			bo.PutUint32(buf[0:4], uint32(x))
			more, err = wb.Write(buf[0:4])
			all += more
			if err != nil {
				return int64(all), err
			}
		}
	}

	return int64(all), wb.Flush()
}

// LoadMatrixFile reads a state matrix from a file.
func LoadMatrixFile(file string) (*StateMatrix, error) {
	f, err := os.Open(file)
	if err != nil {
		log.Error().Err(err).Str("file", file).Msg("Can't open matrix file")
		return nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		log.Error().Err(err).Str("file", file).Msg("Matrix file is not gzipped")
		return nil, err
	}
	defer gz.Close()

	return ParseMatrix(gz)
}

// ParseMatrix reads a state matrix from an io.Reader.
func ParseMatrix(ior io.Reader) (*StateMatrix, error) {
	r := bufio.NewReader(ior)

	buf := make([]byte, 16)

	if _, err := io.ReadFull(r, buf[0:len(MAMAGIC)]); err != nil {
		return nil, err
	}

	if string(buf[0:len(MAMAGIC)]) != MAMAGIC {
		return nil, ErrNotMatrixFile
	}

	if _, err := io.ReadFull(r, buf[0:16]); err != nil {
		return nil, err
	}

	if version := bo.Uint16(buf[0:2]); version != VERSION {
		return nil, fmt.Errorf("%w: %d", ErrVersion, version)
	}

	mat := &StateMatrix{
		accept: bo.Uint16(buf[2:4])&acceptFlag != 0,
	}

	rowCount := int(bo.Uint32(buf[4:8]))
	tokenCount := int(bo.Uint16(buf[8:10]))
	invalid := int(bo.Uint32(buf[10:14]))
	acceptCount := int(bo.Uint16(buf[14:16]))

	if rowCount <= 0 || rowCount > math.MaxInt32 {
		return nil, fmt.Errorf("%w: row count %d", ErrNotMatrixFile, rowCount)
	}

	if mat.accept && tokenCount == 0 {
		return nil, fmt.Errorf("%w: accept token missing", ErrNotMatrixFile)
	}

	if invalid != rowCount {
		return nil, fmt.Errorf("%w: invalid state %d for %d rows", ErrNotMatrixFile, invalid, rowCount)
	}

	mat.Meta = Metadata{
		StartID:   0,
		AcceptID:  -1,
		AcceptIDs: make([]int, acceptCount),
		Invalid:   invalid,
		RowCount:  rowCount,
	}

	for x := 0; x < acceptCount; x++ {
		if _, err := io.ReadFull(r, buf[0:4]); err != nil {
			return nil, err
		}
		id := int(bo.Uint32(buf[0:4]))
		if id >= rowCount {
			return nil, fmt.Errorf("%w: accept state %d out of range", ErrNotMatrixFile, id)
		}
		mat.Meta.AcceptIDs[x] = id
	}
	if acceptCount == 1 {
		mat.Meta.AcceptID = mat.Meta.AcceptIDs[0]
	}

	mat.Tokens = make([]Token, tokenCount)
	for x := 0; x < tokenCount; x++ {
		sym, _, err := r.ReadRune()
		if err != nil {
			return nil, err
		}
		mat.Tokens[x] = Token{Sym: sym, Index: x}
	}

	if _, err := io.ReadFull(r, buf[0:1]); err != nil {
		return nil, err
	}

	if buf[0] != 'M' {
		return nil, fmt.Errorf("%w: marker missing", ErrNotMatrixFile)
	}

	// Grow along the rows actually read
	capacity := rowCount
	if capacity > 1024 {
		capacity = 1024
	}
	mat.Rows = make([]Row, 0, capacity)
	for x := 0; x < rowCount; x++ {
		if _, err := io.ReadFull(r, buf[0:5]); err != nil {
			return nil, err
		}
		row := Row{
			Final: buf[0] == 1,
			Value: Value(int32(bo.Uint32(buf[1:5]))),
			Trans: make([]int, tokenCount),
		}
		for y := 0; y < tokenCount; y++ {
			if _, err := io.ReadFull(r, buf[0:4]); err != nil {
				return nil, err
			}
			t := int(int32(bo.Uint32(buf[0:4])))
			if t < 0 || t > invalid {
				return nil, fmt.Errorf("%w: transition %d in row %d out of range", ErrNotMatrixFile, t, x)
			}
			row.Trans[y] = t
		}
		mat.Rows = append(mat.Rows, row)
	}

	mat.initSigma()
	return mat, nil
}
