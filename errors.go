package tldfa

import "errors"

// Errors returned by the automaton construction pipeline.
// Construction-logic errors (see IsFatal) signal a bug in the
// builder rather than bad input and must abort the build.
var (
	ErrAlreadyFinalized    = errors.New("tldfa: automaton is already finalized")
	ErrInvalidAutomaton    = errors.New("tldfa: invalid automaton")
	ErrAmbiguousTransition = errors.New("tldfa: multiple targets for a single symbol")
	ErrStructural          = errors.New("tldfa: structural assertion failed")

	ErrEmptyWord      = errors.New("tldfa: empty word")
	ErrInvalidWord    = errors.New("tldfa: word is not valid UTF-8")
	ErrDuplicateWord  = errors.New("tldfa: word already inserted with a different value")
	ErrStateExists    = errors.New("tldfa: state already exists")
	ErrInvalidStateID = errors.New("tldfa: invalid state id")
	ErrDuplicateStart = errors.New("tldfa: start state already set")
	ErrUnknownSymbol  = errors.New("tldfa: symbol not in token map")

	ErrNotMatrixFile = errors.New("tldfa: not a matrix file")
	ErrVersion       = errors.New("tldfa: version not compatible")
	ErrMatrixSize    = errors.New("tldfa: matrix exceeds the file format limits")
)

// IsFatal reports whether err signals a broken construction
// invariant, which no caller can recover from.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvalidAutomaton) ||
		errors.Is(err, ErrAmbiguousTransition) ||
		errors.Is(err, ErrStructural)
}
