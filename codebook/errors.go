package codebook

import (
	"errors"
	"fmt"
)

var (
	// ErrTrainingCorpusEmpty is returned when the training corpus has no
	// lines or no columns.
	ErrTrainingCorpusEmpty = errors.New("codebook: training corpus empty")

	// ErrAlphabetLookupMiss is returned when a context symbol is absent
	// from a column's input alphabet. It indicates a driver bug.
	ErrAlphabetLookupMiss = errors.New("codebook: context symbol not in column input alphabet")
)

// InvariantError reports an internal inconsistency during generation,
// with the column and symbol where it surfaced. Nothing recovers from
// it; a single malformed corpus aborts the run.
type InvariantError struct {
	Column int
	Symbol int
	Msg    string
	cause  error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("codebook: internal invariant violated at column %d, symbol %d: %s", e.Column, e.Symbol, e.Msg)
}

func (e *InvariantError) Unwrap() error { return e.cause }

func invariantf(column, symbol int, cause error, format string, args ...any) error {
	return &InvariantError{
		Column: column,
		Symbol: symbol,
		Msg:    fmt.Sprintf(format, args...),
		cause:  cause,
	}
}
