package fiberexpr

import "fmt"

// EvalError reports a failure evaluating an already-parsed expression,
// distinct from SyntaxError (a failure to parse one). Both carry an
// offset relative to the expression's unescaped contents so the caller
// can translate it into a source range via reader.Range.Slice.
type EvalError struct {
	Message string
	Offset  int
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("%s (at offset %d)", e.Message, e.Offset)
}

// DimensionalityError is returned (wrapped in an EvalError) when quantity
// arithmetic combines incompatible units.
func newDimensionalityEvalError(offset int, cause error) *EvalError {
	return &EvalError{Message: cause.Error(), Offset: offset}
}
