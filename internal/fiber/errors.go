package fiber

import "github.com/dekarrin/fiberhost/internal/reader"

// MissingProcessError reports a block whose transform chain resolved to
// no leaf process at all (original_source parser.py's
// MissingProcessError, raised from FiberParser.execute when transforms
// is empty).
type MissingProcessError struct {
	Range reader.Range
}

func (e *MissingProcessError) Error() string {
	return "missing process"
}

// UnknownShorthandError reports a segment key recognized by no
// namespace's attribute set and no registered shorthand: a semantic
// compile error.
type UnknownShorthandError struct {
	Name  string
	Range reader.Range
}

func (e *UnknownShorthandError) Error() string {
	return "unknown shorthand: " + e.Name
}
