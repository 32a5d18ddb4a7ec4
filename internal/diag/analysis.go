// Package diag defines Analysis, the monoidal accumulator of diagnostics
// and editor metadata that every compiler stage produces and merges (spec
// §3 "Analysis").
package diag

import (
	"github.com/dekarrin/fiberhost/internal/reader"
)

// Severity tags a Diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// Diagnostic is a single user-facing message attached to zero or more
// source ranges.
type Diagnostic struct {
	Severity Severity
	Message  string
	Ranges   []reader.Range
}

// Completion is a single editor-facing autocompletion suggestion.
type Completion struct {
	Range reader.Range
	Label string
	Kind  string
}

// Fold marks a collapsible source range (e.g. an editor code fold).
type Fold struct {
	Range reader.Range
}

// Hover is editor-facing hover text for a range.
type Hover struct {
	Range reader.Range
	Text  string
}

// Relation links two ranges (e.g. "go to definition").
type Relation struct {
	From reader.Range
	To   reader.Range
	Kind string
}

// Rename describes a renamable identifier occurrence.
type Rename struct {
	Range       reader.Range
	Placeholder string
}

// Selection is an editor "expand selection" range.
type Selection struct {
	Range reader.Range
}

// Analysis accumulates every diagnostic and editor-metadata item produced
// while compiling a protocol. It is a monoid under Merge, with the zero
// value as its neutral element: for any Analysis a, a.Merge(Analysis{}) and
// Analysis{}.Merge(a) are both equal (by content) to a, and Merge is
// associative.
type Analysis struct {
	Errors      []error
	Warnings    []error
	Completions []Completion
	Folds       []Fold
	Hovers      []Hover
	Relations   []Relation
	Renames     []Rename
	Selections  []Selection
}

// Merge appends other's contents onto a and returns a, implementing the
// monoid's associative operation.
func (a Analysis) Merge(other Analysis) Analysis {
	a.Errors = append(a.Errors, other.Errors...)
	a.Warnings = append(a.Warnings, other.Warnings...)
	a.Completions = append(a.Completions, other.Completions...)
	a.Folds = append(a.Folds, other.Folds...)
	a.Hovers = append(a.Hovers, other.Hovers...)
	a.Relations = append(a.Relations, other.Relations...)
	a.Renames = append(a.Renames, other.Renames...)
	a.Selections = append(a.Selections, other.Selections...)
	return a
}

// AddErrors appends errs to a.Errors and returns a, for chaining at
// call sites that both fail and need to keep accumulating: failure
// short-circuits the current subtree but not siblings.
func (a Analysis) AddErrors(errs ...error) Analysis {
	a.Errors = append(a.Errors, errs...)
	return a
}

// AddWarnings appends warnings to a.Warnings and returns a.
func (a Analysis) AddWarnings(warnings ...error) Analysis {
	a.Warnings = append(a.Warnings, warnings...)
	return a
}

// Valid reports whether a carries no errors.
func (a Analysis) Valid() bool {
	return len(a.Errors) == 0
}
