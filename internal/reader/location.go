// Package reader turns protocol document source text into a located value
// tree: every scalar, mapping, and sequence produced here carries the byte
// range of source it came from, so every diagnostic raised anywhere
// downstream (schema analysis, expression evaluation, runtime errors) can
// point back at exact document text.
package reader

import (
	"strings"
)

// Position is a zero-indexed line/column pair within a Source.
type Position struct {
	Line   int
	Column int
}

// Source is a single document's normalized text. Offsets into a Source are
// always byte offsets into Text.
type Source struct {
	Name string
	Text string
}

// NewSource wraps raw text as a Source under the given name (typically a
// document id or filename, used only for diagnostic display).
func NewSource(name, text string) *Source {
	return &Source{Name: name, Text: text}
}

// OffsetPosition converts a byte offset into a line/column Position.
func (s *Source) OffsetPosition(offset int) Position {
	if offset > len(s.Text) {
		offset = len(s.Text)
	}
	head := s.Text[:offset]
	line := strings.Count(head, "\n")

	var column int
	if nl := strings.LastIndexByte(head, '\n'); nl >= 0 {
		column = offset - nl - 1
	} else {
		column = offset
	}

	return Position{Line: line, Column: column}
}

// Lines splits the source text into lines without their terminators, the
// same split Range.StartPosition/EndPosition indices are computed against.
func (s *Source) Lines() []string {
	return strings.Split(s.Text, "\n")
}

// Range is a half-open byte range [Start, End) within a Source. Every
// LocatedValue and every diagnostic carries one (or, for point locations,
// a zero-width Range where Start == End).
type Range struct {
	Source *Source
	Start  int
	End    int
}

// FullSource returns the Range spanning all of src's text.
func FullSource(src *Source) Range {
	return Range{Source: src, Start: 0, End: len(src.Text)}
}

// Slice returns the sub-range [r.Start+start, r.Start+end) of r, mirroring
// Python reader.LocationRange.__mod__.
func (r Range) Slice(start, end int) Range {
	return Range{Source: r.Source, Start: r.Start + start, End: r.Start + end}
}

// Union returns the smallest Range containing both r and other. Both must
// share the same Source.
func (r Range) Union(other Range) Range {
	start, end := r.Start, r.End
	if other.Start < start {
		start = other.Start
	}
	if other.End > end {
		end = other.End
	}
	return Range{Source: r.Source, Start: start, End: end}
}

// StartPosition returns the line/column of r's start offset.
func (r Range) StartPosition() Position {
	return r.Source.OffsetPosition(r.Start)
}

// EndPosition returns the line/column of r's end offset.
func (r Range) EndPosition() Position {
	return r.Source.OffsetPosition(r.End)
}

// Text returns the literal source text spanned by r.
func (r Range) Text() string {
	if r.Source == nil {
		return ""
	}
	start, end := r.Start, r.End
	if start < 0 {
		start = 0
	}
	if end > len(r.Source.Text) {
		end = len(r.Source.Text)
	}
	if start > end {
		return ""
	}
	return r.Source.Text[start:end]
}

// IsZero reports whether r is the empty Range (no Source set).
func (r Range) IsZero() bool {
	return r.Source == nil
}

// Node is anything produced by the reader that carries a source Range:
// *String, *Dict, and *List all implement it.
type Node interface {
	Range() Range
}

// String is a located scalar. Raw is the literal (unescaped, un-interpreted)
// text of the value as it appeared in the document.
type String struct {
	Raw string
	Rng Range
}

// Range implements Node.
func (s *String) Range() Range { return s.Rng }

// Slice returns the sub-string [start:end] of s as a new String whose Range
// is correspondingly narrowed, mirroring LocatedString.__getitem__.
func (s *String) Slice(start, end int) *String {
	if start < 0 {
		start = 0
	}
	if end > len(s.Raw) {
		end = len(s.Raw)
	}
	if start > end {
		start = end
	}
	return &String{Raw: s.Raw[start:end], Rng: s.Rng.Slice(start, end)}
}

// Strip returns s with leading and trailing ASCII whitespace removed, its
// Range narrowed to match.
func (s *String) Strip() *String {
	return s.lstrip().rstrip()
}

func (s *String) lstrip() *String {
	trimmed := strings.TrimLeft(s.Raw, " \t")
	return s.Slice(len(s.Raw)-len(trimmed), len(s.Raw))
}

func (s *String) rstrip() *String {
	trimmed := strings.TrimRight(s.Raw, " \t")
	return s.Slice(0, len(trimmed))
}

// Dict is a located mapping. Order preserves the original key insertion
// order so diagnostics and re-serialization are deterministic.
type Dict struct {
	Entries map[string]Node
	Order   []string
	Rng     Range
}

// Range implements Node.
func (d *Dict) Range() Range { return d.Rng }

// Get returns the value for key and whether it was present.
func (d *Dict) Get(key string) (Node, bool) {
	v, ok := d.Entries[key]
	return v, ok
}

// List is a located ordered sequence.
type List struct {
	Items []Node
	Rng   Range
}

// Range implements Node.
func (l *List) Range() Range { return l.Rng }
