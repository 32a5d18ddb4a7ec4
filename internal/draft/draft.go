// Package draft implements the multi-document draft model: a named
// collection of source documents compiled together from a single entry
// point, and the compilation result exported over the bridge in a
// stable JSON shape.
//
// Grounded on original_source/host/pr1/draft.py's Draft/DraftCompilation
// dataclasses; that file constructs a fresh FiberParser per compile
// (parser = FiberParser(draft=self, host=host, Parsers=...)), but in this
// port namespace registration happens once at host startup, so Compile
// takes an already-built *fiber.FiberParser instead of building one.
package draft

import (
	"github.com/google/uuid"

	"github.com/dekarrin/fiberhost/internal/diag"
	"github.com/dekarrin/fiberhost/internal/fiber"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/hosterr"
	"github.com/dekarrin/fiberhost/internal/reader"
	"github.com/dekarrin/fiberhost/internal/runtime"
)

// Document is one source file making up a Draft. Path is the document's
// logical location, carried through into the compiled export shape and
// used as the reader.Source name for diagnostics; it is never resolved
// against a real filesystem here (that collaborator lives outside the
// core).
type Document struct {
	ID     string
	Path   string
	Source string
}

// Draft is a named collection of Documents compiled together starting
// from EntryDocumentID (original_source draft.py's Draft).
type Draft struct {
	ID              uuid.UUID
	Documents       []Document
	EntryDocumentID string
}

// EntryDocument returns the Document whose ID matches d.EntryDocumentID.
func (d Draft) EntryDocument() (Document, bool) {
	for _, doc := range d.Documents {
		if doc.ID == d.EntryDocumentID {
			return doc, true
		}
	}
	return Document{}, false
}

// Compilation is the result of compiling a Draft: analysis,
// documentPaths, protocol, and whether it's valid.
type Compilation struct {
	Analysis      diag.Analysis
	DocumentPaths []string
	Protocol      runtime.Block
	Name          string
	DraftID       uuid.UUID
	Valid         bool
}

// Compile parses Draft's entry document and runs it through parser's
// full pipeline (original_source draft.py's Draft.compile). A draft
// whose entry id matches no document, or whose entry document fails to
// tokenize, yields an invalid Compilation with Protocol left nil, the
// same "protocol=null" contract as a schema/semantic compile failure.
func Compile(d Draft, parser *fiber.FiberParser, globalEnv *fiberexpr.Env) Compilation {
	entry, ok := d.EntryDocument()
	if !ok {
		return Compilation{
			Analysis: diag.Analysis{}.AddErrors(
				hosterr.Internalf("draft %s has no document matching entry id %q", d.ID, d.EntryDocumentID),
			),
			DraftID: d.ID,
		}
	}

	_, root, errs, warnings := reader.Load(entry.Path, entry.Source)

	var analysis diag.Analysis
	for _, e := range errs {
		analysis = analysis.AddErrors(e)
	}
	for _, w := range warnings {
		analysis = analysis.AddWarnings(w)
	}
	if !analysis.Valid() {
		return Compilation{
			Analysis:      analysis,
			DocumentPaths: []string{entry.Path},
			DraftID:       d.ID,
		}
	}

	result := parser.Compile(root, root.Range(), globalEnv)
	analysis = analysis.Merge(result.Analysis)

	c := Compilation{
		Analysis:      analysis,
		DocumentPaths: []string{entry.Path},
		DraftID:       d.ID,
		Valid:         analysis.Valid(),
	}
	if name, ok := result.RootAttrs["name"]; ok && !name.IsEllipsis() {
		if s, ok := name.Value.(string); ok {
			c.Name = s
		}
	}
	if c.Valid {
		c.Protocol = result.Root
	}
	return c
}
