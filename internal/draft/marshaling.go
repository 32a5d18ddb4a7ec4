package draft

import (
	"errors"

	"github.com/dekarrin/fiberhost/internal/hosterr"
	"github.com/dekarrin/fiberhost/internal/runtime"
)

// jsonDocument is a Document's representation inside an exported
// protocol's draft reference — only id/path travel over the wire;
// Source never does.
type jsonDocument struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// jsonDraftRef is the "draft" field of an exported compiled protocol.
type jsonDraftRef struct {
	Documents       []jsonDocument `json:"documents"`
	EntryDocumentID string         `json:"entryDocumentId"`
	ID              string         `json:"id"`
}

// jsonDiagnostic is one analysis error or warning.
type jsonDiagnostic struct {
	Kind    string  `json:"kind"`
	Message string  `json:"message"`
	Ranges  [][]int `json:"ranges"`
}

// jsonAnalysis is the exported shape of a diag.Analysis. The editor
// metadata slices (completions, folds, ...) are carried through as empty
// arrays rather than omitted, matching a client that always expects
// these keys present even when nothing populated them this compile.
type jsonAnalysis struct {
	Completions []interface{}    `json:"completions"`
	Diagnostics []jsonDiagnostic `json:"diagnostics"`
	Folds       []interface{}    `json:"folds"`
	Hovers      []interface{}    `json:"hovers"`
	Relations   []interface{}    `json:"relations"`
	Renames     []interface{}    `json:"renames"`
	Selections  []interface{}    `json:"selections"`
}

// jsonProtocol is the "Compiled protocol" shape: a draft reference,
// the protocol's optional name, and the exported root block.
type jsonProtocol struct {
	Draft jsonDraftRef           `json:"draft"`
	Name  *string                `json:"name,omitempty"`
	Root  map[string]interface{} `json:"root"`
}

// jsonCompilation is the top-level "Compilation result" shape.
type jsonCompilation struct {
	Analysis      jsonAnalysis  `json:"analysis"`
	DocumentPaths []string      `json:"documentPaths"`
	Protocol      *jsonProtocol `json:"protocol"`
	Valid         bool          `json:"valid"`
}

// Export renders d as the stable "draft" field shared by every exported
// protocol.
func (d Draft) Export() jsonDraftRef {
	docs := make([]jsonDocument, len(d.Documents))
	for i, doc := range d.Documents {
		docs[i] = jsonDocument{ID: doc.ID, Path: doc.Path}
	}
	return jsonDraftRef{
		Documents:       docs,
		EntryDocumentID: d.EntryDocumentID,
		ID:              d.ID.String(),
	}
}

// Export renders c as the stable "Compilation result" JSON shape (spec
// §6), suitable for direct json.Marshal. Protocol is nil whenever
// c.Valid is false, the "protocol=null" contract spec scenario 2
// requires for a failed compile.
func (c Compilation) Export(draftRef jsonDraftRef) jsonCompilation {
	diagnostics := make([]jsonDiagnostic, 0, len(c.Analysis.Errors)+len(c.Analysis.Warnings))
	for _, err := range c.Analysis.Errors {
		diagnostics = append(diagnostics, exportDiagnostic("error", err))
	}
	for _, warn := range c.Analysis.Warnings {
		diagnostics = append(diagnostics, exportDiagnostic("warning", warn))
	}

	out := jsonCompilation{
		Analysis: jsonAnalysis{
			Completions: []interface{}{},
			Diagnostics: diagnostics,
			Folds:       []interface{}{},
			Hovers:      []interface{}{},
			Relations:   []interface{}{},
			Renames:     []interface{}{},
			Selections:  []interface{}{},
		},
		DocumentPaths: c.DocumentPaths,
		Valid:         c.Valid,
	}

	if c.Valid && c.Protocol != nil {
		var root map[string]interface{}
		if exporter, ok := c.Protocol.(runtime.Exporter); ok {
			root = exporter.Export()
		} else {
			root = map[string]interface{}{"namespace": "unknown"}
		}

		protocol := &jsonProtocol{Draft: draftRef, Root: root}
		if c.Name != "" {
			name := c.Name
			protocol.Name = &name
		}
		out.Protocol = protocol
	}

	return out
}

func exportDiagnostic(kind string, err error) jsonDiagnostic {
	return jsonDiagnostic{
		Kind:    kind,
		Message: err.Error(),
		Ranges:  rangesOf(err),
	}
}

// rangesOf extracts err's source range, if any, as the [[start,end]]
// pair shape used for a diagnostic's Ranges.
func rangesOf(err error) [][]int {
	var hostErr *hosterr.Error
	if !errors.As(err, &hostErr) {
		return [][]int{}
	}
	rng, ok := hostErr.Range()
	if !ok || rng.IsZero() {
		return [][]int{}
	}
	return [][]int{{rng.Start, rng.End}}
}
