package draft_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dekarrin/fiberhost/internal/draft"
	"github.com/dekarrin/fiberhost/internal/fiber"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/units/metadata"
	"github.com/dekarrin/fiberhost/internal/units/timer"
)

func newParser(t *testing.T) *fiber.FiberParser {
	t.Helper()
	fp, err := fiber.NewFiberParser([]fiber.Parser{metadata.NewParser(), timer.NewParser(), fiber.NewStateParser()})
	require.NoError(t, err)
	return fp
}

func TestCompile_ValidDraftExportsProtocolWithName(t *testing.T) {
	fp := newParser(t)

	d := draft.Draft{
		ID: uuid.New(),
		Documents: []draft.Document{
			{ID: "main", Path: "main.fiber", Source: "name: Demo\nsteps:\n  wait: 30 sec\n"},
		},
		EntryDocumentID: "main",
	}

	c := draft.Compile(d, fp, fiberexpr.NewEnv("global"))
	require.True(t, c.Valid, c.Analysis.Errors)
	assert.Equal(t, "Demo", c.Name)
	require.NotNil(t, c.Protocol)

	out := c.Export(d.Export())
	require.NotNil(t, out.Protocol)
	assert.Equal(t, "Demo", *out.Protocol.Name)
	assert.Equal(t, d.ID.String(), out.Protocol.Draft.ID)
	assert.Equal(t, "state", out.Protocol.Root["namespace"])
	child, ok := out.Protocol.Root["child"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "timer", child["namespace"])
	assert.True(t, out.Valid)
	assert.Empty(t, out.Analysis.Diagnostics)
}

func TestCompile_EmptyStepsIsInvalidWithNullProtocol(t *testing.T) {
	fp := newParser(t)

	d := draft.Draft{
		ID: uuid.New(),
		Documents: []draft.Document{
			{ID: "main", Path: "main.fiber", Source: "name: Demo\nsteps: {}\n"},
		},
		EntryDocumentID: "main",
	}

	c := draft.Compile(d, fp, fiberexpr.NewEnv("global"))
	require.False(t, c.Valid)
	require.Nil(t, c.Protocol)

	out := c.Export(d.Export())
	assert.False(t, out.Valid)
	assert.Nil(t, out.Protocol)
	require.NotEmpty(t, out.Analysis.Diagnostics)
	assert.Equal(t, "error", out.Analysis.Diagnostics[0].Kind)
}

func TestCompile_UnknownEntryDocumentIsInvalid(t *testing.T) {
	fp := newParser(t)

	d := draft.Draft{
		ID:              uuid.New(),
		Documents:       nil,
		EntryDocumentID: "missing",
	}

	c := draft.Compile(d, fp, fiberexpr.NewEnv("global"))
	require.False(t, c.Valid)
	assert.NotEmpty(t, c.Analysis.Errors)
}

func TestDraft_EntryDocumentLooksUpByID(t *testing.T) {
	d := draft.Draft{
		Documents: []draft.Document{
			{ID: "a", Path: "a.fiber"},
			{ID: "b", Path: "b.fiber"},
		},
		EntryDocumentID: "b",
	}
	doc, ok := d.EntryDocument()
	require.True(t, ok)
	assert.Equal(t, "b.fiber", doc.Path)

	d.EntryDocumentID = "nope"
	_, ok = d.EntryDocument()
	assert.False(t, ok)
}
