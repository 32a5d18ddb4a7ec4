package reader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_SimpleDict(t *testing.T) {
	src, root, errs, warnings := Load("t", "name: Test\nsteps:\n  actions:\n    - wait: 30 sec\n")
	require.Empty(t, errs)
	require.Empty(t, warnings)
	require.NotNil(t, root)

	dict, ok := root.(*Dict)
	require.True(t, ok)

	nameVal, ok := dict.Get("name")
	require.True(t, ok)
	str, ok := nameVal.(*String)
	require.True(t, ok)
	assert.Equal(t, "Test", str.Raw)

	for _, rangeOwner := range []Node{root, nameVal} {
		rng := rangeOwner.Range()
		assert.Same(t, src, rng.Source)
	}
}

func TestTokenize_OddIndentationIsolated(t *testing.T) {
	_, _, errs, _ := Tokenize("t", "a: b\n c: d\ne: f\n")
	require.Len(t, errs, 1)

	// the error must reference the offending line's own range, and later
	// well-indented lines still parse once that line is skipped.
	_, tokens, errs2, _ := Tokenize("t", "a: b\ne: f\n")
	require.Empty(t, errs2)
	require.Len(t, tokens, 2)
}

func TestAnalyze_DuplicateKeyReportsBothRanges(t *testing.T) {
	_, _, errs, _ := Load("t", "a: 1\na: 2\n")
	require.Len(t, errs, 1)
	msg := errs[0].Error()
	assert.Contains(t, msg, "duplicate key")
}

func TestAnalyze_ListOfDicts(t *testing.T) {
	_, root, errs, _ := Load("t", "steps:\n  - wait: 1 sec\n  - wait: 2 sec\n")
	require.Empty(t, errs)

	dict := root.(*Dict)
	stepsNode, _ := dict.Get("steps")
	list := stepsNode.(*List)
	require.Len(t, list.Items, 2)

	first := list.Items[0].(*Dict)
	waitVal, ok := first.Get("wait")
	require.True(t, ok)
	assert.Equal(t, "1 sec", waitVal.(*String).Raw)
}

func TestRange_AllDiagnosticsWithinDocument(t *testing.T) {
	src, root, errs, warnings := Load("t", "name: Test\nsteps:\n  - wait: 30 sec\n")
	require.Empty(t, errs)
	require.Empty(t, warnings)

	var walk func(n Node)
	walk = func(n Node) {
		rng := n.Range()
		assert.GreaterOrEqual(t, rng.Start, 0)
		assert.LessOrEqual(t, rng.End, len(src.Text))

		switch v := n.(type) {
		case *Dict:
			for _, k := range v.Order {
				walk(v.Entries[k])
			}
		case *List:
			for _, item := range v.Items {
				walk(item)
			}
		}
	}
	walk(root)
}
