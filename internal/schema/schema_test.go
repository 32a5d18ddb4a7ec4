package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dekarrin/fiberhost/internal/reader"
)

func TestCompositeSchema_AnalyzeRequiredAndUnexpected(t *testing.T) {
	_, root, errs, _ := reader.Load("t", "name: Demo\nextra: nope\n")
	require.Empty(t, errs)

	s := NewCompositeSchema()
	require.NoError(t, s.Add("metadata", map[string]Attribute{
		"name": {Type: StrType{}},
	}))
	require.NoError(t, s.Add("devices", map[string]Attribute{
		"device": {Type: StrType{}, Required: true},
	}))

	analysis, attrs := s.Analyze(root, Context{})
	require.Len(t, analysis.Warnings, 1)
	require.Len(t, analysis.Errors, 1)

	assert.Equal(t, "Demo", attrs["name"].Value)
	assert.True(t, attrs["device"].IsEllipsis())
}

func TestCompositeSchema_AnalyzeNamespaceFiltersOwnership(t *testing.T) {
	s := NewCompositeSchema()
	require.NoError(t, s.Add("metadata", map[string]Attribute{"name": {Type: StrType{}}}))
	require.NoError(t, s.Add("devices", map[string]Attribute{"device": {Type: StrType{}}}))

	_, root, errs, _ := reader.Load("t", "name: Demo\ndevice: pump1\n")
	require.Empty(t, errs)

	_, attrs := s.Analyze(root, Context{})
	metaOnly := s.AnalyzeNamespace(attrs, "metadata")

	assert.Contains(t, metaOnly, "name")
	assert.NotContains(t, metaOnly, "device")
}

func TestQuantityType_ParsesBareLiteral(t *testing.T) {
	_, root, errs, _ := reader.Load("t", "wait: 30 sec\n")
	require.Empty(t, errs)
	dict := root.(*reader.Dict)
	waitNode, _ := dict.Get("wait")

	_, scalar := QuantityType{}.Analyze(waitNode, Context{})
	require.False(t, scalar.IsEllipsis())
}

func TestListType_AnalyzesEachItem(t *testing.T) {
	_, root, errs, _ := reader.Load("t", "items:\n  - a\n  - b\n")
	require.Empty(t, errs)
	dict := root.(*reader.Dict)
	itemsNode, _ := dict.Get("items")

	analysis, scalar := ListType{Item: StrType{}}.Analyze(itemsNode, Context{})
	require.Empty(t, analysis.Errors)
	items := scalar.Value.([]Scalar)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].Value)
}
