package fiber

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dekarrin/fiberhost/internal/state"
)

type stringUnitState string

func (s stringUnitState) Or(other UnitState) UnitState {
	if other == nil {
		return s
	}
	return other
}

func (s stringUnitState) And(other UnitState) (UnitState, UnitState) {
	return s, other
}

func (s stringUnitState) Export() interface{} { return string(s) }

func (s stringUnitState) Factory() state.Factory { return nil }

func TestBlockState_OrPrefersOtherOnSharedNamespace(t *testing.T) {
	a := BlockState{"devices": stringUnitState("outer")}
	b := BlockState{"devices": stringUnitState("inner")}

	merged := a.Or(b)
	assert.Equal(t, stringUnitState("inner"), merged["devices"])
}

func TestBlockState_OrFillsInMissingNamespace(t *testing.T) {
	a := BlockState{"devices": stringUnitState("outer")}
	b := BlockState{"record": stringUnitState("inner")}

	merged := a.Or(b)
	assert.Equal(t, stringUnitState("outer"), merged["devices"])
	assert.Equal(t, stringUnitState("inner"), merged["record"])
}

func TestBlockState_AndSplitsBothSides(t *testing.T) {
	a := BlockState{"devices": stringUnitState("left")}
	left, right := a.And(BlockState{"devices": stringUnitState("right")})

	assert.Equal(t, stringUnitState("left"), left["devices"])
	assert.Equal(t, stringUnitState("right"), right["devices"])
}

func TestBlockState_AndHandlesOneSidedNil(t *testing.T) {
	a := BlockState{"devices": nil}
	left, right := a.And(BlockState{"devices": stringUnitState("right")})

	assert.Nil(t, left["devices"])
	assert.Equal(t, stringUnitState("right"), right["devices"])
}

func TestBlockState_Export(t *testing.T) {
	s := BlockState{"devices": stringUnitState("x"), "record": nil}
	exported := s.Export()

	assert.Equal(t, "x", exported["devices"])
	_, hasRecord := exported["record"]
	assert.False(t, hasRecord)
}
