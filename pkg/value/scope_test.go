package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewScopeZeroesCells(t *testing.T) {
	s := NewScope(3)
	assert.Equal(t, int32(1), s.RefCount())
	assert.Len(t, s.Cells, 3)
	for _, c := range s.Cells {
		assert.True(t, c.IsNil())
	}
}

func TestScopeRetainRelease(t *testing.T) {
	s := NewScope(1)
	assert.Equal(t, s, s.Retain())
	assert.Equal(t, int32(2), s.RefCount())

	s.Release()
	assert.Equal(t, int32(1), s.RefCount())

	s.Release()
	assert.Equal(t, int32(0), s.RefCount())
}

func TestScopeReleaseDoesNotGoNegative(t *testing.T) {
	s := NewScope(1)
	s.Release()
	s.Release()
	assert.Equal(t, int32(0), s.RefCount())
}

func TestFunctionVisitChildrenWalksCapturedScopes(t *testing.T) {
	s1 := NewScope(1)
	s1.Cells[0] = IntV(1)
	s2 := NewScope(2)
	s2.Cells[0] = Str("a")
	s2.Cells[1] = Str("b")

	fn := newFunction(0, []*Scope{s1, s2})
	var seen []Value
	fn.visitChildren(func(v Value) { seen = append(seen, v) })
	assert.Equal(t, []Value{IntV(1), Str("a"), Str("b")}, seen)
}
