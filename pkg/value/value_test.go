package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruthiness(t *testing.T) {
	assert.False(t, AsBool(Nil))
	assert.False(t, AsBool(Bool(false)))
	assert.True(t, AsBool(Bool(true)))
	assert.True(t, AsBool(IntV(0)))
	assert.True(t, AsBool(Str("")))
}

// Number hash/eq consistency: Integer(3) and Float(3.0) must compare
// equal (that a Table maps them to the same slot is checked in
// table_test.go).
func TestNumberEqualityAcrossKinds(t *testing.T) {
	assert.True(t, Equal(IntV(3), FloatV(3.0)))
	assert.False(t, Equal(IntV(3), FloatV(3.5)))
	assert.False(t, Equal(IntV(3), Str("3")))
	assert.False(t, Equal(Nil, Bool(false)))
}

func TestCompareOrdersNumbersAcrossKinds(t *testing.T) {
	ord, ok := Compare(IntV(2), FloatV(3.0))
	assert.True(t, ok)
	assert.Equal(t, -1, ord)

	ord, ok = Compare(FloatV(3.0), IntV(3))
	assert.True(t, ok)
	assert.Equal(t, 0, ord)
}

func TestCompareUnorderedTypesFails(t *testing.T) {
	_, ok := Compare(Bool(true), Bool(false))
	assert.False(t, ok)
	_, ok = Compare(Str("a"), IntV(1))
	assert.False(t, ok)
}

func TestToConcatString(t *testing.T) {
	s, ok := ToConcatString(Str("foo"))
	assert.True(t, ok)
	assert.Equal(t, "foo", s)

	s, ok = ToConcatString(IntV(2))
	assert.True(t, ok)
	assert.Equal(t, "2", s)

	_, ok = ToConcatString(Bool(true))
	assert.False(t, ok)
}

func TestAsIntRejectsFractionalFloat(t *testing.T) {
	_, ok := AsInt(FloatV(3.5))
	assert.False(t, ok)
	i, ok := AsInt(FloatV(3.0))
	assert.True(t, ok)
	assert.Equal(t, int64(3), i)
}
