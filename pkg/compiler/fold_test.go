package compiler

import (
	"testing"

	"github.com/nooga/lucore/pkg/ast"
	"github.com/nooga/lucore/pkg/value"
	"github.com/stretchr/testify/assert"
)

func TestFoldLiteralCoversAllLiteralKinds(t *testing.T) {
	assert.Equal(t, constVal{true, value.Nil}, foldLiteral(&ast.NilExpr{}))
	assert.Equal(t, constVal{true, value.Bool(true)}, foldLiteral(&ast.BoolExpr{Value: true}))
	assert.Equal(t, constVal{true, value.IntV(7)}, foldLiteral(&ast.IntExpr{Value: 7}))
	assert.Equal(t, constVal{true, value.FloatV(1.5)}, foldLiteral(&ast.FloatExpr{Value: 1.5}))
	assert.Equal(t, constVal{true, value.Str("hi")}, foldLiteral(&ast.StringExpr{Value: "hi"}))
}

func TestFoldLiteralNotAKnownConstant(t *testing.T) {
	got := foldLiteral(&ast.NameExpr{Name: ast.Ident{Name: "x"}})
	assert.False(t, got.ok)
}

// Fold-equivalence: folding an arithmetic binary op must agree with the
// VM's own execArith helpers (value.Add et al.), since both paths call
// the exact same pkg/value functions.
func TestFoldBinaryMatchesRuntimeArithmetic(t *testing.T) {
	l := constVal{true, value.IntV(3)}
	r := constVal{true, value.IntV(4)}

	got, err := foldBinary(ast.BinAdd, l, r)
	assert.Nil(t, err)
	want, werr := value.Add(value.Int(3), value.Int(4))
	assert.Nil(t, werr)
	assert.Equal(t, value.Num(want), got.v)
}

func TestFoldBinaryDivByZeroPropagatesError(t *testing.T) {
	l := constVal{true, value.IntV(1)}
	r := constVal{true, value.IntV(0)}
	_, err := foldBinary(ast.BinIDiv, l, r)
	assert.NotNil(t, err)
}

func TestFoldBinaryConcatCoercesNumbers(t *testing.T) {
	l := constVal{true, value.Str("n=")}
	r := constVal{true, value.IntV(5)}
	got, err := foldBinary(ast.BinConcat, l, r)
	assert.Nil(t, err)
	assert.Equal(t, value.Str("n=5"), got.v)
}

func TestFoldBinaryComparisonAgainstUnorderedTypesErrors(t *testing.T) {
	l := constVal{true, value.Bool(true)}
	r := constVal{true, value.Bool(false)}
	_, err := foldBinary(ast.BinLt, l, r)
	assert.NotNil(t, err)
}

func TestFoldBinaryUnknownOperandYieldsNotOk(t *testing.T) {
	l := constVal{true, value.IntV(1)}
	r := constVal{} // not a known constant
	got, err := foldBinary(ast.BinAdd, l, r)
	assert.Nil(t, err)
	assert.False(t, got.ok)
}

func TestFoldUnaryMinusAndNot(t *testing.T) {
	got, err := foldUnary(ast.UnMinus, constVal{true, value.IntV(5)})
	assert.Nil(t, err)
	assert.Equal(t, value.IntV(-5), got.v)

	got, err = foldUnary(ast.UnNot, constVal{true, value.Bool(false)})
	assert.Nil(t, err)
	assert.Equal(t, value.Bool(true), got.v)
}

func TestFoldUnaryLengthOfStringLiteral(t *testing.T) {
	got, err := foldUnary(ast.UnLength, constVal{true, value.Str("abcd")})
	assert.Nil(t, err)
	assert.Equal(t, value.IntV(4), got.v)
}
