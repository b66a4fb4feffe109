package compiler

import (
	"github.com/nooga/lucore/pkg/ast"
	errs "github.com/nooga/lucore/pkg/errors"
	"github.com/nooga/lucore/pkg/value"
)

// constVal is the compile-time-known counterpart of value.Value,
// produced only for literal expressions and expressions built purely
// from literals — never for anything touching a local/global, since
// folding must never change observable evaluation order or raise a
// runtime error itself: for any expression built solely from literals,
// the constant folder's result must equal running the unfolded
// bytecode.
type constVal struct {
	ok bool
	v  value.Value
}

// foldLiteral converts the handful of AST literal node kinds into a
// constVal; anything else is not statically known.
func foldLiteral(e ast.Expr) constVal {
	switch n := e.(type) {
	case *ast.NilExpr:
		return constVal{true, value.Nil}
	case *ast.BoolExpr:
		return constVal{true, value.Bool(n.Value)}
	case *ast.IntExpr:
		return constVal{true, value.IntV(n.Value)}
	case *ast.FloatExpr:
		return constVal{true, value.FloatV(n.Value)}
	case *ast.StringExpr:
		return constVal{true, value.Str(n.Value)}
	default:
		return constVal{}
	}
}

// foldUnary reuses pkg/value's actual runtime helpers (UnaryMinus,
// UnaryBitNot, AsBool) so a folded constant's value is byte-for-byte
// identical to what the VM would have computed — the exact property
// the constant folder is required to preserve.
func foldUnary(op ast.UnOp, operand constVal) (constVal, *errs.OpError) {
	if !operand.ok {
		return constVal{}, nil
	}
	switch op {
	case ast.UnMinus:
		n, ok := value.AsNumberStrict(operand.v)
		if !ok {
			return constVal{}, nil
		}
		return constVal{true, value.Num(value.UnaryMinus(n))}, nil
	case ast.UnNot:
		return constVal{true, value.Bool(!value.AsBool(operand.v))}, nil
	case ast.UnBitNot:
		n, ok := value.AsNumberStrict(operand.v)
		if !ok {
			return constVal{}, nil
		}
		r, err := value.UnaryBitNot(n)
		if err != nil {
			return constVal{}, err
		}
		return constVal{true, value.Num(r)}, nil
	case ast.UnLength:
		if s, ok := value.AsStringStrict(operand.v); ok {
			return constVal{true, value.IntV(int64(len(s)))}, nil
		}
		return constVal{}, nil
	}
	return constVal{}, nil
}

// foldBinary mirrors foldUnary for the arithmetic/comparison/concat
// binary operators; logical And/Or are never folded here since their
// short-circuit behavior is encoded directly by the statement/expr
// lowering (see expr.go).
func foldBinary(op ast.BinOp, l, r constVal) (constVal, *errs.OpError) {
	if !l.ok || !r.ok {
		return constVal{}, nil
	}
	ln, lok := value.AsNumberStrict(l.v)
	rn, rok := value.AsNumberStrict(r.v)
	switch op {
	case ast.BinAdd, ast.BinSub, ast.BinMul, ast.BinDiv, ast.BinIDiv, ast.BinMod, ast.BinPow,
		ast.BinBitAnd, ast.BinBitOr, ast.BinBitXor, ast.BinShl, ast.BinShr:
		if !lok || !rok {
			return constVal{}, nil
		}
		var res value.Number
		var oerr *errs.OpError
		switch op {
		case ast.BinAdd:
			res, oerr = value.Add(ln, rn)
		case ast.BinSub:
			res, oerr = value.Sub(ln, rn)
		case ast.BinMul:
			res, oerr = value.Mul(ln, rn)
		case ast.BinDiv:
			res, oerr = value.Div(ln, rn)
		case ast.BinIDiv:
			res, oerr = value.IDiv(ln, rn)
		case ast.BinMod:
			res, oerr = value.Modulo(ln, rn)
		case ast.BinPow:
			res, oerr = value.Pow(ln, rn)
		case ast.BinBitAnd:
			res, oerr = value.BitAnd(ln, rn)
		case ast.BinBitOr:
			res, oerr = value.BitOr(ln, rn)
		case ast.BinBitXor:
			res, oerr = value.BitXor(ln, rn)
		case ast.BinShl:
			res, oerr = value.ShiftLeft(ln, rn)
		case ast.BinShr:
			res, oerr = value.ShiftRight(ln, rn)
		}
		if oerr != nil {
			return constVal{}, oerr
		}
		return constVal{true, value.Num(res)}, nil
	case ast.BinEq:
		return constVal{true, value.Bool(value.Equal(l.v, r.v))}, nil
	case ast.BinNeq:
		return constVal{true, value.Bool(!value.Equal(l.v, r.v))}, nil
	case ast.BinLt, ast.BinLe, ast.BinGt, ast.BinGe:
		ord, ok := value.Compare(l.v, r.v)
		if !ok {
			return constVal{}, errs.NewOpError(errs.CmpErr, "attempt to compare incompatible values")
		}
		var b bool
		switch op {
		case ast.BinLt:
			b = ord < 0
		case ast.BinLe:
			b = ord <= 0
		case ast.BinGt:
			b = ord > 0
		case ast.BinGe:
			b = ord >= 0
		}
		return constVal{true, value.Bool(b)}, nil
	case ast.BinConcat:
		ls, lok := value.ToConcatString(l.v)
		rs, rok := value.ToConcatString(r.v)
		if !lok || !rok {
			return constVal{}, nil
		}
		return constVal{true, value.Str(ls + rs)}, nil
	}
	return constVal{}, nil
}
