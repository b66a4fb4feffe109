package value

import (
	"math"

	errs "github.com/nooga/lucore/pkg/errors"
)

// NumberKind discriminates the two Number variants.
type NumberKind uint8

const (
	KindInt NumberKind = iota
	KindFloat
)

// Number is Integer(i64) | Float(f64).
type Number struct {
	Kind NumberKind
	I    int64
	F    float64
}

func Int(i int64) Number     { return Number{Kind: KindInt, I: i} }
func Flt(f float64) Number   { return Number{Kind: KindFloat, F: f} }
func (n Number) IsInt() bool { return n.Kind == KindInt }

// AsFloat coerces a Number to f64, the same widening every
// Float-producing operator applies to a mixed Integer/Float operand
// pair.
func (n Number) AsFloat() float64 {
	if n.Kind == KindInt {
		return float64(n.I)
	}
	return n.F
}

// AsInt returns the integer-representable value of n, failing for a
// Float with a fractional part or out of i64 range.
func (n Number) AsInt() (int64, bool) {
	if n.Kind == KindInt {
		return n.I, true
	}
	f := n.F
	if math.IsNaN(f) || math.Trunc(f) != f {
		return 0, false
	}
	// float64 can represent integers exactly up to 2^53; beyond that we
	// still accept values that round-trip through int64 exactly.
	if f < -9.2233720368547758e18 || f >= 9.2233720368547758e18 {
		return 0, false
	}
	return int64(f), true
}

// NumbersEqual: Integer(i) == Float(f) iff f has no fractional part
// and f == i as f64.
func NumbersEqual(a, b Number) bool {
	if a.Kind == KindInt && b.Kind == KindInt {
		return a.I == b.I
	}
	if a.Kind == KindFloat && b.Kind == KindFloat {
		return a.F == b.F
	}
	var i int64
	var f float64
	if a.Kind == KindInt {
		i, f = a.I, b.F
	} else {
		i, f = b.I, a.F
	}
	return f == math.Trunc(f) && f == float64(i)
}

// NumbersCompare returns (-1,0,1, ok). ok is false when either operand
// is NaN — an unordered comparison.
func NumbersCompare(a, b Number) (int, bool) {
	af, bf := a.AsFloat(), b.AsFloat()
	if math.IsNaN(af) || math.IsNaN(bf) {
		return 0, false
	}
	if a.Kind == KindInt && b.Kind == KindInt {
		switch {
		case a.I < b.I:
			return -1, true
		case a.I > b.I:
			return 1, true
		default:
			return 0, true
		}
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	default:
		return 0, true
	}
}

func intOpErr(msg string) *errs.OpError {
	return errs.NewOpError(errs.InvalidType, msg)
}

// Add implements `+`: Integer+Integer wraps as i64, any Float operand
// promotes to Float.
func Add(a, b Number) (Number, *errs.OpError) {
	if a.Kind == KindInt && b.Kind == KindInt {
		return Int(a.I + b.I), nil // wrapping add
	}
	return Flt(a.AsFloat() + b.AsFloat()), nil
}

func Sub(a, b Number) (Number, *errs.OpError) {
	if a.Kind == KindInt && b.Kind == KindInt {
		return Int(a.I - b.I), nil
	}
	return Flt(a.AsFloat() - b.AsFloat()), nil
}

func Mul(a, b Number) (Number, *errs.OpError) {
	if a.Kind == KindInt && b.Kind == KindInt {
		return Int(a.I * b.I), nil
	}
	return Flt(a.AsFloat() * b.AsFloat()), nil
}

// Div implements `/`: always produces Float.
func Div(a, b Number) (Number, *errs.OpError) {
	return Flt(a.AsFloat() / b.AsFloat()), nil
}

// IDiv implements `//`: Integer//Integer stays Integer (floor
// division); otherwise floors the float result.
func IDiv(a, b Number) (Number, *errs.OpError) {
	if a.Kind == KindInt && b.Kind == KindInt {
		if b.I == 0 {
			return Number{}, intOpErr("integer division by zero")
		}
		q := a.I / b.I
		if (a.I%b.I != 0) && ((a.I < 0) != (b.I < 0)) {
			q-- // floor, not truncate, toward negative infinity
		}
		return Int(q), nil
	}
	return Flt(math.Floor(a.AsFloat() / b.AsFloat())), nil
}

// Modulo implements `%`: Lua's floored modulo, sign follows the divisor.
func Modulo(a, b Number) (Number, *errs.OpError) {
	if a.Kind == KindInt && b.Kind == KindInt {
		if b.I == 0 {
			return Number{}, intOpErr("integer modulo by zero")
		}
		r := a.I % b.I
		if r != 0 && ((r < 0) != (b.I < 0)) {
			r += b.I
		}
		return Int(r), nil
	}
	af, bf := a.AsFloat(), b.AsFloat()
	r := math.Mod(af, bf)
	if r != 0 && ((r < 0) != (bf < 0)) {
		r += bf
	}
	return Flt(r), nil
}

// Pow implements `^`: always produces Float.
func Pow(a, b Number) (Number, *errs.OpError) {
	return Flt(math.Pow(a.AsFloat(), b.AsFloat())), nil
}

func toBitwiseInt(n Number) (int64, *errs.OpError) {
	i, ok := n.AsInt()
	if !ok {
		return 0, errs.NewOpError(errs.FloatToIntConversionFailed,
			"number has no integer representation")
	}
	return i, nil
}

func BitAnd(a, b Number) (Number, *errs.OpError) {
	ai, err := toBitwiseInt(a)
	if err != nil {
		return Number{}, err
	}
	bi, err := toBitwiseInt(b)
	if err != nil {
		return Number{}, err
	}
	return Int(ai & bi), nil
}

func BitOr(a, b Number) (Number, *errs.OpError) {
	ai, err := toBitwiseInt(a)
	if err != nil {
		return Number{}, err
	}
	bi, err := toBitwiseInt(b)
	if err != nil {
		return Number{}, err
	}
	return Int(ai | bi), nil
}

func BitXor(a, b Number) (Number, *errs.OpError) {
	ai, err := toBitwiseInt(a)
	if err != nil {
		return Number{}, err
	}
	bi, err := toBitwiseInt(b)
	if err != nil {
		return Number{}, err
	}
	return Int(ai ^ bi), nil
}

func ShiftLeft(a, b Number) (Number, *errs.OpError) {
	ai, err := toBitwiseInt(a)
	if err != nil {
		return Number{}, err
	}
	bi, err := toBitwiseInt(b)
	if err != nil {
		return Number{}, err
	}
	return Int(shiftLua(ai, bi)), nil
}

func ShiftRight(a, b Number) (Number, *errs.OpError) {
	ai, err := toBitwiseInt(a)
	if err != nil {
		return Number{}, err
	}
	bi, err := toBitwiseInt(b)
	if err != nil {
		return Number{}, err
	}
	return Int(shiftLua(ai, -bi)), nil
}

// shiftLua implements Lua's logical shift: positive n shifts left,
// negative shifts right; shifts of 64 or more produce 0.
func shiftLua(v, n int64) int64 {
	if n <= -64 || n >= 64 {
		return 0
	}
	if n >= 0 {
		return int64(uint64(v) << uint(n))
	}
	return int64(uint64(v) >> uint(-n))
}

func UnaryMinus(a Number) Number {
	if a.Kind == KindInt {
		return Int(-a.I)
	}
	return Flt(-a.F)
}

func UnaryBitNot(a Number) (Number, *errs.OpError) {
	ai, err := toBitwiseInt(a)
	if err != nil {
		return Number{}, err
	}
	return Int(^ai), nil
}
