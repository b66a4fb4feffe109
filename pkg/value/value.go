// Package value implements the tagged Value union, Number arithmetic,
// and the reference-counted heap backing Table and Function.
package value

import (
	"fmt"
	"strconv"

	"github.com/davecgh/go-spew/spew"
)

// ValueType is the tag of a Value.
type ValueType uint8

const (
	TypeNil ValueType = iota
	TypeBool
	TypeNumber
	TypeString
	TypeTable
	TypeFunction
	// TypeUnsupported is a placeholder variant for userdata with no
	// operations defined. No constructor produces it; it exists only so
	// a future metamethod-dispatch redesign has a named slot to hang off.
	TypeUnsupported
)

func (t ValueType) String() string {
	switch t {
	case TypeNil:
		return "nil"
	case TypeBool:
		return "bool"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeTable:
		return "table"
	case TypeFunction:
		return "function"
	default:
		return "unsupported"
	}
}

// Value is a tagged union: Nil | Bool | Number | String | Table | Function.
// Strings compare and hash by content (a Go string already does this),
// and Table/Function compare by identity (pointer equality) — see
// DESIGN.md's Open Question note on table/function equality.
type Value struct {
	typ ValueType
	b   bool
	n   Number
	s   string
	t   *Table
	fn  *Function
}

var Nil = Value{typ: TypeNil}

func Bool(b bool) Value    { return Value{typ: TypeBool, b: b} }
func Num(n Number) Value   { return Value{typ: TypeNumber, n: n} }
func IntV(i int64) Value   { return Value{typ: TypeNumber, n: Int(i)} }
func FloatV(f float64) Value { return Value{typ: TypeNumber, n: Flt(f)} }
func Str(s string) Value   { return Value{typ: TypeString, s: s} }

func TableV(t *Table) Value {
	if t == nil {
		panic("value: nil *Table passed to TableV")
	}
	return Value{typ: TypeTable, t: t}
}

func FunctionV(fn *Function) Value {
	if fn == nil {
		panic("value: nil *Function passed to FunctionV")
	}
	return Value{typ: TypeFunction, fn: fn}
}

func (v Value) Type() ValueType { return v.typ }
func (v Value) IsNil() bool     { return v.typ == TypeNil }
func (v Value) IsBool() bool    { return v.typ == TypeBool }
func (v Value) IsNumber() bool  { return v.typ == TypeNumber }
func (v Value) IsString() bool  { return v.typ == TypeString }
func (v Value) IsTable() bool   { return v.typ == TypeTable }
func (v Value) IsFunction() bool { return v.typ == TypeFunction }

func (v Value) AsBoolRaw() bool      { return v.b }
func (v Value) AsNumber() Number     { return v.n }
func (v Value) AsString() string     { return v.s }
func (v Value) AsTable() *Table      { return v.t }
func (v Value) AsFunction() *Function { return v.fn }

// AsNumberStrict returns (n, true) only when v is actually a Number —
// unlike AsInt/AsFloat it performs no coercion, for callers (the
// constant folder) that must know whether an operand was a number at
// all before reaching for arithmetic.
func AsNumberStrict(v Value) (Number, bool) {
	if v.typ != TypeNumber {
		return Number{}, false
	}
	return v.n, true
}

// AsStringStrict returns (s, true) only when v is actually a String.
func AsStringStrict(v Value) (string, bool) {
	if v.typ != TypeString {
		return "", false
	}
	return v.s, true
}

// AsBool returns Lua truthiness: only Nil and Bool(false) are falsy.
func AsBool(v Value) bool {
	if v.typ == TypeNil {
		return false
	}
	if v.typ == TypeBool {
		return v.b
	}
	return true
}

// AsInt coerces v to an int64, failing for non-numbers and for floats
// with a fractional part.
func AsInt(v Value) (int64, bool) {
	if v.typ != TypeNumber {
		return 0, false
	}
	return v.n.AsInt()
}

// AsFloat coerces v to an f64, failing for non-numbers.
func AsFloat(v Value) (float64, bool) {
	if v.typ != TypeNumber {
		return 0, false
	}
	return v.n.AsFloat(), true
}

// Equal implements cross-variant equality: Number compares via
// NumbersEqual, String by content, Table/Function by identity, Bool by
// value, Nil only equals Nil; any other pairing is false.
func Equal(a, b Value) bool {
	if a.typ != b.typ {
		// The only cross-tag case worth comparing is Number vs Number,
		// which can't happen here since both already share TypeNumber.
		return false
	}
	switch a.typ {
	case TypeNil:
		return true
	case TypeBool:
		return a.b == b.b
	case TypeNumber:
		return NumbersEqual(a.n, b.n)
	case TypeString:
		return a.s == b.s
	case TypeTable:
		return a.t == b.t
	case TypeFunction:
		return a.fn == b.fn
	default:
		return false
	}
}

// Compare returns an ordering (-1/0/1) and true when a and b are
// ordered: numbers totally (except NaN), strings lexicographically by
// byte content. Any other pairing (including Table/Function, which
// has no defined ordering) returns ok=false.
func Compare(a, b Value) (int, bool) {
	if a.typ == TypeNumber && b.typ == TypeNumber {
		return NumbersCompare(a.n, b.n)
	}
	if a.typ == TypeString && b.typ == TypeString {
		switch {
		case a.s < b.s:
			return -1, true
		case a.s > b.s:
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

// ToConcatString renders v the way the Concat opcode does: strings
// pass through, numbers format the way Lua prints them, everything
// else is not concatenable (the caller raises InvalidType).
func ToConcatString(v Value) (string, bool) {
	switch v.typ {
	case TypeString:
		return v.s, true
	case TypeNumber:
		if v.n.Kind == KindInt {
			return strconv.FormatInt(v.n.I, 10), true
		}
		return strconv.FormatFloat(v.n.F, 'g', -1, 64), true
	default:
		return "", false
	}
}

// Inspect renders v for humans (CLI result output, and the entries of
// a Table dump). It is never consulted by compile or execute
// semantics. Nested Table dumps delegate to go-spew (see DESIGN.md);
// a Function prints as its address and FuncId.
func Inspect(v Value) string {
	switch v.typ {
	case TypeNil:
		return "nil"
	case TypeBool:
		if v.b {
			return "true"
		}
		return "false"
	case TypeNumber:
		if v.n.Kind == KindInt {
			return strconv.FormatInt(v.n.I, 10)
		}
		return strconv.FormatFloat(v.n.F, 'g', -1, 64)
	case TypeString:
		return strconv.Quote(v.s)
	case TypeTable:
		return fmt.Sprintf("table: %p %s", v.t, spew.Sdump(v.t.entries()))
	case TypeFunction:
		return fmt.Sprintf("function: %p (func #%d)", v.fn, v.fn.ID)
	default:
		return "<unsupported>"
	}
}
