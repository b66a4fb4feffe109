package value

import (
	"math"

	"github.com/dolthub/swiss"
	errs "github.com/nooga/lucore/pkg/errors"
)

// Table is the runtime's mutable Value->Value mapping. It is backed by
// a SwissTable (see DESIGN.md for why this library over a plain Go
// map). Keys are canonicalized before every Put/Get/Delete so that Go's
// native key equality agrees with the language's numeric key equality
// (Integer(3) and Float(3.0) must hit the same slot).
type Table struct {
	object
	m *swiss.Map[Value, Value]
}

// newTable is called only by Heap.AllocTable; Table lifetimes are
// always heap-managed so a Table is never constructed directly by
// compiler or VM code.
func newTable(sizeHint int) *Table {
	if sizeHint <= 0 {
		sizeHint = 8
	}
	return &Table{m: swiss.NewMap[Value, Value](uint32(sizeHint))}
}

// CanonicalizeKey rewrites a Float key with no fractional part (that
// fits in i64) to the equivalent Integer, so that table[3] and
// table[3.0] address the same slot.
func CanonicalizeKey(v Value) Value {
	if v.typ != TypeNumber || v.n.Kind != KindFloat {
		return v
	}
	if i, ok := v.n.AsInt(); ok {
		return IntV(i)
	}
	return v
}

// Get reads a key, returning Nil for a missing key.
func (t *Table) Get(key Value) Value {
	v, ok := t.m.Get(CanonicalizeKey(key))
	if !ok {
		return Nil
	}
	return v
}

// Set assigns val to key. Assigning Nil removes the key. Nil and NaN
// keys are rejected, each with its own named error kind.
func (t *Table) Set(key, val Value) *errs.OpError {
	if key.typ == TypeNil {
		return errs.NewOpError(errs.TableIndexOutOfBounds, "table index is nil")
	}
	if key.typ == TypeNumber && key.n.Kind == KindFloat && math.IsNaN(key.n.F) {
		return errs.NewOpError(errs.TableIndexNaN, "table index is NaN")
	}
	ck := CanonicalizeKey(key)
	if val.typ == TypeNil {
		t.m.Delete(ck)
		return nil
	}
	t.m.Put(ck, val)
	return nil
}

// Len returns the table's element count. Lua's "border" semantics for
// sequences with holes are left unspecified; this implementation uses
// the total key count, which is exact for tables used purely as arrays
// (no holes) and is the simplest total function available over an
// unordered map.
func (t *Table) Len() int64 { return int64(t.m.Count()) }

// entries is a debug-only snapshot used by Inspect; never consulted by
// compile or execute semantics.
func (t *Table) entries() map[string]string {
	out := make(map[string]string, t.m.Count())
	t.m.Iter(func(k, v Value) bool {
		out[Inspect(k)] = Inspect(v)
		return false
	})
	return out
}

// visitChildren reports every outgoing strong edge (both keys and
// values) to the GC.
func (t *Table) visitChildren(visit func(Value)) {
	t.m.Iter(func(k, v Value) bool {
		visit(k)
		visit(v)
		return false
	})
}
