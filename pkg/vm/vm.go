// Package vm implements the fetch-decode-execute loop that runs a
// pkg/bytecode.Chunk against a pkg/value heap. Calls are synchronous Go
// function calls — runFrame recurses directly into the callee — since
// there are no suspension points inside the loop; there is no explicit
// call-frame stack. Each activation has its own scope stack,
// addressed by the bytecode's (scope, offset) Register pairs rather
// than a single flat per-frame register file.
package vm

import (
	"github.com/nooga/lucore/pkg/bytecode"
	errs "github.com/nooga/lucore/pkg/errors"
	"github.com/nooga/lucore/pkg/value"
)

// globalsScope is the sentinel Register.Scope the compiler uses to
// address the implicit globals table rather than a frame-local scope
// (see pkg/compiler's globalsRegister).
const globalsScope uint8 = 0xFF

// VM executes one Chunk's functions against a shared heap and globals
// table. It holds no per-call state of its own — frame lives entirely
// on the Go call stack via runFrame's recursion — so one VM can run
// the same chunk's functions reentrantly (e.g. a callback invoked from
// within another call).
type VM struct {
	chunk   *bytecode.Chunk
	heap    *value.Heap
	globals *value.Table
}

// New creates a VM bound to chunk, executing against globals (owned by
// the embedder's driver.Runtime) and heap.
func New(chunk *bytecode.Chunk, globals *value.Table, heap *value.Heap) *VM {
	return &VM{chunk: chunk, heap: heap, globals: globals}
}

// frame is one active function activation. Rather than a flat register
// window, a frame's registers live in a stack of *value.Scope
// objects: `referenced` is the (possibly empty) list of scopes this
// function's closure captured at definition time, and `scopes` is the
// list pushed/popped by this invocation's own OpPushScope/OpPopScope
// instructions — the first of which is always the function's entry
// scope (see pushScope's seeding of parameters, below).
type frame struct {
	fn         *bytecode.CompiledFunction
	ip         int
	referenced []*value.Scope
	scopes     []*value.Scope
	args       []value.Value
	seeded     bool
	vaArgs     []value.Value
	results    []value.Value // this frame's own Results, built by OpSetRet, returned on OpRet
	lastResults []value.Value // the most recently completed nested call's returned values
}

func (f *frame) cells(scope uint8) []value.Value {
	if int(scope) < len(f.referenced) {
		return f.referenced[scope].Cells
	}
	return f.scopes[int(scope)-len(f.referenced)].Cells
}

// Execute runs chunk's main function (FuncId 0) with no arguments,
// the embedder's top-level entry point. A Collect() pass runs once
// execution returns — at least once per top-level execute is required.
func (vm *VM) Execute() ([]value.Value, errs.LuaError) {
	main := vm.chunk.Functions[0]
	results, err := vm.runFrame(main, nil, nil)
	vm.heap.Collect()
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Call invokes fn with args, for use by the embedder or by a future
// builtin that needs to call back into user code.
func (vm *VM) Call(fn *value.Function, args []value.Value) ([]value.Value, errs.LuaError) {
	cf := vm.chunk.Functions[fn.ID]
	results, err := vm.runFrame(cf, fn.Captured, args)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (vm *VM) readReg(f *frame, r bytecode.Register) value.Value {
	if r.Scope == globalsScope {
		return value.TableV(vm.globals)
	}
	return f.cells(r.Scope)[r.Offset]
}

// writeReg stores v into a persistent slot, retaining v before
// releasing whatever strong reference that slot previously held, so
// storing a slot's own value back into it never drops the count to
// zero — the heap's Retain/Release contract (pkg/value/heap.go) only
// applies at persistent-slot writes, never at reads.
func (vm *VM) writeReg(f *frame, r bytecode.Register, v value.Value) {
	cells := f.cells(r.Scope)
	old := cells[r.Offset]
	vm.heap.Retain(v)
	cells[r.Offset] = v
	vm.heap.Release(old)
}

func opErr(kind errs.OpErrorKind, msg string) *errs.OpError { return errs.NewOpError(kind, msg) }

// runFrame is the fetch-decode-execute loop for one function
// activation. It returns either the function's return values or the
// first runtime error raised.
func (vm *VM) runFrame(fn *bytecode.CompiledFunction, referenced []*value.Scope, args []value.Value) ([]value.Value, *errs.OpError) {
	f := &frame{fn: fn, referenced: referenced, args: args}
	defer func() {
		vm.releaseResults(f.lastResults)
		vm.releaseResults(f.vaArgs)
		vm.popAllScopes(f)
	}()

	for f.ip < len(fn.Instructions) {
		ins := fn.Instructions[f.ip]
		f.ip++
		switch ins.Op {
		case bytecode.OpNop:

		case bytecode.OpLoadNil:
			vm.writeReg(f, ins.Dst, value.Nil)
		case bytecode.OpLoadBool:
			vm.writeReg(f, ins.Dst, value.Bool(ins.Imm != 0))
		case bytecode.OpLoadInt:
			vm.writeReg(f, ins.Dst, value.IntV(ins.Imm))
		case bytecode.OpLoadFloat:
			vm.writeReg(f, ins.Dst, value.FloatV(ins.ImmF))
		case bytecode.OpLoadConstant:
			vm.writeReg(f, ins.Dst, value.Str(vm.chunk.Constants[ins.Imm]))
		case bytecode.OpLoadRegister, bytecode.OpDuplicateRegister, bytecode.OpStore:
			vm.writeReg(f, ins.Dst, vm.readReg(f, ins.A))
		case bytecode.OpPromoteForVar:
			initN, ok := value.AsNumberStrict(vm.readReg(f, ins.Dst))
			if !ok {
				return nil, opErr(errs.InvalidType, "'for' initial value must be a number")
			}
			limitN, ok := value.AsNumberStrict(vm.readReg(f, ins.A))
			if !ok {
				return nil, opErr(errs.InvalidType, "'for' limit must be a number")
			}
			stepN, ok := value.AsNumberStrict(vm.readReg(f, ins.B))
			if !ok {
				return nil, opErr(errs.InvalidType, "'for' step must be a number")
			}
			if initN.IsInt() && (!limitN.IsInt() || !stepN.IsInt()) {
				vm.writeReg(f, ins.Dst, value.FloatV(initN.AsFloat()))
			}

		case bytecode.OpLoadVa:
			idx := int(ins.Imm)
			var v value.Value = value.Nil
			if idx < len(f.vaArgs) {
				v = f.vaArgs[idx]
			}
			vm.writeReg(f, ins.Dst, v)

		case bytecode.OpAdd, bytecode.OpSubtract, bytecode.OpTimes, bytecode.OpDivide,
			bytecode.OpIDiv, bytecode.OpModulo, bytecode.OpExponetiation,
			bytecode.OpBitAnd, bytecode.OpBitOr, bytecode.OpBitXor,
			bytecode.OpShiftLeft, bytecode.OpShiftRight:
			res, err := vm.execArith(ins.Op, vm.readReg(f, ins.A), vm.readReg(f, ins.B))
			if err != nil {
				return nil, err
			}
			vm.writeReg(f, ins.Dst, res)

		case bytecode.OpUnaryMinus:
			n, ok := value.AsNumberStrict(vm.readReg(f, ins.A))
			if !ok {
				return nil, opErr(errs.InvalidType, "attempt to perform arithmetic on a non-number value")
			}
			vm.writeReg(f, ins.Dst, value.Num(value.UnaryMinus(n)))
		case bytecode.OpUnaryBitNot:
			n, ok := value.AsNumberStrict(vm.readReg(f, ins.A))
			if !ok {
				return nil, opErr(errs.InvalidType, "attempt to perform bitwise operation on a non-number value")
			}
			r, err := value.UnaryBitNot(n)
			if err != nil {
				return nil, err
			}
			vm.writeReg(f, ins.Dst, value.Num(r))
		case bytecode.OpNot:
			vm.writeReg(f, ins.Dst, value.Bool(!value.AsBool(vm.readReg(f, ins.A))))
		case bytecode.OpLength:
			v := vm.readReg(f, ins.A)
			switch {
			case v.IsString():
				vm.writeReg(f, ins.Dst, value.IntV(int64(len(v.AsString()))))
			case v.IsTable():
				vm.writeReg(f, ins.Dst, value.IntV(v.AsTable().Len()))
			default:
				return nil, opErr(errs.InvalidType, "attempt to get length of a "+v.Type().String()+" value")
			}

		case bytecode.OpLessThan, bytecode.OpLessEqual, bytecode.OpGreaterThan, bytecode.OpGreaterEqual:
			ord, ok := value.Compare(vm.readReg(f, ins.A), vm.readReg(f, ins.B))
			if !ok {
				return nil, opErr(errs.CmpErr, "attempt to compare incompatible values")
			}
			var b bool
			switch ins.Op {
			case bytecode.OpLessThan:
				b = ord < 0
			case bytecode.OpLessEqual:
				b = ord <= 0
			case bytecode.OpGreaterThan:
				b = ord > 0
			case bytecode.OpGreaterEqual:
				b = ord >= 0
			}
			vm.writeReg(f, ins.Dst, value.Bool(b))
		case bytecode.OpEquals:
			vm.writeReg(f, ins.Dst, value.Bool(value.Equal(vm.readReg(f, ins.A), vm.readReg(f, ins.B))))
		case bytecode.OpNotEqual:
			vm.writeReg(f, ins.Dst, value.Bool(!value.Equal(vm.readReg(f, ins.A), vm.readReg(f, ins.B))))

		case bytecode.OpConcat:
			ls, lok := value.ToConcatString(vm.readReg(f, ins.A))
			rs, rok := value.ToConcatString(vm.readReg(f, ins.B))
			if !lok || !rok {
				return nil, opErr(errs.InvalidType, "attempt to concatenate a non-string/non-number value")
			}
			vm.writeReg(f, ins.Dst, value.Str(ls+rs))

		case bytecode.OpAnd:
			if !value.AsBool(vm.readReg(f, ins.Dst)) {
				if ins.Imm < 0 {
					return nil, errs.NewByteCodeError(errs.MissingJump, f.ip-1)
				}
				f.ip = int(ins.Imm)
			}
		case bytecode.OpOr:
			if value.AsBool(vm.readReg(f, ins.Dst)) {
				if ins.Imm < 0 {
					return nil, errs.NewByteCodeError(errs.MissingJump, f.ip-1)
				}
				f.ip = int(ins.Imm)
			}

		case bytecode.OpJump:
			if ins.Imm < 0 {
				return nil, errs.NewByteCodeError(errs.MissingJump, f.ip-1)
			}
			f.ip = int(ins.Imm)
		case bytecode.OpJumpNot:
			if !value.AsBool(vm.readReg(f, ins.A)) {
				if ins.Imm < 0 {
					return nil, errs.NewByteCodeError(errs.MissingJump, f.ip-1)
				}
				f.ip = int(ins.Imm)
			}
		case bytecode.OpJumpNil:
			if vm.readReg(f, ins.A).IsNil() {
				if ins.Imm < 0 {
					return nil, errs.NewByteCodeError(errs.MissingJump, f.ip-1)
				}
				f.ip = int(ins.Imm)
			}

		case bytecode.OpRaise:
			return nil, ins.OpErr
		case bytecode.OpRaiseIfNot:
			if !value.AsBool(vm.readReg(f, ins.A)) {
				return nil, ins.OpErr
			}

		case bytecode.OpPushScope:
			if ins.Imm < 0 {
				return nil, errs.NewByteCodeError(errs.MissingScopeDescriptor, f.ip-1)
			}
			vm.pushScope(f, int(ins.Imm))
		case bytecode.OpPopScope:
			vm.popScope(f)

		case bytecode.OpAlloc:
			var v value.Value
			if ins.Kind == bytecode.AllocTable {
				v = value.TableV(vm.heap.AllocTable(0))
			} else {
				captured := make([]*value.Scope, 0, len(f.referenced)+len(f.scopes))
				for _, s := range f.referenced {
					captured = append(captured, s.Retain())
				}
				for _, s := range f.scopes {
					captured = append(captured, s.Retain())
				}
				fn := vm.heap.AllocFunction(int(ins.Imm), captured)
				v = value.FunctionV(fn)
			}
			// The heap hands the new object out with a count of 1, which is
			// the destination slot's hold, so it is stored without a second
			// Retain.
			cells := f.cells(ins.Dst.Scope)
			old := cells[ins.Dst.Offset]
			cells[ins.Dst.Offset] = v
			vm.heap.Release(old)

		case bytecode.OpLookup:
			tbl := vm.readReg(f, ins.A)
			key := vm.readReg(f, ins.B)
			if !tbl.IsTable() {
				return nil, tableOperandErr(tbl)
			}
			vm.writeReg(f, ins.Dst, tbl.AsTable().Get(key))
		case bytecode.OpSetProperty:
			tbl := vm.readReg(f, ins.Dst)
			if !tbl.IsTable() {
				return nil, tableOperandErr(tbl)
			}
			key := vm.readReg(f, ins.A)
			val := vm.readReg(f, ins.B)
			if opErr := tbl.AsTable().Set(key, val); opErr != nil {
				return nil, opErr
			}
			vm.heap.Retain(val)
		case bytecode.OpSetAllPropertiesFromRet:
			tbl := vm.readReg(f, ins.Dst).AsTable()
			vm.spreadInto(tbl, ins.Imm, f.lastResults)
			vm.releaseResults(f.lastResults)
			f.lastResults = nil
		case bytecode.OpSetAllPropertiesFromVa:
			tbl := vm.readReg(f, ins.Dst).AsTable()
			vm.spreadInto(tbl, ins.Imm, f.vaArgs)

		case bytecode.OpCall, bytecode.OpCallCopyRet, bytecode.OpCallCopyVa:
			if err := vm.execCall(f, ins); err != nil {
				return nil, err
			}

		case bytecode.OpSetRet:
			v := vm.readReg(f, ins.A)
			vm.heap.Retain(v)
			f.results = append(f.results, v)
		case bytecode.OpConsumeRetRange:
			lr := f.lastResults
			for i := 0; i < int(ins.Imm); i++ {
				var v value.Value = value.Nil
				if i < len(lr) {
					v = lr[i]
				}
				vm.writeReg(f, bytecode.Register{Scope: ins.A.Scope, Offset: ins.A.Offset + uint16(i)}, v)
			}
			vm.releaseResults(lr)
			f.lastResults = nil
		case bytecode.OpRet:
			return f.results, nil
		case bytecode.OpCopyRetFromRetAndRet:
			// Ownership of lastResults' held values transfers straight
			// into f.results, which is about to be handed to our own
			// caller — no release/retain churn needed for the transfer
			// itself.
			f.results = append(f.results, f.lastResults...)
			f.lastResults = nil
			return f.results, nil
		case bytecode.OpCopyRetFromVaAndRet:
			for _, v := range f.vaArgs {
				vm.heap.Retain(v)
			}
			f.results = append(f.results, f.vaArgs...)
			return f.results, nil

		default:
			return nil, errs.NewByteCodeError(errs.ExpectedCallInstruction, f.ip-1)
		}
	}
	return f.results, nil
}

func tableOperandErr(v value.Value) *errs.OpError {
	switch {
	case v.IsNil():
		return opErr(errs.IndexNilErr, "attempt to index a nil value")
	case v.IsNumber():
		return opErr(errs.IndexNumberErr, "attempt to index a number value")
	case v.IsBool():
		return opErr(errs.IndexBoolErr, "attempt to index a boolean value")
	default:
		return opErr(errs.InvalidType, "attempt to index a "+v.Type().String()+" value")
	}
}

func (vm *VM) spreadInto(tbl *value.Table, startIndex int64, vals []value.Value) {
	for i, v := range vals {
		key := value.IntV(startIndex + int64(i))
		tbl.Set(key, v)
		vm.heap.Retain(v)
	}
}

// releaseResults drops the SetRet-time hold on every value in vals —
// called once each value has either been copied into a persistent slot
// (which retains its own reference) or is being discarded outright
// (an expression-statement call whose results nobody consumed).
func (vm *VM) releaseResults(vals []value.Value) {
	for _, v := range vals {
		vm.heap.Release(v)
	}
}

// execCall dispatches a Call/CallCopyRet/CallCopyVa instruction: it
// gathers the callee's argument list, recurses into runFrame, and
// leaves the callee's return values in f.lastResults for the next
// ConsumeRetRange/CopyRetFrom.../SetAllPropertiesFromRet instruction to
// pick up.
func (vm *VM) execCall(f *frame, ins bytecode.Instruction) *errs.OpError {
	calleeVal := vm.readReg(f, ins.A)
	if !calleeVal.IsFunction() {
		return opErr(errs.InvalidType, "attempt to call a "+calleeVal.Type().String()+" value")
	}
	callee := calleeVal.AsFunction()

	fixedCount := int(ins.Imm)
	args := make([]value.Value, fixedCount, fixedCount+len(f.lastResults)+len(f.vaArgs))
	for i := 0; i < fixedCount; i++ {
		args[i] = vm.readReg(f, bytecode.Register{Scope: ins.B.Scope, Offset: ins.B.Offset + uint16(i)})
	}

	// pending is whatever hold on f.lastResults needs dropping once the
	// callee is done with it. It must be released only AFTER runFrame
	// returns: the callee's own entry-scope seeding is what re-retains
	// any of these values it keeps as parameters/varargs, and releasing
	// first — when a value's only owner was this hold — would free it
	// out from under that seeding.
	var pending []value.Value
	switch ins.Op {
	case bytecode.OpCallCopyRet:
		args = append(args, f.lastResults...)
		pending = f.lastResults
	case bytecode.OpCallCopyVa:
		args = append(args, f.vaArgs...)
	default:
		// Any prior call's results this frame never consumed (e.g. a
		// call used as a standalone expression statement) are dropped.
		pending = f.lastResults
	}
	f.lastResults = nil

	calleeFn := vm.chunk.Functions[callee.ID]
	results, err := vm.runFrame(calleeFn, callee.Captured, args)
	vm.releaseResults(pending)
	if err != nil {
		return err
	}
	f.lastResults = results
	return nil
}

// pushScope opens a new lexical scope for f. The very first PushScope
// a frame executes is always its entry scope (the compiler emits it
// first thing in every CompiledFunction), so this is also where
// f.args gets distributed into parameter slots and any surplus becomes
// f.vaArgs.
func (vm *VM) pushScope(f *frame, size int) {
	sc := value.NewScope(size)
	if !f.seeded {
		f.seeded = true
		n := f.fn.NumParams
		for i := 0; i < n && i < size; i++ {
			var v value.Value = value.Nil
			if i < len(f.args) {
				v = f.args[i]
			}
			sc.Cells[i] = v
			vm.heap.Retain(v)
		}
		if f.fn.IsVariadic && len(f.args) > n {
			f.vaArgs = append([]value.Value(nil), f.args[n:]...)
			for _, v := range f.vaArgs {
				vm.heap.Retain(v)
			}
		}
	}
	f.scopes = append(f.scopes, sc)
}

func (vm *VM) popScope(f *frame) {
	n := len(f.scopes)
	if n == 0 {
		return
	}
	sc := f.scopes[n-1]
	f.scopes = f.scopes[:n-1]
	sc.Release()
	if sc.RefCount() == 0 {
		for _, v := range sc.Cells {
			vm.heap.Release(v)
		}
	}
}

// popAllScopes runs when runFrame returns (normally or via error),
// releasing any scopes a runtime error left pushed.
func (vm *VM) popAllScopes(f *frame) {
	for len(f.scopes) > 0 {
		vm.popScope(f)
	}
}

func (vm *VM) execArith(op bytecode.OpCode, a, b value.Value) (value.Value, *errs.OpError) {
	an, aok := value.AsNumberStrict(a)
	bn, bok := value.AsNumberStrict(b)
	if !aok || !bok {
		return value.Nil, opErr(errs.InvalidType, "attempt to perform arithmetic on a non-number value")
	}
	var res value.Number
	var err *errs.OpError
	switch op {
	case bytecode.OpAdd:
		res, err = value.Add(an, bn)
	case bytecode.OpSubtract:
		res, err = value.Sub(an, bn)
	case bytecode.OpTimes:
		res, err = value.Mul(an, bn)
	case bytecode.OpDivide:
		res, err = value.Div(an, bn)
	case bytecode.OpIDiv:
		res, err = value.IDiv(an, bn)
	case bytecode.OpModulo:
		res, err = value.Modulo(an, bn)
	case bytecode.OpExponetiation:
		res, err = value.Pow(an, bn)
	case bytecode.OpBitAnd:
		res, err = value.BitAnd(an, bn)
	case bytecode.OpBitOr:
		res, err = value.BitOr(an, bn)
	case bytecode.OpBitXor:
		res, err = value.BitXor(an, bn)
	case bytecode.OpShiftLeft:
		res, err = value.ShiftLeft(an, bn)
	case bytecode.OpShiftRight:
		res, err = value.ShiftRight(an, bn)
	}
	if err != nil {
		return value.Nil, err
	}
	return value.Num(res), nil
}
