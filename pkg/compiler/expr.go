package compiler

import (
	"github.com/nooga/lucore/pkg/ast"
	"github.com/nooga/lucore/pkg/bytecode"
	errs "github.com/nooga/lucore/pkg/errors"
)

var binOpCode = map[ast.BinOp]bytecode.OpCode{
	ast.BinAdd:    bytecode.OpAdd,
	ast.BinSub:    bytecode.OpSubtract,
	ast.BinMul:    bytecode.OpTimes,
	ast.BinDiv:    bytecode.OpDivide,
	ast.BinIDiv:   bytecode.OpIDiv,
	ast.BinMod:    bytecode.OpModulo,
	ast.BinPow:    bytecode.OpExponetiation,
	ast.BinBitAnd: bytecode.OpBitAnd,
	ast.BinBitOr:  bytecode.OpBitOr,
	ast.BinBitXor: bytecode.OpBitXor,
	ast.BinShl:    bytecode.OpShiftLeft,
	ast.BinShr:    bytecode.OpShiftRight,
	ast.BinConcat: bytecode.OpConcat,
	ast.BinLt:     bytecode.OpLessThan,
	ast.BinLe:     bytecode.OpLessEqual,
	ast.BinGt:     bytecode.OpGreaterThan,
	ast.BinGe:     bytecode.OpGreaterEqual,
	ast.BinEq:     bytecode.OpEquals,
	ast.BinNeq:    bytecode.OpNotEqual,
}

// compileExprInto lowers e, leaving its value in dst. This is the
// single-value path used everywhere except the tail position of a
// call-argument list, return-values list or table constructor, which
// compileArgsAndInvoke, compileReturn and compileTableConstructor
// spread themselves.
func (c *Compiler) compileExprInto(e ast.Expr, dst bytecode.Register) {
	if cv := c.tryFold(e); cv.ok {
		c.emitLoadConst(dst, cv)
		return
	}
	switch n := e.(type) {
	case *ast.NilExpr:
		c.emit(bytecode.Instruction{Op: bytecode.OpLoadNil, Dst: dst})
	case *ast.BoolExpr:
		c.emit(bytecode.Instruction{Op: bytecode.OpLoadBool, Dst: dst, Imm: boolImm(n.Value)})
	case *ast.IntExpr:
		c.emit(bytecode.Instruction{Op: bytecode.OpLoadInt, Dst: dst, Imm: n.Value})
	case *ast.FloatExpr:
		c.emit(bytecode.Instruction{Op: bytecode.OpLoadFloat, Dst: dst, ImmF: n.Value})
	case *ast.StringExpr:
		idx := c.chunk.AddConstant(n.Value)
		c.emit(bytecode.Instruction{Op: bytecode.OpLoadConstant, Dst: dst, Imm: int64(idx)})
	case *ast.NameExpr:
		c.compileNameLoad(n.Name.Name, dst)
	case *ast.VarArgsExpr:
		c.emit(bytecode.Instruction{Op: bytecode.OpLoadVa, Dst: dst, Imm: 0})
	case *ast.UnaryOpExpr:
		c.compileUnary(n, dst)
	case *ast.BinaryOpExpr:
		c.compileBinary(n, dst)
	case *ast.IndexExpr:
		c.compileIndex(n, dst)
	case *ast.FnCallExpr:
		c.compileCall(n, dst, false, false)
	case *ast.TableConstructorExpr:
		c.compileTableConstructor(n, dst)
	case *ast.FnBody:
		c.compileFuncLiteral(n, dst)
	default:
		c.fail(errs.UnknownAttribute, errs.Position{}, "unsupported expression node")
	}
}

func boolImm(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (c *Compiler) emitLoadConst(dst bytecode.Register, cv constVal) {
	switch {
	case cv.v.IsNil():
		c.emit(bytecode.Instruction{Op: bytecode.OpLoadNil, Dst: dst})
	case cv.v.IsBool():
		c.emit(bytecode.Instruction{Op: bytecode.OpLoadBool, Dst: dst, Imm: boolImm(cv.v.AsBoolRaw())})
	case cv.v.IsNumber():
		n := cv.v.AsNumber()
		if n.IsInt() {
			c.emit(bytecode.Instruction{Op: bytecode.OpLoadInt, Dst: dst, Imm: n.I})
		} else {
			c.emit(bytecode.Instruction{Op: bytecode.OpLoadFloat, Dst: dst, ImmF: n.F})
		}
	case cv.v.IsString():
		idx := c.chunk.AddConstant(cv.v.AsString())
		c.emit(bytecode.Instruction{Op: bytecode.OpLoadConstant, Dst: dst, Imm: int64(idx)})
	}
}

// tryFold attempts to evaluate e entirely at compile time. Only
// expressions built transitively from literals fold; anything
// touching a name, call, index, or table constructor does not.
func (c *Compiler) tryFold(e ast.Expr) constVal {
	switch n := e.(type) {
	case *ast.NilExpr, *ast.BoolExpr, *ast.IntExpr, *ast.FloatExpr, *ast.StringExpr:
		return foldLiteral(e)
	case *ast.UnaryOpExpr:
		operand := c.tryFold(n.Operand)
		if !operand.ok {
			return constVal{}
		}
		cv, err := foldUnary(n.Op, operand)
		if err != nil {
			return constVal{}
		}
		return cv
	case *ast.BinaryOpExpr:
		if n.Op == ast.BinAnd || n.Op == ast.BinOr {
			return constVal{} // short-circuit ops keep their evaluation-order side effects visible
		}
		l := c.tryFold(n.Left)
		r := c.tryFold(n.Right)
		if !l.ok || !r.ok {
			return constVal{}
		}
		cv, err := foldBinary(n.Op, l, r)
		if err != nil {
			return constVal{}
		}
		return cv
	default:
		return constVal{}
	}
}

func (c *Compiler) compileNameLoad(name string, dst bytecode.Register) {
	if lv, ok := c.resolve(name); ok {
		c.emit(bytecode.Instruction{Op: bytecode.OpLoadRegister, Dst: dst, A: c.localRegister(lv)})
		return
	}
	c.chunk.GlobalSlot(name) // records the name so Chunk.GlobalsMap enumerates every global referenced
	c.emit(bytecode.Instruction{Op: bytecode.OpLoadConstant, Dst: dst, Imm: int64(c.chunk.AddConstant(name))})
	// Globals are looked up by name through the driver's global table at
	// runtime (see pkg/vm); the constant just carries the name.
	c.emit(bytecode.Instruction{Op: bytecode.OpLookup, Dst: dst, A: c.globalsRegister(), B: dst})
}

// globalsRegister is a sentinel register the VM recognizes as "the
// implicit globals table" rather than an addressable user register
// (scope 0xFF is never produced by pushScope, which starts at 0 and
// increments by one per nesting level well under 255 in practice).
func (c *Compiler) globalsRegister() bytecode.Register {
	return bytecode.Register{Scope: 0xFF, Offset: 0}
}

func (c *Compiler) compileNameStore(name string, src bytecode.Register) {
	if lv, ok := c.resolve(name); ok {
		if lv.isConst {
			c.fail(errs.DuplicateLocalAttribute, errs.Position{}, "attempt to assign to a <const> variable: "+name)
			return
		}
		c.emit(bytecode.Instruction{Op: bytecode.OpStore, Dst: c.localRegister(lv), A: src})
		return
	}
	nameIdx := c.chunk.AddConstant(name)
	nameReg := c.allocAnonReg()
	c.emit(bytecode.Instruction{Op: bytecode.OpLoadConstant, Dst: nameReg, Imm: int64(nameIdx)})
	c.emit(bytecode.Instruction{Op: bytecode.OpSetProperty, Dst: c.globalsRegister(), A: nameReg, B: src})
	c.freeAnonReg(nameReg)
}

func (c *Compiler) compileUnary(n *ast.UnaryOpExpr, dst bytecode.Register) {
	c.compileExprInto(n.Operand, dst)
	var op bytecode.OpCode
	switch n.Op {
	case ast.UnMinus:
		op = bytecode.OpUnaryMinus
	case ast.UnNot:
		op = bytecode.OpNot
	case ast.UnLength:
		op = bytecode.OpLength
	case ast.UnBitNot:
		op = bytecode.OpUnaryBitNot
	}
	c.emit(bytecode.Instruction{Op: op, Dst: dst, A: dst})
}

func (c *Compiler) compileBinary(n *ast.BinaryOpExpr, dst bytecode.Register) {
	if n.Op == ast.BinAnd || n.Op == ast.BinOr {
		c.compileShortCircuit(n, dst)
		return
	}
	lhs := c.allocAnonReg()
	c.compileExprInto(n.Left, lhs)
	rhs := c.allocAnonReg()
	c.compileExprInto(n.Right, rhs)
	op, ok := binOpCode[n.Op]
	if !ok {
		c.fail(errs.UnknownAttribute, errs.Position{}, "unsupported binary operator")
		return
	}
	c.emit(bytecode.Instruction{Op: op, Dst: dst, A: lhs, B: rhs})
	c.freeAnonReg(rhs)
	c.freeAnonReg(lhs)
}

// compileShortCircuit lowers `and`/`or` via OpAnd/OpOr: dst is first
// set to lhs; if lhs's truthiness already decides the result the
// instruction jumps past the rhs evaluation, otherwise rhs overwrites
// dst — matching pkg/bytecode's OpAnd/OpOr contract.
func (c *Compiler) compileShortCircuit(n *ast.BinaryOpExpr, dst bytecode.Register) {
	c.compileExprInto(n.Left, dst)
	op := bytecode.OpAnd
	if n.Op == ast.BinOr {
		op = bytecode.OpOr
	}
	jpc := c.emit(bytecode.Instruction{Op: op, Dst: dst, A: dst, Imm: -1})
	c.compileExprInto(n.Right, dst)
	c.patchJump(jpc, c.here())
}

func (c *Compiler) compileIndex(n *ast.IndexExpr, dst bytecode.Register) {
	obj := c.allocAnonReg()
	c.compileExprInto(n.Object, obj)
	key := c.allocAnonReg()
	if n.Dotted {
		if name, ok := n.Key.(*ast.StringExpr); ok {
			idx := c.chunk.AddConstant(name.Value)
			c.emit(bytecode.Instruction{Op: bytecode.OpLoadConstant, Dst: key, Imm: int64(idx)})
		} else {
			c.compileExprInto(n.Key, key)
		}
	} else {
		c.compileExprInto(n.Key, key)
	}
	c.emit(bytecode.Instruction{Op: bytecode.OpLookup, Dst: dst, A: obj, B: key})
	c.freeAnonReg(key)
	c.freeAnonReg(obj)
}

func (c *Compiler) compileTableConstructor(n *ast.TableConstructorExpr, dst bytecode.Register) {
	c.emit(bytecode.Instruction{Op: bytecode.OpAlloc, Dst: dst, Kind: bytecode.AllocTable})
	arrayIndex := int64(1)
	for i, f := range n.Fields {
		switch f.Kind {
		case ast.FieldArraylike:
			isLast := i == len(n.Fields)-1
			if isLast {
				if call, ok := f.Value.(*ast.FnCallExpr); ok {
					c.compileCall(call, bytecode.Register{}, true, false)
					c.emit(bytecode.Instruction{Op: bytecode.OpSetAllPropertiesFromRet, Dst: dst, Imm: arrayIndex})
					continue
				}
				if _, ok := f.Value.(*ast.VarArgsExpr); ok {
					c.emit(bytecode.Instruction{Op: bytecode.OpSetAllPropertiesFromVa, Dst: dst, Imm: arrayIndex})
					continue
				}
			}
			val := c.allocAnonReg()
			c.compileExprInto(f.Value, val)
			key := c.allocAnonReg()
			c.emit(bytecode.Instruction{Op: bytecode.OpLoadInt, Dst: key, Imm: arrayIndex})
			c.emit(bytecode.Instruction{Op: bytecode.OpSetProperty, Dst: dst, A: key, B: val})
			c.freeAnonReg(key)
			c.freeAnonReg(val)
			arrayIndex++
		case ast.FieldNamed:
			val := c.allocAnonReg()
			c.compileExprInto(f.Value, val)
			key := c.allocAnonReg()
			idx := c.chunk.AddConstant(f.Name.Name)
			c.emit(bytecode.Instruction{Op: bytecode.OpLoadConstant, Dst: key, Imm: int64(idx)})
			c.emit(bytecode.Instruction{Op: bytecode.OpSetProperty, Dst: dst, A: key, B: val})
			c.freeAnonReg(key)
			c.freeAnonReg(val)
		case ast.FieldIndexed:
			val := c.allocAnonReg()
			c.compileExprInto(f.Value, val)
			key := c.allocAnonReg()
			c.compileExprInto(f.Key, key)
			c.emit(bytecode.Instruction{Op: bytecode.OpSetProperty, Dst: dst, A: key, B: val})
			c.freeAnonReg(key)
			c.freeAnonReg(val)
		}
	}
}

// compileFuncLiteral emits an OpAlloc(AllocFunction) after first
// compiling body as an independent CompiledFunction. Closures capture
// the defining context's entire scope stack at alloc time, which the
// VM — not the compiler — materializes into Captured.
func (c *Compiler) compileFuncLiteral(body *ast.FnBody, dst bytecode.Register) {
	id := c.compileFunction("<anonymous>", body.Params, body.IsVariadic, body.Body, body.Pos)
	c.emit(bytecode.Instruction{Op: bytecode.OpAlloc, Dst: dst, Kind: bytecode.AllocFunction, Imm: int64(id)})
}

// compileCall lowers a call expression. When wantMulti is true, the
// call's full Results vector is left available for the caller to
// consume via OpConsumeRetRange/OpSetAllPropertiesFromRet rather than
// collapsed to one value in dst.
func (c *Compiler) compileCall(n *ast.FnCallExpr, dst bytecode.Register, wantMulti bool, tailSpread bool) {
	callee := c.allocAnonReg()
	if n.Method != nil {
		c.compileExprInto(n.Callee, callee)
		key := c.allocAnonReg()
		idx := c.chunk.AddConstant(n.Method.Name)
		c.emit(bytecode.Instruction{Op: bytecode.OpLoadConstant, Dst: key, Imm: int64(idx)})
		methodReg := c.allocAnonReg()
		c.emit(bytecode.Instruction{Op: bytecode.OpLookup, Dst: methodReg, A: callee, B: key})
		c.freeAnonReg(key)
		// self becomes argument 0; callee register is reused as the self slot.
		c.compileArgsAndInvoke(methodReg, append([]ast.Expr{selfExpr{reg: callee}}, n.Args...), dst, wantMulti)
		c.freeAnonReg(methodReg)
		c.freeAnonReg(callee)
		return
	}
	c.compileExprInto(n.Callee, callee)
	c.compileArgsAndInvoke(callee, n.Args, dst, wantMulti)
	c.freeAnonReg(callee)
}

// selfExpr is a synthetic AST node (never produced by an external
// parser) used only to splice an already-materialized register as a
// method call's implicit self argument.
type selfExpr struct {
	ast.Expr
	reg bytecode.Register
}

func (c *Compiler) compileArgsAndInvoke(callee bytecode.Register, args []ast.Expr, dst bytecode.Register, wantMulti bool) {
	mark := c.anonMarkPoint()
	spreadCall, spreadVa := false, false
	fixed := args
	if n := len(args); n > 0 {
		last := args[n-1]
		if _, ok := last.(*ast.FnCallExpr); ok {
			fixed = args[:n-1]
			spreadCall = true
		} else if _, ok := last.(*ast.VarArgsExpr); ok {
			fixed = args[:n-1]
			spreadVa = true
		}
	}
	// Argument registers must be contiguous — the VM reads argCount
	// values starting at one base register — so they come from a single
	// block allocation rather than the (possibly non-contiguous) free
	// list used for ordinary temporaries.
	n := len(fixed)
	if n == 0 {
		n = 1 // Call still needs a valid base register even with zero args.
	}
	argRegs := c.allocAnonBlock(n)
	for i, a := range fixed {
		if se, ok := a.(selfExpr); ok {
			c.emit(bytecode.Instruction{Op: bytecode.OpLoadRegister, Dst: argRegs[i], A: se.reg})
			continue
		}
		c.compileExprInto(a, argRegs[i])
	}

	op := bytecode.OpCall
	if spreadCall {
		op = bytecode.OpCallCopyRet
		c.compileCall(args[len(args)-1].(*ast.FnCallExpr), bytecode.Register{}, true, false)
	} else if spreadVa {
		op = bytecode.OpCallCopyVa
	}
	c.emit(bytecode.Instruction{Op: op, A: callee, B: argRegs[0], Imm: int64(len(fixed))})
	if !wantMulti {
		c.emit(bytecode.Instruction{Op: bytecode.OpConsumeRetRange, A: dst, Imm: 1})
	}
	c.anonRestore(mark)
}
