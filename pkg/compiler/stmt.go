package compiler

import (
	"github.com/nooga/lucore/pkg/ast"
	"github.com/nooga/lucore/pkg/bytecode"
	errs "github.com/nooga/lucore/pkg/errors"
)

// compileBlock lowers every statement in b in order, then its trailing
// return (if any). It does not push its own scope — callers that need
// fresh-per-entry locals (function bodies, loop bodies, if/else arms)
// wrap the call in pushScope/popScope themselves.
func (c *Compiler) compileBlock(b *ast.Block) {
	for _, s := range b.Statements {
		c.compileStmt(s)
	}
	if b.Return != nil {
		c.compileReturn(b.Return)
	}
}

// compileScopedBlock runs b inside its own pushed scope.
func (c *Compiler) compileScopedBlock(b *ast.Block) {
	pushPC := c.pushScope()
	c.compileBlock(b)
	c.popScope(pushPC)
}

func (c *Compiler) compileStmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.EmptyStmt:
	case *ast.ExprStmt:
		c.compileCall(n.Call, bytecode.Register{}, true, false)
	case *ast.AssignmentStmt:
		c.compileAssignment(n)
	case *ast.LocalVarListStmt:
		c.compileLocalVarList(n)
	case *ast.FnDeclStmt:
		c.compileFnDecl(n)
	case *ast.IfStmt:
		c.compileIf(n)
	case *ast.WhileStmt:
		c.compileWhile(n)
	case *ast.RepeatStmt:
		c.compileRepeat(n)
	case *ast.NumericForStmt:
		c.compileNumericFor(n)
	case *ast.ForEachStmt:
		c.compileForEach(n)
	case *ast.BreakStmt:
		c.compileBreak(n)
	case *ast.GotoStmt:
		c.compileGoto(n)
	case *ast.LabelStmt:
		c.cur().labels[n.Name] = c.here()
	default:
		c.fail(errs.UnknownAttribute, errs.Position{}, "unsupported statement node")
	}
}

// compileAssignment lowers `targets = values` with Lua's arity rule:
// extra values are evaluated (for side effects) and discarded; missing
// values become Nil. Each value is fully evaluated into a temporary
// before any target is written, so `a, b = b, a` swaps correctly.
func (c *Compiler) compileAssignment(n *ast.AssignmentStmt) {
	mark := c.anonMarkPoint()
	tmp := make([]bytecode.Register, len(n.Targets))
	for i := range n.Targets {
		tmp[i] = c.allocAnonReg()
		if i < len(n.Values) {
			c.compileExprInto(n.Values[i], tmp[i])
		} else {
			c.emit(bytecode.Instruction{Op: bytecode.OpLoadNil, Dst: tmp[i]})
		}
	}
	for i := len(n.Targets); i < len(n.Values); i++ {
		side := c.allocAnonReg()
		c.compileExprInto(n.Values[i], side)
		c.freeAnonReg(side)
	}
	for i, t := range n.Targets {
		c.storeTarget(t, tmp[i])
	}
	c.anonRestore(mark)
}

func (c *Compiler) storeTarget(t ast.Expr, src bytecode.Register) {
	switch target := t.(type) {
	case *ast.NameExpr:
		c.compileNameStore(target.Name.Name, src)
	case *ast.IndexExpr:
		obj := c.allocAnonReg()
		c.compileExprInto(target.Object, obj)
		key := c.allocAnonReg()
		if target.Dotted {
			if name, ok := target.Key.(*ast.StringExpr); ok {
				idx := c.chunk.AddConstant(name.Value)
				c.emit(bytecode.Instruction{Op: bytecode.OpLoadConstant, Dst: key, Imm: int64(idx)})
			} else {
				c.compileExprInto(target.Key, key)
			}
		} else {
			c.compileExprInto(target.Key, key)
		}
		c.emit(bytecode.Instruction{Op: bytecode.OpSetProperty, Dst: obj, A: key, B: src})
		c.freeAnonReg(key)
		c.freeAnonReg(obj)
	default:
		c.fail(errs.UnknownAttribute, errs.Position{}, "invalid assignment target")
	}
}

func (c *Compiler) compileLocalVarList(n *ast.LocalVarListStmt) {
	mark := c.anonMarkPoint()
	vals := make([]bytecode.Register, len(n.Names))
	for i := range n.Names {
		vals[i] = c.allocAnonReg()
		if i < len(n.Values) {
			c.compileExprInto(n.Values[i], vals[i])
		} else {
			c.emit(bytecode.Instruction{Op: bytecode.OpLoadNil, Dst: vals[i]})
		}
	}
	for i := len(n.Names); i < len(n.Values); i++ {
		side := c.allocAnonReg()
		c.compileExprInto(n.Values[i], side)
		c.freeAnonReg(side)
	}
	seenConst := map[string]bool{}
	for i, name := range n.Names {
		attrib := ast.AttribNone
		if i < len(n.Attribs) {
			attrib = n.Attribs[i]
		}
		if attrib == ast.AttribConst || attrib == ast.AttribClose {
			if seenConst[name.Name] {
				c.fail(errs.DuplicateLocalAttribute, n.Pos, "duplicate <const>/<close> attribute for "+name.Name)
			}
			seenConst[name.Name] = true
		}
		lv := c.declareLocal(name.Name, attrib == ast.AttribConst || attrib == ast.AttribClose)
		c.emit(bytecode.Instruction{Op: bytecode.OpStore, Dst: c.localRegister(lv), A: vals[i]})
	}
	c.anonRestore(mark)
}

func (c *Compiler) compileFnDecl(n *ast.FnDeclStmt) {
	switch n.Kind {
	case ast.FnDeclLocal:
		name, ok := n.Target.(*ast.NameExpr)
		if !ok {
			c.fail(errs.UnknownAttribute, n.Pos, "local function requires a plain name target")
			return
		}
		// Declare before compiling the body so the function can recurse.
		lv := c.declareLocal(name.Name.Name, false)
		dst := c.allocAnonReg()
		c.compileFuncLiteral(n.Body, dst)
		c.emit(bytecode.Instruction{Op: bytecode.OpStore, Dst: c.localRegister(lv), A: dst})
		c.freeAnonReg(dst)
	case ast.FnDeclFunction:
		dst := c.allocAnonReg()
		c.compileFuncLiteral(n.Body, dst)
		c.storeTarget(n.Target, dst)
		c.freeAnonReg(dst)
	}
}

func (c *Compiler) compileIf(n *ast.IfStmt) {
	var endJumps []int
	cond := c.allocAnonReg()
	c.compileExprInto(n.Cond, cond)
	jFalse := c.emit(bytecode.Instruction{Op: bytecode.OpJumpNot, A: cond, Imm: -1})
	c.freeAnonReg(cond)
	c.compileScopedBlock(n.Body)
	endJumps = append(endJumps, c.emit(bytecode.Instruction{Op: bytecode.OpJump, Imm: -1}))
	c.patchJump(jFalse, c.here())

	for _, clause := range n.Elifs {
		c2 := c.allocAnonReg()
		c.compileExprInto(clause.Cond, c2)
		jf2 := c.emit(bytecode.Instruction{Op: bytecode.OpJumpNot, A: c2, Imm: -1})
		c.freeAnonReg(c2)
		c.compileScopedBlock(clause.Body)
		endJumps = append(endJumps, c.emit(bytecode.Instruction{Op: bytecode.OpJump, Imm: -1}))
		c.patchJump(jf2, c.here())
	}

	if n.Else != nil {
		c.compileScopedBlock(n.Else)
	}
	end := c.here()
	for _, j := range endJumps {
		c.patchJump(j, end)
	}
}

// pushLoop/popLoop manage the break-patch-list stack for the
// innermost enclosing loop.
func (c *Compiler) pushLoop() {
	fc := c.cur()
	fc.breakPatch = append(fc.breakPatch, nil)
}
func (c *Compiler) popLoop() []int {
	fc := c.cur()
	n := len(fc.breakPatch) - 1
	patches := fc.breakPatch[n]
	fc.breakPatch = fc.breakPatch[:n]
	return patches
}

func (c *Compiler) compileWhile(n *ast.WhileStmt) {
	top := c.here()
	cond := c.allocAnonReg()
	c.compileExprInto(n.Cond, cond)
	exitJ := c.emit(bytecode.Instruction{Op: bytecode.OpJumpNot, A: cond, Imm: -1})
	c.freeAnonReg(cond)
	c.pushLoop()
	c.compileScopedBlock(n.Body)
	c.emit(bytecode.Instruction{Op: bytecode.OpJump, Imm: int64(top)})
	end := c.here()
	c.patchJump(exitJ, end)
	for _, j := range c.popLoop() {
		c.patchJump(j, end)
	}
}

// compileRepeat lowers `repeat body until cond`; cond is compiled
// inside the body's own scope so it can see locals the body declared
// (Lua's defining property of repeat/until).
func (c *Compiler) compileRepeat(n *ast.RepeatStmt) {
	top := c.here()
	c.pushLoop()
	pushPC := c.pushScope()
	c.compileBlock(n.Body)
	cond := c.allocAnonReg()
	c.compileExprInto(n.Cond, cond)
	c.emit(bytecode.Instruction{Op: bytecode.OpJumpNot, A: cond, Imm: int64(top)})
	c.freeAnonReg(cond)
	c.popScope(pushPC)
	end := c.here()
	for _, j := range c.popLoop() {
		c.patchJump(j, end)
	}
}

func (c *Compiler) compileBreak(n *ast.BreakStmt) {
	fc := c.cur()
	if len(fc.breakPatch) == 0 {
		c.fail(errs.UnknownAttribute, n.Pos, "break outside a loop")
		return
	}
	j := c.emit(bytecode.Instruction{Op: bytecode.OpJump, Imm: -1})
	top := len(fc.breakPatch) - 1
	fc.breakPatch[top] = append(fc.breakPatch[top], j)
}

func (c *Compiler) compileGoto(n *ast.GotoStmt) {
	fc := c.cur()
	if target, ok := fc.labels[n.Label]; ok {
		c.emit(bytecode.Instruction{Op: bytecode.OpJump, Imm: int64(target)})
		return
	}
	j := c.emit(bytecode.Instruction{Op: bytecode.OpJump, Imm: -1})
	fc.pendingGoto = append(fc.pendingGoto, pendingGoto{name: n.Label, pc: j})
}

// compileNumericFor lowers `for v = init, limit[, step] do body end`
// under the resolved promotion rule: if every one of init, limit, step
// is an Integer the loop counts in i64; any Float operand promotes all
// three to f64 before the first iteration.
func (c *Compiler) compileNumericFor(n *ast.NumericForStmt) {
	mark := c.anonMarkPoint()
	initR := c.allocAnonReg()
	c.compileExprInto(n.Init, initR)
	limitR := c.allocAnonReg()
	c.compileExprInto(n.Limit, limitR)
	stepR := c.allocAnonReg()
	if n.Step != nil {
		c.compileExprInto(n.Step, stepR)
	} else {
		c.emit(bytecode.Instruction{Op: bytecode.OpLoadInt, Dst: stepR, Imm: 1})
	}

	// stepNonNeg decides which comparison closes the loop; computed once
	// since step is fixed for the whole loop, not re-evaluated per
	// iteration.
	zeroR := c.allocAnonReg()
	c.emit(bytecode.Instruction{Op: bytecode.OpLoadInt, Dst: zeroR, Imm: 0})
	stepNonNeg := c.allocAnonReg()
	c.emit(bytecode.Instruction{Op: bytecode.OpGreaterEqual, Dst: stepNonNeg, A: stepR, B: zeroR})
	c.freeAnonReg(zeroR)

	top := c.here()
	pushPC := c.pushScope()
	lv := c.declareLocal(n.Var.Name, false)
	loopReg := c.localRegister(lv)
	c.emit(bytecode.Instruction{Op: bytecode.OpLoadRegister, Dst: loopReg, A: initR})
	// Promote loopReg to Float right away if limit or step is a Float,
	// so the body sees the promoted type on the very first iteration
	// rather than only after the first OpAdd against stepR.
	c.emit(bytecode.Instruction{Op: bytecode.OpPromoteForVar, Dst: loopReg, A: limitR, B: stepR})

	// cond = not (ascending ? loopReg <= limitR : loopReg >= limitR);
	// ascending was decided once, before the loop, from step's sign.
	condReg := c.allocAnonReg()
	descJ := c.emit(bytecode.Instruction{Op: bytecode.OpJumpNot, A: stepNonNeg, Imm: -1})
	c.emit(bytecode.Instruction{Op: bytecode.OpLessEqual, Dst: condReg, A: loopReg, B: limitR})
	condDoneJ := c.emit(bytecode.Instruction{Op: bytecode.OpJump, Imm: -1})
	c.patchJump(descJ, c.here())
	c.emit(bytecode.Instruction{Op: bytecode.OpGreaterEqual, Dst: condReg, A: loopReg, B: limitR})
	c.patchJump(condDoneJ, c.here())
	exitJ := c.emit(bytecode.Instruction{Op: bytecode.OpJumpNot, A: condReg, Imm: -1})
	c.freeAnonReg(condReg)

	c.pushLoop()
	c.compileBlock(n.Body)
	breaks := c.popLoop()
	c.emit(bytecode.Instruction{Op: bytecode.OpAdd, Dst: loopReg, A: loopReg, B: stepR})
	c.popScope(pushPC)
	c.emit(bytecode.Instruction{Op: bytecode.OpJump, Imm: int64(top)})
	end := c.here()
	c.patchJump(exitJ, end)
	for _, j := range breaks {
		c.patchJump(j, end)
	}
	c.freeAnonReg(stepNonNeg)
	c.anonRestore(mark)
}

// compileForEach lowers `for names in exprs do body end` against the
// generic-for protocol: exprs evaluate to (iterator, state, control);
// each iteration calls iterator(state, control), binds names to the
// call's Results, and stops when the first result is Nil.
func (c *Compiler) compileForEach(n *ast.ForEachStmt) {
	mark := c.anonMarkPoint()
	iterR := c.allocAnonReg()
	stateR := c.allocAnonReg()
	ctrlR := c.allocAnonReg()
	exprs := []bytecode.Register{iterR, stateR, ctrlR}
	for i, r := range exprs {
		if i < len(n.Exprs) {
			c.compileExprInto(n.Exprs[i], r)
		} else {
			c.emit(bytecode.Instruction{Op: bytecode.OpLoadNil, Dst: r})
		}
	}

	top := c.here()
	argBase := c.allocAnonReg()
	c.emit(bytecode.Instruction{Op: bytecode.OpLoadRegister, Dst: argBase, A: stateR})
	arg2 := c.allocAnonReg()
	c.emit(bytecode.Instruction{Op: bytecode.OpLoadRegister, Dst: arg2, A: ctrlR})
	c.emit(bytecode.Instruction{Op: bytecode.OpCall, A: iterR, B: argBase, Imm: 2})
	c.freeAnonReg(arg2)
	c.freeAnonReg(argBase)

	pushPC := c.pushScope()
	// Names are declared first in this freshly pushed scope, so the
	// first one always lands at offset 0 — exactly where
	// OpConsumeRetRange starts writing.
	var firstReg bytecode.Register
	for i, name := range n.Names {
		lv := c.declareLocal(name.Name, false)
		if i == 0 {
			firstReg = c.localRegister(lv)
		}
	}
	c.emit(bytecode.Instruction{Op: bytecode.OpConsumeRetRange, A: firstReg, Imm: int64(len(n.Names))})
	exitJ := c.emit(bytecode.Instruction{Op: bytecode.OpJumpNil, A: firstReg, Imm: -1})
	c.emit(bytecode.Instruction{Op: bytecode.OpLoadRegister, Dst: ctrlR, A: firstReg})

	c.pushLoop()
	c.compileBlock(n.Body)
	breaks := c.popLoop()
	c.popScope(pushPC)
	c.emit(bytecode.Instruction{Op: bytecode.OpJump, Imm: int64(top)})
	end := c.here()
	c.patchJump(exitJ, end)
	for _, j := range breaks {
		c.patchJump(j, end)
	}
	c.anonRestore(mark)
}

// compileReturn lowers a return statement's value list, spreading a
// tail call's Results or `...` when present (via
// CopyRetFromRetAndRet/CopyRetFromVaAndRet).
func (c *Compiler) compileReturn(n *ast.ReturnStmt) {
	mark := c.anonMarkPoint()
	vals := n.Values
	if len(vals) > 0 {
		last := vals[len(vals)-1]
		if call, ok := last.(*ast.FnCallExpr); ok {
			for _, v := range vals[:len(vals)-1] {
				r := c.allocAnonReg()
				c.compileExprInto(v, r)
				c.emit(bytecode.Instruction{Op: bytecode.OpSetRet, A: r})
				c.freeAnonReg(r)
			}
			c.compileCall(call, bytecode.Register{}, true, false)
			c.emit(bytecode.Instruction{Op: bytecode.OpCopyRetFromRetAndRet})
			c.anonRestore(mark)
			return
		}
		if _, ok := last.(*ast.VarArgsExpr); ok {
			for _, v := range vals[:len(vals)-1] {
				r := c.allocAnonReg()
				c.compileExprInto(v, r)
				c.emit(bytecode.Instruction{Op: bytecode.OpSetRet, A: r})
				c.freeAnonReg(r)
			}
			c.emit(bytecode.Instruction{Op: bytecode.OpCopyRetFromVaAndRet})
			c.anonRestore(mark)
			return
		}
	}
	for _, v := range vals {
		r := c.allocAnonReg()
		c.compileExprInto(v, r)
		c.emit(bytecode.Instruction{Op: bytecode.OpSetRet, A: r})
		c.freeAnonReg(r)
	}
	c.emit(bytecode.Instruction{Op: bytecode.OpRet})
	c.anonRestore(mark)
}
