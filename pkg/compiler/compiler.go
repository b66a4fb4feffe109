// Package compiler implements a single-pass lowering of an
// externally-produced pkg/ast tree into a pkg/bytecode.Chunk, using a
// single-pass-with-patch-list design — no separate AST-walking resolve
// pass, no intermediate IR — over a stack of lexical scopes, each with
// its own local/anon register cursors.
package compiler

import (
	"fmt"

	"github.com/nooga/lucore/pkg/ast"
	"github.com/nooga/lucore/pkg/bytecode"
	errs "github.com/nooga/lucore/pkg/errors"
)

// localVar is a declared name's runtime address plus its attributes:
// <const>/<close> attributes are compile-time only, checked here and
// never reach the VM.
type localVar struct {
	depth   uint8
	offset  uint16
	isConst bool
}

// lexScope is one entry in the compiler's scope stack. Depth is global
// across function boundaries: a nested function
// literal's own first pushed scope continues numbering from wherever
// its defining context left off, because a closure captures its
// defining function's *entire* current scope stack by value.
type lexScope struct {
	depth  uint8
	ra     *regalloc
	locals map[string]*localVar
}

// funcCtx tracks the in-progress CompiledFunction being emitted into,
// plus its private label/patch bookkeeping (labels and gotos never
// cross function boundaries).
type funcCtx struct {
	fn          *bytecode.CompiledFunction
	labels      map[string]int          // label name -> instruction index
	pendingGoto []pendingGoto           // gotos awaiting their label
	breakPatch  [][]int                 // stack of break-jump patch lists, one per enclosing loop
	scopeBase   uint8                   // depth of this function's own entry scope
}

type pendingGoto struct {
	name string
	pc   int
}

// Compiler lowers one top-level ast.Block into a bytecode.Chunk.
type Compiler struct {
	chunk   *bytecode.Chunk
	scopes  []*lexScope
	funcs   []*funcCtx
	errored []*errs.CompileError
}

// New creates a Compiler ready to compile a top-level chunk.
func New() *Compiler {
	return &Compiler{chunk: bytecode.NewChunk()}
}

// Compile lowers block as the chunk's main function (FuncId 0) and
// returns the finished Chunk, or the first CompileError encountered.
func Compile(block *ast.Block) (*bytecode.Chunk, *errs.CompileError) {
	c := New()
	c.compileFunction("main", nil, true, block, errs.Position{})
	if len(c.errored) > 0 {
		return nil, c.errored[0]
	}
	return c.chunk, nil
}

func (c *Compiler) fail(kind errs.CompileErrorKind, pos errs.Position, msg string) {
	ce := errs.NewCompileError(kind, pos, msg)
	c.errored = append(c.errored, ce)
}

func (c *Compiler) cur() *funcCtx   { return c.funcs[len(c.funcs)-1] }
func (c *Compiler) curScope() *lexScope { return c.scopes[len(c.scopes)-1] }

func (c *Compiler) emit(ins bytecode.Instruction) int {
	fc := c.cur()
	fc.fn.Instructions = append(fc.fn.Instructions, ins)
	return len(fc.fn.Instructions) - 1
}

func (c *Compiler) here() int { return len(c.cur().fn.Instructions) }

func (c *Compiler) patchJump(pc int, target int) {
	c.cur().fn.Instructions[pc].Imm = int64(target)
}

// pushScope opens a new lexical scope, emitting OpPushScope once its
// final size is known (via popScope's deferred patch — the size isn't
// known until every local/anon register used inside has been counted,
// which happens only once the block's declared-locals count is final).
func (c *Compiler) pushScope() (pushPC int) {
	depth := uint8(0)
	if len(c.scopes) > 0 {
		depth = c.curScope().depth + 1
	}
	c.scopes = append(c.scopes, &lexScope{depth: depth, ra: newRegalloc(), locals: map[string]*localVar{}})
	// Imm starts at the sentinel -1 rather than 0 — a size of 0 is a
	// legitimate empty scope, so popScope's patch must be distinguished
	// from a scope that was never patched at all (see vm.go's
	// MissingScopeDescriptor check).
	pushPC = c.emit(bytecode.Instruction{Op: bytecode.OpPushScope, Imm: -1})
	return pushPC
}

// popScope closes the current scope, patching its OpPushScope with the
// final combined width (locals and anon temps share one per-scope
// register file — see regalloc's doc comment), and reports the local
// and anon widths separately for callers that need them apart (only
// compileFunction does, to describe the function's entry scope).
func (c *Compiler) popScope(pushPC int) (localMax, anonMax int) {
	sc := c.curScope()
	localMax, anonMax = int(sc.ra.localMax), int(sc.ra.anonMax)
	c.cur().fn.Instructions[pushPC].Imm = int64(localMax + anonMax)
	c.emit(bytecode.Instruction{Op: bytecode.OpPopScope})
	c.scopes = c.scopes[:len(c.scopes)-1]
	return localMax, anonMax
}

// declareLocal allocates a fresh local slot for name in the current
// scope. Redeclaration in the same scope shadows (Lua allows `local x
// = x`) — a declaration always gets a fresh slot, never reuses an
// existing one.
func (c *Compiler) declareLocal(name string, isConst bool) *localVar {
	sc := c.curScope()
	lv := &localVar{depth: sc.depth, offset: sc.ra.allocLocal(), isConst: isConst}
	sc.locals[name] = lv
	return lv
}

// resolve finds name in the lexical scope stack, nearest first; ok is
// false when name is not a declared local anywhere (the caller then
// treats it as a global).
func (c *Compiler) resolve(name string) (*localVar, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if lv, ok := c.scopes[i].locals[name]; ok {
			return lv, true
		}
	}
	return nil, false
}

// allocAnonReg/freeAnonReg/anonMarkPoint/anonRestore operate on the current
// scope's anonymous cursor.
func (c *Compiler) allocAnonReg() bytecode.Register {
	sc := c.curScope()
	return bytecode.Register{Scope: sc.depth, Offset: sc.ra.localMax + sc.ra.allocAnon()}
}
func (c *Compiler) freeAnonReg(r bytecode.Register) {
	sc := c.curScope()
	c.freeAnonOffset(r.Offset - sc.ra.localMax)
}
func (c *Compiler) freeAnonOffset(off uint16) { c.curScope().ra.freeAnon(off) }

// allocAnonBlock reserves n contiguous anon registers in the current
// scope (see regalloc.allocAnonBlock).
func (c *Compiler) allocAnonBlock(n int) []bytecode.Register {
	sc := c.curScope()
	base := sc.ra.allocAnonBlock(n)
	regs := make([]bytecode.Register, n)
	for i := 0; i < n; i++ {
		regs[i] = bytecode.Register{Scope: sc.depth, Offset: sc.ra.localMax + base + uint16(i)}
	}
	return regs
}
func (c *Compiler) anonMarkPoint() uint16     { return c.curScope().ra.anonMarkPoint() }
func (c *Compiler) anonRestore(m uint16)      { c.curScope().ra.anonRestore(m) }

func (c *Compiler) localRegister(lv *localVar) bytecode.Register {
	return bytecode.Register{Scope: lv.depth, Offset: lv.offset}
}

// compileFunction compiles one function body (or the top-level chunk,
// when isMain) into a fresh CompiledFunction appended to c.chunk.Functions,
// returning its FuncId.
func (c *Compiler) compileFunction(name string, params []ast.Ident, isVariadic bool, body *ast.Block, pos errs.Position) bytecode.FuncId {
	fn := &bytecode.CompiledFunction{Name: name, NumParams: len(params), IsVariadic: isVariadic}
	id := len(c.chunk.Functions)
	c.chunk.Functions = append(c.chunk.Functions, fn)
	fc := &funcCtx{fn: fn, labels: map[string]int{}, scopeBase: 0}
	if len(c.scopes) > 0 {
		fc.scopeBase = c.curScope().depth + 1
	}
	c.funcs = append(c.funcs, fc)

	pushPC := c.pushScope()
	for _, p := range params {
		c.declareLocal(p.Name, false)
	}
	c.compileBlock(body)
	c.resolveGotos()
	// Implicit return if control falls off the end.
	c.emit(bytecode.Instruction{Op: bytecode.OpRet})
	localMax, anonMax := c.popScope(pushPC)
	fn.LocalRegisters = localMax
	fn.AnonRegisters = anonMax

	c.funcs = c.funcs[:len(c.funcs)-1]
	return id
}

func (c *Compiler) resolveGotos() {
	fc := c.cur()
	for _, g := range fc.pendingGoto {
		target, ok := fc.labels[g.name]
		if !ok {
			c.fail(errs.UndefinedLabel, errs.Position{}, fmt.Sprintf("no visible label %q", g.name))
			continue
		}
		c.patchJump(g.pc, target)
	}
	fc.pendingGoto = nil
}
