// Package bytecode defines the opcode set, register encoding,
// instruction stream, constant pool, and chunk layout the compiler
// emits and the VM executes. It
// purposely has no dependency on pkg/value — every instruction operand
// is a Register, a small immediate, a constant-pool index, a FuncId,
// or (for Raise/RaiseIfNot) an embedded *errors.OpError, so the
// compiler's lowering and the VM's decoding are the only two
// consumers that ever need to know what a Register's contents mean.
package bytecode

import errs "github.com/nooga/lucore/pkg/errors"

// OpCode enumerates the VM's instruction groups.
type OpCode uint8

const (
	// Arithmetic (dst, lhs, rhs): dst = lhs <op> rhs. The compiler
	// always materializes an operand into a register before emitting
	// one of these — there is no separate register-vs-immediate
	// encoding; folding handles the genuinely-constant case at compile
	// time instead (see pkg/compiler's constant folder), so the
	// instruction set stays uniform. See DESIGN.md.
	OpAdd OpCode = iota
	OpSubtract
	OpTimes
	OpDivide
	OpIDiv
	OpModulo
	OpExponetiation

	// Bitwise (dst, lhs, rhs)
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShiftLeft
	OpShiftRight
	OpUnaryBitNot // (dst, src)

	// Unary (dst, src)
	OpUnaryMinus
	OpNot
	OpLength

	// Comparison (dst, lhs, rhs) -> dst = bool
	OpLessThan
	OpLessEqual
	OpGreaterThan
	OpGreaterEqual
	OpEquals
	OpNotEqual

	// Boolean short-circuit (dst, lhs, addr): dst = lhs; if lhs's
	// truthiness already decides the result, jump to addr, else dst is
	// overwritten by evaluating rhs (compiled as ordinary code after
	// this instruction) into dst.
	OpAnd
	OpOr

	// String
	OpConcat // (dst, lhs, rhs): coerces numbers to strings

	// Data movement
	OpLoadConstant      // (dst, constIdx): dst = Constants[constIdx]
	OpLoadNil           // (dst)
	OpLoadBool          // (dst, imm 0|1)
	OpLoadInt           // (dst, imm int64)
	OpLoadFloat         // (dst, imm float64)
	OpLoadRegister      // (dst, src): dst = src
	OpDuplicateRegister // (dst, src): dst = src, distinct opcode from
	// LoadRegister for disassembly readability; the VM executes both
	// identically (see pkg/vm) because retain/release bookkeeping
	// already happens uniformly on every persistent-slot write.
	OpStore // (dst, src): dst = src, used for assignment-statement targets
	OpAlloc // (dst, kind imm, funcId imm): allocate a table (kind=0) or
	// a function closing over the current scope stack (kind=1, funcId
	// names the CompiledFunction)

	// Table
	OpLookup                     // (dst, tbl, key): dst = tbl[key]
	OpSetProperty                 // (tbl, key, val): tbl[key] = val
	OpSetAllPropertiesFromRet     // (tbl, startIndex imm): tbl[startIndex], tbl[startIndex+1], ... = Results...
	OpSetAllPropertiesFromVa      // (tbl, startIndex imm): same, from VaArgs

	// Control
	OpJump         // (addr imm)
	OpJumpNot      // (cond, addr imm): jump if !truthy(cond)
	OpJumpNil      // (cond, addr imm): jump if cond is Nil
	OpNop
	OpRaise        // (err *errors.OpError): unconditionally raise
	OpRaiseIfNot   // (cond, err *errors.OpError): raise unless truthy(cond)

	// Scopes
	OpPushScope // (size imm): push current local scope onto referenced, start a fresh local scope of the given size
	OpPopScope  // (): pop referenced back into local

	// Calls & returns
	OpCall                 // (target, argBase, argCount imm)
	OpCallCopyRet          // (target, argBase, fixedArgCount imm): argBase.. is fixedArgCount fixed args, then the prior call's Results are appended before invoking
	OpCallCopyVa           // (target, argBase, fixedArgCount imm): as above, spreading VaArgs instead of the prior call's Results
	OpSetRet               // (val): append val to the current frame's Results
	OpConsumeRetRange      // (base, count imm): move count values from the most recent call's Results into local[base..base+count), padding with Nil
	OpRet                  // (): pop the frame, append its Results to the caller's (or finish execute())
	OpCopyRetFromRetAndRet // (): append the prior call's Results to the current frame's Results, then Ret
	OpCopyRetFromVaAndRet  // (): append the current frame's VaArgs to its Results, then Ret
	OpLoadVa               // (dst, index imm): dst = VaArgs[index] or Nil

	// OpPromoteForVar is numeric-for's loop-variable seed: dst already
	// holds the loop's init value; if limit (A) or step (B) is a Float,
	// dst is overwritten with its own value widened to Float, so the
	// loop body sees the promoted type from its very first iteration
	// rather than only after the first OpAdd.
	OpPromoteForVar
)

var opNames = [...]string{
	"Add", "Subtract", "Times", "Divide", "IDiv", "Modulo", "Exponetiation",
	"BitAnd", "BitOr", "BitXor", "ShiftLeft", "ShiftRight", "UnaryBitNot",
	"UnaryMinus", "Not", "Length",
	"LessThan", "LessEqual", "GreaterThan", "GreaterEqual", "Equals", "NotEqual",
	"And", "Or",
	"Concat",
	"LoadConstant", "LoadNil", "LoadBool", "LoadInt", "LoadFloat",
	"LoadRegister", "DuplicateRegister", "Store", "Alloc",
	"Lookup", "SetProperty", "SetAllPropertiesFromRet", "SetAllPropertiesFromVa",
	"Jump", "JumpNot", "JumpNil", "Nop", "Raise", "RaiseIfNot",
	"PushScope", "PopScope",
	"Call", "CallCopyRet", "CallCopyVa", "SetRet", "ConsumeRetRange", "Ret",
	"CopyRetFromRetAndRet", "CopyRetFromVaAndRet", "LoadVa",
	"PromoteForVar",
}

func (op OpCode) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "Unknown"
}

// Register is a (scope_depth, offset) address: scope 0 is the
// outermost captured scope; the currently-executing frame's local
// scope sits at the highest depth.
type Register struct {
	Scope  uint8
	Offset uint16
}

// AllocKind distinguishes the two things OpAlloc can allocate.
type AllocKind uint8

const (
	AllocTable AllocKind = iota
	AllocFunction
)

// Instruction is one bytecode op plus its operands. Not every field is
// meaningful for every opcode; see the OpCode comments above for which
// fields a given opcode reads.
type Instruction struct {
	Op     OpCode
	Dst    Register
	A      Register
	B      Register
	Imm    int64
	ImmF   float64
	Kind   AllocKind
	OpErr  *errs.OpError
}

// ScopeDescriptor names the width of a lexical block's local scope,
// known only once the block's declared-locals count is final.
type ScopeDescriptor struct {
	Size int
}

// FuncId indexes Chunk.Functions; element 0 is always main.
type FuncId = int

// CompiledFunction is one compiled function body.
type CompiledFunction struct {
	Name           string // debug only
	NumParams      int
	IsVariadic     bool
	LocalRegisters int // width of a fresh local scope for this function
	AnonRegisters  int // width of the anonymous-register temp space
	Instructions   []Instruction
}

// Chunk is the compiled artifact produced by pkg/compiler and consumed
// by pkg/vm.
type Chunk struct {
	Constants  []string       // de-duplicated string constant pool
	GlobalsMap map[string]int // identifier -> top-level slot index
	Functions  []*CompiledFunction
}

func NewChunk() *Chunk {
	return &Chunk{GlobalsMap: make(map[string]int)}
}

// GlobalSlot returns the slot for name, allocating a new one if this is
// the first reference: a read/write of an unknown identifier
// implicitly adds a global slot.
func (c *Chunk) GlobalSlot(name string) int {
	if slot, ok := c.GlobalsMap[name]; ok {
		return slot
	}
	slot := len(c.GlobalsMap)
	c.GlobalsMap[name] = slot
	return slot
}

// AddConstant interns s into the constant pool, returning its index.
func (c *Chunk) AddConstant(s string) int {
	for i, existing := range c.Constants {
		if existing == s {
			return i
		}
	}
	c.Constants = append(c.Constants, s)
	return len(c.Constants) - 1
}
