package bytecode

import (
	"fmt"

	"github.com/xlab/treeprint"
)

func regStr(r Register) string {
	return fmt.Sprintf("R(%d,%d)", r.Scope, r.Offset)
}

// Disassemble renders the chunk as a tree, one branch per function,
// for CLI/debugging use only (see DESIGN.md). It has no bearing on
// compile or execute semantics.
func (c *Chunk) Disassemble() string {
	root := treeprint.New()
	root.SetValue("chunk")
	constBranch := root.AddBranch("constants")
	for i, s := range c.Constants {
		constBranch.AddNode(fmt.Sprintf("%d: %q", i, s))
	}
	for id, fn := range c.Functions {
		fnBranch := root.AddBranch(fmt.Sprintf("func #%d %q (params=%d variadic=%v locals=%d anon=%d)",
			id, fn.Name, fn.NumParams, fn.IsVariadic, fn.LocalRegisters, fn.AnonRegisters))
		for pc, ins := range fn.Instructions {
			fnBranch.AddNode(fmt.Sprintf("%04d  %s", pc, ins.String()))
		}
	}
	return root.String()
}

func (ins Instruction) String() string {
	switch ins.Op {
	case OpLoadConstant:
		return fmt.Sprintf("%-12s %s K(%d)", ins.Op, regStr(ins.Dst), ins.Imm)
	case OpLoadInt:
		return fmt.Sprintf("%-12s %s #%d", ins.Op, regStr(ins.Dst), ins.Imm)
	case OpLoadFloat:
		return fmt.Sprintf("%-12s %s #%g", ins.Op, regStr(ins.Dst), ins.ImmF)
	case OpLoadBool:
		return fmt.Sprintf("%-12s %s #%d", ins.Op, regStr(ins.Dst), ins.Imm)
	case OpJump:
		return fmt.Sprintf("%-12s -> %d", ins.Op, ins.Imm)
	case OpJumpNot, OpJumpNil:
		return fmt.Sprintf("%-12s %s -> %d", ins.Op, regStr(ins.A), ins.Imm)
	case OpRaise:
		return fmt.Sprintf("%-12s %v", ins.Op, ins.OpErr)
	case OpRaiseIfNot:
		return fmt.Sprintf("%-12s %s %v", ins.Op, regStr(ins.A), ins.OpErr)
	case OpPushScope:
		return fmt.Sprintf("%-12s size=%d", ins.Op, ins.Imm)
	case OpAlloc:
		return fmt.Sprintf("%-12s %s kind=%d func=%d", ins.Op, regStr(ins.Dst), ins.Kind, ins.Imm)
	case OpCall, OpCallCopyRet, OpCallCopyVa:
		return fmt.Sprintf("%-12s target=%s argBase=%s argCount=%d", ins.Op, regStr(ins.A), regStr(ins.B), ins.Imm)
	case OpConsumeRetRange:
		return fmt.Sprintf("%-12s base=%s count=%d", ins.Op, regStr(ins.A), ins.Imm)
	case OpLoadVa:
		return fmt.Sprintf("%-12s %s index=%d", ins.Op, regStr(ins.Dst), ins.Imm)
	case OpNop, OpPopScope, OpRet, OpCopyRetFromRetAndRet, OpCopyRetFromVaAndRet:
		return ins.Op.String()
	default:
		return fmt.Sprintf("%-12s %s %s %s", ins.Op, regStr(ins.Dst), regStr(ins.A), regStr(ins.B))
	}
}
