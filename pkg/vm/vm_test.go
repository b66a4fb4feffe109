package vm

import (
	"testing"

	"github.com/nooga/lucore/pkg/bytecode"
	errs "github.com/nooga/lucore/pkg/errors"
	"github.com/nooga/lucore/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reg(scope uint8, offset uint16) bytecode.Register {
	return bytecode.Register{Scope: scope, Offset: offset}
}

func newTestVM(main *bytecode.CompiledFunction, extra ...*bytecode.CompiledFunction) *VM {
	chunk := bytecode.NewChunk()
	chunk.Functions = append(chunk.Functions, main)
	chunk.Functions = append(chunk.Functions, extra...)
	heap := value.NewHeap()
	return New(chunk, heap.AllocTable(0), heap)
}

func TestVMArithmeticAndReturn(t *testing.T) {
	main := &bytecode.CompiledFunction{
		Name:           "main",
		LocalRegisters: 2,
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpPushScope, Imm: 2},
			{Op: bytecode.OpLoadInt, Dst: reg(0, 0), Imm: 2},
			{Op: bytecode.OpLoadInt, Dst: reg(0, 1), Imm: 3},
			{Op: bytecode.OpAdd, Dst: reg(0, 0), A: reg(0, 0), B: reg(0, 1)},
			{Op: bytecode.OpSetRet, A: reg(0, 0)},
			{Op: bytecode.OpPopScope},
			{Op: bytecode.OpRet},
		},
	}
	vm := newTestVM(main)
	results, err := vm.Execute()
	require.Nil(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, value.IntV(5), results[0])
}

func TestVMGlobalStoreIsVisibleThroughGlobalsTable(t *testing.T) {
	chunk := bytecode.NewChunk()
	nameIdx := chunk.AddConstant("x")
	main := &bytecode.CompiledFunction{
		Name:           "main",
		LocalRegisters: 2,
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpPushScope, Imm: 2},
			{Op: bytecode.OpLoadConstant, Dst: reg(0, 0), Imm: int64(nameIdx)},
			{Op: bytecode.OpLoadInt, Dst: reg(0, 1), Imm: 99},
			{Op: bytecode.OpSetProperty, Dst: reg(globalsScope, 0), A: reg(0, 0), B: reg(0, 1)},
			{Op: bytecode.OpPopScope},
			{Op: bytecode.OpRet},
		},
	}
	chunk.Functions = append(chunk.Functions, main)
	heap := value.NewHeap()
	globals := heap.AllocTable(0)
	vmInst := New(chunk, globals, heap)

	_, err := vmInst.Execute()
	require.Nil(t, err)
	assert.Equal(t, value.IntV(99), globals.Get(value.Str("x")))
}

func TestVMCallReturnsCalleeResult(t *testing.T) {
	callee := &bytecode.CompiledFunction{
		Name:           "callee",
		LocalRegisters: 1,
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpPushScope, Imm: 1},
			{Op: bytecode.OpLoadInt, Dst: reg(0, 0), Imm: 10},
			{Op: bytecode.OpSetRet, A: reg(0, 0)},
			{Op: bytecode.OpPopScope},
			{Op: bytecode.OpRet},
		},
	}
	main := &bytecode.CompiledFunction{
		Name:           "main",
		LocalRegisters: 1,
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpPushScope, Imm: 1},
			{Op: bytecode.OpAlloc, Dst: reg(0, 0), Kind: bytecode.AllocFunction, Imm: 1},
			{Op: bytecode.OpCall, A: reg(0, 0), B: reg(0, 0), Imm: 0},
			{Op: bytecode.OpCopyRetFromRetAndRet},
		},
	}
	vm := newTestVM(main, callee)
	results, err := vm.Execute()
	require.Nil(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, value.IntV(10), results[0])
}

func TestVMIndexNilRaisesOpError(t *testing.T) {
	main := &bytecode.CompiledFunction{
		Name:           "main",
		LocalRegisters: 3,
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpPushScope, Imm: 3},
			{Op: bytecode.OpLoadNil, Dst: reg(0, 0)},
			{Op: bytecode.OpLoadInt, Dst: reg(0, 1), Imm: 1},
			{Op: bytecode.OpLookup, Dst: reg(0, 2), A: reg(0, 0), B: reg(0, 1)},
			{Op: bytecode.OpSetRet, A: reg(0, 2)},
			{Op: bytecode.OpPopScope},
			{Op: bytecode.OpRet},
		},
	}
	vm := newTestVM(main)
	_, err := vm.Execute()
	require.NotNil(t, err)
	assert.Equal(t, string(errs.IndexNilErr), err.Kind())
}

func TestVMCallOnNonFunctionRaisesInvalidType(t *testing.T) {
	main := &bytecode.CompiledFunction{
		Name:           "main",
		LocalRegisters: 1,
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpPushScope, Imm: 1},
			{Op: bytecode.OpLoadInt, Dst: reg(0, 0), Imm: 1},
			{Op: bytecode.OpCall, A: reg(0, 0), B: reg(0, 0), Imm: 0},
			{Op: bytecode.OpPopScope},
			{Op: bytecode.OpRet},
		},
	}
	vm := newTestVM(main)
	_, err := vm.Execute()
	require.NotNil(t, err)
	assert.Equal(t, string(errs.InvalidType), err.Kind())
}

func TestVMComparisonOfUnorderedTypesRaisesCmpErr(t *testing.T) {
	main := &bytecode.CompiledFunction{
		Name:           "main",
		LocalRegisters: 2,
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpPushScope, Imm: 2},
			{Op: bytecode.OpLoadBool, Dst: reg(0, 0), Imm: 1},
			{Op: bytecode.OpLoadBool, Dst: reg(0, 1), Imm: 0},
			{Op: bytecode.OpLessThan, Dst: reg(0, 0), A: reg(0, 0), B: reg(0, 1)},
			{Op: bytecode.OpPopScope},
			{Op: bytecode.OpRet},
		},
	}
	vm := newTestVM(main)
	_, err := vm.Execute()
	require.NotNil(t, err)
	assert.Equal(t, string(errs.CmpErr), err.Kind())
}

// An unpatched forward jump (Imm left at the compiler's -1 sentinel)
// must surface as a ByteCodeError rather than silently jumping to
// instruction 0.
func TestVMUnpatchedJumpRaisesMissingJump(t *testing.T) {
	main := &bytecode.CompiledFunction{
		Name:           "main",
		LocalRegisters: 1,
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpPushScope, Imm: 1},
			{Op: bytecode.OpLoadBool, Dst: reg(0, 0), Imm: 0},
			{Op: bytecode.OpJumpNot, A: reg(0, 0), Imm: -1},
			{Op: bytecode.OpPopScope},
			{Op: bytecode.OpRet},
		},
	}
	vm := newTestVM(main)
	_, err := vm.Execute()
	require.NotNil(t, err)
	assert.Equal(t, string(errs.ByteCodeError), err.Kind())
	opErr, ok := err.(*errs.OpError)
	require.True(t, ok)
	assert.Equal(t, errs.MissingJump, opErr.BCKind)
}

// An unpatched scope push (Imm left at -1) must surface as a
// ByteCodeError rather than pushing a zero-size scope.
func TestVMUnpatchedScopeRaisesMissingScopeDescriptor(t *testing.T) {
	main := &bytecode.CompiledFunction{
		Name:           "main",
		LocalRegisters: 1,
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpPushScope, Imm: -1},
			{Op: bytecode.OpPopScope},
			{Op: bytecode.OpRet},
		},
	}
	vm := newTestVM(main)
	_, err := vm.Execute()
	require.NotNil(t, err)
	assert.Equal(t, string(errs.ByteCodeError), err.Kind())
	opErr, ok := err.(*errs.OpError)
	require.True(t, ok)
	assert.Equal(t, errs.MissingScopeDescriptor, opErr.BCKind)
}
