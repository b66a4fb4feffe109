// Package errors defines the two error taxonomies the embedder sees:
// CompileError (static, from pkg/compiler) and OpError (runtime, raised
// by pkg/value helpers and pkg/vm opcodes). They are never mixed: a
// single Execute call fails with exactly one LuaError.
package errors

import "fmt"

// LuaError is the interface implemented by every error the runtime can
// return to the embedder.
type LuaError interface {
	error
	Pos() Position
	Kind() string
	Message() string
}

// CompileErrorKind enumerates the statically-detectable compile errors.
type CompileErrorKind string

const (
	DuplicateLabel          CompileErrorKind = "DuplicateLabel"
	UndefinedLabel          CompileErrorKind = "UndefinedLabel"
	JumpIntoLocalScope      CompileErrorKind = "JumpIntoLocalScope"
	VarArgsOutsideVariadic  CompileErrorKind = "VarArgsOutsideVariadic"
	DuplicateLocalAttribute CompileErrorKind = "DuplicateLocalAttribute"
	UnknownAttribute        CompileErrorKind = "UnknownAttribute"
)

// CompileError represents an error detected during compilation.
type CompileError struct {
	Position
	CKind CompileErrorKind
	Msg   string
}

func NewCompileError(kind CompileErrorKind, pos Position, msg string) *CompileError {
	return &CompileError{Position: pos, CKind: kind, Msg: msg}
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile error at %d:%d: [%s] %s", e.Line, e.Column, e.CKind, e.Msg)
}
func (e *CompileError) Pos() Position   { return e.Position }
func (e *CompileError) Kind() string    { return string(e.CKind) }
func (e *CompileError) Message() string { return e.Msg }

// ByteCodeErrorKind enumerates the "should be unreachable"
// miscompilation errors the VM can detect at dispatch time.
type ByteCodeErrorKind string

const (
	UnexpectedCallInstruction ByteCodeErrorKind = "UnexpectedCallInstruction"
	ExpectedCallInstruction   ByteCodeErrorKind = "ExpectedCallInstruction"
	MissingCallInvocation     ByteCodeErrorKind = "MissingCallInvocation"
	MissingJump               ByteCodeErrorKind = "MissingJump"
	MissingScopeDescriptor    ByteCodeErrorKind = "MissingScopeDescriptor"
)

// OpErrorKind enumerates the runtime error kinds raised by value
// operations and the VM's dispatch loop.
type OpErrorKind string

const (
	InvalidType                OpErrorKind = "InvalidType"
	IndexNilErr                OpErrorKind = "IndexNilErr"
	IndexNumberErr              OpErrorKind = "IndexNumberErr"
	IndexBoolErr                OpErrorKind = "IndexBoolErr"
	CmpErr                      OpErrorKind = "CmpErr"
	DuoCmpErr                   OpErrorKind = "DuoCmpErr"
	FloatToIntConversionFailed  OpErrorKind = "FloatToIntConversionFailed"
	TableIndexNaN               OpErrorKind = "TableIndexNaN"
	TableIndexOutOfBounds       OpErrorKind = "TableIndexOutOfBounds"
	StringLengthOutOfBounds     OpErrorKind = "StringLengthOutOfBounds"
	BreakNotInLoop              OpErrorKind = "BreakNotInLoop"
	ByteCodeError               OpErrorKind = "ByteCodeError"
)

// OpError represents a runtime error raised by a Raise/RaiseIfNot
// opcode or directly by the VM's dispatch loop. It implements Go's
// error interface so it can flow through normal Go error returns from
// pkg/value's arithmetic helpers as well as pkg/vm's dispatch loop.
type OpError struct {
	Position
	OKind  OpErrorKind
	Msg    string
	Op     string            // for InvalidType: the operator/builtin name
	BCKind ByteCodeErrorKind // for ByteCodeError
	Offset int               // for ByteCodeError: instruction offset
}

func NewOpError(kind OpErrorKind, msg string) *OpError {
	return &OpError{OKind: kind, Msg: msg}
}

func NewByteCodeError(kind ByteCodeErrorKind, offset int) *OpError {
	return &OpError{
		OKind:  ByteCodeError,
		BCKind: kind,
		Offset: offset,
		Msg:    fmt.Sprintf("%s at instruction %d", kind, offset),
	}
}

func (e *OpError) Error() string {
	if e.OKind == ByteCodeError {
		return fmt.Sprintf("bytecode error at %d:%d: %s", e.Line, e.Column, e.Msg)
	}
	return fmt.Sprintf("runtime error at %d:%d: [%s] %s", e.Line, e.Column, e.OKind, e.Msg)
}
func (e *OpError) Pos() Position   { return e.Position }
func (e *OpError) Kind() string    { return string(e.OKind) }
func (e *OpError) Message() string { return e.Msg }

// WithPos returns a copy of e with its position set, for call sites
// that only learn the offending position after the error is produced
// by a position-agnostic helper (e.g. pkg/value arithmetic).
func (e *OpError) WithPos(pos Position) *OpError {
	cp := *e
	cp.Position = pos
	return &cp
}
