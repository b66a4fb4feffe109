// Package ast defines the tree the compiler (pkg/compiler) consumes.
// Building this tree from source text is out of scope for this module
// — lexing and parsing are an external collaborator's job. Callers
// either embed a parser that targets these node types, or, as the test
// suite in pkg/driver does, construct the tree directly.
package ast

import "github.com/nooga/lucore/pkg/errors"

// Ident is an interned identifier. Two Idents with the same Name are
// the same identifier; the compiler never compares Idents by pointer.
type Ident struct {
	Name string
	Pos  errors.Position
}

// Node is the marker interface implemented by every AST node.
type Node interface {
	node()
}

// Stmt is implemented by every statement node.
type Stmt interface {
	Node
	stmt()
}

// Expr is implemented by every expression node.
type Expr interface {
	Node
	expr()
}

// Block is a sequence of statements optionally terminated by a return.
// It is the unit compiled by FnDecl/FnBody and the top-level program.
type Block struct {
	Statements []Stmt
	Return     *ReturnStmt // nil if the block falls off the end
}

func (*Block) node() {}

// ---- Statements ----

type AssignmentStmt struct {
	Targets []Expr // NameExpr or IndexExpr
	Values  []Expr
	Pos     errors.Position
}

func (*AssignmentStmt) node() {}
func (*AssignmentStmt) stmt() {}

type LocalAttrib int

const (
	AttribNone LocalAttrib = iota
	AttribConst
	AttribClose
)

type LocalVarListStmt struct {
	Names   []Ident
	Attribs []LocalAttrib // parallel to Names
	Values  []Expr
	Pos     errors.Position
}

func (*LocalVarListStmt) node() {}
func (*LocalVarListStmt) stmt() {}

type FnDeclKind int

const (
	FnDeclFunction FnDeclKind = iota // function a.b.c(...) ... end
	FnDeclLocal                      // local function f(...) ... end
)

// FnDeclStmt declares a named function. For FnDeclFunction, Target is
// the (possibly dotted/method) assignment target; for FnDeclLocal,
// Target is always a NameExpr and the slot is pre-allocated before
// Body compiles, to permit self-recursion.
type FnDeclStmt struct {
	Kind   FnDeclKind
	Target Expr
	Body   *FnBody
	Pos    errors.Position
}

func (*FnDeclStmt) node() {}
func (*FnDeclStmt) stmt() {}

type IfClause struct {
	Cond Expr
	Body *Block
}

type IfStmt struct {
	Cond  Expr
	Body  *Block
	Elifs []IfClause
	Else  *Block // nil if no else
	Pos   errors.Position
}

func (*IfStmt) node() {}
func (*IfStmt) stmt() {}

type WhileStmt struct {
	Cond Expr
	Body *Block
	Pos  errors.Position
}

func (*WhileStmt) node() {}
func (*WhileStmt) stmt() {}

type RepeatStmt struct {
	Body *Block
	Cond Expr // locals declared in Body are visible here
	Pos  errors.Position
}

func (*RepeatStmt) node() {}
func (*RepeatStmt) stmt() {}

type NumericForStmt struct {
	Var   Ident
	Init  Expr
	Limit Expr
	Step  Expr // nil means literal 1
	Body  *Block
	Pos   errors.Position
}

func (*NumericForStmt) node() {}
func (*NumericForStmt) stmt() {}

type ForEachStmt struct {
	Names []Ident
	Exprs []Expr
	Body  *Block
	Pos   errors.Position
}

func (*ForEachStmt) node() {}
func (*ForEachStmt) stmt() {}

type BreakStmt struct {
	Pos errors.Position
}

func (*BreakStmt) node() {}
func (*BreakStmt) stmt() {}

type GotoStmt struct {
	Label string
	Pos   errors.Position
}

func (*GotoStmt) node() {}
func (*GotoStmt) stmt() {}

type LabelStmt struct {
	Name string
	Pos  errors.Position
}

func (*LabelStmt) node() {}
func (*LabelStmt) stmt() {}

type ReturnStmt struct {
	Values []Expr
	Pos    errors.Position
}

func (*ReturnStmt) node() {}
func (*ReturnStmt) stmt() {}

// ExprStmt is a function call used as a statement for its side
// effects; its results are discarded.
type ExprStmt struct {
	Call *FnCallExpr
	Pos  errors.Position
}

func (*ExprStmt) node() {}
func (*ExprStmt) stmt() {}

type EmptyStmt struct{}

func (*EmptyStmt) node() {}
func (*EmptyStmt) stmt() {}

// ---- Expressions ----

type NilExpr struct{ Pos errors.Position }

func (*NilExpr) node() {}
func (*NilExpr) expr() {}

type BoolExpr struct {
	Value bool
	Pos   errors.Position
}

func (*BoolExpr) node() {}
func (*BoolExpr) expr() {}

type IntExpr struct {
	Value int64
	Pos   errors.Position
}

func (*IntExpr) node() {}
func (*IntExpr) expr() {}

type FloatExpr struct {
	Value float64
	Pos   errors.Position
}

func (*FloatExpr) node() {}
func (*FloatExpr) expr() {}

type StringExpr struct {
	Value string
	Pos   errors.Position
}

func (*StringExpr) node() {}
func (*StringExpr) expr() {}

type VarArgsExpr struct{ Pos errors.Position }

func (*VarArgsExpr) node() {}
func (*VarArgsExpr) expr() {}

type UnOp int

const (
	UnMinus UnOp = iota
	UnNot
	UnLength
	UnBitNot
)

type UnaryOpExpr struct {
	Op      UnOp
	Operand Expr
	Pos     errors.Position
}

func (*UnaryOpExpr) node() {}
func (*UnaryOpExpr) expr() {}

type BinOp int

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinDiv
	BinIDiv
	BinMod
	BinPow
	BinBitAnd
	BinBitOr
	BinBitXor
	BinShl
	BinShr
	BinConcat
	BinEq
	BinNeq
	BinLt
	BinLe
	BinGt
	BinGe
	BinAnd // short-circuit
	BinOr  // short-circuit
)

type BinaryOpExpr struct {
	Op    BinOp
	Left  Expr
	Right Expr
	Pos   errors.Position
}

func (*BinaryOpExpr) node() {}
func (*BinaryOpExpr) expr() {}

// NameExpr reads (or, as an assignment target, writes) a local,
// captured, or global variable by identifier.
type NameExpr struct {
	Name Ident
}

func (*NameExpr) node() {}
func (*NameExpr) expr() {}

// IndexExpr covers both tbl[e] and tbl.field (the latter with Key set
// to a StringExpr and Dotted true, purely for disassembly/debugging
// readability — compilation treats both identically).
type IndexExpr struct {
	Object Expr
	Key    Expr
	Dotted bool
	Pos    errors.Position
}

func (*IndexExpr) node() {}
func (*IndexExpr) expr() {}

// FnCallExpr calls Callee with Args. Method, when non-nil, is Lua's
// obj:method(args) sugar: Callee is still the object expression, and
// the compiler inserts it as an implicit first argument ("self") while
// looking up Method on it for the call target.
type FnCallExpr struct {
	Callee Expr
	Method *Ident
	Args   []Expr
	Pos    errors.Position
}

func (*FnCallExpr) node() {}
func (*FnCallExpr) expr() {}

type TableFieldKind int

const (
	FieldArraylike TableFieldKind = iota // { e }
	FieldNamed                           // { name = e }
	FieldIndexed                         // { [e1] = e2 }
)

type TableField struct {
	Kind  TableFieldKind
	Name  Ident // FieldNamed
	Key   Expr  // FieldIndexed
	Value Expr
}

type TableConstructorExpr struct {
	Fields []TableField
	Pos    errors.Position
}

func (*TableConstructorExpr) node() {}
func (*TableConstructorExpr) expr() {}

// FnBody is a function literal: parameter list, variadic flag, and
// body block. It appears both as an expression (`function(...) end`)
// and as the payload of FnDeclStmt.
type FnBody struct {
	Params     []Ident
	IsVariadic bool
	Body       *Block
	Pos        errors.Position
}

func (*FnBody) node() {}
func (*FnBody) expr() {}
