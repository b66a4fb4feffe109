// Package demo hand-builds a handful of ast.Block programs for
// cmd/lucore to compile, disassemble, and run. With no lexer/parser in
// scope, these trees stand in for source text — the same role
// pkg/driver's integration tests give hand-built ASTs for their own
// end-to-end scenarios, but geared toward a human watching bytecode
// and results rather than an assertion.
package demo

import (
	"github.com/nooga/lucore/pkg/ast"
	"github.com/nooga/lucore/pkg/errors"
)

// Program names one of the canned demonstrations. Source is the Lua
// text the Build tree stands in for — cmd/lucore wraps it in a
// pkg/source.SourceFile so a compile/runtime error has something to
// report a position against, even though Build constructs the tree
// directly rather than parsing Source.
type Program struct {
	Name        string
	Description string
	Source      string
	Build       func() *ast.Block
}

// Catalog lists every demo cmd/lucore can run, in display order.
var Catalog = []Program{
	{"concat", "local string concatenation", concatSource, buildConcat},
	{"fib", "recursive fibonacci(10) via a local function", fibSource, buildFib},
	{"closures", "a counter closure called three times", closuresSource, buildClosures},
	{"table", "a table literal read back through numeric-for", tableSource, buildTable},
}

const concatSource = `local greeting = "Hello, "
local subject = "world!"
return greeting .. subject
`

const fibSource = `local function fib(n)
  if n < 2 then return n end
  return fib(n - 1) + fib(n - 2)
end
return fib(10)
`

const closuresSource = `local function makeCounter()
  local n = 0
  return function()
    n = n + 1
    return n
  end
end
local c = makeCounter()
return c(), c(), c()
`

const tableSource = `local t = { 10, 20, 30 }
local sum = 0
for i = 1, 3 do
  sum = sum + t[i]
end
return sum
`

func ident(name string) ast.Ident { return ast.Ident{Name: name} }
func name(n string) *ast.NameExpr { return &ast.NameExpr{Name: ident(n)} }

// buildConcat is:
//
//	local greeting = "Hello, "
//	local subject = "world!"
//	return greeting .. subject
func buildConcat() *ast.Block {
	return &ast.Block{
		Statements: []ast.Stmt{
			&ast.LocalVarListStmt{
				Names:  []ast.Ident{ident("greeting")},
				Values: []ast.Expr{&ast.StringExpr{Value: "Hello, "}},
			},
			&ast.LocalVarListStmt{
				Names:  []ast.Ident{ident("subject")},
				Values: []ast.Expr{&ast.StringExpr{Value: "world!"}},
			},
		},
		Return: &ast.ReturnStmt{
			Values: []ast.Expr{&ast.BinaryOpExpr{Op: ast.BinConcat, Left: name("greeting"), Right: name("subject")}},
		},
	}
}

// buildFib is:
//
//	local function fib(n)
//	  if n < 2 then return n end
//	  return fib(n - 1) + fib(n - 2)
//	end
//	return fib(10)
func buildFib() *ast.Block {
	n := ident("n")
	fibDecl := &ast.FnDeclStmt{
		Kind:   ast.FnDeclLocal,
		Target: name("fib"),
		Body: &ast.FnBody{
			Params: []ast.Ident{n},
			Body: &ast.Block{
				Statements: []ast.Stmt{
					&ast.IfStmt{
						Cond: &ast.BinaryOpExpr{Op: ast.BinLt, Left: name("n"), Right: &ast.IntExpr{Value: 2}},
						Body: &ast.Block{Return: &ast.ReturnStmt{Values: []ast.Expr{name("n")}}},
					},
				},
				Return: &ast.ReturnStmt{
					Values: []ast.Expr{&ast.BinaryOpExpr{
						Op: ast.BinAdd,
						Left: &ast.FnCallExpr{
							Callee: name("fib"),
							Args:   []ast.Expr{&ast.BinaryOpExpr{Op: ast.BinSub, Left: name("n"), Right: &ast.IntExpr{Value: 1}}},
						},
						Right: &ast.FnCallExpr{
							Callee: name("fib"),
							Args:   []ast.Expr{&ast.BinaryOpExpr{Op: ast.BinSub, Left: name("n"), Right: &ast.IntExpr{Value: 2}}},
						},
					}},
				},
			},
		},
	}
	return &ast.Block{
		Statements: []ast.Stmt{fibDecl},
		Return: &ast.ReturnStmt{
			Values: []ast.Expr{&ast.FnCallExpr{Callee: name("fib"), Args: []ast.Expr{&ast.IntExpr{Value: 10}}}},
		},
	}
}

// buildClosures is:
//
//	local function makeCounter()
//	  local n = 0
//	  return function()
//	    n = n + 1
//	    return n
//	  end
//	end
//	local c = makeCounter()
//	return c(), c(), c()
func buildClosures() *ast.Block {
	makeCounter := &ast.FnDeclStmt{
		Kind:   ast.FnDeclLocal,
		Target: name("makeCounter"),
		Body: &ast.FnBody{
			Body: &ast.Block{
				Statements: []ast.Stmt{
					&ast.LocalVarListStmt{Names: []ast.Ident{ident("n")}, Values: []ast.Expr{&ast.IntExpr{Value: 0}}},
				},
				Return: &ast.ReturnStmt{
					Values: []ast.Expr{&ast.FnBody{
						Body: &ast.Block{
							Statements: []ast.Stmt{
								&ast.AssignmentStmt{
									Targets: []ast.Expr{name("n")},
									Values:  []ast.Expr{&ast.BinaryOpExpr{Op: ast.BinAdd, Left: name("n"), Right: &ast.IntExpr{Value: 1}}},
								},
							},
							Return: &ast.ReturnStmt{Values: []ast.Expr{name("n")}},
						},
					}},
				},
			},
		},
	}
	return &ast.Block{
		Statements: []ast.Stmt{
			makeCounter,
			&ast.LocalVarListStmt{
				Names:  []ast.Ident{ident("c")},
				Values: []ast.Expr{&ast.FnCallExpr{Callee: name("makeCounter")}},
			},
		},
		Return: &ast.ReturnStmt{
			Values: []ast.Expr{
				&ast.FnCallExpr{Callee: name("c")},
				&ast.FnCallExpr{Callee: name("c")},
				&ast.FnCallExpr{Callee: name("c")},
			},
		},
	}
}

// buildTable is:
//
//	local t = { 10, 20, 30 }
//	local sum = 0
//	for i = 1, 3 do
//	  sum = sum + t[i]
//	end
//	return sum
func buildTable() *ast.Block {
	field := func(v int64) ast.TableField {
		return ast.TableField{Kind: ast.FieldArraylike, Value: &ast.IntExpr{Value: v}}
	}
	return &ast.Block{
		Statements: []ast.Stmt{
			&ast.LocalVarListStmt{
				Names: []ast.Ident{ident("t")},
				Values: []ast.Expr{&ast.TableConstructorExpr{
					Fields: []ast.TableField{field(10), field(20), field(30)},
				}},
			},
			&ast.LocalVarListStmt{
				Names:  []ast.Ident{ident("sum")},
				Values: []ast.Expr{&ast.IntExpr{Value: 0}},
			},
			&ast.NumericForStmt{
				Var:   ident("i"),
				Init:  &ast.IntExpr{Value: 1},
				Limit: &ast.IntExpr{Value: 3},
				Body: &ast.Block{
					Statements: []ast.Stmt{
						&ast.AssignmentStmt{
							Targets: []ast.Expr{name("sum")},
							Values: []ast.Expr{&ast.BinaryOpExpr{
								Op:   ast.BinAdd,
								Left: name("sum"),
								Right: &ast.IndexExpr{
									Object: name("t"),
									Key:    name("i"),
								},
							}},
						},
					},
				},
			},
		},
		Return: &ast.ReturnStmt{Values: []ast.Expr{name("sum")}},
	}
}

// Position is a convenience zero position for demo nodes that don't
// bother filling one in; every Pos-bearing field above defaults to
// this already, named here only so callers building their own demos
// have one obvious thing to reuse.
var Position = errors.Position{}
