package driver_test

// End-to-end scenarios hand-build the ast.Block a parser would have
// produced for each source snippet and assert the exact result vector
// — there is no lexer/parser in this module to feed literal source
// text to; building the tree directly is the documented way in.

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nooga/lucore/pkg/ast"
	"github.com/nooga/lucore/pkg/config"
	"github.com/nooga/lucore/pkg/driver"
	"github.com/nooga/lucore/pkg/value"
)

func ident(n string) ast.Ident     { return ast.Ident{Name: n} }
func nameE(n string) *ast.NameExpr { return &ast.NameExpr{Name: ident(n)} }
func intE(v int64) *ast.IntExpr    { return &ast.IntExpr{Value: v} }
func strE(v string) *ast.StringExpr {
	return &ast.StringExpr{Value: v}
}

func runBlock(t *testing.T, b *ast.Block, setup func(rt *driver.Runtime)) []value.Value {
	t.Helper()
	rt := driver.New(config.Default())
	if setup != nil {
		setup(rt)
	}
	results, err := rt.CompileAndExecute(b)
	require.Nil(t, err, "unexpected error: %v", err)
	return results
}

// E1: return 1 + 2 with empty globals -> [Integer(3)]
func TestE1_IntegerAddition(t *testing.T) {
	b := &ast.Block{
		Return: &ast.ReturnStmt{
			Values: []ast.Expr{&ast.BinaryOpExpr{Op: ast.BinAdd, Left: intE(1), Right: intE(2)}},
		},
	}
	results := runBlock(t, b, nil)
	require.Len(t, results, 1)
	assert.Equal(t, value.IntV(3), results[0])
}

// E2: local b = 0; while b < 10 do b = b + 1 end; return b -> [Integer(10)]
func TestE2_WhileLoop(t *testing.T) {
	b := &ast.Block{
		Statements: []ast.Stmt{
			&ast.LocalVarListStmt{Names: []ast.Ident{ident("b")}, Values: []ast.Expr{intE(0)}},
			&ast.WhileStmt{
				Cond: &ast.BinaryOpExpr{Op: ast.BinLt, Left: nameE("b"), Right: intE(10)},
				Body: &ast.Block{
					Statements: []ast.Stmt{
						&ast.AssignmentStmt{
							Targets: []ast.Expr{nameE("b")},
							Values:  []ast.Expr{&ast.BinaryOpExpr{Op: ast.BinAdd, Left: nameE("b"), Right: intE(1)}},
						},
					},
				},
			},
		},
		Return: &ast.ReturnStmt{Values: []ast.Expr{nameE("b")}},
	}
	results := runBlock(t, b, nil)
	require.Len(t, results, 1)
	assert.Equal(t, value.IntV(10), results[0])
}

// E3: return #a with global a = "123" -> [Integer(3)]
func TestE3_StringLength(t *testing.T) {
	b := &ast.Block{
		Return: &ast.ReturnStmt{
			Values: []ast.Expr{&ast.UnaryOpExpr{Op: ast.UnLength, Operand: nameE("a")}},
		},
	}
	results := runBlock(t, b, func(rt *driver.Runtime) {
		rt.RegisterGlobal("a", value.Str("123"))
	})
	require.Len(t, results, 1)
	assert.Equal(t, value.IntV(3), results[0])
}

// E4: return "foo" .. 2 .. "bar" -> [String("foo2bar")]
func TestE4_Concat(t *testing.T) {
	concat := &ast.BinaryOpExpr{
		Op:   ast.BinConcat,
		Left: &ast.BinaryOpExpr{Op: ast.BinConcat, Left: strE("foo"), Right: intE(2)},
		Right: strE("bar"),
	}
	b := &ast.Block{Return: &ast.ReturnStmt{Values: []ast.Expr{concat}}}
	results := runBlock(t, b, nil)
	require.Len(t, results, 1)
	assert.Equal(t, value.Str("foo2bar"), results[0])
}

// E5: generic-for with a hand-written next, iterating {"a","b","c"}
// into b = v -> [String("c")]; with a break on first iteration -> [String("a")].
//
//	local t = {"a", "b", "c"}
//	local i = 0
//	local function next()
//	  i = i + 1
//	  if i > 3 then return nil end
//	  return i, t[i]
//	end
//	local b
//	for idx, v in next do
//	  b = v
//	  -- (withBreak) break
//	end
//	return b
func buildGenericFor(withBreak bool) *ast.Block {
	field := func(s string) ast.TableField {
		return ast.TableField{Kind: ast.FieldArraylike, Value: strE(s)}
	}
	nextDecl := &ast.FnDeclStmt{
		Kind:   ast.FnDeclLocal,
		Target: nameE("next"),
		Body: &ast.FnBody{
			Body: &ast.Block{
				Statements: []ast.Stmt{
					&ast.AssignmentStmt{
						Targets: []ast.Expr{nameE("i")},
						Values:  []ast.Expr{&ast.BinaryOpExpr{Op: ast.BinAdd, Left: nameE("i"), Right: intE(1)}},
					},
					&ast.IfStmt{
						Cond: &ast.BinaryOpExpr{Op: ast.BinGt, Left: nameE("i"), Right: intE(3)},
						Body: &ast.Block{Return: &ast.ReturnStmt{Values: []ast.Expr{&ast.NilExpr{}}}},
					},
				},
				Return: &ast.ReturnStmt{Values: []ast.Expr{
					nameE("i"),
					&ast.IndexExpr{Object: nameE("t"), Key: nameE("i")},
				}},
			},
		},
	}
	forBodyStmts := []ast.Stmt{
		&ast.AssignmentStmt{Targets: []ast.Expr{nameE("b")}, Values: []ast.Expr{nameE("v")}},
	}
	if withBreak {
		forBodyStmts = append(forBodyStmts, &ast.BreakStmt{})
	}
	return &ast.Block{
		Statements: []ast.Stmt{
			&ast.LocalVarListStmt{
				Names:  []ast.Ident{ident("t")},
				Values: []ast.Expr{&ast.TableConstructorExpr{Fields: []ast.TableField{field("a"), field("b"), field("c")}}},
			},
			&ast.LocalVarListStmt{Names: []ast.Ident{ident("i")}, Values: []ast.Expr{intE(0)}},
			nextDecl,
			&ast.LocalVarListStmt{Names: []ast.Ident{ident("b")}},
			&ast.ForEachStmt{
				Names: []ast.Ident{ident("idx"), ident("v")},
				Exprs: []ast.Expr{nameE("next")},
				Body:  &ast.Block{Statements: forBodyStmts},
			},
		},
		Return: &ast.ReturnStmt{Values: []ast.Expr{nameE("b")}},
	}
}

func TestE5_GenericForFull(t *testing.T) {
	results := runBlock(t, buildGenericFor(false), nil)
	require.Len(t, results, 1)
	assert.Equal(t, value.Str("c"), results[0])
}

func TestE5_GenericForBreak(t *testing.T) {
	results := runBlock(t, buildGenericFor(true), nil)
	require.Len(t, results, 1)
	assert.Equal(t, value.Str("a"), results[0])
}

// local n = 0; for i = 10, 1, -1 do n = n + 1 end; return n -> [Integer(10)]
// (i is not visible after the loop). A negative step must still run the
// body (descending loops are not dead code).
func TestNumericForDescendingStepRunsBody(t *testing.T) {
	b := &ast.Block{
		Statements: []ast.Stmt{
			&ast.LocalVarListStmt{Names: []ast.Ident{ident("n")}, Values: []ast.Expr{intE(0)}},
			&ast.NumericForStmt{
				Var:   ident("i"),
				Init:  intE(10),
				Limit: intE(1),
				Step:  intE(-1),
				Body: &ast.Block{
					Statements: []ast.Stmt{
						&ast.AssignmentStmt{
							Targets: []ast.Expr{nameE("n")},
							Values:  []ast.Expr{&ast.BinaryOpExpr{Op: ast.BinAdd, Left: nameE("n"), Right: intE(1)}},
						},
					},
				},
			},
		},
		Return: &ast.ReturnStmt{Values: []ast.Expr{nameE("n")}},
	}
	results := runBlock(t, b, nil)
	require.Len(t, results, 1)
	assert.Equal(t, value.IntV(10), results[0])
}

// for i = 1, 3, 1.0 do end; return i (i is visible after the loop here
// only via a local captured inside the body, since the loop variable
// itself is scoped to the loop) — captures the first iteration's i
// into a local declared outside, to check its type is already Float
// on iteration 1 even though init/limit are both Integer.
func TestNumericForFloatStepPromotesFirstIteration(t *testing.T) {
	b := &ast.Block{
		Statements: []ast.Stmt{
			&ast.LocalVarListStmt{Names: []ast.Ident{ident("first")}, Values: []ast.Expr{&ast.NilExpr{}}},
			&ast.LocalVarListStmt{Names: []ast.Ident{ident("seen")}, Values: []ast.Expr{&ast.BoolExpr{Value: false}}},
			&ast.NumericForStmt{
				Var:   ident("i"),
				Init:  intE(1),
				Limit: intE(3),
				Step:  &ast.FloatExpr{Value: 1.0},
				Body: &ast.Block{
					Statements: []ast.Stmt{
						&ast.IfStmt{
							Cond: &ast.UnaryOpExpr{Op: ast.UnNot, Operand: nameE("seen")},
							Body: &ast.Block{
								Statements: []ast.Stmt{
									&ast.AssignmentStmt{
										Targets: []ast.Expr{nameE("first")},
										Values:  []ast.Expr{nameE("i")},
									},
									&ast.AssignmentStmt{
										Targets: []ast.Expr{nameE("seen")},
										Values:  []ast.Expr{&ast.BoolExpr{Value: true}},
									},
								},
							},
						},
					},
				},
			},
		},
		Return: &ast.ReturnStmt{Values: []ast.Expr{nameE("first")}},
	}
	results := runBlock(t, b, nil)
	require.Len(t, results, 1)
	assert.Equal(t, value.FloatV(1.0), results[0])
}

// E6: closure capture.
//
//	local function foo(a)
//	  local b
//	  local function bar() return b end
//	  if a then b = 10; return foo(false) else return bar() end
//	end
//	return foo(true)
//
// -> [Nil]
func TestE6_ClosureCapture(t *testing.T) {
	a := ident("a")
	fooDecl := &ast.FnDeclStmt{
		Kind:   ast.FnDeclLocal,
		Target: nameE("foo"),
		Body: &ast.FnBody{
			Params: []ast.Ident{a},
			Body: &ast.Block{
				Statements: []ast.Stmt{
					&ast.LocalVarListStmt{Names: []ast.Ident{ident("b")}},
					&ast.FnDeclStmt{
						Kind:   ast.FnDeclLocal,
						Target: nameE("bar"),
						Body: &ast.FnBody{
							Body: &ast.Block{Return: &ast.ReturnStmt{Values: []ast.Expr{nameE("b")}}},
						},
					},
					&ast.IfStmt{
						Cond: nameE("a"),
						Body: &ast.Block{
							Statements: []ast.Stmt{
								&ast.AssignmentStmt{Targets: []ast.Expr{nameE("b")}, Values: []ast.Expr{intE(10)}},
							},
							Return: &ast.ReturnStmt{Values: []ast.Expr{
								&ast.FnCallExpr{Callee: nameE("foo"), Args: []ast.Expr{&ast.BoolExpr{Value: false}}},
							}},
						},
						Else: &ast.Block{
							Return: &ast.ReturnStmt{Values: []ast.Expr{&ast.FnCallExpr{Callee: nameE("bar")}}},
						},
					},
				},
			},
		},
	}
	b := &ast.Block{
		Statements: []ast.Stmt{fooDecl},
		Return: &ast.ReturnStmt{Values: []ast.Expr{
			&ast.FnCallExpr{Callee: nameE("foo"), Args: []ast.Expr{&ast.BoolExpr{Value: true}}},
		}},
	}
	results := runBlock(t, b, nil)
	require.Len(t, results, 1)
	assert.Equal(t, value.Nil, results[0])
}

// E7: foo(1,2,3,4) where foo(a,b,...) returns bar(a,...,b) and
// bar(...) returns ... -> [1,3,2] (middle ... yields only the first
// variadic value).
//
//	local function bar(...)
//	  return ...
//	end
//	local function foo(a, b, ...)
//	  return bar(a, ..., b)
//	end
//	return foo(1, 2, 3, 4)
func TestE7_VariadicSpreadInMiddle(t *testing.T) {
	barDecl := &ast.FnDeclStmt{
		Kind:   ast.FnDeclLocal,
		Target: nameE("bar"),
		Body: &ast.FnBody{
			IsVariadic: true,
			Body:       &ast.Block{Return: &ast.ReturnStmt{Values: []ast.Expr{&ast.VarArgsExpr{}}}},
		},
	}
	fooDecl := &ast.FnDeclStmt{
		Kind:   ast.FnDeclLocal,
		Target: nameE("foo"),
		Body: &ast.FnBody{
			Params:     []ast.Ident{ident("a"), ident("b")},
			IsVariadic: true,
			Body: &ast.Block{
				Return: &ast.ReturnStmt{Values: []ast.Expr{
					&ast.FnCallExpr{
						Callee: nameE("bar"),
						Args:   []ast.Expr{nameE("a"), &ast.VarArgsExpr{}, nameE("b")},
					},
				}},
			},
		},
	}
	b := &ast.Block{
		Statements: []ast.Stmt{barDecl, fooDecl},
		Return: &ast.ReturnStmt{Values: []ast.Expr{
			&ast.FnCallExpr{Callee: nameE("foo"), Args: []ast.Expr{intE(1), intE(2), intE(3), intE(4)}},
		}},
	}
	results := runBlock(t, b, nil)
	require.Len(t, results, 3)
	assert.Equal(t, value.IntV(1), results[0])
	assert.Equal(t, value.IntV(3), results[1])
	assert.Equal(t, value.IntV(2), results[2])
}

// GC soundness: after execute returns, stats show every allocation
// freed when no cycle closes through globals/results — every one except
// the runtime's own globals table, which driver.New allocates on the
// same heap. Objects freed by a count reaching zero are counted in
// Freed, objects freed by the cycle collector in CyclesFreed.
func TestGCSoundness_NoCycleLeftReachable(t *testing.T) {
	b := &ast.Block{
		Statements: []ast.Stmt{
			&ast.LocalVarListStmt{
				Names:  []ast.Ident{ident("t")},
				Values: []ast.Expr{&ast.TableConstructorExpr{}},
			},
			&ast.AssignmentStmt{
				Targets: []ast.Expr{&ast.IndexExpr{Object: nameE("t"), Key: intE(1)}},
				Values:  []ast.Expr{nameE("t")},
			},
		},
		Return: &ast.ReturnStmt{Values: []ast.Expr{intE(1)}},
	}
	rt := driver.New(config.Default())
	results, err := rt.CompileAndExecute(b)
	require.Nil(t, err)
	require.Len(t, results, 1)
	stats := rt.Stats()
	assert.Equal(t, stats.Allocated-1, stats.Freed+stats.CyclesFreed, "self-referential table must be reclaimed by the cycle collector")
}
