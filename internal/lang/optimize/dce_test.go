package optimize

import (
	"testing"

	"github.com/cwbudde/langvm/internal/lang/ast"
)

func TestEliminateDeadCode_DropsStatementsAfterReturn(t *testing.T) {
	block := &ast.BlockStmt{Stmts: []ast.Stmt{
		&ast.ReturnStmt{Value: litInt(1)},
		&ast.ExprStmt{X: litInt(2)},
	}}
	EliminateDeadCode(programWith(block))

	if len(block.Stmts) != 1 {
		t.Fatalf("Stmts = %d, want 1 (unreachable tail dropped)", len(block.Stmts))
	}
	if _, ok := block.Stmts[0].(*ast.ReturnStmt); !ok {
		t.Fatalf("remaining statement = %T, want *ast.ReturnStmt", block.Stmts[0])
	}
}

func TestEliminateDeadCode_ConstantTrueIfKeepsThenBranch(t *testing.T) {
	then := &ast.BlockStmt{Stmts: []ast.Stmt{&ast.ReturnStmt{Value: litInt(1)}}}
	els := &ast.BlockStmt{Stmts: []ast.Stmt{&ast.ReturnStmt{Value: litInt(2)}}}
	ifStmt := &ast.IfStmt{Cond: &ast.LiteralExpr{Kind: ast.Bool, Bool: true}, Then: then, Else: els}
	block := &ast.BlockStmt{Stmts: []ast.Stmt{ifStmt}}
	EliminateDeadCode(programWith(block))

	got, ok := block.Stmts[0].(*ast.BlockStmt)
	if !ok {
		t.Fatalf("collapsed statement = %T, want *ast.BlockStmt (the Then branch)", block.Stmts[0])
	}
	if got != then {
		t.Fatalf("collapsed to a different block than Then")
	}
}

func TestEliminateDeadCode_ConstantFalseIfKeepsElseBranch(t *testing.T) {
	then := &ast.BlockStmt{Stmts: []ast.Stmt{&ast.ReturnStmt{Value: litInt(1)}}}
	els := &ast.BlockStmt{Stmts: []ast.Stmt{&ast.ReturnStmt{Value: litInt(2)}}}
	ifStmt := &ast.IfStmt{Cond: &ast.LiteralExpr{Kind: ast.Bool, Bool: false}, Then: then, Else: els}
	block := &ast.BlockStmt{Stmts: []ast.Stmt{ifStmt}}
	EliminateDeadCode(programWith(block))

	got, ok := block.Stmts[0].(*ast.BlockStmt)
	if !ok {
		t.Fatalf("collapsed statement = %T, want *ast.BlockStmt (the Else branch)", block.Stmts[0])
	}
	if got != els {
		t.Fatalf("collapsed to a different block than Else")
	}
}

func TestEliminateDeadCode_ConstantFalseIfWithNoElseBecomesEmptyBlock(t *testing.T) {
	then := &ast.BlockStmt{Stmts: []ast.Stmt{&ast.ReturnStmt{Value: litInt(1)}}}
	ifStmt := &ast.IfStmt{Cond: &ast.LiteralExpr{Kind: ast.Bool, Bool: false}, Then: then}
	block := &ast.BlockStmt{Stmts: []ast.Stmt{ifStmt}}
	EliminateDeadCode(programWith(block))

	got, ok := block.Stmts[0].(*ast.BlockStmt)
	if !ok {
		t.Fatalf("collapsed statement = %T, want *ast.BlockStmt", block.Stmts[0])
	}
	if len(got.Stmts) != 0 {
		t.Fatalf("collapsed block has %d statements, want 0", len(got.Stmts))
	}
}

func TestEliminateDeadCode_IsIdempotent(t *testing.T) {
	block := &ast.BlockStmt{Stmts: []ast.Stmt{
		&ast.ReturnStmt{Value: litInt(1)},
		&ast.ExprStmt{X: litInt(2)},
	}}
	prog := programWith(block)

	EliminateDeadCode(prog)
	first := prog.String()
	EliminateDeadCode(prog)
	second := prog.String()

	if first != second {
		t.Fatalf("eliminating dead code twice changed the program:\nfirst:  %s\nsecond: %s", first, second)
	}
}
