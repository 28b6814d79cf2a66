// Package optimize implements two AST-level optimization passes: constant
// folding and dead-code elimination. Each is a pure AST → AST map and each
// is idempotent, mirroring go-dws's convention of small, single-purpose
// visitor passes over the AST rather than one monolithic optimizer.
package optimize

import (
	"github.com/cwbudde/langvm/internal/lang/ast"
	"github.com/cwbudde/langvm/internal/lang/token"
)

// FoldConstants rewrites every compile-time-constant subexpression of
// program's function bodies to a single LiteralExpr. It mutates program in
// place and also returns it, so callers can chain passes.
func FoldConstants(program *ast.Program) *ast.Program {
	for _, fn := range program.Functions {
		foldBlock(fn.Body)
	}
	return program
}

func foldBlock(b *ast.BlockStmt) {
	for _, s := range b.Stmts {
		foldStmt(s)
	}
}

func foldStmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.VarDecl:
		st.Init = foldExpr(st.Init)
	case *ast.IfStmt:
		st.Cond = foldExpr(st.Cond)
		foldBlock(st.Then)
		if st.Else != nil {
			foldStmt(st.Else)
		}
	case *ast.BlockStmt:
		foldBlock(st)
	case *ast.ForStmt:
		if st.Init != nil {
			foldStmt(st.Init)
		}
		if st.Cond != nil {
			st.Cond = foldExpr(st.Cond)
		}
		if st.Post != nil {
			foldStmt(st.Post)
		}
		foldBlock(st.Body)
	case *ast.ReturnStmt:
		if st.Value != nil {
			st.Value = foldExpr(st.Value)
		}
	case *ast.ExprStmt:
		st.X = foldExpr(st.X)
	}
}

func foldExpr(e ast.Expr) ast.Expr {
	switch ex := e.(type) {
	case *ast.GroupingExpr:
		ex.X = foldExpr(ex.X)
		if lit, ok := ex.X.(*ast.LiteralExpr); ok {
			return lit
		}
		return ex
	case *ast.UnaryExpr:
		ex.Operand = foldExpr(ex.Operand)
		if lit, ok := ex.Operand.(*ast.LiteralExpr); ok {
			if folded, ok := foldUnary(ex.Op, lit, ex.Pos); ok {
				return folded
			}
		}
		return ex
	case *ast.BinaryExpr:
		ex.Left = foldExpr(ex.Left)
		ex.Right = foldExpr(ex.Right)
		ll, lok := ex.Left.(*ast.LiteralExpr)
		rl, rok := ex.Right.(*ast.LiteralExpr)
		if lok && rok {
			if folded, ok := foldBinary(ex.Op, ll, rl, ex.Pos); ok {
				return folded
			}
		}
		return ex
	case *ast.AssignExpr:
		ex.Value = foldExpr(ex.Value)
		return ex
	case *ast.ArrayAccessExpr:
		ex.Array = foldExpr(ex.Array)
		ex.Index = foldExpr(ex.Index)
		return ex
	case *ast.ArrayInitExpr:
		ex.Size = foldExpr(ex.Size)
		return ex
	case *ast.CallExpr:
		for i, arg := range ex.Args {
			ex.Args[i] = foldExpr(arg)
		}
		return ex
	default:
		return e
	}
}

func foldUnary(op token.Type, v *ast.LiteralExpr, pos token.Position) (*ast.LiteralExpr, bool) {
	switch op {
	case token.MINUS:
		switch v.Kind {
		case ast.Int:
			return &ast.LiteralExpr{Kind: ast.Int, Int: -v.Int, Pos: pos}, true
		case ast.Float:
			return &ast.LiteralExpr{Kind: ast.Float, Float: -v.Float, Pos: pos}, true
		}
	case token.NOT:
		if v.Kind == ast.Bool {
			return &ast.LiteralExpr{Kind: ast.Bool, Bool: !v.Bool, Pos: pos}, true
		}
	}
	return nil, false
}

func foldBinary(op token.Type, l, r *ast.LiteralExpr, pos token.Position) (*ast.LiteralExpr, bool) {
	if l.Kind != r.Kind {
		return nil, false
	}
	switch l.Kind {
	case ast.Int:
		a, b := l.Int, r.Int
		switch op {
		case token.PLUS:
			return &ast.LiteralExpr{Kind: ast.Int, Int: a + b, Pos: pos}, true
		case token.MINUS:
			return &ast.LiteralExpr{Kind: ast.Int, Int: a - b, Pos: pos}, true
		case token.STAR:
			return &ast.LiteralExpr{Kind: ast.Int, Int: a * b, Pos: pos}, true
		case token.SLASH:
			if b == 0 {
				return nil, false // defer to runtime DIVISION_BY_ZERO
			}
			return &ast.LiteralExpr{Kind: ast.Int, Int: a / b, Pos: pos}, true
		case token.PERCENT:
			if b == 0 {
				return nil, false
			}
			return &ast.LiteralExpr{Kind: ast.Int, Int: a % b, Pos: pos}, true
		case token.EQ:
			return &ast.LiteralExpr{Kind: ast.Bool, Bool: a == b, Pos: pos}, true
		case token.NEQ:
			return &ast.LiteralExpr{Kind: ast.Bool, Bool: a != b, Pos: pos}, true
		case token.LT:
			return &ast.LiteralExpr{Kind: ast.Bool, Bool: a < b, Pos: pos}, true
		case token.LE:
			return &ast.LiteralExpr{Kind: ast.Bool, Bool: a <= b, Pos: pos}, true
		case token.GT:
			return &ast.LiteralExpr{Kind: ast.Bool, Bool: a > b, Pos: pos}, true
		case token.GE:
			return &ast.LiteralExpr{Kind: ast.Bool, Bool: a >= b, Pos: pos}, true
		}
	case ast.Float:
		a, b := l.Float, r.Float
		switch op {
		case token.PLUS:
			return &ast.LiteralExpr{Kind: ast.Float, Float: a + b, Pos: pos}, true
		case token.MINUS:
			return &ast.LiteralExpr{Kind: ast.Float, Float: a - b, Pos: pos}, true
		case token.STAR:
			return &ast.LiteralExpr{Kind: ast.Float, Float: a * b, Pos: pos}, true
		case token.SLASH:
			return &ast.LiteralExpr{Kind: ast.Float, Float: a / b, Pos: pos}, true
		case token.EQ:
			return &ast.LiteralExpr{Kind: ast.Bool, Bool: a == b, Pos: pos}, true
		case token.NEQ:
			return &ast.LiteralExpr{Kind: ast.Bool, Bool: a != b, Pos: pos}, true
		case token.LT:
			return &ast.LiteralExpr{Kind: ast.Bool, Bool: a < b, Pos: pos}, true
		case token.LE:
			return &ast.LiteralExpr{Kind: ast.Bool, Bool: a <= b, Pos: pos}, true
		case token.GT:
			return &ast.LiteralExpr{Kind: ast.Bool, Bool: a > b, Pos: pos}, true
		case token.GE:
			return &ast.LiteralExpr{Kind: ast.Bool, Bool: a >= b, Pos: pos}, true
		}
	case ast.Bool:
		a, b := l.Bool, r.Bool
		switch op {
		case token.AND:
			return &ast.LiteralExpr{Kind: ast.Bool, Bool: a && b, Pos: pos}, true
		case token.OR:
			return &ast.LiteralExpr{Kind: ast.Bool, Bool: a || b, Pos: pos}, true
		case token.EQ:
			return &ast.LiteralExpr{Kind: ast.Bool, Bool: a == b, Pos: pos}, true
		case token.NEQ:
			return &ast.LiteralExpr{Kind: ast.Bool, Bool: a != b, Pos: pos}, true
		}
	}
	return nil, false
}
