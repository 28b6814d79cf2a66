package optimize

import "github.com/cwbudde/langvm/internal/lang/ast"

// EliminateDeadCode drops statements that can never execute: everything
// after an unconditional ReturnStmt in a block, and the untaken branch of an
// IfStmt whose condition folded to a constant bool. It is idempotent under
// stable ordering because a block with no unreachable tail and no
// constant-bool IfStmt left is already a fixed point.
func EliminateDeadCode(program *ast.Program) *ast.Program {
	for _, fn := range program.Functions {
		fn.Body = dceBlock(fn.Body)
	}
	return program
}

func dceBlock(b *ast.BlockStmt) *ast.BlockStmt {
	var kept []ast.Stmt
	for _, s := range b.Stmts {
		kept = append(kept, dceStmt(s))
		if isTerminal(s) {
			break
		}
	}
	b.Stmts = kept
	return b
}

func dceStmt(s ast.Stmt) ast.Stmt {
	switch st := s.(type) {
	case *ast.IfStmt:
		st.Then = dceBlock(st.Then)
		if st.Else != nil {
			st.Else = dceStmt(st.Else)
		}
		if lit, ok := st.Cond.(*ast.LiteralExpr); ok && lit.Kind == ast.Bool {
			if lit.Bool {
				return st.Then
			}
			if st.Else != nil {
				return st.Else
			}
			return &ast.BlockStmt{Pos: st.Pos}
		}
		return st
	case *ast.BlockStmt:
		return dceBlock(st)
	case *ast.ForStmt:
		st.Body = dceBlock(st.Body)
		if lit, ok := st.Cond.(*ast.LiteralExpr); ok && lit.Kind == ast.Bool && !lit.Bool {
			return &ast.BlockStmt{Pos: st.Pos}
		}
		return st
	default:
		return s
	}
}

// isTerminal reports whether s unconditionally transfers control out of the
// enclosing block, making every following sibling statement unreachable.
// Only a bare ReturnStmt is treated as terminal: proving that every path
// through an if/else returns would need full reachability analysis, which is
// out of scope for this pass (it only removes statements textually
// unreachable after a return, and untaken constant-condition branches).
func isTerminal(s ast.Stmt) bool {
	_, ok := s.(*ast.ReturnStmt)
	return ok
}
