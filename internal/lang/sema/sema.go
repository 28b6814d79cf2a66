// Package sema implements the langvm semantic analyzer: a single fail-fast
// pass that performs strict static type checking over a parsed *ast.Program
// and produces a SymbolTable the bytecode generator can consult.
package sema

import (
	"fmt"

	"github.com/cwbudde/langvm/internal/lang/ast"
	"github.com/cwbudde/langvm/internal/lang/token"
)

// Error is a semantic error. Analysis stops at the first one.
type Error struct {
	Pos token.Position
	Msg string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Pos, e.Msg) }

// FunctionSig is the global symbol-table entry for one function.
type FunctionSig struct {
	Params     []*ast.TypeNode
	ReturnType *ast.TypeNode
}

// SymbolTable is the analyzer's output: every declared function's signature.
type SymbolTable struct {
	Functions map[string]*FunctionSig
}

type scope struct {
	vars   map[string]*ast.TypeNode
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]*ast.TypeNode), parent: parent}
}

func (s *scope) declare(name string, t *ast.TypeNode) bool {
	if _, exists := s.vars[name]; exists {
		return false
	}
	s.vars[name] = t
	return true
}

func (s *scope) lookup(name string) (*ast.TypeNode, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if t, ok := cur.vars[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// Analyzer is a single-use semantic analyzer.
type Analyzer struct {
	syms    *SymbolTable
	fn      *ast.FunctionDecl
	scope   *scope
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze type-checks program and returns its global SymbolTable, or the
// first semantic error encountered.
func (a *Analyzer) Analyze(program *ast.Program) (*SymbolTable, error) {
	a.syms = &SymbolTable{Functions: make(map[string]*FunctionSig)}

	for _, fn := range program.Functions {
		if _, exists := a.syms.Functions[fn.Name]; exists {
			return nil, &Error{Pos: fn.Pos, Msg: fmt.Sprintf("function %q already declared (no overloading)", fn.Name)}
		}
		sig := &FunctionSig{ReturnType: fn.ReturnType}
		for _, p := range fn.Params {
			sig.Params = append(sig.Params, p.Type)
		}
		a.syms.Functions[fn.Name] = sig
	}

	if _, ok := a.syms.Functions["main"]; !ok {
		return nil, &Error{Pos: token.Position{Line: 1, Column: 1}, Msg: "no entry point: missing function 'main'"}
	}

	for _, fn := range program.Functions {
		if err := a.checkFunction(fn); err != nil {
			return nil, err
		}
	}
	return a.syms, nil
}

func (a *Analyzer) checkFunction(fn *ast.FunctionDecl) error {
	a.fn = fn
	a.scope = newScope(nil)
	for _, p := range fn.Params {
		if !a.scope.declare(p.Name, p.Type) {
			return &Error{Pos: p.Pos, Msg: fmt.Sprintf("duplicate parameter %q", p.Name)}
		}
	}
	return a.checkBlock(fn.Body)
}

func (a *Analyzer) checkBlock(b *ast.BlockStmt) error {
	a.scope = newScope(a.scope)
	defer func() { a.scope = a.scope.parent }()
	for _, s := range b.Stmts {
		if err := a.checkStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) checkStmt(s ast.Stmt) error {
	switch st := s.(type) {
	case *ast.VarDecl:
		t, err := a.checkExpr(st.Init, st.Type)
		if err != nil {
			return err
		}
		if !typesCompatible(st.Type, t) {
			return &Error{Pos: st.Pos, Msg: fmt.Sprintf("cannot initialize %q of type %s with value of type %s", st.Name, st.Type, t)}
		}
		if !a.scope.declare(st.Name, st.Type) {
			return &Error{Pos: st.Pos, Msg: fmt.Sprintf("variable %q already declared in this scope", st.Name)}
		}
		return nil
	case *ast.IfStmt:
		ct, err := a.checkExpr(st.Cond, &ast.TypeNode{Tag: ast.Bool})
		if err != nil {
			return err
		}
		if ct.Tag != ast.Bool {
			return &Error{Pos: st.Cond.Position(), Msg: "if condition must be bool"}
		}
		if err := a.checkBlock(st.Then); err != nil {
			return err
		}
		if st.Else != nil {
			return a.checkStmt(st.Else)
		}
		return nil
	case *ast.BlockStmt:
		return a.checkBlock(st)
	case *ast.ForStmt:
		a.scope = newScope(a.scope)
		defer func() { a.scope = a.scope.parent }()
		if st.Init != nil {
			if err := a.checkStmt(st.Init); err != nil {
				return err
			}
		}
		if st.Cond != nil {
			ct, err := a.checkExpr(st.Cond, &ast.TypeNode{Tag: ast.Bool})
			if err != nil {
				return err
			}
			if ct.Tag != ast.Bool {
				return &Error{Pos: st.Cond.Position(), Msg: "for condition must be bool"}
			}
		}
		if st.Post != nil {
			if err := a.checkStmt(st.Post); err != nil {
				return err
			}
		}
		return a.checkBlock(st.Body)
	case *ast.ReturnStmt:
		if st.Value == nil {
			if a.fn.ReturnType.Tag != ast.Void {
				return &Error{Pos: st.Pos, Msg: fmt.Sprintf("function %q must return a value of type %s", a.fn.Name, a.fn.ReturnType)}
			}
			return nil
		}
		rt, err := a.checkExpr(st.Value, a.fn.ReturnType)
		if err != nil {
			return err
		}
		if !typesCompatible(a.fn.ReturnType, rt) {
			return &Error{Pos: st.Pos, Msg: fmt.Sprintf("function %q returns %s, got %s", a.fn.Name, a.fn.ReturnType, rt)}
		}
		return nil
	case *ast.ExprStmt:
		_, err := a.checkExpr(st.X, nil)
		return err
	default:
		return &Error{Pos: s.Position(), Msg: "unknown statement"}
	}
}

// checkExpr type-checks e and returns its type. expected, if non-nil, is the
// declared type context (used only to resolve ArrayInitExpr's element type).
func (a *Analyzer) checkExpr(e ast.Expr, expected *ast.TypeNode) (*ast.TypeNode, error) {
	switch ex := e.(type) {
	case *ast.LiteralExpr:
		return &ast.TypeNode{Tag: ex.Kind}, nil
	case *ast.VariableExpr:
		t, ok := a.scope.lookup(ex.Name)
		if !ok {
			return nil, &Error{Pos: ex.Pos, Msg: fmt.Sprintf("undefined variable %q", ex.Name)}
		}
		return t, nil
	case *ast.GroupingExpr:
		return a.checkExpr(ex.X, expected)
	case *ast.UnaryExpr:
		t, err := a.checkExpr(ex.Operand, nil)
		if err != nil {
			return nil, err
		}
		switch ex.Op {
		case token.MINUS:
			if t.Tag != ast.Int && t.Tag != ast.Float {
				return nil, &Error{Pos: ex.Pos, Msg: "unary '-' requires int or float operand"}
			}
		case token.NOT:
			if t.Tag != ast.Bool {
				return nil, &Error{Pos: ex.Pos, Msg: "unary 'not' requires bool operand"}
			}
		}
		return t, nil
	case *ast.BinaryExpr:
		return a.checkBinary(ex)
	case *ast.AssignExpr:
		tt, err := a.checkExpr(ex.Target, nil)
		if err != nil {
			return nil, err
		}
		vt, err := a.checkExpr(ex.Value, tt)
		if err != nil {
			return nil, err
		}
		if !typesCompatible(tt, vt) {
			return nil, &Error{Pos: ex.Pos, Msg: fmt.Sprintf("cannot assign %s to %s", vt, tt)}
		}
		return tt, nil
	case *ast.ArrayAccessExpr:
		at, err := a.checkExpr(ex.Array, nil)
		if err != nil {
			return nil, err
		}
		if at.Tag != ast.ArrayOf {
			return nil, &Error{Pos: ex.Pos, Msg: "cannot index non-array value"}
		}
		it, err := a.checkExpr(ex.Index, nil)
		if err != nil {
			return nil, err
		}
		if it.Tag != ast.Int {
			return nil, &Error{Pos: ex.Index.Position(), Msg: "array index must be int"}
		}
		return at.Elem, nil
	case *ast.ArrayInitExpr:
		st, err := a.checkExpr(ex.Size, nil)
		if err != nil {
			return nil, err
		}
		if st.Tag != ast.Int {
			return nil, &Error{Pos: ex.Size.Position(), Msg: "array size must be int"}
		}
		if expected != nil && expected.Tag == ast.ArrayOf {
			return expected, nil
		}
		return &ast.TypeNode{Tag: ast.Unknown}, nil
	case *ast.CallExpr:
		return a.checkCall(ex)
	default:
		return nil, &Error{Pos: e.Position(), Msg: "unknown expression"}
	}
}

func (a *Analyzer) checkBinary(ex *ast.BinaryExpr) (*ast.TypeNode, error) {
	lt, err := a.checkExpr(ex.Left, nil)
	if err != nil {
		return nil, err
	}
	rt, err := a.checkExpr(ex.Right, nil)
	if err != nil {
		return nil, err
	}

	switch ex.Op {
	case token.AND, token.OR:
		if lt.Tag != ast.Bool || rt.Tag != ast.Bool {
			return nil, &Error{Pos: ex.Pos, Msg: "logical operators require bool operands"}
		}
		return &ast.TypeNode{Tag: ast.Bool}, nil
	case token.PERCENT:
		if lt.Tag != ast.Int || rt.Tag != ast.Int {
			return nil, &Error{Pos: ex.Pos, Msg: "'%' requires int operands"}
		}
		return &ast.TypeNode{Tag: ast.Int}, nil
	case token.EQ, token.NEQ, token.LT, token.LE, token.GT, token.GE:
		if lt.Tag != rt.Tag || (lt.Tag != ast.Int && lt.Tag != ast.Float) {
			return nil, &Error{Pos: ex.Pos, Msg: fmt.Sprintf("comparison requires matching int or float operands, got %s and %s", lt, rt)}
		}
		return &ast.TypeNode{Tag: ast.Bool}, nil
	case token.PLUS, token.MINUS, token.STAR, token.SLASH:
		if lt.Tag != rt.Tag || (lt.Tag != ast.Int && lt.Tag != ast.Float) {
			return nil, &Error{Pos: ex.Pos, Msg: fmt.Sprintf("arithmetic requires matching int or float operands, got %s and %s", lt, rt)}
		}
		return lt, nil
	default:
		return nil, &Error{Pos: ex.Pos, Msg: "unknown operator"}
	}
}

func (a *Analyzer) checkCall(ex *ast.CallExpr) (*ast.TypeNode, error) {
	switch ex.Callee {
	case "print":
		if len(ex.Args) != 1 {
			return nil, &Error{Pos: ex.Pos, Msg: "print expects exactly one argument"}
		}
		t, err := a.checkExpr(ex.Args[0], nil)
		if err != nil {
			return nil, err
		}
		if t.Tag == ast.ArrayOf {
			return nil, &Error{Pos: ex.Pos, Msg: "print does not accept arrays; use printArray"}
		}
		return &ast.TypeNode{Tag: ast.Void}, nil
	case "printArray":
		if len(ex.Args) != 1 {
			return nil, &Error{Pos: ex.Pos, Msg: "printArray expects exactly one argument"}
		}
		t, err := a.checkExpr(ex.Args[0], nil)
		if err != nil {
			return nil, err
		}
		if t.Tag != ast.ArrayOf {
			return nil, &Error{Pos: ex.Pos, Msg: "printArray requires an array argument"}
		}
		return &ast.TypeNode{Tag: ast.Void}, nil
	}

	sig, ok := a.syms.Functions[ex.Callee]
	if !ok {
		return nil, &Error{Pos: ex.Pos, Msg: fmt.Sprintf("undefined function %q", ex.Callee)}
	}
	if len(ex.Args) != len(sig.Params) {
		return nil, &Error{Pos: ex.Pos, Msg: fmt.Sprintf("function %q expects %d argument(s), got %d", ex.Callee, len(sig.Params), len(ex.Args))}
	}
	for i, arg := range ex.Args {
		at, err := a.checkExpr(arg, sig.Params[i])
		if err != nil {
			return nil, err
		}
		if !typesCompatible(sig.Params[i], at) {
			return nil, &Error{Pos: arg.Position(), Msg: fmt.Sprintf("argument %d to %q: expected %s, got %s", i+1, ex.Callee, sig.Params[i], at)}
		}
	}
	return sig.ReturnType, nil
}

func typesCompatible(want, got *ast.TypeNode) bool {
	if want == nil || got == nil {
		return false
	}
	if got.Tag == ast.Unknown {
		// ArrayInitExpr with no usable context; accept only against an
		// array-typed destination (already resolved by the caller).
		return want.Tag == ast.ArrayOf
	}
	if want.Tag != got.Tag {
		return false
	}
	if want.Tag == ast.ArrayOf {
		return typesCompatible(want.Elem, got.Elem)
	}
	return true
}
