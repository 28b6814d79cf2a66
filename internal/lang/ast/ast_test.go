package ast

import (
	"testing"

	"github.com/cwbudde/langvm/internal/lang/token"
)

func TestTypeNode_StringRendersNestedArrays(t *testing.T) {
	arr := &TypeNode{Tag: ArrayOf, Elem: &TypeNode{Tag: ArrayOf, Elem: &TypeNode{Tag: Int}}}
	if got := arr.String(); got != "int[][]" {
		t.Fatalf("String() = %q, want %q", got, "int[][]")
	}
}

func TestTypeNode_NilStringsAsQuestionMark(t *testing.T) {
	var t2 *TypeNode
	if got := t2.String(); got != "?" {
		t.Fatalf("String() on nil *TypeNode = %q, want %q", got, "?")
	}
}

func TestBinaryExpr_StringParenthesizesOperands(t *testing.T) {
	e := &BinaryExpr{
		Op:    token.PLUS,
		Left:  &LiteralExpr{Kind: Int, Int: 1},
		Right: &LiteralExpr{Kind: Int, Int: 2},
	}
	if got := e.String(); got != "(1 + 2)" {
		t.Fatalf("String() = %q, want %q", got, "(1 + 2)")
	}
}

func TestCallExpr_StringJoinsArgsWithCommaSpace(t *testing.T) {
	e := &CallExpr{Callee: "add", Args: []Expr{
		&LiteralExpr{Kind: Int, Int: 1},
		&LiteralExpr{Kind: Int, Int: 2},
	}}
	if got := e.String(); got != "add(1, 2)" {
		t.Fatalf("String() = %q, want %q", got, "add(1, 2)")
	}
}

func TestArrayAccessExpr_String(t *testing.T) {
	e := &ArrayAccessExpr{
		Array: &VariableExpr{Name: "values"},
		Index: &LiteralExpr{Kind: Int, Int: 0},
	}
	if got := e.String(); got != "values[0]" {
		t.Fatalf("String() = %q, want %q", got, "values[0]")
	}
}

func TestFunctionDecl_StringRendersSignatureAndBody(t *testing.T) {
	fn := &FunctionDecl{
		Name: "add",
		Params: []Param{
			{Name: "a", Type: &TypeNode{Tag: Int}},
			{Name: "b", Type: &TypeNode{Tag: Int}},
		},
		ReturnType: &TypeNode{Tag: Int},
		Body: &BlockStmt{Stmts: []Stmt{
			&ReturnStmt{Value: &BinaryExpr{Op: token.PLUS, Left: &VariableExpr{Name: "a"}, Right: &VariableExpr{Name: "b"}}},
		}},
	}
	want := "func add(a:int, b:int):int {\n  return (a + b);\n}"
	if got := fn.String(); got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestLiteralExpr_StringByKind(t *testing.T) {
	cases := []struct {
		lit  *LiteralExpr
		want string
	}{
		{&LiteralExpr{Kind: Int, Int: 42}, "42"},
		{&LiteralExpr{Kind: Float, Float: 3.5}, "3.5"},
		{&LiteralExpr{Kind: Bool, Bool: true}, "true"},
		{&LiteralExpr{Kind: Bool, Bool: false}, "false"},
	}
	for _, c := range cases {
		if got := c.lit.String(); got != c.want {
			t.Fatalf("String() = %q, want %q", got, c.want)
		}
	}
}

func TestProgram_StringConcatenatesFunctions(t *testing.T) {
	p := &Program{Functions: []*FunctionDecl{
		{Name: "main", ReturnType: &TypeNode{Tag: Void}, Body: &BlockStmt{}},
	}}
	got := p.String()
	want := "func main():void {\n}\n"
	if got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
