// Package parser implements a recursive-descent / Pratt parser that turns a
// langvm token stream into an *ast.Program.
package parser

import (
	"fmt"

	"github.com/cwbudde/langvm/internal/lang/ast"
	"github.com/cwbudde/langvm/internal/lang/lexer"
	"github.com/cwbudde/langvm/internal/lang/token"
)

// Error is one parse error. The parser collects every error it can recover
// from rather than failing on the first one; only the semantic stage fails
// fast.
type Error struct {
	Pos token.Position
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// precedence levels, lowest to highest.
const (
	lowest int = iota
	orPrec
	andPrec
	equality
	comparison
	additive
	multiplicative
	unary
	call
)

var precedences = map[token.Type]int{
	token.OR:      orPrec,
	token.AND:     andPrec,
	token.EQ:      equality,
	token.NEQ:     equality,
	token.LT:      comparison,
	token.LE:      comparison,
	token.GT:      comparison,
	token.GE:      comparison,
	token.PLUS:    additive,
	token.MINUS:   additive,
	token.STAR:    multiplicative,
	token.SLASH:   multiplicative,
	token.PERCENT: multiplicative,
	token.LBRACKET: call,
}

// Parser holds the token stream and accumulated errors.
type Parser struct {
	toks   []token.Token
	pos    int
	errors []error
}

// New tokenizes src and returns a Parser positioned at the first token.
func New(src string) (*Parser, error) {
	toks, err := lexer.Tokenize(src)
	if err != nil {
		return nil, err
	}
	return &Parser{toks: toks}, nil
}

// Errors returns every parse error collected so far.
func (p *Parser) Errors() []error { return p.errors }

func (p *Parser) cur() token.Token  { return p.toks[p.pos] }
func (p *Parser) peekAt(n int) token.Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}
func (p *Parser) peek() token.Token { return p.peekAt(1) }

func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) check(tt token.Type) bool { return p.cur().Type == tt }

func (p *Parser) expect(tt token.Type) (token.Token, bool) {
	if p.check(tt) {
		return p.advance(), true
	}
	p.errorf(p.cur().Pos, "expected %s, got %s %q", tt, p.cur().Type, p.cur().Literal)
	return p.cur(), false
}

func (p *Parser) errorf(pos token.Position, format string, args ...interface{}) {
	p.errors = append(p.errors, &Error{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

// ParseProgram parses the entire token stream into a Program.
func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{}
	for !p.check(token.EOF) {
		if !p.check(token.FUNC) {
			p.errorf(p.cur().Pos, "expected function declaration, got %s", p.cur().Type)
			p.advance()
			continue
		}
		fn := p.parseFunctionDecl()
		if fn != nil {
			prog.Functions = append(prog.Functions, fn)
		}
	}
	return prog
}

func (p *Parser) parseFunctionDecl() *ast.FunctionDecl {
	pos := p.cur().Pos
	p.advance() // 'func'
	nameTok, ok := p.expect(token.IDENT)
	if !ok {
		return nil
	}
	fn := &ast.FunctionDecl{Name: nameTok.Literal, Pos: pos}

	if _, ok := p.expect(token.LPAREN); !ok {
		return fn
	}
	for !p.check(token.RPAREN) && !p.check(token.EOF) {
		pn, ok := p.expect(token.IDENT)
		if !ok {
			break
		}
		if _, ok := p.expect(token.COLON); !ok {
			break
		}
		pt := p.parseTypeNode()
		fn.Params = append(fn.Params, ast.Param{Name: pn.Literal, Type: pt, Pos: pn.Pos})
		if p.check(token.COMMA) {
			p.advance()
		}
	}
	p.expect(token.RPAREN)

	if _, ok := p.expect(token.COLON); ok {
		fn.ReturnType = p.parseTypeNode()
	}

	fn.Body = p.parseBlock()
	return fn
}

func (p *Parser) parseTypeNode() *ast.TypeNode {
	var base ast.TypeTag
	switch p.cur().Type {
	case token.TYPE_INT:
		base = ast.Int
	case token.TYPE_FLOAT:
		base = ast.Float
	case token.TYPE_BOOL:
		base = ast.Bool
	case token.TYPE_VOID:
		base = ast.Void
	default:
		p.errorf(p.cur().Pos, "expected type name, got %s", p.cur().Type)
		return &ast.TypeNode{Tag: ast.Unknown}
	}
	p.advance()
	node := &ast.TypeNode{Tag: base}
	for p.check(token.LBRACKET) {
		p.advance()
		p.expect(token.RBRACKET)
		node = &ast.TypeNode{Tag: ast.ArrayOf, Elem: node}
	}
	return node
}

func (p *Parser) parseBlock() *ast.BlockStmt {
	pos := p.cur().Pos
	p.expect(token.LBRACE)
	block := &ast.BlockStmt{Pos: pos}
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		s := p.parseStmt()
		if s != nil {
			block.Stmts = append(block.Stmts, s)
		}
	}
	p.expect(token.RBRACE)
	return block
}

func (p *Parser) parseStmt() ast.Stmt {
	switch p.cur().Type {
	case token.LET:
		return p.parseVarDecl()
	case token.IF:
		return p.parseIf()
	case token.FOR:
		return p.parseFor()
	case token.RETURN:
		return p.parseReturn()
	case token.LBRACE:
		return p.parseBlock()
	default:
		return p.parseExprStmt()
	}
}

func (p *Parser) parseVarDecl() *ast.VarDecl {
	pos := p.cur().Pos
	p.advance() // 'let'
	name, _ := p.expect(token.IDENT)
	p.expect(token.COLON)
	typ := p.parseTypeNode()
	p.expect(token.ASSIGN)
	init := p.parseExpression(lowest)
	p.expect(token.SEMI)
	return &ast.VarDecl{Name: name.Literal, Type: typ, Init: init, Pos: pos}
}

func (p *Parser) parseIf() *ast.IfStmt {
	pos := p.cur().Pos
	p.advance() // 'if'
	p.expect(token.LPAREN)
	cond := p.parseExpression(lowest)
	p.expect(token.RPAREN)
	then := p.parseBlock()
	stmt := &ast.IfStmt{Cond: cond, Then: then, Pos: pos}
	if p.check(token.ELSE) {
		p.advance()
		if p.check(token.IF) {
			stmt.Else = p.parseIf()
		} else {
			stmt.Else = p.parseBlock()
		}
	}
	return stmt
}

func (p *Parser) parseFor() *ast.ForStmt {
	pos := p.cur().Pos
	p.advance() // 'for'
	p.expect(token.LPAREN)

	stmt := &ast.ForStmt{Pos: pos}
	if !p.check(token.SEMI) {
		if p.check(token.LET) {
			stmt.Init = p.parseVarDeclNoSemi()
		} else {
			stmt.Init = p.parseExprStmtNoSemi()
		}
	}
	p.expect(token.SEMI)

	if !p.check(token.SEMI) {
		stmt.Cond = p.parseExpression(lowest)
	}
	p.expect(token.SEMI)

	if !p.check(token.RPAREN) {
		stmt.Post = p.parseExprStmtNoSemi()
	}
	p.expect(token.RPAREN)

	stmt.Body = p.parseBlock()
	return stmt
}

func (p *Parser) parseVarDeclNoSemi() *ast.VarDecl {
	pos := p.cur().Pos
	p.advance() // 'let'
	name, _ := p.expect(token.IDENT)
	p.expect(token.COLON)
	typ := p.parseTypeNode()
	p.expect(token.ASSIGN)
	init := p.parseExpression(lowest)
	return &ast.VarDecl{Name: name.Literal, Type: typ, Init: init, Pos: pos}
}

func (p *Parser) parseExprStmtNoSemi() *ast.ExprStmt {
	pos := p.cur().Pos
	x := p.parseExpression(lowest)
	return &ast.ExprStmt{X: x, Pos: pos}
}

func (p *Parser) parseReturn() *ast.ReturnStmt {
	pos := p.cur().Pos
	p.advance() // 'return'
	stmt := &ast.ReturnStmt{Pos: pos}
	if !p.check(token.SEMI) {
		stmt.Value = p.parseExpression(lowest)
	}
	p.expect(token.SEMI)
	return stmt
}

func (p *Parser) parseExprStmt() *ast.ExprStmt {
	s := p.parseExprStmtNoSemi()
	p.expect(token.SEMI)
	return s
}

// parseExpression is a Pratt parser: it parses a prefix expression, then
// repeatedly folds in infix/assignment operators while their precedence
// exceeds minPrec.
func (p *Parser) parseExpression(minPrec int) ast.Expr {
	left := p.parsePrefix()

	for {
		if p.check(token.ASSIGN) && minPrec <= lowest {
			pos := p.cur().Pos
			p.advance()
			value := p.parseExpression(lowest)
			left = &ast.AssignExpr{Target: left, Value: value, Pos: pos}
			continue
		}
		if p.check(token.LBRACKET) {
			pos := p.cur().Pos
			p.advance()
			idx := p.parseExpression(lowest)
			p.expect(token.RBRACKET)
			left = &ast.ArrayAccessExpr{Array: left, Index: idx, Pos: pos}
			continue
		}
		prec, ok := precedences[p.cur().Type]
		if !ok || prec <= minPrec {
			break
		}
		op := p.cur()
		p.advance()
		right := p.parseExpression(prec)
		left = &ast.BinaryExpr{Op: op.Type, Left: left, Right: right, Pos: op.Pos}
	}
	return left
}

func (p *Parser) parsePrefix() ast.Expr {
	tok := p.cur()
	switch tok.Type {
	case token.MINUS, token.NOT:
		p.advance()
		operand := p.parseExpression(unary)
		return &ast.UnaryExpr{Op: tok.Type, Operand: operand, Pos: tok.Pos}
	case token.INT:
		p.advance()
		return &ast.LiteralExpr{Kind: ast.Int, Int: parseInt(tok.Literal), Pos: tok.Pos}
	case token.FLOAT:
		p.advance()
		return &ast.LiteralExpr{Kind: ast.Float, Float: parseFloat(tok.Literal), Pos: tok.Pos}
	case token.TRUE:
		p.advance()
		return &ast.LiteralExpr{Kind: ast.Bool, Bool: true, Pos: tok.Pos}
	case token.FALSE:
		p.advance()
		return &ast.LiteralExpr{Kind: ast.Bool, Bool: false, Pos: tok.Pos}
	case token.LPAREN:
		p.advance()
		x := p.parseExpression(lowest)
		p.expect(token.RPAREN)
		return &ast.GroupingExpr{X: x, Pos: tok.Pos}
	case token.TYPE_INT, token.TYPE_FLOAT, token.TYPE_BOOL:
		// `int[N]` / `float[N]` / `bool[N]` array allocation.
		if p.peek().Type == token.LBRACKET {
			p.advance() // type name (discarded; codegen infers from the
			// declared TypeNode — this token only disambiguates the
			// grammar from a bare array index).
			p.advance() // '['
			size := p.parseExpression(lowest)
			p.expect(token.RBRACKET)
			return &ast.ArrayInitExpr{Size: size, Pos: tok.Pos}
		}
		p.errorf(tok.Pos, "unexpected type keyword %s in expression", tok.Type)
		p.advance()
		return &ast.LiteralExpr{Kind: ast.Int, Pos: tok.Pos}
	case token.IDENT:
		p.advance()
		if p.check(token.LPAREN) {
			return p.parseCall(tok)
		}
		return &ast.VariableExpr{Name: tok.Literal, Pos: tok.Pos}
	case token.PRINT, token.PRINT_ARRAY:
		p.advance()
		return p.parseCall(tok)
	default:
		p.errorf(tok.Pos, "unexpected token %s %q", tok.Type, tok.Literal)
		p.advance()
		return &ast.LiteralExpr{Kind: ast.Int, Pos: tok.Pos}
	}
}

func (p *Parser) parseCall(name token.Token) *ast.CallExpr {
	p.expect(token.LPAREN)
	call := &ast.CallExpr{Callee: name.Literal, Pos: name.Pos}
	for !p.check(token.RPAREN) && !p.check(token.EOF) {
		call.Args = append(call.Args, p.parseExpression(lowest))
		if p.check(token.COMMA) {
			p.advance()
		}
	}
	p.expect(token.RPAREN)
	return call
}

func parseInt(s string) int64 {
	var n int64
	for _, c := range s {
		n = n*10 + int64(c-'0')
	}
	return n
}

func parseFloat(s string) float64 {
	var intPart int64
	i := 0
	for i < len(s) && s[i] != '.' {
		intPart = intPart*10 + int64(s[i]-'0')
		i++
	}
	f := float64(intPart)
	if i < len(s) && s[i] == '.' {
		i++
		frac := 0.0
		div := 1.0
		for ; i < len(s); i++ {
			frac = frac*10 + float64(s[i]-'0')
			div *= 10
		}
		f += frac / div
	}
	return f
}
