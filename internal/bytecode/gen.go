package bytecode

import (
	"fmt"

	"github.com/cwbudde/langvm/internal/lang/ast"
	"github.com/cwbudde/langvm/internal/lang/sema"
	"github.com/cwbudde/langvm/internal/lang/token"
)

// Generate is the bytecode generator: a pure AST → BytecodeModule map. It
// is grounded on go-dws's Chunk/AddConstant dedup pattern
// (internal/bytecode/bytecode.go), generalized to a fixed 4-byte
// instruction format.
func Generate(program *ast.Program, syms *sema.SymbolTable) (*BytecodeModule, error) {
	g := &generator{
		module:  &BytecodeModule{EntryPoint: "main"},
		syms:    syms,
		intIdx:  make(map[int64]int),
		fltIdx:  make(map[float64]int),
		fnIndex: make(map[string]int),
	}
	// Two-pass: assign every function's table index up front so a call to a
	// function declared later in the source (or a recursive/mutually
	// recursive call) resolves to the right index on first emission.
	g.module.Functions = make([]*CompiledFunction, len(program.Functions))
	for i, fn := range program.Functions {
		g.fnIndex[fn.Name] = i
	}
	for i, fn := range program.Functions {
		cf, err := g.genFunction(fn)
		if err != nil {
			return nil, err
		}
		g.module.Functions[i] = cf
	}
	return g.module, nil
}

type generator struct {
	module  *BytecodeModule
	syms    *sema.SymbolTable
	intIdx  map[int64]int
	fltIdx  map[float64]int
	fnIndex map[string]int
}

func (g *generator) internInt(v int64) uint32 {
	if idx, ok := g.intIdx[v]; ok {
		return uint32(idx)
	}
	idx := len(g.module.IntConstants)
	g.module.IntConstants = append(g.module.IntConstants, v)
	g.intIdx[v] = idx
	return uint32(idx)
}

func (g *generator) internFloat(v float64) uint32 {
	if idx, ok := g.fltIdx[v]; ok {
		return uint32(idx)
	}
	idx := len(g.module.FloatConstants)
	g.module.FloatConstants = append(g.module.FloatConstants, v)
	g.fltIdx[v] = idx
	return uint32(idx)
}

// fnContext carries per-function codegen state: locals layout, the
// in-progress instruction stream, and unresolved jump fixups.
type fnContext struct {
	locals    map[string]uint16
	nextSlot  uint16
	code      []byte
	fixups    []fixup
	fn        *ast.FunctionDecl
	returnVK  ValueKind
}

type fixup struct {
	pc int // byte offset of the instruction needing its displacement patched
	op OpCode
}

func toValueKind(t *ast.TypeNode) ValueKind {
	switch t.Tag {
	case ast.Int:
		return KindInt
	case ast.Float:
		return KindFloat
	case ast.Bool:
		return KindBool
	case ast.ArrayOf:
		return KindArrayRef
	default:
		return KindVoid
	}
}

func (g *generator) genFunction(fn *ast.FunctionDecl) (*CompiledFunction, error) {
	ctx := &fnContext{locals: make(map[string]uint16), fn: fn, returnVK: toValueKind(fn.ReturnType)}
	params := make([]ParamInfo, 0, len(fn.Params))
	for _, p := range fn.Params {
		slot := ctx.nextSlot
		ctx.locals[p.Name] = slot
		ctx.nextSlot++
		params = append(params, ParamInfo{Name: p.Name, Type: toValueKind(p.Type)})
	}

	if err := g.genBlock(ctx, fn.Body); err != nil {
		return nil, err
	}

	// Generator invariant: a RETURN_VOID exit leaves the operand stack
	// empty. Fall-through at the end of a void function needs no explicit
	// instruction, but emitting one keeps disassembly self-describing.
	if ctx.returnVK == KindVoid {
		ctx.emit0(RETURN_VOID)
	}

	g.resolveFixups(ctx)

	return &CompiledFunction{
		Name:         fn.Name,
		Parameters:   params,
		ReturnType:   TypeTag{Kind: ctx.returnVK, Elem: elemKind(fn.ReturnType)},
		LocalsCount:  ctx.nextSlot,
		Instructions: ctx.code,
	}, nil
}

func elemKind(t *ast.TypeNode) ValueKind {
	if t != nil && t.Tag == ast.ArrayOf {
		return toValueKind(t.Elem)
	}
	return KindVoid
}

func (c *fnContext) emit0(op OpCode) int {
	pc := len(c.code)
	c.code = appendInstruction(c.code, EncodeUnsigned(op, 0))
	return pc
}

func (c *fnContext) emitU(op OpCode, operand uint32) int {
	pc := len(c.code)
	c.code = appendInstruction(c.code, EncodeUnsigned(op, operand))
	return pc
}

// emitJump emits a jump-family instruction with a placeholder displacement
// and records a fixup to patch it once the target label is known.
func (c *fnContext) emitJump(op OpCode) int {
	pc := len(c.code)
	c.code = appendInstruction(c.code, EncodeSigned(op, 0))
	c.fixups = append(c.fixups, fixup{pc: pc, op: op})
	return pc
}

// patchJump rewrites the displacement operand of the jump instruction at pc
// so that it branches to targetPC.
func (c *fnContext) patchJump(pc int, targetPC int) {
	disp := (int32(targetPC) - int32(pc) - InstructionSize) / InstructionSize
	enc := EncodeSigned(OpCode(c.code[pc]), disp)
	copy(c.code[pc:pc+InstructionSize], enc[:])
}

func (g *generator) resolveFixups(ctx *fnContext) {
	// All fixups in this generator are patched immediately at the call site
	// (genIf/genFor know their own target once the body is emitted); this
	// hook exists so a future multi-forward-reference construct (e.g.
	// labeled break/continue) has one place to finish unresolved patches.
	_ = ctx
}

func (g *generator) genBlock(ctx *fnContext, b *ast.BlockStmt) error {
	for _, s := range b.Stmts {
		if err := g.genStmt(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) genStmt(ctx *fnContext, s ast.Stmt) error {
	switch st := s.(type) {
	case *ast.VarDecl:
		slot := ctx.nextSlot
		ctx.locals[st.Name] = slot
		ctx.nextSlot++
		if err := g.genExpr(ctx, st.Init, st.Type); err != nil {
			return err
		}
		ctx.emitU(STORE_LOCAL, uint32(slot))
		return nil
	case *ast.ExprStmt:
		if err := g.genExpr(ctx, st.X, nil); err != nil {
			return err
		}
		if g.exprPushesValue(st.X) {
			ctx.emit0(POP)
		}
		return nil
	case *ast.IfStmt:
		return g.genIf(ctx, st)
	case *ast.BlockStmt:
		return g.genBlock(ctx, st)
	case *ast.ForStmt:
		return g.genFor(ctx, st)
	case *ast.ReturnStmt:
		if st.Value == nil {
			ctx.emit0(RETURN_VOID)
			return nil
		}
		if err := g.genExpr(ctx, st.Value, ctx.fn.ReturnType); err != nil {
			return err
		}
		ctx.emit0(RETURN)
		return nil
	default:
		return fmt.Errorf("codegen: unsupported statement %T", s)
	}
}

// exprPushesValue reports whether evaluating e for its side effect leaves a
// value on the stack that a following POP must discard. Calls to void
// functions/builtins (print, printArray, or a user function declared void)
// do not.
func (g *generator) exprPushesValue(e ast.Expr) bool {
	switch ex := e.(type) {
	case *ast.CallExpr:
		if ex.Callee == "print" || ex.Callee == "printArray" {
			return false
		}
		if sig, ok := g.syms.Functions[ex.Callee]; ok {
			return sig.ReturnType.Tag != ast.Void
		}
		return true
	case *ast.AssignExpr:
		_, isArrayElem := ex.Target.(*ast.ArrayAccessExpr)
		return !isArrayElem
	default:
		return true
	}
}

func (g *generator) genIf(ctx *fnContext, st *ast.IfStmt) error {
	if err := g.genExpr(ctx, st.Cond, nil); err != nil {
		return err
	}
	jfPC := ctx.emitJump(JUMP_IF_FALSE)
	if err := g.genBlock(ctx, st.Then); err != nil {
		return err
	}
	if st.Else == nil {
		ctx.patchJump(jfPC, len(ctx.code))
		return nil
	}
	jEndPC := ctx.emitJump(JUMP)
	ctx.patchJump(jfPC, len(ctx.code))
	if err := g.genStmt(ctx, st.Else); err != nil {
		return err
	}
	ctx.patchJump(jEndPC, len(ctx.code))
	return nil
}

func (g *generator) genFor(ctx *fnContext, st *ast.ForStmt) error {
	if st.Init != nil {
		if err := g.genStmt(ctx, st.Init); err != nil {
			return err
		}
	}
	loopStart := len(ctx.code)
	var jfPC int
	hasCond := st.Cond != nil
	if hasCond {
		if err := g.genExpr(ctx, st.Cond, nil); err != nil {
			return err
		}
		jfPC = ctx.emitJump(JUMP_IF_FALSE)
	}
	if err := g.genBlock(ctx, st.Body); err != nil {
		return err
	}
	if st.Post != nil {
		if err := g.genStmt(ctx, st.Post); err != nil {
			return err
		}
	}
	backPC := ctx.emitJump(JUMP)
	ctx.patchJump(backPC, loopStart)
	if hasCond {
		ctx.patchJump(jfPC, len(ctx.code))
	}
	return nil
}

func (g *generator) genExpr(ctx *fnContext, e ast.Expr, declared *ast.TypeNode) error {
	switch ex := e.(type) {
	case *ast.LiteralExpr:
		switch ex.Kind {
		case ast.Int:
			ctx.emitU(PUSH_INT, g.internInt(ex.Int))
		case ast.Float:
			ctx.emitU(PUSH_FLOAT, g.internFloat(ex.Float))
		case ast.Bool:
			b := uint32(0)
			if ex.Bool {
				b = 1
			}
			ctx.emitU(PUSH_BOOL, b)
		}
		return nil
	case *ast.GroupingExpr:
		return g.genExpr(ctx, ex.X, declared)
	case *ast.VariableExpr:
		slot, ok := ctx.locals[ex.Name]
		if !ok {
			return fmt.Errorf("codegen: undeclared local %q", ex.Name)
		}
		ctx.emitU(LOAD_LOCAL, uint32(slot))
		return nil
	case *ast.UnaryExpr:
		return g.genUnary(ctx, ex)
	case *ast.BinaryExpr:
		return g.genBinary(ctx, ex)
	case *ast.AssignExpr:
		return g.genAssign(ctx, ex)
	case *ast.ArrayAccessExpr:
		if err := g.genExpr(ctx, ex.Array, nil); err != nil {
			return err
		}
		if err := g.genExpr(ctx, ex.Index, nil); err != nil {
			return err
		}
		ctx.emit0(ARRAY_LOAD)
		return nil
	case *ast.ArrayInitExpr:
		elem := elemKind(declared)
		if err := g.genExpr(ctx, ex.Size, nil); err != nil {
			return err
		}
		switch elem {
		case KindFloat:
			ctx.emit0(NEW_ARRAY_FLOAT)
		case KindBool:
			ctx.emit0(NEW_ARRAY_BOOL)
		default:
			ctx.emit0(NEW_ARRAY_INT)
		}
		return nil
	case *ast.CallExpr:
		return g.genCall(ctx, ex)
	default:
		return fmt.Errorf("codegen: unsupported expression %T", e)
	}
}

func (g *generator) genUnary(ctx *fnContext, ex *ast.UnaryExpr) error {
	if err := g.genExpr(ctx, ex.Operand, nil); err != nil {
		return err
	}
	switch ex.Op {
	case token.MINUS:
		if isFloatExpr(ex.Operand) {
			ctx.emit0(NEG_FLOAT)
		} else {
			ctx.emit0(NEG_INT)
		}
	case token.NOT:
		ctx.emit0(NOT)
	}
	return nil
}

func (g *generator) genBinary(ctx *fnContext, ex *ast.BinaryExpr) error {
	if err := g.genExpr(ctx, ex.Left, nil); err != nil {
		return err
	}
	if err := g.genExpr(ctx, ex.Right, nil); err != nil {
		return err
	}
	isFloat := isFloatExpr(ex.Left) || isFloatExpr(ex.Right)
	switch ex.Op {
	case token.PLUS:
		ctx.emit0(pick(isFloat, ADD_FLOAT, ADD_INT))
	case token.MINUS:
		ctx.emit0(pick(isFloat, SUB_FLOAT, SUB_INT))
	case token.STAR:
		ctx.emit0(pick(isFloat, MUL_FLOAT, MUL_INT))
	case token.SLASH:
		ctx.emit0(pick(isFloat, DIV_FLOAT, DIV_INT))
	case token.PERCENT:
		ctx.emit0(MOD_INT)
	case token.EQ:
		ctx.emit0(pick(isFloat, EQ_FLOAT, EQ_INT))
	case token.NEQ:
		ctx.emit0(pick(isFloat, NE_FLOAT, NE_INT))
	case token.LT:
		ctx.emit0(pick(isFloat, LT_FLOAT, LT_INT))
	case token.LE:
		ctx.emit0(pick(isFloat, LE_FLOAT, LE_INT))
	case token.GT:
		ctx.emit0(pick(isFloat, GT_FLOAT, GT_INT))
	case token.GE:
		ctx.emit0(pick(isFloat, GE_FLOAT, GE_INT))
	case token.AND:
		ctx.emit0(AND)
	case token.OR:
		ctx.emit0(OR)
	}
	return nil
}

func pick(cond bool, ifTrue, ifFalse OpCode) OpCode {
	if cond {
		return ifTrue
	}
	return ifFalse
}

// isFloatExpr is a conservative, purely syntactic float-operand detector
// used only to choose between the INT and FLOAT opcode families; the
// semantic analyzer has already rejected any program where this would be
// ambiguous: the semantic analyzer requires operands of arithmetic to
// share a type.
func isFloatExpr(e ast.Expr) bool {
	switch ex := e.(type) {
	case *ast.LiteralExpr:
		return ex.Kind == ast.Float
	case *ast.GroupingExpr:
		return isFloatExpr(ex.X)
	case *ast.UnaryExpr:
		return isFloatExpr(ex.Operand)
	case *ast.BinaryExpr:
		return isFloatExpr(ex.Left) || isFloatExpr(ex.Right)
	case *ast.ArrayAccessExpr:
		return false // resolved via declared type at the VarDecl/param site
	default:
		return false
	}
}

func (g *generator) genAssign(ctx *fnContext, ex *ast.AssignExpr) error {
	switch target := ex.Target.(type) {
	case *ast.VariableExpr:
		slot, ok := ctx.locals[target.Name]
		if !ok {
			return fmt.Errorf("codegen: undeclared local %q", target.Name)
		}
		if err := g.genExpr(ctx, ex.Value, nil); err != nil {
			return err
		}
		ctx.emitU(STORE_LOCAL, uint32(slot))
		ctx.emitU(LOAD_LOCAL, uint32(slot))
		return nil
	case *ast.ArrayAccessExpr:
		if err := g.genExpr(ctx, target.Array, nil); err != nil {
			return err
		}
		if err := g.genExpr(ctx, target.Index, nil); err != nil {
			return err
		}
		if err := g.genExpr(ctx, ex.Value, nil); err != nil {
			return err
		}
		ctx.emit0(ARRAY_STORE)
		// ARRAY_STORE leaves nothing on the stack; an
		// assignment expression must still yield a value to its syntactic
		// context, so array-element assignment is only legal as a bare
		// ExprStmt (enforced above by never requesting its result).
		return nil
	default:
		return fmt.Errorf("codegen: invalid assignment target %T", ex.Target)
	}
}

func (g *generator) genCall(ctx *fnContext, ex *ast.CallExpr) error {
	switch ex.Callee {
	case "print":
		if err := g.genExpr(ctx, ex.Args[0], nil); err != nil {
			return err
		}
		ctx.emit0(PRINT)
		return nil
	case "printArray":
		if err := g.genExpr(ctx, ex.Args[0], nil); err != nil {
			return err
		}
		ctx.emit0(PRINT_ARRAY)
		return nil
	}
	for _, arg := range ex.Args {
		if err := g.genExpr(ctx, arg, nil); err != nil {
			return err
		}
	}
	idx, ok := g.fnIndex[ex.Callee]
	if !ok {
		return fmt.Errorf("codegen: undefined function %q", ex.Callee)
	}
	ctx.emitU(CALL, uint32(idx))
	return nil
}
