package jit

import (
	"github.com/cwbudde/langvm/internal/bytecode"
	"github.com/cwbudde/langvm/internal/vm"
)

// whitelisted is the set of opcodes the specializing compiler knows how to
// translate. It deliberately excludes float arithmetic, arrays, and
// PRINT/PRINT_ARRAY: functions touching floats, arrays, or I/O always run
// through the generic interpreter, and only a narrow int-only specialist
// gets compiled.
var whitelisted = map[bytecode.OpCode]bool{
	bytecode.PUSH_INT: true, bytecode.PUSH_BOOL: true, bytecode.POP: true,
	bytecode.LOAD_LOCAL: true, bytecode.STORE_LOCAL: true,
	bytecode.ADD_INT: true, bytecode.SUB_INT: true, bytecode.MUL_INT: true,
	bytecode.DIV_INT: true, bytecode.MOD_INT: true, bytecode.NEG_INT: true,
	bytecode.EQ_INT: true, bytecode.NE_INT: true, bytecode.LT_INT: true,
	bytecode.LE_INT: true, bytecode.GT_INT: true, bytecode.GE_INT: true,
	bytecode.AND: true, bytecode.OR: true, bytecode.NOT: true,
	bytecode.JUMP: true, bytecode.JUMP_IF_FALSE: true, bytecode.JUMP_IF_TRUE: true,
	bytecode.CALL: true, bytecode.RETURN: true, bytecode.RETURN_VOID: true,
}

// callback re-enters the shared cooperative interpreter for a function a
// compiled or delegating executor does not run natively itself — the call
// boundary internal/vm.VM's doc comment calls out as the seam a JIT hooks
// into.
type callback func(functionIndex int, args []bytecode.Value) (bytecode.Value, vm.Result)

// Executor is a published function body the interceptor can run directly
// at a call boundary, whether or not it was actually specialized.
type Executor interface {
	Execute(args []bytecode.Value) (bytecode.Value, vm.Result)
}

// Compiler translates eligible CompiledFunctions into CompiledExecutors. A
// function is eligible when every parameter and its return type is int or
// void and its instruction stream uses only whitelisted opcodes; a CALL
// to another function no longer disqualifies it — the translated body
// re-enters the shared runtime through call for any callee that is not
// itself, so self-recursive hot functions that also call helpers still get
// specialized instead of falling back to the interpreter wholesale.
type Compiler struct {
	module *bytecode.BytecodeModule
	call   callback
}

// NewCompiler creates a Compiler for the functions in module. call is the
// cooperative re-entry point used for CALLs to functions other than the one
// being compiled.
func NewCompiler(module *bytecode.BytecodeModule, call callback) *Compiler {
	return &Compiler{module: module, call: call}
}

// Compile attempts to translate the function at functionIndex. ok is false
// if the function is not eligible for native specialization; the caller
// (Scheduler) publishes a delegating executor for it instead of retrying.
func (c *Compiler) Compile(functionIndex int) (exec *CompiledExecutor, ok bool) {
	fn := c.module.Functions[functionIndex]
	if !c.eligible(fn) {
		return nil, false
	}
	prog := c.translate(fn)
	return &CompiledExecutor{fn: fn, functionIndex: functionIndex, prog: prog, call: c.call}, true
}

func (c *Compiler) eligible(fn *bytecode.CompiledFunction) bool {
	if fn.ReturnType.Kind != bytecode.KindInt && fn.ReturnType.Kind != bytecode.KindVoid {
		return false
	}
	for _, p := range fn.Parameters {
		if p.Type != bytecode.KindInt {
			return false
		}
	}
	code := fn.Instructions
	for pc := uint32(0); int(pc) < len(code); pc += bytecode.InstructionSize {
		op := bytecode.DecodeOp(code, pc)
		if !whitelisted[op] {
			return false
		}
	}
	return true
}

// intInstr is a pre-decoded instruction ready for tight-loop execution: the
// generic interpreter pays a decode cost (DecodeOp/DecodeUnsigned/
// DecodeSigned) on every single step of every call; a compiled function
// pays it once, here, at compile time.
type intInstr struct {
	op     bytecode.OpCode
	arg    int64 // literal value for PUSH_INT/PUSH_BOOL, slot for LOCAL ops
	target int   // instruction index for jumps, callee function index for CALL

	// Populated only for CALL; describe the callee so a foreign call can be
	// boxed into bytecode.Value and handed to the cooperative runtime.
	nargs      int
	paramKinds []bytecode.ValueKind
	retKind    bytecode.ValueKind
}

func (c *Compiler) translate(fn *bytecode.CompiledFunction) []intInstr {
	code := fn.Instructions
	n := len(code) / bytecode.InstructionSize
	prog := make([]intInstr, n)
	for pc := uint32(0); int(pc) < len(code); pc += bytecode.InstructionSize {
		i := int(pc) / bytecode.InstructionSize
		op := bytecode.DecodeOp(code, pc)
		instr := intInstr{op: op}
		switch op {
		case bytecode.PUSH_INT:
			idx := bytecode.DecodeUnsigned(code, pc)
			instr.arg = c.module.IntConstants[idx]
		case bytecode.PUSH_BOOL, bytecode.LOAD_LOCAL, bytecode.STORE_LOCAL:
			instr.arg = int64(bytecode.DecodeUnsigned(code, pc))
		case bytecode.JUMP, bytecode.JUMP_IF_FALSE, bytecode.JUMP_IF_TRUE:
			disp := bytecode.DecodeSigned(code, pc)
			instr.target = int(bytecode.JumpTarget(pc, disp)) / bytecode.InstructionSize
		case bytecode.CALL:
			target := int(bytecode.DecodeUnsigned(code, pc))
			instr.target = target
			callee := c.module.Functions[target]
			instr.nargs = len(callee.Parameters)
			instr.paramKinds = make([]bytecode.ValueKind, len(callee.Parameters))
			for j, p := range callee.Parameters {
				instr.paramKinds[j] = p.Type
			}
			instr.retKind = callee.ReturnType.Kind
		}
		prog[i] = instr
	}
	return prog
}

// CompiledExecutor is a translated, directly-executable function body: a
// flat []int64 value/operand representation with no Value boxing and no
// heap traffic for its own self-recursive calls. Calls to any other
// function box their arguments and re-enter the cooperative runtime via
// call, then unbox the result — the specialized fast path only ever
// applies to the function's own frame.
type CompiledExecutor struct {
	fn            *bytecode.CompiledFunction
	functionIndex int
	prog          []intInstr
	call          callback
}

// Execute implements Executor, boxing/unboxing at the interpreter's call
// boundary so the interceptor can treat every published function uniformly.
func (e *CompiledExecutor) Execute(args []bytecode.Value) (bytecode.Value, vm.Result) {
	intArgs := make([]int64, len(args))
	for i, a := range args {
		intArgs[i] = a.Int
	}
	v, res := e.Run(intArgs)
	if res != vm.SUCCESS {
		return bytecode.Value{}, res
	}
	if e.fn.ReturnType.Kind == bytecode.KindVoid {
		return bytecode.VoidValue(), vm.SUCCESS
	}
	return bytecode.IntValue(v), vm.SUCCESS
}

// Run executes the compiled function with args already bound to its leading
// parameter slots.
func (e *CompiledExecutor) Run(args []int64) (int64, vm.Result) {
	locals := make([]int64, e.fn.LocalsCount)
	copy(locals, args)
	stack := make([]int64, 0, 16)
	pc := 0
	for {
		instr := e.prog[pc]
		switch instr.op {
		case bytecode.PUSH_INT, bytecode.PUSH_BOOL:
			stack = append(stack, instr.arg)
			pc++
		case bytecode.POP:
			stack = stack[:len(stack)-1]
			pc++
		case bytecode.LOAD_LOCAL:
			stack = append(stack, locals[instr.arg])
			pc++
		case bytecode.STORE_LOCAL:
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			locals[instr.arg] = v
			pc++
		case bytecode.ADD_INT:
			b, a := pop2(&stack)
			stack = append(stack, a+b)
			pc++
		case bytecode.SUB_INT:
			b, a := pop2(&stack)
			stack = append(stack, a-b)
			pc++
		case bytecode.MUL_INT:
			b, a := pop2(&stack)
			stack = append(stack, a*b)
			pc++
		case bytecode.DIV_INT:
			b, a := pop2(&stack)
			if b == 0 {
				return 0, vm.DIVISION_BY_ZERO
			}
			stack = append(stack, a/b)
			pc++
		case bytecode.MOD_INT:
			b, a := pop2(&stack)
			if b == 0 {
				return 0, vm.DIVISION_BY_ZERO
			}
			stack = append(stack, a%b)
			pc++
		case bytecode.NEG_INT:
			a := stack[len(stack)-1]
			stack[len(stack)-1] = -a
			pc++
		case bytecode.EQ_INT:
			b, a := pop2(&stack)
			stack = append(stack, boolInt(a == b))
			pc++
		case bytecode.NE_INT:
			b, a := pop2(&stack)
			stack = append(stack, boolInt(a != b))
			pc++
		case bytecode.LT_INT:
			b, a := pop2(&stack)
			stack = append(stack, boolInt(a < b))
			pc++
		case bytecode.LE_INT:
			b, a := pop2(&stack)
			stack = append(stack, boolInt(a <= b))
			pc++
		case bytecode.GT_INT:
			b, a := pop2(&stack)
			stack = append(stack, boolInt(a > b))
			pc++
		case bytecode.GE_INT:
			b, a := pop2(&stack)
			stack = append(stack, boolInt(a >= b))
			pc++
		case bytecode.AND:
			b, a := pop2(&stack)
			stack = append(stack, boolInt(a != 0 && b != 0))
			pc++
		case bytecode.OR:
			b, a := pop2(&stack)
			stack = append(stack, boolInt(a != 0 || b != 0))
			pc++
		case bytecode.NOT:
			a := stack[len(stack)-1]
			stack[len(stack)-1] = boolInt(a == 0)
			pc++
		case bytecode.JUMP:
			pc = instr.target
		case bytecode.JUMP_IF_FALSE:
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if v == 0 {
				pc = instr.target
			} else {
				pc++
			}
		case bytecode.JUMP_IF_TRUE:
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if v != 0 {
				pc = instr.target
			} else {
				pc++
			}
		case bytecode.CALL:
			if instr.target == e.functionIndex {
				nargs := len(e.fn.Parameters)
				callArgs := append([]int64(nil), stack[len(stack)-nargs:]...)
				stack = stack[:len(stack)-nargs]
				v, res := e.Run(callArgs)
				if res != vm.SUCCESS {
					return 0, res
				}
				if e.fn.ReturnType.Kind != bytecode.KindVoid {
					stack = append(stack, v)
				}
				pc++
				break
			}
			boxed := make([]bytecode.Value, instr.nargs)
			for i := instr.nargs - 1; i >= 0; i-- {
				v := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if instr.paramKinds[i] == bytecode.KindBool {
					boxed[i] = bytecode.BoolValue(v != 0)
				} else {
					boxed[i] = bytecode.IntValue(v)
				}
			}
			result, res := e.call(instr.target, boxed)
			if res != vm.SUCCESS {
				return 0, res
			}
			switch instr.retKind {
			case bytecode.KindVoid:
			case bytecode.KindBool:
				stack = append(stack, boolInt(result.Bool))
			default:
				stack = append(stack, result.Int)
			}
			pc++
		case bytecode.RETURN:
			return stack[len(stack)-1], vm.SUCCESS
		case bytecode.RETURN_VOID:
			return 0, vm.SUCCESS
		}
	}
}

// delegatingExecutor is published for a function the specializer could not
// translate (a non-whitelisted opcode, or a non-int/void signature). It
// does no native translation of its own; it simply re-enters the
// cooperative runtime, so a hot but non-specializable function still gets
// marked handled once instead of being re-evaluated for eligibility every
// time it crosses threshold.
type delegatingExecutor struct {
	functionIndex int
	call          callback
}

// Execute implements Executor.
func (e *delegatingExecutor) Execute(args []bytecode.Value) (bytecode.Value, vm.Result) {
	return e.call(e.functionIndex, args)
}

func pop2(stack *[]int64) (b, a int64) {
	s := *stack
	b = s[len(s)-1]
	a = s[len(s)-2]
	*stack = s[:len(s)-2]
	return
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
