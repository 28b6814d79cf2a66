package vm

import (
	"io"

	"github.com/cwbudde/langvm/internal/bytecode"
	"github.com/cwbudde/langvm/internal/memory"
)

// CallFrame is one activation record: the function being run, its local
// slots, and the program counter. The return address is
// implicit in Go's own call stack (Run recurses into a new frame per CALL
// instruction) rather than tracked explicitly; Interceptor below is the seam
// a JIT hooks into at exactly that recursion point.
type CallFrame struct {
	Function *bytecode.CompiledFunction
	Locals   *LocalSlots
	PC       uint32
}

// Interceptor lets a profile-guided JIT observe and, once warmed up, take
// over function calls without the interpreter's dispatch loop knowing
// anything about compiled code. RecordCall is invoked on every CALL,
// unconditionally; TryExecute is consulted before the interpreter runs a
// function's bytecode, and wins if it reports handled=true. Both are no-ops
// under a nil Interceptor (interpreter-only operation).
type Interceptor interface {
	RecordCall(functionIndex int)
	TryExecute(functionIndex int, args []bytecode.Value) (result bytecode.Value, vmResult Result, handled bool)
}

// VM interprets one BytecodeModule against one Heap. It is not safe for
// concurrent use by multiple goroutines over the same call stack, but a JIT
// Interceptor may run compiled code for other functions concurrently with
// an in-progress interpreted call at the cooperative call boundary.
type VM struct {
	Module      *bytecode.BytecodeModule
	Heap        *memory.Heap
	Out         io.Writer
	Interceptor Interceptor
}

// New creates a VM ready to run module against a fresh heap, printing
// PRINT/PRINT_ARRAY output to out.
func New(module *bytecode.BytecodeModule, out io.Writer) *VM {
	return &VM{Module: module, Heap: memory.NewHeap(), Out: out}
}

// Run executes the module's entry point (the "main" function, called with
// no arguments) to completion.
func (vm *VM) Run() Result {
	idx, fn, ok := vm.Module.FunctionByName(vm.Module.EntryPoint)
	if !ok {
		return INVALID_FUNCTION_INDEX
	}
	_, res := vm.callByIndex(idx, fn, nil)
	return res
}

// callByIndex runs fn (already known to sit at functionIndex in the module)
// with args, first offering the Interceptor a chance to run compiled code.
func (vm *VM) callByIndex(functionIndex int, fn *bytecode.CompiledFunction, args []bytecode.Value) (bytecode.Value, Result) {
	if vm.Interceptor != nil {
		vm.Interceptor.RecordCall(functionIndex)
		if v, res, handled := vm.Interceptor.TryExecute(functionIndex, args); handled {
			return v, res
		}
	}
	return vm.execute(fn, args)
}

// Execute runs fn directly against this VM's heap and output, without
// consulting the Interceptor. It is the cooperative re-entry point a JIT
// executor calls back into for a callee it does not run natively itself —
// using callByIndex here would re-enter the Interceptor and loop back into
// the same published executor.
func (vm *VM) Execute(fn *bytecode.CompiledFunction, args []bytecode.Value) (bytecode.Value, Result) {
	return vm.execute(fn, args)
}

// execute interprets fn's bytecode with args bound to its leading local
// slots.
func (vm *VM) execute(fn *bytecode.CompiledFunction, args []bytecode.Value) (bytecode.Value, Result) {
	frame := &CallFrame{Function: fn, Locals: NewLocalSlots(fn.LocalsCount, vm.Heap)}
	for i, a := range args {
		// Args arrive already owned (moved out of the caller's operand
		// stack by CALL), so binding them is a move, not a copy.
		if err := frame.Locals.SetMove(uint32(i), a); err != nil {
			return bytecode.Value{}, vm.classify(err)
		}
	}
	stack := NewOperandStack(vm.Heap)

	code := fn.Instructions
	for int(frame.PC) < len(code) {
		pc := frame.PC
		op := bytecode.DecodeOp(code, pc)
		if !op.Valid() {
			stack.ClearAndReleaseAll()
			frame.Locals.ClearAndReleaseAll()
			return bytecode.Value{}, INVALID_OPCODE
		}
		frame.PC += bytecode.InstructionSize

		ret, res, done, err := vm.step(frame, stack, op, pc)
		if err != nil {
			stack.ClearAndReleaseAll()
			frame.Locals.ClearAndReleaseAll()
			return bytecode.Value{}, vm.classify(err)
		}
		if done {
			frame.Locals.ClearAndReleaseAll()
			return ret, res
		}
	}
	// Fell off the end of a void function's instruction stream (the
	// generator always appends RETURN_VOID, so this is unreachable in
	// practice but kept as a defined fallback).
	frame.Locals.ClearAndReleaseAll()
	return bytecode.VoidValue(), SUCCESS
}

// step executes one instruction. done is true once the function has
// returned, with ret/res holding its result.
func (vm *VM) step(frame *CallFrame, stack *OperandStack, op bytecode.OpCode, pc uint32) (ret bytecode.Value, res Result, done bool, err error) {
	code := frame.Function.Instructions
	switch op {
	case bytecode.PUSH_INT:
		idx := bytecode.DecodeUnsigned(code, pc)
		if int(idx) >= len(vm.Module.IntConstants) {
			return bytecode.Value{}, 0, false, fault(INVALID_CONSTANT_INDEX, frame.Function.Name, pc)
		}
		stack.PushMove(bytecode.IntValue(vm.Module.IntConstants[idx]))

	case bytecode.PUSH_FLOAT:
		idx := bytecode.DecodeUnsigned(code, pc)
		if int(idx) >= len(vm.Module.FloatConstants) {
			return bytecode.Value{}, 0, false, fault(INVALID_CONSTANT_INDEX, frame.Function.Name, pc)
		}
		stack.PushMove(bytecode.FloatValue(vm.Module.FloatConstants[idx]))

	case bytecode.PUSH_BOOL:
		stack.PushMove(bytecode.BoolValue(bytecode.DecodeUnsigned(code, pc) != 0))

	case bytecode.POP:
		if err := stack.PopDrop(); err != nil {
			return bytecode.Value{}, 0, false, err
		}

	case bytecode.LOAD_LOCAL:
		slot := bytecode.DecodeUnsigned(code, pc)
		v, err := frame.Locals.GetCopy(slot)
		if err != nil {
			return bytecode.Value{}, 0, false, err
		}
		stack.PushMove(v)

	case bytecode.STORE_LOCAL:
		slot := bytecode.DecodeUnsigned(code, pc)
		v, ok := stack.PopMove()
		if !ok {
			return bytecode.Value{}, 0, false, fault(STACK_UNDERFLOW, frame.Function.Name, pc)
		}
		if err := frame.Locals.SetMove(slot, v); err != nil {
			return bytecode.Value{}, 0, false, err
		}

	case bytecode.ADD_INT, bytecode.SUB_INT, bytecode.MUL_INT, bytecode.DIV_INT, bytecode.MOD_INT:
		if err := vm.intArith(stack, op, frame.Function.Name, pc); err != nil {
			return bytecode.Value{}, 0, false, err
		}
	case bytecode.NEG_INT:
		a, err := vm.pop1Int(stack, frame.Function.Name, pc)
		if err != nil {
			return bytecode.Value{}, 0, false, err
		}
		stack.PushMove(bytecode.IntValue(-a))

	case bytecode.ADD_FLOAT, bytecode.SUB_FLOAT, bytecode.MUL_FLOAT, bytecode.DIV_FLOAT:
		if err := vm.floatArith(stack, op, frame.Function.Name, pc); err != nil {
			return bytecode.Value{}, 0, false, err
		}
	case bytecode.NEG_FLOAT:
		a, err := vm.pop1Float(stack, frame.Function.Name, pc)
		if err != nil {
			return bytecode.Value{}, 0, false, err
		}
		stack.PushMove(bytecode.FloatValue(-a))

	case bytecode.EQ_INT, bytecode.NE_INT, bytecode.LT_INT, bytecode.LE_INT, bytecode.GT_INT, bytecode.GE_INT:
		if err := vm.intCompare(stack, op, frame.Function.Name, pc); err != nil {
			return bytecode.Value{}, 0, false, err
		}
	case bytecode.EQ_FLOAT, bytecode.NE_FLOAT, bytecode.LT_FLOAT, bytecode.LE_FLOAT, bytecode.GT_FLOAT, bytecode.GE_FLOAT:
		if err := vm.floatCompare(stack, op, frame.Function.Name, pc); err != nil {
			return bytecode.Value{}, 0, false, err
		}

	case bytecode.AND, bytecode.OR:
		b, err := vm.pop1Bool(stack, frame.Function.Name, pc)
		if err != nil {
			return bytecode.Value{}, 0, false, err
		}
		a, err := vm.pop1Bool(stack, frame.Function.Name, pc)
		if err != nil {
			return bytecode.Value{}, 0, false, err
		}
		if op == bytecode.AND {
			stack.PushMove(bytecode.BoolValue(a && b))
		} else {
			stack.PushMove(bytecode.BoolValue(a || b))
		}
	case bytecode.NOT:
		a, err := vm.pop1Bool(stack, frame.Function.Name, pc)
		if err != nil {
			return bytecode.Value{}, 0, false, err
		}
		stack.PushMove(bytecode.BoolValue(!a))

	case bytecode.JUMP:
		disp := bytecode.DecodeSigned(code, pc)
		target := bytecode.JumpTarget(pc, disp)
		if target < 0 || target > int64(len(code)) {
			return bytecode.Value{}, 0, false, fault(INVALID_OPCODE, frame.Function.Name, pc)
		}
		frame.PC = uint32(target)
	case bytecode.JUMP_IF_FALSE, bytecode.JUMP_IF_TRUE:
		cond, err := vm.pop1Bool(stack, frame.Function.Name, pc)
		if err != nil {
			return bytecode.Value{}, 0, false, err
		}
		take := cond == (op == bytecode.JUMP_IF_TRUE)
		if take {
			disp := bytecode.DecodeSigned(code, pc)
			target := bytecode.JumpTarget(pc, disp)
			if target < 0 || target > int64(len(code)) {
				return bytecode.Value{}, 0, false, fault(INVALID_OPCODE, frame.Function.Name, pc)
			}
			frame.PC = uint32(target)
		}

	case bytecode.CALL:
		idx := bytecode.DecodeUnsigned(code, pc)
		if int(idx) >= len(vm.Module.Functions) {
			return bytecode.Value{}, 0, false, fault(INVALID_FUNCTION_INDEX, frame.Function.Name, pc)
		}
		callee := vm.Module.Functions[idx]
		args := make([]bytecode.Value, len(callee.Parameters))
		for i := len(args) - 1; i >= 0; i-- {
			v, ok := stack.PopMove()
			if !ok {
				return bytecode.Value{}, 0, false, fault(STACK_UNDERFLOW, frame.Function.Name, pc)
			}
			args[i] = v
		}
		v, callRes := vm.callByIndex(int(idx), callee, args)
		if callRes != SUCCESS {
			return bytecode.Value{}, callRes, true, nil
		}
		if callee.ReturnType.Kind != bytecode.KindVoid {
			stack.PushMove(v)
		}

	case bytecode.RETURN:
		v, ok := stack.PopMove()
		if !ok {
			return bytecode.Value{}, 0, false, fault(STACK_UNDERFLOW, frame.Function.Name, pc)
		}
		if err := stack.ClearAndReleaseAll(); err != nil {
			return bytecode.Value{}, 0, false, err
		}
		return v, SUCCESS, true, nil

	case bytecode.RETURN_VOID:
		if err := stack.ClearAndReleaseAll(); err != nil {
			return bytecode.Value{}, 0, false, err
		}
		return bytecode.VoidValue(), SUCCESS, true, nil

	case bytecode.NEW_ARRAY_INT, bytecode.NEW_ARRAY_FLOAT, bytecode.NEW_ARRAY_BOOL:
		n, err := vm.pop1Int(stack, frame.Function.Name, pc)
		if err != nil {
			return bytecode.Value{}, 0, false, err
		}
		id, allocErr := vm.newArray(op, int(n))
		if allocErr != nil {
			return bytecode.Value{}, 0, false, allocErr
		}
		stack.PushMove(bytecode.ArrayRefValue(id))

	case bytecode.ARRAY_LOAD:
		idx, err := vm.pop1Int(stack, frame.Function.Name, pc)
		if err != nil {
			return bytecode.Value{}, 0, false, err
		}
		arr, ok := stack.PopMove()
		if !ok {
			return bytecode.Value{}, 0, false, fault(STACK_UNDERFLOW, frame.Function.Name, pc)
		}
		if !arr.IsArrayRef() {
			return bytecode.Value{}, 0, false, fault(INVALID_ARRAY_TYPE, frame.Function.Name, pc)
		}
		v, loadErr := vm.loadElement(arr.HeapID, int(idx))
		// The array value itself was only being indexed, not kept; its
		// ownership (taken by PopMove above) must be released here.
		if relErr := vm.Heap.Release(arr.HeapID); relErr != nil {
			return bytecode.Value{}, 0, false, relErr
		}
		if loadErr != nil {
			return bytecode.Value{}, 0, false, loadErr
		}
		stack.PushMove(v)

	case bytecode.ARRAY_STORE:
		val, ok := stack.PopMove()
		if !ok {
			return bytecode.Value{}, 0, false, fault(STACK_UNDERFLOW, frame.Function.Name, pc)
		}
		idx, err := vm.pop1Int(stack, frame.Function.Name, pc)
		if err != nil {
			return bytecode.Value{}, 0, false, err
		}
		arr, ok := stack.PopMove()
		if !ok {
			return bytecode.Value{}, 0, false, fault(STACK_UNDERFLOW, frame.Function.Name, pc)
		}
		if !arr.IsArrayRef() {
			return bytecode.Value{}, 0, false, fault(INVALID_ARRAY_TYPE, frame.Function.Name, pc)
		}
		storeErr := vm.storeElement(arr.HeapID, int(idx), val, frame.Function.Name, pc)
		if relErr := vm.Heap.Release(arr.HeapID); relErr != nil {
			return bytecode.Value{}, 0, false, relErr
		}
		if storeErr != nil {
			return bytecode.Value{}, 0, false, storeErr
		}

	case bytecode.PRINT:
		v, ok := stack.PopMove()
		if !ok {
			return bytecode.Value{}, 0, false, fault(STACK_UNDERFLOW, frame.Function.Name, pc)
		}
		io.WriteString(vm.Out, v.String())

	case bytecode.PRINT_ARRAY:
		v, ok := stack.PopMove()
		if !ok {
			return bytecode.Value{}, 0, false, fault(STACK_UNDERFLOW, frame.Function.Name, pc)
		}
		if !v.IsArrayRef() {
			return bytecode.Value{}, 0, false, fault(INVALID_ARRAY_TYPE, frame.Function.Name, pc)
		}
		s, printErr := vm.formatArray(v.HeapID)
		if relErr := vm.Heap.Release(v.HeapID); relErr != nil {
			return bytecode.Value{}, 0, false, relErr
		}
		if printErr != nil {
			return bytecode.Value{}, 0, false, printErr
		}
		io.WriteString(vm.Out, s)

	default:
		return bytecode.Value{}, 0, false, fault(INVALID_OPCODE, frame.Function.Name, pc)
	}
	return bytecode.Value{}, 0, false, nil
}

// classify turns an internal error (a *Fault raised by this package, or a
// *memory.Error raised by the heap) into the Result it corresponds to.
func (vm *VM) classify(err error) Result {
	switch e := err.(type) {
	case *Fault:
		return e.Result
	case *memory.Error:
		switch e.Kind {
		case memory.ErrIndexOutOfBounds, memory.ErrNegativeSize:
			return ARRAY_INDEX_OUT_OF_BOUNDS
		default:
			return INVALID_HEAP_ID
		}
	default:
		return INVALID_OPCODE
	}
}
