package jit

import (
	"testing"

	"github.com/cwbudde/langvm/internal/bytecode"
	"github.com/cwbudde/langvm/internal/vm"
)

func u(op bytecode.OpCode, operand uint32) [bytecode.InstructionSize]byte {
	return bytecode.EncodeUnsigned(op, operand)
}

func s(op bytecode.OpCode, disp int32) [bytecode.InstructionSize]byte {
	return bytecode.EncodeSigned(op, disp)
}

func asm(instrs ...[bytecode.InstructionSize]byte) []byte {
	code := make([]byte, 0, len(instrs)*bytecode.InstructionSize)
	for _, in := range instrs {
		code = append(code, in[:]...)
	}
	return code
}

// noCall is a callback stub for tests whose compiled function makes no
// foreign calls and so never needs to re-enter the cooperative runtime.
func noCall(int, []bytecode.Value) (bytecode.Value, vm.Result) {
	return bytecode.Value{}, vm.SUCCESS
}

// countFn is count(n int) int { if n <= 0 { return 0 }; return 1 + count(n-1) },
// self-recursive and int-only throughout: eligible for compilation.
func countFn(selfIndex uint32) *bytecode.CompiledFunction {
	return &bytecode.CompiledFunction{
		Name:        "count",
		Parameters:  []bytecode.ParamInfo{{Name: "n", Type: bytecode.KindInt}},
		ReturnType:  bytecode.TypeTag{Kind: bytecode.KindInt},
		LocalsCount: 1,
		Instructions: asm(
			u(bytecode.LOAD_LOCAL, 0),
			u(bytecode.PUSH_INT, 0), // const 0
			u(bytecode.LE_INT, 0),
			s(bytecode.JUMP_IF_FALSE, 2), // -> recursive branch
			u(bytecode.PUSH_INT, 0),      // return 0
			u(bytecode.RETURN, 0),
			u(bytecode.LOAD_LOCAL, 0),
			u(bytecode.PUSH_INT, 1), // const 1
			u(bytecode.SUB_INT, 0),
			u(bytecode.CALL, selfIndex),
			u(bytecode.PUSH_INT, 1),
			u(bytecode.ADD_INT, 0),
			u(bytecode.RETURN, 0),
		),
	}
}

func TestCompiler_EligibleSelfRecursiveIntFunction(t *testing.T) {
	module := &bytecode.BytecodeModule{
		IntConstants: []int64{0, 1},
		Functions:    []*bytecode.CompiledFunction{countFn(0)},
	}
	c := NewCompiler(module, noCall)
	exec, ok := c.Compile(0)
	if !ok {
		t.Fatalf("Compile: not eligible, want eligible")
	}
	if exec == nil {
		t.Fatalf("Compile returned ok=true but nil executor")
	}
}

func TestCompiler_IneligibleFloatParameter(t *testing.T) {
	fn := &bytecode.CompiledFunction{
		Name:         "floaty",
		Parameters:   []bytecode.ParamInfo{{Name: "x", Type: bytecode.KindFloat}},
		ReturnType:   bytecode.TypeTag{Kind: bytecode.KindInt},
		Instructions: asm(u(bytecode.RETURN, 0)),
	}
	c := NewCompiler(&bytecode.BytecodeModule{Functions: []*bytecode.CompiledFunction{fn}}, noCall)
	if _, ok := c.Compile(0); ok {
		t.Fatalf("Compile: eligible, want ineligible (float parameter)")
	}
}

// TestCompiler_DelegatesCallToAnotherFunction verifies that calling a
// different function no longer disqualifies a function from specialization:
// the translated body boxes the arguments and re-enters the cooperative
// runtime through the compiler's callback instead.
func TestCompiler_DelegatesCallToAnotherFunction(t *testing.T) {
	callee := &bytecode.CompiledFunction{
		Name:         "callee",
		Parameters:   []bytecode.ParamInfo{{Name: "x", Type: bytecode.KindInt}},
		ReturnType:   bytecode.TypeTag{Kind: bytecode.KindInt},
		Instructions: asm(u(bytecode.RETURN, 0)),
	}
	caller := &bytecode.CompiledFunction{
		Name:        "caller",
		Parameters:  []bytecode.ParamInfo{{Name: "n", Type: bytecode.KindInt}},
		ReturnType:  bytecode.TypeTag{Kind: bytecode.KindInt},
		LocalsCount: 1,
		Instructions: asm(
			u(bytecode.LOAD_LOCAL, 0),
			u(bytecode.CALL, 0),
			u(bytecode.RETURN, 0),
		),
	}
	module := &bytecode.BytecodeModule{Functions: []*bytecode.CompiledFunction{callee, caller}}

	var gotIndex int
	var gotArgs []bytecode.Value
	call := func(functionIndex int, args []bytecode.Value) (bytecode.Value, vm.Result) {
		gotIndex = functionIndex
		gotArgs = args
		return bytecode.IntValue(args[0].Int * 2), vm.SUCCESS
	}

	c := NewCompiler(module, call)
	exec, ok := c.Compile(1)
	if !ok {
		t.Fatalf("Compile: not eligible, want eligible (calling a different function no longer disqualifies)")
	}
	v, res := exec.Run([]int64{21})
	if res != vm.SUCCESS {
		t.Fatalf("Run result = %v, want SUCCESS", res)
	}
	if gotIndex != 0 {
		t.Fatalf("callback invoked with functionIndex = %d, want 0", gotIndex)
	}
	if len(gotArgs) != 1 || gotArgs[0].Int != 21 {
		t.Fatalf("callback invoked with args = %v, want [21]", gotArgs)
	}
	if v != 42 {
		t.Fatalf("Run(21) = %d, want 42", v)
	}
}

func TestCompiler_IneligibleUsesArrayOpcode(t *testing.T) {
	fn := &bytecode.CompiledFunction{
		Name:       "makesArray",
		ReturnType: bytecode.TypeTag{Kind: bytecode.KindVoid},
		Instructions: asm(
			u(bytecode.PUSH_INT, 0),
			u(bytecode.NEW_ARRAY_INT, 0),
			u(bytecode.RETURN_VOID, 0),
		),
	}
	c := NewCompiler(&bytecode.BytecodeModule{IntConstants: []int64{3}, Functions: []*bytecode.CompiledFunction{fn}}, noCall)
	if _, ok := c.Compile(0); ok {
		t.Fatalf("Compile: eligible, want ineligible (array opcode)")
	}
}

func TestCompiledExecutor_MatchesRecursiveSemantics(t *testing.T) {
	module := &bytecode.BytecodeModule{
		IntConstants: []int64{0, 1},
		Functions:    []*bytecode.CompiledFunction{countFn(0)},
	}
	exec, ok := NewCompiler(module, noCall).Compile(0)
	if !ok {
		t.Fatalf("Compile: not eligible")
	}
	v, res := exec.Run([]int64{5})
	if res != vm.SUCCESS {
		t.Fatalf("Run result = %v, want SUCCESS", res)
	}
	if v != 5 {
		t.Fatalf("Run(5) = %d, want 5", v)
	}
}
