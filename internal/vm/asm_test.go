package vm

import "github.com/cwbudde/langvm/internal/bytecode"

// asm concatenates a sequence of encoded instructions into one instruction
// stream, so test cases can build a CompiledFunction body without a real
// generator pass.
func asm(instrs ...[bytecode.InstructionSize]byte) []byte {
	code := make([]byte, 0, len(instrs)*bytecode.InstructionSize)
	for _, in := range instrs {
		code = append(code, in[:]...)
	}
	return code
}

func u(op bytecode.OpCode, operand uint32) [bytecode.InstructionSize]byte {
	return bytecode.EncodeUnsigned(op, operand)
}

func s(op bytecode.OpCode, disp int32) [bytecode.InstructionSize]byte {
	return bytecode.EncodeSigned(op, disp)
}
