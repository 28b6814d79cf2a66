package bytecode

import (
	"fmt"
	"strings"
)

// hasOperand reports whether op's 3-byte operand field is meaningful (vs.
// always-zero/unused), for disassembly formatting only.
func hasOperand(op OpCode) bool {
	switch op {
	case PUSH_INT, PUSH_FLOAT, PUSH_BOOL, LOAD_LOCAL, STORE_LOCAL,
		JUMP, JUMP_IF_FALSE, JUMP_IF_TRUE, CALL:
		return true
	default:
		return false
	}
}

func isJump(op OpCode) bool {
	return op == JUMP || op == JUMP_IF_FALSE || op == JUMP_IF_TRUE
}

// Disassemble renders fn's instruction stream as readable mnemonic text, one
// instruction per line, prefixed with its byte offset. Used by generator
// tests that assert on emitted opcodes; no CLI mode prints it.
func Disassemble(fn *CompiledFunction) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "func %s (locals=%d)\n", fn.Name, fn.LocalsCount)
	for pc := uint32(0); int(pc) < len(fn.Instructions); pc += InstructionSize {
		op := DecodeOp(fn.Instructions, pc)
		fmt.Fprintf(&sb, "%6d  %-16s", pc, op)
		switch {
		case isJump(op):
			disp := DecodeSigned(fn.Instructions, pc)
			target := JumpTarget(pc, disp)
			fmt.Fprintf(&sb, "%d  -> %d", disp, target)
		case hasOperand(op):
			fmt.Fprintf(&sb, "%d", DecodeUnsigned(fn.Instructions, pc))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
