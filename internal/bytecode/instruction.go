package bytecode

// InstructionSize is the fixed width of one instruction in bytes: 1
// opcode byte followed by a 3-byte big-endian operand.
const InstructionSize = 4

// EncodeUnsigned packs op and an unsigned operand (a constant-pool index, a
// locals index, or a function-table index) into one 4-byte instruction.
func EncodeUnsigned(op OpCode, operand uint32) [InstructionSize]byte {
	var buf [InstructionSize]byte
	buf[0] = byte(op)
	buf[1] = byte(operand >> 16)
	buf[2] = byte(operand >> 8)
	buf[3] = byte(operand)
	return buf
}

// EncodeSigned packs op and a signed 24-bit jump displacement into one
// 4-byte instruction.
func EncodeSigned(op OpCode, disp int32) [InstructionSize]byte {
	return EncodeUnsigned(op, uint32(disp)&0x00FFFFFF)
}

// DecodeOp returns the opcode of the instruction at code[pc:pc+4].
func DecodeOp(code []byte, pc uint32) OpCode {
	return OpCode(code[pc])
}

// DecodeUnsigned returns the 3-byte big-endian unsigned operand of the
// instruction at code[pc:pc+4].
func DecodeUnsigned(code []byte, pc uint32) uint32 {
	return uint32(code[pc+1])<<16 | uint32(code[pc+2])<<8 | uint32(code[pc+3])
}

// DecodeSigned returns the 3-byte big-endian operand of the instruction at
// code[pc:pc+4], sign-extended from 24 bits.
func DecodeSigned(code []byte, pc uint32) int32 {
	u := DecodeUnsigned(code, pc)
	if u&0x00800000 != 0 {
		return int32(u | 0xFF000000)
	}
	return int32(u)
}

// JumpTarget computes the target PC for a jump instruction at pc with
// displacement disp: target = pc + disp*4 + 4.
func JumpTarget(pc uint32, disp int32) int64 {
	return int64(pc) + int64(disp)*InstructionSize + InstructionSize
}

// appendInstruction is a small helper used by the generator to keep code
// 4-byte aligned by construction.
func appendInstruction(code []byte, inst [InstructionSize]byte) []byte {
	return append(code, inst[:]...)
}
