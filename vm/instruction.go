package vm

// ---------------------------------------------------------------------------
// Instruction words
// ---------------------------------------------------------------------------
//
// An instruction is a 32-bit word:
//
//	bits  0-7   opcode
//	bits  8-31  ARGx (unsigned) or ARGsx (signed, biased)
//	bits  8-19  ARG1
//	bits 20-31  ARG2
//
// ARG1/ARG2 overlap ARGx; an opcode uses one scheme or the other.
// Encoders mask silently: a literal wider than its field is truncated.

// Instruction is a packed bytecode instruction.
type Instruction uint32

const (
	posOp   = 0
	posArgX = 8
	posArg1 = 8
	posArg2 = 20

	sizeOp   = 8
	sizeArgX = 24
	sizeArg  = 12

	maskOp   = 1<<sizeOp - 1
	maskArgX = 1<<sizeArgX - 1
	maskArg  = 1<<sizeArg - 1
)

const (
	// MaxArgX is the largest unsigned ARGx operand.
	MaxArgX = maskArgX
	// MaxArg is the largest ARG1 or ARG2 operand.
	MaxArg = maskArg
	// ArgSXBias is added to signed operands before they are stored.
	ArgSXBias = maskArgX >> 1
	// MinArgSX and MaxArgSX bound the signed operand values that round-trip.
	// With a bias of 2^23-1 the 24-bit field decodes to [-(2^23-1), 2^23].
	// The range usually quoted for ARGsx, [-(2^23-1), 2^23-2], stops two
	// short at the top; 2^23-1 and 2^23 round-trip all the same.
	MinArgSX = -ArgSXBias
	MaxArgSX = maskArgX - ArgSXBias
)

// Encode builds an instruction without operands.
func Encode(op Opcode) Instruction {
	return Instruction(op) & maskOp
}

// EncodeX builds an instruction with an unsigned 24-bit operand.
func EncodeX(op Opcode, x uint32) Instruction {
	return Instruction(op)&maskOp | Instruction(x&maskArgX)<<posArgX
}

// EncodeSX builds an instruction with a signed 24-bit operand.
func EncodeSX(op Opcode, sx int32) Instruction {
	return EncodeX(op, uint32(sx+ArgSXBias))
}

// Encode12 builds an instruction with two 12-bit operands.
func Encode12(op Opcode, arg1, arg2 uint32) Instruction {
	return Instruction(op)&maskOp |
		Instruction(arg1&maskArg)<<posArg1 |
		Instruction(arg2&maskArg)<<posArg2
}

// Opcode returns the opcode field.
func (i Instruction) Opcode() Opcode {
	return Opcode(i >> posOp & maskOp)
}

// ArgX returns the unsigned 24-bit operand.
func (i Instruction) ArgX() uint32 {
	return uint32(i>>posArgX) & maskArgX
}

// ArgSX returns the signed 24-bit operand.
func (i Instruction) ArgSX() int32 {
	return int32(i.ArgX()) - ArgSXBias
}

// Arg1 returns the first 12-bit operand.
func (i Instruction) Arg1() uint32 {
	return uint32(i>>posArg1) & maskArg
}

// Arg2 returns the second 12-bit operand.
func (i Instruction) Arg2() uint32 {
	return uint32(i>>posArg2) & maskArg
}

// WithArgSX returns a copy of i whose signed operand is replaced.
// The emitter uses it to patch jump sites.
func (i Instruction) WithArgSX(sx int32) Instruction {
	return EncodeSX(i.Opcode(), sx)
}

// String renders the instruction using its opcode's operand scheme.
func (i Instruction) String() string {
	return formatInstruction(i)
}
