package vm

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode is the low byte of an instruction word.
type Opcode byte

// Stack operations
const (
	OpPOP  Opcode = 0x01 // discard top of stack
	OpDUP  Opcode = 0x02 // duplicate top of stack
	OpSWAP Opcode = 0x03 // swap top two
	OpROTL Opcode = 0x04 // rotate top ARGx values left by one
	OpLINE Opcode = 0x05 // debug line marker (ARGx line)
)

// Loads and stores
const (
	OpLoadConst  Opcode = 0x10 // push constant ARGx
	OpLoadLocal  Opcode = 0x11 // push local slot ARGx
	OpLoadOuter  Opcode = 0x12 // push outer cell ARGx
	OpLoadNull   Opcode = 0x13 // push null
	OpLoadTrue   Opcode = 0x14 // push true
	OpLoadFalse  Opcode = 0x15 // push false
	OpLoadName   Opcode = 0x16 // record named-argument name (constant ARGx)
	OpParamEnd   Opcode = 0x17 // close named-argument list of ARGx names
	OpStoreLocal Opcode = 0x18 // pop into local slot ARGx
	OpStoreOuter Opcode = 0x19 // pop into outer cell ARGx
)

// Capture pseudo-instructions, consumed right after a *_DEF
const (
	OpXLoadOuter Opcode = 0x1A // capture creator's outer cell ARGx
	OpXLoadLocal Opcode = 0x1B // capture (open) creator's stack slot ARGx
)

// Globals
const (
	OpGetGlobal Opcode = 0x20 // push scope lookup of constant ARGx
	OpSetGlobal Opcode = 0x21 // pop, assign by name resolution
	OpDefGlobal Opcode = 0x22 // pop, declare in current scope
)

// Member and index access
const (
	OpGet  Opcode = 0x30 // obj key -> value
	OpSet  Opcode = 0x31 // obj key value -> value
	OpGetK Opcode = 0x32 // obj -> obj[K(ARGx)]
	OpSetK Opcode = 0x33 // obj value -> value
	OpIdx  Opcode = 0x34 // obj index -> value
	OpSIdx Opcode = 0x35 // obj index value -> value
)

// Construction
const (
	OpNewArray     Opcode = 0x40 // pop ARGx elements, push array
	OpNewMap       Opcode = 0x41 // pop ARGx key/value pairs, push map
	OpNewObj       Opcode = 0x42 // ARG1 class name constant, ARG2 argc
	OpFuncDef      Opcode = 0x43 // push closure over inner chunk ARGx
	OpGenDef       Opcode = 0x44 // push generator over inner chunk ARGx
	OpClassDef     Opcode = 0x45 // register class from inner chunk ARGx
	OpNamespaceDef Opcode = 0x46 // run namespace body chunk ARGx
)

// Control flow
const (
	OpJmp      Opcode = 0x50 // relative jump ARGsx
	OpIfEq     Opcode = 0x51 // pop, jump ARGsx if falsy
	OpIfNeq    Opcode = 0x52 // pop, jump ARGsx if truthy
	OpRet      Opcode = 0x53 // pop and return
	OpYield    Opcode = 0x54 // pop and suspend
	OpTailCall Opcode = 0x55 // reuse frame, ARG1 argc
	OpInvoke   Opcode = 0x56 // call, ARG1 argc, ARG2 flags
)

// Exception blocks
const (
	OpInitCatchBlock   Opcode = 0x60 // push catch marker at pc+ARGsx
	OpInitFinallyBlock Opcode = 0x61 // push finally marker at pc+ARGsx
	OpEndBlock         Opcode = 0x62 // ARG1: EndBlockPop/EndBlockCatch/EndBlockFinally
	OpThrow            Opcode = 0x63 // pop and raise
)

// Arithmetic, bitwise, logic, comparison
const (
	OpAdd  Opcode = 0x70
	OpSub  Opcode = 0x71
	OpMul  Opcode = 0x72
	OpDiv  Opcode = 0x73
	OpMod  Opcode = 0x74
	OpNeg  Opcode = 0x75
	OpBSL  Opcode = 0x76
	OpBSR  Opcode = 0x77
	OpBNot Opcode = 0x78
	OpXor  Opcode = 0x79
	OpBOr  Opcode = 0x7A
	OpBAnd Opcode = 0x7B
	OpNot  Opcode = 0x7C
	OpEq   Opcode = 0x80
	OpNeq  Opcode = 0x81
	OpGt   Opcode = 0x82
	OpGte  Opcode = 0x83
	OpLt   Opcode = 0x84
	OpLte  Opcode = 0x85
	OpIsA  Opcode = 0x86 // value className -> bool
)

// END_BLOCK kinds (ARG1)
const (
	EndBlockPop     = 0 // scope exit: discard marker
	EndBlockCatch   = 1 // catch entry: clear pending error
	EndBlockFinally = 2 // finally end: re-raise pending error or return
)

// INVOKE flags (ARG2)
const (
	InvokeNamed = 1 // arguments were permuted by PARAM_END
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OperandScheme names which operand fields an opcode uses.
type OperandScheme uint8

const (
	SchemeNone OperandScheme = iota // no operand
	SchemeX                         // unsigned ARGx
	SchemeSX                        // signed ARGsx
	SchemeArg12                     // ARG1 and ARG2
)

// Variable marks a stack count that depends on the operand.
const Variable = -1

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name   string        // human-readable name
	Scheme OperandScheme // operand layout
	Pops   int           // values popped (Variable = operand dependent)
	Pushes int           // values pushed
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpPOP:  {"POP", SchemeNone, 1, 0},
	OpDUP:  {"DUP", SchemeNone, 1, 2},
	OpSWAP: {"SWAP", SchemeNone, 2, 2},
	OpROTL: {"ROTL", SchemeX, Variable, Variable},
	OpLINE: {"LINE", SchemeX, 0, 0},

	OpLoadConst:  {"LOAD_CONST", SchemeX, 0, 1},
	OpLoadLocal:  {"LOAD_LOCAL", SchemeX, 0, 1},
	OpLoadOuter:  {"LOAD_OUTER", SchemeX, 0, 1},
	OpLoadNull:   {"LOAD_NULL", SchemeNone, 0, 1},
	OpLoadTrue:   {"LOAD_TRUE", SchemeNone, 0, 1},
	OpLoadFalse:  {"LOAD_FALSE", SchemeNone, 0, 1},
	OpLoadName:   {"LOAD_NAME", SchemeX, 0, 0},
	OpParamEnd:   {"PARAM_END", SchemeX, 0, 0},
	OpStoreLocal: {"STORE_LOCAL", SchemeX, 1, 0},
	OpStoreOuter: {"STORE_OUTER", SchemeX, 1, 0},

	OpXLoadOuter: {"xLOAD_OUTER", SchemeX, 0, 0},
	OpXLoadLocal: {"xLOAD_LOCAL", SchemeX, 0, 0},

	OpGetGlobal: {"GET_GLOBAL", SchemeX, 0, 1},
	OpSetGlobal: {"SET_GLOBAL", SchemeX, 1, 0},
	OpDefGlobal: {"DEF_GLOBAL", SchemeX, 1, 0},

	OpGet:  {"GET", SchemeNone, 2, 1},
	OpSet:  {"SET", SchemeNone, 3, 1},
	OpGetK: {"GET_K", SchemeX, 1, 1},
	OpSetK: {"SET_K", SchemeX, 2, 1},
	OpIdx:  {"IDX", SchemeNone, 2, 1},
	OpSIdx: {"SIDX", SchemeNone, 3, 1},

	OpNewArray:     {"NEW_ARRAY", SchemeX, Variable, 1},
	OpNewMap:       {"NEW_MAP", SchemeX, Variable, 1},
	OpNewObj:       {"NEW_OBJ", SchemeArg12, Variable, 1},
	OpFuncDef:      {"FUNC_DEF", SchemeX, 0, 1},
	OpGenDef:       {"GEN_DEF", SchemeX, 0, 1},
	OpClassDef:     {"CLASS_DEF", SchemeX, 0, 0},
	OpNamespaceDef: {"NAMESPACE_DEF", SchemeX, 0, 0},

	OpJmp:      {"JMP", SchemeSX, 0, 0},
	OpIfEq:     {"IFEQ", SchemeSX, 1, 0},
	OpIfNeq:    {"IFNEQ", SchemeSX, 1, 0},
	OpRet:      {"RET", SchemeNone, 1, 0},
	OpYield:    {"YIELD", SchemeNone, 1, 0},
	OpTailCall: {"TAIL_CALL", SchemeArg12, Variable, 0},
	OpInvoke:   {"INVOKE", SchemeArg12, Variable, 1},

	OpInitCatchBlock:   {"INIT_CATCH_BLOCK", SchemeSX, 0, 0},
	OpInitFinallyBlock: {"INIT_FINALLY_BLOCK", SchemeSX, 0, 0},
	OpEndBlock:         {"END_BLOCK", SchemeArg12, 0, 0},
	OpThrow:            {"THROW", SchemeNone, 1, 0},

	OpAdd:  {"ADD", SchemeNone, 2, 1},
	OpSub:  {"SUB", SchemeNone, 2, 1},
	OpMul:  {"MUL", SchemeNone, 2, 1},
	OpDiv:  {"DIV", SchemeNone, 2, 1},
	OpMod:  {"MOD", SchemeNone, 2, 1},
	OpNeg:  {"NEG", SchemeNone, 1, 1},
	OpBSL:  {"BSL", SchemeNone, 2, 1},
	OpBSR:  {"BSR", SchemeNone, 2, 1},
	OpBNot: {"BNOT", SchemeNone, 1, 1},
	OpXor:  {"XOR", SchemeNone, 2, 1},
	OpBOr:  {"BOR", SchemeNone, 2, 1},
	OpBAnd: {"BAND", SchemeNone, 2, 1},
	OpNot:  {"NOT", SchemeNone, 1, 1},
	OpEq:   {"EQ", SchemeNone, 2, 1},
	OpNeq:  {"NEQ", SchemeNone, 2, 1},
	OpGt:   {"GT", SchemeNone, 2, 1},
	OpGte:  {"GTE", SchemeNone, 2, 1},
	OpLt:   {"LT", SchemeNone, 2, 1},
	OpLte:  {"LTE", SchemeNone, 2, 1},
	OpIsA:  {"IS_A", SchemeNone, 2, 1},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// Valid reports whether op is an assigned opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeTable[op]
	return ok
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Info().Name
}

// StackEffect returns how many values an instruction pops and pushes.
// Operand-dependent counts are resolved from the instruction's arguments.
func StackEffect(instr Instruction) (pops, pushes int) {
	op := instr.Opcode()
	info := op.Info()
	pops, pushes = info.Pops, info.Pushes
	switch op {
	case OpROTL:
		n := int(instr.ArgX())
		return n, n
	case OpNewArray:
		pops = int(instr.ArgX())
	case OpNewMap:
		pops = 2 * int(instr.ArgX())
	case OpNewObj:
		pops = int(instr.Arg2())
	case OpInvoke, OpTailCall:
		pops = int(instr.Arg1()) + 1
	}
	return pops, pushes
}
