package vm

import (
	"math/rand"
	"strings"
	"testing"
)

func TestEncodeX(t *testing.T) {
	for _, x := range []uint32{0, 1, 4095, 4096, MaxArgX} {
		i := EncodeX(OpLoadConst, x)
		if i.Opcode() != OpLoadConst {
			t.Errorf("EncodeX(%d).Opcode() = %v", x, i.Opcode())
		}
		if i.ArgX() != x {
			t.Errorf("EncodeX(%d).ArgX() = %d", x, i.ArgX())
		}
	}
}

func TestEncodeXTruncates(t *testing.T) {
	i := EncodeX(OpJmp, MaxArgX+2)
	if i.ArgX() != 1 || i.Opcode() != OpJmp {
		t.Errorf("EncodeX(MaxArgX+2) = op %v arg %d, want JMP 1", i.Opcode(), i.ArgX())
	}
}

func TestEncodeSXExtremes(t *testing.T) {
	for _, sx := range []int32{MinArgSX, -1, 0, 1, 1<<23 - 2, 1<<23 - 1, MaxArgSX} {
		i := EncodeSX(OpJmp, sx)
		if got := i.ArgSX(); got != sx {
			t.Errorf("EncodeSX(%d).ArgSX() = %d", sx, got)
		}
	}
	if got := Instruction(0xFFFFFF00 | uint32(OpJmp)).ArgSX(); got != MaxArgSX {
		t.Errorf("all-ones field decodes to %d, want %d", got, MaxArgSX)
	}
	if got := EncodeX(OpJmp, 0).ArgSX(); got != MinArgSX {
		t.Errorf("zero field decodes to %d, want %d", got, MinArgSX)
	}
	// The top of the range is 2^23, two past 2^23-2.
	if MinArgSX != -8388607 || MaxArgSX != 8388608 {
		t.Errorf("signed range = [%d, %d]", MinArgSX, MaxArgSX)
	}
}

func TestEncode12(t *testing.T) {
	i := Encode12(OpInvoke, 4095, 1)
	if i.Opcode() != OpInvoke || i.Arg1() != 4095 || i.Arg2() != 1 {
		t.Errorf("Encode12 = %v %d %d", i.Opcode(), i.Arg1(), i.Arg2())
	}
	// ARG1 and ARG2 together cover ARGx.
	if i.ArgX() != 4095|1<<12 {
		t.Errorf("ArgX = %#x", i.ArgX())
	}
}

func TestWithArgSXKeepsOpcode(t *testing.T) {
	i := EncodeSX(OpIfEq, 0).WithArgSX(-42)
	if i.Opcode() != OpIfEq || i.ArgSX() != -42 {
		t.Errorf("WithArgSX = %v %d", i.Opcode(), i.ArgSX())
	}
}

// Every 32-bit word decodes; unknown opcodes render as UNKNOWN_xx.
func TestDecodeTotal(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for n := 0; n < 10000; n++ {
		i := Instruction(rng.Uint32())
		_ = i.ArgX()
		_ = i.ArgSX()
		_ = i.Arg1()
		_ = i.Arg2()
		if s := i.String(); s == "" {
			t.Fatalf("%#08x renders empty", uint32(i))
		}
	}
	if s := Instruction(0xFE).String(); !strings.HasPrefix(s, "UNKNOWN_FE") {
		t.Errorf("unknown opcode renders %q", s)
	}
}

func TestStackEffect(t *testing.T) {
	tests := []struct {
		instr        Instruction
		pops, pushes int
	}{
		{Encode(OpAdd), 2, 1},
		{Encode(OpDUP), 1, 2},
		{EncodeX(OpNewArray, 3), 3, 1},
		{EncodeX(OpNewMap, 2), 4, 1},
		{Encode12(OpNewObj, 0, 2), 2, 1},
		{Encode12(OpInvoke, 3, 0), 4, 1},
		{Encode12(OpTailCall, 2, 0), 3, 0},
		{EncodeX(OpROTL, 3), 3, 3},
		{EncodeX(OpClassDef, 0), 0, 0},
	}
	for _, tt := range tests {
		pops, pushes := StackEffect(tt.instr)
		if pops != tt.pops || pushes != tt.pushes {
			t.Errorf("StackEffect(%v) = %d, %d; want %d, %d", tt.instr, pops, pushes, tt.pops, tt.pushes)
		}
	}
}

func TestOpcodeNamesUnique(t *testing.T) {
	seen := make(map[string]Opcode)
	for op, info := range opcodeTable {
		if prev, ok := seen[info.Name]; ok {
			t.Errorf("opcodes %#x and %#x share name %s", byte(prev), byte(op), info.Name)
		}
		seen[info.Name] = op
	}
}
