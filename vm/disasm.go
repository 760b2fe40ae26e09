package vm

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// ---------------------------------------------------------------------------
// Disassembler
// ---------------------------------------------------------------------------

// formatInstruction renders one instruction without position information.
func formatInstruction(i Instruction) string {
	op := i.Opcode()
	info := op.Info()
	switch info.Scheme {
	case SchemeX:
		return fmt.Sprintf("%s %d", info.Name, i.ArgX())
	case SchemeSX:
		return fmt.Sprintf("%s %d", info.Name, i.ArgSX())
	case SchemeArg12:
		return fmt.Sprintf("%s %d %d", info.Name, i.Arg1(), i.Arg2())
	}
	return info.Name
}

// DisassembleInstruction renders the instruction at pc of chunk c,
// annotating constants and jump targets.
func DisassembleInstruction(c *Chunk, pc int) string {
	instr := c.Code[pc]
	text := fmt.Sprintf("%04d  %s", pc, formatInstruction(instr))
	switch instr.Opcode() {
	case OpLoadConst, OpGetGlobal, OpSetGlobal, OpDefGlobal, OpGetK, OpSetK, OpLoadName:
		if k := int(instr.ArgX()); k < len(c.Constants) {
			text += fmt.Sprintf("\t; %s", constantLiteral(c.Constants[k]))
		}
	case OpNewObj:
		if k := int(instr.Arg1()); k < len(c.Constants) {
			text += fmt.Sprintf("\t; %s", constantLiteral(c.Constants[k]))
		}
	case OpJmp, OpIfEq, OpIfNeq, OpInitCatchBlock, OpInitFinallyBlock:
		text += fmt.Sprintf("\t; -> %04d", pc+1+int(instr.ArgSX()))
	case OpFuncDef, OpGenDef, OpClassDef, OpNamespaceDef:
		if k := int(instr.ArgX()); k < len(c.Inner) {
			text += fmt.Sprintf("\t; %s %s", c.Inner[k].Kind, c.Inner[k].Name)
		}
	}
	return text
}

func constantLiteral(v Value) string {
	if s, ok := v.(String); ok {
		return fmt.Sprintf("%q", string(s))
	}
	return v.String()
}

// Disassemble renders a chunk and its nested chunks as text.
func Disassemble(c *Chunk) string {
	var sb strings.Builder
	c.Walk(func(depth int, ch *Chunk) {
		indent := strings.Repeat("  ", depth)
		name := ch.Name
		if name == "" {
			name = "<anonymous>"
		}
		fmt.Fprintf(&sb, "%s== %s %s (args=%d locals=%d outers=%d maxstack=%d) ==\n",
			indent, ch.Kind, name, ch.NumArgs, ch.NumLocals, len(ch.Outers), ch.MaxStack)
		for pc := range ch.Code {
			sb.WriteString(indent)
			sb.WriteString(DisassembleInstruction(ch, pc))
			sb.WriteByte('\n')
		}
	})
	return sb.String()
}

// ---------------------------------------------------------------------------
// JSON listing
// ---------------------------------------------------------------------------

type jsonInstruction struct {
	PC      int    `json:"pc"`
	Op      string `json:"op"`
	Operand []int  `json:"operand,omitempty"`
	Note    string `json:"note,omitempty"`
}

type jsonChunk struct {
	Kind      string            `json:"kind"`
	Name      string            `json:"name"`
	Source    string            `json:"source,omitempty"`
	Args      int               `json:"args"`
	VarArgs   bool              `json:"varargs,omitempty"`
	Params    []string          `json:"params,omitempty"`
	Locals    int               `json:"locals"`
	MaxStack  int               `json:"maxStack"`
	Outers    []OuterDesc       `json:"outers,omitempty"`
	Constants []string          `json:"constants,omitempty"`
	Code      []jsonInstruction `json:"code"`
	Inner     []jsonChunk       `json:"inner,omitempty"`
}

func toJSONChunk(c *Chunk) jsonChunk {
	jc := jsonChunk{
		Kind:     c.Kind.String(),
		Name:     c.Name,
		Source:   c.Source,
		Args:     c.NumArgs,
		VarArgs:  c.VarArgs,
		Params:   c.ParamNames,
		Locals:   c.NumLocals,
		MaxStack: c.MaxStack,
		Outers:   c.Outers,
		Code:     make([]jsonInstruction, len(c.Code)),
	}
	for _, k := range c.Constants {
		jc.Constants = append(jc.Constants, constantLiteral(k))
	}
	for pc, instr := range c.Code {
		ji := jsonInstruction{PC: pc, Op: instr.Opcode().String()}
		switch instr.Opcode().Info().Scheme {
		case SchemeX:
			ji.Operand = []int{int(instr.ArgX())}
		case SchemeSX:
			ji.Operand = []int{int(instr.ArgSX())}
			ji.Note = fmt.Sprintf("-> %d", pc+1+int(instr.ArgSX()))
		case SchemeArg12:
			ji.Operand = []int{int(instr.Arg1()), int(instr.Arg2())}
		}
		jc.Code[pc] = ji
	}
	for _, in := range c.Inner {
		jc.Inner = append(jc.Inner, toJSONChunk(in))
	}
	return jc
}

// DisassembleJSON renders a chunk tree as an indented JSON document.
func DisassembleJSON(c *Chunk) ([]byte, error) {
	data, err := json.MarshalIndent(toJSONChunk(c), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("disassemble %s: %w", c.Name, err)
	}
	return data, nil
}
