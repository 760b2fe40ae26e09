package compiler

import (
	"fmt"

	"github.com/chazu/leola/vm"
)

// ---------------------------------------------------------------------------
// Emitter: instruction stream for one chunk
// ---------------------------------------------------------------------------

// Label is a jump target inside one emitter. Forward references are legal;
// every label used must be set before the emitter is closed.
type Label int

type fixup struct {
	site  int
	label Label
}

// Emitter builds the instruction stream of one chunk. Emitters nest the
// same way scopes do: compiling a function pushes a child emitter whose
// closed chunk becomes an inner chunk of its parent.
type Emitter struct {
	parent *Emitter
	scope  *Scope

	kind    vm.ChunkKind
	name    string
	numArgs int
	varArgs bool
	params  []string
	class   *vm.ClassInfo

	code    []vm.Instruction
	labels  []int // target pc per label, -1 while unset
	fixups  []fixup
	inner   []*vm.Chunk
	depth   int // current operand depth from temporaries
	maxTemp int

	debug     bool
	source    string
	lastLine  int
	lines     []vm.LineEntry
	localInfo []vm.LocalRange
}

// NewEmitter creates an emitter for a chunk of the given kind.
func NewEmitter(parent *Emitter, scope *Scope, kind vm.ChunkKind, name string) *Emitter {
	return &Emitter{parent: parent, scope: scope, kind: kind, name: name}
}

// Scope returns the emitter's scope.
func (e *Emitter) Scope() *Scope { return e.scope }

// PC returns the index the next instruction will get.
func (e *Emitter) PC() int { return len(e.code) }

// Code returns the instructions emitted so far.
func (e *Emitter) Code() []vm.Instruction { return e.code }

// ---------------------------------------------------------------------------
// Emission
// ---------------------------------------------------------------------------

func (e *Emitter) add(in vm.Instruction) int {
	pops, pushes := vm.StackEffect(in)
	e.depth += pushes - pops
	if e.depth < 0 {
		e.depth = 0
	}
	if e.depth > e.maxTemp {
		e.maxTemp = e.depth
	}
	e.code = append(e.code, in)
	return len(e.code) - 1
}

// Emit appends an operand-less instruction.
func (e *Emitter) Emit(op vm.Opcode) int {
	return e.add(vm.Encode(op))
}

// EmitX appends an instruction with an unsigned operand.
func (e *Emitter) EmitX(op vm.Opcode, x int) int {
	return e.add(vm.EncodeX(op, uint32(x)))
}

// Emit12 appends an instruction with two 12-bit operands.
func (e *Emitter) Emit12(op vm.Opcode, arg1, arg2 int) int {
	return e.add(vm.Encode12(op, uint32(arg1), uint32(arg2)))
}

// Adjust changes the tracked operand depth for values the engine pushes
// outside the instruction stream (the error value at a catch entry).
func (e *Emitter) Adjust(n int) {
	e.depth += n
	if e.depth > e.maxTemp {
		e.maxTemp = e.depth
	}
}

// Depth returns the tracked operand depth.
func (e *Emitter) Depth() int { return e.depth }

// SetDepth resets the tracked operand depth at a join point.
func (e *Emitter) SetDepth(d int) { e.depth = d }

// Line emits a LINE marker when debug output is on and the line changed.
func (e *Emitter) Line(line int) {
	if !e.debug || line <= 0 || line == e.lastLine {
		return
	}
	e.lastLine = line
	e.lines = append(e.lines, vm.LineEntry{PC: len(e.code), Line: line})
	e.EmitX(vm.OpLINE, line)
}

// ---------------------------------------------------------------------------
// Labels
// ---------------------------------------------------------------------------

// NewLabel creates an unset label.
func (e *Emitter) NewLabel() Label {
	e.labels = append(e.labels, -1)
	return Label(len(e.labels) - 1)
}

// SetLabel fixes label to the next instruction index.
func (e *Emitter) SetLabel(l Label) {
	e.labels[l] = len(e.code)
}

// mark records a jump site to patch once label is set.
func (e *Emitter) mark(site int, l Label) {
	e.fixups = append(e.fixups, fixup{site: site, label: l})
}

// Jump emits a relative jump-like instruction (JMP, IFEQ, IFNEQ,
// INIT_CATCH_BLOCK, INIT_FINALLY_BLOCK) targeting label.
func (e *Emitter) Jump(op vm.Opcode, l Label) int {
	site := e.add(vm.EncodeSX(op, 0))
	e.mark(site, l)
	return site
}

// patch resolves every recorded jump to target - site - 1.
func (e *Emitter) patch() error {
	for _, fx := range e.fixups {
		target := e.labels[fx.label]
		if target < 0 {
			return fmt.Errorf("label %d referenced at pc %d is never defined", fx.label, fx.site)
		}
		offset := target - fx.site - 1
		if offset < vm.MinArgSX || offset > vm.MaxArgSX {
			return fmt.Errorf("jump at pc %d out of range (%d)", fx.site, offset)
		}
		e.code[fx.site] = e.code[fx.site].WithArgSX(int32(offset))
	}
	e.fixups = nil
	return nil
}

// ---------------------------------------------------------------------------
// Nested chunks
// ---------------------------------------------------------------------------

// AddInner appends a closed child chunk and returns its index.
func (e *Emitter) AddInner(c *vm.Chunk) int {
	e.inner = append(e.inner, c)
	return len(e.inner) - 1
}

// EmitDefinition emits the *_DEF instruction for an inner chunk followed by
// one capture pseudo-instruction per outer descriptor of the chunk. A
// descriptor one hop out aliases a slot of this emitter's frame; a deeper
// one is relayed through a derived descriptor registered on this scope.
func (e *Emitter) EmitDefinition(op vm.Opcode, c *vm.Chunk) {
	idx := e.AddInner(c)
	e.EmitX(op, idx)
	for _, o := range c.Outers {
		if o.Hops <= 1 {
			e.EmitX(vm.OpXLoadLocal, o.Index)
			continue
		}
		relay := e.scope.AddOuter(vm.OuterDesc{Index: o.Index, Hops: o.Hops - 1})
		e.EmitX(vm.OpXLoadOuter, relay)
	}
}

// ---------------------------------------------------------------------------
// Closing
// ---------------------------------------------------------------------------

// recordLocals stores the live ranges of locals leaving scope.
func (e *Emitter) recordLocals(gone []localVar) {
	if !e.debug {
		return
	}
	for _, l := range gone {
		e.localInfo = append(e.localInfo, vm.LocalRange{Name: l.name, Slot: l.slot, StartPC: l.start, EndPC: len(e.code)})
	}
}

// MaxStack returns the operand space the chunk needs: arguments, locals,
// peak temporaries, constants and outers. It is a conservative bound.
func (e *Emitter) MaxStack() int {
	return e.numArgs + e.scope.numLocals + e.maxTemp + len(e.scope.constants) + len(e.scope.outers)
}

// Close patches labels and produces the immutable chunk.
func (e *Emitter) Close() (*vm.Chunk, error) {
	if err := e.patch(); err != nil {
		return nil, err
	}
	c := &vm.Chunk{
		Kind:       e.kind,
		Name:       e.name,
		Source:     e.source,
		Code:       e.code,
		NumArgs:    e.numArgs,
		VarArgs:    e.varArgs,
		ParamNames: e.params,
		NumLocals:  e.scope.numLocals,
		Outers:     e.scope.outers,
		Constants:  e.scope.constants,
		Inner:      e.inner,
		MaxStack:   e.MaxStack(),
		Class:      e.class,
	}
	if e.debug {
		c.Debug = &vm.DebugInfo{Lines: e.lines, Locals: e.localInfo}
	}
	return c, nil
}
