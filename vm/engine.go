package vm

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("leola.vm")

// ---------------------------------------------------------------------------
// Frames
// ---------------------------------------------------------------------------

type blockKind uint8

const (
	blockCatch blockKind = iota
	blockFinally
)

// blockMarker is an installed catch or finally block.
type blockMarker struct {
	pc    int       // resume pc
	kind  blockKind // catch or finally
	sp    int       // operand height relative to the frame base
	names int       // pending named-argument count
}

// frame is the execution state of one chunk run.
type frame struct {
	chunk  *Chunk
	base   int // first local slot
	sp     int // next free slot (absolute)
	pc     int
	outers []*Cell
	env    *Scope
	gen    *Generator // non-nil while running a generator

	blocks    []blockMarker
	err       *Error // pending error
	result    Value  // pending return value
	returning bool
	yielded   bool
	hasCells  bool // an xLOAD_LOCAL opened a cell over this frame
	line      int
}

// ---------------------------------------------------------------------------
// Engine: bytecode execution
// ---------------------------------------------------------------------------

// Engine executes chunks on one operand stack. An engine is not safe for
// concurrent use; run independent executions on separate engines.
type Engine struct {
	rt     *Runtime
	config Config

	stack     []Value
	openCells []*Cell        // parallel to stack
	openSlots *bitset.BitSet // slots with an open cell
	top       int            // base for host-initiated calls

	names     []string // pending named-argument names, "" = positional
	namedArgc int      // argument count produced by the last PARAM_END

	depth int
}

// NewEngine creates an engine bound to a runtime.
func NewEngine(rt *Runtime) *Engine {
	cfg := rt.config
	return &Engine{
		rt:        rt,
		config:    cfg,
		stack:     make([]Value, cfg.InitialStack),
		openCells: make([]*Cell, cfg.InitialStack),
		openSlots: bitset.New(uint(cfg.InitialStack)),
	}
}

// StackSize returns the current size of the operand stack backing array.
func (e *Engine) StackSize() int { return len(e.stack) }

// ensure grows the operand stack so that slot n-1 exists. The stack grows
// geometrically and never shrinks.
func (e *Engine) ensure(n int) error {
	if n <= len(e.stack) {
		return nil
	}
	if n > e.config.MaxStack {
		return fmt.Errorf("%w: need %d slots, limit %d", ErrStackOverflow, n, e.config.MaxStack)
	}
	size := len(e.stack) * 2
	if size < n {
		size = n
	}
	if size > e.config.MaxStack {
		size = e.config.MaxStack
	}
	stack := make([]Value, size)
	copy(stack, e.stack)
	cells := make([]*Cell, size)
	copy(cells, e.openCells)
	e.stack, e.openCells = stack, cells
	return nil
}

// setupArgs lays out a chunk's locals over argc arguments already stored at
// base: surplus arguments are dropped (or packed for varargs) and every
// remaining local starts as null.
func (e *Engine) setupArgs(c *Chunk, base, argc int) error {
	need := base + c.MaxStack
	if base+argc > need {
		need = base + argc
	}
	if base+c.NumLocals > need {
		need = base + c.NumLocals
	}
	if err := e.ensure(need); err != nil {
		return err
	}
	stack := e.stack
	if c.VarArgs && c.NumArgs > 0 {
		last := c.NumArgs - 1
		var rest []Value
		if argc > last {
			rest = make([]Value, argc-last)
			copy(rest, stack[base+last:base+argc])
		}
		stack[base+last] = NewArray(rest...)
		for i := base + last + 1; i < base+argc; i++ {
			stack[i] = nil
		}
		if argc < c.NumArgs {
			for i := base + argc; i < base+last; i++ {
				stack[i] = Null
			}
		}
		argc = c.NumArgs
	} else if argc > c.NumArgs {
		for i := base + c.NumArgs; i < base+argc; i++ {
			stack[i] = nil
		}
		argc = c.NumArgs
	}
	for i := base + argc; i < base+c.NumLocals; i++ {
		stack[i] = Null
	}
	return nil
}

func (e *Engine) newFrame(c *Chunk, base int, outers []*Cell, env *Scope) *frame {
	return &frame{
		chunk:  c,
		base:   base,
		sp:     base + c.NumLocals,
		outers: outers,
		env:    env,
	}
}

// execute runs a frame to completion (or suspension) and tears it down.
func (e *Engine) execute(f *frame) (Value, error) {
	e.depth++
	if e.config.MaxFrameDepth > 0 && e.depth > e.config.MaxFrameDepth {
		e.depth--
		if g := f.gen; g != nil {
			g.blocks = f.blocks
			e.parkCells(f, g)
		}
		e.teardown(f)
		return nil, fmt.Errorf("%w: call depth exceeds %d", ErrStackOverflow, e.config.MaxFrameDepth)
	}
	v, err := e.run(f)
	if f.gen != nil {
		e.suspendOrExpire(f, err)
	}
	e.teardown(f)
	e.depth--
	return v, err
}

// teardown closes open cells over the frame's slots and clears them.
func (e *Engine) teardown(f *frame) {
	e.closeCells(f)
	end := f.sp
	if limit := f.base + f.chunk.NumLocals; end < limit {
		end = limit
	}
	if end > len(e.stack) {
		end = len(e.stack)
	}
	clear(e.stack[f.base:end])
}

// closeCells closes every open cell at or above the frame base. Frames above
// f have already been torn down, so all such cells belong to f.
func (e *Engine) closeCells(f *frame) {
	if !f.hasCells {
		return
	}
	for i, ok := e.openSlots.NextSet(uint(f.base)); ok; i, ok = e.openSlots.NextSet(i + 1) {
		if c := e.openCells[i]; c != nil {
			c.close()
			e.openCells[i] = nil
		}
		e.openSlots.Clear(i)
	}
	f.hasCells = false
}

// openCell returns the open cell aliasing slot, creating it on first use.
func (e *Engine) openCell(f *frame, slot int) *Cell {
	if c := e.openCells[slot]; c != nil {
		return c
	}
	c := newOpenCell(e, slot)
	e.openCells[slot] = c
	e.openSlots.Set(uint(slot))
	f.hasCells = true
	return c
}

// ---------------------------------------------------------------------------
// Stack operations
// ---------------------------------------------------------------------------

func (e *Engine) push(f *frame, v Value) {
	e.stack[f.sp] = v
	f.sp++
}

func (e *Engine) pop(f *frame) Value {
	f.sp--
	v := e.stack[f.sp]
	e.stack[f.sp] = nil
	if v == nil {
		return Null
	}
	return v
}

func (e *Engine) peek(f *frame) Value {
	return orNull(e.stack[f.sp-1])
}

// popN removes the top n values, returning a copy in stack order.
func (e *Engine) popN(f *frame, n int) []Value {
	vals := make([]Value, n)
	start := f.sp - n
	for i := range vals {
		vals[i] = orNull(e.stack[start+i])
	}
	clear(e.stack[start:f.sp])
	f.sp = start
	return vals
}

// ---------------------------------------------------------------------------
// Dispatch loop
// ---------------------------------------------------------------------------

// run executes f until it returns, yields, or finishes with an error.
func (e *Engine) run(f *frame) (Value, error) {
	for !e.dispatch(f) {
	}
	if f.err != nil {
		f.err.Trace = append(f.err.Trace, TraceFrame{Name: f.chunk.Name, Source: f.chunk.Source, Line: f.line})
		return nil, f.err
	}
	return orNull(f.result), nil
}

// dispatch executes instructions until the frame completes. It reports
// false when it stopped because a panic was recovered; the panic has then
// been converted to a pending error and the loop must be re-entered.
func (e *Engine) dispatch(f *frame) (done bool) {
	defer func() {
		if r := recover(); r != nil {
			e.fail(f, panicError(r))
			done = false
		}
	}()

	c := f.chunk
	code := c.Code
	for {
		if f.pc >= len(code) {
			if e.unwind(f) {
				continue
			}
			return true
		}

		instr := code[f.pc]
		f.pc++
		op := instr.Opcode()
		var err error

		switch op {

		// --- stack ---

		case OpPOP:
			e.pop(f)

		case OpDUP:
			e.push(f, e.peek(f))

		case OpSWAP:
			s := e.stack
			s[f.sp-1], s[f.sp-2] = s[f.sp-2], s[f.sp-1]

		case OpROTL:
			n := int(instr.ArgX())
			if n > 1 {
				s := e.stack[f.sp-n : f.sp]
				first := s[0]
				copy(s, s[1:])
				s[n-1] = first
			}

		case OpLINE:
			f.line = int(instr.ArgX())
			if l := e.rt.listener; l != nil {
				l.OnLine(DebugEvent{Source: c.Source, Line: f.line, PC: f.pc - 1, Chunk: c})
			}

		// --- loads and stores ---

		case OpLoadConst:
			e.push(f, c.Constants[instr.ArgX()])

		case OpLoadLocal:
			e.push(f, orNull(e.stack[f.base+int(instr.ArgX())]))

		case OpLoadOuter:
			e.push(f, orNull(f.outers[instr.ArgX()].Get()))

		case OpLoadNull:
			e.push(f, Null)

		case OpLoadTrue:
			e.push(f, True)

		case OpLoadFalse:
			e.push(f, False)

		case OpLoadName:
			name := ""
			if k := instr.ArgX(); k != MaxArgX {
				name, err = c.constantString(k)
			}
			e.names = append(e.names, name)

		case OpParamEnd:
			err = e.permuteNamed(f, int(instr.ArgX()))

		case OpStoreLocal:
			e.stack[f.base+int(instr.ArgX())] = e.pop(f)

		case OpStoreOuter:
			f.outers[instr.ArgX()].Set(e.pop(f))

		case OpXLoadOuter, OpXLoadLocal:
			err = fmt.Errorf("%s outside a capture list at pc %d", op, f.pc-1)

		// --- globals ---

		case OpGetGlobal:
			var name string
			if name, err = c.constantString(instr.ArgX()); err == nil {
				e.push(f, f.env.Get(name))
			}

		case OpSetGlobal:
			var name string
			if name, err = c.constantString(instr.ArgX()); err == nil {
				f.env.Assign(name, e.pop(f))
			}

		case OpDefGlobal:
			var name string
			if name, err = c.constantString(instr.ArgX()); err == nil {
				f.env.Define(name, e.pop(f))
			}

		// --- member and index access ---

		case OpGet:
			key := e.pop(f)
			obj := e.pop(f)
			var v Value
			if v, err = GetMember(obj, key); err == nil {
				e.push(f, v)
			}

		case OpSet:
			v := e.pop(f)
			key := e.pop(f)
			obj := e.pop(f)
			if err = SetMember(obj, key, v); err == nil {
				e.push(f, v)
			}

		case OpGetK:
			obj := e.pop(f)
			var v Value
			if v, err = GetMember(obj, c.Constants[instr.ArgX()]); err == nil {
				e.push(f, v)
			}

		case OpSetK:
			v := e.pop(f)
			obj := e.pop(f)
			if err = SetMember(obj, c.Constants[instr.ArgX()], v); err == nil {
				e.push(f, v)
			}

		case OpIdx:
			idx := e.pop(f)
			obj := e.pop(f)
			var v Value
			if v, err = Index(obj, idx); err == nil {
				e.push(f, v)
			}

		case OpSIdx:
			v := e.pop(f)
			idx := e.pop(f)
			obj := e.pop(f)
			if err = SetIndex(obj, idx, v); err == nil {
				e.push(f, v)
			}

		// --- construction ---

		case OpNewArray:
			e.push(f, NewArray(e.popN(f, int(instr.ArgX()))...))

		case OpNewMap:
			pairs := e.popN(f, 2*int(instr.ArgX()))
			m := NewMap()
			for i := 0; i < len(pairs); i += 2 {
				m.Put(pairs[i], pairs[i+1])
			}
			e.push(f, m)

		case OpNewObj:
			err = e.newObject(f, instr)

		case OpFuncDef, OpGenDef, OpClassDef, OpNamespaceDef:
			err = e.define(f, op, instr.ArgX())

		// --- control flow ---

		case OpJmp:
			f.pc += int(instr.ArgSX())

		case OpIfEq:
			if !Truthy(e.pop(f)) {
				f.pc += int(instr.ArgSX())
			}

		case OpIfNeq:
			if Truthy(e.pop(f)) {
				f.pc += int(instr.ArgSX())
			}

		case OpRet:
			f.result = e.pop(f)
			f.returning = true
			f.pc = len(code)

		case OpYield:
			v := e.pop(f)
			if f.gen == nil {
				err = fmt.Errorf("yield outside a generator")
				break
			}
			f.result = v
			f.yielded = true
			return true

		case OpTailCall:
			err = e.tailCall(f, int(instr.Arg1()))

		case OpInvoke:
			argc := int(instr.Arg1())
			if instr.Arg2()&InvokeNamed != 0 {
				argc = e.namedArgc
			}
			err = e.invokeOnStack(f, argc)

		// --- exception blocks ---

		case OpInitCatchBlock:
			f.blocks = append(f.blocks, blockMarker{pc: f.pc + int(instr.ArgSX()), kind: blockCatch, sp: f.sp - f.base, names: len(e.names)})

		case OpInitFinallyBlock:
			f.blocks = append(f.blocks, blockMarker{pc: f.pc + int(instr.ArgSX()), kind: blockFinally, sp: f.sp - f.base, names: len(e.names)})

		case OpEndBlock:
			e.endBlock(f, instr.Arg1())

		case OpThrow:
			err = ThrownError(e.pop(f))

		// --- operators ---

		case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpBSL, OpBSR, OpXor, OpBOr, OpBAnd:
			b := e.pop(f)
			a := e.pop(f)
			var v Value
			if v, err = Arith(op, a, b); err == nil {
				e.push(f, v)
			}

		case OpNeg, OpBNot, OpNot:
			var v Value
			if v, err = Unary(op, e.pop(f)); err == nil {
				e.push(f, v)
			}

		case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
			b := e.pop(f)
			a := e.pop(f)
			var v Value
			if v, err = Compare(op, a, b); err == nil {
				e.push(f, v)
			}

		case OpIsA:
			name := e.pop(f)
			v := e.pop(f)
			e.push(f, Bool(IsA(v, name.String())))

		default:
			err = fmt.Errorf("%w: 0x%02X at pc %d", ErrUnknownOpcode, byte(op), f.pc-1)
		}

		if err != nil {
			e.fail(f, err)
			continue
		}
		if e.config.CheckStackBounds && op != OpParamEnd && f.sp-f.base > c.MaxStack {
			log.Warningf("%s: operand depth %d exceeds declared max stack %d at pc %d", c.Name, f.sp-f.base, c.MaxStack, f.pc-1)
			e.fail(f, fmt.Errorf("%w: depth %d, declared %d", ErrStackBounds, f.sp-f.base, c.MaxStack))
		}
	}
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("internal error: %w", err)
	}
	return fmt.Errorf("internal error: %v", r)
}
