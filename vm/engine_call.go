package vm

import (
	"fmt"
	"slices"
)

// ---------------------------------------------------------------------------
// Calling convention
// ---------------------------------------------------------------------------
//
// A caller pushes the callee and then its arguments. The callee's frame
// base is the first argument slot, so arguments become the first locals in
// place. Missing arguments are null; surplus arguments are dropped unless
// the callee is varargs.

// invokeOnStack calls the callee sitting below argc arguments on f's stack
// and replaces callee and arguments with the result.
func (e *Engine) invokeOnStack(f *frame, argc int) error {
	calleeIdx := f.sp - argc - 1
	callee := orNull(e.stack[calleeIdx])
	result, err := e.invoke(callee, calleeIdx+1, argc)
	clear(e.stack[calleeIdx:f.sp])
	f.sp = calleeIdx
	if err != nil {
		return err
	}
	e.push(f, result)
	return nil
}

// invoke calls callee with argc arguments stored at base.
func (e *Engine) invoke(callee Value, base, argc int) (Value, error) {
	switch fn := callee.(type) {
	case *Function:
		if err := e.setupArgs(fn.Chunk, base, argc); err != nil {
			return nil, err
		}
		return e.execute(e.newFrame(fn.Chunk, base, fn.Outers, fn.Env))

	case *Generator:
		return e.resume(fn, base, argc)

	case *NativeFunction:
		args := slices.Clone(e.stack[base : base+argc])
		for i, a := range args {
			args[i] = orNull(a)
		}
		e.top = base + argc
		v, err := fn.Fn(args)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fn.Name, err)
		}
		return orNull(v), nil

	case *ClassDefinition:
		args := slices.Clone(e.stack[base : base+argc])
		e.top = base + argc
		return e.instantiate(fn, args)
	}
	return nil, fmt.Errorf("%w: %s", ErrNotCallable, callee.Type())
}

// callChunk runs c with args copied above every live frame. Host calls,
// constructors and namespace bodies enter the engine this way.
func (e *Engine) callChunk(c *Chunk, outers []*Cell, env *Scope, args []Value) (Value, error) {
	base := e.top
	if err := e.ensure(base + len(args)); err != nil {
		return nil, err
	}
	copy(e.stack[base:], args)
	if err := e.setupArgs(c, base, len(args)); err != nil {
		return nil, err
	}
	v, err := e.execute(e.newFrame(c, base, outers, env))
	e.top = base
	return v, err
}

// Call invokes any callable value with args. Native functions use it to
// call back into scripts.
func (e *Engine) Call(callee Value, args ...Value) (Value, error) {
	base := e.top
	if err := e.ensure(base + len(args)); err != nil {
		return nil, err
	}
	copy(e.stack[base:], args)
	v, err := e.invoke(orNull(callee), base, len(args))
	clear(e.stack[base : base+len(args)])
	e.top = base
	return v, err
}

// ---------------------------------------------------------------------------
// Named arguments
// ---------------------------------------------------------------------------

// permuteNamed reorders the n arguments on top of the stack into the
// callee's declared parameter order. Positional arguments keep their
// position, names that match no parameter are dropped, and parameters
// nobody supplied are null. The resulting count is left in namedArgc for
// the INVOKE that follows.
func (e *Engine) permuteNamed(f *frame, n int) error {
	if n > len(e.names) {
		return fmt.Errorf("PARAM_END %d with %d pending names", n, len(e.names))
	}
	names := e.names[len(e.names)-n:]
	e.names = e.names[:len(e.names)-n]

	start := f.sp - n
	params := paramNames(e.stack[start-1])
	if params == nil {
		e.namedArgc = n
		return nil
	}

	args := make([]Value, len(params))
	for i := range args {
		args[i] = Null
	}
	for i, name := range names {
		v := orNull(e.stack[start+i])
		if name == "" {
			if i < len(args) {
				args[i] = v
			}
			continue
		}
		if idx := slices.Index(params, name); idx >= 0 {
			args[idx] = v
		}
	}

	if err := e.ensure(start + len(args)); err != nil {
		return err
	}
	clear(e.stack[start:f.sp])
	copy(e.stack[start:], args)
	f.sp = start + len(args)
	e.namedArgc = len(args)
	return nil
}

// ---------------------------------------------------------------------------
// Tail calls
// ---------------------------------------------------------------------------

// tailCall reuses f for a self-recursive call. The compiler only emits
// TAIL_CALL for calls with the frame's own shape; if the callee turns out
// to be something else at run time the call is made normally and its
// result returned.
func (e *Engine) tailCall(f *frame, argc int) error {
	calleeIdx := f.sp - argc - 1
	callee := orNull(e.stack[calleeIdx])

	if fn, ok := callee.(*Function); ok && fn.Chunk == f.chunk && f.gen == nil {
		e.closeCells(f)
		base := f.base
		copy(e.stack[base:base+argc], e.stack[calleeIdx+1:f.sp])
		clear(e.stack[base+argc : f.sp])
		if err := e.setupArgs(fn.Chunk, base, argc); err != nil {
			return err
		}
		f.sp = base + fn.Chunk.NumLocals
		f.pc = 0
		f.blocks = f.blocks[:0]
		f.outers = fn.Outers
		f.env = fn.Env
		return nil
	}

	result, err := e.invoke(callee, calleeIdx+1, argc)
	clear(e.stack[calleeIdx:f.sp])
	f.sp = calleeIdx
	if err != nil {
		return err
	}
	f.result = result
	f.returning = true
	f.pc = len(f.chunk.Code)
	return nil
}

// ---------------------------------------------------------------------------
// Generators
// ---------------------------------------------------------------------------

// resume continues a generator. The first resume binds arguments as
// parameters; later resumes ignore arguments and restore the generator's
// private locals. An expired generator returns null.
func (e *Engine) resume(g *Generator, base, argc int) (Value, error) {
	if g.expired {
		clear(e.stack[base : base+argc])
		return Null, nil
	}
	c := g.chunk
	if !g.started {
		if err := e.setupArgs(c, base, argc); err != nil {
			return nil, err
		}
		g.started = true
	} else {
		clear(e.stack[base : base+argc])
		if err := e.ensure(base + c.MaxStack); err != nil {
			return nil, err
		}
		copy(e.stack[base:], g.locals)
	}

	f := e.newFrame(c, base, g.outers, g.env)
	f.gen = g
	e.attachCells(f, g)
	f.pc = c.resumePC
	f.blocks = g.blocks
	g.blocks = nil
	return e.execute(f)
}

// suspendOrExpire saves a generator's state after its frame stops. On a
// yield, open cells over the generator's locals are parked on its saved
// locals; otherwise they are closed by the teardown that follows.
func (e *Engine) suspendOrExpire(f *frame, err error) {
	g := f.gen
	if f.yielded && err == nil {
		copy(g.locals, e.stack[f.base:f.base+f.chunk.NumLocals])
		g.chunk.resumePC = f.pc
		g.blocks = slices.Clone(f.blocks)
		e.parkCells(f, g)
		return
	}
	g.expired = true
	g.chunk.resumePC = len(g.chunk.Code)
	g.locals = nil
	g.blocks = nil
}

// parkCells moves the open cells over a yielding generator's locals off the
// stack, so closures keep sharing the variables while it is suspended.
func (e *Engine) parkCells(f *frame, g *Generator) {
	if !f.hasCells {
		return
	}
	end := uint(f.base + f.chunk.NumLocals)
	for i, ok := e.openSlots.NextSet(uint(f.base)); ok && i < end; i, ok = e.openSlots.NextSet(i + 1) {
		if c := e.openCells[i]; c != nil {
			local := int(i) - f.base
			c.park(g, local)
			if g.cells == nil {
				g.cells = make([]*Cell, f.chunk.NumLocals)
			}
			g.cells[local] = c
			e.openCells[i] = nil
		}
		e.openSlots.Clear(i)
	}
}

// attachCells moves a resumed generator's parked cells onto the slots of
// its new frame.
func (e *Engine) attachCells(f *frame, g *Generator) {
	for i, c := range g.cells {
		if c == nil {
			continue
		}
		slot := f.base + i
		c.attach(e, slot)
		e.openCells[slot] = c
		e.openSlots.Set(uint(slot))
		f.hasCells = true
	}
	g.cells = nil
}

// ---------------------------------------------------------------------------
// Definitions
// ---------------------------------------------------------------------------

// captures consumes the capture pseudo-instructions following a *_DEF and
// returns the cells they describe.
func (e *Engine) captures(f *frame, inner *Chunk) ([]*Cell, error) {
	n := len(inner.Outers)
	if n == 0 {
		return nil, nil
	}
	code := f.chunk.Code
	cells := make([]*Cell, n)
	for i := range cells {
		if f.pc >= len(code) {
			return nil, fmt.Errorf("truncated capture list for %q", inner.Name)
		}
		in := code[f.pc]
		f.pc++
		switch in.Opcode() {
		case OpXLoadOuter:
			cells[i] = f.outers[in.ArgX()]
		case OpXLoadLocal:
			cells[i] = e.openCell(f, f.base+int(in.ArgX()))
		default:
			return nil, fmt.Errorf("malformed capture list for %q: %s", inner.Name, in.Opcode())
		}
	}
	return cells, nil
}

// define implements FUNC_DEF, GEN_DEF, CLASS_DEF and NAMESPACE_DEF.
func (e *Engine) define(f *frame, op Opcode, idx uint32) error {
	inner, err := f.chunk.inner(idx)
	if err != nil {
		return err
	}
	outers, err := e.captures(f, inner)
	if err != nil {
		return err
	}

	switch op {
	case OpFuncDef:
		e.push(f, &Function{Chunk: inner, Outers: outers, Env: f.env})

	case OpGenDef:
		e.push(f, newGenerator(inner, outers, f.env))

	case OpClassDef:
		info := inner.Class
		if info == nil {
			return fmt.Errorf("chunk %q has no class info", inner.Name)
		}
		cd := &ClassDefinition{
			Name:       info.Name,
			Interfaces: info.Interfaces,
			Params:     info.Params,
			SuperArgs:  info.SuperArgs,
			Body:       inner,
			Outers:     outers,
			Lexical:    f.env,
		}
		if info.SuperName != "" {
			super, ok := f.env.ResolveClassDefinition(info.SuperName)
			if !ok {
				return fmt.Errorf("class %s: unknown superclass %s", info.Name, info.SuperName)
			}
			cd.Super = super
		}
		f.env.RegisterClass(cd)

	case OpNamespaceDef:
		ns := f.env.CreateNamespace(inner.Name)
		e.top = f.sp
		if _, err := e.callChunk(inner, outers, ns.Scope, nil); err != nil {
			return err
		}
	}
	return nil
}

// newObject implements NEW_OBJ: script classes first, then host types
// unless the runtime is sandboxed.
func (e *Engine) newObject(f *frame, instr Instruction) error {
	name, err := f.chunk.constantString(instr.Arg1())
	if err != nil {
		return err
	}
	args := e.popN(f, int(instr.Arg2()))
	e.top = f.sp

	if cd, ok := f.env.ResolveClassDefinition(name); ok {
		obj, err := e.instantiate(cd, args)
		if err != nil {
			return err
		}
		e.push(f, obj)
		return nil
	}
	if e.config.Sandbox {
		return fmt.Errorf("%w: cannot construct host type %s in a sandboxed runtime", ErrPermission, name)
	}
	if e.rt.constructor == nil {
		return fmt.Errorf("no class named %s", name)
	}
	v, err := e.rt.constructor.Construct(name, args)
	if err != nil {
		return fmt.Errorf("new %s: %w", name, err)
	}
	e.push(f, orNull(v))
	return nil
}
