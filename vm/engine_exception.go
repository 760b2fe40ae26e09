package vm

// ---------------------------------------------------------------------------
// Exception unwinding
// ---------------------------------------------------------------------------
//
// A failure never unwinds the Go stack. It records a pending error on the
// frame and moves pc to the end of the chunk. At that exit point the block
// stack is consulted: a catch marker resumes only when an error is pending,
// a finally marker always resumes. The frame really exits once the block
// stack is empty.

// fail records err as the frame's pending error and forces exit. An error
// raised while another is pending (a throwing finally body) replaces it, as
// does an error raised while a return is pending.
func (e *Engine) fail(f *frame, err error) {
	rerr := WrapError(err)
	line := f.line
	if line == 0 {
		line = f.chunk.Debug.LineFor(f.pc - 1)
	}
	rerr.locate(f.chunk.Source, line)
	f.err = rerr
	f.returning = false
	f.result = nil
	f.pc = len(f.chunk.Code)
}

// unwind pops block markers at the frame's exit point. It reports true when
// execution resumes at a marker.
func (e *Engine) unwind(f *frame) bool {
	for len(f.blocks) > 0 {
		m := f.blocks[len(f.blocks)-1]
		f.blocks = f.blocks[:len(f.blocks)-1]
		switch m.kind {
		case blockCatch:
			if f.err == nil {
				continue
			}
			e.restore(f, m)
			e.push(f, f.err)
			f.pc = m.pc
			return true
		case blockFinally:
			e.restore(f, m)
			f.pc = m.pc
			return true
		}
	}
	return false
}

// restore resets the operand stack and named-argument stack to their
// heights when the marker was installed.
func (e *Engine) restore(f *frame, m blockMarker) {
	sp := f.base + m.sp
	if f.sp > sp {
		clear(e.stack[sp:f.sp])
	}
	f.sp = sp
	if len(e.names) > m.names {
		e.names = e.names[:m.names]
	}
}

// endBlock implements END_BLOCK.
func (e *Engine) endBlock(f *frame, kind uint32) {
	switch kind {
	case EndBlockPop:
		if len(f.blocks) > 0 {
			f.blocks = f.blocks[:len(f.blocks)-1]
		}
	case EndBlockCatch:
		f.err = nil
	case EndBlockFinally:
		if f.err != nil || f.returning {
			f.pc = len(f.chunk.Code)
		}
	}
}
