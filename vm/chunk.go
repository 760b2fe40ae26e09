package vm

import "fmt"

// ---------------------------------------------------------------------------
// Chunk: a compiled unit of bytecode
// ---------------------------------------------------------------------------

// ChunkKind tags what a chunk was compiled from. The kind decides how the
// engine enters the chunk; everything else about chunks is shared.
type ChunkKind uint8

const (
	KindScript    ChunkKind = iota // top-level program
	KindFunction                   // function literal
	KindGenerator                  // generator literal
	KindClass                      // class body (constructor)
	KindNamespace                  // namespace body
)

func (k ChunkKind) String() string {
	switch k {
	case KindScript:
		return "script"
	case KindFunction:
		return "function"
	case KindGenerator:
		return "generator"
	case KindClass:
		return "class"
	case KindNamespace:
		return "namespace"
	default:
		return fmt.Sprintf("ChunkKind(%d)", uint8(k))
	}
}

// OuterDesc locates a captured variable: the slot in the defining scope and
// how many scopes out that definition lives.
type OuterDesc struct {
	Index int // local slot in the defining scope
	Hops  int // scope distance from the capturing scope
}

// ClassInfo carries the declaration of a class body chunk.
type ClassInfo struct {
	Name       string   // class name
	SuperName  string   // superclass name, "" when none
	Interfaces []string // declared interface names
	Params     []string // constructor parameter names
	SuperArgs  []string // names passed to the superclass constructor
}

// LineEntry maps an instruction index to a source line.
type LineEntry struct {
	PC   int
	Line int
}

// LocalRange records where a named local slot is live.
type LocalRange struct {
	Name    string
	Slot    int
	StartPC int
	EndPC   int
}

// DebugInfo is the optional debug table of a chunk.
type DebugInfo struct {
	Lines  []LineEntry
	Locals []LocalRange
}

// LineFor returns the source line of the instruction at pc, or 0.
func (d *DebugInfo) LineFor(pc int) int {
	if d == nil {
		return 0
	}
	line := 0
	for _, e := range d.Lines {
		if e.PC > pc {
			break
		}
		line = e.Line
	}
	return line
}

// Chunk is an executable instruction sequence plus its metadata.
// Chunks are immutable once compiled and may be shared between engines;
// generator instances work on a private clone.
type Chunk struct {
	Kind       ChunkKind
	Name       string
	Source     string
	Code       []Instruction
	NumArgs    int
	VarArgs    bool
	ParamNames []string
	NumLocals  int
	Outers     []OuterDesc
	Constants  []Value
	Inner      []*Chunk
	MaxStack   int
	Class      *ClassInfo
	Debug      *DebugInfo

	// resumePC is where a suspended generator continues. Only meaningful on
	// a generator's private clone.
	resumePC int
}

// cloneForGenerator returns a shallow copy sharing code and constants but
// owning its own resume position.
func (c *Chunk) cloneForGenerator() *Chunk {
	cp := *c
	cp.resumePC = 0
	return &cp
}

// Walk visits c and every nested chunk depth-first.
func (c *Chunk) Walk(fn func(depth int, c *Chunk)) {
	var walk func(int, *Chunk)
	walk = func(d int, ch *Chunk) {
		fn(d, ch)
		for _, in := range ch.Inner {
			walk(d+1, in)
		}
	}
	walk(0, c)
}

func (c *Chunk) constantString(idx uint32) (string, error) {
	if int(idx) >= len(c.Constants) {
		return "", fmt.Errorf("constant index %d out of range (%d constants)", idx, len(c.Constants))
	}
	s, ok := c.Constants[idx].(String)
	if !ok {
		return "", fmt.Errorf("constant %d is %s, not a string", idx, c.Constants[idx].Type())
	}
	return string(s), nil
}

func (c *Chunk) inner(idx uint32) (*Chunk, error) {
	if int(idx) >= len(c.Inner) {
		return nil, fmt.Errorf("inner chunk index %d out of range (%d chunks)", idx, len(c.Inner))
	}
	return c.Inner[idx], nil
}
