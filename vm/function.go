package vm

import "fmt"

// ---------------------------------------------------------------------------
// Callable values
// ---------------------------------------------------------------------------

// Function is a closure: a function chunk plus the cells it captured and
// the runtime scope it was defined in.
type Function struct {
	Chunk  *Chunk
	Outers []*Cell
	Env    *Scope
}

func (f *Function) Type() Type { return TypeFunction }

func (f *Function) String() string {
	if f.Chunk.Name == "" {
		return "<function>"
	}
	return fmt.Sprintf("<function %s>", f.Chunk.Name)
}

// NativeFunction is a host function callable from scripts.
type NativeFunction struct {
	Name   string
	Params []string // optional, enables named arguments
	Fn     func(args []Value) (Value, error)
}

// NewNativeFunction wraps fn as a script-callable value.
func NewNativeFunction(name string, fn func(args []Value) (Value, error), params ...string) *NativeFunction {
	return &NativeFunction{Name: name, Params: params, Fn: fn}
}

func (f *NativeFunction) Type() Type     { return TypeNativeFunction }
func (f *NativeFunction) String() string { return fmt.Sprintf("<native %s>", f.Name) }

// Generator is a resumable function instance. Each GEN_DEF produces a new
// instance with a private chunk clone and private local storage; calling the
// instance resumes it.
type Generator struct {
	chunk   *Chunk
	outers  []*Cell
	env     *Scope
	locals  []Value
	cells   []*Cell // open cells over locals while suspended, by local index
	blocks  []blockMarker
	started bool
	expired bool
}

func newGenerator(c *Chunk, outers []*Cell, env *Scope) *Generator {
	return &Generator{
		chunk:  c.cloneForGenerator(),
		outers: outers,
		env:    env,
		locals: make([]Value, c.NumLocals),
	}
}

func (g *Generator) Type() Type { return TypeGenerator }

func (g *Generator) String() string {
	if g.chunk.Name == "" {
		return "<generator>"
	}
	return fmt.Sprintf("<generator %s>", g.chunk.Name)
}

// Expired reports whether the generator ran to completion.
func (g *Generator) Expired() bool { return g.expired }

// paramNames returns the declared parameter names of a callable, if known.
func paramNames(v Value) []string {
	switch c := v.(type) {
	case *Function:
		return c.Chunk.ParamNames
	case *Generator:
		return c.chunk.ParamNames
	case *NativeFunction:
		return c.Params
	case *ClassDefinition:
		return c.Params
	}
	return nil
}
