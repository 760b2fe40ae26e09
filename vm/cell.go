package vm

// ---------------------------------------------------------------------------
// Cell: storage for a captured variable
// ---------------------------------------------------------------------------

// Cell holds a variable captured by a closure.
//
// A cell starts open, aliasing the variable's live storage: a slot on an
// engine's operand stack, or the saved locals of a suspended generator. It
// closes exactly once when the owning frame is torn down: the current value
// is copied into the cell and the alias is dropped. A closed cell never
// reopens.
type Cell struct {
	owner *Engine    // non-nil while open on a stack
	gen   *Generator // non-nil while open over a suspended generator
	index int        // absolute stack slot, or local index when parked
	value Value      // owned value once closed
}

// NewClosedCell creates a cell that already owns v.
func NewClosedCell(v Value) *Cell {
	return &Cell{value: orNull(v)}
}

func newOpenCell(e *Engine, index int) *Cell {
	return &Cell{owner: e, index: index}
}

// Open reports whether the cell still aliases live storage.
func (c *Cell) Open() bool {
	return c.owner != nil || c.gen != nil
}

// Get returns the variable's current value.
func (c *Cell) Get() Value {
	switch {
	case c.owner != nil:
		return c.owner.stack[c.index]
	case c.gen != nil:
		return c.gen.locals[c.index]
	}
	return c.value
}

// Set updates the variable. Writes to an open cell go to the aliased slot.
func (c *Cell) Set(v Value) {
	switch {
	case c.owner != nil:
		c.owner.stack[c.index] = v
	case c.gen != nil:
		c.gen.locals[c.index] = v
	default:
		c.value = v
	}
}

// park moves an open cell from its stack slot to local index i of a
// suspended generator.
func (c *Cell) park(g *Generator, i int) {
	c.owner, c.gen, c.index = nil, g, i
}

// attach moves a parked cell back onto a stack slot.
func (c *Cell) attach(e *Engine, slot int) {
	c.owner, c.gen, c.index = e, nil, slot
}

// close detaches the cell from its storage, keeping the current value.
func (c *Cell) close() {
	if !c.Open() {
		return
	}
	c.value = orNull(c.Get())
	c.owner, c.gen = nil, nil
}
