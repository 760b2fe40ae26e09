package compiler

import (
	"math"

	"github.com/chazu/leola/vm"
)

// ---------------------------------------------------------------------------
// Scope: compile-time name resolution
// ---------------------------------------------------------------------------

// ScopeKind decides how names declared in a scope are stored.
type ScopeKind uint8

const (
	// ScopeLocal is a function or generator body. Variables live in stack
	// slots and can be captured by nested functions.
	ScopeLocal ScopeKind = iota
	// ScopeObject is a class or namespace body. Variables are members
	// stored by name.
	ScopeObject
	// ScopeGlobal is the top level of a program. Variables are globals.
	ScopeGlobal
)

type localVar struct {
	name  string
	slot  int
	start int // pc where the variable became live
}

// Scope is the compile-time mirror of one chunk: its locals, the outer
// variables it captures, and its constant pool.
type Scope struct {
	kind   ScopeKind
	parent *Scope

	locals    []localVar // visible locals, innermost last
	marks     []int      // len(locals) at each open block
	numLocals int        // slots allocated so far; never reused

	outers []vm.OuterDesc

	members map[string]bool // names an object scope binds at run time

	constants  []vm.Value
	constIndex map[vm.Value]int
}

// NewScope creates a scope nested in parent (nil for the outermost).
func NewScope(kind ScopeKind, parent *Scope) *Scope {
	return &Scope{
		kind:       kind,
		parent:     parent,
		constIndex: make(map[vm.Value]int),
	}
}

// Kind returns the scope kind.
func (s *Scope) Kind() ScopeKind { return s.kind }

// Parent returns the enclosing scope.
func (s *Scope) Parent() *Scope { return s.parent }

// NumLocals returns the number of slots allocated.
func (s *Scope) NumLocals() int { return s.numLocals }

// Outers returns the outer descriptors registered so far.
func (s *Scope) Outers() []vm.OuterDesc { return s.outers }

// Constants returns the constant pool.
func (s *Scope) Constants() []vm.Value { return s.constants }

// ---------------------------------------------------------------------------
// Locals
// ---------------------------------------------------------------------------

// DeclareLocal allocates a new slot for name in the innermost block.
func (s *Scope) DeclareLocal(name string, pc int) int {
	slot := s.numLocals
	s.numLocals++
	s.locals = append(s.locals, localVar{name: name, slot: slot, start: pc})
	return slot
}

// DeclaredInBlock reports whether name is already declared in the innermost
// open block.
func (s *Scope) DeclaredInBlock(name string) bool {
	start := 0
	if len(s.marks) > 0 {
		start = s.marks[len(s.marks)-1]
	}
	for _, l := range s.locals[start:] {
		if l.name == name {
			return true
		}
	}
	return false
}

// OpenBlock starts a nested block; locals declared until CloseBlock go out
// of scope then.
func (s *Scope) OpenBlock() {
	s.marks = append(s.marks, len(s.locals))
}

// CloseBlock ends the innermost block and returns the locals it hid, so
// the caller can record their live ranges.
func (s *Scope) CloseBlock() []localVar {
	mark := s.marks[len(s.marks)-1]
	s.marks = s.marks[:len(s.marks)-1]
	gone := append([]localVar(nil), s.locals[mark:]...)
	s.locals = s.locals[:mark]
	return gone
}

// ResolveLocal returns the slot of name in this scope only. Only local
// scopes have addressable variables.
func (s *Scope) ResolveLocal(name string) (int, bool) {
	if s.kind != ScopeLocal {
		return 0, false
	}
	for i := len(s.locals) - 1; i >= 0; i-- {
		if s.locals[i].name == name {
			return s.locals[i].slot, true
		}
	}
	return 0, false
}

// DeclareMember records that an object scope binds name by name at run
// time: a constructor parameter or a member variable.
func (s *Scope) DeclareMember(name string) {
	if s.kind != ScopeObject {
		return
	}
	if s.members == nil {
		s.members = make(map[string]bool)
	}
	s.members[name] = true
}

// HasMember reports whether an object scope declares name.
func (s *Scope) HasMember(name string) bool { return s.members[name] }

// ---------------------------------------------------------------------------
// Outers
// ---------------------------------------------------------------------------

// ResolveOuter walks the enclosing scopes for a local called name. On the
// first match it registers an outer descriptor {slot, hops} in this scope
// and returns its index. Object and global scopes are passed through: their
// variables are resolved by name at run time. An object scope that declares
// name ends the walk, so its member shadows locals further out.
func (s *Scope) ResolveOuter(name string) (int, bool) {
	if s.HasMember(name) {
		return 0, false
	}
	hops := 0
	for p := s.parent; p != nil; p = p.parent {
		hops++
		if slot, ok := p.ResolveLocal(name); ok {
			return s.AddOuter(vm.OuterDesc{Index: slot, Hops: hops}), true
		}
		if p.HasMember(name) {
			return 0, false
		}
	}
	return 0, false
}

// AddOuter registers desc, reusing an identical registration.
func (s *Scope) AddOuter(desc vm.OuterDesc) int {
	for i, o := range s.outers {
		if o == desc {
			return i
		}
	}
	s.outers = append(s.outers, desc)
	return len(s.outers) - 1
}

// ---------------------------------------------------------------------------
// Constants
// ---------------------------------------------------------------------------

// AddConstant appends v to the constant pool, reusing an equal constant.
func (s *Scope) AddConstant(v vm.Value) int {
	// NaN never equals itself and -0 equals 0; neither may be merged.
	if r, ok := v.(vm.Real); ok && (math.IsNaN(float64(r)) || r == 0) {
		s.constants = append(s.constants, v)
		return len(s.constants) - 1
	}
	if i, ok := s.constIndex[v]; ok {
		return i
	}
	s.constants = append(s.constants, v)
	s.constIndex[v] = len(s.constants) - 1
	return len(s.constants) - 1
}
