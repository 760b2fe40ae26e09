package vm

import (
	"sort"
	"strings"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// ---------------------------------------------------------------------------
// Scope: runtime name resolution
// ---------------------------------------------------------------------------

// ScopeKind distinguishes the three kinds of runtime scope.
type ScopeKind uint8

const (
	ScopeGlobal    ScopeKind = iota // one per runtime
	ScopeObject                     // class instance members
	ScopeNamespace                  // namespace members
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeGlobal:
		return "global"
	case ScopeObject:
		return "object"
	case ScopeNamespace:
		return "namespace"
	}
	return "unknown"
}

// Scope is a runtime name store with its own class and namespace
// registries. Stores are sharded concurrent maps: single reads and writes
// are atomic, multi-step sequences are not.
type Scope struct {
	kind   ScopeKind
	parent *Scope
	super  *Scope // superclass instance scope, searched before parent

	values     cmap.ConcurrentMap[string, Value]
	classes    cmap.ConcurrentMap[string, *ClassDefinition]
	namespaces cmap.ConcurrentMap[string, *Namespace]
}

// NewScope creates an empty scope.
func NewScope(kind ScopeKind, parent *Scope) *Scope {
	return &Scope{
		kind:       kind,
		parent:     parent,
		values:     cmap.New[Value](),
		classes:    cmap.New[*ClassDefinition](),
		namespaces: cmap.New[*Namespace](),
	}
}

// NewGlobalScope creates the root scope of a runtime.
func NewGlobalScope() *Scope {
	return NewScope(ScopeGlobal, nil)
}

// Kind returns the scope kind.
func (s *Scope) Kind() ScopeKind { return s.kind }

// Parent returns the enclosing scope, nil for the global scope.
func (s *Scope) Parent() *Scope { return s.parent }

// Global returns the root scope.
func (s *Scope) Global() *Scope {
	for s.parent != nil {
		s = s.parent
	}
	return s
}

// Clone returns a private copy of s for a new class instance. The global
// scope is never copied: there is exactly one per runtime.
func (s *Scope) Clone() *Scope {
	if s.kind == ScopeGlobal {
		return s
	}
	cp := NewScope(s.kind, s.parent)
	cp.super = s.super
	cp.values.MSet(s.values.Items())
	cp.classes.MSet(s.classes.Items())
	cp.namespaces.MSet(s.namespaces.Items())
	return cp
}

// ---------------------------------------------------------------------------
// Values
// ---------------------------------------------------------------------------

// Define binds name in this scope.
func (s *Scope) Define(name string, v Value) {
	s.values.Set(name, orNull(v))
}

// Has reports whether name is bound directly in this scope.
func (s *Scope) Has(name string) bool {
	return s.values.Has(name)
}

// Lookup finds name in this scope, its superclass scopes, then its
// ancestors. Qualified names descend namespaces. Namespaces visible from
// the scope also resolve as values.
func (s *Scope) Lookup(name string) (Value, bool) {
	if isQualified(name) {
		return s.lookupQualified(name)
	}
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.member(name); ok {
			return v, true
		}
		if ns, ok := sc.namespaces.Get(name); ok {
			return ns, true
		}
		if cd, ok := sc.classes.Get(name); ok {
			return cd, true
		}
	}
	return Null, false
}

// Get returns the value bound to name, or Null when unbound.
func (s *Scope) Get(name string) Value {
	v, _ := s.Lookup(name)
	return v
}

// member looks in this scope and its superclass chain only.
func (s *Scope) member(name string) (Value, bool) {
	for sc := s; sc != nil; sc = sc.super {
		if v, ok := sc.values.Get(name); ok {
			return v, true
		}
	}
	return nil, false
}

// setMember updates an existing binding in this scope or its superclass
// chain. It reports false when no binding exists.
func (s *Scope) setMember(name string, v Value) bool {
	for sc := s; sc != nil; sc = sc.super {
		if sc.values.Has(name) {
			sc.values.Set(name, v)
			return true
		}
	}
	return false
}

// Assign writes to name. An existing binding in an enclosing object scope
// (including inherited members) is updated in place; otherwise the name is
// stored in the global scope.
func (s *Scope) Assign(name string, v Value) {
	v = orNull(v)
	if isQualified(name) {
		if ns, last, ok := s.namespaceFor(name); ok {
			ns.Scope.Define(last, v)
			return
		}
	}
	for sc := s; sc != nil; sc = sc.parent {
		if sc.kind == ScopeGlobal {
			break
		}
		if sc.kind == ScopeObject && sc.setMember(name, v) {
			return
		}
		if sc.kind == ScopeNamespace && sc.values.Has(name) {
			sc.values.Set(name, v)
			return
		}
	}
	s.Global().Define(name, v)
}

// Names returns the names bound directly in this scope, sorted.
func (s *Scope) Names() []string {
	keys := s.values.Keys()
	sort.Strings(keys)
	return keys
}

// LoadNatives binds every entry of natives into the scope. Library layers
// use it to install host functions and values.
func (s *Scope) LoadNatives(natives map[string]Value) {
	for name, v := range natives {
		s.Define(name, v)
	}
}

// ---------------------------------------------------------------------------
// Qualified names
// ---------------------------------------------------------------------------

func isQualified(name string) bool {
	return strings.ContainsAny(name, ":.")
}

func splitQualified(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool { return r == ':' || r == '.' })
}

// namespaceFor resolves every segment but the last as a namespace path.
func (s *Scope) namespaceFor(name string) (*Namespace, string, bool) {
	parts := splitQualified(name)
	if len(parts) < 2 {
		return nil, "", false
	}
	ns, ok := s.ResolveQualifiedName(strings.Join(parts[:len(parts)-1], ":"))
	if !ok {
		return nil, "", false
	}
	return ns, parts[len(parts)-1], true
}

func (s *Scope) lookupQualified(name string) (Value, bool) {
	ns, last, ok := s.namespaceFor(name)
	if !ok {
		return Null, false
	}
	if v, ok := ns.Scope.values.Get(last); ok {
		return v, true
	}
	if child, ok := ns.Scope.namespaces.Get(last); ok {
		return child, true
	}
	if cd, ok := ns.Scope.classes.Get(last); ok {
		return cd, true
	}
	return Null, false
}

// ResolveQualifiedName descends a colon or dot separated namespace path.
// The first segment is searched outward from s; later segments only in the
// namespace found so far. A missing segment yields false, never an error.
func (s *Scope) ResolveQualifiedName(path string) (*Namespace, bool) {
	parts := splitQualified(path)
	if len(parts) == 0 {
		return nil, false
	}
	var ns *Namespace
	for sc := s; sc != nil && ns == nil; sc = sc.parent {
		ns, _ = sc.namespaces.Get(parts[0])
	}
	if ns == nil {
		return nil, false
	}
	for _, seg := range parts[1:] {
		next, ok := ns.Scope.namespaces.Get(seg)
		if !ok {
			return nil, false
		}
		ns = next
	}
	return ns, true
}

// ---------------------------------------------------------------------------
// Registries
// ---------------------------------------------------------------------------

// RegisterClass adds a class definition to this scope's registry.
func (s *Scope) RegisterClass(cd *ClassDefinition) {
	s.classes.Set(cd.Name, cd)
}

// ResolveClassDefinition finds a class by name. Unqualified names search the
// scope chain outward; qualified names resolve the namespace first and then
// consult only its registry.
func (s *Scope) ResolveClassDefinition(name string) (*ClassDefinition, bool) {
	if isQualified(name) {
		ns, last, ok := s.namespaceFor(name)
		if !ok {
			return nil, false
		}
		return ns.Scope.classes.Get(last)
	}
	for sc := s; sc != nil; sc = sc.parent {
		if cd, ok := sc.classes.Get(name); ok {
			return cd, true
		}
		for sup := sc.super; sup != nil; sup = sup.super {
			if cd, ok := sup.classes.Get(name); ok {
				return cd, true
			}
		}
	}
	return nil, false
}

// CreateNamespace returns the namespace called name registered in s,
// creating it when absent. It is the only operation that creates namespaces.
func (s *Scope) CreateNamespace(name string) *Namespace {
	return s.namespaces.Upsert(name, nil, func(exist bool, cur, _ *Namespace) *Namespace {
		if exist {
			return cur
		}
		return &Namespace{Name: name, Scope: NewScope(ScopeNamespace, s)}
	})
}

// Namespaces returns the names of namespaces registered in s, sorted.
func (s *Scope) Namespaces() []string {
	keys := s.namespaces.Keys()
	sort.Strings(keys)
	return keys
}
