package vm

import "fmt"

// Namespace is a named scope container. Nested namespaces are registered in
// the namespace's own scope.
type Namespace struct {
	Name  string
	Scope *Scope
}

func (ns *Namespace) Type() Type     { return TypeNamespace }
func (ns *Namespace) String() string { return fmt.Sprintf("<namespace %s>", ns.Name) }

// Member returns a value, class or nested namespace defined in ns.
func (ns *Namespace) Member(name string) (Value, bool) {
	if v, ok := ns.Scope.values.Get(name); ok {
		return v, true
	}
	if child, ok := ns.Scope.namespaces.Get(name); ok {
		return child, true
	}
	if cd, ok := ns.Scope.classes.Get(name); ok {
		return cd, true
	}
	return Null, false
}

// ---------------------------------------------------------------------------
// Host construction
// ---------------------------------------------------------------------------

// Constructor builds host values by type name for NEW_OBJ when no script
// class matches. Sandboxed engines never consult it.
type Constructor interface {
	Construct(name string, args []Value) (Value, error)
}

// ConstructorFunc adapts a function to Constructor.
type ConstructorFunc func(name string, args []Value) (Value, error)

func (f ConstructorFunc) Construct(name string, args []Value) (Value, error) {
	return f(name, args)
}

// NativeObject wraps an arbitrary host value.
type NativeObject struct {
	TypeName string
	Value    any
}

func (n *NativeObject) Type() Type     { return TypeNative }
func (n *NativeObject) String() string { return fmt.Sprintf("<%s %v>", n.TypeName, n.Value) }
