package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// ClassDefinition
// ---------------------------------------------------------------------------

// ClassDefinition is a class registered by CLASS_DEF. Superclasses form a
// singly linked chain.
type ClassDefinition struct {
	Name       string
	Super      *ClassDefinition
	Interfaces []string
	Params     []string // constructor parameter names
	SuperArgs  []string // names forwarded to the superclass constructor
	Body       *Chunk   // constructor chunk
	Outers     []*Cell  // cells captured at the definition site
	Lexical    *Scope   // scope the class was defined in
}

func (cd *ClassDefinition) Type() Type     { return TypeClass }
func (cd *ClassDefinition) String() string { return fmt.Sprintf("<class %s>", cd.Name) }

// Is reports whether the class, a superclass, or a declared interface of
// either is called name.
func (cd *ClassDefinition) Is(name string) bool {
	for c := cd; c != nil; c = c.Super {
		if c.Name == name {
			return true
		}
		for _, iface := range c.Interfaces {
			if iface == name {
				return true
			}
		}
	}
	return false
}

// superArgs maps the values passed to this class's constructor onto the
// superclass constructor: each forwarded name is matched against this
// class's parameters by position; an unmatched name forwards null.
func (cd *ClassDefinition) superArgs(args []Value) []Value {
	out := make([]Value, len(cd.SuperArgs))
	for i, name := range cd.SuperArgs {
		out[i] = Null
		for j, p := range cd.Params {
			if p == name && j < len(args) {
				out[i] = args[j]
				break
			}
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Object
// ---------------------------------------------------------------------------

// Object is a class instance. Its members live in an object scope that
// chains to the superclass instance.
type Object struct {
	Class *ClassDefinition
	Scope *Scope
	Super *Object
}

func (o *Object) Type() Type { return TypeObject }

func (o *Object) String() string {
	names := o.Scope.Names()
	return fmt.Sprintf("<%s {%s}>", o.Class.Name, strings.Join(names, ", "))
}

// Member returns a member of the object or an inherited member.
func (o *Object) Member(name string) (Value, bool) {
	return o.Scope.member(name)
}

// SetMember updates an existing member (own or inherited) or adds a new
// member to the object itself.
func (o *Object) SetMember(name string, v Value) {
	if !o.Scope.setMember(name, orNull(v)) {
		o.Scope.Define(name, v)
	}
}

// ---------------------------------------------------------------------------
// Instantiation
// ---------------------------------------------------------------------------

// instantiate builds an object of class cd: superclass first, then a fresh
// object scope over a private copy of the lexical scope, then the
// constructor body runs against it.
func (e *Engine) instantiate(cd *ClassDefinition, args []Value) (*Object, error) {
	var super *Object
	if cd.Super != nil {
		var err error
		super, err = e.instantiate(cd.Super, cd.superArgs(args))
		if err != nil {
			return nil, err
		}
	}

	scope := NewScope(ScopeObject, cd.Lexical.Clone())
	obj := &Object{Class: cd, Scope: scope, Super: super}
	if super != nil {
		scope.super = super.Scope
	}
	scope.Define("this", obj)
	for i, p := range cd.Params {
		if i < len(args) {
			scope.Define(p, args[i])
		} else {
			scope.Define(p, Null)
		}
	}

	if cd.Body != nil {
		if _, err := e.callChunk(cd.Body, cd.Outers, scope, args); err != nil {
			return nil, err
		}
	}
	return obj, nil
}
