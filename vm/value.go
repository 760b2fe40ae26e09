package vm

import (
	"math"
	"strconv"
	"strings"
)

// Value is any value the engine can hold on its operand stack.
//
// Scalars (Null, Bool, Int, Real, String) are plain Go values and compare
// with ==. Reference values (arrays, maps, closures, objects, ...) are
// pointers and compare by identity.
type Value interface {
	Type() Type
	String() string
}

// Type identifies the dynamic type of a Value.
type Type uint8

const (
	TypeNull Type = iota
	TypeBool
	TypeInt
	TypeReal
	TypeString
	TypeArray
	TypeMap
	TypeFunction
	TypeNativeFunction
	TypeGenerator
	TypeClass
	TypeObject
	TypeNamespace
	TypeError
	TypeNative
)

var typeNames = [...]string{
	TypeNull:           "null",
	TypeBool:           "bool",
	TypeInt:            "integer",
	TypeReal:           "real",
	TypeString:         "string",
	TypeArray:          "array",
	TypeMap:            "map",
	TypeFunction:       "function",
	TypeNativeFunction: "native function",
	TypeGenerator:      "generator",
	TypeClass:          "class",
	TypeObject:         "object",
	TypeNamespace:      "namespace",
	TypeError:          "error",
	TypeNative:         "native",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Type(" + strconv.Itoa(int(t)) + ")"
}

// ---------------------------------------------------------------------------
// Scalars
// ---------------------------------------------------------------------------

// NullValue is the type of Null.
type NullValue struct{}

// Null is the null value. Missing arguments and unset locals hold it.
var Null Value = NullValue{}

func (NullValue) Type() Type     { return TypeNull }
func (NullValue) String() string { return "null" }

// Bool is a boolean value.
type Bool bool

// True and False are the boolean values.
const (
	True  = Bool(true)
	False = Bool(false)
)

func (b Bool) Type() Type { return TypeBool }
func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

// Int is a 64-bit signed integer.
type Int int64

func (i Int) Type() Type     { return TypeInt }
func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

// Real is a 64-bit float.
type Real float64

func (r Real) Type() Type { return TypeReal }
func (r Real) String() string {
	return strconv.FormatFloat(float64(r), 'g', -1, 64)
}

// String is an immutable string.
type String string

func (s String) Type() Type     { return TypeString }
func (s String) String() string { return string(s) }

// ---------------------------------------------------------------------------
// Collections
// ---------------------------------------------------------------------------

// Array is a growable sequence of values.
type Array struct {
	Elements []Value
}

// NewArray wraps elements (not copied).
func NewArray(elements ...Value) *Array {
	return &Array{Elements: elements}
}

func (a *Array) Type() Type { return TypeArray }

func (a *Array) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, e := range a.Elements {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(e.String())
	}
	sb.WriteByte(']')
	return sb.String()
}

// Len returns the number of elements.
func (a *Array) Len() int { return len(a.Elements) }

// Map is an insertion-ordered hash map keyed by scalar or reference values.
type Map struct {
	keys   []Value
	values []Value
	index  map[Value]int
}

// NewMap creates an empty map.
func NewMap() *Map {
	return &Map{index: make(map[Value]int)}
}

func (m *Map) Type() Type { return TypeMap }

func (m *Map) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k.String())
		sb.WriteString(" -> ")
		sb.WriteString(m.values[i].String())
	}
	sb.WriteByte('}')
	return sb.String()
}

// Get returns the value stored under key.
func (m *Map) Get(key Value) (Value, bool) {
	if i, ok := m.index[normalizeKey(key)]; ok {
		return m.values[i], true
	}
	return Null, false
}

// Put stores value under key, keeping the original insertion position.
func (m *Map) Put(key, value Value) {
	key = normalizeKey(key)
	if i, ok := m.index[key]; ok {
		m.values[i] = value
		return
	}
	m.index[key] = len(m.keys)
	m.keys = append(m.keys, key)
	m.values = append(m.values, value)
}

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.keys) }

// Keys returns the keys in insertion order.
func (m *Map) Keys() []Value { return m.keys }

// normalizeKey makes integral reals hash like ints so 1 and 1.0 address the
// same entry.
func normalizeKey(k Value) Value {
	if r, ok := k.(Real); ok && r == Real(math.Trunc(float64(r))) && !math.IsInf(float64(r), 0) {
		return Int(r)
	}
	return k
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// Truthy reports whether v counts as true in a condition.
// Only null and false are falsy.
func Truthy(v Value) bool {
	switch t := v.(type) {
	case nil, NullValue:
		return false
	case Bool:
		return bool(t)
	}
	return true
}

// Equal implements EQ: numeric values compare across Int/Real, everything
// else by ==.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case Int:
		switch y := b.(type) {
		case Int:
			return x == y
		case Real:
			return Real(x) == y
		}
		return false
	case Real:
		switch y := b.(type) {
		case Int:
			return x == Real(y)
		case Real:
			return x == y
		}
		return false
	}
	return a == b
}

// IsNull reports whether v is null (or a Go nil interface).
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(NullValue)
	return ok
}

// orNull maps a Go nil interface to Null.
func orNull(v Value) Value {
	if v == nil {
		return Null
	}
	return v
}
