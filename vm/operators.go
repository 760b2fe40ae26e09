package vm

import (
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Arithmetic, bitwise and comparison operators
// ---------------------------------------------------------------------------

func badOperands(op Opcode, a, b Value) error {
	return fmt.Errorf("%w: %s %s %s", ErrBadOperands, a.Type(), op, b.Type())
}

func badOperand(op Opcode, a Value) error {
	return fmt.Errorf("%w: %s %s", ErrBadOperands, op, a.Type())
}

// numbers widens a pair of numeric values. isInt is true when both are Int.
func numbers(a, b Value) (x, y float64, i, j int64, isInt, ok bool) {
	switch av := a.(type) {
	case Int:
		switch bv := b.(type) {
		case Int:
			return float64(av), float64(bv), int64(av), int64(bv), true, true
		case Real:
			return float64(av), float64(bv), 0, 0, false, true
		}
	case Real:
		switch bv := b.(type) {
		case Int:
			return float64(av), float64(bv), 0, 0, false, true
		case Real:
			return float64(av), float64(bv), 0, 0, false, true
		}
	}
	return 0, 0, 0, 0, false, false
}

// Arith applies a binary arithmetic or bitwise opcode.
func Arith(op Opcode, a, b Value) (Value, error) {
	a, b = orNull(a), orNull(b)
	if op == OpAdd {
		_, as := a.(String)
		_, bs := b.(String)
		if as || bs {
			return String(a.String() + b.String()), nil
		}
		if x, ok := a.(*Array); ok {
			out := make([]Value, 0, len(x.Elements)+1)
			out = append(out, x.Elements...)
			if y, ok := b.(*Array); ok {
				out = append(out, y.Elements...)
			} else {
				out = append(out, b)
			}
			return NewArray(out...), nil
		}
	}

	switch op {
	case OpBSL, OpBSR, OpXor, OpBOr, OpBAnd:
		x, xok := a.(Int)
		y, yok := b.(Int)
		if !xok || !yok {
			return nil, badOperands(op, a, b)
		}
		switch op {
		case OpBSL:
			return x << uint64(y&63), nil
		case OpBSR:
			return x >> uint64(y&63), nil
		case OpXor:
			return x ^ y, nil
		case OpBOr:
			return x | y, nil
		default:
			return x & y, nil
		}
	}

	x, y, i, j, isInt, ok := numbers(a, b)
	if !ok {
		return nil, badOperands(op, a, b)
	}
	if isInt {
		switch op {
		case OpAdd:
			return Int(i + j), nil
		case OpSub:
			return Int(i - j), nil
		case OpMul:
			return Int(i * j), nil
		case OpDiv:
			if j == 0 {
				return nil, ErrDivideByZero
			}
			return Int(i / j), nil
		case OpMod:
			if j == 0 {
				return nil, ErrDivideByZero
			}
			return Int(i % j), nil
		}
	} else {
		switch op {
		case OpAdd:
			return Real(x + y), nil
		case OpSub:
			return Real(x - y), nil
		case OpMul:
			return Real(x * y), nil
		case OpDiv:
			return Real(x / y), nil
		case OpMod:
			return Real(math.Mod(x, y)), nil
		}
	}
	return nil, badOperands(op, a, b)
}

// Unary applies NEG, BNOT or NOT.
func Unary(op Opcode, a Value) (Value, error) {
	a = orNull(a)
	switch op {
	case OpNot:
		return Bool(!Truthy(a)), nil
	case OpNeg:
		switch v := a.(type) {
		case Int:
			return -v, nil
		case Real:
			return -v, nil
		}
	case OpBNot:
		if v, ok := a.(Int); ok {
			return ^v, nil
		}
	}
	return nil, badOperand(op, a)
}

// Compare applies an equality or ordering opcode.
func Compare(op Opcode, a, b Value) (Value, error) {
	a, b = orNull(a), orNull(b)
	switch op {
	case OpEq:
		return Bool(Equal(a, b)), nil
	case OpNeq:
		return Bool(!Equal(a, b)), nil
	}

	var c int
	if x, y, i, j, isInt, ok := numbers(a, b); ok {
		if !isInt && (math.IsNaN(x) || math.IsNaN(y)) {
			return False, nil
		}
		switch {
		case isInt && i < j, !isInt && x < y:
			c = -1
		case isInt && i > j, !isInt && x > y:
			c = 1
		}
	} else if s, ok := a.(String); ok {
		t, ok := b.(String)
		if !ok {
			return nil, badOperands(op, a, b)
		}
		switch {
		case s < t:
			c = -1
		case s > t:
			c = 1
		}
	} else {
		return nil, badOperands(op, a, b)
	}

	switch op {
	case OpGt:
		return Bool(c > 0), nil
	case OpGte:
		return Bool(c >= 0), nil
	case OpLt:
		return Bool(c < 0), nil
	case OpLte:
		return Bool(c <= 0), nil
	}
	return nil, badOperands(op, a, b)
}

// IsA reports whether v is an instance of the named class or interface.
// Non-object values match their type name.
func IsA(v Value, name string) bool {
	switch o := orNull(v).(type) {
	case *Object:
		return o.Class.Is(name)
	case *ClassDefinition:
		return o.Is(name)
	default:
		return o.Type().String() == name
	}
}
