package vm

import "fmt"

// ---------------------------------------------------------------------------
// Member and index access (GET, SET, GET_K, SET_K, IDX, SIDX)
// ---------------------------------------------------------------------------

func noMember(obj Value, key Value) error {
	return fmt.Errorf("%w: %s has no member %q", ErrNoSuchMember, orNull(obj).Type(), orNull(key).String())
}

// GetMember reads obj[key] for member access.
func GetMember(obj, key Value) (Value, error) {
	obj, key = orNull(obj), orNull(key)
	name, isName := key.(String)
	switch o := obj.(type) {
	case *Object:
		if isName {
			if v, ok := o.Member(string(name)); ok {
				return v, nil
			}
		}
	case *Namespace:
		if isName {
			if v, ok := o.Member(string(name)); ok {
				return v, nil
			}
		}
	case *ClassDefinition:
		if isName && name == "name" {
			return String(o.Name), nil
		}
	case *Error:
		if isName {
			if v, ok := o.member(string(name)); ok {
				return v, nil
			}
		}
	case *Map:
		v, _ := o.Get(key)
		return v, nil
	case *Array, String:
		if isName && (name == "length" || name == "size") {
			return lengthOf(o), nil
		}
		return Index(obj, key)
	}
	return nil, noMember(obj, key)
}

// SetMember writes obj[key] = v for member access.
func SetMember(obj, key, v Value) error {
	obj, key, v = orNull(obj), orNull(key), orNull(v)
	name, isName := key.(String)
	switch o := obj.(type) {
	case *Object:
		if isName {
			o.SetMember(string(name), v)
			return nil
		}
	case *Namespace:
		if isName {
			o.Scope.Define(string(name), v)
			return nil
		}
	case *Map:
		o.Put(key, v)
		return nil
	case *Array:
		return SetIndex(obj, key, v)
	}
	return noMember(obj, key)
}

func lengthOf(v Value) Value {
	switch o := v.(type) {
	case *Array:
		return Int(len(o.Elements))
	case String:
		return Int(len([]rune(string(o))))
	case *Map:
		return Int(o.Len())
	}
	return Null
}

func arrayIndex(n int, key Value) (int, error) {
	i, ok := key.(Int)
	if !ok {
		return 0, fmt.Errorf("%w: index must be integer, got %s", ErrBadOperands, key.Type())
	}
	if i < 0 || int(i) >= n {
		return 0, fmt.Errorf("%w: %d (length %d)", ErrIndexRange, i, n)
	}
	return int(i), nil
}

// Index reads obj[index].
func Index(obj, index Value) (Value, error) {
	obj, index = orNull(obj), orNull(index)
	switch o := obj.(type) {
	case *Array:
		i, err := arrayIndex(len(o.Elements), index)
		if err != nil {
			return nil, err
		}
		return o.Elements[i], nil
	case String:
		runes := []rune(string(o))
		i, err := arrayIndex(len(runes), index)
		if err != nil {
			return nil, err
		}
		return String(runes[i]), nil
	case *Map:
		v, _ := o.Get(index)
		return v, nil
	case *Object, *Namespace, *Error:
		return GetMember(obj, index)
	}
	return nil, fmt.Errorf("%w: cannot index %s", ErrBadOperands, obj.Type())
}

// SetIndex writes obj[index] = v.
func SetIndex(obj, index, v Value) error {
	obj, index, v = orNull(obj), orNull(index), orNull(v)
	switch o := obj.(type) {
	case *Array:
		i, err := arrayIndex(len(o.Elements), index)
		if err != nil {
			return err
		}
		o.Elements[i] = v
		return nil
	case *Map:
		o.Put(index, v)
		return nil
	case *Object, *Namespace:
		return SetMember(obj, index, v)
	}
	return fmt.Errorf("%w: cannot index %s", ErrBadOperands, obj.Type())
}
