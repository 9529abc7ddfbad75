// Package equal compares parameter objects.
//
// Two policies are provided. Shallow compares the top-level fields of two
// objects by identity, so nested maps, slices and pointers only match when
// they are the very same reference. Deep walks nested values structurally.
//
// Both policies share the same prologue:
//
//	same reference      -> true
//	either side is nil  -> false
//	key sets differ     -> false
//
// Cyclic values are not supported by Deep.
package equal

import "reflect"

// Params is an arbitrary-shape parameter object keyed by field name.
type Params = map[string]any

// Func is an equality policy over parameter objects.
type Func func(a, b Params) bool

var policies = map[string]Func{
	"shallow": Shallow,
	"deep":    Deep,
}

// Lookup returns the policy registered under name ("shallow" or "deep").
func Lookup(name string) (Func, bool) {
	f, ok := policies[name]
	return f, ok
}

// Shallow reports whether a and b hold the same keys with identical values.
// Maps, slices, pointers and channels are compared by reference; funcs never
// match; values of non-comparable types are unequal. Two nil slices of the
// same type match. A non-nil slice with zero capacity has no identity of its
// own and never matches, the same way two distinct empty maps do not.
func Shallow(a, b Params) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.UnsafePointer() == vb.UnsafePointer() {
		return true
	}
	if a == nil || b == nil || len(a) != len(b) {
		return false
	}
	for k, x := range a {
		y, ok := b[k]
		if !ok || !identical(x, y) {
			return false
		}
	}
	return true
}

// Deep reports whether a and b hold the same keys with structurally equal
// values.
func Deep(a, b Params) bool {
	return deepValue(reflect.ValueOf(a), reflect.ValueOf(b))
}

func identical(x, y any) bool {
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	vx, vy := reflect.ValueOf(x), reflect.ValueOf(y)
	if vx.Type() != vy.Type() {
		return false
	}
	switch vx.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return vx.UnsafePointer() == vy.UnsafePointer()
	case reflect.Slice:
		if vx.IsNil() || vy.IsNil() {
			return vx.IsNil() && vy.IsNil()
		}
		// zero-capacity slices share one base address and cannot be told apart
		if vx.Cap() == 0 || vy.Cap() == 0 {
			return false
		}
		return vx.UnsafePointer() == vy.UnsafePointer() && vx.Len() == vy.Len()
	case reflect.Func:
		return false
	}
	if !vx.Comparable() || !vy.Comparable() {
		return false
	}
	return x == y
}

func deepValue(x, y reflect.Value) bool {
	if !x.IsValid() || !y.IsValid() {
		return x.IsValid() == y.IsValid()
	}
	if x.Type() != y.Type() {
		return false
	}

	switch x.Kind() {
	case reflect.Interface:
		if x.IsNil() || y.IsNil() {
			return x.IsNil() && y.IsNil()
		}
		return deepValue(x.Elem(), y.Elem())
	case reflect.Pointer:
		if x.UnsafePointer() == y.UnsafePointer() {
			return true
		}
		if x.IsNil() || y.IsNil() {
			return false
		}
		return deepValue(x.Elem(), y.Elem())
	case reflect.Map:
		if x.UnsafePointer() == y.UnsafePointer() {
			return true
		}
		if x.IsNil() || y.IsNil() || x.Len() != y.Len() {
			return false
		}
		it := x.MapRange()
		for it.Next() {
			yv := y.MapIndex(it.Key())
			if !yv.IsValid() || !deepValue(it.Value(), yv) {
				return false
			}
		}
		return true
	case reflect.Slice:
		if x.IsNil() || y.IsNil() {
			return x.IsNil() && y.IsNil()
		}
		if x.Len() != y.Len() {
			return false
		}
		if x.UnsafePointer() == y.UnsafePointer() {
			return true
		}
		return deepElems(x, y)
	case reflect.Array:
		return deepElems(x, y)
	case reflect.Struct:
		for i := 0; i < x.NumField(); i++ {
			if !deepValue(x.Field(i), y.Field(i)) {
				return false
			}
		}
		return true
	case reflect.Func:
		return x.IsNil() && y.IsNil()
	case reflect.Chan, reflect.UnsafePointer:
		return x.UnsafePointer() == y.UnsafePointer()
	}
	return x.Equal(y)
}

func deepElems(x, y reflect.Value) bool {
	for i := 0; i < x.Len(); i++ {
		if !deepValue(x.Index(i), y.Index(i)) {
			return false
		}
	}
	return true
}
