package lifecycle

import (
	"reflect"
	"unsafe"

	"github.com/wippyai/scanx-wasm/engine"
)

// EqualityFunc decides whether cached overrides still hold for next
type EqualityFunc func(cached, next engine.Overrides) bool

// ShallowEqual reports whether a and b are the same map, or have the same
// key set with identical values one level deep. Comparable values use ==;
// maps, slices, pointers, channels and funcs compare by reference, never by
// contents, so {a: map{x: 1}} and {a: map{x: 1}} built separately differ.
//
// Funcs compare by closure identity: the same func value is equal to
// itself, two closures from one literal capturing different variables are
// not.
func ShallowEqual(a, b engine.Overrides) bool {
	if Identical(a, b) {
		return true
	}
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !sameValue(av, bv) {
			return false
		}
	}
	return true
}

// Identical reports whether a and b are the same map
func Identical(a, b engine.Overrides) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}

	switch va.Kind() {
	case reflect.Slice:
		return va.Len() == vb.Len() && va.Pointer() == vb.Pointer()
	case reflect.Func:
		return funcData(a) == funcData(b)
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	}

	if !va.Comparable() {
		return false
	}
	return a == b
}

// funcData returns the data word of an interface holding a func. Funcs are
// stored directly, so the word is the closure object: static for top-level
// funcs, one per allocation for capturing closures.
func funcData(v any) unsafe.Pointer {
	return (*[2]unsafe.Pointer)(unsafe.Pointer(&v))[1]
}
