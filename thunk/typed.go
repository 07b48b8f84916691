package thunk

import (
	"fmt"
	"reflect"
	"unsafe"
)

// FieldGetter returns a typed getter for field name of O. The getter is a
// plain offset load: no reflection runs per call. F must be exactly the
// field type and the field must sit at a fixed offset (no embedded pointer
// on the path).
func FieldGetter[O any, F any](name string) (func(*O) F, error) {
	off, err := typedOffset[O, F](name)
	if err != nil {
		return nil, err
	}
	return func(o *O) F {
		return *(*F)(unsafe.Add(unsafe.Pointer(o), off))
	}, nil
}

// FieldSetter is the typed counterpart of FieldGetter.
func FieldSetter[O any, F any](name string) (func(*O, F), error) {
	off, err := typedOffset[O, F](name)
	if err != nil {
		return nil, err
	}
	return func(o *O, v F) {
		*(*F)(unsafe.Add(unsafe.Pointer(o), off)) = v
	}, nil
}

func typedOffset[O any, F any](name string) (uintptr, error) {
	m, err := FieldOf(reflect.TypeFor[O](), name)
	if err != nil {
		return 0, err
	}
	sf := m.Owner.FieldByIndex(m.index)
	if !sf.IsExported() {
		return 0, unsupported(m, "unexported field")
	}
	if ft := reflect.TypeFor[F](); sf.Type != ft {
		return 0, unsupported(m, fmt.Sprintf("field type is %s, not %s", sf.Type, ft))
	}
	off, ok := fieldOffset(m.Owner, m.index)
	if !ok {
		return 0, unsupported(m, "field reached through an embedded pointer")
	}
	return off, nil
}

// MethodFunc returns method name of owner as a method expression of type F,
// e.g. MethodFunc[func(*Counter, int) int](reflect.TypeFor[*Counter](), "Add").
// Calls through the result are ordinary Go calls.
func MethodFunc[F any](owner reflect.Type, name string) (F, error) {
	var zero F
	m, err := MethodOf(owner, name)
	if err != nil {
		return zero, err
	}
	if owner.Kind() == reflect.Interface {
		return zero, unsupported(m, "interface methods have no method expression")
	}
	fn := owner.Method(m.method).Func
	f, ok := fn.Interface().(F)
	if !ok {
		return zero, unsupported(m, fmt.Sprintf("method expression is %s, not %s", fn.Type(), reflect.TypeFor[F]()))
	}
	return f, nil
}
