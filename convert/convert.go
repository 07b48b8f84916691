// Package convert holds the boxing, unboxing and cast helpers used by every
// synthesized thunk. Each helper takes the exact-type fast path first, maps a
// nil input to the zero value of a value-type target, and only then falls back
// to reflect conversion.
package convert

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrInvalidCast is matched by every conversion failure.
var ErrInvalidCast = errors.New("revcache: invalid cast")

// CastError reports a value that cannot be cast or converted to To.
type CastError struct {
	From reflect.Type // nil for a nil input
	To   reflect.Type
	Op   string
}

func (e *CastError) Error() string {
	from := "<nil>"
	if e.From != nil {
		from = e.From.String()
	}
	return fmt.Sprintf("%s: cannot convert %s to %s", e.Op, from, e.To)
}

func (e *CastError) Unwrap() error { return ErrInvalidCast }

func castErr(op string, v any, to reflect.Type) error {
	return &CastError{From: reflect.TypeOf(v), To: to, Op: op}
}

// nillable reports whether the zero value of t is a nil reference.
func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice,
		reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return true
	}
	return false
}

// CastOrConvert returns v as a T, converting through reflect when the dynamic
// type differs. A nil v yields the zero T.
func CastOrConvert[T any](v any) (T, error) {
	if t, ok := v.(T); ok {
		return t, nil
	}
	var zero T
	if v == nil {
		return zero, nil
	}
	to := reflect.TypeFor[T]()
	rv, err := convertValue("CastOrConvert", v, to)
	if err != nil {
		return zero, err
	}
	return rv.Interface().(T), nil
}

// Unbox is CastOrConvert for value-type targets.
func Unbox[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	if t, ok := v.(T); ok {
		return t, nil
	}
	rv, err := convertValue("Unbox", v, reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	return rv.Interface().(T), nil
}

// UnboxNullable keeps "no value" distinct from the zero value: nil and nil
// *T inputs return nil, anything else returns a fresh *T holding the
// converted value.
func UnboxNullable[T any](v any) (*T, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case *T:
		if x == nil {
			return nil, nil
		}
		c := *x
		return &c, nil
	case T:
		return &x, nil
	}
	rv, err := convertValue("UnboxNullable", v, reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	out := rv.Interface().(T)
	return &out, nil
}

// UnboxRef returns a pointer aliasing the storage behind v. Only an exact *T
// qualifies: reinterpreting storage of any other type is never attempted.
// A nil input yields a fresh zero *T.
func UnboxRef[T any](v any) (*T, error) {
	switch x := v.(type) {
	case nil:
		return new(T), nil
	case *T:
		if x == nil {
			return new(T), nil
		}
		return x, nil
	}
	return nil, castErr("UnboxRef", v, reflect.TypeFor[*T]())
}

// CastRef is UnboxRef for reference targets: v must already be a T (or nil).
func CastRef[T any](v any) (T, error) {
	var zero T
	if v == nil {
		if !nillable(reflect.TypeFor[T]()) {
			return zero, castErr("CastRef", v, reflect.TypeFor[T]())
		}
		return zero, nil
	}
	if t, ok := v.(T); ok {
		return t, nil
	}
	return zero, castErr("CastRef", v, reflect.TypeFor[T]())
}

// To converts v to a reflect.Value of type to. It is the untyped counterpart
// of CastOrConvert used by the reflection thunks.
func To(v any, to reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(to), nil
	}
	return convertValue("To", v, to)
}

func convertValue(op string, v any, to reflect.Type) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	from := rv.Type()
	switch {
	case from == to:
		return rv, nil
	case from.AssignableTo(to):
		out := reflect.New(to).Elem()
		out.Set(rv)
		return out, nil
	case convertible(from, to):
		return rv.Convert(to), nil
	}
	return reflect.Value{}, castErr(op, v, to)
}

// convertible narrows reflect's ConvertibleTo to numeric, bool and string
// conversions between kinds of the same family plus named-type
// conversions. Integer to string (rune) conversions are rejected.
func convertible(from, to reflect.Type) bool {
	if !from.ConvertibleTo(to) {
		return false
	}
	if to.Kind() == reflect.String && from.Kind() != reflect.String {
		// []byte and []rune are fine, ints are not.
		return from.Kind() == reflect.Slice
	}
	if from.Kind() == reflect.Slice && (to.Kind() == reflect.Array || to.Kind() == reflect.Pointer) {
		// panics on short slices
		return false
	}
	return true
}
