package thunk

import (
	"fmt"
	"reflect"

	"github.com/unkn0wn-root/revcache/convert"
	"github.com/unkn0wn-root/revcache/key"
)

// The Slow* functions are the unaccelerated path: they resolve the member by
// name and plan argument conversion on every call. They serve every member
// shape, including the ones Synthesize refuses, and produce the same results
// as the thunks.

// SlowGet reads field m from recv.
func SlowGet(m Member, recv any) (any, error) {
	rv := reflect.ValueOf(recv)
	if rv.IsValid() && rv.Kind() == reflect.Pointer && rv.Type().Elem() == m.Owner {
		if rv.IsNil() {
			return nil, fmt.Errorf("%w: %s", ErrNilReceiver, m)
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() || rv.Type() != m.Owner {
		return nil, recvErr("Get", recv, reflect.PointerTo(m.Owner))
	}
	fv, err := slowField(m, rv)
	if err != nil {
		return nil, err
	}
	if !fv.CanInterface() {
		return nil, fmt.Errorf("%w: %s is unexported", ErrUnsupported, m)
	}
	return box(fv), nil
}

// SlowSet writes v into field m of recv, which must be a pointer to the owner.
func SlowSet(m Member, recv, v any) error {
	rv := reflect.ValueOf(recv)
	ptrT := reflect.PointerTo(m.Owner)
	if !rv.IsValid() || rv.Type() != ptrT {
		return recvErr("Set", recv, ptrT)
	}
	if rv.IsNil() {
		return fmt.Errorf("%w: %s", ErrNilReceiver, m)
	}
	fv, err := slowField(m, rv.Elem())
	if err != nil {
		return err
	}
	if !fv.CanSet() {
		return fmt.Errorf("%w: %s is not settable", ErrUnsupported, m)
	}
	cv, err := convert.To(v, fv.Type())
	if err != nil {
		return err
	}
	fv.Set(cv)
	return nil
}

func slowField(m Member, rv reflect.Value) (reflect.Value, error) {
	sf, ok := rv.Type().FieldByName(m.Name)
	if !ok {
		return reflect.Value{}, fmt.Errorf("%w: field %s", ErrNoMember, m)
	}
	return rv.FieldByIndexErr(sf.Index)
}

// SlowCall invokes method m on recv.
func SlowCall(m Member, recv any, args []any) ([]any, error) {
	rv := reflect.ValueOf(recv)
	if !rv.IsValid() {
		if m.Owner.Kind() == reflect.Interface {
			return nil, fmt.Errorf("%w: %s", ErrNilReceiver, m)
		}
		return nil, recvErr("Call", recv, m.Owner)
	}
	if m.Owner.Kind() == reflect.Interface {
		if !rv.Type().Implements(m.Owner) {
			return nil, recvErr("Call", recv, m.Owner)
		}
	} else if rv.Type() != m.Owner && rv.Type() != reflect.PointerTo(m.Owner) {
		return nil, recvErr("Call", recv, m.Owner)
	} else if rv.Type() != m.Owner && rv.IsNil() {
		return nil, fmt.Errorf("%w: %s", ErrNilReceiver, m)
	}
	mv := rv.MethodByName(m.Name)
	if !mv.IsValid() {
		return nil, fmt.Errorf("%w: method %s on %s", ErrNoMember, m, rv.Type())
	}
	in, err := slowArgs(m, mv.Type(), args)
	if err != nil {
		return nil, err
	}
	return boxAll(mv.Call(in)), nil
}

// SlowNew constructs an owner value.
func SlowNew(m Member, args []any) (any, error) {
	if m.Kind != key.KindConstructor {
		return nil, fmt.Errorf("%w: %s is not a constructor", ErrNoMember, m)
	}
	if !m.fn.IsValid() {
		if len(args) != 0 {
			return nil, arity(m, 0, len(args))
		}
		if m.Owner.Kind() == reflect.Pointer {
			return reflect.New(m.Owner.Elem()).Interface(), nil
		}
		return reflect.New(m.Owner).Elem().Interface(), nil
	}
	in, err := slowArgs(m, m.fn.Type(), args)
	if err != nil {
		return nil, err
	}
	return ctorResult(m.fn.Call(in))
}

// slowArgs converts args for a function type without receiver. Variadic
// tails are converted element by element.
func slowArgs(m Member, ft reflect.Type, args []any) ([]reflect.Value, error) {
	fixed := ft.NumIn()
	if ft.IsVariadic() {
		fixed--
		if len(args) < fixed {
			return nil, arity(m, fixed, len(args))
		}
	} else if len(args) != fixed {
		return nil, arity(m, fixed, len(args))
	}
	in := make([]reflect.Value, len(args))
	if err := fill(planArgs(ft, 0, fixed), args, in, 0); err != nil {
		return nil, err
	}
	if ft.IsVariadic() {
		elem := ft.In(fixed).Elem()
		for i := fixed; i < len(args); i++ {
			v, err := convert.To(args[i], elem)
			if err != nil {
				return nil, err
			}
			in[i] = v
		}
	}
	return in, nil
}
