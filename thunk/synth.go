// Package thunk builds direct accessors for fields, methods and constructors.
//
// Everything that generic reflective invocation decides on every call (member
// lookup by name, receiver shape, argument conversion plan, field offsets) is
// decided once here and captured in closures. Shapes that cannot be served
// correctly are refused with ErrUnsupported; callers then keep using the slow
// path (Slow*) for that member.
package thunk

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"

	"github.com/unkn0wn-root/revcache/convert"
	"github.com/unkn0wn-root/revcache/key"
)

// Thunk is the synthesized accessor set of one member. Only the functions
// matching the member kind are set: Get/Set for fields, Call for methods,
// New for constructors.
type Thunk struct {
	Member Member

	Get  func(recv any) (any, error)
	Set  func(recv, v any) error
	Call func(recv any, args []any) ([]any, error)
	New  func(args []any) (any, error)
}

// Synthesize builds the thunk of m. Failures come back as *SynthesisError;
// panics raised while building are recovered into ErrSynthesis.
func Synthesize(m Member) (th *Thunk, err error) {
	defer func() {
		if r := recover(); r != nil {
			th = nil
			err = &SynthesisError{Member: m, Reason: fmt.Sprint("panic: ", r), Err: ErrSynthesis}
		}
	}()
	if m.Owner == nil {
		return nil, &SynthesisError{Member: m, Reason: "unresolved member", Err: ErrSynthesis}
	}
	if !m.resolved && m.Kind != key.KindConstructor {
		return nil, unsupported(m, "member not resolved")
	}
	if m.Synthetic {
		return nil, unsupported(m, "synthetic marshaling stub")
	}
	switch m.Kind {
	case key.KindField:
		return synthField(m)
	case key.KindMethod:
		return synthMethod(m)
	case key.KindConstructor:
		return synthCtor(m)
	}
	return nil, unsupported(m, "kind "+m.Kind.String())
}

func nillable(k reflect.Kind) bool {
	switch k {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice,
		reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return true
	}
	return false
}

// box turns a result into an interface value. A nil reference becomes an
// untyped nil, never a typed nil wrapped in a non-nil interface.
func box(v reflect.Value) any {
	if nillable(v.Kind()) && v.IsNil() {
		return nil
	}
	return v.Interface()
}

func boxAll(out []reflect.Value) []any {
	res := make([]any, len(out))
	for i, v := range out {
		res[i] = box(v)
	}
	return res
}

func recvErr(op string, recv any, want reflect.Type) error {
	return &convert.CastError{From: reflect.TypeOf(recv), To: want, Op: op}
}

// fieldOffset sums offsets along a path of embedded values. A path through
// an embedded pointer has no fixed offset.
func fieldOffset(owner reflect.Type, index []int) (uintptr, bool) {
	t := owner
	var off uintptr
	for i, idx := range index {
		f := t.Field(idx)
		off += f.Offset
		if i < len(index)-1 {
			if f.Type.Kind() != reflect.Struct {
				return 0, false
			}
			t = f.Type
		}
	}
	return off, true
}

func synthField(m Member) (*Thunk, error) {
	owner := m.Owner
	sf := owner.FieldByIndex(m.index)
	if !sf.IsExported() {
		return nil, unsupported(m, "unexported field")
	}
	ft := sf.Type
	ptrT := reflect.PointerTo(owner)
	offset, direct := fieldOffset(owner, m.index)

	// addressed returns the field inside *Owner.
	addressed := func(rv reflect.Value) (reflect.Value, error) {
		if direct {
			return reflect.NewAt(ft, unsafe.Add(rv.UnsafePointer(), offset)).Elem(), nil
		}
		return rv.Elem().FieldByIndexErr(m.index)
	}

	get := func(recv any) (any, error) {
		rv := reflect.ValueOf(recv)
		if !rv.IsValid() {
			return nil, recvErr("Get", recv, ptrT)
		}
		switch rv.Type() {
		case ptrT:
			if rv.IsNil() {
				return nil, fmt.Errorf("%w: %s", ErrNilReceiver, m)
			}
			fv, err := addressed(rv)
			if err != nil {
				return nil, err
			}
			return box(fv), nil
		case owner:
			// value receiver: read from the caller's copy
			fv, err := rv.FieldByIndexErr(m.index)
			if err != nil {
				return nil, err
			}
			return box(fv), nil
		}
		return nil, recvErr("Get", recv, ptrT)
	}

	// Mutation needs the owner's address; a value receiver would only
	// mutate a copy.
	set := func(recv, v any) error {
		rv := reflect.ValueOf(recv)
		if !rv.IsValid() || rv.Type() != ptrT {
			return recvErr("Set", recv, ptrT)
		}
		if rv.IsNil() {
			return fmt.Errorf("%w: %s", ErrNilReceiver, m)
		}
		cv, err := convert.To(v, ft)
		if err != nil {
			return err
		}
		fv, err := addressed(rv)
		if err != nil {
			return err
		}
		fv.Set(cv)
		return nil
	}
	return &Thunk{Member: m, Get: get, Set: set}, nil
}

// argPlan converts one argument to its parameter type.
type argPlan struct {
	t   reflect.Type
	ref bool // pointer parameter: may be filled from a plain value
}

func planArgs(ft reflect.Type, first, last int) []argPlan {
	plans := make([]argPlan, 0, last-first)
	for i := first; i < last; i++ {
		t := ft.In(i)
		plans = append(plans, argPlan{t: t, ref: t.Kind() == reflect.Pointer})
	}
	return plans
}

// value returns the reflect value passed for args[i]. For pointer
// parameters an exact pointer is passed through so the callee writes into
// the caller's storage. Anything else is converted into a fresh pointer that
// replaces args[i], so the caller still observes writes.
func (p argPlan) value(args []any, i int) (reflect.Value, error) {
	a := args[i]
	if !p.ref || a == nil {
		return convert.To(a, p.t)
	}
	rv := reflect.ValueOf(a)
	if rv.Type() == p.t {
		return rv, nil
	}
	if rv.Type().AssignableTo(p.t) {
		return convert.To(a, p.t)
	}
	src := a
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			src = nil
		} else {
			src = rv.Elem().Interface()
		}
	}
	ev, err := convert.To(src, p.t.Elem())
	if err != nil {
		return reflect.Value{}, err
	}
	ptr := reflect.New(p.t.Elem())
	ptr.Elem().Set(ev)
	args[i] = ptr.Interface()
	return ptr, nil
}

// fill converts args into in[off:].
func fill(plans []argPlan, args []any, in []reflect.Value, off int) error {
	for i, p := range plans {
		v, err := p.value(args, i)
		if err != nil {
			return err
		}
		in[off+i] = v
	}
	return nil
}

// checkShape refuses signatures a thunk cannot serve faithfully.
func checkShape(m Member, ft reflect.Type, first int) error {
	if ft.IsVariadic() {
		return unsupported(m, "variadic parameters")
	}
	for i := first; i < ft.NumIn(); i++ {
		if ft.In(i).Kind() == reflect.UnsafePointer {
			return unsupported(m, "raw address parameter")
		}
	}
	for i := 0; i < ft.NumOut(); i++ {
		if ft.Out(i).Kind() == reflect.UnsafePointer {
			return unsupported(m, "returns a raw address into storage")
		}
	}
	return nil
}

func synthMethod(m Member) (*Thunk, error) {
	owner := m.Owner
	meth := owner.Method(m.method)
	if !meth.IsExported() {
		return nil, unsupported(m, "unexported method")
	}
	mt := meth.Type
	first := 1
	if owner.Kind() == reflect.Interface {
		first = 0
	}
	if err := checkShape(m, mt, first); err != nil {
		return nil, err
	}
	plans := planArgs(mt, first, mt.NumIn())

	var target func(recv any) (fn, rv reflect.Value, err error)
	if owner.Kind() == reflect.Interface {
		target = newDispatcher(m).target
	} else {
		target = concreteTarget(m, meth.Func)
	}

	call := func(recv any, args []any) ([]any, error) {
		if len(args) != len(plans) {
			return nil, arity(m, len(plans), len(args))
		}
		fn, rv, err := target(recv)
		if err != nil {
			return nil, err
		}
		in := make([]reflect.Value, len(plans)+1)
		in[0] = rv
		if err := fill(plans, args, in, 1); err != nil {
			return nil, err
		}
		return boxAll(fn.Call(in)), nil
	}
	return &Thunk{Member: m, Call: call}, nil
}

// concreteTarget accepts Owner, or *Owner for value-receiver methods (the
// pointee is used in place, no intermediate copy is made by us).
func concreteTarget(m Member, fn reflect.Value) func(any) (reflect.Value, reflect.Value, error) {
	owner := m.Owner
	var ptrT reflect.Type
	if owner.Kind() != reflect.Pointer {
		ptrT = reflect.PointerTo(owner)
	}
	return func(recv any) (reflect.Value, reflect.Value, error) {
		rv := reflect.ValueOf(recv)
		if !rv.IsValid() {
			return fn, rv, recvErr("Call", recv, owner)
		}
		switch rv.Type() {
		case owner:
			return fn, rv, nil
		case ptrT:
			if rv.IsNil() {
				return fn, rv, fmt.Errorf("%w: %s", ErrNilReceiver, m)
			}
			return fn, rv.Elem(), nil
		}
		return fn, rv, recvErr("Call", recv, owner)
	}
}

// dispatcher is the neutral owner for interface methods: the method is
// resolved on the receiver's dynamic type, once per type.
type dispatcher struct {
	m     Member
	iface reflect.Type
	fns   sync.Map // reflect.Type -> reflect.Value
}

func newDispatcher(m Member) *dispatcher {
	return &dispatcher{m: m, iface: m.Owner}
}

func (d *dispatcher) target(recv any) (reflect.Value, reflect.Value, error) {
	rv := reflect.ValueOf(recv)
	if !rv.IsValid() {
		return reflect.Value{}, rv, fmt.Errorf("%w: %s", ErrNilReceiver, d.m)
	}
	dt := rv.Type()
	if fn, ok := d.fns.Load(dt); ok {
		return fn.(reflect.Value), rv, nil
	}
	if !dt.Implements(d.iface) {
		return reflect.Value{}, rv, recvErr("Call", recv, d.iface)
	}
	meth, ok := dt.MethodByName(d.m.Name)
	if !ok {
		return reflect.Value{}, rv, fmt.Errorf("%w: %s on %s", ErrNoMember, d.m, dt)
	}
	d.fns.Store(dt, meth.Func)
	return meth.Func, rv, nil
}

func synthCtor(m Member) (*Thunk, error) {
	owner := m.Owner
	if !m.fn.IsValid() {
		var mk func() any
		if owner.Kind() == reflect.Pointer {
			elem := owner.Elem()
			mk = func() any { return reflect.New(elem).Interface() }
		} else {
			mk = func() any { return reflect.New(owner).Elem().Interface() }
		}
		return &Thunk{Member: m, New: func(args []any) (any, error) {
			if len(args) != 0 {
				return nil, arity(m, 0, len(args))
			}
			return mk(), nil
		}}, nil
	}
	if cgoStub(m.Name) {
		return nil, unsupported(m, "cgo marshaling stub")
	}
	ft := m.fn.Type()
	if err := checkShape(m, ft, 0); err != nil {
		return nil, err
	}
	plans := planArgs(ft, 0, ft.NumIn())
	fn := m.fn
	newFn := func(args []any) (any, error) {
		if len(args) != len(plans) {
			return nil, arity(m, len(plans), len(args))
		}
		in := make([]reflect.Value, len(plans))
		if err := fill(plans, args, in, 0); err != nil {
			return nil, err
		}
		return ctorResult(fn.Call(in))
	}
	return &Thunk{Member: m, New: newFn}, nil
}

func ctorResult(out []reflect.Value) (any, error) {
	if len(out) == 2 && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return box(out[0]), nil
}
