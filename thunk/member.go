package thunk

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"github.com/unkn0wn-root/revcache/key"
)

// ErrNoMember is returned when a member cannot be resolved.
var ErrNoMember = errors.New("revcache: no such member")

// Member describes a field, method or constructor. It is resolved once
// and identifies the member for the process lifetime. A Member built by
// hand instead of through FieldOf, MethodOf or ConstructorOf carries only
// its name; it is served by the Slow* functions and never synthesized.
type Member struct {
	Kind  key.Kind
	Owner reflect.Type // struct type for fields, method set type for methods, constructed type for ctors
	Name  string

	// Synthetic marks host-generated marshaling stubs. They are never
	// synthesized.
	Synthetic bool

	index  []int         // field path
	method int           // index in Owner's method set
	fn     reflect.Value // ctor factory; invalid for zero-value construction
	sig    key.Fingerprint

	resolved bool
}

// Handle returns the member's identity.
func (m Member) Handle() key.Handle {
	h := key.Handle{Owner: m.Owner, Kind: m.Kind}
	switch m.Kind {
	case key.KindField:
		h.Index = -1
		if len(m.index) > 0 {
			h.Index = m.index[len(m.index)-1]
		}
	case key.KindMethod:
		h.Index = -1
		if m.resolved {
			h.Index = m.method
		}
	}
	return h
}

// Resolved reports whether m came from FieldOf, MethodOf or ConstructorOf.
func (m Member) Resolved() bool { return m.resolved }

// Key returns the composite key addressing the member's cache slots. The
// name and signature disambiguate promoted fields and constructor factories.
func (m Member) Key() key.Composite {
	if m.Name == "" && m.sig.Len() == 0 {
		return key.OfHandle(m.Handle())
	}
	return key.Of(m.Handle(), 0, m.Name, m.sig)
}

// Signature returns the parameter types (receiver excluded).
func (m Member) Signature() key.Fingerprint { return m.sig }

func (m Member) String() string {
	if m.Owner == nil {
		return "<invalid member>"
	}
	if m.Kind == key.KindConstructor {
		if m.Name == "" {
			return "new " + m.Owner.String()
		}
		return m.Name + " -> " + m.Owner.String()
	}
	return m.Owner.String() + "." + m.Name
}

// Index returns a copy of a field's index path.
func (m Member) Index() []int { return append([]int(nil), m.index...) }

// FieldOf resolves a field of a struct type; a pointer-to-struct owner is
// dereferenced. Promoted fields resolve like in Go selectors.
func FieldOf(owner reflect.Type, name string) (Member, error) {
	if owner == nil {
		return Member{}, fmt.Errorf("%w: nil owner", ErrNoMember)
	}
	if owner.Kind() == reflect.Pointer {
		owner = owner.Elem()
	}
	if owner.Kind() != reflect.Struct {
		return Member{}, fmt.Errorf("%w: %s is not a struct", ErrNoMember, owner)
	}
	sf, ok := owner.FieldByName(name)
	if !ok {
		return Member{}, fmt.Errorf("%w: field %s.%s", ErrNoMember, owner, name)
	}
	return Member{Kind: key.KindField, Owner: owner, Name: name, index: sf.Index, resolved: true}, nil
}

// MethodOf resolves a method in owner's method set. owner may be a value
// type, a pointer type or an interface.
func MethodOf(owner reflect.Type, name string) (Member, error) {
	if owner == nil {
		return Member{}, fmt.Errorf("%w: nil owner", ErrNoMember)
	}
	m, ok := owner.MethodByName(name)
	if !ok {
		return Member{}, fmt.Errorf("%w: method %s.%s", ErrNoMember, owner, name)
	}
	mt := m.Type
	first := 1
	if owner.Kind() == reflect.Interface {
		first = 0
	}
	params := make([]reflect.Type, 0, mt.NumIn()-first)
	for i := first; i < mt.NumIn(); i++ {
		params = append(params, mt.In(i))
	}
	sig, err := key.NewFingerprint(params...)
	if err != nil {
		return Member{}, err
	}
	return Member{Kind: key.KindMethod, Owner: owner, Name: name, method: m.Index, sig: sig, resolved: true}, nil
}

// ConstructorOf describes how to build an owner value. factory is either
// nil (zero value; a new pointee for pointer owners) or a function whose
// first result is assignable to owner, optionally followed by an error.
func ConstructorOf(owner reflect.Type, factory any) (Member, error) {
	if owner == nil {
		return Member{}, fmt.Errorf("%w: nil owner", ErrNoMember)
	}
	m := Member{Kind: key.KindConstructor, Owner: owner, resolved: true}
	if factory == nil {
		return m, nil
	}
	fv := reflect.ValueOf(factory)
	ft := fv.Type()
	if ft.Kind() != reflect.Func || fv.IsNil() {
		return Member{}, fmt.Errorf("%w: factory for %s is %s, not a func", ErrNoMember, owner, ft)
	}
	if ft.NumOut() == 0 || !ft.Out(0).AssignableTo(owner) {
		return Member{}, fmt.Errorf("%w: factory %s does not return %s", ErrNoMember, ft, owner)
	}
	if ft.NumOut() > 2 || (ft.NumOut() == 2 && ft.Out(1) != errorType) {
		return Member{}, fmt.Errorf("%w: factory %s must return (%s[, error])", ErrNoMember, ft, owner)
	}
	params := make([]reflect.Type, ft.NumIn())
	for i := range params {
		params[i] = ft.In(i)
	}
	sig, err := key.NewFingerprint(params...)
	if err != nil {
		return Member{}, err
	}
	m.fn = fv
	m.sig = sig
	m.Name = funcName(fv)
	return m, nil
}

var errorType = reflect.TypeFor[error]()

func funcName(fv reflect.Value) string {
	if f := runtime.FuncForPC(fv.Pointer()); f != nil {
		return f.Name()
	}
	return fmt.Sprintf("func@%#x", fv.Pointer())
}

// cgoStub reports names of cgo-generated marshaling wrappers.
func cgoStub(name string) bool {
	return strings.Contains(name, "._Cfunc_") || strings.Contains(name, "._cgo_")
}
