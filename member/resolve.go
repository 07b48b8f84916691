package member

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/unkn0wn-root/revcache/key"
	"github.com/unkn0wn-root/revcache/thunk"
)

// anySignature keys method lookups that accept any parameter list.
const anySignature key.Flags = 1 << 31

type query struct {
	owner  reflect.Type
	kind   key.Kind
	name   string
	flags  key.Flags
	params []reflect.Type
}

// resolution is a cached lookup outcome; misses are cached too.
type resolution struct {
	m   thunk.Member
	err error
}

func (q query) key() (key.Composite, error) {
	sig, err := key.NewFingerprint(q.params...)
	if err != nil {
		return key.Composite{}, err
	}
	return key.Of(key.Handle{Owner: q.owner, Kind: q.kind}, q.flags, q.name, sig), nil
}

// Field resolves a field of owner. Without key.Promoted only fields declared
// directly on owner are found; key.IgnoreCase matches names case-insensitively.
func (c *Cache) Field(owner reflect.Type, name string, flags key.Flags) (thunk.Member, error) {
	return c.lookup(query{owner: owner, kind: key.KindField, name: name, flags: flags &^ anySignature})
}

// Method resolves a method of owner with any signature. key.PointerMethods
// searches the method set of *owner.
func (c *Cache) Method(owner reflect.Type, name string, flags key.Flags) (thunk.Member, error) {
	return c.lookup(query{owner: owner, kind: key.KindMethod, name: name, flags: flags | anySignature})
}

// MethodSig resolves a method whose parameters (receiver excluded) are
// exactly params.
func (c *Cache) MethodSig(owner reflect.Type, name string, flags key.Flags, params ...reflect.Type) (thunk.Member, error) {
	return c.lookup(query{owner: owner, kind: key.KindMethod, name: name, flags: flags &^ anySignature, params: params})
}

func (c *Cache) lookup(q query) (thunk.Member, error) {
	if q.owner == nil {
		return thunk.Member{}, fmt.Errorf("%w: nil owner", thunk.ErrNoMember)
	}
	k, err := q.key()
	if err != nil {
		return thunk.Member{}, err
	}
	s := c.lookups.GetOrCreate(k)
	if !c.resolve.TryPopulate(s, q) {
		return thunk.Member{}, fmt.Errorf("%w: lookup of %s %s.%s failed", thunk.ErrNoMember, q.kind, q.owner, q.name)
	}
	r, _ := s.Value()
	return r.m, r.err
}

func resolve(q query) (resolution, error) {
	var (
		m   thunk.Member
		err error
	)
	switch q.kind {
	case key.KindField:
		m, err = resolveField(q)
	case key.KindMethod:
		m, err = resolveMethod(q)
	default:
		err = fmt.Errorf("%w: cannot look up %s members", thunk.ErrNoMember, q.kind)
	}
	return resolution{m: m, err: err}, nil
}

func resolveField(q query) (thunk.Member, error) {
	owner := q.owner
	if owner.Kind() == reflect.Pointer {
		owner = owner.Elem()
	}
	if owner.Kind() != reflect.Struct {
		return thunk.Member{}, fmt.Errorf("%w: %s is not a struct", thunk.ErrNoMember, owner)
	}
	name := q.name
	if q.flags&key.IgnoreCase != 0 {
		sf, ok := owner.FieldByNameFunc(func(n string) bool { return strings.EqualFold(n, q.name) })
		if !ok {
			return thunk.Member{}, fmt.Errorf("%w: field %s.%s", thunk.ErrNoMember, owner, q.name)
		}
		name = sf.Name
	}
	m, err := thunk.FieldOf(owner, name)
	if err != nil {
		return thunk.Member{}, err
	}
	if q.flags&key.Promoted == 0 && len(m.Index()) > 1 {
		return thunk.Member{}, fmt.Errorf("%w: field %s.%s is promoted", thunk.ErrNoMember, owner, name)
	}
	return m, nil
}

func resolveMethod(q query) (thunk.Member, error) {
	owner := q.owner
	if q.flags&key.PointerMethods != 0 && owner.Kind() != reflect.Pointer && owner.Kind() != reflect.Interface {
		owner = reflect.PointerTo(owner)
	}
	name := q.name
	if q.flags&key.IgnoreCase != 0 {
		name = ""
		for i := 0; i < owner.NumMethod(); i++ {
			if n := owner.Method(i).Name; strings.EqualFold(n, q.name) {
				name = n
				break
			}
		}
		if name == "" {
			return thunk.Member{}, fmt.Errorf("%w: method %s.%s", thunk.ErrNoMember, owner, q.name)
		}
	}
	m, err := thunk.MethodOf(owner, name)
	if err != nil {
		return thunk.Member{}, err
	}
	if q.flags&anySignature == 0 {
		want, err := key.NewFingerprint(q.params...)
		if err != nil {
			return thunk.Member{}, err
		}
		if !m.Signature().Equal(want) {
			return thunk.Member{}, fmt.Errorf("%w: %s has parameters %s, not %s", thunk.ErrNoMember, m, m.Signature(), want)
		}
	}
	return m, nil
}
