// Package key defines the identities used to address cache slots: member
// handles, type fingerprints and composite keys.
package key

import (
	"errors"
	"fmt"
	"hash/maphash"
	"reflect"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/unkn0wn-root/revcache/internal/util"
)

var seed = maphash.MakeSeed()

// Kind tells which member a Handle designates.
type Kind uint8

const (
	KindType Kind = iota
	KindField
	KindMethod
	KindConstructor
)

func (k Kind) String() string {
	switch k {
	case KindType:
		return "type"
	case KindField:
		return "field"
	case KindMethod:
		return "method"
	case KindConstructor:
		return "ctor"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Handle is a stable identity for a type or one of its members. Index is the
// field or method index within Owner (0 for types and constructors, -1 for
// a member known only by name).
type Handle struct {
	Owner reflect.Type
	Kind  Kind
	Index int
}

// TypeHandle returns the handle of t itself.
func TypeHandle(t reflect.Type) Handle { return Handle{Owner: t, Kind: KindType} }

func (h Handle) IsZero() bool { return h.Owner == nil }

// Hash hashes the handle by identity.
func (h Handle) Hash() uint64 { return maphash.Comparable(seed, h) }

func (h Handle) String() string {
	if h.Owner == nil {
		return "<nil>"
	}
	if h.Kind == KindType {
		return h.Owner.String()
	}
	return fmt.Sprintf("%s#%s%d", h.Owner, h.Kind, h.Index)
}

// Flags vary a member search beyond owner and name.
type Flags uint32

const (
	// Promoted includes members promoted from embedded fields.
	Promoted Flags = 1 << iota
	// PointerMethods searches the method set of *Owner instead of Owner.
	PointerMethods
	// IgnoreCase matches names case-insensitively.
	IgnoreCase
)

// MaxFingerprint bounds the number of types in a Fingerprint.
const MaxFingerprint = 255

var ErrFingerprintTooLong = errors.New("revcache: fingerprint exceeds 255 types")

// Fingerprint is a short array of type identities, typically a parameter
// signature. Elements are compared by identity. The hash only looks at the
// length and the first element: signatures are short and differ early.
type Fingerprint struct {
	types []reflect.Type
	hash  uint64
}

// NewFingerprint copies types into a Fingerprint.
func NewFingerprint(types ...reflect.Type) (Fingerprint, error) {
	if len(types) > MaxFingerprint {
		return Fingerprint{}, fmt.Errorf("%w: %d", ErrFingerprintTooLong, len(types))
	}
	f := Fingerprint{hash: uint64(len(types))}
	if len(types) > 0 {
		f.types = append([]reflect.Type(nil), types...)
		f.hash = util.Mix(f.hash, maphash.Comparable(seed, f.types[0]))
	}
	return f, nil
}

// MustFingerprint is NewFingerprint for statically known signatures.
func MustFingerprint(types ...reflect.Type) Fingerprint {
	f, err := NewFingerprint(types...)
	if err != nil {
		panic(err)
	}
	return f
}

func (f Fingerprint) Len() int              { return len(f.types) }
func (f Fingerprint) At(i int) reflect.Type { return f.types[i] }
func (f Fingerprint) Hash() uint64          { return f.hash }

func (f Fingerprint) Equal(o Fingerprint) bool {
	if f.hash != o.hash || len(f.types) != len(o.types) {
		return false
	}
	for i := range f.types {
		if f.types[i] != o.types[i] {
			return false
		}
	}
	return true
}

func (f Fingerprint) String() string {
	parts := make([]string, len(f.types))
	for i, t := range f.types {
		parts[i] = fmt.Sprint(t)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Composite is a (handle, flags, name, signature) tuple used when a handle on
// its own does not identify a slot. Unused parts are left zero. The hash is
// computed once at construction.
type Composite struct {
	handle Handle
	flags  Flags
	name   string
	sig    Fingerprint
	hash   uint64
}

// Of builds a composite key.
func Of(h Handle, flags Flags, name string, sig Fingerprint) Composite {
	hash := util.Mix(h.Hash(), uint64(flags))
	hash = util.Mix(hash, xxhash.Sum64String(name))
	hash = util.Mix(hash, sig.Hash())
	return Composite{handle: h, flags: flags, name: name, sig: sig, hash: hash}
}

// OfHandle builds a key from a handle alone.
func OfHandle(h Handle) Composite { return Of(h, 0, "", Fingerprint{}) }

func (c Composite) Handle() Handle         { return c.handle }
func (c Composite) Flags() Flags           { return c.flags }
func (c Composite) Name() string           { return c.name }
func (c Composite) Signature() Fingerprint { return c.sig }
func (c Composite) Hash() uint64           { return c.hash }

func (c Composite) Equal(o Composite) bool {
	return c.hash == o.hash &&
		c.handle == o.handle &&
		c.flags == o.flags &&
		c.name == o.name &&
		c.sig.Equal(o.sig)
}

func (c Composite) String() string {
	var b strings.Builder
	b.WriteString(c.handle.String())
	if c.name != "" {
		b.WriteByte('.')
		b.WriteString(c.name)
	}
	if c.sig.Len() > 0 {
		b.WriteString(c.sig.String())
	}
	if c.flags != 0 {
		fmt.Fprintf(&b, "[%#x]", uint32(c.flags))
	}
	return b.String()
}
