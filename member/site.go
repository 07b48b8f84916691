package member

import (
	"fmt"

	"github.com/unkn0wn-root/revcache/key"
	"github.com/unkn0wn-root/revcache/store"
	"github.com/unkn0wn-root/revcache/thunk"
)

// Site is a call site bound to one member. It holds the member's slot, so
// repeated accesses skip the table probe.
type Site struct {
	c    *Cache
	m    thunk.Member
	slot *store.AsyncSlot[*thunk.Thunk]
}

// Bind returns the call site of m. Code that accesses the same member
// repeatedly should hold a Site: the key hash and table probe are paid once
// here instead of on every Cache.Get, Set, Call or New.
func (c *Cache) Bind(m thunk.Member) *Site {
	s := c.site(m)
	return &s
}

func (c *Cache) site(m thunk.Member) Site {
	return Site{c: c, m: m, slot: c.slots.GetOrCreate(m.Key())}
}

func wrongKind(m thunk.Member, op string) error {
	return fmt.Errorf("%w: %s on %s %s", thunk.ErrNoMember, op, m.Kind, m)
}

func (s *Site) Member() thunk.Member { return s.m }

// Fast reports whether the site currently has a thunk.
func (s *Site) Fast() bool { return !s.slot.Dirty() }

func (s *Site) Get(recv any) (any, error) {
	if s.m.Kind != key.KindField {
		return nil, wrongKind(s.m, "Get")
	}
	if th := s.c.fast(s.slot, s.m); th != nil {
		return th.Get(recv)
	}
	return thunk.SlowGet(s.m, recv)
}

func (s *Site) Set(recv, v any) error {
	if s.m.Kind != key.KindField {
		return wrongKind(s.m, "Set")
	}
	if th := s.c.fast(s.slot, s.m); th != nil {
		return th.Set(recv, v)
	}
	return thunk.SlowSet(s.m, recv, v)
}

func (s *Site) Call(recv any, args ...any) ([]any, error) {
	if s.m.Kind != key.KindMethod {
		return nil, wrongKind(s.m, "Call")
	}
	if th := s.c.fast(s.slot, s.m); th != nil {
		return th.Call(recv, args)
	}
	return thunk.SlowCall(s.m, recv, args)
}

func (s *Site) New(args ...any) (any, error) {
	if s.m.Kind != key.KindConstructor {
		return nil, wrongKind(s.m, "New")
	}
	if th := s.c.fast(s.slot, s.m); th != nil {
		return th.New(args)
	}
	return thunk.SlowNew(s.m, args)
}
