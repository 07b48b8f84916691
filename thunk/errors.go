package thunk

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported marks member shapes that are never synthesized.
	ErrUnsupported = errors.New("revcache: member shape not supported")
	// ErrSynthesis marks unexpected failures while building a thunk.
	ErrSynthesis = errors.New("revcache: thunk synthesis failed")
)

// SynthesisError explains why no thunk exists for Member. Callers treat it as
// "use the slow path", never as a failure of the call.
type SynthesisError struct {
	Member Member
	Reason string
	Err    error // ErrUnsupported or ErrSynthesis
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesize %s: %s: %v", e.Member, e.Reason, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

func unsupported(m Member, reason string) error {
	return &SynthesisError{Member: m, Reason: reason, Err: ErrUnsupported}
}

var (
	// ErrNilReceiver is returned when an instance member is used on a nil
	// pointer to its owner.
	ErrNilReceiver = errors.New("revcache: nil receiver")
	// ErrArity is returned when a call passes the wrong number of arguments.
	ErrArity = errors.New("revcache: wrong argument count")
)

func arity(m Member, want, got int) error {
	return fmt.Errorf("%w: %s wants %d, got %d", ErrArity, m, want, got)
}
