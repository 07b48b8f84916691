package revcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking: the caches call them on
// hot paths. Wrap a slow implementation with hooks/async.
type Hooks interface {
	// No thunk can be built for member; it stays on the slow path.
	// Called once per member.
	SynthesisUnsupported(member, reason string)

	// Building a thunk for member failed unexpectedly (panic, codegen error).
	// Called once per member.
	SynthesisFailed(member string, err error)

	// A refresh was dropped because the owner id is provisional or the
	// revision is negative. The lookup result is still returned.
	RefreshSuppressed(cache string, ownerID int64)

	// A background production was refused by the worker pool.
	ProductionDropped(member string)

	// A singleton cache saw a new owner (new world, save load). Called once
	// per owner change, by the refresh that took the slot over.
	SingletonReset(cache string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) SynthesisUnsupported(string, string) {}
func (NopHooks) SynthesisFailed(string, error)       {}
func (NopHooks) RefreshSuppressed(string, int64)     {}
func (NopHooks) ProductionDropped(string)            {}
func (NopHooks) SingletonReset(string)               {}
