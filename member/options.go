package member

import (
	"time"

	"github.com/unkn0wn-root/revcache"
	"github.com/unkn0wn-root/revcache/store"
	"github.com/unkn0wn-root/revcache/typename"
)

// Options tune a member cache. The zero value synthesizes inline and logs
// nothing.
type Options struct {
	Name string // report name; "" => "members"

	// Mode selects where thunks are synthesized. Background needs Pool;
	// without one the cache synthesizes inline.
	Mode       store.Mode
	Pool       *store.Pool
	WaitBudget time.Duration // background only; 0 => never wait

	// WarmLimit bounds concurrent synthesis in Warm; 0 => 4.
	WarmLimit int

	Logger revcache.Logger   // if nil, NopLogger is used
	Hooks  revcache.Hooks    // if nil, NopHooks is used
	Stats  *revcache.Stats   // if nil, a private Stats is used
	Names  *typename.Central // if nil, typename.Default is used
}

// OptionsFrom copies the population settings of cfg. pool is cfg.NewPool()
// or nil.
func OptionsFrom(cfg revcache.Config, pool *store.Pool) Options {
	mode, _ := cfg.PopulateMode()
	return Options{Mode: mode, Pool: pool, WaitBudget: cfg.WaitBudget}
}

func (o Options) withDefaults() Options {
	o.Name = revcache.Coalesce(o.Name, "members")
	o.WarmLimit = revcache.Coalesce(o.WarmLimit, 4)
	o.Logger = revcache.Coalesce[revcache.Logger](o.Logger, revcache.NopLogger{})
	o.Hooks = revcache.Coalesce[revcache.Hooks](o.Hooks, revcache.NopHooks{})
	if o.Stats == nil {
		o.Stats = new(revcache.Stats)
	}
	if o.Names == nil {
		o.Names = typename.Default
	}
	return o
}
