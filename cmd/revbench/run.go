package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"unsafe"

	flag "github.com/spf13/pflag"

	"github.com/unkn0wn-root/revcache"
	"github.com/unkn0wn-root/revcache/codec"
	"github.com/unkn0wn-root/revcache/component"
	asynchook "github.com/unkn0wn-root/revcache/hooks/async"
	"github.com/unkn0wn-root/revcache/key"
	"github.com/unkn0wn-root/revcache/member"
	"github.com/unkn0wn-root/revcache/sloghooks"
)

type options struct {
	config     string
	mode       string
	logBackend string
	logFile    string
	format     string
	entities   int
	iterations int
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("revbench", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&o.config, "config", "c", "", "YAML config file")
	fs.StringVar(&o.mode, "mode", "", "thunk production: inline or background (overrides config)")
	fs.StringVar(&o.logBackend, "log", "none", "log backend: none, zap, logrus or slog")
	fs.StringVar(&o.logFile, "log-file", "", "write logs to a rotating file instead of stderr")
	fs.StringVarP(&o.format, "format", "f", "json", "report format: json, yaml, cbor, msgpack or protobuf")
	fs.IntVarP(&o.entities, "entities", "e", 64, "number of containers")
	fs.IntVarP(&o.iterations, "iterations", "n", 10000, "lookups per scenario")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.entities <= 0 || o.iterations <= 0 {
		return o, errors.New("entities and iterations must be positive")
	}
	return o, nil
}

func run(stdout, stderr io.Writer, args []string) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, "revbench:", err)
		return 2
	}
	if err := bench(stdout, stderr, o); err != nil {
		fmt.Fprintln(stderr, "revbench:", err)
		return 1
	}
	return 0
}

func bench(stdout, stderr io.Writer, o options) error {
	cfg := revcache.Config{}
	if o.config != "" {
		c, err := revcache.LoadConfig(o.config)
		if err != nil {
			return err
		}
		cfg = c
	}
	if o.mode != "" {
		cfg.Mode = o.mode
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	enc, err := codec.ForFormat(o.format)
	if err != nil {
		return err
	}

	sink, closeSink := logSink(o.logFile, stderr)
	defer closeSink()
	logger, hookLog, err := newLogger(o.logBackend, sink)
	if err != nil {
		return err
	}
	var hooks revcache.Hooks = revcache.NopHooks{}
	if hookLog != nil {
		ah := asynchook.New(sloghooks.New(hookLog, sloghooks.Options{SuppressedEvery: 100}), 1, 1024)
		defer ah.Close()
		hooks = ah
	}

	pool := cfg.NewPool()
	if pool != nil {
		defer pool.Close()
	}

	reg := revcache.NewRegistry()
	copts := component.OptionsFrom(cfg)
	copts.Logger, copts.Hooks = logger, hooks
	mopts := member.OptionsFrom(cfg, pool)
	mopts.Logger, mopts.Hooks = logger, hooks

	cc := component.For[*Health](reg, copts)
	if err := componentScenario(cc, o.entities, o.iterations); err != nil {
		return err
	}
	mc := member.For(reg, mopts)
	if err := memberScenario(mc, o.iterations); err != nil {
		return err
	}

	logger.Info("bench done", revcache.Fields{"entities": o.entities, "iterations": o.iterations, "mode": cfg.Mode})
	for _, r := range []revcache.Report{cc.Stats().Report("components"), mc.Report()} {
		b, err := enc.Encode(r)
		if err != nil {
			return fmt.Errorf("encode %s report: %w", r.Name, err)
		}
		if _, err := stdout.Write(append(b, '\n')); err != nil {
			return err
		}
	}
	return nil
}

// Health and Armor are the sample components.
type Health struct{ HP int }
type Armor struct{ AC int }

// componentScenario looks up Health on every container, attaching and
// detaching armor every so often to force rescans.
func componentScenario(cc *component.Cache[*Health], entities, iterations int) error {
	lists := make([]*component.List, entities)
	for i := range lists {
		lists[i] = component.NewList(int64(i))
		lists[i].Add(&Armor{AC: i})
		lists[i].Add(&Health{HP: 100})
	}
	for i := 0; i < iterations; i++ {
		l := lists[i%entities]
		if i%97 == 0 {
			a := &Armor{}
			l.Add(a)
			l.Remove(a)
		}
		if h, ok := cc.Get(l); !ok || h.HP != 100 {
			return fmt.Errorf("container %d lost its health component", l.ID())
		}
	}
	return nil
}

// Unit is the sample reflective target.
type Unit struct {
	Name  string
	Speed float64
}

func (u *Unit) Move(dt float64) float64 { u.Speed += dt; return u.Speed }
func (u *Unit) Ptr() unsafe.Pointer     { return unsafe.Pointer(&u.Speed) }

// memberScenario reads, writes and calls through the member cache; Ptr has
// no fast path and exercises the slow one.
func memberScenario(mc *member.Cache, iterations int) error {
	ut := reflect.TypeFor[Unit]()
	speed, err := mc.Field(ut, "speed", key.IgnoreCase)
	if err != nil {
		return err
	}
	move, err := mc.Method(ut, "Move", key.PointerMethods)
	if err != nil {
		return err
	}
	ptr, err := mc.Method(ut, "Ptr", key.PointerMethods)
	if err != nil {
		return err
	}
	if _, err := mc.Warm(context.Background(), speed, move, ptr); err != nil {
		return err
	}

	u := &Unit{Name: "scout"}
	get, call := mc.Bind(speed), mc.Bind(move)
	for i := 0; i < iterations; i++ {
		if _, err := call.Call(u, 1); err != nil {
			return err
		}
		v, err := get.Get(u)
		if err != nil {
			return err
		}
		if v.(float64) != u.Speed {
			return fmt.Errorf("speed read %v, direct %v", v, u.Speed)
		}
		if i%100 == 0 {
			if _, err := mc.Call(ptr, u); err != nil {
				return err
			}
		}
	}
	return mc.Set(speed, u, 0)
}
