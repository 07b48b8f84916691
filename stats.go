package revcache

import "sync/atomic"

// Stats counts cache events. All methods are safe for concurrent use and
// cost one atomic add.
type Stats struct {
	hits        atomic.Uint64
	misses      atomic.Uint64
	refreshes   atomic.Uint64
	suppressed  atomic.Uint64
	synthesized atomic.Uint64
	unsupported atomic.Uint64
	failed      atomic.Uint64
	slow        atomic.Uint64
	dropped     atomic.Uint64
}

func (s *Stats) Hit()         { s.hits.Add(1) }
func (s *Stats) Miss()        { s.misses.Add(1) }
func (s *Stats) Refresh()     { s.refreshes.Add(1) }
func (s *Stats) Suppressed()  { s.suppressed.Add(1) }
func (s *Stats) Synthesized() { s.synthesized.Add(1) }
func (s *Stats) Unsupported() { s.unsupported.Add(1) }
func (s *Stats) Failed()      { s.failed.Add(1) }
func (s *Stats) SlowPath()    { s.slow.Add(1) }
func (s *Stats) Dropped()     { s.dropped.Add(1) }

// Report is a point-in-time copy of Stats. Field tags cover every codec in
// package codec.
type Report struct {
	Name        string `json:"name" cbor:"name" msgpack:"name" yaml:"name"`
	Hits        uint64 `json:"hits" cbor:"hits" msgpack:"hits" yaml:"hits"`
	Misses      uint64 `json:"misses" cbor:"misses" msgpack:"misses" yaml:"misses"`
	Refreshes   uint64 `json:"refreshes" cbor:"refreshes" msgpack:"refreshes" yaml:"refreshes"`
	Suppressed  uint64 `json:"suppressed" cbor:"suppressed" msgpack:"suppressed" yaml:"suppressed"`
	Synthesized uint64 `json:"synthesized" cbor:"synthesized" msgpack:"synthesized" yaml:"synthesized"`
	Unsupported uint64 `json:"unsupported" cbor:"unsupported" msgpack:"unsupported" yaml:"unsupported"`
	Failed      uint64 `json:"failed" cbor:"failed" msgpack:"failed" yaml:"failed"`
	SlowPath    uint64 `json:"slow_path" cbor:"slow_path" msgpack:"slow_path" yaml:"slow_path"`
	Dropped     uint64 `json:"dropped" cbor:"dropped" msgpack:"dropped" yaml:"dropped"`
}

func (s *Stats) Report(name string) Report {
	return Report{
		Name:        name,
		Hits:        s.hits.Load(),
		Misses:      s.misses.Load(),
		Refreshes:   s.refreshes.Load(),
		Suppressed:  s.suppressed.Load(),
		Synthesized: s.synthesized.Load(),
		Unsupported: s.unsupported.Load(),
		Failed:      s.failed.Load(),
		SlowPath:    s.slow.Load(),
		Dropped:     s.dropped.Load(),
	}
}

// HitRatio is hits / (hits + misses), 0 when nothing was looked up.
func (r Report) HitRatio() float64 {
	total := r.Hits + r.Misses
	if total == 0 {
		return 0
	}
	return float64(r.Hits) / float64(total)
}

// Fields renders the report for a Logger.
func (r Report) Fields() Fields {
	return Fields{
		"cache":       r.Name,
		"hits":        r.Hits,
		"misses":      r.Misses,
		"refreshes":   r.Refreshes,
		"suppressed":  r.Suppressed,
		"synthesized": r.Synthesized,
		"unsupported": r.Unsupported,
		"failed":      r.Failed,
		"slow_path":   r.SlowPath,
		"dropped":     r.Dropped,
	}
}
