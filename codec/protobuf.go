package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/unkn0wn-root/revcache"
)

// Protobuf encodes a report as a google.protobuf.Struct, so any protobuf
// consumer can read it without a generated schema.
type Protobuf struct{}

var _ Codec[revcache.Report] = Protobuf{}

// StructReport converts r into a structpb.Struct. Counters become numbers.
func StructReport(r revcache.Report) (*structpb.Struct, error) {
	return structpb.NewStruct(r.Fields())
}

// ReportFromStruct is the inverse of StructReport.
func ReportFromStruct(s *structpb.Struct) (revcache.Report, error) {
	f := s.GetFields()
	n := func(k string) uint64 { return uint64(f[k].GetNumberValue()) }
	r := revcache.Report{
		Name:        f["cache"].GetStringValue(),
		Hits:        n("hits"),
		Misses:      n("misses"),
		Refreshes:   n("refreshes"),
		Suppressed:  n("suppressed"),
		Synthesized: n("synthesized"),
		Unsupported: n("unsupported"),
		Failed:      n("failed"),
		SlowPath:    n("slow_path"),
		Dropped:     n("dropped"),
	}
	if _, ok := f["cache"]; !ok {
		return r, fmt.Errorf("decode report: missing cache name")
	}
	return r, nil
}

func (Protobuf) Encode(r revcache.Report) ([]byte, error) {
	s, err := StructReport(r)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func (Protobuf) Decode(b []byte) (revcache.Report, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return revcache.Report{}, err
	}
	return ReportFromStruct(&s)
}
