// Package codec encodes cache reports for export.
package codec

import (
	"fmt"
	"strings"

	"github.com/unkn0wn-root/revcache"
)

// Codec encodes/decodes values V to []byte.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Formats lists the names ForFormat accepts.
var Formats = []string{"json", "yaml", "cbor", "msgpack", "protobuf"}

// ForFormat returns the report codec for a format name.
func ForFormat(name string) (Codec[revcache.Report], error) {
	switch strings.ToLower(name) {
	case "json", "":
		return JSON[revcache.Report]{Indent: true}, nil
	case "yaml":
		return YAML[revcache.Report]{}, nil
	case "cbor":
		return NewCBOR[revcache.Report](true)
	case "msgpack":
		return Msgpack[revcache.Report]{}, nil
	case "protobuf", "proto":
		return Protobuf{}, nil
	}
	return nil, fmt.Errorf("unknown format %q (want one of %s)", name, strings.Join(Formats, ", "))
}
