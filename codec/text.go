package codec

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// JSON encodes with encoding/json; Indent pretty-prints.
type JSON[V any] struct{ Indent bool }

func (c JSON[V]) Encode(v V) ([]byte, error) {
	if c.Indent {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}

// YAML encodes with gopkg.in/yaml.v3 using `yaml` tags.
type YAML[V any] struct{}

func (YAML[V]) Encode(v V) ([]byte, error) { return yaml.Marshal(v) }

func (YAML[V]) Decode(b []byte) (V, error) {
	var v V
	err := yaml.Unmarshal(b, &v)
	return v, err
}

// Msgpack encodes with vmihailenco/msgpack/v5 using `msgpack` tags. The zero
// value is ready to use.
type Msgpack[V any] struct{}

func (Msgpack[V]) Encode(v V) ([]byte, error) { return msgpack.Marshal(v) }

func (Msgpack[V]) Decode(b []byte) (V, error) {
	var v V
	err := msgpack.Unmarshal(b, &v)
	return v, err
}
