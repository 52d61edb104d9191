// Package jsoncodec is the single JSON entry point of the module. Wire
// documents, change-feed envelopes and schema files all go through it.
package jsoncodec

import (
	"io"

	"github.com/bytedance/sonic"
)

var api = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return api.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}

// Valid reports whether data is a syntactically valid JSON value.
func Valid(data []byte) bool {
	return api.Valid(data)
}

func Encode(w io.Writer, v any) error {
	return api.NewEncoder(w).Encode(v)
}

func Decode(r io.Reader, v any) error {
	return api.NewDecoder(r).Decode(v)
}
