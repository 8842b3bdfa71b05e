// Package jsoncodec centralises JSON handling on top of sonic so every JSON
// payload and metadata sidecar in outagewire is produced the same way.
package jsoncodec

import (
	"encoding/json"

	"github.com/bytedance/sonic"
)

// RawMessage defers decoding of a JSON value. sonic honours its
// Marshaler/Unmarshaler methods.
type RawMessage = json.RawMessage

// defaultConfig mirrors encoding/json behaviour (HTML escaping, sorted map
// keys, string validation).
var defaultConfig = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return defaultConfig.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

// Valid reports whether data is a syntactically valid JSON document.
func Valid(data []byte) bool {
	return defaultConfig.Valid(data)
}
