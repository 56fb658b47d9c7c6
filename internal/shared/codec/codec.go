// Package codec holds the JSON configurations used on the wire.
//
// Envelopes and responses are encoded with sonic in encoding/json compatible
// mode. Channel payloads are decoded strictly: unknown fields are a shape
// error. Third-party provider params (EIP-3085, EIP-747) are decoded leniently
// and validated afterwards, since wallets routinely receive extra fields there.
package codec

import (
	"bytes"

	"github.com/bytedance/sonic"
)

var (
	std    = sonic.ConfigStd
	strict = sonic.Config{
		EscapeHTML:            true,
		SortMapKeys:           true,
		CompactMarshaler:      true,
		CopyString:            true,
		ValidateString:        true,
		DisallowUnknownFields: true,
	}.Froze()
)

// Marshal encodes v
func Marshal(v any) ([]byte, error) {
	return std.Marshal(v)
}

// Unmarshal decodes data into v, ignoring unknown fields
func Unmarshal(data []byte, v any) error {
	return std.Unmarshal(data, v)
}

// UnmarshalStrict decodes data into v, rejecting unknown fields
func UnmarshalStrict(data []byte, v any) error {
	return strict.Unmarshal(data, v)
}

// IsEmpty reports whether data is absent, blank or a JSON null
func IsEmpty(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
