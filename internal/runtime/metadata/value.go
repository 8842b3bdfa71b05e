package metadata

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// Kind tags the representation held by a Value.
type Kind uint8

const (
	KindText Kind = iota
	KindBool
	KindInt
	KindInt8
	KindFloat
	KindBytes
)

var kindNames = [...]string{
	KindText:  "text",
	KindBool:  "bool",
	KindInt:   "int",
	KindInt8:  "int8",
	KindFloat: "float",
	KindBytes: "bytes",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind returns the Kind named s.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return KindText, fmt.Errorf("metadata: unknown value kind %q", s)
}

// Value is a tagged metadata value. The zero Value is the empty Text.
type Value struct {
	kind Kind
	text string
	b    bool
	i    int64
	f    float64
	raw  []byte
}

func Text(s string) Value   { return Value{kind: KindText, text: s} }
func Bool(b bool) Value     { return Value{kind: KindBool, b: b} }
func Int(i int64) Value     { return Value{kind: KindInt, i: i} }
func Int8(i int8) Value     { return Value{kind: KindInt8, i: int64(i)} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bytes holds an undecoded byte sequence as it arrived from a transport. The
// slice is copied.
func Bytes(b []byte) Value {
	return Value{kind: KindBytes, raw: append([]byte(nil), b...)}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsText() (string, bool) { return v.text, v.kind == KindText }
func (v Value) AsBool() (bool, bool)   { return v.b, v.kind == KindBool }

// AsInt returns integer values of either width.
func (v Value) AsInt() (int64, bool) {
	return v.i, v.kind == KindInt || v.kind == KindInt8
}

func (v Value) AsInt8() (int8, bool)     { return int8(v.i), v.kind == KindInt8 }
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

func (v Value) AsBytes() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	return append([]byte(nil), v.raw...), true
}

// Normalize decodes Bytes as UTF-8 into Text. Invalid sequences become U+FFFD.
// Other kinds are returned unchanged.
func (v Value) Normalize() Value {
	if v.kind != KindBytes {
		return v
	}
	return Text(strings.ToValidUTF8(string(v.raw), "�"))
}

// String renders v for display. Bytes are UTF-8 decoded, never formatted as a
// byte list.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt, KindInt8:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBytes:
		return v.Normalize().text
	default:
		return v.text
	}
}

// Equal reports whether v and o have the same kind and value.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindInt, KindInt8:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindBytes:
		return string(v.raw) == string(o.raw)
	default:
		return v.text == o.text
	}
}

// encodeString is the lossless string form used on string-only transports.
func (v Value) encodeString() string {
	if v.kind == KindBytes {
		return base64.StdEncoding.EncodeToString(v.raw)
	}
	return v.String()
}

// decodeString reverses encodeString for kind k.
func decodeString(k Kind, s string) (Value, error) {
	switch k {
	case KindText:
		return Text(s), nil
	case KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	case KindInt:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, err
		}
		return Int(i), nil
	case KindInt8:
		i, err := strconv.ParseInt(s, 10, 8)
		if err != nil {
			return Value{}, err
		}
		return Int8(int8(i)), nil
	case KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, err
		}
		return Float(f), nil
	case KindBytes:
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindBytes, raw: raw}, nil
	}
	return Value{}, fmt.Errorf("metadata: unknown value kind %d", k)
}
