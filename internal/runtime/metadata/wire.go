package metadata

import (
	"time"
)

// FromWire converts a header value as delivered by a transport. Raw byte
// sequences are UTF-8 decoded into Text; typed scalars keep their type. The
// bool result is false for representations that have no metadata kind.
func FromWire(raw any) (Value, bool) {
	switch v := raw.(type) {
	case []byte:
		return Bytes(v).Normalize(), true
	case string:
		return Text(v), true
	case bool:
		return Bool(v), true
	case int8:
		return Int8(v), true
	case int16:
		return Int(int64(v)), true
	case int32:
		return Int(int64(v)), true
	case int64:
		return Int(v), true
	case int:
		return Int(int64(v)), true
	case uint8:
		return Int(int64(v)), true
	case uint16:
		return Int(int64(v)), true
	case uint32:
		return Int(int64(v)), true
	case float32:
		return Float(float64(v)), true
	case float64:
		return Float(v), true
	case time.Time:
		return Text(v.UTC().Format(time.RFC3339Nano)), true
	case Value:
		return v.Normalize(), true
	}
	return Value{}, false
}

// ToWire returns the native representation of v for transports with typed
// headers.
func ToWire(v Value) any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindInt8:
		return int8(v.i)
	case KindFloat:
		return v.f
	case KindBytes:
		return append([]byte(nil), v.raw...)
	default:
		return v.text
	}
}
