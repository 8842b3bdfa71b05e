package metadata

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueKinds(t *testing.T) {
	s, ok := Text("outageEvent[]").AsText()
	assert.True(t, ok)
	assert.Equal(t, "outageEvent[]", s)

	b, ok := Bool(true).AsBool()
	assert.True(t, ok)
	assert.True(t, b)

	i, ok := Int(-42).AsInt()
	assert.True(t, ok)
	assert.Equal(t, int64(-42), i)

	i8, ok := Int8(7).AsInt8()
	assert.True(t, ok)
	assert.Equal(t, int8(7), i8)
	wide, ok := Int8(7).AsInt()
	assert.True(t, ok, "int8 values are readable as int64")
	assert.Equal(t, int64(7), wide)

	f, ok := Float(1.5).AsFloat()
	assert.True(t, ok)
	assert.Equal(t, 1.5, f)

	_, ok = Float(1.5).AsText()
	assert.False(t, ok)

	var zero Value
	assert.Equal(t, KindText, zero.Kind())
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "true", Bool(true).String())
	assert.Equal(t, "12", Int(12).String())
	assert.Equal(t, "-3", Int8(-3).String())
	assert.Equal(t, "0.25", Float(0.25).String())
	assert.Equal(t, "Grünau", Bytes([]byte("Grünau")).String())
}

func TestNormalizeDecodesBytesAsUTF8(t *testing.T) {
	v := Bytes([]byte("0d6b2f6c-ünicode")).Normalize()
	s, ok := v.AsText()
	require.True(t, ok)
	assert.Equal(t, "0d6b2f6c-ünicode", s)

	bad := Bytes([]byte{'a', 0xff, 'b'}).Normalize()
	s, ok = bad.AsText()
	require.True(t, ok)
	assert.Equal(t, "a�b", s)

	assert.True(t, Int(5).Normalize().Equal(Int(5)))
}

func TestParseKind(t *testing.T) {
	for k := KindText; k <= KindBytes; k++ {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("decimal")
	assert.Error(t, err)
}

func TestCarrierOrderAndUniqueness(t *testing.T) {
	c := New(
		Entry{Key: KeyObjectType, Value: Text("outageEvent[]")},
		Entry{Key: KeyCorrelationID, Value: Text("a")},
	)
	c.Set("priority", Int8(2))
	c.Set(KeyCorrelationID, Text("b"))

	assert.Equal(t, []string{KeyObjectType, KeyCorrelationID, "priority"}, c.Keys())
	assert.Equal(t, "b", c.Text(KeyCorrelationID))
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, "", c.Text("missing"))

	assert.True(t, c.Delete("priority"))
	assert.False(t, c.Delete("priority"))
	assert.False(t, c.Has("priority"))
}

func TestCarrierWithDoesNotMutate(t *testing.T) {
	base := New(Entry{Key: "a", Value: Text("1")})
	derived := base.With("b", Bool(false))

	assert.Equal(t, 1, base.Len())
	assert.Equal(t, 2, derived.Len())

	entries := derived.Entries()
	entries[0].Value = Text("changed")
	assert.Equal(t, "1", derived.Text("a"))
}

func TestCarrierEqualIgnoresOrder(t *testing.T) {
	a := New(Entry{Key: "x", Value: Int(1)}, Entry{Key: "y", Value: Text("t")})
	b := New(Entry{Key: "y", Value: Text("t")}, Entry{Key: "x", Value: Int(1)})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(b.With("x", Text("1"))), "kind is part of equality")
	assert.Equal(t, "{x: 1, y: t}", a.String())
}

func TestFromWire(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want Value
	}{
		{"bytes decode as utf-8 text", []byte("outageEvent[]"), Text("outageEvent[]")},
		{"string", "4.1.6", Text("4.1.6")},
		{"bool stays bool", true, Bool(true)},
		{"int8 stays int8", int8(-1), Int8(-1)},
		{"int32 widens", int32(9), Int(9)},
		{"int64", int64(1 << 40), Int(1 << 40)},
		{"float32 widens", float32(0.5), Float(0.5)},
		{"float64", 2.25, Float(2.25)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FromWire(tt.raw)
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got), "got %v (%s)", got, got.Kind())
		})
	}

	_, ok := FromWire(struct{}{})
	assert.False(t, ok)
}

func TestToWireRoundTrip(t *testing.T) {
	values := []Value{Text("t"), Bool(true), Int(-9), Int8(3), Float(1.25)}
	for _, v := range values {
		got, ok := FromWire(ToWire(v))
		require.True(t, ok)
		assert.True(t, v.Equal(got), "kind %s", v.Kind())
	}

	raw, ok := ToWire(Bytes([]byte("x"))).([]byte)
	require.True(t, ok)
	assert.Equal(t, []byte("x"), raw)
}

func TestWatermillRoundTrip(t *testing.T) {
	c := New(
		Entry{Key: KeyObjectType, Value: Text("outageEvent[]")},
		Entry{Key: "restored", Value: Bool(true)},
		Entry{Key: "count", Value: Int(3)},
		Entry{Key: "priority", Value: Int8(-2)},
		Entry{Key: "ratio", Value: Float(0.75)},
		Entry{Key: "raw", Value: Bytes([]byte("Grünau"))},
	)

	md, err := ToWatermill(c)
	require.NoError(t, err)
	assert.Equal(t, "true", md.Get("restored"))
	assert.Contains(t, md, KindsKey)

	back, err := FromWatermill(md)
	require.NoError(t, err)
	assert.Equal(t, c.Keys(), back.Keys())
	assert.True(t, c.Equal(back))

	v, _ := back.Get("priority")
	assert.Equal(t, KindInt8, v.Kind())
}

func TestFromWatermillToleratesUnknownKeys(t *testing.T) {
	md := message.Metadata{
		"zeta":                 "z",
		"alpha":                "a",
		"_watermill_partition": "1",
		KeyCorrelationID:       "c",
	}
	c, err := FromWatermill(md)
	require.NoError(t, err)
	assert.Equal(t, []string{KeyCorrelationID, "alpha", "zeta"}, c.Keys())
	v, _ := c.Get("alpha")
	assert.Equal(t, KindText, v.Kind())
}

func TestFromWatermillRejectsBadSidecar(t *testing.T) {
	_, err := FromWatermill(message.Metadata{"n": "abc", KindsKey: `[["n","int"]]`})
	assert.Error(t, err)

	_, err = FromWatermill(message.Metadata{KindsKey: `{`})
	assert.Error(t, err)
}

func TestToWatermillRejectsReservedKey(t *testing.T) {
	_, err := ToWatermill(New(Entry{Key: KindsKey, Value: Text("x")}))
	assert.Error(t, err)
}
