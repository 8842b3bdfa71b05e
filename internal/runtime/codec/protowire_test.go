package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/electsolve/outagewire/internal/runtime/outage"
)

func eventMessage(fields ...[]byte) []byte {
	var ev []byte
	for _, f := range fields {
		ev = append(ev, f...)
	}
	b := protowire.AppendTag(nil, pbBatchEvents, protowire.BytesType)
	return protowire.AppendBytes(b, ev)
}

func pbString(num protowire.Number, s string) []byte {
	b := protowire.AppendTag(nil, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func TestProtowireUnknownStatus(t *testing.T) {
	data := eventMessage(pbString(pbEventObjectID, "a"), pbString(pbEventStatus, "Flickering"))
	_, err := Protowire{}.Decode(data)
	assertViolation(t, err, "outageEvent[0].status")
}

func TestProtowireWireTypeMismatch(t *testing.T) {
	bad := protowire.AppendTag(nil, pbEventObjectID, protowire.VarintType)
	bad = protowire.AppendVarint(bad, 7)
	_, err := Protowire{}.Decode(eventMessage(bad))
	assertViolation(t, err, "outageEvent[0].objectID")
}

func TestProtowireTruncated(t *testing.T) {
	data, err := Protowire{}.Encode(sampleBatch())
	require.NoError(t, err)
	_, err = Protowire{}.Decode(data[:len(data)-3])
	require.Error(t, err)
	assertViolation(t, err, "outageEvent[2]")
}

func TestProtowireSkipsUnknownFields(t *testing.T) {
	unknown := protowire.AppendTag(nil, 99, protowire.VarintType)
	unknown = protowire.AppendVarint(unknown, 1)
	data := eventMessage(pbString(pbEventObjectID, "a"), unknown, pbString(pbEventVerb, "Update"))
	data = append(data, pbString(42, "batch level")...)

	got, err := Protowire{}.Decode(data)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, outage.VerbUpdate, got[0].Verb)
}

func TestProtowireMergesRepeatedExtensionLists(t *testing.T) {
	item := func(name string) []byte {
		b := protowire.AppendTag(nil, pbListItem, protowire.BytesType)
		return protowire.AppendBytes(b, pbString(pbExtName, name))
	}
	list := func(items ...[]byte) []byte {
		var l []byte
		for _, it := range items {
			l = append(l, it...)
		}
		b := protowire.AppendTag(nil, pbEventExtensionsList, protowire.BytesType)
		return protowire.AppendBytes(b, l)
	}
	data := eventMessage(pbString(pbEventObjectID, "a"), list(item("x")), list(item("y")))

	got, err := Protowire{}.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []outage.Extension{{Name: "x"}, {Name: "y"}}, got[0].Extensions)
}
