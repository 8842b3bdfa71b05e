package rabbitmq

import (
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	amqp091 "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electsolve/outagewire/internal/runtime/metadata"
)

func TestMarshal_TypedHeaders(t *testing.T) {
	carrier := metadata.New(
		metadata.Entry{Key: metadata.KeyObjectType, Value: metadata.Text("outageEvent[]")},
		metadata.Entry{Key: metadata.KeyContentType, Value: metadata.Text("application/xml")},
		metadata.Entry{Key: metadata.KeyCorrelationID, Value: metadata.Text("c-1")},
		metadata.Entry{Key: "Retry", Value: metadata.Bool(true)},
		metadata.Entry{Key: "Priority", Value: metadata.Int8(3)},
		metadata.Entry{Key: "Count", Value: metadata.Int(42)},
		metadata.Entry{Key: "Load", Value: metadata.Float(0.5)},
	)
	md, err := metadata.ToWatermill(carrier)
	require.NoError(t, err)

	msg := message.NewMessage("01HZ", []byte("<ArrayOfOutageEvent/>"))
	msg.Metadata = md

	pub, err := Marshaler{}.Marshal(msg)
	require.NoError(t, err)

	assert.Equal(t, "01HZ", pub.MessageId)
	assert.Equal(t, "application/xml", pub.ContentType)
	assert.Equal(t, "c-1", pub.CorrelationId)
	assert.Equal(t, amqp091.Transient, pub.DeliveryMode)
	assert.Empty(t, pub.Expiration)
	assert.Equal(t, []byte("<ArrayOfOutageEvent/>"), pub.Body)

	assert.Equal(t, "outageEvent[]", pub.Headers[metadata.KeyObjectType])
	assert.Equal(t, true, pub.Headers["Retry"])
	assert.Equal(t, int8(3), pub.Headers["Priority"])
	assert.Equal(t, int64(42), pub.Headers["Count"])
	assert.Equal(t, 0.5, pub.Headers["Load"])
	assert.NotContains(t, pub.Headers, metadata.KindsKey)
	require.NoError(t, pub.Headers.Validate())
}

func TestMarshal_Expiration(t *testing.T) {
	msg := message.NewMessage("id", nil)

	pub, err := Marshaler{TTL: 10 * time.Hour}.Marshal(msg)
	require.NoError(t, err)
	assert.Equal(t, "36000000", pub.Expiration)

	pub, err = Marshaler{TTL: time.Microsecond}.Marshal(msg)
	require.NoError(t, err)
	assert.Equal(t, "1", pub.Expiration)
}

func TestUnmarshal_ForeignByteHeaders(t *testing.T) {
	delivery := amqp091.Delivery{
		MessageId: "m-1",
		Body:      []byte("payload"),
		Headers: amqp091.Table{
			"ObjectType":    []byte("outageEvent[]"),
			"SchemaVersion": []byte("4.1.6"),
			"Broken":        []byte{0x66, 0xff, 0x6f},
			"Attempt":       int32(2),
			"Flag":          false,
			"Nested":        amqp091.Table{"a": "b"},
		},
		ContentType:   "application/xml",
		CorrelationId: "c-9",
	}

	msg, err := Marshaler{}.Unmarshal(delivery)
	require.NoError(t, err)
	assert.Equal(t, "m-1", msg.UUID)
	assert.Equal(t, []byte("payload"), []byte(msg.Payload))

	carrier, err := metadata.FromWatermill(msg.Metadata)
	require.NoError(t, err)

	assert.Equal(t, []string{"Attempt", "Broken", "Flag", "ObjectType", "SchemaVersion", metadata.KeyContentType, metadata.KeyCorrelationID}, carrier.Keys())

	v, _ := carrier.Get("ObjectType")
	text, ok := v.AsText()
	require.True(t, ok, "byte headers decode as text")
	assert.Equal(t, "outageEvent[]", text)

	assert.Equal(t, "f�o", carrier.Text("Broken"))

	v, _ = carrier.Get("Attempt")
	n, ok := v.AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(2), n)

	v, _ = carrier.Get("Flag")
	b, ok := v.AsBool()
	require.True(t, ok)
	assert.False(t, b)

	assert.False(t, carrier.Has("Nested"))
	assert.Equal(t, "application/xml", carrier.Text(metadata.KeyContentType))
	assert.Equal(t, "c-9", carrier.Text(metadata.KeyCorrelationID))
}

func TestMarshalUnmarshal_PreservesKinds(t *testing.T) {
	carrier := metadata.New(
		metadata.Entry{Key: "A", Value: metadata.Int8(-1)},
		metadata.Entry{Key: "B", Value: metadata.Float(1.25)},
		metadata.Entry{Key: metadata.KeyContentType, Value: metadata.Text("application/json")},
	)
	md, err := metadata.ToWatermill(carrier)
	require.NoError(t, err)
	msg := message.NewMessage("id", []byte("[]"))
	msg.Metadata = md

	pub, err := Marshaler{}.Marshal(msg)
	require.NoError(t, err)

	got, err := Marshaler{}.Unmarshal(amqp091.Delivery{
		MessageId:   pub.MessageId,
		Headers:     pub.Headers,
		ContentType: pub.ContentType,
		Body:        pub.Body,
	})
	require.NoError(t, err)

	decoded, err := metadata.FromWatermill(got.Metadata)
	require.NoError(t, err)
	assert.True(t, carrier.Equal(decoded), "got %s", decoded)
}

func TestTypedHeadersCapabilityMatchesMarshaler(t *testing.T) {
	require.True(t, Capabilities().TypedHeaders)

	md, err := metadata.ToWatermill(metadata.New(metadata.Entry{Key: "Count", Value: metadata.Int(7)}))
	require.NoError(t, err)
	require.Contains(t, md, metadata.KindsKey)

	msg := message.NewMessage("01HZ", nil)
	msg.Metadata = md
	pub, err := Marshaler{}.Marshal(msg)
	require.NoError(t, err)

	assert.Equal(t, amqp091.Table{"Count": int64(7)}, pub.Headers)
}
