package rabbitmq

import (
	"sort"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/electsolve/outagewire/internal/runtime/metadata"
)

// Marshaler maps message metadata onto native AMQP header types and back.
// Header values published by other clients as byte arrays are decoded as
// UTF-8 text on the way in.
type Marshaler struct {
	// TTL becomes the per-message expiration when positive.
	TTL time.Duration
}

// Marshal implements amqp.Marshaler.
func (m Marshaler) Marshal(msg *message.Message) (amqp091.Publishing, error) {
	carrier, err := metadata.FromWatermill(msg.Metadata)
	if err != nil {
		return amqp091.Publishing{}, err
	}

	headers := make(amqp091.Table, carrier.Len())
	for _, e := range carrier.Entries() {
		headers[e.Key] = metadata.ToWire(e.Value)
	}

	publishing := amqp091.Publishing{
		Headers:       headers,
		ContentType:   carrier.Text(metadata.KeyContentType),
		CorrelationId: carrier.Text(metadata.KeyCorrelationID),
		MessageId:     msg.UUID,
		Timestamp:     time.Now().UTC(),
		DeliveryMode:  amqp091.Transient,
		Body:          msg.Payload,
	}
	if m.TTL > 0 {
		publishing.Expiration = strconv.FormatInt(max(m.TTL.Milliseconds(), 1), 10)
	}
	return publishing, nil
}

// Unmarshal implements amqp.Marshaler. Headers are added in key order since
// AMQP tables are unordered. Header values with no metadata kind, such as
// nested tables, are dropped.
func (m Marshaler) Unmarshal(delivery amqp091.Delivery) (*message.Message, error) {
	keys := make([]string, 0, len(delivery.Headers))
	for key := range delivery.Headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var carrier metadata.Carrier
	for _, key := range keys {
		if key == metadata.KindsKey {
			continue
		}
		if v, ok := metadata.FromWire(delivery.Headers[key]); ok {
			carrier.Set(key, v)
		}
	}
	if delivery.ContentType != "" && !carrier.Has(metadata.KeyContentType) {
		carrier.Set(metadata.KeyContentType, metadata.Text(delivery.ContentType))
	}
	if delivery.CorrelationId != "" && !carrier.Has(metadata.KeyCorrelationID) {
		carrier.Set(metadata.KeyCorrelationID, metadata.Text(delivery.CorrelationId))
	}

	md, err := metadata.ToWatermill(carrier)
	if err != nil {
		return nil, err
	}

	msg := message.NewMessage(delivery.MessageId, delivery.Body)
	msg.Metadata = md
	return msg, nil
}
