package exchange

import (
	"sort"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/electsolve/outagewire/internal/runtime/ids"
	"github.com/electsolve/outagewire/internal/runtime/metadata"
)

// Message is the unit published on a channel. Treat it as immutable: every
// subscriber receives its own copy.
type Message struct {
	UUID     string
	Payload  []byte
	Metadata metadata.Carrier
}

// NewMessage returns a message with a fresh ULID. payload and md are copied.
func NewMessage(payload []byte, md metadata.Carrier) Message {
	return Message{
		UUID:     ids.CreateULID(),
		Payload:  append([]byte(nil), payload...),
		Metadata: md.Clone(),
	}
}

func (m Message) toWatermill() (*message.Message, error) {
	md, err := metadata.ToWatermill(m.Metadata)
	if err != nil {
		return nil, err
	}
	uuid := m.UUID
	if uuid == "" {
		uuid = ids.CreateULID()
	}
	msg := message.NewMessage(uuid, append([]byte(nil), m.Payload...))
	msg.Metadata = md
	return msg, nil
}

// fromWatermill copies the payload: in-memory transports share it between
// subscribers.
func fromWatermill(msg *message.Message) (Message, error) {
	payload := append([]byte(nil), msg.Payload...)
	md, err := metadata.FromWatermill(msg.Metadata)
	if err != nil {
		return Message{UUID: msg.UUID, Payload: payload, Metadata: textCarrier(msg.Metadata)}, err
	}
	return Message{UUID: msg.UUID, Payload: payload, Metadata: md}, nil
}

// textCarrier reads every entry as Text, used when the kinds sidecar is unreadable.
func textCarrier(md message.Metadata) metadata.Carrier {
	keys := make([]string, 0, len(md))
	for key := range md {
		if key == metadata.KindsKey || strings.HasPrefix(key, "_watermill") {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var c metadata.Carrier
	for _, key := range keys {
		c.Set(key, metadata.Text(md[key]))
	}
	return c
}
