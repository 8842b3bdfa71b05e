package runtime

import (
	"context"
	"fmt"

	codecpkg "github.com/electsolve/outagewire/internal/runtime/codec"
	errspkg "github.com/electsolve/outagewire/internal/runtime/errors"
	exchangepkg "github.com/electsolve/outagewire/internal/runtime/exchange"
	idspkg "github.com/electsolve/outagewire/internal/runtime/ids"
	loggingpkg "github.com/electsolve/outagewire/internal/runtime/logging"
	metadatapkg "github.com/electsolve/outagewire/internal/runtime/metadata"
	"github.com/electsolve/outagewire/internal/runtime/outage"
)

// Producer publishes outage batches on the configured channel.
type Producer interface {
	PublishBatch(ctx context.Context, batch outage.Batch, md metadatapkg.Carrier) error
}

// NewBatchMessage encodes batch with c and stamps the standard metadata:
// ObjectType and ContentType always, SchemaVersion and a fresh CorrelationId
// unless md already carries them. md itself is not modified.
func NewBatchMessage(c codecpkg.Codec, batch outage.Batch, md metadatapkg.Carrier, schemaVersion string) (exchangepkg.Message, error) {
	if c == nil {
		return exchangepkg.Message{}, errspkg.ErrCodecRequired
	}

	payload, err := c.Encode(batch)
	if err != nil {
		return exchangepkg.Message{}, err
	}

	md = md.Clone()
	md.Set(metadatapkg.KeyObjectType, metadatapkg.Text(outage.ObjectType))
	md.Set(metadatapkg.KeyContentType, metadatapkg.Text(c.ContentType()))
	if !md.Has(metadatapkg.KeySchemaVersion) && schemaVersion != "" {
		md.Set(metadatapkg.KeySchemaVersion, metadatapkg.Text(schemaVersion))
	}
	if !md.Has(metadatapkg.KeyCorrelationID) {
		md.Set(metadatapkg.KeyCorrelationID, metadatapkg.Text(idspkg.NewCorrelationID()))
	}
	return exchangepkg.NewMessage(payload, md), nil
}

// PublishBatch encodes batch with the configured codec and publishes it on
// the configured channel. It returns once the transport accepted the message.
func (s *Service) PublishBatch(ctx context.Context, batch outage.Batch, md metadatapkg.Carrier) error {
	if s == nil {
		return errspkg.ErrServiceRequired
	}

	msg, err := NewBatchMessage(s.codec, batch, md, s.Conf.SchemaVersion)
	if err != nil {
		return err
	}
	if !s.capabilities.Accepts(len(msg.Payload)) {
		return fmt.Errorf("outagewire: payload of %d bytes exceeds the %s limit of %d bytes",
			len(msg.Payload), s.capabilities.Name, s.capabilities.MaxMessageSize)
	}

	if err := s.channel.Publish(ctx, msg); err != nil {
		s.metrics.RecordPublishFailure(s.channel.Name())
		return err
	}
	s.metrics.RecordPublished(s.channel.Name(), s.codec.Name())
	s.Logger.Debug("Published batch", loggingpkg.LogFields{
		"exchange":       s.channel.Name(),
		"message_uuid":   msg.UUID,
		"records":        len(batch),
		"correlation_id": msg.Metadata.Text(metadatapkg.KeyCorrelationID),
	})
	return nil
}
