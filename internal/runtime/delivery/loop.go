// Package delivery runs the consumer side of an outage channel: it receives
// messages from a subscription, decodes the batch and hands it to an
// application handler, one message at a time.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/electsolve/outagewire/internal/runtime/codec"
	errspkg "github.com/electsolve/outagewire/internal/runtime/errors"
	"github.com/electsolve/outagewire/internal/runtime/exchange"
	"github.com/electsolve/outagewire/internal/runtime/logging"
	"github.com/electsolve/outagewire/internal/runtime/metadata"
	"github.com/electsolve/outagewire/internal/runtime/outage"
)

const tracerName = "github.com/electsolve/outagewire/delivery"

// Source yields deliveries. *exchange.Subscription implements it.
type Source interface {
	Receive(ctx context.Context) (exchange.Delivery, error)
}

// Handler processes one decoded batch together with its metadata.
type Handler func(ctx context.Context, batch outage.Batch, md metadata.Carrier) error

// Loop pulls deliveries from Source until ctx is cancelled.
type Loop struct {
	// Name identifies the subscriber in logs, hooks and errors.
	Name   string
	Source Source
	// Codecs resolves the decoder from the ContentType metadata entry.
	Codecs *codec.Registry
	// Fallback decodes messages without a known content type.
	Fallback codec.Codec
	Handler  Handler
	Logger   logging.ServiceLogger
	Hooks    Hooks
}

func (l *Loop) validate() error {
	if l.Source == nil {
		return errspkg.ErrTransportRequired
	}
	if l.Handler == nil {
		return errspkg.ErrHandlerRequired
	}
	if l.Logger == nil {
		return errspkg.ErrLoggerRequired
	}
	if l.Codecs == nil && l.Fallback == nil {
		return errspkg.ErrCodecRequired
	}
	return nil
}

// Run processes deliveries until ctx is cancelled or the source is closed,
// both of which return nil. Schema violations and handler failures are
// logged and do not stop the loop. If the transport drops the source the
// returned error matches ErrTransportUnavailable.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.validate(); err != nil {
		return err
	}

	l.Logger.Info("Delivery loop started", logging.LogFields{"subscriber": l.Name})
	defer l.Logger.Info("Delivery loop stopped", logging.LogFields{"subscriber": l.Name})

	tracer := otel.Tracer(tracerName)
	for {
		d, err := l.Source.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, errspkg.ErrTransportUnavailable) {
				l.Logger.Error("Subscription lost", err, logging.LogFields{"subscriber": l.Name})
				return err
			}
			if errors.Is(err, errspkg.ErrSubscriptionClosed) {
				return nil
			}
			return errspkg.NewTransportUnavailable("receive", l.Name, err)
		}
		l.deliver(ctx, tracer, d)
	}
}

func (l *Loop) deliver(ctx context.Context, tracer trace.Tracer, d exchange.Delivery) {
	// Acknowledged on receipt: a failing delivery is never redelivered.
	d.Ack()

	md := d.Message.Metadata.Normalize()
	ctx, span := tracer.Start(ctx, "outagewire.deliver",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.consumer.group.name", l.Name),
			attribute.String("messaging.message.id", d.Message.UUID),
			attribute.String("messaging.message.correlation_id", md.Text(metadata.KeyCorrelationID)),
		),
	)
	defer span.End()

	dc := DeliveryContext{
		Subscriber:  l.Name,
		MessageUUID: d.Message.UUID,
		Metadata:    md,
		Context:     ctx,
		StartedAt:   time.Now(),
	}
	if l.Hooks.OnReceived != nil {
		l.runHook("OnReceived", func() { l.Hooks.OnReceived(dc) })
	}

	fail := func(msg string, err error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.Logger.Error(msg, err, logging.LogFields{
			"subscriber":   l.Name,
			"message_uuid": d.Message.UUID,
			"metadata":     md.String(),
		})
		dc.Duration = time.Since(dc.StartedAt)
		if l.Hooks.OnFailed != nil {
			l.runHook("OnFailed", func() { l.Hooks.OnFailed(dc, err) })
		}
	}

	batch, err := l.decode(d.Message.Payload, md)
	if err != nil {
		fail("Dropping undecodable message", err)
		return
	}
	dc.Records = len(batch)
	span.SetAttributes(attribute.Int("outagewire.records", len(batch)))

	if err := l.invoke(ctx, batch, md); err != nil {
		fail("Handler failed", &errspkg.HandlerFailureError{
			Subscriber:  l.Name,
			MessageUUID: d.Message.UUID,
			Err:         err,
		})
		return
	}

	dc.Duration = time.Since(dc.StartedAt)
	if l.Hooks.OnHandled != nil {
		l.runHook("OnHandled", func() { l.Hooks.OnHandled(dc) })
	}
}

func (l *Loop) decode(payload []byte, md metadata.Carrier) (outage.Batch, error) {
	c := l.codecFor(md.Text(metadata.KeyContentType))
	if c == nil {
		return nil, errspkg.NewSchemaViolation("", fmt.Sprintf("no codec for content type %q", md.Text(metadata.KeyContentType)), nil)
	}
	batch, err := c.Decode(payload)
	if err != nil {
		if errors.Is(err, errspkg.ErrSchemaViolation) {
			return nil, err
		}
		return nil, errspkg.NewSchemaViolation("", c.Name()+" decode failed", err)
	}
	return batch, nil
}

func (l *Loop) codecFor(contentType string) codec.Codec {
	if contentType != "" && l.Codecs != nil {
		if c, ok := l.Codecs.ByContentType(contentType); ok {
			return c
		}
	}
	return l.Fallback
}

// invoke converts handler panics into errors.
func (l *Loop) invoke(ctx context.Context, batch outage.Batch, md metadata.Carrier) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l.Logger.Debug("Handler panic stack", logging.LogFields{
				"subscriber": l.Name,
				"stack":      string(debug.Stack()),
			})
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return l.Handler(ctx, batch, md)
}

// runHook logs a panicking hook and carries on with the delivery.
func (l *Loop) runHook(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.Logger.Error("Hook panicked", fmt.Errorf("panic: %v", r), logging.LogFields{
				"subscriber": l.Name,
				"hook":       name,
				"stack":      string(debug.Stack()),
			})
		}
	}()
	fn()
}
