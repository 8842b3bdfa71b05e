package delivery

import (
	"context"
	"time"

	"github.com/electsolve/outagewire/internal/runtime/logging"
	"github.com/electsolve/outagewire/internal/runtime/metadata"
)

// DeliveryContext describes one delivery to hooks.
type DeliveryContext struct {
	// Subscriber is the Loop name.
	Subscriber string
	// MessageUUID is the unique identifier of the message.
	MessageUUID string
	// Metadata is the normalized message metadata.
	Metadata metadata.Carrier
	// Context is the context the handler runs with.
	Context context.Context
	// StartedAt is when the delivery was received.
	StartedAt time.Time
	// Duration is set in OnHandled and OnFailed.
	Duration time.Duration
	// Records is the number of decoded events. Zero when decoding failed.
	Records int
}

// Hooks defines callbacks for delivery lifecycle events.
// All hooks are optional - nil hooks are simply not called.
type Hooks struct {
	// OnReceived is called after the delivery was acknowledged, before decoding.
	OnReceived func(ctx DeliveryContext)

	// OnHandled is called when the handler returned without error.
	OnHandled func(ctx DeliveryContext)

	// OnFailed is called when the payload could not be decoded or the
	// handler failed. err matches ErrSchemaViolation or ErrHandlerFailure.
	OnFailed func(ctx DeliveryContext, err error)
}

// Merge combines two Hooks. The hooks from other are called after the hooks
// from h.
func (h Hooks) Merge(other Hooks) Hooks {
	return Hooks{
		OnReceived: chainHooks(h.OnReceived, other.OnReceived),
		OnHandled:  chainHooks(h.OnHandled, other.OnHandled),
		OnFailed:   chainFailedHooks(h.OnFailed, other.OnFailed),
	}
}

func chainHooks(a, b func(DeliveryContext)) func(DeliveryContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx DeliveryContext) {
		a(ctx)
		b(ctx)
	}
}

func chainFailedHooks(a, b func(DeliveryContext, error)) func(DeliveryContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx DeliveryContext, err error) {
		a(ctx, err)
		b(ctx, err)
	}
}

// LoggingHooks returns hooks that log handled deliveries at debug level.
// Failures are already logged by the Loop.
func LoggingHooks(logger logging.ServiceLogger) Hooks {
	return Hooks{
		OnHandled: func(ctx DeliveryContext) {
			logger.Debug("Delivery handled", logging.LogFields{
				"subscriber":   ctx.Subscriber,
				"message_uuid": ctx.MessageUUID,
				"records":      ctx.Records,
				"duration_ms":  ctx.Duration.Milliseconds(),
			})
		},
	}
}

// MetricsHooks returns hooks that report deliveries by subscriber name.
func MetricsHooks(onDelivered, onHandled func(subscriber string), onFailed func(subscriber string, err error)) Hooks {
	return Hooks{
		OnReceived: func(ctx DeliveryContext) {
			if onDelivered != nil {
				onDelivered(ctx.Subscriber)
			}
		},
		OnHandled: func(ctx DeliveryContext) {
			if onHandled != nil {
				onHandled(ctx.Subscriber)
			}
		},
		OnFailed: func(ctx DeliveryContext, err error) {
			if onFailed != nil {
				onFailed(ctx.Subscriber, err)
			}
		},
	}
}
