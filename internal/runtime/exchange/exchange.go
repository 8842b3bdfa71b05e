// Package exchange implements named fanout channels on top of a transport.
// Publishing on a channel delivers an independent copy of the message to
// every subscription bound at that moment; nothing is replayed to later
// bindings.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	errspkg "github.com/electsolve/outagewire/internal/runtime/errors"
	"github.com/electsolve/outagewire/internal/runtime/ids"
	"github.com/electsolve/outagewire/internal/runtime/logging"
	"github.com/electsolve/outagewire/transport"
)

const tracerName = "github.com/electsolve/outagewire/exchange"

var errExchangeClosed = errors.New("exchange is closed")

// Exchange owns a transport and the channels declared on it.
type Exchange struct {
	transport *transport.Transport
	logger    logging.ServiceLogger
	tracer    trace.Tracer

	mu       sync.Mutex
	channels map[string]*Channel
	subs     map[*Subscription]struct{}
	closed   bool
}

// New returns an Exchange publishing and subscribing through t.
func New(t *transport.Transport, logger logging.ServiceLogger) (*Exchange, error) {
	if t == nil || t.Publisher == nil || t.NewSubscriber == nil {
		return nil, errspkg.ErrTransportRequired
	}
	if logger == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	return &Exchange{
		transport: t,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
		channels:  make(map[string]*Channel),
		subs:      make(map[*Subscription]struct{}),
	}, nil
}

// Declare returns the channel called name, declaring it on the broker the
// first time. Declaring an existing name returns the same channel.
func (e *Exchange) Declare(ctx context.Context, name string) (*Channel, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errspkg.ErrExchangeNameRequired
	}

	if ch, err := e.lookup(name); ch != nil || err != nil {
		return ch, err
	}

	// Runs unlocked. DeclareExchange is idempotent, so concurrent first
	// declares of one name may both reach the broker.
	if err := e.transport.DeclareExchange(ctx, name); err != nil {
		return nil, errspkg.NewTransportUnavailable("declare", name, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, errspkg.NewTransportUnavailable("declare", name, errExchangeClosed)
	}
	if ch, ok := e.channels[name]; ok {
		return ch, nil
	}
	ch := &Channel{name: name, exchange: e}
	e.channels[name] = ch
	e.logger.Debug("Declared channel", logging.LogFields{"exchange": name})
	return ch, nil
}

func (e *Exchange) lookup(name string) (*Channel, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, errspkg.NewTransportUnavailable("declare", name, errExchangeClosed)
	}
	return e.channels[name], nil
}

// Close closes every open subscription and then the transport.
func (e *Exchange) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	subs := make([]*Subscription, 0, len(e.subs))
	for s := range e.subs {
		subs = append(subs, s)
	}
	e.mu.Unlock()

	var errs []error
	for _, s := range subs {
		errs = append(errs, s.Close())
	}
	errs = append(errs, e.transport.Close())
	return errors.Join(errs...)
}

func (e *Exchange) track(s *Subscription) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errExchangeClosed
	}
	e.subs[s] = struct{}{}
	return nil
}

func (e *Exchange) untrack(s *Subscription) {
	e.mu.Lock()
	delete(e.subs, s)
	e.mu.Unlock()
}

func (e *Exchange) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Channel is a declared fanout channel.
type Channel struct {
	name     string
	exchange *Exchange
}

// Name returns the channel name.
func (c *Channel) Name() string { return c.name }

// Bind attaches a new private queue for subscriberID to the channel. The
// queue lives until the returned subscription is closed. Bind returns once
// the transport is ready to deliver; ctx bounds that wait.
func (c *Channel) Bind(ctx context.Context, subscriberID string) (*Subscription, error) {
	if strings.TrimSpace(subscriberID) == "" {
		return nil, errspkg.ErrSubscriberIDRequired
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.exchange.isClosed() {
		return nil, errspkg.NewTransportUnavailable("bind", c.name, errExchangeClosed)
	}

	queue := QueueName(c.name, subscriberID)
	sub, err := c.exchange.transport.NewSubscriber(queue)
	if err != nil {
		return nil, errspkg.NewTransportUnavailable("bind", c.name, err)
	}

	// The subscription outlives the bind call, so it keeps ctx's values but
	// not its cancellation.
	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	fail := func(err error) (*Subscription, error) {
		cancel()
		_ = sub.Close()
		return nil, errspkg.NewTransportUnavailable("bind", c.name, err)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	out, err := sub.Subscribe(subCtx, c.name)
	if err != nil {
		return fail(err)
	}
	if waiter, ok := sub.(transport.ReadinessWaiter); ok {
		if err := waiter.WaitReady(ctx); err != nil {
			return fail(err)
		}
	}

	s := &Subscription{
		channel:      c,
		subscriberID: subscriberID,
		queue:        queue,
		subscriber:   sub,
		out:          out,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	if err := c.exchange.track(s); err != nil {
		return fail(err)
	}

	c.exchange.logger.Info("Bound subscriber", logging.LogFields{
		"exchange":   c.name,
		"subscriber": subscriberID,
		"queue":      queue,
	})
	return s, nil
}

// Publish hands msg to the transport. It returns once the broker accepted
// the message; delivery to each subscription happens independently.
func (c *Channel) Publish(ctx context.Context, msg Message) (err error) {
	ctx, span := c.exchange.tracer.Start(ctx, "outagewire.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", c.name),
			attribute.String("messaging.message.id", msg.UUID),
			attribute.Int("messaging.message.body.size", len(msg.Payload)),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	if c.exchange.isClosed() {
		return errspkg.NewTransportUnavailable("publish", c.name, errExchangeClosed)
	}

	wmsg, err := msg.toWatermill()
	if err != nil {
		return fmt.Errorf("prepare message %s: %w", msg.UUID, err)
	}
	wmsg.SetContext(ctx)

	if err := c.exchange.transport.Publisher.Publish(c.name, wmsg); err != nil {
		return errspkg.NewTransportUnavailable("publish", c.name, err)
	}
	return nil
}

// QueueName returns a fresh private queue name for subscriberID on channel.
func QueueName(channel, subscriberID string) string {
	return channel + "." + subscriberID + "." + ids.CreateULID()
}
