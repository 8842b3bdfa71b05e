// Package transport defines the broker abstraction behind an outage exchange.
// Each transport implementation (rabbitmq, kafka, nats, aws, channel) lives in
// its own sub-package and registers itself with the transport registry.
package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// SubscriberFactory opens a subscriber reading from a private queue named
// queue. Every subscriber it returns must receive its own copy of each
// message published to a topic after it subscribed.
type SubscriberFactory func(queue string) (message.Subscriber, error)

// Declarer is implemented by transports whose brokers need the fanout channel
// to exist before anything is bound to it. DeclareExchange must be idempotent.
type Declarer interface {
	DeclareExchange(ctx context.Context, name string) error
}

// DeclarerFunc adapts a function to Declarer.
type DeclarerFunc func(ctx context.Context, name string) error

func (f DeclarerFunc) DeclareExchange(ctx context.Context, name string) error { return f(ctx, name) }

// Transport bundles a publisher with a per-binding subscriber factory.
type Transport struct {
	Publisher     message.Publisher
	NewSubscriber SubscriberFactory

	// Declarer is optional; transports that create topics lazily leave it nil.
	Declarer Declarer

	// Closers release resources shared by the publisher and every subscriber,
	// such as a broker connection. They run after the publisher is closed.
	Closers []func() error

	closeOnce sync.Once
	closeErr  error
}

// DeclareExchange declares name through the transport's Declarer, if any.
func (t *Transport) DeclareExchange(ctx context.Context, name string) error {
	if t.Declarer == nil {
		return nil
	}
	return t.Declarer.DeclareExchange(ctx, name)
}

// Close closes the publisher and then the shared resources. It is safe to
// call more than once.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		var errs []error
		if t.Publisher != nil {
			errs = append(errs, t.Publisher.Close())
		}
		for _, closer := range t.Closers {
			errs = append(errs, closer())
		}
		t.closeErr = errors.Join(errs...)
	})
	return t.closeErr
}

// Builder is the function signature for creating a transport from config.
// Each transport package provides a Builder that is registered by name.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (*Transport, error)

// Config provides the configuration values needed by transports.
// Transports read only what they need without depending on the config package.
type Config interface {
	// GetPubSubSystem returns the transport type name.
	GetPubSubSystem() string

	// RabbitMQ
	GetRabbitMQURL() string
	GetRabbitMQDurableExchange() bool
	GetRabbitMQMessageTTL() time.Duration

	// NATS
	GetNATSURL() string

	// Kafka
	GetKafkaBrokers() []string
	GetKafkaClientID() string

	// AWS
	GetAWSRegion() string
	GetAWSAccountID() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}

// ReadinessWaiter is implemented by subscribers that join their broker in the
// background after Subscribe returns. WaitReady blocks until messages
// published from then on are guaranteed to reach the subscriber.
type ReadinessWaiter interface {
	WaitReady(ctx context.Context) error
}

// CapabilitiesProvider is implemented by transports that can report their capabilities.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}

// SharedSubscriber wraps a subscriber owned by the transport so that closing
// one binding does not tear down the others. Subscriptions still end when
// their context is cancelled.
type SharedSubscriber struct {
	message.Subscriber
}

func (SharedSubscriber) Close() error { return nil }
