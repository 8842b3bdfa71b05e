// Package kafka provides a Kafka transport. Each binding joins a consumer
// group of its own that starts at the newest offset. The group joins in the
// background, so the subscriber reports readiness once every claimed
// partition has a consumer; from then on the binding sees every message
// published and nothing before.
package kafka

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/electsolve/outagewire/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "kafka"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return kafka.NewPublisher(cfg, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg kafka.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return kafka.NewSubscriber(cfg, logger)
}

func init() {
	Register()
}

// Register registers the Kafka transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.KafkaCapabilities)
}

// Build creates a new Kafka transport.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (*transport.Transport, error) {
	brokers := cfg.GetKafkaBrokers()
	clientID := cfg.GetKafkaClientID()

	publisher, err := PublisherFactory(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: publisherSaramaConfig(clientID),
		},
		logger,
	)
	if err != nil {
		return nil, err
	}

	return &transport.Transport{
		Publisher: publisher,
		NewSubscriber: func(queue string) (message.Subscriber, error) {
			tracer := newReadyTracer()
			sub, err := SubscriberFactory(
				kafka.SubscriberConfig{
					Brokers:               brokers,
					Unmarshaler:           kafka.DefaultMarshaler{},
					ConsumerGroup:         queue,
					OverwriteSaramaConfig: subscriberSaramaConfig(clientID),
					Tracer:                tracer,
				},
				logger,
			)
			if err != nil {
				return nil, err
			}
			return &subscriber{Subscriber: sub, ready: tracer.ready}, nil
		},
	}, nil
}

// subscriber is a consumer group subscriber that can wait for its first
// partition assignment.
type subscriber struct {
	message.Subscriber
	ready <-chan struct{}
}

// WaitReady implements transport.ReadinessWaiter.
func (s *subscriber) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readyTracer keeps the OpenTelemetry instrumentation and additionally
// watches the consumer group handler to tell when consumption has started.
type readyTracer struct {
	kafka.SaramaTracer
	ready chan struct{}
	once  sync.Once
}

func newReadyTracer() *readyTracer {
	return &readyTracer{
		SaramaTracer: kafka.NewOTELSaramaTracer(),
		ready:        make(chan struct{}),
	}
}

func (t *readyTracer) markReady() {
	t.once.Do(func() { close(t.ready) })
}

func (t *readyTracer) WrapConsumerGroupHandler(h sarama.ConsumerGroupHandler) sarama.ConsumerGroupHandler {
	return &readyHandler{ConsumerGroupHandler: t.SaramaTracer.WrapConsumerGroupHandler(h), tracer: t}
}

// readyHandler marks the tracer ready once ConsumeClaim has been entered for
// every partition of the session. Sarama resolves the newest offset before
// ConsumeClaim runs, so nothing published afterwards is skipped.
type readyHandler struct {
	sarama.ConsumerGroupHandler
	tracer  *readyTracer
	pending atomic.Int64
}

func (h *readyHandler) Setup(sess sarama.ConsumerGroupSession) error {
	var claims int64
	for _, partitions := range sess.Claims() {
		claims += int64(len(partitions))
	}
	h.pending.Store(claims)
	if err := h.ConsumerGroupHandler.Setup(sess); err != nil {
		return err
	}
	if claims == 0 {
		h.tracer.markReady()
	}
	return nil
}

func (h *readyHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	if h.pending.Add(-1) == 0 {
		h.tracer.markReady()
	}
	return h.ConsumerGroupHandler.ConsumeClaim(sess, claim)
}

func publisherSaramaConfig(clientID string) *sarama.Config {
	c := kafka.DefaultSaramaSyncPublisherConfig()
	if clientID != "" {
		c.ClientID = clientID
	}
	return c
}

func subscriberSaramaConfig(clientID string) *sarama.Config {
	c := kafka.DefaultSaramaSubscriberConfig()
	c.Consumer.Offsets.Initial = sarama.OffsetNewest
	if clientID != "" {
		c.ClientID = clientID
	}
	return c
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.KafkaCapabilities
}
