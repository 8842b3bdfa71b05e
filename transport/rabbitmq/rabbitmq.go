// Package rabbitmq provides a RabbitMQ/AMQP fanout transport. The exchange is
// a fanout exchange and every binding gets its own exclusive, auto-deleted
// queue, so each subscriber sees every message published after it bound.
package rabbitmq

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/electsolve/outagewire/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "rabbitmq"

// ExchangeKind is the AMQP exchange type used for every channel.
const ExchangeKind = "fanout"

// ConnectionFactory allows overriding the connection creation for testing.
var ConnectionFactory = func(cfg amqp.ConnectionConfig, logger watermill.LoggerAdapter) (*amqp.ConnectionWrapper, error) {
	return amqp.NewConnection(cfg, logger)
}

// CloseConnection allows overriding how the shared connection is released.
var CloseConnection = func(conn *amqp.ConnectionWrapper) error {
	return conn.Close()
}

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Publisher, error) {
	return amqp.NewPublisherWithConnection(cfg, logger, conn)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Subscriber, error) {
	return amqp.NewSubscriberWithConnection(cfg, logger, conn)
}

// ExchangeChannel is the part of an AMQP channel used to declare exchanges.
type ExchangeChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	Close() error
}

// DialChannel opens a short-lived channel for declaring exchanges.
var DialChannel = func(ctx context.Context, url string) (ExchangeChannel, error) {
	conn, err := amqp091.DialConfig(url, amqp091.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial: func(network, addr string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	})
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &dialedChannel{Channel: ch, conn: conn}, nil
}

type dialedChannel struct {
	*amqp091.Channel
	conn *amqp091.Connection
}

func (d *dialedChannel) Close() error {
	_ = d.Channel.Close()
	return d.conn.Close()
}

func init() {
	Register()
}

// Register registers the RabbitMQ transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.RabbitMQCapabilities)
}

// Build creates a new RabbitMQ transport sharing one connection between the
// publisher and every per-binding subscriber.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (*transport.Transport, error) {
	url := cfg.GetRabbitMQURL()
	durable := cfg.GetRabbitMQDurableExchange()
	marshaler := Marshaler{TTL: cfg.GetRabbitMQMessageTTL()}

	conn, err := ConnectionFactory(amqp.ConnectionConfig{
		AmqpURI:   url,
		TLSConfig: nil,
		Reconnect: amqp.DefaultReconnectConfig(),
	}, logger)
	if err != nil {
		return nil, err
	}

	publisher, err := PublisherFactory(pubSubConfig(url, "", durable, marshaler), logger, conn)
	if err != nil {
		_ = CloseConnection(conn)
		return nil, err
	}

	return &transport.Transport{
		Publisher: publisher,
		NewSubscriber: func(queue string) (message.Subscriber, error) {
			return SubscriberFactory(pubSubConfig(url, queue, durable, marshaler), logger, conn)
		},
		Declarer: &exchangeDeclarer{url: url, durable: durable, logger: logger},
		Closers:  []func() error{func() error { return CloseConnection(conn) }},
	}, nil
}

// pubSubConfig returns the watermill-amqp configuration for a fanout exchange
// whose subscribers consume from the private queue named queue.
func pubSubConfig(url, queue string, durable bool, marshaler Marshaler) amqp.Config {
	c := amqp.NewNonDurablePubSubConfig(url, func(string) string { return queue })
	c.Exchange.Type = ExchangeKind
	c.Exchange.Durable = durable
	c.Queue.Durable = false
	c.Queue.AutoDelete = true
	c.Queue.Exclusive = true
	c.Marshaler = marshaler
	return c
}

type exchangeDeclarer struct {
	url     string
	durable bool
	logger  watermill.LoggerAdapter
}

// DeclareExchange declares a fanout exchange. Redeclaring an existing
// exchange with the same arguments is a no-op on the broker.
func (d *exchangeDeclarer) DeclareExchange(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ch, err := DialChannel(ctx, d.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(name, ExchangeKind, d.durable, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %q: %w", name, err)
	}
	d.logger.Debug("Declared fanout exchange", watermill.LogFields{"exchange": name, "durable": d.durable})
	return nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.RabbitMQCapabilities
}
