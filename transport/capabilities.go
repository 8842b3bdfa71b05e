package transport

// Capabilities describes the features supported by a transport backend.
// Use this to introspect what operations are available at runtime.
type Capabilities struct {
	// TypedHeaders indicates the transport's marshaler writes metadata values
	// as native broker header types and drops the kinds sidecar from the
	// wire. When false, the sidecar travels with every message.
	TypedHeaders bool

	// SupportsDeclare indicates the fanout channel is declared eagerly on the
	// broker rather than created on first publish.
	SupportsDeclare bool

	// SupportsOrdering indicates a single subscriber sees messages in publish order.
	SupportsOrdering bool

	// SupportsAck indicates the transport supports explicit message acknowledgment.
	SupportsAck bool

	// SupportsExpiration indicates published messages can carry a time to live.
	SupportsExpiration bool

	// MaxMessageSize is the maximum message size in bytes (0 = unlimited/unknown).
	MaxMessageSize int64

	// Name is the human-readable name of the transport.
	Name string
}

// Accepts reports whether a payload of size bytes fits the broker limit.
func (c Capabilities) Accepts(size int) bool {
	return c.MaxMessageSize == 0 || int64(size) <= c.MaxMessageSize
}

// Predefined capability sets for the bundled transports.
var (
	// ChannelCapabilities for the in-memory Go channel transport.
	ChannelCapabilities = Capabilities{
		Name:        "channel",
		SupportsAck: true,
	}

	// RabbitMQCapabilities for RabbitMQ/AMQP transport.
	RabbitMQCapabilities = Capabilities{
		Name:               "rabbitmq",
		TypedHeaders:       true,
		SupportsDeclare:    true,
		SupportsOrdering:   true,
		SupportsAck:        true,
		SupportsExpiration: true,
		MaxMessageSize:     134217728, // 128MB broker default
	}

	// NATSCapabilities for NATS Core transport.
	NATSCapabilities = Capabilities{
		Name:             "nats",
		SupportsOrdering: true,
		MaxMessageSize:   1048576, // Default 1MB
	}

	// KafkaCapabilities for Apache Kafka transport.
	KafkaCapabilities = Capabilities{
		Name:             "kafka",
		SupportsOrdering: true,
		SupportsAck:      true,
		MaxMessageSize:   1048576, // Default 1MB
	}

	// AWSCapabilities for AWS SNS/SQS transport.
	AWSCapabilities = Capabilities{
		Name:           "aws",
		SupportsAck:    true,
		MaxMessageSize: 262144, // 256KB
	}
)

// GetCapabilities returns the capabilities for a transport by name.
// Uses the registry to look up capabilities registered by each transport package.
// Returns a zero Capabilities struct if the transport is unknown.
func GetCapabilities(transportName string) Capabilities {
	return DefaultRegistry.GetCapabilities(transportName)
}
