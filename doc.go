// Package outagewire broadcasts outage event batches from one producer to
// any number of independent subscribers. It sits on top of Watermill: the
// target transport (RabbitMQ, NATS, Kafka, AWS SNS/SQS or in-process Go
// channels) is read from Config, a fanout channel is declared on it and
// every subscriber gets a private queue bound to that channel.
//
// Service hosts the channel. PublishBatch encodes a Batch with the
// configured codec (XML, JSON or protowire) and stamps the ObjectType,
// ContentType, SchemaVersion and CorrelationId metadata. RegisterSubscriber
// binds a queue right away and Start runs one delivery loop per subscriber.
// The loop acknowledges each message on receipt, decodes it by its content
// type and hands the batch to the handler. Messages that cannot be decoded
// are logged and dropped; a failing or panicking handler never stops the
// loop.
//
// # Transports
//
//   - channel: In-memory Go channels for tests and single-process setups
//   - rabbitmq: A fanout exchange with exclusive, auto-deleted queues
//   - nats: Core NATS subjects, one subscription per queue
//   - kafka: A topic per channel with one consumer group per queue
//   - aws: An SNS topic fanned out to one SQS queue per subscriber
//
// # Metadata
//
// Metadata is an ordered carrier of typed values. Transports without typed
// headers carry the value kinds in a string sidecar so that an Int8 sent is
// an Int8 received.
//
// # Observability
//
// With MetricsEnabled the service registers Prometheus counters and serves
// /metrics and /api/subscribers on MetricsPort. Publish and delivery run
// inside OpenTelemetry spans. Hooks adds OnReceived, OnHandled and OnFailed
// callbacks around every delivery.
package outagewire
