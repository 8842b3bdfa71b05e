package runtime

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	errspkg "github.com/electsolve/outagewire/internal/runtime/errors"
)

// Metrics holds the Prometheus collectors of a Service.
type Metrics struct {
	mu sync.Mutex

	published         *prometheus.CounterVec
	publishFailures   *prometheus.CounterVec
	delivered         *prometheus.CounterVec
	schemaViolations  *prometheus.CounterVec
	handlerFailures   *prometheus.CounterVec
	handlingDurations *prometheus.HistogramVec

	registerer prometheus.Registerer
	registered bool
}

// newCounterVec creates a counter vec in the outagewire namespace.
func newCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outagewire",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewMetrics creates the collectors. A nil registerer uses the Prometheus default.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		registerer:       registerer,
		published:        newCounterVec("messages_published_total", "Total number of batches published", []string{"exchange", "codec"}),
		publishFailures:  newCounterVec("publish_failures_total", "Total number of publish attempts rejected by the transport", []string{"exchange"}),
		delivered:        newCounterVec("messages_delivered_total", "Total number of messages received by a subscriber", []string{"exchange", "subscriber"}),
		schemaViolations: newCounterVec("schema_violations_total", "Total number of received messages dropped because they could not be decoded", []string{"exchange", "subscriber"}),
		handlerFailures:  newCounterVec("handler_failures_total", "Total number of handler errors and panics", []string{"exchange", "subscriber"}),
		handlingDurations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "outagewire",
				Name:      "handling_duration_seconds",
				Help:      "Time from receipt to handler completion",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"exchange", "subscriber"},
		),
	}
}

// Register registers the collectors. Safe to call multiple times.
func (m *Metrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.published,
		m.publishFailures,
		m.delivered,
		m.schemaViolations,
		m.handlerFailures,
		m.handlingDurations,
	}

	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// RecordPublished counts a batch accepted by the transport.
func (m *Metrics) RecordPublished(exchange, codec string) {
	m.published.WithLabelValues(exchange, codec).Inc()
}

// RecordPublishFailure counts a batch the transport rejected.
func (m *Metrics) RecordPublishFailure(exchange string) {
	m.publishFailures.WithLabelValues(exchange).Inc()
}

// RecordDelivered counts a message received by subscriber.
func (m *Metrics) RecordDelivered(exchange, subscriber string) {
	m.delivered.WithLabelValues(exchange, subscriber).Inc()
}

// RecordHandled observes the handling time of a successful delivery in seconds.
func (m *Metrics) RecordHandled(exchange, subscriber string, seconds float64) {
	m.handlingDurations.WithLabelValues(exchange, subscriber).Observe(seconds)
}

// RecordFailure counts err against the schema violation or handler failure
// counter. Other errors are ignored.
func (m *Metrics) RecordFailure(exchange, subscriber string, err error) {
	switch {
	case errors.Is(err, errspkg.ErrSchemaViolation):
		m.schemaViolations.WithLabelValues(exchange, subscriber).Inc()
	case errors.Is(err, errspkg.ErrHandlerFailure):
		m.handlerFailures.WithLabelValues(exchange, subscriber).Inc()
	}
}
