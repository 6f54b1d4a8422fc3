package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// TelemetryCollector exposes MQTT publishing metrics.
type TelemetryCollector struct {
	gatherer prometheus.Gatherer

	PublishedTotal   *prometheus.CounterVec
	PublishErrors    prometheus.Counter
	BufferedMessages prometheus.Gauge
	ReconnectsTotal  prometheus.Counter
}

// NewTelemetryCollector registers telemetry metrics against the provided registerer.
func NewTelemetryCollector(reg prometheus.Registerer) (*TelemetryCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lab_mqtt_published_total",
		Help: "Total number of MQTT messages published, labeled by topic.",
	}, []string{"topic"})
	published, err := registerCounterVec(reg, published, "lab_mqtt_published_total")
	if err != nil {
		return nil, err
	}

	publishErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lab_mqtt_publish_errors_total",
		Help: "Cumulative number of failed MQTT publish attempts.",
	})
	publishErrors, err = registerCounter(reg, publishErrors, "lab_mqtt_publish_errors_total")
	if err != nil {
		return nil, err
	}

	buffered := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lab_mqtt_buffered_messages",
		Help: "Messages held in the retry buffer while the broker is unreachable.",
	})
	buffered, err = registerGauge(reg, buffered, "lab_mqtt_buffered_messages")
	if err != nil {
		return nil, err
	}

	reconnects := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lab_mqtt_reconnects_total",
		Help: "Cumulative number of broker reconnections.",
	})
	reconnects, err = registerCounter(reg, reconnects, "lab_mqtt_reconnects_total")
	if err != nil {
		return nil, err
	}

	return &TelemetryCollector{
		gatherer:         gatherer,
		PublishedTotal:   published,
		PublishErrors:    publishErrors,
		BufferedMessages: buffered,
		ReconnectsTotal:  reconnects,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *TelemetryCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// IncPublished counts one published message on a topic.
func (c *TelemetryCollector) IncPublished(topic string) {
	if c == nil || c.PublishedTotal == nil {
		return
	}
	c.PublishedTotal.WithLabelValues(topic).Inc()
}

// IncPublishError counts one failed publish attempt.
func (c *TelemetryCollector) IncPublishError() {
	if c == nil || c.PublishErrors == nil {
		return
	}
	c.PublishErrors.Inc()
}

// SetBuffered updates the retry buffer depth gauge.
func (c *TelemetryCollector) SetBuffered(count int) {
	if c == nil || c.BufferedMessages == nil {
		return
	}
	c.BufferedMessages.Set(float64(count))
}

// IncReconnects counts one broker reconnection.
func (c *TelemetryCollector) IncReconnects() {
	if c == nil || c.ReconnectsTotal == nil {
		return
	}
	c.ReconnectsTotal.Inc()
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
