package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/voltbench/leakage-simulator/internal/logging"
	"github.com/voltbench/leakage-simulator/internal/observability"
)

const (
	defaultBufferCapacity = 256
	connectTimeout        = 10 * time.Second
	publishTimeout        = 5 * time.Second
)

// Options configures the broker publisher.
type Options struct {
	// BrokerURL is the MQTT broker, e.g. "tcp://localhost:1883".
	BrokerURL string

	// ClientID identifies this station to the broker.
	ClientID string

	// TopicPrefix is expanded into the readings/events/system topics.
	TopicPrefix string

	// BufferCapacity bounds the replay buffer used while the broker is
	// unreachable. Zero selects the default.
	BufferCapacity int
}

// BrokerPublisher publishes to an actual MQTT broker. Events and
// system messages that arrive while the connection is down are held in
// a bounded buffer and replayed on reconnect; readings are dropped
// since the next one supersedes them.
type BrokerPublisher struct {
	client    paho.Client
	topics    Topics
	brokerURL string
	log       logging.Logger
	metrics   *observability.TelemetryCollector

	mu        sync.Mutex
	buffer    *ringBuffer
	connected bool // set after the initial connect
}

// NewBrokerPublisher creates a publisher connected to the given
// broker. If the broker is unreachable at startup the publisher is
// still returned: the paho client keeps retrying in the background and
// buffered messages are replayed once the connection comes up.
func NewBrokerPublisher(ctx context.Context, opts Options, log logging.Logger, metrics *observability.TelemetryCollector) (*BrokerPublisher, error) {
	if log == nil {
		log = logging.Noop()
	}
	capacity := opts.BufferCapacity
	if capacity <= 0 {
		capacity = defaultBufferCapacity
	}

	p := &BrokerPublisher{
		topics:    TopicsFor(opts.TopicPrefix),
		brokerURL: opts.BrokerURL,
		log:       log,
		metrics:   metrics,
		buffer:    newRingBuffer(capacity),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "OFFLINE",
		Reason:    "CONNECTION_LOST",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	clientOpts := paho.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(p.topics.System, will, 1, false).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(clientOpts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		p.log.Warn(ctx, "broker not reachable yet, buffering telemetry",
			logging.String("broker", opts.BrokerURL))
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// PublishReading sends a voltage reading to the broker. QoS 0:
// readings are high-rate and a lost one is superseded by the next.
func (p *BrokerPublisher) PublishReading(r Reading) error {
	payload, err := FormatReadingPayload(r)
	if err != nil {
		return fmt.Errorf("format reading payload: %w", err)
	}
	return p.publish(p.topics.Readings, 0, false, payload)
}

// PublishEvent sends a circuit mode transition to the broker. QoS 1:
// transitions are sparse and downstream consumers need each one.
func (p *BrokerPublisher) PublishEvent(e Event) error {
	payload, err := FormatEventPayload(e)
	if err != nil {
		return fmt.Errorf("format event payload: %w", err)
	}
	return p.publish(p.topics.Events, 1, false, payload)
}

// PublishSystem sends a system lifecycle event to the broker.
func (p *BrokerPublisher) PublishSystem(e SystemEvent) error {
	payload, err := FormatSystemPayload(e)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(p.topics.System, 1, e.Retained, payload)
}

// publish delivers one message, or routes it through the replay buffer
// when the connection is down. IsConnectionOpen stays false while the
// paho client reconnects in the background.
func (p *BrokerPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		if qos == 0 {
			return nil
		}

		p.mu.Lock()
		firstDrop := p.buffer.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		depth := p.buffer.len()
		p.mu.Unlock()

		if firstDrop {
			p.log.Warn(context.Background(), "telemetry buffer full, dropping oldest message",
				logging.Int("buffered", depth))
		}
		p.metrics.SetBuffered(depth)
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.metrics.IncPublishError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		p.metrics.IncPublishError()
		return fmt.Errorf("publish: %w", err)
	}
	p.metrics.IncPublished(topic)
	return nil
}

// onConnect fires on every successful connect, including the first.
func (p *BrokerPublisher) onConnect(client paho.Client) {
	ctx := context.Background()

	p.mu.Lock()
	first := !p.connected
	p.connected = true
	pending := p.buffer.drainAll()
	p.mu.Unlock()

	if first {
		p.log.Info(ctx, "mqtt connected", logging.String("broker", p.brokerURL))
	} else {
		p.metrics.IncReconnects()
		p.log.Info(ctx, "mqtt reconnected", logging.String("broker", p.brokerURL))
	}

	if len(pending) > 0 {
		p.log.Info(ctx, "replaying buffered telemetry", logging.Int("count", len(pending)))
		for _, msg := range pending {
			token := client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
			if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
				p.metrics.IncPublishError()
				p.log.Warn(ctx, "replay publish failed", logging.String("topic", msg.topic))
				continue
			}
			p.metrics.IncPublished(msg.topic)
		}
	}
	p.metrics.SetBuffered(0)
}

func (p *BrokerPublisher) onConnectionLost(_ paho.Client, err error) {
	p.log.Warn(context.Background(), "mqtt connection lost", logging.Err(err))
}

// IsConnected reports whether the broker connection is currently open.
func (p *BrokerPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *BrokerPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second quiesce
	return nil
}
