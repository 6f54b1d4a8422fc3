// Package telemetry publishes station readings and lifecycle events
// over MQTT, with abstraction for testing.
package telemetry

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/voltbench/leakage-simulator/model"
)

// Topic suffixes under the configured prefix.
const (
	readingsSuffix = "readings"
	eventsSuffix   = "events"
	systemSuffix   = "system"
)

// Topics holds the fully resolved MQTT topics for one station.
type Topics struct {
	// Readings carries throttled voltage readings while discharging.
	Readings string
	// Events carries circuit mode transitions.
	Events string
	// System carries lifecycle messages: startup, shutdown, heartbeat.
	System string
}

// TopicsFor builds the topic set under a prefix such as "lab/leakage".
func TopicsFor(prefix string) Topics {
	prefix = strings.TrimSuffix(prefix, "/")
	return Topics{
		Readings: prefix + "/" + readingsSuffix,
		Events:   prefix + "/" + eventsSuffix,
		System:   prefix + "/" + systemSuffix,
	}
}

// Publisher publishes station telemetry to MQTT.
type Publisher interface {
	// PublishReading sends a voltage reading to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishReading(r Reading) error

	// PublishEvent sends a circuit mode transition to the broker.
	PublishEvent(e Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(e SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Reading is one voltage measurement from the discharging capacitor.
type Reading struct {
	Timestamp time.Time
	Mode      model.CircuitMode
	VoltageV  float64
	ElapsedS  float64
}

// Event is a circuit mode transition caused by an applied command.
type Event struct {
	Timestamp time.Time
	Command   model.Command
	From      model.CircuitMode
	To        model.CircuitMode
	VoltageV  float64
}

// SystemEvent represents a system lifecycle event (e.g. startup,
// shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g. "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g. "SIGTERM", "SIGINT" (shutdown only)
	Station    *StationInfo
	Heartbeat  *HeartbeatInfo
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// StationInfo summarizes the station setup, attached to STARTUP events.
type StationInfo struct {
	SourceVoltageV float64 `json:"source_voltage_v"`
	ResistanceOhm  float64 `json:"resistance_ohm"`
	CapacitanceF   float64 `json:"capacitance_f"`
	TickMs         int64   `json:"tick_ms"`
	Broker         string  `json:"broker"`
}

// HeartbeatInfo carries liveness details, attached to HEARTBEAT events.
type HeartbeatInfo struct {
	UptimeSeconds int64   `json:"uptime_seconds"`
	Mode          string  `json:"mode"`
	VoltageV      float64 `json:"voltage_v"`
	SampleCount   int     `json:"sample_count"`
}

// ReadingPayload is the MQTT message payload for a voltage reading.
type ReadingPayload struct {
	Reading ReadingPayloadInner `json:"reading"`
}

// ReadingPayloadInner contains the reading details.
type ReadingPayloadInner struct {
	Timestamp string  `json:"timestamp"`
	Mode      string  `json:"mode"`
	VoltageV  float64 `json:"voltage_v"`
	ElapsedS  float64 `json:"elapsed_s"`
}

// FormatReadingPayload creates the JSON payload for a voltage reading.
func FormatReadingPayload(r Reading) ([]byte, error) {
	payload := ReadingPayload{
		Reading: ReadingPayloadInner{
			Timestamp: r.Timestamp.UTC().Format(time.RFC3339),
			Mode:      string(r.Mode),
			VoltageV:  r.VoltageV,
			ElapsedS:  r.ElapsedS,
		},
	}
	return json.Marshal(payload)
}

// EventPayload is the MQTT message payload for a mode transition.
type EventPayload struct {
	Event EventPayloadInner `json:"event"`
}

// EventPayloadInner contains the transition details.
type EventPayloadInner struct {
	Timestamp string  `json:"timestamp"`
	Command   string  `json:"command"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	VoltageV  float64 `json:"voltage_v"`
}

// FormatEventPayload creates the JSON payload for a mode transition.
func FormatEventPayload(e Event) ([]byte, error) {
	payload := EventPayload{
		Event: EventPayloadInner{
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
			Command:   string(e.Command),
			From:      string(e.From),
			To:        string(e.To),
			VoltageV:  e.VoltageV,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload is the MQTT message payload for system events.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string         `json:"timestamp"`
	Event     string         `json:"event"`
	Reason    string         `json:"reason,omitempty"`
	Station   *StationInfo   `json:"station,omitempty"`
	Heartbeat *HeartbeatInfo `json:"heartbeat,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(e SystemEvent) ([]byte, error) {
	if e.RawPayload != nil {
		return e.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
			Event:     e.Event,
			Reason:    e.Reason,
			Station:   e.Station,
			Heartbeat: e.Heartbeat,
		},
	}
	return json.Marshal(payload)
}
