package model

import (
	"math"
	"time"
)

// Snapshot is a read-only view of the bench at one instant. It is a
// value copy: holding one never blocks or observes later mutation.
type Snapshot struct {
	Mode        CircuitMode `json:"mode"`
	VoltageV    float64     `json:"voltage_v"`
	ElapsedS    float64     `json:"elapsed_s"`
	Parameters  Parameters  `json:"parameters"`
	SampleCount int         `json:"sample_count"`
	TakenAt     time.Time   `json:"taken_at"`
}

// AssistantContext is the compact circuit summary handed to a
// conversational assistant. Field names follow the measurement
// convention: v0 source voltage, vt present capacitor voltage,
// t discharge seconds, c capacitance.
type AssistantContext struct {
	SourceVoltageV float64 `json:"v0"`
	VoltageV       float64 `json:"vt"`
	ElapsedS       float64 `json:"t"`
	CapacitanceF   float64 `json:"c"`
}

// ContextFromSnapshot derives the assistant view from a snapshot.
// Voltage is rounded to 3 decimals and elapsed time to 2, enough
// precision for a leakage calculation without prompt clutter.
func ContextFromSnapshot(s Snapshot) AssistantContext {
	return AssistantContext{
		SourceVoltageV: s.Parameters.SourceVoltageV,
		VoltageV:       roundTo(s.VoltageV, 3),
		ElapsedS:       roundTo(s.ElapsedS, 2),
		CapacitanceF:   s.Parameters.CapacitanceF,
	}
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}
