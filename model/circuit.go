package model

import (
	"errors"
	"fmt"
	"math"
)

// CircuitMode identifies the operating phase of the measurement circuit.
type CircuitMode string

const (
	// ModeIdle is the cold state: nothing has run since power-on or reset.
	ModeIdle CircuitMode = "idle"
	// ModeCharging ramps the capacitor toward the source voltage.
	ModeCharging CircuitMode = "charging"
	// ModeDischarging lets the capacitor decay through the leakage resistance.
	ModeDischarging CircuitMode = "discharging"
	// ModePaused freezes voltage and stopwatch, preserving both.
	ModePaused CircuitMode = "paused"
)

// Valid reports whether m is one of the defined modes.
func (m CircuitMode) Valid() bool {
	switch m {
	case ModeIdle, ModeCharging, ModeDischarging, ModePaused:
		return true
	}
	return false
}

// ErrInvalidParameter marks a circuit parameter that failed validation.
// Callers can match it with errors.Is.
var ErrInvalidParameter = errors.New("invalid circuit parameter")

// Parameters is the electrical configuration of the bench: the charging
// source, the leakage resistance under test and the capacitor.
//
// All three values must be positive and finite. Validation happens at
// the configuration boundary (config load, parameter updates over the
// API); code past that boundary assumes it holds.
type Parameters struct {
	SourceVoltageV float64 `json:"source_voltage_v" yaml:"source_voltage_v"`
	ResistanceOhm  float64 `json:"resistance_ohm" yaml:"resistance_ohm"`
	CapacitanceF   float64 `json:"capacitance_f" yaml:"capacitance_f"`
}

// TimeConstantS returns the RC time constant in seconds.
func (p Parameters) TimeConstantS() float64 {
	return p.ResistanceOhm * p.CapacitanceF
}

// Validate checks that every parameter is a positive finite number.
func (p Parameters) Validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"source_voltage_v", p.SourceVoltageV},
		{"resistance_ohm", p.ResistanceOhm},
		{"capacitance_f", p.CapacitanceF},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidParameter, f.name)
		}
		if f.value <= 0 {
			return fmt.Errorf("%w: %s must be > 0, got %v", ErrInvalidParameter, f.name, f.value)
		}
	}
	return nil
}
