package core

import (
	"math"
	"time"

	"github.com/voltbench/leakage-simulator/model"
)

const (
	// chargeRatePerSecond is the gain of the charging ease. At a 100 ms
	// tick the capacitor covers the remaining gap in one step, which
	// reads as an instant-but-smooth fill on a live chart.
	chargeRatePerSecond = 10.0

	// chargeSnapEpsilonV is the gap below which the ease snaps to the
	// source voltage instead of creeping asymptotically.
	chargeSnapEpsilonV = 0.01
)

// Engine integrates the RC circuit over time: an eased fill while
// charging, exact exponential decay while discharging, and a frozen
// state otherwise. The discharge stopwatch (elapsed seconds) is the
// t used in the leakage calculation R = t / (C * ln(V0/Vt)).
//
// Engine is not safe for concurrent use. A single goroutine must own
// it; Bench provides the locked wrapper.
type Engine struct {
	params   model.Parameters
	mode     model.CircuitMode
	voltageV float64
	elapsedS float64

	lastTick     time.Time
	haveLastTick bool
}

// NewEngine returns an idle engine at zero volts. Parameters are
// assumed validated; the engine itself never checks them.
func NewEngine(p model.Parameters) *Engine {
	return &Engine{params: p, mode: model.ModeIdle}
}

func (e *Engine) Mode() model.CircuitMode  { return e.mode }
func (e *Engine) VoltageV() float64        { return e.voltageV }
func (e *Engine) ElapsedS() float64        { return e.elapsedS }
func (e *Engine) Params() model.Parameters { return e.params }

// SetParams swaps the electrical configuration. Mode, voltage and
// stopwatch are preserved; the new RC takes effect on the next step.
func (e *Engine) SetParams(p model.Parameters) { e.params = p }

// Tick advances the engine to the wall-clock instant now. The interval
// since the previous tick becomes the integration step; the first tick
// ever only records the instant, so a stale delta never integrates.
func (e *Engine) Tick(now time.Time) {
	if !e.haveLastTick {
		e.lastTick = now
		e.haveLastTick = true
		return
	}
	dt := now.Sub(e.lastTick).Seconds()
	e.lastTick = now
	e.Advance(dt)
}

// Advance integrates a single step of dt seconds, independent of any
// scheduler. Negative steps are treated as zero. Idle and paused
// modes freeze both voltage and stopwatch.
func (e *Engine) Advance(dt float64) {
	if dt < 0 {
		dt = 0
	}
	switch e.mode {
	case model.ModeCharging:
		diff := e.params.SourceVoltageV - e.voltageV
		if math.Abs(diff) < chargeSnapEpsilonV {
			e.voltageV = e.params.SourceVoltageV
			return
		}
		e.voltageV += diff * chargeRatePerSecond * dt
	case model.ModeDischarging:
		e.voltageV *= math.Exp(-dt / e.params.TimeConstantS())
		e.elapsedS += dt
	}
}

// Charge enters the charging phase, or pauses when already charging so
// the same control toggles the fill. Entering charging rearms the
// measurement: the stopwatch returns to zero. The owner of the trace
// log clears it on the same edge.
func (e *Engine) Charge() model.CircuitMode {
	if e.mode == model.ModeCharging {
		e.mode = model.ModePaused
		return e.mode
	}
	e.mode = model.ModeCharging
	e.elapsedS = 0
	return e.mode
}

// Discharge enters the discharging phase, or pauses when already
// discharging. The stopwatch keeps its value, so an interrupted
// discharge resumes where it left off.
func (e *Engine) Discharge() model.CircuitMode {
	if e.mode == model.ModeDischarging {
		e.mode = model.ModePaused
		return e.mode
	}
	e.mode = model.ModeDischarging
	return e.mode
}

// Stop pauses the circuit from any mode, preserving voltage and
// stopwatch.
func (e *Engine) Stop() model.CircuitMode {
	e.mode = model.ModePaused
	return e.mode
}

// Reset returns to the cold state: idle, zero volts, zero seconds.
func (e *Engine) Reset() model.CircuitMode {
	e.mode = model.ModeIdle
	e.voltageV = 0
	e.elapsedS = 0
	return e.mode
}

// Apply dispatches a parsed command and returns the resulting mode.
// Transitions are total: every command is legal in every mode.
// Unparsed strings never reach this point; ParseCommand filters them
// at the transport boundary.
func (e *Engine) Apply(cmd model.Command) model.CircuitMode {
	switch cmd {
	case model.CommandCharge:
		return e.Charge()
	case model.CommandDischarge:
		return e.Discharge()
	case model.CommandStop:
		return e.Stop()
	case model.CommandReset:
		return e.Reset()
	}
	return e.mode
}
