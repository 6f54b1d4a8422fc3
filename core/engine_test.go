package core

import (
	"math"
	"testing"
	"time"

	"github.com/voltbench/leakage-simulator/model"
)

func classroomParams() model.Parameters {
	// 1 MOhm and 1 uF give RC = 1 s, the standard classroom setup.
	return model.Parameters{SourceVoltageV: 5, ResistanceOhm: 1e6, CapacitanceF: 1e-6}
}

func TestDischargeIsExactExponentialDecay(t *testing.T) {
	e := NewEngine(classroomParams())
	e.Charge()
	e.Advance(0.1) // one full-gap step at 100 ms reaches the source
	e.Advance(0.1) // snap
	v0 := e.VoltageV()
	if v0 != 5 {
		t.Fatalf("voltage after charge = %v, want 5", v0)
	}

	e.Discharge()
	e.Advance(0.25)
	want := v0 * math.Exp(-0.25/1.0)
	if got := e.VoltageV(); got != want {
		t.Fatalf("voltage after 0.25 s discharge = %v, want %v", got, want)
	}
	if got := e.ElapsedS(); got != 0.25 {
		t.Fatalf("elapsed = %v, want 0.25", got)
	}
}

func TestClassroomScenarioOneTimeConstant(t *testing.T) {
	// 5 V across RC = 1 s decays to 5/e ~= 1.8394 V after one second,
	// regardless of how the second is sliced into ticks.
	e := NewEngine(classroomParams())
	e.Charge()
	e.Advance(0.1)
	e.Discharge()
	for i := 0; i < 10; i++ {
		e.Advance(0.1)
	}

	want := 5 * math.Exp(-1)
	if got := e.VoltageV(); math.Abs(got-want) > 1e-9 {
		t.Fatalf("voltage after 10 x 0.1 s = %v, want %v", got, want)
	}
	if got := e.ElapsedS(); math.Abs(got-1.0) > 1e-12 {
		t.Fatalf("elapsed = %v, want 1.0", got)
	}
}

func TestChargingConvergesAndSnaps(t *testing.T) {
	p := classroomParams()
	p.SourceVoltageV = 10
	e := NewEngine(p)
	e.Charge()

	for i := 0; i < 50; i++ {
		e.Advance(0.1)
	}
	if got := e.VoltageV(); got != 10 {
		t.Fatalf("voltage after charging = %v, want exactly 10", got)
	}

	// Stays put once reached.
	e.Advance(0.1)
	if got := e.VoltageV(); got != 10 {
		t.Fatalf("voltage after extra tick = %v, want 10", got)
	}
}

func TestChargingSnapsWithinEpsilon(t *testing.T) {
	e := NewEngine(classroomParams())
	e.Charge()
	e.Advance(0.1)    // reaches 5 exactly with the full-gap step
	e.Discharge()     // leak a hair off
	e.Advance(0.0001)
	e.Charge()
	e.Advance(0.0) // gap < 0.01 V: snap even with a zero step
	if got := e.VoltageV(); got != 5 {
		t.Fatalf("voltage = %v, want snap to 5", got)
	}
}

func TestElapsedStaysZeroWhileCharging(t *testing.T) {
	e := NewEngine(classroomParams())
	e.Charge()
	for i := 0; i < 25; i++ {
		e.Advance(0.1)
	}
	if got := e.ElapsedS(); got != 0 {
		t.Fatalf("elapsed after charging ticks = %v, want 0", got)
	}
}

func TestChargeEntryRearmsStopwatch(t *testing.T) {
	e := NewEngine(classroomParams())
	e.Charge()
	e.Advance(0.1)
	e.Discharge()
	e.Advance(0.5)
	if got := e.ElapsedS(); got != 0.5 {
		t.Fatalf("elapsed mid-discharge = %v, want 0.5", got)
	}

	e.Charge()
	if got := e.ElapsedS(); got != 0 {
		t.Fatalf("elapsed after re-entering charge = %v, want 0", got)
	}
}

func TestDischargeResumeKeepsStopwatch(t *testing.T) {
	e := NewEngine(classroomParams())
	e.Charge()
	e.Advance(0.1)
	e.Discharge()
	e.Advance(0.3)
	e.Stop()
	e.Advance(1.0) // frozen
	if got := e.ElapsedS(); got != 0.3 {
		t.Fatalf("elapsed while paused = %v, want 0.3", got)
	}
	e.Discharge()
	e.Advance(0.2)
	if got := e.ElapsedS(); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("elapsed after resume = %v, want 0.5", got)
	}
}

func TestToggleTransitions(t *testing.T) {
	e := NewEngine(classroomParams())
	if got := e.Charge(); got != model.ModeCharging {
		t.Fatalf("Charge() from idle = %q, want charging", got)
	}
	if got := e.Charge(); got != model.ModePaused {
		t.Fatalf("Charge() while charging = %q, want paused", got)
	}

	if got := e.Discharge(); got != model.ModeDischarging {
		t.Fatalf("Discharge() from paused = %q, want discharging", got)
	}
	if got := e.Discharge(); got != model.ModePaused {
		t.Fatalf("Discharge() while discharging = %q, want paused", got)
	}
}

func TestDischargeFromIdle(t *testing.T) {
	// Discharging an uncharged capacitor is pointless but legal: the
	// stopwatch runs and the voltage stays at zero.
	e := NewEngine(classroomParams())
	if got := e.Discharge(); got != model.ModeDischarging {
		t.Fatalf("Discharge() from idle = %q, want discharging", got)
	}
	e.Advance(0.5)
	if got := e.VoltageV(); got != 0 {
		t.Fatalf("voltage = %v, want 0", got)
	}
	if got := e.ElapsedS(); got != 0.5 {
		t.Fatalf("elapsed = %v, want 0.5", got)
	}
}

func TestResetIsIdempotent(t *testing.T) {
	e := NewEngine(classroomParams())
	e.Charge()
	e.Advance(0.1)
	e.Discharge()
	e.Advance(0.4)

	e.Reset()
	if e.Mode() != model.ModeIdle || e.VoltageV() != 0 || e.ElapsedS() != 0 {
		t.Fatalf("after reset: mode=%q v=%v t=%v, want idle/0/0", e.Mode(), e.VoltageV(), e.ElapsedS())
	}
	e.Reset()
	if e.Mode() != model.ModeIdle || e.VoltageV() != 0 || e.ElapsedS() != 0 {
		t.Fatalf("after second reset: mode=%q v=%v t=%v, want idle/0/0", e.Mode(), e.VoltageV(), e.ElapsedS())
	}
}

func TestStopFreezesEverything(t *testing.T) {
	e := NewEngine(classroomParams())
	e.Charge()
	e.Advance(0.05)
	v := e.VoltageV()

	e.Stop()
	e.Advance(10)
	if got := e.VoltageV(); got != v {
		t.Fatalf("voltage while paused = %v, want %v", got, v)
	}
	if got := e.Mode(); got != model.ModePaused {
		t.Fatalf("mode = %q, want paused", got)
	}
}

func TestTickColdStartGuard(t *testing.T) {
	// The first wall-clock tick only records its instant: the engine
	// must not integrate the gap between construction and first tick.
	e := NewEngine(classroomParams())
	e.Charge()

	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e.Tick(t0)
	if got := e.VoltageV(); got != 0 {
		t.Fatalf("voltage after first tick = %v, want 0", got)
	}

	e.Tick(t0.Add(100 * time.Millisecond))
	want := 0 + (5-0)*chargeRatePerSecond*0.1
	if got := e.VoltageV(); math.Abs(got-want) > 1e-12 {
		t.Fatalf("voltage after second tick = %v, want %v", got, want)
	}
}

func TestAdvanceIgnoresNegativeStep(t *testing.T) {
	e := NewEngine(classroomParams())
	e.Charge()
	e.Advance(0.05)
	v := e.VoltageV()
	e.Advance(-1)
	if got := e.VoltageV(); got != v {
		t.Fatalf("voltage after negative step = %v, want %v", got, v)
	}
}

func TestSetParamsPreservesState(t *testing.T) {
	e := NewEngine(classroomParams())
	e.Charge()
	e.Advance(0.05)
	v := e.VoltageV()

	p := e.Params()
	p.ResistanceOhm = 2e6
	e.SetParams(p)
	if e.Mode() != model.ModeCharging || e.VoltageV() != v {
		t.Fatalf("SetParams changed state: mode=%q v=%v", e.Mode(), e.VoltageV())
	}

	// New RC applies to the next discharge step.
	e.Discharge()
	e.Advance(0.5)
	want := v * math.Exp(-0.5/2.0)
	if got := e.VoltageV(); got != want {
		t.Fatalf("voltage with RC=2 = %v, want %v", got, want)
	}
}

func TestApplyDispatch(t *testing.T) {
	e := NewEngine(classroomParams())
	if got := e.Apply(model.CommandCharge); got != model.ModeCharging {
		t.Fatalf("Apply(charge) = %q, want charging", got)
	}
	if got := e.Apply(model.CommandStop); got != model.ModePaused {
		t.Fatalf("Apply(stop) = %q, want paused", got)
	}
	if got := e.Apply(model.CommandDischarge); got != model.ModeDischarging {
		t.Fatalf("Apply(discharge) = %q, want discharging", got)
	}
	if got := e.Apply(model.CommandReset); got != model.ModeIdle {
		t.Fatalf("Apply(reset) = %q, want idle", got)
	}
	if got := e.Apply(model.Command("bogus")); got != model.ModeIdle {
		t.Fatalf("Apply(bogus) = %q, want unchanged idle", got)
	}
}
