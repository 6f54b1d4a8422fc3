package bench

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/voltbench/leakage-simulator/core"
	"github.com/voltbench/leakage-simulator/internal/logging"
	"github.com/voltbench/leakage-simulator/model"
)

func classroomParams() model.Parameters {
	return model.Parameters{SourceVoltageV: 5, ResistanceOhm: 1e6, CapacitanceF: 1e-6}
}

func newTestBench(t *testing.T, opts ...Option) *Bench {
	t.Helper()
	base := []Option{WithRecorder(core.NewTraceRecorder(
		core.WithNoiseAmplitude(0),
		core.WithNoiseSource(rand.New(rand.NewSource(1))),
	))}
	b, err := New(classroomParams(), logging.Noop(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

// tick runs n driver frames 100 ms of simulated time apart, starting
// one frame after base so the cold-start frame is included.
func tick(b *Bench, base time.Time, n int) time.Time {
	now := base
	for i := 0; i < n; i++ {
		b.Tick(now)
		now = now.Add(100 * time.Millisecond)
	}
	return now
}

func TestNewRejectsInvalidParameters(t *testing.T) {
	_, err := New(model.Parameters{SourceVoltageV: 0, ResistanceOhm: 1, CapacitanceF: 1}, logging.Noop())
	if !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("New with zero voltage = %v, want ErrInvalidParameter", err)
	}
}

func TestChargeDischargeCycleLogsTrace(t *testing.T) {
	b := newTestBench(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	b.Apply(context.Background(), model.CommandCharge)
	now := tick(b, base, 5) // cold-start frame + four 100 ms steps

	snap := b.Snapshot()
	if snap.Mode != model.ModeCharging {
		t.Fatalf("mode = %q, want charging", snap.Mode)
	}
	if snap.VoltageV != 5 {
		t.Fatalf("voltage after charge = %v, want 5", snap.VoltageV)
	}
	if snap.SampleCount != 0 {
		t.Fatalf("trace during charge = %d samples, want 0", snap.SampleCount)
	}

	b.Apply(context.Background(), model.CommandDischarge)
	tick(b, now, 10)

	samples := b.TraceSamples()
	if len(samples) != 10 {
		t.Fatalf("trace after 10 discharge ticks = %d samples, want 10", len(samples))
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].TimeS <= samples[i-1].TimeS {
			t.Fatalf("sample %d time %v <= previous %v", i, samples[i].TimeS, samples[i-1].TimeS)
		}
	}
}

func TestChargeEntryClearsTrace(t *testing.T) {
	b := newTestBench(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	b.Apply(context.Background(), model.CommandCharge)
	now := tick(b, base, 3)
	b.Apply(context.Background(), model.CommandDischarge)
	tick(b, now, 5)
	if got := len(b.TraceSamples()); got != 5 {
		t.Fatalf("trace = %d samples, want 5", got)
	}

	// A fresh charge wipes the previous measurement.
	b.Apply(context.Background(), model.CommandCharge)
	if got := len(b.TraceSamples()); got != 0 {
		t.Fatalf("trace after charge entry = %d samples, want 0", got)
	}
	if got := b.Snapshot().ElapsedS; got != 0 {
		t.Fatalf("elapsed after charge entry = %v, want 0", got)
	}

	// Toggling charge off via a second charge command pauses without
	// touching the (empty) trace or re-clearing a running one.
	b.Apply(context.Background(), model.CommandCharge)
	if got := b.Snapshot().Mode; got != model.ModePaused {
		t.Fatalf("mode after charge toggle = %q, want paused", got)
	}
}

func TestResetClearsEverything(t *testing.T) {
	b := newTestBench(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	b.Apply(context.Background(), model.CommandCharge)
	now := tick(b, base, 3)
	b.Apply(context.Background(), model.CommandDischarge)
	tick(b, now, 4)

	snap := b.Apply(context.Background(), model.CommandReset)
	if snap.Mode != model.ModeIdle || snap.VoltageV != 0 || snap.ElapsedS != 0 || snap.SampleCount != 0 {
		t.Fatalf("after reset: %+v, want idle/0/0/0 samples", snap)
	}

	// Idempotent.
	snap = b.Apply(context.Background(), model.CommandReset)
	if snap.Mode != model.ModeIdle || snap.VoltageV != 0 || snap.ElapsedS != 0 || snap.SampleCount != 0 {
		t.Fatalf("after second reset: %+v, want idle/0/0/0 samples", snap)
	}
}

func TestTransitionListenerFiresOnModeChange(t *testing.T) {
	type transition struct {
		cmd      model.Command
		from, to model.CircuitMode
	}
	var seen []transition
	b := newTestBench(t, WithTransitionListener(func(cmd model.Command, from, to model.CircuitMode, snap model.Snapshot) {
		seen = append(seen, transition{cmd, from, to})
	}))

	b.Apply(context.Background(), model.CommandCharge)
	b.Apply(context.Background(), model.CommandStop)
	b.Apply(context.Background(), model.CommandStop) // paused -> paused: no event

	want := []transition{
		{model.CommandCharge, model.ModeIdle, model.ModeCharging},
		{model.CommandStop, model.ModeCharging, model.ModePaused},
	}
	if len(seen) != len(want) {
		t.Fatalf("transitions = %+v, want %+v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transition %d = %+v, want %+v", i, seen[i], want[i])
		}
	}
}

func TestTransitionListenerMayReadBench(t *testing.T) {
	// Listeners run outside the bench lock; reading back must not
	// deadlock.
	var got model.Snapshot
	b := newTestBench(t, WithTransitionListener(func(cmd model.Command, from, to model.CircuitMode, snap model.Snapshot) {
		got = b.Snapshot()
	}))

	b.Apply(context.Background(), model.CommandCharge)
	if got.Mode != model.ModeCharging {
		t.Fatalf("listener snapshot mode = %q, want charging", got.Mode)
	}
}

type stubMetrics struct {
	mu       sync.Mutex
	ticks    int
	samples  int
	commands []model.Command
	lastMode model.CircuitMode
}

func (m *stubMetrics) ObserveTick(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks++
}

func (m *stubMetrics) RecordCommand(cmd model.Command) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, cmd)
}

func (m *stubMetrics) RecordSample() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples++
}

func (m *stubMetrics) SetCircuit(mode model.CircuitMode, voltageV, elapsedS float64, traceLen int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastMode = mode
}

func TestMetricsRecorderSeesTicksAndCommands(t *testing.T) {
	rec := &stubMetrics{}
	b := newTestBench(t, WithMetricsRecorder(rec))
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	b.Apply(context.Background(), model.CommandCharge)
	now := tick(b, base, 3)
	b.Apply(context.Background(), model.CommandDischarge)
	tick(b, now, 4)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.ticks != 7 {
		t.Fatalf("observed ticks = %d, want 7", rec.ticks)
	}
	if rec.samples != 4 {
		t.Fatalf("recorded samples = %d, want 4", rec.samples)
	}
	if len(rec.commands) != 2 || rec.commands[0] != model.CommandCharge || rec.commands[1] != model.CommandDischarge {
		t.Fatalf("commands = %v, want [charge discharge]", rec.commands)
	}
	if rec.lastMode != model.ModeDischarging {
		t.Fatalf("last mode = %q, want discharging", rec.lastMode)
	}
}

func TestSetParamsValidatesAndSwaps(t *testing.T) {
	b := newTestBench(t)

	bad := classroomParams()
	bad.CapacitanceF = -1
	if err := b.SetParams(context.Background(), bad); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("SetParams(bad) = %v, want ErrInvalidParameter", err)
	}

	good := classroomParams()
	good.ResistanceOhm = 2e6
	if err := b.SetParams(context.Background(), good); err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	if got := b.Params().ResistanceOhm; got != 2e6 {
		t.Fatalf("resistance = %v, want 2e6", got)
	}
}

func TestAssistantContextTracksState(t *testing.T) {
	b := newTestBench(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	b.Apply(context.Background(), model.CommandCharge)
	now := tick(b, base, 3)
	b.Apply(context.Background(), model.CommandDischarge)
	tick(b, now, 11) // cold frame already consumed: 1.1 s of discharge

	ctx := b.AssistantContext()
	if ctx.SourceVoltageV != 5 {
		t.Fatalf("v0 = %v, want 5", ctx.SourceVoltageV)
	}
	if ctx.CapacitanceF != 1e-6 {
		t.Fatalf("c = %v, want 1e-6", ctx.CapacitanceF)
	}
	if ctx.ElapsedS != 1.1 {
		t.Fatalf("t = %v, want 1.1", ctx.ElapsedS)
	}
	if ctx.VoltageV != 1.664 {
		t.Fatalf("vt = %v, want 1.664 (5V decayed 1.1s, 3 decimals)", ctx.VoltageV)
	}
}

func TestSnapshotIsStampedByInjectedClock(t *testing.T) {
	stamp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := newTestBench(t, WithClock(func() time.Time { return stamp }))

	if got := b.Snapshot().TakenAt; !got.Equal(stamp) {
		t.Fatalf("TakenAt = %v, want %v", got, stamp)
	}
}

func TestConcurrentReadersDoNotRace(t *testing.T) {
	b := newTestBench(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b.Apply(context.Background(), model.CommandCharge)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				_ = b.Snapshot()
				_ = b.TraceSamples()
				_ = b.AssistantContext()
			}
		}()
	}

	now := base
	for i := 0; i < 200; i++ {
		b.Tick(now)
		now = now.Add(10 * time.Millisecond)
		if i%50 == 25 {
			b.Apply(context.Background(), model.CommandDischarge)
		}
	}
	close(stop)
	wg.Wait()
}
