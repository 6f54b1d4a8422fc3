package bench

import (
	"context"
	"sync"
	"time"

	"github.com/voltbench/leakage-simulator/core"
	"github.com/voltbench/leakage-simulator/internal/logging"
	"github.com/voltbench/leakage-simulator/model"
)

// Re-export model sentinel errors so callers can depend on bench.*
// instead of model.* directly if they want to.
var (
	// ErrInvalidParameter indicates a circuit parameter failed validation.
	ErrInvalidParameter = model.ErrInvalidParameter
	// ErrUnknownCommand indicates a control string that is not a command.
	ErrUnknownCommand = model.ErrUnknownCommand
)

// MetricsRecorder receives bench-level metric updates.
type MetricsRecorder interface {
	ObserveTick(d time.Duration)
	RecordCommand(cmd model.Command)
	RecordSample()
	SetCircuit(mode model.CircuitMode, voltageV, elapsedS float64, traceLen int)
}

// TransitionListener is notified after a command changes the circuit
// mode, with the command that caused it. Listeners run outside the
// bench lock and receive a value snapshot, so they may call back into
// the bench safely.
type TransitionListener func(cmd model.Command, from, to model.CircuitMode, snap model.Snapshot)

// Bench owns the station state: the circuit engine and the trace
// recorder behind one coarse lock. The tick driver and the control
// surfaces are the only writers; every read side gets value copies.
type Bench struct {
	// mu is the coarse bench-level lock. Engine and recorder are only
	// touched while holding it.
	mu       sync.RWMutex
	engine   *core.Engine
	recorder *core.TraceRecorder

	// now stamps snapshots; injectable for tests.
	now func() time.Time

	log       logging.Logger
	metrics   MetricsRecorder
	listeners []TransitionListener
}

// Option customises Bench construction.
type Option func(*Bench)

// WithMetricsRecorder attaches an optional recorder for circuit gauges
// and counters.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(b *Bench) {
		b.metrics = m
	}
}

// WithTransitionListener registers a listener for mode changes.
// Listeners must be registered at construction; they are not
// synchronised afterwards.
func WithTransitionListener(fn TransitionListener) Option {
	return func(b *Bench) {
		if fn != nil {
			b.listeners = append(b.listeners, fn)
		}
	}
}

// WithRecorder replaces the default trace recorder, letting callers
// control noise amplitude and seeding.
func WithRecorder(r *core.TraceRecorder) Option {
	return func(b *Bench) {
		if r != nil {
			b.recorder = r
		}
	}
}

// WithClock injects the wall clock used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(b *Bench) {
		if now != nil {
			b.now = now
		}
	}
}

// New wires an idle bench from validated parameters. Parameters are
// checked here: this is the boundary past which the engine trusts
// them.
func New(params model.Parameters, log logging.Logger, opts ...Option) (*Bench, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Noop()
	}
	b := &Bench{
		engine:   core.NewEngine(params),
		recorder: core.NewTraceRecorder(),
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	b.publishCircuitLocked()
	return b, nil
}

// Tick advances the circuit to the simulated instant simTime and logs
// a discharge reading if one is due. It is the per-frame entry point
// for the tick driver.
func (b *Bench) Tick(simTime time.Time) {
	start := time.Now()

	b.mu.Lock()
	b.engine.Tick(simTime)
	before := b.recorder.Len()
	b.recorder.Observe(b.engine.Mode(), b.engine.ElapsedS(), b.engine.VoltageV())
	sampled := b.recorder.Len() > before
	b.publishCircuitLocked()
	b.mu.Unlock()

	if b.metrics != nil {
		if sampled {
			b.metrics.RecordSample()
		}
		b.metrics.ObserveTick(time.Since(start))
	}
}

// Apply executes a control command and returns the resulting snapshot.
// Commands are total; Apply never fails. Entering the charging phase
// and resetting both clear the trace log, on that edge only.
func (b *Bench) Apply(ctx context.Context, cmd model.Command) model.Snapshot {
	ctx, reqLog := logging.WithRequestLogger(ctx, b.log)

	b.mu.Lock()
	from := b.engine.Mode()
	to := b.engine.Apply(cmd)

	if (cmd == model.CommandCharge && to == model.ModeCharging) || cmd == model.CommandReset {
		b.recorder.Clear()
	}
	b.publishCircuitLocked()
	snap := b.snapshotLocked()
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.RecordCommand(cmd)
	}
	reqLog.Info(ctx, "command applied",
		logging.String("command", string(cmd)),
		logging.String("from", string(from)),
		logging.String("to", string(to)),
		logging.Float64("voltage_v", snap.VoltageV),
	)

	if from != to {
		for _, fn := range b.listeners {
			fn(cmd, from, to, snap)
		}
	}
	return snap
}

// SetParams validates and swaps the electrical configuration. Mode,
// voltage and stopwatch survive; the new RC applies from the next
// tick.
func (b *Bench) SetParams(ctx context.Context, p model.Parameters) error {
	if err := p.Validate(); err != nil {
		return err
	}
	ctx, reqLog := logging.WithRequestLogger(ctx, b.log)

	b.mu.Lock()
	b.engine.SetParams(p)
	b.publishCircuitLocked()
	b.mu.Unlock()

	reqLog.Info(ctx, "parameters updated",
		logging.Float64("source_voltage_v", p.SourceVoltageV),
		logging.Float64("resistance_ohm", p.ResistanceOhm),
		logging.Float64("capacitance_f", p.CapacitanceF),
	)
	return nil
}

// Params returns the current electrical configuration.
func (b *Bench) Params() model.Parameters {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.engine.Params()
}

// Snapshot returns a value view of the bench at this instant.
func (b *Bench) Snapshot() model.Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshotLocked()
}

// AssistantContext returns the rounded summary handed to the
// conversational assistant.
func (b *Bench) AssistantContext() model.AssistantContext {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return model.ContextFromSnapshot(b.snapshotLocked())
}

// TraceSamples returns a copy of the full trace log, oldest first.
func (b *Bench) TraceSamples() []model.Sample {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.recorder.Samples()
}

// TraceTail returns a copy of the most recent n readings.
func (b *Bench) TraceTail(n int) []model.Sample {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.recorder.Tail(n)
}

func (b *Bench) snapshotLocked() model.Snapshot {
	return model.Snapshot{
		Mode:        b.engine.Mode(),
		VoltageV:    b.engine.VoltageV(),
		ElapsedS:    b.engine.ElapsedS(),
		Parameters:  b.engine.Params(),
		SampleCount: b.recorder.Len(),
		TakenAt:     b.now(),
	}
}

func (b *Bench) publishCircuitLocked() {
	if b.metrics == nil {
		return
	}
	b.metrics.SetCircuit(b.engine.Mode(), b.engine.VoltageV(), b.engine.ElapsedS(), b.recorder.Len())
}
