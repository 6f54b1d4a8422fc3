package core

import (
	"math/rand"
	"time"

	"github.com/voltbench/leakage-simulator/model"
)

// DefaultNoiseAmplitudeV is the peak-to-peak synthetic measurement
// noise on logged readings. Wide enough that students see scatter on
// the chart, narrow enough that a regression still recovers RC.
const DefaultNoiseAmplitudeV = 0.05

// TraceRecorder accumulates the discharge curve: one noisy reading per
// tick while the circuit discharges, nothing otherwise. The log is
// append-only and time-ordered; it is cleared when a new charge begins
// and on reset, by whoever owns both engine and recorder.
//
// Like Engine, TraceRecorder is not safe for concurrent use.
type TraceRecorder struct {
	samples    []model.Sample
	amplitudeV float64
	rng        *rand.Rand
}

// RecorderOption configures a TraceRecorder.
type RecorderOption func(*TraceRecorder)

// WithNoiseAmplitude sets the peak-to-peak noise in volts. Zero
// disables noise entirely.
func WithNoiseAmplitude(v float64) RecorderOption {
	return func(r *TraceRecorder) { r.amplitudeV = v }
}

// WithNoiseSource injects the random source, letting tests and
// deterministic runs fix the seed.
func WithNoiseSource(rng *rand.Rand) RecorderOption {
	return func(r *TraceRecorder) { r.rng = rng }
}

// NewTraceRecorder returns an empty recorder with default noise and a
// time-seeded source.
func NewTraceRecorder(opts ...RecorderOption) *TraceRecorder {
	r := &TraceRecorder{
		amplitudeV: DefaultNoiseAmplitudeV,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Observe appends a reading when the circuit is discharging. The
// reading is the true voltage plus uniform noise in [-A/2, +A/2],
// floored at zero volts: a real meter never reads negative here.
func (r *TraceRecorder) Observe(mode model.CircuitMode, elapsedS, voltageV float64) {
	if mode != model.ModeDischarging {
		return
	}
	v := voltageV + (r.rng.Float64()-0.5)*r.amplitudeV
	if v < 0 {
		v = 0
	}
	r.samples = append(r.samples, model.Sample{TimeS: elapsedS, VoltageV: v})
}

// Len reports the number of logged readings.
func (r *TraceRecorder) Len() int { return len(r.samples) }

// Samples returns a copy of the full log, oldest first.
func (r *TraceRecorder) Samples() []model.Sample {
	out := make([]model.Sample, len(r.samples))
	copy(out, r.samples)
	return out
}

// Tail returns a copy of the most recent n readings, oldest first.
// n <= 0 returns an empty slice.
func (r *TraceRecorder) Tail(n int) []model.Sample {
	if n <= 0 {
		return []model.Sample{}
	}
	if n > len(r.samples) {
		n = len(r.samples)
	}
	out := make([]model.Sample, n)
	copy(out, r.samples[len(r.samples)-n:])
	return out
}

// Clear empties the log.
func (r *TraceRecorder) Clear() {
	r.samples = r.samples[:0]
}
