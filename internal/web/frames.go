package web

import (
	"github.com/voltbench/leakage-simulator/internal/bench"
	"github.com/voltbench/leakage-simulator/model"
)

// chartTailLimit bounds the trace tail carried by each frame, so a
// client joining mid-discharge can still draw the curve.
const chartTailLimit = 100

// ChartFrame is one websocket update for the browser chart.
type ChartFrame struct {
	Mode           string         `json:"mode"`
	VoltageV       float64        `json:"voltage_v"`
	ElapsedS       float64        `json:"elapsed_s"`
	SourceVoltageV float64        `json:"source_voltage_v"`
	TimeConstantS  float64        `json:"time_constant_s"`
	SampleCount    int            `json:"sample_count"`
	Trace          []model.Sample `json:"trace"`
}

// BuildFrame assembles a frame from the bench's current state.
func BuildFrame(b *bench.Bench) ChartFrame {
	snap := b.Snapshot()
	return ChartFrame{
		Mode:           string(snap.Mode),
		VoltageV:       snap.VoltageV,
		ElapsedS:       snap.ElapsedS,
		SourceVoltageV: snap.Parameters.SourceVoltageV,
		TimeConstantS:  snap.Parameters.TimeConstantS(),
		SampleCount:    snap.SampleCount,
		Trace:          b.TraceTail(chartTailLimit),
	}
}
