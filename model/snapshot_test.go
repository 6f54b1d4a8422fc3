package model

import "testing"

func TestContextFromSnapshotRounding(t *testing.T) {
	snap := Snapshot{
		Mode:     ModeDischarging,
		VoltageV: 1.83940321,
		ElapsedS: 1.0071,
		Parameters: Parameters{
			SourceVoltageV: 5,
			ResistanceOhm:  1e6,
			CapacitanceF:   1e-6,
		},
	}

	ctx := ContextFromSnapshot(snap)
	if ctx.SourceVoltageV != 5 {
		t.Fatalf("v0 = %v, want 5", ctx.SourceVoltageV)
	}
	if ctx.VoltageV != 1.839 {
		t.Fatalf("vt = %v, want 1.839 (3 decimals)", ctx.VoltageV)
	}
	if ctx.ElapsedS != 1.01 {
		t.Fatalf("t = %v, want 1.01 (2 decimals)", ctx.ElapsedS)
	}
	if ctx.CapacitanceF != 1e-6 {
		t.Fatalf("c = %v, want 1e-6", ctx.CapacitanceF)
	}
}
