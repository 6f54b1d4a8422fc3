package assistant

// LabContextInput defines the input for the lab_context tool.
type LabContextInput struct{}

// LabContextOutput is the compact measurement context: everything a
// student or assistant needs for R = t / (C * ln(v0/vt)).
type LabContextOutput struct {
	SourceVoltageV float64 `json:"v0" jsonschema:"description=Charging source voltage in volts"`
	VoltageV       float64 `json:"vt" jsonschema:"description=Present capacitor voltage in volts (3 decimals)"`
	ElapsedS       float64 `json:"t" jsonschema:"description=Discharge stopwatch in seconds (2 decimals)"`
	CapacitanceF   float64 `json:"c" jsonschema:"description=Capacitance in farads"`
}

// LabStateInput defines the input for the lab_state tool.
type LabStateInput struct{}

// LabStateOutput is the full bench snapshot.
type LabStateOutput struct {
	Mode           string  `json:"mode" jsonschema:"description=Circuit mode: idle, charging, discharging or paused"`
	VoltageV       float64 `json:"voltage_v" jsonschema:"description=Capacitor voltage in volts"`
	ElapsedS       float64 `json:"elapsed_s" jsonschema:"description=Discharge stopwatch in seconds"`
	SourceVoltageV float64 `json:"source_voltage_v" jsonschema:"description=Charging source voltage in volts"`
	ResistanceOhm  float64 `json:"resistance_ohm" jsonschema:"description=Leakage resistance under test in ohms"`
	CapacitanceF   float64 `json:"capacitance_f" jsonschema:"description=Capacitance in farads"`
	TimeConstantS  float64 `json:"time_constant_s" jsonschema:"description=RC time constant in seconds"`
	SampleCount    int     `json:"sample_count" jsonschema:"description=Number of logged discharge readings"`
}

// LabTraceInput defines the input for the lab_trace tool.
type LabTraceInput struct {
	Count int `json:"count,omitempty" jsonschema:"description=Maximum number of most recent readings to return (default 50, capped at 500)"`
}

// LabTraceOutput carries recent discharge readings, oldest first.
type LabTraceOutput struct {
	Count   int           `json:"count" jsonschema:"description=Number of readings returned"`
	Samples []TraceSample `json:"samples" jsonschema:"description=Discharge readings, oldest first"`
}

// TraceSample is one logged discharge reading.
type TraceSample struct {
	TimeS    float64 `json:"time_s" jsonschema:"description=Stopwatch value in seconds"`
	VoltageV float64 `json:"voltage_v" jsonschema:"description=Measured voltage in volts, noise included"`
}
