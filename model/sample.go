package model

// Sample is one logged discharge reading: the stopwatch value and the
// measured capacitor voltage, noise included.
type Sample struct {
	TimeS    float64 `json:"time_s"`
	VoltageV float64 `json:"voltage_v"`
}
