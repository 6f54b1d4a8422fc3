package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/voltbench/leakage-simulator/internal/bench"
	"github.com/voltbench/leakage-simulator/internal/config"
	"github.com/voltbench/leakage-simulator/internal/logging"
	"github.com/voltbench/leakage-simulator/model"
	"github.com/voltbench/leakage-simulator/timectrl"
)

// maxChargeTicks bounds the charge phase; with sane tick intervals the
// capacitor snaps to the source voltage in a handful of ticks.
const maxChargeTicks = 10000

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one headless charge/discharge cycle and print the trace",
		Long: `Run charges the capacitor to the source voltage, discharges it for the
requested simulated duration at accelerated speed, and writes the recorded
samples to stdout. Logs go to stderr so the output stays parseable.

Example:
  leakage-lab run --duration 5s --seed 42 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			duration, err := cmd.Flags().GetDuration("duration")
			if err != nil {
				return err
			}
			tick, err := cmd.Flags().GetDuration("tick")
			if err != nil {
				return err
			}
			seed, err := cmd.Flags().GetInt64("seed")
			if err != nil {
				return err
			}
			jsonOut, err := cmd.Flags().GetBool("json")
			if err != nil {
				return err
			}

			if tick > 0 {
				cfg.Tick.Interval = tick
			}
			if seed != 0 {
				cfg.Noise.Seed = seed
			}
			if duration <= 0 {
				return fmt.Errorf("duration must be positive, got %v", duration)
			}

			log := logging.New(logging.Config{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Output: cmd.ErrOrStderr(),
			})
			return runHeadless(cmd.OutOrStdout(), cfg, duration, jsonOut, log)
		},
	}

	cmd.Flags().Duration("duration", 10*time.Second, "Simulated discharge time to record")
	cmd.Flags().Duration("tick", 0, "Tick interval override (0 keeps the configured interval)")
	cmd.Flags().Int64("seed", 0, "Noise seed for reproducible traces (0 seeds from the clock)")
	cmd.Flags().Bool("json", false, "Write samples as JSON lines instead of CSV")

	return cmd
}

// runHeadless drives one complete measurement cycle without a web
// surface: charge until the capacitor reaches the source voltage, then
// hand the discharge to an accelerated driver for the requested
// simulated duration.
func runHeadless(w io.Writer, cfg *config.Config, duration time.Duration, jsonOut bool, log logging.Logger) error {
	ctx := context.Background()

	b, err := bench.New(cfg.Circuit, log, bench.WithRecorder(newRecorder(cfg)))
	if err != nil {
		return err
	}

	// Align the engine clock before stepping.
	now := time.Now().UTC()
	b.Tick(now)

	b.Apply(ctx, model.CommandCharge)
	for i := 0; b.Snapshot().VoltageV != cfg.Circuit.SourceVoltageV; i++ {
		if i >= maxChargeTicks {
			return fmt.Errorf("capacitor did not reach %gV after %d ticks; lower the tick interval",
				cfg.Circuit.SourceVoltageV, maxChargeTicks)
		}
		now = now.Add(cfg.Tick.Interval)
		b.Tick(now)
	}
	b.Apply(ctx, model.CommandDischarge)

	driver := timectrl.New(now, cfg.Tick.Interval, timectrl.Accelerated)
	driver.AddListener(b.Tick)
	if err := driver.Run(ctx, duration); err != nil {
		return fmt.Errorf("running discharge: %w", err)
	}

	samples := b.TraceSamples()
	snap := b.Snapshot()
	log.Info(ctx, "cycle complete",
		logging.Int("samples", len(samples)),
		logging.Float64("final_voltage_v", snap.VoltageV),
		logging.Float64("elapsed_s", snap.ElapsedS),
	)

	if jsonOut {
		return writeSamplesJSON(w, samples)
	}
	return writeSamplesCSV(w, samples)
}

func writeSamplesCSV(w io.Writer, samples []model.Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time_s", "voltage_v"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, s := range samples {
		row := []string{
			strconv.FormatFloat(s.TimeS, 'f', 6, 64),
			strconv.FormatFloat(s.VoltageV, 'f', 6, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing sample: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeSamplesJSON(w io.Writer, samples []model.Sample) error {
	enc := json.NewEncoder(w)
	for _, s := range samples {
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encoding sample: %w", err)
		}
	}
	return nil
}
