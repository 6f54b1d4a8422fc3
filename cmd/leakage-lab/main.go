// Command leakage-lab runs the capacitor leakage measurement station:
// a browser control panel, an optional MQTT telemetry feed and a
// read-only assistant surface over the Model Context Protocol.
package main

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/spf13/cobra"

	"github.com/voltbench/leakage-simulator/core"
	"github.com/voltbench/leakage-simulator/internal/config"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "leakage-lab",
		Short: "Capacitor leakage measurement bench",
		Long: `leakage-lab simulates the classic leakage method for measuring very
high resistance: charge a capacitor, let it discharge through the
resistance under test, and time the voltage decay.

The serve command runs the interactive station with a browser panel;
run performs one headless charge/discharge cycle and prints the trace.`,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (defaults apply when empty)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(),
		newRunCmd(),
		newMCPCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "leakage-lab version %s\n", version)
		},
	}
}

// loadConfig resolves the persistent --config flag into a validated
// configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newRecorder builds the trace recorder from the noise settings. A
// fixed seed gives reproducible traces.
func newRecorder(cfg *config.Config) *core.TraceRecorder {
	opts := []core.RecorderOption{core.WithNoiseAmplitude(cfg.Noise.AmplitudeV)}
	if cfg.Noise.Seed != 0 {
		opts = append(opts, core.WithNoiseSource(rand.New(rand.NewSource(cfg.Noise.Seed))))
	}
	return core.NewTraceRecorder(opts...)
}
