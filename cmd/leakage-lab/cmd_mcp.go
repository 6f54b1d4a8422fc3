package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voltbench/leakage-simulator/internal/assistant"
	"github.com/voltbench/leakage-simulator/internal/bench"
	"github.com/voltbench/leakage-simulator/internal/logging"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve lab context to assistants over the Model Context Protocol",
		Long: `MCP exposes the circuit state, parameters and measurement explanation as
read-only tools over stdio, for wiring the lab into an AI assistant.
Stdout belongs to the protocol; logs go to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			log := logging.New(logging.Config{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Output: os.Stderr,
			})

			b, err := bench.New(cfg.Circuit, log, bench.WithRecorder(newRecorder(cfg)))
			if err != nil {
				return err
			}
			srv := assistant.NewServer(assistant.Config{
				Name:    "leakage-lab",
				Version: version,
			}, b, log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}
}
