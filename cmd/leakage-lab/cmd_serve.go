package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voltbench/leakage-simulator/internal/bench"
	"github.com/voltbench/leakage-simulator/internal/config"
	"github.com/voltbench/leakage-simulator/internal/logging"
	"github.com/voltbench/leakage-simulator/internal/observability"
	"github.com/voltbench/leakage-simulator/internal/telemetry"
	"github.com/voltbench/leakage-simulator/internal/web"
	"github.com/voltbench/leakage-simulator/model"
	"github.com/voltbench/leakage-simulator/timectrl"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the lab station with the browser control panel",
		Long: `Starts the simulation loop, the web panel with its websocket chart
stream, a Prometheus metrics endpoint, and (when enabled) the MQTT
telemetry publisher. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

func runServe(cfg *config.Config) error {
	log := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	ctx := context.Background()

	collector, err := observability.NewStationCollector(nil)
	if err != nil {
		return fmt.Errorf("init station metrics: %w", err)
	}
	telemetryMetrics, err := observability.NewTelemetryCollector(nil)
	if err != nil {
		return fmt.Errorf("init telemetry metrics: %w", err)
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	var publisher telemetry.Publisher
	if cfg.Telemetry.Enabled {
		pub, err := telemetry.NewBrokerPublisher(ctx, telemetry.Options{
			BrokerURL:   cfg.Telemetry.BrokerURL,
			ClientID:    cfg.Telemetry.ClientID,
			TopicPrefix: cfg.Telemetry.TopicPrefix,
		}, log, telemetryMetrics)
		if err != nil {
			return fmt.Errorf("init telemetry publisher: %w", err)
		}
		publisher = pub
	}

	benchOpts := []bench.Option{
		bench.WithRecorder(newRecorder(cfg)),
		bench.WithMetricsRecorder(collector),
	}
	if publisher != nil {
		benchOpts = append(benchOpts, bench.WithTransitionListener(func(cmd model.Command, from, to model.CircuitMode, snap model.Snapshot) {
			err := publisher.PublishEvent(telemetry.Event{
				Timestamp: snap.TakenAt,
				Command:   cmd,
				From:      from,
				To:        to,
				VoltageV:  snap.VoltageV,
			})
			if err != nil {
				log.Warn(context.Background(), "publishing transition event", logging.Err(err))
			}
		}))
	}

	b, err := bench.New(cfg.Circuit, log, benchOpts...)
	if err != nil {
		return err
	}

	srv := web.New(cfg.Web.Addr, b, log, collector)

	driver := timectrl.New(time.Now().UTC(), cfg.Tick.Interval, cfg.TickMode())
	throttle := telemetry.NewThrottle(cfg.Telemetry.ReadingInterval)
	driver.AddListener(func(simTime time.Time) {
		b.Tick(simTime)
		srv.Broadcast(web.BuildFrame(b))

		if publisher == nil {
			return
		}
		snap := b.Snapshot()
		if snap.Mode != model.ModeDischarging || !throttle.Allow(simTime) {
			return
		}
		err := publisher.PublishReading(telemetry.Reading{
			Timestamp: snap.TakenAt,
			Mode:      snap.Mode,
			VoltageV:  snap.VoltageV,
			ElapsedS:  snap.ElapsedS,
		})
		if err != nil {
			log.Warn(context.Background(), "publishing reading", logging.Err(err))
		}
	})

	ln, err := net.Listen("tcp", cfg.Web.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Web.Addr, err)
	}

	log.Info(ctx, "starting lab station",
		logging.String("addr", cfg.Web.Addr),
		logging.Duration("tick", cfg.Tick.Interval),
		logging.String("mode", cfg.TickMode().String()),
	)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "web server exited", logging.Err(err))
		}
	}()

	metricsSrv := serveMetrics(cfg.Web.MetricsAddr, collector, log)

	runCtx, stopDriver := context.WithCancel(ctx)
	defer stopDriver()
	driverDone := make(chan struct{})
	go func() {
		defer close(driverDone)
		_ = driver.Run(runCtx, 0)
	}()

	startedAt := time.Now()
	if publisher != nil {
		publishStartup(ctx, publisher, cfg, log)
		if cfg.Telemetry.Heartbeat > 0 {
			go heartbeatLoop(runCtx, publisher, b, cfg.Telemetry.Heartbeat, startedAt, log)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.Info(ctx, "shutting down lab station", logging.String("signal", sig.String()))
	stopDriver()
	<-driverDone

	if publisher != nil {
		publishShutdown(ctx, publisher, signalName(sig), log)
		if err := publisher.Close(); err != nil {
			log.Warn(ctx, "closing telemetry publisher", logging.Err(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn(ctx, "web server shutdown", logging.Err(err))
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return nil
}

func serveMetrics(addr string, collector *observability.StationCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

func publishStartup(ctx context.Context, publisher telemetry.Publisher, cfg *config.Config, log logging.Logger) {
	err := publisher.PublishSystem(telemetry.SystemEvent{
		Timestamp: time.Now(),
		Event:     "STARTUP",
		Retained:  true,
		Station: &telemetry.StationInfo{
			SourceVoltageV: cfg.Circuit.SourceVoltageV,
			ResistanceOhm:  cfg.Circuit.ResistanceOhm,
			CapacitanceF:   cfg.Circuit.CapacitanceF,
			TickMs:         cfg.Tick.Interval.Milliseconds(),
			Broker:         cfg.Telemetry.BrokerURL,
		},
	})
	if err != nil {
		log.Warn(ctx, "publishing startup event", logging.Err(err))
		return
	}
	log.Info(ctx, "published startup event")
}

func publishShutdown(ctx context.Context, publisher telemetry.Publisher, reason string, log logging.Logger) {
	err := publisher.PublishSystem(telemetry.SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    reason,
		Retained:  true,
	})
	if err != nil {
		log.Warn(ctx, "publishing shutdown event", logging.Err(err))
		return
	}
	log.Info(ctx, "published shutdown event")
}

// heartbeatLoop publishes liveness messages until the context ends.
// Runs on its own goroutine; the bench hands out value snapshots so no
// locking leaks out here.
func heartbeatLoop(ctx context.Context, publisher telemetry.Publisher, b *bench.Bench, interval time.Duration, startedAt time.Time, log logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			snap := b.Snapshot()
			err := publisher.PublishSystem(telemetry.SystemEvent{
				Timestamp: now,
				Event:     "HEARTBEAT",
				Heartbeat: &telemetry.HeartbeatInfo{
					UptimeSeconds: int64(now.Sub(startedAt).Seconds()),
					Mode:          string(snap.Mode),
					VoltageV:      snap.VoltageV,
					SampleCount:   snap.SampleCount,
				},
			})
			if err != nil {
				log.Warn(ctx, "publishing heartbeat", logging.Err(err))
			}
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
