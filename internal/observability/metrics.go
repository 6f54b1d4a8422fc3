package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voltbench/leakage-simulator/model"
)

// StationCollector bundles Prometheus metrics for the lab station: the
// tick loop, the circuit state and the HTTP control surface.
type StationCollector struct {
	gatherer prometheus.Gatherer

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec

	Ticks         prometheus.Counter
	TickDurations prometheus.Histogram

	Voltage      prometheus.Gauge
	Elapsed      prometheus.Gauge
	Mode         *prometheus.GaugeVec
	TraceSamples prometheus.Gauge

	SamplesRecorded prometheus.Counter
	Commands        *prometheus.CounterVec
}

// NewStationCollector registers station metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewStationCollector(reg prometheus.Registerer) (*StationCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lab_http_requests_total",
		Help: "Total number of handled HTTP requests, labeled by route, method, and status code.",
	}, []string{"route", "method", "code"})
	requests, err := registerCounterVec(reg, requests, "lab_http_requests_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lab_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"route"})
	durations, err = registerHistogramVec(reg, durations, "lab_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	ticks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lab_ticks_total",
		Help: "Cumulative number of simulation ticks processed.",
	}), "lab_ticks_total")
	if err != nil {
		return nil, err
	}

	tickDurations := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lab_tick_duration_seconds",
		Help:    "Wall-clock cost of processing one simulation tick.",
		Buckets: []float64{0.000005, 0.00001, 0.000025, 0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01},
	})
	tickDurations, err = registerHistogram(reg, tickDurations, "lab_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	voltage, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lab_circuit_voltage_volts",
		Help: "Present capacitor voltage.",
	}), "lab_circuit_voltage_volts")
	if err != nil {
		return nil, err
	}
	elapsed, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lab_circuit_elapsed_seconds",
		Help: "Discharge stopwatch value in seconds.",
	}), "lab_circuit_elapsed_seconds")
	if err != nil {
		return nil, err
	}

	mode := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lab_circuit_mode",
		Help: "One-hot gauge of the current circuit mode.",
	}, []string{"mode"})
	mode, err = registerGaugeVec(reg, mode, "lab_circuit_mode")
	if err != nil {
		return nil, err
	}

	traceSamples, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lab_trace_samples",
		Help: "Number of readings currently held in the trace log.",
	}), "lab_trace_samples")
	if err != nil {
		return nil, err
	}

	samplesRecorded, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lab_samples_recorded_total",
		Help: "Cumulative number of discharge readings logged.",
	}), "lab_samples_recorded_total")
	if err != nil {
		return nil, err
	}

	commands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lab_commands_total",
		Help: "Total number of applied control commands, labeled by command.",
	}, []string{"command"})
	commands, err = registerCounterVec(reg, commands, "lab_commands_total")
	if err != nil {
		return nil, err
	}

	return &StationCollector{
		gatherer:        gatherer,
		HTTPRequests:    requests,
		HTTPDurations:   durations,
		Ticks:           ticks,
		TickDurations:   tickDurations,
		Voltage:         voltage,
		Elapsed:         elapsed,
		Mode:            mode,
		TraceSamples:    traceSamples,
		SamplesRecorded: samplesRecorded,
		Commands:        commands,
	}, nil
}

// Middleware records request counts and durations for one HTTP route.
func (c *StationCollector) Middleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if c == nil {
			return
		}
		if c.HTTPRequests != nil {
			c.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		}
		if c.HTTPDurations != nil {
			c.HTTPDurations.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Handler exposes a ready-to-use /metrics handler.
func (c *StationCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveTick records one processed tick and its processing cost.
func (c *StationCollector) ObserveTick(d time.Duration) {
	if c == nil {
		return
	}
	if c.Ticks != nil {
		c.Ticks.Inc()
	}
	if c.TickDurations != nil {
		c.TickDurations.Observe(d.Seconds())
	}
}

// RecordCommand counts an applied control command.
func (c *StationCollector) RecordCommand(cmd model.Command) {
	if c == nil || c.Commands == nil {
		return
	}
	c.Commands.WithLabelValues(string(cmd)).Inc()
}

// RecordSample counts one logged discharge reading.
func (c *StationCollector) RecordSample() {
	if c == nil || c.SamplesRecorded == nil {
		return
	}
	c.SamplesRecorded.Inc()
}

// SetCircuit satisfies the bench's MetricsRecorder interface so circuit
// gauges track the owned state after every mutation.
func (c *StationCollector) SetCircuit(mode model.CircuitMode, voltageV, elapsedS float64, traceLen int) {
	if c == nil {
		return
	}
	if c.Voltage != nil {
		c.Voltage.Set(voltageV)
	}
	if c.Elapsed != nil {
		c.Elapsed.Set(elapsedS)
	}
	if c.TraceSamples != nil {
		c.TraceSamples.Set(float64(traceLen))
	}
	if c.Mode != nil {
		for _, m := range []model.CircuitMode{model.ModeIdle, model.ModeCharging, model.ModeDischarging, model.ModePaused} {
			v := 0.0
			if m == mode {
				v = 1
			}
			c.Mode.WithLabelValues(string(m)).Set(v)
		}
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
