package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	ActiveVehicles prometheus.Gauge

	TicksTotal   prometheus.Counter
	TickFailures prometheus.Counter
	TicksSkipped prometheus.Counter

	VehiclesAdvanced prometheus.Counter
	VehiclesArrived  prometheus.Counter
	VehiclesSkipped  *prometheus.CounterVec // reason label: live|no_route|bad_route
	WriteFailures    prometheus.Counter

	ReconcileRuns  prometheus.Counter
	ReconcileFixes *prometheus.CounterVec // kind label: vehicle|driver

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	TickDuration    prometheus.Histogram
	PublishDuration prometheus.Histogram

	SpeedMultiplier prometheus.Gauge
	TickInterval    prometheus.Gauge // seconds
}

func NewCollector(speedMultiplier float64, tickInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveVehicles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleetsim_active_vehicles",
			Help: "Number of in-use simulated vehicles seen by the last tick.",
		}),
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetsim_ticks_total",
			Help: "Total simulation ticks executed.",
		}),
		TickFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetsim_tick_failures_total",
			Help: "Total ticks aborted because fleet state could not be loaded.",
		}),
		TicksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetsim_ticks_skipped_total",
			Help: "Total tick triggers dropped because a tick was already running.",
		}),
		VehiclesAdvanced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetsim_vehicles_advanced_total",
			Help: "Total committed per-vehicle progress updates.",
		}),
		VehiclesArrived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetsim_vehicles_arrived_total",
			Help: "Total vehicles that reached the end of their route.",
		}),
		VehiclesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetsim_vehicles_skipped_total",
			Help: "Total vehicles left untouched by a tick.",
		}, []string{"reason"}),
		WriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetsim_write_failures_total",
			Help: "Total failed per-vehicle store writes.",
		}),
		ReconcileRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetsim_reconcile_runs_total",
			Help: "Total reconciliation runs that applied fixes.",
		}),
		ReconcileFixes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetsim_reconcile_fixes_total",
			Help: "Total busy-flag fixes applied by reconciliation.",
		}, []string{"kind"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetsim_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetsim_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleetsim_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleetsim_tick_duration_seconds",
			Help:    "Wall-clock duration of simulation ticks.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleetsim_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		SpeedMultiplier: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleetsim_speed_multiplier",
			Help: "Current speed multiplier.",
		}),
		TickInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleetsim_tick_interval_seconds",
			Help: "Tick interval in seconds.",
		}),
	}

	// Register
	reg.MustRegister(
		c.ActiveVehicles,
		c.TicksTotal, c.TickFailures, c.TicksSkipped,
		c.VehiclesAdvanced, c.VehiclesArrived, c.VehiclesSkipped, c.WriteFailures,
		c.ReconcileRuns, c.ReconcileFixes,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.TickDuration, c.PublishDuration,
		c.SpeedMultiplier, c.TickInterval,
	)

	// Set static/dynamic gauges
	c.SpeedMultiplier.Set(speedMultiplier)
	c.TickInterval.Set(tickInterval.Seconds())

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
