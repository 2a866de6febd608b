package main

import (
	"context"
	"log"
	"math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/itanishqshelar/milesconnect-demo/internal/config"
	"github.com/itanishqshelar/milesconnect-demo/internal/fleet"
	"github.com/itanishqshelar/milesconnect-demo/internal/metrics"
	"github.com/itanishqshelar/milesconnect-demo/internal/ops"
	"github.com/itanishqshelar/milesconnect-demo/internal/publisher"
	"github.com/itanishqshelar/milesconnect-demo/internal/sim"
	"github.com/itanishqshelar/milesconnect-demo/internal/store"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	arrivalStatus, err := fleet.TerminalArrivalStatus(cfg.ArrivalStatus)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sqlDB, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}
	defer sqlDB.Close()
	if err := store.Ping(ctx, sqlDB); err != nil {
		log.Fatalf("db ping error: %v", err)
	}
	st := store.New(sqlDB)

	// Metrics setup
	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.SpeedMultiplier, cfg.TickInterval)
		srv := mcol.Serve(cfg.MetricsAddr)
		defer shutdownHTTP(srv)
	}

	// NATS publisher, optional
	var pub sim.Publisher
	if cfg.NATSURL != "" {
		np, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.LogNATSSubjects, wrapPublisherMetrics(mcol))
		if err != nil {
			log.Fatalf("nats error: %v", err)
		}
		defer np.Close()
		pub = np
	}

	// Redis snapshot cache, optional
	var snapshots sim.SnapshotCache
	var positions ops.PositionReader
	if cfg.RedisAddr != "" {
		cache := store.NewSnapshotCache(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), cfg.SnapshotTTL)
		if err := cache.Ping(ctx); err != nil {
			log.Fatalf("redis ping error: %v", err)
		}
		defer cache.Close()
		snapshots = cache
		positions = cache
	}

	// Deterministic pacing jitter when a seed is pinned
	var rng *rand.Rand
	if cfg.Seed != 0 {
		rng = rand.New(rand.NewSource(cfg.Seed))
		log.Printf("pacing jitter seeded with %d", cfg.Seed)
	}

	sched := sim.NewScheduler(st, sim.Options{
		TickInterval:     cfg.TickInterval,
		SpeedMultiplier:  cfg.SpeedMultiplier,
		ArrivalStatus:    arrivalStatus,
		WriteConcurrency: cfg.WriteConcurrency,
		Publisher:        pub,
		Snapshots:        snapshots,
		Metrics:          mcol,
		Rand:             rng,
	})
	recon := sim.NewReconciler(st, snapshots, mcol)

	// Heal busy-flag drift left by a previous crash before ticking
	if cfg.ReconcileOnStart {
		report, err := recon.Reconcile(ctx)
		if err != nil {
			log.Fatalf("startup reconcile error: %v", err)
		}
		if !report.Clean() {
			log.Printf("startup reconcile: released %d vehicles, reset %d drivers", len(report.Vehicles), len(report.Drivers))
		}
	}

	runner := sim.NewRunner(sched, cfg.TickInterval, mcol)
	runner.Start(ctx)

	// Ops server, optional
	if cfg.OpsAddr != "" {
		opsSrv := ops.NewServer(runner, recon, positions, func(ctx context.Context) error {
			return store.Ping(ctx, sqlDB)
		})
		srv := opsSrv.Serve(cfg.OpsAddr)
		defer shutdownHTTP(srv)
	}

	log.Printf("simulator running: tick=%s speed=%.2f arrival=%s", cfg.TickInterval, cfg.SpeedMultiplier, arrivalStatus)

	// Block until context cancelled
	<-ctx.Done()
	runner.Stop()
	log.Println("shutdown complete")
}

func shutdownHTTP(srv *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
