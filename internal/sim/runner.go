package sim

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/itanishqshelar/milesconnect-demo/internal/metrics"
)

// Runner drives a Scheduler at a fixed cadence: one tick immediately on
// start, then one per interval. Scheduled ticks run on a single goroutine so
// they never overlap; the in-flight guard covers manual triggers arriving
// concurrently through RunOnce.
type Runner struct {
	sched    *Scheduler
	interval time.Duration
	timeout  time.Duration
	metrics  *metrics.Collector

	inFlight atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewRunner(sched *Scheduler, interval time.Duration, m *metrics.Collector) *Runner {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	timeout := 30 * time.Second
	if d := 2 * interval; d > timeout {
		timeout = d
	}
	return &Runner{
		sched:    sched,
		interval: interval,
		timeout:  timeout,
		metrics:  m,
		stop:     make(chan struct{}),
	}
}

// Start launches the tick loop. ctx only stops scheduling: an in-flight tick
// always runs to completion on its own deadline so no vehicle is left
// mid-write.
func (r *Runner) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.tick()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			case <-ticker.C:
				r.tick()
			}
		}
	}()
}

func (r *Runner) tick() {
	res, skipped, err := r.RunOnce()
	if err != nil {
		log.Printf("tick error: %v", err)
		return
	}
	if skipped {
		log.Printf("tick still running; skipping trigger")
		return
	}
	if res.Updated() > 0 || res.Failed > 0 {
		log.Printf("tick: advanced=%d arrived=%d skipped=%d failed=%d", res.Advanced, res.Arrived, res.Skipped, res.Failed)
	}
}

// RunOnce executes a single tick unless one is already in flight, in which
// case it reports skipped=true and does nothing. Serves both the loop and
// manual triggers.
func (r *Runner) RunOnce() (TickResult, bool, error) {
	if !r.inFlight.CompareAndSwap(false, true) {
		if r.metrics != nil {
			r.metrics.TicksSkipped.Inc()
		}
		return TickResult{}, true, nil
	}
	defer r.inFlight.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	res, err := r.sched.RunTick(ctx)
	return res, false, err
}

// Stop ends the loop and waits for any in-flight tick to finish.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	r.wg.Wait()
}
