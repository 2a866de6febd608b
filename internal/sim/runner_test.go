package sim

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/itanishqshelar/milesconnect-demo/internal/fleet"
)

func TestRunOnceSkipsWhileTickInFlight(t *testing.T) {
	st := newFakeStore()
	st.vehicles = []fleet.Vehicle{simVehicle("v1", testRoute(100, 300, 0), 10)}
	st.listDelay = 100 * time.Millisecond

	runner := NewRunner(NewScheduler(st, testOptions()), time.Second, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, skipped, err := runner.RunOnce(); skipped || err != nil {
			t.Errorf("first RunOnce: skipped=%v err=%v", skipped, err)
		}
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !runner.inFlight.Load() {
		if time.Now().After(deadline) {
			t.Fatal("first tick never started")
		}
		time.Sleep(time.Millisecond)
	}

	res, skipped, err := runner.RunOnce()
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if !skipped {
		t.Fatal("overlapping RunOnce was not skipped")
	}
	if res != (TickResult{}) {
		t.Errorf("skipped result = %+v, want zero", res)
	}
	wg.Wait()

	// The guard clears once the tick finishes.
	if _, skipped, err := runner.RunOnce(); skipped || err != nil {
		t.Errorf("RunOnce after drain: skipped=%v err=%v", skipped, err)
	}
}

func TestRunnerStartTicksImmediately(t *testing.T) {
	st := newFakeStore()
	st.vehicles = []fleet.Vehicle{simVehicle("v1", testRoute(100, 300, 0), 10)}

	runner := NewRunner(NewScheduler(st, testOptions()), time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner.Start(ctx)
	defer runner.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st.mu.Lock()
		_, ok := st.progress["v1"]
		st.mu.Unlock()
		if ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no tick ran after Start")
}

func TestRunnerStopWaitsForLoop(t *testing.T) {
	st := newFakeStore()
	runner := NewRunner(NewScheduler(st, testOptions()), 10*time.Millisecond, nil)

	runner.Start(context.Background())
	time.Sleep(30 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		runner.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	// Stop is safe to call again.
	runner.Stop()
}

func TestNewRunnerDefaultsInterval(t *testing.T) {
	runner := NewRunner(NewScheduler(newFakeStore(), testOptions()), 0, nil)
	if runner.interval != 3*time.Second {
		t.Errorf("interval = %v, want 3s", runner.interval)
	}
	if runner.timeout != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", runner.timeout)
	}

	runner = NewRunner(NewScheduler(newFakeStore(), testOptions()), time.Minute, nil)
	if runner.timeout != 2*time.Minute {
		t.Errorf("timeout = %v, want 2m for a 1m interval", runner.timeout)
	}
}
