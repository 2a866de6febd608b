package sim

import (
	"context"
	"fmt"
	"log"

	"github.com/itanishqshelar/milesconnect-demo/internal/fleet"
	"github.com/itanishqshelar/milesconnect-demo/internal/metrics"
)

// Reconciler repairs busy-flag drift: vehicles stuck in_use or drivers stuck
// working with no in-transit shipment backing them. Drift comes from the
// non-transactional completion writes and from manual edits; ticks alone
// never heal it because an orphaned vehicle without a route is skipped
// forever.
type Reconciler struct {
	store     Store
	snapshots SnapshotCache
	metrics   *metrics.Collector
}

func NewReconciler(store Store, snapshots SnapshotCache, m *metrics.Collector) *Reconciler {
	return &Reconciler{store: store, snapshots: snapshots, metrics: m}
}

// Report lists the entities a reconciliation run released, or for Inspect
// the ones it would release. Failures counts fixes that could not be
// written.
type Report struct {
	Vehicles []string `json:"vehicles"`
	Drivers  []string `json:"drivers"`
	Failures int      `json:"failures,omitempty"`
}

// Clean reports whether nothing needed fixing.
func (r Report) Clean() bool {
	return len(r.Vehicles) == 0 && len(r.Drivers) == 0 && r.Failures == 0
}

// Reconcile releases every orphaned vehicle and driver. Running it twice in
// a row is safe: the first run clears the busy flags the second one scans
// for.
func (r *Reconciler) Reconcile(ctx context.Context) (Report, error) {
	return r.run(ctx, true)
}

// Inspect reports what Reconcile would fix without writing anything.
func (r *Reconciler) Inspect(ctx context.Context) (Report, error) {
	return r.run(ctx, false)
}

func (r *Reconciler) run(ctx context.Context, apply bool) (Report, error) {
	report := Report{Vehicles: []string{}, Drivers: []string{}}

	vehicles, err := r.store.ListVehicles(ctx, fleet.VehicleFilter{Status: fleet.VehicleInUse})
	if err != nil {
		return report, fmt.Errorf("list in-use vehicles: %w", err)
	}
	drivers, err := r.store.ListDrivers(ctx, fleet.DriverFilter{Status: fleet.DriverWorking})
	if err != nil {
		return report, fmt.Errorf("list working drivers: %w", err)
	}
	shipments, err := r.store.ListShipments(ctx, fleet.ShipmentFilter{Status: fleet.ShipmentInTransit})
	if err != nil {
		return report, fmt.Errorf("list in-transit shipments: %w", err)
	}

	busyVehicles := make(map[string]bool, len(shipments))
	busyDrivers := make(map[string]bool, len(shipments))
	for _, sh := range shipments {
		if sh.VehicleID != "" {
			busyVehicles[sh.VehicleID] = true
		}
		if sh.DriverID != "" {
			busyDrivers[sh.DriverID] = true
		}
	}

	for _, v := range vehicles {
		if busyVehicles[v.ID] {
			continue
		}
		if apply {
			if err := r.store.ReleaseVehicle(ctx, v.ID, nil); err != nil {
				log.Printf("reconcile: release vehicle %s: %v", v.ID, err)
				report.Failures++
				continue
			}
			if r.snapshots != nil {
				if err := r.snapshots.DeletePosition(ctx, v.ID); err != nil {
					log.Printf("reconcile: drop snapshot for vehicle %s: %v", v.ID, err)
				}
			}
			if r.metrics != nil {
				r.metrics.ReconcileFixes.WithLabelValues("vehicle").Inc()
			}
			log.Printf("reconcile: released orphaned vehicle %s", v.ID)
		}
		report.Vehicles = append(report.Vehicles, v.ID)
	}

	for _, d := range drivers {
		if busyDrivers[d.ID] {
			continue
		}
		if apply {
			if err := r.store.SetDriverStatus(ctx, d.ID, fleet.DriverIdle); err != nil {
				log.Printf("reconcile: reset driver %s: %v", d.ID, err)
				report.Failures++
				continue
			}
			if r.metrics != nil {
				r.metrics.ReconcileFixes.WithLabelValues("driver").Inc()
			}
			log.Printf("reconcile: reset orphaned driver %s", d.ID)
		}
		report.Drivers = append(report.Drivers, d.ID)
	}

	if apply && r.metrics != nil {
		r.metrics.ReconcileRuns.Inc()
	}
	return report, nil
}
