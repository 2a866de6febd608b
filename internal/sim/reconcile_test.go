package sim

import (
	"context"
	"errors"
	"testing"

	"github.com/itanishqshelar/milesconnect-demo/internal/fleet"
)

// driftedStore returns a store where v1/d1 are backed by an in-transit
// shipment and v2/d2 are stuck busy with nothing backing them.
func driftedStore() *fakeStore {
	st := newFakeStore()
	st.vehicles = []fleet.Vehicle{
		{ID: "v1", Status: fleet.VehicleInUse, TrackingMode: fleet.TrackingSimulated},
		{ID: "v2", Status: fleet.VehicleInUse, TrackingMode: fleet.TrackingSimulated},
		{ID: "v3", Status: fleet.VehicleIdle, TrackingMode: fleet.TrackingSimulated},
	}
	st.drivers = []fleet.Driver{
		{ID: "d1", Name: "Sunil", Status: fleet.DriverWorking},
		{ID: "d2", Name: "Kiran", Status: fleet.DriverWorking},
		{ID: "d3", Name: "Meera", Status: fleet.DriverIdle},
	}
	st.shipments = []fleet.Shipment{
		{ID: "s1", Number: "SHP-001", Status: fleet.ShipmentInTransit, VehicleID: "v1", DriverID: "d1"},
	}
	return st
}

func TestReconcileReleasesOrphans(t *testing.T) {
	st := driftedStore()
	snaps := newFakeSnapshots()
	rec := NewReconciler(st, snaps, nil)

	report, err := rec.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(report.Vehicles) != 1 || report.Vehicles[0] != "v2" {
		t.Errorf("released vehicles = %v, want [v2]", report.Vehicles)
	}
	if len(report.Drivers) != 1 || report.Drivers[0] != "d2" {
		t.Errorf("reset drivers = %v, want [d2]", report.Drivers)
	}
	if report.Failures != 0 {
		t.Errorf("failures = %d, want 0", report.Failures)
	}

	// Orphans fixed, backed entities untouched.
	if pos, ok := st.released["v2"]; !ok || pos != nil {
		t.Errorf("v2 release = (%v, %v), want recorded with nil position", pos, ok)
	}
	if _, ok := st.released["v1"]; ok {
		t.Error("v1 released despite its in-transit shipment")
	}
	if got := st.driverStatus["d2"]; got != fleet.DriverIdle {
		t.Errorf("d2 status = %q, want idle", got)
	}
	if _, ok := st.driverStatus["d1"]; ok {
		t.Error("d1 reset despite its in-transit shipment")
	}
	if len(snaps.deleted) != 1 || snaps.deleted[0] != "v2" {
		t.Errorf("snapshot deletes = %v, want [v2]", snaps.deleted)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	st := driftedStore()
	rec := NewReconciler(st, nil, nil)

	first, err := rec.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("first Reconcile: %v", err)
	}
	if first.Clean() {
		t.Fatal("first run found nothing to fix")
	}

	second, err := rec.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if !second.Clean() {
		t.Errorf("second run report = %+v, want clean", second)
	}
}

func TestInspectDoesNotWrite(t *testing.T) {
	st := driftedStore()
	snaps := newFakeSnapshots()
	rec := NewReconciler(st, snaps, nil)

	report, err := rec.Inspect(context.Background())
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if len(report.Vehicles) != 1 || report.Vehicles[0] != "v2" {
		t.Errorf("would-release vehicles = %v, want [v2]", report.Vehicles)
	}
	if len(report.Drivers) != 1 || report.Drivers[0] != "d2" {
		t.Errorf("would-reset drivers = %v, want [d2]", report.Drivers)
	}
	if len(st.ops) != 0 {
		t.Errorf("Inspect wrote to the store: %v", st.ops)
	}
	if len(snaps.deleted) != 0 {
		t.Errorf("Inspect touched the snapshot cache: %v", snaps.deleted)
	}

	// Drift is still there for a real run.
	fixed, err := rec.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if fixed.Clean() {
		t.Error("Reconcile after Inspect found nothing to fix")
	}
}

func TestReconcileCountsFailedFixes(t *testing.T) {
	st := driftedStore()
	st.failRelease = true
	rec := NewReconciler(st, nil, nil)

	report, err := rec.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Failures != 1 {
		t.Errorf("failures = %d, want 1", report.Failures)
	}
	if len(report.Vehicles) != 0 {
		t.Errorf("vehicles = %v, want none (fix failed)", report.Vehicles)
	}
	// The driver fix is independent and still lands.
	if len(report.Drivers) != 1 || report.Drivers[0] != "d2" {
		t.Errorf("drivers = %v, want [d2]", report.Drivers)
	}
}

func TestReconcileLoadFailure(t *testing.T) {
	st := driftedStore()
	st.failListDrivers = true
	rec := NewReconciler(st, nil, nil)

	if _, err := rec.Reconcile(context.Background()); !errors.Is(err, errDB) {
		t.Fatalf("err = %v, want errDB", err)
	}
	if len(st.ops) != 0 {
		t.Errorf("failed run wrote to the store: %v", st.ops)
	}
}

func TestReportClean(t *testing.T) {
	if !(Report{Vehicles: []string{}, Drivers: []string{}}).Clean() {
		t.Error("empty report not clean")
	}
	if (Report{Vehicles: []string{"v1"}}).Clean() {
		t.Error("report with a vehicle is clean")
	}
	if (Report{Failures: 1}).Clean() {
		t.Error("report with a failure is clean")
	}
}
