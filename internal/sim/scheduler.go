package sim

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/itanishqshelar/milesconnect-demo/internal/fleet"
	"github.com/itanishqshelar/milesconnect-demo/internal/geo"
	"github.com/itanishqshelar/milesconnect-demo/internal/metrics"
	"github.com/itanishqshelar/milesconnect-demo/internal/publisher"
)

// Store is the persistence contract the simulator drives. Every write
// touches a fixed set of columns on a single row and is independently
// retryable; no cross-table transaction is assumed.
type Store interface {
	ListVehicles(ctx context.Context, f fleet.VehicleFilter) ([]fleet.Vehicle, error)
	ListShipments(ctx context.Context, f fleet.ShipmentFilter) ([]fleet.Shipment, error)
	ListDrivers(ctx context.Context, f fleet.DriverFilter) ([]fleet.Driver, error)

	// UpdateVehicleProgress commits position, route index, ETA and the
	// location timestamp for one vehicle.
	UpdateVehicleProgress(ctx context.Context, vehicleID string, u fleet.ProgressUpdate) error
	// ReleaseVehicle returns a vehicle to idle and clears its route, route
	// index and ETA. A non-nil finalPos also moves the vehicle there; nil
	// keeps the last stored position. Releasing an idle vehicle is a no-op.
	ReleaseVehicle(ctx context.Context, vehicleID string, finalPos *fleet.Point) error
	// CompleteShipment moves an in-transit shipment to its terminal status,
	// stamping the delivery time for delivered shipments. The write must not
	// match a shipment whose status changed since it was loaded; such a
	// conflict comes back as an error.
	CompleteShipment(ctx context.Context, shipmentID string, status fleet.ShipmentStatus, at time.Time) error
	SetDriverStatus(ctx context.Context, driverID string, status fleet.DriverStatus) error
}

// Publisher broadcasts per-tick position updates and one-shot arrival events.
type Publisher interface {
	PublishPosition(msg publisher.PositionMessage) error
	PublishArrival(msg publisher.ArrivalMessage) error
}

// SnapshotCache mirrors the latest simulated fix per vehicle into a fast
// read store for tracking pages. The scheduler only ever writes it; the SQL
// store stays the source of truth.
type SnapshotCache interface {
	SetPosition(ctx context.Context, snap fleet.PositionSnapshot) error
	DeletePosition(ctx context.Context, vehicleID string) error
}

// Options configure a Scheduler. Zero values select the defaults noted on
// each field; Publisher, Snapshots and Metrics are optional collaborators.
type Options struct {
	TickInterval     time.Duration        // simulated time per tick; default 3s
	SpeedMultiplier  float64              // scales simulated time; default 1.0
	ArrivalStatus    fleet.ShipmentStatus // terminal shipment status; default delivered
	WriteConcurrency int                  // bound on parallel per-vehicle writes; default 16

	Publisher Publisher
	Snapshots SnapshotCache
	Metrics   *metrics.Collector

	Rand *rand.Rand       // pacing jitter source; default time-seeded
	Now  func() time.Time // clock; default time.Now
}

// Scheduler advances every in-use simulated vehicle by one step per tick and
// closes out shipments whose vehicle reached the end of its route.
type Scheduler struct {
	store         Store
	pub           Publisher
	snapshots     SnapshotCache
	metrics       *metrics.Collector
	tickInterval  time.Duration
	speed         float64
	arrivalStatus fleet.ShipmentStatus
	writeLimit    int
	rng           *rand.Rand
	now           func() time.Time
}

func NewScheduler(store Store, opts Options) *Scheduler {
	if opts.TickInterval <= 0 {
		opts.TickInterval = 3 * time.Second
	}
	if opts.SpeedMultiplier <= 0 {
		opts.SpeedMultiplier = 1.0
	}
	if opts.ArrivalStatus == "" {
		opts.ArrivalStatus = fleet.ShipmentDelivered
	}
	if opts.WriteConcurrency <= 0 {
		opts.WriteConcurrency = 16
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		store:         store,
		pub:           opts.Publisher,
		snapshots:     opts.Snapshots,
		metrics:       opts.Metrics,
		tickInterval:  opts.TickInterval,
		speed:         opts.SpeedMultiplier,
		arrivalStatus: opts.ArrivalStatus,
		writeLimit:    opts.WriteConcurrency,
		rng:           opts.Rand,
		now:           opts.Now,
	}
}

// TickResult summarizes one tick. Advanced and Arrived count vehicles whose
// own update committed; Skipped counts vehicles left untouched (live
// tracking, missing or unusable route); Failed counts vehicles whose update
// could not be committed and will be retried next tick.
type TickResult struct {
	Advanced int `json:"advanced"`
	Arrived  int `json:"arrived"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Updated returns the number of vehicles whose state changed this tick.
func (r TickResult) Updated() int { return r.Advanced + r.Arrived }

// vehiclePlan is the decision made for one vehicle before any write happens.
type vehiclePlan struct {
	vehicle  fleet.Vehicle
	shipment *fleet.Shipment // owning in-transit shipment, nil when orphaned
	next     int
	arrived  bool
	progress fleet.ProgressUpdate // valid when !arrived
}

// RunTick advances the whole fleet once. Load failures abort the tick;
// per-vehicle write failures are logged and counted but never stop the other
// vehicles. Writes fan out concurrently, bounded by WriteConcurrency.
func (s *Scheduler) RunTick(ctx context.Context) (TickResult, error) {
	started := time.Now()

	vehicles, err := s.store.ListVehicles(ctx, fleet.VehicleFilter{
		Status:       fleet.VehicleInUse,
		TrackingMode: fleet.TrackingSimulated,
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.TickFailures.Inc()
		}
		return TickResult{}, fmt.Errorf("list in-use vehicles: %w", err)
	}
	if s.metrics != nil {
		s.metrics.ActiveVehicles.Set(float64(len(vehicles)))
	}
	if len(vehicles) == 0 {
		s.observeTick(started)
		return TickResult{}, nil
	}

	ids := make([]string, 0, len(vehicles))
	for _, v := range vehicles {
		ids = append(ids, v.ID)
	}
	shipments, err := s.store.ListShipments(ctx, fleet.ShipmentFilter{
		Status:     fleet.ShipmentInTransit,
		VehicleIDs: ids,
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.TickFailures.Inc()
		}
		return TickResult{}, fmt.Errorf("list in-transit shipments: %w", err)
	}
	byVehicle := make(map[string]fleet.Shipment, len(shipments))
	for _, sh := range shipments {
		if prev, ok := byVehicle[sh.VehicleID]; ok {
			log.Printf("vehicle %s has multiple in-transit shipments (%s, %s); keeping the first", sh.VehicleID, prev.Number, sh.Number)
			continue
		}
		byVehicle[sh.VehicleID] = sh
	}

	now := s.now()
	elapsed := time.Duration(float64(s.tickInterval) * s.speed)

	var res TickResult
	plans := make([]vehiclePlan, 0, len(vehicles))
	for _, v := range vehicles {
		switch {
		case v.TrackingMode != fleet.TrackingSimulated:
			// Live vehicles belong to the GPS feed even if the store filter
			// let one through.
			res.Skipped++
			s.skip("live")
		case v.Route == nil:
			res.Skipped++
			s.skip("no_route")
		case v.Route.Validate() != nil || v.RouteIndex < 0 || v.RouteIndex >= len(v.Route.Points):
			log.Printf("vehicle %s has unusable route state (index %d); skipping", v.ID, v.RouteIndex)
			res.Skipped++
			s.skip("bad_route")
		default:
			p := vehiclePlan{vehicle: v, next: NextIndex(v.Route, v.RouteIndex, elapsed, s.rng)}
			if sh, ok := byVehicle[v.ID]; ok {
				owned := sh
				p.shipment = &owned
			}
			if Arrived(p.next, len(v.Route.Points)) {
				p.arrived = true
			} else {
				p.progress = fleet.ProgressUpdate{
					Position:   v.Route.Points[p.next],
					RouteIndex: p.next,
					ETA:        EstimateETA(v.Route, p.next, now),
					At:         now,
				}
			}
			plans = append(plans, p)
		}
	}

	var advanced, arrived, failed atomic.Int64
	sem := make(chan struct{}, s.writeLimit)
	var wg sync.WaitGroup
	for _, p := range plans {
		wg.Add(1)
		sem <- struct{}{}
		go func(p vehiclePlan) {
			defer wg.Done()
			defer func() { <-sem }()
			switch {
			case p.arrived && s.complete(ctx, p, now):
				arrived.Add(1)
			case !p.arrived && s.advance(ctx, p):
				advanced.Add(1)
			default:
				failed.Add(1)
			}
		}(p)
	}
	wg.Wait()

	res.Advanced = int(advanced.Load())
	res.Arrived = int(arrived.Load())
	res.Failed = int(failed.Load())
	if s.metrics != nil {
		s.metrics.VehiclesAdvanced.Add(float64(res.Advanced))
		s.metrics.VehiclesArrived.Add(float64(res.Arrived))
	}
	s.observeTick(started)
	return res, nil
}

// advance commits one progress step and mirrors it to NATS and the snapshot
// cache.
func (s *Scheduler) advance(ctx context.Context, p vehiclePlan) bool {
	v := p.vehicle
	if err := s.store.UpdateVehicleProgress(ctx, v.ID, p.progress); err != nil {
		log.Printf("update vehicle %s progress: %v", v.ID, err)
		if s.metrics != nil {
			s.metrics.WriteFailures.Inc()
		}
		return false
	}
	s.broadcast(ctx, p)
	return true
}

// complete closes out an arrival. The shipment status change is checked
// against the lifecycle graph and written first: a crash or failure after it
// leaves only busy-flag drift, which Reconcile repairs. A blocked, failed or
// conflicting shipment write aborts so the vehicle keeps its route and the
// arrival is retried next tick. A failed driver write does not abort; the
// reconciler resets working drivers with no in-transit shipment.
func (s *Scheduler) complete(ctx context.Context, p vehiclePlan, now time.Time) bool {
	v := p.vehicle
	if p.shipment != nil {
		if !fleet.CanTransition(p.shipment.Status, s.arrivalStatus) {
			log.Printf("shipment %s cannot move %s -> %s; completion of vehicle %s skipped", p.shipment.Number, p.shipment.Status, s.arrivalStatus, v.ID)
			if s.metrics != nil {
				s.metrics.WriteFailures.Inc()
			}
			return false
		}
		if err := s.store.CompleteShipment(ctx, p.shipment.ID, s.arrivalStatus, now); err != nil {
			log.Printf("complete shipment %s: %v", p.shipment.Number, err)
			if s.metrics != nil {
				s.metrics.WriteFailures.Inc()
			}
			return false
		}
		if p.shipment.DriverID != "" {
			if err := s.store.SetDriverStatus(ctx, p.shipment.DriverID, fleet.DriverIdle); err != nil {
				log.Printf("release driver %s: %v", p.shipment.DriverID, err)
				if s.metrics != nil {
					s.metrics.WriteFailures.Inc()
				}
			}
		}
	} else {
		log.Printf("vehicle %s arrived with no in-transit shipment; releasing anyway", v.ID)
	}

	end := v.Route.End()
	if err := s.store.ReleaseVehicle(ctx, v.ID, &end); err != nil {
		log.Printf("release vehicle %s: %v", v.ID, err)
		if s.metrics != nil {
			s.metrics.WriteFailures.Inc()
		}
		return false
	}

	if s.pub != nil {
		msg := publisher.ArrivalMessage{
			VehicleID: v.ID,
			Status:    string(s.arrivalStatus),
			Timestamp: now,
			Lat:       end.Lat,
			Lon:       end.Lon,
		}
		if p.shipment != nil {
			msg.ShipmentID = p.shipment.ID
			msg.ShipmentNumber = p.shipment.Number
		}
		if err := s.pub.PublishArrival(msg); err != nil {
			log.Printf("publish arrival for vehicle %s: %v", v.ID, err)
		}
	}
	if s.snapshots != nil {
		if err := s.snapshots.DeletePosition(ctx, v.ID); err != nil {
			log.Printf("drop snapshot for vehicle %s: %v", v.ID, err)
		}
	}
	return true
}

// broadcast mirrors a committed progress update to the optional NATS
// publisher and snapshot cache. Both are best effort.
func (s *Scheduler) broadcast(ctx context.Context, p vehiclePlan) {
	if s.pub == nil && s.snapshots == nil {
		return
	}
	v := p.vehicle
	bearing := 0.0
	if p.next > 0 {
		bearing = geo.Bearing(v.Route.Points[p.next-1], p.progress.Position)
	} else if len(v.Route.Points) > 1 {
		bearing = geo.Bearing(v.Route.Points[0], v.Route.Points[1])
	}
	progress := float64(p.next) / float64(len(v.Route.Points)-1)
	var shipmentID string
	if p.shipment != nil {
		shipmentID = p.shipment.ID
	}

	if s.pub != nil {
		msg := publisher.PositionMessage{
			VehicleID:  v.ID,
			ShipmentID: shipmentID,
			Timestamp:  p.progress.At,
			Lat:        p.progress.Position.Lat,
			Lon:        p.progress.Position.Lon,
			Bearing:    bearing,
			RouteIndex: p.next,
			Progress:   progress,
			ETA:        p.progress.ETA,
		}
		if err := s.pub.PublishPosition(msg); err != nil {
			log.Printf("publish position for vehicle %s: %v", v.ID, err)
		}
	}
	if s.snapshots != nil {
		snap := fleet.PositionSnapshot{
			VehicleID:  v.ID,
			ShipmentID: shipmentID,
			Lon:        p.progress.Position.Lon,
			Lat:        p.progress.Position.Lat,
			BearingDeg: bearing,
			RouteIndex: p.next,
			Progress:   progress,
			ETA:        p.progress.ETA,
			UpdatedAt:  p.progress.At,
		}
		if err := s.snapshots.SetPosition(ctx, snap); err != nil {
			log.Printf("cache position for vehicle %s: %v", v.ID, err)
		}
	}
}

func (s *Scheduler) skip(reason string) {
	if s.metrics != nil {
		s.metrics.VehiclesSkipped.WithLabelValues(reason).Inc()
	}
}

func (s *Scheduler) observeTick(started time.Time) {
	if s.metrics != nil {
		s.metrics.TicksTotal.Inc()
		s.metrics.TickDuration.Observe(time.Since(started).Seconds())
	}
}
