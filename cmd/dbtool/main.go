// Command dbtool prepares a database for the simulator: it creates the
// schema, seeds a demo fleet and puts pending shipments on the road with
// synthetic routes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/itanishqshelar/milesconnect-demo/internal/config"
	"github.com/itanishqshelar/milesconnect-demo/internal/fleet"
	"github.com/itanishqshelar/milesconnect-demo/internal/geo"
	"github.com/itanishqshelar/milesconnect-demo/internal/store"
)

// Depot cities used for synthetic routes.
var cities = []struct {
	name string
	pt   fleet.Point
}{
	{"Mumbai", fleet.Point{Lon: 72.8777, Lat: 19.0760}},
	{"Pune", fleet.Point{Lon: 73.8567, Lat: 18.5204}},
	{"Nashik", fleet.Point{Lon: 73.7898, Lat: 20.0059}},
	{"Surat", fleet.Point{Lon: 72.8311, Lat: 21.1702}},
	{"Nagpur", fleet.Point{Lon: 79.0882, Lat: 21.1458}},
	{"Hyderabad", fleet.Point{Lon: 78.4867, Lat: 17.3850}},
}

var driverNames = []string{
	"Arjun Deshmukh", "Kavita Pawar", "Ravi Kulkarni", "Sneha Joshi",
	"Imran Shaikh", "Prakash Jadhav", "Meera Nair", "Sunil Patil",
}

func main() {
	initSchema := flag.Bool("init", false, "create the fleet tables")
	seedCount := flag.Int("seed", 0, "seed N demo vehicles with drivers and pending shipments")
	dispatchCount := flag.Int("dispatch", 0, "put up to N pending shipments on the road")
	flag.Parse()

	if !*initSchema && *seedCount == 0 && *dispatchCount == 0 {
		flag.Usage()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()
	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}
	defer db.Close()
	if err := store.Ping(ctx, db); err != nil {
		log.Fatalf("db ping error: %v", err)
	}
	st := store.New(db)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	if *initSchema {
		log.Println("creating fleet tables...")
		if err := st.InitSchema(ctx); err != nil {
			log.Fatalf("init schema: %v", err)
		}
		log.Println("schema ready")
	}

	if *seedCount > 0 {
		if err := seed(ctx, st, rng, *seedCount); err != nil {
			log.Fatalf("seed: %v", err)
		}
	}

	if *dispatchCount > 0 {
		if err := dispatch(ctx, st, rng, *dispatchCount); err != nil {
			log.Fatalf("dispatch: %v", err)
		}
	}
}

// seed creates n idle vehicles, n idle drivers and n pending shipments. One
// vehicle in five is marked live to mimic a mixed fleet with real trackers.
func seed(ctx context.Context, st *store.Postgres, rng *rand.Rand, n int) error {
	log.Printf("seeding %d vehicles, drivers and shipments...", n)
	for i := 0; i < n; i++ {
		depot := cities[rng.Intn(len(cities))].pt
		mode := fleet.TrackingSimulated
		if i%5 == 4 {
			mode = fleet.TrackingLive
		}
		v := fleet.Vehicle{
			ID:           uuid.NewString(),
			PlateNumber:  fmt.Sprintf("MH-%02d-%04d", rng.Intn(50)+1, rng.Intn(9000)+1000),
			Status:       fleet.VehicleIdle,
			TrackingMode: mode,
			Position:     &depot,
		}
		if err := st.CreateVehicle(ctx, v); err != nil {
			return err
		}

		d := fleet.Driver{
			ID:     uuid.NewString(),
			Name:   driverNames[i%len(driverNames)],
			Status: fleet.DriverIdle,
		}
		if err := st.CreateDriver(ctx, d); err != nil {
			return err
		}

		sh := fleet.Shipment{
			ID:     uuid.NewString(),
			Number: shipmentNumber(),
			Status: fleet.ShipmentPending,
		}
		if err := st.CreateShipment(ctx, sh); err != nil {
			return err
		}
	}
	log.Println("seeding complete")
	return nil
}

// dispatch pairs pending shipments with idle simulated vehicles and idle
// drivers, generating a synthetic route between two depot cities for each.
func dispatch(ctx context.Context, st *store.Postgres, rng *rand.Rand, n int) error {
	vehicles, err := st.ListVehicles(ctx, fleet.VehicleFilter{
		Status:       fleet.VehicleIdle,
		TrackingMode: fleet.TrackingSimulated,
	})
	if err != nil {
		return err
	}
	drivers, err := st.ListDrivers(ctx, fleet.DriverFilter{Status: fleet.DriverIdle})
	if err != nil {
		return err
	}
	shipments, err := st.ListShipments(ctx, fleet.ShipmentFilter{Status: fleet.ShipmentPending})
	if err != nil {
		return err
	}

	count := n
	for _, m := range []int{len(vehicles), len(drivers), len(shipments)} {
		if m < count {
			count = m
		}
	}
	if count == 0 {
		log.Println("nothing to dispatch: need a pending shipment, an idle simulated vehicle and an idle driver")
		return nil
	}

	now := time.Now()
	dispatched := 0
	for i := 0; i < count; i++ {
		sh, v, d := shipments[i], vehicles[i], drivers[i]
		if !fleet.CanTransition(sh.Status, fleet.ShipmentInTransit) {
			log.Printf("shipment %s cannot move %s -> %s; skipping", sh.Number, sh.Status, fleet.ShipmentInTransit)
			continue
		}
		route := makeRoute(rng)
		eta := now.Add(time.Duration(route.DurationSeconds * float64(time.Second)))
		if err := st.DispatchShipment(ctx, sh.ID, v.ID, d.ID, route, eta); err != nil {
			return fmt.Errorf("dispatch %s: %w", sh.Number, err)
		}
		log.Printf("dispatched %s: vehicle %s, driver %s, %d route points, eta %s",
			sh.Number, v.PlateNumber, d.Name, len(route.Points), eta.Format(time.RFC3339))
		dispatched++
	}
	log.Printf("dispatched %d shipments", dispatched)
	return nil
}

// makeRoute builds a wobbly polyline between two distinct depot cities,
// paced at an average 40 km/h.
func makeRoute(rng *rand.Rand) *fleet.Route {
	from := rng.Intn(len(cities))
	to := rng.Intn(len(cities) - 1)
	if to >= from {
		to++
	}
	a, b := cities[from].pt, cities[to].pt

	n := 60 + rng.Intn(120)
	pts := make([]fleet.Point, 0, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n-1)
		p := fleet.Point{
			Lon: a.Lon + (b.Lon-a.Lon)*t,
			Lat: a.Lat + (b.Lat-a.Lat)*t,
		}
		if i > 0 && i < n-1 {
			p.Lon += (rng.Float64() - 0.5) * 0.02
			p.Lat += (rng.Float64() - 0.5) * 0.02
		}
		pts = append(pts, p)
	}

	km := 0.0
	for i := 1; i < len(pts); i++ {
		km += geo.Distance(pts[i-1], pts[i])
	}
	return &fleet.Route{
		Points:          pts,
		DurationSeconds: km / 40 * 3600,
		DistanceMeters:  km * 1000,
	}
}

func shipmentNumber() string {
	return "SHP-" + strings.ToUpper(uuid.NewString()[:8])
}
