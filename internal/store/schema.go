package store

import (
	"context"
	"fmt"
	"time"

	"github.com/itanishqshelar/milesconnect-demo/internal/fleet"
)

const schema = `
CREATE TABLE IF NOT EXISTS vehicles (
    id                   TEXT PRIMARY KEY,
    plate_number         TEXT NOT NULL UNIQUE,
    status               TEXT NOT NULL DEFAULT 'idle',
    tracking_mode        TEXT NOT NULL DEFAULT 'simulated',
    current_lon          DOUBLE PRECISION,
    current_lat          DOUBLE PRECISION,
    route                JSONB,
    route_index          INTEGER NOT NULL DEFAULT 0,
    eta                  TIMESTAMPTZ,
    last_location_update TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_vehicles_status ON vehicles (status, tracking_mode);

CREATE TABLE IF NOT EXISTS drivers (
    id     TEXT PRIMARY KEY,
    name   TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'idle'
);

CREATE TABLE IF NOT EXISTS shipments (
    id           TEXT PRIMARY KEY,
    number       TEXT NOT NULL UNIQUE,
    status       TEXT NOT NULL DEFAULT 'pending',
    driver_id    TEXT REFERENCES drivers(id),
    vehicle_id   TEXT REFERENCES vehicles(id),
    delivered_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_shipments_status ON shipments (status);
`

// InitSchema creates the fleet tables if they do not exist.
func (p *Postgres) InitSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (p *Postgres) CreateVehicle(ctx context.Context, v fleet.Vehicle) error {
	const q = `INSERT INTO vehicles (id, plate_number, status, tracking_mode, current_lon, current_lat)
VALUES ($1, $2, $3, $4, $5, $6)`
	var lon, lat any
	if v.Position != nil {
		lon, lat = v.Position.Lon, v.Position.Lat
	}
	if _, err := p.db.ExecContext(ctx, q, v.ID, v.PlateNumber, string(v.Status), string(v.TrackingMode), lon, lat); err != nil {
		return fmt.Errorf("create vehicle: %w", err)
	}
	return nil
}

func (p *Postgres) CreateDriver(ctx context.Context, d fleet.Driver) error {
	const q = `INSERT INTO drivers (id, name, status) VALUES ($1, $2, $3)`
	if _, err := p.db.ExecContext(ctx, q, d.ID, d.Name, string(d.Status)); err != nil {
		return fmt.Errorf("create driver: %w", err)
	}
	return nil
}

func (p *Postgres) CreateShipment(ctx context.Context, sh fleet.Shipment) error {
	const q = `INSERT INTO shipments (id, number, status) VALUES ($1, $2, $3)`
	if _, err := p.db.ExecContext(ctx, q, sh.ID, sh.Number, string(sh.Status)); err != nil {
		return fmt.Errorf("create shipment: %w", err)
	}
	return nil
}

// DispatchShipment puts a pending shipment on the road: the vehicle gets the
// route and goes in_use at its first point, the driver goes working and the
// shipment goes in_transit. Dispatch is transactional, unlike completion, so
// a trip never starts half-assigned.
func (p *Postgres) DispatchShipment(ctx context.Context, shipmentID, vehicleID, driverID string, route *fleet.Route, eta time.Time) error {
	if err := route.Validate(); err != nil {
		return fmt.Errorf("dispatch shipment: %w", err)
	}
	raw, err := route.Encode()
	if err != nil {
		return fmt.Errorf("encode route: %w", err)
	}
	start := route.Points[0]

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin dispatch: %w", err)
	}
	defer tx.Rollback()

	const setVehicle = `UPDATE vehicles
SET status = 'in_use', route = $2, route_index = 0, eta = $3,
    current_lon = $4, current_lat = $5, last_location_update = NOW()
WHERE id = $1`
	if _, err := tx.ExecContext(ctx, setVehicle, vehicleID, raw, eta, start.Lon, start.Lat); err != nil {
		return fmt.Errorf("assign vehicle: %w", err)
	}
	const setDriver = `UPDATE drivers SET status = 'working' WHERE id = $1`
	if _, err := tx.ExecContext(ctx, setDriver, driverID); err != nil {
		return fmt.Errorf("assign driver: %w", err)
	}
	const setShipment = `UPDATE shipments
SET status = 'in_transit', driver_id = $2, vehicle_id = $3
WHERE id = $1 AND status = 'pending'`
	res, err := tx.ExecContext(ctx, setShipment, shipmentID, driverID, vehicleID)
	if err != nil {
		return fmt.Errorf("assign shipment: %w", err)
	}
	if err := oneRow(res); err != nil {
		return fmt.Errorf("shipment %s is not pending: %w", shipmentID, err)
	}
	return tx.Commit()
}
