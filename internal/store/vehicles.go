package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/itanishqshelar/milesconnect-demo/internal/fleet"
)

const vehicleColumns = `id, plate_number, status, tracking_mode, current_lon, current_lat, route, route_index, eta, last_location_update`

// ListVehicles returns vehicles matching the filter, ordered by plate number.
// A vehicle whose stored route cannot be decoded is returned with a nil
// Route rather than failing the whole load.
func (p *Postgres) ListVehicles(ctx context.Context, f fleet.VehicleFilter) ([]fleet.Vehicle, error) {
	q := `SELECT ` + vehicleColumns + ` FROM vehicles`
	var conds []string
	var args []any
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.TrackingMode != "" {
		args = append(args, string(f.TrackingMode))
		conds = append(conds, fmt.Sprintf("tracking_mode = $%d", len(args)))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY plate_number"

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query vehicles: %w", err)
	}
	defer rows.Close()

	var out []fleet.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanVehicle(rows *sql.Rows) (fleet.Vehicle, error) {
	var v fleet.Vehicle
	var lon, lat sql.NullFloat64
	var route []byte
	var eta, upd sql.NullTime
	if err := rows.Scan(&v.ID, &v.PlateNumber, &v.Status, &v.TrackingMode, &lon, &lat, &route, &v.RouteIndex, &eta, &upd); err != nil {
		return fleet.Vehicle{}, err
	}
	if lon.Valid && lat.Valid {
		v.Position = &fleet.Point{Lon: lon.Float64, Lat: lat.Float64}
	}
	if eta.Valid {
		t := eta.Time
		v.ETA = &t
	}
	if upd.Valid {
		t := upd.Time
		v.LastLocationUpdate = &t
	}
	if len(route) > 0 {
		r, err := fleet.DecodeRoute(route)
		if err != nil {
			// The vehicle stays in the fleet with no route and gets skipped
			// until it is redispatched.
			log.Printf("vehicle %s: undecodable route: %v", v.ID, err)
		} else {
			v.Route = r
		}
	}
	return v, nil
}

// UpdateVehicleProgress commits one simulation step: position, route index,
// ETA and the location timestamp. Route and status are untouched.
func (p *Postgres) UpdateVehicleProgress(ctx context.Context, vehicleID string, u fleet.ProgressUpdate) error {
	const q = `UPDATE vehicles
SET current_lon = $2, current_lat = $3, route_index = $4, eta = $5, last_location_update = $6
WHERE id = $1`
	res, err := p.db.ExecContext(ctx, q, vehicleID, u.Position.Lon, u.Position.Lat, u.RouteIndex, u.ETA, u.At)
	if err != nil {
		return fmt.Errorf("update vehicle progress: %w", err)
	}
	return oneRow(res)
}

// ReleaseVehicle returns a vehicle to idle, clearing route, route index and
// ETA. A non-nil finalPos also moves the vehicle to its drop-off point; nil
// keeps the last stored position. Safe to repeat.
func (p *Postgres) ReleaseVehicle(ctx context.Context, vehicleID string, finalPos *fleet.Point) error {
	var err error
	if finalPos != nil {
		const q = `UPDATE vehicles
SET status = 'idle', route = NULL, route_index = 0, eta = NULL,
    current_lon = $2, current_lat = $3, last_location_update = NOW()
WHERE id = $1`
		_, err = p.db.ExecContext(ctx, q, vehicleID, finalPos.Lon, finalPos.Lat)
	} else {
		const q = `UPDATE vehicles
SET status = 'idle', route = NULL, route_index = 0, eta = NULL
WHERE id = $1`
		_, err = p.db.ExecContext(ctx, q, vehicleID)
	}
	if err != nil {
		return fmt.Errorf("release vehicle: %w", err)
	}
	return nil
}
