package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/itanishqshelar/milesconnect-demo/internal/fleet"
)

// ListShipments returns shipments matching the filter. A non-nil empty
// VehicleIDs slice matches nothing; nil leaves vehicles unconstrained.
func (p *Postgres) ListShipments(ctx context.Context, f fleet.ShipmentFilter) ([]fleet.Shipment, error) {
	q := `SELECT id, number, status, COALESCE(driver_id, ''), COALESCE(vehicle_id, ''), delivered_at FROM shipments`
	var conds []string
	var args []any
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.VehicleIDs != nil {
		args = append(args, f.VehicleIDs)
		conds = append(conds, fmt.Sprintf("vehicle_id = ANY($%d)", len(args)))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY number"

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query shipments: %w", err)
	}
	defer rows.Close()

	var out []fleet.Shipment
	for rows.Next() {
		var sh fleet.Shipment
		var delivered sql.NullTime
		if err := rows.Scan(&sh.ID, &sh.Number, &sh.Status, &sh.DriverID, &sh.VehicleID, &delivered); err != nil {
			return nil, err
		}
		if delivered.Valid {
			t := delivered.Time
			sh.DeliveredAt = &t
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

// CompleteShipment moves an in-transit shipment to its terminal status.
// delivered_at is stamped only for delivered shipments; an arrived shipment
// keeps it null until a later manual delivery confirmation. Only a shipment
// still in transit matches: one whose status changed since it was loaded is
// left alone and the update reports ErrNotFound.
func (p *Postgres) CompleteShipment(ctx context.Context, shipmentID string, status fleet.ShipmentStatus, at time.Time) error {
	const q = `UPDATE shipments
SET status = $2,
    delivered_at = CASE WHEN $2 = 'delivered' THEN $3 ELSE delivered_at END
WHERE id = $1 AND status = 'in_transit'`
	res, err := p.db.ExecContext(ctx, q, shipmentID, string(status), at)
	if err != nil {
		return fmt.Errorf("complete shipment: %w", err)
	}
	return oneRow(res)
}
