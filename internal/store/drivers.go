package store

import (
	"context"
	"fmt"

	"github.com/itanishqshelar/milesconnect-demo/internal/fleet"
)

func (p *Postgres) ListDrivers(ctx context.Context, f fleet.DriverFilter) ([]fleet.Driver, error) {
	q := `SELECT id, name, status FROM drivers`
	var args []any
	if f.Status != "" {
		args = append(args, string(f.Status))
		q += " WHERE status = $1"
	}
	q += " ORDER BY name"

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query drivers: %w", err)
	}
	defer rows.Close()

	var out []fleet.Driver
	for rows.Next() {
		var d fleet.Driver
		if err := rows.Scan(&d.ID, &d.Name, &d.Status); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) SetDriverStatus(ctx context.Context, driverID string, status fleet.DriverStatus) error {
	const q = `UPDATE drivers SET status = $2 WHERE id = $1`
	res, err := p.db.ExecContext(ctx, q, driverID, string(status))
	if err != nil {
		return fmt.Errorf("set driver status: %w", err)
	}
	return oneRow(res)
}
