package fleet

import "time"

// PositionSnapshot is the latest simulated fix for one vehicle, mirrored into
// the tracking page's read cache after each committed progress update.
type PositionSnapshot struct {
	VehicleID  string    `json:"vehicle_id"`
	ShipmentID string    `json:"shipment_id,omitempty"`
	Lon        float64   `json:"lon"`
	Lat        float64   `json:"lat"`
	BearingDeg float64   `json:"bearing_deg"`
	RouteIndex int       `json:"route_index"`
	Progress   float64   `json:"progress"`
	ETA        time.Time `json:"eta"`
	UpdatedAt  time.Time `json:"updated_at"`
}
