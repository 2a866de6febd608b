package fleet

import (
	"fmt"
	"time"
)

// ShipmentStatus is persisted as a string.
type ShipmentStatus string

const (
	ShipmentPending   ShipmentStatus = "pending"    // created, not dispatched
	ShipmentInTransit ShipmentStatus = "in_transit" // vehicle and driver assigned, moving
	ShipmentArrived   ShipmentStatus = "arrived"    // at destination, handover pending
	ShipmentDelivered ShipmentStatus = "delivered"  // terminal
	ShipmentCancelled ShipmentStatus = "cancelled"  // terminal
)

// shipmentTransitions is the allowed status graph. Terminal states have no
// outgoing edges.
var shipmentTransitions = map[ShipmentStatus][]ShipmentStatus{
	ShipmentPending:   {ShipmentInTransit, ShipmentCancelled},
	ShipmentInTransit: {ShipmentArrived, ShipmentDelivered, ShipmentCancelled},
	ShipmentArrived:   {ShipmentDelivered},
	ShipmentDelivered: {},
	ShipmentCancelled: {},
}

// CanTransition reports whether from -> to is an allowed status change.
func CanTransition(from, to ShipmentStatus) bool {
	if from == to {
		return true
	}
	for _, s := range shipmentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TerminalArrivalStatus validates the configured status the completion
// handler writes when a vehicle reaches the end of its route.
func TerminalArrivalStatus(s string) (ShipmentStatus, error) {
	switch ShipmentStatus(s) {
	case ShipmentDelivered, ShipmentArrived:
		return ShipmentStatus(s), nil
	default:
		return "", fmt.Errorf("invalid arrival status %q (want %q or %q)", s, ShipmentDelivered, ShipmentArrived)
	}
}

// Shipment is the subset of the shipments row the simulator works with.
// DriverID and VehicleID are empty until the dispatch workflow assigns them.
type Shipment struct {
	ID          string
	Number      string
	Status      ShipmentStatus
	DriverID    string
	VehicleID   string
	DeliveredAt *time.Time
}

// ShipmentFilter narrows ListShipments. A nil VehicleIDs matches any vehicle;
// an empty non-nil slice matches none.
type ShipmentFilter struct {
	Status     ShipmentStatus
	VehicleIDs []string
}
