package fleet

import "time"

// VehicleStatus is persisted as a string.
type VehicleStatus string

const (
	VehicleIdle  VehicleStatus = "idle"   // no active assignment
	VehicleInUse VehicleStatus = "in_use" // assigned to an in-transit shipment
)

// TrackingMode selects which position source owns a vehicle. The scheduler
// advances simulated vehicles only; live vehicles belong to the GPS feed.
type TrackingMode string

const (
	TrackingSimulated TrackingMode = "simulated"
	TrackingLive      TrackingMode = "live"
)

// Vehicle is the subset of the vehicles row the simulator works with.
// Route and RouteIndex are set and cleared together: an idle vehicle has a
// nil Route, RouteIndex 0 and nil ETA.
type Vehicle struct {
	ID           string
	PlateNumber  string
	Status       VehicleStatus
	TrackingMode TrackingMode

	Position           *Point
	Route              *Route
	RouteIndex         int
	ETA                *time.Time
	LastLocationUpdate *time.Time
}

// VehicleFilter narrows ListVehicles. Zero values match anything.
type VehicleFilter struct {
	Status       VehicleStatus
	TrackingMode TrackingMode
}

// ProgressUpdate is the in-progress write for one vehicle: new position on the
// polyline, the index that produced it, the recomputed ETA and the update
// timestamp. The owning shipment is untouched by this write.
type ProgressUpdate struct {
	Position   Point
	RouteIndex int
	ETA        time.Time
	At         time.Time
}
