package fleet

// DriverStatus is persisted as a string.
type DriverStatus string

const (
	DriverIdle    DriverStatus = "idle"
	DriverWorking DriverStatus = "working" // assigned to an in-transit shipment
)

type Driver struct {
	ID     string
	Name   string
	Status DriverStatus
}

// DriverFilter narrows ListDrivers. Zero values match anything.
type DriverFilter struct {
	Status DriverStatus
}
