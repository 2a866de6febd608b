package sim

import (
	"time"

	"github.com/itanishqshelar/milesconnect-demo/internal/fleet"
	"github.com/itanishqshelar/milesconnect-demo/internal/geo"
)

// EstimateETA projects the arrival time for a vehicle that will sit at
// polyline index next. With a provider duration the estimate is the remaining
// fraction of the polyline scaled by that duration; otherwise it falls back
// to great-circle distance over the remaining points at the fallback speed.
// At or past the final index the ETA is now.
func EstimateETA(route *fleet.Route, next int, now time.Time) time.Time {
	n := len(route.Points)
	if next >= n-1 {
		return now
	}
	var remainingSeconds float64
	if route.DurationSeconds > 0 {
		remainingSeconds = route.DurationSeconds * float64(n-next) / float64(n)
	} else {
		remainingKm := geo.PathDistance(route.Points, next)
		remainingSeconds = remainingKm / fallbackSpeedKmh * 3600
	}
	if remainingSeconds < 0 {
		remainingSeconds = 0
	}
	return now.Add(time.Duration(remainingSeconds * float64(time.Second)))
}

// Arrived reports whether index next reached the route's final point. The
// boundary is closed: landing exactly on the last index counts.
func Arrived(next, numPoints int) bool {
	return next >= numPoints-1
}
