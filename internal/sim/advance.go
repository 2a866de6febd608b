package sim

import (
	"math"
	"math/rand"
	"time"

	"github.com/itanishqshelar/milesconnect-demo/internal/fleet"
)

const (
	// fallbackSpeedKmh paces routes whose provider reported no duration.
	fallbackSpeedKmh = 30.0
	// fallbackDistanceMeters stands in when the provider reported neither
	// duration nor distance.
	fallbackDistanceMeters = 10000.0

	jitterLow  = 0.8
	jitterHigh = 1.2
)

// NextIndex returns the polyline index a vehicle reaches after elapsed time,
// clamped to the final point. Pacing derives from the route's traffic-aware
// duration, so a vehicle covers its route in roughly that time regardless of
// how densely the provider sampled the polyline. rng supplies the +/-20%
// pacing jitter; pass nil for deterministic steps. rng must not be shared
// across goroutines.
func NextIndex(route *fleet.Route, current int, elapsed time.Duration, rng *rand.Rand) int {
	last := len(route.Points) - 1
	if current >= last {
		return last
	}
	base := pointsPerTick(len(route.Points), routeDuration(route), elapsed.Seconds())
	next := current + jitterStep(base, rng)
	if next > last {
		next = last
	}
	return next
}

// routeDuration returns the route's total travel time in seconds, estimating
// it from distance at the fallback average speed when the provider did not
// report one.
func routeDuration(route *fleet.Route) float64 {
	if route.DurationSeconds > 0 {
		return route.DurationSeconds
	}
	meters := route.DistanceMeters
	if meters <= 0 {
		meters = fallbackDistanceMeters
	}
	return meters / 1000 / fallbackSpeedKmh * 3600
}

// pointsPerTick converts the route's pace into whole polyline points per
// elapsed interval, at least one so a vehicle never stalls.
func pointsPerTick(numPoints int, durationSeconds, elapsedSeconds float64) int {
	if durationSeconds <= 0 || elapsedSeconds <= 0 {
		return 1
	}
	ticks := durationSeconds / elapsedSeconds
	per := int(math.Ceil(float64(numPoints) / ticks))
	if per < 1 {
		per = 1
	}
	return per
}

// jitterStep scales the base step by a uniform multiplier in
// [jitterLow, jitterHigh] so motion is not perfectly linear between ticks.
func jitterStep(base int, rng *rand.Rand) int {
	if rng == nil {
		return base
	}
	f := jitterLow + rng.Float64()*(jitterHigh-jitterLow)
	step := int(math.Round(float64(base) * f))
	if step < 1 {
		step = 1
	}
	return step
}
