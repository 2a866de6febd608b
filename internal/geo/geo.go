// Package geo provides great-circle math over fleet coordinates.
package geo

import (
	"math"

	"github.com/itanishqshelar/milesconnect-demo/internal/fleet"
)

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// Distance returns the haversine great-circle distance between two points in
// kilometers. NaN coordinates propagate; callers validate upstream.
func Distance(a, b fleet.Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// PathDistance returns the kilometers left on the polyline from the point at
// from to the final point, summing consecutive haversine legs. It returns 0
// when from already is the last index or beyond.
func PathDistance(points []fleet.Point, from int) float64 {
	if from < 0 {
		from = 0
	}
	sum := 0.0
	for i := from; i < len(points)-1; i++ {
		sum += Distance(points[i], points[i+1])
	}
	return sum
}

// Bearing returns the initial great-circle bearing from a to b in degrees,
// normalized to [0, 360).
func Bearing(a, b fleet.Point) float64 {
	y := math.Sin(toRad(b.Lon-a.Lon)) * math.Cos(toRad(b.Lat))
	x := math.Cos(toRad(a.Lat))*math.Sin(toRad(b.Lat)) -
		math.Sin(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Cos(toRad(b.Lon-a.Lon))
	brng := math.Atan2(y, x) * 180 / math.Pi
	if brng < 0 {
		brng += 360
	}
	return brng
}
