package fleet

import (
	"encoding/json"
	"fmt"
	"math"
)

// Point is a geographic coordinate in GeoJSON order (longitude first).
// It marshals as a two-element [lon, lat] array.
type Point struct {
	Lon float64
	Lat float64
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.Lon, p.Lat})
}

func (p *Point) UnmarshalJSON(b []byte) error {
	var pair []float64
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("coordinate pair has %d elements, want 2", len(pair))
	}
	p.Lon, p.Lat = pair[0], pair[1]
	return nil
}

// Finite reports whether both coordinates are real numbers.
func (p Point) Finite() bool {
	return !math.IsNaN(p.Lon) && !math.IsInf(p.Lon, 0) &&
		!math.IsNaN(p.Lat) && !math.IsInf(p.Lat, 0)
}

// Route is the geometry a routing provider produced at dispatch time: an
// ordered polyline plus the provider's total duration and distance. Those
// totals may be traffic-adjusted, so they are not derivable from the points.
// Zero DurationSeconds/DistanceMeters mean the provider did not report them.
// A Route is immutable once attached to a vehicle.
type Route struct {
	Points          []Point `json:"coordinates"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	DistanceMeters  float64 `json:"distance_meters,omitempty"`
}

// DecodeRoute parses the persisted route geometry and validates it is
// simulatable: at least two finite points. Callers treat a decode error as
// "nothing to simulate" for the owning vehicle, never as a batch failure.
func DecodeRoute(raw []byte) (*Route, error) {
	var r Route
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode route geometry: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Route) Validate() error {
	if len(r.Points) < 2 {
		return fmt.Errorf("route geometry has %d points, want at least 2", len(r.Points))
	}
	for i, p := range r.Points {
		if !p.Finite() {
			return fmt.Errorf("route geometry point %d is not finite", i)
		}
	}
	return nil
}

// Encode serializes the route for storage.
func (r *Route) Encode() ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode route geometry: %w", err)
	}
	return b, nil
}

// End returns the final point of the polyline.
func (r *Route) End() Point {
	return r.Points[len(r.Points)-1]
}
