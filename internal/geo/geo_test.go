package geo

import (
	"math"
	"testing"

	"github.com/itanishqshelar/milesconnect-demo/internal/fleet"
)

func TestDistanceKnownPairs(t *testing.T) {
	paris := fleet.Point{Lon: 2.3522, Lat: 48.8566}
	london := fleet.Point{Lon: -0.1276, Lat: 51.5072}

	d := Distance(paris, london)
	if d < 340 || d > 348 {
		t.Fatalf("Paris-London = %.2f km, want ~344", d)
	}

	// One degree of longitude along the equator
	a := fleet.Point{Lon: 0, Lat: 0}
	b := fleet.Point{Lon: 1, Lat: 0}
	d = Distance(a, b)
	want := earthRadiusKm * math.Pi / 180
	if math.Abs(d-want) > 0.01 {
		t.Fatalf("equator degree = %.4f km, want %.4f", d, want)
	}
}

func TestDistanceZeroAndSymmetry(t *testing.T) {
	p := fleet.Point{Lon: 73.8567, Lat: 18.5204}
	if d := Distance(p, p); d != 0 {
		t.Fatalf("distance to self = %v, want 0", d)
	}

	q := fleet.Point{Lon: 72.8777, Lat: 19.0760}
	if ab, ba := Distance(p, q), Distance(q, p); math.Abs(ab-ba) > 1e-9 {
		t.Fatalf("distance not symmetric: %v vs %v", ab, ba)
	}
}

func TestPathDistance(t *testing.T) {
	pts := []fleet.Point{
		{Lon: 0.0, Lat: 0},
		{Lon: 0.1, Lat: 0},
		{Lon: 0.2, Lat: 0},
	}
	seg := Distance(pts[0], pts[1])

	if d := PathDistance(pts, 0); math.Abs(d-2*seg) > 1e-9 {
		t.Errorf("PathDistance from 0 = %v, want %v", d, 2*seg)
	}
	if d := PathDistance(pts, 1); math.Abs(d-seg) > 1e-9 {
		t.Errorf("PathDistance from 1 = %v, want %v", d, seg)
	}
	if d := PathDistance(pts, 2); d != 0 {
		t.Errorf("PathDistance from last = %v, want 0", d)
	}
	if d := PathDistance(pts, 5); d != 0 {
		t.Errorf("PathDistance past end = %v, want 0", d)
	}
	if d := PathDistance(pts, -3); math.Abs(d-2*seg) > 1e-9 {
		t.Errorf("PathDistance from negative = %v, want %v", d, 2*seg)
	}
}

func TestBearingCardinalDirections(t *testing.T) {
	origin := fleet.Point{Lon: 0, Lat: 0}
	cases := []struct {
		name string
		to   fleet.Point
		want float64
	}{
		{"north", fleet.Point{Lon: 0, Lat: 1}, 0},
		{"east", fleet.Point{Lon: 1, Lat: 0}, 90},
		{"south", fleet.Point{Lon: 0, Lat: -1}, 180},
		{"west", fleet.Point{Lon: -1, Lat: 0}, 270},
	}
	for _, tc := range cases {
		got := Bearing(origin, tc.to)
		if math.Abs(got-tc.want) > 0.01 {
			t.Errorf("%s: bearing = %.3f, want %.3f", tc.name, got, tc.want)
		}
		if got < 0 || got >= 360 {
			t.Errorf("%s: bearing %.3f outside [0,360)", tc.name, got)
		}
	}
}
