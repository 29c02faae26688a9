package grid

import "math"

// DefaultPadding is the minimum clearance kept between two footprints on top
// of their radii.
const DefaultPadding = 20.0

// Point is a 2-D coordinate on the map.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Round snaps the point to whole pixels.
func (p Point) Round() Point {
	return Point{X: math.Round(p.X), Y: math.Round(p.Y)}
}

// Valid reports whether both coordinates are finite numbers.
func (p Point) Valid() bool {
	return isFinite(p.X) && isFinite(p.Y)
}

// Footprint is the circular area an element occupies on the map.
type Footprint struct {
	X      float64
	Y      float64
	Radius float64
}

// Overlaps reports whether two footprints collide. Two circles overlap when
// their center distance is less than the sum of their radii plus the padding
// clearance.
func Overlaps(a, b Footprint, padding float64) bool {
	distance := math.Hypot(a.X-b.X, a.Y-b.Y)
	return distance < a.Radius+b.Radius+padding
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
