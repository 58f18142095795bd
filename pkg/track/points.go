package track

import "gonum.org/v1/gonum/spatial/r3"

// DefaultControlPoints is the championship circuit. The first point is the
// start/finish line.
func DefaultControlPoints() []r3.Vec {
	return []r3.Vec{
		{X: 0, Y: 0, Z: 0},
		{X: 30, Y: 0, Z: 20},
		{X: 80, Y: 0, Z: 10},
		{X: 120, Y: 0, Z: 50},
		{X: 100, Y: 0, Z: 130},
		{X: 40, Y: 0, Z: 160},
		{X: -60, Y: 0, Z: 140},
		{X: -100, Y: 0, Z: 80},
		{X: -40, Y: 0, Z: 20},
	}
}

// Default builds the curve from DefaultControlPoints.
func Default() *Curve {
	c, err := NewCurve(DefaultControlPoints())
	if err != nil {
		// constant input, cannot happen
		panic(err)
	}
	return c
}
