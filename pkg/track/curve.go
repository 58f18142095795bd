package track

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	MinControlPoints = 3
	// number of samples used to map curve progress to the spline parameter
	defaultArcLengthDivisions = 1000
)

var ErrTooFewPoints = errors.New("too few control points")

// Curve is a closed centripetal Catmull-Rom spline through its control points.
// Query parameters are curve progress: the fraction of the arc length measured
// from the first control point. Any real value is accepted and wrapped into [0,1).
// A Curve is immutable after construction and safe for concurrent reads.
type Curve struct {
	points    []r3.Vec
	segments  []segment
	arcLength []float64 // cumulative length at sample k/divisions
	length    float64
}

type segment struct {
	c0, c1, c2, c3 r3.Vec
}

type (
	Option  func(*options)
	options struct {
		divisions int
	}
)

// WithArcLengthDivisions sets the resolution of the progress lookup table.
func WithArcLengthDivisions(n int) Option {
	return func(o *options) {
		o.divisions = n
	}
}

func NewCurve(points []r3.Vec, opts ...Option) (*Curve, error) {
	if len(points) < MinControlPoints {
		return nil, fmt.Errorf("%w: got %d, need at least %d",
			ErrTooFewPoints, len(points), MinControlPoints)
	}
	o := &options{divisions: defaultArcLengthDivisions}
	for _, opt := range opts {
		opt(o)
	}
	if o.divisions < len(points) {
		o.divisions = len(points)
	}
	c := &Curve{
		points:   append([]r3.Vec(nil), points...),
		segments: make([]segment, len(points)),
	}
	n := len(points)
	for i := range n {
		c.segments[i] = newCentripetalSegment(
			points[(i-1+n)%n], points[i], points[(i+1)%n], points[(i+2)%n])
	}
	c.buildArcLengths(o.divisions)
	if c.length == 0 {
		return nil, fmt.Errorf("%w: all points coincide", ErrTooFewPoints)
	}
	return c, nil
}

//nolint:whitespace // editor/linter issue
func newCentripetalSegment(p0, p1, p2, p3 r3.Vec) segment {
	dt0 := math.Pow(r3.Norm2(r3.Sub(p0, p1)), 0.25)
	dt1 := math.Pow(r3.Norm2(r3.Sub(p1, p2)), 0.25)
	dt2 := math.Pow(r3.Norm2(r3.Sub(p2, p3)), 0.25)
	// safety checks for repeated points
	if dt1 < 1e-4 {
		dt1 = 1.0
	}
	if dt0 < 1e-4 {
		dt0 = dt1
	}
	if dt2 < 1e-4 {
		dt2 = dt1
	}
	t1 := r3.Add(
		r3.Sub(r3.Scale(1/dt0, r3.Sub(p1, p0)), r3.Scale(1/(dt0+dt1), r3.Sub(p2, p0))),
		r3.Scale(1/dt1, r3.Sub(p2, p1)))
	t2 := r3.Add(
		r3.Sub(r3.Scale(1/dt1, r3.Sub(p2, p1)), r3.Scale(1/(dt1+dt2), r3.Sub(p3, p1))),
		r3.Scale(1/dt2, r3.Sub(p3, p2)))
	t1 = r3.Scale(dt1, t1)
	t2 = r3.Scale(dt1, t2)

	// cubic hermite between p1 and p2
	return segment{
		c0: p1,
		c1: t1,
		c2: r3.Sub(r3.Sub(r3.Scale(3, r3.Sub(p2, p1)), r3.Scale(2, t1)), t2),
		c3: r3.Add(r3.Add(r3.Scale(2, r3.Sub(p1, p2)), t1), t2),
	}
}

func (s *segment) point(w float64) r3.Vec {
	return r3.Add(
		r3.Add(s.c0, r3.Scale(w, s.c1)),
		r3.Add(r3.Scale(w*w, s.c2), r3.Scale(w*w*w, s.c3)))
}

func (s *segment) derivative(w float64) r3.Vec {
	return r3.Add(s.c1, r3.Add(r3.Scale(2*w, s.c2), r3.Scale(3*w*w, s.c3)))
}

func (c *Curve) buildArcLengths(divisions int) {
	c.arcLength = make([]float64, divisions+1)
	last := c.rawPoint(0)
	for k := 1; k <= divisions; k++ {
		p := c.rawPoint(float64(k) / float64(divisions))
		c.arcLength[k] = c.arcLength[k-1] + r3.Norm(r3.Sub(p, last))
		last = p
	}
	c.length = c.arcLength[divisions]
}

// rawPoint evaluates the spline at parameter t in [0,1], segments equally spaced.
func (c *Curve) rawPoint(t float64) r3.Vec {
	seg, w := c.locate(t)
	return c.segments[seg].point(w)
}

func (c *Curve) locate(t float64) (seg int, w float64) {
	n := len(c.segments)
	p := t * float64(n)
	idx := math.Floor(p)
	w = p - idx
	seg = int(idx) % n
	if seg < 0 {
		seg += n
	}
	return seg, w
}

// paramAt maps curve progress u in [0,1) to the spline parameter.
func (c *Curve) paramAt(u float64) float64 {
	target := u * c.length
	divisions := len(c.arcLength) - 1
	// first sample with cumulative length >= target
	i := sort.SearchFloat64s(c.arcLength, target)
	if i == 0 {
		return 0
	}
	if i > divisions {
		return 1
	}
	before := c.arcLength[i-1]
	span := c.arcLength[i] - before
	frac := 0.0
	if span > 0 {
		frac = (target - before) / span
	}
	return (float64(i-1) + frac) / float64(divisions)
}

// Wrap maps any real value into [0,1).
func Wrap(u float64) float64 {
	w := u - math.Floor(u)
	if w >= 1 {
		// guards against rounding of tiny negative inputs
		return 0
	}
	return w
}

// PointAt returns the point at curve progress u.
func (c *Curve) PointAt(u float64) r3.Vec {
	return c.rawPoint(c.paramAt(Wrap(u)))
}

// TangentAt returns the normalized direction of travel at curve progress u.
func (c *Curve) TangentAt(u float64) r3.Vec {
	seg, w := c.locate(c.paramAt(Wrap(u)))
	d := c.segments[seg].derivative(w)
	if r3.Norm(d) == 0 {
		return r3.Vec{Z: 1}
	}
	return r3.Unit(d)
}

// Length is the approximated arc length of the closed curve.
func (c *Curve) Length() float64 {
	return c.length
}

func (c *Curve) ControlPoints() []r3.Vec {
	return append([]r3.Vec(nil), c.points...)
}
