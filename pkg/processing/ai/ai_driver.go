package ai

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mpapenbr/hyperdrive-race/pkg/model"
	"github.com/mpapenbr/hyperdrive-race/pkg/processing"
	"github.com/mpapenbr/hyperdrive-race/pkg/track"
)

const (
	DefaultMinPace       = 0.04  // curve progress per second
	DefaultMaxPace       = 0.055 // exclusive
	DefaultLookahead     = 0.01
	DefaultLaneAmplitude = 2.0
	DefaultLaneFrequency = 50.0
	DefaultHoverHeight   = 0.5
)

// Driver moves AI vehicles along the curve. Each tick it picks a fresh pace
// from [minPace, maxPace); there is no acceleration memory and no reaction to
// other cars.
type Driver struct {
	curve         *track.Curve
	rng           *rand.Rand
	minPace       float64
	maxPace       float64
	lookahead     float64
	laneAmplitude float64
	laneFrequency float64
	hoverHeight   float64
}

type Option func(d *Driver)

// WithRand sets the random source. Drivers sharing a source draw from one
// sequence, which keeps runs reproducible for a fixed seed.
func WithRand(rng *rand.Rand) Option {
	return func(d *Driver) {
		d.rng = rng
	}
}

func WithSeed(seed uint64) Option {
	return func(d *Driver) {
		d.rng = rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
	}
}

// WithPace sets the range of the sampled pace. min == max gives a fixed pace.
func WithPace(minPace, maxPace float64) Option {
	return func(d *Driver) {
		d.minPace = minPace
		d.maxPace = maxPace
	}
}

func WithLookahead(lookahead float64) Option {
	return func(d *Driver) {
		d.lookahead = lookahead
	}
}

func WithLaneOffset(amplitude, frequency float64) Option {
	return func(d *Driver) {
		d.laneAmplitude = amplitude
		d.laneFrequency = frequency
	}
}

func NewDriver(curve *track.Curve, opts ...Option) *Driver {
	d := &Driver{
		curve:         curve,
		minPace:       DefaultMinPace,
		maxPace:       DefaultMaxPace,
		lookahead:     DefaultLookahead,
		laneAmplitude: DefaultLaneAmplitude,
		laneFrequency: DefaultLaneFrequency,
		hoverHeight:   DefaultHoverHeight,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.rng == nil {
		d.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if d.maxPace < d.minPace {
		d.minPace, d.maxPace = d.maxPace, d.minPace
	}
	return d
}

func (d *Driver) Drive(v *model.Vehicle, dt float64) processing.Outcome {
	v.Speed = d.samplePace()
	old := v.Progress
	v.Progress = track.Wrap(old + v.Speed*dt)
	lapDone := v.Progress < old
	if lapDone {
		v.Lap++
	}
	d.place(v)
	return processing.Outcome{LapCompleted: lapDone, Lap: v.Lap}
}

func (d *Driver) samplePace() float64 {
	if d.maxPace == d.minPace {
		return d.minPace
	}
	return d.minPace + d.rng.Float64()*(d.maxPace-d.minPace)
}

func (d *Driver) place(v *model.Vehicle) {
	point := d.curve.PointAt(v.Progress)
	ahead := d.curve.PointAt(v.Progress + d.lookahead)
	dir := r3.Sub(ahead, point)

	// sideways on the horizontal plane, keeps the cars from driving in a line
	normal := r3.Vec{X: dir.Z, Z: -dir.X}
	if n := r3.Norm(normal); n > 0 {
		normal = r3.Scale(1/n, normal)
	}
	lane := math.Sin(v.Progress*d.laneFrequency+float64(v.GridSlot)) * d.laneAmplitude
	pos := r3.Add(point, r3.Scale(lane, normal))
	pos.Y = d.hoverHeight

	v.Position = pos
	v.Rotation = model.Orientation{Yaw: math.Atan2(dir.X, dir.Z)}
}
