package player

import (
	"errors"
	"fmt"
	"math"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mpapenbr/hyperdrive-race/pkg/model"
	"github.com/mpapenbr/hyperdrive-race/pkg/processing"
	"github.com/mpapenbr/hyperdrive-race/pkg/track"
)

const (
	ForwardForce  = 55.0
	BackwardForce = 30.0
	// applied once per tick, independent of dt
	Drag = 0.985

	SteerRate     = 2.5 // rad/s at full steering factor
	MinSteerSpeed = 1.0
	SteerRefSpeed = 40.0

	BankFactor    = 0.4
	BankRefSpeed  = 60.0
	MaxBank       = 0.5
	BankSmoothing = 0.1

	SearchWindow = 0.05
	SearchStep   = 0.005

	LapHighThreshold = 0.9
	LapLowThreshold  = 0.1

	// smoothing factors are given per frame at this rate
	ReferenceRate = 60.0
)

var ErrSearchWindow = errors.New("progress search window too small")

// Controller drives the player vehicle from the directional input flags.
//
// Progress is found by a local search around the previous progress. This
// requires that one tick never moves the car further than the search window.
// ValidateSearchWindow checks that for a given maximum tick delta.
type Controller struct {
	curve  *track.Curve
	input  model.MoveInput
	camera *Camera
}

type Option func(c *Controller)

func WithCamera(cam *Camera) Option {
	return func(c *Controller) {
		c.camera = cam
	}
}

func NewController(curve *track.Curve, opts ...Option) *Controller {
	c := &Controller{curve: curve}
	for _, opt := range opts {
		opt(c)
	}
	if c.camera == nil {
		c.camera = NewCamera()
	}
	return c
}

// SetInput replaces the input flags. Called by the input layer between ticks.
func (c *Controller) SetInput(in model.MoveInput) {
	c.input = in
}

func (c *Controller) Input() model.MoveInput {
	return c.input
}

func (c *Controller) Camera() *Camera {
	return c.camera
}

// Reset clears input and camera, used when the race is reset.
func (c *Controller) Reset() {
	c.input = model.MoveInput{}
	c.camera.Reset()
}

// TerminalSpeed is the speed reached when forward is held with a constant dt.
func TerminalSpeed(dt float64) float64 {
	return Drag * ForwardForce * dt / (1 - Drag)
}

// ValidateSearchWindow checks that the car cannot leave the search window
// within one tick of at most maxDt seconds.
func (c *Controller) ValidateSearchWindow(maxDt float64) error {
	maxDisplacement := TerminalSpeed(maxDt) * maxDt
	window := SearchWindow * c.curve.Length()
	if maxDisplacement >= window {
		return fmt.Errorf("%w: displacement %.1f per tick exceeds window %.1f (max dt %v)",
			ErrSearchWindow, maxDisplacement, window, maxDt)
	}
	return nil
}

func (c *Controller) Drive(v *model.Vehicle, dt float64) processing.Outcome {
	c.applyThrottle(v, dt)
	steer := c.input.SteerDirection()
	c.applySteering(v, steer, dt)
	c.applyBanking(v, steer, dt)

	v.Position.X += math.Sin(v.Rotation.Yaw) * v.Speed * dt
	v.Position.Z += math.Cos(v.Rotation.Yaw) * v.Speed * dt

	prev := v.Progress
	v.Progress = c.nearestProgress(v.Position, prev)
	lapDone := CrossedStart(prev, v.Progress)
	if lapDone {
		v.Lap++
	}
	c.camera.Follow(v, dt)
	return processing.Outcome{LapCompleted: lapDone, Lap: v.Lap}
}

func (c *Controller) applyThrottle(v *model.Vehicle, dt float64) {
	force := 0.0
	if c.input.Forward {
		force = ForwardForce
	}
	if c.input.Backward {
		force = -BackwardForce
	}
	v.Speed += force * dt
	v.Speed *= Drag
}

func (c *Controller) applySteering(v *model.Vehicle, steer, dt float64) {
	// no turning on the spot
	if math.Abs(v.Speed) <= MinSteerSpeed {
		return
	}
	factor := lo.Clamp(v.Speed, -SteerRefSpeed, SteerRefSpeed) / SteerRefSpeed
	v.Rotation.Yaw += steer * SteerRate * dt * factor
}

func (c *Controller) applyBanking(v *model.Vehicle, steer, dt float64) {
	target := lo.Clamp(steer*-BankFactor*(math.Abs(v.Speed)/BankRefSpeed), -MaxBank, MaxBank)
	v.Rotation.Roll = lerp(v.Rotation.Roll, target, smoothing(BankSmoothing, dt))
}

// nearestProgress searches [prev-window, prev+window] for the curve point
// closest to pos on the horizontal plane. prev is kept unless a strictly
// closer candidate exists.
func (c *Controller) nearestProgress(pos r3.Vec, prev float64) float64 {
	best := prev
	minDist := c.flatDistance(pos, prev)
	steps := int(math.Round(SearchWindow / SearchStep))
	for i := -steps; i <= steps; i++ {
		if i == 0 {
			continue
		}
		candidate := track.Wrap(prev + float64(i)*SearchStep)
		if d := c.flatDistance(pos, candidate); d < minDist {
			minDist = d
			best = candidate
		}
	}
	return best
}

func (c *Controller) flatDistance(pos r3.Vec, progress float64) float64 {
	p := c.curve.PointAt(progress)
	return math.Hypot(p.X-pos.X, p.Z-pos.Z)
}

// CrossedStart reports a forward pass over the start/finish line between
// two consecutive progress values.
func CrossedStart(prev, next float64) bool {
	return prev > LapHighThreshold && next < LapLowThreshold
}

func lerp(from, to, alpha float64) float64 {
	return from + (to-from)*alpha
}

// smoothing converts a per-frame factor at ReferenceRate into the factor for dt.
func smoothing(factor, dt float64) float64 {
	if dt <= 0 {
		return 0
	}
	return 1 - math.Pow(1-factor, dt*ReferenceRate)
}
