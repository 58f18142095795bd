package player

import (
	"math"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mpapenbr/hyperdrive-race/pkg/model"
)

const (
	CameraDistance  = 12.0
	CameraHeight    = 6.0
	CameraSmoothing = 0.1
	LookAhead       = 5.0
	LookHeight      = 1.0

	BaseFOV       = 70.0
	FOVPerSpeed   = 0.5
	FOVSmoothing  = 0.05
	MinFOV        = 60.0
	MaxFOV        = 110.0
	InitialFOV    = 75.0
	initialHeight = 8.0
	initialOffset = 15.0
)

// Projector receives the field of view after every camera update.
type Projector interface {
	UpdateProjection(fov float64)
}

type nopProjector struct{}

func (nopProjector) UpdateProjection(float64) {}

// Camera is the chase camera rig behind the player vehicle.
type Camera struct {
	state     model.CameraState
	projector Projector
}

type CameraOption func(c *Camera)

func WithProjector(p Projector) CameraOption {
	return func(c *Camera) {
		c.projector = p
	}
}

func NewCamera(opts ...CameraOption) *Camera {
	c := &Camera{projector: nopProjector{}}
	for _, opt := range opts {
		opt(c)
	}
	c.Reset()
	return c
}

func (c *Camera) Reset() {
	c.state = model.CameraState{
		Position: r3.Vec{X: 0, Y: initialHeight, Z: initialOffset},
		FOV:      InitialFOV,
	}
}

func (c *Camera) State() model.CameraState {
	return c.state
}

// Follow eases the camera towards its spot behind the vehicle, looks ahead of
// it and widens the field of view with speed.
func (c *Camera) Follow(v *model.Vehicle, dt float64) {
	facing := r3.Vec{X: math.Sin(v.Rotation.Yaw), Z: math.Cos(v.Rotation.Yaw)}

	target := r3.Add(v.Position, r3.Scale(-CameraDistance, facing))
	target.Y = v.Position.Y + CameraHeight
	alpha := smoothing(CameraSmoothing, dt)
	c.state.Position = r3.Add(c.state.Position,
		r3.Scale(alpha, r3.Sub(target, c.state.Position)))

	look := r3.Add(v.Position, r3.Scale(LookAhead, facing))
	look.Y = v.Position.Y + LookHeight
	c.state.LookAt = look

	targetFOV := BaseFOV + math.Abs(v.Speed)*FOVPerSpeed
	fov := lerp(c.state.FOV, targetFOV, smoothing(FOVSmoothing, dt))
	c.state.FOV = lo.Clamp(fov, MinFOV, MaxFOV)
	c.projector.UpdateProjection(c.state.FOV)
}
