package player

import (
	"math"

	"github.com/mpapenbr/hyperdrive-race/pkg/model"
	"github.com/mpapenbr/hyperdrive-race/pkg/track"
)

// Autopilot produces input flags that keep the player on the track.
// It stands in for a human at the keyboard in headless races.
type Autopilot struct {
	curve      *track.Curve
	lookahead  float64 // curve progress
	deadband   float64 // rad
	brakeAngle float64 // rad
	brakeSpeed float64
}

type AutopilotOption func(a *Autopilot)

func WithAutopilotLookahead(progress float64) AutopilotOption {
	return func(a *Autopilot) {
		a.lookahead = progress
	}
}

func NewAutopilot(curve *track.Curve, opts ...AutopilotOption) *Autopilot {
	a := &Autopilot{
		curve:      curve,
		lookahead:  0.02,
		deadband:   0.05,
		brakeAngle: 1.0,
		brakeSpeed: 15,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Input steers towards a point ahead on the curve. Forward is held unless the
// heading error is large at speed, then it brakes.
func (a *Autopilot) Input(v *model.Vehicle) model.MoveInput {
	target := a.curve.PointAt(v.Progress + a.lookahead)
	desired := math.Atan2(target.X-v.Position.X, target.Z-v.Position.Z)
	headingErr := normalizeAngle(desired - v.Rotation.Yaw)

	in := model.MoveInput{Forward: true}
	switch {
	case headingErr > a.deadband:
		in.Left = true
	case headingErr < -a.deadband:
		in.Right = true
	}
	if math.Abs(headingErr) > a.brakeAngle && v.Speed > a.brakeSpeed {
		in.Forward = false
		in.Backward = true
	}
	return in
}

// normalizeAngle maps an angle into (-pi, pi].
func normalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
