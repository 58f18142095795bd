package processing

import (
	"errors"
	"fmt"

	"github.com/mpapenbr/hyperdrive-race/pkg/model"
)

var ErrNoDriver = errors.New("no driver registered for role")

// Outcome reports what happened to a vehicle during one tick.
type Outcome struct {
	LapCompleted bool
	// the lap the vehicle is on after the tick
	Lap int
}

// Driver advances one vehicle by dt seconds. A Driver is the only writer of
// the vehicles it drives.
type Driver interface {
	Drive(v *model.Vehicle, dt float64) Outcome
}

// DriverFunc adapts a function to the Driver interface.
type DriverFunc func(v *model.Vehicle, dt float64) Outcome

func (f DriverFunc) Drive(v *model.Vehicle, dt float64) Outcome {
	return f(v, dt)
}

// Drivers maps a role to the driver that moves vehicles of that role.
// New roles (ghost cars, replays) only need a new entry.
type Drivers map[model.Role]Driver

func (d Drivers) Resolve(role model.Role) (Driver, error) {
	if drv, ok := d[role]; ok && drv != nil {
		return drv, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoDriver, role)
}
