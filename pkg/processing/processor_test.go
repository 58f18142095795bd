package processing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/hyperdrive-race/pkg/model"
)

func TestDrivers_Resolve(t *testing.T) {
	called := false
	ai := DriverFunc(func(v *model.Vehicle, dt float64) Outcome {
		called = true
		return Outcome{Lap: v.Lap}
	})
	drivers := Drivers{model.RoleAI: ai, model.RolePlayer: nil}

	drv, err := drivers.Resolve(model.RoleAI)
	assert.NoError(t, err)
	out := drv.Drive(&model.Vehicle{Lap: 2}, 0.1)
	assert.True(t, called)
	assert.Equal(t, Outcome{Lap: 2}, out)

	_, err = drivers.Resolve(model.RolePlayer)
	assert.True(t, errors.Is(err, ErrNoDriver))
}
