package race

import (
	"time"

	"github.com/samber/lo"

	"github.com/mpapenbr/hyperdrive-race/pkg/model"
)

type lapClock struct {
	started bool
	since   time.Time
	laps    []model.LapInfo
}

// lapRecorder keeps the completed lap times per vehicle. A lap is only timed
// if it started on the line: the player's first lap starts with the race,
// AI cars start timing at their first crossing.
type lapRecorder struct {
	clocks map[string]*lapClock
}

func newLapRecorder() *lapRecorder {
	return &lapRecorder{clocks: map[string]*lapClock{}}
}

func (r *lapRecorder) start(vehicles []*model.Vehicle, at time.Time) {
	for _, v := range vehicles {
		r.clocks[v.ID] = &lapClock{started: v.Progress == 0, since: at}
	}
}

// complete is called after v.Lap was incremented.
func (r *lapRecorder) complete(v *model.Vehicle, at time.Time) {
	c, ok := r.clocks[v.ID]
	if !ok {
		c = &lapClock{}
		r.clocks[v.ID] = c
	}
	if c.started {
		c.laps = append(c.laps, model.LapInfo{LapNo: v.Lap - 1, LapTime: at.Sub(c.since)})
	}
	c.started = true
	c.since = at
}

func (r *lapRecorder) ordered(standing []*model.Vehicle) []model.VehicleLaps {
	return lo.Map(standing, func(v *model.Vehicle, _ int) model.VehicleLaps {
		ret := model.VehicleLaps{VehicleID: v.ID, Laps: []model.LapInfo{}}
		if c, ok := r.clocks[v.ID]; ok {
			ret.Laps = append(ret.Laps, c.laps...)
		}
		return ret
	})
}
