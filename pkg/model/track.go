package model

import "time"

type LapInfo struct {
	LapNo   int           `json:"lapNo"`
	LapTime time.Duration `json:"lapTime"`
}

// VehicleLaps holds the completed laps of a vehicle
type VehicleLaps struct {
	VehicleID string    `json:"vehicleId"`
	Laps      []LapInfo `json:"laps"`
}

func (v *VehicleLaps) Best() (LapInfo, bool) {
	if len(v.Laps) == 0 {
		return LapInfo{}, false
	}
	best := v.Laps[0]
	for _, l := range v.Laps[1:] {
		if l.LapTime < best.LapTime {
			best = l
		}
	}
	return best, true
}

func (v *VehicleLaps) Total() time.Duration {
	var sum time.Duration
	for _, l := range v.Laps {
		sum += l.LapTime
	}
	return sum
}
