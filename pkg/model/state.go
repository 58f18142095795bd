package model

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCountdown
	PhaseActive
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCountdown:
		return "countdown"
	case PhaseActive:
		return "active"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// MoveInput holds the directional flags written by the input layer.
type MoveInput struct {
	Forward  bool `json:"forward"`
	Backward bool `json:"backward"`
	Left     bool `json:"left"`
	Right    bool `json:"right"`
}

// SteerDirection is +1 for left, -1 for right, 0 otherwise.
// Left wins if both are pressed.
func (m MoveInput) SteerDirection() float64 {
	switch {
	case m.Left:
		return 1
	case m.Right:
		return -1
	default:
		return 0
	}
}

type CameraState struct {
	Position r3.Vec  `json:"position"`
	LookAt   r3.Vec  `json:"lookAt"`
	FOV      float64 `json:"fov"`
}

// Snapshot is an immutable copy of the race session taken after a tick.
// Readers never see the director's own vehicle records.
type Snapshot struct {
	SessionKey  string        `json:"sessionKey"`
	Frame       uint64        `json:"frame"`
	Phase       Phase         `json:"phase"`
	CurrentLap  int           `json:"currentLap"`
	MaxLaps     int           `json:"maxLaps"`
	Countdown   int           `json:"countdown"`
	StartTime   time.Time     `json:"startTime"`
	ElapsedTime time.Duration `json:"elapsedTime"`
	Commentary  string        `json:"commentary"`
	PlayerRank  int           `json:"playerRank"`
	Vehicles    []Vehicle     `json:"vehicles"`
	Leaderboard []Vehicle     `json:"leaderboard"`
	Laps        []VehicleLaps `json:"laps"`
	Camera      CameraState   `json:"camera"`
}

// Player returns the player vehicle of the snapshot.
func (s *Snapshot) Player() (Vehicle, bool) {
	for i := range s.Vehicles {
		if s.Vehicles[i].IsPlayer() {
			return s.Vehicles[i], true
		}
	}
	return Vehicle{}, false
}
